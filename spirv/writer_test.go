package spirv

import (
	"encoding/binary"
	"errors"
	"slices"
	"testing"
)

func TestModuleBuilder_MinimalModule(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	// Add basic capability
	builder.AddCapability(CapabilityShader)

	// Set memory model (required)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	buf, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data := buf.Bytes()

	// Verify header (5 words = 20 bytes)
	if len(data) < 20 {
		t.Fatalf("Module too small: got %d bytes, want at least 20", len(data))
	}

	// Check magic number
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MagicNumber {
		t.Errorf("Invalid magic number: got 0x%08X, want 0x%08X", magic, MagicNumber)
	}

	// Check version
	version := binary.LittleEndian.Uint32(data[4:8])
	expectedVersion := uint32(1<<16 | 3<<8) // Version 1.3
	if version != expectedVersion {
		t.Errorf("Invalid version: got 0x%08X, want 0x%08X", version, expectedVersion)
	}

	h := buf.Header()
	if h.Generator != GeneratorID {
		t.Errorf("Invalid generator: got 0x%08X, want 0x%08X", h.Generator, GeneratorID)
	}
	if h.Bound == 0 {
		t.Error("Bound should be > 0")
	}
	if h.Schema != 0 {
		t.Errorf("Schema should be 0, got %d", h.Schema)
	}
	if h.Version != Version1_3 {
		t.Errorf("Header version = %s, want 1.3", h.Version)
	}
}

func TestModuleBuilder_WithTypes(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	builder.AddCapability(CapabilityShader)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	voidType := builder.AddTypeVoid()
	floatType := builder.AddTypeFloat(32)
	intType := builder.AddTypeInt(32, true)
	vec4Type := builder.AddTypeVector(floatType, 4)

	if _, err := builder.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	ids := []uint32{voidType, floatType, intType, vec4Type}
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[i-1]+1 {
			t.Errorf("Type IDs should be sequential: %v", ids)
		}
	}
}

func TestModuleBuilder_WithEntryPoint(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	builder.AddCapability(CapabilityShader)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	voidType := builder.AddTypeVoid()
	funcType := builder.AddTypeFunction(voidType)

	funcID := builder.AddFunction(funcType, voidType, FunctionControlNone)
	builder.AddLabel()
	builder.AddReturn()
	builder.AddFunctionEnd()

	builder.AddEntryPoint(ExecutionModelFragment, funcID, "main", nil)
	builder.AddExecutionMode(funcID, ExecutionModeOriginUpperLeft)

	buf, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var ops []OpCode
	for inst, err := range buf.Instructions() {
		if err != nil {
			t.Fatal(err)
		}
		ops = append(ops, inst.Opcode)
	}
	want := []OpCode{
		OpCapability, OpMemoryModel, OpEntryPoint, OpExecutionMode,
		OpTypeVoid, OpTypeFunction,
		OpFunction, OpLabel, OpReturn, OpFunctionEnd,
	}
	if !slices.Equal(ops, want) {
		t.Errorf("instructions = %v, want %v", ops, want)
	}
}

func TestModuleBuilder_Constants(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	boolType := builder.AddTypeBool()
	floatType := builder.AddTypeFloat(32)
	vecType := builder.AddTypeVector(floatType, 2)
	yes := builder.AddConstantBool(boolType, true)
	no := builder.AddConstantBool(boolType, false)
	one := builder.AddConstant(floatType, 0x3f800000)
	pair := builder.AddConstantComposite(vecType, one, one)
	null := builder.AddConstantNull(vecType)

	buf, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := map[uint32]OpCode{
		yes:  OpConstantTrue,
		no:   OpConstantFalse,
		one:  OpConstant,
		pair: OpConstantComposite,
		null: OpConstantNull,
	}
	for inst, err := range buf.Instructions() {
		if err != nil {
			t.Fatal(err)
		}
		id, ok := inst.ResultID()
		if !ok {
			continue
		}
		if op, ok := want[id]; ok {
			if inst.Opcode != op {
				t.Errorf("%%%d is %v, want %v", id, inst.Opcode, op)
			}
			delete(want, id)
		}
	}
	if len(want) != 0 {
		t.Errorf("constants missing from the module: %v", want)
	}
}

func TestModuleBuilder_LocalVariablesInEntryBlock(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	voidType := builder.AddTypeVoid()
	floatType := builder.AddTypeFloat(32)
	ptrType := builder.AddTypePointer(StorageClassFunction, floatType)
	funcType := builder.AddTypeFunction(voidType)
	one := builder.AddConstant(floatType, 0x3f800000) // 1.0

	builder.AddFunction(funcType, voidType, FunctionControlNone)
	builder.AddLabel()
	a := builder.AddLocalVariable(ptrType)
	builder.AddStore(a, one)
	next := builder.AllocID()
	builder.AddBranch(next)
	builder.AddLabelID(next)
	b := builder.AddLocalVariable(ptrType)
	builder.AddStore(b, one)
	builder.AddReturn()
	builder.AddFunctionEnd()

	buf, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var ops []OpCode
	inFunc := false
	for inst := range buf.Instructions() {
		if inst.Opcode == OpFunction {
			inFunc = true
		}
		if inFunc {
			ops = append(ops, inst.Opcode)
		}
	}
	want := []OpCode{
		OpFunction, OpLabel, OpVariable, OpVariable,
		OpStore, OpBranch, OpLabel, OpStore, OpReturn, OpFunctionEnd,
	}
	if !slices.Equal(ops, want) {
		t.Errorf("function = %v, want %v", ops, want)
	}
}

func TestModuleBuilder_Terminated(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	voidType := builder.AddTypeVoid()
	builder.AddFunction(builder.AddTypeFunction(voidType), voidType, FunctionControlNone)
	builder.AddLabel()
	if builder.Terminated() {
		t.Error("fresh block reported as terminated")
	}
	builder.AddKill()
	if !builder.Terminated() {
		t.Error("OpKill did not terminate the block")
	}
	builder.AddLabel()
	if builder.Terminated() {
		t.Error("new label still terminated")
	}
}

func TestModuleBuilder_UnclosedFunction(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	voidType := builder.AddTypeVoid()
	builder.AddFunction(builder.AddTypeFunction(voidType), voidType, FunctionControlNone)
	builder.AddLabel()
	if _, err := builder.Build(); err == nil {
		t.Error("Build succeeded with an open function")
	}
}

func TestInstructionBuilder_String(t *testing.T) {
	tests := []struct {
		s     string
		words int
	}{
		{"", 1},
		{"abc", 1},
		{"abcd", 2},
		{"hello", 2},
	}
	for _, tt := range tests {
		builder := NewInstructionBuilder()
		builder.AddString(tt.s)
		inst := builder.Build(OpName)
		if len(inst.Words) != tt.words {
			t.Errorf("%q: %d words, want %d", tt.s, len(inst.Words), tt.words)
		}
		got, n := DecodeString(inst.Words)
		if got != tt.s || n != tt.words {
			t.Errorf("DecodeString = %q, %d; want %q, %d", got, n, tt.s, tt.words)
		}

		encoded := inst.Encode()
		if op := OpCode(encoded[0] & 0xFFFF); op != OpName {
			t.Errorf("Wrong opcode: got %d, want %d", op, OpName)
		}
		if count := encoded[0] >> 16; int(count) != tt.words+1 {
			t.Errorf("word count = %d, want %d", count, tt.words+1)
		}
	}
}

func TestModuleBuilder_IDAllocation(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	id1 := builder.AllocID()
	id2 := builder.AllocID()
	id3 := builder.AllocID()

	if id1 >= id2 || id2 >= id3 {
		t.Error("IDs should be strictly increasing")
	}
	if id1 == 0 {
		t.Error("IDs should never be 0")
	}
	if builder.Bound() != id3+1 {
		t.Errorf("Bound = %d, want %d", builder.Bound(), id3+1)
	}
}

func TestModuleBuilder_IDExhaustion(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.SetMaxID(3)
	for range 3 {
		builder.AddTypeFloat(32)
	}
	if err := builder.Err(); err != nil {
		t.Fatalf("error before the limit: %v", err)
	}
	builder.AddTypeBool()
	_, err := builder.Build()
	var emission *EmissionError
	if !errors.As(err, &emission) {
		t.Fatalf("Build error = %v, want an EmissionError", err)
	}
}

func TestDecode(t *testing.T) {
	builder := NewModuleBuilder(Version1_5)
	builder.AddCapability(CapabilityShader)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)
	builder.AddName(builder.AddTypeFloat(32), "float")
	buf, err := builder.Build()
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !slices.Equal(got, buf) {
		t.Errorf("little-endian round trip differs")
	}

	big := make([]byte, len(buf)*4)
	for i, w := range buf {
		binary.BigEndian.PutUint32(big[i*4:], w)
	}
	got, err = Decode(big)
	if err != nil {
		t.Fatalf("Decode big-endian: %v", err)
	}
	if !slices.Equal(got, buf) {
		t.Errorf("big-endian round trip differs")
	}
	if got.Header().Version != Version1_5 {
		t.Errorf("version = %s", got.Header().Version)
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, _ := NewModuleBuilder(Version1_3).Build()
	truncated := slices.Clone(valid.Bytes())
	truncated = append(truncated, 0x05, 0x00, 0x05, 0x00) // OpName claiming 5 words

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unaligned", []byte{1, 2, 3}},
		{"bad magic", make([]byte, 20)},
		{"truncated instruction", truncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); err == nil {
				t.Error("Decode succeeded")
			}
		})
	}
}

func TestOpCodeString(t *testing.T) {
	if got := OpEntryPoint.String(); got != "OpEntryPoint" {
		t.Errorf("OpEntryPoint.String() = %q", got)
	}
	if got := ExecutionModelFragment.String(); got != "Fragment" {
		t.Errorf("ExecutionModelFragment.String() = %q", got)
	}
}
