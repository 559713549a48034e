package spirv

import (
	"math"
)

// Instruction represents a SPIR-V instruction.
type Instruction struct {
	Opcode OpCode
	Words  []uint32 // result type ID, result ID, operands
}

// InstructionBuilder builds SPIR-V instructions.
type InstructionBuilder struct {
	words []uint32
}

// NewInstructionBuilder creates a new instruction builder.
func NewInstructionBuilder() *InstructionBuilder {
	return &InstructionBuilder{
		words: make([]uint32, 0, 8),
	}
}

// AddWord adds a word to the instruction.
func (b *InstructionBuilder) AddWord(word uint32) {
	b.words = append(b.words, word)
}

// AddWords adds several words to the instruction.
func (b *InstructionBuilder) AddWords(words ...uint32) {
	b.words = append(b.words, words...)
}

// AddString adds a null-terminated UTF-8 string, padded to a word boundary.
func (b *InstructionBuilder) AddString(s string) {
	b.words = append(b.words, stringWords(s)...)
}

func stringWords(s string) []uint32 {
	bytes := []byte(s)
	bytes = append(bytes, 0)
	for len(bytes)%4 != 0 {
		bytes = append(bytes, 0)
	}
	words := make([]uint32, 0, len(bytes)/4)
	for i := 0; i < len(bytes); i += 4 {
		words = append(words, uint32(bytes[i])|
			uint32(bytes[i+1])<<8|
			uint32(bytes[i+2])<<16|
			uint32(bytes[i+3])<<24)
	}
	return words
}

// Build builds the instruction with the given opcode.
func (b *InstructionBuilder) Build(opcode OpCode) Instruction {
	return Instruction{
		Opcode: opcode,
		Words:  b.words,
	}
}

// Encode encodes the instruction to binary.
func (i Instruction) Encode() []uint32 {
	wordCount := uint32(len(i.Words) + 1) // +1 for opcode word
	result := make([]uint32, 0, wordCount)
	result = append(result, (wordCount<<16)|uint32(i.Opcode))
	result = append(result, i.Words...)
	return result
}

// Section is a logical layout section of a module. Instructions are
// serialized section by section in this order.
type Section uint8

const (
	SectionCapabilities Section = iota
	SectionExtensions
	SectionExtInstImports
	SectionMemoryModel
	SectionEntryPoints
	SectionExecutionModes
	SectionDebugStrings // OpString
	SectionDebugNames   // OpName, OpMemberName
	SectionAnnotations  // OpDecorate, OpMemberDecorate
	SectionTypes        // OpType*, OpConstant*
	SectionGlobals      // OpVariable (global)
	SectionFunctions    // OpFunction...OpFunctionEnd
	numSections
)

// functionCode buffers the function being built so that its local
// variables can be placed at the top of the entry block.
type functionCode struct {
	head    []Instruction // OpFunction, parameters and the entry label
	vars    []Instruction
	body    []Instruction
	labeled bool
}

// ModuleBuilder builds complete SPIR-V modules.
type ModuleBuilder struct {
	// Header
	version   Version
	generator uint32
	schema    uint32

	sections [numSections][]Instruction
	fn       *functionCode

	// ID allocation
	nextID uint32
	maxID  uint32
	err    error

	terminated bool
}

// NewModuleBuilder creates a new SPIR-V module builder.
func NewModuleBuilder(version Version) *ModuleBuilder {
	return &ModuleBuilder{
		version:   version,
		generator: GeneratorID,
		nextID:    1,
		maxID:     DefaultMaxID,
	}
}

// SetMaxID bounds id allocation. Allocating past max makes Build fail.
func (b *ModuleBuilder) SetMaxID(max uint32) {
	if max == 0 {
		max = DefaultMaxID
	}
	b.maxID = max
}

// AllocID allocates a new SPIR-V ID. IDs are allocated monotonically
// starting at 1.
func (b *ModuleBuilder) AllocID() uint32 {
	id := b.nextID
	if id > b.maxID && b.err == nil {
		b.err = emissionErrorf("id space exhausted: id %d exceeds limit %d", id, b.maxID)
	}
	b.nextID++
	return id
}

// Bound returns the id bound of the module built so far.
func (b *ModuleBuilder) Bound() uint32 { return b.nextID }

// Err returns the first error recorded while building.
func (b *ModuleBuilder) Err() error { return b.err }

// Terminated reports whether the current block ends in a terminator.
func (b *ModuleBuilder) Terminated() bool { return b.terminated }

func (b *ModuleBuilder) add(section Section, inst Instruction) {
	if len(inst.Words)+1 > math.MaxUint16 && b.err == nil {
		b.err = emissionErrorf("%s has %d words, more than an instruction can encode", inst.Opcode, len(inst.Words)+1)
	}
	if section != SectionFunctions {
		b.sections[section] = append(b.sections[section], inst)
		return
	}
	switch inst.Opcode {
	case OpLabel:
		b.terminated = false
	case OpBranch, OpBranchConditional, OpSwitch, OpKill, OpReturn, OpReturnValue, OpUnreachable:
		b.terminated = true
	}
	if b.fn == nil {
		b.sections[section] = append(b.sections[section], inst)
		return
	}
	switch {
	case inst.Opcode == OpFunction || inst.Opcode == OpFunctionParameter:
		b.fn.head = append(b.fn.head, inst)
	case inst.Opcode == OpLabel && !b.fn.labeled:
		b.fn.head = append(b.fn.head, inst)
		b.fn.labeled = true
	default:
		b.fn.body = append(b.fn.body, inst)
	}
}

// EmitInstruction appends an instruction to section. A fresh result id
// is allocated when op produces one; resultType is ignored for opcodes
// without a result type.
func (b *ModuleBuilder) EmitInstruction(section Section, op OpCode, resultType uint32, operands ...uint32) Value {
	builder := NewInstructionBuilder()
	var v Value
	switch op.shape() {
	case typedResult:
		v = Value{ID: b.AllocID(), TypeID: resultType}
		builder.AddWord(resultType)
		builder.AddWord(v.ID)
	case resultOnly:
		v = Value{ID: b.AllocID()}
		builder.AddWord(v.ID)
	}
	builder.AddWords(operands...)
	b.add(section, builder.Build(op))
	return v
}

// Emit appends an instruction with a result type and id to the current
// function and returns the result id.
func (b *ModuleBuilder) Emit(op OpCode, resultType uint32, operands ...uint32) uint32 {
	return b.EmitInstruction(SectionFunctions, op, resultType, operands...).ID
}

// AddCapability adds a capability.
func (b *ModuleBuilder) AddCapability(capability Capability) {
	b.EmitInstruction(SectionCapabilities, OpCapability, 0, uint32(capability))
}

// AddExtInstImport imports an extended instruction set.
func (b *ModuleBuilder) AddExtInstImport(name string) uint32 {
	return b.EmitInstruction(SectionExtInstImports, OpExtInstImport, 0, stringWords(name)...).ID
}

// SetMemoryModel sets the memory model.
func (b *ModuleBuilder) SetMemoryModel(addressing AddressingModel, memory MemoryModel) {
	b.sections[SectionMemoryModel] = nil
	b.EmitInstruction(SectionMemoryModel, OpMemoryModel, 0, uint32(addressing), uint32(memory))
}

// AddEntryPoint adds an entry point.
func (b *ModuleBuilder) AddEntryPoint(execModel ExecutionModel, funcID uint32, name string, interfaces []uint32) {
	builder := NewInstructionBuilder()
	builder.AddWord(uint32(execModel))
	builder.AddWord(funcID)
	builder.AddString(name)
	builder.AddWords(interfaces...)
	b.add(SectionEntryPoints, builder.Build(OpEntryPoint))
}

// AddExecutionMode adds an execution mode.
func (b *ModuleBuilder) AddExecutionMode(entryPoint uint32, mode ExecutionMode, params ...uint32) {
	b.EmitInstruction(SectionExecutionModes, OpExecutionMode, 0, append([]uint32{entryPoint, uint32(mode)}, params...)...)
}

// AddName adds a debug name.
func (b *ModuleBuilder) AddName(id uint32, name string) {
	b.EmitInstruction(SectionDebugNames, OpName, 0, append([]uint32{id}, stringWords(name)...)...)
}

// AddMemberName adds a debug member name.
func (b *ModuleBuilder) AddMemberName(structID, member uint32, name string) {
	b.EmitInstruction(SectionDebugNames, OpMemberName, 0, append([]uint32{structID, member}, stringWords(name)...)...)
}

// AddDecorate adds a decoration.
func (b *ModuleBuilder) AddDecorate(id uint32, decoration Decoration, params ...uint32) {
	b.EmitInstruction(SectionAnnotations, OpDecorate, 0, append([]uint32{id, uint32(decoration)}, params...)...)
}

// AddMemberDecorate adds a member decoration.
func (b *ModuleBuilder) AddMemberDecorate(structID, member uint32, decoration Decoration, params ...uint32) {
	b.EmitInstruction(SectionAnnotations, OpMemberDecorate, 0, append([]uint32{structID, member, uint32(decoration)}, params...)...)
}

// AddTypeVoid adds OpTypeVoid.
func (b *ModuleBuilder) AddTypeVoid() uint32 {
	return b.EmitInstruction(SectionTypes, OpTypeVoid, 0).ID
}

// AddTypeBool adds OpTypeBool.
func (b *ModuleBuilder) AddTypeBool() uint32 {
	return b.EmitInstruction(SectionTypes, OpTypeBool, 0).ID
}

// AddTypeFloat adds OpTypeFloat.
func (b *ModuleBuilder) AddTypeFloat(width uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpTypeFloat, 0, width).ID
}

// AddTypeInt adds OpTypeInt.
func (b *ModuleBuilder) AddTypeInt(width uint32, signed bool) uint32 {
	var s uint32
	if signed {
		s = 1
	}
	return b.EmitInstruction(SectionTypes, OpTypeInt, 0, width, s).ID
}

// AddTypeVector adds OpTypeVector.
func (b *ModuleBuilder) AddTypeVector(componentType uint32, count uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpTypeVector, 0, componentType, count).ID
}

// AddTypeMatrix adds OpTypeMatrix.
func (b *ModuleBuilder) AddTypeMatrix(columnType uint32, columnCount uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpTypeMatrix, 0, columnType, columnCount).ID
}

// AddTypeArray adds OpTypeArray. length is the id of a constant.
func (b *ModuleBuilder) AddTypeArray(elementType uint32, length uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpTypeArray, 0, elementType, length).ID
}

// AddTypePointer adds OpTypePointer.
func (b *ModuleBuilder) AddTypePointer(storageClass StorageClass, baseType uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpTypePointer, 0, uint32(storageClass), baseType).ID
}

// AddTypeFunction adds OpTypeFunction.
func (b *ModuleBuilder) AddTypeFunction(returnType uint32, paramTypes ...uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpTypeFunction, 0, append([]uint32{returnType}, paramTypes...)...).ID
}

// AddTypeStruct adds OpTypeStruct.
func (b *ModuleBuilder) AddTypeStruct(memberTypes ...uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpTypeStruct, 0, memberTypes...).ID
}

// AddConstant adds OpConstant.
func (b *ModuleBuilder) AddConstant(typeID uint32, values ...uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpConstant, typeID, values...).ID
}

// AddConstantBool adds OpConstantTrue or OpConstantFalse.
func (b *ModuleBuilder) AddConstantBool(typeID uint32, value bool) uint32 {
	op := OpConstantFalse
	if value {
		op = OpConstantTrue
	}
	return b.EmitInstruction(SectionTypes, op, typeID).ID
}

// AddConstantComposite adds OpConstantComposite.
func (b *ModuleBuilder) AddConstantComposite(typeID uint32, constituents ...uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpConstantComposite, typeID, constituents...).ID
}

// AddConstantNull adds OpConstantNull.
func (b *ModuleBuilder) AddConstantNull(typeID uint32) uint32 {
	return b.EmitInstruction(SectionTypes, OpConstantNull, typeID).ID
}

// AddVariable adds a global OpVariable.
func (b *ModuleBuilder) AddVariable(pointerType uint32, storageClass StorageClass) uint32 {
	return b.EmitInstruction(SectionGlobals, OpVariable, pointerType, uint32(storageClass)).ID
}

// AddVariableWithInit adds a global OpVariable with an initializer.
func (b *ModuleBuilder) AddVariableWithInit(pointerType uint32, storageClass StorageClass, initID uint32) uint32 {
	return b.EmitInstruction(SectionGlobals, OpVariable, pointerType, uint32(storageClass), initID).ID
}

// AddFunction starts a function definition. Instructions up to
// AddFunctionEnd belong to it.
func (b *ModuleBuilder) AddFunction(funcType uint32, returnType uint32, control FunctionControl) uint32 {
	id := b.AllocID()
	b.AddFunctionID(id, funcType, returnType, control)
	return id
}

// AddFunctionID is AddFunction for an id allocated earlier, as needed
// when calls are emitted before the callee.
func (b *ModuleBuilder) AddFunctionID(id, funcType, returnType uint32, control FunctionControl) {
	b.fn = &functionCode{}
	b.add(SectionFunctions, Instruction{Opcode: OpFunction, Words: []uint32{returnType, id, uint32(control), funcType}})
}

// AddFunctionParameter adds a function parameter.
func (b *ModuleBuilder) AddFunctionParameter(typeID uint32) uint32 {
	return b.EmitInstruction(SectionFunctions, OpFunctionParameter, typeID).ID
}

// AddLocalVariable adds a Function storage variable to the entry block
// of the current function.
func (b *ModuleBuilder) AddLocalVariable(pointerType uint32) uint32 {
	id := b.AllocID()
	inst := Instruction{Opcode: OpVariable, Words: []uint32{pointerType, id, uint32(StorageClassFunction)}}
	if b.fn == nil {
		b.add(SectionFunctions, inst)
		return id
	}
	b.fn.vars = append(b.fn.vars, inst)
	return id
}

// AddLabel adds a label with a fresh id.
func (b *ModuleBuilder) AddLabel() uint32 {
	id := b.AllocID()
	b.AddLabelID(id)
	return id
}

// AddLabelID starts a block with a label allocated earlier.
func (b *ModuleBuilder) AddLabelID(id uint32) {
	b.add(SectionFunctions, Instruction{Opcode: OpLabel, Words: []uint32{id}})
}

// AddReturn adds OpReturn.
func (b *ModuleBuilder) AddReturn() {
	b.EmitInstruction(SectionFunctions, OpReturn, 0)
}

// AddReturnValue adds OpReturnValue.
func (b *ModuleBuilder) AddReturnValue(valueID uint32) {
	b.EmitInstruction(SectionFunctions, OpReturnValue, 0, valueID)
}

// AddFunctionEnd adds OpFunctionEnd and flushes the current function.
func (b *ModuleBuilder) AddFunctionEnd() {
	end := Instruction{Opcode: OpFunctionEnd}
	if b.fn == nil {
		b.sections[SectionFunctions] = append(b.sections[SectionFunctions], end)
		return
	}
	fn := b.fn
	b.fn = nil
	out := b.sections[SectionFunctions]
	out = append(out, fn.head...)
	out = append(out, fn.vars...)
	out = append(out, fn.body...)
	b.sections[SectionFunctions] = append(out, end)
}

// AddFunctionCall adds OpFunctionCall.
func (b *ModuleBuilder) AddFunctionCall(resultType, function uint32, args ...uint32) uint32 {
	return b.Emit(OpFunctionCall, resultType, append([]uint32{function}, args...)...)
}

// AddBinaryOp adds a binary operation instruction.
func (b *ModuleBuilder) AddBinaryOp(opcode OpCode, resultType uint32, left uint32, right uint32) uint32 {
	return b.Emit(opcode, resultType, left, right)
}

// AddUnaryOp adds a unary operation instruction.
func (b *ModuleBuilder) AddUnaryOp(opcode OpCode, resultType uint32, operand uint32) uint32 {
	return b.Emit(opcode, resultType, operand)
}

// AddLoad adds OpLoad.
func (b *ModuleBuilder) AddLoad(resultType uint32, pointer uint32) uint32 {
	return b.Emit(OpLoad, resultType, pointer)
}

// AddStore adds OpStore.
func (b *ModuleBuilder) AddStore(pointer uint32, value uint32) {
	b.EmitInstruction(SectionFunctions, OpStore, 0, pointer, value)
}

// AddAccessChain adds OpAccessChain.
func (b *ModuleBuilder) AddAccessChain(resultType uint32, base uint32, indices ...uint32) uint32 {
	return b.Emit(OpAccessChain, resultType, append([]uint32{base}, indices...)...)
}

// AddCompositeConstruct adds OpCompositeConstruct.
func (b *ModuleBuilder) AddCompositeConstruct(resultType uint32, constituents ...uint32) uint32 {
	return b.Emit(OpCompositeConstruct, resultType, constituents...)
}

// AddCompositeExtract adds OpCompositeExtract.
func (b *ModuleBuilder) AddCompositeExtract(resultType uint32, composite uint32, indices ...uint32) uint32 {
	return b.Emit(OpCompositeExtract, resultType, append([]uint32{composite}, indices...)...)
}

// AddVectorShuffle adds OpVectorShuffle for vector swizzle operations.
func (b *ModuleBuilder) AddVectorShuffle(resultType uint32, vec1 uint32, vec2 uint32, components []uint32) uint32 {
	return b.Emit(OpVectorShuffle, resultType, append([]uint32{vec1, vec2}, components...)...)
}

// AddSelect adds OpSelect.
func (b *ModuleBuilder) AddSelect(resultType uint32, condition uint32, accept uint32, reject uint32) uint32 {
	return b.Emit(OpSelect, resultType, condition, accept, reject)
}

// AddSelectionMerge adds OpSelectionMerge.
func (b *ModuleBuilder) AddSelectionMerge(mergeLabel uint32, control SelectionControl) {
	b.EmitInstruction(SectionFunctions, OpSelectionMerge, 0, mergeLabel, uint32(control))
}

// AddLoopMerge adds OpLoopMerge.
func (b *ModuleBuilder) AddLoopMerge(mergeLabel uint32, continueLabel uint32, control LoopControl) {
	b.EmitInstruction(SectionFunctions, OpLoopMerge, 0, mergeLabel, continueLabel, uint32(control))
}

// AddBranch adds OpBranch.
func (b *ModuleBuilder) AddBranch(target uint32) {
	b.EmitInstruction(SectionFunctions, OpBranch, 0, target)
}

// AddBranchConditional adds OpBranchConditional.
func (b *ModuleBuilder) AddBranchConditional(condition uint32, trueLabel uint32, falseLabel uint32) {
	b.EmitInstruction(SectionFunctions, OpBranchConditional, 0, condition, trueLabel, falseLabel)
}

// AddSwitch adds OpSwitch. targets holds literal and label pairs.
func (b *ModuleBuilder) AddSwitch(selector, defaultLabel uint32, targets ...uint32) {
	b.EmitInstruction(SectionFunctions, OpSwitch, 0, append([]uint32{selector, defaultLabel}, targets...)...)
}

// AddKill adds OpKill (fragment shader discard).
func (b *ModuleBuilder) AddKill() {
	b.EmitInstruction(SectionFunctions, OpKill, 0)
}

// AddUnreachable adds OpUnreachable.
func (b *ModuleBuilder) AddUnreachable() {
	b.EmitInstruction(SectionFunctions, OpUnreachable, 0)
}

// AddExtInst adds OpExtInst (extended instruction).
func (b *ModuleBuilder) AddExtInst(resultType uint32, extSet uint32, instruction uint32, operands ...uint32) uint32 {
	return b.Emit(OpExtInst, resultType, append([]uint32{extSet, instruction}, operands...)...)
}

// Build serializes the module. It fails when an id exceeded the limit or
// an instruction is too long to encode.
func (b *ModuleBuilder) Build() (Buffer, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.fn != nil {
		return nil, emissionErrorf("function without OpFunctionEnd")
	}

	totalWords := headerWords
	for _, section := range b.sections {
		for _, inst := range section {
			totalWords += len(inst.Words) + 1
		}
	}

	buf := make(Buffer, 0, totalWords)
	buf = append(buf, MagicNumber, versionToWord(b.version), b.generator, b.nextID, b.schema)
	for _, section := range b.sections {
		for _, inst := range section {
			buf = append(buf, inst.Encode()...)
		}
	}
	return buf, nil
}

// versionToWord converts Version to SPIR-V word format.
func versionToWord(v Version) uint32 {
	return (uint32(v.Major) << 16) | (uint32(v.Minor) << 8)
}
