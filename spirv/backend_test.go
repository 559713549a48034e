package spirv

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/sdsl/parser"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/symbols"
)

func analyze(t *testing.T, src string, stages sema.Stage) *sema.Program {
	t.Helper()
	mod, err := parser.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, errs := sema.Analyze(mod, sema.Options{Stages: stages})
	for _, err := range errs {
		t.Errorf("analyze: %v", err)
	}
	if len(errs) > 0 {
		t.FailNow()
	}
	return prog
}

func compileWith(t *testing.T, src string, stages sema.Stage, opts Options) Buffer {
	t.Helper()
	buf, err := NewBackend(opts).Compile(analyze(t, src, stages))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return buf
}

func compile(t *testing.T, src string, stages sema.Stage) Buffer {
	t.Helper()
	return compileWith(t, src, stages, DefaultOptions())
}

// findOps returns the instructions with opcode op, in module order.
func findOps(t *testing.T, buf Buffer, op OpCode) []Instruction {
	t.Helper()
	var out []Instruction
	for inst, err := range buf.Instructions() {
		if err != nil {
			t.Fatalf("malformed module: %v", err)
		}
		if inst.Opcode == op {
			out = append(out, inst)
		}
	}
	return out
}

func countOps(t *testing.T, buf Buffer, op OpCode) int {
	t.Helper()
	return len(findOps(t, buf, op))
}

const redPixel = "float4 main() : SV_Target { return float4(1, 0, 0, 1); }"

func TestCompilePixelEntryPoint(t *testing.T) {
	buf := compile(t, redPixel, sema.Pixel)

	if h := buf.Header(); h.Magic != MagicNumber || h.Version != Version1_3 {
		t.Errorf("header = %+v", h)
	}
	eps := findOps(t, buf, OpEntryPoint)
	if len(eps) != 1 {
		t.Fatalf("got %d entry points, want 1", len(eps))
	}
	if model := ExecutionModel(eps[0].Words[0]); model != ExecutionModelFragment {
		t.Errorf("execution model = %s, want Fragment", model)
	}
	if name, _ := DecodeString(eps[0].Words[2:]); name != "main" {
		t.Errorf("entry point name = %q, want main", name)
	}
	if n := countOps(t, buf, OpConstantComposite); n != 1 {
		t.Errorf("got %d composite constants, want 1", n)
	}

	var origin bool
	for _, inst := range findOps(t, buf, OpExecutionMode) {
		if ExecutionMode(inst.Words[1]) == ExecutionModeOriginUpperLeft {
			origin = true
		}
	}
	if !origin {
		t.Error("missing OriginUpperLeft execution mode")
	}

	var location bool
	for _, inst := range findOps(t, buf, OpDecorate) {
		if Decoration(inst.Words[1]) == DecorationLocation && inst.Words[2] == 0 {
			location = true
		}
	}
	if !location {
		t.Error("SV_Target output is not decorated with location 0")
	}
}

func TestCompileDeterministic(t *testing.T) {
	prog := analyze(t, passShader, sema.Vertex|sema.Pixel)
	first, err := NewBackend(DefaultOptions()).Compile(prog)
	if err != nil {
		t.Fatal(err)
	}
	backend := NewBackend(DefaultOptions())
	for range 3 {
		again, err := backend.Compile(prog)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(first, again) {
			t.Fatal("compiling the same program twice gave different modules")
		}
	}
}

const passShader = `
shader Pass
{
	stream float4 Position : POSITION;
	stream float4 ShadingPosition : SV_Position;
	stream float2 UV : TEXCOORD0;
	stream float4 Color : SV_Target0;

	void VSMain()
	{
		streams.ShadingPosition = streams.Position;
		streams.UV = streams.Position.xy;
	}

	void PSMain()
	{
		streams.Color = float4(streams.UV, 0, 1);
	}
}`

func TestCompileStreams(t *testing.T) {
	buf := compile(t, passShader, sema.Vertex|sema.Pixel)

	eps := findOps(t, buf, OpEntryPoint)
	if len(eps) != 2 {
		t.Fatalf("got %d entry points, want 2", len(eps))
	}
	models := []ExecutionModel{ExecutionModel(eps[0].Words[0]), ExecutionModel(eps[1].Words[0])}
	if !slices.Equal(models, []ExecutionModel{ExecutionModelVertex, ExecutionModelFragment}) {
		t.Errorf("execution models = %v", models)
	}

	var position bool
	for _, inst := range findOps(t, buf, OpDecorate) {
		if Decoration(inst.Words[1]) == DecorationBuiltIn && BuiltIn(inst.Words[2]) == BuiltInPosition {
			position = true
		}
	}
	if !position {
		t.Error("SV_Position output is not the Position built-in")
	}
	if n := countOps(t, buf, OpFunctionCall); n != 2 {
		t.Errorf("got %d calls, want one per entry wrapper", n)
	}
}

func TestCompileDebugNames(t *testing.T) {
	opts := DefaultOptions()
	if buf := compileWith(t, passShader, sema.Vertex, opts); countOps(t, buf, OpName) == 0 {
		t.Error("debug build has no OpName")
	}
	opts.Debug = false
	buf := compileWith(t, passShader, sema.Vertex, opts)
	if n := countOps(t, buf, OpName) + countOps(t, buf, OpMemberName); n != 0 {
		t.Errorf("release build has %d debug names", n)
	}
}

func TestCompileIDExhaustion(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxID = 8
	_, err := NewBackend(opts).Compile(analyze(t, passShader, sema.Vertex|sema.Pixel))
	var emission *EmissionError
	if !errors.As(err, &emission) {
		t.Fatalf("error = %v, want an EmissionError", err)
	}
}

func TestCompileUnsupportedStage(t *testing.T) {
	prog := &sema.Program{EntryPoints: []*sema.EntryPoint{{Stage: sema.Geometry}}}
	_, err := NewBackend(DefaultOptions()).Compile(prog)
	var emission *EmissionError
	if !errors.As(err, &emission) {
		t.Fatalf("error = %v, want an EmissionError", err)
	}
}

func TestCompileControlFlow(t *testing.T) {
	buf := compile(t, `
float f(int n)
{
	float s = 0;
	for (int i = 0; i < n; i++)
	{
		s += 1;
	}
	while (s > 10)
	{
		s -= 1;
	}
	do
	{
		s *= 2;
	} while (s < 1);
	if (s > 5)
		s = 5;
	else
		s = 0;
	switch (n)
	{
	case 0:
		s = 1;
		break;
	case 1:
	case 2:
		s = 2;
		break;
	default:
		s = 3;
		break;
	}
	return s;
}`, 0)

	tests := []struct {
		op   OpCode
		want int
	}{
		{OpLoopMerge, 3},
		{OpSelectionMerge, 2},
		{OpSwitch, 1},
		{OpReturnValue, 1},
	}
	for _, tt := range tests {
		if got := countOps(t, buf, tt.op); got != tt.want {
			t.Errorf("%s count = %d, want %d", tt.op, got, tt.want)
		}
	}

	sw := findOps(t, buf, OpSwitch)[0]
	// selector, default, then three literal and label pairs
	if len(sw.Words) != 8 {
		t.Fatalf("OpSwitch has %d operands, want 8", len(sw.Words))
	}
	if sw.Words[2] != 0 || sw.Words[4] != 1 || sw.Words[6] != 2 {
		t.Errorf("case literals = %d %d %d", sw.Words[2], sw.Words[4], sw.Words[6])
	}
}

func TestCompileMul(t *testing.T) {
	buf := compile(t, `
cbuffer PerDraw { float4x4 World; };
float4 RowVector(float4 v) { return mul(v, World); }
float4 ColumnVector(float4 v) { return mul(World, v); }
float4x4 Both(float4x4 m) { return mul(m, World); }
`, 0)
	tests := []struct {
		op   OpCode
		want int
	}{
		{OpMatrixTimesVector, 1},
		{OpVectorTimesMatrix, 1},
		{OpMatrixTimesMatrix, 1},
	}
	for _, tt := range tests {
		if got := countOps(t, buf, tt.op); got != tt.want {
			t.Errorf("%s count = %d, want %d", tt.op, got, tt.want)
		}
	}
	var block bool
	for _, inst := range findOps(t, buf, OpDecorate) {
		if Decoration(inst.Words[1]) == DecorationBlock {
			block = true
		}
	}
	if !block {
		t.Error("cbuffer struct is not decorated Block")
	}
}

func TestCompileComputeLocalSize(t *testing.T) {
	buf := compile(t, `
[numthreads(8, 4, 1)]
void CSMain(uint3 id : SV_DispatchThreadID)
{
}`, sema.Compute)
	var size []uint32
	for _, inst := range findOps(t, buf, OpExecutionMode) {
		if ExecutionMode(inst.Words[1]) == ExecutionModeLocalSize {
			size = inst.Words[2:]
		}
	}
	if !slices.Equal(size, []uint32{8, 4, 1}) {
		t.Errorf("LocalSize = %v, want [8 4 1]", size)
	}
	if model := ExecutionModel(findOps(t, buf, OpEntryPoint)[0].Words[0]); model != ExecutionModelGLCompute {
		t.Errorf("execution model = %s", model)
	}
}

func TestCBufferLayout(t *testing.T) {
	f := symbols.FloatType
	f2 := symbols.Vector{Elem: f, Size: 2}
	f3 := symbols.Vector{Elem: f, Size: 3}
	f4 := symbols.Vector{Elem: f, Size: 4}
	tests := []struct {
		name  string
		types []symbols.Type
		want  []uint32
	}{
		{"scalar then float3", []symbols.Type{f, f3}, []uint32{0, 4}},
		{"float3 straddling a register", []symbols.Type{f2, f3}, []uint32{0, 16}},
		{"array starts a register", []symbols.Type{f, symbols.Array{Elem: f, Len: 2}, f}, []uint32{0, 16, 36}},
		{"matrix starts a register", []symbols.Type{f, symbols.Matrix{Elem: f, Rows: 4, Cols: 4}}, []uint32{0, 16}},
		{"packed scalars", []symbols.Type{f4, f, f, f, f}, []uint32{0, 16, 20, 24, 28}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := make([]symbols.Field, len(tt.types))
			for i, typ := range tt.types {
				fields[i] = symbols.Field{Name: "m", Type: typ}
			}
			if got := cbufferLayout(fields); !slices.Equal(got, tt.want) {
				t.Errorf("offsets = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkCompile(b *testing.B) {
	mod, err := parser.ParseString(passShader)
	if err != nil {
		b.Fatal(err)
	}
	prog, errs := sema.Analyze(mod, sema.Options{Stages: sema.Vertex | sema.Pixel})
	if len(errs) > 0 {
		b.Fatal(errs[0])
	}
	backend := NewBackend(DefaultOptions())
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := backend.Compile(prog); err != nil {
			b.Fatal(err)
		}
	}
}
