package sema

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/parser"
	"github.com/gogpu/sdsl/symbols"
)

func analyze(t *testing.T, src string, stages Stage) (*Program, []error) {
	t.Helper()
	mod, err := parser.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return Analyze(mod, Options{Stages: stages})
}

func mustAnalyze(t *testing.T, src string, stages Stage) *Program {
	t.Helper()
	prog, errs := analyze(t, src, stages)
	for _, err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if len(errs) > 0 {
		t.FailNow()
	}
	return prog
}

// findCalls returns the calls to name in node, in source order.
func findCalls(node ast.Node, name string) []*ast.CallExpr {
	var out []*ast.CallExpr
	ast.Inspect(node, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch fn := call.Fn.(type) {
		case *ast.Ident:
			if fn.Name == name {
				out = append(out, call)
			}
		case *ast.MemberExpr:
			if fn.Name == name {
				out = append(out, call)
			}
		}
		return true
	})
	return out
}

func TestUnboundIdentifier(t *testing.T) {
	const src = "float4 main() : SV_Target { return x; }"
	_, errs := analyze(t, src, Pixel)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	var unbound *symbols.UnboundSymbolError
	if !errors.As(errs[0], &unbound) {
		t.Fatalf("error is %T, want *symbols.UnboundSymbolError", errs[0])
	}
	if unbound.Name != "x" {
		t.Errorf("Name = %q, want x", unbound.Name)
	}
	if col := strings.IndexByte(src, 'x') + 1; unbound.Span.Start.Column != col {
		t.Errorf("column = %d, want %d", unbound.Span.Start.Column, col)
	}
}

func TestLiteralTyping(t *testing.T) {
	prog := mustAnalyze(t, `
float4 main() : SV_Target
{
	half h = 0.5;
	uint u = 3;
	float f = 2 * h;
	return float4(1, 0, 0, 1);
}`, Pixel)

	var lits []symbols.Type
	ast.Inspect(prog.Module, func(n ast.Node) bool {
		switch l := n.(type) {
		case *ast.IntLit:
			lits = append(lits, l.Type())
		case *ast.FloatLit:
			lits = append(lits, l.Type())
		}
		return true
	})
	want := []symbols.Type{
		symbols.HalfType,                    // 0.5
		symbols.UIntType,                    // 3
		symbols.HalfType,                    // 2
		symbols.FloatType, symbols.FloatType, // 1, 0
		symbols.FloatType, symbols.FloatType, // 0, 1
	}
	if len(lits) != len(want) {
		t.Fatalf("found %d literals, want %d", len(lits), len(want))
	}
	for i := range want {
		if !symbols.Equal(lits[i], want[i]) {
			t.Errorf("literal %d: type %s, want %s", i, lits[i], want[i])
		}
	}
}

func TestTypeMismatch(t *testing.T) {
	_, errs := analyze(t, `
float4 main() : SV_Target
{
	float3 v = float3(1, 2, 3);
	float4x4 m;
	float4 r = v + m;
	return r;
}`, Pixel)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	var mismatch *TypeMismatchError
	if !errors.As(errs[0], &mismatch) {
		t.Fatalf("error is %T, want *TypeMismatchError", errs[0])
	}
}

func TestTruncationWarning(t *testing.T) {
	prog := mustAnalyze(t, `
float4 main() : SV_Target
{
	float4 a = float4(1, 1, 1, 1);
	float3 b = a;
	return float4(b, 1);
}`, Pixel)
	if len(prog.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(prog.Warnings), prog.Warnings)
	}
	if !strings.Contains(prog.Warnings[0].Message, "truncation") {
		t.Errorf("warning = %q", prog.Warnings[0].Message)
	}
}

func TestErrorsAccumulate(t *testing.T) {
	_, errs := analyze(t, `
static float a;
static float a;
float4 main() : SV_Target
{
	float b = y;
	break;
	return z;
}`, Pixel)
	if len(errs) != 4 {
		t.Fatalf("got %d errors, want 4: %v", len(errs), errs)
	}
	var dup *symbols.DuplicateSymbolError
	if !errors.As(errs[0], &dup) || dup.Name != "a" {
		t.Errorf("first error = %v, want duplicate a", errs[0])
	}
	var unbound *symbols.UnboundSymbolError
	if !errors.As(errs[1], &unbound) || unbound.Name != "y" {
		t.Errorf("second error = %v, want unbound y", errs[1])
	}
	if !strings.Contains(errs[2].Error(), "break outside") {
		t.Errorf("third error = %v, want break outside of a loop", errs[2])
	}
}

func TestOverloadResolution(t *testing.T) {
	prog := mustAnalyze(t, `
float f(float x) { return x; }
int f(int x) { return x; }
float4 main() : SV_Target
{
	float a = f(1.0);
	int b = f(2);
	return float4(a, b, 0, 1);
}`, Pixel)
	calls := findCalls(prog.Module, "f")
	if len(calls) != 2 {
		t.Fatalf("found %d calls, want 2", len(calls))
	}
	for i, want := range []string{"float", "int"} {
		if calls[i].Decl == nil {
			t.Fatalf("call %d unresolved", i)
		}
		if got := calls[i].Decl.Params[0].Type.Name; got != want {
			t.Errorf("call %d resolved to f(%s), want f(%s)", i, got, want)
		}
	}
}

func TestComposition(t *testing.T) {
	prog := mustAnalyze(t, `
shader Base
{
	float Value() { return 1; }
	abstract float Shade();
}

shader Derived : Base
{
	override float Value() { return base.Value() + 1; }
	override float Shade() { return Value(); }
	float4 PSMain() : SV_Target { return float4(Shade(), 0, 0, 1); }
}`, Pixel)

	if len(prog.Shaders) != 2 || prog.Shaders[0].Name != "Derived" || prog.Shaders[1].Name != "Base" {
		t.Fatalf("composition order = %v", shaderNames(prog))
	}
	base := findCalls(prog.Module, "Value")
	if len(base) != 2 {
		t.Fatalf("found %d calls to Value, want 2", len(base))
	}
	if base[0].Decl == nil || base[0].Decl.Qualifiers.Has(ast.QualOverride) {
		t.Error("base.Value() did not resolve to the base implementation")
	}
	if base[1].Decl == nil || !base[1].Decl.Qualifiers.Has(ast.QualOverride) {
		t.Error("Value() did not resolve to the override")
	}
	shade := findCalls(prog.Module, "Shade")
	if len(shade) != 1 || shade[0].Decl == nil || shade[0].Decl.Body == nil {
		t.Error("Shade() did not resolve to an implementation")
	}
	if len(prog.EntryPoints) != 1 || prog.EntryPoints[0].Function.Name != "PSMain" {
		t.Fatalf("entry points = %v", prog.EntryPoints)
	}
	if n := len(prog.EntryPoints[0].Functions); n != 4 {
		t.Errorf("entry point reaches %d functions, want 4", n)
	}
}

func TestBaseMixinErrors(t *testing.T) {
	const base = `
shader Base
{
	stream float4 Position : POSITION;
	float Value() { return missing; }
}`
	mod, err := parser.ParseString(`
shader Derived : Base
{
	[numthreads(8, 1, 1)]
	void CSMain(uint3 id : SV_DispatchThreadID)
	{
		float4 p = streams.Position * Value();
		float q = other;
	}
}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	bases := func(name string) (*ast.Module, error) {
		return parser.ParseString(base)
	}
	prog, errs := Analyze(mod, Options{Stages: Compute, Bases: bases})
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
	var mixin *MixinError
	for _, err := range errs {
		var unbound *symbols.UnboundSymbolError
		if !errors.As(err, &unbound) {
			t.Fatalf("error %v is %T, want an unbound symbol", err, err)
		}
		inMixin := errors.As(err, &mixin) && mixin.Mixin == "Base"
		switch unbound.Name {
		case "missing":
			if !inMixin {
				t.Errorf("error %v is not attributed to mixin Base", err)
			}
			if want := strings.Index(base, "missing"); unbound.Span.Start.Offset != want {
				t.Errorf("offset = %d, want %d in the mixin source", unbound.Span.Start.Offset, want)
			}
			if !strings.Contains(err.Error(), "mixin Base") {
				t.Errorf("message %q does not name the mixin", err)
			}
		case "other":
			if inMixin {
				t.Errorf("error %v in the compiled source is attributed to a mixin", err)
			}
		default:
			t.Errorf("unexpected unbound name %q", unbound.Name)
		}
	}

	io := CheckIO(prog.Table, prog, Compute)
	if len(io) != 1 {
		t.Fatalf("got %d stream errors, want 1: %v", len(io), io)
	}
	var sd *StreamDirectionError
	if !errors.As(io[0], &sd) || !errors.As(io[0], &mixin) || mixin.Mixin != "Base" {
		t.Errorf("stream error %v is not a StreamDirectionError of mixin Base", io[0])
	}
}

func shaderNames(p *Program) []string {
	var out []string
	for _, s := range p.Shaders {
		out = append(out, s.Name)
	}
	return out
}

func TestOverrideRules(t *testing.T) {
	_, errs := analyze(t, `
shader A { float F() { return 0; } }
shader B : A
{
	float F() { return 1; }
	override float G() { return 2; }
}`, 0)
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Error(), "must be marked override") {
		t.Errorf("error 0 = %v", errs[0])
	}
	if !strings.Contains(errs[1].Error(), "no base shader declares it") {
		t.Errorf("error 1 = %v", errs[1])
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

func TestStreamLayouts(t *testing.T) {
	prog := mustAnalyze(t, passShader, Vertex|Pixel)
	if len(prog.Layouts) != 2 {
		t.Fatalf("got %d layouts, want 2", len(prog.Layouts))
	}
	vs, ps := prog.Layouts[0], prog.Layouts[1]

	names := func(infos []*StreamVariableInfo) string {
		var s []string
		for _, i := range infos {
			s = append(s, i.Name)
		}
		return strings.Join(s, ",")
	}
	if got := names(vs.Inputs); got != "Position" {
		t.Errorf("vertex inputs = %s", got)
	}
	if got := names(vs.Outputs); got != "ShadingPosition,UV" {
		t.Errorf("vertex outputs = %s", got)
	}
	if got := names(ps.Inputs); got != "UV" {
		t.Errorf("pixel inputs = %s", got)
	}
	if got := names(ps.Outputs); got != "Color" {
		t.Errorf("pixel outputs = %s", got)
	}
	if vs.Outputs[1].Location != ps.Inputs[0].Location {
		t.Errorf("UV locations differ: %d vs %d", vs.Outputs[1].Location, ps.Inputs[0].Location)
	}
	if vs.Outputs[0].System == nil || vs.Outputs[0].Location != -1 {
		t.Errorf("SV_Position output: system %v location %d", vs.Outputs[0].System, vs.Outputs[0].Location)
	}
	if ps.Outputs[0].Location != 0 {
		t.Errorf("SV_Target0 location = %d", ps.Outputs[0].Location)
	}
	if vs.InputType.Name != "VERTEX_STREAMS_INPUT" || ps.OutputType.Name != "PIXEL_STREAMS_OUTPUT" {
		t.Errorf("interface types %s, %s", vs.InputType.Name, ps.OutputType.Name)
	}
	if errs := CheckIO(prog.Table, prog, Vertex|Pixel); len(errs) != 0 {
		t.Errorf("CheckIO: %v", errs)
	}
}

func TestEntryParameters(t *testing.T) {
	prog := mustAnalyze(t, `
struct VSInput
{
	float3 Position : POSITION;
	float2 UV : TEXCOORD0;
};

float4 VSMain(VSInput input, uint id : SV_VertexID, out float2 uv : TEXCOORD0) : SV_Position
{
	uv = input.UV;
	return float4(input.Position, 1);
}`, Vertex)
	l := prog.Layouts[0]
	if len(l.Inputs) != 3 || len(l.Outputs) != 2 {
		t.Fatalf("got %d inputs and %d outputs, want 3 and 2", len(l.Inputs), len(l.Outputs))
	}
	if l.Inputs[0].Name != "input_Position" || l.Inputs[0].Field != 0 {
		t.Errorf("first input = %s field %d", l.Inputs[0].Name, l.Inputs[0].Field)
	}
	if l.Outputs[1].Name != "result" || l.Outputs[1].System == nil {
		t.Errorf("result output = %+v", l.Outputs[1])
	}
}

func TestCheckIOCompute(t *testing.T) {
	prog := mustAnalyze(t, `
shader Bad
{
	stream float4 Position : POSITION;
	stream uint Vid : SV_VertexID;

	[numthreads(8, 1, 1)]
	void CSMain(uint3 id : SV_DispatchThreadID)
	{
		float4 p = streams.Position;
		uint v = streams.Vid + id.x;
	}
}`, Compute)
	ep := prog.EntryPoints[0]
	if ep.WorkgroupSize != [3]uint32{8, 1, 1} {
		t.Errorf("workgroup size = %v", ep.WorkgroupSize)
	}
	errs := CheckIO(prog.Table, prog, Compute)
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
	for _, err := range errs {
		var sd *StreamDirectionError
		if !errors.As(err, &sd) {
			t.Errorf("error %v is %T, want *StreamDirectionError", err, err)
		}
	}
}

func TestCheckIODirections(t *testing.T) {
	prog := mustAnalyze(t, `
shader S
{
	stream in float4 A : TEXCOORD0;
	stream out float4 B : TEXCOORD1;
	stream float4 Pos : SV_Position;

	void VSMain()
	{
		streams.A = streams.B;
		streams.Pos = float4(0, 0, 0, 1);
	}
}`, Vertex)
	errs := CheckIO(prog.Table, prog, Vertex)
	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.(*StreamDirectionError).Message)
	}
	want := []string{"input stream is written", "output stream is read but never written"}
	if strings.Join(msgs, ";") != strings.Join(want, ";") {
		t.Errorf("CheckIO = %q, want %q", msgs, want)
	}
}

func TestCheckIOHullNeedsPatch(t *testing.T) {
	prog := mustAnalyze(t, "void HSMain() {}", Hull)
	errs := CheckIO(prog.Table, prog, Hull)
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "patch constant") {
		t.Errorf("CheckIO = %v", errs)
	}
	if CheckIO(nil, nil, AllStages) != nil {
		t.Error("CheckIO on a nil program reported errors")
	}
}

func TestMissingEntryPoint(t *testing.T) {
	_, errs := analyze(t, "float4 helper() { return 0; }", Vertex|Pixel)
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Error(), "vertex") || !strings.Contains(errs[1].Error(), "pixel") {
		t.Errorf("errors = %v", errs)
	}
}

func TestConstantArraySize(t *testing.T) {
	prog := mustAnalyze(t, `
static const int N = 4;
static float weights[N * 2];
`, 0)
	g := prog.Globals[1]
	arr, ok := g.Type.(symbols.Array)
	if !ok || arr.Len != 8 {
		t.Errorf("weights type = %s, want float[8]", g.Type)
	}
}

func TestUniformsGoToGlobals(t *testing.T) {
	prog := mustAnalyze(t, `
cbuffer PerDraw { float4x4 World; };
float4 Tint;
`, 0)
	if len(prog.CBuffers) != 2 {
		t.Fatalf("got %d cbuffers, want 2", len(prog.CBuffers))
	}
	if prog.CBuffers[1].Name != "Globals" || prog.CBuffers[1].Binding != 1 {
		t.Errorf("implicit cbuffer = %s binding %d", prog.CBuffers[1].Name, prog.CBuffers[1].Binding)
	}
}

func TestMulSignature(t *testing.T) {
	f4 := symbols.Vector{Elem: symbols.FloatType, Size: 4}
	f3 := symbols.Vector{Elem: symbols.FloatType, Size: 3}
	m34 := symbols.Matrix{Elem: symbols.FloatType, Rows: 3, Cols: 4}
	tests := []struct {
		x, y symbols.Type
		want symbols.Type
	}{
		{f3, m34, f4},
		{m34, f4, f3},
		{m34, symbols.Matrix{Elem: symbols.FloatType, Rows: 4, Cols: 4}, m34},
		{f4, f4, symbols.FloatType},
		{symbols.FloatType, f3, f3},
		{f3, symbols.IntType, f3},
	}
	for _, tt := range tests {
		_, got, err := mulSignature(tt.x, tt.y)
		if err != "" {
			t.Errorf("mul(%s, %s): %s", tt.x, tt.y, err)
			continue
		}
		if !symbols.Equal(got, tt.want) {
			t.Errorf("mul(%s, %s) = %s, want %s", tt.x, tt.y, got, tt.want)
		}
	}
	if _, _, err := mulSignature(f4, m34); err == "" {
		t.Error("mul(float4, float3x4) accepted")
	}
}

func TestLookupSystemValue(t *testing.T) {
	tests := []struct {
		semantic string
		name     string
		index    int
	}{
		{"SV_Target3", "SV_TARGET", 3},
		{"sv_position", "SV_POSITION", 0},
		{"SV_DispatchThreadID", "SV_DISPATCHTHREADID", 0},
		{"TEXCOORD0", "", 0},
		{"SV_Bogus", "", 0},
	}
	for _, tt := range tests {
		sv, index, ok := LookupSystemValue(tt.semantic)
		if ok != (tt.name != "") {
			t.Errorf("LookupSystemValue(%q) ok = %v", tt.semantic, ok)
			continue
		}
		if ok && (sv.Name != tt.name || index != tt.index) {
			t.Errorf("LookupSystemValue(%q) = %s, %d", tt.semantic, sv.Name, index)
		}
	}
}

func TestStages(t *testing.T) {
	s, ok := ParseStage("fragment")
	if !ok || s != Pixel {
		t.Errorf("ParseStage(fragment) = %v, %v", s, ok)
	}
	if _, ok := ParseStage("mesh"); ok {
		t.Error("ParseStage(mesh) succeeded")
	}
	both := Vertex | Pixel
	if both.String() != "vertex|pixel" || both.Count() != 2 {
		t.Errorf("String = %s, Count = %d", both, both.Count())
	}
	if Compute.EntryName() != "CSMain" || both.EntryName() != "" {
		t.Errorf("EntryName = %q, %q", Compute.EntryName(), both.EntryName())
	}
	var got []Stage
	for st := range (Compute | Vertex).All() {
		got = append(got, st)
	}
	if len(got) != 2 || got[0] != Vertex || got[1] != Compute {
		t.Errorf("All = %v", got)
	}
	if !(Miss | AnyHit).IsRayTracing() || (Miss | Pixel).IsRayTracing() {
		t.Error("IsRayTracing")
	}
}
