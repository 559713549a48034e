package sdsl

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/sdsl/mixin"
	"github.com/gogpu/sdsl/preprocess"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/spirv"
	"github.com/gogpu/sdsl/symbols"
)

const redPixel = "float4 main() : SV_Target { return float4(1,0,0,1); }"

func countOps(t *testing.T, buf spirv.Buffer, op spirv.OpCode) int {
	t.Helper()
	n := 0
	for inst, err := range buf.Instructions() {
		if err != nil {
			t.Fatalf("malformed module: %v", err)
		}
		if inst.Opcode == op {
			n++
		}
	}
	return n
}

func mustCompile(t *testing.T, src string, opts Options) *Result {
	t.Helper()
	res := Compile(src, opts)
	if err := res.Err(); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return res
}

// TestCompilePixelShader compiles the minimal pixel shader end to end.
func TestCompilePixelShader(t *testing.T) {
	res := mustCompile(t, redPixel, Options{Stages: Pixel})

	if len(res.Buffer) < 5 {
		t.Fatal("SPIR-V output too short (should have at least a 5-word header)")
	}
	if h := res.Buffer.Header(); h.Magic != spirv.MagicNumber {
		t.Errorf("Invalid SPIR-V magic: got 0x%08x, want 0x%08x", h.Magic, spirv.MagicNumber)
	}
	if n := countOps(t, res.Buffer, spirv.OpEntryPoint); n != 1 {
		t.Fatalf("got %d entry points, want 1", n)
	}
	for inst := range res.Buffer.Instructions() {
		if inst.Opcode == spirv.OpEntryPoint && spirv.ExecutionModel(inst.Words[0]) != spirv.ExecutionModelFragment {
			t.Errorf("execution model = %s, want Fragment", spirv.ExecutionModel(inst.Words[0]))
		}
	}
	if n := countOps(t, res.Buffer, spirv.OpConstantComposite); n != 1 {
		t.Errorf("got %d composite constants, want 1", n)
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", res.Diagnostics)
	}
	if len(res.IR) != 1 || res.IR[0].Name != "main" {
		t.Errorf("IR = %v, want one snippet for main", res.IR)
	}
}

func TestCompileUnboundSymbol(t *testing.T) {
	const src = "float4 main() : SV_Target { return x; }"
	res := Compile(src, Options{Stages: Pixel})

	if res.Buffer != nil {
		t.Error("failed compilation produced a buffer")
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(res.Diagnostics), res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if d.Kind != UnboundSymbolError || d.Severity != SeverityError {
		t.Errorf("diagnostic = %s %s, want error unbound symbol", d.Severity, d.Kind)
	}
	if col := strings.IndexByte(src, 'x') + 1; d.Pos.Line != 1 || d.Pos.Column != col {
		t.Errorf("position = %s, want 1:%d", d.Pos, col)
	}
	var unbound *symbols.UnboundSymbolError
	if !errors.As(res.Err(), &unbound) || unbound.Name != "x" {
		t.Errorf("Err() does not wrap the unbound symbol error: %v", res.Err())
	}
}

func TestDiagnosticsMapThroughMacros(t *testing.T) {
	src := "#define LONGNAME 1\n" +
		"float4 main() : SV_Target { return float4(LONGNAME, LONGNAME, 0, zz); }\n"
	res := Compile(src, Options{Stages: Pixel})

	var found bool
	for _, d := range res.Diagnostics {
		if d.Kind != UnboundSymbolError {
			continue
		}
		found = true
		if want := strings.Index(src, "zz"); d.Pos.Offset != want {
			t.Errorf("offset = %d, want %d", d.Pos.Offset, want)
		}
		line := strings.Split(src, "\n")[1]
		if col := strings.Index(line, "zz") + 1; d.Pos.Line != 2 || d.Pos.Column != col {
			t.Errorf("position = %s, want 2:%d", d.Pos, col)
		}
		if d.Span.Len != 2 {
			t.Errorf("span length = %d, want 2", d.Span.Len)
		}
		if ctx := d.FormatWithContext(src); !strings.Contains(ctx, "^^") {
			t.Errorf("context rendering has no caret:\n%s", ctx)
		}
	}
	if !found {
		t.Fatalf("no unbound symbol diagnostic in %v", res.Diagnostics)
	}
}

func TestCompileFailureKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ErrorKind
	}{
		{"directive", "#endif\n" + redPixel, PreprocessingError},
		{"comment", redPixel + "/* open", PreprocessingError},
		{"grammar", "float4 main( { return 1; }", ParseError},
		{"duplicate", "float f() { return 1; }\nfloat f() { return 2; }\n" + redPixel, DuplicateSymbolError},
		{"type", "float4 main() : SV_Target { float3 v = float3(1, 2, 3); float4x4 m; float4 r = v + m; return r; }", TypeMismatchError},
		{"no entry point", "float4 other() : SV_Target { return 1; }", SemanticError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compile(tt.src, Options{Stages: Pixel})
			if res.Err() == nil {
				t.Fatal("compilation succeeded")
			}
			if res.Buffer != nil {
				t.Error("failed compilation produced a buffer")
			}
			var kinds []string
			for _, d := range res.Diagnostics {
				if d.Kind == tt.want {
					return
				}
				kinds = append(kinds, d.Kind.String())
			}
			t.Errorf("no %s diagnostic, got %v", tt.want, kinds)
		})
	}
}

func TestStreamErrorsReportedWithSemanticErrors(t *testing.T) {
	const src = `
shader Bad
{
	stream float4 Position : POSITION;

	[numthreads(8, 1, 1)]
	void CSMain(uint3 id : SV_DispatchThreadID)
	{
		float4 p = streams.Position;
		float q = missing;
	}
}`
	res := Compile(src, Options{Stages: Compute})
	kinds := make(map[ErrorKind]int)
	for _, d := range res.Diagnostics {
		kinds[d.Kind]++
	}
	if kinds[UnboundSymbolError] != 1 || kinds[StreamDirectionError] != 1 {
		t.Errorf("diagnostics = %v, want one unbound symbol and one stream direction error", res.Diagnostics)
	}
	var sd *sema.StreamDirectionError
	if !errors.As(res.Err(), &sd) || sd.Stream != "Position" {
		t.Errorf("Err() does not wrap the stream direction error: %v", res.Err())
	}
}

func TestEarlyPhasesAbort(t *testing.T) {
	res := Compile("#endif\n"+redPixel, Options{Stages: Pixel})
	if res.AST != nil || res.Program != nil {
		t.Error("preprocessing failure still parsed the source")
	}
	res = Compile("float4 main( {", Options{Stages: Pixel})
	if res.AST != nil || res.Program != nil {
		t.Error("parse failure still analyzed the source")
	}
	if len(res.Diagnostics) != 1 {
		t.Errorf("parse failure gave %d diagnostics, want 1", len(res.Diagnostics))
	}
}

func TestSemanticErrorsAccumulate(t *testing.T) {
	res := Compile("float4 main() : SV_Target { float a = b; float c = d; return e; }", Options{Stages: Pixel})
	n := 0
	for _, d := range res.Diagnostics {
		if d.Kind == UnboundSymbolError {
			n++
		}
	}
	if n != 3 {
		t.Errorf("got %d unbound symbol diagnostics, want 3: %v", n, res.Diagnostics)
	}
}

func TestEmissionError(t *testing.T) {
	res := Compile(redPixel, Options{Stages: Pixel, MaxID: 4})
	if res.Buffer != nil {
		t.Error("exhausted module produced a buffer")
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != EmissionError {
		t.Fatalf("diagnostics = %v, want one emission error", res.Diagnostics)
	}
	var emission *spirv.EmissionError
	if !errors.As(res.Err(), &emission) {
		t.Errorf("Err() = %v, want an EmissionError", res.Err())
	}
}

func TestMacros(t *testing.T) {
	const src = `
float4 main() : SV_Target
{
#if RED
	return float4(1, 0, 0, 1);
#else
	return float4(0, 0, 1, 1);
#endif
}`
	red := mustCompile(t, src, Options{Stages: Pixel, Macros: map[string]preprocess.Macro{"RED": preprocess.Define("1")}})
	blue := mustCompile(t, src, Options{Stages: Pixel})
	if red.Key == blue.Key {
		t.Error("macro definitions do not change the cache key")
	}
	if fmt.Sprint(red.Buffer) == fmt.Sprint(blue.Buffer) {
		t.Error("macro did not change the compiled module")
	}
}

func TestStrictUnboundMacro(t *testing.T) {
	res := Compile("#if UNDEFINED\n#endif\n"+redPixel, Options{Stages: Pixel, Strict: true})
	if res.Err() == nil {
		t.Fatal("strict compilation accepted an unbound macro")
	}
	if res.Diagnostics[0].Kind != PreprocessingError {
		t.Errorf("kind = %s, want preprocessing error", res.Diagnostics[0].Kind)
	}
	mustCompile(t, "#if UNDEFINED\n#endif\n"+redPixel, Options{Stages: Pixel})
}

func TestMixinCache(t *testing.T) {
	cache := mixin.NewStorage()
	opts := Options{Name: "Red", Stages: Pixel, Mixins: cache}

	first := mustCompile(t, redPixel, opts)
	if first.Cached {
		t.Error("first compilation reported a cache hit")
	}
	if !strings.HasPrefix(first.Key, "Red@") {
		t.Errorf("key = %q", first.Key)
	}
	second := mustCompile(t, redPixel, opts)
	if !second.Cached {
		t.Error("second compilation missed the cache")
	}
	if fmt.Sprint(first.Buffer) != fmt.Sprint(second.Buffer) {
		t.Error("cached buffer differs from the compiled one")
	}
	if second.AST != nil {
		t.Error("cache hit still parsed the source")
	}

	opts.Force = true
	forced := mustCompile(t, redPixel, opts)
	if forced.Cached {
		t.Error("forced compilation used the cache")
	}
	if cache.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", cache.Len())
	}
}

func TestCachedBufferIsACopy(t *testing.T) {
	cache := mixin.NewStorage()
	opts := Options{Stages: Pixel, Mixins: cache}
	want := slices.Clone(mustCompile(t, redPixel, opts).Buffer)

	hit := mustCompile(t, redPixel, opts)
	if !hit.Cached {
		t.Fatal("second compilation missed the cache")
	}
	clear(hit.Buffer)

	again := mustCompile(t, redPixel, opts)
	if !slices.Equal(again.Buffer, want) {
		t.Error("changing a cached result changed the cache")
	}
}

func TestFailedCompilationLeavesCacheUntouched(t *testing.T) {
	cache := mixin.NewStorage()
	for _, src := range []string{
		"float4 main() : SV_Target { return x; }",
		"float4 main( {",
		"#endif",
	} {
		res := Compile(src, Options{Stages: Pixel, Mixins: cache})
		if res.Err() == nil {
			t.Fatalf("%q compiled", src)
		}
	}
	res := Compile(redPixel, Options{Stages: Pixel, Mixins: cache, MaxID: 4})
	if res.Err() == nil {
		t.Fatal("exhausted module compiled")
	}
	if cache.Len() != 0 {
		t.Errorf("cache holds %d entries after failures: %v", cache.Len(), cache.Names())
	}
}

func TestResolverSuppliesBases(t *testing.T) {
	bases := mixin.MapResolver{
		"Base": `
shader Base
{
	float Value() { return 1; }
	abstract float Shade();
}`,
	}
	const src = `
shader Derived : Base
{
	override float Shade() { return Value(); }
	float4 PSMain() : SV_Target { return float4(Shade(), 0, 0, 1); }
}`
	res := mustCompile(t, src, Options{Stages: Pixel, Resolver: bases})
	if n := len(res.Program.Shaders); n != 2 {
		t.Errorf("composition has %d shaders, want 2", n)
	}

	res = Compile(src, Options{Stages: Pixel})
	if res.Err() == nil {
		t.Error("missing base mixin was accepted")
	}
}

func TestMixinDiagnostics(t *testing.T) {
	const base = "shader Base\n{\n\tfloat Value() { return missing; }\n}\n"
	const src = `#define SCALE 2
shader Derived : Base
{
	float4 PSMain() : SV_Target { return float4(Value() * SCALE, 0, 0, 1); }
}`
	res := Compile(src, Options{Stages: Pixel, Resolver: mixin.MapResolver{"Base": base}})
	if len(res.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(res.Diagnostics), res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if d.Kind != UnboundSymbolError {
		t.Errorf("kind = %s, want unbound symbol", d.Kind)
	}
	if !strings.Contains(d.Message, "mixin Base") {
		t.Errorf("message %q does not name the mixin", d.Message)
	}
	if want := strings.Index(base, "missing"); d.Pos.Offset != want || d.Pos.Line != 3 {
		t.Errorf("position = %s (offset %d), want line 3 offset %d of the mixin", d.Pos, d.Pos.Offset, want)
	}
	var mx *sema.MixinError
	if !errors.As(res.Err(), &mx) || mx.Mixin != "Base" {
		t.Errorf("Err() does not carry the mixin origin: %v", res.Err())
	}
}

func TestDeterministic(t *testing.T) {
	a := mustCompile(t, redPixel, Options{Stages: Pixel})
	b := mustCompile(t, redPixel, Options{Stages: Pixel})
	if fmt.Sprint(a.Buffer) != fmt.Sprint(b.Buffer) {
		t.Error("compiling the same source twice gave different modules")
	}
}

func TestCompileBatch(t *testing.T) {
	cache := mixin.NewStorage()
	units := []Unit{
		{Name: "A", Source: redPixel},
		{Name: "B", Source: "float4 main() : SV_Target { return float4(0, 1, 0, 1); }"},
		{Name: "Bad", Source: "float4 main() : SV_Target { return x; }"},
		{Name: "A", Source: redPixel},
	}
	results, err := CompileBatch(context.Background(), units, Options{Stages: Pixel, Mixins: cache}, 2)
	if err != nil {
		t.Fatalf("CompileBatch: %v", err)
	}
	if len(results) != len(units) {
		t.Fatalf("got %d results, want %d", len(results), len(units))
	}
	for i, want := range []bool{true, true, false, true} {
		if ok := results[i].Err() == nil; ok != want {
			t.Errorf("unit %d success = %v, want %v", i, ok, want)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("cache holds %v, want the two successful units", cache.Names())
	}
}

func TestCompileBatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CompileBatch(ctx, []Unit{{Source: redPixel}}, Options{Stages: Pixel}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if _, err := CompileContext(ctx, redPixel, Options{Stages: Pixel}); !errors.Is(err, context.Canceled) {
		t.Errorf("CompileContext error = %v, want context.Canceled", err)
	}
}

func TestDiagnosticsError(t *testing.T) {
	ds := Diagnostics{
		{Kind: ParseError, Message: "unexpected '{'"},
		{Kind: UnboundSymbolError, Message: "undeclared identifier 'x'"},
	}
	if got := ds[:1].Error(); got != "parse error: unexpected '{'" {
		t.Errorf("single error = %q", got)
	}
	if got := ds.Error(); !strings.HasPrefix(got, "2 errors:") {
		t.Errorf("list error = %q", got)
	}
}

func ExampleCompile() {
	res := Compile(`
float4 main() : SV_Target
{
	return float4(1, 0, 0, 1);
}`, Options{Stages: Pixel})
	if err := res.Err(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("magic 0x%08x, version %s\n", res.Buffer.Header().Magic, res.Buffer.Header().Version)
	// Output: magic 0x07230203, version 1.3
}

func ExampleCompile_diagnostics() {
	res := Compile("float4 main() : SV_Target { return tint; }", Options{Stages: Pixel})
	for _, d := range res.Diagnostics {
		fmt.Println(d.Pos, d.Kind)
	}
	// Output: 1:36 unbound symbol
}
