package preprocess

import (
	"errors"
	"strings"
	"testing"
)

func run(t *testing.T, opts Options, src string) *Result {
	t.Helper()
	res, err := New(opts).Run(src)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"line comment", "a // c\nb", "a  \nb"},
		{"block comment", "a/* x */b", "a b"},
		{"multiline block", "a/* x\ny */b", "a b"},
		{"comment in string", `s = "// not";`, `s = "// not";`},
		{"comment in char", `c = '/'; // x`, `c = '/';  `},
		{"no comments", "float4 x;", "float4 x;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, Options{Phases: []Phase{StripComments{}}}, tt.src)
			if got := res.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripCommentsIdempotent(t *testing.T) {
	sources := []string{
		"float4 main() : SV_Target { return 1; } // trailing",
		"/* a */ /* b */ x // y\n/**/z",
		"a / b /* c */ * d",
		"s = \"/*\"; // \"*/\"",
		"//**/ x",
	}
	for _, src := range sources {
		once := run(t, Options{Phases: []Phase{StripComments{}}}, src).Text()
		twice := run(t, Options{Phases: []Phase{StripComments{}, StripComments{}}}, src).Text()
		if once != twice {
			t.Errorf("not idempotent for %q: once %q, twice %q", src, once, twice)
		}
	}
}

func TestUnterminatedBlockComment(t *testing.T) {
	_, err := New(Options{}).Run("float x;\n/* never closed")
	if err == nil {
		t.Fatal("expected error for unterminated block comment")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Pos.Line != 2 || perr.Pos.Column != 1 {
		t.Errorf("error position = %v, want 2:1", perr.Pos)
	}
}

func TestConditionals(t *testing.T) {
	src := `#define LIGHTS 2
#if LIGHTS > 1
multi
#elif LIGHTS == 1
single
#else
none
#endif
#ifdef MISSING
missing
#endif
#ifndef MISSING
present
#endif
`
	res := run(t, Options{}, src)
	got := strings.Fields(res.Text())
	want := []string{"multi", "present"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("kept %v, want %v", got, want)
	}
	// line structure is preserved
	if n := strings.Count(res.Text(), "\n"); n != strings.Count(src, "\n") {
		t.Errorf("line count = %d, want %d", n, strings.Count(src, "\n"))
	}
}

func TestNestedConditionals(t *testing.T) {
	src := "#if 0\n#if 1\na\n#endif\n#else\nb\n#endif\n"
	if got := strings.TrimSpace(run(t, Options{}, src).Text()); got != "b" {
		t.Errorf("got %q, want %q", got, "b")
	}
}

func TestDirectiveErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"endif without if", "#endif\n", "#endif without #if"},
		{"else without if", "#else\n", "#else without #if"},
		{"unterminated", "#if 1\nx\n", "unterminated conditional"},
		{"duplicate else", "#if 1\n#else\n#else\n#endif\n", "duplicate #else"},
		{"error directive", "#error stop here\n", "#error stop here"},
		{"unknown", "#frobnicate\n", "unknown directive"},
		{"bad define", "#define\n", "missing macro name"},
		{"bad expression", "#if 1 +\n#endif\n", "invalid #if expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{}).Run(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestStrictUnboundMacro(t *testing.T) {
	src := "#if UNKNOWN\nx\n#endif\n"

	res := run(t, Options{}, src)
	if strings.TrimSpace(res.Text()) != "" {
		t.Errorf("lenient mode should treat UNKNOWN as 0, got %q", res.Text())
	}

	_, err := New(Options{Strict: true}).Run(src)
	if !errors.Is(err, ErrUnbound) {
		t.Errorf("strict mode error = %v, want ErrUnbound", err)
	}
}

func TestMacroExpansion(t *testing.T) {
	tests := []struct {
		name   string
		macros map[string]Macro
		src    string
		want   string
	}{
		{
			name:   "object-like",
			macros: map[string]Macro{"N": Define("4")},
			src:    "float a[N];",
			want:   "float a[4];",
		},
		{
			name:   "longest match",
			macros: map[string]Macro{"Color": Define("A"), "ColorBias": Define("B")},
			src:    "Color + ColorBias + ColorB",
			want:   "A + B + ColorB",
		},
		{
			name:   "rescan",
			macros: map[string]Macro{"X": Define("Y + 1"), "Y": Define("2")},
			src:    "X",
			want:   "2 + 1",
		},
		{
			name:   "self reference",
			macros: map[string]Macro{"X": Define("X + 1")},
			src:    "X",
			want:   "X + 1",
		},
		{
			name:   "string untouched",
			macros: map[string]Macro{"N": Define("4")},
			src:    `[shader("N")] N`,
			want:   `[shader("N")] 4`,
		},
		{
			name: "replacement logic",
			macros: map[string]Macro{"TWICE": {Func: func(args []string) (string, error) {
				return "(" + args[0] + ")*2", nil
			}}},
			src:  "TWICE(a+b)",
			want: "(a+b)*2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, Options{Macros: tt.macros}, tt.src)
			if got := res.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFunctionLikeMacro(t *testing.T) {
	src := "#define MAD(a, b, c) ((a) * (b) + (c))\nfloat x = MAD(p, q, f(1, 2));\nMAD;\n"
	res := run(t, Options{}, src)
	if !strings.Contains(res.Text(), "float x = ((p) * (q) + (f(1, 2)));") {
		t.Errorf("unexpected expansion: %q", res.Text())
	}
	if !strings.Contains(res.Text(), "MAD;") {
		t.Errorf("function-like macro without arguments should be left alone: %q", res.Text())
	}

	_, err := New(Options{}).Run("#define F(a) a\nF(1, 2)\n")
	if err == nil || !strings.Contains(err.Error(), "expects 1 arguments") {
		t.Errorf("expected arity error, got %v", err)
	}
}

func TestInputMacrosNotModified(t *testing.T) {
	macros := map[string]Macro{"A": Define("1")}
	run(t, Options{Macros: macros}, "#define B 2\n#undef A\n")
	if _, ok := macros["A"]; !ok {
		t.Error("#undef leaked into caller's macro map")
	}
	if _, ok := macros["B"]; ok {
		t.Error("#define leaked into caller's macro map")
	}
}

func TestBackMapping(t *testing.T) {
	src := "// header\n#define VALUE 1.0\nfloat x = VALUE; /* c */ float y;\n"
	res := run(t, Options{}, src)
	text := res.Text()

	// "float y" in the final text maps back to its original offset.
	finalOff := strings.Index(text, "float y")
	origOff, err := res.Arena.Translate(res.Final, finalOff)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if want := strings.Index(src, "float y"); origOff != want {
		t.Errorf("Translate(float y) = %d, want %d", origOff, want)
	}

	// The expansion maps to the macro invocation.
	pos, err := res.Arena.Position(res.Final, strings.Index(text, "1.0"))
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos.Line != 3 || pos.Column != 11 {
		t.Errorf("expansion position = %v, want 3:11", pos)
	}

	span, err := res.Arena.Span(res.Final, strings.Index(text, "1.0"), 3)
	if err != nil {
		t.Fatalf("Span: %v", err)
	}
	if span.Len != len("VALUE") {
		t.Errorf("expansion span length = %d, want %d", span.Len, len("VALUE"))
	}
}

func TestArenaFramesImmutable(t *testing.T) {
	src := "#define A 1\nA /* c */\n"
	res := run(t, Options{}, src)
	if res.Arena.Len() != 4 {
		t.Fatalf("frames = %d, want 4 (source + 3 phases)", res.Arena.Len())
	}
	if got := res.Arena.Text(res.Arena.Root()); got != src {
		t.Errorf("root frame changed: %q", got)
	}
	for id := FrameID(1); int(id) < res.Arena.Len(); id++ {
		f, err := res.Arena.Frame(id)
		if err != nil {
			t.Fatal(err)
		}
		if f.Parent != id-1 {
			t.Errorf("frame %d parent = %d, want %d", id, f.Parent, id-1)
		}
	}
}

func TestArenaRelease(t *testing.T) {
	res := run(t, Options{}, "x")
	res.Arena.Release()
	if _, err := res.Arena.Translate(res.Final, 0); !errors.Is(err, ErrReleased) {
		t.Errorf("Translate after Release = %v, want ErrReleased", err)
	}
}

func TestPragmaPassThrough(t *testing.T) {
	res := run(t, Options{}, "#pragma pack_matrix(row_major)\nx\n")
	if !strings.HasPrefix(res.Text(), "#pragma pack_matrix(row_major)") {
		t.Errorf("pragma not passed through: %q", res.Text())
	}
}

func TestExprEvaluator(t *testing.T) {
	env := &Env{Lookup: func(name string) (Macro, bool) {
		m, ok := map[string]Macro{"A": Define("3"), "B": Define("A * 2"), "E": Define("")}[name]
		return m, ok
	}}
	tests := []struct {
		expr string
		want int64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"B", 6},
		{"defined(A) && !defined(Z)", 1},
		{"defined A", 1},
		{"A > 2 ? 10 : 20", 10},
		{"0x10 | 1", 17},
		{"1 << 4 >> 2", 4},
		{"-A + ~0", -4},
		{"E", 0},
		{"Z == 0", 1},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ExprEvaluator{}.Eval(tt.expr, env)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %d, want %d", tt.expr, got, tt.want)
			}
		})
	}
}
