package parser

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/token"
)

func TestExprPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"a + b * c", "(a + (b * c))"},
		{"a * b + c", "((a * b) + c)"},
		{"a - b - c", "((a - b) - c)"},
		{"a = b = c", "(a = (b = c))"},
		{"a += b * 2", "(a += (b * 2))"},
		{"a << 1 + 2", "(a << (1 + 2))"},
		{"a >> 1", "(a >> 1)"},
		{"a > b >> 1", "(a > (b >> 1))"},
		{"a < b == c > d", "((a < b) == (c > d))"},
		{"a & b ^ c | d", "(((a & b) ^ c) | d)"},
		{"a || b && c", "(a || (b && c))"},
		{"c ? x : y ? z : w", "(c ? x : (y ? z : w))"},
		{"-a * !b", "((-a) * (!b))"},
		{"i++ + --j", "((i++) + (--j))"},
		{"(float)x * 2", "(((float)x) * 2)"},
		{"(x) - y", "(x - y)"},
		{"float4(1, 0, 0, 1)", "float4(1, 0, 0, 1)"},
		{"vector<float, 3>(a, b, c)", "vector<float, 3>(a, b, c)"},
		{"streams.Position.xyz", "streams.Position.xyz"},
		{"base.Compute(a[i + 1], 2.5f)", "base.Compute(a[(i + 1)], 2.5f)"},
		{"m[0][1]", "m[0][1]"},
		{"a = b ? c : d", "(a = (b ? c : d))"},
		{"x >>= 2", "(x >>= 2)"},
		{"true && false", "(true && false)"},
	}
	for _, tt := range tests {
		e, err := ParseExpr(tt.src)
		if err != nil {
			t.Errorf("ParseExpr(%q): %v", tt.src, err)
			continue
		}
		if got := ast.ExprString(e); got != tt.want {
			t.Errorf("ParseExpr(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestShiftNeedsJoinedTokens(t *testing.T) {
	if _, err := ParseExpr("a > > b"); err == nil {
		t.Error("'a > > b' parsed")
	}
	e, err := ParseExpr("a>>b")
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := e.(*ast.BinaryExpr); !ok || b.Op != ast.OpShr {
		t.Errorf("a>>b = %s", ast.ExprString(e))
	}
}

func TestLiteralTextPreserved(t *testing.T) {
	for _, src := range []string{"1", "0x10", "42u", "1.0", "1.5e-3", ".5f", "2.0h"} {
		e, err := ParseExpr(src)
		if err != nil {
			t.Errorf("%q: %v", src, err)
			continue
		}
		var text string
		switch l := e.(type) {
		case *ast.IntLit:
			text = l.Text
		case *ast.FloatLit:
			text = l.Text
		default:
			t.Errorf("%q parsed as %T", src, e)
			continue
		}
		if text != src {
			t.Errorf("literal text = %q, want %q", text, src)
		}
	}
}

const sample = `#pragma pack_matrix(column_major)
struct VSInput
{
	float3 Position : POSITION;
	float2 UV : TEXCOORD0;
};

cbuffer PerDraw
{
	float4x4 World;
	float4 Tint, Scale;
};

shader Textured : ShaderBase, Transformation
{
	stream float4 ShadingPosition : SV_Position;
	stage stream float2 TexCoord : TEXCOORD0;
	static const int Count = 4;

	override stage void VSMain()
	{
		base.VSMain();
		streams.ShadingPosition = mul(float4(streams.TexCoord, 0, 1), World);
	}

	abstract float4 Shade(float2 uv);

	[numthreads(8, 8, 1)]
	void CSMain(uint3 id : SV_DispatchThreadID)
	{
		float total = 0, weights[4];
		[unroll]
		for (int i = 0; i < Count; i++)
		{
			if (i == 2)
				continue;
			else if (i > 3)
				break;
			total += i * 0.5f;
		}
		int j = 0;
		while (j < 4)
			j++;
		do
		{
			j--;
		}
		while (j > 0);
		switch (j)
		{
		case 0:
		case 1:
			total = 1;
			break;
		default:
			total = (total > 1) ? total : -total;
		}
		uint mask = (id.x >> 2) & 0xFF;
		return;
	}
}

[shader("pixel")]
float4 main(in float4 pos : SV_Position) : SV_Target
{
	if (pos.x < 0)
		discard;
	return float4(1, 0, 0, 1);
}
`

func TestParseModule(t *testing.T) {
	m, err := ParseString(sample)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Directives) != 1 || m.Directives[0].Text != "#pragma pack_matrix(column_major)" {
		t.Errorf("directives = %+v", m.Directives)
	}
	if len(m.Decls) != 4 {
		t.Fatalf("got %d top-level decls, want 4", len(m.Decls))
	}

	st, ok := m.Decls[0].(*ast.StructDecl)
	if !ok || st.Name != "VSInput" || len(st.Fields) != 2 || st.Fields[1].Semantic != "TEXCOORD0" {
		t.Errorf("struct = %+v", m.Decls[0])
	}
	cb, ok := m.Decls[1].(*ast.CBufferDecl)
	if !ok || len(cb.Members) != 3 || cb.Members[2].Name != "Scale" || cb.Kind != token.KwCBuffer {
		t.Errorf("cbuffer = %+v", m.Decls[1])
	}

	sh, ok := m.Decls[2].(*ast.ShaderDecl)
	if !ok {
		t.Fatalf("decl 2 = %T", m.Decls[2])
	}
	if sh.Name != "Textured" || !slices.Equal(sh.Bases, []string{"ShaderBase", "Transformation"}) {
		t.Errorf("shader header = %s : %v", sh.Name, sh.Bases)
	}
	if len(sh.Decls) != 6 {
		t.Fatalf("shader has %d decls, want 6", len(sh.Decls))
	}
	tex := sh.Decls[1].(*ast.VarDecl)
	if !tex.Qualifiers.Has(ast.QualStage|ast.QualStream) || tex.Semantic != "TEXCOORD0" {
		t.Errorf("TexCoord = %+v", tex)
	}
	vs := sh.Decls[3].(*ast.FuncDecl)
	if !vs.Qualifiers.Has(ast.QualOverride|ast.QualStage) || vs.Body == nil {
		t.Errorf("VSMain = %+v", vs)
	}
	shade := sh.Decls[4].(*ast.FuncDecl)
	if shade.Body != nil || !shade.Qualifiers.Has(ast.QualAbstract) {
		t.Errorf("Shade = %+v", shade)
	}
	cs := sh.Decls[5].(*ast.FuncDecl)
	if a, ok := cs.Attr("numthreads"); !ok || len(a.Args) != 3 {
		t.Errorf("numthreads = %+v", a)
	}
	forStmt := cs.Body.Stmts[1].(*ast.ForStmt)
	if len(forStmt.Attrs) != 1 || forStmt.Attrs[0].Name != "unroll" || forStmt.Attrs[0].Args != nil {
		t.Errorf("for attrs = %+v", forStmt.Attrs)
	}
	sw := cs.Body.Stmts[5].(*ast.SwitchStmt)
	if len(sw.Cases) != 2 || len(sw.Cases[0].Values) != 2 || sw.Cases[1].Values != nil {
		t.Errorf("switch cases = %+v", sw.Cases)
	}

	main := m.Decls[3].(*ast.FuncDecl)
	if a, ok := main.Attr("shader"); !ok || ast.ExprString(a.Args[0]) != `"pixel"` {
		t.Errorf("shader attribute = %+v", a)
	}
	if main.Semantic != "SV_Target" || main.Params[0].Qualifiers != ast.QualIn {
		t.Errorf("main = %+v", main)
	}
}

func TestRoundTrip(t *testing.T) {
	m1, err := ParseString(sample)
	if err != nil {
		t.Fatal(err)
	}
	printed := ast.Print(m1)
	m2, err := ParseString(printed)
	if err != nil {
		t.Fatalf("reparse: %v\n%s", err, printed)
	}
	if again := ast.Print(m2); again != printed {
		t.Errorf("print(parse(print(m))) differs:\n%s\n---\n%s", printed, again)
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		src      string
		line     int
		col      int
		expected string
	}{
		{"float4 main() { return 1 }", 1, 26, "';'"},
		{"float x = ;", 1, 11, "expression"},
		{"struct S { float a; ", 1, 21, "'}'"},
		{"shader S : { }", 1, 12, "identifier"},
	}
	for _, tt := range tests {
		_, err := ParseString(tt.src)
		var perr *Error
		if !errors.As(err, &perr) {
			t.Errorf("%q: err = %v, want *Error", tt.src, err)
			continue
		}
		if perr.Span.Start.Line != tt.line || perr.Span.Start.Column != tt.col {
			t.Errorf("%q: error at %s, want %d:%d (%v)", tt.src, perr.Span.Start, tt.line, tt.col, perr)
		}
		if !slices.Contains(perr.Expected, tt.expected) {
			t.Errorf("%q: expected set %v does not contain %s", tt.src, perr.Expected, tt.expected)
		}
	}
}

func TestSpans(t *testing.T) {
	m, err := ParseString("float4 main() : SV_Target\n{\n    return x;\n}")
	if err != nil {
		t.Fatal(err)
	}
	fn := m.Decls[0].(*ast.FuncDecl)
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	x := ret.Value.(*ast.Ident)
	if p := x.Span().Start; p.Line != 3 || p.Column != 12 {
		t.Errorf("x at %s, want 3:12", p)
	}
	if fn.Span().Start.Column != 1 || fn.Span().End() != len("float4 main() : SV_Target\n{\n    return x;\n}") {
		t.Errorf("function span = %+v", fn.Span())
	}
}

func BenchmarkParse(b *testing.B) {
	f, err := token.Tokenize(sample)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(f); err != nil {
			b.Fatal(err)
		}
	}
}
