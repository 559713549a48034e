package ast

import (
	"strings"
	"testing"

	"github.com/gogpu/sdsl/symbols"
	"github.com/gogpu/sdsl/token"
)

func ident(name string) *Ident { return &Ident{Name: name} }

func TestExprString(t *testing.T) {
	tests := []struct {
		e    Expr
		want string
	}{
		{&BinaryExpr{Op: OpAdd, X: ident("a"), Y: &BinaryExpr{Op: OpMul, X: ident("b"), Y: &IntLit{Text: "2"}}}, "(a + (b * 2))"},
		{&UnaryExpr{Op: token.Minus, X: ident("x")}, "(-x)"},
		{&IncDecExpr{Op: token.PlusPlus, X: ident("i")}, "(i++)"},
		{&IncDecExpr{Op: token.MinusMinus, Prefix: true, X: ident("i")}, "(--i)"},
		{&AssignExpr{LHS: ident("a"), RHS: ident("b")}, "(a = b)"},
		{&AssignExpr{Op: OpShl, LHS: ident("a"), RHS: ident("b")}, "(a <<= b)"},
		{&ConditionalExpr{Cond: ident("c"), Then: &FloatLit{Text: "1.0"}, Else: &BoolLit{}}, "(c ? 1.0 : false)"},
		{&MemberExpr{X: ident("streams"), Name: "Color"}, "streams.Color"},
		{&IndexExpr{X: ident("a"), Index: &IntLit{Text: "0"}}, "a[0]"},
		{&CallExpr{Fn: ident("dot"), Args: []Expr{ident("a"), ident("b")}}, "dot(a, b)"},
		{&ConstructExpr{TypeRef: &TypeRef{Name: "vector", Params: []string{"float", "2"}}, Args: []Expr{ident("x"), ident("y")}}, "vector<float, 2>(x, y)"},
		{&CastExpr{To: &TypeRef{Name: "int"}, X: ident("f")}, "((int)f)"},
	}
	for _, tt := range tests {
		if got := ExprString(tt.e); got != tt.want {
			t.Errorf("ExprString = %s, want %s", got, tt.want)
		}
	}
}

func TestTypeDefaultsToUndefined(t *testing.T) {
	e := ident("x")
	if !symbols.IsUndefined(e.Type()) {
		t.Errorf("fresh expression type = %v", e.Type())
	}
	e.SetType(symbols.FloatType)
	if !symbols.Equal(e.Type(), symbols.FloatType) {
		t.Errorf("type = %v", e.Type())
	}
}

func TestInspect(t *testing.T) {
	fn := &FuncDecl{
		Result: &TypeRef{Name: "float4"},
		Name:   "main",
		Body: &Block{Stmts: []Stmt{
			&IfStmt{Cond: ident("c"), Then: &ReturnStmt{Value: ident("a")}, Else: &ReturnStmt{Value: ident("b")}},
		}},
	}
	var names []string
	Inspect(&Module{Decls: []Decl{fn}}, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			names = append(names, id.Name)
		}
		return true
	})
	if got := strings.Join(names, ","); got != "c,a,b" {
		t.Errorf("visited %s", got)
	}

	count := 0
	Inspect(fn, func(n Node) bool {
		count++
		_, isIf := n.(*IfStmt)
		return !isIf
	})
	// FuncDecl, TypeRef, Block, IfStmt
	if count != 4 {
		t.Errorf("visited %d nodes with pruning, want 4", count)
	}
}

func TestPrintDecls(t *testing.T) {
	m := &Module{Decls: []Decl{
		&ShaderDecl{Name: "S", Bases: []string{"A"}, Decls: []Decl{
			&VarDecl{Qualifiers: QualStage | QualStream, Type: &TypeRef{Name: "float4"}, Name: "Color", Semantic: "COLOR"},
			&FuncDecl{Qualifiers: QualAbstract, Result: &TypeRef{Name: "void"}, Name: "F"},
		}},
	}}
	want := "shader S : A\n{\n\tstage stream float4 Color : COLOR;\n\tabstract void F();\n}\n"
	if got := Print(m); got != want {
		t.Errorf("Print =\n%q\nwant\n%q", got, want)
	}
}
