package parser

import (
	"github.com/gogpu/sdsl/ast"
	g "github.com/gogpu/sdsl/grammar"
	"github.com/gogpu/sdsl/symbols"
	"github.com/gogpu/sdsl/token"
)

// typeGrammar parses type references: a name with an optional template
// argument list. The closing '>' of the list is always a single token, so
// vector<float, 3>> never swallows a following '>'.
func (r *rules) typeGrammar() {
	head := kindIs(token.Ident, token.KwVector, token.KwMatrix)
	param := g.Map(kindIs(token.Ident, token.IntLit), func(t token.Token) string { return t.Text })
	params := g.Between(tok(token.Less), g.SepBy1(param, tok(token.Comma)), tok(token.Greater))

	r.typeRef = g.Label(g.Map(g.WithSpan(g.Seq2(head, g.Optional(params))),
		func(v g.Spanned[g.Pair[token.Token, g.Option[[]string]]]) *ast.TypeRef {
			return &ast.TypeRef{Pos: ast.At(v.Span), Name: v.Value.First.Text, Params: v.Value.Second.Value}
		}), "type")
}

// builtinType reports whether t names a numeric type without consulting
// any declaration.
func builtinType(t *ast.TypeRef) bool {
	if len(t.Params) > 0 {
		_, ok := symbols.ParseGeneric(t.Name, t.Params)
		return ok
	}
	_, ok := symbols.ParseNumeric(t.Name)
	return ok
}

func (r *rules) numericType() g.Parser[*ast.TypeRef] {
	return g.Filter(r.typeRef, "numeric type", builtinType)
}
