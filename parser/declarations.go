package parser

import (
	"github.com/gogpu/sdsl/ast"
	g "github.com/gogpu/sdsl/grammar"
	"github.com/gogpu/sdsl/token"
)

func flatten(lists [][]ast.Decl) []ast.Decl {
	var out []ast.Decl
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func one[D ast.Decl](d D) []ast.Decl { return []ast.Decl{d} }

func (r *rules) declarationGrammar() {
	semi := tok(token.Semicolon)
	ident := tok(token.Ident)

	param := g.Map(g.WithSpan(g.Seq3(qualifiers(), r.typeRef, g.Seq3(ident, r.arrayDims(), g.Optional(r.semantic())))),
		func(v g.Spanned[g.Triple[ast.Qualifier, *ast.TypeRef, g.Triple[token.Token, []ast.Expr, g.Option[string]]]]) *ast.Param {
			d := v.Value.Third
			return &ast.Param{
				Pos:        ast.At(v.Span),
				Qualifiers: v.Value.First,
				Type:       v.Value.Second,
				Name:       d.First.Text,
				ArrayDims:  d.Second,
				Semantic:   d.Third.Value,
			}
		})
	params := g.Between(tok(token.LParen), g.SepBy(param, tok(token.Comma)), tok(token.RParen))
	body := g.Choice(
		g.Ref(&r.block),
		g.Map(semi, func(token.Token) *ast.Block { return nil }),
	)
	function := g.Map(g.WithSpan(g.Seq3(
		g.Seq3(r.attrs, qualifiers(), r.typeRef),
		g.Seq3(ident, params, g.Optional(r.semantic())),
		body,
	)), func(v g.Spanned[g.Triple[
		g.Triple[[]*ast.Attribute, ast.Qualifier, *ast.TypeRef],
		g.Triple[token.Token, []*ast.Param, g.Option[string]],
		*ast.Block,
	]]) []ast.Decl {
		head, sig := v.Value.First, v.Value.Second
		return one(&ast.FuncDecl{
			Pos:        ast.At(v.Span),
			Attrs:      head.First,
			Qualifiers: head.Second,
			Result:     head.Third,
			Name:       sig.First.Text,
			Params:     sig.Second,
			Semantic:   sig.Third.Value,
			Body:       v.Value.Third,
		})
	})

	globals := g.Map(g.Left(r.varDecls(), semi), func(vars []*ast.VarDecl) []ast.Decl {
		out := make([]ast.Decl, len(vars))
		for i, v := range vars {
			out[i] = v
		}
		return out
	})

	field := g.Map(g.WithSpan(g.Seq3(qualifiers(), r.typeRef, g.Seq3(ident, r.arrayDims(), g.Optional(r.semantic())))),
		func(v g.Spanned[g.Triple[ast.Qualifier, *ast.TypeRef, g.Triple[token.Token, []ast.Expr, g.Option[string]]]]) *ast.VarDecl {
			d := v.Value.Third
			return &ast.VarDecl{
				Pos:        ast.At(v.Span),
				Qualifiers: v.Value.First,
				Type:       v.Value.Second,
				Name:       d.First.Text,
				ArrayDims:  d.Second,
				Semantic:   d.Third.Value,
			}
		})
	structDecl := g.Map(g.WithSpan(g.Seq3(
		g.Right(tok(token.KwStruct), ident),
		g.Between(tok(token.LBrace), g.Many(g.Left(field, semi)), tok(token.RBrace)),
		g.Optional(semi),
	)), func(v g.Spanned[g.Triple[token.Token, []*ast.VarDecl, g.Option[token.Token]]]) []ast.Decl {
		return one(&ast.StructDecl{Pos: ast.At(v.Span), Name: v.Value.First.Text, Fields: v.Value.Second})
	})

	members := g.Map(g.Many(g.Left(r.varDecls(), semi)), func(lists [][]*ast.VarDecl) []*ast.VarDecl {
		var out []*ast.VarDecl
		for _, l := range lists {
			out = append(out, l...)
		}
		return out
	})
	cbuffer := g.Map(g.WithSpan(g.Seq3(
		g.Seq2(kindIs(token.KwCBuffer, token.KwRGroup), ident),
		g.Between(tok(token.LBrace), members, tok(token.RBrace)),
		g.Optional(semi),
	)), func(v g.Spanned[g.Triple[g.Pair[token.Token, token.Token], []*ast.VarDecl, g.Option[token.Token]]]) []ast.Decl {
		return one(&ast.CBufferDecl{
			Pos:     ast.At(v.Span),
			Kind:    v.Value.First.First.Kind,
			Name:    v.Value.First.Second.Text,
			Members: v.Value.Second,
		})
	})

	member := g.Label(g.Choice(structDecl, cbuffer, function, globals), "declaration")

	bases := g.Map(g.Optional(g.Right(tok(token.Colon), g.SepBy1(ident, tok(token.Comma)))), func(o g.Option[[]token.Token]) []string {
		var names []string
		for _, t := range o.Value {
			names = append(names, t.Text)
		}
		return names
	})
	shader := g.Map(g.WithSpan(g.Seq3(
		g.Seq2(g.Right(tok(token.KwShader), ident), bases),
		g.Between(tok(token.LBrace), g.Many(member), tok(token.RBrace)),
		g.Optional(semi),
	)), func(v g.Spanned[g.Triple[g.Pair[token.Token, []string], [][]ast.Decl, g.Option[token.Token]]]) []ast.Decl {
		return one(&ast.ShaderDecl{
			Pos:   ast.At(v.Span),
			Name:  v.Value.First.First.Text,
			Bases: v.Value.First.Second,
			Decls: flatten(v.Value.Second),
		})
	})

	r.decls = g.Choice(shader, member)
}
