package parser

import (
	"github.com/gogpu/sdsl/ast"
	g "github.com/gogpu/sdsl/grammar"
	"github.com/gogpu/sdsl/source"
	"github.com/gogpu/sdsl/token"
)

type declarator struct {
	name     token.Token
	dims     []ast.Expr
	semantic string
	init     ast.Expr
	span     source.Span
}

func (r *rules) semantic() g.Parser[string] {
	return g.Map(g.Right(tok(token.Colon), tok(token.Ident)), func(t token.Token) string { return t.Text })
}

func (r *rules) arrayDims() g.Parser[[]ast.Expr] {
	return g.Many(g.Between(tok(token.LBracket), g.Ref(&r.expr), tok(token.RBracket)))
}

func qualifiers() g.Parser[ast.Qualifier] {
	alts := make([]g.Parser[ast.Qualifier], len(ast.QualifierKeywords))
	for i, qk := range ast.QualifierKeywords {
		alts[i] = g.Map(tok(qk.Kind), func(token.Token) ast.Qualifier { return qk.Qual })
	}
	return g.Map(g.Many(g.Choice(alts...)), func(qs []ast.Qualifier) ast.Qualifier {
		var q ast.Qualifier
		for _, x := range qs {
			q |= x
		}
		return q
	})
}

// varDecls parses "qualifiers type declarator, declarator..." without the
// terminating semicolon.
func (r *rules) varDecls() g.Parser[[]*ast.VarDecl] {
	decl := g.Map(g.WithSpan(g.Seq3(
		g.Seq2(tok(token.Ident), r.arrayDims()),
		g.Optional(r.semantic()),
		g.Optional(g.Right(tok(token.Assign), g.Ref(&r.assign))),
	)), func(v g.Spanned[g.Triple[g.Pair[token.Token, []ast.Expr], g.Option[string], g.Option[ast.Expr]]]) declarator {
		return declarator{
			name:     v.Value.First.First,
			dims:     v.Value.First.Second,
			semantic: v.Value.Second.Value,
			init:     v.Value.Third.Value,
			span:     v.Span,
		}
	})
	return g.Map(g.WithSpan(g.Seq3(qualifiers(), r.typeRef, g.SepBy1(decl, tok(token.Comma)))),
		func(v g.Spanned[g.Triple[ast.Qualifier, *ast.TypeRef, []declarator]]) []*ast.VarDecl {
			out := make([]*ast.VarDecl, len(v.Value.Third))
			for i, d := range v.Value.Third {
				span := d.span
				if i == 0 {
					span = source.Span{Start: v.Span.Start}.To(d.span)
				}
				out[i] = &ast.VarDecl{
					Pos:        ast.At(span),
					Qualifiers: v.Value.First,
					Type:       v.Value.Second,
					Name:       d.name.Text,
					ArrayDims:  d.dims,
					Semantic:   d.semantic,
					Init:       d.init,
				}
			}
			return out
		})
}

func (r *rules) attributeGrammar() {
	args := g.Between(tok(token.LParen), g.SepBy(g.Ref(&r.expr), tok(token.Comma)), tok(token.RParen))
	attr := g.Map(g.WithSpan(g.Seq3(tok(token.LBracket), g.Seq2(name("attribute name"), g.Optional(args)), tok(token.RBracket))),
		func(v g.Spanned[g.Triple[token.Token, g.Pair[token.Token, g.Option[[]ast.Expr]], token.Token]]) *ast.Attribute {
			a := &ast.Attribute{Pos: ast.At(v.Span), Name: v.Value.Second.First.Text}
			if v.Value.Second.Second.Ok {
				a.Args = v.Value.Second.Second.Value
				if a.Args == nil {
					a.Args = []ast.Expr{}
				}
			}
			return a
		})
	r.attrs = g.Many(attr)
}

func (r *rules) statementGrammar() {
	r.attributeGrammar()
	stmt := g.Ref(&r.stmt)
	expr := g.Ref(&r.expr)
	semi := tok(token.Semicolon)
	cond := g.Between(tok(token.LParen), expr, tok(token.RParen))

	r.block = g.Map(g.WithSpan(g.Between(tok(token.LBrace), g.Many(stmt), tok(token.RBrace))),
		func(v g.Spanned[[]ast.Stmt]) *ast.Block {
			return &ast.Block{Pos: ast.At(v.Span), Stmts: v.Value}
		})
	block := g.Map(g.Ref(&r.block), func(b *ast.Block) ast.Stmt { return b })

	declStmt := g.Map(g.WithSpan(r.varDecls()), func(v g.Spanned[[]*ast.VarDecl]) *ast.DeclStmt {
		return &ast.DeclStmt{Pos: ast.At(v.Span), Vars: v.Value}
	})
	exprStmt := g.Map(expr, func(x ast.Expr) *ast.ExprStmt {
		return &ast.ExprStmt{Pos: ast.At(x.Span()), X: x}
	})
	simple := g.Choice(
		g.Map(g.Left(declStmt, semi), func(d *ast.DeclStmt) ast.Stmt { return d }),
		g.Map(g.Left(exprStmt, semi), func(e *ast.ExprStmt) ast.Stmt { return e }),
	)

	ifStmt := g.Map(g.WithSpan(g.Seq3(g.Right(tok(token.KwIf), cond), stmt, g.Optional(g.Right(tok(token.KwElse), stmt)))),
		func(v g.Spanned[g.Triple[ast.Expr, ast.Stmt, g.Option[ast.Stmt]]]) ast.Stmt {
			return &ast.IfStmt{Pos: ast.At(v.Span), Cond: v.Value.First, Then: v.Value.Second, Else: v.Value.Third.Value}
		})

	forInit := g.Optional(g.Choice(
		g.Map(declStmt, func(d *ast.DeclStmt) ast.Stmt { return d }),
		g.Map(exprStmt, func(e *ast.ExprStmt) ast.Stmt { return e }),
	))
	forHeader := g.Seq3(
		g.Left(g.Right(g.Seq2(tok(token.KwFor), tok(token.LParen)), forInit), semi),
		g.Left(g.Optional(expr), semi),
		g.Left(g.Optional(expr), tok(token.RParen)),
	)
	forStmt := g.Map(g.WithSpan(g.Seq2(forHeader, stmt)),
		func(v g.Spanned[g.Pair[g.Triple[g.Option[ast.Stmt], g.Option[ast.Expr], g.Option[ast.Expr]], ast.Stmt]]) ast.Stmt {
			h := v.Value.First
			return &ast.ForStmt{Pos: ast.At(v.Span), Init: h.First.Value, Cond: h.Second.Value, Post: h.Third.Value, Body: v.Value.Second}
		})

	whileStmt := g.Map(g.WithSpan(g.Seq2(g.Right(tok(token.KwWhile), cond), stmt)),
		func(v g.Spanned[g.Pair[ast.Expr, ast.Stmt]]) ast.Stmt {
			return &ast.WhileStmt{Pos: ast.At(v.Span), Cond: v.Value.First, Body: v.Value.Second}
		})
	doStmt := g.Map(g.WithSpan(g.Seq3(g.Right(tok(token.KwDo), stmt), g.Right(tok(token.KwWhile), cond), semi)),
		func(v g.Spanned[g.Triple[ast.Stmt, ast.Expr, token.Token]]) ast.Stmt {
			return &ast.DoWhileStmt{Pos: ast.At(v.Span), Body: v.Value.First, Cond: v.Value.Second}
		})

	label := g.Choice(
		g.Map(g.Between(tok(token.KwCase), expr, tok(token.Colon)), func(x ast.Expr) g.Option[ast.Expr] {
			return g.Option[ast.Expr]{Value: x, Ok: true}
		}),
		g.Map(g.Seq2(tok(token.KwDefault), tok(token.Colon)), func(g.Pair[token.Token, token.Token]) g.Option[ast.Expr] {
			return g.Option[ast.Expr]{}
		}),
	)
	clause := g.Map(g.WithSpan(g.Seq2(g.Many1(label), g.Many(stmt))),
		func(v g.Spanned[g.Pair[[]g.Option[ast.Expr], []ast.Stmt]]) *ast.CaseClause {
			c := &ast.CaseClause{Pos: ast.At(v.Span), Body: v.Value.Second}
			isDefault := false
			for _, l := range v.Value.First {
				if !l.Ok {
					isDefault = true
					continue
				}
				c.Values = append(c.Values, l.Value)
			}
			if isDefault {
				c.Values = nil
			}
			return c
		})
	switchStmt := g.Map(g.WithSpan(g.Seq2(g.Right(tok(token.KwSwitch), cond), g.Between(tok(token.LBrace), g.Many(clause), tok(token.RBrace)))),
		func(v g.Spanned[g.Pair[ast.Expr, []*ast.CaseClause]]) ast.Stmt {
			return &ast.SwitchStmt{Pos: ast.At(v.Span), Tag: v.Value.First, Cases: v.Value.Second}
		})

	keyword := func(k token.Kind, mk func(source.Span) ast.Stmt) g.Parser[ast.Stmt] {
		return g.Map(g.WithSpan(g.Seq2(tok(k), semi)), func(v g.Spanned[g.Pair[token.Token, token.Token]]) ast.Stmt {
			return mk(v.Span)
		})
	}
	breakStmt := keyword(token.KwBreak, func(s source.Span) ast.Stmt { return &ast.BreakStmt{Pos: ast.At(s)} })
	continueStmt := keyword(token.KwContinue, func(s source.Span) ast.Stmt { return &ast.ContinueStmt{Pos: ast.At(s)} })
	discardStmt := keyword(token.KwDiscard, func(s source.Span) ast.Stmt { return &ast.DiscardStmt{Pos: ast.At(s)} })
	returnStmt := g.Map(g.WithSpan(g.Seq3(tok(token.KwReturn), g.Optional(expr), semi)),
		func(v g.Spanned[g.Triple[token.Token, g.Option[ast.Expr], token.Token]]) ast.Stmt {
			return &ast.ReturnStmt{Pos: ast.At(v.Span), Value: v.Value.Second.Value}
		})
	emptyStmt := g.Map(semi, func(t token.Token) ast.Stmt { return &ast.EmptyStmt{Pos: ast.At(t.Span)} })

	// Attributes such as [unroll] or [branch] annotate control statements.
	control := g.Map(g.Seq2(r.attrs, g.Choice(ifStmt, forStmt, whileStmt, doStmt, switchStmt)),
		func(p g.Pair[[]*ast.Attribute, ast.Stmt]) ast.Stmt {
			if len(p.First) == 0 {
				return p.Second
			}
			switch s := p.Second.(type) {
			case *ast.IfStmt:
				s.Attrs = p.First
			case *ast.ForStmt:
				s.Attrs = p.First
			case *ast.WhileStmt:
				s.Attrs = p.First
			case *ast.DoWhileStmt:
				s.Attrs = p.First
			case *ast.SwitchStmt:
				s.Attrs = p.First
			}
			return p.Second
		})

	r.stmt = g.Label(g.Choice(
		block,
		control,
		breakStmt,
		continueStmt,
		discardStmt,
		returnStmt,
		emptyStmt,
		simple,
	), "statement")
}
