package parser

import (
	"github.com/gogpu/sdsl/ast"
	g "github.com/gogpu/sdsl/grammar"
	"github.com/gogpu/sdsl/token"
)

// expressionGrammar builds the expression rules. Precedence from lowest:
// assignment (right-associative), conditional, ||, &&, |, ^, &, equality,
// relational, shift, additive, multiplicative, unary, postfix, primary.
func (r *rules) expressionGrammar() {
	expr := g.Ref(&r.expr)
	args := g.WithSpan(g.Between(tok(token.LParen), g.SepBy(expr, tok(token.Comma)), tok(token.RParen)))

	literal := g.Choice(
		g.Map(tok(token.IntLit), func(t token.Token) ast.Expr {
			return &ast.IntLit{ExprPos: ast.ExprAt(t.Span), Text: t.Text}
		}),
		g.Map(tok(token.FloatLit), func(t token.Token) ast.Expr {
			return &ast.FloatLit{ExprPos: ast.ExprAt(t.Span), Text: t.Text}
		}),
		g.Map(kindIs(token.KwTrue, token.KwFalse), func(t token.Token) ast.Expr {
			return &ast.BoolLit{ExprPos: ast.ExprAt(t.Span), Value: t.Kind == token.KwTrue}
		}),
		g.Map(tok(token.StringLit), func(t token.Token) ast.Expr {
			return &ast.StringLit{ExprPos: ast.ExprAt(t.Span), Text: t.Text}
		}),
	)
	construct := g.Map(g.Seq2(r.numericType(), args), func(p g.Pair[*ast.TypeRef, g.Spanned[[]ast.Expr]]) ast.Expr {
		return &ast.ConstructExpr{ExprPos: ast.ExprAt(p.First.Span().To(p.Second.Span)), TypeRef: p.First, Args: p.Second.Value}
	})
	ident := g.Map(tok(token.Ident), func(t token.Token) ast.Expr {
		return &ast.Ident{ExprPos: ast.ExprAt(t.Span), Name: t.Text}
	})
	paren := g.Between(tok(token.LParen), expr, tok(token.RParen))
	primary := g.Label(g.Choice(literal, construct, ident, paren), "expression")

	type suffix = func(ast.Expr) ast.Expr
	member := g.Map(g.Seq2(tok(token.Dot), tok(token.Ident)), func(p g.Pair[token.Token, token.Token]) suffix {
		return func(x ast.Expr) ast.Expr {
			return &ast.MemberExpr{ExprPos: ast.ExprAt(x.Span().To(p.Second.Span)), X: x, Name: p.Second.Text}
		}
	})
	index := g.Map(g.Seq3(tok(token.LBracket), expr, tok(token.RBracket)), func(p g.Triple[token.Token, ast.Expr, token.Token]) suffix {
		return func(x ast.Expr) ast.Expr {
			return &ast.IndexExpr{ExprPos: ast.ExprAt(x.Span().To(p.Third.Span)), X: x, Index: p.Second}
		}
	})
	call := g.Map(args, func(a g.Spanned[[]ast.Expr]) suffix {
		return func(x ast.Expr) ast.Expr {
			return &ast.CallExpr{ExprPos: ast.ExprAt(x.Span().To(a.Span)), Fn: x, Args: a.Value}
		}
	})
	postIncDec := g.Map(kindIs(token.PlusPlus, token.MinusMinus), func(t token.Token) suffix {
		return func(x ast.Expr) ast.Expr {
			return &ast.IncDecExpr{ExprPos: ast.ExprAt(x.Span().To(t.Span)), Op: t.Kind, X: x}
		}
	})
	postfix := g.Map(g.Seq2(primary, g.Many(g.Choice(member, index, call, postIncDec))), func(p g.Pair[ast.Expr, []suffix]) ast.Expr {
		x := p.First
		for _, f := range p.Second {
			x = f(x)
		}
		return x
	})

	unary := g.Ref(&r.unary)
	prefix := g.Map(g.Seq2(kindIs(token.Minus, token.Plus, token.Bang, token.Tilde, token.PlusPlus, token.MinusMinus), unary),
		func(p g.Pair[token.Token, ast.Expr]) ast.Expr {
			span := p.First.Span.To(p.Second.Span())
			if p.First.Kind == token.PlusPlus || p.First.Kind == token.MinusMinus {
				return &ast.IncDecExpr{ExprPos: ast.ExprAt(span), Op: p.First.Kind, Prefix: true, X: p.Second}
			}
			return &ast.UnaryExpr{ExprPos: ast.ExprAt(span), Op: p.First.Kind, X: p.Second}
		})
	// A cast only applies to built-in type names, so (x) - y stays a subtraction.
	cast := g.Map(g.Seq2(g.WithSpan(g.Seq3(tok(token.LParen), r.numericType(), tok(token.RParen))), unary),
		func(p g.Pair[g.Spanned[g.Triple[token.Token, *ast.TypeRef, token.Token]], ast.Expr]) ast.Expr {
			return &ast.CastExpr{ExprPos: ast.ExprAt(p.First.Span.To(p.Second.Span())), To: p.First.Value.Second, X: p.Second}
		})
	r.unary = g.Memo(g.Choice(prefix, cast, postfix))

	mul := binaryLevel(unary, opTok(token.Star, ast.OpMul), opTok(token.Slash, ast.OpDiv), opTok(token.Percent, ast.OpMod))
	add := binaryLevel(mul, opTok(token.Plus, ast.OpAdd), opTok(token.Minus, ast.OpSub))
	shift := binaryLevel(add, opTok(token.LessLess, ast.OpShl), shiftRight)
	rel := binaryLevel(shift,
		opTok(token.LessEqual, ast.OpLessEq), opTok(token.GreaterEqual, ast.OpGreaterEq),
		opTok(token.Less, ast.OpLess), greater)
	eq := binaryLevel(rel, opTok(token.EqualEqual, ast.OpEqual), opTok(token.BangEqual, ast.OpNotEqual))
	band := binaryLevel(eq, opTok(token.Amp, ast.OpBitAnd))
	bxor := binaryLevel(band, opTok(token.Caret, ast.OpBitXor))
	bor := binaryLevel(bxor, opTok(token.Pipe, ast.OpBitOr))
	land := binaryLevel(bor, opTok(token.AmpAmp, ast.OpLogicalAnd))
	lor := binaryLevel(land, opTok(token.PipePipe, ast.OpLogicalOr))

	assign := g.Ref(&r.assign)
	branches := g.Seq2(g.Right(tok(token.Question), expr), g.Right(tok(token.Colon), assign))
	conditional := g.Map(g.Seq2(lor, g.Optional(branches)), func(p g.Pair[ast.Expr, g.Option[g.Pair[ast.Expr, ast.Expr]]]) ast.Expr {
		if !p.Second.Ok {
			return p.First
		}
		b := p.Second.Value
		return &ast.ConditionalExpr{ExprPos: ast.ExprAt(p.First.Span().To(b.Second.Span())), Cond: p.First, Then: b.First, Else: b.Second}
	})

	assignOp := g.Choice(
		opTok(token.Assign, ""),
		opTok(token.PlusAssign, ast.OpAdd),
		opTok(token.MinusAssign, ast.OpSub),
		opTok(token.StarAssign, ast.OpMul),
		opTok(token.SlashAssign, ast.OpDiv),
		opTok(token.PercentAssign, ast.OpMod),
		opTok(token.AmpAssign, ast.OpBitAnd),
		opTok(token.PipeAssign, ast.OpBitOr),
		opTok(token.CaretAssign, ast.OpBitXor),
		opTok(token.LessLessAssign, ast.OpShl),
		opTok(token.GreaterGreaterAssign, ast.OpShr),
	)
	assignment := g.Map(g.Seq3(unary, assignOp, assign), func(p g.Triple[ast.Expr, ast.BinaryOp, ast.Expr]) ast.Expr {
		return &ast.AssignExpr{ExprPos: ast.ExprAt(p.First.Span().To(p.Third.Span())), Op: p.Second, LHS: p.First, RHS: p.Third}
	})
	r.assign = g.Memo(g.Choice(assignment, conditional))
	r.expr = r.assign
}

func opTok(k token.Kind, op ast.BinaryOp) g.Parser[ast.BinaryOp] {
	return g.Map(tok(k), func(token.Token) ast.BinaryOp { return op })
}

// shiftRight matches '>' immediately followed by '>'. The lexer never
// produces a '>>' token so that template argument lists can close on a
// single '>'.
func shiftRight(s *g.State, pos int) (ast.BinaryOp, int, bool) {
	a, b := s.At(pos), s.At(pos+1)
	if a.Kind == token.Greater && a.Joined && b.Kind == token.Greater {
		return ast.OpShr, pos + 2, true
	}
	s.Expect(pos, "'>>'")
	return "", pos, false
}

// greater matches a '>' that is not the first half of a shift.
func greater(s *g.State, pos int) (ast.BinaryOp, int, bool) {
	a := s.At(pos)
	if a.Kind == token.Greater && !(a.Joined && s.At(pos+1).Kind == token.Greater) {
		return ast.OpGreater, pos + 1, true
	}
	s.Expect(pos, token.Greater.String())
	return "", pos, false
}

func binaryLevel(operand g.Parser[ast.Expr], ops ...g.Parser[ast.BinaryOp]) g.Parser[ast.Expr] {
	return g.ChainLeft(operand, g.Choice(ops...), func(x ast.Expr, op ast.BinaryOp, y ast.Expr) ast.Expr {
		return &ast.BinaryExpr{ExprPos: ast.ExprAt(x.Span().To(y.Span())), Op: op, X: x, Y: y}
	})
}
