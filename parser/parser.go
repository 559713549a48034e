// Package parser parses SDSL source into an ast.Module.
//
// The grammar is composed from independent sub-grammars (directives,
// expressions, statements and declarations) built with the combinators of
// package grammar. Alternatives are ordered: declarations are tried before
// expression statements, constructors before plain names.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/sdsl/ast"
	g "github.com/gogpu/sdsl/grammar"
	"github.com/gogpu/sdsl/source"
	"github.com/gogpu/sdsl/token"
)

// Error is a parse failure at the furthest position the grammar reached.
type Error struct {
	Span     source.Span
	Expected []string
	Found    string
}

func (e *Error) Error() string {
	if len(e.Expected) == 0 {
		return fmt.Sprintf("%s: unexpected %s", e.Span.Start, e.Found)
	}
	return fmt.Sprintf("%s: expected %s, found %s", e.Span.Start, strings.Join(e.Expected, " or "), e.Found)
}

// rules holds the composed grammar. It is built once and shared; all
// per-parse state lives in grammar.State.
type rules struct {
	expr    g.Parser[ast.Expr]
	assign  g.Parser[ast.Expr]
	unary   g.Parser[ast.Expr]
	typeRef g.Parser[*ast.TypeRef]
	attrs   g.Parser[[]*ast.Attribute]
	stmt    g.Parser[ast.Stmt]
	block   g.Parser[*ast.Block]
	decls   g.Parser[[]ast.Decl]
	module  g.Parser[*ast.Module]
}

var defaultRules = sync.OnceValue(newRules)

func newRules() *rules {
	r := &rules{}
	r.typeGrammar()
	r.expressionGrammar()
	r.statementGrammar()
	r.declarationGrammar()
	r.moduleGrammar()
	return r
}

// Parse parses a token stream into a module.
func Parse(f *token.File) (*ast.Module, error) {
	m, err := g.Run(defaultRules().module, f.Tokens)
	if err != nil {
		return nil, convertError(err)
	}
	return m, nil
}

// ParseString lexes and parses src.
func ParseString(src string) (*ast.Module, error) {
	f, err := token.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(f)
}

// ParseExpr parses a single expression.
func ParseExpr(src string) (ast.Expr, error) {
	f, err := token.Tokenize(src)
	if err != nil {
		return nil, err
	}
	e, err := g.Run(defaultRules().expr, f.Tokens)
	if err != nil {
		return nil, convertError(err)
	}
	return e, nil
}

func convertError(err error) error {
	var gerr *g.Error
	if !errors.As(err, &gerr) {
		return err
	}
	return &Error{Span: gerr.Found.Span, Expected: gerr.Expected, Found: gerr.Found.String()}
}

// ----------------------------------------------------------------------------
// Shared helpers

func tok(k token.Kind) g.Parser[token.Token] { return g.Tok(k) }

func kindIs(kinds ...token.Kind) g.Parser[token.Token] {
	ps := make([]g.Parser[token.Token], len(kinds))
	for i, k := range kinds {
		ps[i] = g.Tok(k)
	}
	return g.Choice(ps...)
}

// name matches an identifier or, where a keyword can only be a name, a keyword.
func name(what string) g.Parser[token.Token] {
	return func(s *g.State, pos int) (token.Token, int, bool) {
		t := s.At(pos)
		if t.Kind == token.Ident || t.Kind.IsKeyword() {
			return t, pos + 1, true
		}
		s.Expect(pos, what)
		return token.Token{}, pos, false
	}
}

// ----------------------------------------------------------------------------
// Directive sub-grammar

func directiveGrammar() g.Parser[*ast.Directive] {
	return g.Map(tok(token.Directive), func(t token.Token) *ast.Directive {
		return &ast.Directive{Pos: ast.At(t.Span), Text: strings.TrimSpace(t.Text)}
	})
}

// ----------------------------------------------------------------------------
// Module

type moduleItem struct {
	directive *ast.Directive
	decls     []ast.Decl
}

func (r *rules) moduleGrammar() {
	item := g.Choice(
		g.Map(directiveGrammar(), func(d *ast.Directive) moduleItem { return moduleItem{directive: d} }),
		g.Map(r.decls, func(d []ast.Decl) moduleItem { return moduleItem{decls: d} }),
	)
	r.module = g.Map(g.WithSpan(g.Many(item)), func(items g.Spanned[[]moduleItem]) *ast.Module {
		m := &ast.Module{Pos: ast.At(items.Span)}
		for _, it := range items.Value {
			if it.directive != nil {
				m.Directives = append(m.Directives, it.directive)
			}
			m.Decls = append(m.Decls, it.decls...)
		}
		return m
	})
}
