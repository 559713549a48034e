// Package token defines SDSL tokens and the lexer that produces them.
package token

import (
	"fmt"

	"github.com/gogpu/sdsl/source"
)

// Kind is the kind of a token.
type Kind uint8

const (
	EOF Kind = iota
	Illegal

	// Literals
	Ident
	IntLit
	FloatLit
	StringLit
	Directive // a #pragma or #line line left by the preprocessor

	// Operators
	Plus         // +
	Minus        // -
	Star         // *
	Slash        // /
	Percent      // %
	Amp          // &
	Pipe         // |
	Caret        // ^
	Tilde        // ~
	Bang         // !
	Assign       // =
	Less         // <
	Greater      // >
	Dot          // .
	Comma        // ,
	Colon        // :
	Semicolon    // ;
	Question     // ?
	PlusPlus     // ++
	MinusMinus   // --
	EqualEqual   // ==
	BangEqual    // !=
	LessEqual    // <=
	GreaterEqual // >=
	AmpAmp       // &&
	PipePipe     // ||
	LessLess     // <<
	PlusAssign   // +=
	MinusAssign  // -=
	StarAssign   // *=
	SlashAssign  // /=
	PercentAssign
	AmpAssign
	PipeAssign
	CaretAssign
	LessLessAssign
	GreaterGreaterAssign
	ColonColon // ::

	// Delimiters
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket

	// Keywords
	keywordStart
	KwShader
	KwStruct
	KwCBuffer
	KwRGroup
	KwIf
	KwElse
	KwFor
	KwWhile
	KwDo
	KwSwitch
	KwCase
	KwDefault
	KwReturn
	KwBreak
	KwContinue
	KwDiscard
	KwTrue
	KwFalse
	KwStream
	KwStage
	KwStatic
	KwConst
	KwIn
	KwOut
	KwInOut
	KwPatch
	KwOverride
	KwAbstract
	KwNoInterpolation
	KwLinear
	KwCentroid
	KwUniform
	KwVector
	KwMatrix
	keywordEnd
)

var kindNames = [...]string{
	EOF:                  "end of file",
	Illegal:              "illegal token",
	Ident:                "identifier",
	IntLit:               "integer literal",
	FloatLit:             "float literal",
	StringLit:            "string literal",
	Directive:            "directive",
	Plus:                 "'+'",
	Minus:                "'-'",
	Star:                 "'*'",
	Slash:                "'/'",
	Percent:              "'%'",
	Amp:                  "'&'",
	Pipe:                 "'|'",
	Caret:                "'^'",
	Tilde:                "'~'",
	Bang:                 "'!'",
	Assign:               "'='",
	Less:                 "'<'",
	Greater:              "'>'",
	Dot:                  "'.'",
	Comma:                "','",
	Colon:                "':'",
	Semicolon:            "';'",
	Question:             "'?'",
	PlusPlus:             "'++'",
	MinusMinus:           "'--'",
	EqualEqual:           "'=='",
	BangEqual:            "'!='",
	LessEqual:            "'<='",
	GreaterEqual:         "'>='",
	AmpAmp:               "'&&'",
	PipePipe:             "'||'",
	LessLess:             "'<<'",
	PlusAssign:           "'+='",
	MinusAssign:          "'-='",
	StarAssign:           "'*='",
	SlashAssign:          "'/='",
	PercentAssign:        "'%='",
	AmpAssign:            "'&='",
	PipeAssign:           "'|='",
	CaretAssign:          "'^='",
	LessLessAssign:       "'<<='",
	GreaterGreaterAssign: "'>>='",
	ColonColon:           "'::'",
	LParen:               "'('",
	RParen:               "')'",
	LBrace:               "'{'",
	RBrace:               "'}'",
	LBracket:             "'['",
	RBracket:             "']'",
}

// Keywords maps keyword spellings to their kinds.
var Keywords = map[string]Kind{
	"shader":          KwShader,
	"struct":          KwStruct,
	"cbuffer":         KwCBuffer,
	"rgroup":          KwRGroup,
	"if":              KwIf,
	"else":            KwElse,
	"for":             KwFor,
	"while":           KwWhile,
	"do":              KwDo,
	"switch":          KwSwitch,
	"case":            KwCase,
	"default":         KwDefault,
	"return":          KwReturn,
	"break":           KwBreak,
	"continue":        KwContinue,
	"discard":         KwDiscard,
	"true":            KwTrue,
	"false":           KwFalse,
	"stream":          KwStream,
	"stage":           KwStage,
	"static":          KwStatic,
	"const":           KwConst,
	"in":              KwIn,
	"out":             KwOut,
	"inout":           KwInOut,
	"patch":           KwPatch,
	"override":        KwOverride,
	"abstract":        KwAbstract,
	"nointerpolation": KwNoInterpolation,
	"linear":          KwLinear,
	"centroid":        KwCentroid,
	"uniform":         KwUniform,
	"vector":          KwVector,
	"matrix":          KwMatrix,
}

var keywordSpelling = func() map[Kind]string {
	m := make(map[Kind]string, len(Keywords))
	for s, k := range Keywords {
		m[k] = s
	}
	return m
}()

// IsKeyword reports whether k is a keyword kind.
func (k Kind) IsKeyword() bool { return k > keywordStart && k < keywordEnd }

func (k Kind) String() string {
	if s, ok := keywordSpelling[k]; ok {
		return "'" + s + "'"
	}
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("token(%d)", k)
}

// Token is a lexical token.
type Token struct {
	Kind Kind
	Text string
	Span source.Span

	// Joined is set when the next token starts immediately after this one
	// with no whitespace in between. The parser uses it to tell the shift
	// operator '>>' from two closing '>' of nested type arguments.
	Joined bool
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of file"
	case Ident, IntLit, FloatLit, StringLit:
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	}
	return t.Kind.String()
}

// Error is a lexical error.
type Error struct {
	Message string
	Span    source.Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
}
