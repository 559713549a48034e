package token

import (
	"unicode"

	"github.com/gogpu/sdsl/source"
)

// File is the token stream of one source text, terminated by an EOF token.
type File struct {
	Text   string
	Tokens []Token
}

// Lexer tokenizes SDSL source.
type Lexer struct {
	s      *source.Scanner
	start  source.Position
	tokens []Token
}

// NewLexer returns a lexer over text.
func NewLexer(text string) *Lexer {
	est := len(text) / 5
	if est < 16 {
		est = 16
	}
	return &Lexer{s: source.NewScanner(text), tokens: make([]Token, 0, est)}
}

// Tokenize lexes text into a File.
func Tokenize(text string) (*File, error) {
	return NewLexer(text).Tokenize()
}

// Tokenize returns all tokens of the input followed by EOF.
// Comments are skipped so that unpreprocessed text can be lexed directly.
func (l *Lexer) Tokenize() (*File, error) {
	lineStart := true
	for {
		nl, err := l.skipTrivia()
		if err != nil {
			return nil, err
		}
		if nl {
			lineStart = true
		}
		if l.s.AtEnd() {
			break
		}
		l.start = l.s.Pos()
		if lineStart && l.s.Peek() == '#' {
			l.directive()
		} else if err := l.scanToken(); err != nil {
			return nil, err
		}
		lineStart = false
	}
	l.start = l.s.Pos()
	l.tokens = append(l.tokens, Token{Kind: EOF, Span: source.Span{Start: l.start}})
	return &File{Text: l.s.Text(), Tokens: l.tokens}, nil
}

// skipTrivia skips whitespace and comments and reports whether a newline was crossed.
func (l *Lexer) skipTrivia() (bool, error) {
	sawNewline := false
	for !l.s.AtEnd() {
		r := l.s.Peek()
		switch {
		case r == '\n':
			sawNewline = true
			l.s.Advance()
		case r == ' ' || r == '\t' || r == '\r' || r == '\f' || r == '\v':
			l.s.Advance()
		case r == '/' && l.s.PeekN(1) == '/':
			for !l.s.AtEnd() && l.s.Peek() != '\n' {
				l.s.Advance()
			}
		case r == '/' && l.s.PeekN(1) == '*':
			start := l.s.Pos()
			l.s.Advance()
			l.s.Advance()
			for {
				if l.s.AtEnd() {
					return false, &Error{Message: "unterminated block comment", Span: l.s.SpanFrom(start)}
				}
				if l.s.MatchString("*/") {
					break
				}
				if l.s.Advance() == '\n' {
					sawNewline = true
				}
			}
		default:
			return sawNewline, nil
		}
	}
	return sawNewline, nil
}

func (l *Lexer) directive() {
	for !l.s.AtEnd() && l.s.Peek() != '\n' {
		l.s.Advance()
	}
	l.add(Directive)
}

func (l *Lexer) scanToken() error {
	r := l.s.Advance()

	switch r {
	case '(':
		l.add(LParen)
	case ')':
		l.add(RParen)
	case '{':
		l.add(LBrace)
	case '}':
		l.add(RBrace)
	case '[':
		l.add(LBracket)
	case ']':
		l.add(RBracket)
	case ',':
		l.add(Comma)
	case ';':
		l.add(Semicolon)
	case '?':
		l.add(Question)
	case '~':
		l.add(Tilde)
	case ':':
		l.add(l.pick(':', ColonColon, Colon))
	case '.':
		if isDigit(l.s.Peek()) {
			return l.number(r)
		}
		l.add(Dot)
	case '+':
		switch {
		case l.s.Match('+'):
			l.add(PlusPlus)
		case l.s.Match('='):
			l.add(PlusAssign)
		default:
			l.add(Plus)
		}
	case '-':
		switch {
		case l.s.Match('-'):
			l.add(MinusMinus)
		case l.s.Match('='):
			l.add(MinusAssign)
		default:
			l.add(Minus)
		}
	case '*':
		l.add(l.pick('=', StarAssign, Star))
	case '/':
		l.add(l.pick('=', SlashAssign, Slash))
	case '%':
		l.add(l.pick('=', PercentAssign, Percent))
	case '^':
		l.add(l.pick('=', CaretAssign, Caret))
	case '!':
		l.add(l.pick('=', BangEqual, Bang))
	case '=':
		l.add(l.pick('=', EqualEqual, Assign))
	case '&':
		switch {
		case l.s.Match('&'):
			l.add(AmpAmp)
		case l.s.Match('='):
			l.add(AmpAssign)
		default:
			l.add(Amp)
		}
	case '|':
		switch {
		case l.s.Match('|'):
			l.add(PipePipe)
		case l.s.Match('='):
			l.add(PipeAssign)
		default:
			l.add(Pipe)
		}
	case '<':
		switch {
		case l.s.MatchString("<="):
			l.add(LessLessAssign)
		case l.s.Match('<'):
			l.add(LessLess)
		case l.s.Match('='):
			l.add(LessEqual)
		default:
			l.add(Less)
		}
	case '>':
		// '>>' is never a single token; see Token.Joined.
		switch {
		case l.s.MatchString(">="):
			l.add(GreaterGreaterAssign)
		case l.s.Match('='):
			l.add(GreaterEqual)
		default:
			l.add(Greater)
		}
	case '"':
		return l.str()
	default:
		switch {
		case isDigit(r):
			return l.number(r)
		case isIdentStart(r):
			l.ident()
		default:
			return &Error{Message: "unexpected character " + quoteRune(r), Span: l.s.SpanFrom(l.start)}
		}
	}
	return nil
}

func (l *Lexer) pick(next rune, two, one Kind) Kind {
	if l.s.Match(next) {
		return two
	}
	return one
}

func (l *Lexer) ident() {
	for isIdentPart(l.s.Peek()) {
		l.s.Advance()
	}
	text := l.s.Slice(l.start.Offset, l.s.Offset())
	if kw, ok := Keywords[text]; ok {
		l.add(kw)
		return
	}
	l.add(Ident)
}

// number scans integer and floating-point literals. The text is kept
// verbatim; suffixes are validated but interpreted later.
func (l *Lexer) number(first rune) error {
	kind := IntLit
	if first == '0' && (l.s.Peek() == 'x' || l.s.Peek() == 'X') {
		l.s.Advance()
		if !isHexDigit(l.s.Peek()) {
			return &Error{Message: "malformed hexadecimal literal", Span: l.s.SpanFrom(l.start)}
		}
		for isHexDigit(l.s.Peek()) {
			l.s.Advance()
		}
	} else {
		if first == '.' {
			kind = FloatLit
		}
		for isDigit(l.s.Peek()) {
			l.s.Advance()
		}
		if kind == IntLit && l.s.Peek() == '.' {
			kind = FloatLit
			l.s.Advance()
			for isDigit(l.s.Peek()) {
				l.s.Advance()
			}
		}
		if p := l.s.Peek(); p == 'e' || p == 'E' {
			next := l.s.PeekN(1)
			if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.s.PeekN(2))) {
				kind = FloatLit
				l.s.Advance()
				if next == '+' || next == '-' {
					l.s.Advance()
				}
				for isDigit(l.s.Peek()) {
					l.s.Advance()
				}
			}
		}
	}

	switch l.s.Peek() {
	case 'f', 'F', 'h', 'H':
		kind = FloatLit
		l.s.Advance()
	case 'l', 'L':
		l.s.Advance()
	case 'u', 'U':
		if kind == FloatLit {
			return &Error{Message: "unsigned suffix on float literal", Span: l.s.SpanFrom(l.start)}
		}
		l.s.Advance()
		if p := l.s.Peek(); p == 'l' || p == 'L' {
			l.s.Advance()
		}
	}
	if isIdentPart(l.s.Peek()) {
		l.s.Advance()
		return &Error{Message: "invalid numeric literal", Span: l.s.SpanFrom(l.start)}
	}
	l.add(kind)
	return nil
}

func (l *Lexer) str() error {
	for {
		switch l.s.Peek() {
		case source.EOF, '\n':
			return &Error{Message: "unterminated string literal", Span: l.s.SpanFrom(l.start)}
		case '\\':
			l.s.Advance()
			l.s.Advance()
		case '"':
			l.s.Advance()
			l.add(StringLit)
			return nil
		default:
			l.s.Advance()
		}
	}
}

func (l *Lexer) add(kind Kind) {
	if n := len(l.tokens); n > 0 && l.tokens[n-1].Span.End() == l.start.Offset {
		l.tokens[n-1].Joined = true
	}
	l.tokens = append(l.tokens, Token{
		Kind: kind,
		Text: l.s.Slice(l.start.Offset, l.s.Offset()),
		Span: l.s.SpanFrom(l.start),
	})
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r > 0x7f && unicode.IsLetter(r))
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r) || (r > 0x7f && unicode.IsDigit(r))
}

func quoteRune(r rune) string {
	if r == source.EOF {
		return "EOF"
	}
	return "'" + string(r) + "'"
}
