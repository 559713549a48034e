package source

import "unicode/utf8"

// EOF is returned by Scanner.Peek at the end of input.
const EOF rune = -1

// Scanner is a cursor over the runes of a text.
// It tracks line and column as it advances so that every rune it hands out
// can be attributed to a Position.
type Scanner struct {
	text   string
	offset int
	line   int
	column int
}

// NewScanner returns a scanner positioned at the start of text.
func NewScanner(text string) *Scanner {
	return &Scanner{text: text, line: 1, column: 1}
}

// Text returns the full text being scanned.
func (s *Scanner) Text() string { return s.text }

// Pos returns the position of the next rune.
func (s *Scanner) Pos() Position {
	return Position{Line: s.line, Column: s.column, Offset: s.offset}
}

// Offset returns the byte offset of the next rune.
func (s *Scanner) Offset() int { return s.offset }

// AtEnd reports whether all input has been consumed.
func (s *Scanner) AtEnd() bool { return s.offset >= len(s.text) }

// Peek returns the next rune without consuming it.
func (s *Scanner) Peek() rune {
	if s.offset >= len(s.text) {
		return EOF
	}
	r, _ := utf8.DecodeRuneInString(s.text[s.offset:])
	return r
}

// PeekN returns the rune n positions ahead (0 is the next rune).
func (s *Scanner) PeekN(n int) rune {
	off := s.offset
	for ; n > 0 && off < len(s.text); n-- {
		_, size := utf8.DecodeRuneInString(s.text[off:])
		off += size
	}
	if off >= len(s.text) {
		return EOF
	}
	r, _ := utf8.DecodeRuneInString(s.text[off:])
	return r
}

// HasPrefix reports whether the remaining input starts with p.
func (s *Scanner) HasPrefix(p string) bool {
	return len(s.text)-s.offset >= len(p) && s.text[s.offset:s.offset+len(p)] == p
}

// Advance consumes and returns the next rune.
func (s *Scanner) Advance() rune {
	if s.offset >= len(s.text) {
		return EOF
	}
	r, size := utf8.DecodeRuneInString(s.text[s.offset:])
	s.offset += size
	if r == '\n' {
		s.line++
		s.column = 1
	} else {
		s.column++
	}
	return r
}

// Match consumes the next rune if it equals r.
func (s *Scanner) Match(r rune) bool {
	if s.Peek() != r {
		return false
	}
	s.Advance()
	return true
}

// MatchString consumes p if the remaining input starts with it.
func (s *Scanner) MatchString(p string) bool {
	if !s.HasPrefix(p) {
		return false
	}
	for range len([]rune(p)) {
		s.Advance()
	}
	return true
}

// Slice returns the text between two byte offsets.
func (s *Scanner) Slice(from, to int) string { return s.text[from:to] }

// SpanFrom returns the span from start up to the current position.
func (s *Scanner) SpanFrom(start Position) Span {
	return Span{Start: start, Len: s.offset - start.Offset}
}
