package source

import "fmt"

// Position is a location in source text.
// Line and Column are 1-based, Offset is a 0-based byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// IsValid reports whether the position has been set.
func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a range of source text starting at Start and Len bytes long.
type Span struct {
	Start Position
	Len   int
}

// End returns the byte offset just past the span.
func (s Span) End() int { return s.Start.Offset + s.Len }

// To returns the span covering s through other.
func (s Span) To(other Span) Span {
	if !s.Start.IsValid() {
		return other
	}
	end := other.End()
	if end < s.End() {
		end = s.End()
	}
	return Span{Start: s.Start, Len: end - s.Start.Offset}
}
