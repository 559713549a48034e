package source

import (
	"sort"
	"unicode/utf8"
)

// LineIndex converts byte offsets of a text to line/column positions.
type LineIndex struct {
	text  string
	lines []int // offset of the first byte of each line
}

// NewLineIndex builds the index for text.
func NewLineIndex(text string) *LineIndex {
	lines := make([]int, 1, 64)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &LineIndex{text: text, lines: lines}
}

// Position returns the position of the byte at offset.
// Columns count runes, not bytes. Offsets past the end clamp to the end.
func (x *LineIndex) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(x.text) {
		offset = len(x.text)
	}
	line := sort.Search(len(x.lines), func(i int) bool { return x.lines[i] > offset }) - 1
	col := utf8.RuneCountInString(x.text[x.lines[line]:offset]) + 1
	return Position{Line: line + 1, Column: col, Offset: offset}
}

// Span returns the span of length n starting at offset.
func (x *LineIndex) Span(offset, n int) Span {
	return Span{Start: x.Position(offset), Len: n}
}

// Line returns the text of the 1-based line without its terminator.
func (x *LineIndex) Line(n int) string {
	if n < 1 || n > len(x.lines) {
		return ""
	}
	start := x.lines[n-1]
	end := len(x.text)
	if n < len(x.lines) {
		end = x.lines[n] - 1
	}
	if end > start && x.text[end-1] == '\r' {
		end--
	}
	return x.text[start:end]
}

// LineCount returns the number of lines.
func (x *LineIndex) LineCount() int { return len(x.lines) }
