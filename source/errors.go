package source

import (
	"fmt"
	"strings"
)

// Error is a diagnostic attached to a source location.
type Error struct {
	Message string
	Span    Span
	Source  string // original source, used for context display
}

// Error implements the error interface.
func (e *Error) Error() string {
	if !e.Span.Start.IsValid() {
		return e.Message
	}
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

// FormatWithContext returns the message followed by the offending source
// line and a caret under the error column.
func (e *Error) FormatWithContext() string {
	return FormatContext("error", e.Message, e.Span, e.Source)
}

// FormatContext renders a message with the source line of span.
func FormatContext(severity, message string, span Span, src string) string {
	if src == "" || !span.Start.IsValid() {
		if !span.Start.IsValid() {
			return message
		}
		return fmt.Sprintf("%d:%d: %s", span.Start.Line, span.Start.Column, message)
	}
	idx := NewLineIndex(src)
	lineNum := span.Start.Line
	if lineNum > idx.LineCount() {
		return fmt.Sprintf("%d:%d: %s", span.Start.Line, span.Start.Column, message)
	}
	line := idx.Line(lineNum)
	col := span.Start.Column
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}
	width := span.Len
	if width < 1 {
		width = 1
	}
	if col-1+width > len(line) && len(line) >= col {
		width = len(line) - col + 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", severity, message)
	fmt.Fprintf(&sb, "  --> line %d:%d\n", lineNum, col)
	sb.WriteString("   |\n")
	fmt.Fprintf(&sb, "%3d| %s\n", lineNum, line)
	fmt.Fprintf(&sb, "   | %s%s\n", strings.Repeat(" ", col-1), strings.Repeat("^", width))
	return sb.String()
}

// Errorf creates an Error with a formatted message.
func Errorf(span Span, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Span: span}
}

// Errors is a list of source errors.
type Errors []*Error

// Error implements the error interface.
func (el Errors) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", el[0].Error(), len(el)-1)
}

// FormatAll returns all errors formatted with context.
func (el Errors) FormatAll() string {
	var sb strings.Builder
	for i, e := range el {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(e.FormatWithContext())
	}
	return sb.String()
}

// Add appends an error.
func (el *Errors) Add(err *Error) { *el = append(*el, err) }

// HasErrors reports whether the list is non-empty.
func (el Errors) HasErrors() bool { return len(el) > 0 }
