package sema

import (
	"fmt"

	"github.com/gogpu/sdsl/source"
	"github.com/gogpu/sdsl/symbols"
)

// Error is a semantic error without a more specific kind.
type Error struct {
	Message string
	Span    source.Span
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Span.Start, e.Message) }

// TypeMismatchError reports an expression whose type does not fit its context.
type TypeMismatchError struct {
	Span    source.Span
	Context string
	Want    symbols.Type
	Got     symbols.Type
}

func (e *TypeMismatchError) Error() string {
	if e.Want == nil {
		return fmt.Sprintf("%s: %s: invalid type %s", e.Span.Start, e.Context, e.Got)
	}
	return fmt.Sprintf("%s: %s: cannot use %s as %s", e.Span.Start, e.Context, e.Got, e.Want)
}

// StreamDirectionError reports a stream variable used against the rules of
// the stage it is used in.
type StreamDirectionError struct {
	Span    source.Span
	Stream  string
	Stage   Stage
	Message string
}

func (e *StreamDirectionError) Error() string {
	return fmt.Sprintf("%s: %s stage: stream %s: %s", e.Span.Start, e.Stage, e.Stream, e.Message)
}

// MixinError is an error found in the source of a base mixin. Its
// positions refer to that source, not to the compiled one.
type MixinError struct {
	Mixin string
	Err   error
}

func (e *MixinError) Error() string { return fmt.Sprintf("%v (in mixin %s)", e.Err, e.Mixin) }

func (e *MixinError) Unwrap() error { return e.Err }

// Warning is a non-fatal diagnostic.
type Warning struct {
	Message string
	Span    source.Span
	Mixin   string // base mixin the span refers to, if any
}

func (w *Warning) Error() string {
	if w.Mixin != "" {
		return fmt.Sprintf("%s: warning: %s (in mixin %s)", w.Span.Start, w.Message, w.Mixin)
	}
	return fmt.Sprintf("%s: warning: %s", w.Span.Start, w.Message)
}
