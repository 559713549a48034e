package sdsl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/sdsl/parser"
	"github.com/gogpu/sdsl/preprocess"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/source"
	"github.com/gogpu/sdsl/spirv"
	"github.com/gogpu/sdsl/symbols"
	"github.com/gogpu/sdsl/tac"
	"github.com/gogpu/sdsl/token"
)

// Severity tells whether a diagnostic fails the compilation.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// ErrorKind classifies diagnostics.
type ErrorKind uint8

const (
	// PreprocessingError is a malformed directive or comment.
	PreprocessingError ErrorKind = iota
	// ParseError is a lexical or grammar mismatch.
	ParseError
	// UnboundSymbolError is a name that resolves to no declaration.
	UnboundSymbolError
	// DuplicateSymbolError is a name declared twice in one scope.
	DuplicateSymbolError
	// TypeMismatchError is an expression whose type does not fit its use.
	TypeMismatchError
	// StreamDirectionError is a stream or system value used against the
	// rules of its stage.
	StreamDirectionError
	// SemanticError is any other analysis error.
	SemanticError
	// LoweringGapError is a construct with no IR lowering.
	LoweringGapError
	// EmissionError is a module that cannot be encoded, such as one
	// running out of ids.
	EmissionError
)

var kindNames = [...]string{
	PreprocessingError:   "preprocessing error",
	ParseError:           "parse error",
	UnboundSymbolError:   "unbound symbol",
	DuplicateSymbolError: "duplicate symbol",
	TypeMismatchError:    "type mismatch",
	StreamDirectionError: "stream direction",
	SemanticError:        "semantic error",
	LoweringGapError:     "lowering gap",
	EmissionError:        "emission error",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Diagnostic is one error or warning of a compilation. Pos and Span refer
// to the original source text, before preprocessing.
type Diagnostic struct {
	Severity Severity
	Kind     ErrorKind
	Message  string
	Pos      source.Position
	Span     source.Span
	Err      error // the underlying error
}

func (d Diagnostic) Error() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%d:%d: %s: %s", d.Pos.Line, d.Pos.Column, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Unwrap returns the underlying error.
func (d Diagnostic) Unwrap() error { return d.Err }

// FormatWithContext renders the diagnostic with the line of src it
// refers to and a caret under the offending text.
func (d Diagnostic) FormatWithContext(src string) string {
	return source.FormatContext(d.Severity.String(), d.Kind.String()+": "+d.Message, d.Span, src)
}

// Diagnostics is a list of diagnostics usable as an error.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	switch len(ds) {
	case 0:
		return "no errors"
	case 1:
		return ds[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors:", len(ds))
	for _, d := range ds {
		sb.WriteString("\n  ")
		sb.WriteString(d.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying errors, so errors.As finds any of them.
func (ds Diagnostics) Unwrap() []error {
	out := make([]error, len(ds))
	for i, d := range ds {
		out[i] = d.Err
	}
	return out
}

// FormatWithContext renders every diagnostic with source context.
func (ds Diagnostics) FormatWithContext(src string) string {
	var sb strings.Builder
	for i, d := range ds {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.FormatWithContext(src))
	}
	return sb.String()
}

// classify returns the kind of err and the span it reports, in the
// coordinates of the text it was found in.
func classify(err error) (ErrorKind, source.Span, bool) {
	var (
		pp  *preprocess.Error
		lex *token.Error
		pe  *parser.Error
		ub  *symbols.UnboundSymbolError
		dup *symbols.DuplicateSymbolError
		tm  *sema.TypeMismatchError
		sd  *sema.StreamDirectionError
		se  *sema.Error
		w   *sema.Warning
		lg  *tac.LoweringGapError
		em  *spirv.EmissionError
	)
	switch {
	case errors.As(err, &pp):
		return PreprocessingError, source.Span{Start: pp.Pos}, false
	case errors.As(err, &lex):
		return ParseError, lex.Span, true
	case errors.As(err, &pe):
		return ParseError, pe.Span, true
	case errors.As(err, &ub):
		return UnboundSymbolError, ub.Span, true
	case errors.As(err, &dup):
		return DuplicateSymbolError, dup.Span, true
	case errors.As(err, &tm):
		return TypeMismatchError, tm.Span, true
	case errors.As(err, &sd):
		return StreamDirectionError, sd.Span, true
	case errors.As(err, &se):
		return SemanticError, se.Span, true
	case errors.As(err, &w):
		return SemanticError, w.Span, true
	case errors.As(err, &lg):
		if lg.Node != nil {
			return LoweringGapError, lg.Node.Span(), true
		}
		return LoweringGapError, source.Span{}, false
	case errors.As(err, &em):
		return EmissionError, source.Span{}, false
	}
	return SemanticError, source.Span{}, false
}

// mixinOf returns the base mixin err was found in, or "" for errors of
// the compiled source.
func mixinOf(err error) string {
	var mx *sema.MixinError
	if errors.As(err, &mx) {
		return mx.Mixin
	}
	var w *sema.Warning
	if errors.As(err, &w) {
		return w.Mixin
	}
	return ""
}

// diagnose builds the diagnostic of err. Spans found in preprocessed text
// are mapped back to the original source through arena. Spans of errors
// inside a base mixin are left in the coordinates of the mixin, whose name
// the message carries.
func diagnose(err error, sev Severity, arena *preprocess.Arena, final preprocess.FrameID) Diagnostic {
	kind, span, mapped := classify(err)
	msg := message(err, span)
	if mixinOf(err) != "" {
		mapped = false
	}
	if mapped && arena != nil && span.Start.IsValid() {
		if orig, terr := arena.Span(final, span.Start.Offset, span.Len); terr == nil {
			span = orig
		}
	}
	return Diagnostic{
		Severity: sev,
		Kind:     kind,
		Message:  msg,
		Pos:      span.Start,
		Span:     span,
		Err:      err,
	}
}

// message strips the position prefix the error formats itself with,
// since the diagnostic carries its own.
func message(err error, span source.Span) string {
	msg := err.Error()
	if span.Start.IsValid() {
		if rest, ok := strings.CutPrefix(msg, span.Start.String()+": "); ok {
			return rest
		}
	}
	return msg
}
