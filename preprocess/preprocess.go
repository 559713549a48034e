package preprocess

import (
	"errors"
	"fmt"
	"maps"

	"github.com/gogpu/sdsl/source"
)

// Macro is a preprocessor definition.
//
// A macro with only Value is a raw variable substitution. Params make it a
// function-like macro whose body is Value. Func supplies replacement logic
// computed by the caller; it receives the invocation arguments, or nil when
// the name is used without a parenthesized argument list.
type Macro struct {
	Value  string
	Params []string
	Func   func(args []string) (string, error)
}

// IsFunction reports whether the macro expects an argument list.
func (m Macro) IsFunction() bool { return m.Params != nil }

// Define returns a raw substitution macro.
func Define(value string) Macro { return Macro{Value: value} }

// Options configures a Preprocessor.
type Options struct {
	// Macros are the predefined macros.
	Macros map[string]Macro

	// Evaluator evaluates #if and #elif conditions. Defaults to ExprEvaluator.
	Evaluator Evaluator

	// Strict reports unbound macro references in conditions instead of
	// treating them as 0, and #undef of names that are not defined.
	Strict bool

	// Phases overrides the default phase chain.
	Phases []Phase
}

// DefaultPhases returns the standard phase chain.
func DefaultPhases() []Phase {
	return []Phase{StripComments{}, Directives{}, ExpandMacros{}}
}

// Phase is one transformation of the preprocessing chain.
type Phase interface {
	Name() string
	Apply(ctx *Context, in FrameID) (FrameID, error)
}

// Context is the state shared by the phases of one run.
type Context struct {
	Arena     *Arena
	Macros    map[string]Macro
	Evaluator Evaluator
	Strict    bool
}

// Lookup returns the macro bound to name.
func (c *Context) Lookup(name string) (Macro, bool) {
	m, ok := c.Macros[name]
	return m, ok
}

// Result is the outcome of preprocessing one source.
type Result struct {
	Arena  *Arena
	Final  FrameID
	Macros map[string]Macro
}

// Text returns the fully preprocessed text.
func (r *Result) Text() string { return r.Arena.Text(r.Final) }

// Preprocessor runs a phase chain over source text.
// A Preprocessor holds no per-run state and may be used concurrently.
type Preprocessor struct {
	opts Options
}

// New creates a preprocessor.
func New(opts Options) *Preprocessor {
	if opts.Evaluator == nil {
		opts.Evaluator = ExprEvaluator{}
	}
	if opts.Phases == nil {
		opts.Phases = DefaultPhases()
	}
	return &Preprocessor{opts: opts}
}

// Run preprocesses src. The macro map given in Options is not modified;
// #define and #undef act on a per-run copy.
func (p *Preprocessor) Run(src string) (*Result, error) {
	ctx := &Context{
		Arena:     NewArena(src),
		Macros:    maps.Clone(p.opts.Macros),
		Evaluator: p.opts.Evaluator,
		Strict:    p.opts.Strict,
	}
	if ctx.Macros == nil {
		ctx.Macros = make(map[string]Macro)
	}

	cur := ctx.Arena.Root()
	for _, phase := range p.opts.Phases {
		next, err := phase.Apply(ctx, cur)
		if err != nil {
			var perr *Error
			if errors.As(err, &perr) && !perr.Pos.IsValid() {
				if pos, terr := ctx.Arena.Position(perr.Frame, perr.Offset); terr == nil {
					perr.Pos = pos
				}
			}
			return nil, fmt.Errorf("%s: %w", phase.Name(), err)
		}
		cur = next
	}
	return &Result{Arena: ctx.Arena, Final: cur, Macros: ctx.Macros}, nil
}

// Error is a preprocessing failure located in a frame.
type Error struct {
	Message string
	Frame   FrameID
	Offset  int
	Pos     source.Position // original-source position, filled by Run
	Err     error           // underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

func errorAt(frame FrameID, offset int, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Frame: frame, Offset: offset}
}
