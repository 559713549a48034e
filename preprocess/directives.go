package preprocess

import (
	"strings"
)

// Directives evaluates conditional-inclusion directives and records macro
// definitions. Lines in excluded regions and directive lines are removed,
// keeping their line terminators so that line structure is preserved.
// #pragma and #line directives in included regions are passed through.
type Directives struct{}

// Name implements Phase.
func (Directives) Name() string { return "directives" }

type condState struct {
	active  bool // this branch is being emitted
	taken   bool // some branch of this group has been emitted
	parent  bool // the enclosing group is active
	sawElse bool
	offset  int
}

// Apply implements Phase.
func (Directives) Apply(ctx *Context, in FrameID) (FrameID, error) {
	f, err := ctx.Arena.Frame(in)
	if err != nil {
		return NoFrame, err
	}
	text := f.Text
	var b frameBuilder
	var stack []condState
	active := func() bool { return len(stack) == 0 || stack[len(stack)-1].active }

	for lineStart := 0; lineStart < len(text); {
		lineEnd, next := logicalLine(text, lineStart)
		body := text[lineStart:lineEnd]
		trimmed := strings.TrimLeft(body, " \t")

		if !strings.HasPrefix(trimmed, "#") {
			if active() {
				b.copy(text, lineStart, next)
			} else {
				b.copy(text, lineEnd, next)
			}
			lineStart = next
			continue
		}

		dirOffset := lineStart + len(body) - len(trimmed)
		name, rest := splitDirective(trimmed[1:])
		rest = joinContinuations(rest)

		switch name {
		case "if", "ifdef", "ifndef":
			cond := false
			if active() {
				cond, err = evalCondition(ctx, in, dirOffset, name, rest)
				if err != nil {
					return NoFrame, err
				}
			}
			stack = append(stack, condState{active: active() && cond, taken: cond, parent: active(), offset: dirOffset})
		case "elif":
			if len(stack) == 0 {
				return NoFrame, errorAt(in, dirOffset, "#elif without #if")
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				return NoFrame, errorAt(in, dirOffset, "#elif after #else")
			}
			cond := false
			if top.parent && !top.taken {
				cond, err = evalCondition(ctx, in, dirOffset, "if", rest)
				if err != nil {
					return NoFrame, err
				}
			}
			top.active = top.parent && !top.taken && cond
			top.taken = top.taken || top.active
		case "else":
			if len(stack) == 0 {
				return NoFrame, errorAt(in, dirOffset, "#else without #if")
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				return NoFrame, errorAt(in, dirOffset, "duplicate #else")
			}
			top.sawElse = true
			top.active = top.parent && !top.taken
			top.taken = true
		case "endif":
			if len(stack) == 0 {
				return NoFrame, errorAt(in, dirOffset, "#endif without #if")
			}
			stack = stack[:len(stack)-1]
		case "define":
			if active() {
				if err := define(ctx, in, dirOffset, rest); err != nil {
					return NoFrame, err
				}
			}
		case "undef":
			if active() {
				id, tail := readIdent(strings.TrimSpace(rest))
				if id == "" || strings.TrimSpace(tail) != "" {
					return NoFrame, errorAt(in, dirOffset, "malformed #undef")
				}
				if _, ok := ctx.Macros[id]; !ok && ctx.Strict {
					return NoFrame, errorAt(in, dirOffset, "#undef of undefined macro %q", id)
				}
				delete(ctx.Macros, id)
			}
		case "error":
			if active() {
				return NoFrame, errorAt(in, dirOffset, "#error %s", strings.TrimSpace(rest))
			}
		case "pragma", "line":
			if active() {
				b.copy(text, lineStart, next)
				lineStart = next
				continue
			}
		case "":
			// null directive
		default:
			if active() {
				return NoFrame, errorAt(in, dirOffset, "unknown directive #%s", name)
			}
		}
		// Keep one newline per physical line consumed by the directive.
		for i := lineStart; i < next; i++ {
			if text[i] == '\n' {
				b.copy(text, i, i+1)
			}
		}
		lineStart = next
	}

	if len(stack) > 0 {
		return NoFrame, errorAt(in, stack[len(stack)-1].offset, "unterminated conditional directive")
	}
	return ctx.Arena.add(in, "directives", &b), nil
}

// logicalLine returns the end of the line starting at start (excluding the
// terminator) and the start of the next line. Backslash-newline
// continuations extend a directive line.
func logicalLine(text string, start int) (end, next int) {
	i := start
	for i < len(text) {
		if text[i] == '\n' {
			if i > start && text[i-1] == '\\' || i > start+1 && text[i-1] == '\r' && text[i-2] == '\\' {
				i++
				continue
			}
			return i, i + 1
		}
		i++
	}
	return len(text), len(text)
}

func joinContinuations(s string) string {
	s = strings.ReplaceAll(s, "\\\r\n", " ")
	return strings.ReplaceAll(s, "\\\n", " ")
}

func splitDirective(s string) (name, rest string) {
	s = strings.TrimLeft(s, " \t")
	name, rest = readIdent(s)
	return name, rest
}

func readIdent(s string) (id, rest string) {
	i := 0
	for i < len(s) && (isIdentByte(s[i]) || i > 0 && isDigit(s[i])) {
		i++
	}
	return s[:i], s[i:]
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func evalCondition(ctx *Context, frame FrameID, offset int, kind, rest string) (bool, error) {
	switch kind {
	case "ifdef", "ifndef":
		id, tail := readIdent(strings.TrimSpace(rest))
		if id == "" || strings.TrimSpace(tail) != "" {
			return false, errorAt(frame, offset, "malformed #%s", kind)
		}
		_, ok := ctx.Macros[id]
		return ok == (kind == "ifdef"), nil
	}
	expr := strings.TrimSpace(rest)
	if expr == "" {
		return false, errorAt(frame, offset, "#if with no expression")
	}
	v, err := ctx.Evaluator.Eval(expr, &Env{Lookup: ctx.Lookup, Strict: ctx.Strict})
	if err != nil {
		e := errorAt(frame, offset, "invalid #if expression: %v", err)
		e.Err = err
		return false, e
	}
	return v != 0, nil
}

func define(ctx *Context, frame FrameID, offset int, rest string) error {
	rest = strings.TrimLeft(rest, " \t")
	name, tail := readIdent(rest)
	if name == "" {
		return errorAt(frame, offset, "malformed #define: missing macro name")
	}
	var m Macro
	if strings.HasPrefix(tail, "(") {
		closeIdx := strings.IndexByte(tail, ')')
		if closeIdx < 0 {
			return errorAt(frame, offset, "malformed #define %s: missing ')' in parameter list", name)
		}
		params := []string{}
		if list := strings.TrimSpace(tail[1:closeIdx]); list != "" {
			for _, p := range strings.Split(list, ",") {
				p = strings.TrimSpace(p)
				if id, t := readIdent(p); id == "" || t != "" {
					return errorAt(frame, offset, "malformed #define %s: bad parameter %q", name, p)
				}
				params = append(params, p)
			}
		}
		m.Params = params
		tail = tail[closeIdx+1:]
	} else if tail != "" && tail[0] != ' ' && tail[0] != '\t' {
		return errorAt(frame, offset, "malformed #define %s", name)
	}
	m.Value = strings.TrimSpace(tail)
	ctx.Macros[name] = m
	return nil
}
