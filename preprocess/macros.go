package preprocess

import (
	"fmt"
	"slices"
	"strings"
)

// maxExpansionDepth bounds nested macro rescans.
const maxExpansionDepth = 64

// ExpandMacros substitutes bound macro names in the frame text.
//
// Names are matched on identifier boundaries; when several bound names
// share a prefix the longest one that forms a whole identifier wins, so
// "ColorBias" is never expanded as "Color" followed by "Bias". Expansions are
// rescanned for further macros, but a macro is never expanded inside its
// own expansion. Text inside string and character literals is left alone.
type ExpandMacros struct{}

// Name implements Phase.
func (ExpandMacros) Name() string { return "expand macros" }

// Apply implements Phase.
func (ExpandMacros) Apply(ctx *Context, in FrameID) (FrameID, error) {
	f, err := ctx.Arena.Frame(in)
	if err != nil {
		return NoFrame, err
	}
	text := f.Text
	var b frameBuilder
	e := &expander{ctx: ctx}
	start := 0
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '"' || c == '\'':
			i = skipLiteral(text, i)
		case c == '#' && atLineStart(text, i):
			// directives passed through by an earlier phase are not expanded
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case isDigit(c):
			for i < len(text) && (isIdentByte(text[i]) || isDigit(text[i]) || text[i] == '.') {
				i++
			}
		case isIdentByte(c):
			name := matchName(text[i:], ctx.Macros)
			if name == "" {
				id, _ := readIdent(text[i:])
				i += len(id)
				continue
			}
			m := ctx.Macros[name]
			out, end, ok, err := e.invoke(text, i, name, m, nil, 0)
			if err != nil {
				return NoFrame, errorAt(in, i, "%v", err)
			}
			if !ok {
				i += len(name)
				continue
			}
			b.copy(text, start, i)
			if out == "" {
				// keep the token boundary and something to map diagnostics to
				out = " "
			}
			b.synth(out, i, end)
			i, start = end, end
		default:
			i++
		}
	}
	b.copy(text, start, len(text))
	return ctx.Arena.add(in, "expand macros", &b), nil
}

func atLineStart(text string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch text[j] {
		case ' ', '\t':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// matchName returns the longest bound macro name that is a whole-identifier
// prefix of s, or "".
func matchName(s string, macros map[string]Macro) string {
	id, _ := readIdent(s)
	if _, ok := macros[id]; ok {
		return id
	}
	return ""
}

type expander struct {
	ctx *Context
}

// invoke expands macro m named name found at text[i:]. It returns the
// replacement, the end of the consumed invocation and whether an expansion
// happened (a function-like macro without arguments is left alone).
func (e *expander) invoke(text string, i int, name string, m Macro, disabled []string, depth int) (string, int, bool, error) {
	end := i + len(name)
	var args []string
	hasArgs := false
	if m.IsFunction() || m.Func != nil {
		j := end
		for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
			j++
		}
		if j < len(text) && text[j] == '(' {
			var err error
			args, end, err = splitArgs(text, j)
			if err != nil {
				return "", 0, false, fmt.Errorf("macro %s: %w", name, err)
			}
			hasArgs = true
		} else if m.IsFunction() {
			return "", 0, false, nil
		}
	}

	var body string
	switch {
	case m.Func != nil:
		var callArgs []string
		if hasArgs {
			callArgs = args
		}
		v, err := m.Func(callArgs)
		if err != nil {
			return "", 0, false, fmt.Errorf("macro %s: %w", name, err)
		}
		body = v
	case m.IsFunction():
		if len(args) == 1 && strings.TrimSpace(args[0]) == "" && len(m.Params) == 0 {
			args = nil
		}
		if len(args) != len(m.Params) {
			return "", 0, false, fmt.Errorf("macro %s expects %d arguments, got %d", name, len(m.Params), len(args))
		}
		bind := make(map[string]Macro, len(args))
		for k, p := range m.Params {
			bind[p] = Macro{Value: strings.TrimSpace(args[k])}
		}
		body = substitute(m.Value, bind)
	default:
		body = m.Value
	}

	out, err := e.rescan(body, append(slices.Clip(disabled), name), depth+1)
	if err != nil {
		return "", 0, false, err
	}
	return out, end, true, nil
}

// rescan expands macros inside an expansion result.
func (e *expander) rescan(text string, disabled []string, depth int) (string, error) {
	if depth > maxExpansionDepth {
		return "", fmt.Errorf("macro expansion too deep")
	}
	var sb strings.Builder
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '"' || c == '\'':
			j := skipLiteral(text, i)
			sb.WriteString(text[i:j])
			i = j
		case isDigit(c):
			j := i
			for j < len(text) && (isIdentByte(text[j]) || isDigit(text[j]) || text[j] == '.') {
				j++
			}
			sb.WriteString(text[i:j])
			i = j
		case isIdentByte(c):
			id, _ := readIdent(text[i:])
			m, ok := e.ctx.Macros[id]
			if !ok || slices.Contains(disabled, id) {
				sb.WriteString(id)
				i += len(id)
				continue
			}
			out, end, expanded, err := e.invoke(text, i, id, m, disabled, depth)
			if err != nil {
				return "", err
			}
			if !expanded {
				sb.WriteString(id)
				i += len(id)
				continue
			}
			sb.WriteString(out)
			i = end
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

// substitute replaces whole-identifier occurrences of the bound names.
func substitute(text string, bind map[string]Macro) string {
	var sb strings.Builder
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '"' || c == '\'':
			j := skipLiteral(text, i)
			sb.WriteString(text[i:j])
			i = j
		case isIdentByte(c):
			id, _ := readIdent(text[i:])
			if m, ok := bind[id]; ok {
				sb.WriteString(m.Value)
			} else {
				sb.WriteString(id)
			}
			i += len(id)
		case isDigit(c):
			j := i
			for j < len(text) && (isIdentByte(text[j]) || isDigit(text[j])) {
				j++
			}
			sb.WriteString(text[i:j])
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// splitArgs parses a parenthesized, comma-separated argument list starting
// at text[open] == '('. It returns the arguments and the offset past ')'.
func splitArgs(text string, open int) ([]string, int, error) {
	depth := 0
	var args []string
	start := open + 1
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '"', '\'':
			i = skipLiteral(text, i) - 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = append(args, text[start:i])
				return args, i + 1, nil
			}
		case ',':
			if depth == 1 {
				args = append(args, text[start:i])
				start = i + 1
			}
		}
	}
	return nil, 0, fmt.Errorf("unterminated argument list")
}
