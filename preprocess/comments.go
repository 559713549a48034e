package preprocess

// StripComments replaces every comment outside string and character
// literals with a single space. An unterminated block comment is an error.
// Running it on its own output is a no-op.
type StripComments struct{}

// Name implements Phase.
func (StripComments) Name() string { return "strip comments" }

// Apply implements Phase.
func (StripComments) Apply(ctx *Context, in FrameID) (FrameID, error) {
	f, err := ctx.Arena.Frame(in)
	if err != nil {
		return NoFrame, err
	}
	text := f.Text
	var b frameBuilder
	start := 0
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '"' || c == '\'':
			i = skipLiteral(text, i)
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			b.copy(text, start, i)
			end := i + 2
			for end < len(text) && text[end] != '\n' {
				end++
			}
			b.synth(" ", i, end)
			i, start = end, end
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			b.copy(text, start, i)
			end := i + 2
			closed := false
			for end+1 < len(text) {
				if text[end] == '*' && text[end+1] == '/' {
					closed = true
					break
				}
				end++
			}
			if !closed {
				return NoFrame, errorAt(in, i, "unterminated block comment")
			}
			end += 2
			b.synth(" ", i, end)
			i, start = end, end
		default:
			i++
		}
	}
	b.copy(text, start, len(text))
	return ctx.Arena.add(in, "strip comments", &b), nil
}

// skipLiteral returns the offset just past the string or character literal
// starting at i. An unterminated literal ends at the end of its line.
func skipLiteral(text string, i int) int {
	quote := text[i]
	i++
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		case '\n':
			return i
		}
		i++
	}
	return len(text)
}
