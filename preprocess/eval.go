package preprocess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Env gives a condition evaluator access to the macros defined so far.
type Env struct {
	Lookup func(name string) (Macro, bool)
	Strict bool
}

// Evaluator evaluates the expression of an #if or #elif directive.
type Evaluator interface {
	Eval(expr string, env *Env) (int64, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(expr string, env *Env) (int64, error)

// Eval implements Evaluator.
func (f EvaluatorFunc) Eval(expr string, env *Env) (int64, error) { return f(expr, env) }

// ErrUnbound is wrapped by errors about undefined identifiers in strict mode.
var ErrUnbound = errors.New("unbound macro")

// maxEvalDepth bounds macro expansion inside conditions.
const maxEvalDepth = 32

// ExprEvaluator evaluates C preprocessor integer expressions: integer
// literals, defined(NAME), macro names (expanded recursively), unary
// + - ! ~, the binary arithmetic, shift, relational, bitwise and logical
// operators, and ?:.
type ExprEvaluator struct{}

// Eval implements Evaluator.
func (ExprEvaluator) Eval(expr string, env *Env) (int64, error) {
	return evalDepth(expr, env, 0)
}

func evalDepth(expr string, env *Env, depth int) (int64, error) {
	if depth > maxEvalDepth {
		return 0, errors.New("macro expansion too deep")
	}
	toks, err := tokenizeCondition(expr)
	if err != nil {
		return 0, err
	}
	p := &condParser{toks: toks, env: env, depth: depth}
	v, err := p.ternary()
	if err != nil {
		return 0, err
	}
	if p.pos < len(p.toks) {
		return 0, fmt.Errorf("unexpected %q", p.toks[p.pos])
	}
	return v, nil
}

func tokenizeCondition(s string) ([]string, error) {
	var toks []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case isDigit(c):
			j := i
			for j < len(s) && (isIdentByte(s[j]) || isDigit(s[j])) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		case isIdentByte(c):
			id, _ := readIdent(s[i:])
			toks = append(toks, id)
			i += len(id)
		default:
			op := ""
			for _, cand := range []string{"<<", ">>", "<=", ">=", "==", "!=", "&&", "||"} {
				if strings.HasPrefix(s[i:], cand) {
					op = cand
					break
				}
			}
			if op == "" {
				if !strings.ContainsRune("+-*/%<>&|^!~?:()", rune(c)) {
					return nil, fmt.Errorf("unexpected character %q", c)
				}
				op = string(c)
			}
			toks = append(toks, op)
			i += len(op)
		}
	}
	return toks, nil
}

type condParser struct {
	toks  []string
	pos   int
	env   *Env
	depth int
}

func (p *condParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *condParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *condParser) expect(t string) error {
	if got := p.next(); got != t {
		return fmt.Errorf("expected %q, found %q", t, got)
	}
	return nil
}

func (p *condParser) ternary() (int64, error) {
	c, err := p.binary(0)
	if err != nil {
		return 0, err
	}
	if p.peek() != "?" {
		return c, nil
	}
	p.next()
	a, err := p.ternary()
	if err != nil {
		return 0, err
	}
	if err := p.expect(":"); err != nil {
		return 0, err
	}
	b, err := p.ternary()
	if err != nil {
		return 0, err
	}
	if c != 0 {
		return a, nil
	}
	return b, nil
}

var condPrecedence = map[string]int{
	"||": 1, "&&": 2, "|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *condParser) binary(minPrec int) (int64, error) {
	left, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		prec, ok := condPrecedence[op]
		if !ok || prec <= minPrec {
			return left, nil
		}
		p.next()
		right, err := p.binary(prec)
		if err != nil {
			return 0, err
		}
		left, err = applyCondOp(op, left, right)
		if err != nil {
			return 0, err
		}
	}
}

func applyCondOp(op string, a, b int64) (int64, error) {
	boolInt := func(v bool) int64 {
		if v {
			return 1
		}
		return 0
	}
	switch op {
	case "||":
		return boolInt(a != 0 || b != 0), nil
	case "&&":
		return boolInt(a != 0 && b != 0), nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "&":
		return a & b, nil
	case "==":
		return boolInt(a == b), nil
	case "!=":
		return boolInt(a != b), nil
	case "<":
		return boolInt(a < b), nil
	case ">":
		return boolInt(a > b), nil
	case "<=":
		return boolInt(a <= b), nil
	case ">=":
		return boolInt(a >= b), nil
	case "<<":
		return a << uint64(b&63), nil
	case ">>":
		return a >> uint64(b&63), nil
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/", "%":
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		if op == "/" {
			return a / b, nil
		}
		return a % b, nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

func (p *condParser) unary() (int64, error) {
	switch p.peek() {
	case "!", "~", "-", "+":
		op := p.next()
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "!":
			if v == 0 {
				return 1, nil
			}
			return 0, nil
		case "~":
			return ^v, nil
		case "-":
			return -v, nil
		}
		return v, nil
	}
	return p.primary()
}

func (p *condParser) primary() (int64, error) {
	tok := p.next()
	switch {
	case tok == "":
		return 0, errors.New("unexpected end of expression")
	case tok == "(":
		v, err := p.ternary()
		if err != nil {
			return 0, err
		}
		return v, p.expect(")")
	case tok == "defined":
		paren := p.peek() == "("
		if paren {
			p.next()
		}
		name := p.next()
		if name == "" || !isIdentByte(name[0]) {
			return 0, fmt.Errorf("defined requires a macro name, found %q", name)
		}
		if paren {
			if err := p.expect(")"); err != nil {
				return 0, err
			}
		}
		if _, ok := p.env.Lookup(name); ok {
			return 1, nil
		}
		return 0, nil
	case isDigit(tok[0]):
		return parseCondInt(tok)
	case isIdentByte(tok[0]):
		m, ok := p.env.Lookup(tok)
		if !ok {
			if p.env.Strict {
				return 0, fmt.Errorf("%w %q", ErrUnbound, tok)
			}
			return 0, nil
		}
		value := m.Value
		if m.Func != nil {
			v, err := m.Func(nil)
			if err != nil {
				return 0, err
			}
			value = v
		}
		if strings.TrimSpace(value) == "" {
			return 0, nil
		}
		return evalDepth(value, p.env, p.depth+1)
	}
	return 0, fmt.Errorf("unexpected %q", tok)
}

func parseCondInt(tok string) (int64, error) {
	t := strings.TrimRight(tok, "uUlL")
	v, err := strconv.ParseInt(t, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(t, 0, 64)
		if uerr != nil {
			return 0, fmt.Errorf("invalid integer %q", tok)
		}
		return int64(u), nil
	}
	return v, nil
}
