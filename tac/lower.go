package tac

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/symbols"
	"github.com/gogpu/sdsl/token"
)

type loopLabels struct {
	brk, cont NamedRegister
	loop      bool // false for switch, which only takes break
}

// Lowerer allocates temporaries and labels. Names keep counting across
// calls to Lower on the same Lowerer.
type Lowerer struct {
	temps  int
	labels int

	loops   []loopLabels
	yield   func(Operation, error) bool
	stopped bool
	last    Register // result of the last emitted operation
}

// NewLowerer returns a Lowerer whose first temporary is T0.
func NewLowerer() *Lowerer { return &Lowerer{} }

// Lower returns the operations evaluating node, produced as the sequence
// is consumed. node is an expression, a statement or a function
// declaration. For an expression the last operation defines its value.
// The sequence can be ranged over once; later ranges yield ErrConsumed.
func (l *Lowerer) Lower(node ast.Node) iter.Seq2[Operation, error] {
	var consumed atomic.Bool
	return func(yield func(Operation, error) bool) {
		if consumed.Swap(true) {
			yield(Operation{}, ErrConsumed)
			return
		}
		l.yield, l.stopped, l.loops, l.last = yield, false, nil, nil
		defer func() { l.yield = nil }()
		if err := l.node(node); err != nil && !l.stopped {
			yield(Operation{}, err)
		}
	}
}

// LowerFunction lowers the body of fn into a snippet named after it.
func LowerFunction(fn *ast.FuncDecl) (*Snippet, error) {
	s := NewSnippet(fn.Name)
	for op, err := range NewLowerer().Lower(fn) {
		if err != nil {
			return nil, fmt.Errorf("lowering %s: %w", fn.Name, err)
		}
		s.Add(op)
	}
	return s, nil
}

func (l *Lowerer) emit(op Operation) {
	if l.stopped {
		return
	}
	if op.Result != nil && op.Op != OpStoreIdx && op.Op != OpStoreMem {
		l.last = op.Result
	}
	if !l.yield(op, nil) {
		l.stopped = true
	}
}

func (l *Lowerer) temp(t symbols.Type) NamedRegister {
	r := NamedRegister{Name: "T" + strconv.Itoa(l.temps), Type: t}
	l.temps++
	return r
}

func (l *Lowerer) label() NamedRegister {
	r := NamedRegister{Name: "L" + strconv.Itoa(l.labels)}
	l.labels++
	return r
}

func (l *Lowerer) node(n ast.Node) error {
	switch n := n.(type) {
	case *ast.FuncDecl:
		if n.Body == nil {
			return nil
		}
		return l.stmt(n.Body)
	case ast.Stmt:
		return l.stmt(n)
	case ast.Expr:
		r, err := l.expr(n)
		if err != nil {
			return err
		}
		if !l.defined(r) {
			l.emit(Operation{Result: l.temp(n.Type()), Op: OpCopy, Left: r})
		}
		return nil
	}
	return &LoweringGapError{Node: n}
}

// defined reports whether the last emitted operation produced r.
func (l *Lowerer) defined(r Register) bool {
	return l.last != nil && l.last == r
}

// ----------------------------------------------------------------------------
// Statements

func (l *Lowerer) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.Block:
		for _, st := range s.Stmts {
			if err := l.stmt(st); err != nil {
				return err
			}
		}
		return nil
	case *ast.DeclStmt:
		for _, v := range s.Vars {
			dst := NamedRegister{Name: v.Name, Type: typeOf(v.Type)}
			if v.Init == nil {
				l.emit(Operation{Result: dst, Op: OpDecl})
				continue
			}
			r, err := l.expr(v.Init)
			if err != nil {
				return err
			}
			l.emit(Operation{Result: dst, Op: OpCopy, Left: r})
		}
		return nil
	case *ast.ExprStmt:
		_, err := l.expr(s.X)
		return err
	case *ast.EmptyStmt:
		return nil
	case *ast.IfStmt:
		return l.ifStmt(s)
	case *ast.WhileStmt:
		begin, end := l.label(), l.label()
		l.emit(Operation{Op: OpLabel, Left: begin})
		if err := l.branchIfFalse(s.Cond, end); err != nil {
			return err
		}
		if err := l.loopBody(s.Body, end, begin); err != nil {
			return err
		}
		l.emit(Operation{Op: OpGoto, Left: begin})
		l.emit(Operation{Op: OpLabel, Left: end})
		return nil
	case *ast.DoWhileStmt:
		begin, cont, end := l.label(), l.label(), l.label()
		l.emit(Operation{Op: OpLabel, Left: begin})
		if err := l.loopBody(s.Body, end, cont); err != nil {
			return err
		}
		l.emit(Operation{Op: OpLabel, Left: cont})
		c, err := l.expr(s.Cond)
		if err != nil {
			return err
		}
		l.emit(Operation{Op: OpIf, Left: c, Right: begin})
		l.emit(Operation{Op: OpLabel, Left: end})
		return nil
	case *ast.ForStmt:
		return l.forStmt(s)
	case *ast.SwitchStmt:
		return l.switchStmt(s)
	case *ast.BreakStmt:
		if len(l.loops) == 0 {
			return errors.New("tac: break outside of a loop or switch")
		}
		l.emit(Operation{Op: OpGoto, Left: l.loops[len(l.loops)-1].brk})
		return nil
	case *ast.ContinueStmt:
		for i := len(l.loops) - 1; i >= 0; i-- {
			if l.loops[i].loop {
				l.emit(Operation{Op: OpGoto, Left: l.loops[i].cont})
				return nil
			}
		}
		return errors.New("tac: continue outside of a loop")
	case *ast.DiscardStmt:
		l.emit(Operation{Op: OpDiscard})
		return nil
	case *ast.ReturnStmt:
		if s.Value == nil {
			l.emit(Operation{Op: OpReturn})
			return nil
		}
		r, err := l.expr(s.Value)
		if err != nil {
			return err
		}
		l.emit(Operation{Op: OpReturn, Left: r})
		return nil
	}
	return &LoweringGapError{Node: s}
}

func (l *Lowerer) branchIfFalse(cond ast.Expr, target NamedRegister) error {
	c, err := l.expr(cond)
	if err != nil {
		return err
	}
	l.emit(Operation{Op: OpIfFalse, Left: c, Right: target})
	return nil
}

func (l *Lowerer) loopBody(body ast.Stmt, brk, cont NamedRegister) error {
	l.loops = append(l.loops, loopLabels{brk: brk, cont: cont, loop: true})
	err := l.stmt(body)
	l.loops = l.loops[:len(l.loops)-1]
	return err
}

func (l *Lowerer) ifStmt(s *ast.IfStmt) error {
	els := l.label()
	if err := l.branchIfFalse(s.Cond, els); err != nil {
		return err
	}
	if err := l.stmt(s.Then); err != nil {
		return err
	}
	if s.Else == nil {
		l.emit(Operation{Op: OpLabel, Left: els})
		return nil
	}
	end := l.label()
	l.emit(Operation{Op: OpGoto, Left: end})
	l.emit(Operation{Op: OpLabel, Left: els})
	if err := l.stmt(s.Else); err != nil {
		return err
	}
	l.emit(Operation{Op: OpLabel, Left: end})
	return nil
}

func (l *Lowerer) forStmt(s *ast.ForStmt) error {
	if s.Init != nil {
		if err := l.stmt(s.Init); err != nil {
			return err
		}
	}
	begin, cont, end := l.label(), l.label(), l.label()
	l.emit(Operation{Op: OpLabel, Left: begin})
	if s.Cond != nil {
		if err := l.branchIfFalse(s.Cond, end); err != nil {
			return err
		}
	}
	if err := l.loopBody(s.Body, end, cont); err != nil {
		return err
	}
	l.emit(Operation{Op: OpLabel, Left: cont})
	if s.Post != nil {
		if _, err := l.expr(s.Post); err != nil {
			return err
		}
	}
	l.emit(Operation{Op: OpGoto, Left: begin})
	l.emit(Operation{Op: OpLabel, Left: end})
	return nil
}

func (l *Lowerer) switchStmt(s *ast.SwitchStmt) error {
	tag, err := l.expr(s.Tag)
	if err != nil {
		return err
	}
	end := l.label()
	targets := make([]NamedRegister, len(s.Cases))
	fallback := end
	for i, c := range s.Cases {
		targets[i] = l.label()
		if c.Values == nil {
			fallback = targets[i]
		}
		for _, v := range c.Values {
			r, err := l.expr(v)
			if err != nil {
				return err
			}
			t := l.temp(symbols.BoolType)
			l.emit(Operation{Result: t, Op: Op(ast.OpEqual), Left: tag, Right: r})
			l.emit(Operation{Op: OpIf, Left: t, Right: targets[i]})
		}
	}
	l.emit(Operation{Op: OpGoto, Left: fallback})

	l.loops = append(l.loops, loopLabels{brk: end})
	defer func() { l.loops = l.loops[:len(l.loops)-1] }()
	for i, c := range s.Cases {
		l.emit(Operation{Op: OpLabel, Left: targets[i]})
		for _, st := range c.Body {
			if err := l.stmt(st); err != nil {
				return err
			}
		}
	}
	l.emit(Operation{Op: OpLabel, Left: end})
	return nil
}

// ----------------------------------------------------------------------------
// Expressions

func (l *Lowerer) expr(e ast.Expr) (Register, error) {
	switch e := e.(type) {
	case *ast.IntLit, *ast.FloatLit, *ast.BoolLit:
		return literal(e)
	case *ast.StringLit:
		return NamedRegister{Name: e.Text}, nil
	case *ast.Ident:
		return NamedRegister{Name: e.Name, Type: e.Type()}, nil
	case *ast.MemberExpr:
		if id, ok := e.X.(*ast.Ident); ok && id.Name == "streams" && e.Symbol != nil {
			return NamedRegister{Name: "streams." + e.Name, Type: e.Type()}, nil
		}
		x, err := l.expr(e.X)
		if err != nil {
			return nil, err
		}
		t := l.temp(e.Type())
		l.emit(Operation{Result: t, Op: OpMember, Left: x, Right: NamedRegister{Name: e.Name}})
		return t, nil
	case *ast.IndexExpr:
		x, err := l.expr(e.X)
		if err != nil {
			return nil, err
		}
		i, err := l.expr(e.Index)
		if err != nil {
			return nil, err
		}
		t := l.temp(e.Type())
		l.emit(Operation{Result: t, Op: OpIndex, Left: x, Right: i})
		return t, nil
	case *ast.UnaryExpr:
		x, err := l.expr(e.X)
		if err != nil {
			return nil, err
		}
		var op Op
		switch e.Op {
		case token.Plus:
			return x, nil
		case token.Minus:
			op = OpNeg
		case token.Bang:
			op = OpNot
		case token.Tilde:
			op = OpBitNot
		default:
			return nil, &LoweringGapError{Node: e}
		}
		t := l.temp(e.Type())
		l.emit(Operation{Result: t, Op: op, Left: x})
		return t, nil
	case *ast.IncDecExpr:
		return l.incDec(e)
	case *ast.BinaryExpr:
		x, err := l.expr(e.X)
		if err != nil {
			return nil, err
		}
		y, err := l.expr(e.Y)
		if err != nil {
			return nil, err
		}
		t := l.temp(e.Type())
		l.emit(Operation{Result: t, Op: Op(e.Op), Left: x, Right: y})
		return t, nil
	case *ast.ConditionalExpr:
		return l.conditional(e)
	case *ast.AssignExpr:
		return l.assign(e)
	case *ast.CallExpr:
		name, ok := calleeName(e.Fn)
		if !ok {
			return nil, &LoweringGapError{Node: e.Fn}
		}
		return l.call(name, e.Args, e.Type())
	case *ast.ConstructExpr:
		return l.call(e.TypeRef.String(), e.Args, e.Type())
	case *ast.CastExpr:
		return l.call("("+e.To.String()+")", []ast.Expr{e.X}, e.Type())
	}
	return nil, &LoweringGapError{Node: e}
}

func calleeName(fn ast.Expr) (string, bool) {
	switch fn := fn.(type) {
	case *ast.Ident:
		return fn.Name, true
	case *ast.MemberExpr:
		if x, ok := calleeName(fn.X); ok {
			return x + "." + fn.Name, true
		}
	}
	return "", false
}

func (l *Lowerer) call(name string, args []ast.Expr, result symbols.Type) (Register, error) {
	regs := make([]Register, len(args))
	for i, a := range args {
		r, err := l.expr(a)
		if err != nil {
			return nil, err
		}
		regs[i] = r
	}
	for _, r := range regs {
		l.emit(Operation{Op: OpParam, Left: r})
	}
	op := Operation{Op: OpCall, Left: NamedRegister{Name: name}, Right: ValueRegister[int64]{Value: int64(len(args))}}
	if _, void := result.(symbols.Void); void {
		l.emit(op)
		return NamedRegister{Name: name}, nil
	}
	t := l.temp(result)
	op.Result = t
	l.emit(op)
	return t, nil
}

func (l *Lowerer) conditional(e *ast.ConditionalExpr) (Register, error) {
	c, err := l.expr(e.Cond)
	if err != nil {
		return nil, err
	}
	t := l.temp(e.Type())
	els, end := l.label(), l.label()
	l.emit(Operation{Op: OpIfFalse, Left: c, Right: els})
	x, err := l.expr(e.Then)
	if err != nil {
		return nil, err
	}
	l.emit(Operation{Result: t, Op: OpCopy, Left: x})
	l.emit(Operation{Op: OpGoto, Left: end})
	l.emit(Operation{Op: OpLabel, Left: els})
	y, err := l.expr(e.Else)
	if err != nil {
		return nil, err
	}
	l.emit(Operation{Result: t, Op: OpCopy, Left: y})
	l.emit(Operation{Op: OpLabel, Left: end})
	return t, nil
}

func (l *Lowerer) assign(e *ast.AssignExpr) (Register, error) {
	v, err := l.expr(e.RHS)
	if err != nil {
		return nil, err
	}
	if e.Op != "" {
		cur, err := l.expr(e.LHS)
		if err != nil {
			return nil, err
		}
		t := l.temp(e.Type())
		l.emit(Operation{Result: t, Op: Op(e.Op), Left: cur, Right: v})
		v = t
	}
	if err := l.store(e.LHS, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (l *Lowerer) incDec(e *ast.IncDecExpr) (Register, error) {
	cur, err := l.expr(e.X)
	if err != nil {
		return nil, err
	}
	op := Op(ast.OpAdd)
	if e.Op == token.MinusMinus {
		op = Op(ast.OpSub)
	}
	old := cur
	if !e.Prefix {
		o := l.temp(e.Type())
		l.emit(Operation{Result: o, Op: OpCopy, Left: cur})
		old = o
	}
	t := l.temp(e.Type())
	l.emit(Operation{Result: t, Op: op, Left: old, Right: ValueRegister[int64]{Value: 1}})
	if err := l.store(e.X, t); err != nil {
		return nil, err
	}
	if e.Prefix {
		return t, nil
	}
	return old, nil
}

// store writes v to the lvalue e. Stores into a member or element of a
// nested value read the enclosing value, update it and store it back.
func (l *Lowerer) store(e ast.Expr, v Register) error {
	switch e := e.(type) {
	case *ast.Ident:
		l.emit(Operation{Result: NamedRegister{Name: e.Name, Type: e.Type()}, Op: OpCopy, Left: v})
		return nil
	case *ast.MemberExpr:
		if id, ok := e.X.(*ast.Ident); ok && id.Name == "streams" && e.Symbol != nil {
			l.emit(Operation{Result: NamedRegister{Name: "streams." + e.Name, Type: e.Type()}, Op: OpCopy, Left: v})
			return nil
		}
		return l.storeInto(e.X, OpStoreMem, NamedRegister{Name: e.Name}, v)
	case *ast.IndexExpr:
		i, err := l.expr(e.Index)
		if err != nil {
			return err
		}
		return l.storeInto(e.X, OpStoreIdx, i, v)
	}
	return &LoweringGapError{Node: e}
}

func (l *Lowerer) storeInto(parent ast.Expr, op Op, key, v Register) error {
	base, err := l.expr(parent)
	if err != nil {
		return err
	}
	l.emit(Operation{Result: base, Op: op, Left: key, Right: v})
	if _, direct := parent.(*ast.Ident); direct {
		return nil
	}
	if n, ok := base.(NamedRegister); ok && strings.HasPrefix(n.Name, "streams.") {
		return nil
	}
	return l.store(parent, base)
}

// literal converts a literal to an immediate of its analyzed type, or of
// its default type when the tree has not been analyzed.
func literal(e ast.Expr) (Register, error) {
	t := e.Type()
	kind := symbols.Int
	if s, ok := t.(symbols.Scalar); ok {
		kind = s.Kind
	}
	switch e := e.(type) {
	case *ast.BoolLit:
		return ValueRegister[bool]{Value: e.Value, Type: symbols.BoolType}, nil
	case *ast.FloatLit:
		f, err := strconv.ParseFloat(strings.TrimRight(e.Text, "fFhHlL"), 64)
		if err != nil {
			return nil, fmt.Errorf("tac: %s: %w", e.Span().Start, err)
		}
		if !kind.IsFloat() {
			kind = symbols.Float
		}
		return ValueRegister[float64]{Value: f, Type: symbols.Scalar{Kind: kind}}, nil
	case *ast.IntLit:
		text := strings.TrimRight(e.Text, "uUlL")
		u, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("tac: %s: %w", e.Span().Start, err)
		}
		if symbols.IsUndefined(t) && strings.ContainsAny(e.Text[len(text):], "uU") {
			kind = symbols.UInt
		}
		switch {
		case kind.IsFloat():
			return ValueRegister[float64]{Value: float64(u), Type: t}, nil
		case kind == symbols.UInt:
			return ValueRegister[uint64]{Value: u, Type: symbols.UIntType}, nil
		}
		return ValueRegister[int64]{Value: int64(u), Type: symbols.IntType}, nil
	}
	return nil, &LoweringGapError{Node: e}
}

func typeOf(ref *ast.TypeRef) symbols.Type {
	if ref == nil || ref.Resolved == nil {
		return symbols.Undefined{}
	}
	return ref.Resolved
}
