package sema

import (
	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/symbols"
)

// mode tells how an expression is used.
type mode uint8

const (
	modeRead mode = 1 << iota
	modeWrite

	modeReadWrite = modeRead | modeWrite
)

func (a *analyzer) checkBodies() {
	for _, g := range a.pendingInits {
		a.at(g.Decl)
		if g.Decl.Init != nil {
			a.expr(g.Decl.Init, g.Type, modeRead)
			a.coerce(g.Decl.Init, g.Type, "initializer")
		}
	}
	for _, f := range a.prog.Functions {
		if f.Decl.Body != nil {
			a.at(f.Decl)
			a.checkFunction(f)
		}
	}
	a.at(nil)
}

func (a *analyzer) checkFunction(f *Function) {
	a.fn = f
	a.loopDepth, a.switchDepth = 0, 0
	a.table.Push(symbols.FunctionScope)
	for _, p := range f.Params {
		a.report(a.table.Declare(p))
	}
	a.block(f.Decl.Body)
	a.table.Pop()
	a.fn = nil
}

func (a *analyzer) block(b *ast.Block) {
	a.table.Push(symbols.BlockScope)
	for _, s := range b.Stmts {
		a.stmt(s)
	}
	a.table.Pop()
}

// scoped checks a statement nested in a control statement in its own scope.
func (a *analyzer) scoped(s ast.Stmt) {
	if b, ok := s.(*ast.Block); ok {
		a.block(b)
		return
	}
	a.table.Push(symbols.BlockScope)
	a.stmt(s)
	a.table.Pop()
}

func (a *analyzer) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Block:
		a.block(s)
	case *ast.DeclStmt:
		for _, v := range s.Vars {
			a.local(v)
		}
	case *ast.ExprStmt:
		a.expr(s.X, nil, modeRead)
	case *ast.EmptyStmt:
	case *ast.IfStmt:
		a.condition(s.Cond, "if condition")
		a.scoped(s.Then)
		if s.Else != nil {
			a.scoped(s.Else)
		}
	case *ast.ForStmt:
		a.table.Push(symbols.BlockScope)
		if s.Init != nil {
			a.stmt(s.Init)
		}
		if s.Cond != nil {
			a.condition(s.Cond, "for condition")
		}
		if s.Post != nil {
			a.expr(s.Post, nil, modeRead)
		}
		a.loop(s.Body)
		a.table.Pop()
	case *ast.WhileStmt:
		a.condition(s.Cond, "while condition")
		a.loop(s.Body)
	case *ast.DoWhileStmt:
		a.loop(s.Body)
		a.condition(s.Cond, "do-while condition")
	case *ast.SwitchStmt:
		a.switchStmt(s)
	case *ast.BreakStmt:
		if a.loopDepth == 0 && a.switchDepth == 0 {
			a.errorf(s.Span(), "break outside of a loop or switch")
		}
	case *ast.ContinueStmt:
		if a.loopDepth == 0 {
			a.errorf(s.Span(), "continue outside of a loop")
		}
	case *ast.DiscardStmt:
	case *ast.ReturnStmt:
		a.returnStmt(s)
	default:
		a.errorf(s.Span(), "unsupported statement %T", s)
	}
}

func (a *analyzer) loop(body ast.Stmt) {
	a.loopDepth++
	a.scoped(body)
	a.loopDepth--
}

func (a *analyzer) switchStmt(s *ast.SwitchStmt) {
	t := a.expr(s.Tag, nil, modeRead)
	if sc, ok := t.(symbols.Scalar); !symbols.IsUndefined(t) && (!ok || !sc.Kind.IsInteger()) {
		a.report(&TypeMismatchError{Span: s.Tag.Span(), Context: "switch selector", Want: symbols.IntType, Got: t})
	}
	seen := make(map[int64]bool)
	defaults := 0
	a.switchDepth++
	for _, c := range s.Cases {
		if c.Values == nil {
			defaults++
			if defaults > 1 {
				a.errorf(c.Span(), "multiple default labels in switch")
			}
		}
		for _, v := range c.Values {
			a.expr(v, t, modeRead)
			n, ok := a.constInt(v)
			if !ok {
				a.errorf(v.Span(), "case label must be an integer constant")
				continue
			}
			if seen[n] {
				a.errorf(v.Span(), "duplicate case label %d", n)
			}
			seen[n] = true
		}
		a.table.Push(symbols.BlockScope)
		for _, st := range c.Body {
			a.stmt(st)
		}
		a.table.Pop()
	}
	a.switchDepth--
}

func (a *analyzer) returnStmt(s *ast.ReturnStmt) {
	result := a.fn.Result
	_, isVoid := result.(symbols.Void)
	switch {
	case s.Value == nil && !isVoid:
		a.report(&TypeMismatchError{Span: s.Span(), Context: "return", Want: result, Got: symbols.VoidType})
	case s.Value != nil && isVoid:
		a.expr(s.Value, nil, modeRead)
		a.errorf(s.Value.Span(), "%s returns no value", a.fn.Name)
	case s.Value != nil:
		a.expr(s.Value, result, modeRead)
		a.coerce(s.Value, result, "return")
	}
}

func (a *analyzer) local(v *ast.VarDecl) {
	const allowed = ast.QualStatic | ast.QualConst
	if v.Qualifiers&^allowed != 0 {
		a.errorf(v.Span(), "invalid qualifier on local variable %s", v.Name)
	}
	t := a.varType(v.Type, v.ArrayDims)
	kind := symbols.Variable
	if v.Qualifiers.Has(ast.QualConst) {
		kind = symbols.Constant
		if v.Init == nil {
			a.errorf(v.Span(), "constant %s must be initialized", v.Name)
		}
	}
	if v.Init != nil {
		a.expr(v.Init, t, modeRead)
		a.coerce(v.Init, t, "initializer")
	}
	sym := &symbols.Symbol{Name: v.Name, Kind: kind, Type: t, Span: v.Span(), Decl: v}
	if err := a.table.Declare(sym); err != nil {
		a.report(err)
		return
	}
	a.fn.Locals = append(a.fn.Locals, sym)
}

// condition checks an expression used as a branch condition.
func (a *analyzer) condition(e ast.Expr, ctx string) {
	t := a.expr(e, symbols.BoolType, modeRead)
	if symbols.IsUndefined(t) {
		return
	}
	if _, ok := t.(symbols.Scalar); !ok {
		a.report(&TypeMismatchError{Span: e.Span(), Context: ctx, Want: symbols.BoolType, Got: t})
	}
}

// coerce checks that e converts implicitly to to, warns on truncation and
// gives untyped literals the target element kind.
func (a *analyzer) coerce(e ast.Expr, to symbols.Type, ctx string) {
	from := e.Type()
	switch classify(from, to) {
	case convInvalid:
		a.report(&TypeMismatchError{Span: e.Span(), Context: ctx, Want: to, Got: from})
		return
	case convTruncate:
		a.warnf(e.Span(), "implicit truncation of vector type %s to %s", from, to)
	}
	if s, ok := symbols.ScalarOf(to); ok {
		retypeLiteral(e, s.Kind)
	}
}
