package spirv

import (
	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/symbols"
)

// funcEmitter emits the body of one function.
type funcEmitter struct {
	*Backend
	fn *sema.Function

	// vars holds the Function storage pointers of parameters and locals.
	vars   map[*symbols.Symbol]uint32
	locals map[*ast.VarDecl]*symbols.Symbol

	// Branch targets of break and continue, innermost last.
	breaks    []uint32
	continues []uint32
}

func newFuncEmitter(b *Backend, fn *sema.Function) *funcEmitter {
	fe := &funcEmitter{
		Backend: b,
		fn:      fn,
		vars:    make(map[*symbols.Symbol]uint32),
		locals:  make(map[*ast.VarDecl]*symbols.Symbol),
	}
	if fn != nil {
		for _, sym := range fn.Locals {
			if d, ok := sym.Decl.(*ast.VarDecl); ok {
				fe.locals[d] = sym
			}
		}
	}
	return fe
}

// emitFunction emits the body of a function declared by declareFunction.
func (b *Backend) emitFunction(f *sema.Function) error {
	fn, ok := b.module.Lookup(f.Decl)
	if !ok {
		return emissionErrorf("function %s was not declared", f.QualifiedName())
	}
	result := b.typeID(f.Result)
	b.builder.AddFunctionID(fn.ID, fn.TypeID, result, FunctionControlNone)
	fe := newFuncEmitter(b, f)
	for i, p := range f.Params {
		id := b.builder.AddFunctionParameter(fn.ParamTypes[i])
		b.name(id, p.Name)
		fe.vars[p] = id
	}
	b.builder.AddLabel()
	if err := fe.block(f.Decl.Body); err != nil {
		return err
	}
	if !b.builder.Terminated() {
		if _, void := f.Result.(symbols.Void); void {
			b.builder.AddReturn()
		} else {
			b.builder.AddReturnValue(b.constant(OpConstantNull, result))
		}
	}
	b.builder.AddFunctionEnd()
	return b.err
}

func (fe *funcEmitter) block(blk *ast.Block) error {
	return fe.stmts(blk.Stmts)
}

// stmts emits a statement list. Statements following a terminator are
// unreachable and dropped.
func (fe *funcEmitter) stmts(list []ast.Stmt) error {
	for _, s := range list {
		if fe.builder.Terminated() {
			return nil
		}
		if err := fe.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fe *funcEmitter) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.Block:
		return fe.block(s)
	case *ast.DeclStmt:
		for _, v := range s.Vars {
			if err := fe.local(v); err != nil {
				return err
			}
		}
	case *ast.ExprStmt:
		_, err := fe.expr(s.X)
		return err
	case *ast.EmptyStmt:
	case *ast.IfStmt:
		return fe.ifStmt(s)
	case *ast.WhileStmt:
		return fe.loop(s.Attrs, s.Cond, nil, s.Body, false)
	case *ast.DoWhileStmt:
		return fe.loop(s.Attrs, s.Cond, nil, s.Body, true)
	case *ast.ForStmt:
		if s.Init != nil {
			if err := fe.stmt(s.Init); err != nil {
				return err
			}
		}
		return fe.loop(s.Attrs, s.Cond, s.Post, s.Body, false)
	case *ast.SwitchStmt:
		return fe.switchStmt(s)
	case *ast.BreakStmt:
		if len(fe.breaks) == 0 {
			return emissionErrorf("%s: break outside of a loop or switch", s.Span().Start)
		}
		fe.builder.AddBranch(fe.breaks[len(fe.breaks)-1])
	case *ast.ContinueStmt:
		if len(fe.continues) == 0 {
			return emissionErrorf("%s: continue outside of a loop", s.Span().Start)
		}
		fe.builder.AddBranch(fe.continues[len(fe.continues)-1])
	case *ast.DiscardStmt:
		fe.builder.AddKill()
	case *ast.ReturnStmt:
		if s.Value == nil {
			fe.builder.AddReturn()
			return nil
		}
		v, err := fe.exprAs(s.Value, fe.fn.Result)
		if err != nil {
			return err
		}
		fe.builder.AddReturnValue(v)
	default:
		return emissionErrorf("%s: unsupported statement %T", s.Span().Start, s)
	}
	return nil
}

func (fe *funcEmitter) local(v *ast.VarDecl) error {
	sym, ok := fe.locals[v]
	if !ok {
		return emissionErrorf("%s: local %s was not analyzed", v.Span().Start, v.Name)
	}
	if v.Qualifiers.Has(ast.QualStatic) {
		id, initialized := fe.staticLocal(sym, v)
		if initialized {
			return nil
		}
		return fe.initOnce(id, v.Init, sym.Type)
	}
	id := fe.builder.AddLocalVariable(fe.pointerTypeID(StorageClassFunction, sym.Type))
	fe.name(id, v.Name)
	fe.vars[sym] = id
	if v.Init == nil {
		return nil
	}
	init, err := fe.exprAs(v.Init, sym.Type)
	if err != nil {
		return err
	}
	fe.builder.AddStore(id, init)
	return nil
}

// initOnce stores init into the static variable id the first time the
// declaration is reached.
func (fe *funcEmitter) initOnce(id uint32, init ast.Expr, t symbols.Type) error {
	boolType := fe.typeID(symbols.BoolType)
	flag := fe.builder.AddVariableWithInit(fe.pointerTypeID(StorageClassPrivate, symbols.BoolType), StorageClassPrivate, fe.constant(OpConstantFalse, boolType))
	fe.globalOrder = append(fe.globalOrder, flag)

	done := fe.builder.AddLoad(boolType, flag)
	initL, merge := fe.builder.AllocID(), fe.builder.AllocID()
	fe.builder.AddSelectionMerge(merge, SelectionControlNone)
	fe.builder.AddBranchConditional(done, merge, initL)
	fe.builder.AddLabelID(initL)
	v, err := fe.exprAs(init, t)
	if err != nil {
		return err
	}
	fe.builder.AddStore(id, v)
	fe.builder.AddStore(flag, fe.constant(OpConstantTrue, boolType))
	fe.builder.AddBranch(merge)
	fe.builder.AddLabelID(merge)
	return nil
}

func selectionControl(attrs []*ast.Attribute) SelectionControl {
	for _, a := range attrs {
		switch a.Name {
		case "flatten":
			return SelectionControlFlatten
		case "branch":
			return SelectionControlDontFlatten
		}
	}
	return SelectionControlNone
}

func loopControl(attrs []*ast.Attribute) LoopControl {
	for _, a := range attrs {
		switch a.Name {
		case "unroll":
			return LoopControlUnroll
		case "loop":
			return LoopControlDontUnroll
		}
	}
	return LoopControlNone
}

func (fe *funcEmitter) ifStmt(s *ast.IfStmt) error {
	cond, err := fe.exprAs(s.Cond, symbols.BoolType)
	if err != nil {
		return err
	}
	thenL, merge := fe.builder.AllocID(), fe.builder.AllocID()
	elseL := merge
	if s.Else != nil {
		elseL = fe.builder.AllocID()
	}
	fe.builder.AddSelectionMerge(merge, selectionControl(s.Attrs))
	fe.builder.AddBranchConditional(cond, thenL, elseL)

	fe.builder.AddLabelID(thenL)
	if err := fe.stmt(s.Then); err != nil {
		return err
	}
	thenDone := fe.builder.Terminated()
	if !thenDone {
		fe.builder.AddBranch(merge)
	}
	elseDone := false
	if s.Else != nil {
		fe.builder.AddLabelID(elseL)
		if err := fe.stmt(s.Else); err != nil {
			return err
		}
		elseDone = fe.builder.Terminated()
		if !elseDone {
			fe.builder.AddBranch(merge)
		}
	}
	fe.builder.AddLabelID(merge)
	if thenDone && elseDone {
		fe.builder.AddUnreachable()
	}
	return nil
}

// loop emits while, for and do-while loops. The header block holds the
// merge instruction; pre-tested loops check the condition in the block
// after it, do-while loops in the continue block.
func (fe *funcEmitter) loop(attrs []*ast.Attribute, cond, post ast.Expr, body ast.Stmt, postTested bool) error {
	header, bodyL, cont, merge := fe.builder.AllocID(), fe.builder.AllocID(), fe.builder.AllocID(), fe.builder.AllocID()
	fe.builder.AddBranch(header)
	fe.builder.AddLabelID(header)
	fe.builder.AddLoopMerge(merge, cont, loopControl(attrs))
	if postTested || cond == nil {
		fe.builder.AddBranch(bodyL)
	} else {
		check := fe.builder.AllocID()
		fe.builder.AddBranch(check)
		fe.builder.AddLabelID(check)
		c, err := fe.exprAs(cond, symbols.BoolType)
		if err != nil {
			return err
		}
		fe.builder.AddBranchConditional(c, bodyL, merge)
	}

	fe.breaks = append(fe.breaks, merge)
	fe.continues = append(fe.continues, cont)
	fe.builder.AddLabelID(bodyL)
	if err := fe.stmt(body); err != nil {
		return err
	}
	if !fe.builder.Terminated() {
		fe.builder.AddBranch(cont)
	}
	fe.breaks = fe.breaks[:len(fe.breaks)-1]
	fe.continues = fe.continues[:len(fe.continues)-1]

	fe.builder.AddLabelID(cont)
	if postTested {
		c, err := fe.exprAs(cond, symbols.BoolType)
		if err != nil {
			return err
		}
		fe.builder.AddBranchConditional(c, header, merge)
	} else {
		if post != nil {
			if _, err := fe.expr(post); err != nil {
				return err
			}
		}
		fe.builder.AddBranch(header)
	}
	fe.builder.AddLabelID(merge)
	return nil
}

func (fe *funcEmitter) switchStmt(s *ast.SwitchStmt) error {
	sel, err := fe.expr(s.Tag)
	if err != nil {
		return err
	}
	merge := fe.builder.AllocID()
	labels := make([]uint32, len(s.Cases))
	def := merge
	var targets []uint32
	for i, c := range s.Cases {
		labels[i] = fe.builder.AllocID()
		if c.Values == nil {
			def = labels[i]
		}
		for _, v := range c.Values {
			n, ok := sema.ConstInt(v)
			if !ok {
				return emissionErrorf("%s: case label is not an integer constant", v.Span().Start)
			}
			targets = append(targets, uint32(n), labels[i])
		}
	}
	fe.builder.AddSelectionMerge(merge, selectionControl(s.Attrs))
	fe.builder.AddSwitch(sel, def, targets...)

	fe.breaks = append(fe.breaks, merge)
	for i, c := range s.Cases {
		fe.builder.AddLabelID(labels[i])
		if err := fe.stmts(c.Body); err != nil {
			return err
		}
		if fe.builder.Terminated() {
			continue
		}
		// Falling through reaches the next case.
		next := merge
		if i+1 < len(labels) {
			next = labels[i+1]
		}
		fe.builder.AddBranch(next)
	}
	fe.breaks = fe.breaks[:len(fe.breaks)-1]
	fe.builder.AddLabelID(merge)
	return nil
}
