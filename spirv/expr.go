package spirv

import (
	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/symbols"
	"github.com/gogpu/sdsl/token"
)

// lvalue is an addressable location.
type lvalue struct {
	ptr   uint32
	class StorageClass
	typ   symbols.Type // pointee type

	// swizzle selects components of a vector pointee. When hasDyn is
	// set, dyn is a dynamic component index into the swizzled value.
	swizzle []int
	dyn     uint32
	hasDyn  bool
}

// valueType returns the type a load of lv yields.
func (lv lvalue) valueType() symbols.Type {
	s, _ := symbols.ScalarOf(lv.typ)
	switch {
	case lv.hasDyn:
		return s
	case lv.swizzle != nil:
		return symbols.VectorOf(s.Kind, len(lv.swizzle))
	}
	return lv.typ
}

// addr returns the location e denotes. ok is false, with nothing
// emitted, when e is not rooted in a variable.
func (fe *funcEmitter) addr(e ast.Expr) (lv lvalue, ok bool, err error) {
	switch e := e.(type) {
	case *ast.Ident:
		return fe.symbolAddr(e.Symbol)
	case *ast.MemberExpr:
		if e.Symbol != nil {
			return fe.symbolAddr(e.Symbol)
		}
		base, ok, err := fe.addr(e.X)
		if !ok || err != nil {
			return base, ok, err
		}
		if base.hasDyn {
			return lvalue{}, false, emissionErrorf("%s: member of a dynamically indexed swizzle", e.Span().Start)
		}
		if st, isStruct := base.typ.(*symbols.Struct); isStruct {
			i, ft, found := st.Field(e.Name)
			if !found {
				return lvalue{}, false, emissionErrorf("%s: %s has no field %s", e.Span().Start, st.Name, e.Name)
			}
			return fe.chain(base, ft, fe.constInt(int32(i))), true, nil
		}
		if e.Swizzle == nil {
			return lvalue{}, false, emissionErrorf("%s: invalid member %s", e.Span().Start, e.Name)
		}
		sw := e.Swizzle
		if base.swizzle != nil {
			composed := make([]int, len(sw))
			for i, c := range sw {
				composed[i] = base.swizzle[c]
			}
			sw = composed
		}
		if len(sw) == 1 {
			return fe.component(base, sw[0]), true, nil
		}
		base.swizzle = sw
		return base, true, nil
	case *ast.IndexExpr:
		base, ok, err := fe.addr(e.X)
		if !ok || err != nil {
			return base, ok, err
		}
		if base.hasDyn {
			return lvalue{}, false, emissionErrorf("%s: index into a dynamically indexed swizzle", e.Span().Start)
		}
		if n, isConst := sema.ConstInt(e.Index); isConst {
			if base.swizzle != nil {
				return fe.component(base, base.swizzle[int(n)]), true, nil
			}
			return fe.chain(base, e.Type(), fe.constInt(int32(n))), true, nil
		}
		idx, err := fe.expr(e.Index)
		if err != nil {
			return lvalue{}, false, err
		}
		if base.swizzle != nil {
			base.dyn, base.hasDyn = idx, true
			return base, true, nil
		}
		return fe.chain(base, e.Type(), idx), true, nil
	}
	return lvalue{}, false, nil
}

func (fe *funcEmitter) symbolAddr(sym *symbols.Symbol) (lvalue, bool, error) {
	if sym == nil {
		return lvalue{}, false, nil
	}
	switch d := sym.Decl.(type) {
	case *sema.StreamVar:
		id, ok := fe.streamVars[d]
		return lvalue{ptr: id, class: StorageClassPrivate, typ: d.Type}, ok, nil
	case *sema.Global:
		if d.Private {
			id, ok := fe.globalVars[d]
			return lvalue{ptr: id, class: StorageClassPrivate, typ: d.Type}, ok, nil
		}
		cb, ok := fe.cbufferVars[d.CBuffer]
		if !ok {
			return lvalue{}, false, nil
		}
		ptr := fe.builder.AddAccessChain(fe.pointerTypeID(StorageClassUniform, d.Type), cb, fe.constInt(int32(d.Member)))
		return lvalue{ptr: ptr, class: StorageClassUniform, typ: d.Type}, true, nil
	case *ast.Param, *ast.VarDecl:
		if id, ok := fe.vars[sym]; ok {
			return lvalue{ptr: id, class: StorageClassFunction, typ: sym.Type}, true, nil
		}
		if id, ok := fe.staticVars[sym]; ok {
			return lvalue{ptr: id, class: StorageClassPrivate, typ: sym.Type}, true, nil
		}
	}
	return lvalue{}, false, nil
}

func (fe *funcEmitter) chain(base lvalue, t symbols.Type, index uint32) lvalue {
	ptr := fe.builder.AddAccessChain(fe.pointerTypeID(base.class, t), base.ptr, index)
	return lvalue{ptr: ptr, class: base.class, typ: t}
}

// component addresses one component of a scalar or vector location.
func (fe *funcEmitter) component(base lvalue, i int) lvalue {
	base.swizzle = nil
	s, _ := symbols.ScalarOf(base.typ)
	if _, ok := base.typ.(symbols.Vector); !ok {
		return base
	}
	return fe.chain(base, s, fe.constInt(int32(i)))
}

func (fe *funcEmitter) load(lv lvalue) uint32 {
	v := fe.builder.AddLoad(fe.typeID(lv.typ), lv.ptr)
	if lv.swizzle != nil {
		v = fe.swizzle(v, lv.typ, lv.swizzle)
	}
	if lv.hasDyn {
		s, _ := symbols.ScalarOf(lv.typ)
		v = fe.builder.Emit(OpVectorExtractDynamic, fe.typeID(s), v, lv.dyn)
	}
	return v
}

func (fe *funcEmitter) store(lv lvalue, v uint32) error {
	vec, isVec := lv.typ.(symbols.Vector)
	switch {
	case lv.hasDyn:
		return emissionErrorf("cannot assign through a dynamically indexed swizzle")
	case lv.swizzle == nil || !isVec:
		fe.builder.AddStore(lv.ptr, v)
		return nil
	}
	old := fe.builder.AddLoad(fe.typeID(vec), lv.ptr)
	comps := make([]uint32, vec.Size)
	for i := range comps {
		comps[i] = uint32(i)
	}
	for j, c := range lv.swizzle {
		comps[c] = uint32(vec.Size + j)
	}
	fe.builder.AddStore(lv.ptr, fe.builder.AddVectorShuffle(fe.typeID(vec), old, v, comps))
	return nil
}

// swizzle selects components sw of x, a scalar or vector of type t.
func (b *Backend) swizzle(x uint32, t symbols.Type, sw []int) uint32 {
	s, _ := symbols.ScalarOf(t)
	rt := b.typeID(symbols.VectorOf(s.Kind, len(sw)))
	if _, ok := t.(symbols.Vector); !ok {
		if len(sw) == 1 {
			return x
		}
		return b.builder.AddCompositeConstruct(rt, repeat(x, len(sw))...)
	}
	if len(sw) == 1 {
		return b.builder.AddCompositeExtract(rt, x, uint32(sw[0]))
	}
	comps := make([]uint32, len(sw))
	for i, c := range sw {
		comps[i] = uint32(c)
	}
	return b.builder.AddVectorShuffle(rt, x, x, comps)
}

// exprAs evaluates e converted to t.
func (fe *funcEmitter) exprAs(e ast.Expr, t symbols.Type) (uint32, error) {
	if c, ok := fe.constExpr(e, t); ok {
		return c, nil
	}
	v, err := fe.expr(e)
	if err != nil {
		return 0, err
	}
	return fe.convert(v, e.Type(), t), nil
}

// expr evaluates e to a value of its own type.
func (fe *funcEmitter) expr(e ast.Expr) (uint32, error) {
	if c, ok := fe.constExpr(e, e.Type()); ok {
		return c, nil
	}
	switch e := e.(type) {
	case *ast.Ident, *ast.MemberExpr, *ast.IndexExpr:
		lv, ok, err := fe.addr(e)
		if err != nil {
			return 0, err
		}
		if ok {
			return fe.load(lv), nil
		}
		return fe.access(e)
	case *ast.CallExpr:
		if e.Intrinsic != "" {
			return fe.intrinsic(e)
		}
		return fe.call(e)
	case *ast.ConstructExpr:
		return fe.construct(e)
	case *ast.CastExpr:
		return fe.exprAs(e.X, e.Type())
	case *ast.UnaryExpr:
		return fe.unary(e)
	case *ast.IncDecExpr:
		return fe.incDec(e)
	case *ast.BinaryExpr:
		return fe.binary(e)
	case *ast.ConditionalExpr:
		return fe.conditional(e)
	case *ast.AssignExpr:
		return fe.assign(e)
	}
	return 0, emissionErrorf("%s: unsupported expression %T", e.Span().Start, e)
}

// access evaluates a member or index expression on a value that is not
// a variable.
func (fe *funcEmitter) access(e ast.Expr) (uint32, error) {
	switch e := e.(type) {
	case *ast.MemberExpr:
		x, err := fe.expr(e.X)
		if err != nil {
			return 0, err
		}
		if st, ok := e.X.Type().(*symbols.Struct); ok {
			i, ft, _ := st.Field(e.Name)
			return fe.builder.AddCompositeExtract(fe.typeID(ft), x, uint32(i)), nil
		}
		return fe.swizzle(x, e.X.Type(), e.Swizzle), nil
	case *ast.IndexExpr:
		x, err := fe.expr(e.X)
		if err != nil {
			return 0, err
		}
		rt := fe.typeID(e.Type())
		if n, ok := sema.ConstInt(e.Index); ok {
			return fe.builder.AddCompositeExtract(rt, x, uint32(n)), nil
		}
		idx, err := fe.expr(e.Index)
		if err != nil {
			return 0, err
		}
		if _, ok := e.X.Type().(symbols.Vector); ok {
			return fe.builder.Emit(OpVectorExtractDynamic, rt, x, idx), nil
		}
		// Arrays and matrices are only dynamically indexable in memory.
		tmp := fe.builder.AddLocalVariable(fe.pointerTypeID(StorageClassFunction, e.X.Type()))
		fe.builder.AddStore(tmp, x)
		ptr := fe.builder.AddAccessChain(fe.pointerTypeID(StorageClassFunction, e.Type()), tmp, idx)
		return fe.builder.AddLoad(rt, ptr), nil
	case *ast.Ident:
		return 0, emissionErrorf("%s: %s is not a value", e.Span().Start, e.Name)
	}
	return 0, emissionErrorf("%s: unsupported expression %T", e.Span().Start, e)
}

func (fe *funcEmitter) call(e *ast.CallExpr) (uint32, error) {
	callee, ok := fe.module.Lookup(e.Decl)
	if !ok {
		return 0, emissionErrorf("%s: call to %s, which was not emitted", e.Span().Start, e.Decl.Name)
	}
	type copyBack struct {
		tmp  uint32
		lv   lvalue
		from symbols.Type
	}
	var backs []copyBack
	args := make([]uint32, len(e.Args))
	for i, arg := range e.Args {
		pt := e.ParamTypes[i]
		tmp := fe.builder.AddLocalVariable(fe.pointerTypeID(StorageClassFunction, pt))
		args[i] = tmp
		q := e.Decl.Params[i].Qualifiers
		out := q.Has(ast.QualOut) || q.Has(ast.QualInOut)
		in := !q.Has(ast.QualOut) || q.Has(ast.QualIn) || q.Has(ast.QualInOut)
		if !out {
			v, err := fe.exprAs(arg, pt)
			if err != nil {
				return 0, err
			}
			fe.builder.AddStore(tmp, v)
			continue
		}
		lv, ok, err := fe.addr(arg)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, emissionErrorf("%s: out argument is not a variable", arg.Span().Start)
		}
		if in {
			fe.builder.AddStore(tmp, fe.convert(fe.load(lv), lv.valueType(), pt))
		}
		backs = append(backs, copyBack{tmp: tmp, lv: lv, from: pt})
	}
	result := fe.builder.AddFunctionCall(fe.typeID(callee.Source.Result), callee.ID, args...)
	for _, cb := range backs {
		v := fe.builder.AddLoad(fe.typeID(cb.from), cb.tmp)
		if err := fe.store(cb.lv, fe.convert(v, cb.from, cb.lv.valueType())); err != nil {
			return 0, err
		}
	}
	return result, nil
}

func (fe *funcEmitter) construct(e *ast.ConstructExpr) (uint32, error) {
	t := e.Type()
	s, ok := symbols.ScalarOf(t)
	if !ok {
		return 0, emissionErrorf("%s: cannot construct %s", e.Span().Start, t)
	}
	if len(e.Args) == 1 && symbols.Components(e.Args[0].Type()) == 1 {
		v, err := fe.exprAs(e.Args[0], s)
		if err != nil {
			return 0, err
		}
		return fe.convert(v, s, t), nil
	}
	var comps []uint32
	for _, arg := range e.Args {
		at := symbols.WithScalar(arg.Type(), s.Kind)
		v, err := fe.exprAs(arg, at)
		if err != nil {
			return 0, err
		}
		comps = append(comps, fe.components(v, at)...)
	}
	if len(comps) != symbols.Components(t) {
		return 0, emissionErrorf("%s: constructor for %s needs %d components, got %d", e.Span().Start, t, symbols.Components(t), len(comps))
	}
	return fe.assemble(t, comps), nil
}

// components splits a numeric value into scalars in row-major order.
func (b *Backend) components(v uint32, t symbols.Type) []uint32 {
	s, _ := symbols.ScalarOf(t)
	st := b.typeID(s)
	switch t := t.(type) {
	case symbols.Vector:
		out := make([]uint32, t.Size)
		for i := range out {
			out[i] = b.builder.AddCompositeExtract(st, v, uint32(i))
		}
		return out
	case symbols.Matrix:
		out := make([]uint32, 0, t.Rows*t.Cols)
		for r := range t.Rows {
			for c := range t.Cols {
				out = append(out, b.builder.AddCompositeExtract(st, v, uint32(r), uint32(c)))
			}
		}
		return out
	}
	return []uint32{v}
}

// assemble builds a numeric value of type t from scalars in row-major
// order.
func (b *Backend) assemble(t symbols.Type, comps []uint32) uint32 {
	switch t := t.(type) {
	case symbols.Vector:
		return b.builder.AddCompositeConstruct(b.typeID(t), comps...)
	case symbols.Matrix:
		row := symbols.Vector{Elem: t.Elem, Size: t.Cols}
		rows := make([]uint32, t.Rows)
		for r := range rows {
			rows[r] = b.builder.AddCompositeConstruct(b.typeID(row), comps[r*t.Cols:(r+1)*t.Cols]...)
		}
		return b.builder.AddCompositeConstruct(b.typeID(t), rows...)
	}
	return comps[0]
}

func (fe *funcEmitter) unary(e *ast.UnaryExpr) (uint32, error) {
	t := e.Type()
	switch e.Op {
	case token.Bang:
		x, err := fe.exprAs(e.X, t)
		if err != nil {
			return 0, err
		}
		return fe.builder.AddUnaryOp(OpLogicalNot, fe.typeID(t), x), nil
	case token.Plus:
		return fe.exprAs(e.X, t)
	}
	x, err := fe.exprAs(e.X, t)
	if err != nil {
		return 0, err
	}
	if e.Op == token.Tilde {
		return fe.builder.AddUnaryOp(OpNot, fe.typeID(t), x), nil
	}
	return fe.negate(x, t), nil
}

func (b *Backend) negate(x uint32, t symbols.Type) uint32 {
	if m, ok := t.(symbols.Matrix); ok {
		return b.perColumn(m, func(col symbols.Type, a uint32) uint32 {
			return b.builder.AddUnaryOp(OpFNegate, b.typeID(col), a)
		}, x)
	}
	s, _ := symbols.ScalarOf(t)
	if s.Kind.IsFloat() {
		return b.builder.AddUnaryOp(OpFNegate, b.typeID(t), x)
	}
	return b.builder.AddUnaryOp(OpSNegate, b.typeID(t), x)
}

// perColumn applies f to the columns of the matrices args and assembles
// the results into a matrix of type m.
func (b *Backend) perColumn(m symbols.Matrix, f func(col symbols.Type, cols ...uint32) uint32, args ...uint32) uint32 {
	col := symbols.Vector{Elem: m.Elem, Size: m.Cols}
	out := make([]uint32, m.Rows)
	for i := range out {
		cols := make([]uint32, len(args))
		for j, a := range args {
			cols[j] = b.builder.AddCompositeExtract(b.typeID(col), a, uint32(i))
		}
		out[i] = f(col, cols...)
	}
	return b.builder.AddCompositeConstruct(b.typeID(m), out...)
}

func (fe *funcEmitter) incDec(e *ast.IncDecExpr) (uint32, error) {
	lv, ok, err := fe.addr(e.X)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, emissionErrorf("%s: operand of %s is not a variable", e.Span().Start, e.Op)
	}
	t := lv.valueType()
	old := fe.load(lv)
	op := ast.OpAdd
	if e.Op == token.MinusMinus {
		op = ast.OpSub
	}
	v := fe.arith(op, t, old, fe.splatConst(t, 1))
	if err := fe.store(lv, v); err != nil {
		return 0, err
	}
	if e.Prefix {
		return v, nil
	}
	return old, nil
}

func (fe *funcEmitter) binary(e *ast.BinaryExpr) (uint32, error) {
	ot := e.OperandType
	x, err := fe.exprAs(e.X, ot)
	if err != nil {
		return 0, err
	}
	// Both operands of && and || are evaluated.
	y, err := fe.exprAs(e.Y, ot)
	if err != nil {
		return 0, err
	}
	switch {
	case e.Op == ast.OpLogicalAnd:
		return fe.builder.AddBinaryOp(OpLogicalAnd, fe.typeID(ot), x, y), nil
	case e.Op == ast.OpLogicalOr:
		return fe.builder.AddBinaryOp(OpLogicalOr, fe.typeID(ot), x, y), nil
	case e.Op.IsComparison():
		return fe.compare(e.Op, ot, x, y)
	}
	return fe.arith(e.Op, ot, x, y), nil
}

// arith applies a non-comparison binary operator to two operands of
// type t. Matrices operate per column.
func (b *Backend) arith(op ast.BinaryOp, t symbols.Type, x, y uint32) uint32 {
	if m, ok := t.(symbols.Matrix); ok {
		return b.perColumn(m, func(col symbols.Type, cols ...uint32) uint32 {
			return b.arith(op, col, cols[0], cols[1])
		}, x, y)
	}
	s, _ := symbols.ScalarOf(t)
	return b.builder.AddBinaryOp(arithOp(op, s.Kind), b.typeID(t), x, y)
}

func arithOp(op ast.BinaryOp, k symbols.ScalarKind) OpCode {
	float := k.IsFloat()
	switch op {
	case ast.OpAdd:
		if float {
			return OpFAdd
		}
		return OpIAdd
	case ast.OpSub:
		if float {
			return OpFSub
		}
		return OpISub
	case ast.OpMul:
		if float {
			return OpFMul
		}
		return OpIMul
	case ast.OpDiv:
		switch {
		case float:
			return OpFDiv
		case k == symbols.UInt:
			return OpUDiv
		}
		return OpSDiv
	case ast.OpMod:
		switch {
		case float:
			return OpFRem
		case k == symbols.UInt:
			return OpUMod
		}
		return OpSRem
	case ast.OpShl:
		return OpShiftLeftLogical
	case ast.OpShr:
		if k == symbols.UInt {
			return OpShiftRightLogical
		}
		return OpShiftRightArithmetic
	case ast.OpBitAnd:
		if k == symbols.Bool {
			return OpLogicalAnd
		}
		return OpBitwiseAnd
	case ast.OpBitOr:
		if k == symbols.Bool {
			return OpLogicalOr
		}
		return OpBitwiseOr
	case ast.OpBitXor:
		if k == symbols.Bool {
			return OpLogicalNotEqual
		}
		return OpBitwiseXor
	}
	return OpNop
}

func (b *Backend) compare(op ast.BinaryOp, t symbols.Type, x, y uint32) (uint32, error) {
	if _, ok := t.(symbols.Matrix); ok {
		return 0, emissionErrorf("matrix comparison is not supported")
	}
	s, _ := symbols.ScalarOf(t)
	rt := b.typeID(symbols.WithScalar(t, symbols.Bool))
	k := s.Kind
	if k == symbols.Bool && op != ast.OpEqual && op != ast.OpNotEqual {
		it := symbols.WithScalar(t, symbols.Int)
		x, y = b.convert(x, t, it), b.convert(y, t, it)
		k = symbols.Int
	}
	var code OpCode
	switch {
	case k == symbols.Bool:
		code = map[ast.BinaryOp]OpCode{ast.OpEqual: OpLogicalEqual, ast.OpNotEqual: OpLogicalNotEqual}[op]
	case k.IsFloat():
		code = map[ast.BinaryOp]OpCode{
			ast.OpLess: OpFOrdLessThan, ast.OpLessEq: OpFOrdLessThanEqual,
			ast.OpGreater: OpFOrdGreaterThan, ast.OpGreaterEq: OpFOrdGreaterThanEqual,
			ast.OpEqual: OpFOrdEqual, ast.OpNotEqual: OpFUnordNotEqual,
		}[op]
	case k == symbols.UInt:
		code = map[ast.BinaryOp]OpCode{
			ast.OpLess: OpULessThan, ast.OpLessEq: OpULessThanEqual,
			ast.OpGreater: OpUGreaterThan, ast.OpGreaterEq: OpUGreaterThanEqual,
			ast.OpEqual: OpIEqual, ast.OpNotEqual: OpINotEqual,
		}[op]
	default:
		code = map[ast.BinaryOp]OpCode{
			ast.OpLess: OpSLessThan, ast.OpLessEq: OpSLessThanEqual,
			ast.OpGreater: OpSGreaterThan, ast.OpGreaterEq: OpSGreaterThanEqual,
			ast.OpEqual: OpIEqual, ast.OpNotEqual: OpINotEqual,
		}[op]
	}
	return b.builder.AddBinaryOp(code, rt, x, y), nil
}

func (fe *funcEmitter) conditional(e *ast.ConditionalExpr) (uint32, error) {
	t := e.Type()
	_, isMat := t.(symbols.Matrix)
	if symbols.IsNumeric(t) && !isMat {
		bt := symbols.WithScalar(e.Cond.Type(), symbols.Bool)
		cond, err := fe.exprAs(e.Cond, bt)
		if err != nil {
			return 0, err
		}
		x, err := fe.exprAs(e.Then, t)
		if err != nil {
			return 0, err
		}
		y, err := fe.exprAs(e.Else, t)
		if err != nil {
			return 0, err
		}
		if n := symbols.Components(t); n > 1 && symbols.Components(bt) == 1 {
			cond = fe.builder.AddCompositeConstruct(fe.typeID(symbols.VectorOf(symbols.Bool, n)), repeat(cond, n)...)
		}
		return fe.builder.AddSelect(fe.typeID(t), cond, x, y), nil
	}

	// Aggregates go through a temporary written by either branch.
	cond, err := fe.exprAs(e.Cond, symbols.BoolType)
	if err != nil {
		return 0, err
	}
	tmp := fe.builder.AddLocalVariable(fe.pointerTypeID(StorageClassFunction, t))
	thenL, elseL, merge := fe.builder.AllocID(), fe.builder.AllocID(), fe.builder.AllocID()
	fe.builder.AddSelectionMerge(merge, SelectionControlNone)
	fe.builder.AddBranchConditional(cond, thenL, elseL)
	for _, arm := range []struct {
		label uint32
		x     ast.Expr
	}{{thenL, e.Then}, {elseL, e.Else}} {
		fe.builder.AddLabelID(arm.label)
		v, err := fe.exprAs(arm.x, t)
		if err != nil {
			return 0, err
		}
		fe.builder.AddStore(tmp, v)
		fe.builder.AddBranch(merge)
	}
	fe.builder.AddLabelID(merge)
	return fe.builder.AddLoad(fe.typeID(t), tmp), nil
}

func (fe *funcEmitter) assign(e *ast.AssignExpr) (uint32, error) {
	lv, ok, err := fe.addr(e.LHS)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, emissionErrorf("%s: cannot assign to %s", e.Span().Start, ast.ExprString(e.LHS))
	}
	t := lv.valueType()
	var v uint32
	if e.Op == "" {
		if v, err = fe.exprAs(e.RHS, t); err != nil {
			return 0, err
		}
	} else {
		old := fe.load(lv)
		rhs, err := fe.exprAs(e.RHS, t)
		if err != nil {
			return 0, err
		}
		v = fe.arith(e.Op, t, old, rhs)
	}
	return v, fe.store(lv, v)
}
