package sema

import (
	"strings"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/symbols"
	"github.com/gogpu/sdsl/token"
)

// expr type-checks e, records its type and returns it. want is the type
// the context expects, or nil; untyped literals adopt its element kind.
func (a *analyzer) expr(e ast.Expr, want symbols.Type, m mode) symbols.Type {
	t := a.exprType(e, want, m)
	if t == nil {
		t = symbols.Undefined{}
	}
	e.SetType(t)
	return t
}

func (a *analyzer) exprType(e ast.Expr, want symbols.Type, m mode) symbols.Type {
	if m&modeWrite != 0 && !assignable(e) {
		a.errorf(e.Span(), "cannot assign to %s", ast.ExprString(e))
		m = modeRead
	}
	switch e := e.(type) {
	case *ast.IntLit:
		if _, err := ParseInt(e.Text); err != nil {
			a.errorf(e.Span(), "invalid integer literal %s", e.Text)
		}
		k := IntLiteralKind(e.Text)
		if w, ok := symbols.ScalarOf(want); ok && k == symbols.Int && w.Kind != symbols.Bool {
			k = w.Kind
		}
		return symbols.Scalar{Kind: k}
	case *ast.FloatLit:
		if _, err := ParseFloat(e.Text); err != nil {
			a.errorf(e.Span(), "invalid floating-point literal %s", e.Text)
		}
		k := FloatLiteralKind(e.Text)
		if w, ok := symbols.ScalarOf(want); ok && w.Kind.IsFloat() && !hasFloatSuffix(e.Text) {
			k = w.Kind
		}
		return symbols.Scalar{Kind: k}
	case *ast.BoolLit:
		return symbols.BoolType
	case *ast.StringLit:
		a.errorf(e.Span(), "string literals are only allowed in attributes")
		return nil
	case *ast.Ident:
		return a.ident(e, m)
	case *ast.MemberExpr:
		return a.member(e, m)
	case *ast.IndexExpr:
		return a.index(e, m)
	case *ast.CallExpr:
		return a.call(e)
	case *ast.ConstructExpr:
		return a.construct(e)
	case *ast.CastExpr:
		return a.cast(e)
	case *ast.UnaryExpr:
		return a.unary(e, want)
	case *ast.IncDecExpr:
		t := a.expr(e.X, nil, modeReadWrite)
		if s, ok := symbols.ScalarOf(t); !symbols.IsUndefined(t) && (!ok || s.Kind == symbols.Bool) {
			a.report(&TypeMismatchError{Span: e.Span(), Context: "operator " + e.Op.String(), Got: t})
		}
		return t
	case *ast.BinaryExpr:
		return a.binary(e)
	case *ast.ConditionalExpr:
		return a.conditional(e, want)
	case *ast.AssignExpr:
		return a.assign(e)
	}
	a.errorf(e.Span(), "unsupported expression %T", e)
	return nil
}

func hasFloatSuffix(text string) bool {
	return strings.ContainsAny(text[len(text)-1:], "fFhHlL")
}

// assignable reports whether e has the shape of an lvalue.
func assignable(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Ident:
		return true
	case *ast.MemberExpr:
		if isStreamsRef(e.X) {
			return true
		}
		if len(e.Swizzle) > 0 && hasDuplicates(e.Swizzle) {
			return false
		}
		return assignable(e.X)
	case *ast.IndexExpr:
		return assignable(e.X)
	}
	return false
}

func hasDuplicates(idx []int) bool {
	var seen [4]bool
	for _, i := range idx {
		if seen[i] {
			return true
		}
		seen[i] = true
	}
	return false
}

// isStreamsRef reports whether e is the streams keyword-like identifier.
func isStreamsRef(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "streams"
}

func (a *analyzer) ident(e *ast.Ident, m mode) symbols.Type {
	if e.Name == "streams" {
		if _, ok := a.table.Lookup("streams"); !ok {
			a.errorf(e.Span(), "streams must be followed by a stream name")
			return nil
		}
	}
	sym, err := a.table.Resolve(e.Name, e.Span())
	if err != nil {
		a.report(err)
		return symbols.Undefined{Name: e.Name}
	}
	e.Symbol = sym
	switch sym.Kind {
	case symbols.TypeName:
		a.errorf(e.Span(), "type %s used as a value", e.Name)
		return nil
	case symbols.Constant:
		if m&modeWrite != 0 {
			a.errorf(e.Span(), "cannot assign to constant %s", e.Name)
		}
	case symbols.CBufferMember:
		if m&modeWrite != 0 {
			a.errorf(e.Span(), "cannot assign to uniform %s", e.Name)
		}
	case symbols.Stream:
		if sv, ok := sym.Decl.(*StreamVar); ok {
			a.access(sv, m, e)
		}
	}
	return sym.Type
}

// access records a stream read or write in the current function.
func (a *analyzer) access(sv *StreamVar, m mode, at ast.Expr) {
	if a.fn == nil {
		a.errorf(at.Span(), "stream %s used outside of a function", sv.Name)
		return
	}
	// A read of a value the function already produced is not an input.
	if m&modeRead != 0 && !containsStream(a.fn.Reads, sv) && !containsStream(a.fn.Writes, sv) {
		a.fn.Reads = append(a.fn.Reads, sv)
	}
	if m&modeWrite != 0 && !containsStream(a.fn.Writes, sv) {
		a.fn.Writes = append(a.fn.Writes, sv)
	}
}

func containsStream(list []*StreamVar, sv *StreamVar) bool {
	for _, v := range list {
		if v == sv {
			return true
		}
	}
	return false
}

func (a *analyzer) member(e *ast.MemberExpr, m mode) symbols.Type {
	if isStreamsRef(e.X) {
		if _, shadowed := a.table.Lookup("streams"); !shadowed {
			sv, ok := a.streams[e.Name]
			if !ok {
				a.report(&symbols.UnboundSymbolError{Name: e.Name, Span: e.Span()})
				return symbols.Undefined{Name: e.Name}
			}
			e.Symbol = sv.Symbol
			e.X.SetType(symbols.VoidType)
			a.access(sv, m, e)
			return sv.Type
		}
	}

	xt := a.expr(e.X, nil, m)
	switch t := xt.(type) {
	case symbols.Undefined:
		return xt
	case *symbols.Struct:
		if _, ft, ok := t.Field(e.Name); ok {
			return ft
		}
		a.errorf(e.Span(), "%s has no field %s", t.Name, e.Name)
		return nil
	case symbols.Scalar, symbols.Vector:
		n := 1
		if v, ok := t.(symbols.Vector); ok {
			n = v.Size
		}
		idx, ok := parseSwizzle(e.Name, n)
		if !ok {
			a.errorf(e.Span(), "invalid swizzle .%s on %s", e.Name, xt)
			return nil
		}
		e.Swizzle = idx
		if m&modeWrite != 0 && hasDuplicates(idx) {
			a.errorf(e.Span(), "swizzle .%s repeats a component and cannot be assigned", e.Name)
		}
		s, _ := symbols.ScalarOf(xt)
		return symbols.VectorOf(s.Kind, len(idx))
	}
	a.errorf(e.Span(), "%s has no member %s", xt, e.Name)
	return nil
}

// parseSwizzle decodes an xyzw or rgba swizzle on a value of n components.
func parseSwizzle(name string, n int) ([]int, bool) {
	if len(name) == 0 || len(name) > 4 {
		return nil, false
	}
	set := ""
	idx := make([]int, len(name))
	for i, c := range name {
		var s string
		switch {
		case strings.ContainsRune("xyzw", c):
			s = "xyzw"
		case strings.ContainsRune("rgba", c):
			s = "rgba"
		default:
			return nil, false
		}
		if set != "" && set != s {
			return nil, false
		}
		set = s
		idx[i] = strings.IndexRune(s, c)
		if idx[i] >= n {
			return nil, false
		}
	}
	return idx, true
}

func (a *analyzer) index(e *ast.IndexExpr, m mode) symbols.Type {
	xt := a.expr(e.X, nil, m)
	it := a.expr(e.Index, symbols.IntType, modeRead)
	if s, ok := it.(symbols.Scalar); !symbols.IsUndefined(it) && (!ok || !s.Kind.IsInteger()) {
		a.report(&TypeMismatchError{Span: e.Index.Span(), Context: "index", Want: symbols.IntType, Got: it})
	}

	var elem symbols.Type
	n := 0
	switch t := xt.(type) {
	case symbols.Undefined:
		return xt
	case symbols.Vector:
		elem, n = t.Elem, t.Size
	case symbols.Matrix:
		elem, n = symbols.VectorOf(t.Elem.Kind, t.Cols), t.Rows
	case symbols.Array:
		elem, n = t.Elem, t.Len
	default:
		a.errorf(e.Span(), "cannot index %s", xt)
		return nil
	}
	if c, ok := a.constInt(e.Index); ok && n > 0 && (c < 0 || c >= int64(n)) {
		a.errorf(e.Index.Span(), "index %d out of range [0, %d)", c, n)
	}
	return elem
}

func (a *analyzer) construct(e *ast.ConstructExpr) symbols.Type {
	t := a.resolveType(e.TypeRef)
	s, ok := symbols.ScalarOf(t)
	if !ok {
		if !symbols.IsUndefined(t) {
			a.errorf(e.Span(), "cannot construct %s", t)
		}
		for _, arg := range e.Args {
			a.expr(arg, nil, modeRead)
		}
		return t
	}

	total := 0
	undefined := false
	for _, arg := range e.Args {
		at := a.expr(arg, s, modeRead)
		switch {
		case symbols.IsUndefined(at):
			undefined = true
		case !symbols.IsNumeric(at):
			a.report(&TypeMismatchError{Span: arg.Span(), Context: "constructor argument", Want: s, Got: at})
			undefined = true
		default:
			total += symbols.Components(at)
			retypeLiteral(arg, s.Kind)
		}
	}
	if undefined {
		return t
	}
	want := symbols.Components(t)
	if total != want && !(len(e.Args) == 1 && total == 1) {
		a.errorf(e.Span(), "constructor for %s needs %d components, got %d", t, want, total)
	}
	return t
}

func (a *analyzer) cast(e *ast.CastExpr) symbols.Type {
	t := a.resolveType(e.To)
	xt := a.expr(e.X, t, modeRead)
	if symbols.IsUndefined(t) || symbols.IsUndefined(xt) {
		return t
	}
	if symbols.Equal(t, xt) {
		return t
	}
	if symbols.IsNumeric(t) && symbols.IsNumeric(xt) {
		switch {
		case symbols.Components(xt) == 1,
			symbols.Components(xt) >= symbols.Components(t) && !isMatrix(t) && !isMatrix(xt),
			classify(xt, t) == convImplicit:
			if s, ok := symbols.ScalarOf(t); ok {
				retypeLiteral(e.X, s.Kind)
			}
			return t
		}
	}
	a.report(&TypeMismatchError{Span: e.Span(), Context: "cast", Want: t, Got: xt})
	return t
}

func isMatrix(t symbols.Type) bool {
	_, ok := t.(symbols.Matrix)
	return ok
}

func (a *analyzer) unary(e *ast.UnaryExpr, want symbols.Type) symbols.Type {
	switch e.Op {
	case token.Bang:
		t := a.expr(e.X, nil, modeRead)
		if symbols.IsUndefined(t) {
			return t
		}
		if !symbols.IsNumeric(t) {
			a.report(&TypeMismatchError{Span: e.Span(), Context: "operator !", Got: t})
			return nil
		}
		return boolOf(t)
	case token.Tilde:
		t := a.expr(e.X, want, modeRead)
		if s, ok := symbols.ScalarOf(t); !symbols.IsUndefined(t) && (!ok || !s.Kind.IsInteger()) {
			a.report(&TypeMismatchError{Span: e.Span(), Context: "operator ~", Got: t})
		}
		return t
	}
	t := a.expr(e.X, want, modeRead)
	if s, ok := symbols.ScalarOf(t); !symbols.IsUndefined(t) && (!ok || s.Kind == symbols.Bool) {
		a.report(&TypeMismatchError{Span: e.Span(), Context: "operator " + e.Op.String(), Got: t})
	}
	return t
}

// isLiteral reports whether e is a numeric literal, optionally signed.
func isLiteral(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.IntLit, *ast.FloatLit:
		return true
	case *ast.UnaryExpr:
		return (e.Op == token.Minus || e.Op == token.Plus) && isLiteral(e.X)
	}
	return false
}

// retypeLiteral gives an untyped literal the element kind k. Integer
// literals take any numeric kind, float literals only float kinds.
func retypeLiteral(e ast.Expr, k symbols.ScalarKind) {
	if k == symbols.Bool {
		return
	}
	switch l := e.(type) {
	case *ast.IntLit:
		if IntLiteralKind(l.Text) == symbols.Int && !strings.ContainsAny(l.Text, "lL") {
			l.SetType(symbols.Scalar{Kind: k})
		}
	case *ast.FloatLit:
		if k.IsFloat() && !hasFloatSuffix(l.Text) {
			l.SetType(symbols.Scalar{Kind: k})
		}
	case *ast.UnaryExpr:
		if isLiteral(l) {
			retypeLiteral(l.X, k)
			l.SetType(l.X.Type())
		}
	}
}

func (a *analyzer) binary(e *ast.BinaryExpr) symbols.Type {
	var lt, rt symbols.Type
	switch {
	case isLiteral(e.X) && !isLiteral(e.Y):
		rt = a.expr(e.Y, nil, modeRead)
		lt = a.expr(e.X, literalWant(e.X, rt), modeRead)
	default:
		lt = a.expr(e.X, nil, modeRead)
		rt = a.expr(e.Y, literalWant(e.Y, lt), modeRead)
	}
	if symbols.IsUndefined(lt) || symbols.IsUndefined(rt) {
		return symbols.Undefined{}
	}
	if !symbols.IsNumeric(lt) || !symbols.IsNumeric(rt) {
		a.report(&TypeMismatchError{Span: e.Span(), Context: "operator " + string(e.Op), Want: lt, Got: rt})
		return nil
	}

	if e.Op.IsLogical() {
		ot, truncated, ok := unify(boolOf(lt), boolOf(rt))
		if !ok {
			a.report(&TypeMismatchError{Span: e.Span(), Context: "operator " + string(e.Op), Want: lt, Got: rt})
			return nil
		}
		if truncated {
			a.warnf(e.Span(), "implicit truncation of vector type")
		}
		e.OperandType = ot
		return ot
	}

	ot, truncated, ok := unify(lt, rt)
	if !ok {
		a.report(&TypeMismatchError{Span: e.Span(), Context: "operator " + string(e.Op), Want: lt, Got: rt})
		return nil
	}
	if truncated {
		a.warnf(e.Span(), "implicit truncation of vector type")
	}
	s, _ := symbols.ScalarOf(ot)
	switch e.Op {
	case ast.OpShl, ast.OpShr:
		if !s.Kind.IsInteger() {
			a.report(&TypeMismatchError{Span: e.Span(), Context: "operator " + string(e.Op), Want: symbols.WithScalar(ot, symbols.Int), Got: ot})
			return nil
		}
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		if s.Kind.IsFloat() {
			a.report(&TypeMismatchError{Span: e.Span(), Context: "operator " + string(e.Op), Want: symbols.WithScalar(ot, symbols.Int), Got: ot})
			return nil
		}
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if s.Kind == symbols.Bool {
			ot = symbols.WithScalar(ot, symbols.Int)
		}
	}
	e.OperandType = ot
	retypeLiteral(e.X, s.Kind)
	retypeLiteral(e.Y, s.Kind)
	if e.Op.IsComparison() {
		return boolOf(ot)
	}
	return ot
}

// literalWant is the expected type for a literal operand next to an
// operand of type other: int literals follow any kind, float literals
// only float kinds.
func literalWant(lit ast.Expr, other symbols.Type) symbols.Type {
	if !isLiteral(lit) || symbols.IsUndefined(other) {
		return nil
	}
	s, ok := symbols.ScalarOf(other)
	if !ok {
		return nil
	}
	return s
}

func (a *analyzer) conditional(e *ast.ConditionalExpr, want symbols.Type) symbols.Type {
	ct := a.expr(e.Cond, symbols.BoolType, modeRead)
	tt := a.expr(e.Then, want, modeRead)
	et := a.expr(e.Else, literalWant(e.Else, tt), modeRead)
	if symbols.IsUndefined(ct) || symbols.IsUndefined(tt) || symbols.IsUndefined(et) {
		return symbols.Undefined{}
	}
	if !symbols.IsNumeric(ct) {
		a.report(&TypeMismatchError{Span: e.Cond.Span(), Context: "condition", Want: symbols.BoolType, Got: ct})
		return nil
	}
	var ot symbols.Type
	if symbols.Equal(tt, et) {
		ot = tt
	} else {
		t, truncated, ok := unify(tt, et)
		if !ok {
			a.report(&TypeMismatchError{Span: e.Span(), Context: "conditional", Want: tt, Got: et})
			return nil
		}
		if truncated {
			a.warnf(e.Span(), "implicit truncation of vector type")
		}
		ot = t
	}
	if v, ok := ct.(symbols.Vector); ok && symbols.Components(ot) != v.Size {
		a.report(&TypeMismatchError{Span: e.Cond.Span(), Context: "condition", Want: boolOf(ot), Got: ct})
	}
	if s, ok := symbols.ScalarOf(ot); ok {
		retypeLiteral(e.Then, s.Kind)
		retypeLiteral(e.Else, s.Kind)
	}
	return ot
}

func (a *analyzer) assign(e *ast.AssignExpr) symbols.Type {
	m := modeWrite
	if e.Op != "" {
		m = modeReadWrite
	}
	lt := a.expr(e.LHS, nil, m)
	rt := a.expr(e.RHS, lt, modeRead)
	if symbols.IsUndefined(lt) || symbols.IsUndefined(rt) {
		return lt
	}
	if e.Op != "" {
		s, ok := symbols.ScalarOf(lt)
		switch {
		case !ok || !symbols.IsNumeric(rt):
			a.report(&TypeMismatchError{Span: e.Span(), Context: "operator " + string(e.Op) + "=", Want: lt, Got: rt})
			return lt
		case (e.Op == ast.OpShl || e.Op == ast.OpShr) && !s.Kind.IsInteger(),
			(e.Op == ast.OpBitAnd || e.Op == ast.OpBitOr || e.Op == ast.OpBitXor) && s.Kind.IsFloat():
			a.report(&TypeMismatchError{Span: e.Span(), Context: "operator " + string(e.Op) + "=", Want: symbols.WithScalar(lt, symbols.Int), Got: lt})
			return lt
		}
		if symbols.Components(rt) == 1 {
			a.coerce(e.RHS, s, "assignment")
			return lt
		}
	}
	a.coerce(e.RHS, lt, "assignment")
	return lt
}
