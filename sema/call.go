package sema

import (
	"fmt"
	"strings"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/symbols"
)

func (a *analyzer) call(e *ast.CallExpr) symbols.Type {
	var name string
	base := false
	switch fn := e.Fn.(type) {
	case *ast.Ident:
		name = fn.Name
	case *ast.MemberExpr:
		if isBaseRef(fn.X) {
			name, base = fn.Name, true
			break
		}
		a.errorf(e.Fn.Span(), "method calls are not supported")
		a.args(e)
		return nil
	default:
		a.errorf(e.Fn.Span(), "expression is not callable")
		a.args(e)
		return nil
	}

	args := a.args(e)
	var candidates []*Function
	if base {
		if a.fn == nil || a.fn.Shader == "" {
			a.errorf(e.Fn.Span(), "base is only valid inside a shader")
			return nil
		}
		candidates = a.baseFunctions(a.fn.Shader, name)
		if len(candidates) == 0 {
			a.errorf(e.Fn.Span(), "no base shader of %s declares %s", a.fn.Shader, name)
			return nil
		}
	} else {
		candidates = a.prog.Calls.FindFunctions(name)
		if len(candidates) == 0 {
			if class, ok := intrinsics[name]; ok {
				return a.intrinsic(e, name, class, args)
			}
			a.report(&symbols.UnboundSymbolError{Name: name, Span: e.Fn.Span()})
			return symbols.Undefined{Name: name}
		}
	}

	f := a.resolveOverload(candidates, args)
	if f == nil {
		if !anyUndefined(args) {
			a.errorf(e.Span(), "no overload of %s matches (%s)", name, typeList(args))
		}
		return symbols.Undefined{Name: name}
	}
	if f.Abstract() {
		a.errorf(e.Span(), "%s is abstract and has no implementation in this composition", f.QualifiedName())
	}
	e.Decl = f.Decl
	e.ParamTypes = f.ParamTypes()
	for i, arg := range e.Args {
		a.coerce(arg, e.ParamTypes[i], "argument to "+name)
		p := f.Decl.Params[i]
		if p.Qualifiers.Has(ast.QualOut) || p.Qualifiers.Has(ast.QualInOut) {
			a.markWrite(arg)
		}
	}
	if a.fn != nil && !containsFunc(a.fn.Callees, f) {
		a.fn.Callees = append(a.fn.Callees, f)
	}
	return f.Result
}

func isBaseRef(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "base"
}

func (a *analyzer) args(e *ast.CallExpr) []symbols.Type {
	out := make([]symbols.Type, len(e.Args))
	for i, arg := range e.Args {
		out[i] = a.expr(arg, nil, modeRead)
	}
	return out
}

// markWrite records the lvalue arg as written by an out parameter.
func (a *analyzer) markWrite(arg ast.Expr) {
	if !assignable(arg) {
		a.errorf(arg.Span(), "cannot pass %s to an out parameter", ast.ExprString(arg))
		return
	}
	root := arg
	for {
		switch e := root.(type) {
		case *ast.MemberExpr:
			if e.Symbol != nil {
				if sv, ok := e.Symbol.Decl.(*StreamVar); ok {
					a.access(sv, modeWrite, e)
				}
				return
			}
			root = e.X
			continue
		case *ast.IndexExpr:
			root = e.X
			continue
		case *ast.Ident:
			if e.Symbol == nil {
				return
			}
			switch e.Symbol.Kind {
			case symbols.Constant, symbols.CBufferMember:
				a.errorf(e.Span(), "cannot pass %s to an out parameter", e.Name)
			case symbols.Stream:
				if sv, ok := e.Symbol.Decl.(*StreamVar); ok {
					a.access(sv, modeWrite, e)
				}
			}
		}
		return
	}
}

// resolveOverload picks the candidate needing the fewest conversions. Ties
// go to implemented functions, then to the most derived shader.
func (a *analyzer) resolveOverload(candidates []*Function, args []symbols.Type) *Function {
	var best *Function
	bestCost := -1
	for _, f := range candidates {
		if len(f.Params) != len(args) {
			continue
		}
		cost := 0
		for i, p := range f.Params {
			switch classify(args[i], p.Type) {
			case convImplicit:
				cost++
			case convTruncate:
				cost += 2
			case convInvalid:
				cost = -1
			}
			if cost < 0 {
				break
			}
		}
		if cost < 0 {
			continue
		}
		if bestCost < 0 || cost < bestCost || cost == bestCost && a.preferred(f, best) {
			best, bestCost = f, cost
		}
	}
	return best
}

// preferred reports whether f wins a tie against g.
func (a *analyzer) preferred(f, g *Function) bool {
	if f.Abstract() != g.Abstract() {
		return !f.Abstract()
	}
	i, ok := a.shaderIndex[f.Shader]
	if !ok {
		return false
	}
	j, ok := a.shaderIndex[g.Shader]
	return !ok || i < j
}

func anyUndefined(ts []symbols.Type) bool {
	for _, t := range ts {
		if symbols.IsUndefined(t) {
			return true
		}
	}
	return false
}

func typeList(ts []symbols.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func containsFunc(list []*Function, f *Function) bool {
	for _, g := range list {
		if g == f {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------------
// Intrinsics

type intrinsicClass uint8

const (
	floatMap     intrinsicClass = iota // float componentwise, 1 to 3 args
	numericMap                         // any numeric kind, componentwise
	signFunc                           // numeric in, int out
	lengthFunc                         // float vector in, float scalar out
	distanceFunc                       // two float vectors, float scalar out
	dotFunc                            // two vectors, scalar out
	crossFunc                          // two float3
	refractFunc                        // two float vectors and a float scalar
	mulFunc
	transposeFunc
	determinantFunc
	reduceBool // any, all
	testFloat  // isnan, isinf
	bitcastFunc
)

type intrinsicInfo struct {
	class intrinsicClass
	arity int
	kind  symbols.ScalarKind // result kind of bitcasts
}

var intrinsics = map[string]intrinsicInfo{
	"sin": {floatMap, 1, 0}, "cos": {floatMap, 1, 0}, "tan": {floatMap, 1, 0},
	"asin": {floatMap, 1, 0}, "acos": {floatMap, 1, 0}, "atan": {floatMap, 1, 0},
	"sinh": {floatMap, 1, 0}, "cosh": {floatMap, 1, 0}, "tanh": {floatMap, 1, 0},
	"exp": {floatMap, 1, 0}, "exp2": {floatMap, 1, 0},
	"log": {floatMap, 1, 0}, "log2": {floatMap, 1, 0},
	"sqrt": {floatMap, 1, 0}, "rsqrt": {floatMap, 1, 0},
	"floor": {floatMap, 1, 0}, "ceil": {floatMap, 1, 0}, "frac": {floatMap, 1, 0},
	"round": {floatMap, 1, 0}, "trunc": {floatMap, 1, 0},
	"radians": {floatMap, 1, 0}, "degrees": {floatMap, 1, 0},
	"saturate": {floatMap, 1, 0},
	"ddx":      {floatMap, 1, 0}, "ddy": {floatMap, 1, 0}, "fwidth": {floatMap, 1, 0},
	"normalize": {floatMap, 1, 0},
	"pow":       {floatMap, 2, 0}, "atan2": {floatMap, 2, 0}, "fmod": {floatMap, 2, 0},
	"step": {floatMap, 2, 0}, "reflect": {floatMap, 2, 0},
	"lerp": {floatMap, 3, 0}, "smoothstep": {floatMap, 3, 0},

	"abs": {numericMap, 1, 0}, "min": {numericMap, 2, 0}, "max": {numericMap, 2, 0},
	"clamp": {numericMap, 3, 0},
	"sign":  {signFunc, 1, 0},

	"length":   {lengthFunc, 1, 0},
	"distance": {distanceFunc, 2, 0},
	"dot":      {dotFunc, 2, 0},
	"cross":    {crossFunc, 2, 0},
	"refract":  {refractFunc, 3, 0},

	"mul":         {mulFunc, 2, 0},
	"transpose":   {transposeFunc, 1, 0},
	"determinant": {determinantFunc, 1, 0},

	"any": {reduceBool, 1, 0}, "all": {reduceBool, 1, 0},
	"isnan": {testFloat, 1, 0}, "isinf": {testFloat, 1, 0},

	"asfloat": {bitcastFunc, 1, symbols.Float},
	"asint":   {bitcastFunc, 1, symbols.Int},
	"asuint":  {bitcastFunc, 1, symbols.UInt},
}

// IsIntrinsic reports whether name is a built-in function.
func IsIntrinsic(name string) bool {
	_, ok := intrinsics[name]
	return ok
}

func (a *analyzer) intrinsic(e *ast.CallExpr, name string, info intrinsicInfo, args []symbols.Type) symbols.Type {
	if len(args) != info.arity {
		a.errorf(e.Span(), "%s takes %d arguments, got %d", name, info.arity, len(args))
		return nil
	}
	if anyUndefined(args) {
		return symbols.Undefined{}
	}
	for i, t := range args {
		if !symbols.IsNumeric(t) {
			a.report(&TypeMismatchError{Span: e.Args[i].Span(), Context: "argument to " + name, Got: t})
			return nil
		}
	}
	params, result, err := intrinsicSignature(info, args)
	if err != "" {
		a.errorf(e.Span(), "%s: %s", name, err)
		return nil
	}
	e.Intrinsic = name
	e.ParamTypes = params
	for i, arg := range e.Args {
		a.coerce(arg, params[i], "argument to "+name)
	}
	return result
}

// intrinsicSignature computes parameter and result types of an intrinsic
// for the given argument types.
func intrinsicSignature(info intrinsicInfo, args []symbols.Type) (params []symbols.Type, result symbols.Type, err string) {
	same := func(t symbols.Type) []symbols.Type {
		out := make([]symbols.Type, len(args))
		for i := range out {
			out[i] = t
		}
		return out
	}
	common := func() (symbols.Type, string) {
		t := args[0]
		for _, u := range args[1:] {
			var ok bool
			if t, _, ok = unify(t, u); !ok {
				return nil, fmt.Sprintf("incompatible argument types %s", typeList(args))
			}
		}
		if _, ok := t.(symbols.Matrix); ok {
			return nil, "matrix arguments are not supported"
		}
		return t, ""
	}

	switch info.class {
	case floatMap:
		t, err := common()
		if err != "" {
			return nil, nil, err
		}
		t = floatOf(t)
		return same(t), t, ""
	case numericMap:
		t, err := common()
		if err != "" {
			return nil, nil, err
		}
		if s, _ := symbols.ScalarOf(t); s.Kind == symbols.Bool {
			t = symbols.WithScalar(t, symbols.Int)
		}
		return same(t), t, ""
	case signFunc:
		t, err := common()
		if err != "" {
			return nil, nil, err
		}
		if s, _ := symbols.ScalarOf(t); s.Kind == symbols.Bool {
			t = symbols.WithScalar(t, symbols.Int)
		}
		return same(t), symbols.WithScalar(t, symbols.Int), ""
	case lengthFunc:
		t, err := common()
		if err != "" {
			return nil, nil, err
		}
		t = floatOf(t)
		s, _ := symbols.ScalarOf(t)
		return same(t), s, ""
	case distanceFunc, dotFunc:
		t, err := common()
		if err != "" {
			return nil, nil, err
		}
		if info.class == distanceFunc {
			t = floatOf(t)
		}
		s, _ := symbols.ScalarOf(t)
		if s.Kind == symbols.Bool {
			return nil, nil, "boolean arguments are not supported"
		}
		return same(t), s, ""
	case crossFunc:
		t, err := common()
		if err != "" {
			return nil, nil, err
		}
		if v, ok := t.(symbols.Vector); !ok || v.Size != 3 {
			return nil, nil, "arguments must be 3-component vectors"
		}
		t = floatOf(t)
		return same(t), t, ""
	case refractFunc:
		t, _, ok := unify(args[0], args[1])
		if !ok {
			return nil, nil, fmt.Sprintf("incompatible argument types %s", typeList(args))
		}
		if _, ok := t.(symbols.Vector); !ok {
			return nil, nil, "incident and normal must be vectors"
		}
		t = floatOf(t)
		s, _ := symbols.ScalarOf(t)
		return []symbols.Type{t, t, s}, t, ""
	case mulFunc:
		return mulSignature(args[0], args[1])
	case transposeFunc:
		m, ok := args[0].(symbols.Matrix)
		if !ok {
			return nil, nil, "argument must be a matrix"
		}
		return args, symbols.Matrix{Elem: m.Elem, Rows: m.Cols, Cols: m.Rows}, ""
	case determinantFunc:
		m, ok := args[0].(symbols.Matrix)
		if !ok || m.Rows != m.Cols {
			return nil, nil, "argument must be a square matrix"
		}
		m.Elem = symbols.Scalar{Kind: floatOf(m.Elem).(symbols.Scalar).Kind}
		return []symbols.Type{m}, m.Elem, ""
	case reduceBool:
		if isMatrix(args[0]) {
			return nil, nil, "matrix arguments are not supported"
		}
		return args, symbols.BoolType, ""
	case testFloat:
		if isMatrix(args[0]) {
			return nil, nil, "matrix arguments are not supported"
		}
		t := floatOf(args[0])
		return []symbols.Type{t}, boolOf(t), ""
	case bitcastFunc:
		s, _ := symbols.ScalarOf(args[0])
		if s.Kind.Width() != 32 {
			return nil, nil, fmt.Sprintf("cannot reinterpret %s", args[0])
		}
		return args, symbols.WithScalar(args[0], info.kind), ""
	}
	return nil, nil, "unsupported intrinsic"
}

// mulSignature types mul(x, y) with HLSL semantics: row vectors on the
// left, column vectors on the right.
func mulSignature(x, y symbols.Type) ([]symbols.Type, symbols.Type, string) {
	sx, _ := symbols.ScalarOf(x)
	sy, _ := symbols.ScalarOf(y)
	k := promote(sx.Kind, sy.Kind)
	if k == symbols.Bool {
		k = symbols.Int
	}
	mx, xIsMat := x.(symbols.Matrix)
	my, yIsMat := y.(symbols.Matrix)
	if (xIsMat || yIsMat) && !k.IsFloat() {
		k = symbols.Float
	}
	elem := symbols.Scalar{Kind: k}
	mismatch := fmt.Sprintf("incompatible shapes %s and %s", x, y)

	switch {
	case symbols.Components(x) == 1 && !xIsMat || symbols.Components(y) == 1 && !yIsMat:
		t := symbols.WithScalar(y, k)
		if symbols.Components(y) == 1 && !yIsMat {
			t = symbols.WithScalar(x, k)
		}
		return []symbols.Type{symbols.WithScalar(x, k), symbols.WithScalar(y, k)}, t, ""
	case !xIsMat && !yIsMat:
		vx, vy := x.(symbols.Vector), y.(symbols.Vector)
		if vx.Size != vy.Size {
			return nil, nil, mismatch
		}
		t := symbols.Vector{Elem: elem, Size: vx.Size}
		return []symbols.Type{t, t}, elem, ""
	case !xIsMat:
		vx := x.(symbols.Vector)
		if vx.Size != my.Rows {
			return nil, nil, mismatch
		}
		return []symbols.Type{symbols.Vector{Elem: elem, Size: vx.Size}, symbols.WithScalar(y, k)},
			symbols.VectorOf(k, my.Cols), ""
	case !yIsMat:
		vy := y.(symbols.Vector)
		if vy.Size != mx.Cols {
			return nil, nil, mismatch
		}
		return []symbols.Type{symbols.WithScalar(x, k), symbols.Vector{Elem: elem, Size: vy.Size}},
			symbols.VectorOf(k, mx.Rows), ""
	}
	if mx.Cols != my.Rows {
		return nil, nil, mismatch
	}
	return []symbols.Type{symbols.WithScalar(x, k), symbols.WithScalar(y, k)},
		symbols.Matrix{Elem: elem, Rows: mx.Rows, Cols: my.Cols}, ""
}
