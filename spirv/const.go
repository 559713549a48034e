package spirv

import (
	"math"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/symbols"
	"github.com/gogpu/sdsl/token"
)

// constValue is a folded numeric value. Components are held in
// row-major order; integers and booleans are exact in a float64.
type constValue struct {
	typ   symbols.Type
	comps []float64
}

// constExpr folds e into a constant of type t. It reports false when e
// is not a constant expression.
func (b *Backend) constExpr(e ast.Expr, t symbols.Type) (uint32, bool) {
	if e == nil {
		return 0, false
	}
	v, ok := evalConst(e, 0)
	if !ok {
		return 0, false
	}
	if v, ok = castConst(v, t); !ok {
		return 0, false
	}
	return b.materialize(v), true
}

func evalConst(e ast.Expr, depth int) (constValue, bool) {
	if depth > 32 {
		return constValue{}, false
	}
	t := e.Type()
	switch e := e.(type) {
	case *ast.IntLit:
		n, err := sema.ParseInt(e.Text)
		if err != nil {
			return constValue{}, false
		}
		return castConst(constValue{typ: symbols.Scalar{Kind: sema.IntLiteralKind(e.Text)}, comps: []float64{float64(n)}}, t)
	case *ast.FloatLit:
		f, err := sema.ParseFloat(e.Text)
		if err != nil {
			return constValue{}, false
		}
		return castConst(constValue{typ: symbols.Scalar{Kind: sema.FloatLiteralKind(e.Text)}, comps: []float64{f}}, t)
	case *ast.BoolLit:
		v := 0.0
		if e.Value {
			v = 1
		}
		return constValue{typ: symbols.BoolType, comps: []float64{v}}, true
	case *ast.UnaryExpr:
		x, ok := evalConst(e.X, depth+1)
		if !ok {
			return constValue{}, false
		}
		if x, ok = castConst(x, t); !ok {
			return constValue{}, false
		}
		out := make([]float64, len(x.comps))
		for i, c := range x.comps {
			switch e.Op {
			case token.Plus:
				out[i] = c
			case token.Minus:
				out[i] = -c
			case token.Bang:
				out[i] = boolComp(c == 0)
			default:
				return constValue{}, false
			}
		}
		return castConst(constValue{typ: t, comps: out}, t)
	case *ast.CastExpr:
		x, ok := evalConst(e.X, depth+1)
		if !ok {
			return constValue{}, false
		}
		return castConst(x, t)
	case *ast.ConstructExpr:
		s, ok := symbols.ScalarOf(t)
		if !ok {
			return constValue{}, false
		}
		var comps []float64
		for _, arg := range e.Args {
			x, ok := evalConst(arg, depth+1)
			if !ok {
				return constValue{}, false
			}
			if x, ok = castConst(x, symbols.WithScalar(x.typ, s.Kind)); !ok {
				return constValue{}, false
			}
			comps = append(comps, x.comps...)
		}
		if len(e.Args) == 1 && len(comps) == 1 {
			return castConst(constValue{typ: s, comps: comps}, t)
		}
		if len(comps) != symbols.Components(t) {
			return constValue{}, false
		}
		return constValue{typ: t, comps: comps}, true
	case *ast.Ident:
		sym := e.Symbol
		if sym == nil || sym.Kind != symbols.Constant {
			return constValue{}, false
		}
		var init ast.Expr
		switch d := sym.Decl.(type) {
		case *sema.Global:
			init = d.Decl.Init
		case *ast.VarDecl:
			init = d.Init
		}
		if init == nil {
			return constValue{}, false
		}
		x, ok := evalConst(init, depth+1)
		if !ok {
			return constValue{}, false
		}
		return castConst(x, sym.Type)
	}
	return constValue{}, false
}

// castConst converts v to t with the implicit and explicit conversion
// rules: scalars splat, vectors truncate and element kinds convert.
func castConst(v constValue, t symbols.Type) (constValue, bool) {
	ts, ok := symbols.ScalarOf(t)
	if !ok {
		return constValue{}, false
	}
	fs, ok := symbols.ScalarOf(v.typ)
	if !ok {
		return constValue{}, false
	}
	n := symbols.Components(t)
	comps := v.comps
	switch {
	case len(comps) == n:
	case len(comps) == 1:
		comps = make([]float64, n)
		for i := range comps {
			comps[i] = v.comps[0]
		}
	case len(comps) > n:
		_, fromMat := v.typ.(symbols.Matrix)
		_, toMat := t.(symbols.Matrix)
		if fromMat || toMat {
			return constValue{}, false
		}
		comps = comps[:n]
	default:
		return constValue{}, false
	}
	out := make([]float64, n)
	for i, c := range comps {
		out[i] = convertComp(c, fs.Kind, ts.Kind)
	}
	return constValue{typ: t, comps: out}, true
}

func convertComp(c float64, from, to symbols.ScalarKind) float64 {
	switch to {
	case symbols.Bool:
		return boolComp(c != 0)
	case symbols.Int:
		if from.IsFloat() {
			c = math.Trunc(c)
		}
		return float64(int32(int64(c)))
	case symbols.UInt:
		if from.IsFloat() {
			c = math.Trunc(c)
		}
		return float64(uint32(int64(c)))
	case symbols.Float:
		return float64(float32(c))
	}
	return c
}

func boolComp(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// materialize emits the constant instructions of v.
func (b *Backend) materialize(v constValue) uint32 {
	s, _ := symbols.ScalarOf(v.typ)
	switch t := v.typ.(type) {
	case symbols.Vector:
		parts := make([]uint32, len(v.comps))
		for i, c := range v.comps {
			parts[i] = b.scalarConst(s.Kind, c)
		}
		return b.compositeConst(t, parts...)
	case symbols.Matrix:
		row := symbols.Vector{Elem: t.Elem, Size: t.Cols}
		rows := make([]uint32, t.Rows)
		for r := range rows {
			rows[r] = b.materialize(constValue{typ: row, comps: v.comps[r*t.Cols : (r+1)*t.Cols]})
		}
		return b.compositeConst(t, rows...)
	}
	return b.scalarConst(s.Kind, v.comps[0])
}
