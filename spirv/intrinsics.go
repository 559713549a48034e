package spirv

import (
	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/symbols"
)

// glslFloat maps intrinsics that are a single GLSL.std.450 instruction
// on their converted arguments.
var glslFloat = map[string]uint32{
	"sin": GLSLstd450Sin, "cos": GLSLstd450Cos, "tan": GLSLstd450Tan,
	"asin": GLSLstd450Asin, "acos": GLSLstd450Acos, "atan": GLSLstd450Atan,
	"sinh": GLSLstd450Sinh, "cosh": GLSLstd450Cosh, "tanh": GLSLstd450Tanh,
	"exp": GLSLstd450Exp, "exp2": GLSLstd450Exp2,
	"log": GLSLstd450Log, "log2": GLSLstd450Log2,
	"sqrt": GLSLstd450Sqrt, "rsqrt": GLSLstd450InverseSqrt,
	"floor": GLSLstd450Floor, "ceil": GLSLstd450Ceil, "frac": GLSLstd450Fract,
	"round": GLSLstd450RoundEven, "trunc": GLSLstd450Trunc,
	"radians": GLSLstd450Radians, "degrees": GLSLstd450Degrees,
	"normalize": GLSLstd450Normalize,
	"pow":       GLSLstd450Pow, "atan2": GLSLstd450Atan2,
	"step": GLSLstd450Step, "reflect": GLSLstd450Reflect,
	"lerp": GLSLstd450FMix, "smoothstep": GLSLstd450SmoothStep,
	"length": GLSLstd450Length, "distance": GLSLstd450Distance,
	"cross": GLSLstd450Cross, "refract": GLSLstd450Refract,
	"determinant": GLSLstd450Determinant,
}

// intOverloads maps intrinsics with float, signed and unsigned forms.
var intOverloads = map[string][3]uint32{
	"abs":   {GLSLstd450FAbs, GLSLstd450SAbs, 0},
	"min":   {GLSLstd450FMin, GLSLstd450SMin, GLSLstd450UMin},
	"max":   {GLSLstd450FMax, GLSLstd450SMax, GLSLstd450UMax},
	"clamp": {GLSLstd450FClamp, GLSLstd450SClamp, GLSLstd450UClamp},
}

var derivatives = map[string]OpCode{
	"ddx": OpDPdx, "ddy": OpDPdy, "fwidth": OpFwidth,
}

func (fe *funcEmitter) intrinsic(e *ast.CallExpr) (uint32, error) {
	args := make([]uint32, len(e.Args))
	for i, arg := range e.Args {
		v, err := fe.exprAs(arg, e.ParamTypes[i])
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	t := e.Type()
	rt := fe.typeID(t)
	pt := e.ParamTypes[0]
	s, _ := symbols.ScalarOf(pt)
	ext := func(inst uint32, ops ...uint32) uint32 {
		return fe.builder.AddExtInst(rt, fe.glslExtID, inst, ops...)
	}

	if inst, ok := glslFloat[e.Intrinsic]; ok {
		return ext(inst, args...), nil
	}
	if op, ok := derivatives[e.Intrinsic]; ok {
		return fe.builder.AddUnaryOp(op, rt, args[0]), nil
	}
	if forms, ok := intOverloads[e.Intrinsic]; ok {
		switch {
		case s.Kind.IsFloat():
			return ext(forms[0], args...), nil
		case s.Kind == symbols.UInt && forms[2] == 0:
			return args[0], nil
		case s.Kind == symbols.UInt:
			return ext(forms[2], args...), nil
		}
		return ext(forms[1], args...), nil
	}

	switch e.Intrinsic {
	case "saturate":
		return ext(GLSLstd450FClamp, args[0], fe.splatConst(t, 0), fe.splatConst(t, 1)), nil
	case "fmod":
		return fe.builder.AddBinaryOp(OpFRem, rt, args[0], args[1]), nil
	case "sign":
		switch {
		case s.Kind.IsFloat():
			f := fe.builder.AddExtInst(fe.typeID(pt), fe.glslExtID, GLSLstd450FSign, args[0])
			return fe.convertKind(f, pt, symbols.Int), nil
		case s.Kind == symbols.UInt:
			nz := fe.convertKind(args[0], pt, symbols.Bool)
			return fe.convertKind(nz, symbols.WithScalar(pt, symbols.Bool), symbols.Int), nil
		}
		return ext(GLSLstd450SSign, args[0]), nil
	case "dot":
		return fe.dot(pt, args[0], args[1]), nil
	case "mul":
		return fe.mul(e.ParamTypes[0], e.ParamTypes[1], t, args[0], args[1]), nil
	case "transpose":
		return fe.builder.AddUnaryOp(OpTranspose, rt, args[0]), nil
	case "any", "all":
		b := fe.convertKind(args[0], pt, symbols.Bool)
		if symbols.Components(pt) == 1 {
			return b, nil
		}
		op := OpAny
		if e.Intrinsic == "all" {
			op = OpAll
		}
		return fe.builder.AddUnaryOp(op, rt, b), nil
	case "isnan":
		return fe.builder.AddUnaryOp(OpIsNan, rt, args[0]), nil
	case "isinf":
		return fe.builder.AddUnaryOp(OpIsInf, rt, args[0]), nil
	case "asfloat", "asint", "asuint":
		if symbols.Equal(pt, t) {
			return args[0], nil
		}
		return fe.builder.AddUnaryOp(OpBitcast, rt, args[0]), nil
	}
	return 0, emissionErrorf("%s: intrinsic %s is not supported", e.Span().Start, e.Intrinsic)
}

// dot computes the dot product of two values of type t. OpDot only
// takes float vectors; other shapes multiply and sum.
func (b *Backend) dot(t symbols.Type, x, y uint32) uint32 {
	s, _ := symbols.ScalarOf(t)
	st := b.typeID(s)
	if _, vec := t.(symbols.Vector); vec && s.Kind.IsFloat() {
		return b.builder.AddBinaryOp(OpDot, st, x, y)
	}
	prod := b.arith(ast.OpMul, t, x, y)
	if symbols.Components(t) == 1 {
		return prod
	}
	comps := b.components(prod, t)
	sum := comps[0]
	for _, c := range comps[1:] {
		sum = b.arith(ast.OpAdd, s, sum, c)
	}
	return sum
}

// mul implements the HLSL mul intrinsic. An HLSL RxC matrix is stored as
// R SPIR-V columns, the transpose of its mathematical layout, so vector
// and matrix operands swap places.
func (b *Backend) mul(xt, yt, rt symbols.Type, x, y uint32) uint32 {
	_, xMat := xt.(symbols.Matrix)
	_, yMat := yt.(symbols.Matrix)
	xScalar := symbols.Components(xt) == 1 && !xMat
	yScalar := symbols.Components(yt) == 1 && !yMat
	s, _ := symbols.ScalarOf(rt)
	rid := b.typeID(rt)

	switch {
	case xScalar && yScalar:
		return b.arith(ast.OpMul, rt, x, y)
	case xScalar || yScalar:
		scalar, other, ot := x, y, yt
		if yScalar {
			scalar, other, ot = y, x, xt
		}
		switch {
		case !s.Kind.IsFloat():
			return b.arith(ast.OpMul, ot, other, b.convert(scalar, s, ot))
		case xMat || yMat:
			return b.builder.AddBinaryOp(OpMatrixTimesScalar, rid, other, scalar)
		}
		return b.builder.AddBinaryOp(OpVectorTimesScalar, rid, other, scalar)
	case !xMat && !yMat:
		return b.dot(xt, x, y)
	case !xMat:
		return b.builder.AddBinaryOp(OpMatrixTimesVector, rid, y, x)
	case !yMat:
		return b.builder.AddBinaryOp(OpVectorTimesMatrix, rid, y, x)
	}
	return b.builder.AddBinaryOp(OpMatrixTimesMatrix, rid, y, x)
}
