package sema

import "github.com/gogpu/sdsl/symbols"

// conversion classifies an implicit conversion.
type conversion uint8

const (
	convNone     conversion = iota // identical types
	convImplicit                   // element kind change or scalar splat
	convTruncate                   // drops vector components; warns
	convInvalid
)

// classify returns how from converts implicitly to to.
func classify(from, to symbols.Type) conversion {
	if symbols.Equal(from, to) {
		return convNone
	}
	if symbols.IsUndefined(from) || symbols.IsUndefined(to) {
		return convNone
	}
	switch f := from.(type) {
	case symbols.Scalar:
		switch to.(type) {
		case symbols.Scalar, symbols.Vector, symbols.Matrix:
			return convImplicit
		}
	case symbols.Vector:
		switch t := to.(type) {
		case symbols.Scalar:
			return convTruncate
		case symbols.Vector:
			switch {
			case t.Size == f.Size:
				return convImplicit
			case t.Size < f.Size:
				return convTruncate
			}
		}
	case symbols.Matrix:
		if t, ok := to.(symbols.Matrix); ok && t.Rows == f.Rows && t.Cols == f.Cols {
			return convImplicit
		}
	}
	return convInvalid
}

// rank orders scalar kinds for arithmetic promotion.
func rank(k symbols.ScalarKind) int {
	switch k {
	case symbols.Bool:
		return 0
	case symbols.Int:
		return 1
	case symbols.UInt:
		return 2
	case symbols.Half:
		return 3
	case symbols.Float:
		return 4
	}
	return 5
}

func promote(a, b symbols.ScalarKind) symbols.ScalarKind {
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

// unify returns the common type two operands convert to. truncated is set
// when a vector operand loses components.
func unify(a, b symbols.Type) (t symbols.Type, truncated, ok bool) {
	sa, okA := symbols.ScalarOf(a)
	sb, okB := symbols.ScalarOf(b)
	if !okA || !okB {
		if symbols.Equal(a, b) {
			return a, false, true
		}
		return nil, false, false
	}
	k := promote(sa.Kind, sb.Kind)

	switch a := a.(type) {
	case symbols.Scalar:
		return symbols.WithScalar(b, k), false, true
	case symbols.Vector:
		switch b := b.(type) {
		case symbols.Scalar:
			return symbols.Vector{Elem: symbols.Scalar{Kind: k}, Size: a.Size}, false, true
		case symbols.Vector:
			n := min(a.Size, b.Size)
			return symbols.Vector{Elem: symbols.Scalar{Kind: k}, Size: n}, a.Size != b.Size, true
		}
	case symbols.Matrix:
		switch b := b.(type) {
		case symbols.Scalar:
			return symbols.WithScalar(a, k), false, true
		case symbols.Matrix:
			if a.Rows == b.Rows && a.Cols == b.Cols {
				return symbols.WithScalar(a, k), false, true
			}
		}
	}
	return nil, false, false
}

// floatOf returns t with its element kind promoted to a floating-point kind.
func floatOf(t symbols.Type) symbols.Type {
	s, ok := symbols.ScalarOf(t)
	if !ok || s.Kind.IsFloat() {
		return t
	}
	return symbols.WithScalar(t, symbols.Float)
}

// boolOf returns the boolean type of the same shape as t.
func boolOf(t symbols.Type) symbols.Type {
	if !symbols.IsNumeric(t) {
		return symbols.BoolType
	}
	return symbols.WithScalar(t, symbols.Bool)
}
