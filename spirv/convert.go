package spirv

import "github.com/gogpu/sdsl/symbols"

// convert converts the value id from type from to type to: scalars
// splat, vectors truncate, element kinds convert and float arrays meet
// numeric values component by component.
func (b *Backend) convert(id uint32, from, to symbols.Type) uint32 {
	if symbols.Equal(from, to) {
		return id
	}
	if arr, ok := to.(symbols.Array); ok {
		comps := b.components(id, from)
		fs, _ := symbols.ScalarOf(from)
		parts := make([]uint32, arr.Len)
		for i := range parts {
			c := comps[min(i, len(comps)-1)]
			parts[i] = b.convert(c, fs, arr.Elem)
		}
		return b.builder.AddCompositeConstruct(b.typeID(arr), parts...)
	}
	if arr, ok := from.(symbols.Array); ok {
		n := symbols.Components(to)
		comps := make([]uint32, n)
		for i := range comps {
			comps[i] = b.builder.AddCompositeExtract(b.typeID(arr.Elem), id, uint32(min(i, arr.Len-1)))
		}
		ts, _ := symbols.ScalarOf(to)
		for i, c := range comps {
			comps[i] = b.convert(c, arr.Elem, ts)
		}
		return b.assemble(to, comps)
	}

	fs, ok := symbols.ScalarOf(from)
	ts, ok2 := symbols.ScalarOf(to)
	if !ok || !ok2 {
		b.fail(emissionErrorf("cannot convert %s to %s", from, to))
		return id
	}
	fc, tc := symbols.Components(from), symbols.Components(to)

	if fm, ok := from.(symbols.Matrix); ok {
		if tm, ok := to.(symbols.Matrix); ok && tm.Rows == fm.Rows && tm.Cols == fm.Cols {
			return b.perColumn(tm, func(col symbols.Type, cols ...uint32) uint32 {
				return b.convertKind(cols[0], symbols.WithScalar(col, fs.Kind), ts.Kind)
			}, id)
		}
		b.fail(emissionErrorf("cannot convert %s to %s", from, to))
		return id
	}

	switch {
	case fc == 1:
		s := b.convertKind(id, fs, ts.Kind)
		switch to := to.(type) {
		case symbols.Vector:
			return b.builder.AddCompositeConstruct(b.typeID(to), repeat(s, to.Size)...)
		case symbols.Matrix:
			col := symbols.Vector{Elem: to.Elem, Size: to.Cols}
			c := b.builder.AddCompositeConstruct(b.typeID(col), repeat(s, to.Cols)...)
			return b.builder.AddCompositeConstruct(b.typeID(to), repeat(c, to.Rows)...)
		}
		return s
	case tc < fc:
		if tc == 1 {
			id = b.builder.AddCompositeExtract(b.typeID(fs), id, 0)
		} else {
			sw := make([]int, tc)
			for i := range sw {
				sw[i] = i
			}
			id = b.swizzle(id, from, sw)
		}
		from = symbols.VectorOf(fs.Kind, tc)
	case tc > fc:
		b.fail(emissionErrorf("cannot convert %s to %s", from, to))
		return id
	}
	return b.convertKind(id, from, ts.Kind)
}

// convertKind changes the element kind of a scalar or vector value of
// type t to k.
func (b *Backend) convertKind(id uint32, t symbols.Type, k symbols.ScalarKind) uint32 {
	s, _ := symbols.ScalarOf(t)
	if s.Kind == k {
		return id
	}
	rt := symbols.WithScalar(t, k)
	rid := b.typeID(rt)
	switch {
	case s.Kind == symbols.Bool:
		return b.builder.AddSelect(rid, id, b.splatConst(rt, 1), b.splatConst(rt, 0))
	case k == symbols.Bool:
		if s.Kind.IsFloat() {
			return b.builder.AddBinaryOp(OpFUnordNotEqual, rid, id, b.splatConst(t, 0))
		}
		return b.builder.AddBinaryOp(OpINotEqual, rid, id, b.splatConst(t, 0))
	case s.Kind.IsInteger() && k.IsInteger():
		return b.builder.AddUnaryOp(OpBitcast, rid, id)
	case s.Kind == symbols.Int && k.IsFloat():
		return b.builder.AddUnaryOp(OpConvertSToF, rid, id)
	case s.Kind == symbols.UInt && k.IsFloat():
		return b.builder.AddUnaryOp(OpConvertUToF, rid, id)
	case s.Kind.IsFloat() && k == symbols.Int:
		return b.builder.AddUnaryOp(OpConvertFToS, rid, id)
	case s.Kind.IsFloat() && k == symbols.UInt:
		return b.builder.AddUnaryOp(OpConvertFToU, rid, id)
	}
	return b.builder.AddUnaryOp(OpFConvert, rid, id)
}
