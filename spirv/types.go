package spirv

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/sdsl/symbols"
)

// typeID returns the id of t, emitting it and its dependencies on first
// use. Types that cannot be represented record an error and yield 0.
func (b *Backend) typeID(t symbols.Type) uint32 {
	if st, ok := t.(*symbols.Struct); ok {
		return b.structID(st)
	}
	key := t.String()
	if id, ok := b.typeIDs[key]; ok {
		return id
	}
	var id uint32
	switch t := t.(type) {
	case symbols.Void:
		id = b.builder.AddTypeVoid()
	case symbols.Scalar:
		id = b.scalarTypeID(t.Kind)
	case symbols.Vector:
		elem := b.typeID(t.Elem)
		id = b.builder.AddTypeVector(elem, uint32(t.Size))
	case symbols.Matrix:
		// An HLSL RxC matrix is stored as R columns of C components, so
		// that indexing a row is indexing a SPIR-V column.
		if !t.Elem.Kind.IsFloat() {
			b.fail(emissionErrorf("%s: only floating-point matrices are supported", t))
			return 0
		}
		if t.Rows < 2 || t.Cols < 2 {
			b.fail(emissionErrorf("%s: matrices need at least two rows and columns", t))
			return 0
		}
		col := b.typeID(symbols.Vector{Elem: t.Elem, Size: t.Cols})
		id = b.builder.AddTypeMatrix(col, uint32(t.Rows))
	case symbols.Array:
		if t.Len == 0 {
			b.fail(emissionErrorf("%s: runtime-sized arrays are not supported", t))
			return 0
		}
		elem := b.typeID(t.Elem)
		length := b.constUint(uint32(t.Len))
		id = b.builder.AddTypeArray(elem, length)
	default:
		b.fail(emissionErrorf("type %s cannot be emitted", t))
		return 0
	}
	b.typeIDs[key] = id
	return id
}

func (b *Backend) scalarTypeID(k symbols.ScalarKind) uint32 {
	switch k {
	case symbols.Bool:
		return b.builder.AddTypeBool()
	case symbols.Int:
		return b.builder.AddTypeInt(32, true)
	case symbols.UInt:
		return b.builder.AddTypeInt(32, false)
	case symbols.Half:
		b.requireCapability(CapabilityFloat16)
		return b.builder.AddTypeFloat(16)
	case symbols.Double:
		b.requireCapability(CapabilityFloat64)
		return b.builder.AddTypeFloat(64)
	}
	return b.builder.AddTypeFloat(32)
}

func (b *Backend) structID(st *symbols.Struct) uint32 {
	if id, ok := b.structIDs[st]; ok {
		return id
	}
	members := make([]uint32, len(st.Fields))
	for i, f := range st.Fields {
		members[i] = b.typeID(f.Type)
	}
	id := b.builder.AddTypeStruct(members...)
	b.structIDs[st] = id
	if b.options.Debug {
		b.builder.AddName(id, st.Name)
		for i, f := range st.Fields {
			b.builder.AddMemberName(id, uint32(i), f.Name)
		}
	}
	return id
}

type pointerKey struct {
	class StorageClass
	base  uint32
}

// pointerTypeID returns the id of a pointer to t in class.
func (b *Backend) pointerTypeID(class StorageClass, t symbols.Type) uint32 {
	base := b.typeID(t)
	key := pointerKey{class, base}
	if id, ok := b.pointerIDs[key]; ok {
		return id
	}
	id := b.builder.AddTypePointer(class, base)
	b.pointerIDs[key] = id
	return id
}

// functionTypeID returns the id of a function type.
func (b *Backend) functionTypeID(result uint32, params ...uint32) uint32 {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, strconv.FormatUint(uint64(result), 10))
	for _, p := range params {
		parts = append(parts, strconv.FormatUint(uint64(p), 10))
	}
	key := strings.Join(parts, ",")
	if id, ok := b.funcTypeIDs[key]; ok {
		return id
	}
	id := b.builder.AddTypeFunction(result, params...)
	b.funcTypeIDs[key] = id
	return id
}

// ----------------------------------------------------------------------------
// Constants

type constKey struct {
	op    OpCode
	typ   uint32
	words string
}

func (b *Backend) constant(op OpCode, typ uint32, words ...uint32) uint32 {
	key := constKey{op: op, typ: typ, words: fmt.Sprint(words)}
	if id, ok := b.constIDs[key]; ok {
		return id
	}
	var id uint32
	switch op {
	case OpConstantTrue, OpConstantFalse:
		id = b.builder.AddConstantBool(typ, op == OpConstantTrue)
	case OpConstantComposite:
		id = b.builder.AddConstantComposite(typ, words...)
	case OpConstantNull:
		id = b.builder.AddConstantNull(typ)
	default:
		id = b.builder.AddConstant(typ, words...)
	}
	b.constIDs[key] = id
	return id
}

func (b *Backend) constUint(v uint32) uint32 {
	return b.constant(OpConstant, b.typeID(symbols.UIntType), v)
}

func (b *Backend) constInt(v int32) uint32 {
	return b.constant(OpConstant, b.typeID(symbols.IntType), uint32(v))
}

// scalarConst returns a constant of kind k holding v. Integer kinds
// truncate v.
func (b *Backend) scalarConst(k symbols.ScalarKind, v float64) uint32 {
	typ := b.typeID(symbols.Scalar{Kind: k})
	switch k {
	case symbols.Bool:
		if v != 0 {
			return b.constant(OpConstantTrue, typ)
		}
		return b.constant(OpConstantFalse, typ)
	case symbols.Int:
		return b.constant(OpConstant, typ, uint32(int32(int64(v))))
	case symbols.UInt:
		return b.constant(OpConstant, typ, uint32(int64(v)))
	case symbols.Half:
		return b.constant(OpConstant, typ, uint32(float32ToHalf(float32(v))))
	case symbols.Double:
		bits := math.Float64bits(v)
		return b.constant(OpConstant, typ, uint32(bits), uint32(bits>>32))
	}
	return b.constant(OpConstant, typ, math.Float32bits(float32(v)))
}

// intConst is scalarConst for integer values that may not fit a float64
// exactly.
func (b *Backend) intConst(k symbols.ScalarKind, v int64) uint32 {
	switch k {
	case symbols.Int:
		return b.constant(OpConstant, b.typeID(symbols.IntType), uint32(int32(v)))
	case symbols.UInt:
		return b.constant(OpConstant, b.typeID(symbols.UIntType), uint32(v))
	}
	return b.scalarConst(k, float64(v))
}

// splatConst returns a constant of type t with every component v.
func (b *Backend) splatConst(t symbols.Type, v float64) uint32 {
	s, _ := symbols.ScalarOf(t)
	c := b.scalarConst(s.Kind, v)
	switch t := t.(type) {
	case symbols.Vector:
		return b.compositeConst(t, repeat(c, t.Size)...)
	case symbols.Matrix:
		col := symbols.Vector{Elem: t.Elem, Size: t.Cols}
		return b.compositeConst(t, repeat(b.compositeConst(col, repeat(c, t.Cols)...), t.Rows)...)
	}
	return c
}

func (b *Backend) compositeConst(t symbols.Type, parts ...uint32) uint32 {
	return b.constant(OpConstantComposite, b.typeID(t), parts...)
}

func repeat(id uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = id
	}
	return out
}

// float32ToHalf converts to IEEE binary16, rounding toward zero.
func float32ToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int((bits>>23)&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF
	switch {
	case (bits>>23)&0xFF == 0xFF:
		if mant != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	case exp >= 0x1F:
		return sign | 0x7C00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		return sign | uint16(mant>>uint(14-exp))
	}
	return sign | uint16(exp)<<10 | uint16(mant>>13)
}

// ----------------------------------------------------------------------------
// Constant buffer layout

// cbufferLayout places members with HLSL constant buffer packing: a
// value never straddles a 16-byte register, and arrays, structs and
// matrices start a new register. It returns the member offsets.
func cbufferLayout(fields []symbols.Field) []uint32 {
	offsets := make([]uint32, len(fields))
	var offset uint32
	for i, f := range fields {
		size, align := packedSize(f.Type)
		if align == 16 {
			offset = alignUp(offset, 16)
		} else {
			offset = alignUp(offset, align)
			if offset/16 != (offset+size-1)/16 {
				offset = alignUp(offset, 16)
			}
		}
		offsets[i] = offset
		offset += size
	}
	return offsets
}

// packedSize returns the packed size and alignment of t.
func packedSize(t symbols.Type) (size, align uint32) {
	switch t := t.(type) {
	case symbols.Scalar:
		n := uint32(t.Kind.Width() / 8)
		if t.Kind == symbols.Bool {
			n = 4
		}
		return n, n
	case symbols.Vector:
		n, a := packedSize(t.Elem)
		return n * uint32(t.Size), a
	case symbols.Matrix:
		// Column-major HLSL packing: Cols registers of Rows components.
		n, _ := packedSize(t.Elem)
		return 16*uint32(t.Cols-1) + n*uint32(t.Rows), 16
	case symbols.Array:
		n, _ := packedSize(t.Elem)
		return arrayStride(t)*uint32(t.Len-1) + n, 16
	case *symbols.Struct:
		offsets := cbufferLayout(t.Fields)
		if len(offsets) == 0 {
			return 0, 16
		}
		last, _ := packedSize(t.Fields[len(t.Fields)-1].Type)
		return offsets[len(offsets)-1] + last, 16
	}
	return 0, 4
}

func arrayStride(a symbols.Array) uint32 {
	n, _ := packedSize(a.Elem)
	return alignUp(n, 16)
}

func alignUp(n, align uint32) uint32 {
	return (n + align - 1) / align * align
}

// decorateLayout adds the explicit layout decorations of a constant
// buffer struct and of the aggregates it contains.
func (b *Backend) decorateLayout(st *symbols.Struct) {
	id := b.structID(st)
	if b.laidOut[id] {
		return
	}
	b.laidOut[id] = true
	for i, off := range cbufferLayout(st.Fields) {
		b.builder.AddMemberDecorate(id, uint32(i), DecorationOffset, off)
		b.decorateMember(id, uint32(i), st.Fields[i].Type)
	}
}

func (b *Backend) decorateMember(structID, member uint32, t symbols.Type) {
	for {
		arr, ok := t.(symbols.Array)
		if !ok {
			break
		}
		if id := b.typeID(arr); !b.laidOut[id] {
			b.laidOut[id] = true
			b.builder.AddDecorate(id, DecorationArrayStride, arrayStride(arr))
		}
		t = arr.Elem
	}
	switch t := t.(type) {
	case symbols.Matrix:
		// The transposed representation turns HLSL column-major storage
		// into SPIR-V row-major.
		b.builder.AddMemberDecorate(structID, member, DecorationRowMajor)
		b.builder.AddMemberDecorate(structID, member, DecorationMatrixStride, 16)
	case *symbols.Struct:
		b.decorateLayout(t)
	}
}
