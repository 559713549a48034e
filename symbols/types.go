// Package symbols implements SDSL types, symbols and scoped symbol tables.
package symbols

import (
	"fmt"
	"strconv"
)

// Type is an SDSL type.
type Type interface {
	String() string
	isType()
}

// ScalarKind is the element kind of numeric types.
type ScalarKind uint8

const (
	Bool ScalarKind = iota
	Int
	UInt
	Half
	Float
	Double
)

var scalarNames = [...]string{
	Bool:   "bool",
	Int:    "int",
	UInt:   "uint",
	Half:   "half",
	Float:  "float",
	Double: "double",
}

func (k ScalarKind) String() string {
	if int(k) < len(scalarNames) {
		return scalarNames[k]
	}
	return "scalar(" + strconv.Itoa(int(k)) + ")"
}

// IsFloat reports whether k is a floating-point kind.
func (k ScalarKind) IsFloat() bool { return k == Half || k == Float || k == Double }

// IsInteger reports whether k is a signed or unsigned integer kind.
func (k ScalarKind) IsInteger() bool { return k == Int || k == UInt }

// Width returns the size of k in bits.
func (k ScalarKind) Width() int {
	switch k {
	case Half:
		return 16
	case Double:
		return 64
	}
	return 32
}

// Scalar is a single numeric or boolean value.
type Scalar struct {
	Kind ScalarKind
}

// Vector is a vector of 2 to 4 scalars.
type Vector struct {
	Elem Scalar
	Size int
}

// Matrix is an HLSL-style matrix of Rows rows and Cols columns.
type Matrix struct {
	Elem Scalar
	Rows int
	Cols int
}

// Struct is a named aggregate. Structs are compared by identity.
type Struct struct {
	Name   string
	Fields []Field
}

// Field is a member of a Struct.
type Field struct {
	Name     string
	Type     Type
	Semantic string
}

// Array is a fixed-size array. Len 0 denotes a runtime-sized array.
type Array struct {
	Elem Type
	Len  int
}

// Pointer is a reference to a variable of type Elem.
type Pointer struct {
	Elem Type
}

// Void is the type of functions without a result.
type Void struct{}

// Undefined is a type not resolved yet. Name is the syntactic type name.
type Undefined struct {
	Name string
}

func (Scalar) isType()    {}
func (Vector) isType()    {}
func (Matrix) isType()    {}
func (*Struct) isType()   {}
func (Array) isType()     {}
func (Pointer) isType()   {}
func (Void) isType()      {}
func (Undefined) isType() {}

func (s Scalar) String() string { return s.Kind.String() }
func (v Vector) String() string { return fmt.Sprintf("%s%d", v.Elem, v.Size) }
func (m Matrix) String() string { return fmt.Sprintf("%s%dx%d", m.Elem, m.Rows, m.Cols) }
func (s *Struct) String() string {
	return s.Name
}
func (a Array) String() string {
	if a.Len == 0 {
		return a.Elem.String() + "[]"
	}
	return fmt.Sprintf("%s[%d]", a.Elem, a.Len)
}
func (p Pointer) String() string   { return "ptr<" + p.Elem.String() + ">" }
func (Void) String() string        { return "void" }
func (u Undefined) String() string { return u.Name }

// Field returns the index and type of the named field.
func (s *Struct) Field(name string) (int, Type, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, f.Type, true
		}
	}
	return -1, nil, false
}

// Predeclared scalar types.
var (
	BoolType   = Scalar{Bool}
	IntType    = Scalar{Int}
	UIntType   = Scalar{UInt}
	HalfType   = Scalar{Half}
	FloatType  = Scalar{Float}
	DoubleType = Scalar{Double}
	VoidType   = Void{}
)

// Equal reports whether a and b denote the same type.
func Equal(a, b Type) bool {
	switch a := a.(type) {
	case *Struct:
		b, ok := b.(*Struct)
		return ok && a == b
	case Array:
		b, ok := b.(Array)
		return ok && a.Len == b.Len && Equal(a.Elem, b.Elem)
	case Pointer:
		b, ok := b.(Pointer)
		return ok && Equal(a.Elem, b.Elem)
	case nil:
		return b == nil
	}
	return a == b
}

// IsUndefined reports whether t is missing or unresolved.
func IsUndefined(t Type) bool {
	if t == nil {
		return true
	}
	_, ok := t.(Undefined)
	return ok
}

// ScalarOf returns the element scalar of a scalar, vector or matrix type.
func ScalarOf(t Type) (Scalar, bool) {
	switch t := t.(type) {
	case Scalar:
		return t, true
	case Vector:
		return t.Elem, true
	case Matrix:
		return t.Elem, true
	}
	return Scalar{}, false
}

// IsNumeric reports whether t is a scalar, vector or matrix.
func IsNumeric(t Type) bool {
	_, ok := ScalarOf(t)
	return ok
}

// Components returns the number of scalar components of a numeric type.
func Components(t Type) int {
	switch t := t.(type) {
	case Scalar:
		return 1
	case Vector:
		return t.Size
	case Matrix:
		return t.Rows * t.Cols
	}
	return 0
}

// WithScalar returns a type of the same shape as t with element kind k.
func WithScalar(t Type, k ScalarKind) Type {
	switch t := t.(type) {
	case Vector:
		return Vector{Scalar{k}, t.Size}
	case Matrix:
		return Matrix{Scalar{k}, t.Rows, t.Cols}
	}
	return Scalar{k}
}

// VectorOf returns a vector of n elements of kind k, or a scalar when n is 1.
func VectorOf(k ScalarKind, n int) Type {
	if n == 1 {
		return Scalar{k}
	}
	return Vector{Scalar{k}, n}
}
