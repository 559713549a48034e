package symbols

import (
	"strconv"
	"strings"
)

var scalarKinds = map[string]ScalarKind{
	"bool":   Bool,
	"int":    Int,
	"uint":   UInt,
	"dword":  UInt,
	"half":   Half,
	"float":  Float,
	"double": Double,
}

// ParseNumeric resolves built-in numeric type names: scalars, vectors
// (float3) and matrices (float4x4) of every scalar kind. A one-component
// vector such as float1 is its scalar.
func ParseNumeric(name string) (Type, bool) {
	if k, ok := scalarKinds[name]; ok {
		return Scalar{k}, true
	}
	i := strings.IndexAny(name, "1234")
	if i <= 0 {
		return nil, false
	}
	k, ok := scalarKinds[name[:i]]
	if !ok {
		return nil, false
	}
	dims := name[i:]
	switch {
	case len(dims) == 1:
		return VectorOf(k, int(dims[0]-'0')), true
	case len(dims) == 3 && dims[1] == 'x' && inRange(dims[2]):
		return Matrix{Scalar{k}, int(dims[0] - '0'), int(dims[2] - '0')}, true
	}
	return nil, false
}

func inRange(c byte) bool { return c >= '1' && c <= '4' }

// ParseGeneric resolves the template forms vector<T, N> and matrix<T, R, C>.
func ParseGeneric(name string, params []string) (Type, bool) {
	if len(params) == 0 {
		return nil, false
	}
	k, ok := scalarKinds[params[0]]
	if !ok {
		return nil, false
	}
	dims := make([]int, 0, 2)
	for _, p := range params[1:] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 4 {
			return nil, false
		}
		dims = append(dims, n)
	}
	switch {
	case name == "vector" && len(dims) == 1:
		return VectorOf(k, dims[0]), true
	case name == "matrix" && len(dims) == 2:
		return Matrix{Scalar{k}, dims[0], dims[1]}, true
	}
	return nil, false
}

// ResolveName is the first resolution tier for a type name: built-in
// numeric types and void resolve immediately, anything else becomes
// Undefined and is looked up later against declarations.
func ResolveName(name string) Type {
	if name == "void" {
		return VoidType
	}
	if t, ok := ParseNumeric(name); ok {
		return t
	}
	return Undefined{Name: name}
}

// NumericTypeNames returns every name accepted by ParseNumeric.
func NumericTypeNames() []string {
	bases := []string{"bool", "int", "uint", "dword", "half", "float", "double"}
	var names []string
	for _, b := range bases {
		names = append(names, b)
		for n := 1; n <= 4; n++ {
			names = append(names, b+strconv.Itoa(n))
		}
		for r := 1; r <= 4; r++ {
			for c := 1; c <= 4; c++ {
				names = append(names, b+strconv.Itoa(r)+"x"+strconv.Itoa(c))
			}
		}
	}
	return names
}
