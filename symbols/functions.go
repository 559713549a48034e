package symbols

import (
	"maps"
	"slices"
)

// FunctionTable stores overload sets by name. Functions holds the
// definitions of the shader itself, InheritedFunctions those merged in
// from base mixins.
type FunctionTable[F any] struct {
	Functions          map[string][]F
	InheritedFunctions map[string][]F
}

// NewFunctionTable returns an empty table.
func NewFunctionTable[F any]() *FunctionTable[F] {
	return &FunctionTable[F]{
		Functions:          make(map[string][]F),
		InheritedFunctions: make(map[string][]F),
	}
}

// Add appends a local overload.
func (t *FunctionTable[F]) Add(name string, f F) {
	t.Functions[name] = append(t.Functions[name], f)
}

// AddInherited appends an inherited overload.
func (t *FunctionTable[F]) AddInherited(name string, f F) {
	t.InheritedFunctions[name] = append(t.InheritedFunctions[name], f)
}

// FindFunctions returns every overload of name, local definitions first.
// Inherited overloads are never masked by local ones.
func (t *FunctionTable[F]) FindFunctions(name string) []F {
	local, inherited := t.Functions[name], t.InheritedFunctions[name]
	out := make([]F, 0, len(local)+len(inherited))
	out = append(out, local...)
	return append(out, inherited...)
}

// Names returns every function name in sorted order.
func (t *FunctionTable[F]) Names() []string {
	names := slices.Collect(maps.Keys(t.Functions))
	for n := range t.InheritedFunctions {
		if _, ok := t.Functions[n]; !ok {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names
}
