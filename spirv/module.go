package spirv

import (
	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/symbols"
)

// Function is an emitted SPIR-V function.
type Function struct {
	Value
	Source *sema.Function

	// ParamTypes are the pointer types of the parameters. Every
	// parameter is passed by pointer to a Function storage variable.
	ParamTypes []uint32
}

// Module tracks the functions of a module being emitted. Local
// definitions and definitions inherited from base mixins are kept apart
// so that overload sets span both.
type Module struct {
	Functions *symbols.FunctionTable[*Function]
	byDecl    map[*ast.FuncDecl]*Function
}

// NewModule returns an empty function registry.
func NewModule() *Module {
	return &Module{
		Functions: symbols.NewFunctionTable[*Function](),
		byDecl:    make(map[*ast.FuncDecl]*Function),
	}
}

// Add registers f under its source name.
func (m *Module) Add(f *Function) {
	if f.Source.Inherited {
		m.Functions.AddInherited(f.Source.Name, f)
	} else {
		m.Functions.Add(f.Source.Name, f)
	}
	m.byDecl[f.Source.Decl] = f
}

// FindFunctions returns every overload of name, local ones first.
func (m *Module) FindFunctions(name string) []*Function {
	return m.Functions.FindFunctions(name)
}

// Lookup returns the function emitted for decl.
func (m *Module) Lookup(decl *ast.FuncDecl) (*Function, bool) {
	f, ok := m.byDecl[decl]
	return f, ok
}
