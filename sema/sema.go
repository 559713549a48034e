// Package sema type-checks SDSL modules, resolves symbols and mixin
// inheritance, finds stage entry points and checks stream usage.
package sema

import (
	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/symbols"
)

// BaseResolver returns the parsed module that declares the shader name.
// It is used for base mixins not declared in the module being analyzed.
type BaseResolver func(name string) (*ast.Module, error)

// Options configures Analyze.
type Options struct {
	// Stages are the stages to find entry points for.
	Stages Stage

	// EntryName is the entry function used when a single stage is
	// requested and no function is marked for it. Defaults to "main".
	EntryName string

	// Bases resolves base mixins. Nil means every base must be declared
	// in the module itself.
	Bases BaseResolver
}

// Program is an analyzed module, ready for lowering and code generation.
type Program struct {
	Module *ast.Module
	Table  *symbols.Table

	// Shaders lists every shader of the composition, most derived first.
	Shaders []*Shader

	Structs   []*symbols.Struct
	CBuffers  []*CBuffer
	Globals   []*Global
	Streams   []*StreamVar
	Functions []*Function

	// Calls holds the overload sets of the composition; local
	// definitions come before inherited ones.
	Calls *symbols.FunctionTable[*Function]

	EntryPoints []*EntryPoint
	Layouts     []*StageStreamLayout

	Warnings []*Warning
}

// Shader is one shader class of a composition.
type Shader struct {
	Decl  *ast.ShaderDecl
	Name  string
	Bases []string

	// Inherited reports whether the shader was pulled in as a base mixin.
	Inherited bool
}

// Global is a module or shader level variable that is not a stream.
type Global struct {
	Symbol *symbols.Symbol
	Decl   *ast.VarDecl
	Type   symbols.Type

	// Private globals (static or const) live in the Private storage
	// class; others are uniforms and belong to CBuffer.
	Private bool
	CBuffer *CBuffer
	Member  int
}

// CBuffer is a block of uniforms.
type CBuffer struct {
	Name    string
	Decl    *ast.CBufferDecl // nil for the implicit Globals block
	Struct  *symbols.Struct
	Members []*Global
	Binding int
	Set     int
}

// StreamVar is a stream variable of the composition.
type StreamVar struct {
	Symbol     *symbols.Symbol
	Decl       *ast.VarDecl
	Name       string
	Type       symbols.Type
	Semantic   string
	Qualifiers ast.Qualifier
	Shader     string
	Mixin      string // base mixin declaring the stream, empty for the compiled source
}

// Patch reports whether the stream holds per-patch data.
func (v *StreamVar) Patch() bool { return v.Qualifiers.Has(ast.QualPatch) }

// Function is an analyzed function.
type Function struct {
	Decl   *ast.FuncDecl
	Name   string
	Shader string

	Params []*symbols.Symbol
	Result symbols.Type
	Locals []*symbols.Symbol

	// Stream accesses, in order of first occurrence.
	Reads  []*StreamVar
	Writes []*StreamVar

	Callees   []*Function
	Inherited bool
	Mixin     string // base mixin declaring the function, empty for the compiled source
}

// QualifiedName returns Shader.Name, or Name for module-level functions.
func (f *Function) QualifiedName() string {
	if f.Shader == "" {
		return f.Name
	}
	return f.Shader + "." + f.Name
}

// ParamTypes returns the declared parameter types.
func (f *Function) ParamTypes() []symbols.Type {
	out := make([]symbols.Type, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Type
	}
	return out
}

// Abstract reports whether the function has no body.
func (f *Function) Abstract() bool { return f.Decl.Body == nil }

// EntryPoint is the function a stage starts in.
type EntryPoint struct {
	Stage    Stage
	Function *Function
	Layout   *StageStreamLayout

	// Functions reachable from the entry point, callees first.
	Functions []*Function

	// Stream accesses of every reachable function, in declaration order.
	Reads  []*StreamVar
	Writes []*StreamVar

	// Execution parameters taken from attributes.
	WorkgroupSize  [3]uint32
	OutputVertices uint32
	MaxVertexCount uint32
	Domain         string
}

// Direction of a stage interface variable.
type Direction uint8

const (
	Input Direction = iota
	Output
	PatchConstant
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	return "patch constant"
}

// StreamVariableInfo is one interface variable of a stage.
type StreamVariableInfo struct {
	Name      string
	Type      symbols.Type
	Semantic  string
	Direction Direction

	// Stream is nil for entry point parameters and results. Param is
	// nil for streams and results. Field is the member index when a
	// struct parameter or result is flattened, -1 otherwise.
	Stream *StreamVar
	Param  *symbols.Symbol
	Field  int

	// Location is the interface location of user semantics, -1 for
	// system values.
	Location int
	System   *SystemValue

	// InterfaceID is the SPIR-V id of the interface variable, set by
	// the code generator.
	InterfaceID uint32
}

// StageStreamLayout describes the interface of one entry point.
type StageStreamLayout struct {
	Stage   Stage
	Inputs  []*StreamVariableInfo
	Outputs []*StreamVariableInfo
	Patch   []*StreamVariableInfo

	InputType  *symbols.Struct
	OutputType *symbols.Struct
	PatchType  *symbols.Struct
}
