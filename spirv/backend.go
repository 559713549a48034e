package spirv

import (
	"slices"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/symbols"
)

// Backend translates analyzed programs to SPIR-V.
type Backend struct {
	prog    *sema.Program
	builder *ModuleBuilder
	options Options
	module  *Module
	err     error

	// Type caches
	typeIDs     map[string]uint32
	structIDs   map[*symbols.Struct]uint32
	pointerIDs  map[pointerKey]uint32
	funcTypeIDs map[string]uint32
	laidOut     map[uint32]bool

	// Constant cache
	constIDs map[constKey]uint32

	// Global variables
	streamVars  map[*sema.StreamVar]uint32
	globalVars  map[*sema.Global]uint32
	cbufferVars map[*sema.CBuffer]uint32
	staticVars  map[*symbols.Symbol]uint32
	globalOrder []uint32

	// Private globals initialized by the entry point
	lateInits []*sema.Global

	capabilities map[Capability]bool

	// GLSL.std.450 import ID (for math functions)
	glslExtID uint32
}

// NewBackend creates a new SPIR-V backend.
func NewBackend(options Options) *Backend {
	return &Backend{options: options}
}

func (b *Backend) reset(prog *sema.Program) {
	b.prog = prog
	b.builder = NewModuleBuilder(b.options.Version)
	b.builder.SetMaxID(b.options.MaxID)
	b.module = NewModule()
	b.err = nil
	b.typeIDs = make(map[string]uint32)
	b.structIDs = make(map[*symbols.Struct]uint32)
	b.pointerIDs = make(map[pointerKey]uint32)
	b.funcTypeIDs = make(map[string]uint32)
	b.laidOut = make(map[uint32]bool)
	b.constIDs = make(map[constKey]uint32)
	b.streamVars = make(map[*sema.StreamVar]uint32)
	b.globalVars = make(map[*sema.Global]uint32)
	b.cbufferVars = make(map[*sema.CBuffer]uint32)
	b.staticVars = make(map[*symbols.Symbol]uint32)
	b.globalOrder = nil
	b.lateInits = nil
	b.capabilities = make(map[Capability]bool)
}

// fail records the first error of the compilation.
func (b *Backend) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Backend) requireCapability(c Capability) {
	if b.capabilities[c] {
		return
	}
	b.capabilities[c] = true
	b.builder.AddCapability(c)
}

// Compile translates an analyzed program to a SPIR-V module. The program
// must be free of semantic errors. Compile is deterministic: the same
// program always yields the same words.
func (b *Backend) Compile(prog *sema.Program) (Buffer, error) {
	b.reset(prog)

	for _, ep := range prog.EntryPoints {
		if _, ok := executionModel(ep.Stage); !ok {
			return nil, emissionErrorf("%s entry points are not supported", ep.Stage)
		}
	}

	// 1. Capabilities
	b.requireCapability(CapabilityShader)
	for _, c := range b.options.Capabilities {
		b.requireCapability(c)
	}

	// 2. Extended instruction sets
	b.glslExtID = b.builder.AddExtInstImport("GLSL.std.450")

	// 3. Memory model
	b.builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	// 4. Global variables
	b.emitStreams()
	b.emitCBuffers()
	b.emitPrivateGlobals()

	// 5. Functions, declared before any body so that calls can refer to
	// callees emitted later
	funcs := b.reachableFunctions()
	for _, f := range funcs {
		b.declareFunction(f)
	}
	for _, f := range funcs {
		if err := b.emitFunction(f); err != nil {
			return nil, err
		}
	}

	// 6. Entry points, execution modes and their interfaces
	for _, ep := range prog.EntryPoints {
		if err := b.emitEntryPoint(ep); err != nil {
			return nil, err
		}
	}

	if b.err != nil {
		return nil, b.err
	}
	return b.builder.Build()
}

// reachableFunctions lists the functions to emit: those reachable from
// an entry point, or every implemented function when there is none.
func (b *Backend) reachableFunctions() []*sema.Function {
	if len(b.prog.EntryPoints) == 0 {
		var out []*sema.Function
		for _, f := range b.prog.Functions {
			if !f.Abstract() {
				out = append(out, f)
			}
		}
		return out
	}
	var out []*sema.Function
	for _, ep := range b.prog.EntryPoints {
		for _, f := range ep.Functions {
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out
}

func (b *Backend) name(id uint32, name string) {
	if b.options.Debug && name != "" {
		b.builder.AddName(id, name)
	}
}

func (b *Backend) emitStreams() {
	for _, sv := range b.prog.Streams {
		id := b.builder.AddVariable(b.pointerTypeID(StorageClassPrivate, sv.Type), StorageClassPrivate)
		b.name(id, "streams."+sv.Name)
		b.streamVars[sv] = id
		b.globalOrder = append(b.globalOrder, id)
	}
}

func (b *Backend) emitCBuffers() {
	for _, cb := range b.prog.CBuffers {
		if len(cb.Members) == 0 {
			continue
		}
		structID := b.structID(cb.Struct)
		b.builder.AddDecorate(structID, DecorationBlock)
		b.decorateLayout(cb.Struct)
		id := b.builder.AddVariable(b.pointerTypeID(StorageClassUniform, cb.Struct), StorageClassUniform)
		b.name(id, cb.Name)
		b.builder.AddDecorate(id, DecorationDescriptorSet, uint32(cb.Set))
		b.builder.AddDecorate(id, DecorationBinding, uint32(cb.Binding))
		b.cbufferVars[cb] = id
		b.globalOrder = append(b.globalOrder, id)
	}
}

func (b *Backend) emitPrivateGlobals() {
	for _, g := range b.prog.Globals {
		if !g.Private {
			continue
		}
		ptr := b.pointerTypeID(StorageClassPrivate, g.Type)
		var id uint32
		if init, ok := b.constExpr(g.Decl.Init, g.Type); ok {
			id = b.builder.AddVariableWithInit(ptr, StorageClassPrivate, init)
		} else {
			id = b.builder.AddVariable(ptr, StorageClassPrivate)
			if g.Decl.Init != nil {
				b.lateInits = append(b.lateInits, g)
			}
		}
		b.name(id, g.Decl.Name)
		b.globalVars[g] = id
		b.globalOrder = append(b.globalOrder, id)
	}
}

// staticLocal returns the Private variable of a static local variable.
func (b *Backend) staticLocal(sym *symbols.Symbol, decl *ast.VarDecl) (uint32, bool) {
	if id, ok := b.staticVars[sym]; ok {
		return id, true
	}
	ptr := b.pointerTypeID(StorageClassPrivate, sym.Type)
	var id uint32
	init, constant := b.constExpr(decl.Init, sym.Type)
	if constant {
		id = b.builder.AddVariableWithInit(ptr, StorageClassPrivate, init)
	} else {
		id = b.builder.AddVariable(ptr, StorageClassPrivate)
	}
	b.name(id, decl.Name)
	b.staticVars[sym] = id
	b.globalOrder = append(b.globalOrder, id)
	return id, constant || decl.Init == nil
}

func (b *Backend) declareFunction(f *sema.Function) {
	params := make([]uint32, len(f.Params))
	for i, p := range f.Params {
		params[i] = b.pointerTypeID(StorageClassFunction, p.Type)
	}
	result := b.typeID(f.Result)
	fn := &Function{
		Value:      Value{ID: b.builder.AllocID(), TypeID: b.functionTypeID(result, params...), Name: f.QualifiedName()},
		Source:     f,
		ParamTypes: params,
	}
	b.name(fn.ID, fn.Name)
	b.module.Add(fn)
}

func executionModel(st sema.Stage) (ExecutionModel, bool) {
	switch st {
	case sema.Vertex:
		return ExecutionModelVertex, true
	case sema.Pixel:
		return ExecutionModelFragment, true
	case sema.Compute:
		return ExecutionModelGLCompute, true
	}
	return 0, false
}
