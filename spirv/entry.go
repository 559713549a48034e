package spirv

import (
	"slices"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/symbols"
)

// builtin describes how a system value maps to a SPIR-V built-in.
type builtin struct {
	id   BuiltIn
	typ  symbols.Type // nil keeps the declared type
	caps []Capability
}

var (
	float4Type = symbols.Vector{Elem: symbols.FloatType, Size: 4}
	uint3Type  = symbols.Vector{Elem: symbols.UIntType, Size: 3}
)

// builtinFor maps the system value of an interface variable for stage.
func builtinFor(info *sema.StreamVariableInfo, stage sema.Stage) (builtin, bool) {
	switch info.System.Name {
	case "SV_POSITION":
		if stage == sema.Pixel && info.Direction == sema.Input {
			return builtin{id: BuiltInFragCoord, typ: float4Type}, true
		}
		return builtin{id: BuiltInPosition, typ: float4Type}, true
	case "SV_DEPTH":
		return builtin{id: BuiltInFragDepth, typ: symbols.FloatType}, true
	case "SV_VERTEXID":
		return builtin{id: BuiltInVertexIndex, typ: symbols.IntType}, true
	case "SV_INSTANCEID":
		return builtin{id: BuiltInInstanceIndex, typ: symbols.IntType}, true
	case "SV_ISFRONTFACE":
		return builtin{id: BuiltInFrontFacing, typ: symbols.BoolType}, true
	case "SV_SAMPLEINDEX":
		return builtin{id: BuiltInSampleID, typ: symbols.IntType, caps: []Capability{CapabilitySampleRate}}, true
	case "SV_PRIMITIVEID":
		return builtin{id: BuiltInPrimitiveID, typ: symbols.IntType, caps: []Capability{CapabilityGeometry}}, true
	case "SV_CLIPDISTANCE":
		return builtin{id: BuiltInClipDistance, typ: distanceArray(info.Type), caps: []Capability{CapabilityClipDistance}}, true
	case "SV_CULLDISTANCE":
		return builtin{id: BuiltInCullDistance, typ: distanceArray(info.Type), caps: []Capability{CapabilityCullDistance}}, true
	case "SV_DISPATCHTHREADID":
		return builtin{id: BuiltInGlobalInvocationID, typ: uint3Type}, true
	case "SV_GROUPID":
		return builtin{id: BuiltInWorkgroupID, typ: uint3Type}, true
	case "SV_GROUPTHREADID":
		return builtin{id: BuiltInLocalInvocationID, typ: uint3Type}, true
	case "SV_GROUPINDEX":
		return builtin{id: BuiltInLocalInvocationIndex, typ: symbols.UIntType}, true
	}
	return builtin{}, false
}

func distanceArray(t symbols.Type) symbols.Type {
	return symbols.Array{Elem: symbols.FloatType, Len: max(symbols.Components(t), 1)}
}

// interfaceVar declares the Input or Output variable of info.
func (b *Backend) interfaceVar(info *sema.StreamVariableInfo, stage sema.Stage) (uint32, symbols.Type, error) {
	class := StorageClassInput
	if info.Direction == sema.Output {
		class = StorageClassOutput
	}
	t := info.Type
	var bi builtin
	if info.System != nil && info.Location < 0 {
		var ok bool
		if bi, ok = builtinFor(info, stage); !ok {
			return 0, nil, emissionErrorf("system value %s is not supported for %s entry points", info.Semantic, stage)
		}
		if bi.typ != nil {
			t = bi.typ
		}
		for _, c := range bi.caps {
			b.requireCapability(c)
		}
	} else if s, ok := symbols.ScalarOf(t); ok && s.Kind == symbols.Bool {
		t = symbols.WithScalar(t, symbols.UInt)
	}

	id := b.builder.AddVariable(b.pointerTypeID(class, t), class)
	info.InterfaceID = id
	prefix := "in."
	if class == StorageClassOutput {
		prefix = "out."
	}
	b.name(id, prefix+info.Name)

	if info.System != nil && info.Location < 0 {
		b.builder.AddDecorate(id, DecorationBuiltIn, uint32(bi.id))
		return id, t, nil
	}
	b.builder.AddDecorate(id, DecorationLocation, uint32(info.Location))
	if stage == sema.Pixel && class == StorageClassInput {
		s, _ := symbols.ScalarOf(t)
		var quals ast.Qualifier
		if info.Stream != nil {
			quals = info.Stream.Qualifiers
		}
		switch {
		case !s.Kind.IsFloat() || quals.Has(ast.QualNoInterpolation):
			b.builder.AddDecorate(id, DecorationFlat)
		case quals.Has(ast.QualCentroid):
			b.builder.AddDecorate(id, DecorationCentroid)
		}
	}
	return id, t, nil
}

// emitEntryPoint emits the wrapper function of ep. The wrapper copies
// the stage inputs into streams and parameters, calls the entry
// function and copies streams, out parameters and the result to the
// stage outputs.
func (b *Backend) emitEntryPoint(ep *sema.EntryPoint) error {
	model, _ := executionModel(ep.Stage)
	fn, ok := b.module.Lookup(ep.Function.Decl)
	if !ok {
		return emissionErrorf("entry point %s was not emitted", ep.Function.QualifiedName())
	}
	l := ep.Layout

	type port struct {
		info *sema.StreamVariableInfo
		id   uint32
		typ  symbols.Type
	}
	var inputs, outputs []port
	var ifaces []uint32
	for _, info := range l.Inputs {
		id, t, err := b.interfaceVar(info, ep.Stage)
		if err != nil {
			return err
		}
		inputs = append(inputs, port{info, id, t})
		ifaces = append(ifaces, id)
	}
	for _, info := range l.Outputs {
		id, t, err := b.interfaceVar(info, ep.Stage)
		if err != nil {
			return err
		}
		outputs = append(outputs, port{info, id, t})
		ifaces = append(ifaces, id)
	}
	if b.options.Version.Major > 1 || b.options.Version.Minor >= 4 {
		// From SPIR-V 1.4 the interface lists every global the entry
		// point may touch.
		ifaces = append(ifaces, b.globalOrder...)
	}

	void := b.typeID(symbols.VoidType)
	id := b.builder.AddFunction(b.functionTypeID(void), void, FunctionControlNone)
	b.name(id, ep.Function.Name)
	b.builder.AddLabel()
	fe := newFuncEmitter(b, nil)

	for _, g := range b.lateInits {
		v, err := fe.exprAs(g.Decl.Init, g.Type)
		if err != nil {
			return err
		}
		b.builder.AddStore(b.globalVars[g], v)
	}

	f := ep.Function
	temps := make([]uint32, len(f.Params))
	for i, p := range f.Params {
		temps[i] = b.builder.AddLocalVariable(b.pointerTypeID(StorageClassFunction, p.Type))
		b.name(temps[i], p.Name)
	}
	paramPtr := func(info *sema.StreamVariableInfo) uint32 {
		i := slices.Index(f.Params, info.Param)
		if info.Field < 0 {
			return temps[i]
		}
		return b.builder.AddAccessChain(b.pointerTypeID(StorageClassFunction, info.Type), temps[i], b.constInt(int32(info.Field)))
	}

	for _, in := range inputs {
		v := b.convert(b.builder.AddLoad(b.typeID(in.typ), in.id), in.typ, in.info.Type)
		switch {
		case in.info.Stream != nil:
			b.builder.AddStore(b.streamVars[in.info.Stream], v)
		case in.info.Param != nil:
			b.builder.AddStore(paramPtr(in.info), v)
		}
	}

	result := b.builder.AddFunctionCall(b.typeID(f.Result), fn.ID, temps...)

	for _, out := range outputs {
		var v uint32
		info := out.info
		switch {
		case info.Stream != nil:
			v = b.builder.AddLoad(b.typeID(info.Type), b.streamVars[info.Stream])
		case info.Param != nil:
			v = b.builder.AddLoad(b.typeID(info.Type), paramPtr(info))
		case info.Field >= 0:
			v = b.builder.AddCompositeExtract(b.typeID(info.Type), result, uint32(info.Field))
		default:
			v = result
		}
		b.builder.AddStore(out.id, b.convert(v, info.Type, out.typ))
	}
	b.builder.AddReturn()
	b.builder.AddFunctionEnd()

	b.builder.AddEntryPoint(model, id, ep.Function.Name, ifaces)
	switch ep.Stage {
	case sema.Pixel:
		b.builder.AddExecutionMode(id, ExecutionModeOriginUpperLeft)
		for _, out := range outputs {
			if out.info.System != nil && out.info.System.Name == "SV_DEPTH" {
				b.builder.AddExecutionMode(id, ExecutionModeDepthReplacing)
				break
			}
		}
	case sema.Compute:
		size := ep.WorkgroupSize
		b.builder.AddExecutionMode(id, ExecutionModeLocalSize, size[0], size[1], size[2])
	}
	return b.err
}
