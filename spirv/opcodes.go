package spirv

import "strconv"

// OpCode represents a SPIR-V opcode.
type OpCode uint16

// Opcodes emitted or decoded by this package.
const (
	OpNop                    OpCode = 0
	OpUndef                  OpCode = 1
	OpSource                 OpCode = 3
	OpSourceExtension        OpCode = 4
	OpName                   OpCode = 5
	OpMemberName             OpCode = 6
	OpString                 OpCode = 7
	OpLine                   OpCode = 8
	OpExtension              OpCode = 10
	OpExtInstImport          OpCode = 11
	OpExtInst                OpCode = 12
	OpMemoryModel            OpCode = 14
	OpEntryPoint             OpCode = 15
	OpExecutionMode          OpCode = 16
	OpCapability             OpCode = 17
	OpTypeVoid               OpCode = 19
	OpTypeBool               OpCode = 20
	OpTypeInt                OpCode = 21
	OpTypeFloat              OpCode = 22
	OpTypeVector             OpCode = 23
	OpTypeMatrix             OpCode = 24
	OpTypeImage              OpCode = 25
	OpTypeSampler            OpCode = 26
	OpTypeSampledImage       OpCode = 27
	OpTypeArray              OpCode = 28
	OpTypeRuntimeArray       OpCode = 29
	OpTypeStruct             OpCode = 30
	OpTypePointer            OpCode = 32
	OpTypeFunction           OpCode = 33
	OpConstantTrue           OpCode = 41
	OpConstantFalse          OpCode = 42
	OpConstant               OpCode = 43
	OpConstantComposite      OpCode = 44
	OpConstantNull           OpCode = 46
	OpFunction               OpCode = 54
	OpFunctionParameter      OpCode = 55
	OpFunctionEnd            OpCode = 56
	OpFunctionCall           OpCode = 57
	OpVariable               OpCode = 59
	OpLoad                   OpCode = 61
	OpStore                  OpCode = 62
	OpAccessChain            OpCode = 65
	OpDecorate               OpCode = 71
	OpMemberDecorate         OpCode = 72
	OpVectorExtractDynamic   OpCode = 77
	OpVectorInsertDynamic    OpCode = 78
	OpVectorShuffle          OpCode = 79
	OpCompositeConstruct     OpCode = 80
	OpCompositeExtract       OpCode = 81
	OpCompositeInsert        OpCode = 82
	OpCopyObject             OpCode = 83
	OpTranspose              OpCode = 84
	OpConvertFToU            OpCode = 109
	OpConvertFToS            OpCode = 110
	OpConvertSToF            OpCode = 111
	OpConvertUToF            OpCode = 112
	OpUConvert               OpCode = 113
	OpSConvert               OpCode = 114
	OpFConvert               OpCode = 115
	OpBitcast                OpCode = 124
	OpSNegate                OpCode = 126
	OpFNegate                OpCode = 127
	OpIAdd                   OpCode = 128
	OpFAdd                   OpCode = 129
	OpISub                   OpCode = 130
	OpFSub                   OpCode = 131
	OpIMul                   OpCode = 132
	OpFMul                   OpCode = 133
	OpUDiv                   OpCode = 134
	OpSDiv                   OpCode = 135
	OpFDiv                   OpCode = 136
	OpUMod                   OpCode = 137
	OpSRem                   OpCode = 138
	OpSMod                   OpCode = 139
	OpFRem                   OpCode = 140
	OpFMod                   OpCode = 141
	OpVectorTimesScalar      OpCode = 142
	OpMatrixTimesScalar      OpCode = 143
	OpVectorTimesMatrix      OpCode = 144
	OpMatrixTimesVector      OpCode = 145
	OpMatrixTimesMatrix      OpCode = 146
	OpOuterProduct           OpCode = 147
	OpDot                    OpCode = 148
	OpAny                    OpCode = 154
	OpAll                    OpCode = 155
	OpIsNan                  OpCode = 156
	OpIsInf                  OpCode = 157
	OpLogicalEqual           OpCode = 164
	OpLogicalNotEqual        OpCode = 165
	OpLogicalOr              OpCode = 166
	OpLogicalAnd             OpCode = 167
	OpLogicalNot             OpCode = 168
	OpSelect                 OpCode = 169
	OpIEqual                 OpCode = 170
	OpINotEqual              OpCode = 171
	OpUGreaterThan           OpCode = 172
	OpSGreaterThan           OpCode = 173
	OpUGreaterThanEqual      OpCode = 174
	OpSGreaterThanEqual      OpCode = 175
	OpULessThan              OpCode = 176
	OpSLessThan              OpCode = 177
	OpULessThanEqual         OpCode = 178
	OpSLessThanEqual         OpCode = 179
	OpFOrdEqual              OpCode = 180
	OpFUnordEqual            OpCode = 181
	OpFOrdNotEqual           OpCode = 182
	OpFUnordNotEqual         OpCode = 183
	OpFOrdLessThan           OpCode = 184
	OpFUnordLessThan         OpCode = 185
	OpFOrdGreaterThan        OpCode = 186
	OpFUnordGreaterThan      OpCode = 187
	OpFOrdLessThanEqual      OpCode = 188
	OpFUnordLessThanEqual    OpCode = 189
	OpFOrdGreaterThanEqual   OpCode = 190
	OpFUnordGreaterThanEqual OpCode = 191
	OpShiftRightLogical      OpCode = 194
	OpShiftRightArithmetic   OpCode = 195
	OpShiftLeftLogical       OpCode = 196
	OpBitwiseOr              OpCode = 197
	OpBitwiseXor             OpCode = 198
	OpBitwiseAnd             OpCode = 199
	OpNot                    OpCode = 200
	OpDPdx                   OpCode = 207
	OpDPdy                   OpCode = 208
	OpFwidth                 OpCode = 209
	OpPhi                    OpCode = 245
	OpLoopMerge              OpCode = 246
	OpSelectionMerge         OpCode = 247
	OpLabel                  OpCode = 248
	OpBranch                 OpCode = 249
	OpBranchConditional      OpCode = 250
	OpSwitch                 OpCode = 251
	OpKill                   OpCode = 252
	OpReturn                 OpCode = 253
	OpReturnValue            OpCode = 254
	OpUnreachable            OpCode = 255
)

var opNames = map[OpCode]string{
	OpNop: "OpNop", OpUndef: "OpUndef", OpSource: "OpSource", OpSourceExtension: "OpSourceExtension",
	OpName: "OpName", OpMemberName: "OpMemberName", OpString: "OpString", OpLine: "OpLine",
	OpExtension: "OpExtension", OpExtInstImport: "OpExtInstImport", OpExtInst: "OpExtInst",
	OpMemoryModel: "OpMemoryModel", OpEntryPoint: "OpEntryPoint", OpExecutionMode: "OpExecutionMode",
	OpCapability: "OpCapability",
	OpTypeVoid:   "OpTypeVoid", OpTypeBool: "OpTypeBool", OpTypeInt: "OpTypeInt", OpTypeFloat: "OpTypeFloat",
	OpTypeVector: "OpTypeVector", OpTypeMatrix: "OpTypeMatrix", OpTypeImage: "OpTypeImage",
	OpTypeSampler: "OpTypeSampler", OpTypeSampledImage: "OpTypeSampledImage", OpTypeArray: "OpTypeArray",
	OpTypeRuntimeArray: "OpTypeRuntimeArray", OpTypeStruct: "OpTypeStruct", OpTypePointer: "OpTypePointer",
	OpTypeFunction: "OpTypeFunction",
	OpConstantTrue: "OpConstantTrue", OpConstantFalse: "OpConstantFalse", OpConstant: "OpConstant",
	OpConstantComposite: "OpConstantComposite", OpConstantNull: "OpConstantNull",
	OpFunction: "OpFunction", OpFunctionParameter: "OpFunctionParameter", OpFunctionEnd: "OpFunctionEnd",
	OpFunctionCall: "OpFunctionCall", OpVariable: "OpVariable", OpLoad: "OpLoad", OpStore: "OpStore",
	OpAccessChain: "OpAccessChain", OpDecorate: "OpDecorate", OpMemberDecorate: "OpMemberDecorate",
	OpVectorExtractDynamic: "OpVectorExtractDynamic", OpVectorInsertDynamic: "OpVectorInsertDynamic",
	OpVectorShuffle: "OpVectorShuffle", OpCompositeConstruct: "OpCompositeConstruct",
	OpCompositeExtract: "OpCompositeExtract", OpCompositeInsert: "OpCompositeInsert",
	OpCopyObject: "OpCopyObject", OpTranspose: "OpTranspose",
	OpConvertFToU: "OpConvertFToU", OpConvertFToS: "OpConvertFToS", OpConvertSToF: "OpConvertSToF",
	OpConvertUToF: "OpConvertUToF", OpUConvert: "OpUConvert", OpSConvert: "OpSConvert",
	OpFConvert: "OpFConvert", OpBitcast: "OpBitcast",
	OpSNegate: "OpSNegate", OpFNegate: "OpFNegate", OpIAdd: "OpIAdd", OpFAdd: "OpFAdd",
	OpISub: "OpISub", OpFSub: "OpFSub", OpIMul: "OpIMul", OpFMul: "OpFMul",
	OpUDiv: "OpUDiv", OpSDiv: "OpSDiv", OpFDiv: "OpFDiv", OpUMod: "OpUMod", OpSRem: "OpSRem",
	OpSMod: "OpSMod", OpFRem: "OpFRem", OpFMod: "OpFMod",
	OpVectorTimesScalar: "OpVectorTimesScalar", OpMatrixTimesScalar: "OpMatrixTimesScalar",
	OpVectorTimesMatrix: "OpVectorTimesMatrix", OpMatrixTimesVector: "OpMatrixTimesVector",
	OpMatrixTimesMatrix: "OpMatrixTimesMatrix", OpOuterProduct: "OpOuterProduct", OpDot: "OpDot",
	OpAny: "OpAny", OpAll: "OpAll", OpIsNan: "OpIsNan", OpIsInf: "OpIsInf",
	OpLogicalEqual: "OpLogicalEqual", OpLogicalNotEqual: "OpLogicalNotEqual",
	OpLogicalOr: "OpLogicalOr", OpLogicalAnd: "OpLogicalAnd", OpLogicalNot: "OpLogicalNot",
	OpSelect: "OpSelect", OpIEqual: "OpIEqual", OpINotEqual: "OpINotEqual",
	OpUGreaterThan: "OpUGreaterThan", OpSGreaterThan: "OpSGreaterThan",
	OpUGreaterThanEqual: "OpUGreaterThanEqual", OpSGreaterThanEqual: "OpSGreaterThanEqual",
	OpULessThan: "OpULessThan", OpSLessThan: "OpSLessThan",
	OpULessThanEqual: "OpULessThanEqual", OpSLessThanEqual: "OpSLessThanEqual",
	OpFOrdEqual: "OpFOrdEqual", OpFUnordEqual: "OpFUnordEqual",
	OpFOrdNotEqual: "OpFOrdNotEqual", OpFUnordNotEqual: "OpFUnordNotEqual",
	OpFOrdLessThan: "OpFOrdLessThan", OpFUnordLessThan: "OpFUnordLessThan",
	OpFOrdGreaterThan: "OpFOrdGreaterThan", OpFUnordGreaterThan: "OpFUnordGreaterThan",
	OpFOrdLessThanEqual: "OpFOrdLessThanEqual", OpFUnordLessThanEqual: "OpFUnordLessThanEqual",
	OpFOrdGreaterThanEqual: "OpFOrdGreaterThanEqual", OpFUnordGreaterThanEqual: "OpFUnordGreaterThanEqual",
	OpShiftRightLogical: "OpShiftRightLogical", OpShiftRightArithmetic: "OpShiftRightArithmetic",
	OpShiftLeftLogical: "OpShiftLeftLogical", OpBitwiseOr: "OpBitwiseOr", OpBitwiseXor: "OpBitwiseXor",
	OpBitwiseAnd: "OpBitwiseAnd", OpNot: "OpNot",
	OpDPdx: "OpDPdx", OpDPdy: "OpDPdy", OpFwidth: "OpFwidth",
	OpPhi: "OpPhi", OpLoopMerge: "OpLoopMerge", OpSelectionMerge: "OpSelectionMerge",
	OpLabel: "OpLabel", OpBranch: "OpBranch", OpBranchConditional: "OpBranchConditional",
	OpSwitch: "OpSwitch", OpKill: "OpKill", OpReturn: "OpReturn", OpReturnValue: "OpReturnValue",
	OpUnreachable: "OpUnreachable",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "Op" + strconv.Itoa(int(op))
}

// resultShape tells where an opcode's result type and id are encoded.
type resultShape uint8

const (
	noResult   resultShape = iota
	resultOnly             // result id is the first operand
	typedResult            // result type then result id
)

// shape returns the result layout of op.
func (op OpCode) shape() resultShape {
	switch op {
	case OpString, OpExtInstImport, OpLabel,
		OpTypeVoid, OpTypeBool, OpTypeInt, OpTypeFloat, OpTypeVector, OpTypeMatrix,
		OpTypeImage, OpTypeSampler, OpTypeSampledImage, OpTypeArray, OpTypeRuntimeArray,
		OpTypeStruct, OpTypePointer, OpTypeFunction:
		return resultOnly
	case OpNop, OpSource, OpSourceExtension, OpName, OpMemberName, OpLine, OpExtension,
		OpMemoryModel, OpEntryPoint, OpExecutionMode, OpCapability, OpFunctionEnd,
		OpStore, OpDecorate, OpMemberDecorate, OpLoopMerge, OpSelectionMerge,
		OpBranch, OpBranchConditional, OpSwitch, OpKill, OpReturn, OpReturnValue, OpUnreachable:
		return noResult
	}
	return typedResult
}

// Capability represents a SPIR-V capability.
type Capability uint32

const (
	CapabilityMatrix       Capability = 0
	CapabilityShader       Capability = 1
	CapabilityGeometry     Capability = 2
	CapabilityTessellation Capability = 3
	CapabilityFloat16      Capability = 9
	CapabilityFloat64      Capability = 10
	CapabilityInt64        Capability = 11
	CapabilityClipDistance Capability = 32
	CapabilityCullDistance Capability = 33
	CapabilitySampleRate   Capability = 35
	CapabilityRayTracing   Capability = 4479
)

// AddressingModel represents a SPIR-V addressing model.
type AddressingModel uint32

const AddressingModelLogical AddressingModel = 0

// MemoryModel represents a SPIR-V memory model.
type MemoryModel uint32

const (
	MemoryModelSimple  MemoryModel = 0
	MemoryModelGLSL450 MemoryModel = 1
	MemoryModelVulkan  MemoryModel = 3
)

// ExecutionModel is the pipeline stage of an entry point.
type ExecutionModel uint32

const (
	ExecutionModelVertex                 ExecutionModel = 0
	ExecutionModelTessellationControl    ExecutionModel = 1
	ExecutionModelTessellationEvaluation ExecutionModel = 2
	ExecutionModelGeometry               ExecutionModel = 3
	ExecutionModelFragment               ExecutionModel = 4
	ExecutionModelGLCompute              ExecutionModel = 5
	ExecutionModelRayGeneration          ExecutionModel = 5313
	ExecutionModelIntersection           ExecutionModel = 5314
	ExecutionModelAnyHit                 ExecutionModel = 5315
	ExecutionModelClosestHit             ExecutionModel = 5316
	ExecutionModelMiss                   ExecutionModel = 5317
	ExecutionModelCallable               ExecutionModel = 5318
)

var executionModelNames = map[ExecutionModel]string{
	ExecutionModelVertex:                 "Vertex",
	ExecutionModelTessellationControl:    "TessellationControl",
	ExecutionModelTessellationEvaluation: "TessellationEvaluation",
	ExecutionModelGeometry:               "Geometry",
	ExecutionModelFragment:               "Fragment",
	ExecutionModelGLCompute:              "GLCompute",
	ExecutionModelRayGeneration:          "RayGenerationKHR",
	ExecutionModelIntersection:           "IntersectionKHR",
	ExecutionModelAnyHit:                 "AnyHitKHR",
	ExecutionModelClosestHit:             "ClosestHitKHR",
	ExecutionModelMiss:                   "MissKHR",
	ExecutionModelCallable:               "CallableKHR",
}

func (m ExecutionModel) String() string {
	if name, ok := executionModelNames[m]; ok {
		return name
	}
	return "ExecutionModel(" + strconv.Itoa(int(m)) + ")"
}

// ExecutionMode configures an entry point.
type ExecutionMode uint32

const (
	ExecutionModeInvocations         ExecutionMode = 0
	ExecutionModeSpacingEqual        ExecutionMode = 1
	ExecutionModeVertexOrderCw       ExecutionMode = 4
	ExecutionModeOriginUpperLeft     ExecutionMode = 7
	ExecutionModeDepthReplacing      ExecutionMode = 12
	ExecutionModeLocalSize           ExecutionMode = 17
	ExecutionModeInputPoints         ExecutionMode = 19
	ExecutionModeTriangles           ExecutionMode = 22
	ExecutionModeQuads               ExecutionMode = 24
	ExecutionModeIsolines            ExecutionMode = 25
	ExecutionModeOutputVertices      ExecutionMode = 26
	ExecutionModeOutputTriangleStrip ExecutionMode = 29
)

// StorageClass represents a SPIR-V storage class.
type StorageClass uint32

const (
	StorageClassUniformConstant StorageClass = 0
	StorageClassInput           StorageClass = 1
	StorageClassUniform         StorageClass = 2
	StorageClassOutput          StorageClass = 3
	StorageClassWorkgroup       StorageClass = 4
	StorageClassPrivate         StorageClass = 6
	StorageClassFunction        StorageClass = 7
	StorageClassPushConstant    StorageClass = 9
	StorageClassStorageBuffer   StorageClass = 12
)

// Decoration represents a SPIR-V decoration.
type Decoration uint32

const (
	DecorationBlock         Decoration = 2
	DecorationRowMajor      Decoration = 4
	DecorationColMajor      Decoration = 5
	DecorationArrayStride   Decoration = 6
	DecorationMatrixStride  Decoration = 7
	DecorationBuiltIn       Decoration = 11
	DecorationNoPerspective Decoration = 13
	DecorationFlat          Decoration = 14
	DecorationPatch         Decoration = 15
	DecorationCentroid      Decoration = 16
	DecorationLocation      Decoration = 30
	DecorationBinding       Decoration = 33
	DecorationDescriptorSet Decoration = 34
	DecorationOffset        Decoration = 35
)

// BuiltIn names a system value.
type BuiltIn uint32

const (
	BuiltInPosition             BuiltIn = 0
	BuiltInClipDistance         BuiltIn = 3
	BuiltInCullDistance         BuiltIn = 4
	BuiltInPrimitiveID          BuiltIn = 7
	BuiltInInvocationID         BuiltIn = 8
	BuiltInTessLevelOuter       BuiltIn = 11
	BuiltInTessLevelInner       BuiltIn = 12
	BuiltInTessCoord            BuiltIn = 13
	BuiltInFragCoord            BuiltIn = 15
	BuiltInFrontFacing          BuiltIn = 17
	BuiltInSampleID             BuiltIn = 18
	BuiltInSampleMask           BuiltIn = 20
	BuiltInFragDepth            BuiltIn = 22
	BuiltInWorkgroupID          BuiltIn = 26
	BuiltInLocalInvocationID    BuiltIn = 27
	BuiltInGlobalInvocationID   BuiltIn = 28
	BuiltInLocalInvocationIndex BuiltIn = 29
	BuiltInVertexIndex          BuiltIn = 42
	BuiltInInstanceIndex        BuiltIn = 43
)

// FunctionControl represents function control flags.
type FunctionControl uint32

const FunctionControlNone FunctionControl = 0

// SelectionControl represents selection control flags.
type SelectionControl uint32

const (
	SelectionControlNone        SelectionControl = 0
	SelectionControlFlatten     SelectionControl = 1
	SelectionControlDontFlatten SelectionControl = 2
)

// LoopControl represents loop control flags.
type LoopControl uint32

const (
	LoopControlNone       LoopControl = 0
	LoopControlUnroll     LoopControl = 1
	LoopControlDontUnroll LoopControl = 2
)

// GLSL.std.450 extended instructions.
const (
	GLSLstd450RoundEven   uint32 = 2
	GLSLstd450Trunc       uint32 = 3
	GLSLstd450FAbs        uint32 = 4
	GLSLstd450SAbs        uint32 = 5
	GLSLstd450FSign       uint32 = 6
	GLSLstd450SSign       uint32 = 7
	GLSLstd450Floor       uint32 = 8
	GLSLstd450Ceil        uint32 = 9
	GLSLstd450Fract       uint32 = 10
	GLSLstd450Radians     uint32 = 11
	GLSLstd450Degrees     uint32 = 12
	GLSLstd450Sin         uint32 = 13
	GLSLstd450Cos         uint32 = 14
	GLSLstd450Tan         uint32 = 15
	GLSLstd450Asin        uint32 = 16
	GLSLstd450Acos        uint32 = 17
	GLSLstd450Atan        uint32 = 18
	GLSLstd450Sinh        uint32 = 19
	GLSLstd450Cosh        uint32 = 20
	GLSLstd450Tanh        uint32 = 21
	GLSLstd450Atan2       uint32 = 25
	GLSLstd450Pow         uint32 = 26
	GLSLstd450Exp         uint32 = 27
	GLSLstd450Log         uint32 = 28
	GLSLstd450Exp2        uint32 = 29
	GLSLstd450Log2        uint32 = 30
	GLSLstd450Sqrt        uint32 = 31
	GLSLstd450InverseSqrt uint32 = 32
	GLSLstd450Determinant uint32 = 33
	GLSLstd450FMin        uint32 = 37
	GLSLstd450UMin        uint32 = 38
	GLSLstd450SMin        uint32 = 39
	GLSLstd450FMax        uint32 = 40
	GLSLstd450UMax        uint32 = 41
	GLSLstd450SMax        uint32 = 42
	GLSLstd450FClamp      uint32 = 43
	GLSLstd450UClamp      uint32 = 44
	GLSLstd450SClamp      uint32 = 45
	GLSLstd450FMix        uint32 = 46
	GLSLstd450Step        uint32 = 48
	GLSLstd450SmoothStep  uint32 = 49
	GLSLstd450Length      uint32 = 66
	GLSLstd450Distance    uint32 = 67
	GLSLstd450Cross       uint32 = 68
	GLSLstd450Normalize   uint32 = 69
	GLSLstd450Reflect     uint32 = 71
	GLSLstd450Refract     uint32 = 72
)
