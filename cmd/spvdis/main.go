// Command spvdis prints a SPIR-V module as assembly text.
//
// Usage:
//
//	spvdis [-raw] <file.spv>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gogpu/sdsl/spirv"
)

var raw = flag.Bool("raw", false, "print ids as numbers instead of debug names")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: spvdis [-raw] <file.spv>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	buf, err := spirv.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := disassemble(os.Stdout, buf, !*raw); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var capabilities = map[uint32]string{
	0: "Matrix", 1: "Shader", 2: "Geometry", 3: "Tessellation",
	9: "Float16", 10: "Float64", 11: "Int64", 32: "ClipDistance",
	33: "CullDistance", 35: "SampleRateShading", 4479: "RayTracingKHR",
}

var storageClasses = map[uint32]string{
	0: "UniformConstant", 1: "Input", 2: "Uniform", 3: "Output",
	4: "Workgroup", 6: "Private", 7: "Function", 9: "PushConstant",
	12: "StorageBuffer",
}

var decorations = map[uint32]string{
	2: "Block", 4: "RowMajor", 5: "ColMajor", 6: "ArrayStride",
	7: "MatrixStride", 11: "BuiltIn", 13: "NoPerspective", 14: "Flat",
	16: "Centroid", 17: "Sample", 30: "Location", 33: "Binding",
	34: "DescriptorSet", 35: "Offset",
}

var builtins = map[uint32]string{
	0: "Position", 3: "ClipDistance", 4: "CullDistance", 15: "FragCoord",
	17: "FrontFacing", 18: "SampleId", 22: "FragDepth", 24: "NumWorkgroups",
	26: "WorkgroupId", 27: "LocalInvocationId", 28: "GlobalInvocationId",
	29: "LocalInvocationIndex", 42: "VertexIndex", 43: "InstanceIndex",
}

var executionModes = map[uint32]string{
	7: "OriginUpperLeft", 12: "DepthReplacing", 17: "LocalSize",
}

var addressingModels = map[uint32]string{0: "Logical"}

var memoryModels = map[uint32]string{0: "Simple", 1: "GLSL450", 3: "Vulkan"}

var selectionControls = map[uint32]string{0: "None", 1: "Flatten", 2: "DontFlatten"}

var loopControls = map[uint32]string{0: "None", 1: "Unroll", 2: "DontUnroll"}

func lookup(m map[uint32]string, v uint32) string {
	if s, ok := m[v]; ok {
		return s
	}
	return strconv.FormatUint(uint64(v), 10)
}

// disassembler formats instructions, naming ids after their OpName when
// names is set.
type disassembler struct {
	w     io.Writer
	names map[uint32]string
	err   error
}

func disassemble(w io.Writer, buf spirv.Buffer, names bool) error {
	d := &disassembler{w: w, names: make(map[uint32]string)}
	h := buf.Header()
	d.printf("; SPIR-V\n")
	d.printf("; Version: %s\n", h.Version)
	d.printf("; Generator: 0x%08X\n", h.Generator)
	d.printf("; Bound: %d\n", h.Bound)
	d.printf("; Schema: %d\n", h.Schema)

	if names {
		for inst, err := range buf.Instructions() {
			if err != nil {
				return err
			}
			if inst.Opcode == spirv.OpName && len(inst.Words) > 1 {
				if s, _ := spirv.DecodeString(inst.Words[1:]); s != "" {
					d.names[inst.Words[0]] = s
				}
			}
		}
	}
	for inst, err := range buf.Instructions() {
		if err != nil {
			return err
		}
		d.instruction(inst)
	}
	return d.err
}

func (d *disassembler) printf(format string, args ...any) {
	if d.err == nil {
		_, d.err = fmt.Fprintf(d.w, format, args...)
	}
}

func (d *disassembler) id(n uint32) string {
	if s, ok := d.names[n]; ok {
		return "%" + s
	}
	return "%" + strconv.FormatUint(uint64(n), 10)
}

func (d *disassembler) ids(words []uint32) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = d.id(w)
	}
	return strings.Join(parts, " ")
}

func literals(words []uint32) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = strconv.FormatUint(uint64(w), 10)
	}
	return strings.Join(parts, " ")
}

// operands formats the operands after the result type and id.
func (d *disassembler) operands(op spirv.OpCode, ops []uint32) string {
	switch op {
	case spirv.OpCapability:
		return lookup(capabilities, ops[0])
	case spirv.OpExtInstImport, spirv.OpString:
		s, _ := spirv.DecodeString(ops)
		return strconv.Quote(s)
	case spirv.OpMemoryModel:
		return lookup(addressingModels, ops[0]) + " " + lookup(memoryModels, ops[1])
	case spirv.OpEntryPoint:
		s, n := spirv.DecodeString(ops[2:])
		out := fmt.Sprintf("%s %s %q", spirv.ExecutionModel(ops[0]), d.id(ops[1]), s)
		if rest := ops[2+n:]; len(rest) > 0 {
			out += " " + d.ids(rest)
		}
		return out
	case spirv.OpExecutionMode:
		out := d.id(ops[0]) + " " + lookup(executionModes, ops[1])
		if len(ops) > 2 {
			out += " " + literals(ops[2:])
		}
		return out
	case spirv.OpName:
		s, _ := spirv.DecodeString(ops[1:])
		return fmt.Sprintf("%s %q", d.id(ops[0]), s)
	case spirv.OpMemberName:
		s, _ := spirv.DecodeString(ops[2:])
		return fmt.Sprintf("%s %d %q", d.id(ops[0]), ops[1], s)
	case spirv.OpDecorate:
		return d.id(ops[0]) + " " + decoration(ops[1:])
	case spirv.OpMemberDecorate:
		return fmt.Sprintf("%s %d %s", d.id(ops[0]), ops[1], decoration(ops[2:]))
	case spirv.OpTypeInt, spirv.OpTypeFloat:
		return literals(ops)
	case spirv.OpTypeVector, spirv.OpTypeMatrix:
		return fmt.Sprintf("%s %d", d.id(ops[0]), ops[1])
	case spirv.OpTypePointer:
		return lookup(storageClasses, ops[0]) + " " + d.id(ops[1])
	case spirv.OpVariable:
		out := lookup(storageClasses, ops[0])
		if len(ops) > 1 {
			out += " " + d.ids(ops[1:])
		}
		return out
	case spirv.OpConstant:
		return literals(ops)
	case spirv.OpFunction:
		return "None " + d.id(ops[1])
	case spirv.OpExtInst:
		out := fmt.Sprintf("%s %d", d.id(ops[0]), ops[1])
		if len(ops) > 2 {
			out += " " + d.ids(ops[2:])
		}
		return out
	case spirv.OpVectorShuffle:
		return d.ids(ops[:2]) + " " + literals(ops[2:])
	case spirv.OpCompositeExtract:
		return d.id(ops[0]) + " " + literals(ops[1:])
	case spirv.OpCompositeInsert:
		return d.ids(ops[:2]) + " " + literals(ops[2:])
	case spirv.OpSelectionMerge:
		return d.id(ops[0]) + " " + lookup(selectionControls, ops[1])
	case spirv.OpLoopMerge:
		return d.ids(ops[:2]) + " " + lookup(loopControls, ops[2])
	case spirv.OpSwitch:
		out := d.ids(ops[:2])
		for i := 2; i+1 < len(ops); i += 2 {
			out += fmt.Sprintf(" %d %s", ops[i], d.id(ops[i+1]))
		}
		return out
	}
	return d.ids(ops)
}

func decoration(ops []uint32) string {
	out := lookup(decorations, ops[0])
	if len(ops) == 1 {
		return out
	}
	if spirv.Decoration(ops[0]) == spirv.DecorationBuiltIn {
		return out + " " + lookup(builtins, ops[1])
	}
	return out + " " + literals(ops[1:])
}

func (d *disassembler) instruction(inst spirv.Instruction) {
	ops := inst.Words
	result, hasResult := inst.ResultID()
	typ, hasType := inst.ResultType()
	switch {
	case hasType:
		ops = ops[2:]
	case hasResult:
		ops = ops[1:]
	}
	if len(ops) < minOperands[inst.Opcode] {
		d.printf("; malformed %s\n", inst.Opcode)
		return
	}

	line := inst.Opcode.String()
	if hasType {
		line += " " + d.id(typ)
	}
	if len(ops) > 0 {
		line += " " + d.operands(inst.Opcode, ops)
	}
	if hasResult {
		d.printf("%14s = %s\n", d.id(result), line)
		return
	}
	d.printf("%17s%s\n", "", line)
}

// minOperands is the operand count the formatting of op relies on.
var minOperands = map[spirv.OpCode]int{
	spirv.OpCapability: 1, spirv.OpMemoryModel: 2, spirv.OpEntryPoint: 2,
	spirv.OpExecutionMode: 2, spirv.OpName: 1, spirv.OpMemberName: 2,
	spirv.OpDecorate: 2, spirv.OpMemberDecorate: 3, spirv.OpTypeVector: 2,
	spirv.OpTypeMatrix: 2, spirv.OpTypePointer: 2, spirv.OpVariable: 1,
	spirv.OpFunction: 2, spirv.OpExtInst: 2, spirv.OpVectorShuffle: 2,
	spirv.OpCompositeExtract: 1, spirv.OpCompositeInsert: 2,
	spirv.OpSelectionMerge: 2, spirv.OpLoopMerge: 3, spirv.OpSwitch: 2,
}
