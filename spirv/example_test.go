package spirv_test

import (
	"errors"
	"fmt"

	"github.com/gogpu/sdsl/spirv"
)

// Instructions may be emitted in any order; Build lays the sections out
// in the order a module requires.
func ExampleModuleBuilder_EmitInstruction() {
	builder := spirv.NewModuleBuilder(spirv.Version1_3)
	float := builder.EmitInstruction(spirv.SectionTypes, spirv.OpTypeFloat, 0, 32)
	builder.AddName(float.ID, "float")
	builder.AddCapability(spirv.CapabilityShader)
	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	buf, err := builder.Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("float id:", float.ID)
	for inst, err := range buf.Instructions() {
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(inst.Opcode)
	}
	// Output:
	// float id: 1
	// OpCapability
	// OpMemoryModel
	// OpName
	// OpTypeFloat
}

func ExampleModuleBuilder_SetMaxID() {
	builder := spirv.NewModuleBuilder(spirv.Version1_3)
	builder.SetMaxID(2)
	builder.AddTypeVoid()
	builder.AddTypeBool()
	builder.AddTypeFloat(32)

	_, err := builder.Build()
	var emission *spirv.EmissionError
	fmt.Println(errors.As(err, &emission))
	fmt.Println(err)
	// Output:
	// true
	// spirv: id space exhausted: id 3 exceeds limit 2
}

func ExampleDecode() {
	builder := spirv.NewModuleBuilder(spirv.Version1_3)
	builder.AddCapability(spirv.CapabilityShader)
	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
	builder.AddName(builder.AddTypeVoid(), "void")
	built, err := builder.Build()
	if err != nil {
		fmt.Println(err)
		return
	}

	buf, err := spirv.Decode(built.Bytes())
	if err != nil {
		fmt.Println(err)
		return
	}
	h := buf.Header()
	fmt.Printf("version %s, bound %d\n", h.Version, h.Bound)
	for inst := range buf.Instructions() {
		if inst.Opcode == spirv.OpName {
			name, _ := spirv.DecodeString(inst.Words[1:])
			fmt.Printf("%%%d is named %s\n", inst.Words[0], name)
		}
	}
	// Output:
	// version 1.3, bound 2
	// %1 is named void
}
