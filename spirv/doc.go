// Package spirv generates SPIR-V modules from analyzed SDSL programs.
//
// SPIR-V is the standard intermediate language for GPU shaders,
// used by Vulkan, OpenCL, and other APIs.
//
// # Backend
//
// The Backend translates a semantically analyzed program into a binary
// module. Every entry point of the program becomes an OpEntryPoint with a
// wrapper function that loads stage inputs into stream variables, calls
// the user function and stores the stage outputs:
//
//	backend := spirv.NewBackend(spirv.DefaultOptions())
//	buf, err := backend.Compile(prog)
//	if err != nil {
//		log.Fatal(err)
//	}
//	os.WriteFile("shader.spv", buf.Bytes(), 0o644)
//
// HLSL matrices are row major: a floatRxC value is stored as R SPIR-V
// columns of C components, so mul operands are swapped when lowered to
// OpMatrixTimesVector and friends. Constant buffers are laid out with
// HLSL packing rules.
//
// # Binary Writer
//
// ModuleBuilder constructs modules instruction by instruction and keeps
// every instruction in its logical layout section:
//
//	builder := spirv.NewModuleBuilder(spirv.Version1_3)
//	builder.AddCapability(spirv.CapabilityShader)
//	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
//
//	floatType := builder.AddTypeFloat(32)
//	vec4Type := builder.AddTypeVector(floatType, 4)
//
//	buf, err := builder.Build()
//
// Build fails with an *EmissionError when the module allocated more ids
// than Options.MaxID allows.
//
// # Reading Modules
//
// Decode accepts a binary module in either byte order and
// Buffer.Instructions iterates its instruction stream.
//
// # References
//
// SPIR-V Specification: https://registry.khronos.org/SPIR-V/specs/unified1/SPIRV.html
package spirv
