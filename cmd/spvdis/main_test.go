package main

import (
	"strings"
	"testing"

	"github.com/gogpu/sdsl"
	"github.com/gogpu/sdsl/spirv"
)

func TestDisassemble(t *testing.T) {
	res := sdsl.Compile("float4 main() : SV_Target { return float4(1, 0, 0, 1); }", sdsl.Options{Stages: sdsl.Pixel})
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		names bool
		want  []string
	}{
		{true, []string{
			"; Version: 1.3",
			"OpCapability Shader",
			"OpMemoryModel Logical GLSL450",
			"OpEntryPoint Fragment %",
			"OriginUpperLeft",
			"Location 0",
			"OpFunctionEnd",
		}},
		{false, []string{"OpExecutionMode %", "OpTypeFloat 32"}},
	}
	for _, tt := range tests {
		var sb strings.Builder
		if err := disassemble(&sb, res.Buffer, tt.names); err != nil {
			t.Fatal(err)
		}
		out := sb.String()
		for _, want := range tt.want {
			if !strings.Contains(out, want) {
				t.Errorf("names=%v: output lacks %q:\n%s", tt.names, want, out)
			}
		}
	}
}

func TestDisassembleMalformed(t *testing.T) {
	// header, then OpCapability with no operand
	buf := spirv.Buffer{spirv.MagicNumber, 0x00010300, 0, 1, 0, 1<<16 | uint32(spirv.OpCapability)}
	var sb strings.Builder
	if err := disassemble(&sb, buf, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "; malformed OpCapability") {
		t.Errorf("output = %q", sb.String())
	}

	buf = spirv.Buffer{spirv.MagicNumber, 0x00010300, 0, 1, 0, 5<<16 | uint32(spirv.OpName)}
	if err := disassemble(&sb, buf, false); err == nil {
		t.Error("truncated instruction was not reported")
	}
}
