package symbols

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/sdsl/source"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		name string
		want Type
	}{
		{"float", FloatType},
		{"uint", UIntType},
		{"dword", UIntType},
		{"float1", FloatType},
		{"float4", Vector{FloatType, 4}},
		{"int2", Vector{IntType, 2}},
		{"uint3", Vector{UIntType, 3}},
		{"bool4", Vector{BoolType, 4}},
		{"half2", Vector{HalfType, 2}},
		{"double3", Vector{DoubleType, 3}},
		{"float4x4", Matrix{FloatType, 4, 4}},
		{"float3x4", Matrix{FloatType, 3, 4}},
	}
	for _, tt := range tests {
		got, ok := ParseNumeric(tt.name)
		if !ok || !Equal(got, tt.want) {
			t.Errorf("ParseNumeric(%q) = %v, %v; want %v", tt.name, got, ok, tt.want)
		}
		if got.String() != tt.want.String() {
			t.Errorf("%q: String() = %q, want %q", tt.name, got.String(), tt.want.String())
		}
	}

	for _, name := range []string{"float5", "float0", "float4x5", "floatx", "vec4", "Float4", "float44", "", "4"} {
		if got, ok := ParseNumeric(name); ok {
			t.Errorf("ParseNumeric(%q) = %v, want failure", name, got)
		}
	}
}

func TestNumericFastPathComplete(t *testing.T) {
	names := NumericTypeNames()
	if len(names) != 7*(1+4+16) {
		t.Fatalf("got %d names", len(names))
	}
	for _, name := range names {
		if IsUndefined(ResolveName(name)) {
			t.Errorf("ResolveName(%q) is undefined", name)
		}
	}
}

func TestResolveName(t *testing.T) {
	if _, ok := ResolveName("void").(Void); !ok {
		t.Error("void did not resolve")
	}
	u, ok := ResolveName("VSInput").(Undefined)
	if !ok || u.Name != "VSInput" {
		t.Errorf("ResolveName(VSInput) = %v", u)
	}
}

func TestParseGeneric(t *testing.T) {
	if got, ok := ParseGeneric("vector", []string{"float", "3"}); !ok || !Equal(got, Vector{FloatType, 3}) {
		t.Errorf("vector<float,3> = %v, %v", got, ok)
	}
	if got, ok := ParseGeneric("matrix", []string{"half", "2", "3"}); !ok || !Equal(got, Matrix{HalfType, 2, 3}) {
		t.Errorf("matrix<half,2,3> = %v, %v", got, ok)
	}
	if _, ok := ParseGeneric("vector", []string{"float", "7"}); ok {
		t.Error("vector<float,7> accepted")
	}
}

func TestEqual(t *testing.T) {
	a := &Struct{Name: "S"}
	b := &Struct{Name: "S"}
	if !Equal(a, a) || Equal(a, b) {
		t.Error("struct identity")
	}
	if !Equal(Array{FloatType, 4}, Array{FloatType, 4}) || Equal(Array{FloatType, 4}, Array{FloatType, 3}) {
		t.Error("array equality")
	}
	if Equal(FloatType, Vector{FloatType, 1}) {
		t.Error("scalar equals vector")
	}
}

func TestTableScopes(t *testing.T) {
	tab := NewTable()
	span := func(col int) source.Span { return source.Span{Start: source.Position{Line: 1, Column: col}, Len: 1} }

	if err := tab.Declare(&Symbol{Name: "x", Type: FloatType, Span: span(1)}); err != nil {
		t.Fatal(err)
	}
	err := tab.Declare(&Symbol{Name: "x", Type: IntType, Span: span(5)})
	var dup *DuplicateSymbolError
	if !errors.As(err, &dup) || dup.Name != "x" || dup.Previous.Start.Column != 1 {
		t.Fatalf("duplicate declare: %v", err)
	}

	tab.Push(FunctionScope)
	if err := tab.Declare(&Symbol{Name: "x", Type: IntType}); err != nil {
		t.Fatalf("shadowing in nested scope: %v", err)
	}
	sym, err := tab.Resolve("x", span(3))
	if err != nil || !Equal(sym.Type, IntType) {
		t.Fatalf("inner x = %v, %v", sym, err)
	}
	tab.Pop()
	sym, _ = tab.Resolve("x", span(3))
	if !Equal(sym.Type, FloatType) {
		t.Errorf("outer x type = %v", sym.Type)
	}

	_, err = tab.Resolve("y", span(9))
	var unbound *UnboundSymbolError
	if !errors.As(err, &unbound) || unbound.Span.Start.Column != 9 {
		t.Errorf("unbound: %v", err)
	}
	tab.Pop()
	if tab.Current() != tab.Global() {
		t.Error("global scope popped")
	}
}

func TestFindFunctions(t *testing.T) {
	ft := NewFunctionTable[string]()
	ft.AddInherited("Shade", "base.Shade(float)")
	ft.Add("Shade", "Shade(float)")
	ft.Add("Shade", "Shade(int)")
	ft.AddInherited("Other", "base.Other")

	got := ft.FindFunctions("Shade")
	want := []string{"Shade(float)", "Shade(int)", "base.Shade(float)"}
	if !slices.Equal(got, want) {
		t.Errorf("FindFunctions = %v, want %v", got, want)
	}
	if got := ft.FindFunctions("missing"); len(got) != 0 {
		t.Errorf("missing = %v", got)
	}
	if names := ft.Names(); !slices.Equal(names, []string{"Other", "Shade"}) {
		t.Errorf("Names = %v", names)
	}
}
