package sema

import (
	"iter"
	"math/bits"
	"strings"
)

// Stage is a set of shader stages.
type Stage uint16

const (
	Vertex Stage = 1 << iota
	Pixel
	Compute
	Geometry
	Hull
	Domain
	RayGeneration
	Intersection
	AnyHit
	ClosestHit
	Miss
	Callable

	// AllStages is every stage.
	AllStages = Stage(1<<iota) - 1
)

var stageNames = [...]string{
	"vertex", "pixel", "compute", "geometry", "hull", "domain",
	"raygeneration", "intersection", "anyhit", "closesthit", "miss", "callable",
}

// conventional entry point names, by stage bit index
var stageEntryNames = [...]string{
	"VSMain", "PSMain", "CSMain", "GSMain", "HSMain", "DSMain",
	"RGMain", "ISMain", "AHMain", "CHMain", "MSMain", "CLMain",
}

// ParseStage parses a stage name as used by [shader("…")] attributes.
func ParseStage(name string) (Stage, bool) {
	name = strings.ToLower(name)
	switch name {
	case "fragment", "ps":
		return Pixel, true
	case "vs":
		return Vertex, true
	case "cs":
		return Compute, true
	case "gs":
		return Geometry, true
	case "hs", "tesscontrol":
		return Hull, true
	case "ds", "tesseval":
		return Domain, true
	}
	for i, n := range stageNames {
		if n == name {
			return Stage(1) << i, true
		}
	}
	return 0, false
}

// Has reports whether every stage of t is in s.
func (s Stage) Has(t Stage) bool { return s&t == t && t != 0 }

// All iterates the single stages of s in bit order.
func (s Stage) All() iter.Seq[Stage] {
	return func(yield func(Stage) bool) {
		for rest := s & AllStages; rest != 0; rest &= rest - 1 {
			if !yield(Stage(1) << bits.TrailingZeros16(uint16(rest))) {
				return
			}
		}
	}
}

// Count returns the number of stages in s.
func (s Stage) Count() int { return bits.OnesCount16(uint16(s & AllStages)) }

func (s Stage) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for st := range s.All() {
		parts = append(parts, stageNames[bits.TrailingZeros16(uint16(st))])
	}
	return strings.Join(parts, "|")
}

// EntryName returns the conventional entry point name of a single stage.
func (s Stage) EntryName() string {
	if s.Count() != 1 {
		return ""
	}
	return stageEntryNames[bits.TrailingZeros16(uint16(s))]
}

// IsRayTracing reports whether s contains only ray tracing stages.
func (s Stage) IsRayTracing() bool {
	const rt = RayGeneration | Intersection | AnyHit | ClosestHit | Miss | Callable
	return s != 0 && s&^rt == 0
}
