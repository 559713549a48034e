package sema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/source"
	"github.com/gogpu/sdsl/symbols"
)

// SystemValue describes an SV_ semantic and the stages that may read or
// write it.
type SystemValue struct {
	Name string // upper case, without index
	In   Stage
	Out  Stage
}

const (
	pipelineAfterVertex = Geometry | Hull | Domain
	tessellation        = Hull | Domain
)

var systemValues = map[string]*SystemValue{}

func init() {
	for _, sv := range []*SystemValue{
		{Name: "SV_POSITION", In: Pixel | pipelineAfterVertex, Out: Vertex | pipelineAfterVertex},
		{Name: "SV_TARGET", Out: Pixel},
		{Name: "SV_DEPTH", Out: Pixel},
		{Name: "SV_COVERAGE", In: Pixel, Out: Pixel},
		{Name: "SV_VERTEXID", In: Vertex},
		{Name: "SV_INSTANCEID", In: Vertex},
		{Name: "SV_ISFRONTFACE", In: Pixel},
		{Name: "SV_SAMPLEINDEX", In: Pixel},
		{Name: "SV_PRIMITIVEID", In: Pixel | pipelineAfterVertex, Out: Geometry},
		{Name: "SV_CLIPDISTANCE", In: Pixel, Out: Vertex | Geometry | Domain},
		{Name: "SV_CULLDISTANCE", In: Pixel, Out: Vertex | Geometry | Domain},
		{Name: "SV_DISPATCHTHREADID", In: Compute},
		{Name: "SV_GROUPID", In: Compute},
		{Name: "SV_GROUPTHREADID", In: Compute},
		{Name: "SV_GROUPINDEX", In: Compute},
		{Name: "SV_TESSFACTOR", In: Domain, Out: Hull},
		{Name: "SV_INSIDETESSFACTOR", In: Domain, Out: Hull},
		{Name: "SV_DOMAINLOCATION", In: Domain},
		{Name: "SV_OUTPUTCONTROLPOINTID", In: Hull},
		{Name: "SV_GSINSTANCEID", In: Geometry},
	} {
		systemValues[sv.Name] = sv
	}
}

// LookupSystemValue returns the system value a semantic names, with the
// trailing index of semantics like SV_Target1.
func LookupSystemValue(semantic string) (sv *SystemValue, index int, ok bool) {
	name := strings.ToUpper(semantic)
	if !strings.HasPrefix(name, "SV_") {
		return nil, 0, false
	}
	base := strings.TrimRight(name, "0123456789")
	if base != name {
		index, _ = strconv.Atoi(name[len(base):])
	}
	sv, ok = systemValues[base]
	return sv, index, ok
}

// CheckIO validates stream and interface usage of every entry point of
// prog whose stage is in stages. It reports each violation as a
// StreamDirectionError at the declaration involved.
func CheckIO(table *symbols.Table, prog *Program, stages Stage) []error {
	if prog == nil {
		return nil
	}
	var errs []error
	// mixin is the base mixin the span was found in, if any.
	report := func(mixin string, span source.Span, name string, st Stage, format string, args ...any) {
		var err error = &StreamDirectionError{Span: span, Stream: name, Stage: st, Message: fmt.Sprintf(format, args...)}
		if mixin != "" {
			err = &MixinError{Mixin: mixin, Err: err}
		}
		errs = append(errs, err)
	}
	declSpan := func(sv *StreamVar) (string, source.Span) {
		if table != nil {
			if sym, ok := table.Lookup(sv.Name); ok && sym.Kind == symbols.Stream {
				return sv.Mixin, sym.Span
			}
		}
		return sv.Mixin, sv.Symbol.Span
	}

	for _, ep := range prog.EntryPoints {
		if ep == nil || ep.Layout == nil || !stages.Has(ep.Stage) {
			continue
		}
		st := ep.Stage
		usesPatch := false
		fnMixin, fnSpan := ep.Function.Mixin, ep.Function.Decl.Span()

		for _, sv := range ep.Writes {
			if isInputOnly(sv) {
				mixin, span := declSpan(sv)
				report(mixin, span, sv.Name, st, "input stream is written")
			}
		}
		for _, sv := range ep.Reads {
			if isOutputOnly(sv) && !containsStream(ep.Writes, sv) {
				mixin, span := declSpan(sv)
				report(mixin, span, sv.Name, st, "output stream is read but never written")
			}
		}
		for _, sv := range unionStreams(ep.Reads, ep.Writes) {
			if !sv.Patch() {
				continue
			}
			usesPatch = true
			if !tessellation.Has(st) {
				mixin, span := declSpan(sv)
				report(mixin, span, sv.Name, st, "patch stream used outside the hull and domain stages")
			}
		}

		check := func(info *StreamVariableInfo, allowed Stage, dir Direction) {
			mixin, span := fnMixin, fnSpan
			if info.Stream != nil {
				mixin, span = declSpan(info.Stream)
			} else if info.Param != nil {
				span = info.Param.Span
			}
			switch {
			case info.System == nil && strings.HasPrefix(strings.ToUpper(info.Semantic), "SV_"):
				report(mixin, span, info.Name, st, "unknown system value %s", info.Semantic)
			case info.System == nil && st == Compute:
				report(mixin, span, info.Name, st, "compute entry points only take compute system values")
			case info.System != nil && !allowed.Has(st):
				report(mixin, span, info.Name, st, "system value %s is not a valid %s", info.Semantic, dir)
			}
		}
		for _, info := range ep.Layout.Inputs {
			if info.System != nil {
				check(info, info.System.In, Input)
			} else {
				check(info, 0, Input)
			}
		}
		for _, info := range ep.Layout.Outputs {
			switch {
			case st == Compute:
				mixin, span := fnMixin, fnSpan
				if info.Stream != nil {
					mixin, span = declSpan(info.Stream)
				}
				report(mixin, span, info.Name, st, "compute entry points have no outputs")
			case info.System != nil:
				check(info, info.System.Out, Output)
			default:
				check(info, 0, Output)
			}
		}
		for _, info := range ep.Layout.Patch {
			if info.System == nil {
				continue
			}
			allowed := info.System.Out
			if st == Domain {
				allowed = info.System.In
			}
			check(info, allowed, PatchConstant)
		}

		if tessellation.Has(st) && !usesPatch {
			report(fnMixin, fnSpan, ep.Function.Name, st, "%s entry point uses no patch constant stream", st)
		}
	}
	return errs
}

func isInputOnly(sv *StreamVar) bool {
	q := sv.Qualifiers
	return q.Has(ast.QualIn) && !q.Has(ast.QualOut) && !q.Has(ast.QualInOut)
}

func isOutputOnly(sv *StreamVar) bool {
	q := sv.Qualifiers
	return q.Has(ast.QualOut) && !q.Has(ast.QualIn) && !q.Has(ast.QualInOut)
}
