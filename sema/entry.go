package sema

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/source"
	"github.com/gogpu/sdsl/symbols"
)

func (a *analyzer) findEntryPoints() {
	for _, f := range a.prog.Functions {
		if attr, ok := f.Decl.Attr("shader"); ok {
			if _, ok := a.attrStage(attr); !ok {
				a.at(f.Decl)
				a.errorf(attr.Span(), "invalid shader attribute on %s", f.Name)
			}
		}
	}
	a.at(nil)
	a.locations = make(map[string]int)
	for _, sv := range a.prog.Streams {
		a.location(streamKey(sv))
	}

	for st := range a.opts.Stages.All() {
		a.at(nil)
		f := a.entryFor(st)
		if f == nil {
			a.errorf(a.prog.Module.Span(), "no entry point found for %s stage", st)
			continue
		}
		a.at(f.Decl)
		ep := &EntryPoint{Stage: st, Function: f}
		if !a.closure(ep) {
			continue
		}
		a.executionAttributes(ep)
		ep.Layout = a.layout(ep)
		a.prog.EntryPoints = append(a.prog.EntryPoints, ep)
		a.prog.Layouts = append(a.prog.Layouts, ep.Layout)
	}
	a.at(nil)
}

func (a *analyzer) attrStage(attr *ast.Attribute) (Stage, bool) {
	if len(attr.Args) != 1 {
		return 0, false
	}
	s, ok := attrString(attr.Args[0])
	if !ok {
		return 0, false
	}
	return ParseStage(s)
}

func attrString(e ast.Expr) (string, bool) {
	lit, ok := e.(*ast.StringLit)
	if !ok {
		return "", false
	}
	s, err := strconv.Unquote(lit.Text)
	return s, err == nil
}

// entryFor finds the entry function of a stage: a function marked for the
// stage by attribute, then the conventional name, then the configured
// entry name when a single stage is compiled. Local functions come first.
func (a *analyzer) entryFor(st Stage) *Function {
	ordered := slices.Clone(a.prog.Functions)
	slices.SortStableFunc(ordered, func(f, g *Function) int {
		return cmp.Compare(boolRank(f.Inherited), boolRank(g.Inherited))
	})
	for _, f := range ordered {
		if f.Abstract() {
			continue
		}
		if attr, ok := f.Decl.Attr("shader"); ok {
			if s, ok := a.attrStage(attr); ok && s == st {
				return f
			}
			continue
		}
		if _, ok := f.Decl.Attr("numthreads"); ok && st == Compute {
			return f
		}
	}
	names := []string{st.EntryName()}
	if a.opts.Stages.Count() == 1 {
		names = append(names, a.opts.EntryName)
	}
	for _, name := range names {
		var best *Function
		for _, f := range a.prog.Calls.FindFunctions(name) {
			if !f.Abstract() && (best == nil || a.preferred(f, best)) {
				best = f
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// closure collects the functions and stream accesses reachable from the
// entry point. It reports false on recursion.
func (a *analyzer) closure(ep *EntryPoint) bool {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*Function]int)
	var visit func(f *Function) bool
	visit = func(f *Function) bool {
		switch state[f] {
		case visiting:
			a.at(f.Decl)
			a.errorf(f.Decl.Span(), "recursive call to %s", f.QualifiedName())
			return false
		case done:
			return true
		}
		state[f] = visiting
		for _, g := range f.Callees {
			if !visit(g) {
				return false
			}
		}
		state[f] = done
		ep.Functions = append(ep.Functions, f)
		for _, sv := range f.Reads {
			if !containsStream(ep.Reads, sv) {
				ep.Reads = append(ep.Reads, sv)
			}
		}
		for _, sv := range f.Writes {
			if !containsStream(ep.Writes, sv) {
				ep.Writes = append(ep.Writes, sv)
			}
		}
		return true
	}
	if !visit(ep.Function) {
		return false
	}
	byDecl := func(x, y *StreamVar) int {
		return cmp.Compare(slices.Index(a.prog.Streams, x), slices.Index(a.prog.Streams, y))
	}
	slices.SortFunc(ep.Reads, byDecl)
	slices.SortFunc(ep.Writes, byDecl)
	return true
}

func (a *analyzer) executionAttributes(ep *EntryPoint) {
	d := ep.Function.Decl
	if ep.Stage == Compute {
		ep.WorkgroupSize = [3]uint32{1, 1, 1}
	}
	uintArg := func(attr *ast.Attribute, i int) uint32 {
		if i >= len(attr.Args) {
			a.errorf(attr.Span(), "%s needs %d arguments", attr.Name, i+1)
			return 0
		}
		n, ok := a.constInt(attr.Args[i])
		if !ok || n <= 0 {
			a.errorf(attr.Args[i].Span(), "%s argument must be a positive integer constant", attr.Name)
			return 0
		}
		return uint32(n)
	}
	for _, attr := range d.Attrs {
		switch attr.Name {
		case "numthreads":
			for i := range 3 {
				ep.WorkgroupSize[i] = uintArg(attr, i)
			}
		case "outputcontrolpoints":
			ep.OutputVertices = uintArg(attr, 0)
		case "maxvertexcount":
			ep.MaxVertexCount = uintArg(attr, 0)
		case "domain":
			if len(attr.Args) == 1 {
				ep.Domain, _ = attrString(attr.Args[0])
			}
		}
	}
}

// streamKey is the interface key of a stream: its semantic, or its name
// when it has none.
func streamKey(sv *StreamVar) string {
	if sv.Semantic != "" {
		return sv.Semantic
	}
	return "stream:" + sv.Name
}

// location returns the interface location of a user semantic. Locations
// are shared by every stage so that outputs of one stage meet the inputs
// of the next.
func (a *analyzer) location(key string) int {
	if _, _, ok := LookupSystemValue(key); ok {
		return -1
	}
	key = strings.ToUpper(key)
	if n, ok := a.locations[key]; ok {
		return n
	}
	n := len(a.locations)
	a.locations[key] = n
	return n
}

func (a *analyzer) layout(ep *EntryPoint) *StageStreamLayout {
	l := &StageStreamLayout{Stage: ep.Stage}
	add := func(info *StreamVariableInfo) {
		info.Location = -1
		key := info.Semantic
		if info.Stream != nil {
			key = streamKey(info.Stream)
		}
		if sv, index, ok := LookupSystemValue(info.Semantic); ok {
			info.System = sv
			if sv.Name == "SV_TARGET" {
				info.Location = index
			}
		} else {
			info.Location = a.location(key)
		}
		switch info.Direction {
		case Input:
			l.Inputs = append(l.Inputs, info)
		case Output:
			l.Outputs = append(l.Outputs, info)
		default:
			l.Patch = append(l.Patch, info)
		}
	}

	for _, sv := range ep.Reads {
		if sv.Patch() {
			continue
		}
		add(&StreamVariableInfo{Name: sv.Name, Type: sv.Type, Semantic: sv.Semantic, Direction: Input, Stream: sv, Field: -1})
	}
	for _, sv := range ep.Writes {
		if sv.Patch() {
			continue
		}
		add(&StreamVariableInfo{Name: sv.Name, Type: sv.Type, Semantic: sv.Semantic, Direction: Output, Stream: sv, Field: -1})
	}
	for _, sv := range unionStreams(ep.Reads, ep.Writes) {
		if sv.Patch() {
			add(&StreamVariableInfo{Name: sv.Name, Type: sv.Type, Semantic: sv.Semantic, Direction: PatchConstant, Stream: sv, Field: -1})
		}
	}

	f := ep.Function
	for i, p := range f.Params {
		decl := f.Decl.Params[i]
		dirs := []Direction{Input}
		switch {
		case decl.Qualifiers.Has(ast.QualInOut):
			dirs = []Direction{Input, Output}
		case decl.Qualifiers.Has(ast.QualOut):
			dirs = []Direction{Output}
		}
		for _, dir := range dirs {
			a.flatten(p.Name, p.Type, decl.Semantic, p.Span, func(info *StreamVariableInfo) {
				info.Direction = dir
				info.Param = p
				add(info)
			})
		}
	}
	if _, void := f.Result.(symbols.Void); !void && !symbols.IsUndefined(f.Result) {
		a.flatten("result", f.Result, f.Decl.Semantic, f.Decl.Span(), func(info *StreamVariableInfo) {
			info.Direction = Output
			add(info)
		})
	}

	name := strings.ToUpper(ep.Stage.String())
	l.InputType = interfaceStruct(name+"_STREAMS_INPUT", l.Inputs)
	l.OutputType = interfaceStruct(name+"_STREAMS_OUTPUT", l.Outputs)
	if len(l.Patch) > 0 {
		l.PatchType = interfaceStruct(name+"_PATCH_CONSTANTS", l.Patch)
	}
	return l
}

// flatten splits an entry point parameter or result into interface
// variables: one for a value with a semantic, one per field for a struct.
func (a *analyzer) flatten(name string, t symbols.Type, semantic string, span source.Span, emit func(*StreamVariableInfo)) {
	if st, ok := t.(*symbols.Struct); ok && semantic == "" {
		for i, fld := range st.Fields {
			if fld.Semantic == "" {
				a.errorf(span, "field %s of %s needs a semantic to be used by an entry point", fld.Name, st.Name)
				continue
			}
			emit(&StreamVariableInfo{Name: name + "_" + fld.Name, Type: fld.Type, Semantic: fld.Semantic, Field: i})
		}
		return
	}
	if semantic == "" {
		a.errorf(span, "entry point %s %s needs a semantic", kindOf(name), name)
		return
	}
	emit(&StreamVariableInfo{Name: name, Type: t, Semantic: semantic, Field: -1})
}

func kindOf(name string) string {
	if name == "result" {
		return "result"
	}
	return "parameter"
}

func unionStreams(a, b []*StreamVar) []*StreamVar {
	out := slices.Clone(a)
	for _, sv := range b {
		if !containsStream(out, sv) {
			out = append(out, sv)
		}
	}
	return out
}

func interfaceStruct(name string, infos []*StreamVariableInfo) *symbols.Struct {
	st := &symbols.Struct{Name: name}
	for _, info := range infos {
		st.Fields = append(st.Fields, symbols.Field{Name: info.Name, Type: info.Type, Semantic: info.Semantic})
	}
	return st
}
