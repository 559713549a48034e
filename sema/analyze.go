package sema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/source"
	"github.com/gogpu/sdsl/symbols"
	"github.com/gogpu/sdsl/token"
)

type analyzer struct {
	opts  Options
	prog  *Program
	table *symbols.Table
	errs  []error

	shaderDecls map[string]*ast.ShaderDecl
	inherited   map[*ast.ShaderDecl]bool
	baseModules []*ast.Module
	shaderIndex map[string]int

	// base mixin of every declaration loaded through opts.Bases, and the
	// mixin of the declaration being checked
	mixinOf map[ast.Decl]string
	origin  string

	streams map[string]*StreamVar
	funcs   map[*ast.FuncDecl]*Function
	globals *CBuffer

	// interface locations by upper-case semantic
	locations map[string]int

	// initializers of private globals, checked once every declaration is known
	pendingInits []*Global

	// per function state
	fn          *Function
	loopDepth   int
	switchDepth int
}

// Analyze resolves and type-checks mod. It returns the program together
// with every error found; errors accumulate across the whole module.
func Analyze(mod *ast.Module, opts Options) (*Program, []error) {
	if opts.EntryName == "" {
		opts.EntryName = "main"
	}
	a := &analyzer{
		opts:        opts,
		table:       symbols.NewTable(),
		shaderDecls: make(map[string]*ast.ShaderDecl),
		inherited:   make(map[*ast.ShaderDecl]bool),
		shaderIndex: make(map[string]int),
		mixinOf:     make(map[ast.Decl]string),
		streams:     make(map[string]*StreamVar),
		funcs:       make(map[*ast.FuncDecl]*Function),
	}
	a.prog = &Program{
		Module: mod,
		Table:  a.table,
		Calls:  symbols.NewFunctionTable[*Function](),
	}

	a.compose(mod)
	a.declare(mod)
	a.checkBodies()
	a.findEntryPoints()
	return a.prog, a.errs
}

func (a *analyzer) errorf(span source.Span, format string, args ...any) {
	a.report(&Error{Message: fmt.Sprintf(format, args...), Span: span})
}

func (a *analyzer) warnf(span source.Span, format string, args ...any) {
	a.prog.Warnings = append(a.prog.Warnings, &Warning{Message: fmt.Sprintf(format, args...), Span: span, Mixin: a.origin})
}

func (a *analyzer) report(err error) {
	switch {
	case err == nil:
	case a.origin != "":
		a.errs = append(a.errs, &MixinError{Mixin: a.origin, Err: err})
	default:
		a.errs = append(a.errs, err)
	}
}

// at makes d the origin of the errors reported next.
func (a *analyzer) at(d ast.Decl) {
	a.origin = a.mixinOf[d]
}

// ----------------------------------------------------------------------------
// Composition

// compose linearizes the shaders of mod and their bases, most derived
// first. Shaders later in a module derive from earlier ones, so module
// shaders are visited last to first.
func (a *analyzer) compose(mod *ast.Module) {
	var local []*ast.ShaderDecl
	for _, d := range mod.Decls {
		if sh, ok := d.(*ast.ShaderDecl); ok {
			if prev, dup := a.shaderDecls[sh.Name]; dup {
				a.report(&symbols.DuplicateSymbolError{Name: sh.Name, Span: sh.Span(), Previous: prev.Span()})
				continue
			}
			a.shaderDecls[sh.Name] = sh
			local = append(local, sh)
		}
	}

	visiting := make(map[string]bool)
	done := make(map[string]bool)
	var visit func(name string, from *ast.ShaderDecl, inherited bool)
	visit = func(name string, from *ast.ShaderDecl, inherited bool) {
		if done[name] {
			return
		}
		a.at(from)
		defer a.at(nil)
		if visiting[name] {
			a.errorf(from.Span(), "cyclic inheritance through shader %s", name)
			return
		}
		sh, ok := a.lookupShader(name, from)
		if !ok {
			return
		}
		visiting[name] = true
		inherited = inherited || a.inherited[sh]
		a.shaderIndex[name] = len(a.prog.Shaders)
		a.prog.Shaders = append(a.prog.Shaders, &Shader{Decl: sh, Name: sh.Name, Bases: sh.Bases, Inherited: inherited})
		for _, b := range sh.Bases {
			visit(b, sh, true)
		}
		visiting[name] = false
		done[name] = true
	}
	for _, sh := range slices.Backward(local) {
		visit(sh.Name, sh, false)
	}
}

func (a *analyzer) lookupShader(name string, from *ast.ShaderDecl) (*ast.ShaderDecl, bool) {
	if sh, ok := a.shaderDecls[name]; ok {
		return sh, true
	}
	if a.opts.Bases == nil {
		a.report(&symbols.UnboundSymbolError{Name: name, Span: from.Span()})
		return nil, false
	}
	mod, err := a.opts.Bases(name)
	if err != nil {
		a.errorf(from.Span(), "base shader %s: %v", name, err)
		return nil, false
	}
	a.baseModules = append(a.baseModules, mod)
	var found *ast.ShaderDecl
	for _, d := range mod.Decls {
		a.mixinOf[d] = name
		if sh, ok := d.(*ast.ShaderDecl); ok {
			for _, m := range sh.Decls {
				a.mixinOf[m] = name
			}
			if _, dup := a.shaderDecls[sh.Name]; !dup {
				a.shaderDecls[sh.Name] = sh
				a.inherited[sh] = true
			}
			if sh.Name == name {
				found = sh
			}
		}
	}
	if found == nil {
		a.errorf(from.Span(), "base shader %s: not declared by its mixin source", name)
		return nil, false
	}
	return found, true
}

// ----------------------------------------------------------------------------
// Declarations

type declSite struct {
	decl      ast.Decl
	shader    string
	inherited bool
}

func (a *analyzer) declare(mod *ast.Module) {
	var sites []declSite
	for _, d := range mod.Decls {
		if _, ok := d.(*ast.ShaderDecl); !ok {
			sites = append(sites, declSite{decl: d})
		}
	}
	for _, bm := range a.baseModules {
		for _, d := range bm.Decls {
			if _, ok := d.(*ast.ShaderDecl); !ok {
				sites = append(sites, declSite{decl: d, inherited: true})
			}
		}
	}
	for _, sh := range a.prog.Shaders {
		for _, d := range sh.Decl.Decls {
			sites = append(sites, declSite{decl: d, shader: sh.Name, inherited: sh.Inherited})
		}
	}

	// Struct shells first so that any declaration can name any struct.
	var structs []*ast.StructDecl
	for _, s := range sites {
		if sd, ok := s.decl.(*ast.StructDecl); ok {
			a.at(sd)
			st := &symbols.Struct{Name: sd.Name}
			if err := a.table.Declare(&symbols.Symbol{Name: sd.Name, Kind: symbols.TypeName, Type: st, Span: sd.Span(), Decl: sd}); err != nil {
				a.report(err)
				continue
			}
			a.prog.Structs = append(a.prog.Structs, st)
			structs = append(structs, sd)
		}
	}
	for i, sd := range structs {
		a.at(sd)
		st := a.prog.Structs[i]
		for _, f := range sd.Fields {
			t := a.varType(f.Type, f.ArrayDims)
			if _, _, dup := st.Field(f.Name); dup {
				a.report(&symbols.DuplicateSymbolError{Name: f.Name, Span: f.Span()})
				continue
			}
			st.Fields = append(st.Fields, symbols.Field{Name: f.Name, Type: t, Semantic: f.Semantic})
		}
	}

	for _, s := range sites {
		a.at(s.decl)
		switch d := s.decl.(type) {
		case *ast.VarDecl:
			a.declareVar(d, s.shader)
		case *ast.CBufferDecl:
			a.declareCBuffer(d)
		case *ast.FuncDecl:
			a.declareFunc(d, s.shader, s.inherited)
		}
	}
	a.at(nil)
	if a.globals != nil {
		a.prog.CBuffers = append(a.prog.CBuffers, a.globals)
	}
	for i, cb := range a.prog.CBuffers {
		cb.Binding = i
	}
	a.checkOverrides()
}

func (a *analyzer) declareVar(d *ast.VarDecl, shader string) {
	t := a.varType(d.Type, d.ArrayDims)
	switch {
	case d.Qualifiers.Has(ast.QualStream):
		sym := &symbols.Symbol{Name: d.Name, Kind: symbols.Stream, Type: t, Span: d.Span()}
		sv := &StreamVar{Symbol: sym, Decl: d, Name: d.Name, Type: t, Semantic: d.Semantic, Qualifiers: d.Qualifiers, Shader: shader, Mixin: a.origin}
		sym.Decl = sv
		if err := a.table.Declare(sym); err != nil {
			a.report(err)
			return
		}
		if d.Init != nil {
			a.errorf(d.Init.Span(), "stream variable %s cannot have an initializer", d.Name)
		}
		a.streams[d.Name] = sv
		a.prog.Streams = append(a.prog.Streams, sv)
	case d.Qualifiers.Has(ast.QualStatic) || d.Qualifiers.Has(ast.QualConst):
		kind := symbols.Variable
		if d.Qualifiers.Has(ast.QualConst) {
			kind = symbols.Constant
			if d.Init == nil {
				a.errorf(d.Span(), "constant %s must be initialized", d.Name)
			}
		}
		g := &Global{Decl: d, Type: t, Private: true}
		g.Symbol = &symbols.Symbol{Name: d.Name, Kind: kind, Type: t, Span: d.Span(), Decl: g}
		if err := a.table.Declare(g.Symbol); err != nil {
			a.report(err)
			return
		}
		a.prog.Globals = append(a.prog.Globals, g)
		a.pendingInits = append(a.pendingInits, g)
	default:
		if a.globals == nil {
			a.globals = &CBuffer{Name: "Globals", Struct: &symbols.Struct{Name: "Globals"}}
		}
		if d.Init != nil {
			a.errorf(d.Init.Span(), "uniform %s cannot have an initializer", d.Name)
		}
		a.addMember(a.globals, d, t)
	}
}

func (a *analyzer) declareCBuffer(d *ast.CBufferDecl) {
	cb := &CBuffer{Name: d.Name, Decl: d, Struct: &symbols.Struct{Name: d.Name}}
	for _, m := range d.Members {
		a.addMember(cb, m, a.varType(m.Type, m.ArrayDims))
	}
	a.prog.CBuffers = append(a.prog.CBuffers, cb)
}

func (a *analyzer) addMember(cb *CBuffer, d *ast.VarDecl, t symbols.Type) {
	g := &Global{Decl: d, Type: t, CBuffer: cb, Member: len(cb.Members)}
	g.Symbol = &symbols.Symbol{Name: d.Name, Kind: symbols.CBufferMember, Type: t, Span: d.Span(), Decl: g}
	if err := a.table.Declare(g.Symbol); err != nil {
		a.report(err)
		return
	}
	cb.Members = append(cb.Members, g)
	cb.Struct.Fields = append(cb.Struct.Fields, symbols.Field{Name: d.Name, Type: t})
	a.prog.Globals = append(a.prog.Globals, g)
}

func (a *analyzer) declareFunc(d *ast.FuncDecl, shader string, inherited bool) {
	f := &Function{Decl: d, Name: d.Name, Shader: shader, Inherited: inherited, Mixin: a.origin}
	f.Result = a.resolveType(d.Result)
	for _, p := range d.Params {
		t := a.varType(p.Type, p.ArrayDims)
		f.Params = append(f.Params, &symbols.Symbol{Name: p.Name, Kind: symbols.Parameter, Type: t, Span: p.Span(), Decl: p})
	}
	for _, other := range a.prog.Calls.FindFunctions(d.Name) {
		if other.Shader == shader && sameSignature(other, f) {
			a.report(&symbols.DuplicateSymbolError{Name: d.Name, Span: d.Span(), Previous: other.Decl.Span()})
			return
		}
	}
	a.funcs[d] = f
	a.prog.Functions = append(a.prog.Functions, f)
	if inherited {
		a.prog.Calls.AddInherited(d.Name, f)
	} else {
		a.prog.Calls.Add(d.Name, f)
	}
}

func sameSignature(f, g *Function) bool {
	return slices.EqualFunc(f.Params, g.Params, func(a, b *symbols.Symbol) bool {
		return symbols.Equal(a.Type, b.Type)
	})
}

// checkOverrides verifies that override is used exactly when a function
// replaces one of a base shader.
func (a *analyzer) checkOverrides() {
	for _, f := range a.prog.Functions {
		if f.Shader == "" {
			continue
		}
		a.at(f.Decl)
		replaced := false
		for _, g := range a.baseFunctions(f.Shader, f.Name) {
			if sameSignature(f, g) {
				replaced = true
				break
			}
		}
		switch {
		case f.Decl.Qualifiers.Has(ast.QualOverride) && !replaced:
			a.errorf(f.Decl.Span(), "%s is marked override but no base shader declares it", f.Name)
		case !f.Decl.Qualifiers.Has(ast.QualOverride) && replaced:
			a.errorf(f.Decl.Span(), "%s replaces a base shader function and must be marked override", f.Name)
		}
	}
	a.at(nil)
}

// baseFunctions returns the functions named name declared by shaders that
// come after shader in the composition order.
func (a *analyzer) baseFunctions(shader, name string) []*Function {
	idx, ok := a.shaderIndex[shader]
	if !ok {
		return nil
	}
	var out []*Function
	for _, f := range a.prog.Calls.FindFunctions(name) {
		if j, ok := a.shaderIndex[f.Shader]; ok && j > idx {
			out = append(out, f)
		}
	}
	return out
}

// ----------------------------------------------------------------------------
// Types

// resolveType resolves a syntactic type: numeric names take the fast path,
// anything else is looked up as a declared struct.
func (a *analyzer) resolveType(ref *ast.TypeRef) symbols.Type {
	var t symbols.Type
	if len(ref.Params) > 0 {
		g, ok := symbols.ParseGeneric(ref.Name, ref.Params)
		if !ok {
			a.errorf(ref.Span(), "invalid type %s", ref)
			t = symbols.Undefined{Name: ref.String()}
		} else {
			t = g
		}
	} else {
		t = symbols.ResolveName(ref.Name)
	}
	if u, ok := t.(symbols.Undefined); ok && len(ref.Params) == 0 {
		sym, err := a.table.Resolve(u.Name, ref.Span())
		switch {
		case err != nil:
			a.report(err)
		case sym.Kind != symbols.TypeName:
			a.errorf(ref.Span(), "%s is a %s, not a type", u.Name, sym.Kind)
		default:
			t = sym.Type
		}
	}
	ref.Resolved = t
	return t
}

func (a *analyzer) varType(ref *ast.TypeRef, dims []ast.Expr) symbols.Type {
	t := a.resolveType(ref)
	for i := len(dims) - 1; i >= 0; i-- {
		n, ok := a.constInt(dims[i])
		if !ok || n <= 0 {
			a.errorf(dims[i].Span(), "array size must be a positive integer constant")
			n = 1
		}
		dims[i].SetType(symbols.IntType)
		t = symbols.Array{Elem: t, Len: int(n)}
	}
	return t
}

var errNotConst = errors.New("not a constant")

// constInt evaluates an integer constant expression.
func (a *analyzer) constInt(e ast.Expr) (int64, bool) {
	n, err := evalInt(e, func(id *ast.Ident) *symbols.Symbol {
		sym, _ := a.table.Lookup(id.Name)
		return sym
	}, 0)
	return n, err == nil
}

// ConstInt evaluates an integer constant expression of an analyzed
// module, following identifiers to the constants they name.
func ConstInt(e ast.Expr) (int64, bool) {
	n, err := evalInt(e, func(id *ast.Ident) *symbols.Symbol { return id.Symbol }, 0)
	return n, err == nil
}

func evalInt(e ast.Expr, lookup func(*ast.Ident) *symbols.Symbol, depth int) (int64, error) {
	if depth > 32 {
		return 0, errNotConst
	}
	switch e := e.(type) {
	case *ast.IntLit:
		return ParseInt(e.Text)
	case *ast.UnaryExpr:
		v, err := evalInt(e.X, lookup, depth+1)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.Minus:
			return -v, nil
		case token.Plus:
			return v, nil
		case token.Tilde:
			return ^v, nil
		}
	case *ast.Ident:
		sym := lookup(e)
		if sym == nil || sym.Kind != symbols.Constant {
			return 0, errNotConst
		}
		var init ast.Expr
		switch d := sym.Decl.(type) {
		case *Global:
			init = d.Decl.Init
		case *ast.VarDecl:
			init = d.Init
		}
		if init == nil {
			return 0, errNotConst
		}
		return evalInt(init, lookup, depth+1)
	case *ast.BinaryExpr:
		x, err := evalInt(e.X, lookup, depth+1)
		if err != nil {
			return 0, err
		}
		y, err := evalInt(e.Y, lookup, depth+1)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case ast.OpAdd:
			return x + y, nil
		case ast.OpSub:
			return x - y, nil
		case ast.OpMul:
			return x * y, nil
		case ast.OpDiv, ast.OpMod:
			if y == 0 {
				return 0, errNotConst
			}
			if e.Op == ast.OpDiv {
				return x / y, nil
			}
			return x % y, nil
		case ast.OpShl:
			return x << uint(y&63), nil
		case ast.OpShr:
			return x >> uint(y&63), nil
		}
	}
	return 0, errNotConst
}
