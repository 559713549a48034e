// Package sdsl provides a pure Go compiler for the Stride shading language.
//
// SDSL is an HLSL dialect with shader classes, mixin inheritance and
// stream variables. The compiler turns SDSL source into SPIR-V binary
// modules:
//
//	source := `
//	float4 main() : SV_Target
//	{
//		return float4(1, 0, 0, 1);
//	}`
//	res := sdsl.Compile(source, sdsl.Options{Stages: sdsl.Pixel})
//	if err := res.Err(); err != nil {
//		log.Fatal(err)
//	}
//	os.WriteFile("red.spv", res.Buffer.Bytes(), 0o644)
//
// The pipeline is:
//  1. Preprocess: strip comments, run directives, expand macros
//  2. Parse the preprocessed text into an AST
//  3. Analyze: compose mixins, resolve symbols, check types, find entry
//     points and lay out their stream interfaces
//  4. Lower every function to three-address IR
//  5. Emit the SPIR-V module
//
// Preprocessing and parse errors stop the pipeline. Semantic errors are
// collected for the whole source and reported together. A compilation
// either yields a buffer and no errors, or errors and no buffer.
//
// The lower level packages (preprocess, parser, sema, tac, spirv) can
// be used directly for access to the intermediate stages.
package sdsl

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/mixin"
	"github.com/gogpu/sdsl/parser"
	"github.com/gogpu/sdsl/preprocess"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/spirv"
	"github.com/gogpu/sdsl/tac"
)

// EntryPoint is a set of shader stages.
type EntryPoint = sema.Stage

// Shader stages.
const (
	Vertex        = sema.Vertex
	Pixel         = sema.Pixel
	Compute       = sema.Compute
	Geometry      = sema.Geometry
	Hull          = sema.Hull
	Domain        = sema.Domain
	RayGeneration = sema.RayGeneration
	Intersection  = sema.Intersection
	AnyHit        = sema.AnyHit
	ClosestHit    = sema.ClosestHit
	Miss          = sema.Miss
	Callable      = sema.Callable
)

// Options configures a compilation.
type Options struct {
	// Name identifies the compilation unit in the mixin cache.
	// Defaults to "shader".
	Name string

	// Stages are the entry points to compile. Zero compiles every
	// function without entry points, as a library module.
	Stages EntryPoint

	// EntryName is the entry function when a single stage is compiled
	// and no function is marked for it (default "main").
	EntryName string

	// Macros are predefined preprocessor macros.
	Macros map[string]preprocess.Macro

	// Strict reports unbound macros in conditions and turns warnings
	// into errors.
	Strict bool

	// Resolver supplies the source of base mixins that are not declared
	// in the compiled source.
	Resolver mixin.Resolver

	// Mixins caches compiled modules. Nil disables caching.
	Mixins *mixin.Storage

	// Force recompiles even when Mixins holds a module for the unit and
	// replaces the cached entry.
	Force bool

	// SPIRVVersion is the target SPIR-V version (default: 1.3).
	SPIRVVersion spirv.Version

	// Debug emits OpName debug information.
	Debug bool

	// MaxID bounds SPIR-V result ids. Zero means spirv.DefaultMaxID.
	MaxID uint32
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		Name:         "shader",
		EntryName:    "main",
		SPIRVVersion: spirv.Version1_3,
		Debug:        true,
	}
}

// Result is the outcome of a compilation.
type Result struct {
	// Buffer is the SPIR-V module. It is nil when Err is not.
	Buffer spirv.Buffer

	// Diagnostics lists errors and warnings in the order found.
	Diagnostics Diagnostics

	// AST is the analyzed module and Program its semantic model. Both
	// are nil when parsing failed or the module came from the cache.
	AST     *ast.Module
	Program *sema.Program

	// IR holds the three-address code of every implemented function.
	IR []*tac.Snippet

	// Key is the mixin cache key of the unit; Cached reports whether
	// Buffer was taken from the cache.
	Key    string
	Cached bool
}

// Err returns the error diagnostics as a Diagnostics error, or nil when
// the compilation succeeded.
func (r *Result) Err() error {
	var errs Diagnostics
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Warnings returns the warning diagnostics.
func (r *Result) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Compile compiles SDSL source to SPIR-V.
func Compile(src string, opts Options) *Result {
	res, _ := CompileContext(context.Background(), src, opts)
	return res
}

// CompileContext is Compile with cancellation. ctx is checked between
// pipeline phases; the error is non-nil only when ctx ended the
// compilation, in which case the result is incomplete.
func CompileContext(ctx context.Context, src string, opts Options) (*Result, error) {
	opts = withDefaults(opts)
	c := &compilation{opts: opts, pre: preprocess.New(preprocess.Options{Macros: opts.Macros, Strict: opts.Strict})}
	res := &Result{Key: cacheKey(src, opts)}

	if opts.Mixins != nil && !opts.Force {
		if m, ok := opts.Mixins.TryGet(res.Key); ok {
			res.Buffer = slices.Clone(m.Buffer)
			res.Cached = true
			return res, nil
		}
	}
	if err := c.run(ctx, src, res); err != nil {
		return res, err
	}
	if res.Err() != nil {
		res.Buffer = nil
		return res, nil
	}
	if opts.Mixins != nil {
		if opts.Force {
			opts.Mixins.RegisterOrUpdate(res.Key, res.Buffer)
		} else {
			opts.Mixins.TryRegister(res.Key, res.Buffer)
		}
	}
	return res, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Name == "" {
		opts.Name = def.Name
	}
	if opts.EntryName == "" {
		opts.EntryName = def.EntryName
	}
	if opts.SPIRVVersion == (spirv.Version{}) {
		opts.SPIRVVersion = def.SPIRVVersion
	}
	return opts
}

// cacheKey names a unit by its source and every option that changes the
// produced module.
func cacheKey(src string, opts Options) string {
	parts := []string{
		src,
		opts.Stages.String(),
		opts.EntryName,
		opts.SPIRVVersion.String(),
		strconv.FormatBool(opts.Debug),
		strconv.FormatBool(opts.Strict),
		strconv.FormatUint(uint64(opts.MaxID), 10),
	}
	for _, name := range slices.Sorted(maps.Keys(opts.Macros)) {
		m := opts.Macros[name]
		parts = append(parts, name, m.Value, strings.Join(m.Params, ","), strconv.FormatBool(m.Func != nil))
	}
	return mixin.ContentName(opts.Name, parts...)
}

// compilation is the state of one run of the pipeline.
type compilation struct {
	opts Options
	pre  *preprocess.Preprocessor

	arena *preprocess.Arena
	final preprocess.FrameID
}

func (c *compilation) report(res *Result, err error, sev Severity) {
	res.Diagnostics = append(res.Diagnostics, diagnose(err, sev, c.arena, c.final))
}

func (c *compilation) run(ctx context.Context, src string, res *Result) error {
	// 1. Preprocess
	pp, err := c.pre.Run(src)
	if err != nil {
		c.report(res, err, SeverityError)
		return nil
	}
	c.arena, c.final = pp.Arena, pp.Final
	defer pp.Arena.Release()
	if err := ctx.Err(); err != nil {
		return err
	}

	// 2. Parse
	mod, err := parser.ParseString(pp.Text())
	if err != nil {
		c.report(res, err, SeverityError)
		return nil
	}
	res.AST = mod
	if err := ctx.Err(); err != nil {
		return err
	}

	// 3. Analyze
	semaOpts := sema.Options{Stages: c.opts.Stages, EntryName: c.opts.EntryName}
	if c.opts.Resolver != nil {
		semaOpts.Bases = c.base
	}
	prog, errs := sema.Analyze(mod, semaOpts)
	res.Program = prog
	errs = append(errs, sema.CheckIO(prog.Table, prog, c.opts.Stages)...)
	for _, err := range errs {
		c.report(res, err, SeverityError)
	}
	warn := SeverityWarning
	if c.opts.Strict {
		warn = SeverityError
	}
	for _, w := range prog.Warnings {
		c.report(res, w, warn)
	}
	if res.Err() != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 4. Lower
	for _, f := range prog.Functions {
		if f.Abstract() {
			continue
		}
		snippet, err := tac.LowerFunction(f.Decl)
		if err != nil {
			c.report(res, err, SeverityError)
			return nil
		}
		res.IR = append(res.IR, snippet)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 5. Emit
	backend := spirv.NewBackend(spirv.Options{
		Version: c.opts.SPIRVVersion,
		Debug:   c.opts.Debug,
		MaxID:   c.opts.MaxID,
	})
	buf, err := backend.Compile(prog)
	if err != nil {
		c.report(res, err, SeverityError)
		return nil
	}
	res.Buffer = buf
	return nil
}

// base loads, preprocesses and parses the source of a base mixin.
func (c *compilation) base(name string) (*ast.Module, error) {
	src, err := c.opts.Resolver.LoadMixin(name)
	if err != nil {
		return nil, err
	}
	pp, err := c.pre.Run(src)
	if err != nil {
		return nil, fmt.Errorf("preprocessing %s: %w", name, err)
	}
	defer pp.Arena.Release()
	mod, err := parser.ParseString(pp.Text())
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return mod, nil
}
