// Command sdslc is the SDSL shader compiler CLI.
//
// Usage:
//
//	sdslc [options] <input.sdsl>...
//
// Examples:
//
//	sdslc -stage pixel -o red.spv red.sdsl      # Compile to SPIR-V
//	sdslc -stage vertex,pixel -D USE_FOG Pass.sdsl
//	sdslc -macros defines.jsonc -I mixins *.sdsl # Compile a batch
//	sdslc -emit tac shader.sdsl                  # Print the IR
//	sdslc -watch -stage pixel red.sdsl           # Recompile on change
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gogpu/sdsl"
	"github.com/gogpu/sdsl/ast"
	"github.com/gogpu/sdsl/mixin"
	"github.com/gogpu/sdsl/preprocess"
	"github.com/gogpu/sdsl/sema"
	"github.com/gogpu/sdsl/source"
)

const sdslcVersion = "0.1.0-dev"

// errFailed reports that at least one unit did not compile. Its
// diagnostics have already been printed.
var errFailed = errors.New("compilation failed")

// config is the parsed command line.
type config struct {
	output  string
	emit    string
	stages  sdsl.EntryPoint
	entry   string
	macros  map[string]preprocess.Macro
	include []string
	strict  bool
	debug   bool
	jobs    int
	verbose bool
	watch   bool
	inputs  []string

	logger *log.Logger
	stdout io.Writer
	stderr io.Writer
	cache  *mixin.Storage
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.watch {
		err = watch(ctx, cfg)
	} else {
		err = run(ctx, cfg, false)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("sdslc", flag.ContinueOnError)
	var (
		stageList = fs.String("stage", "", "comma separated entry point stages: vertex, pixel, compute and so on")
		macroFile = fs.String("macros", "", "JSON or JSONC file of predefined macros")
		showVer   = fs.Bool("version", false, "print version")
		noDebug   = fs.Bool("nodebug", false, "omit OpName debug information")
	)
	var includes listFlag
	defines := make(defineFlag)
	cfg := &config{stdout: os.Stdout, stderr: os.Stderr}
	fs.StringVar(&cfg.output, "o", "", "output file, or directory when compiling several inputs (default: stdout)")
	fs.StringVar(&cfg.emit, "emit", "spv", "output kind: spv, tac or ast")
	fs.StringVar(&cfg.entry, "entry", "main", "entry function name for a single stage")
	fs.BoolVar(&cfg.strict, "strict", false, "report unbound macros and treat warnings as errors")
	fs.IntVar(&cfg.jobs, "j", 0, "parallel compilations (default: GOMAXPROCS)")
	fs.BoolVar(&cfg.verbose, "v", false, "log compilation progress")
	fs.BoolVar(&cfg.watch, "watch", false, "recompile when inputs or mixins change")
	fs.Var(defines, "D", "define a macro as NAME, NAME=VALUE or NAME(a,b)=BODY (repeatable)")
	fs.Var(&includes, "I", "directory searched for base mixins (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: sdslc [options] <input.sdsl>...\n\n")
		fmt.Fprintf(fs.Output(), "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *showVer {
		fmt.Printf("sdslc version %s\n", sdslcVersion)
		return nil, flag.ErrHelp
	}
	cfg.inputs = fs.Args()
	if len(cfg.inputs) == 0 {
		fs.Usage()
		return nil, errors.New("no input file specified")
	}
	switch cfg.emit {
	case "spv", "tac", "ast":
	default:
		return nil, fmt.Errorf("unknown -emit kind %q", cfg.emit)
	}
	stages, err := parseStages(*stageList)
	if err != nil {
		return nil, err
	}
	cfg.stages = stages
	cfg.debug = !*noDebug

	cfg.macros = make(map[string]preprocess.Macro)
	if *macroFile != "" {
		fromFile, err := loadMacros(*macroFile)
		if err != nil {
			return nil, err
		}
		maps.Copy(cfg.macros, fromFile)
	}
	maps.Copy(cfg.macros, defines)

	cfg.include = includes
	for _, in := range cfg.inputs {
		if dir := filepath.Dir(in); !slices.Contains(cfg.include, dir) {
			cfg.include = append(cfg.include, dir)
		}
	}

	out := io.Discard
	if cfg.verbose {
		out = os.Stderr
	}
	cfg.logger = log.New(out, "sdslc: ", log.Ltime)
	cfg.cache = mixin.NewStorage()
	return cfg, nil
}

// parseStages parses a comma separated list of stage names.
func parseStages(list string) (sdsl.EntryPoint, error) {
	var stages sdsl.EntryPoint
	for name := range strings.SplitSeq(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s, ok := sema.ParseStage(name)
		if !ok {
			return 0, fmt.Errorf("unknown stage %q", name)
		}
		stages |= s
	}
	return stages, nil
}

func (cfg *config) options(force bool) sdsl.Options {
	resolver := make(mixin.Chain, 0, len(cfg.include))
	for _, dir := range cfg.include {
		resolver = append(resolver, mixin.DirResolver{Dir: dir})
	}
	opts := sdsl.DefaultOptions()
	opts.Stages = cfg.stages
	opts.EntryName = cfg.entry
	opts.Macros = cfg.macros
	opts.Strict = cfg.strict
	opts.Debug = cfg.debug
	opts.Resolver = resolver
	opts.Mixins = cfg.cache
	opts.Force = force
	return opts
}

// run compiles every input once. force bypasses the mixin cache.
func run(ctx context.Context, cfg *config, force bool) error {
	units := make([]sdsl.Unit, len(cfg.inputs))
	sources := make([]string, len(cfg.inputs))
	for i, path := range cfg.inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		src, err := source.Decode(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sources[i] = src
		units[i] = sdsl.Unit{Name: stem(path), Source: src}
	}

	cfg.logger.Printf("compiling %d unit(s)", len(units))
	results, err := sdsl.CompileBatch(ctx, units, cfg.options(force), cfg.jobs)
	if err != nil {
		return err
	}

	failed := false
	for i, res := range results {
		path := cfg.inputs[i]
		if diags := res.Diagnostics; len(diags) > 0 {
			fmt.Fprintf(cfg.stderr, "%s:\n%s\n", path, diags.FormatWithContext(sources[i]))
		}
		if res.Err() != nil {
			failed = true
			continue
		}
		if res.Cached {
			cfg.logger.Printf("%s: unchanged (%s)", path, res.Key)
		}
		if err := cfg.write(path, res); err != nil {
			return err
		}
	}
	if failed {
		return errFailed
	}
	return nil
}

// write emits the requested output of one compiled unit.
func (cfg *config) write(input string, res *sdsl.Result) error {
	var data []byte
	switch cfg.emit {
	case "spv":
		data = res.Buffer.Bytes()
	case "tac":
		var sb strings.Builder
		for _, snippet := range res.IR {
			sb.WriteString(snippet.String())
		}
		data = []byte(sb.String())
	case "ast":
		if res.AST != nil {
			data = []byte(ast.Print(res.AST))
		}
	}

	path := cfg.outputPath(input)
	if path == "" {
		_, err := cfg.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	cfg.logger.Printf("%s: wrote %s (%d bytes)", input, path, len(data))
	return nil
}

// outputPath returns where the output of input goes; empty is stdout.
func (cfg *config) outputPath(input string) string {
	if len(cfg.inputs) == 1 {
		return cfg.output
	}
	dir := cfg.output
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, stem(input)+"."+cfg.emit)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
