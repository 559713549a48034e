package sdsl

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Unit is one source of a batch compilation.
type Unit struct {
	Name   string // overrides Options.Name when set
	Source string
}

// CompileBatch compiles independent units in parallel, sharing opts and
// its mixin cache. At most jobs units compile at once; jobs <= 0 means
// GOMAXPROCS. Results are in unit order. Compilation failures are
// reported in each result; the error is non-nil only when ctx ended the
// batch early.
func CompileBatch(ctx context.Context, units []Unit, opts Options, jobs int) ([]*Result, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, u := range units {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o := opts
			if u.Name != "" {
				o.Name = u.Name
			}
			res, err := CompileContext(gctx, u.Source, o)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
