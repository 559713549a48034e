package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gogpu/sdsl/mixin"
	"github.com/syncthing/notify"
)

// settle is how long the watcher waits for events to stop before
// recompiling.
const settle = 100 * time.Millisecond

// watch compiles the inputs, then recompiles whenever a file in their
// directories or the mixin directories changes, until ctx is done.
func watch(ctx context.Context, cfg *config) error {
	// Buffered so that a burst of events is not dropped while compiling.
	c := make(chan notify.EventInfo, 16)
	for _, dir := range cfg.include {
		if err := notify.Watch(dir, c, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		cfg.logger.Printf("watching %s", dir)
	}
	defer notify.Stop(c)

	inputs := make(map[string]bool, len(cfg.inputs))
	for _, in := range cfg.inputs {
		inputs[absPath(in)] = true
	}

	compile := func(force bool) {
		if err := run(ctx, cfg, force); err != nil && !errors.Is(err, errFailed) && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(cfg.stderr, "Error: %v\n", err)
		}
	}
	compile(false)

	var (
		timer *time.Timer
		force bool
	)
	timeout := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c:
			isInput := inputs[absPath(ev.Path())]
			if !isInput && filepath.Ext(ev.Path()) != mixin.DefaultExt {
				continue
			}
			// Cache keys only cover the compiled sources, so a changed
			// mixin invalidates every cached module.
			if !isInput {
				force = true
			}
			cfg.logger.Printf("%s: %s", ev.Event(), ev.Path())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(settle)
		case <-timeout():
			timer = nil
			compile(force)
			force = false
		}
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
