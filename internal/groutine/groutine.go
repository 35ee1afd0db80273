// Package groutine starts goroutines carrying a pprof "goroutine_name" label,
// so engine, transport and feature loops can be told apart in profiles and
// goroutine dumps.
package groutine

import (
	"context"
	"runtime/pprof"
	"sync"
)

// LabelKey is the pprof label holding the goroutine name.
const LabelKey = "goroutine_name"

// Go starts fn labelled with name. A nil parent means context.Background().
func Go(parent context.Context, name string, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}
	go pprof.Do(parent, pprof.Labels(LabelKey, name), fn)
}

// GoTracked is Go with wg accounting, so owners can wait for shutdown.
func GoTracked(parent context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	Go(parent, name, func(ctx context.Context) {
		defer wg.Done()
		fn(ctx)
	})
}

// Name returns the label set by Go, or "" outside a labelled goroutine.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := pprof.Label(ctx, LabelKey)
	return name
}
