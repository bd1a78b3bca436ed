// Package groutine starts named worker goroutines. The name is attached as a
// pprof label, so workers show up by role in goroutine profiles, and is
// readable from the worker's context for log fields.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey struct{}

// LabelKey is the pprof label carrying the worker name.
const LabelKey = "worker"

// Go runs fn on a new goroutine named name. A nil parent means
// context.Background().
//
//	groutine.Go(ctx, "ble-scan", func(ctx context.Context) {
//	    // work until ctx is done
//	})
func Go(parent context.Context, name string, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}
	go pprof.Do(parent, pprof.Labels(LabelKey, name), func(ctx context.Context) {
		fn(context.WithValue(ctx, ctxKey{}, name))
	})
}

// Name returns the worker name stored by Go, or "" outside a worker.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
