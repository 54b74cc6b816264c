package executor

import (
	"context"
	"sync"
	"time"

	"github.com/cuenv/cuenv/internal/ir"
)

// RuntimeMaterializer brings a declared runtime into existence locally
// (e.g. realizing a Nix flake output) before a task that references it
// runs. The executor only calls it when the runtime hasn't already been
// materialized this invocation.
type RuntimeMaterializer interface {
	Materialize(ctx context.Context, rt ir.Runtime) (time.Duration, error)
}

// NoopMaterializer treats every runtime as already materialized. It's the
// default when no materializer is configured, appropriate for IRs whose
// tasks don't reference runtimes or whose runtime bootstrap happens
// entirely inside the emitted provider pipeline rather than in the local executor.
type NoopMaterializer struct{}

// Materialize implements RuntimeMaterializer.
func (NoopMaterializer) Materialize(context.Context, ir.Runtime) (time.Duration, error) {
	return 0, nil
}

// cachingMaterializer wraps another RuntimeMaterializer so each runtime id
// is only materialized once per Executor lifetime. The lock is held across
// the inner Materialize call, so concurrent tasks needing a runtime wait
// for the first call; the inner duration is returned the first time and
// zero on later calls.
type cachingMaterializer struct {
	inner RuntimeMaterializer
	mu    sync.Mutex
	done  map[string]struct{}
}

func newCachingMaterializer(inner RuntimeMaterializer) *cachingMaterializer {
	return &cachingMaterializer{inner: inner, done: make(map[string]struct{})}
}

func (m *cachingMaterializer) materializeOnce(ctx context.Context, rt ir.Runtime) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.done[rt.ID]; ok {
		return 0, nil
	}

	dur, err := m.inner.Materialize(ctx, rt)
	if err != nil {
		return dur, err
	}

	m.done[rt.ID] = struct{}{}
	return dur, nil
}
