package secret

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Request pairs a field name with its Spec for a batch resolution.
type Request struct {
	FieldName string
	Spec      Spec
}

// Result is one resolved secret's plaintext, keyed by FieldName.
type Result struct {
	FieldName string
	Value     string
}

// Batch resolves many secrets concurrently through a Registry: every
// request runs on its own goroutine via golang.org/x/sync/errgroup, the
// first error cancels the group's context and is the only error returned,
// and results are collected in input order so callers never see
// goroutine-scheduling nondeterminism.
type Batch struct {
	Registry *Registry
}

// NewBatch builds a Batch bound to registry.
func NewBatch(registry *Registry) *Batch {
	return &Batch{Registry: registry}
}

// Resolve runs every request concurrently and returns one Result per
// request, in the same order as reqs. If any resolution fails, the first
// error (in goroutine-completion order) is returned and the remaining
// in-flight resolutions are cancelled via ctx.
func (b *Batch) Resolve(ctx context.Context, reqs []Request) ([]Result, error) {
	results := make([]Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			resolver, err := b.Registry.Get(req.Spec.ResolverID)
			if err != nil {
				return err
			}
			value, err := resolver.Resolve(gctx, req.FieldName, req.Spec)
			if err != nil {
				return err
			}
			results[i] = Result{FieldName: req.FieldName, Value: value}
			Redact(value)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
