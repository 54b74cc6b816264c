package provider

import (
	"context"
	"sync"
	"time"

	"github.com/cuenv/cuenv/internal/executor"
)

const defaultMinUpdateInterval = 3 * time.Second

// RateLimited wraps a Provider so that UpdateCheck calls are throttled to
// at most one per interval per check; an update arriving within the
// interval after the last one sent is dropped, not queued. Vendor
// check-run APIs rate-limit aggressively and a wave of parallel tasks can
// otherwise produce dozens of updates per second.
type RateLimited struct {
	inner    Provider
	interval time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewRateLimited wraps inner with the default minimum update interval.
func NewRateLimited(inner Provider) *RateLimited {
	return &RateLimited{
		inner:    inner,
		interval: defaultMinUpdateInterval,
		lastSent: make(map[string]time.Time),
	}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

func (r *RateLimited) Context(ctx context.Context) (Context, error) {
	return r.inner.Context(ctx)
}

func (r *RateLimited) ChangedFiles(ctx context.Context) ([]string, error) {
	return r.inner.ChangedFiles(ctx)
}

func (r *RateLimited) CreateCheck(ctx context.Context, name string) (CheckHandle, error) {
	return r.inner.CreateCheck(ctx, name)
}

func (r *RateLimited) UpdateCheck(ctx context.Context, handle CheckHandle, summary string) error {
	if !r.allow(handle) {
		return nil
	}
	return r.inner.UpdateCheck(ctx, handle, summary)
}

// CompleteCheck is never throttled. It leaves the handle's throttle state in
// place, so an UpdateCheck within the interval afterwards is still dropped.
func (r *RateLimited) CompleteCheck(ctx context.Context, handle CheckHandle, report *executor.Report) error {
	return r.inner.CompleteCheck(ctx, handle, report)
}

func (r *RateLimited) UploadReport(ctx context.Context, report *executor.Report) (string, error) {
	return r.inner.UploadReport(ctx, report)
}

func (r *RateLimited) allow(handle CheckHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if last, ok := r.lastSent[handle.ID]; ok && now.Sub(last) < r.interval {
		return false
	}
	r.lastSent[handle.ID] = now
	return true
}
