package cache

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"
	"github.com/cuenv/cuenv/internal/ir"
)

// Cache composes the on-disk store, metrics, and policy enforcement into
// the single entry point the executor calls. It collapses concurrent
// identical fingerprints within this process via
// golang.org/x/sync/singleflight.
type Cache struct {
	store   *Store
	metrics *Metrics
	logger  hclog.Logger
	group   singleflight.Group
}

// New builds a Cache backed by an on-disk Store at dir. A nil metrics is
// replaced by an unregistered Metrics.
func New(dir string, metrics *Metrics, logger hclog.Logger) (*Cache, error) {
	store, err := NewStore(dir)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Cache{store: store, metrics: metrics, logger: logger.Named("cache")}, nil
}

// Result is what Lookup returns: either a cache hit's Entry, or a miss.
type Result struct {
	Hit   bool
	Entry *Entry
}

// Lookup applies the read side of the policy table. Non-normal
// and non-readonly policies never read, and always report a miss so the
// caller proceeds to execute.
func (c *Cache) Lookup(fingerprint string, policy ir.CachePolicy) (Result, error) {
	decision := DecideFor(policy)
	if !decision.ShouldRead {
		return Result{Hit: false}, nil
	}

	start := time.Now()
	v, err, _ := c.group.Do("lookup:"+fingerprint, func() (interface{}, error) {
		return c.store.GetEntry(fingerprint)
	})
	c.metrics.RecordCheckLatency(time.Since(start))

	if err != nil {
		if rerr, ok := err.(*RestoreError); ok {
			if rerr.Kind == RestoreNotFound {
				c.metrics.RecordMiss(policy)
				return Result{Hit: false}, nil
			}
			c.metrics.RecordRestoreFailure(rerr.Kind)
			// Non-fatal unless the caller requires the hit under readonly;
			// the executor decides that, this just reports the miss.
			c.metrics.RecordMiss(policy)
			return Result{Hit: false}, err
		}
		return Result{Hit: false}, err
	}

	entry := v.(*Entry)
	c.metrics.RecordHit(policy)
	return Result{Hit: true, Entry: entry}, nil
}

// Store applies the write side of the policy table: only writeonly/normal
// ever persist a result.
func (c *Cache) Store(policy ir.CachePolicy, entry *Entry) error {
	decision := DecideFor(policy)
	if !decision.ShouldWrite {
		return nil
	}
	_, err, _ := c.group.Do("store:"+entry.Fingerprint, func() (interface{}, error) {
		return nil, c.store.PutEntry(entry)
	})
	return err
}

// PutBlob stores task output content and returns its CAS hash.
func (c *Cache) PutBlob(content []byte) (string, error) {
	hash, err := c.store.PutBlob(content)
	if err == nil {
		c.metrics.RecordBytes(int64(len(content)))
	}
	return hash, err
}

// GetBlob retrieves previously stored output content.
func (c *Cache) GetBlob(hash string) ([]byte, error) {
	content, err := c.store.GetBlob(hash)
	if err == nil {
		c.metrics.RecordBytes(int64(len(content)))
	}
	return content, err
}

// WouldHit predicts cache status for dry-run mode without fetching content.
func (c *Cache) WouldHit(fingerprint string, policy ir.CachePolicy) bool {
	if !DecideFor(policy).ShouldRead {
		return false
	}
	return c.store.Exists(fingerprint)
}

// Metrics exposes the underlying metrics recorder.
func (c *Cache) Metrics() *Metrics { return c.metrics }
