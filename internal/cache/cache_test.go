package cache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/cuenv/cuenv/internal/ir"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	c, err := New(t.TempDir(), metrics, nil)
	require.NoError(t, err)
	return c
}

func TestFingerprintStability(t *testing.T) {
	base := FingerprintInputs{
		TaskID:          "build",
		Command:         []string{"cargo", "build"},
		Env:             map[string]string{"RUSTFLAGS": "-C opt-level=3"},
		InputFileHashes: map[string]string{"src/main.rs": "abc"},
		RuntimeDigest:   "deadbeef",
	}
	fp1 := Compute(base)
	fp2 := Compute(base)
	assert.Equal(t, fp1, fp2, "identical inputs must produce identical fingerprints")

	changedCommand := base
	changedCommand.Command = []string{"cargo", "build", "--release"}
	assert.NotEqual(t, fp1, Compute(changedCommand))

	changedInput := base
	changedInput.InputFileHashes = map[string]string{"src/main.rs": "different"}
	assert.NotEqual(t, fp1, Compute(changedInput))

	changedRuntime := base
	changedRuntime.RuntimeDigest = "other"
	assert.NotEqual(t, fp1, Compute(changedRuntime))
}

func TestCacheNormalPolicyMissThenHit(t *testing.T) {
	c := newTestCache(t)

	res, err := c.Lookup("fp1", ir.CachePolicyNormal)
	require.NoError(t, err)
	assert.False(t, res.Hit)

	require.NoError(t, c.Store(ir.CachePolicyNormal, &Entry{Fingerprint: "fp1", ExitCode: 0}))

	res, err = c.Lookup("fp1", ir.CachePolicyNormal)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, 0, res.Entry.ExitCode)

	assert.Equal(t, 0.5, c.Metrics().HitRate())
}

func TestCacheReadonlyNeverWrites(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Store(ir.CachePolicyReadonly, &Entry{Fingerprint: "fp2"}))

	res, err := c.Lookup("fp2", ir.CachePolicyReadonly)
	require.NoError(t, err)
	assert.False(t, res.Hit, "readonly must never have written the entry")
}

func TestCacheDisabledNeverReadsOrWrites(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Store(ir.CachePolicyNormal, &Entry{Fingerprint: "fp3"}))

	res, err := c.Lookup("fp3", ir.CachePolicyDisabled)
	require.NoError(t, err)
	assert.False(t, res.Hit, "disabled must never read even an existing entry")
}

func TestBlobRoundTrip(t *testing.T) {
	c := newTestCache(t)
	content := []byte("hello cuenv")
	hash, err := c.PutBlob(content)
	require.NoError(t, err)

	got, err := c.GetBlob(hash)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}
