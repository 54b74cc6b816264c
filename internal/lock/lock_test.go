package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "build_test", Sanitize("build.test"))
	assert.Equal(t, "a_b_c", Sanitize("a b/c"))
	assert.Equal(t, "abc-123_XYZ", Sanitize("abc-123_XYZ"))
}

func TestExclusivityAndRelease(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	g1, err := m.TryAcquire("production", "deploy-1")
	require.NoError(t, err)

	_, err = m.TryAcquire("production", "deploy-2")
	assert.ErrorIs(t, err, ErrTimeout, "a second holder must not succeed while the first holds the lock")

	require.NoError(t, g1.Release())

	g2, err := m.TryAcquire("production", "deploy-2")
	require.NoError(t, err, "acquisition must succeed immediately after the prior guard is released")
	require.NoError(t, g2.Release())
}

func TestIdempotentRelease(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	g, err := m.TryAcquire("grp", "t1")
	require.NoError(t, err)
	require.NoError(t, g.Release())
	require.NoError(t, g.Release(), "releasing a lock whose file is already gone must not error")
}

func TestStaleLockIsBroken(t *testing.T) {
	fakeNow := time.Now()
	m, err := NewManager(t.TempDir(), WithStaleThreshold(10*time.Second))
	require.NoError(t, err)
	m.now = func() time.Time { return fakeNow }

	g1, err := m.TryAcquire("grp", "old-task")
	require.NoError(t, err)
	_ = g1 // simulate the holder crashing without releasing

	m.now = func() time.Time { return fakeNow.Add(11 * time.Second) }
	g2, err := m.TryAcquire("grp", "new-task")
	require.NoError(t, err, "a lock older than stale_threshold must be broken and re-acquired")
	require.NoError(t, g2.Release())
}
