package hashing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashInputsMatchesGlobPatterns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "util.go"), []byte("package sub"), 0o644))

	hashes, err := HashInputs(dir, []string{"**/*.go"})
	require.NoError(t, err)

	assert.Contains(t, hashes, "main.go")
	assert.Contains(t, hashes, "sub/util.go")
	assert.NotContains(t, hashes, "README.md")
}

func TestHashInputsIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	h1, err := HashInputs(dir, []string{"*.txt"})
	require.NoError(t, err)
	h2, err := HashInputs(dir, []string{"*.txt"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestSortedPathsIsStable(t *testing.T) {
	paths := SortedPaths(map[string]string{"b.txt": "x", "a.txt": "y"})
	assert.Equal(t, []string{"a.txt", "b.txt"}, paths)
}
