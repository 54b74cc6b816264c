package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscoverFindsManifestsUnderModuleRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "cue.mod", "module.cue"), "module: \"example.com/repo\"\n")
	writeFile(t, filepath.Join(root, "env.cue"), "")
	writeFile(t, filepath.Join(root, "apps", "web", "env.cue"), "")
	writeFile(t, filepath.Join(root, "apps", "web", "package.json"), "{}")
	writeFile(t, filepath.Join(root, "apps", "api", "env.cue"), "")
	writeFile(t, filepath.Join(root, "apps", "api", "Cargo.toml"), "[package]\nname=\"api\"\n")

	roots, err := Discover(hclog.NewNullLogger(), root)
	require.NoError(t, err)
	require.Len(t, roots, 3)

	byDir := map[string]ProjectRoot{}
	for _, r := range roots {
		byDir[r.Dir] = r
	}

	web := byDir[filepath.Join(root, "apps", "web")]
	assert.True(t, web.WorkspaceKinds.Has(KindNPM))
	assert.Equal(t, root, web.ModuleRoot)

	api := byDir[filepath.Join(root, "apps", "api")]
	assert.True(t, api.WorkspaceKinds.Has(KindCargo))
}

func TestDiscoverSkipsDefaultIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "env.cue"), "")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "env.cue"), "")

	roots, err := Discover(hclog.NewNullLogger(), root)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root, roots[0].Dir)
}

func TestDiscoverRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "ignored/\n")
	writeFile(t, filepath.Join(root, "env.cue"), "")
	writeFile(t, filepath.Join(root, "ignored", "env.cue"), "")

	roots, err := Discover(hclog.NewNullLogger(), root)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root, roots[0].Dir)
}

func TestDetectWorkspaceKindsDistinguishesLockfiles(t *testing.T) {
	pnpmDir := t.TempDir()
	writeFile(t, filepath.Join(pnpmDir, "package.json"), "{}")
	writeFile(t, filepath.Join(pnpmDir, "pnpm-lock.yaml"), "lockfileVersion: 5.4\n")
	kinds, err := DetectWorkspaceKinds(pnpmDir)
	require.NoError(t, err)
	assert.True(t, kinds.Has(KindPNPM))

	denoDir := t.TempDir()
	writeFile(t, filepath.Join(denoDir, "deno.json"), "{}")
	kinds, err = DetectWorkspaceKinds(denoDir)
	require.NoError(t, err)
	assert.True(t, kinds.Has(KindDeno))
}

func TestDetectWorkspaceKindsRejectsMalformedYarnLock(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "package.json"), "{}")
	writeFile(t, filepath.Join(dir, "yarn.lock"), "not a valid yarn lockfile {{{")
	kinds, err := DetectWorkspaceKinds(dir)
	require.NoError(t, err)
	assert.False(t, kinds.Has(KindYarn))
}
