// Package discovery walks a repository's filesystem to find CUE module
// roots and evaluable packages within them. Nothing here parses CUE: a
// module root is just a directory containing a cue.mod directory, and an
// evaluable package is a directory containing a manifest entrypoint file;
// CUE evaluation itself stays the opaque eval(moduleRoot, package)
// function the compiler's manifest package expects.
package discovery

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/karrick/godirwalk"
	"github.com/yookoala/realpath"

	"github.com/cuenv/cuenv/internal/util"
)

// ManifestFile is the entrypoint filename a directory must contain to be
// treated as an evaluable package.
const ManifestFile = "env.cue"

// ModuleMarkerDir is the directory name marking a CUE module root.
const ModuleMarkerDir = "cue.mod"

// defaultIgnoredDirs are always skipped regardless of ignore-file
// contents.
var defaultIgnoredDirs = util.NewStringSet(
	".git", "node_modules", "bower_components", ".cuenv", "vendor", "target",
)

// ProjectRoot is one discovered evaluable package: a directory with an
// env.cue entrypoint, anchored to the nearest enclosing CUE module root.
type ProjectRoot struct {
	ModuleRoot     string
	Dir            string
	WorkspaceKinds util.StringSet
}

// Discover walks rootDir looking for directories containing ManifestFile,
// resolving symlinks as it goes so a symlinked workspace member is never
// visited twice, and skipping anything matched by ignore rules.
func Discover(logger hclog.Logger, rootDir string) ([]ProjectRoot, error) {
	resolvedRoot, err := realpath.Realpath(rootDir)
	if err != nil {
		return nil, err
	}

	ignores, err := loadIgnoreMatcher(resolvedRoot)
	if err != nil {
		return nil, err
	}

	var roots []ProjectRoot
	visited := util.NewStringSet()
	moduleRootCache := map[string]string{}
	if _, statErr := os.Stat(filepath.Join(resolvedRoot, ModuleMarkerDir)); statErr == nil {
		moduleRootCache[resolvedRoot] = resolvedRoot
	}

	err = godirwalk.Walk(resolvedRoot, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(resolvedRoot, path)
			if relErr != nil {
				rel = path
			}
			if rel != "." {
				base := filepath.Base(path)
				if defaultIgnoredDirs.Has(base) || ignores.Match(rel, true) {
					return filepath.SkipDir
				}
			}

			resolved, resolveErr := realpath.Realpath(path)
			if resolveErr != nil {
				return resolveErr
			}
			if visited.Has(resolved) {
				return filepath.SkipDir
			}
			visited.Add(resolved)

			moduleRoot := nearestModuleRoot(path, resolvedRoot, moduleRootCache)

			if _, statErr := os.Stat(filepath.Join(path, ManifestFile)); statErr == nil {
				kinds, kindErr := DetectWorkspaceKinds(path)
				if kindErr != nil {
					logger.Warn("discovery: workspace kind detection failed", "dir", path, "error", kindErr)
					kinds = util.NewStringSet()
				}
				roots = append(roots, ProjectRoot{
					ModuleRoot:     moduleRoot,
					Dir:            path,
					WorkspaceKinds: kinds,
				})
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(roots, func(i, j int) bool { return roots[i].Dir < roots[j].Dir })
	return roots, nil
}

// nearestModuleRoot finds the closest ancestor of dir (inclusive, bounded
// by stopAt) that contains a cue.mod directory, caching results per
// directory so a deep tree doesn't re-stat its ancestors per visited node.
func nearestModuleRoot(dir, stopAt string, cache map[string]string) string {
	if cached, ok := cache[dir]; ok {
		return cached
	}
	if _, err := os.Stat(filepath.Join(dir, ModuleMarkerDir)); err == nil {
		cache[dir] = dir
		return dir
	}
	if dir == stopAt || dir == "." || dir == string(filepath.Separator) {
		cache[dir] = stopAt
		return stopAt
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		cache[dir] = stopAt
		return stopAt
	}
	result := nearestModuleRoot(parent, stopAt, cache)
	cache[dir] = result
	return result
}
