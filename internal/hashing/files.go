// Package hashing computes content hashes for a task's declared input
// files, the piece of fingerprint derivation that requires
// walking the filesystem rather than just combining already-known values.
//
// cuenv's inputs are plain glob patterns over the working tree with no
// assumption of a git repository, so this package walks the filesystem
// directly with github.com/karrick/godirwalk (also used elsewhere for
// directory discovery) and matches paths with github.com/gobwas/glob
// instead of relying on git's own file listing.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/karrick/godirwalk"
)

// HashInputs walks root and returns a path->hex-sha256 map for every
// regular file matching any of the glob patterns, paths reported relative
// to root with forward slashes. Patterns follow gobwas/glob syntax
// (`**` for recursive match); a leading `**/` also matches files directly
// under root, so `**/*.go` matches both `main.go` and `sub/util.go`.
func HashInputs(root string, patterns []string) (map[string]string, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
		if rest := strings.TrimPrefix(p, "**/"); rest != p {
			top, err := glob.Compile(rest, '/')
			if err != nil {
				return nil, err
			}
			globs = append(globs, top)
		}
	}

	result := make(map[string]string)
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			matched := false
			for _, g := range globs {
				if g.Match(rel) {
					matched = true
					break
				}
			}
			if !matched {
				return nil
			}

			hash, err := hashFile(path)
			if err != nil {
				return err
			}
			result[rel] = hash
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SortedPaths returns the map's keys sorted, a convenience for callers that
// need deterministic iteration.
func SortedPaths(hashes map[string]string) []string {
	paths := make([]string, 0, len(hashes))
	for p := range hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
