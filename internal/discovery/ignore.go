package discovery

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// ignoreFiles are read, in order, from the resolved root that Discover
// walks (not from each CUE module root); later files add to
// earlier ones rather than replacing them.
var ignoreFiles = []string{".gitignore", ".cuenvignore"}

// ignoreMatcher combines every ignore file found at rootDir into one
// matcher; an absent ignore file is never an error.
type ignoreMatcher struct {
	ignores []*gitignore.GitIgnore
}

func loadIgnoreMatcher(rootDir string) (*ignoreMatcher, error) {
	m := &ignoreMatcher{}
	for _, name := range ignoreFiles {
		path := filepath.Join(rootDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		ig, err := gitignore.CompileIgnoreFile(path)
		if err != nil {
			return nil, err
		}
		m.ignores = append(m.ignores, ig)
	}
	return m, nil
}

// Match reports whether rel (relative to rootDir) should be skipped.
func (m *ignoreMatcher) Match(rel string, isDir bool) bool {
	for _, ig := range m.ignores {
		if ig.MatchesPath(rel) {
			return true
		}
		if isDir && ig.MatchesPath(rel+"/") {
			return true
		}
	}
	return false
}
