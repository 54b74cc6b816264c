package discovery

import (
	"os"
	"path/filepath"

	"github.com/iseki0/go-yarnlock"

	"github.com/cuenv/cuenv/internal/util"
)

// Workspace kind names, matched case-insensitively against contributor
// `workspaceMember` predicates.
const (
	KindNPM   = "npm"
	KindBun   = "bun"
	KindPNPM  = "pnpm"
	KindYarn  = "yarn"
	KindCargo = "cargo"
	KindDeno  = "deno"
)

// DetectWorkspaceKinds inspects dir for the marker files of each supported
// ecosystem, returning a set rather than a single exclusive choice since a
// directory can plausibly carry more than one kind (npm + cargo in a
// mixed-language project).
func DetectWorkspaceKinds(dir string) (util.StringSet, error) {
	kinds := util.NewStringSet()

	if exists(dir, "package.json") {
		switch {
		case exists(dir, "yarn.lock"):
			if ok, err := confirmYarnLockfile(dir); err != nil {
				return nil, err
			} else if ok {
				kinds.Add(KindYarn)
			}
		case exists(dir, "pnpm-lock.yaml"):
			kinds.Add(KindPNPM)
		case exists(dir, "bun.lockb"), exists(dir, "bun.lock"):
			kinds.Add(KindBun)
		default:
			kinds.Add(KindNPM)
		}
	}

	if exists(dir, "Cargo.toml") {
		kinds.Add(KindCargo)
	}

	if exists(dir, "deno.json") || exists(dir, "deno.jsonc") {
		kinds.Add(KindDeno)
	}

	return kinds, nil
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// confirmYarnLockfile parses yarn.lock to confirm it's well-formed rather
// than trusting the filename alone.
func confirmYarnLockfile(dir string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, "yarn.lock"))
	if err != nil {
		return false, err
	}
	if _, err := yarnlock.ParseLockFileData(data); err != nil {
		return false, nil
	}
	return true, nil
}
