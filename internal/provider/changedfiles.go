package provider

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// GitChangedFiles implements the changed-files fallback chain shared by
// every provider: an explicit commit range via `git diff`, falling back to
// comparing against the immediate parent commit, falling back to
// `git ls-files` (every tracked file looks "changed") with a warning
// logged since that makes every task appear affected.
func GitChangedFiles(logger hclog.Logger, baseSHA, headSHA string) ([]string, error) {
	if baseSHA != "" && headSHA != "" {
		files, err := gitDiffRange(baseSHA, headSHA)
		if err == nil {
			return files, nil
		}
		logger.Warn("git diff over explicit range failed, falling back to parent-commit heuristic", "error", err)
	}

	if headSHA != "" {
		files, err := gitDiffRange(headSHA+"^", headSHA)
		if err == nil {
			return files, nil
		}
		logger.Warn("git diff against parent commit failed, falling back to git ls-files", "error", err)
	}

	logger.Warn("falling back to git ls-files; every tracked file will be treated as changed")
	return gitLsFiles()
}

func gitDiffRange(from, to string) ([]string, error) {
	out, err := exec.Command("git", "diff", "--name-only", from+"..."+to).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git diff %s...%s: %w: %s", from, to, err, string(out))
	}
	return splitNonEmptyLines(string(out)), nil
}

func gitLsFiles() ([]string, error) {
	out, err := exec.Command("git", "ls-files").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, string(out))
	}
	return splitNonEmptyLines(string(out)), nil
}

func splitNonEmptyLines(s string) []string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
