package compiler

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/cuenv/cuenv/internal/graph"
	"github.com/cuenv/cuenv/internal/ir"
)

// computeAffected marks a task directly affected if any of its input globs
// match a changed file; the affected set closes
// transitively over dependents (a task whose dependency is affected is
// itself affected). When allAffected is true (the "release" event case)
// every task is affected and filtering is skipped entirely.
func computeAffected(tasks []ir.Task, changedFiles []string, allAffected bool) (map[string]bool, error) {
	affected := make(map[string]bool, len(tasks))
	if allAffected {
		for _, t := range tasks {
			affected[t.ID] = true
		}
		return affected, nil
	}

	for _, t := range tasks {
		matched, err := anyGlobMatches(t.Inputs, changedFiles)
		if err != nil {
			return nil, err
		}
		if matched {
			affected[t.ID] = true
		}
	}

	g := graph.New()
	for _, t := range tasks {
		g.AddTask(taskGraphNode{t})
	}
	if err := g.AddDependencyEdges(); err != nil {
		return nil, err
	}

	changed := true
	for changed {
		changed = false
		for _, t := range tasks {
			if affected[t.ID] {
				continue
			}
			for _, dep := range g.DependsOn(t.ID) {
				if affected[dep] {
					affected[t.ID] = true
					changed = true
					break
				}
			}
		}
	}

	return affected, nil
}

// filterAffected narrows a pipeline's task names down to the ones marked
// affected, preserving order.
func filterAffected(names []string, affected map[string]bool) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if affected[n] {
			out = append(out, n)
		}
	}
	return out
}

func anyGlobMatches(patterns []string, changedFiles []string) (bool, error) {
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return false, err
		}
		// A leading "**/" also matches zero directories, so "**/*.go"
		// covers top-level files as well as nested ones.
		var top glob.Glob
		if rest := strings.TrimPrefix(p, "**/"); rest != p {
			if top, err = glob.Compile(rest, '/'); err != nil {
				return false, err
			}
		}
		for _, f := range changedFiles {
			if g.Match(f) || (top != nil && top.Match(f)) {
				return true, nil
			}
		}
	}
	return false, nil
}

type taskGraphNode struct{ t ir.Task }

func (n taskGraphNode) Name() string        { return n.t.ID }
func (n taskGraphNode) DependsOn() []string { return n.t.DependsOn }
