package contributor

import (
	"sort"
	"strings"

	"github.com/cuenv/cuenv/internal/util"
)

// MaxIterations is the hard cap on fixed-point passes: if
// convergence hasn't happened by then, iteration stops and the state is
// returned as-is, without error.
const MaxIterations = 10

// Engine runs the contributor pass over a ProjectState.
type Engine struct {
	contributors []*Contributor
}

// NewEngine builds an engine from a contributor set. Contributors are
// applied in ID order on every pass, for deterministic output independent
// of registration order.
func NewEngine(contributors []*Contributor) *Engine {
	sorted := append([]*Contributor(nil), contributors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return &Engine{contributors: sorted}
}

// Run applies every contributor to the state until a fixed point (no
// injection and no association changes in a pass) or MaxIterations,
// whichever comes first. It returns the number of passes actually run.
// Dangling dependencies a contributor introduces are not this engine's to
// catch: they surface as MissingDependencyError once the compiler resolves
// the full task graph, so Run has no error of its own to report.
func (e *Engine) Run(state *ProjectState) (passes int, err error) {
	for passes = 0; passes < MaxIterations; passes++ {
		changed := false
		for _, c := range e.contributors {
			if !e.activates(c, state) {
				continue
			}
			if e.inject(c, state) {
				changed = true
			}
			if e.associate(c, state) {
				changed = true
			}
		}
		if !changed {
			passes++
			break
		}
	}

	return passes, nil
}

func (e *Engine) activates(c *Contributor, state *ProjectState) bool {
	if c.When == nil {
		return true
	}
	w := c.When

	if w.Always != nil && !*w.Always {
		return false
	}

	if len(w.WorkspaceMember) > 0 {
		if !e.anyWorkspaceMatch(w.WorkspaceMember, state.WorkspaceKinds) {
			return false
		}
	}

	if len(w.Command) > 0 {
		if !e.anyCommandInProject(w.Command, state) {
			return false
		}
	}

	return true
}

func (e *Engine) anyWorkspaceMatch(wanted []string, detected util.StringSet) bool {
	for _, w := range wanted {
		for d := range detected {
			if strings.EqualFold(w, d) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) anyCommandInProject(commands []string, state *ProjectState) bool {
	wanted := util.NewStringSet(commands...)
	for _, t := range state.Tasks {
		if wanted.Has(t.BaseCommand()) {
			return true
		}
	}
	return false
}

// inject adds the contributor's tasks to state.Tasks if not already
// present, namespacing ids "cuenv:contributor:{id}:{taskName}" and
// auto-prefixing any dependency that isn't already namespaced. Returns true
// if it changed the state.
func (e *Engine) inject(c *Contributor, state *ProjectState) bool {
	namespace := util.ContributorPrefix(c.ID)
	changed := false

	for _, tmpl := range c.Tasks {
		id := namespace + util.GroupDelimiter + tmpl.Name
		if _, exists := state.Tasks[id]; exists {
			continue
		}

		deps := make([]string, len(tmpl.DependsOn))
		for i, d := range tmpl.DependsOn {
			if strings.HasPrefix(d, namespace+util.GroupDelimiter) || strings.HasPrefix(d, "cuenv:contributor:") {
				deps[i] = d
			} else {
				deps[i] = namespace + util.GroupDelimiter + d
			}
		}

		state.Tasks[id] = &UserTask{
			Name:      id,
			Command:   tmpl.Command,
			DependsOn: deps,
		}
		changed = true
	}

	return changed
}

// associate appends InjectDependency to every user task whose base command
// matches one of AutoAssociate.Command and doesn't already depend on it.
func (e *Engine) associate(c *Contributor, state *ProjectState) bool {
	if c.AutoAssociate == nil {
		return false
	}
	wanted := util.NewStringSet(c.AutoAssociate.Command...)
	dep := c.AutoAssociate.InjectDependency
	changed := false

	names := make([]string, 0, len(state.Tasks))
	for n := range state.Tasks {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		t := state.Tasks[n]
		if !wanted.Has(t.BaseCommand()) {
			continue
		}
		if containsString(t.DependsOn, dep) {
			continue
		}
		t.DependsOn = append(t.DependsOn, dep)
		changed = true
	}

	return changed
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
