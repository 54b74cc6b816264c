// Package graph implements the generic task DAG: group expansion,
// cycle detection, and parallel-wave layering over nodes that expose
// dependencies by name. Vertices are cuenv's flat task ids with
// group-prefix expansion rather than a package-graph shape.
//
// ToDAG renders a built Graph as a github.com/pyr-sh/dag AcyclicGraph. The
// executor does not use it: it schedules from GetParallelGroups.
package graph

import (
	"sort"

	"github.com/pyr-sh/dag"
	"github.com/cuenv/cuenv/internal/util"
)

// Node is anything the graph can schedule: a name and its raw declared
// dependency names (which may be task ids or group prefixes, pre-expansion).
type Node interface {
	Name() string
	DependsOn() []string
}

// Graph is a generic DAG builder over Node-shaped data.
type Graph struct {
	nodes     map[string]Node
	groups    map[string][]string // prefix -> direct children (may nest)
	edges     map[string]util.StringSet // task -> its (expanded) dependencies
	dependents map[string]util.StringSet // task -> tasks that depend on it
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]Node),
		groups:     make(map[string][]string),
		edges:      make(map[string]util.StringSet),
		dependents: make(map[string]util.StringSet),
	}
}

// AddTask registers a node. Idempotent on name: re-adding the same name is
// a no-op rather than an error.
func (g *Graph) AddTask(n Node) {
	if _, ok := g.nodes[n.Name()]; ok {
		return
	}
	g.nodes[n.Name()] = n
	g.edges[n.Name()] = util.NewStringSet()
}

// RegisterGroup records that prefix expands to the given children. Groups
// may be registered before or after their children are added as tasks.
func (g *Graph) RegisterGroup(prefix string, children []string) {
	g.groups[prefix] = append([]string(nil), children...)
}

// expandName recursively expands a dependency name: if it names a
// registered group, returns every leaf task transitively under that group;
// if it names a known task, returns just that task; otherwise returns
// (nil, false) so the caller can report MissingDependencyError.
func (g *Graph) expandName(name string, seenGroups util.StringSet) ([]string, bool) {
	if children, ok := g.groups[name]; ok {
		if seenGroups.Has(name) {
			// Group cycle in the declaration itself: the repeated group
			// adds no further leaves, which stops the recursion. No edge
			// is created for it, so HasCycles/TopologicalSort do not
			// report it.
			return nil, true
		}
		seenGroups = seenGroups.Copy()
		seenGroups.Add(name)

		leaves := make([]string, 0, len(children))
		for _, c := range children {
			expanded, ok := g.expandName(c, seenGroups)
			if !ok {
				return nil, false
			}
			leaves = append(leaves, expanded...)
		}
		return leaves, true
	}
	if _, ok := g.nodes[name]; ok {
		return []string{name}, true
	}
	return nil, false
}

// AddDependencyEdges expands every node's declared dependencies (resolving
// group prefixes to their leaf tasks) and inserts the resulting edges. Must
// be called once after all tasks and groups have been registered.
func (g *Graph) AddDependencyEdges() error {
	for name, node := range g.nodes {
		for _, dep := range node.DependsOn() {
			leaves, ok := g.expandName(dep, util.NewStringSet())
			if !ok {
				return &MissingDependencyError{Task: name, Dependency: dep}
			}
			for _, leaf := range leaves {
				g.connect(name, leaf)
			}
		}
	}
	return nil
}

func (g *Graph) connect(dependent, dependency string) {
	if g.edges[dependent] == nil {
		g.edges[dependent] = util.NewStringSet()
	}
	g.edges[dependent].Add(dependency)

	if g.dependents[dependency] == nil {
		g.dependents[dependency] = util.NewStringSet()
	}
	g.dependents[dependency].Add(dependent)
}

// HasCycles reports whether the graph contains a dependency cycle, via DFS
// with a recursion-stack coloring (white/gray/black).
func (g *Graph) HasCycles() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var visit func(string) bool
	visit = func(n string) bool {
		color[n] = gray
		for dep := range g.edges[n] {
			switch color[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}

	names := g.sortedNames()
	for _, n := range names {
		if color[n] == white {
			if visit(n) {
				return true
			}
		}
	}
	return false
}

func (g *Graph) sortedNames() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TopologicalSort returns task names ordered so every dependency precedes
// its dependents, or CycleDetectedError if the graph is cyclic.
func (g *Graph) TopologicalSort() ([]string, error) {
	waves, err := g.GetParallelGroups()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(g.nodes))
	for _, wave := range waves {
		out = append(out, wave...)
	}
	return out, nil
}

// GetParallelGroups computes level assignments:
// level(v) = 1 + max(level(u) for u in deps(v)), with level 1 for tasks that
// have no dependencies. The result is a sequence of waves; tasks within a
// wave are mutually independent and ordered lexicographically by id for
// deterministic scheduling.
func (g *Graph) GetParallelGroups() ([][]string, error) {
	if g.HasCycles() {
		return nil, &CycleDetectedError{Cycle: g.sortedNames()}
	}

	level := make(map[string]int, len(g.nodes))
	names := g.sortedNames()

	var resolve func(string) int
	resolve = func(n string) int {
		if lv, ok := level[n]; ok {
			return lv
		}
		max := 0
		for dep := range g.edges[n] {
			max = maxInt(max, resolve(dep))
		}
		lv := max + 1
		level[n] = lv
		return lv
	}

	maxLevel := 0
	for _, n := range names {
		lv := resolve(n)
		if lv > maxLevel {
			maxLevel = lv
		}
	}

	waves := make([][]string, maxLevel)
	for _, n := range names {
		idx := level[n] - 1
		waves[idx] = append(waves[idx], n)
	}
	for i := range waves {
		sort.Strings(waves[i])
	}
	return waves, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// BuildForTask builds a new Graph containing only the transitive closure of
// one task: a BFS over dependencies collecting nodes (via lookup, which
// returns a node's raw declared dependency names), followed by a single
// AddDependencyEdges call.
func BuildForTask(name string, lookup func(string) (Node, error)) (*Graph, error) {
	g := New()
	queue := []string{name}
	visited := util.NewStringSet()

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if visited.Has(n) {
			continue
		}
		visited.Add(n)

		node, err := lookup(n)
		if err != nil {
			return nil, err
		}
		g.AddTask(node)
		for _, dep := range node.DependsOn() {
			if !visited.Has(dep) {
				queue = append(queue, dep)
			}
		}
	}

	if err := g.AddDependencyEdges(); err != nil {
		return nil, err
	}
	return g, nil
}

// ToDAG renders the graph into a github.com/pyr-sh/dag AcyclicGraph.
// Edges are connected dependent -> dependency, via
// dag.BasicEdge(toTaskID, fromTaskID), so a Walk visits a vertex only
// after all of its DownEdges have completed.
func (g *Graph) ToDAG() *dag.AcyclicGraph {
	d := &dag.AcyclicGraph{}
	for _, n := range g.sortedNames() {
		d.Add(n)
	}
	for _, n := range g.sortedNames() {
		for _, dep := range g.edges[n].Sorted() {
			d.Add(dep)
			d.Connect(dag.BasicEdge(n, dep))
		}
	}
	return d
}

// DependsOn returns the expanded (post-AddDependencyEdges) dependency set
// for a task, sorted.
func (g *Graph) DependsOn(name string) []string {
	return g.edges[name].Sorted()
}

// Dependents returns the tasks that depend on name, sorted.
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name].Sorted()
}

// Names returns every registered task name, sorted.
func (g *Graph) Names() []string {
	return g.sortedNames()
}
