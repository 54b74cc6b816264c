package graph

import "fmt"

// MissingDependencyError is returned by AddDependencyEdges when a declared
// dependency is neither a known task node nor a registered group prefix.
type MissingDependencyError struct {
	Task       string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on %q, which is not a known task or group", e.Task, e.Dependency)
}

// CycleDetectedError is returned by TopologicalSort (and anything that
// depends on it) when the graph contains a cycle.
type CycleDetectedError struct {
	Cycle []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %v", e.Cycle)
}
