// Package contributor implements the pre-compilation DAG transformer: declarative injection of tasks and rewriting of user tasks, gated by
// activation conditions, run to a fixed point before the compiler ever
// sees the task set.
//
// Bookkeeping reuses util.StringSet and the iterate-to-fixpoint shape the
// rest of this codebase favors for convergent passes. The engine does no
// validation of its own, so there are no errors for it to aggregate (see
// Engine.Run).
package contributor

import (
	"strings"

	"github.com/cuenv/cuenv/internal/util"
)

// When gates whether a contributor activates. All non-nil/non-empty fields
// are ANDed together.
type When struct {
	Always          *bool
	WorkspaceMember []string
	Command         []string
}

// AutoAssociate rewrites existing user tasks that invoke one of Command to
// additionally depend on InjectDependency.
type AutoAssociate struct {
	Command          []string
	InjectDependency string
}

// InjectedTask is a task template a contributor adds to the project when it
// activates. DependsOn entries that aren't already namespaced get the
// contributor's namespace prefix applied automatically.
type InjectedTask struct {
	Name      string
	Command   []string
	DependsOn []string
}

// Contributor declaratively injects tasks and/or associates existing tasks
// with a dependency, subject to When.
type Contributor struct {
	ID            string
	When          *When
	Tasks         []InjectedTask
	AutoAssociate *AutoAssociate
}

// UserTask is the minimal view of a project task the engine needs: enough
// to detect its base command and rewrite its dependency list.
type UserTask struct {
	Name      string
	Command   []string
	DependsOn []string
}

// BaseCommand returns the first whitespace-separated token of a task's
// command, the comparison key for Command predicates and auto-association.
func (t UserTask) BaseCommand() string {
	if len(t.Command) == 0 {
		return ""
	}
	fields := strings.Fields(t.Command[0])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ProjectState is the mutable set of tasks and detected workspace kinds the
// engine transforms in place.
type ProjectState struct {
	Tasks          map[string]*UserTask
	WorkspaceKinds util.StringSet
}

// NewProjectState builds an empty state ready for contributor passes.
func NewProjectState(workspaceKinds util.StringSet) *ProjectState {
	return &ProjectState{
		Tasks:          make(map[string]*UserTask),
		WorkspaceKinds: workspaceKinds,
	}
}
