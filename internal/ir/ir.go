package ir

import (
	"encoding/json"
	"fmt"
)

// Trigger describes what kind of event started the pipeline run (e.g. a push
// vs. a release). Compile does not set it, so it is nil in a compiled IR.
type Trigger struct {
	Event string `json:"event,omitempty"`
}

// Pipeline carries the top-level metadata for one compiled pipeline.
type Pipeline struct {
	Name                string   `json:"name"`
	Environment         string   `json:"environment,omitempty"`
	RequiresOnePassword bool     `json:"requires_onepassword,omitempty"`
	ProjectName         string   `json:"project_name,omitempty"`
	Trigger             *Trigger `json:"trigger,omitempty"`
	PipelineTasks       []string `json:"pipeline_tasks"`
}

// IR is the frozen, serializable compiled pipeline. It is built once per
// invocation and consumed read-only by emitters or the executor.
type IR struct {
	Version   string    `json:"version"`
	Pipeline  Pipeline  `json:"pipeline"`
	Runtimes  []Runtime `json:"runtimes,omitempty"`
	Tasks     []Task    `json:"tasks"`
}

// New returns an IR document stamped with the current schema version.
func New(pipeline Pipeline) *IR {
	return &IR{Version: Version, Pipeline: pipeline}
}

// TaskByID returns the task with the given id, or false if absent.
func (doc *IR) TaskByID(id string) (Task, bool) {
	for _, t := range doc.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// RuntimeByID returns the runtime with the given id, or false if absent.
func (doc *IR) RuntimeByID(id string) (Runtime, bool) {
	for _, r := range doc.Runtimes {
		if r.ID == id {
			return r, true
		}
	}
	return Runtime{}, false
}

// Validate checks the IR-level invariants: task ids are unique, every
// task.runtime references a known runtime, and every depends_on entry
// resolves to a task id present in the document. Cycle detection is the
// task graph's responsibility since it requires the full dependency
// structure, not just presence checks.
func (doc *IR) Validate() error {
	if doc.Version != Version {
		return fmt.Errorf("unsupported IR version %q, expected %q", doc.Version, Version)
	}

	seen := make(map[string]bool, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = true
	}

	runtimes := make(map[string]bool, len(doc.Runtimes))
	for _, r := range doc.Runtimes {
		runtimes[r.ID] = true
	}

	for _, t := range doc.Tasks {
		if t.Runtime != "" && !runtimes[t.Runtime] {
			return fmt.Errorf("task %q references unknown runtime %q", t.ID, t.Runtime)
		}
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("task %q depends on unresolved id %q", t.ID, dep)
			}
		}
		if t.Deployment && t.CachePolicy != CachePolicyDisabled {
			return fmt.Errorf("task %q is a deployment task but cache_policy is %q, must be disabled", t.ID, t.CachePolicy)
		}
	}

	return nil
}

// MarshalCanonicalJSON serializes the IR with sorted map keys and no
// indentation drift, so two compiler runs over identical inputs produce
// byte-identical output. encoding/json already sorts map keys when
// marshaling; the only extra requirement is a stable field order, which
// struct tag ordering guarantees.
func (doc *IR) MarshalCanonicalJSON() ([]byte, error) {
	return json.Marshal(doc)
}
