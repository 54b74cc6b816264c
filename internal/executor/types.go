// Package executor implements the IR task runner: wave-based
// concurrent execution over the compiled graph, runtime materialization,
// secret resolution, env composition, fingerprinting, cache-policy
// application, output capture with redaction, and retry. Waves come from
// graph.GetParallelGroups, and each wave's tasks run through an errgroup
// gated by a semaphore of size Concurrency, generalized to cuenv's flat IR
// tasks rather than a per-package-task shape.
package executor

import (
	"time"

	"github.com/cuenv/cuenv/internal/graph"
	"github.com/cuenv/cuenv/internal/ir"
)

// Status is a task's terminal (or awaiting) execution state.
type Status string

const (
	StatusPending          Status = "pending"
	StatusRunning          Status = "running"
	StatusSuccess          Status = "success"
	StatusCached           Status = "cached"
	StatusFailed           Status = "failed"
	StatusSkipped          Status = "skipped"
	StatusAwaitingApproval Status = "awaiting_approval"
)

// PipelineStatus is the overall run outcome.
type PipelineStatus string

const (
	PipelineSuccess PipelineStatus = "Success"
	PipelineFailed  PipelineStatus = "Failed"
	PipelinePartial PipelineStatus = "Partial"
	PipelinePending PipelineStatus = "Pending"
)

// TaskResult is one task's outcome, matching the pipeline report's task
// shape.
type TaskResult struct {
	Name         string      `json:"name"`
	Status       Status      `json:"status"`
	DurationMS   int64       `json:"duration_ms"`
	ExitCode     *int        `json:"exit_code,omitempty"`
	CacheKey     string      `json:"cache_key,omitempty"`
	InputsMatched []string   `json:"inputs_matched,omitempty"`
	Outputs      []string    `json:"outputs,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// Report is the full pipeline execution report.
type Report struct {
	Version     string                 `json:"version"`
	Project     string                 `json:"project"`
	Pipeline    string                 `json:"pipeline"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	DurationMS  int64                  `json:"duration_ms"`
	Status      PipelineStatus         `json:"status"`
	Tasks       []TaskResult           `json:"tasks"`
}

// taskNode adapts an ir.Task into graph.Node so the executor can reuse the
// generic DAG/wave machinery.
type taskNode struct {
	task ir.Task
}

func (n taskNode) Name() string        { return n.task.ID }
func (n taskNode) DependsOn() []string { return n.task.DependsOn }

// buildGraph constructs a graph.Graph over exactly the tasks named in
// taskIDs plus their transitive dependencies.
func buildGraph(doc *ir.IR, taskIDs []string) (*graph.Graph, error) {
	lookup := func(id string) (graph.Node, error) {
		t, ok := doc.TaskByID(id)
		if !ok {
			return nil, &graph.MissingDependencyError{Task: id, Dependency: id}
		}
		return taskNode{task: t}, nil
	}

	g := graph.New()
	for _, id := range taskIDs {
		sub, err := graph.BuildForTask(id, lookup)
		if err != nil {
			return nil, err
		}
		for _, name := range sub.Names() {
			node, err := lookup(name)
			if err != nil {
				return nil, err
			}
			g.AddTask(node)
		}
	}
	if err := g.AddDependencyEdges(); err != nil {
		return nil, err
	}
	return g, nil
}
