package executor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuenv/cuenv/internal/cache"
	"github.com/cuenv/cuenv/internal/event"
	"github.com/cuenv/cuenv/internal/ir"
	"github.com/cuenv/cuenv/internal/lock"
	"github.com/cuenv/cuenv/internal/process"
	"github.com/cuenv/cuenv/internal/secret"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	dir := t.TempDir()

	c, err := cache.New(dir, cache.NewMetrics(prometheus.NewRegistry()), hclog.NewNullLogger())
	require.NoError(t, err)

	locks, err := lock.NewManager(dir)
	require.NoError(t, err)

	registry := secret.NewRegistry()
	registry.Register(secret.EnvResolver{})

	return &Executor{
		Cache:       c,
		Locks:       locks,
		Secrets:     registry,
		Bus:         event.New(event.NewMetrics(nil)),
		Processes:   process.NewManager(hclog.NewNullLogger(), time.Second),
		Concurrency: 2,
		WorkDir:     t.TempDir(),
	}
}

func buildDoc(tasks ...ir.Task) *ir.IR {
	doc := ir.New(ir.Pipeline{Name: "test", PipelineTasks: taskNames(tasks)})
	doc.Tasks = tasks
	return doc
}

func taskNames(tasks []ir.Task) []string {
	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = t.ID
	}
	return names
}

func TestExecuteRunsIndependentTasks(t *testing.T) {
	exec := newTestExecutor(t)
	doc := buildDoc(
		ir.Task{ID: "a", Command: []string{"echo", "a"}, CachePolicy: ir.CachePolicyNormal},
		ir.Task{ID: "b", Command: []string{"echo", "b"}, CachePolicy: ir.CachePolicyNormal},
	)

	report, err := exec.Execute(context.Background(), doc, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, PipelineSuccess, report.Status)
	assert.Len(t, report.Tasks, 2)
	for _, tr := range report.Tasks {
		assert.Equal(t, StatusSuccess, tr.Status)
	}
}

func TestExecuteSkipsDependentsOfFailedTask(t *testing.T) {
	exec := newTestExecutor(t)
	doc := buildDoc(
		ir.Task{ID: "build", Command: []string{"sh", "-c", "exit 1"}, CachePolicy: ir.CachePolicyDisabled},
		ir.Task{ID: "deploy", Command: []string{"echo", "deployed"}, CachePolicy: ir.CachePolicyDisabled, DependsOn: []string{"build"}},
	)

	report, err := exec.Execute(context.Background(), doc, []string{"build", "deploy"})
	require.NoError(t, err)
	assert.Equal(t, PipelineFailed, report.Status)

	byName := map[string]TaskResult{}
	for _, tr := range report.Tasks {
		byName[tr.Name] = tr
	}
	assert.Equal(t, StatusFailed, byName["build"].Status)
	assert.Equal(t, StatusSkipped, byName["deploy"].Status)
}

func TestExecuteSecondRunHitsCache(t *testing.T) {
	exec := newTestExecutor(t)
	doc := buildDoc(ir.Task{ID: "build", Command: []string{"echo", "built"}, CachePolicy: ir.CachePolicyNormal})

	r1, err := exec.Execute(context.Background(), doc, []string{"build"})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, r1.Tasks[0].Status)

	r2, err := exec.Execute(context.Background(), doc, []string{"build"})
	require.NoError(t, err)
	require.Equal(t, StatusCached, r2.Tasks[0].Status)
}

func TestExecuteMatrixAggregationWithNoCommandSucceeds(t *testing.T) {
	exec := newTestExecutor(t)
	doc := buildDoc(
		ir.Task{ID: "build[os=linux]", Command: []string{"echo", "linux"}, CachePolicy: ir.CachePolicyNormal},
		ir.Task{ID: "build[os=darwin]", Command: []string{"echo", "darwin"}, CachePolicy: ir.CachePolicyNormal},
		ir.Task{ID: "build", CachePolicy: ir.CachePolicyNormal, DependsOn: []string{"build[os=linux]", "build[os=darwin]"}},
	)

	report, err := exec.Execute(context.Background(), doc, []string{"build"})
	require.NoError(t, err)
	assert.Equal(t, PipelineSuccess, report.Status)

	byName := map[string]TaskResult{}
	for _, tr := range report.Tasks {
		byName[tr.Name] = tr
	}
	assert.Equal(t, StatusSuccess, byName["build"].Status)
}

func TestExecuteResolvesEnvSecrets(t *testing.T) {
	t.Setenv("CUENV_EXECUTOR_TEST_SECRET", "hunter2")
	exec := newTestExecutor(t)

	outFile := exec.WorkDir + "/out.txt"
	doc := buildDoc(ir.Task{
		ID:          "withsecret",
		Command:     []string{"sh", "-c", "echo $MY_SECRET > " + outFile},
		CachePolicy: ir.CachePolicyDisabled,
		Secrets: map[string]ir.Secret{
			"MY_SECRET": {ResolverID: "env", Source: "CUENV_EXECUTOR_TEST_SECRET"},
		},
	})

	report, err := exec.Execute(context.Background(), doc, []string{"withsecret"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Tasks[0].Status)

	content, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "hunter2")
}

func TestPlanDoesNotExecute(t *testing.T) {
	exec := newTestExecutor(t)
	doc := buildDoc(ir.Task{ID: "build", Command: []string{"touch", "should-not-exist"}, CachePolicy: ir.CachePolicyNormal})

	planned, err := exec.Plan(doc, []string{"build"})
	require.NoError(t, err)
	require.Len(t, planned, 1)
	assert.Equal(t, "build", planned[0].Name)
	assert.False(t, planned[0].WouldHit)

	_, statErr := os.Stat(exec.WorkDir + "/should-not-exist")
	assert.True(t, os.IsNotExist(statErr))
}
