package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/cuenv/cuenv/internal/cache"
	"github.com/cuenv/cuenv/internal/event"
	"github.com/cuenv/cuenv/internal/hashing"
	"github.com/cuenv/cuenv/internal/ir"
	"github.com/cuenv/cuenv/internal/lock"
	"github.com/cuenv/cuenv/internal/process"
	"github.com/cuenv/cuenv/internal/secret"
)

// Executor runs a compiled IR's tasks, coordinating the cache,
// concurrency-group locks, secret registry, and event bus. The walk is
// expressed directly as wave-by-wave fan-out since the task graph already
// materializes waves instead of handing the executor a raw graph to walk
// itself.
type Executor struct {
	Cache        *cache.Cache
	Locks        *lock.Manager
	Secrets      *secret.Registry
	Bus          *event.Bus
	Processes    *process.Manager
	Materializer RuntimeMaterializer
	Approvals    ApprovalGate

	Concurrency int
	FailFast    bool
	WorkDir     string
	ProcessEnv  []string
	Salt        []byte
	PrevSalt    []byte
	Logger      hclog.Logger

	materializer *cachingMaterializer
	once         sync.Once
}

func (e *Executor) init() {
	e.once.Do(func() {
		materializer := e.Materializer
		if materializer == nil {
			materializer = NoopMaterializer{}
		}
		e.materializer = newCachingMaterializer(materializer)
		if e.Approvals == nil {
			e.Approvals = AutoApprove{}
		}
		if e.Logger == nil {
			e.Logger = hclog.NewNullLogger()
		}
	})
}

// taskState tracks one task's mutable outcome across the run.
type taskState struct {
	mu     sync.Mutex
	status Status
	result TaskResult
}

// Execute runs every task in the transitive closure of taskIDs, wave by
// wave, and returns the pipeline report.
func (e *Executor) Execute(ctx context.Context, doc *ir.IR, taskIDs []string) (*Report, error) {
	e.init()

	g, err := buildGraph(doc, taskIDs)
	if err != nil {
		return nil, err
	}
	waves, err := g.GetParallelGroups()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	states := make(map[string]*taskState, len(g.Names()))
	for _, name := range g.Names() {
		states[name] = &taskState{status: StatusPending}
	}

	sem := make(chan struct{}, maxInt(e.Concurrency, 1))
	var failedAny bool
	var failedMu sync.Mutex

	for waveIdx, wave := range waves {
		failedMu.Lock()
		waveFailFast := e.FailFast && failedAny
		failedMu.Unlock()

		groupCorr := event.NewCorrelationID()
		e.publish(groupCorr, event.CategoryTask, "group-started", "", map[string]any{"wave": waveIdx, "tasks": wave})

		eg, egCtx := errgroup.WithContext(ctx)
		for _, name := range wave {
			name := name
			task, _ := doc.TaskByID(name)
			state := states[name]

			if waveFailFast || !dependenciesSatisfied(g, name, states) {
				state.mu.Lock()
				state.status = StatusSkipped
				state.result = TaskResult{Name: name, Status: StatusSkipped}
				state.mu.Unlock()
				continue
			}

			eg.Go(func() error {
				select {
				case sem <- struct{}{}:
				case <-egCtx.Done():
					return egCtx.Err()
				}
				defer func() { <-sem }()

				result := e.runTask(egCtx, doc, task)
				state.mu.Lock()
				state.status = result.Status
				state.result = result
				state.mu.Unlock()

				if result.Status == StatusFailed {
					failedMu.Lock()
					failedAny = true
					failedMu.Unlock()
				}
				return nil
			})
		}
		_ = eg.Wait()
		e.publish(groupCorr, event.CategoryTask, "group-completed", "", map[string]any{"wave": waveIdx, "tasks": wave})
	}

	completed := time.Now()
	report := &Report{
		Version:     ir.Version,
		Pipeline:    doc.Pipeline.Name,
		Project:     doc.Pipeline.ProjectName,
		StartedAt:   started,
		CompletedAt: completed,
		DurationMS:  completed.Sub(started).Milliseconds(),
	}

	var anySucceeded, anyFailed bool
	for _, name := range g.Names() {
		state := states[name]
		state.mu.Lock()
		report.Tasks = append(report.Tasks, state.result)
		switch state.status {
		case StatusSuccess, StatusCached:
			anySucceeded = true
		case StatusFailed:
			anyFailed = true
		}
		state.mu.Unlock()
	}

	switch {
	case anyFailed && anySucceeded:
		report.Status = PipelinePartial
	case anyFailed:
		report.Status = PipelineFailed
	default:
		report.Status = PipelineSuccess
	}

	return report, nil
}

func dependenciesSatisfied(g interface{ DependsOn(string) []string }, name string, states map[string]*taskState) bool {
	for _, dep := range g.DependsOn(name) {
		depState, ok := states[dep]
		if !ok {
			continue
		}
		depState.mu.Lock()
		status := depState.status
		depState.mu.Unlock()
		if status != StatusSuccess && status != StatusCached {
			return false
		}
	}
	return true
}

// runTask executes a single task end to end: runtime materialization,
// secret resolution, env composition, fingerprinting, cache lookup,
// execution (with retry), output capture, and cache write.
func (e *Executor) runTask(ctx context.Context, doc *ir.IR, task ir.Task) TaskResult {
	start := time.Now()
	corr := event.NewCorrelationID()
	e.publish(corr, event.CategoryTask, "started", task.ID, nil)

	if task.ManualApproval {
		e.publish(corr, event.CategoryTask, "awaiting_approval", task.ID, nil)
		e.publish(corr, event.CategoryInteractive, "prompt", task.ID, map[string]any{"message": "approval required"})
		err := e.Approvals.Await(ctx, task.ID)
		e.publish(corr, event.CategoryInteractive, "response", task.ID, map[string]any{"approved": err == nil})
		if err != nil {
			return e.failure(task.ID, start, err)
		}
	}

	var guard *lock.Guard
	if task.ConcurrencyGroup != "" {
		g, err := e.Locks.Acquire(task.ConcurrencyGroup, task.ID)
		if err != nil {
			return e.failure(task.ID, start, err)
		}
		guard = g
		defer guard.Release()
	}

	var runtimePtr *ir.Runtime
	if task.Runtime != "" {
		rt, ok := doc.RuntimeByID(task.Runtime)
		if !ok {
			return e.failure(task.ID, start, &UnknownRuntimeError{Task: task.ID, Runtime: task.Runtime})
		}
		dur, err := e.materializer.materializeOnce(ctx, rt)
		if err != nil {
			return e.failure(task.ID, start, err)
		}
		if e.Cache != nil {
			e.Cache.Metrics().RecordRuntimeMaterialization(rt.ID, dur)
		}
		runtimePtr = &rt
	}

	secrets, err := e.resolveSecrets(ctx, task)
	if err != nil {
		return e.failure(task.ID, start, err)
	}

	env := composeEnv(e.ProcessEnv, task.Env, secrets)

	inputHashes, err := hashing.HashInputs(e.WorkDir, task.Inputs)
	if err != nil {
		return e.failure(task.ID, start, err)
	}

	fpInputs := cache.FromTask(task, runtimePtr)
	fpInputs.InputFileHashes = inputHashes
	fpInputs.Env = env
	fingerprint := cache.Compute(fpInputs)

	if e.Cache != nil {
		lookup, err := e.Cache.Lookup(fingerprint, task.CachePolicy)
		if err == nil && lookup.Hit {
			e.publish(corr, event.CategoryTask, "cached", task.ID, nil)
			exitCode := lookup.Entry.ExitCode
			return TaskResult{
				Name:          task.ID,
				Status:        StatusCached,
				DurationMS:    time.Since(start).Milliseconds(),
				ExitCode:      &exitCode,
				CacheKey:      fingerprint,
				InputsMatched: hashing.SortedPaths(inputHashes),
			}
		}
	}

	e.publish(corr, event.CategoryCommand, "started", task.ID, map[string]any{"argv": task.Command})
	result, err := e.runWithRetry(ctx, task, env, corr)
	duration := time.Since(start)
	if err != nil {
		e.publish(corr, event.CategoryCommand, "completed", task.ID, map[string]any{"status": "failed"})
		e.publish(corr, event.CategoryTask, "completed", task.ID, map[string]any{"status": "failed"})
		return TaskResult{
			Name:       task.ID,
			Status:     StatusFailed,
			DurationMS: duration.Milliseconds(),
			CacheKey:   fingerprint,
			Error:      err.Error(),
		}
	}

	e.publish(corr, event.CategoryCommand, "completed", task.ID, map[string]any{"exit_code": result.ExitCode})
	e.publish(corr, event.CategoryOutput, "stdout", task.ID, map[string]any{"text": result.Stdout})
	e.publish(corr, event.CategoryOutput, "stderr", task.ID, map[string]any{"text": result.Stderr})

	outputPaths, err := e.storeOutputs(task)
	if err != nil {
		return e.failure(task.ID, start, err)
	}

	if e.Cache != nil {
		entry := &cache.Entry{
			Fingerprint: fingerprint,
			ExitCode:    result.ExitCode,
			Stdout:      result.Stdout,
			Stderr:      result.Stderr,
			StoredAt:    time.Now(),
		}
		_ = e.Cache.Store(task.CachePolicy, entry)
	}

	e.publish(corr, event.CategoryTask, "completed", task.ID, map[string]any{"status": "success"})

	exitCode := result.ExitCode
	return TaskResult{
		Name:          task.ID,
		Status:        StatusSuccess,
		DurationMS:    duration.Milliseconds(),
		ExitCode:      &exitCode,
		CacheKey:      fingerprint,
		InputsMatched: hashing.SortedPaths(inputHashes),
		Outputs:       outputPaths,
	}
}

// runWithRetry executes task.Command once, retrying up to task.Retry's
// MaxAttempts with exponential backoff on failure, via
// github.com/cenkalti/backoff/v4.
func (e *Executor) runWithRetry(ctx context.Context, task ir.Task, env map[string]string, corr string) (process.Result, error) {
	if len(task.Command) == 0 {
		// A matrix aggregation task has no command of its own: it exists
		// only to gather its expansions' dependency edges, so it
		// succeeds the moment its dependencies have.
		return process.Result{ExitCode: 0}, nil
	}

	argv := task.Command
	if task.Shell {
		argv = []string{"/bin/sh", "-c", joinCommand(task.Command)}
	}

	maxAttempts := 1
	var bo backoff.BackOff = &backoff.StopBackOff{}
	if task.Retry != nil && task.Retry.MaxAttempts > 1 {
		maxAttempts = task.Retry.MaxAttempts
		eb := backoff.NewExponentialBackOff()
		if task.Retry.InitialInterval > 0 {
			eb.InitialInterval = time.Duration(task.Retry.InitialInterval * float64(time.Second))
		}
		bo = eb
	}

	runCtx := ctx
	if task.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	var lastResult process.Result
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			e.publish(corr, event.CategoryCommand, "progress", task.ID, map[string]any{"attempt": attempt + 1, "max_attempts": maxAttempts})
		}
		lastResult, lastErr = e.Processes.Run(runCtx, argv, e.WorkDir, envSlice(env))
		if lastErr == nil {
			return lastResult, nil
		}
		if attempt < maxAttempts-1 {
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				break
			}
			select {
			case <-time.After(wait):
			case <-runCtx.Done():
				return lastResult, runCtx.Err()
			}
		}
	}
	return lastResult, lastErr
}

func joinCommand(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

// resolveSecrets resolves every secret the task declares through the
// registry, registering each plaintext with the redaction registry before
// returning.
func (e *Executor) resolveSecrets(ctx context.Context, task ir.Task) (map[string]string, error) {
	if len(task.Secrets) == 0 {
		return nil, nil
	}
	reqs := make([]secret.Request, 0, len(task.Secrets))
	for field, spec := range task.Secrets {
		reqs = append(reqs, secret.Request{
			FieldName: field,
			Spec: secret.Spec{
				ResolverID: spec.ResolverID,
				Source:     spec.Source,
				Extra:      spec.Extra,
			},
		})
	}

	batch := secret.NewBatch(e.Secrets)
	results, err := batch.Resolve(ctx, reqs)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(results))
	for _, r := range results {
		out[r.FieldName] = r.Value
	}
	return out, nil
}

// storeOutputs reads every declared output path relative to WorkDir and,
// for CAS outputs, stores its content in the cache.
func (e *Executor) storeOutputs(task ir.Task) ([]string, error) {
	paths := make([]string, 0, len(task.Outputs))
	for _, o := range task.Outputs {
		paths = append(paths, o.Path)
		if o.Type != ir.OutputTypeCAS || e.Cache == nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(e.WorkDir, o.Path))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if _, err := e.Cache.PutBlob(content); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func (e *Executor) publish(correlationID string, category event.Category, variant, taskID string, fields map[string]any) {
	if e.Bus == nil {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["task_id"] = taskID
	e.Bus.Publish(event.Event{
		CorrelationID: correlationID,
		Source:        "executor",
		Timestamp:     time.Now(),
		Category:      category,
		Variant:       variant,
		Fields:        fields,
	})
}

func (e *Executor) failure(taskID string, start time.Time, err error) TaskResult {
	return TaskResult{
		Name:       taskID,
		Status:     StatusFailed,
		DurationMS: time.Since(start).Milliseconds(),
		Error:      err.Error(),
	}
}

// UnknownRuntimeError reports a task referencing a runtime id absent from
// the IR's Runtimes list; IR.Validate should already reject this earlier,
// so seeing it at execution time means the IR was built or mutated
// out-of-band.
type UnknownRuntimeError struct {
	Task    string
	Runtime string
}

func (e *UnknownRuntimeError) Error() string {
	return "task " + e.Task + ": unknown runtime " + e.Runtime
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
