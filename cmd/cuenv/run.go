package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/cache"
	"github.com/cuenv/cuenv/internal/event"
	"github.com/cuenv/cuenv/internal/executor"
	"github.com/cuenv/cuenv/internal/lock"
	"github.com/cuenv/cuenv/internal/process"
	"github.com/cuenv/cuenv/internal/provider"
)

func newRunCmd(rootDir *string) *cobra.Command {
	var projectDir, pipelineName, changedFilesFlag, eventName string
	var failFast bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a project's pipeline tasks and write the run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext(*rootDir)
			if err != nil {
				return err
			}

			bus := event.New(nil)
			cmdCorr := event.NewCorrelationID()
			bus.Publish(event.Event{
				CorrelationID: cmdCorr, Source: "cuenv-run", Timestamp: time.Now(),
				Category: event.CategoryCommand, Variant: "started",
				Fields: map[string]any{"pipeline": pipelineName, "project": projectDir},
			})

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			watchSignals(func() {
				bus.Publish(event.Event{
					CorrelationID: cmdCorr, Source: "cuenv-run", Timestamp: time.Now(),
					Category: event.CategorySystem, Variant: "shutdown",
					Fields: map[string]any{"reason": "signal received"},
				})
				cancel()
			})

			var changedFiles []string
			if changedFilesFlag != "" {
				changedFiles = strings.Split(changedFilesFlag, ",")
			}

			ciProvider, hasProvider := provider.Detect(app.logger)
			forkPR := false
			headSHA := "local"
			if hasProvider {
				ciCtx, err := ciProvider.Context(runCtx)
				if err != nil {
					app.logger.Warn("could not read CI context", "error", err)
				} else {
					bus.Publish(event.Event{
						CorrelationID: cmdCorr, Source: "cuenv-run", Timestamp: time.Now(),
						Category: event.CategoryCi, Variant: "context-detected",
						Fields: map[string]any{"event": ciCtx.Event, "is_fork_pr": ciCtx.IsForkPR},
					})
					forkPR = ciCtx.IsForkPR
					if ciCtx.HeadSHA != "" {
						headSHA = ciCtx.HeadSHA
					}
					if len(changedFiles) == 0 {
						if files, err := ciProvider.ChangedFiles(runCtx); err == nil {
							changedFiles = files
						}
					}
					if eventName == "" {
						eventName = ciCtx.Event
					}
					bus.Publish(event.Event{
						CorrelationID: cmdCorr, Source: "cuenv-run", Timestamp: time.Now(),
						Category: event.CategoryCi, Variant: "changed-files",
						Fields: map[string]any{"count": len(changedFiles), "files": changedFiles},
					})
				}
			}

			doc, err := app.compileProject(*rootDir, projectDir, pipelineName, changedFiles, eventName, forkPR)
			if err != nil {
				return err
			}

			if concurrency <= 0 {
				concurrency = app.cfg.Concurrency
			}

			cacheStore, err := cache.New(app.cfg.CacheDir, nil, app.logger)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			locks, err := lock.NewManager(app.cfg.LockDir,
				lock.WithStaleThreshold(app.cfg.StaleLockThreshold),
				lock.WithAcquireTimeout(app.cfg.AcquireTimeout),
			)
			if err != nil {
				return fmt.Errorf("opening lock manager: %w", err)
			}

			var handle provider.CheckHandle
			if hasProvider {
				handle, err = ciProvider.CreateCheck(runCtx, fmt.Sprintf("cuenv / %s", pipelineName))
				if err != nil {
					app.logger.Warn("could not create CI check", "error", err)
					hasProvider = false
				}
			}

			if hasProvider {
				// Mirror the task lifecycle onto the CI category and the
				// provider's check run, so a check viewer sees progress
				// without polling the report file.
				bus.Subscribe(func(e event.Event) {
					if e.Category != event.CategoryTask {
						return
					}
					taskID, _ := e.Fields["task_id"].(string)
					switch e.Variant {
					case "started":
						bus.Publish(event.Event{
							CorrelationID: e.CorrelationID, Source: "cuenv-run", Timestamp: time.Now(),
							Category: event.CategoryCi, Variant: "task-executing",
							Fields: map[string]any{"task_id": taskID},
						})
						_ = ciProvider.UpdateCheck(runCtx, handle, fmt.Sprintf("running %s", taskID))
					case "completed":
						status, _ := e.Fields["status"].(string)
						bus.Publish(event.Event{
							CorrelationID: e.CorrelationID, Source: "cuenv-run", Timestamp: time.Now(),
							Category: event.CategoryCi, Variant: "task-result",
							Fields: map[string]any{"task_id": taskID, "status": status},
						})
						_ = ciProvider.UpdateCheck(runCtx, handle, fmt.Sprintf("%s: %s", taskID, status))
					}
				})
			}

			exec := &executor.Executor{
				Cache:       cacheStore,
				Locks:       locks,
				Secrets:     app.secrets,
				Bus:         bus,
				Processes:   process.NewManager(app.logger, 10*time.Second),
				Concurrency: concurrency,
				FailFast:    failFast,
				WorkDir:     projectDir,
				ProcessEnv:  os.Environ(),
				Salt:        []byte(app.cfg.SecretSalt),
				PrevSalt:    []byte(app.cfg.SecretSaltPrev),
				Logger:      app.logger,
			}

			report, execErr := exec.Execute(runCtx, doc, doc.Pipeline.PipelineTasks)
			if execErr != nil {
				return fmt.Errorf("executing: %w", execErr)
			}

			if hasProvider {
				if err := ciProvider.CompleteCheck(runCtx, handle, report); err != nil {
					app.logger.Warn("could not complete CI check", "error", err)
				}
			}

			if err := writeReport(app.cfg.ReportDir, headSHA, projectDir, report); err != nil {
				app.logger.Warn("could not persist run report", "error", err)
			} else if hasProvider {
				bus.Publish(event.Event{
					CorrelationID: cmdCorr, Source: "cuenv-run", Timestamp: time.Now(),
					Category: event.CategoryCi, Variant: "report-generated",
					Fields: map[string]any{"head_sha": headSHA, "status": string(report.Status)},
				})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}

			bus.Publish(event.Event{
				CorrelationID: cmdCorr, Source: "cuenv-run", Timestamp: time.Now(),
				Category: event.CategoryCommand, Variant: "completed",
				Fields: map[string]any{"status": string(report.Status)},
			})

			if report.Status == executor.PipelineFailed {
				return &exitCodeError{ExitCode: 1}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&projectDir, "project", ".", "directory of the project to run")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "default", "pipeline to run")
	cmd.Flags().StringVar(&changedFilesFlag, "changed-files", "", "comma-separated list of changed file paths; overrides CI-provider detection")
	cmd.Flags().StringVar(&eventName, "event", "", "triggering event name; overrides CI-provider detection")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop launching new waves once any task has failed")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max tasks running at once (0 uses the resolved config default)")
	return cmd
}

// writeReport stores a run's report at reportDir/<headSHA>/<slug>.json,
// where slug replaces projectDir's path separators with "-" so every
// project gets a distinct, flat filename. The write goes through a temp
// file and rename so a process killed mid-write never leaves a
// half-written report at the final path.
func writeReport(reportDir, headSHA, projectDir string, report *executor.Report) error {
	dir := filepath.Join(reportDir, headSHA)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return err
	}
	slug := strings.ReplaceAll(filepath.ToSlash(projectDir), "/", "-")
	path := filepath.Join(dir, slug+".json")

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, slug+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

