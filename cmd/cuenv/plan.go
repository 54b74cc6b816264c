package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/cache"
	"github.com/cuenv/cuenv/internal/executor"
)

func newPlanCmd(rootDir *string) *cobra.Command {
	var projectDir, pipelineName, changedFilesFlag, event string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the wave layout and predicted cache status for a project, without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext(*rootDir)
			if err != nil {
				return err
			}

			var changedFiles []string
			if changedFilesFlag != "" {
				changedFiles = strings.Split(changedFilesFlag, ",")
			}

			doc, err := app.compileProject(*rootDir, projectDir, pipelineName, changedFiles, event, false)
			if err != nil {
				return err
			}

			cacheStore, err := cache.New(app.cfg.CacheDir, nil, app.logger)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}

			e := &executor.Executor{Cache: cacheStore, WorkDir: projectDir, Logger: app.logger}
			planned, err := e.Plan(doc, doc.Pipeline.PipelineTasks)
			if err != nil {
				return fmt.Errorf("planning: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(planned)
		},
	}
	cmd.Flags().StringVar(&projectDir, "project", ".", "directory of the project to plan")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "default", "pipeline to plan")
	cmd.Flags().StringVar(&changedFilesFlag, "changed-files", "", "comma-separated list of changed file paths, for affected-task filtering")
	cmd.Flags().StringVar(&event, "event", "", "triggering CI event name, e.g. release")
	return cmd
}
