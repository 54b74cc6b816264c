package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/emit"
)

func newEmitCmd(rootDir *string) *cobra.Command {
	var projectDir, pipelineName, changedFilesFlag, event, format, out string

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Render a compiled project as a named CI provider's pipeline file",
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

			registry := emit.DefaultRegistry()
			e, err := registry.Get(format)
			if err != nil {
				return err
			}

			rendered, err := emit.EmitValidated(e, doc)
			if err != nil {
				return fmt.Errorf("emitting %s: %w", format, err)
			}

			if out == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), rendered)
				return err
			}
			return os.WriteFile(out, []byte(rendered), 0o664)
		},
	}
	cmd.Flags().StringVar(&projectDir, "project", ".", "directory of the project to emit")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "default", "pipeline to emit")
	cmd.Flags().StringVar(&changedFilesFlag, "changed-files", "", "comma-separated list of changed file paths, for affected-task filtering")
	cmd.Flags().StringVar(&event, "event", "", "triggering CI event name, e.g. release")
	cmd.Flags().StringVar(&format, "format", "", "target format name, e.g. github-actions, gitlab-ci, buildkite, terraform")
	cmd.Flags().StringVar(&out, "out", "", "output file path; prints to stdout when unset")
	cmd.MarkFlagRequired("format")
	return cmd
}
