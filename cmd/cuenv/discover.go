package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuenv/cuenv/internal/discovery"
)

func newDiscoverCmd(rootDir *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List every evaluable project found under --root",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext(*rootDir)
			if err != nil {
				return err
			}

			roots, err := discovery.Discover(app.logger, *rootDir)
			if err != nil {
				return fmt.Errorf("discovering projects: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(roots)
			}

			for _, r := range roots {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tmodule=%s\tkinds=%v\n", r.Dir, r.ModuleRoot, r.WorkspaceKinds.Sorted())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as a JSON array")
	return cmd
}
