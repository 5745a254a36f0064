package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bmsrender/internal/dispatch"
	"bmsrender/internal/jobs"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var applyFlag bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import package URLs as pending render jobs",
		Long:  "Reads one URL per line and enqueues each as a pending job. Dry-run by default; pass --apply to write.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				summary, err := dispatch.Import(cmd.Context(), store, args[0], applyFlag, logger)
				if err != nil {
					return err
				}
				if summary.DryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d urls parsed; pass --apply to import\n", summary.Total)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "batch %s: %d added, %d already present\n",
					summary.Batch, summary.Added, summary.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&applyFlag, "apply", false, "Write the parsed URLs to the job store")
	return cmd
}
