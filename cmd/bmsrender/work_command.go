package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"bmsrender/internal/dispatch"
	"bmsrender/internal/jobs"
	"bmsrender/internal/renderclient"
)

func newWorkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "work",
		Short: "Run one dispatch cycle over all pending jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			// Two overlapping cycles would race to attempt the same pending
			// records; the lock serializes cycles per work root.
			lock := flock.New(filepath.Join(cfg.WorkRoot, "dispatch.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire dispatch lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another dispatch cycle is already running")
			}
			defer func() { _ = lock.Unlock() }()

			return ctx.withStore(func(store *jobs.Store) error {
				caller := renderclient.New(cfg.RendererURL, time.Duration(cfg.Timeouts.Dispatch)*time.Second)
				dispatcher := dispatch.New(store, caller, cfg.MaxInFlight, logger)
				summary, err := dispatcher.RunCycle(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "attempted %d: %d succeeded, %d failed\n",
					summary.Attempted, summary.Succeeded, summary.Failed)
				return nil
			})
		},
	}
}
