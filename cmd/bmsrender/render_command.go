package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"bmsrender/internal/render"
	"bmsrender/internal/runner"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var outFlag string

	cmd := &cobra.Command{
		Use:   "render <url>",
		Short: "Run one pipeline invocation locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			pipeline := render.New(cfg, runner.New(logger), logger)
			d := pipeline.Render(cmd.Context(), uuid.NewString(), args[0], outFlag, nil)

			payload, err := json.MarshalIndent(d, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			if d.Error != "" {
				return fmt.Errorf("render failed: %s", d.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFlag, "out", "o", "", "Move the encoded file to this path")
	return cmd
}
