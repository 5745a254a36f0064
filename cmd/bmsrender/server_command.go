package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bmsrender/internal/api"
	"bmsrender/internal/jobs"
	"bmsrender/internal/logging"
	"bmsrender/internal/render"
	"bmsrender/internal/runner"
	"bmsrender/internal/storage"
)

func newServerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Host the render service and reporting view",
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

			objects, err := storage.NewProvider(cfg)
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *jobs.Store) error {
				pipeline := render.New(cfg, runner.New(logger), logger)
				server := api.New(pipeline, objects, store, logger)

				httpServer := &http.Server{
					Addr:    cfg.Listen,
					Handler: server.Router(),
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				errCh := make(chan error, 1)
				go func() {
					logger.Info("render service listening",
						logging.String(logging.FieldComponent, "api"),
						logging.String("addr", cfg.Listen),
					)
					errCh <- httpServer.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-runCtx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					return httpServer.Shutdown(shutdownCtx)
				}
			})
		},
	}
}
