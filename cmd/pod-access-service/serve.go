package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/podworks/pod-access-service/internal/app"
	"github.com/podworks/pod-access-service/internal/config"
	"github.com/podworks/pod-access-service/internal/observability"
	"github.com/podworks/pod-access-service/internal/payments"
)

func newServeCommand() *cobra.Command {
	var sandboxEmail string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and background job runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}

			logger, loggerProvider, err := observability.InitLogger(ctx, cfg)
			if err != nil {
				return err
			}
			runtime, err := observability.InitRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			runtime.LoggerProvider = loggerProvider

			a, err := app.Build(ctx, app.BuildParams{
				Config:  cfg,
				Logger:  logger,
				Gateway: payments.NewSandboxGateway(logger, sandboxEmail),
				Runtime: runtime,
			})
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("http server listening", "addr", cfg.HTTPAddr)
				if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				logger.Info("shutting down")
				return a.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&sandboxEmail, "sandbox-email", "dev@localhost",
		"recipient for bookings made through the sandbox payment gateway")
	return cmd
}
