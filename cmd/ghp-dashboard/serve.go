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
	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/broadcast"
	"github.com/h0rv/ghp-dashboard/internal/config"
	"github.com/h0rv/ghp-dashboard/internal/logging"
	"github.com/h0rv/ghp-dashboard/internal/metrics"
	"github.com/h0rv/ghp-dashboard/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP dashboard, JSON API and webhook receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(configFlag)
			if err != nil {
				return err
			}
			if addr != "" {
				settings.Addr = addr
			}
			return serve(cmd.Context(), settings)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address. Overrides the configured addr.")
	return cmd
}

func serve(ctx context.Context, settings *config.Settings) error {
	logger, err := logging.New(settings.LogLevel, settings.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m := metrics.New()
	hub := broadcast.NewHub(
		broadcast.WithHeartbeat(settings.HeartbeatInterval),
		broadcast.WithLogger(logger),
		broadcast.WithMetrics(m),
	)

	srv, err := server.NewServer(newPipeline(settings, logger, m), hub, logger,
		server.WithMetrics(m),
		server.WithWebhookRateLimit(settings.WebhookRateLimit, settings.WebhookBurst),
		server.WithRefreshInterval(settings.RefreshInterval),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(settings.Addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
