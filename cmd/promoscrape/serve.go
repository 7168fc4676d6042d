package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/promoscrape/api"
	"github.com/use-agent/promoscrape/config"
	"github.com/use-agent/promoscrape/scraper"
	"github.com/use-agent/promoscrape/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), config.Load())
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("promoscrape starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Batch.MaxConcurrentSessions,
		"inferencePerMinute", cfg.Inference.MaxRequestsPerMinute,
	)

	// ── 1. Shared pipeline ──────────────────────────────────────────
	client, p := pipeline(cfg)
	coord := scraper.NewCoordinator(p, cfg.Batch)
	go p.Cache.Janitor(ctx, 5*time.Minute)

	// ── 2. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(coord, client, webhook.NewNotifier(cfg.Webhook.Secret), cfg, startTime)

	// ── 3. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 4. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Batches can run for minutes; give them a bounded window to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("promoscrape stopped")
	return nil
}
