package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/promoscrape/cache"
	"github.com/use-agent/promoscrape/config"
	"github.com/use-agent/promoscrape/llm"
	"github.com/use-agent/promoscrape/scraper"
)

var rootCmd = &cobra.Command{
	Use:   "promoscrape",
	Short: "promoscrape extracts promotions from retail pages with inferred CSS selectors.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(config.Load().Log)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// pipeline wires the shared pieces every batch uses: one process-wide
// inference limiter, the inference client, the browser launcher and the
// selector cache.
func pipeline(cfg *config.Config) (*llm.Client, scraper.Pipeline) {
	limiter := llm.NewLimiter(cfg.Inference.MaxRequestsPerMinute, cfg.Inference.RateLimitDelay)
	client := llm.NewClient(&http.Client{}, limiter, llm.Params{
		APIKey:  cfg.Inference.APIKey,
		Model:   cfg.Inference.Model,
		BaseURL: cfg.Inference.BaseURL,
		Timeout: cfg.Inference.RequestTimeout,
	})
	if !client.Ready() {
		slog.Warn("no inference API key configured, requests will fail with 422",
			"env", "PROMO_LLM_API_KEY or OPENAI_API_KEY")
	}

	return client, scraper.Pipeline{
		Launcher:       scraper.NewRodLauncher(cfg.Browser, cfg.Scraper),
		Inferrer:       client,
		Cache:          cache.New(cfg.Cache),
		MaxChunkLength: cfg.Scraper.MaxChunkLength,
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
