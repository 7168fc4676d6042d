package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/promoscrape/config"
	"github.com/use-agent/promoscrape/metrics"
	"github.com/use-agent/promoscrape/models"
)

// Coordinator runs one Session per URL of a batch with bounded concurrency.
// It is safe for concurrent use; concurrent batches share the limit only
// through the process-wide inference limiter, not through maxSessions.
type Coordinator struct {
	pipeline    Pipeline
	maxSessions int
	timeout     time.Duration
	active      atomic.Int32
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(p Pipeline, cfg config.BatchConfig) *Coordinator {
	maxSessions := cfg.MaxConcurrentSessions
	if maxSessions <= 0 {
		maxSessions = 1
	}
	return &Coordinator{
		pipeline:    p,
		maxSessions: maxSessions,
		timeout:     cfg.Timeout,
	}
}

// ActiveSessions returns the number of sessions currently running.
func (c *Coordinator) ActiveSessions() int { return int(c.active.Load()) }

// MaxSessions returns the per-batch concurrency limit.
func (c *Coordinator) MaxSessions() int { return c.maxSessions }

// Run scrapes every URL and aggregates the outcomes. Failed sessions become
// entries in Errors and never abort the batch. The whole batch is bounded by
// the configured timeout; sessions still running when it expires fail.
//
// The only error returned is a fatal SELECTOR_GENERATION_ERROR, when every
// session failed because inference could not run at all.
func (c *Coordinator) Run(ctx context.Context, urls []string) (*models.BatchResult, error) {
	start := time.Now()
	log := slog.With("batch", uuid.NewString())
	log.Info("batch started", "urls", len(urls), "max_sessions", c.maxSessions)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	outcomes := make([]Outcome, len(urls))
	var g errgroup.Group
	g.SetLimit(c.maxSessions)
	for i, u := range urls {
		g.Go(func() error {
			c.active.Add(1)
			defer c.active.Add(-1)
			outcomes[i] = NewSession(u, c.pipeline).Run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.BatchResult{Promotions: []models.Promotion{}}
	fatal := 0
	var firstFatal *models.ScrapeError
	for _, o := range outcomes {
		if o.Success {
			result.Promotions = append(result.Promotions, o.Records...)
			continue
		}
		result.Errors = append(result.Errors, o.Err.Error())
		if models.IsFatal(o.Err) {
			fatal++
			if firstFatal == nil {
				firstFatal = o.Err
			}
		}
	}

	elapsed := time.Since(start)
	result.ExecutionTimeMs = elapsed.Milliseconds()
	metrics.BatchDuration.Observe(elapsed.Seconds())

	if len(urls) > 0 && fatal == len(urls) {
		log.Error("batch failed, selector inference unavailable", "error", firstFatal)
		return nil, firstFatal
	}

	metrics.Promotions.Add(float64(len(result.Promotions)))
	log.Info("batch finished",
		"promotions", len(result.Promotions),
		"errors", len(result.Errors),
		"elapsed_ms", result.ExecutionTimeMs,
	)
	return result, nil
}
