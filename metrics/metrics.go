// Package metrics holds the Prometheus collectors for the scrape pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sessions counts finished scrape sessions by outcome ("done", "failed").
	Sessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promoscrape",
		Name:      "sessions_total",
		Help:      "Scrape sessions by terminal state.",
	}, []string{"state"})

	// SkippedChunks counts chunks that contributed no selectors.
	SkippedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "promoscrape",
		Name:      "skipped_chunks_total",
		Help:      "Chunks whose selector inference failed and were skipped.",
	})

	// InferenceCalls counts inference requests by result ("ok", "error", "fatal").
	InferenceCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promoscrape",
		Name:      "inference_calls_total",
		Help:      "Selector inference calls by result.",
	}, []string{"result"})

	// LimiterWaits counts calls that had to wait for inference budget.
	LimiterWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "promoscrape",
		Name:      "limiter_waits_total",
		Help:      "Inference calls delayed by the process-wide rate limiter.",
	})

	// SelectorCache counts selector cache lookups by result ("hit", "miss").
	SelectorCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promoscrape",
		Name:      "selector_cache_lookups_total",
		Help:      "Inferred-selector cache lookups.",
	}, []string{"result"})

	// Promotions counts extracted promotion records.
	Promotions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "promoscrape",
		Name:      "promotions_extracted_total",
		Help:      "Promotion records returned to callers.",
	})

	// BatchDuration observes batch wall-clock time in seconds.
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "promoscrape",
		Name:      "batch_duration_seconds",
		Help:      "Wall-clock duration of promotion batches.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	})
)
