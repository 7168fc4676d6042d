package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/use-agent/promoscrape/cache"
	"github.com/use-agent/promoscrape/cleaner"
	"github.com/use-agent/promoscrape/extractor"
	"github.com/use-agent/promoscrape/metrics"
	"github.com/use-agent/promoscrape/models"
	"github.com/use-agent/promoscrape/simhash"
)

// State is a scrape session lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateNavigating
	StateExtracting
	StateClosing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateNavigating:
		return "navigating"
	case StateExtracting:
		return "extracting"
	case StateClosing:
		return "closing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Inferrer proposes field selectors for one chunk of a sanitized document.
type Inferrer interface {
	InferSelectors(ctx context.Context, chunk cleaner.Chunk) (models.FieldSelectors, error)
}

// Pipeline bundles what every session of a batch shares.
type Pipeline struct {
	Launcher       Launcher
	Inferrer       Inferrer
	Cache          *cache.SelectorCache // nil disables selector reuse
	MaxChunkLength int
}

// Outcome is the result of one session. On success Records holds the
// extracted promotions (possibly none) and Err is nil; on failure Err is set
// and Records is nil.
type Outcome struct {
	URL           string
	Success       bool
	Records       []models.Promotion
	Err           *models.ScrapeError
	SkippedChunks int
	CacheHit      bool
	Duration      time.Duration
}

// Session scrapes one URL. A Session is single-use and is not safe for
// concurrent use.
type Session struct {
	url      string
	pipeline Pipeline
	state    State
	history  []State
	log      *slog.Logger
}

// NewSession creates a session for pageURL in state Initializing.
func NewSession(pageURL string, p Pipeline) *Session {
	return &Session{
		url:      pageURL,
		pipeline: p,
		state:    StateInitializing,
		history:  []State{StateInitializing},
		log:      slog.With("url", pageURL),
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// History returns every state the session has been in, in order.
func (s *Session) History() []State { return append([]State(nil), s.history...) }

func (s *Session) transition(to State) {
	s.log.Debug("session state", "from", s.state.String(), "to", to.String())
	s.state = to
	s.history = append(s.history, to)
}

// Run drives the session to Done or Failed and always releases the page and
// the browser, including when a pipeline stage panics.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Deadline check       – a batch that already expired starts nothing
//  2. Launch               – one browser per session
//  3. DEFER: cleanup       – page then browser, errors logged only
//  4. Navigate + capture   – network idle, then the rendered HTML once
//  5. Sanitize             – strip markup noise before inference
//  6. Selector reuse       – cached selectors for an unchanged layout
//  7. Chunk + infer        – sequential, failed chunks are skipped
//  8. Combine + extract    – against the live DOM
func (s *Session) Run(ctx context.Context) (out Outcome) {
	start := time.Now()
	out.URL = s.url

	var (
		browser Browser
		page    Page
	)

	// ── 3. CRITICAL DEFER: release resources on every exit path ──────
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session panicked", "panic", r, "stack", string(debug.Stack()))
			out = s.failure(models.NewScrapeError(models.ErrCodeSession, fmt.Sprintf("panic: %v", r), nil), out)
		}

		s.transition(StateClosing)
		s.release(page, browser)

		out.Duration = time.Since(start)
		if out.Success {
			s.transition(StateDone)
			s.log.Info("session done",
				"records", len(out.Records),
				"skipped_chunks", out.SkippedChunks,
				"cache_hit", out.CacheHit,
				"elapsed", out.Duration,
			)
		} else {
			s.transition(StateFailed)
			s.log.Warn("session failed", "error", out.Err, "elapsed", out.Duration)
		}
		metrics.Sessions.WithLabelValues(s.state.String()).Inc()
	}()

	// ── 1. Deadline check ─────────────────────────────────────────────
	if err := ctx.Err(); err != nil {
		return s.failure(models.NewScrapeError(models.ErrCodeSession, "batch deadline exceeded before start", err), out)
	}

	// ── 2. Launch ─────────────────────────────────────────────────────
	var err error
	if browser, err = s.pipeline.Launcher.Launch(ctx); err != nil {
		return s.failure(asCode(err, models.ErrCodeBrowser, "failed to launch browser"), out)
	}
	if page, err = browser.NewPage(ctx); err != nil {
		return s.failure(asCode(err, models.ErrCodeBrowser, "failed to open page"), out)
	}

	// ── 4. Navigate + capture ─────────────────────────────────────────
	s.transition(StateNavigating)
	if err := page.Navigate(ctx, s.url); err != nil {
		return s.failure(asCode(err, models.ErrCodeBrowser, "navigation failed"), out)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return s.failure(asCode(err, models.ErrCodeBrowser, "failed to read page HTML"), out)
	}
	doc := RawDocument{URL: s.url, HTML: html}

	s.transition(StateExtracting)

	// ── 5. Sanitize ───────────────────────────────────────────────────
	sanitized := cleaner.Sanitize(doc.HTML)
	layout := simhash.Layout(sanitized)
	s.log.Debug("document sanitized", "raw_bytes", len(doc.HTML), "sanitized_bytes", len(sanitized))

	// ── 6. Selector reuse ─────────────────────────────────────────────
	selectors, hit := s.pipeline.Cache.Lookup(s.url, layout)
	out.CacheHit = hit

	// ── 7. Chunk + infer ──────────────────────────────────────────────
	if !hit {
		perChunk, skipped, ferr := s.inferChunks(ctx, sanitized)
		out.SkippedChunks = skipped
		if ferr != nil {
			return s.failure(ferr, out)
		}
		selectors = extractor.Combine(perChunk)
		for _, f := range models.AllFields {
			// The browser is the authority; this only flags likely misses.
			if sel := selectors.Get(f); sel != "" && !extractor.ValidSelector(sel) {
				s.log.Debug("selector not valid CSS", "field", string(f), "selector", sel)
			}
		}
		s.pipeline.Cache.Store(s.url, layout, selectors)
	}

	// ── 8. Extract ────────────────────────────────────────────────────
	records := extractor.Extract(ctx, page, selectors, s.url)
	if err := ctx.Err(); err != nil {
		return s.failure(models.NewScrapeError(models.ErrCodeSession, "batch deadline exceeded during extraction", err), out)
	}

	out.Success = true
	out.Records = records
	if out.Records == nil {
		out.Records = []models.Promotion{}
	}
	return out
}

// inferChunks runs inference over every chunk in order. A failing chunk is
// logged and skipped; a fatal inference error or an expired context aborts
// the session.
func (s *Session) inferChunks(ctx context.Context, sanitized string) ([]models.FieldSelectors, int, *models.ScrapeError) {
	chunks := cleaner.SplitChunks(sanitized, s.pipeline.MaxChunkLength)
	s.log.Debug("document chunked", "chunks", len(chunks))

	results := make([]models.FieldSelectors, 0, len(chunks))
	skipped := 0
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return results, skipped, models.NewScrapeError(models.ErrCodeSession, "batch deadline exceeded during inference", err)
		}

		s.log.Debug("inferring selectors",
			"chunk", chunk.Index,
			"bytes", len(chunk.Text),
			"est_tokens", cleaner.EstimateTokens(chunk.Text),
		)
		sel, err := s.pipeline.Inferrer.InferSelectors(ctx, chunk)
		if err != nil {
			if models.IsFatal(err) {
				return results, skipped, models.AsScrapeError(err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, skipped, models.NewScrapeError(models.ErrCodeSession, "batch deadline exceeded during inference", ctxErr)
			}
			skipped++
			metrics.SkippedChunks.Inc()
			s.log.Warn("chunk skipped", "chunk", chunk.Index, "error", err)
			continue
		}
		results = append(results, sel)
	}
	return results, skipped, nil
}

// failure finalises out as a failed outcome tagged with the session URL.
func (s *Session) failure(err *models.ScrapeError, out Outcome) Outcome {
	out.Success = false
	out.Records = nil
	out.Err = err.WithURL(s.url)
	return out
}

// release closes page and browser. Errors are logged and never change the
// outcome.
func (s *Session) release(page Page, browser Browser) {
	if page != nil {
		if err := page.Close(); err != nil {
			s.log.Warn("cleanup: failed to close page", "error", err)
		}
	}
	if browser != nil {
		if err := browser.Close(); err != nil {
			s.log.Warn("cleanup: failed to close browser", "error", err)
		}
	}
}

// asCode keeps ScrapeErrors as they are and wraps anything else in code.
func asCode(err error, code, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return models.NewScrapeError(code, msg, err)
}
