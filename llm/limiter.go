package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/promoscrape/metrics"
)

// Limiter is the process-wide inference call budget. One instance is shared
// by every scrape session, so concurrent sessions cannot collectively exceed
// the configured rate. It is safe for concurrent use.
//
// It is a token bucket holding perMinute calls that earns one call back
// every delay: with the defaults (3, 20s) three calls go out immediately and
// the fourth waits 20s.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter creates a Limiter. A non-positive delay spreads perMinute calls
// evenly over a minute.
func NewLimiter(perMinute int, delay time.Duration) *Limiter {
	if perMinute <= 0 {
		perMinute = 3
	}
	if delay <= 0 {
		delay = time.Minute / time.Duration(perMinute)
	}
	return &Limiter{lim: rate.NewLimiter(rate.Every(delay), perMinute)}
}

// Wait blocks until the caller may issue one inference call or ctx is done.
// A cancelled wait returns its reservation to the bucket.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.lim.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate limiter: reservation exceeds burst")
	}

	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	metrics.LimiterWaits.Inc()
	slog.Info("inference budget exhausted, waiting", "delay", delay.Round(time.Millisecond))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Tokens reports the calls currently available without waiting.
func (l *Limiter) Tokens() float64 {
	return l.lim.Tokens()
}
