package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/promoscrape/config"
	"github.com/use-agent/promoscrape/models"
)

const (
	clientIdleTTL      = time.Hour
	clientSweepEvery   = 5 * time.Minute
	rateLimitedMessage = "too many batch requests, please slow down"
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientBuckets holds one token bucket per caller. Idle buckets are swept
// lazily on access instead of by a background goroutine.
type clientBuckets struct {
	mu        sync.Mutex
	cfg       config.RateLimitConfig
	buckets   map[string]*clientBucket
	lastSweep time.Time
	now       func() time.Time
}

func newClientBuckets(cfg config.RateLimitConfig) *clientBuckets {
	return &clientBuckets{
		cfg:     cfg,
		buckets: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (b *clientBuckets) get(client string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) >= clientSweepEvery {
		b.sweepLocked(now)
	}

	bucket, ok := b.buckets[client]
	if !ok {
		bucket = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(b.cfg.RequestsPerSecond), b.cfg.Burst),
		}
		b.buckets[client] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter
}

func (b *clientBuckets) sweepLocked(now time.Time) {
	cutoff := now.Add(-clientIdleTTL)
	for client, bucket := range b.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(b.buckets, client)
		}
	}
	b.lastSweep = now
}

// RateLimit throttles batch submissions per caller. The caller is the API
// key set by Auth, or the client IP when auth is off. Rejected requests get
// 429 with a Retry-After header.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	buckets := newClientBuckets(cfg)

	return func(c *gin.Context) {
		client := c.ClientIP()
		if key, ok := c.Get(apiKeyContextKey); ok {
			client = key.(string)
		}

		limiter := buckets.get(client)
		if !limiter.Allow() {
			c.Header("Retry-After", strconv.Itoa(retryAfter(limiter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    models.ErrCodeRateLimited,
				Message: rateLimitedMessage,
			})
			return
		}
		c.Next()
	}
}

// retryAfter is the whole number of seconds until limiter grants a token.
func retryAfter(limiter *rate.Limiter) int {
	r := limiter.Reserve()
	defer r.Cancel()
	return max(1, int(math.Ceil(r.Delay().Seconds())))
}
