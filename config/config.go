package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Inference InferenceConfig
	Batch     BatchConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the per-session Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL used by every session.
	Proxy string

	// LaunchTimeout bounds browser start-up and CDP connection.
	LaunchTimeout time.Duration // default: 30s

	// Stealth injects anti-bot-detection evasions before navigation.
	Stealth bool // default: false
}

// ScraperConfig controls navigation and chunking.
type ScraperConfig struct {
	// NavigationTimeout bounds navigation plus the network-idle wait.
	NavigationTimeout time.Duration // default: 30s

	// BlockedResourceTypes lists sub-resource types aborted during navigation.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// MaxChunkLength is the largest fragment sent to the inference service.
	MaxChunkLength int // default: 15000
}

// InferenceConfig controls the selector-inference service client.
type InferenceConfig struct {
	// APIKey is the credential for the OpenAI-compatible API. Required.
	APIKey string

	// Model is the chat model used for selector inference.
	Model string // default: "gpt-4o-mini"

	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// RequestTimeout bounds a single inference call.
	RequestTimeout time.Duration // default: 60s

	// MaxRequestsPerMinute is the process-wide inference call budget.
	MaxRequestsPerMinute int // default: 3

	// RateLimitDelay is the time it takes to earn back one call once the
	// budget is spent.
	RateLimitDelay time.Duration // default: 20s
}

// BatchConfig controls the batch coordinator.
type BatchConfig struct {
	// MaxConcurrentSessions caps the number of browsers running at once.
	MaxConcurrentSessions int // default: 10

	// Timeout is the overall deadline of one batch request.
	Timeout time.Duration // default: 5m
}

// CacheConfig controls the inferred-selector cache.
type CacheConfig struct {
	// TTL is how long inferred selectors stay reusable. 0 disables the cache.
	TTL time.Duration // default: 1h

	// MaxEntries is the maximum number of cached selector sets.
	MaxEntries int // default: 1000

	// MaxDistance is the largest SimHash distance between two page
	// structures that still counts as "same layout".
	MaxDistance int // default: 3
}

// WebhookConfig controls batch completion callbacks.
type WebhookConfig struct {
	// Secret signs webhook bodies with HMAC-SHA256 when set.
	Secret string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key request rate limiting on the API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PROMO_HOST", "0.0.0.0"),
			Port: envIntOr("PROMO_PORT", 8080),
			Mode: envOr("PROMO_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:      envBoolOr("PROMO_HEADLESS", true),
			NoSandbox:     envBoolOr("PROMO_NO_SANDBOX", true),
			BrowserBin:    os.Getenv("PROMO_BROWSER_BIN"),
			Proxy:         os.Getenv("PROMO_PROXY"),
			LaunchTimeout: envDurationOr("PROMO_LAUNCH_TIMEOUT", 30*time.Second),
			Stealth:       envBoolOr("PROMO_STEALTH", false),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("PROMO_NAV_TIMEOUT", 30*time.Second),
			BlockedResourceTypes: envSliceOr("PROMO_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			MaxChunkLength: envIntOr("PROMO_MAX_CHUNK_LENGTH", 15000),
		},
		Inference: InferenceConfig{
			APIKey:               envOr("PROMO_LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Model:                envOr("PROMO_LLM_MODEL", "gpt-4o-mini"),
			BaseURL:              envOr("PROMO_LLM_BASE_URL", "https://api.openai.com/v1"),
			RequestTimeout:       envDurationOr("PROMO_LLM_TIMEOUT", 60*time.Second),
			MaxRequestsPerMinute: envIntOr("PROMO_MAX_REQUESTS_PER_MINUTE", 3),
			RateLimitDelay:       envDurationOr("PROMO_RATE_LIMIT_DELAY", 20*time.Second),
		},
		Batch: BatchConfig{
			MaxConcurrentSessions: envIntOr("PROMO_MAX_SESSIONS", 10),
			Timeout:               envDurationOr("PROMO_BATCH_TIMEOUT", 5*time.Minute),
		},
		Cache: CacheConfig{
			TTL:         envDurationOr("PROMO_SELECTOR_CACHE_TTL", time.Hour),
			MaxEntries:  envIntOr("PROMO_SELECTOR_CACHE_MAX_ENTRIES", 1000),
			MaxDistance: envIntOr("PROMO_SELECTOR_CACHE_MAX_DISTANCE", 3),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("PROMO_WEBHOOK_SECRET"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PROMO_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PROMO_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PROMO_RATE_RPS", 1.0),
			Burst:             envIntOr("PROMO_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  envOr("PROMO_LOG_LEVEL", "info"),
			Format: envOr("PROMO_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
