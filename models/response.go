package models

// BatchResult is the 200 response for POST /api/v1/promotions.
type BatchResult struct {
	// Promotions concatenates the records of every successful session, in
	// no particular cross-URL order.
	Promotions []Promotion `json:"promotions"`

	// Errors holds one message per failed session. Omitted when empty.
	Errors []string `json:"errors,omitempty"`

	// ExecutionTimeMs is the wall-clock duration of the whole batch.
	ExecutionTimeMs int64 `json:"executionTimeMs"`
}

// ErrorResponse is the body for every non-200 response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
	Code    string   `json:"code,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string  `json:"status"` // "healthy" or "degraded"
	Uptime         string  `json:"uptime"`
	ActiveSessions int     `json:"active_sessions"`
	MaxSessions    int     `json:"max_sessions"`
	LimiterTokens  float64 `json:"limiter_tokens"`
	InferenceReady bool    `json:"inference_ready"`
	Version        string  `json:"version"`
}
