package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/promoscrape/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// SessionStats exposes batch concurrency.
type SessionStats interface {
	ActiveSessions() int
	MaxSessions() int
}

// InferenceBudget exposes the inference client's state.
type InferenceBudget interface {
	InferenceStatus
	AvailableCalls() float64
}

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when inference is unavailable or when more than 80% of
// the session slots are busy.
func Health(sessions SessionStats, inference InferenceBudget, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, maxSessions := sessions.ActiveSessions(), sessions.MaxSessions()
		ready := inference.Ready()

		status := "healthy"
		if !ready || (maxSessions > 0 && active > int(float64(maxSessions)*0.8)) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			ActiveSessions: active,
			MaxSessions:    maxSessions,
			LimiterTokens:  inference.AvailableCalls(),
			InferenceReady: ready,
			Version:        Version,
		})
	}
}
