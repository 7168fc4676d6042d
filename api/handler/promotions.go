package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/promoscrape/models"
	"github.com/use-agent/promoscrape/webhook"
)

// BatchRunner scrapes a batch of URLs.
type BatchRunner interface {
	Run(ctx context.Context, urls []string) (*models.BatchResult, error)
}

// InferenceStatus reports whether selector inference can run at all.
type InferenceStatus interface {
	Ready() bool
}

// PostPromotions returns a handler for POST /api/v1/promotions.
//
// Flow:
//  1. Bind and validate: 1 to 10 absolute URLs, else 400 with details.
//  2. Fail fast with 422 when no inference credential is configured.
//  3. Run the batch; per-URL failures end up in "errors" of a 200.
//  4. Notify webhook_url, if given, in the background.
func PostPromotions(runner BatchRunner, inference InferenceStatus, notifier *webhook.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.PromotionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   errValidation,
				Code:    models.ErrCodeValidation,
				Details: validationDetails(err),
			})
			return
		}

		// ── 2. Inference availability ───────────────────────────────
		if !inference.Ready() {
			err := models.NewScrapeError(models.ErrCodeSelectorGeneration,
				"inference service API key is not configured", nil)
			err.Fatal = true
			notify(notifier, req.WebhookURL, webhook.NewFailed(err.Code, err.Message))
			respondError(c, err)
			return
		}

		// ── 3. Run batch ────────────────────────────────────────────
		res, err := runner.Run(c.Request.Context(), req.URLs)
		if err != nil {
			se := models.AsScrapeError(err)
			slog.Error("promotions batch failed", "code", se.Code, "error", se)
			notify(notifier, req.WebhookURL, webhook.NewFailed(se.Code, se.Message))
			respondError(c, se)
			return
		}

		// ── 4. Respond + notify ─────────────────────────────────────
		notify(notifier, req.WebhookURL, webhook.NewCompleted(res))
		c.JSON(http.StatusOK, res)
	}
}

func notify(n *webhook.Notifier, url string, ev *webhook.Event) {
	if n == nil || url == "" {
		return
	}
	n.DeliverAsync(url, ev)
}
