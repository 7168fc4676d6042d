package models

// PromotionsRequest is the payload for POST /api/v1/promotions.
type PromotionsRequest struct {
	// URLs is the list of pages to extract promotions from. Required, 1..10.
	URLs []string `json:"urls" binding:"required,min=1,max=10,dive,url"`

	// WebhookURL, when set, receives a batch.completed event once the batch
	// has finished.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// MaxBatchURLs is the upper bound on URLs per request.
const MaxBatchURLs = 10
