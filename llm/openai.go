package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/use-agent/promoscrape/cleaner"
	"github.com/use-agent/promoscrape/metrics"
	"github.com/use-agent/promoscrape/models"
)

// Client is a lightweight OpenAI-compatible API client for selector inference.
// It speaks the chat completions wire format over net/http.
type Client struct {
	httpClient *http.Client
	limiter    *Limiter
	params     Params
}

// Params holds the inference service configuration.
type Params struct {
	APIKey  string
	Model   string
	BaseURL string // e.g. "https://api.openai.com/v1"

	// Timeout bounds one call, including the response body read.
	Timeout time.Duration
}

// NewClient creates a new inference client. Every call first waits on
// limiter, which must be shared by all callers in the process.
// Pass a nil httpClient to use a default one.
func NewClient(httpClient *http.Client, limiter *Limiter, params Params) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if params.Timeout <= 0 {
		params.Timeout = 60 * time.Second
	}
	return &Client{httpClient: httpClient, limiter: limiter, params: params}
}

// Ready reports whether the client has the credential it needs.
func (c *Client) Ready() bool {
	return c.params.APIKey != ""
}

// AvailableCalls returns how many inference calls could start right now
// without waiting.
func (c *Client) AvailableCalls() float64 {
	return c.limiter.Tokens()
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal OpenAI chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatErrorResponse captures an API error from the LLM provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// systemPrompt is the fixed instruction sent with every chunk.
const systemPrompt = `You are an expert in web scraping. You receive a fragment of the HTML of a retail web page that lists promotions (discounts, installments, bank or card offers).

Return a single JSON object with exactly these keys, each mapping to a CSS selector string:
- "medioPago": payment method of the promotion (card, bank, wallet)
- "titulo": title of the promotion
- "descripcion": description of the promotion
- "fecha": validity date or period
- "condiciones": terms and conditions

Rules:
- Selectors must target elements that are actually present in the fragment.
- Prefer tag and structural selectors (e.g. "section > div h3", "li p:nth-of-type(2)"); the fragment has no id or class attributes.
- Each selector must match exactly one element per promotion so entries are not duplicated.
- Use an empty string for a field that is not present.
- Return ONLY the JSON object, no markdown fences or explanation.`

// InferSelectors asks the inference service for one selector per field for
// a single chunk. It waits on the shared limiter first.
//
// Every failure is a SELECTOR_GENERATION_ERROR scoped to the chunk. Errors
// with Fatal set (missing or rejected credential) mean no other chunk can
// succeed either.
func (c *Client) InferSelectors(ctx context.Context, chunk cleaner.Chunk) (models.FieldSelectors, error) {
	var empty models.FieldSelectors

	if !c.Ready() {
		err := models.NewScrapeError(models.ErrCodeSelectorGeneration, "inference API key is not configured", nil)
		err.Fatal = true
		metrics.InferenceCalls.WithLabelValues("fatal").Inc()
		return empty, err.WithChunk(chunk.Index)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return empty, models.NewScrapeError(models.ErrCodeSelectorGeneration, "waiting for inference budget", err).WithChunk(chunk.Index)
	}

	ctx, cancel := context.WithTimeout(ctx, c.params.Timeout)
	defer cancel()

	start := time.Now()
	content, err := c.complete(ctx, chunk.Text)
	if err != nil {
		se := models.AsScrapeError(err).WithChunk(chunk.Index)
		if se.Fatal {
			metrics.InferenceCalls.WithLabelValues("fatal").Inc()
		} else {
			metrics.InferenceCalls.WithLabelValues("error").Inc()
		}
		return empty, se
	}

	selectors, err := ParseSelectors(content)
	if err != nil {
		metrics.InferenceCalls.WithLabelValues("error").Inc()
		return empty, models.AsScrapeError(err).WithChunk(chunk.Index)
	}

	metrics.InferenceCalls.WithLabelValues("ok").Inc()
	slog.Debug("selectors inferred",
		"chunk", chunk.Index,
		"chunkTokens", cleaner.EstimateTokens(chunk.Text),
		"ms", time.Since(start).Milliseconds(),
	)
	return selectors, nil
}

// complete sends one chat completion and returns the assistant content.
func (c *Client) complete(ctx context.Context, content string) (string, error) {
	reqBody := chatRequest{
		Model: c.params.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	// Build URL: baseURL + /chat/completions
	endpoint := strings.TrimRight(c.params.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.params.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeSelectorGeneration, "inference request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeSelectorGeneration, "failed to read inference response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewScrapeError(models.ErrCodeSelectorGeneration, "failed to parse inference response", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", models.NewScrapeError(models.ErrCodeSelectorGeneration, "inference service returned no choices", nil)
	}

	out := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if out == "" {
		return "", models.NewScrapeError(models.ErrCodeSelectorGeneration, "inference service returned empty content", nil)
	}

	slog.Debug("inference usage",
		"promptTokens", chatResp.Usage.PromptTokens,
		"completionTokens", chatResp.Usage.CompletionTokens,
	)
	return out, nil
}

// classifyLLMError maps HTTP status codes to selector-generation errors.
// Credential problems are fatal; everything else only loses the chunk.
func classifyLLMError(statusCode int, body []byte) *models.ScrapeError {
	var errResp chatErrorResponse
	msg := "inference API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	se := models.NewScrapeError(models.ErrCodeSelectorGeneration,
		fmt.Sprintf("inference API returned %d: %s", statusCode, msg), nil)
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		se.Fatal = true
	}
	return se
}
