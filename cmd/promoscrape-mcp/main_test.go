package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/promoscrape/models"
)

func callTool(t *testing.T, apiURL string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = "scrape_promotions"
	req.Params.Arguments = args

	res, err := handleScrapePromotions(apiURL, "k1")(context.Background(), req)
	require.NoError(t, err)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestScrapePromotions_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/promotions", r.URL.Path)
		assert.Equal(t, "k1", r.Header.Get("X-API-Key"))

		var req models.PromotionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"https://shop.example/"}, req.URLs)

		_ = json.NewEncoder(w).Encode(models.BatchResult{
			Promotions:      []models.Promotion{{Title: "2x1", PaymentMethod: "Visa", URL: "https://shop.example/"}},
			Errors:          []string{"https://down.example/: BROWSER_ERROR: navigation timed out"},
			ExecutionTimeMs: 1500,
		})
	}))
	defer srv.Close()

	res := callTool(t, srv.URL, map[string]any{"urls": []any{"https://shop.example/"}})

	assert.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "Found 1 promotion(s)")
	assert.Contains(t, text, "## 1. 2x1")
	assert.Contains(t, text, "**Payment method:** Visa")
	assert.Contains(t, text, "navigation timed out")
}

func TestScrapePromotions_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{
			Error:   "validation error",
			Details: []string{"urls[0] must be an absolute URL, got \"x\" (url)"},
		})
	}))
	defer srv.Close()

	res := callTool(t, srv.URL, map[string]any{"urls": []any{"x"}})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "validation error")
}

func TestScrapePromotions_MissingURLs(t *testing.T) {
	res := callTool(t, "http://127.0.0.1:0", map[string]any{})
	assert.True(t, res.IsError)
}
