package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/promoscrape/models"
)

func main() {
	apiURL := os.Getenv("PROMO_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PROMO_API_KEY")

	s := server.NewMCPServer(
		"promoscrape",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapeTool := mcp.NewTool("scrape_promotions",
		mcp.WithDescription("Extract promotions (payment method, title, description, date, conditions) from up to 10 retail web pages. Pages are rendered in a headless browser and CSS selectors are inferred by an LLM, so a batch can take minutes."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("Absolute URLs of the promotion pages, 1 to 10"),
			mcp.WithStringItems(),
		),
	)
	s.AddTool(scrapeTool, handleScrapePromotions(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the promoscrape API and returns the status
// and body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, err
}

func handleScrapePromotions(apiURL, apiKey string) server.ToolHandlerFunc {
	// Longer than the server's default batch timeout.
	client := &http.Client{Timeout: 6 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil || len(urls) == 0 {
			return mcp.NewToolResultError("urls is required"), nil
		}

		status, body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/promotions", models.PromotionsRequest{URLs: urls})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if status != http.StatusOK {
			var errResp models.ErrorResponse
			if jsonErr := json.Unmarshal(body, &errResp); jsonErr != nil || errResp.Error == "" {
				return mcp.NewToolResultError(fmt.Sprintf("API returned status %d", status)), nil
			}
			msg := errResp.Error
			if errResp.Message != "" {
				msg += ": " + errResp.Message
			}
			if len(errResp.Details) > 0 {
				msg += " (" + strings.Join(errResp.Details, "; ") + ")"
			}
			return mcp.NewToolResultError(msg), nil
		}

		var res models.BatchResult
		if err := json.Unmarshal(body, &res); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		return mcp.NewToolResultText(formatBatch(&res)), nil
	}
}

// formatBatch renders a batch result as Markdown for the model.
func formatBatch(res *models.BatchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d promotion(s) in %d ms.\n", len(res.Promotions), res.ExecutionTimeMs)

	for i, p := range res.Promotions {
		title := p.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&sb, "\n## %d. %s\n", i+1, title)
		writeField(&sb, "Description", p.Description)
		writeField(&sb, "Payment method", p.PaymentMethod)
		writeField(&sb, "Date", p.Date)
		writeField(&sb, "Conditions", p.Conditions)
		writeField(&sb, "Source", p.URL)
	}

	if len(res.Errors) > 0 {
		sb.WriteString("\n## Failed pages\n")
		for _, e := range res.Errors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}
	return sb.String()
}

func writeField(sb *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(sb, "- **%s:** %s\n", label, value)
	}
}
