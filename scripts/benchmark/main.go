// Command benchmark measures POST /api/v1/promotions against a running
// server: latency per run, records found, and how much the selector cache
// speeds up repeat scrapes of the same page.
//
//	go run ./scripts/benchmark -runs 3 https://shop.example/promos ...
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/promoscrape/models"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "promoscrape API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per URL; run 1 is the cold run")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

type runResult struct {
	Run             int    `json:"run"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	RoundTripMs     int64  `json:"round_trip_ms"`
	Promotions      int    `json:"promotions"`
	HTTPStatus      int    `json:"http_status"`
	Error           string `json:"error,omitempty"`
}

type urlResult struct {
	URL        string      `json:"url"`
	Runs       []runResult `json:"runs"`
	ColdMs     int64       `json:"cold_ms"`
	WarmAvgMs  float64     `json:"warm_avg_ms"`
	StableRows bool        `json:"stable_rows"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()
	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: benchmark [flags] <url> [url...]")
		os.Exit(2)
	}

	fmt.Println("=== promoscrape benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	client := &http.Client{Timeout: 6 * time.Minute}
	for _, u := range urls {
		fmt.Printf("Benchmarking %s ...\n", u)
		ur := urlResult{URL: u}
		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(client, u, i)
			if rr.Error == "" {
				fmt.Printf("OK  %dms  %d promotion(s)\n", rr.ExecutionTimeMs, rr.Promotions)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}
		summarize(&ur)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(client *http.Client, url string, run int) runResult {
	rr := runResult{Run: run}

	body, err := json.Marshal(models.PromotionsRequest{URLs: []string{url}})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}
	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/promotions", bytes.NewReader(body))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.RoundTripMs = time.Since(start).Milliseconds()
	rr.HTTPStatus = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		var er models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		rr.Error = fmt.Sprintf("%d %s %s", resp.StatusCode, er.Error, er.Message)
		return rr
	}

	var res models.BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	rr.ExecutionTimeMs = res.ExecutionTimeMs
	rr.Promotions = len(res.Promotions)
	if len(res.Errors) > 0 {
		rr.Error = strings.Join(res.Errors, "; ")
	}
	return rr
}

// summarize fills the cold time, the average of the warm runs and whether
// every successful run found the same number of records.
func summarize(ur *urlResult) {
	var (
		warmSum   int64
		warmCount int
		rows      = -1
	)
	ur.StableRows = true
	for _, r := range ur.Runs {
		if r.Error != "" {
			continue
		}
		if r.Run == 1 {
			ur.ColdMs = r.ExecutionTimeMs
		} else {
			warmSum += r.ExecutionTimeMs
			warmCount++
		}
		if rows >= 0 && rows != r.Promotions {
			ur.StableRows = false
		}
		rows = r.Promotions
	}
	if warmCount > 0 {
		ur.WarmAvgMs = float64(warmSum) / float64(warmCount)
	}
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tCold\tWarm avg\tStable rows\n")
	fmt.Fprintf(w, "───\t────\t────────\t───────────\n")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%dms\t%.0fms\t%v\n", truncateURL(r.URL, 50), r.ColdMs, r.WarmAvgMs, r.StableRows)
	}
	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
