package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/promoscrape/config"
	"github.com/use-agent/promoscrape/models"
	"github.com/use-agent/promoscrape/scraper"
)

var scrapeIndent *bool

func init() {
	scrapeIndent = scrapeCmd.Flags().Bool("indent", true, "Pretty-print the JSON result.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url> [url...]",
	Short: "Scrapes the given URLs once and prints the batch result as JSON.",
	Args:  cobra.RangeArgs(1, models.MaxBatchURLs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		client, p := pipeline(cfg)
		if !client.Ready() {
			return fmt.Errorf("selector inference unavailable: set PROMO_LLM_API_KEY or OPENAI_API_KEY")
		}

		res, err := scraper.NewCoordinator(p, cfg.Batch).Run(cmd.Context(), args)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		if *scrapeIndent {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(res)
	},
}
