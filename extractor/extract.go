package extractor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/promoscrape/models"
)

// Querier runs a CSS selector against a document and returns the trimmed
// text content of every match in document order. Implementations return an
// error for selectors they cannot evaluate.
type Querier interface {
	QueryTexts(ctx context.Context, selector string) ([]string, error)
}

// Extract applies the combined selectors to the document behind q and
// assembles promotion records.
//
// Each field is queried independently; an invalid selector or a query
// failure yields an empty column instead of failing the extraction.
// Columns are zipped by index up to the longest one, with missing cells
// left empty, so records assume every field's matches appear in the same
// relative order as the promotion blocks they belong to. Records without a
// title and without a description are dropped.
//
// Rows are not driven by the title column. A page whose title selector
// matches nothing still yields one record per description match, and extra
// descriptions past the last title become description-only records.
func Extract(ctx context.Context, q Querier, selectors models.FieldSelectors, pageURL string) []models.Promotion {
	columns := make(map[models.Field][]string, len(models.AllFields))
	rows := 0
	for _, f := range models.AllFields {
		sel := selectors.Get(f)
		if sel == "" {
			continue
		}
		texts, err := q.QueryTexts(ctx, sel)
		if err != nil {
			slog.Debug("selector query failed, field left empty",
				"url", pageURL, "field", string(f), "selector", sel, "error", err)
			continue
		}
		columns[f] = texts
		rows = max(rows, len(texts))
	}

	cell := func(f models.Field, i int) string {
		col := columns[f]
		if i < len(col) {
			return strings.TrimSpace(col[i])
		}
		return ""
	}

	var records []models.Promotion
	for i := 0; i < rows; i++ {
		p := models.Promotion{
			PaymentMethod: cell(models.FieldPaymentMethod, i),
			Title:         cell(models.FieldTitle, i),
			Description:   cell(models.FieldDescription, i),
			Date:          cell(models.FieldDate, i),
			Conditions:    cell(models.FieldConditions, i),
			URL:           pageURL,
		}
		if !p.Valid() {
			continue
		}
		records = append(records, p)
	}
	return records
}
