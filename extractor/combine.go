// Package extractor turns inferred selectors into promotion records.
package extractor

import (
	"strings"

	"github.com/use-agent/promoscrape/models"
)

// selectorSeparator joins chunk-local selectors into a CSS selector list,
// which matches the union of what each one matches.
const selectorSeparator = ", "

// Combine merges per-chunk selector sets into one set for the document.
// For each field the non-empty selectors are joined in chunk order with
// ", ". Duplicates are kept. A field no chunk produced stays empty.
func Combine(sets []models.FieldSelectors) models.FieldSelectors {
	var out models.FieldSelectors
	for _, f := range models.AllFields {
		var parts []string
		for _, s := range sets {
			if sel := s.Get(f); sel != "" {
				parts = append(parts, sel)
			}
		}
		out.Set(f, strings.Join(parts, selectorSeparator))
	}
	return out
}
