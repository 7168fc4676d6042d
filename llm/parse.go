package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/use-agent/promoscrape/models"
)

var (
	// jsonBlockPattern matches JSON inside markdown code blocks: ```json { ... } ```
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern matches the outermost JSON object (greedy fallback).
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	// trailingCommaPattern matches trailing commas before } or ].
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// extractJSON pulls a JSON object out of a model reply that may wrap it in
// markdown fences or prose, and drops trailing commas.
func extractJSON(content string) string {
	raw := ""
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		raw = jsonObjectPattern.FindString(content)
	}
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}

// ParseSelectors decodes an inference reply into FieldSelectors.
//
// Keys are matched case-insensitively against the canonical and English
// field names; unknown keys are ignored and null values count as empty. A
// reply that is not a JSON object, or that names none of the fields, is a
// SELECTOR_GENERATION_ERROR.
func ParseSelectors(content string) (models.FieldSelectors, error) {
	var out models.FieldSelectors

	raw := extractJSON(content)
	if raw == "" {
		return out, models.NewScrapeError(models.ErrCodeSelectorGeneration, "inference reply contains no JSON object", nil)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return out, models.NewScrapeError(models.ErrCodeSelectorGeneration, "inference reply is not valid JSON", err)
	}

	known := 0
	for key, val := range obj {
		field, ok := models.ParseField(key)
		if !ok {
			continue
		}
		known++
		switch v := val.(type) {
		case string:
			out.Set(field, strings.TrimSpace(v))
		case nil:
		default:
			return out, models.NewScrapeError(models.ErrCodeSelectorGeneration,
				fmt.Sprintf("selector for %q is %T, want string", key, val), nil)
		}
	}
	if known == 0 {
		return out, models.NewScrapeError(models.ErrCodeSelectorGeneration, "inference reply names none of the promotion fields", nil)
	}
	return out, nil
}
