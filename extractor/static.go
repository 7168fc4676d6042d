package extractor

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// StaticQuerier evaluates selectors against a parsed HTML snapshot instead
// of a live page. Selectors are compiled with cascadia, so CSS the browser
// would accept but cascadia does not is reported as an error.
type StaticQuerier struct {
	doc *goquery.Document
}

// NewStaticQuerier parses rawHTML.
func NewStaticQuerier(rawHTML string) (*StaticQuerier, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	return &StaticQuerier{doc: doc}, nil
}

// QueryTexts implements Querier.
func (q *StaticQuerier) QueryTexts(_ context.Context, selector string) ([]string, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, err
	}

	var texts []string
	q.doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts, nil
}

// ValidSelector reports whether cascadia can compile selector.
func ValidSelector(selector string) bool {
	_, err := cascadia.ParseGroup(selector)
	return err == nil
}
