package scraper

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// strategy is one way of reading a page. Strategies are tried in order and
// never combined: the first non-empty result wins.
type strategy[T any] struct {
	name string
	run  func(*goquery.Document) []T
}

func firstHit[T any](component string, doc *goquery.Document, strategies []strategy[T]) ([]T, string) {
	for _, s := range strategies {
		if found := s.run(doc); len(found) > 0 {
			slog.Debug(component+": strategy hit", "strategy", s.name, "count", len(found))
			return found, s.name
		}
		slog.Debug(component+": strategy miss", "strategy", s.name)
	}
	return nil, ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
