package enrichment

import (
	"context"
	"log/slog"

	"github.com/drewfead/curzon-listings/internal"
)

// Enrich looks each title up with the providers in order; the first provider
// that answers wins. Titles nobody recognises are left out of the result.
func Enrich(ctx context.Context, titles []string, providers ...internal.EnrichmentProvider) map[string]internal.MovieInfo {
	if len(providers) == 0 || len(titles) == 0 {
		return nil
	}
	movies := make(map[string]internal.MovieInfo, len(titles))
	for _, title := range titles {
		for i, provider := range providers {
			movie, err := provider.Enrich(ctx, title)
			if err != nil {
				slog.Debug("enrichment audit", "title", title, "provider_index", i, "result", "failure", "details", err.Error())
				continue
			}
			slog.Debug("enrichment audit", "title", title, "provider_index", i, "result", "success")
			movies[title] = movie
			break
		}
	}
	return movies
}
