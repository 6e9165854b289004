package internal

import "context"

type EnrichmentProvider interface {
	// Enrich makes a best-effort attempt to find movie details for a harvested film title
	Enrich(ctx context.Context, title string) (MovieInfo, error)
}
