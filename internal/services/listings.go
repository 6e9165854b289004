package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drewfead/curzon-listings/internal"
	"github.com/drewfead/curzon-listings/internal/config"
	"github.com/drewfead/curzon-listings/internal/enrichment"
	"github.com/drewfead/curzon-listings/internal/scraper"
	"github.com/google/uuid"
)

// ListingsService runs one scrape: index page, then each venue in turn.
type ListingsService struct {
	cfg        config.Config
	fetcher    internal.Fetcher
	venues     *scraper.VenueExtractor
	films      *scraper.FilmHarvester
	enrichment []internal.EnrichmentProvider
	now        func() time.Time
}

type ListingsOption func(*ListingsService)

// ListingsWithClock fixes "now" (e.g. to pin the listing date in tests).
func ListingsWithClock(now func() time.Time) ListingsOption {
	return func(s *ListingsService) {
		if now != nil {
			s.now = now
		}
	}
}

func ListingsWithEnrichment(providers ...internal.EnrichmentProvider) ListingsOption {
	return func(s *ListingsService) {
		s.enrichment = append(s.enrichment, providers...)
	}
}

func Listings(cfg config.Config, fetcher internal.Fetcher, opts ...ListingsOption) (*ListingsService, error) {
	venues, err := scraper.NewVenueExtractor(cfg)
	if err != nil {
		return nil, err
	}
	s := &ListingsService{
		cfg:     cfg,
		fetcher: fetcher,
		venues:  venues,
		films:   scraper.NewFilmHarvester(cfg, fetcher),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run returns one ListingResult per venue in index order. It fails only when
// the index page cannot be read or lists no venues (scraper.ErrNoVenues);
// trouble with a single venue leaves that venue with no films.
func (s *ListingsService) Run(ctx context.Context) ([]internal.ListingResult, error) {
	runID := uuid.NewString()
	date := s.cfg.Today(s.now())
	log := slog.With("run_id", runID)
	log.Info("listings: run started", "index", s.cfg.IndexURL, "date", date)

	index, err := s.fetcher.Fetch(ctx, s.cfg.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch venue index: %w", err)
	}
	venues, err := s.venues.Extract(index)
	if err != nil {
		return nil, err
	}

	results := make([]internal.ListingResult, 0, len(venues))
	for i, venue := range venues {
		log.Info("listings: harvesting venue", "venue", venue.Name, "n", i+1, "of", len(venues))
		films := s.films.ForVenue(ctx, venue.URL, date)
		results = append(results, internal.ListingResult{
			Venue:  venue,
			Date:   date,
			Films:  films,
			Movies: enrichment.Enrich(ctx, films, s.enrichment...),
		})
	}

	var total int
	for _, r := range results {
		total += len(r.Films)
	}
	log.Info("listings: run finished", "venues", len(results), "films", total)
	return results, nil
}
