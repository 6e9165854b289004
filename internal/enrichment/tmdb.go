package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/antzucaro/matchr"
	tmdb "github.com/cyruzin/golang-tmdb"
	"github.com/drewfead/curzon-listings/internal"
	"github.com/drewfead/curzon-listings/internal/httputil"
)

// ErrNoMatch means the search returned nothing close enough to the title.
var ErrNoMatch = errors.New("no matching movie")

const defaultMinSimilarity = 0.85

type tmdbEnrichment struct {
	search        func(query string) ([]tmdb.MovieResult, error)
	minSimilarity float64
	transport     http.RoundTripper
}

type TMDBOption func(*tmdbEnrichment)

// TMDBWithTransport sets the transport under the response cache (e.g. one
// that points requests at an httptest.Server).
func TMDBWithTransport(rt http.RoundTripper) TMDBOption {
	return func(e *tmdbEnrichment) {
		if rt != nil {
			e.transport = rt
		}
	}
}

// TMDBWithMinSimilarity overrides the Jaro-Winkler score a candidate title must reach.
func TMDBWithMinSimilarity(score float64) TMDBOption {
	return func(e *tmdbEnrichment) {
		e.minSimilarity = score
	}
}

func TMDB(apiKey string, opts ...TMDBOption) (internal.EnrichmentProvider, error) {
	tmdbClient, err := tmdb.InitV4(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize TMDB client: %w", err)
	}
	e := &tmdbEnrichment{
		minSimilarity: defaultMinSimilarity,
		transport:     http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(e)
	}
	tmdbClient.SetClientConfig(http.Client{
		Transport: &httputil.CacheTransport{Base: e.transport},
	})
	e.search = func(query string) ([]tmdb.MovieResult, error) {
		results, err := tmdbClient.GetSearchMovies(query, map[string]string{
			"language": "en-GB",
		})
		if err != nil {
			return nil, err
		}
		return results.Results, nil
	}
	return e, nil
}

func (e *tmdbEnrichment) Enrich(_ context.Context, title string) (internal.MovieInfo, error) {
	results, err := e.search(title)
	if err != nil {
		return internal.MovieInfo{}, fmt.Errorf("failed to search for movie %q: %w", title, err)
	}
	best, score := pickBest(results, title, e.minSimilarity)
	if best == nil {
		return internal.MovieInfo{}, fmt.Errorf("%w: %q (%d candidates)", ErrNoMatch, title, len(results))
	}
	slog.Debug("tmdb: matched", "title", title, "tmdb_title", best.Title, "score", score)
	return internal.MovieInfo{
		Title:    best.Title,
		Overview: best.Overview,
		Links: []internal.Link{
			{
				Href:    fmt.Sprintf("https://www.themoviedb.org/movie/%d", best.ID),
				Display: "TMDB",
			},
		},
	}, nil
}

// normalizeTitle folds case and whitespace for comparison.
func normalizeTitle(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// pickBest returns the candidate whose title is most similar to want, or nil
// when none reaches minScore. Ties keep the earlier (more popular) result.
func pickBest(results []tmdb.MovieResult, want string, minScore float64) (*tmdb.MovieResult, float64) {
	target := normalizeTitle(want)
	var (
		best      *tmdb.MovieResult
		bestScore float64
	)
	for i := range results {
		score := matchr.JaroWinkler(target, normalizeTitle(results[i].Title), false)
		if score < minScore || score <= bestScore {
			continue
		}
		best, bestScore = &results[i], score
	}
	return best, bestScore
}
