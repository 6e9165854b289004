package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/drewfead/curzon-listings/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageFetcher serves canned HTML by exact URL and records what was asked for.
type pageFetcher struct {
	pages     map[string]string
	failures  map[string]error
	requested []string
}

func (f *pageFetcher) Fetch(_ context.Context, url string) (*goquery.Document, error) {
	f.requested = append(f.requested, url)
	if err, ok := f.failures[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, errors.New("404 " + url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

func testHarvester(f *pageFetcher) *FilmHarvester {
	return NewFilmHarvester(config.Default(), f)
}

func TestUnit_CleanTitle(t *testing.T) {
	tests := map[string]string{
		"Oppenheimer | 15 · 3h 0m":      "Oppenheimer",
		"  Past   Lives\n":              "Past Lives",
		"The Brutalist · 3h 35m | 18":   "The Brutalist",
		"| leading pipe":                "",
		"Perfect Days":                  "Perfect Days",
		"Tár · 2h 38m":                  "Tár",
		"Anora\t|\tEnglish subtitles ": "Anora",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanTitle(in), "CleanTitle(%q)", in)
	}
}

func TestUnit_FilmHarvester_Links(t *testing.T) {
	doc := parseHTML(t, `<a href="/films/dune2">Dune: Part Two</a><a href="/films/x">Book now</a>`)
	assert.Equal(t, []string{"Dune: Part Two"}, testHarvester(&pageFetcher{}).Harvest(doc))
}

func TestUnit_FilmHarvester_LinksSortedAndUnique(t *testing.T) {
	doc := parseHTML(t, `
<a href="https://www.curzon.com/films/zola/">Zola</a>
<a href="/films/aftersun/">Aftersun | 15</a>
<a href="/films/aftersun/">Aftersun</a>
<a href="/films/aftersun/#trailer">TRAILER</a>
<a href="/films/">More films</a>
<a href="/films/q/">Q</a>
<a href="/events/quiz/">Film quiz</a>
<h3>Heading with time</h3><p>12:00</p>`)
	assert.Equal(t, []string{"Aftersun", "Zola"}, testHarvester(&pageFetcher{}).Harvest(doc))
}

func TestUnit_FilmHarvester_HeadingFallback(t *testing.T) {
	doc := parseHTML(t, `
<h2>Today</h2><p>11:00</p>
<h3>X</h3><p>10:00</p>
<h3>Anora</h3><div><ul><li>14:30</li></ul></div>
<h3>The Brutalist · 3h 35m</h3><div><p>Sold out</p></div><div>Tomorrow</div><div>19:15</div>
<h2>Flow</h2><div><span>19:05</span></div>
<h4>Late</h4><p>24:10 and 9:60</p>
<h3>Late show</h3><p>7:05pm</p>`)
	assert.Equal(t, []string{"Anora", "Flow"}, testHarvester(&pageFetcher{}).Harvest(doc))
}

func TestUnit_FilmHarvester_LookaheadIsConfigurable(t *testing.T) {
	doc := parseHTML(t, `<h3>The Brutalist</h3><div><p>Sold out</p></div><div>Tomorrow</div><div>19:15</div>`)

	cfg := config.Default()
	cfg.HeadingLookahead = 4
	h := NewFilmHarvester(cfg, &pageFetcher{})
	assert.Equal(t, []string{"The Brutalist"}, h.Harvest(doc))
}

func TestUnit_FilmHarvester_NothingFound(t *testing.T) {
	doc := parseHTML(t, `<h1>Closed for refurbishment</h1><p>Reopening 10:00 Monday</p>`)
	films := testHarvester(&pageFetcher{}).Harvest(doc)
	assert.NotNil(t, films)
	assert.Empty(t, films)
}

const sohoURL = "https://www.curzon.com/venues/soho/"

func TestUnit_FilmHarvester_ForVenue_DatedPageWins(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		sohoURL + "?date=2026-10-15": `<a href="/films/perfect-days">Perfect Days</a>`,
		sohoURL:                      `<a href="/films/other">Other</a>`,
	}}

	films := testHarvester(f).ForVenue(t.Context(), sohoURL, "2026-10-15")
	assert.Equal(t, []string{"Perfect Days"}, films)
	assert.Equal(t, []string{sohoURL + "?date=2026-10-15"}, f.requested)
}

func TestUnit_FilmHarvester_ForVenue_EmptyDatedPageFallsBack(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		sohoURL + "?date=2026-10-15": `<p>No showings for this date.</p>`,
		sohoURL:                      `<a href="/films/other">Other</a>`,
	}}

	films := testHarvester(f).ForVenue(t.Context(), sohoURL, "2026-10-15")
	assert.Equal(t, []string{"Other"}, films)
	assert.Equal(t, []string{sohoURL + "?date=2026-10-15", sohoURL}, f.requested)
}

func TestUnit_FilmHarvester_ForVenue_DatedFetchFails(t *testing.T) {
	f := &pageFetcher{
		pages:    map[string]string{sohoURL: `<a href="/films/other">Other</a>`},
		failures: map[string]error{sohoURL + "?date=2026-10-15": errors.New("timeout")},
	}

	films := testHarvester(f).ForVenue(t.Context(), sohoURL, "2026-10-15")
	assert.Equal(t, []string{"Other"}, films)
}

func TestUnit_FilmHarvester_ForVenue_AllVariantsFail(t *testing.T) {
	f := &pageFetcher{}

	films := testHarvester(f).ForVenue(t.Context(), sohoURL, "2026-10-15")
	require.NotNil(t, films)
	assert.Empty(t, films)
	assert.Len(t, f.requested, 2)
}
