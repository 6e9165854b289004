package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/drewfead/curzon-listings/internal"
	"github.com/drewfead/curzon-listings/internal/config"
	"github.com/drewfead/curzon-listings/internal/venueurl"
	"golang.org/x/net/html"
)

var (
	overviewHeading = regexp.MustCompile(`(?i)what'?s on|today|tomorrow|showtimes`)
	clockTime       = regexp.MustCompile(`\b([01]?\d|2[0-3]):[0-5]\d\b`)
)

const minTitleLength = 2

type FilmHarvester struct {
	fetcher        internal.Fetcher
	linkSelector   string
	headingTags    string
	rejectPrefixes []string
	lookahead      int
	maxHeading     int
}

func NewFilmHarvester(cfg config.Config, fetcher internal.Fetcher) *FilmHarvester {
	prefixes := make([]string, 0, len(cfg.RejectPrefixes))
	for _, p := range cfg.RejectPrefixes {
		prefixes = append(prefixes, strings.ToLower(p))
	}
	return &FilmHarvester{
		fetcher:        fetcher,
		linkSelector:   fmt.Sprintf(`a[href*=%q]`, cfg.FilmsPath),
		headingTags:    strings.Join(cfg.HeadingTags, ", "),
		rejectPrefixes: prefixes,
		lookahead:      cfg.HeadingLookahead,
		maxHeading:     cfg.HeadingMaxLength,
	}
}

// ForVenue returns today's films at a venue. The dated listing is tried
// first and the plain page second. Fetch failures are logged, never returned:
// a venue nobody could read contributes no films, like a closed one.
func (h *FilmHarvester) ForVenue(ctx context.Context, venueURL, date string) []string {
	dated, err := venueurl.WithDate(venueURL, date)
	if err != nil {
		slog.Warn("films: cannot build dated url", "venue", venueURL, "error", err)
	} else {
		slog.Debug("films: harvesting dated page", "venue", venueURL, "date", date)
		if doc, err := h.fetcher.Fetch(ctx, dated); err != nil {
			slog.Warn("films: dated fetch failed", "venue", venueURL, "error", err)
		} else if films := h.Harvest(doc); len(films) > 0 {
			return films
		} else {
			slog.Debug("films: nothing on dated page, trying plain page", "venue", venueURL)
		}
	}

	doc, err := h.fetcher.Fetch(ctx, venueURL)
	if err != nil {
		slog.Error("films: failed to harvest venue", "venue", venueURL, "error", err)
		return []string{}
	}
	films := h.Harvest(doc)
	slog.Debug("films: harvested plain page", "venue", venueURL, "count", len(films))
	return films
}

// Harvest reads film titles off one page: film links first, then headings
// followed closely by a clock time. The result is sorted and unique.
func (h *FilmHarvester) Harvest(doc *goquery.Document) []string {
	titles, _ := firstHit("films", doc, []strategy[string]{
		{name: "links", run: h.fromLinks},
		{name: "headings", run: h.fromHeadings},
	})
	slices.Sort(titles)
	titles = slices.Compact(titles)
	if titles == nil {
		return []string{}
	}
	return titles
}

func (h *FilmHarvester) fromLinks(doc *goquery.Document) []string {
	var titles []string
	doc.Find(h.linkSelector).Each(func(_ int, a *goquery.Selection) {
		title := CleanTitle(a.Text())
		if utf8.RuneCountInString(title) < minTitleLength || h.isActionLabel(title) {
			return
		}
		titles = append(titles, title)
	})
	return titles
}

func (h *FilmHarvester) isActionLabel(title string) bool {
	lower := strings.ToLower(title)
	for _, p := range h.rejectPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func (h *FilmHarvester) fromHeadings(doc *goquery.Document) []string {
	if h.headingTags == "" {
		return nil
	}
	var titles []string
	doc.Find(h.headingTags).Each(func(_ int, heading *goquery.Selection) {
		title := CleanTitle(heading.Text())
		length := utf8.RuneCountInString(title)
		if length < minTitleLength || length > h.maxHeading || overviewHeading.MatchString(title) {
			return
		}
		if clockTime.MatchString(textAfter(heading.Get(0), h.lookahead)) {
			titles = append(titles, title)
		}
	})
	return titles
}

// textAfter joins the text of the next limit elements after n in document
// order. n's own descendants count, as they come after n's start tag.
func textAfter(n *html.Node, limit int) string {
	var parts []string
	for cur := nextInDocument(n); cur != nil && limit > 0; cur = nextInDocument(cur) {
		if cur.Type != html.ElementNode {
			continue
		}
		if text := nodeText(cur); text != "" {
			parts = append(parts, text)
		}
		limit--
	}
	return strings.Join(parts, " ")
}

func nextInDocument(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}

// nodeText is the trimmed text fragments under n joined by single spaces.
func nodeText(n *html.Node) string {
	var parts []string
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(n)
	return strings.Join(parts, " ")
}

// CleanTitle drops everything from the first "|" or "·" on (certificates,
// runtimes) and collapses whitespace.
func CleanTitle(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "|"); i >= 0 {
		text = text[:i]
	}
	if i := strings.Index(text, "·"); i >= 0 {
		text = text[:i]
	}
	return collapseSpace(text)
}
