package scraper

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/drewfead/curzon-listings/internal"
	"github.com/drewfead/curzon-listings/internal/config"
	"github.com/drewfead/curzon-listings/internal/payload"
	"github.com/drewfead/curzon-listings/internal/venueurl"
)

// ErrNoVenues means neither the embedded payload nor the page links produced a
// venue. The index page has most likely changed shape.
var ErrNoVenues = errors.New("no venues found on index page")

type VenueExtractor struct {
	rules      venueurl.Rules
	payloadVar string
	nameKeys   map[string]struct{}
}

func NewVenueExtractor(cfg config.Config) (*VenueExtractor, error) {
	rules, err := venueurl.New(cfg.BaseURL, cfg.VenuePath)
	if err != nil {
		return nil, fmt.Errorf("venue rules: %w", err)
	}
	keys := make(map[string]struct{}, len(cfg.NameKeys))
	for _, k := range cfg.NameKeys {
		keys[strings.ToLower(k)] = struct{}{}
	}
	return &VenueExtractor{rules: rules, payloadVar: cfg.PayloadVar, nameKeys: keys}, nil
}

// Extract returns the venues linked from an index page, deduplicated by
// canonical URL in order of first appearance.
func (e *VenueExtractor) Extract(doc *goquery.Document) ([]internal.Venue, error) {
	venues, via := firstHit("venues", doc, []strategy[internal.Venue]{
		{name: "payload", run: e.fromPayload},
		{name: "dom", run: e.fromLinks},
	})
	if len(venues) == 0 {
		return nil, ErrNoVenues
	}
	slog.Info("venues: extracted", "count", len(venues), "strategy", via)
	return venues, nil
}

func (e *VenueExtractor) fromPayload(doc *goquery.Document) []internal.Venue {
	tree, ok := payload.Locate(doc, e.payloadVar)
	if !ok {
		slog.Warn("venues: no structured payload, reading links instead", "var", e.payloadVar)
		return nil
	}
	c := e.collector()
	e.walk(tree, c.add)
	return c.venues
}

// walk emits (name, url) for every object holding a venue-shaped string.
// Children are visited before their parent emits, so nested pairs come first.
func (e *VenueExtractor) walk(v payload.Value, emit func(name, rawURL string)) {
	switch node := v.(type) {
	case payload.Object:
		var name, rawURL string
		for _, m := range node.Members {
			s, isString := m.Value.(payload.String)
			if !isString {
				e.walk(m.Value, emit)
				continue
			}
			text := string(s)
			if e.rules.IsVenue(text) {
				rawURL = text
				continue
			}
			if _, isName := e.nameKeys[strings.ToLower(m.Key)]; isName && strings.TrimSpace(text) != "" {
				name = strings.TrimSpace(text)
			}
		}
		if rawURL != "" {
			emit(name, rawURL)
		}
	case payload.Array:
		for _, item := range node {
			e.walk(item, emit)
		}
	}
}

func (e *VenueExtractor) fromLinks(doc *goquery.Document) []internal.Venue {
	c := e.collector()
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if e.rules.IsVenue(href) {
			c.add(collapseSpace(a.Text()), href)
		}
	})
	return c.venues
}

type venueCollector struct {
	rules  venueurl.Rules
	seen   map[string]struct{}
	venues []internal.Venue
}

func (e *VenueExtractor) collector() *venueCollector {
	return &venueCollector{rules: e.rules, seen: map[string]struct{}{}}
}

// add keeps the first name seen for each canonical URL.
func (c *venueCollector) add(name, rawURL string) {
	canonical, err := c.rules.Normalize(rawURL)
	if err != nil {
		slog.Debug("venues: skipping link", "url", rawURL, "error", err)
		return
	}
	if _, dup := c.seen[canonical]; dup {
		return
	}
	c.seen[canonical] = struct{}{}
	c.venues = append(c.venues, internal.Venue{
		Name: venueurl.DeriveName(name, canonical),
		URL:  canonical,
	})
}
