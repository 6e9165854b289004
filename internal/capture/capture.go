// Package capture reads the showtime store a venue page keeps in the
// browser's localStorage and flattens it into importer lines.
package capture

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/drewfead/curzon-listings/internal/config"
)

// StorageReader returns the raw localStorage value under key after loading pageURL.
type StorageReader interface {
	ReadStorage(ctx context.Context, pageURL, key string) (string, error)
}

// Showtime is one screening, formatted for the importer as starts_at|title|site.
type Showtime struct {
	StartsAt string
	Title    string
	SiteID   string
}

func (s Showtime) Line() string {
	return s.StartsAt + "|" + s.Title + "|" + s.SiteID
}

// WriteLines writes one importer line per showtime.
func WriteLines(w io.Writer, showtimes []Showtime) error {
	for _, s := range showtimes {
		if _, err := fmt.Fprintln(w, s.Line()); err != nil {
			return err
		}
	}
	return nil
}

type text struct {
	Text string `json:"text"`
}

type siteEntry struct {
	Payload struct {
		Name text `json:"name"`
	} `json:"payload"`
}

type filmEntry struct {
	Payload struct {
		Title text `json:"title"`
	} `json:"payload"`
}

type showtimeEntry struct {
	Payload struct {
		SiteID   string `json:"siteId"`
		FilmID   string `json:"filmId"`
		Schedule struct {
			StartsAt string `json:"startsAt"`
		} `json:"schedule"`
	} `json:"payload"`
}

// store is the part of the browsing-domain store we read. Entries are keyed by id.
type store struct {
	AllSiteIDs struct {
		Payload []string `json:"payload"`
	} `json:"allSiteIds"`
	SitesByID     map[string]*siteEntry     `json:"sitesById"`
	FilmsByID     map[string]*filmEntry     `json:"filmsById"`
	ShowtimesByID map[string]*showtimeEntry `json:"showtimesById"`
}

func parseStore(raw string) (*store, error) {
	var s store
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse browsing store: %w", err)
	}
	return &s, nil
}

// merge copies non-null films and showtimes from other, replacing same-id entries.
func (s *store) merge(other *store) {
	if s.FilmsByID == nil {
		s.FilmsByID = map[string]*filmEntry{}
	}
	if s.ShowtimesByID == nil {
		s.ShowtimesByID = map[string]*showtimeEntry{}
	}
	for id, f := range other.FilmsByID {
		if f != nil {
			s.FilmsByID[id] = f
		}
	}
	for id, st := range other.ShowtimesByID {
		if st != nil {
			s.ShowtimesByID[id] = st
		}
	}
}

type Capturer struct {
	reader    StorageReader
	baseURL   string
	targetURL string
	storeKey  string
	sites     map[string]struct{}
}

func New(reader StorageReader, cfg config.Config) *Capturer {
	sites := make(map[string]struct{}, len(cfg.Capture.Sites))
	for _, id := range cfg.Capture.Sites {
		sites[strings.ToUpper(strings.TrimSpace(id))] = struct{}{}
	}
	return &Capturer{
		reader:    reader,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		targetURL: cfg.Capture.TargetURL,
		storeKey:  cfg.Capture.StoreKey,
		sites:     sites,
	}
}

func (c *Capturer) allowed(siteID string) bool {
	_, ok := c.sites[siteID]
	return ok
}

// Run reads the store at the target page, visits every allow-listed site the
// store has no showtimes for, and returns the merged showtimes sorted by start.
func (c *Capturer) Run(ctx context.Context) ([]Showtime, error) {
	raw, err := c.reader.ReadStorage(ctx, c.targetURL, c.storeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read store at %s: %w", c.targetURL, err)
	}
	merged, err := parseStore(raw)
	if err != nil {
		return nil, err
	}

	covered := map[string]struct{}{}
	for _, st := range merged.ShowtimesByID {
		if st != nil && c.allowed(st.Payload.SiteID) {
			covered[st.Payload.SiteID] = struct{}{}
		}
	}

	for _, siteID := range merged.AllSiteIDs.Payload {
		if !c.allowed(siteID) {
			continue
		}
		if _, ok := covered[siteID]; ok {
			continue
		}
		var name string
		if site := merged.SitesByID[siteID]; site != nil {
			name = site.Payload.Name.Text
		}
		pageURL := c.baseURL + "/venues/" + Slugify(name, siteID) + "/"
		slog.Info("capture: visiting site", "site", siteID, "url", pageURL)
		covered[siteID] = struct{}{}

		siteRaw, err := c.reader.ReadStorage(ctx, pageURL, c.storeKey)
		if err != nil {
			slog.Warn("capture: no store for site", "site", siteID, "error", err)
			continue
		}
		siteStore, err := parseStore(siteRaw)
		if err != nil {
			slog.Warn("capture: invalid store for site", "site", siteID, "error", err)
			continue
		}
		merged.merge(siteStore)
	}

	return c.flatten(merged), nil
}

func (c *Capturer) flatten(s *store) []Showtime {
	var out []Showtime
	for id, st := range s.ShowtimesByID {
		if st == nil || !c.allowed(st.Payload.SiteID) {
			continue
		}
		film := s.FilmsByID[st.Payload.FilmID]
		title := ""
		if film != nil {
			title = strings.TrimSpace(film.Payload.Title.Text)
		}
		startsAt := strings.TrimSpace(st.Payload.Schedule.StartsAt)
		if title == "" || startsAt == "" {
			slog.Debug("capture: skipping incomplete showtime", "id", id, "film", st.Payload.FilmID)
			continue
		}
		out = append(out, Showtime{StartsAt: startsAt, Title: title, SiteID: st.Payload.SiteID})
	}
	slices.SortFunc(out, func(a, b Showtime) int {
		return cmp.Or(
			strings.Compare(a.StartsAt, b.StartsAt),
			strings.Compare(a.Title, b.Title),
			strings.Compare(a.SiteID, b.SiteID),
		)
	})
	return slices.Compact(out)
}

var (
	slugStrip = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpace = regexp.MustCompile(`\s+`)
)

// Slugify turns a site display name into its venue path segment:
// "Curzon Mayfair & Co." becomes "curzon-mayfair-and-co". An empty result
// falls back to the lower-cased site id.
func Slugify(name, fallback string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "&", "and")
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpace.ReplaceAllString(strings.TrimSpace(s), "-")
	if s == "" {
		return strings.ToLower(fallback)
	}
	return s
}
