package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/drewfead/curzon-listings/internal"
)

const goldenIndexFile = "index.html"

// writeGoldenFiles creates goldenDir and writes each map entry as <key>.html.
func writeGoldenFiles(goldenDir string, files map[string]string) error {
	if err := os.MkdirAll(goldenDir, 0o750); err != nil {
		return fmt.Errorf("failed to create golden dir: %w", err)
	}
	for key, body := range files {
		if err := os.WriteFile(filepath.Join(goldenDir, key+".html"), []byte(body), 0o600); err != nil {
			return fmt.Errorf("failed to write %s golden file: %w", key, err)
		}
	}
	return nil
}

// PullGolden snapshots the live index page and every venue page it links to.
func PullGolden(ctx context.Context, fetcher internal.Fetcher, extractor *VenueExtractor, indexURL, goldenDir string) error {
	index, err := fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return fmt.Errorf("failed to fetch golden index: %w", err)
	}
	venues, err := extractor.Extract(index)
	if err != nil {
		return fmt.Errorf("failed to extract golden venues: %w", err)
	}
	indexHTML, err := goquery.OuterHtml(index.Selection)
	if err != nil {
		return fmt.Errorf("failed to render golden index: %w", err)
	}
	files := map[string]string{strings.TrimSuffix(goldenIndexFile, ".html"): indexHTML}
	for _, v := range venues {
		doc, err := fetcher.Fetch(ctx, v.URL)
		if err != nil {
			slog.Warn("golden: skipping venue", "venue", v.URL, "error", err)
			continue
		}
		body, err := goquery.OuterHtml(doc.Selection)
		if err != nil {
			return fmt.Errorf("failed to render golden venue %s: %w", v.URL, err)
		}
		files[path.Join("venues", venueSlug(v.URL))] = body
	}
	return writeGoldenFiles(goldenDir, files)
}

func venueSlug(venueURL string) string {
	u, err := url.Parse(venueURL)
	if err != nil {
		return ""
	}
	return path.Base(strings.TrimRight(u.Path, "/"))
}

// MountGolden serves a snapshot written by PullGolden. indexPath is where the
// index page is mounted. /venues/<slug>/ serves venues/<slug>.html, or
// venues/<slug>.dated.html when a date parameter is present and that file exists.
func MountGolden(goldenDir, indexPath string) (http.Handler, error) {
	index, err := os.ReadFile(filepath.Join(goldenDir, goldenIndexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read index golden file: %w", err)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path == indexPath {
			_, _ = w.Write(index)
			return
		}
		if slug, ok := strings.CutPrefix(strings.TrimRight(r.URL.Path, "/"), "/venues/"); ok && !strings.Contains(slug, "/") {
			candidates := []string{slug + ".html"}
			if r.URL.Query().Get("date") != "" {
				candidates = append([]string{slug + ".dated.html"}, candidates...)
			}
			for _, name := range candidates {
				body, err := os.ReadFile(filepath.Join(goldenDir, "venues", name))
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				if err != nil {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				_, _ = w.Write(body)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not found"))
	}), nil
}
