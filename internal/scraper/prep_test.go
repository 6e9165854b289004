package scraper

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drewfead/curzon-listings/internal/config"
	"github.com/drewfead/curzon-listings/internal/httputil"
	"github.com/stretchr/testify/require"
)

const (
	goldenDir       = "golden"
	goldenIndexPath = "/venues/all-london-cinemas/"
)

func TestPrep_PullGolden(t *testing.T) {
	if os.Getenv("PREP") != "1" {
		t.Skip("PREP is not set")
	}

	cfg := config.Default()
	extractor, err := NewVenueExtractor(cfg)
	require.NoError(t, err)
	fetcher := httputil.Fetcher(cfg.UserAgent, cfg.AcceptLanguage, cfg.Timeout())

	dir := filepath.Join(goldenDir, "curzon")
	require.NoError(t, PullGolden(t.Context(), fetcher, extractor, cfg.IndexURL, dir), "PullGolden")
	t.Logf("wrote golden files to %s", dir)
}

// MountGoldenTestServer serves the curzon snapshot and returns a config pointed at it.
func MountGoldenTestServer(t *testing.T) (*httptest.Server, config.Config) {
	t.Helper()
	handler, err := MountGolden(filepath.Join(goldenDir, "curzon"), goldenIndexPath)
	require.NoError(t, err, "MountGolden")
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.BaseURL = server.URL
	cfg.IndexURL = server.URL + goldenIndexPath
	cfg.TimeoutSeconds = int((5 * time.Second).Seconds())
	return server, cfg
}
