package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/drewfead/curzon-listings/internal"
	"github.com/drewfead/curzon-listings/internal/browser"
	"github.com/drewfead/curzon-listings/internal/capture"
	"github.com/drewfead/curzon-listings/internal/config"
	"github.com/drewfead/curzon-listings/internal/enrichment"
	"github.com/drewfead/curzon-listings/internal/httputil"
	"github.com/drewfead/curzon-listings/internal/output"
	"github.com/drewfead/curzon-listings/internal/scraper"
	"github.com/drewfead/curzon-listings/internal/services"
	"github.com/drewfead/curzon-listings/internal/store"
	"github.com/urfave/cli/v3"
)

const (
	appName      = "curzon-listings"
	envPrefix    = "CURZON_"
	indexSuffix  = "/venues/all-london-cinemas/"
	targetSuffix = "/venues/aldgate/"
)

// syncWriter wraps an *os.File and calls Sync after each Write so the summary
// appears before the process exits, even when stdout is a pipe on Windows.
type syncWriter struct {
	f *os.File
}

func (w *syncWriter) Write(p []byte) (n int, err error) {
	n, err = w.f.Write(p)
	if err != nil {
		return n, err
	}
	_ = w.f.Sync()
	return n, nil
}

// RootOption configures the root command (e.g. for tests).
type RootOption func(*rootConfig)

type rootConfig struct {
	fetcher    internal.Fetcher
	storage    capture.StorageReader
	enrichment []internal.EnrichmentProvider
	now        func() time.Time
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

// WithFetcher replaces the HTTP page fetcher (e.g. with one bound to an httptest.Server client).
func WithFetcher(f internal.Fetcher) RootOption {
	return func(c *rootConfig) {
		c.fetcher = f
	}
}

// WithStorageReader replaces the headless browser used by capture.
func WithStorageReader(r capture.StorageReader) RootOption {
	return func(c *rootConfig) {
		c.storage = r
	}
}

// WithEnrichment adds providers ahead of any configured from --tmdb-api-key.
func WithEnrichment(providers ...internal.EnrichmentProvider) RootOption {
	return func(c *rootConfig) {
		c.enrichment = append(c.enrichment, providers...)
	}
}

func WithClock(now func() time.Time) RootOption {
	return func(c *rootConfig) {
		c.now = now
	}
}

// WithIO redirects stdin, stdout and stderr (logs and diagnostics).
func WithIO(stdin io.Reader, stdout, stderr io.Writer) RootOption {
	return func(c *rootConfig) {
		c.stdin, c.stdout, c.stderr = stdin, stdout, stderr
	}
}

func Root(_ context.Context, opts ...RootOption) (*cli.Command, error) {
	rc := &rootConfig{
		now:    time.Now,
		stdin:  os.Stdin,
		stdout: &syncWriter{f: os.Stdout},
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(rc)
	}

	return &cli.Command{
		Name:      appName,
		Usage:     "scrape today's Curzon listings and load showtimes into a database",
		Writer:    rc.stdout,
		ErrWriter: rc.stderr,
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable verbose logging to stderr",
				Sources: cli.EnvVars(envPrefix + "DEBUG"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "json5 config file; a sibling <name>.local.<ext> overrides it",
				Sources: cli.EnvVars(envPrefix + "CONFIG"),
			},
		}, scrapeFlags(true)...),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelInfo
			if cmd.Bool("debug") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(rc.stderr, &slog.HandlerOptions{Level: level})))
			slog.Debug("root: logging configured", "debug", cmd.Bool("debug"))
			return ctx, nil
		},
		Action: rc.scrape,
		Commands: []*cli.Command{
			{
				Name:   "scrape",
				Usage:  "scrape venues and today's films, write CSV (default)",
				Flags:  scrapeFlags(false),
				Action: rc.scrape,
			},
			{
				Name:  "import",
				Usage: "load start|title|location lines from stdin into the showtime database",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Usage: "SQLite file or libsql:// URL", Sources: cli.EnvVars(envPrefix + "DB")},
					&cli.StringFlag{Name: "db-auth-token", Usage: "auth token for a remote libSQL database", Sources: cli.EnvVars(envPrefix + "DB_AUTH_TOKEN")},
					&cli.BoolFlag{Name: "keep-existing", Usage: "do not clear previously stored records first"},
					&cli.BoolFlag{Name: "strict", Usage: "abort on the first malformed line instead of skipping it"},
				},
				Action: rc.importShowtimes,
			},
			{
				Name:  "capture",
				Usage: "read showtimes from the site's browser store with headless Chrome and print importer lines",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base", Usage: "site base URL"},
					&cli.StringFlag{Name: "target", Usage: "venue page whose store is read first"},
					&cli.StringSliceFlag{Name: "sites", Usage: "allow-listed site ids"},
					&cli.StringFlag{Name: "out", Usage: "write lines to this file instead of stdout"},
				},
				Action: rc.capture,
			},
		},
	}, nil
}

// scrapeFlags builds fresh flag instances; on the root they are local so the
// subcommands define their own --base and --out.
func scrapeFlags(local bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "index", Usage: "venue index page URL", Local: local},
		&cli.StringFlag{Name: "base", Usage: "site base URL used to resolve links", Local: local},
		&cli.StringFlag{Name: "out", Usage: "CSV output path", Local: local},
		&cli.StringFlag{Name: "json", Usage: "also write the full results as JSON to this path", Local: local},
		&cli.StringFlag{
			Name:    "tmdb-api-key",
			Usage:   "look films up on TMDB",
			Sources: cli.EnvVars(envPrefix + "TMDB_API_KEY"),
			Local:   local,
		},
	}
}

// loadConfig layers defaults, the --config file and the flags the command defines.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	var overrides config.Config
	str := func(name string) string {
		if !hasFlag(cmd, name) {
			return ""
		}
		return cmd.String(name)
	}
	overrides.BaseURL = strings.TrimRight(str("base"), "/")
	overrides.IndexURL = str("index")
	if overrides.BaseURL != "" && overrides.IndexURL == "" {
		overrides.IndexURL = overrides.BaseURL + indexSuffix
	}
	overrides.JSONPath = str("json")
	overrides.TMDBAPIKey = str("tmdb-api-key")
	overrides.Database = str("db")
	overrides.DatabaseAuthToken = str("db-auth-token")
	overrides.Capture.TargetURL = str("target")
	if overrides.BaseURL != "" && overrides.Capture.TargetURL == "" {
		overrides.Capture.TargetURL = overrides.BaseURL + targetSuffix
	}
	if hasFlag(cmd, "sites") && cmd.IsSet("sites") {
		overrides.Capture.Sites = cmd.StringSlice("sites")
	}
	if cmd.Name != "capture" {
		overrides.CSVPath = str("out")
	}
	return config.Load(cmd.String("config"), overrides)
}

func hasFlag(cmd *cli.Command, name string) bool {
	for _, f := range cmd.Flags {
		for _, n := range f.Names() {
			if n == name {
				return true
			}
		}
	}
	return false
}

func (rc *rootConfig) scrape(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fetcher := rc.fetcher
	if fetcher == nil {
		fetcher = httputil.Fetcher(cfg.UserAgent, cfg.AcceptLanguage, cfg.Timeout())
	}
	providers := append([]internal.EnrichmentProvider(nil), rc.enrichment...)
	if cfg.TMDBAPIKey != "" {
		tmdbClient, err := enrichment.TMDB(cfg.TMDBAPIKey)
		if err != nil {
			slog.Warn("TMDB enrichment not configured", "reason", "client init failed", "error", err)
		} else {
			providers = append(providers, tmdbClient)
			slog.Info("TMDB enrichment configured")
		}
	}

	svc, err := services.Listings(cfg, fetcher,
		services.ListingsWithClock(rc.now),
		services.ListingsWithEnrichment(providers...),
	)
	if err != nil {
		return err
	}
	results, err := svc.Run(ctx)
	if errors.Is(err, scraper.ErrNoVenues) {
		slog.Error("root: no venues parsed", "index", cfg.IndexURL)
		return &statusError{status: exitNoVenues, message: "No venues found on index page.", err: err}
	}
	if err != nil {
		return err
	}

	output.WriteSummary(rc.stdout, results)
	if err := output.WriteCSVFile(cfg.CSVPath, results); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(rc.stdout, "\nWrote %s\n", cfg.CSVPath)
	if cfg.JSONPath != "" {
		if err := output.WriteJSONFile(cfg.JSONPath, results); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(rc.stdout, "Wrote %s\n", cfg.JSONPath)
	}
	slog.Info("root: csv written", "venues", len(results), "path", cfg.CSVPath)
	return nil
}

func (rc *rootConfig) importShowtimes(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := store.Open(ctx, cfg.Database, cfg.DatabaseAuthToken)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	res, err := s.Import(ctx, rc.stdin, store.ImportOptions{
		KeepExisting: cmd.Bool("keep-existing"),
		Strict:       cmd.Bool("strict"),
	})
	if err != nil {
		return err
	}
	counts, err := s.Counts(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(rc.stdout, "Imported %d showtimes (%d skipped): %d films, %d locations, %d showtimes stored\n",
		res.Imported, len(res.Skipped), counts.Films, counts.Locations, counts.Showtimes)
	return nil
}

func (rc *rootConfig) capture(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reader := rc.storage
	if reader == nil {
		headless := browser.Headless(browser.WithSettle(time.Duration(cfg.Capture.SettleMS) * time.Millisecond))
		defer func() { _ = headless.Close() }()
		reader = headless
	}

	showtimes, err := capture.New(reader, cfg).Run(ctx)
	if err != nil {
		return err
	}

	out := rc.stdout
	if path := cmd.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := capture.WriteLines(out, showtimes); err != nil {
		return fmt.Errorf("write showtimes: %w", err)
	}
	slog.Info("root: capture finished", "showtimes", len(showtimes))
	return nil
}
