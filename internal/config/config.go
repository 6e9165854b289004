package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Config holds every tunable of a run. Build it once with Load (or Default) and
// pass it by value; nothing reads package-level state.
type Config struct {
	BaseURL        string `json:"base_url"`
	IndexURL       string `json:"index_url"`
	UserAgent      string `json:"user_agent"`
	AcceptLanguage string `json:"accept_language"`
	TimeoutSeconds int    `json:"timeout_seconds"`

	// PayloadVar is the name in the `window.<name> = {...}` assignment carrying the structured payload.
	PayloadVar string   `json:"payload_var"`
	NameKeys   []string `json:"name_keys"`
	VenuePath  string   `json:"venue_path"`

	FilmsPath        string   `json:"films_path"`
	RejectPrefixes   []string `json:"reject_prefixes"`
	HeadingTags      []string `json:"heading_tags"`
	HeadingLookahead int      `json:"heading_lookahead"`
	HeadingMaxLength int      `json:"heading_max_length"`

	Timezone string `json:"timezone"`
	CSVPath  string `json:"csv_path"`
	JSONPath string `json:"json_path"`

	Database          string `json:"database"`
	DatabaseAuthToken string `json:"database_auth_token"`

	TMDBAPIKey string `json:"tmdb_api_key"`

	Capture Capture `json:"capture"`
}

type Capture struct {
	TargetURL string   `json:"target_url"`
	StoreKey  string   `json:"store_key"`
	Sites     []string `json:"sites"`
	SettleMS  int      `json:"settle_ms"`
}

const (
	defaultBaseURL = "https://www.curzon.com"
	defaultUserAgent = "Mozilla/5.0 (compatible; CurzonScraper/1.0; +https://example.org)"
)

func Default() Config {
	return Config{
		BaseURL:          defaultBaseURL,
		IndexURL:         defaultBaseURL + "/venues/all-london-cinemas/",
		UserAgent:        defaultUserAgent,
		AcceptLanguage:   "en-GB,en;q=0.7",
		TimeoutSeconds:   20,
		PayloadVar:       "pageData",
		NameKeys:         []string{"name", "title", "label", "text"},
		VenuePath:        "/venues/",
		FilmsPath:        "/films/",
		RejectPrefixes:   []string{"book", "trailer", "more"},
		HeadingTags:      []string{"h2", "h3", "h4"},
		HeadingLookahead: 3,
		HeadingMaxLength: 120,
		Timezone:         "Europe/London",
		CSVPath:          "curzon_today.csv",
		Database:         "curzon-showtimes.db",
		Capture: Capture{
			TargetURL: defaultBaseURL + "/venues/aldgate/",
			StoreKey:  "VistaOmnichannelComponents::browsing-domain-store",
			Sites:     []string{"MAY1", "BLO1", "CAM1", "HOX1", "SOH1", "ALD1", "VIC1"},
			SettleMS:  3000,
		},
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Location resolves Timezone; Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today is the current date in the configured timezone, formatted YYYY-MM-DD.
func (c Config) Today(now time.Time) string {
	return now.In(c.Location()).Format(time.DateOnly)
}

var ErrInvalidConfig = errors.New("invalid config")

func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return fmt.Errorf("%w: base_url is required", ErrInvalidConfig)
	case strings.TrimSpace(c.IndexURL) == "":
		return fmt.Errorf("%w: index_url is required", ErrInvalidConfig)
	case c.TimeoutSeconds <= 0:
		return fmt.Errorf("%w: timeout_seconds must be positive", ErrInvalidConfig)
	case c.HeadingLookahead <= 0:
		return fmt.Errorf("%w: heading_lookahead must be positive", ErrInvalidConfig)
	case strings.TrimSpace(c.VenuePath) == "":
		return fmt.Errorf("%w: venue_path is required", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return nil
}

// Load returns Default overlaid with the json5 file at path (if any), its
// <name>.local.<ext> sibling (if present), and finally overrides.
// Zero-valued override fields leave the lower layer untouched.
func Load(path string, overrides Config) (Config, error) {
	cfg := Default()
	if path != "" {
		fromFile, err := readLayered(path)
		if err != nil {
			return Config{}, err
		}
		if err := mergo.Merge(&cfg, fromFile, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("merge config file: %w", err)
		}
	}
	if err := mergo.Merge(&cfg, overrides, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("merge flag overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readLayered(path string) (Config, error) {
	var out Config
	contents, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json5.Unmarshal(contents, &out); err != nil {
		return out, fmt.Errorf("parse config %s: %w", path, err)
	}

	localPath := localVariant(path)
	localContents, err := os.ReadFile(localPath)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("read config %s: %w", localPath, err)
	}
	var local Config
	if err := json5.Unmarshal(localContents, &local); err != nil {
		return out, fmt.Errorf("parse config %s: %w", localPath, err)
	}
	if err := mergo.Merge(&out, local, mergo.WithOverride); err != nil {
		return out, fmt.Errorf("merge config %s: %w", localPath, err)
	}
	slog.Debug("config: merged local overrides", "local", localPath)
	return out, nil
}

// localVariant maps dir/name.ext to dir/name.local.ext.
func localVariant(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}
