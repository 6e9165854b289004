// Package venueurl decides which links are venue pages and puts them in a
// single canonical form: absolute, no query or fragment, exactly one trailing slash.
package venueurl

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Rules struct {
	base  *url.URL
	shape *regexp.Regexp
}

// New builds Rules for links found on pages under baseURL. venuePrefix is the
// directory holding venue pages, e.g. "/venues/"; a venue is exactly one
// segment below it.
func New(baseURL, venuePrefix string) (Rules, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return Rules{}, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if !base.IsAbs() {
		return Rules{}, fmt.Errorf("base url %q is not absolute", baseURL)
	}
	dir := strings.TrimRight(venuePrefix, "/")
	shape, err := regexp.Compile("^" + regexp.QuoteMeta(dir) + "/[^/]+$")
	if err != nil {
		return Rules{}, fmt.Errorf("venue prefix %q: %w", venuePrefix, err)
	}
	return Rules{base: base, shape: shape}, nil
}

func (r Rules) resolve(raw string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return r.base.ResolveReference(ref), nil
}

// IsVenue reports whether raw, resolved against the base URL, points at a
// venue page. Query, fragment and trailing slashes are ignored.
func (r Rules) IsVenue(raw string) bool {
	u, err := r.resolve(raw)
	if err != nil {
		return false
	}
	return r.shape.MatchString(strings.TrimRight(u.Path, "/"))
}

// Normalize returns the canonical form of raw. Normalize(Normalize(u)) == Normalize(u).
func (r Rules) Normalize(raw string) (string, error) {
	u, err := r.resolve(raw)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", raw, err)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawPath = ""
	return u.String(), nil
}

var titleCaser = cases.Title(language.English)

// DeriveName returns name trimmed, or when that is empty a display name made
// from the last path segment of venueURL: "bloomsbury-x" becomes "Bloomsbury X".
func DeriveName(name, venueURL string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	u, err := url.Parse(venueURL)
	if err != nil {
		return ""
	}
	segment := path.Base(strings.TrimRight(u.Path, "/"))
	if segment == "." || segment == "/" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(segment, "-", " "))
}

// WithDate sets the date query parameter on rawURL, replacing any existing
// value and keeping the other parameters.
func WithDate(rawURL, date string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("dated variant of %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("date", date)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
