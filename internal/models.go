package internal

// Venue is a cinema location discovered on the venue index page.
// URL is canonical: absolute, no query or fragment, exactly one trailing slash.
type Venue struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListingResult is the transient per-venue unit handed to output sinks.
type ListingResult struct {
	Venue  Venue                `json:"venue"`
	Date   string               `json:"date"`
	Films  []string             `json:"films"`
	Movies map[string]MovieInfo `json:"movies,omitempty"` // keyed by film title, filled by enrichment
}

type MovieInfo struct {
	Title    string `json:"title"`
	Overview string `json:"overview"`
	Links    []Link `json:"links"`
}

type Link struct {
	Href    string `json:"href"`
	Display string `json:"display"`
}
