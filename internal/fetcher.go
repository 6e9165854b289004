package internal

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

type Fetcher interface {
	// Fetch performs one GET of url and returns the parsed document.
	// Failures are reported as *httputil.FetchError; there is no retry.
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}
