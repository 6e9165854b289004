package httputil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/drewfead/curzon-listings/internal"
	"github.com/go-resty/resty/v2"
)

// FetchError reports a page that could not be fetched: a transport failure
// (timeout, refused connection) or a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

var errUnexpectedStatus = errors.New("unexpected status")

type pageFetcher struct {
	client *resty.Client
}

// FetcherOption applies configuration to a page fetcher.
type FetcherOption func(*pageFetcher)

// FetcherWithClient builds the fetcher on top of client (e.g. httptest.Server.Client() in tests).
func FetcherWithClient(client *http.Client) FetcherOption {
	return func(f *pageFetcher) {
		if client != nil {
			f.client = resty.NewWithClient(client)
		}
	}
}

// Fetcher returns a Page Fetcher sending userAgent and acceptLanguage on every
// request, each bounded by timeout.
func Fetcher(userAgent, acceptLanguage string, timeout time.Duration, opts ...FetcherOption) internal.Fetcher {
	f := &pageFetcher{client: resty.New()}
	for _, opt := range opts {
		opt(f)
	}
	f.client.
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", acceptLanguage)
	return f
}

func (f *pageFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	slog.Debug("fetch: get", "url", url)
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%w: %s", errUnexpectedStatus, resp.Status()),
		}
	}
	body := resp.Body()
	slog.Debug("fetch: done", "url", url, "bytes", len(body))
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}
