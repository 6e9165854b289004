package httputil

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheEntries = 256
	defaultCacheTTL     = 30 * time.Minute
)

// CacheTransport is an http.RoundTripper that memoizes successful GET responses
// by URL for TTL. It backs lookup APIs that are queried with the same film title
// many times in one run (the same film plays at several venues); page fetches
// never go through it.
type CacheTransport struct {
	Base http.RoundTripper

	// MaxEntries bounds the LRU; zero means defaultCacheEntries.
	MaxEntries int
	// TTL is how long an entry stays valid; zero means defaultCacheTTL.
	TTL time.Duration

	initOnce sync.Once
	cache    *expirable.LRU[string, *cachedResponse]
}

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

func (t *CacheTransport) ensureCache() {
	t.initOnce.Do(func() {
		size := t.MaxEntries
		if size <= 0 {
			size = defaultCacheEntries
		}
		ttl := t.TTL
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		t.cache = expirable.NewLRU[string, *cachedResponse](size, nil, ttl)
	})
}

// RoundTrip implements http.RoundTripper.
func (t *CacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.ensureCache()
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Method != http.MethodGet {
		return base.RoundTrip(req)
	}

	key := req.URL.String()
	if entry, ok := t.cache.Get(key); ok {
		slog.Debug("cache: hit", "url", key)
		return entry.response(req), nil
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	entry := &cachedResponse{status: resp.StatusCode, header: resp.Header.Clone(), body: body}
	t.cache.Add(key, entry)
	slog.Debug("cache: miss", "url", key)
	return entry.response(req), nil
}

// Len reports the number of live entries.
func (t *CacheTransport) Len() int {
	t.ensureCache()
	return t.cache.Len()
}

func (c *cachedResponse) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        http.StatusText(c.status),
		StatusCode:    c.status,
		Header:        c.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(c.body)),
		ContentLength: int64(len(c.body)),
		Request:       req,
	}
}
