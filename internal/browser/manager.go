package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PageStableTimeout is the timeout used when waiting for page stability or running eval scripts.
var PageStableTimeout = 30 * time.Second

var errClosed = errors.New("browser closed")

// ErrStorageMissing means the page never wrote the requested localStorage key.
var ErrStorageMissing = errors.New("storage key not set")

// Interface loads pages in a real browser. Implementations may reuse a single
// browser process (e.g. headlessBrowser).
type Interface interface {
	WithPage(ctx context.Context, url string, fn func(*rod.Page) error) error
	// ReadStorage loads pageURL and returns the raw localStorage value under key,
	// waiting up to the settle time for the page's scripts to write it.
	ReadStorage(ctx context.Context, pageURL, key string) (string, error)

	io.Closer
}

type Option func(*headlessBrowser)

// WithSettle bounds how long ReadStorage waits for a key to appear.
func WithSettle(d time.Duration) Option {
	return func(h *headlessBrowser) {
		if d > 0 {
			h.settle = d
		}
	}
}

// WithStorageCache sizes the (page URL, key) -> value cache.
func WithStorageCache(maxEntries int, ttl time.Duration) Option {
	return func(h *headlessBrowser) {
		h.cache = expirable.NewLRU[string, string](maxEntries, nil, ttl)
	}
}

// headlessBrowser manages a single rod browser instance. A channel of capacity 1 serializes
// access: callers receive the browser, use it, then send it back so only one WithPage runs at a time.
type headlessBrowser struct {
	initOnce sync.Once
	initErr  error
	ch       chan *rod.Browser
	settle   time.Duration
	cache    *expirable.LRU[string, string]

	// read does the uncached storage read; tests replace it.
	read func(ctx context.Context, pageURL, key string) (string, error)
}

// Headless returns a Browser that launches one headless chrome on first use and reuses it.
func Headless(opts ...Option) Interface {
	h := newHeadless(opts...)
	h.read = h.readStorage
	return h
}

func newHeadless(opts ...Option) *headlessBrowser {
	h := &headlessBrowser{
		ch:     make(chan *rod.Browser, 1),
		settle: 3 * time.Second,
		cache:  expirable.NewLRU[string, string](32, nil, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *headlessBrowser) launch() {
	h.initOnce.Do(func() {
		u, err := launcher.New().Logger(newRodLauncherLogger()).Leakless(false).Launch()
		if err != nil {
			h.initErr = fmt.Errorf("launch browser: %w", err)
			close(h.ch)
			return
		}
		browser := rod.New().ControlURL(u)
		if err := browser.Connect(); err != nil {
			h.initErr = fmt.Errorf("connect to browser: %w", err)
			close(h.ch)
			return
		}
		h.ch <- browser
	})
}

func (h *headlessBrowser) Close() error {
	launched := true
	h.initOnce.Do(func() {
		launched = false
		h.initErr = errClosed
		close(h.ch)
	})
	if !launched {
		return nil
	}
	browser, ok := <-h.ch
	if !ok {
		return h.initErr
	}
	return browser.Close()
}

// WithPage receives the shared browser from the channel, creates a page at url, runs fn, then sends the browser back.
// Serializes with other callers (one WithPage at a time). The page is closed when fn returns.
func (h *headlessBrowser) WithPage(ctx context.Context, url string, fn func(page *rod.Page) error) error {
	h.launch()
	if h.initErr != nil {
		return h.initErr
	}
	browser, ok := <-h.ch
	if !ok {
		return h.initErr
	}
	defer func() { h.ch <- browser }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer page.MustClose()

	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := rod.Try(func() {
		page.Timeout(PageStableTimeout).MustWaitStable()
	}); err != nil {
		return fmt.Errorf("wait for page stable: %w", err)
	}

	return fn(page)
}

func storageCacheKey(pageURL, key string) string {
	return pageURL + "\x00" + key
}

func (h *headlessBrowser) ReadStorage(ctx context.Context, pageURL, key string) (string, error) {
	cacheKey := storageCacheKey(pageURL, key)
	if raw, ok := h.cache.Get(cacheKey); ok {
		slog.Debug("browser: storage cache hit", "url", pageURL, "key", key)
		return raw, nil
	}
	raw, err := h.read(ctx, pageURL, key)
	if err != nil {
		return "", err
	}
	h.cache.Add(cacheKey, raw)
	return raw, nil
}

const (
	storageSetScript = `(key) => localStorage.getItem(key) !== null`
	storageGetScript = `(key) => localStorage.getItem(key)`
)

func (h *headlessBrowser) readStorage(ctx context.Context, pageURL, key string) (string, error) {
	var raw string
	err := h.WithPage(ctx, pageURL, func(page *rod.Page) error {
		if err := page.Timeout(h.settle).Wait(rod.Eval(storageSetScript, key)); err != nil {
			slog.Debug("browser: storage key did not settle", "url", pageURL, "key", key, "error", err)
		}
		result, err := page.Timeout(PageStableTimeout).Eval(storageGetScript, key)
		if err != nil {
			return fmt.Errorf("read storage %s: %w", key, err)
		}
		if result.Value.Nil() {
			return fmt.Errorf("%w: %s at %s", ErrStorageMissing, key, pageURL)
		}
		raw = result.Value.Str()
		return nil
	})
	return raw, err
}

// rodLauncherLogger is an io.Writer that forwards launcher output (e.g. download progress) to slog at debug level.
type rodLauncherLogger struct {
	buf []byte
}

func (w *rodLauncherLogger) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
		if line != "" {
			slog.Debug("rod launcher", "message", line)
		}
	}
	return len(p), nil
}

func newRodLauncherLogger() io.Writer {
	return &rodLauncherLogger{}
}
