package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit_Fetcher_SendsHeadersAndParses(t *testing.T) {
	var gotUA, gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>Curzon</h1></body></html>`))
	}))
	t.Cleanup(server.Close)

	f := Fetcher("test-agent/1.0", "en-GB", 5*time.Second, FetcherWithClient(server.Client()))
	doc, err := f.Fetch(t.Context(), server.URL+"/venues/")
	require.NoError(t, err)

	assert.Equal(t, "Curzon", doc.Find("h1").Text())
	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Equal(t, "en-GB", gotLang)
}

func TestUnit_Fetcher_NonSuccessIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	f := Fetcher("ua", "en", 5*time.Second, FetcherWithClient(server.Client()))
	_, err := f.Fetch(t.Context(), server.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr), "error should be a FetchError: %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	assert.Equal(t, server.URL, fetchErr.URL)
}

func TestUnit_Fetcher_ConnectionFailureIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f := Fetcher("ua", "en", time.Second)
	_, err := f.Fetch(t.Context(), url)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
	assert.NotNil(t, fetchErr.Unwrap())
}

func TestUnit_Fetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)

	f := Fetcher("ua", "en", 50*time.Millisecond, FetcherWithClient(server.Client()))
	_, err := f.Fetch(t.Context(), server.URL)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
}
