package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit_ReadStorage_CachesPerPageAndKey(t *testing.T) {
	h := newHeadless(WithStorageCache(8, time.Minute))
	calls := map[string]int{}
	h.read = func(_ context.Context, pageURL, key string) (string, error) {
		calls[pageURL+" "+key]++
		return `{"page":"` + pageURL + `"}`, nil
	}

	for range 3 {
		raw, err := h.ReadStorage(t.Context(), "https://www.curzon.com/venues/aldgate/", "store")
		require.NoError(t, err)
		assert.JSONEq(t, `{"page":"https://www.curzon.com/venues/aldgate/"}`, raw)
	}
	_, err := h.ReadStorage(t.Context(), "https://www.curzon.com/venues/soho/", "store")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"https://www.curzon.com/venues/aldgate/ store": 1,
		"https://www.curzon.com/venues/soho/ store":    1,
	}, calls)
}

func TestUnit_ReadStorage_DoesNotCacheFailures(t *testing.T) {
	h := newHeadless()
	var calls int
	h.read = func(context.Context, string, string) (string, error) {
		calls++
		return "", ErrStorageMissing
	}

	for range 2 {
		_, err := h.ReadStorage(t.Context(), "https://www.curzon.com/venues/soho/", "store")
		assert.True(t, errors.Is(err, ErrStorageMissing))
	}
	assert.Equal(t, 2, calls)
}

func TestUnit_Close_NeverLaunched(t *testing.T) {
	h := newHeadless()
	require.NoError(t, h.Close())

	err := h.WithPage(t.Context(), "https://www.curzon.com/", nil)
	assert.ErrorIs(t, err, errClosed)
}

func TestUnit_RodLauncherLogger_SplitsLines(t *testing.T) {
	w := &rodLauncherLogger{}
	n, err := w.Write([]byte("Downloading 10%\nDownl"))
	require.NoError(t, err)
	assert.Equal(t, 21, n)
	_, _ = w.Write([]byte("oading 20%\n"))
	assert.Empty(t, w.buf)
}
