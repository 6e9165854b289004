package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const showtimes = `
2026-10-15T13:10:00+01:00|Oppenheimer|SOH1
2026-10-15T14:30:00+01:00|Anora|ALD1
2026-10-15T18:05:00+01:00|Flow|ALD1

2026-10-15T20:45:00+01:00| Anora |SOH1
2026-10-15T14:30:00+01:00|Anora|ALD1
`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.Context(), filepath.Join(t.TempDir(), "showtimes.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUnit_ParseLine(t *testing.T) {
	row, err := ParseLine("2024-01-01T10:00|Dune|SOH1")
	require.NoError(t, err)
	assert.Equal(t, Row{StartsAt: "2024-01-01T10:00", Title: "Dune", Location: "SOH1"}, row)

	row, err = ParseLine(" 2024-01-01T10:00 |  Dune: Part Two | SOH1 ")
	require.NoError(t, err)
	assert.Equal(t, "Dune: Part Two", row.Title)

	for _, bad := range []string{"a|b", "a||c", "a|b|c|d", " |b|c", "no pipes"} {
		_, err := ParseLine(bad)
		var formatErr *FormatError
		assert.ErrorAs(t, err, &formatErr, "ParseLine(%q)", bad)
	}
}

func TestUnit_Import_IsIdempotent(t *testing.T) {
	s := openTestStore(t)

	for range 2 {
		res, err := s.Import(t.Context(), strings.NewReader(showtimes), ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 5, res.Imported)
		assert.Empty(t, res.Skipped)

		counts, err := s.Counts(t.Context())
		require.NoError(t, err)
		assert.Equal(t, Counts{Films: 3, Locations: 2, Showtimes: 4}, counts)
	}
}

func TestUnit_Import_ClearsUnlessKeepExisting(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Import(t.Context(), strings.NewReader(showtimes), ImportOptions{})
	require.NoError(t, err)

	extra := "2026-10-16T12:00:00+01:00|Past Lives|BLO1\n"
	_, err = s.Import(t.Context(), strings.NewReader(extra), ImportOptions{KeepExisting: true})
	require.NoError(t, err)
	counts, err := s.Counts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Counts{Films: 4, Locations: 3, Showtimes: 5}, counts)

	_, err = s.Import(t.Context(), strings.NewReader(extra), ImportOptions{})
	require.NoError(t, err)
	counts, err = s.Counts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Counts{Films: 1, Locations: 1, Showtimes: 1}, counts)
}

func TestUnit_Import_LenientSkipsMalformedLines(t *testing.T) {
	s := openTestStore(t)
	input := "2026-10-15T13:10|Oppenheimer|SOH1\nbroken line\n2026-10-15T14:30||ALD1\n2026-10-15T18:05|Flow|ALD1\n"

	res, err := s.Import(t.Context(), strings.NewReader(input), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, 2, res.Skipped[0].Number)
	assert.Equal(t, 3, res.Skipped[1].Number)

	counts, err := s.Counts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Showtimes)
}

func TestUnit_Import_StrictWritesNothing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Import(t.Context(), strings.NewReader(showtimes), ImportOptions{})
	require.NoError(t, err)

	input := "2026-10-16T13:10|Oppenheimer|SOH1\n2026-10-16T14:30|Anora\n"
	_, err = s.Import(t.Context(), strings.NewReader(input), ImportOptions{Strict: true})
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 2, formatErr.Number)

	counts, err := s.Counts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Counts{Films: 3, Locations: 2, Showtimes: 4}, counts, "earlier data must survive a rejected import")
}

func TestUnit_Open_RejectsEmptyPath(t *testing.T) {
	_, err := Open(t.Context(), "  ", "")
	assert.Error(t, err)
}

func TestUnit_IsRemote(t *testing.T) {
	assert.True(t, isRemote("libsql://curzon-example.turso.io"))
	assert.True(t, isRemote("https://curzon-example.turso.io"))
	assert.False(t, isRemote("curzon-showtimes.db"))
	assert.False(t, isRemote("file:curzon-showtimes.db"))
}
