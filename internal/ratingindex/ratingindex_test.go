// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package ratingindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nwalsh/imdbsearch/internal/record"
)

const fixture = `tconst	averageRating	numVotes
tt0000001	5.8	1356
tt0000002	6.1	198
tt0000012	7.4	10212
`

func buildFixture(t *testing.T) *Index {
	t.Helper()
	dataDir := t.TempDir()
	indexDir := t.TempDir()
	path := filepath.Join(dataDir, record.RatingsFilename)
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	require.NoError(t, Create(dataDir, indexDir))
	idx, err := Open(indexDir)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestRatingLookup(t *testing.T) {
	idx := buildFixture(t)
	r, ok, err := idx.Rating("tt0000001")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float32(5.8), r.Value)
	require.Equal(t, uint32(1356), r.Votes)
}

func TestRatingMissing(t *testing.T) {
	idx := buildFixture(t)
	_, ok, err := idx.Rating("tt9999999")
	require.NoError(t, err)
	require.False(t, ok)
}

// tt000001 is absent but is a strict prefix of tt0000012; a lookup for
// an absent id that prefixes a present one must not return the longer
// id's rating.
func TestRatingPrefixConfusion(t *testing.T) {
	idx := buildFixture(t)
	_, ok, err := idx.Rating("tt000001")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKeyRoundTrip(t *testing.T) {
	want := record.Rating{ID: "tt0000001", Value: 5.8, Votes: 1356}
	got, err := decodeKey(encodeKey(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}
