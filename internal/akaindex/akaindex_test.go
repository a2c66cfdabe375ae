// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package akaindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nwalsh/imdbsearch/internal/record"
)

const fixture = `titleId	ordering	title	region	language	types	attributes	isOriginalTitle
tt0000001	1	Carmencita	\N	\N	original	\N	1
tt0000001	2	Carmencita - spanyol tánc	HU	\N	imdbDisplay	\N	0
tt0000001	3	Καρμενσίτα	GR	\N	imdbDisplay	\N	0
tt0000003	1	Pauvre Pierrot	\N	\N	original	\N	1
`

func buildFixture(t *testing.T) *Index {
	t.Helper()
	dataDir := t.TempDir()
	indexDir := t.TempDir()
	path := filepath.Join(dataDir, record.AkasFilename)
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	require.NoError(t, Create(dataDir, indexDir))
	idx, err := Open(dataDir, indexDir)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestFindBlock(t *testing.T) {
	idx := buildFixture(t)
	iter, err := idx.Find("tt0000001")
	require.NoError(t, err)
	akas, err := iter.Collect()
	require.NoError(t, err)
	require.Len(t, akas, 3)
	require.Equal(t, "Carmencita", akas[0].Name)
	require.Equal(t, int32(1), akas[0].Order)
	require.NotNil(t, akas[0].IsOriginalTitle)
	require.True(t, *akas[0].IsOriginalTitle)
	require.Equal(t, "Καρμενσίτα", akas[2].Name)
	require.Equal(t, "GR", akas[2].Region)
}

func TestFindSingleRowBlock(t *testing.T) {
	idx := buildFixture(t)
	iter, err := idx.Find("tt0000003")
	require.NoError(t, err)
	akas, err := iter.Collect()
	require.NoError(t, err)
	require.Len(t, akas, 1)
	require.Equal(t, "Pauvre Pierrot", akas[0].Name)
}

func TestFindMissing(t *testing.T) {
	idx := buildFixture(t)
	iter, err := idx.Find("tt9999999")
	require.NoError(t, err)
	akas, err := iter.Collect()
	require.NoError(t, err)
	require.Empty(t, akas)
}
