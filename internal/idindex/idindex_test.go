// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package idindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "title.fst")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Insert("tt0000001", 100))
	require.NoError(t, w.Insert("tt0000002", 250))
	require.NoError(t, w.Insert("tt0111161", 9000))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	v, ok, err := r.Get("tt0000002")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(250), v)

	_, ok, err = r.Get("tt0000003")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertOutOfOrderFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "title.fst")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Insert("tt0000002", 1))
	require.Error(t, w.Insert("tt0000001", 2))
	w.Close()
}
