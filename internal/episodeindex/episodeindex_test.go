// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package episodeindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nwalsh/imdbsearch/internal/record"
)

const simpsons = "tt0096697"

// writeFixture builds a title.episode.tsv with three seasons of one
// show (13, 22 and 24 episodes), one unnumbered episode, and a second
// show, then creates the index.
func writeFixture(t *testing.T) *Index {
	t.Helper()
	dataDir := t.TempDir()
	indexDir := t.TempDir()

	var sb strings.Builder
	sb.WriteString("tconst\tparentTconst\tseasonNumber\tepisodeNumber\n")
	seasons := map[uint32]int{1: 13, 2: 22, 3: 24}
	for season := uint32(1); season <= 3; season++ {
		for ep := 1; ep <= seasons[season]; ep++ {
			id := fmt.Sprintf("tt07%02d%03d", season, ep)
			if season == 2 && ep == 10 {
				id = "tt0701063"
			}
			fmt.Fprintf(&sb, "%s\t%s\t%d\t%d\n", id, simpsons, season, ep)
		}
	}
	// An episode with unknown position sorts after the numbered ones.
	fmt.Fprintf(&sb, "tt0799999\t%s\t\\N\t\\N\n", simpsons)
	// A different show, to prove ranges don't leak across ids.
	fmt.Fprintf(&sb, "tt0550001\ttt0055000\t1\t1\n")

	path := filepath.Join(dataDir, record.EpisodeFilename)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	require.NoError(t, Create(dataDir, indexDir))

	idx, err := Open(indexDir)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSeasonsGrouping(t *testing.T) {
	idx := writeFixture(t)
	episodes, err := idx.Seasons(simpsons)
	require.NoError(t, err)
	require.Len(t, episodes, 13+22+24+1)

	counts := map[uint32]int{}
	unnumbered := 0
	for _, ep := range episodes {
		require.Equal(t, simpsons, ep.TVShowID)
		if ep.Season == nil {
			unnumbered++
			continue
		}
		counts[*ep.Season]++
	}
	require.Equal(t, map[uint32]int{1: 13, 2: 22, 3: 24}, counts)
	require.Equal(t, 1, unnumbered)
	// Unnumbered episodes sort last.
	require.Nil(t, episodes[len(episodes)-1].Season)
}

func TestSeasonsOrdering(t *testing.T) {
	idx := writeFixture(t)
	episodes, err := idx.Seasons(simpsons)
	require.NoError(t, err)
	var prevSeason, prevEpisode uint32
	for _, ep := range episodes[:13+22+24] {
		require.NotNil(t, ep.Season)
		require.NotNil(t, ep.EpisodeNum)
		if *ep.Season == prevSeason {
			require.Greater(t, *ep.EpisodeNum, prevEpisode)
		} else {
			require.Greater(t, *ep.Season, prevSeason)
		}
		prevSeason, prevEpisode = *ep.Season, *ep.EpisodeNum
	}
}

func TestEpisodesOfOneSeason(t *testing.T) {
	idx := writeFixture(t)
	episodes, err := idx.Episodes(simpsons, 2)
	require.NoError(t, err)
	require.Len(t, episodes, 22)
	for i, ep := range episodes {
		require.Equal(t, uint32(2), *ep.Season)
		require.Equal(t, uint32(i+1), *ep.EpisodeNum)
	}
}

func TestEpisodeReverseLookup(t *testing.T) {
	idx := writeFixture(t)
	ep, ok, err := idx.Episode("tt0701063")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, simpsons, ep.TVShowID)
	require.Equal(t, uint32(2), *ep.Season)
	require.Equal(t, uint32(10), *ep.EpisodeNum)
}

func TestEpisodeMissing(t *testing.T) {
	idx := writeFixture(t)
	_, ok, err := idx.Episode("tt9999999")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSeasonsUnknownShow(t *testing.T) {
	idx := writeFixture(t)
	episodes, err := idx.Seasons("tt9999999")
	require.NoError(t, err)
	require.Empty(t, episodes)
}

func TestKeyRoundTrip(t *testing.T) {
	s, e := uint32(4), uint32(7)
	key := encodeKey("tt0096697", &s, &e, "tt0701063")
	first, season, episode, second, err := decodeKey(key)
	require.NoError(t, err)
	require.Equal(t, "tt0096697", first)
	require.Equal(t, s, *season)
	require.Equal(t, e, *episode)
	require.Equal(t, "tt0701063", second)

	key = encodeKey("tt0096697", nil, nil, "tt0701063")
	_, season, episode, _, err = decodeKey(key)
	require.NoError(t, err)
	require.Nil(t, season)
	require.Nil(t, episode)
}

func TestCreateRejectsReservedSentinel(t *testing.T) {
	dataDir := t.TempDir()
	indexDir := t.TempDir()
	rows := "tconst\tparentTconst\tseasonNumber\tepisodeNumber\n" +
		fmt.Sprintf("tt0000002\ttt0000001\t%d\t1\n", uint32(noNumber))
	path := filepath.Join(dataDir, record.EpisodeFilename)
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	require.Error(t, Create(dataDir, indexDir))
}
