// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nwalsh/imdbsearch/internal/buildstate"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/nameindex"
	"github.com/nwalsh/imdbsearch/internal/record"
)

const basicsFixture = `tconst	titleType	primaryTitle	originalTitle	isAdult	startYear	endYear	runtimeMinutes	genres
tt0000001	short	Carmencita	Carmencita	0	1894	\N	1	Documentary,Short
tt0096697	tvSeries	The Simpsons	The Simpsons	0	1989	\N	22	Animation,Comedy
tt0111161	movie	The Shawshank Redemption	The Shawshank Redemption	0	1994	\N	142	Drama
tt0133093	movie	The Matrix	The Matrix	0	1999	\N	136	Action,Sci-Fi
tt0701063	tvEpisode	Bart Gets an F	Bart Gets an F	0	1990	\N	23	Animation,Comedy
tt0701064	tvEpisode	Simpson and Delilah	Simpson and Delilah	0	1990	\N	23	Animation,Comedy
`

const akasFixture = `titleId	ordering	title	region	language	types	attributes	isOriginalTitle
tt0111161	1	Sueño de fuga	MX	\N	imdbDisplay	\N	0
tt0133093	1	Matrix	DE	\N	imdbDisplay	\N	0
`

const episodeFixture = `tconst	parentTconst	seasonNumber	episodeNumber
tt0701063	tt0096697	2	1
tt0701064	tt0096697	2	2
`

const ratingsFixture = `tconst	averageRating	numVotes
tt0000001	5.8	1356
tt0111161	9.3	2343110
tt0133093	8.7	1666711
`

// buildTestIndex writes the TSV fixtures and creates a full index.
func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	dataDir := t.TempDir()
	indexDir := t.TempDir()
	files := map[string]string{
		record.BasicsFilename:  basicsFixture,
		record.AkasFilename:    akasFixture,
		record.EpisodeFilename: episodeFixture,
		record.RatingsFilename: ratingsFixture,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), []byte(content), 0o644))
	}
	idx, err := Create(context.Background(), dataDir, indexDir)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestCreateOpenRoundTrip(t *testing.T) {
	idx := buildTestIndex(t)
	for _, id := range []string{"tt0000001", "tt0096697", "tt0111161", "tt0133093", "tt0701063", "tt0701064"} {
		title, ok, err := idx.Title(id)
		require.NoError(t, err)
		require.True(t, ok, "title %s", id)
		require.Equal(t, id, title.ID)
	}
	_, ok, err := idx.Title("tt9999999")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEntityAssembly(t *testing.T) {
	idx := buildTestIndex(t)

	ent, ok, err := idx.Entity("tt0701063")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record.TVEpisode, ent.Title.Kind)
	require.NotNil(t, ent.Episode)
	require.Equal(t, "tt0096697", ent.Episode.TVShowID)
	require.Nil(t, ent.Rating)

	ent, ok, err = idx.Entity("tt0111161")
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, ent.Episode)
	require.NotNil(t, ent.Rating)
	require.Equal(t, uint32(2343110), ent.Rating.Votes)
}

func TestSearchByPrimaryName(t *testing.T) {
	idx := buildTestIndex(t)
	results, err := idx.Search(nameindex.NewQuery("shawshank"))
	require.NoError(t, err)
	require.NotZero(t, results.Len())
	require.Equal(t, "tt0111161", results.Items()[0].Value().ID)
	require.Equal(t, 1.0, results.Items()[0].Score())
}

func TestSearchByAlternateName(t *testing.T) {
	idx := buildTestIndex(t)
	// "Sueño de fuga" is indexed only through the AKA file.
	results, err := idx.Search(nameindex.NewQuery("sueño de fuga"))
	require.NoError(t, err)
	require.NotZero(t, results.Len())
	require.Equal(t, "tt0111161", results.Items()[0].Value().ID)
}

func TestSearchDedupAcrossNames(t *testing.T) {
	idx := buildTestIndex(t)
	// "matrix" matches both the primary name and the German AKA of the
	// same title; only one result may come back for it.
	results, err := idx.Search(nameindex.NewQuery("matrix"))
	require.NoError(t, err)
	seen := map[string]int{}
	for _, r := range results.Items() {
		seen[r.Value().ID]++
	}
	require.Equal(t, 1, seen["tt0133093"])
}

func TestAKARecords(t *testing.T) {
	idx := buildTestIndex(t)
	iter, err := idx.AKARecords("tt0133093")
	require.NoError(t, err)
	akas, err := iter.Collect()
	require.NoError(t, err)
	require.Len(t, akas, 1)
	require.Equal(t, "Matrix", akas[0].Name)
}

func TestEpisodeBrowsing(t *testing.T) {
	idx := buildTestIndex(t)
	episodes, err := idx.Seasons("tt0096697")
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	episodes, err = idx.Episodes("tt0096697", 2)
	require.NoError(t, err)
	require.Len(t, episodes, 2)

	ep, ok, err := idx.Episode("tt0701063")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tt0096697", ep.TVShowID)
}

func TestVersionMismatch(t *testing.T) {
	idx := buildTestIndex(t)
	dataDir, indexDir := idx.DataDir(), idx.IndexDir()
	require.NoError(t, os.WriteFile(filepath.Join(indexDir, ConfigFilename), []byte(`{"version": 99}`), 0o644))
	_, err := Open(dataDir, indexDir)
	var vmErr *indexerrors.VersionMismatchError
	require.ErrorAs(t, err, &vmErr)
	require.Equal(t, Version, vmErr.Expected)
	require.Equal(t, uint64(99), vmErr.Got)
}

func TestOpenMissingIndex(t *testing.T) {
	_, err := Open(t.TempDir(), t.TempDir())
	require.Error(t, err)
}

func TestCreatePublishesPhaseEvents(t *testing.T) {
	dataDir := t.TempDir()
	indexDir := t.TempDir()
	files := map[string]string{
		record.BasicsFilename:  basicsFixture,
		record.AkasFilename:    akasFixture,
		record.EpisodeFilename: episodeFixture,
		record.RatingsFilename: ratingsFixture,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), []byte(content), 0o644))
	}

	bus := buildstate.NewBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	completed := make(map[buildstate.Phase]bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Completed {
				completed[ev.Phase] = true
			}
			if len(completed) == 4 {
				return
			}
		}
	}()

	idx, err := NewBuilder().Bus(bus).Create(ctx, dataDir, indexDir)
	require.NoError(t, err)
	defer idx.Close()
	<-done
	for _, phase := range []buildstate.Phase{
		buildstate.PhaseRating, buildstate.PhaseEpisode, buildstate.PhaseAKA, buildstate.PhaseNames,
	} {
		require.True(t, completed[phase], "phase %s", phase)
	}
}

func TestCreateSkipsCheckpointedPhases(t *testing.T) {
	dataDir := t.TempDir()
	indexDir := t.TempDir()
	files := map[string]string{
		record.BasicsFilename:  basicsFixture,
		record.AkasFilename:    akasFixture,
		record.EpisodeFilename: episodeFixture,
		record.RatingsFilename: ratingsFixture,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), []byte(content), 0o644))
	}

	tracker, err := buildstate.OpenTracker(filepath.Join(t.TempDir(), "checkpoints"))
	require.NoError(t, err)
	defer tracker.Close()

	ctx := context.Background()
	idx, err := NewBuilder().Tracker(tracker).Create(ctx, dataDir, indexDir)
	require.NoError(t, err)
	idx.Close()

	for _, phase := range []buildstate.Phase{
		buildstate.PhaseRating, buildstate.PhaseEpisode, buildstate.PhaseAKA, buildstate.PhaseNames,
	} {
		done, err := tracker.Done(ctx, phase)
		require.NoError(t, err)
		require.True(t, done, "phase %s", phase)
	}

	// A second build with every phase checkpointed rewrites nothing
	// but still produces an openable index.
	idx, err = NewBuilder().Tracker(tracker).Create(ctx, dataDir, indexDir)
	require.NoError(t, err)
	defer idx.Close()
	_, ok, err := idx.Title("tt0111161")
	require.NoError(t, err)
	require.True(t, ok)
}
