// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nwalsh/imdbsearch/internal/nameindex"
	"github.com/nwalsh/imdbsearch/internal/record"
)

func u32(v uint32) *uint32 { return &v }

func TestParseRange(t *testing.T) {
	cases := []struct {
		in   string
		want Range
	}{
		{"5-10", Range{Start: u32(5), End: u32(10)}},
		{"5-", Range{Start: u32(5)}},
		{"-10", Range{End: u32(10)}},
		{"5-5", Range{Start: u32(5), End: u32(5)}},
		{"5", Range{Start: u32(5), End: u32(5)}},
		{"-", Range{}},
	}
	for _, c := range cases {
		got, err := ParseRange(c.in)
		require.NoError(t, err, "range %q", c.in)
		require.Equal(t, c.want, got, "range %q", c.in)
	}
	_, err := ParseRange("abc")
	require.Error(t, err)
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: u32(5), End: u32(10)}
	require.True(t, r.Contains(u32(5)))
	require.True(t, r.Contains(u32(10)))
	require.False(t, r.Contains(u32(4)))
	require.False(t, r.Contains(u32(11)))
	require.False(t, r.Contains(nil))
	require.True(t, Range{}.Contains(nil))
	require.True(t, Range{}.Contains(u32(7)))
}

func TestParseQueryFreeText(t *testing.T) {
	q, err := ParseQuery("foo bar baz")
	require.NoError(t, err)
	want := NewQuery()
	want.Name = "foo bar baz"
	require.Equal(t, want, q)
}

func TestParseQueryKinds(t *testing.T) {
	q, err := ParseQuery("{movie} {tvshow}")
	require.NoError(t, err)
	require.Equal(t, []record.TitleKind{record.Movie, record.TVSeries}, q.Kinds)

	// Adjacent directives need no whitespace.
	q, err = ParseQuery("{movie}{tvshow}")
	require.NoError(t, err)
	require.Equal(t, []record.TitleKind{record.Movie, record.TVSeries}, q.Kinds)

	// Directives interleave freely with terms.
	q, err = ParseQuery("foo {movie} bar {tvshow} baz")
	require.NoError(t, err)
	require.Equal(t, "foo bar baz", q.Name)
	require.Len(t, q.Kinds, 2)
}

func TestParseQueryDirectives(t *testing.T) {
	q, err := ParseQuery("{size:5}")
	require.NoError(t, err)
	require.Equal(t, 5, q.Size)

	// Whitespace inside a directive is tolerated.
	q, err = ParseQuery("{ size : 5 }")
	require.NoError(t, err)
	require.Equal(t, 5, q.Size)

	q, err = ParseQuery("{year:1990}")
	require.NoError(t, err)
	require.Equal(t, Range{Start: u32(1990), End: u32(1990)}, q.Year)

	q, err = ParseQuery("{year:1990-}")
	require.NoError(t, err)
	require.Equal(t, Range{Start: u32(1990)}, q.Year)

	q, err = ParseQuery("{year:-1990}")
	require.NoError(t, err)
	require.Equal(t, Range{End: u32(1990)}, q.Year)

	q, err = ParseQuery("{show:tt0096697} {season:2} {episode:1-13}")
	require.NoError(t, err)
	require.Equal(t, "tt0096697", q.TVShowID)
	require.Equal(t, Range{Start: u32(2), End: u32(2)}, q.Season)
	require.Equal(t, Range{Start: u32(1), End: u32(13)}, q.Episode)

	q, err = ParseQuery("{scorer:jaccard} {sim:jaro}")
	require.NoError(t, err)
	require.NotNil(t, q.NameScorer)
	require.Equal(t, nameindex.Jaccard, *q.NameScorer)
	require.Equal(t, SimJaro, q.Similarity)

	q, err = ParseQuery("{scorer:none}")
	require.NoError(t, err)
	require.Nil(t, q.NameScorer)
}

func TestParseQueryErrors(t *testing.T) {
	for _, in := range []string{"{blah}", "{size:a}", "{year:zzz}", "{sim:cosine}", "{scorer:pagerank}"} {
		_, err := ParseQuery(in)
		require.Error(t, err, "query %q", in)
	}
}

func TestParseQueryUnbalancedBraces(t *testing.T) {
	// Unbalanced braces degrade to plain terms rather than erroring.
	q, err := ParseQuery("{movie")
	require.NoError(t, err)
	require.Equal(t, "movie", q.Name)

	q, err = ParseQuery("movie}")
	require.NoError(t, err)
	require.Equal(t, "movie", q.Name)
}

func TestQueryFormat(t *testing.T) {
	q := NewQuery()
	q.Name = "foo bar baz"
	q.Size = 31
	q.Season = Range{Start: u32(4), End: u32(5)}
	q = q.WithKind(record.TVSeries).WithKind(record.Movie)
	q.Similarity = SimJaro
	require.Equal(t,
		"{scorer:okapibm25} {sim:jaro} {size:31} {movie} {tvSeries} {season:4-5} foo bar baz",
		q.String())
}

func TestQueryFormatParseRoundTrip(t *testing.T) {
	scorer := nameindex.TFIDF
	queries := []Query{
		NewQuery(),
		{Name: "the matrix", NameScorer: &scorer, Size: 5, Similarity: SimLevenshtein},
		{Name: "simpsons", NameScorer: nil, Size: 30, TVShowID: "tt0096697",
			Season: Range{Start: u32(2)}, Episode: Range{End: u32(13)}},
		func() Query {
			q := NewQuery()
			q.Name = "carmencita"
			q.Year = Range{Start: u32(1890), End: u32(1900)}
			q.Votes = Range{Start: u32(1000)}
			return q.WithKind(record.Short)
		}(),
	}
	for _, q := range queries {
		parsed, err := ParseQuery(q.String())
		require.NoError(t, err, "query %q", q.String())
		require.Equal(t, q, parsed, "round trip of %q", q.String())
	}
}

func TestQueryIsEmpty(t *testing.T) {
	require.True(t, NewQuery().IsEmpty())
	q := NewQuery()
	q.Name = "x"
	require.False(t, q.IsEmpty())
	q = NewQuery().WithKind(record.Movie)
	require.False(t, q.IsEmpty())
	q = NewQuery()
	q.TVShowID = "tt1"
	require.False(t, q.IsEmpty())
}

func TestMatchesEpisodeFilters(t *testing.T) {
	q := NewQuery()
	q.Season = Range{Start: u32(2), End: u32(2)}
	// A candidate without an episode record fails a season filter.
	ent := record.MediaEntity{Title: record.Title{ID: "tt1", Kind: record.Movie}}
	require.False(t, q.Matches(ent))

	ep := record.Episode{ID: "tt2", TVShowID: "tt1", Season: u32(2), EpisodeNum: u32(3)}
	ent = record.MediaEntity{
		Title:   record.Title{ID: "tt2", Kind: record.TVEpisode},
		Episode: &ep,
	}
	require.True(t, q.Matches(ent))
}

func TestMatchesYearEitherEnd(t *testing.T) {
	q := NewQuery()
	q.Year = Range{Start: u32(1995), End: u32(2000)}
	// The start year misses but the end year lands in range.
	title := record.Title{ID: "tt1", StartYear: u32(1989), EndYear: u32(1998)}
	require.True(t, q.MatchesTitle(title))
	title = record.Title{ID: "tt2", StartYear: u32(1989), EndYear: u32(1993)}
	require.False(t, q.MatchesTitle(title))
}

func TestMatchesVotesRequiresRating(t *testing.T) {
	q := NewQuery()
	q.Votes = Range{Start: u32(100)}
	ent := record.MediaEntity{Title: record.Title{ID: "tt1"}}
	require.False(t, q.Matches(ent))
	ent.Rating = &record.Rating{ID: "tt1", Value: 7.0, Votes: 150}
	require.True(t, q.Matches(ent))
}

func TestSimilarityScores(t *testing.T) {
	require.Equal(t, 1.0, SimNone.Score("a", "b"))
	require.Equal(t, 1.0, SimLevenshtein.Score("matrix", "matrix"))
	require.Equal(t, 0.5, SimLevenshtein.Score("matrix", "matrix2"))
	require.Equal(t, 1.0, SimJaro.Score("matrix", "matrix"))
	require.Greater(t, SimJaroWinkler.Score("matrix", "matrix reloaded"), 0.0)
	// Similarity never returns zero, even for disjoint strings.
	require.Greater(t, SimJaro.Score("abc", "xyz"), 0.0)
}

func TestSimilarityParseRoundTrip(t *testing.T) {
	for _, name := range SimilarityNames {
		s, err := ParseSimilarity(name)
		require.NoError(t, err)
		require.Equal(t, name, s.String())
	}
	_, err := ParseSimilarity("cosine")
	require.Error(t, err)
}
