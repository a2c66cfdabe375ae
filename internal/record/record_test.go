// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package record

import (
	"io"
	"strings"
	"testing"
)

func TestParseTitleKindAliases(t *testing.T) {
	cases := map[string]TitleKind{
		"movie":        Movie,
		"tvSeries":     TVSeries,
		"tvshow":       TVSeries,
		"show":         TVSeries,
		"episode":      TVEpisode,
		"tvEpisode":    TVEpisode,
		"miniseries":   TVMiniSeries,
		"tvMiniSeries": TVMiniSeries,
		"special":      TVSpecial,
		"game":         VideoGame,
		"videoGame":    VideoGame,
	}
	for input, want := range cases {
		got, err := ParseTitleKind(input)
		if err != nil {
			t.Fatalf("ParseTitleKind(%q): %v", input, err)
		}
		if got != want {
			t.Errorf("ParseTitleKind(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestParseTitleKindUnknown(t *testing.T) {
	if _, err := ParseTitleKind("bogus"); err == nil {
		t.Fatal("expected error for unknown title kind")
	}
}

func TestTitleKindIsTVSeries(t *testing.T) {
	if !TVSeries.IsTVSeries() || !TVMiniSeries.IsTVSeries() {
		t.Error("TVSeries and TVMiniSeries must report IsTVSeries true")
	}
	if Movie.IsTVSeries() || TVEpisode.IsTVSeries() {
		t.Error("Movie and TVEpisode must not report IsTVSeries true")
	}
}

func TestTSVReaderBasicsRoundTrip(t *testing.T) {
	data := "tconst\ttitleType\tprimaryTitle\toriginalTitle\tisAdult\tstartYear\tendYear\truntimeMinutes\tgenres\n" +
		"tt0000001\tshort\tCarmencita\tCarmencita\t0\t1894\t\\N\t1\tDocumentary,Short\n" +
		"tt0000002\tmovie\tLe clown et ses chiens\tLe clown et ses chiens\t0\t\\N\t\\N\t5\tAnimation,Short\n"

	tr, err := NewTSVReader(strings.NewReader(data), []string{
		"tconst", "titleType", "primaryTitle", "originalTitle",
		"isAdult", "startYear", "endYear", "runtimeMinutes", "genres",
	})
	if err != nil {
		t.Fatalf("NewTSVReader: %v", err)
	}

	var offsets []int64
	var titles []Title
	for {
		offset, fields, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		title, err := ParseTitleRow(tr.Header(), fields)
		if err != nil {
			t.Fatalf("ParseTitleRow: %v", err)
		}
		offsets = append(offsets, offset)
		titles = append(titles, title)
	}

	if len(titles) != 2 {
		t.Fatalf("got %d titles, want 2", len(titles))
	}
	if titles[0].ID != "tt0000001" || titles[0].Kind != Short {
		t.Errorf("unexpected first title: %+v", titles[0])
	}
	if titles[0].StartYear == nil || *titles[0].StartYear != 1894 {
		t.Errorf("expected start year 1894, got %v", titles[0].StartYear)
	}
	if titles[0].EndYear != nil {
		t.Errorf("expected nil end year, got %v", *titles[0].EndYear)
	}
	if titles[1].StartYear != nil {
		t.Errorf("expected nil start year for second title, got %v", *titles[1].StartYear)
	}

	// Offsets are absolute: the header row counts, so the first data row
	// begins right after the header line.
	if want := int64(strings.IndexByte(data, '\n') + 1); offsets[0] != want {
		t.Errorf("first data row offset = %d, want %d", offsets[0], want)
	}
	if offsets[1] <= offsets[0] {
		t.Errorf("offsets must be strictly increasing: %v", offsets)
	}
}

func TestParseAKARowOptionalBool(t *testing.T) {
	header := []string{"titleId", "ordering", "title", "region", "language", "types", "attributes", "isOriginalTitle"}
	row := []string{"tt0000001", "1", "Carmencita", "US", "\\N", "imdbDisplay", "\\N", "\\N"}
	aka, err := ParseAKARow(header, row)
	if err != nil {
		t.Fatalf("ParseAKARow: %v", err)
	}
	if aka.IsOriginalTitle != nil {
		t.Errorf("expected nil IsOriginalTitle, got %v", *aka.IsOriginalTitle)
	}

	row[len(row)-1] = "1"
	aka, err = ParseAKARow(header, row)
	if err != nil {
		t.Fatalf("ParseAKARow: %v", err)
	}
	if aka.IsOriginalTitle == nil || !*aka.IsOriginalTitle {
		t.Errorf("expected IsOriginalTitle true, got %v", aka.IsOriginalTitle)
	}
}

func TestParseRatingRow(t *testing.T) {
	header := []string{"tconst", "averageRating", "numVotes"}
	row := []string{"tt0000001", "5.8", "1356"}
	r, err := ParseRatingRow(header, row)
	if err != nil {
		t.Fatalf("ParseRatingRow: %v", err)
	}
	if r.ID != "tt0000001" || r.Value != 5.8 || r.Votes != 1356 {
		t.Errorf("unexpected rating: %+v", r)
	}
}
