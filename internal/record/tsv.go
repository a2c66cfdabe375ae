// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package record

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Filenames of the IMDb bulk TSV data files, as they appear under the
// data directory passed to the build.
const (
	BasicsFilename  = "title.basics.tsv"
	AkasFilename    = "title.akas.tsv"
	EpisodeFilename = "title.episode.tsv"
	RatingsFilename = "title.ratings.tsv"
)

// NullSentinel is the IMDb convention for a missing field value.
const NullSentinel = `\N`

// TSVReader reads tab-separated records with a required header row and
// no quoting, tracking the byte offset at which each data row begins so
// callers can use that offset as a seekable record pointer (spec §3,
// NameID).
type TSVReader struct {
	r       *bufio.Reader
	offset  int64
	header  []string
	lineBuf []byte
}

// NewTSVReader wraps r, consuming and validating the header row.
// wantHeader, if non-nil, is checked against the actual header columns
// (order-sensitive); pass nil to skip validation.
func NewTSVReader(r io.Reader, wantHeader []string) (*TSVReader, error) {
	tr := &TSVReader{r: bufio.NewReaderSize(r, 64*1024)}
	line, n, err := tr.readLine()
	if err != nil {
		return nil, fmt.Errorf("reading TSV header: %w", err)
	}
	tr.offset += int64(n)
	tr.header = strings.Split(line, "\t")
	if wantHeader != nil {
		if len(tr.header) != len(wantHeader) {
			return nil, fmt.Errorf("TSV header has %d columns, want %d", len(tr.header), len(wantHeader))
		}
		for i, col := range wantHeader {
			if tr.header[i] != col {
				return nil, fmt.Errorf("TSV header column %d is %q, want %q", i, tr.header[i], col)
			}
		}
	}
	return tr, nil
}

// Header returns the column names in file order.
func (tr *TSVReader) Header() []string {
	return tr.header
}

// readLine reads one line, trimming the trailing newline, and returns
// the number of bytes consumed from the underlying reader (including
// the newline) so callers can track absolute offsets.
func (tr *TSVReader) readLine() (string, int, error) {
	line, err := tr.r.ReadString('\n')
	n := len(line)
	if err != nil && err != io.EOF {
		return "", n, err
	}
	if err == io.EOF && line == "" {
		return "", 0, io.EOF
	}
	line = strings.TrimRight(line, "\r\n")
	return line, n, nil
}

// Next reads the next data row, returning the absolute byte offset at
// which the row began (the header row counts toward the offset, so the
// value can seek the underlying file directly) and its tab-split
// fields. Returns io.EOF when no rows remain.
func (tr *TSVReader) Next() (offset int64, fields []string, err error) {
	offset = tr.offset
	line, n, err := tr.readLine()
	if err != nil {
		return 0, nil, err
	}
	tr.offset += int64(n)
	return offset, strings.Split(line, "\t"), nil
}

// Offset returns the current absolute byte offset into the stream (the
// position at which the next row would begin).
func (tr *TSVReader) Offset() int64 {
	return tr.offset
}

// field looks up a column by name, returning an error if the header
// didn't mention it.
func field(header []string, row []string, name string) (string, error) {
	for i, col := range header {
		if col == name {
			if i >= len(row) {
				return "", fmt.Errorf("row has %d fields, missing column %q at index %d", len(row), name, i)
			}
			return row[i], nil
		}
	}
	return "", fmt.Errorf("unknown TSV column %q", name)
}

func parseOptionalUint32(s string) (*uint32, error) {
	if s == NullSentinel || s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parsing uint32 %q: %w", s, err)
	}
	v := uint32(n)
	return &v, nil
}

func parseNumberAsBool(s string) (bool, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return false, fmt.Errorf("parsing bool-as-number %q: %w", s, err)
	}
	return n != 0, nil
}

func parseOptionalNumberAsBool(s string) (*bool, error) {
	if s == NullSentinel || s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		// A malformed optional bool is treated as absent rather than a
		// hard parse error.
		return nil, nil
	}
	b := n != 0
	return &b, nil
}

// ParseTitleRow parses one title.basics.tsv row given the file's header.
func ParseTitleRow(header, row []string) (Title, error) {
	var t Title
	var err error
	if t.ID, err = field(header, row, "tconst"); err != nil {
		return t, err
	}
	kindStr, err := field(header, row, "titleType")
	if err != nil {
		return t, err
	}
	if t.Kind, err = ParseTitleKind(kindStr); err != nil {
		return t, err
	}
	if t.Name, err = field(header, row, "primaryTitle"); err != nil {
		return t, err
	}
	if t.OriginalTitle, err = field(header, row, "originalTitle"); err != nil {
		return t, err
	}
	adultStr, err := field(header, row, "isAdult")
	if err != nil {
		return t, err
	}
	if t.IsAdult, err = parseNumberAsBool(adultStr); err != nil {
		return t, err
	}
	startStr, err := field(header, row, "startYear")
	if err != nil {
		return t, err
	}
	if t.StartYear, err = parseOptionalUint32(startStr); err != nil {
		return t, err
	}
	endStr, err := field(header, row, "endYear")
	if err != nil {
		return t, err
	}
	if t.EndYear, err = parseOptionalUint32(endStr); err != nil {
		return t, err
	}
	runtimeStr, err := field(header, row, "runtimeMinutes")
	if err != nil {
		return t, err
	}
	if t.RuntimeMinutes, err = parseOptionalUint32(runtimeStr); err != nil {
		return t, err
	}
	if t.Genres, err = field(header, row, "genres"); err != nil {
		return t, err
	}
	return t, nil
}

// ParseAKARow parses one title.akas.tsv row given the file's header.
func ParseAKARow(header, row []string) (AKA, error) {
	var a AKA
	var err error
	if a.ID, err = field(header, row, "titleId"); err != nil {
		return a, err
	}
	orderStr, err := field(header, row, "ordering")
	if err != nil {
		return a, err
	}
	order, err := strconv.ParseInt(orderStr, 10, 32)
	if err != nil {
		return a, fmt.Errorf("parsing ordering %q: %w", orderStr, err)
	}
	a.Order = int32(order)
	if a.Name, err = field(header, row, "title"); err != nil {
		return a, err
	}
	if a.Region, err = field(header, row, "region"); err != nil {
		return a, err
	}
	if a.Language, err = field(header, row, "language"); err != nil {
		return a, err
	}
	if a.Types, err = field(header, row, "types"); err != nil {
		return a, err
	}
	if a.Attributes, err = field(header, row, "attributes"); err != nil {
		return a, err
	}
	origStr, err := field(header, row, "isOriginalTitle")
	if err != nil {
		return a, err
	}
	if a.IsOriginalTitle, err = parseOptionalNumberAsBool(origStr); err != nil {
		return a, err
	}
	return a, nil
}

// ParseEpisodeRow parses one title.episode.tsv row given the file's header.
func ParseEpisodeRow(header, row []string) (Episode, error) {
	var e Episode
	var err error
	if e.ID, err = field(header, row, "tconst"); err != nil {
		return e, err
	}
	if e.TVShowID, err = field(header, row, "parentTconst"); err != nil {
		return e, err
	}
	seasonStr, err := field(header, row, "seasonNumber")
	if err != nil {
		return e, err
	}
	if e.Season, err = parseOptionalUint32(seasonStr); err != nil {
		return e, err
	}
	epStr, err := field(header, row, "episodeNumber")
	if err != nil {
		return e, err
	}
	if e.EpisodeNum, err = parseOptionalUint32(epStr); err != nil {
		return e, err
	}
	return e, nil
}

// ParseRatingRow parses one title.ratings.tsv row given the file's header.
func ParseRatingRow(header, row []string) (Rating, error) {
	var r Rating
	var err error
	if r.ID, err = field(header, row, "tconst"); err != nil {
		return r, err
	}
	ratingStr, err := field(header, row, "averageRating")
	if err != nil {
		return r, err
	}
	rating, err := strconv.ParseFloat(ratingStr, 32)
	if err != nil {
		return r, fmt.Errorf("parsing averageRating %q: %w", ratingStr, err)
	}
	r.Value = float32(rating)
	votesStr, err := field(header, row, "numVotes")
	if err != nil {
		return r, err
	}
	votes, err := strconv.ParseUint(votesStr, 10, 32)
	if err != nil {
		return r, fmt.Errorf("parsing numVotes %q: %w", votesStr, err)
	}
	r.Votes = uint32(votes)
	return r, nil
}
