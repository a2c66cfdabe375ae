// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package index ties every on-disk index structure together behind one
// handle. An Index answers fuzzy name searches, constant-time record
// fetches by IMDb id, and episode/rating/AKA lookups, all against
// memory-mapped files produced by a prior Create.
package index

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/goccy/go-json"

	"github.com/nwalsh/imdbsearch/internal/akaindex"
	"github.com/nwalsh/imdbsearch/internal/episodeindex"
	"github.com/nwalsh/imdbsearch/internal/idindex"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/nameindex"
	"github.com/nwalsh/imdbsearch/internal/ratingindex"
	"github.com/nwalsh/imdbsearch/internal/record"
	"github.com/nwalsh/imdbsearch/internal/scored"
)

// Version identifies the on-disk format of every index structure this
// package writes. An index whose recorded version differs cannot be
// opened and must be rebuilt.
const Version uint64 = 1

// Filenames directly owned by this package under the index directory.
// The sub-indexes name their own files.
const (
	ConfigFilename = "config.json"
	TitleFilename  = "title.fst"
)

// BasicsHeader is the expected column layout of title.basics.tsv.
var BasicsHeader = []string{
	"tconst", "titleType", "primaryTitle", "originalTitle",
	"isAdult", "startYear", "endYear", "runtimeMinutes", "genres",
}

type parentConfig struct {
	Version uint64 `json:"version"`
}

// Index is a read-only handle over the full set of index structures.
// It is cheap to open and safe to share across goroutines: every
// underlying file is an immutable memory map. Clone for a fully
// independent handle.
type Index struct {
	dataDir  string
	indexDir string

	basicsFile   *os.File
	basics       mmap.MMap
	basicsHeader []string

	names   *nameindex.Reader
	aka     *akaindex.Index
	episode *episodeindex.Index
	rating  *ratingindex.Index
	title   *idindex.Reader
}

// Open opens an existing index. dataDir holds the decompressed IMDb
// TSV files; indexDir holds the files a prior Create produced. Opening
// is cheap: it maps files but reads almost nothing.
func Open(dataDir, indexDir string) (*Index, error) {
	raw, err := os.ReadFile(filepath.Join(indexDir, ConfigFilename))
	if err != nil {
		return nil, &indexerrors.IOError{Path: filepath.Join(indexDir, ConfigFilename), Cause: err}
	}
	var cfg parentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &indexerrors.ConfigError{Detail: fmt.Sprintf("parsing index config: %v", err)}
	}
	if cfg.Version != Version {
		return nil, &indexerrors.VersionMismatchError{Expected: Version, Got: cfg.Version}
	}

	idx := &Index{dataDir: dataDir, indexDir: indexDir}
	ok := false
	defer func() {
		if !ok {
			idx.Close()
		}
	}()

	basicsPath := filepath.Join(dataDir, record.BasicsFilename)
	idx.basicsFile, err = os.Open(basicsPath)
	if err != nil {
		return nil, &indexerrors.IOError{Path: basicsPath, Cause: err}
	}
	idx.basics, err = mmap.Map(idx.basicsFile, mmap.RDONLY, 0)
	if err != nil {
		return nil, &indexerrors.IOError{Path: basicsPath, Cause: err}
	}
	if err := idx.readBasicsHeader(); err != nil {
		return nil, err
	}
	if idx.names, err = nameindex.Open(indexDir); err != nil {
		return nil, err
	}
	if idx.aka, err = akaindex.Open(dataDir, indexDir); err != nil {
		return nil, err
	}
	if idx.episode, err = episodeindex.Open(indexDir); err != nil {
		return nil, err
	}
	if idx.rating, err = ratingindex.Open(indexDir); err != nil {
		return nil, err
	}
	if idx.title, err = idindex.Open(filepath.Join(indexDir, TitleFilename)); err != nil {
		return nil, err
	}
	ok = true
	return idx, nil
}

func (x *Index) readBasicsHeader() error {
	i := bytes.IndexByte(x.basics, '\n')
	if i < 0 {
		return &indexerrors.InvalidInputError{Detail: "basics data file has no header row"}
	}
	line := strings.TrimRight(string(x.basics[:i]), "\r")
	x.basicsHeader = strings.Split(line, "\t")
	return nil
}

// Clone opens an independent handle over the same directories, for use
// from another goroutine.
func (x *Index) Clone() (*Index, error) {
	return Open(x.dataDir, x.indexDir)
}

// DataDir returns the directory holding the IMDb TSV files.
func (x *Index) DataDir() string { return x.dataDir }

// IndexDir returns the directory holding the index files.
func (x *Index) IndexDir() string { return x.indexDir }

// NameIndexConfig returns the analyzer settings and corpus statistics
// the name index was built with.
func (x *Index) NameIndexConfig() nameindex.Config { return x.names.Config() }

// Close releases every mapped file. The handle must not be used after.
func (x *Index) Close() error {
	var err error
	keep := func(e error) {
		if err == nil {
			err = e
		}
	}
	if x.names != nil {
		keep(x.names.Close())
	}
	if x.aka != nil {
		keep(x.aka.Close())
	}
	if x.episode != nil {
		keep(x.episode.Close())
	}
	if x.rating != nil {
		keep(x.rating.Close())
	}
	if x.title != nil {
		keep(x.title.Close())
	}
	if x.basics != nil {
		keep(x.basics.Unmap())
	}
	if x.basicsFile != nil {
		keep(x.basicsFile.Close())
	}
	return err
}

// Search returns titles whose names fuzzily match the query, ranked by
// the query's scorer. Scores are normalized so the best result has
// score 1.0.
func (x *Index) Search(query nameindex.Query) (*scored.Results[record.Title], error) {
	nameResults, err := x.names.Search(query)
	if err != nil {
		return nil, err
	}
	results := scored.NewResults[record.Title]()
	for _, r := range nameResults.Items() {
		// The nameid is a byte offset into title.basics.tsv, so the
		// record fetch is a seek plus one row parse.
		title, ok, err := x.readTitleAt(int64(r.Value()))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		results.Push(scored.New(title).WithScore(r.Score()))
	}
	return results, nil
}

// Entity returns the MediaEntity for the given IMDb id, or (zero,
// false) when no title has that id.
func (x *Index) Entity(id string) (record.MediaEntity, bool, error) {
	title, ok, err := x.Title(id)
	if err != nil || !ok {
		return record.MediaEntity{}, false, err
	}
	ent, err := x.EntityFromTitle(title)
	if err != nil {
		return record.MediaEntity{}, false, err
	}
	return ent, true, nil
}

// EntityFromTitle attaches the episode and rating records, when they
// exist, to an already fetched title.
func (x *Index) EntityFromTitle(title record.Title) (record.MediaEntity, error) {
	ent := record.MediaEntity{Title: title}
	if title.Kind == record.TVEpisode {
		ep, ok, err := x.episode.Episode(title.ID)
		if err != nil {
			return ent, err
		}
		if ok {
			ent.Episode = &ep
		}
	}
	rating, ok, err := x.rating.Rating(title.ID)
	if err != nil {
		return ent, err
	}
	if ok {
		ent.Rating = &rating
	}
	return ent, nil
}

// Title returns the title record for the given IMDb id, or (zero,
// false) when the id is not indexed.
func (x *Index) Title(id string) (record.Title, bool, error) {
	offset, ok, err := x.title.Get(id)
	if err != nil || !ok {
		return record.Title{}, false, err
	}
	return x.readTitleAt(int64(offset))
}

// AKARecords returns an iterator over the alternate names of the given
// title, empty when there are none.
func (x *Index) AKARecords(id string) (*akaindex.RecordIter, error) {
	return x.aka.Find(id)
}

// Rating returns the rating for the given title id, or (zero, false)
// when it has none.
func (x *Index) Rating(id string) (record.Rating, bool, error) {
	return x.rating.Rating(id)
}

// Seasons returns every episode of the given TV show in season/episode
// order, unnumbered episodes last.
func (x *Index) Seasons(tvshowID string) ([]record.Episode, error) {
	return x.episode.Seasons(tvshowID)
}

// Episodes returns the episodes of one season of the given TV show in
// episode order.
func (x *Index) Episodes(tvshowID string, season uint32) ([]record.Episode, error) {
	return x.episode.Episodes(tvshowID, season)
}

// Episode returns the episode record for the given episode id, or
// (zero, false) when the id is not an episode.
func (x *Index) Episode(episodeID string) (record.Episode, bool, error) {
	return x.episode.Episode(episodeID)
}

// readTitleAt parses the basics row beginning at the given byte
// offset. Offsets come from the title and name indexes, which record
// row starts, so an offset inside a row only occurs on corruption.
func (x *Index) readTitleAt(offset int64) (record.Title, bool, error) {
	if offset >= int64(len(x.basics)) {
		return record.Title{}, false, nil
	}
	rest := x.basics[offset:]
	end := bytes.IndexByte(rest, '\n')
	if end < 0 {
		end = len(rest)
	}
	line := strings.TrimRight(string(rest[:end]), "\r")
	if line == "" {
		return record.Title{}, false, nil
	}
	row := strings.Split(line, "\t")
	title, err := record.ParseTitleRow(x.basicsHeader, row)
	if err != nil {
		return record.Title{}, false, &indexerrors.CorruptionError{Detail: fmt.Sprintf(
			"title row at offset %d failed to parse: %v", offset, err)}
	}
	return title, true, nil
}
