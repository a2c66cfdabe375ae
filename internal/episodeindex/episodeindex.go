// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package episodeindex joins TV episodes to their parent shows in both
// directions. Two sorted sets share one key encoding: the seasons set
// is keyed show-first for season and show browsing, and the tvshows set
// is keyed episode-first for reverse lookup. Multi-column keys in a
// sorted set stand in for a B-tree here; range scans over a key prefix
// answer every query.
package episodeindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/nwalsh/imdbsearch/internal/fstutil"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/record"
)

// Filenames of the two episode index files under the index directory.
const (
	SeasonsFilename = "episode.seasons.fst"
	TVShowsFilename = "episode.tvshows.fst"
)

// EpisodeHeader is the expected column layout of title.episode.tsv.
var EpisodeHeader = []string{"tconst", "parentTconst", "seasonNumber", "episodeNumber"}

// noNumber encodes a missing season or episode number. Big-endian
// u32 max sorts such episodes after every numbered episode.
const noNumber = math.MaxUint32

// encodeKey builds the shared key layout: first id || 0x00 || season
// big-endian u32 || episode big-endian u32 || second id. The seasons
// set puts the show id first; the tvshows set puts the episode id
// first.
func encodeKey(first string, season, episode *uint32, second string) []byte {
	key := make([]byte, 0, len(first)+1+4+4+len(second))
	key = append(key, first...)
	key = append(key, 0x00)
	key = binary.BigEndian.AppendUint32(key, numberOr(season, noNumber))
	key = binary.BigEndian.AppendUint32(key, numberOr(episode, noNumber))
	key = append(key, second...)
	return key
}

func numberOr(n *uint32, fallback uint32) uint32 {
	if n == nil {
		return fallback
	}
	return *n
}

// decodeKey reverses encodeKey. The ids emitted by IMDb never contain a
// zero byte, so the first zero byte is always the separator.
func decodeKey(key []byte) (first string, season, episode *uint32, second string, err error) {
	sep := bytes.IndexByte(key, 0x00)
	if sep < 0 || len(key) < sep+1+4+4 {
		return "", nil, nil, "", &indexerrors.CorruptionError{Detail: fmt.Sprintf(
			"episode key too short or missing separator: %d bytes", len(key))}
	}
	first = string(key[:sep])
	if s := binary.BigEndian.Uint32(key[sep+1:]); s != noNumber {
		season = &s
	}
	if e := binary.BigEndian.Uint32(key[sep+5:]); e != noNumber {
		episode = &e
	}
	second = string(key[sep+9:])
	return first, season, episode, second, nil
}

// Create builds both episode index sets from dataDir/title.episode.tsv
// and writes them to indexDir. The rows need not arrive in any
// particular order; they are buffered and sorted once per set.
func Create(dataDir, indexDir string) error {
	dataPath := filepath.Join(dataDir, record.EpisodeFilename)
	f, err := os.Open(dataPath)
	if err != nil {
		return &indexerrors.IOError{Path: dataPath, Cause: err}
	}
	defer f.Close()

	tr, err := record.NewTSVReader(f, EpisodeHeader)
	if err != nil {
		return &indexerrors.InvalidInputError{Detail: fmt.Sprintf("%s: %v", dataPath, err)}
	}

	var episodes []record.Episode
	for {
		_, row, err := tr.Next()
		if err != nil {
			break
		}
		ep, err := record.ParseEpisodeRow(tr.Header(), row)
		if err != nil {
			return &indexerrors.InvalidInputError{Detail: fmt.Sprintf("%s: %v", dataPath, err)}
		}
		// u32 max is the reserved missing-number sentinel in the key
		// encoding, so a source row carrying it cannot be represented.
		if numberOr(ep.Season, 0) == noNumber || numberOr(ep.EpisodeNum, 0) == noNumber {
			return &indexerrors.InvalidInputError{Detail: fmt.Sprintf(
				"episode %s uses reserved season/episode number %d", ep.ID, uint32(noNumber))}
		}
		episodes = append(episodes, ep)
	}

	if err := writeSet(filepath.Join(indexDir, SeasonsFilename), episodes, func(ep record.Episode) []byte {
		return encodeKey(ep.TVShowID, ep.Season, ep.EpisodeNum, ep.ID)
	}); err != nil {
		return err
	}
	return writeSet(filepath.Join(indexDir, TVShowsFilename), episodes, func(ep record.Episode) []byte {
		return encodeKey(ep.ID, ep.Season, ep.EpisodeNum, ep.TVShowID)
	})
}

func writeSet(path string, episodes []record.Episode, keyOf func(record.Episode) []byte) error {
	keys := make([][]byte, len(episodes))
	for i, ep := range episodes {
		keys[i] = keyOf(ep)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	w, err := fstutil.CreateSetWriter(path)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := w.Insert(key); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// Index answers episode queries in both directions.
type Index struct {
	seasons *fstutil.SetReader
	tvshows *fstutil.SetReader
}

// Open opens both episode index sets in indexDir.
func Open(indexDir string) (*Index, error) {
	seasons, err := fstutil.OpenSetReader(filepath.Join(indexDir, SeasonsFilename))
	if err != nil {
		return nil, err
	}
	tvshows, err := fstutil.OpenSetReader(filepath.Join(indexDir, TVShowsFilename))
	if err != nil {
		seasons.Close()
		return nil, err
	}
	return &Index{seasons: seasons, tvshows: tvshows}, nil
}

// Seasons returns every episode of the given TV show, ordered by season
// then episode number, with unnumbered episodes last.
func (x *Index) Seasons(tvshowID string) ([]record.Episode, error) {
	lower := []byte(tvshowID)
	upper := append([]byte(tvshowID), 0xFF)
	return x.scanSeasons(tvshowID, lower, upper)
}

// Episodes returns every episode of one season of the given TV show,
// ordered by episode number.
func (x *Index) Episodes(tvshowID string, season uint32) ([]record.Episode, error) {
	prefix := make([]byte, 0, len(tvshowID)+1+4)
	prefix = append(prefix, tvshowID...)
	prefix = append(prefix, 0x00)
	prefix = binary.BigEndian.AppendUint32(prefix, season)

	lower := append(append([]byte{}, prefix...), 0x00, 0x00, 0x00, 0x00)
	// The upper bound needs 0xFF bytes past the episode-number field so
	// that unnumbered episodes (episode encoded as u32 max, followed by
	// the episode id) still fall inside the inclusive range.
	upper := append(append([]byte{}, prefix...), bytes.Repeat([]byte{0xFF}, 8)...)
	return x.scanSeasons(tvshowID, lower, upper)
}

func (x *Index) scanSeasons(tvshowID string, lower, upper []byte) ([]record.Episode, error) {
	it, err := x.seasons.Range(lower, upper)
	if err != nil {
		return nil, err
	}
	var out []record.Episode
	for it.Valid() {
		showID, season, episode, epID, err := decodeKey(it.Key())
		if err != nil {
			return nil, err
		}
		// Ids sharing tvshowID as a strict prefix fall inside the outer
		// range; the separator check in decodeKey splits at the first
		// zero byte, so a mismatched first column identifies them.
		if showID == tvshowID {
			out = append(out, record.Episode{
				ID:         epID,
				TVShowID:   showID,
				Season:     season,
				EpisodeNum: episode,
			})
		}
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Episode returns the episode record for the given episode id, or
// (zero, false) when the id has no episode record.
func (x *Index) Episode(episodeID string) (record.Episode, bool, error) {
	lower := []byte(episodeID)
	upper := append([]byte(episodeID), 0xFF)
	it, err := x.tvshows.Range(lower, upper)
	if err != nil {
		return record.Episode{}, false, err
	}
	for it.Valid() {
		epID, season, episode, showID, err := decodeKey(it.Key())
		if err != nil {
			return record.Episode{}, false, err
		}
		if epID == episodeID {
			return record.Episode{
				ID:         epID,
				TVShowID:   showID,
				Season:     season,
				EpisodeNum: episode,
			}, true, nil
		}
		if err := it.Next(); err != nil {
			return record.Episode{}, false, err
		}
	}
	return record.Episode{}, false, nil
}

// Close releases both sets.
func (x *Index) Close() error {
	err := x.seasons.Close()
	if terr := x.tvshows.Close(); err == nil {
		err = terr
	}
	return err
}
