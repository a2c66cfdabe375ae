// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package ratingindex stores the aggregate rating of every title in a
// sorted set. The rating and vote count ride inside the key itself,
// big-endian encoded after the title id, so a lookup is a single range
// scan with zero-copy decoding and no separate payload file.
package ratingindex

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/nwalsh/imdbsearch/internal/fstutil"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/record"
)

// Filename is the name of the rating index file under the index
// directory.
const Filename = "ratings.fst"

// RatingsHeader is the expected column layout of title.ratings.tsv.
var RatingsHeader = []string{"tconst", "averageRating", "numVotes"}

// Key layout: id || 0x00 || rating big-endian f32 || votes big-endian
// u32. Big-endian keeps lexicographic byte order equal to numeric order
// for the non-negative values IMDb emits.
func encodeKey(r record.Rating) []byte {
	key := make([]byte, 0, len(r.ID)+1+4+4)
	key = append(key, r.ID...)
	key = append(key, 0x00)
	key = binary.BigEndian.AppendUint32(key, math.Float32bits(r.Value))
	key = binary.BigEndian.AppendUint32(key, r.Votes)
	return key
}

func decodeKey(key []byte) (record.Rating, error) {
	if len(key) < 1+4+4 {
		return record.Rating{}, &indexerrors.CorruptionError{Detail: fmt.Sprintf(
			"rating key too short: %d bytes", len(key))}
	}
	sep := len(key) - 9
	if key[sep] != 0x00 {
		return record.Rating{}, &indexerrors.CorruptionError{Detail: "rating key missing separator"}
	}
	return record.Rating{
		ID:    string(key[:sep]),
		Value: math.Float32frombits(binary.BigEndian.Uint32(key[sep+1:])),
		Votes: binary.BigEndian.Uint32(key[sep+5:]),
	}, nil
}

// Create builds the rating index from dataDir/title.ratings.tsv, which
// must be sorted by tconst, and writes it to indexDir.
func Create(dataDir, indexDir string) error {
	dataPath := filepath.Join(dataDir, record.RatingsFilename)
	f, err := os.Open(dataPath)
	if err != nil {
		return &indexerrors.IOError{Path: dataPath, Cause: err}
	}
	defer f.Close()

	tr, err := record.NewTSVReader(f, RatingsHeader)
	if err != nil {
		return &indexerrors.InvalidInputError{Detail: fmt.Sprintf("%s: %v", dataPath, err)}
	}

	w, err := fstutil.CreateSetWriter(filepath.Join(indexDir, Filename))
	if err != nil {
		return err
	}
	for {
		_, row, err := tr.Next()
		if err != nil {
			break
		}
		rating, err := record.ParseRatingRow(tr.Header(), row)
		if err != nil {
			w.Close()
			return &indexerrors.InvalidInputError{Detail: fmt.Sprintf("%s: %v", dataPath, err)}
		}
		if err := w.Insert(encodeKey(rating)); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// Index provides constant-time rating lookup by title id.
type Index struct {
	set *fstutil.SetReader
}

// Open opens the rating index in indexDir.
func Open(indexDir string) (*Index, error) {
	set, err := fstutil.OpenSetReader(filepath.Join(indexDir, Filename))
	if err != nil {
		return nil, err
	}
	return &Index{set: set}, nil
}

// Rating returns the rating for the given title id, or (zero, false)
// when the title has no rating.
func (x *Index) Rating(id string) (record.Rating, bool, error) {
	lower := []byte(id)
	upper := append([]byte(id), 0xFF)
	it, err := x.set.Range(lower, upper)
	if err != nil {
		return record.Rating{}, false, err
	}
	if !it.Valid() {
		return record.Rating{}, false, nil
	}
	rating, err := decodeKey(it.Key())
	if err != nil {
		return record.Rating{}, false, err
	}
	// The range can admit ids that merely share this id as a prefix
	// (e.g. tt00000012 falls inside [tt0000001, tt0000001 0xFF]).
	if rating.ID != id {
		return record.Rating{}, false, nil
	}
	return rating, true, nil
}

// Close releases the index.
func (x *Index) Close() error {
	return x.set.Close()
}
