// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package akaindex maps title ids to their block of alternate-name rows
// in title.akas.tsv. The index stores only a packed (count, offset)
// pair per title; the rows themselves are deserialized on demand by
// seeking into a memory-mapped copy of the raw TSV, so lookups never
// copy the data file.
package akaindex

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"

	"github.com/nwalsh/imdbsearch/internal/fstutil"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/record"
)

// Filename is the name of the AKA index file under the index directory.
const Filename = "akas.fst"

// Packing of (count, offset) into the single u64 FST value. Offsets get
// the low 48 bits, counts the high 16. 2^48 bytes is far beyond any
// plausible size for title.akas.tsv.
const (
	offsetBits = 48
	maxOffset  = (1 << offsetBits) - 1
	maxCount   = (1 << (64 - offsetBits)) - 1
)

// AKAHeader is the expected column layout of title.akas.tsv.
var AKAHeader = []string{
	"titleId", "ordering", "title", "region",
	"language", "types", "attributes", "isOriginalTitle",
}

// Create builds the AKA index from dataDir/title.akas.tsv, which must
// be grouped (sorted) by titleId, and writes it to indexDir.
func Create(dataDir, indexDir string) error {
	dataPath := filepath.Join(dataDir, record.AkasFilename)
	f, err := os.Open(dataPath)
	if err != nil {
		return &indexerrors.IOError{Path: dataPath, Cause: err}
	}
	defer f.Close()

	tr, err := record.NewTSVReader(f, AKAHeader)
	if err != nil {
		return &indexerrors.InvalidInputError{Detail: fmt.Sprintf("%s: %v", dataPath, err)}
	}

	w, err := fstutil.CreateMapWriter(filepath.Join(indexDir, Filename))
	if err != nil {
		return err
	}

	// Accumulate one run of rows sharing a title id, then write the
	// packed (count, offset) for that run when the id changes.
	var (
		runID     string
		runOffset int64
		runCount  uint64
	)
	flush := func() error {
		if runCount == 0 {
			return nil
		}
		if runOffset > maxOffset || runCount > maxCount {
			return &indexerrors.InvalidInputError{Detail: fmt.Sprintf(
				"AKA block for %s exceeds packed value limits (offset %d, count %d)",
				runID, runOffset, runCount)}
		}
		packed := runCount<<offsetBits | uint64(runOffset)
		return w.Insert([]byte(runID), packed)
	}
	for {
		offset, row, err := tr.Next()
		if err != nil {
			break
		}
		aka, err := record.ParseAKARow(tr.Header(), row)
		if err != nil {
			w.Close()
			return &indexerrors.InvalidInputError{Detail: fmt.Sprintf("%s: %v", dataPath, err)}
		}
		if aka.ID != runID {
			if err := flush(); err != nil {
				w.Close()
				return err
			}
			runID, runOffset, runCount = aka.ID, offset, 0
		}
		runCount++
	}
	if err := flush(); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Index provides constant-time access to the AKA records of any title.
type Index struct {
	fst    *fstutil.MapReader
	f      *os.File
	data   mmap.MMap
	header []string
}

// Open opens the AKA index in indexDir along with a memory map of the
// raw TSV in dataDir.
func Open(dataDir, indexDir string) (*Index, error) {
	fst, err := fstutil.OpenMapReader(filepath.Join(indexDir, Filename))
	if err != nil {
		return nil, err
	}
	dataPath := filepath.Join(dataDir, record.AkasFilename)
	f, err := os.Open(dataPath)
	if err != nil {
		fst.Close()
		return nil, &indexerrors.IOError{Path: dataPath, Cause: err}
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		fst.Close()
		f.Close()
		return nil, &indexerrors.IOError{Path: dataPath, Cause: err}
	}
	idx := &Index{fst: fst, f: f, data: data}
	if err := idx.readHeader(); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

func (x *Index) readHeader() error {
	i := bytes.IndexByte(x.data, '\n')
	if i < 0 {
		return &indexerrors.CorruptionError{Detail: "AKA data file has no header row"}
	}
	line := strings.TrimRight(string(x.data[:i]), "\r")
	x.header = strings.Split(line, "\t")
	return nil
}

// Find returns an iterator over the AKA records for the given title id.
// Titles with no AKA records yield an empty iterator.
func (x *Index) Find(id string) (*RecordIter, error) {
	packed, ok, err := x.fst.Get([]byte(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &RecordIter{}, nil
	}
	offset := int64(packed & maxOffset)
	count := packed >> offsetBits
	if offset > int64(len(x.data)) {
		return nil, &indexerrors.CorruptionError{Detail: fmt.Sprintf(
			"AKA offset %d beyond data file of %d bytes", offset, len(x.data))}
	}
	return &RecordIter{
		header:    x.header,
		data:      x.data[offset:],
		remaining: count,
	}, nil
}

// Close unmaps the data file and releases the index.
func (x *Index) Close() error {
	err := x.fst.Close()
	if uerr := x.data.Unmap(); err == nil {
		err = uerr
	}
	if cerr := x.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// RecordIter yields the AKA records of one title in file order.
type RecordIter struct {
	header    []string
	data      []byte
	remaining uint64
}

// Next returns the next AKA record. The second return is false when the
// iterator is exhausted.
func (it *RecordIter) Next() (record.AKA, bool, error) {
	if it.remaining == 0 {
		return record.AKA{}, false, nil
	}
	end := bytes.IndexByte(it.data, '\n')
	var line []byte
	if end < 0 {
		line, it.data = it.data, nil
	} else {
		line, it.data = it.data[:end], it.data[end+1:]
	}
	it.remaining--
	row := strings.Split(strings.TrimRight(string(line), "\r"), "\t")
	aka, err := record.ParseAKARow(it.header, row)
	if err != nil {
		return record.AKA{}, false, &indexerrors.CorruptionError{Detail: fmt.Sprintf(
			"AKA row at recorded offset failed to parse: %v", err)}
	}
	return aka, true, nil
}

// Collect drains the iterator into a slice.
func (it *RecordIter) Collect() ([]record.AKA, error) {
	var out []record.AKA
	for {
		aka, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, aka)
	}
}
