// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package fstutil provides the sorted-key map and set abstractions that
// back every on-disk index in this module (ngram term index, title id
// index, AKA index, rating index, episode indexes), built on
// blevesearch/vellum finite state transducers and memory-mapped for
// read-only access.
package fstutil

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/blevesearch/vellum"
	"github.com/edsrzf/mmap-go"

	"github.com/nwalsh/imdbsearch/internal/indexerrors"
)

// MapWriter builds a sorted byte-key to uint64-value FST on disk. Keys
// must be inserted in strictly ascending order.
type MapWriter struct {
	f       *os.File
	bw      *bufio.Writer
	builder *vellum.Builder
}

// CreateMapWriter truncates and opens path for writing a new FST map.
func CreateMapWriter(path string) (*MapWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &indexerrors.IOError{Path: path, Cause: err}
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	builder, err := vellum.New(bw, nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating FST builder for %s: %w", path, err)
	}
	return &MapWriter{f: f, bw: bw, builder: builder}, nil
}

// Insert adds key -> val. Keys must be strictly greater than every key
// previously inserted.
func (w *MapWriter) Insert(key []byte, val uint64) error {
	if err := w.builder.Insert(key, val); err != nil {
		return fmt.Errorf("inserting FST key %q: %w", key, err)
	}
	return nil
}

// Close finishes the FST, flushes it to disk, and closes the file.
// Writes are best-effort durable: bytes are flushed before Close
// returns, with no crash-consistency guarantees beyond that.
func (w *MapWriter) Close() error {
	if err := w.builder.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("finalizing FST: %w", err)
	}
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flushing FST: %w", err)
	}
	return w.f.Close()
}

// MapReader is a read-only, memory-mapped view of an FST map produced
// by MapWriter. It is safe to use concurrently from multiple
// goroutines and cheap to share across readers.
type MapReader struct {
	f    *os.File
	data mmap.MMap
	fst  *vellum.FST
}

// OpenMapReader memory-maps path and parses it as an FST map.
func OpenMapReader(path string) (*MapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &indexerrors.IOError{Path: path, Cause: err}
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, &indexerrors.IOError{Path: path, Cause: err}
	}
	fst, err := vellum.Load(data)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, &indexerrors.CorruptionError{Detail: fmt.Sprintf("loading FST %s: %v", path, err)}
	}
	return &MapReader{f: f, data: data, fst: fst}, nil
}

// Get looks up key, returning (value, true) if present.
func (r *MapReader) Get(key []byte) (uint64, bool, error) {
	val, exists, err := r.fst.Get(key)
	if err != nil {
		return 0, false, fmt.Errorf("FST lookup: %w", err)
	}
	return val, exists, nil
}

// Close unmaps the file and closes the descriptor.
func (r *MapReader) Close() error {
	if err := r.data.Unmap(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// ExclusiveUpper returns the smallest byte string strictly greater than
// upperInclusive, for use as the exclusive upper bound vellum's
// Iterator requires when the caller's semantics call for an inclusive
// bound (spec's range queries are all inclusive on both ends).
func ExclusiveUpper(upperInclusive []byte) []byte {
	out := make([]byte, len(upperInclusive)+1)
	copy(out, upperInclusive)
	out[len(upperInclusive)] = 0x00
	return out
}

// Iterator streams keys in ascending order between inclusive bounds.
type Iterator struct {
	it   *vellum.FSTIterator
	done bool
}

// Range returns an iterator over keys k with lowerInclusive <= k <=
// upperInclusive. A nil bound is unbounded on that side.
func (r *MapReader) Range(lowerInclusive, upperInclusive []byte) (*Iterator, error) {
	var end []byte
	if upperInclusive != nil {
		end = ExclusiveUpper(upperInclusive)
	}
	it, err := r.fst.Iterator(lowerInclusive, end)
	if err != nil {
		if errors.Is(err, vellum.ErrIteratorDone) {
			return &Iterator{done: true}, nil
		}
		return nil, fmt.Errorf("creating FST range iterator: %w", err)
	}
	return &Iterator{it: it}, nil
}

// Valid reports whether Key/Value currently refer to an entry.
func (it *Iterator) Valid() bool {
	return !it.done && it.it != nil
}

// Key returns the current key. Only valid while Valid() is true.
func (it *Iterator) Key() []byte {
	k, _ := it.it.Current()
	return k
}

// Value returns the current value. Only valid while Valid() is true.
func (it *Iterator) Value() uint64 {
	_, v := it.it.Current()
	return v
}

// Next advances to the next entry.
func (it *Iterator) Next() error {
	if it.done || it.it == nil {
		return nil
	}
	if err := it.it.Next(); err != nil {
		if errors.Is(err, vellum.ErrIteratorDone) {
			it.done = true
			return nil
		}
		return fmt.Errorf("advancing FST range iterator: %w", err)
	}
	return nil
}

// SetWriter builds a sorted set of byte keys on disk, implemented as an
// FST map whose values are all zero (vellum has no dedicated set type).
type SetWriter struct {
	mw *MapWriter
}

// CreateSetWriter truncates and opens path for writing a new FST set.
func CreateSetWriter(path string) (*SetWriter, error) {
	mw, err := CreateMapWriter(path)
	if err != nil {
		return nil, err
	}
	return &SetWriter{mw: mw}, nil
}

// Insert adds key to the set. Keys must be inserted in strictly
// ascending order.
func (w *SetWriter) Insert(key []byte) error {
	return w.mw.Insert(key, 0)
}

// Close finalizes the set.
func (w *SetWriter) Close() error {
	return w.mw.Close()
}

// SetReader is a read-only, memory-mapped view of an FST set.
type SetReader struct {
	mr *MapReader
}

// OpenSetReader memory-maps path and parses it as an FST set.
func OpenSetReader(path string) (*SetReader, error) {
	mr, err := OpenMapReader(path)
	if err != nil {
		return nil, err
	}
	return &SetReader{mr: mr}, nil
}

// Contains reports whether key is a member of the set.
func (r *SetReader) Contains(key []byte) (bool, error) {
	_, ok, err := r.mr.Get(key)
	return ok, err
}

// Range returns an iterator over keys k with lowerInclusive <= k <=
// upperInclusive.
func (r *SetReader) Range(lowerInclusive, upperInclusive []byte) (*Iterator, error) {
	return r.mr.Range(lowerInclusive, upperInclusive)
}

// Close unmaps the file and closes the descriptor.
func (r *SetReader) Close() error {
	return r.mr.Close()
}
