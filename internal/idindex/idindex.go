// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package idindex provides a sorted string-id to uint64-value map, used
// for title.fst (id -> basics byte offset), a lookup that needs only an
// exact key match rather than a range scan.
package idindex

import "github.com/nwalsh/imdbsearch/internal/fstutil"

// Writer builds an id-sorted map in one pass. Keys (ids) must be
// inserted in strictly ascending byte order, matching the requirement
// that the source TSV be sorted by id.
type Writer struct {
	mw *fstutil.MapWriter
}

// Create truncates and opens path for writing.
func Create(path string) (*Writer, error) {
	mw, err := fstutil.CreateMapWriter(path)
	if err != nil {
		return nil, err
	}
	return &Writer{mw: mw}, nil
}

// Insert adds id -> val.
func (w *Writer) Insert(id string, val uint64) error {
	return w.mw.Insert([]byte(id), val)
}

// Close finalizes the map.
func (w *Writer) Close() error {
	return w.mw.Close()
}

// Reader is a read-only, memory-mapped id-sorted map.
type Reader struct {
	mr *fstutil.MapReader
}

// Open memory-maps path.
func Open(path string) (*Reader, error) {
	mr, err := fstutil.OpenMapReader(path)
	if err != nil {
		return nil, err
	}
	return &Reader{mr: mr}, nil
}

// Get looks up id, returning (value, true) if present.
func (r *Reader) Get(id string) (uint64, bool, error) {
	return r.mr.Get([]byte(id))
}

// Close unmaps the file.
func (r *Reader) Close() error {
	return r.mr.Close()
}
