// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package nameindex implements the inverted index over name ngrams that
// backs fuzzy title search. The on-disk format is four files: an FST
// mapping each ngram to an offset into a postings file, the postings
// file itself (length-prefixed lists of packed docid/frequency pairs),
// a docid-to-nameid array, and a docid-to-document-length array, plus a
// JSON config capturing the analyzer settings and corpus statistics.
//
// Writers buffer postings in memory and emit everything at Finish.
// Readers memory-map all four files; a search reads postings in place
// from the maps rather than copying them.
package nameindex

import (
	"fmt"

	"github.com/nwalsh/imdbsearch/internal/analyzer"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
)

// Filenames of the name index components under the index directory.
const (
	ConfigFilename   = "names.config.json"
	NgramFilename    = "names.ngram.fst"
	PostingsFilename = "names.postings.idx"
	IDMapFilename    = "names.idmap.idx"
	NormsFilename    = "names.norms.idx"
)

// maxDocID is the largest docid the packed posting encoding can hold.
// A posting is one little-endian u32 with the frequency in the high 4
// bits and the docid in the low 28.
const maxDocID = 1<<28 - 1

// exhaustedDocID sorts exhausted posting iterators after every live
// one.
const exhaustedDocID = maxDocID + 1

// maxFrequency is the saturation point for per-document term counts.
const maxFrequency = 15

// NameID is the caller-supplied identifier for one logical title. For
// this application it is the byte offset of the title's record in
// title.basics.tsv, but nothing in this package depends on that.
type NameID = uint64

// Config is the JSON-encoded metadata written alongside the index. The
// analyzer settings recorded here guarantee query-time analysis matches
// index-time analysis. The schema version lives in the parent index's
// config, not here.
type Config struct {
	NgramType      string  `json:"ngram_type"`
	NgramSize      int     `json:"ngram_size"`
	AvgDocumentLen float64 `json:"avg_document_len"`
	NumDocuments   uint64  `json:"num_documents"`
}

func (c Config) analyzerConfig() (analyzer.Config, error) {
	typ, ok := analyzer.ParseNgramType(c.NgramType)
	if !ok {
		return analyzer.Config{}, &indexerrors.UnknownEnumError{Kind: "ngram type", Value: c.NgramType}
	}
	if c.NgramSize < 2 {
		return analyzer.Config{}, &indexerrors.ConfigError{Detail: fmt.Sprintf(
			"ngram size %d out of range", c.NgramSize)}
	}
	return analyzer.Config{Type: typ, Size: c.NgramSize}, nil
}

// Query configures one search of the name index.
type Query struct {
	// Name is the free-text name to search for. It is analyzed with the
	// same settings the index was built with.
	Name string
	// Size bounds the number of results.
	Size int
	// Scorer ranks matching documents. The zero value is Okapi BM25.
	Scorer Scorer
	// StopWordRatio partitions query ngrams by corpus frequency: ngrams
	// whose document-frequency ratio is below it drive the search, the
	// rest only boost scores of documents already found. Zero disables
	// the partition.
	StopWordRatio float64
}

// NewQuery returns a query for name with the package defaults: 30
// results, BM25, and a 1% stop-word ratio.
func NewQuery(name string) Query {
	return Query{Name: name, Size: 30, Scorer: OkapiBM25, StopWordRatio: 0.01}
}
