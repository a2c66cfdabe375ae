// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package nameindex

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/goccy/go-json"

	"github.com/nwalsh/imdbsearch/internal/analyzer"
	"github.com/nwalsh/imdbsearch/internal/fstutil"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/scored"
)

// Reader is a read-only, memory-mapped view of a finished name index.
// It is safe for concurrent use and cheap to clone by reopening.
type Reader struct {
	cfg      Config
	analyze  analyzer.Config
	ngram    *fstutil.MapReader
	postings mappedFile
	idmap    mappedFile
	norms    mappedFile
}

type mappedFile struct {
	f    *os.File
	data mmap.MMap
}

func openMapped(path string) (mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return mappedFile{}, &indexerrors.IOError{Path: path, Cause: err}
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return mappedFile{}, &indexerrors.IOError{Path: path, Cause: err}
	}
	return mappedFile{f: f, data: data}, nil
}

func (m mappedFile) close() error {
	err := m.data.Unmap()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open memory-maps the name index in dir and parses its config.
func Open(dir string) (*Reader, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ConfigFilename))
	if err != nil {
		return nil, &indexerrors.IOError{Path: filepath.Join(dir, ConfigFilename), Cause: err}
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &indexerrors.ConfigError{Detail: fmt.Sprintf("parsing name index config: %v", err)}
	}
	acfg, err := cfg.analyzerConfig()
	if err != nil {
		return nil, err
	}

	ngram, err := fstutil.OpenMapReader(filepath.Join(dir, NgramFilename))
	if err != nil {
		return nil, err
	}
	r := &Reader{cfg: cfg, analyze: acfg, ngram: ngram}
	if r.postings, err = openMapped(filepath.Join(dir, PostingsFilename)); err != nil {
		ngram.Close()
		return nil, err
	}
	if r.idmap, err = openMapped(filepath.Join(dir, IDMapFilename)); err != nil {
		r.postings.close()
		ngram.Close()
		return nil, err
	}
	if r.norms, err = openMapped(filepath.Join(dir, NormsFilename)); err != nil {
		r.idmap.close()
		r.postings.close()
		ngram.Close()
		return nil, err
	}
	if uint64(len(r.idmap.data)) != 8*cfg.NumDocuments {
		r.Close()
		return nil, &indexerrors.CorruptionError{Detail: fmt.Sprintf(
			"idmap holds %d bytes, want %d for %d documents",
			len(r.idmap.data), 8*cfg.NumDocuments, cfg.NumDocuments)}
	}
	if uint64(len(r.norms.data)) != 2*cfg.NumDocuments {
		r.Close()
		return nil, &indexerrors.CorruptionError{Detail: fmt.Sprintf(
			"norms holds %d bytes, want %d for %d documents",
			len(r.norms.data), 2*cfg.NumDocuments, cfg.NumDocuments)}
	}
	return r, nil
}

// Config returns the configuration the index was built with.
func (r *Reader) Config() Config {
	return r.cfg
}

// Close unmaps every file backing the index.
func (r *Reader) Close() error {
	err := r.ngram.Close()
	for _, m := range []mappedFile{r.postings, r.idmap, r.norms} {
		if m.f == nil {
			continue
		}
		if cerr := m.close(); err == nil {
			err = cerr
		}
	}
	return err
}

// nameIDOf maps a docid to the caller-supplied name id it was indexed
// under. Docids come from the postings, so they are always in range for
// an uncorrupted index.
func (r *Reader) nameIDOf(docid uint32) NameID {
	return binary.LittleEndian.Uint64(r.idmap.data[8*int(docid):])
}

// documentLength returns the length, in ngrams, of the given document.
func (r *Reader) documentLength(docid uint32) uint64 {
	return uint64(binary.LittleEndian.Uint16(r.norms.data[2*int(docid):]))
}

// Search runs query against the index and returns up to query.Size
// results in descending score order, deduplicated by name id and
// normalized so a nonzero top score becomes 1.0.
func (r *Reader) Search(query Query) (*scored.Results[NameID], error) {
	s, err := newSearcher(r, query)
	if err != nil {
		return nil, err
	}
	return collectTopK(r, s, query.Size), nil
}

// postingIter streams one term's postings in ascending docid order and
// scores the current posting on demand.
type postingIter struct {
	rd     *Reader
	scorer Scorer
	// count is the number of times the term appeared in the query; it
	// scales every score this iterator produces.
	count float64
	rest  []byte
	df    int
	// docid is exhaustedDocID once the iterator runs dry, which keeps
	// exhausted iterators at the bottom of the disjunction heap without
	// an extra flag check in the comparison.
	docid uint32
	freq  uint32
	// okapiIDF is constant across a posting list, so it is computed once.
	okapiIDF float64
}

func newPostingIter(rd *Reader, scorer Scorer, count int, term string) (*postingIter, error) {
	offset, ok, err := rd.ngram.Get([]byte(term))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &postingIter{rd: rd, scorer: scorer, docid: exhaustedDocID}, nil
	}
	data := rd.postings.data
	if offset+4 > uint64(len(data)) {
		return nil, &indexerrors.CorruptionError{Detail: fmt.Sprintf(
			"postings offset %d beyond file of %d bytes", offset, len(data))}
	}
	df := int(binary.LittleEndian.Uint32(data[offset:]))
	start := offset + 4
	end := start + 4*uint64(df)
	if end > uint64(len(data)) {
		return nil, &indexerrors.CorruptionError{Detail: fmt.Sprintf(
			"posting list at offset %d runs past end of file", offset)}
	}

	n := float64(rd.cfg.NumDocuments)
	dff := float64(df)
	it := &postingIter{
		rd:       rd,
		scorer:   scorer,
		count:    float64(count),
		rest:     data[start:end],
		df:       df,
		okapiIDF: log2(1 + (n-dff+0.5)/(dff+0.5)),
	}
	it.advance()
	return it, nil
}

func (it *postingIter) exhausted() bool {
	return it.docid == exhaustedDocID
}

func (it *postingIter) advance() {
	if len(it.rest) == 0 {
		it.docid = exhaustedDocID
		return
	}
	v := binary.LittleEndian.Uint32(it.rest)
	it.rest = it.rest[4:]
	it.docid = v & maxDocID
	it.freq = v >> 28
}

// score computes the current posting's contribution under the selected
// scorer, scaled by the query-side term count. Jaccard and QueryRatio
// contribute 1 per matching term; the disjunction applies their final
// division.
func (it *postingIter) score() float64 {
	var s float64
	switch it.scorer {
	case TFIDF:
		n := float64(it.rd.cfg.NumDocuments)
		s = float64(it.freq) * log2(n/(1+float64(it.df)))
	case Jaccard, QueryRatio:
		s = 1.0
	default: // OkapiBM25
		const k1, b = 1.2, 0.75
		norm := float64(it.rd.documentLength(it.docid)) / it.rd.cfg.AvgDocumentLen
		tf := float64(it.freq)
		s = tf * (k1 + 1) / (tf + k1*(1-b+b*norm)) * it.okapiIDF
		if s < 0 {
			s = 0
		}
	}
	return s * it.count
}
