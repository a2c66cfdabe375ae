// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package nameindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"github.com/nwalsh/imdbsearch/internal/analyzer"
	"github.com/nwalsh/imdbsearch/internal/fstutil"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
)

// Writer builds a name index. The idmap and norms files stream to disk
// as names are inserted; postings and the term FST must buffer in
// memory because the FST needs its ngrams in sorted order and every
// posting list is length-prefixed.
type Writer struct {
	dir string
	cfg analyzer.Config

	idmapFile *os.File
	idmap     *bufio.Writer
	normsFile *os.File
	norms     *bufio.Writer

	terms     map[string][]posting
	nextDocID uint32
	avgDocLen float64
}

type posting struct {
	docid     uint32
	frequency uint32
}

// NewWriter opens a name index for writing under dir, truncating any
// previous name index there. cfg fixes the analyzer settings; queries
// against the finished index reuse them automatically.
func NewWriter(dir string, cfg analyzer.Config) (*Writer, error) {
	idmapFile, err := os.Create(filepath.Join(dir, IDMapFilename))
	if err != nil {
		return nil, &indexerrors.IOError{Path: filepath.Join(dir, IDMapFilename), Cause: err}
	}
	normsFile, err := os.Create(filepath.Join(dir, NormsFilename))
	if err != nil {
		idmapFile.Close()
		return nil, &indexerrors.IOError{Path: filepath.Join(dir, NormsFilename), Cause: err}
	}
	return &Writer{
		dir:       dir,
		cfg:       cfg,
		idmapFile: idmapFile,
		idmap:     bufio.NewWriterSize(idmapFile, 64*1024),
		normsFile: normsFile,
		norms:     bufio.NewWriterSize(normsFile, 64*1024),
		terms:     make(map[string][]posting),
	}, nil
}

// Insert indexes name under a fresh docid associated with nameID.
// Multiple names may share one nameID; each gets its own docid so that
// document-length normalization sees each variant separately.
func (w *Writer) Insert(nameID NameID, name string) error {
	if w.nextDocID > maxDocID {
		return indexerrors.ErrIndexCapacityExceeded
	}
	docid := w.nextDocID
	w.nextDocID++

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], nameID)
	if _, err := w.idmap.Write(buf[:]); err != nil {
		return &indexerrors.IOError{Path: filepath.Join(w.dir, IDMapFilename), Cause: err}
	}

	// Document length in ngrams, saturating at the u16 ceiling. Scoring
	// stays finite either way; a name that long is degenerate input.
	var count uint16
	analyzer.Each(w.cfg, name, func(ngram string) {
		w.insertTerm(docid, ngram)
		if count < 1<<16-1 {
			count++
		}
	})
	w.avgDocLen += (float64(count) - w.avgDocLen) / float64(w.nextDocID)

	binary.LittleEndian.PutUint16(buf[:2], count)
	if _, err := w.norms.Write(buf[:2]); err != nil {
		return &indexerrors.IOError{Path: filepath.Join(w.dir, NormsFilename), Cause: err}
	}
	return nil
}

// insertTerm bumps the frequency of (term, docid). Docids are assigned
// monotonically, so the posting for the current docid is always the
// last element of the term's list.
func (w *Writer) insertTerm(docid uint32, term string) {
	list := w.terms[term]
	if n := len(list); n > 0 && list[n-1].docid == docid {
		list[n-1].frequency++
		return
	}
	w.terms[term] = append(list, posting{docid: docid, frequency: 1})
}

// NumDocuments returns the number of names inserted so far.
func (w *Writer) NumDocuments() uint64 {
	return uint64(w.nextDocID)
}

// Finish sorts the buffered terms, writes the term FST and postings
// file, writes the config, and flushes everything to disk.
func (w *Writer) Finish() error {
	terms := make([]string, 0, len(w.terms))
	for term := range w.terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	ngram, err := fstutil.CreateMapWriter(filepath.Join(w.dir, NgramFilename))
	if err != nil {
		return err
	}
	postingsPath := filepath.Join(w.dir, PostingsFilename)
	postingsFile, err := os.Create(postingsPath)
	if err != nil {
		ngram.Close()
		return &indexerrors.IOError{Path: postingsPath, Cause: err}
	}
	pw := bufio.NewWriterSize(postingsFile, 64*1024)

	var offset uint64
	var buf [4]byte
	for _, term := range terms {
		if err := ngram.Insert([]byte(term), offset); err != nil {
			postingsFile.Close()
			ngram.Close()
			return err
		}
		list := w.terms[term]
		binary.LittleEndian.PutUint32(buf[:], uint32(len(list)))
		if _, err := pw.Write(buf[:]); err != nil {
			postingsFile.Close()
			ngram.Close()
			return &indexerrors.IOError{Path: postingsPath, Cause: err}
		}
		for _, p := range list {
			freq := p.frequency
			if freq > maxFrequency {
				freq = maxFrequency
			}
			binary.LittleEndian.PutUint32(buf[:], freq<<28|p.docid)
			if _, err := pw.Write(buf[:]); err != nil {
				postingsFile.Close()
				ngram.Close()
				return &indexerrors.IOError{Path: postingsPath, Cause: err}
			}
		}
		offset += 4 + 4*uint64(len(list))
	}
	if err := ngram.Close(); err != nil {
		postingsFile.Close()
		return err
	}
	if err := pw.Flush(); err != nil {
		postingsFile.Close()
		return &indexerrors.IOError{Path: postingsPath, Cause: err}
	}
	if err := postingsFile.Close(); err != nil {
		return &indexerrors.IOError{Path: postingsPath, Cause: err}
	}

	if err := w.writeConfig(); err != nil {
		return err
	}

	if err := w.idmap.Flush(); err != nil {
		return &indexerrors.IOError{Path: filepath.Join(w.dir, IDMapFilename), Cause: err}
	}
	if err := w.idmapFile.Close(); err != nil {
		return &indexerrors.IOError{Path: filepath.Join(w.dir, IDMapFilename), Cause: err}
	}
	if err := w.norms.Flush(); err != nil {
		return &indexerrors.IOError{Path: filepath.Join(w.dir, NormsFilename), Cause: err}
	}
	if err := w.normsFile.Close(); err != nil {
		return &indexerrors.IOError{Path: filepath.Join(w.dir, NormsFilename), Cause: err}
	}
	return nil
}

func (w *Writer) writeConfig() error {
	path := filepath.Join(w.dir, ConfigFilename)
	data, err := json.MarshalIndent(Config{
		NgramType:      w.cfg.Type.String(),
		NgramSize:      w.cfg.Size,
		AvgDocumentLen: w.avgDocLen,
		NumDocuments:   uint64(w.nextDocID),
	}, "", "  ")
	if err != nil {
		return &indexerrors.ConfigError{Detail: fmt.Sprintf("encoding name index config: %v", err)}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &indexerrors.IOError{Path: path, Cause: err}
	}
	return nil
}
