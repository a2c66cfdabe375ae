// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nwalsh/imdbsearch/internal/index"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/logging"
	"github.com/nwalsh/imdbsearch/internal/nameindex"
	"github.com/nwalsh/imdbsearch/internal/record"
	"github.com/nwalsh/imdbsearch/internal/scored"
)

// Searcher executes queries against an Index and returns ranked media
// entities. One Searcher serves many queries; it holds no per-query
// state. Like the Index it wraps, it must not be shared across
// goroutines — clone the index and build a Searcher per worker.
type Searcher struct {
	idx *index.Index
}

// NewSearcher returns a searcher over the given index.
func NewSearcher(idx *index.Index) *Searcher {
	return &Searcher{idx: idx}
}

// Index returns the underlying index.
func (s *Searcher) Index() *index.Index {
	return s.idx
}

// Search executes the query. Results carry scores in [0, 1] with the
// best result at 1.0 when any score is positive.
//
// The execution strategy depends on the query: a name with a name
// scorer runs through the name index and then filters; a name without
// a scorer, or no name at all, falls back to an exhaustive scan of the
// title data (bounded to one show's episodes when the query names a TV
// show). Empty queries return no results.
func (s *Searcher) Search(ctx context.Context, q Query) (*scored.Results[record.MediaEntity], error) {
	if q.IsEmpty() {
		return scored.NewResults[record.MediaEntity](), nil
	}
	var results *scored.Results[record.MediaEntity]
	var err error
	if nq, ok := q.nameQuery(); ok {
		results, err = s.searchWithName(q, nq)
	} else {
		results, err = s.SearchExhaustive(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	results.Trim(q.Size)
	results.Normalize()
	return results, nil
}

func (s *Searcher) searchWithName(q Query, nq nameindex.Query) (*scored.Results[record.MediaEntity], error) {
	titles, err := s.idx.Search(nq)
	if err != nil {
		return nil, err
	}
	results := scored.NewResults[record.MediaEntity]()
	for _, r := range titles.Items() {
		// Without similarity rescoring the name-index order is final,
		// so stop as soon as enough filtered results accumulate.
		if q.Similarity.IsNone() && results.Len() >= q.Size {
			break
		}
		ent, err := s.idx.EntityFromTitle(r.Value())
		if err != nil {
			return nil, err
		}
		if q.Matches(ent) {
			results.Push(scored.New(ent).WithScore(r.Score()))
		}
	}
	if !q.Similarity.IsNone() {
		results.Rescore(func(ent record.MediaEntity) float64 {
			return s.similarity(q, ent.Title.Name)
		})
	}
	return results, nil
}

// SearchExhaustive scans title.basics.tsv (or one show's episode list)
// instead of using the name index. Cost scales with the corpus; ctx
// cancellation is checked as the scan proceeds.
func (s *Searcher) SearchExhaustive(ctx context.Context, q Query) (*scored.Results[record.MediaEntity], error) {
	if q.TVShowID != "" {
		return s.searchWithTVShow(q)
	}
	logging.Debug().Str("query", q.String()).Msg("exhaustive scan")

	basicsPath := filepath.Join(s.idx.DataDir(), record.BasicsFilename)
	f, err := os.Open(basicsPath)
	if err != nil {
		return nil, &indexerrors.IOError{Path: basicsPath, Cause: err}
	}
	defer f.Close()
	tr, err := record.NewTSVReader(f, index.BasicsHeader)
	if err != nil {
		return nil, &indexerrors.InvalidInputError{Detail: fmt.Sprintf("%s: %v", basicsPath, err)}
	}

	switch {
	case !q.hasFilters():
		return s.scanNamesOnly(ctx, q, tr)
	case q.needsOnlyTitle():
		return s.scanTitles(ctx, q, tr)
	default:
		return s.scanEntities(ctx, q, tr)
	}
}

// scanNamesOnly ranks every title by similarity using only its id and
// primary name, deferring entity fetches to the trimmed result set.
func (s *Searcher) scanNamesOnly(ctx context.Context, q Query, tr *record.TSVReader) (*scored.Results[record.MediaEntity], error) {
	type idName struct {
		id   string
		name string
	}
	candidates := scored.NewResults[idName]()
	rows := 0
	for {
		_, row, err := tr.Next()
		if err != nil {
			break
		}
		if err := checkCtx(ctx, &rows); err != nil {
			return nil, err
		}
		if len(row) < 3 {
			return nil, &indexerrors.InvalidInputError{Detail: fmt.Sprintf(
				"basics row has %d fields", len(row))}
		}
		candidates.Push(scored.New(idName{id: row[0], name: row[2]}))
	}
	candidates.Rescore(func(c idName) float64 {
		return s.similarity(q, c.name)
	})
	candidates.Trim(q.Size)

	results := scored.NewResults[record.MediaEntity]()
	for _, r := range candidates.Items() {
		ent, ok, err := s.idx.Entity(r.Value().id)
		if err != nil {
			return nil, err
		}
		if ok {
			results.Push(scored.New(ent).WithScore(r.Score()))
		}
	}
	return results, nil
}

// scanTitles applies title-only filters, then fetches entities for the
// trimmed survivors.
func (s *Searcher) scanTitles(ctx context.Context, q Query, tr *record.TSVReader) (*scored.Results[record.MediaEntity], error) {
	candidates := scored.NewResults[record.Title]()
	rows := 0
	for {
		_, row, err := tr.Next()
		if err != nil {
			break
		}
		if err := checkCtx(ctx, &rows); err != nil {
			return nil, err
		}
		title, err := record.ParseTitleRow(tr.Header(), row)
		if err != nil {
			return nil, &indexerrors.InvalidInputError{Detail: err.Error()}
		}
		if q.MatchesTitle(title) {
			candidates.Push(scored.New(title))
		}
	}
	candidates.Rescore(func(t record.Title) float64 {
		return s.similarity(q, t.Name)
	})
	candidates.Trim(q.Size)

	results := scored.NewResults[record.MediaEntity]()
	for _, r := range candidates.Items() {
		ent, err := s.idx.EntityFromTitle(r.Value())
		if err != nil {
			return nil, err
		}
		results.Push(scored.New(ent).WithScore(r.Score()))
	}
	return results, nil
}

// scanEntities fetches the full entity for every row because the
// filters need rating or episode data.
func (s *Searcher) scanEntities(ctx context.Context, q Query, tr *record.TSVReader) (*scored.Results[record.MediaEntity], error) {
	results := scored.NewResults[record.MediaEntity]()
	rows := 0
	for {
		_, row, err := tr.Next()
		if err != nil {
			break
		}
		if err := checkCtx(ctx, &rows); err != nil {
			return nil, err
		}
		title, err := record.ParseTitleRow(tr.Header(), row)
		if err != nil {
			return nil, &indexerrors.InvalidInputError{Detail: err.Error()}
		}
		ent, err := s.idx.EntityFromTitle(title)
		if err != nil {
			return nil, err
		}
		if q.Matches(ent) {
			results.Push(scored.New(ent))
		}
	}
	results.Rescore(func(ent record.MediaEntity) float64 {
		return s.similarity(q, ent.Title.Name)
	})
	return results, nil
}

func (s *Searcher) searchWithTVShow(q Query) (*scored.Results[record.MediaEntity], error) {
	episodes, err := s.idx.Seasons(q.TVShowID)
	if err != nil {
		return nil, err
	}
	results := scored.NewResults[record.MediaEntity]()
	for _, ep := range episodes {
		ent, ok, err := s.idx.Entity(ep.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if q.Matches(ent) {
			results.Push(scored.New(ent))
		}
	}
	if !q.Similarity.IsNone() {
		results.Rescore(func(ent record.MediaEntity) float64 {
			return s.similarity(q, ent.Title.Name)
		})
	}
	return results, nil
}

// similarity scores name against the query's name component; a query
// with no name scores everything 0.
func (s *Searcher) similarity(q Query, name string) float64 {
	if q.Name == "" {
		return 0.0
	}
	return q.Similarity.Score(q.Name, name)
}

// checkCtx polls ctx every 4096 rows so a canceled exhaustive scan
// stops promptly without a per-row branch cost.
func checkCtx(ctx context.Context, rows *int) error {
	*rows++
	if *rows%4096 == 0 {
		return ctx.Err()
	}
	return nil
}
