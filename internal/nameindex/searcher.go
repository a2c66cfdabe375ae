// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package nameindex

import (
	"container/heap"

	"github.com/nwalsh/imdbsearch/internal/analyzer"
	"github.com/nwalsh/imdbsearch/internal/scored"
)

// searcher streams scored docids for one query, in ascending docid
// order.
//
// The query's ngrams are partitioned by corpus frequency into a
// low-frequency set that drives the search and a high-frequency set
// that only boosts. This is dynamic stop-word detection: the partition
// is relative to the indexed corpus and recomputed per query, so stop
// words still influence scoring ("the matrix" ranks "The Matrix" over
// "Matrix") without forcing the search to visit every document
// containing "the". When every ngram lands on one side, that side
// becomes the primary set and no skipping happens.
type searcher struct {
	rd      *Reader
	primary *disjunction
	high    *disjunction
}

func newSearcher(rd *Reader, query Query) (*searcher, error) {
	// Analyze into a multiset; queryLen counts with multiplicity.
	multiset := make(map[string]int)
	queryLen := 0
	analyzer.Each(rd.analyze, query.Name, func(ngram string) {
		multiset[ngram]++
		queryLen++
	})

	numDocs := float64(rd.cfg.NumDocuments)
	var low, highIters []*postingIter
	for term, count := range multiset {
		it, err := newPostingIter(rd, query.Scorer, count, term)
		if err != nil {
			return nil, err
		}
		ratio := float64(it.df) / numDocs
		if ratio < query.StopWordRatio {
			low = append(low, it)
		} else {
			highIters = append(highIters, it)
		}
	}

	if len(low) == 0 {
		return &searcher{
			rd:      rd,
			primary: newDisjunction(rd, queryLen, query.Scorer, highIters),
			high:    emptyDisjunction(rd, query.Scorer),
		}, nil
	}
	return &searcher{
		rd:      rd,
		primary: newDisjunction(rd, queryLen, query.Scorer, low),
		high:    newDisjunction(rd, queryLen, query.Scorer, highIters),
	}, nil
}

// next yields the next matching docid with its combined score. The
// primary disjunction drives; the high-frequency disjunction is skipped
// forward and only adds to scores of docids the primary produced.
func (s *searcher) next() (docid uint32, score float64, ok bool) {
	docid, score, ok = s.primary.next()
	if !ok {
		return 0, 0, false
	}
	if boost, found := s.high.skipTo(docid); found {
		score += boost
	}
	return docid, score, true
}

// collectTopK gathers the best k results from the searcher into a
// bounded min-heap, deduplicating by name id.
func collectTopK(rd *Reader, s *searcher, k int) *scored.Results[NameID] {
	results := scored.NewResults[NameID]()
	if k <= 0 {
		return results
	}
	c := &collector{k: k, best: make(map[NameID]float64)}
	seq := 0
	for {
		docid, score, ok := s.next()
		if !ok {
			break
		}
		c.offer(rd.nameIDOf(docid), score, seq)
		seq++
	}
	for _, e := range c.drain() {
		results.Push(scored.New(e.nameid).WithScore(c.best[e.nameid]))
	}
	// Substituting each entry's best observed score can reorder ties
	// and duplicates whose later sighting scored higher; the sort is
	// stable, so equal scores keep ascending-docid order.
	results.SortDescending()
	results.Normalize()
	return results
}

type collectorEntry struct {
	score  float64
	nameid NameID
	// seq is the insertion sequence number, which is ascending in
	// docid. It breaks score ties so the collector's output order is
	// deterministic.
	seq int
}

// collector is a min-heap of at most k entries plus a nameid-to-best-
// score map. A nameid already present never reenters the heap; its map
// entry simply keeps the best score seen.
type collector struct {
	k       int
	entries []collectorEntry
	best    map[NameID]float64
}

func (c *collector) Len() int { return len(c.entries) }
func (c *collector) Less(i, j int) bool {
	if c.entries[i].score != c.entries[j].score {
		return c.entries[i].score < c.entries[j].score
	}
	// Among equal scores the latest insertion is the weakest, so the
	// earliest survives eviction.
	return c.entries[i].seq > c.entries[j].seq
}
func (c *collector) Swap(i, j int) { c.entries[i], c.entries[j] = c.entries[j], c.entries[i] }
func (c *collector) Push(x any)    { c.entries = append(c.entries, x.(collectorEntry)) }
func (c *collector) Pop() any {
	n := len(c.entries)
	e := c.entries[n-1]
	c.entries = c.entries[:n-1]
	return e
}

func (c *collector) offer(nameid NameID, score float64, seq int) {
	if prev, ok := c.best[nameid]; ok {
		if score > prev {
			c.best[nameid] = score
		}
		return
	}
	if len(c.entries) < c.k {
		c.best[nameid] = score
		heap.Push(c, collectorEntry{score: score, nameid: nameid, seq: seq})
		return
	}
	if score > c.entries[0].score {
		delete(c.best, c.entries[0].nameid)
		heap.Pop(c)
		c.best[nameid] = score
		heap.Push(c, collectorEntry{score: score, nameid: nameid, seq: seq})
	}
}

// drain empties the heap into best-to-worst order.
func (c *collector) drain() []collectorEntry {
	out := make([]collectorEntry, len(c.entries))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(c).(collectorEntry)
	}
	return out
}
