// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package nameindex

import (
	"container/heap"
	"math"
)

func log2(x float64) float64 {
	return math.Log2(x)
}

// disjunction merges a set of posting iterators so that each matching
// docid is yielded once, in ascending order, with a score summing the
// contribution of every iterator containing it. The classic min-heap
// construction: the iterator at the smallest current docid is always on
// top.
type disjunction struct {
	rd *Reader
	// queryLen is the ngram count of the whole query, not just of this
	// disjunction's terms. Jaccard and QueryRatio divide by it, and
	// using a partition-local count would overweight the partition with
	// fewer terms.
	queryLen float64
	scorer   Scorer
	iters    []*postingIter
	done     bool
}

func newDisjunction(rd *Reader, queryLen int, scorer Scorer, iters []*postingIter) *disjunction {
	d := &disjunction{
		rd:       rd,
		queryLen: float64(queryLen),
		scorer:   scorer,
		iters:    iters,
		done:     len(iters) == 0,
	}
	heap.Init(d)
	return d
}

func emptyDisjunction(rd *Reader, scorer Scorer) *disjunction {
	return &disjunction{rd: rd, scorer: scorer, done: true}
}

// heap.Interface. Less orders by ascending docid; exhausted iterators
// carry exhaustedDocID and sink to the bottom.
func (d *disjunction) Len() int            { return len(d.iters) }
func (d *disjunction) Less(i, j int) bool  { return d.iters[i].docid < d.iters[j].docid }
func (d *disjunction) Swap(i, j int)       { d.iters[i], d.iters[j] = d.iters[j], d.iters[i] }
func (d *disjunction) Push(x any)          { d.iters = append(d.iters, x.(*postingIter)) }
func (d *disjunction) Pop() any            { panic("disjunction: pop unused") }

// next yields the smallest unvisited docid with its accumulated score,
// or ok=false when the disjunction is exhausted.
func (d *disjunction) next() (docid uint32, score float64, ok bool) {
	if d.done {
		return 0, 0, false
	}
	top := d.iters[0]
	if top.exhausted() {
		d.done = true
		return 0, 0, false
	}
	docid = top.docid
	score = top.score()
	top.advance()
	heap.Fix(d, 0)
	// Fold in every other iterator positioned at the same docid.
	for !d.iters[0].exhausted() && d.iters[0].docid == docid {
		score += d.iters[0].score()
		d.iters[0].advance()
		heap.Fix(d, 0)
	}
	// Set-overlap scorers are cheapest to finish here, where the
	// accumulated score is the intersection cardinality |A ∩ B|.
	switch d.scorer {
	case Jaccard:
		docLen := float64(d.rd.documentLength(docid))
		union := d.queryLen + docLen - score
		score /= union
	case QueryRatio:
		score /= d.queryLen
	}
	return docid, score, true
}

// skipTo advances every iterator to the first docid >= target. If any
// iterator sits exactly at target afterwards, the combined score for
// target is computed via next and returned; otherwise ok is false and
// the iterators rest at the first docid beyond target.
func (d *disjunction) skipTo(target uint32) (score float64, ok bool) {
	if d.done {
		return 0, false
	}
	found := false
	for {
		top := d.iters[0]
		if top.exhausted() || top.docid >= target {
			found = found || top.docid == target
			break
		}
		for !top.exhausted() && top.docid < target {
			top.advance()
		}
		found = found || top.docid == target
		heap.Fix(d, 0)
	}
	if !found {
		return 0, false
	}
	// At least one iterator sits at target, and target is the minimum
	// docid on the heap, so next() combines and consumes exactly it.
	_, score, ok = d.next()
	return score, ok
}
