// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package scored provides a generic scored-value container used by every
// search path: name-index results, similarity-rescored results, and the
// final ranked media entities.
package scored

import (
	"math"
	"sort"
)

// Scored pairs a value with a relevance score. Scores are never NaN;
// every mutation path panics on NaN rather than letting one propagate
// into sort comparisons, where it would poison the ordering.
type Scored[T any] struct {
	score float64
	value T
}

// New returns value with a score of 1.0.
func New[T any](value T) Scored[T] {
	return Scored[T]{score: 1.0, value: value}
}

// Score returns this item's score. Most search APIs keep scores in
// [0, 1], but no range is enforced here.
func (s Scored[T]) Score() float64 {
	return s.score
}

// WithScore returns a copy of s carrying the given score. Panics if
// score is NaN or infinite.
func (s Scored[T]) WithScore(score float64) Scored[T] {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		panic("scored: non-finite score")
	}
	s.score = score
	return s
}

// Value returns the underlying value.
func (s Scored[T]) Value() T {
	return s.value
}

// Map returns a new scored value holding f(value) with an unchanged
// score.
func Map[T, U any](s Scored[T], f func(T) U) Scored[U] {
	return Scored[U]{score: s.score, value: f(s.value)}
}

// Results is a collection of scored values, maintained in descending
// score order by the operations that care (Rescore, the search
// collectors). Push appends without reordering; callers that push out
// of order must Rescore or otherwise sort before exposing the
// collection.
type Results[T any] struct {
	items []Scored[T]
}

// NewResults returns an empty collection.
func NewResults[T any]() *Results[T] {
	return &Results[T]{}
}

// Push appends a scored value.
func (r *Results[T]) Push(s Scored[T]) {
	r.items = append(r.items, s)
}

// Len returns the number of results.
func (r *Results[T]) Len() int {
	return len(r.items)
}

// Empty reports whether the collection has no results.
func (r *Results[T]) Empty() bool {
	return len(r.items) == 0
}

// Items returns the underlying slice in order. The slice is shared;
// callers must not mutate it while continuing to use r.
func (r *Results[T]) Items() []Scored[T] {
	return r.items
}

// Normalize scales every score by the top score so the first result has
// score 1.0. If the collection is empty or the top score is zero, this
// is a no-op. Idempotent, and never changes the ordering.
func (r *Results[T]) Normalize() {
	if len(r.items) == 0 {
		return
	}
	top := r.items[0].score
	if top == 0 {
		return
	}
	for i := range r.items {
		r.items[i].score /= top
	}
}

// Rescore recomputes every score with fn and re-sorts the collection in
// descending score order. The sort is stable, so equal scores keep
// their prior relative order.
func (r *Results[T]) Rescore(fn func(T) float64) {
	for i := range r.items {
		r.items[i] = r.items[i].WithScore(fn(r.items[i].value))
	}
	r.SortDescending()
}

// SortDescending stably sorts the collection by descending score.
func (r *Results[T]) SortDescending() {
	sort.SliceStable(r.items, func(i, j int) bool {
		return r.items[i].score > r.items[j].score
	})
}

// Trim truncates the collection to at most size results.
func (r *Results[T]) Trim(size int) {
	if size < len(r.items) {
		r.items = r.items[:size]
	}
}
