// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package analyzer extracts ngrams from title names, identically at
// index time and query time.
package analyzer

import (
	"strings"
	"unicode/utf8"
)

// NgramType selects the windowing strategy used to extract ngrams.
type NgramType int

const (
	// Window slides a fixed-size window of codepoints across the whole
	// string.
	Window NgramType = iota
	// Edge emits successively longer prefixes of each whitespace-separated
	// token.
	Edge
)

func (t NgramType) String() string {
	switch t {
	case Window:
		return "window"
	case Edge:
		return "edge"
	default:
		return "unknown"
	}
}

// ParseNgramType parses "window" or "edge".
func ParseNgramType(s string) (NgramType, bool) {
	switch strings.ToLower(s) {
	case "window":
		return Window, true
	case "edge":
		return Edge, true
	default:
		return 0, false
	}
}

// Config configures ngram extraction.
type Config struct {
	Type NgramType
	// Size is the ngram size in codepoints; must be >= 2.
	Size int
}

// Each analyzes s under cfg, invoking fn once per emitted ngram in
// left-to-right order. Ngrams are substrings of the lowercased input;
// callers must not retain the passed string beyond the call if they
// need independence from future calls (Go strings are immutable, so in
// practice this is always safe).
func Each(cfg Config, s string, fn func(ngram string)) {
	lower := strings.ToLower(s)
	switch cfg.Type {
	case Edge:
		eachEdge(cfg, lower, fn)
	default:
		eachWindow(cfg, lower, fn)
	}
}

// All returns every ngram of s under cfg, in emission order (with
// duplicates, since the caller may want multiplicity for frequency
// accounting).
func All(cfg Config, s string) []string {
	var out []string
	Each(cfg, s, func(ngram string) { out = append(out, ngram) })
	return out
}

// runeSlice holds a string's codepoints alongside the byte offset each
// one starts at, so substrings can be sliced without re-scanning UTF-8
// from the start each time.
type runeSlice struct {
	s       string
	offsets []int // offsets[i] = byte offset of rune i; len == numRunes+1 (sentinel at end)
}

func newRuneSlice(s string) runeSlice {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(s))
	return runeSlice{s: s, offsets: offsets}
}

func (rs runeSlice) numRunes() int {
	return len(rs.offsets) - 1
}

func (rs runeSlice) slice(startRune, endRune int) string {
	return rs.s[rs.offsets[startRune]:rs.offsets[endRune]]
}

func eachWindow(cfg Config, s string, fn func(string)) {
	rs := newRuneSlice(s)
	n := rs.numRunes()
	if n == 0 {
		return
	}
	size := cfg.Size
	if n <= size {
		fn(s)
		return
	}
	last := n - size
	for start := 0; start <= last; start++ {
		fn(rs.slice(start, start+size))
	}
}

func eachEdge(cfg Config, s string, fn func(string)) {
	for _, tok := range strings.Fields(s) {
		eachEdgeToken(cfg, tok, fn)
	}
}

func eachEdgeToken(cfg Config, tok string, fn func(string)) {
	n := utf8.RuneCountInString(tok)
	if n < 3 {
		fn(tok)
		return
	}
	rs := newRuneSlice(tok)
	max := cfg.Size
	if max > n {
		max = n
	}
	for length := 3; length <= max; length++ {
		fn(rs.slice(0, length))
	}
}
