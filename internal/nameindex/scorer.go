// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package nameindex

import (
	"strings"

	"github.com/nwalsh/imdbsearch/internal/indexerrors"
)

// Scorer selects the ranking function used by name searches.
type Scorer int

const (
	// OkapiBM25 is a TF-IDF-like ranking function that also normalizes
	// by document length. It is the default.
	OkapiBM25 Scorer = iota
	// TFIDF is the traditional TF-IDF ranking function.
	TFIDF
	// Jaccard ranks by ngram overlap: the number of shared ngrams divided
	// by the query length plus the name length minus that overlap, all
	// counted in ngrams with multiplicity.
	Jaccard
	// QueryRatio ranks by the fraction of query ngrams found in the
	// name.
	QueryRatio
)

// ScorerNames lists the accepted textual scorer names.
var ScorerNames = []string{"okapibm25", "tfidf", "jaccard", "queryratio"}

// String returns the textual form accepted by ParseScorer.
func (s Scorer) String() string {
	switch s {
	case OkapiBM25:
		return "okapibm25"
	case TFIDF:
		return "tfidf"
	case Jaccard:
		return "jaccard"
	case QueryRatio:
		return "queryratio"
	default:
		return "unknown"
	}
}

// ParseScorer parses one of the names in ScorerNames.
func ParseScorer(s string) (Scorer, error) {
	switch strings.ToLower(s) {
	case "okapibm25", "bm25":
		return OkapiBM25, nil
	case "tfidf":
		return TFIDF, nil
	case "jaccard":
		return Jaccard, nil
	case "queryratio":
		return QueryRatio, nil
	default:
		return 0, &indexerrors.UnknownEnumError{Kind: "scorer", Value: s}
	}
}
