// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package search

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"

	"github.com/nwalsh/imdbsearch/internal/indexerrors"
)

// Similarity selects the string-similarity function used to rescore
// results after a name search. The zero value disables rescoring.
type Similarity int

const (
	// SimNone performs no similarity rescoring.
	SimNone Similarity = iota
	// SimLevenshtein converts Levenshtein edit distance to a
	// similarity.
	SimLevenshtein
	// SimJaro uses the Jaro edit similarity.
	SimJaro
	// SimJaroWinkler uses Jaro-Winkler, which boosts common prefixes.
	SimJaroWinkler
)

// SimilarityNames lists the accepted textual similarity names.
var SimilarityNames = []string{"none", "levenshtein", "jaro", "jarowinkler"}

// String returns the textual form accepted by ParseSimilarity.
func (s Similarity) String() string {
	switch s {
	case SimLevenshtein:
		return "levenshtein"
	case SimJaro:
		return "jaro"
	case SimJaroWinkler:
		return "jarowinkler"
	default:
		return "none"
	}
}

// ParseSimilarity parses one of the names in SimilarityNames.
func ParseSimilarity(s string) (Similarity, error) {
	switch strings.ToLower(s) {
	case "none":
		return SimNone, nil
	case "levenshtein":
		return SimLevenshtein, nil
	case "jaro":
		return SimJaro, nil
	case "jarowinkler", "jaro-winkler":
		return SimJaroWinkler, nil
	default:
		return 0, &indexerrors.UnknownEnumError{Kind: "similarity", Value: s}
	}
}

// IsNone reports whether no similarity function is selected.
func (s Similarity) IsNone() bool {
	return s == SimNone
}

// smallestScore is the floor applied to similarity scores. Scores feed
// a later normalization step that divides by the top score and leaves
// an all-zero result set untouched, so the floor keeps the top result
// positive and lets it normalize to 1.0.
const smallestScore = 2.220446049250313e-16

// Score computes the similarity of two strings in (0, 1]. SimNone
// always scores 1.0.
func (s Similarity) Score(q1, q2 string) float64 {
	var sim float64
	switch s {
	case SimLevenshtein:
		// Distance converts to similarity with a +1 in the denominator,
		// which both avoids dividing by zero and makes identical
		// strings score exactly 1.0.
		sim = 1.0 / (1.0 + float64(levenshtein.ComputeDistance(q1, q2)))
	case SimJaro:
		// A boost threshold above any possible Jaro score disables the
		// Winkler prefix bonus, leaving the plain Jaro similarity.
		sim = smetrics.JaroWinkler(q1, q2, 1.1, 0)
	case SimJaroWinkler:
		sim = smetrics.JaroWinkler(q1, q2, 0.7, 4)
	default:
		sim = 1.0
	}
	if sim < smallestScore {
		return smallestScore
	}
	return sim
}
