// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package search provides the high-level query API: a compact textual
// query syntax combining a fuzzy name with structured filters, and a
// Searcher that executes queries against an Index and returns ranked
// media entities.
package search

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/nameindex"
	"github.com/nwalsh/imdbsearch/internal/record"
)

// DefaultSize is the result count a fresh query asks for.
const DefaultSize = 30

// Range is an inclusive range filter with optionally unbounded ends.
// The zero value matches everything (including records that lack the
// filtered field).
type Range struct {
	Start *uint32
	End   *uint32
}

// IsNone reports whether the range is unconstrained.
func (r Range) IsNone() bool {
	return r.Start == nil && r.End == nil
}

// Contains reports whether the optional value v satisfies the range. A
// missing value satisfies only an unconstrained range.
func (r Range) Contains(v *uint32) bool {
	if v == nil {
		return r.IsNone()
	}
	if r.Start != nil && *v < *r.Start {
		return false
	}
	if r.End != nil && *v > *r.End {
		return false
	}
	return true
}

// String formats the range in the query syntax: "A-B", "A-", "-B", a
// bare "A" when both ends coincide, or "-" when unconstrained.
func (r Range) String() string {
	switch {
	case r.Start == nil && r.End == nil:
		return "-"
	case r.End == nil:
		return fmt.Sprintf("%d-", *r.Start)
	case r.Start == nil:
		return fmt.Sprintf("-%d", *r.End)
	case *r.Start == *r.End:
		return strconv.FormatUint(uint64(*r.Start), 10)
	default:
		return fmt.Sprintf("%d-%d", *r.Start, *r.End)
	}
}

// ParseRange parses the range syntax accepted by String. A bare number
// bounds both ends.
func ParseRange(s string) (Range, error) {
	parseBound := func(text string) (*uint32, error) {
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return nil, &indexerrors.InvalidInputError{Detail: fmt.Sprintf("range bound %q: %v", text, err)}
		}
		v := uint32(n)
		return &v, nil
	}
	i := strings.IndexByte(s, '-')
	if i < 0 {
		bound, err := parseBound(s)
		if err != nil {
			return Range{}, err
		}
		// Parse twice so the two ends are independent pointers.
		other, _ := parseBound(s)
		return Range{Start: bound, End: other}, nil
	}
	startText := strings.TrimSpace(s[:i])
	endText := strings.TrimSpace(s[i+1:])
	var r Range
	var err error
	if startText != "" {
		if r.Start, err = parseBound(startText); err != nil {
			return Range{}, err
		}
	}
	if endText != "" {
		if r.End, err = parseBound(endText); err != nil {
			return Range{}, err
		}
	}
	return r, nil
}

// Query combines an optional fuzzy name with conjunctive structured
// filters. Empty queries return no results.
type Query struct {
	// Name is the free-text name to search for; empty means no name
	// component.
	Name string
	// NameScorer ranks name-index results. Nil disables the name index
	// entirely, forcing an exhaustive similarity-ranked scan; use this
	// for evaluation runs, not interactive search.
	NameScorer *nameindex.Scorer
	// Similarity, when set, rescoring results by string similarity
	// with Name.
	Similarity Similarity
	// Size bounds the number of results.
	Size int
	// Kinds restricts results to any of the listed title kinds.
	Kinds []record.TitleKind
	// Year matches when either the start or the end year falls in
	// range.
	Year Range
	// Votes filters on the rating's vote count. Titles without a
	// rating fail a constrained filter.
	Votes Range
	// Season and Episode filter on episode position; either forces
	// candidates without an episode record to fail.
	Season  Range
	Episode Range
	// TVShowID restricts results to episodes of one show.
	TVShowID string
}

// NewQuery returns an empty query with the default size and scorer.
func NewQuery() Query {
	scorer := nameindex.OkapiBM25
	return Query{NameScorer: &scorer, Size: DefaultSize}
}

// IsEmpty reports whether the query has neither a name nor any filter.
func (q Query) IsEmpty() bool {
	return q.Name == "" &&
		len(q.Kinds) == 0 &&
		q.Year.IsNone() &&
		q.Votes.IsNone() &&
		q.Season.IsNone() &&
		q.Episode.IsNone() &&
		q.TVShowID == ""
}

// WithKind adds a title kind filter, ignoring duplicates.
func (q Query) WithKind(kind record.TitleKind) Query {
	for _, k := range q.Kinds {
		if k == kind {
			return q
		}
	}
	q.Kinds = append(append([]record.TitleKind{}, q.Kinds...), kind)
	return q
}

// Matches reports whether the entity satisfies every filter. The name
// component is not consulted.
func (q Query) Matches(ent record.MediaEntity) bool {
	return q.MatchesTitle(ent.Title) &&
		q.matchesRating(ent.Rating) &&
		q.matchesEpisode(ent.Episode)
}

// MatchesTitle applies only the title-level filters (kind and year).
func (q Query) MatchesTitle(title record.Title) bool {
	if len(q.Kinds) > 0 {
		found := false
		for _, k := range q.Kinds {
			if k == title.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.Year.Contains(title.StartYear) && !q.Year.Contains(title.EndYear) {
		return false
	}
	return true
}

func (q Query) matchesRating(rating *record.Rating) bool {
	var votes *uint32
	if rating != nil {
		votes = &rating.Votes
	}
	return q.Votes.Contains(votes)
}

func (q Query) matchesEpisode(ep *record.Episode) bool {
	var season, episode *uint32
	if ep != nil {
		season, episode = ep.Season, ep.EpisodeNum
	}
	if !q.Season.Contains(season) {
		return false
	}
	if !q.Episode.Contains(episode) {
		return false
	}
	if q.TVShowID != "" {
		if ep == nil || ep.TVShowID != q.TVShowID {
			return false
		}
	}
	return true
}

// nameQuery builds the name-index query for this query, or ok=false
// when the name index should not be used.
func (q Query) nameQuery() (nameindex.Query, bool) {
	if q.Name == "" || q.NameScorer == nil {
		return nameindex.Query{}, false
	}
	nq := nameindex.NewQuery(q.Name)
	nq.Scorer = *q.NameScorer
	// The name index doesn't know about filters, so ask for far more
	// results than the caller wants in case the filters are aggressive.
	nq.Size = q.Size
	if nq.Size < 1000 {
		nq.Size = 1000
	}
	return nq, true
}

// hasFilters reports whether any structured filter is set.
func (q Query) hasFilters() bool {
	return q.needsRating() || q.needsEpisode() || len(q.Kinds) > 0 || !q.Year.IsNone()
}

// needsOnlyTitle reports whether the filters can be evaluated from the
// title row alone, letting exhaustive scans skip rating and episode
// fetches.
func (q Query) needsOnlyTitle() bool {
	return !q.needsRating() && !q.needsEpisode()
}

func (q Query) needsRating() bool {
	return !q.Votes.IsNone()
}

func (q Query) needsEpisode() bool {
	return !q.Season.IsNone() || !q.Episode.IsNone() || q.TVShowID != ""
}

// The free-text grammar: a directive is anything brace-delimited, a
// term is any other run of non-space non-brace characters, and
// whitespace separates. Unbalanced braces degrade to ordinary terms.
var (
	partsRe     = regexp.MustCompile(`\{([^}]+)\}|([^{}\s]+)`)
	directiveRe = regexp.MustCompile(`^(?:([^:]+):(.+)|(.+))$`)
)

// ParseQuery parses the textual query syntax. Free text becomes the
// name; "{movie}"-style directives select a title kind; "{key:value}"
// directives set the named option.
func ParseQuery(qstr string) (Query, error) {
	var terms []string
	q := NewQuery()
	for _, caps := range partsRe.FindAllStringSubmatch(qstr, -1) {
		if caps[2] != "" {
			terms = append(terms, caps[2])
			continue
		}
		dcaps := directiveRe.FindStringSubmatch(caps[1])
		if dcaps[3] != "" {
			kind, err := record.ParseTitleKind(strings.TrimSpace(dcaps[3]))
			if err != nil {
				return Query{}, &indexerrors.UnknownEnumError{Kind: "query directive", Value: strings.TrimSpace(dcaps[3])}
			}
			q = q.WithKind(kind)
			continue
		}
		name := strings.TrimSpace(dcaps[1])
		val := strings.TrimSpace(dcaps[2])
		var err error
		switch name {
		case "size":
			var n uint64
			if n, err = strconv.ParseUint(val, 10, 32); err != nil {
				err = &indexerrors.InvalidInputError{Detail: fmt.Sprintf("size %q: %v", val, err)}
			} else {
				q.Size = int(n)
			}
		case "year":
			q.Year, err = ParseRange(val)
		case "votes":
			q.Votes, err = ParseRange(val)
		case "season":
			q.Season, err = ParseRange(val)
		case "episode":
			q.Episode, err = ParseRange(val)
		case "tvseries", "tvshow", "show":
			q.TVShowID = val
		case "sim", "similarity":
			q.Similarity, err = ParseSimilarity(val)
		case "scorer":
			if val == "none" {
				q.NameScorer = nil
			} else {
				var scorer nameindex.Scorer
				if scorer, err = nameindex.ParseScorer(val); err == nil {
					q.NameScorer = &scorer
				}
			}
		default:
			err = &indexerrors.UnknownEnumError{Kind: "query directive", Value: name}
		}
		if err != nil {
			return Query{}, err
		}
	}
	if len(terms) > 0 {
		q.Name = strings.Join(terms, " ")
	}
	return q, nil
}

// String serializes the query in the syntax ParseQuery accepts.
// Directives come out in a canonical order, so formatting then parsing
// round-trips to an equal query.
func (q Query) String() string {
	var sb strings.Builder
	if q.NameScorer == nil {
		sb.WriteString("{scorer:none}")
	} else {
		fmt.Fprintf(&sb, "{scorer:%s}", *q.NameScorer)
	}
	fmt.Fprintf(&sb, " {sim:%s}", q.Similarity)
	fmt.Fprintf(&sb, " {size:%d}", q.Size)

	kinds := make([]string, 0, len(q.Kinds))
	for _, k := range q.Kinds {
		kinds = append(kinds, k.String())
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&sb, " {%s}", k)
	}
	if !q.Year.IsNone() {
		fmt.Fprintf(&sb, " {year:%s}", q.Year)
	}
	if !q.Votes.IsNone() {
		fmt.Fprintf(&sb, " {votes:%s}", q.Votes)
	}
	if !q.Season.IsNone() {
		fmt.Fprintf(&sb, " {season:%s}", q.Season)
	}
	if !q.Episode.IsNone() {
		fmt.Fprintf(&sb, " {episode:%s}", q.Episode)
	}
	if q.TVShowID != "" {
		fmt.Fprintf(&sb, " {show:%s}", q.TVShowID)
	}
	if q.Name != "" {
		sb.WriteByte(' ')
		sb.WriteString(q.Name)
	}
	return sb.String()
}
