// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package analyzer

import (
	"reflect"
	"strings"
	"testing"
)

func TestWindowEmissionCount(t *testing.T) {
	cfg := Config{Type: Window, Size: 3}
	cases := []struct {
		s    string
		want int
	}{
		{"bruce", 3}, // 5 - 3 + 1
		{"ab", 1},    // shorter than size: emit whole string once
		{"abc", 1},   // exactly size
		{"abcd", 2},  // 4-3+1
	}
	for _, c := range cases {
		got := All(cfg, c.s)
		if len(got) != c.want {
			t.Errorf("All(%q) = %v (%d ngrams), want %d", c.s, got, len(got), c.want)
		}
	}
}

func TestWindowExactNgrams(t *testing.T) {
	cfg := Config{Type: Window, Size: 3}
	got := All(cfg, "bruce")
	want := []string{"bru", "ruc", "uce"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("All(bruce) = %v, want %v", got, want)
	}
}

func TestEdgeShortToken(t *testing.T) {
	cfg := Config{Type: Edge, Size: 6}
	got := All(cfg, "ab")
	if !reflect.DeepEqual(got, []string{"ab"}) {
		t.Errorf("short token should emit itself once, got %v", got)
	}
}

func TestEdgePrefixes(t *testing.T) {
	cfg := Config{Type: Edge, Size: 6}
	got := All(cfg, "bruce")
	want := []string{"bru", "bruc", "bruce"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("All(bruce, edge) = %v, want %v", got, want)
	}
}

func TestEdgeCapsAtSize(t *testing.T) {
	cfg := Config{Type: Edge, Size: 4}
	got := All(cfg, "springsteen")
	want := []string{"spr", "spri"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("All(springsteen, edge size 4) = %v, want %v", got, want)
	}
}

func TestEdgeMultiToken(t *testing.T) {
	cfg := Config{Type: Edge, Size: 10}
	got := All(cfg, "bruce willis")
	want := append(append([]string{}, All(cfg, "bruce")...), All(cfg, "willis")...)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("multi-token edge = %v, want %v", got, want)
	}
}

func TestNormalizationIsLowercaseOnly(t *testing.T) {
	cfg := Config{Type: Window, Size: 3}
	got := All(cfg, "Bruce!")
	want := All(cfg, strings.ToLower("Bruce!"))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("case folding mismatch: %v vs %v", got, want)
	}
	for _, g := range got {
		if g != strings.ToLower(g) {
			t.Errorf("ngram %q is not lowercase", g)
		}
	}
	// Punctuation must survive normalization untouched.
	found := false
	for _, g := range got {
		if strings.Contains(g, "!") {
			found = true
		}
	}
	if !found {
		t.Error("expected punctuation to survive in at least one ngram")
	}
}

func TestAnalyzerIdempotence(t *testing.T) {
	cfg := Config{Type: Window, Size: 3}
	s := "Bruce Springsteen"
	a := All(cfg, s)
	b := All(cfg, strings.ToLower(s))
	if !reflect.DeepEqual(a, b) {
		t.Errorf("analyze(lowercase(s)) != analyze(s): %v vs %v", b, a)
	}
}

func TestCodepointAccurateSlicing(t *testing.T) {
	cfg := Config{Type: Window, Size: 2}
	// "héllo" has an accented character; ensure slicing happens on
	// codepoint boundaries, not bytes, by checking all emitted ngrams
	// are valid UTF-8 and have exactly 2 codepoints.
	got := All(cfg, "héllo")
	for _, g := range got {
		n := 0
		for range g {
			n++
		}
		if n != 2 {
			t.Errorf("ngram %q has %d codepoints, want 2", g, n)
		}
	}
}
