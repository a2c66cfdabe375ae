// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package validation

import (
	"strings"
	"testing"
)

func TestGetValidatorSingleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil {
		t.Fatal("GetValidator() returned nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

// indexSettings mirrors the shape of the configuration structs this
// package validates for config.Load.
type indexSettings struct {
	Dir           string  `validate:"required"`
	NgramSize     int     `validate:"min=2,max=16"`
	StopWordRatio float64 `validate:"min=0,max=1"`
	AuthMode      string  `validate:"oneof=none apikey jwt oidc"`
}

func validSettings() indexSettings {
	return indexSettings{
		Dir:           "index",
		NgramSize:     3,
		StopWordRatio: 0.01,
		AuthMode:      "none",
	}
}

func TestValidateStructValid(t *testing.T) {
	if verr := ValidateStruct(validSettings()); verr != nil {
		t.Errorf("valid settings failed validation: %v", verr)
	}
}

func TestValidateStructRequired(t *testing.T) {
	s := validSettings()
	s.Dir = ""
	verr := ValidateStruct(s)
	if verr == nil {
		t.Fatal("missing Dir should fail validation")
	}
	errs := verr.Errors()
	if len(errs) != 1 {
		t.Fatalf("want 1 error, got %d: %v", len(errs), verr)
	}
	if errs[0].Field() != "Dir" || errs[0].Tag() != "required" {
		t.Errorf("wrong error: field=%s tag=%s", errs[0].Field(), errs[0].Tag())
	}
	if want := "Dir is required"; errs[0].Error() != want {
		t.Errorf("message = %q, want %q", errs[0].Error(), want)
	}
}

func TestValidateStructRangeMessages(t *testing.T) {
	s := validSettings()
	s.NgramSize = 1
	verr := ValidateStruct(s)
	if verr == nil {
		t.Fatal("ngram size 1 should fail validation")
	}
	if want := "NgramSize must be at least 2"; verr.Error() != want {
		t.Errorf("message = %q, want %q", verr.Error(), want)
	}

	s = validSettings()
	s.NgramSize = 64
	verr = ValidateStruct(s)
	if verr == nil {
		t.Fatal("ngram size 64 should fail validation")
	}
	if want := "NgramSize must be at most 16"; verr.Error() != want {
		t.Errorf("message = %q, want %q", verr.Error(), want)
	}
}

func TestValidateStructOneof(t *testing.T) {
	s := validSettings()
	s.AuthMode = "telepathy"
	verr := ValidateStruct(s)
	if verr == nil {
		t.Fatal("unknown auth mode should fail validation")
	}
	if !strings.Contains(verr.Error(), "must be one of") {
		t.Errorf("message %q should mention the allowed set", verr.Error())
	}
}

func TestValidateStructCollectsAllErrors(t *testing.T) {
	s := indexSettings{NgramSize: 1, StopWordRatio: 2, AuthMode: "telepathy"}
	verr := ValidateStruct(s)
	if verr == nil {
		t.Fatal("multiple bad fields should fail validation")
	}
	if len(verr.Errors()) != 4 {
		t.Errorf("want 4 field errors, got %d: %v", len(verr.Errors()), verr)
	}
	// Error() joins every field message so one bad config file reports
	// everything at once.
	for _, want := range []string{"Dir", "NgramSize", "StopWordRatio", "AuthMode"} {
		if !strings.Contains(verr.Error(), want) {
			t.Errorf("combined message %q missing field %s", verr.Error(), want)
		}
	}
}

func TestValidateStructNested(t *testing.T) {
	type tree struct {
		Index indexSettings
	}
	bad := tree{Index: validSettings()}
	bad.Index.NgramSize = 0
	verr := ValidateStruct(bad)
	if verr == nil {
		t.Fatal("nested struct errors should surface")
	}
	if verr.Errors()[0].Field() != "NgramSize" {
		t.Errorf("wrong field: %s", verr.Errors()[0].Field())
	}

	if verr := ValidateStruct(tree{Index: validSettings()}); verr != nil {
		t.Errorf("valid nested struct failed validation: %v", verr)
	}
}

func TestValidateStructStringLengths(t *testing.T) {
	type named struct {
		Name string `validate:"min=3,max=5"`
	}
	verr := ValidateStruct(named{Name: "ab"})
	if verr == nil {
		t.Fatal("short string should fail validation")
	}
	if want := "Name must be at least 3 characters"; verr.Error() != want {
		t.Errorf("message = %q, want %q", verr.Error(), want)
	}
}

func TestValidateStructNonStructInput(t *testing.T) {
	// A non-struct input surfaces as an error, not a panic.
	verr := ValidateStruct(42)
	if verr == nil {
		t.Fatal("non-struct input should fail validation")
	}
	if len(verr.Errors()) != 1 {
		t.Fatalf("want 1 error, got %d", len(verr.Errors()))
	}
}
