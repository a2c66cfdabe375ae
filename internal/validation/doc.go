// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package validation provides struct validation using
// go-playground/validator v10.
//
// A thread-safe singleton validator checks the `validate` tags on
// configuration structs, translating failures into messages a config
// author can act on. The one consumer is config.Load, which validates
// the assembled Config tree before the index core ever sees it:
//
//	type IndexConfig struct {
//	    Dir       string `koanf:"dir" validate:"required"`
//	    NgramSize int    `koanf:"ngram_size" validate:"min=2,max=16"`
//	}
//
//	if verr := validation.ValidateStruct(cfg); verr != nil {
//	    return &indexerrors.ConfigError{Detail: verr.Error()}
//	}
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent
// use.
package validation
