// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package logging provides centralized zerolog-based structured logging
// for the index builder and the query server.
//
// # Quick Start
//
//	import "github.com/nwalsh/imdbsearch/internal/logging"
//
//	logging.Init(logging.Config{
//	    Level:  cfg.Logging.Level,
//	    Format: cfg.Logging.Format,
//	})
//
//	logging.Info().Str("phase", "names").Msg("index build started")
//	logging.Error().Err(err).Msg("build failed")
//
// # Context-Aware Logging
//
// The HTTP middleware stamps a request ID and the index builder stamps
// a per-build correlation ID onto the context; Ctx and its shorthands
// attach them to every line:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Info().Msg("phase complete")
//
// # slog Bridge
//
// The supervisor stack (suture/sutureslog) requires an *slog.Logger.
// NewSlogLogger returns one backed by this package's zerolog pipeline,
// so supervisor events honor the configured level and format:
//
//	tree := supervisor.NewTree(logging.NewSlogLogger())
//
// # Structured Logging Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger
// is protected by a sync.RWMutex for configuration changes.
package logging
