// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nwalsh/imdbsearch/internal/buildstate"
	"github.com/nwalsh/imdbsearch/internal/config"
	"github.com/nwalsh/imdbsearch/internal/index"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/logging"
	"github.com/nwalsh/imdbsearch/internal/metrics"
	"github.com/nwalsh/imdbsearch/internal/server"
	"github.com/nwalsh/imdbsearch/internal/supervisor"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "force a full index rebuild before serving")
	buildOnly := flag.Bool("build-only", false, "build the index and exit without serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("loading configuration")
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
		Output:    os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := buildstate.NewBus()
	defer bus.Close()

	idx, err := openOrCreate(ctx, cfg, bus, *rebuild)
	if err != nil {
		logging.Fatal().Err(err).Msg("opening index")
	}
	defer idx.Close()
	metrics.IndexDocuments.Set(float64(idx.NameIndexConfig().NumDocuments))
	metrics.IndexSizeBytes.Set(float64(indexSize(cfg.Index.Dir)))

	if *buildOnly || !cfg.Server.Enabled {
		logging.Info().
			Uint64("num_documents", idx.NameIndexConfig().NumDocuments).
			Msg("index ready")
		return
	}

	srv, err := server.New(ctx, *cfg, idx, bus)
	if err != nil {
		logging.Fatal().Err(err).Msg("assembling server")
	}
	httpServer := &http.Server{
		Addr:              srv.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	// sutureslog wants *slog.Logger; the adapter keeps supervisor
	// events on the configured zerolog pipeline.
	tree := supervisor.NewTree(logging.NewSlogLogger())
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, cfg.Server.Timeout))
	tree.AddEventService(supervisor.NewBuildEventService(bus))

	logging.Info().Str("addr", srv.Addr()).Msg("serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("supervisor tree failed")
	}
}

// openOrCreate opens the existing index, building it first when it is
// absent, carries a different version, or a rebuild was requested.
func openOrCreate(ctx context.Context, cfg *config.Config, bus *buildstate.Bus, force bool) (*index.Index, error) {
	if !force {
		idx, err := index.Open(cfg.Data.Dir, cfg.Index.Dir)
		if err == nil {
			return idx, nil
		}
		var vmErr *indexerrors.VersionMismatchError
		if !os.IsNotExist(errors.Unwrap(err)) && !errors.As(err, &vmErr) {
			return nil, err
		}
		logging.Info().Err(err).Msg("index unusable, building")
	}

	builder := index.NewBuilder().
		NgramType(cfg.Index.NgramTypeParsed()).
		NgramSize(cfg.Index.NgramSize).
		Bus(bus)
	if cfg.Index.CheckpointDir != "" {
		tracker, err := buildstate.OpenTracker(cfg.Index.CheckpointDir)
		if err != nil {
			return nil, err
		}
		defer tracker.Close()
		if force {
			if err := tracker.Clear(ctx); err != nil {
				return nil, err
			}
		}
		builder = builder.Tracker(tracker)
	}
	return builder.Create(ctx, cfg.Data.Dir, cfg.Index.Dir)
}

// indexSize sums the sizes of the files directly under dir.
func indexSize(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
	}
	return total
}
