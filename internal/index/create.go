// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/nwalsh/imdbsearch/internal/akaindex"
	"github.com/nwalsh/imdbsearch/internal/analyzer"
	"github.com/nwalsh/imdbsearch/internal/buildstate"
	"github.com/nwalsh/imdbsearch/internal/episodeindex"
	"github.com/nwalsh/imdbsearch/internal/idindex"
	"github.com/nwalsh/imdbsearch/internal/indexerrors"
	"github.com/nwalsh/imdbsearch/internal/logging"
	"github.com/nwalsh/imdbsearch/internal/metrics"
	"github.com/nwalsh/imdbsearch/internal/nameindex"
	"github.com/nwalsh/imdbsearch/internal/ratingindex"
	"github.com/nwalsh/imdbsearch/internal/record"
)

// Builder configures index creation. The zero value is not useful;
// call NewBuilder.
type Builder struct {
	ngram analyzer.Config
	bus   *buildstate.Bus
	track *buildstate.Tracker
}

// NewBuilder returns a builder with the default analyzer settings:
// window ngrams of size 3.
func NewBuilder() *Builder {
	return &Builder{ngram: analyzer.Config{Type: analyzer.Window, Size: 3}}
}

// NgramType sets the ngram extraction strategy used by the name index.
func (b *Builder) NgramType(t analyzer.NgramType) *Builder {
	b.ngram.Type = t
	return b
}

// NgramSize sets the ngram size used by the name index.
func (b *Builder) NgramSize(size int) *Builder {
	b.ngram.Size = size
	return b
}

// Bus attaches an event bus; phase transitions are published to it
// during Create.
func (b *Builder) Bus(bus *buildstate.Bus) *Builder {
	b.bus = bus
	return b
}

// Tracker attaches a checkpoint tracker; phases already marked done
// are skipped, and each phase is checkpointed as it completes. The
// caller clears the tracker to force a full rebuild.
func (b *Builder) Tracker(t *buildstate.Tracker) *Builder {
	b.track = t
	return b
}

// Create builds every index structure from the TSV files in dataDir
// and writes them under indexDir, overwriting any previous index
// there. The rating and episode indexes build on one worker while the
// AKA and name indexes build on another; the two read disjoint inputs
// and write disjoint outputs, and join before the config is written.
// Returns the opened index.
func Create(ctx context.Context, dataDir, indexDir string) (*Index, error) {
	return NewBuilder().Create(ctx, dataDir, indexDir)
}

// Create runs the build with this builder's configuration. See the
// package-level Create.
func (b *Builder) Create(ctx context.Context, dataDir, indexDir string) (*Index, error) {
	if b.ngram.Size < 2 {
		return nil, &indexerrors.ConfigError{Detail: fmt.Sprintf("ngram size %d out of range", b.ngram.Size)}
	}
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, &indexerrors.IOError{Path: indexDir, Cause: err}
	}
	// One correlation id per build ties all phase logs together, which
	// matters once admin-triggered rebuilds overlap normal serving.
	ctx = logging.ContextWithNewCorrelationID(ctx)
	logging.CtxInfo(ctx).Str("index_dir", indexDir).Msg("creating index")

	// Rating and episode on a separate worker; they take long enough
	// to justify the overlap.
	errc := make(chan error, 1)
	go func() {
		err := b.runPhase(ctx, buildstate.PhaseRating, func() error {
			return ratingindex.Create(dataDir, indexDir)
		})
		// The worker chains episode after rating so the two TSV-heavy
		// phases on each side stay sequential.
		if err == nil {
			err = b.runPhase(ctx, buildstate.PhaseEpisode, func() error {
				return episodeindex.Create(dataDir, indexDir)
			})
		}
		errc <- err
	}()

	akaErr := b.runPhase(ctx, buildstate.PhaseAKA, func() error {
		return akaindex.Create(dataDir, indexDir)
	})
	if akaErr == nil {
		akaErr = b.runPhase(ctx, buildstate.PhaseNames, func() error {
			return b.createNameIndex(dataDir, indexDir)
		})
	}

	workerErr := <-errc
	if akaErr != nil {
		return nil, akaErr
	}
	if workerErr != nil {
		return nil, workerErr
	}

	// The config is last: its presence with a matching version marks a
	// complete index.
	data, err := json.MarshalIndent(parentConfig{Version: Version}, "", "  ")
	if err != nil {
		return nil, &indexerrors.ConfigError{Detail: fmt.Sprintf("encoding index config: %v", err)}
	}
	cfgPath := filepath.Join(indexDir, ConfigFilename)
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		return nil, &indexerrors.IOError{Path: cfgPath, Cause: err}
	}
	return Open(dataDir, indexDir)
}

// runPhase wraps one build phase with checkpoint skipping and event
// publication.
func (b *Builder) runPhase(ctx context.Context, phase buildstate.Phase, fn func() error) error {
	if b.track != nil {
		done, err := b.track.Done(ctx, phase)
		if err != nil {
			return err
		}
		if done {
			logging.CtxInfo(ctx).Str("phase", string(phase)).Msg("phase already complete, skipping")
			return nil
		}
	}
	b.publish(buildstate.Event{Phase: phase})
	start := time.Now()
	if err := fn(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	logging.CtxInfo(ctx).Str("phase", string(phase)).Dur("elapsed", elapsed).Msg("phase complete")
	metrics.BuildDuration.WithLabelValues(string(phase)).Set(elapsed.Seconds())
	b.publish(buildstate.Event{Phase: phase, Completed: true, Elapsed: elapsed})
	if b.track != nil {
		return b.track.MarkDone(ctx, phase)
	}
	return nil
}

func (b *Builder) publish(ev buildstate.Event) {
	if b.bus == nil {
		return
	}
	if err := b.bus.Publish(ev); err != nil {
		logging.Warn().Err(err).Str("phase", string(ev.Phase)).Msg("publishing build event failed")
	}
}

// createNameIndex streams title.basics.tsv once, writing the title id
// index and the name index together. Each title contributes its
// primary name, its original name when different, and every alternate
// name from the AKA index built just before this phase that differs
// from the primary name.
func (b *Builder) createNameIndex(dataDir, indexDir string) error {
	akas, err := akaindex.Open(dataDir, indexDir)
	if err != nil {
		return err
	}
	defer akas.Close()

	basicsPath := filepath.Join(dataDir, record.BasicsFilename)
	f, err := os.Open(basicsPath)
	if err != nil {
		return &indexerrors.IOError{Path: basicsPath, Cause: err}
	}
	defer f.Close()

	tr, err := record.NewTSVReader(f, BasicsHeader)
	if err != nil {
		return &indexerrors.InvalidInputError{Detail: fmt.Sprintf("%s: %v", basicsPath, err)}
	}

	names, err := nameindex.NewWriter(indexDir, b.ngram)
	if err != nil {
		return err
	}
	titles, err := idindex.Create(filepath.Join(indexDir, TitleFilename))
	if err != nil {
		return err
	}

	var titleCount, nameCount uint64
	for {
		offset, row, err := tr.Next()
		if err != nil {
			break
		}
		title, err := record.ParseTitleRow(tr.Header(), row)
		if err != nil {
			return &indexerrors.InvalidInputError{Detail: fmt.Sprintf("%s: %v", basicsPath, err)}
		}
		titleCount++
		nameID := uint64(offset)
		if err := titles.Insert(title.ID, nameID); err != nil {
			return err
		}
		if err := names.Insert(nameID, title.Name); err != nil {
			return err
		}
		nameCount++
		if title.OriginalTitle != title.Name {
			if err := names.Insert(nameID, title.OriginalTitle); err != nil {
				return err
			}
			nameCount++
		}
		akaIter, err := akas.Find(title.ID)
		if err != nil {
			return err
		}
		for {
			aka, ok, err := akaIter.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if aka.Name != title.Name {
				if err := names.Insert(nameID, aka.Name); err != nil {
					return err
				}
				nameCount++
			}
		}
	}
	if err := names.Finish(); err != nil {
		return err
	}
	if err := titles.Close(); err != nil {
		return err
	}
	logging.Info().Uint64("titles", titleCount).Uint64("names", nameCount).Msg("name index built")
	return nil
}
