// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package supervisor runs the long-lived services (the HTTP listener
// and the build-event logger) under a suture supervision tree, so a
// panic in one restarts it with backoff instead of taking the process
// down.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/nwalsh/imdbsearch/internal/buildstate"
	"github.com/nwalsh/imdbsearch/internal/logging"
)

// Tree is a two-level supervision tree: the root supervises an api
// layer (the HTTP server) and an events layer (build-event logging).
type Tree struct {
	root   *suture.Supervisor
	api    *suture.Supervisor
	events *suture.Supervisor
}

// NewTree builds the tree. Supervisor events are logged through slog
// into the process's structured logger.
func NewTree(logger *slog.Logger) *Tree {
	handler := &sutureslog.Handler{Logger: logger}
	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	}
	childSpec := suture.Spec{
		FailureThreshold: rootSpec.FailureThreshold,
		FailureDecay:     rootSpec.FailureDecay,
		FailureBackoff:   rootSpec.FailureBackoff,
		Timeout:          rootSpec.Timeout,
	}
	root := suture.New("imdbsearch", rootSpec)
	api := suture.New("api-layer", childSpec)
	events := suture.New("events-layer", childSpec)
	root.Add(api)
	root.Add(events)
	return &Tree{root: root, api: api, events: events}
}

// AddAPIService supervises a service in the api layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// AddEventService supervises a service in the events layer.
func (t *Tree) AddEventService(svc suture.Service) suture.ServiceToken {
	return t.events.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// HTTPService adapts an *http.Server to suture's context-aware Serve.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server; on context cancellation the server gets
// shutdownTimeout to drain connections.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// BuildEventService subscribes to the build-event bus and logs every
// phase transition, giving operators build progress without polling
// the health endpoint.
type BuildEventService struct {
	bus *buildstate.Bus
}

// NewBuildEventService wraps bus.
func NewBuildEventService(bus *buildstate.Bus) *BuildEventService {
	return &BuildEventService{bus: bus}
}

// Serve implements suture.Service.
func (b *BuildEventService) Serve(ctx context.Context) error {
	events, err := b.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return suture.ErrDoNotRestart
			}
			if ev.Completed {
				logging.Info().Str("phase", string(ev.Phase)).Dur("elapsed", ev.Elapsed).
					Msg("build phase completed")
			} else {
				logging.Info().Str("phase", string(ev.Phase)).Msg("build phase started")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *BuildEventService) String() string { return "build-events" }
