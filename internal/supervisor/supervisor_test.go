// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package supervisor

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nwalsh/imdbsearch/internal/buildstate"
	"github.com/nwalsh/imdbsearch/internal/logging"
)

func quietLogger() *slog.Logger {
	return logging.NewSlogLoggerWithLevel("disabled")
}

func TestHTTPServiceServesAndShutsDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	listener := httptest.NewUnstartedServer(mux)
	addr := listener.Listener.Addr().String()
	listener.Listener.Close()

	server := &http.Server{Addr: addr, Handler: mux}
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Wait for the listener to come up.
	var resp *http.Response
	var err error
	for i := 0; i < 100; i++ {
		resp, err = http.Get("http://" + addr + "/ping")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}
}

func TestBuildEventServiceLogsUntilCancel(t *testing.T) {
	bus := buildstate.NewBus()
	defer bus.Close()
	svc := NewBuildEventService(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Give the subscription a moment, then publish through it.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bus.Publish(buildstate.Event{Phase: buildstate.PhaseNames}))
	require.NoError(t, bus.Publish(buildstate.Event{Phase: buildstate.PhaseNames, Completed: true}))

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop after cancellation")
	}
}

func TestTreeServesUntilCancel(t *testing.T) {
	tree := NewTree(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancellation")
	}
}
