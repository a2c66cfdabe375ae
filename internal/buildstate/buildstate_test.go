// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

package buildstate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	want := Event{Phase: PhaseRating, Completed: true, Rows: 42, Elapsed: time.Second}
	go func() {
		_ = bus.Publish(Event{Phase: PhaseRating})
		_ = bus.Publish(want)
	}()

	ev := <-events
	require.Equal(t, PhaseRating, ev.Phase)
	require.False(t, ev.Completed)
	ev = <-events
	require.Equal(t, want, ev)
}

func TestBusSubscribeCancellation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()
	select {
	case _, open := <-events:
		require.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not close after cancellation")
	}
}

func TestTrackerRoundTrip(t *testing.T) {
	tracker, err := OpenTracker(filepath.Join(t.TempDir(), "checkpoints"))
	require.NoError(t, err)
	defer tracker.Close()
	ctx := context.Background()

	done, err := tracker.Done(ctx, PhaseNames)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, tracker.MarkDone(ctx, PhaseNames))
	done, err = tracker.Done(ctx, PhaseNames)
	require.NoError(t, err)
	require.True(t, done)

	// Other phases stay unaffected.
	done, err = tracker.Done(ctx, PhaseAKA)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, tracker.Clear(ctx))
	done, err = tracker.Done(ctx, PhaseNames)
	require.NoError(t, err)
	require.False(t, done)
}

func TestTrackerPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints")
	ctx := context.Background()

	tracker, err := OpenTracker(path)
	require.NoError(t, err)
	require.NoError(t, tracker.MarkDone(ctx, PhaseEpisode))
	require.NoError(t, tracker.Close())

	tracker, err = OpenTracker(path)
	require.NoError(t, err)
	defer tracker.Close()
	done, err := tracker.Done(ctx, PhaseEpisode)
	require.NoError(t, err)
	require.True(t, done)
}
