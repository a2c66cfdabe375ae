// imdbsearch - fuzzy search and indexing over IMDb bulk data
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nwalsh/imdbsearch

// Package buildstate tracks index-build progress. A BadgerDB-backed
// tracker checkpoints completed build phases so an interrupted build
// can resume without redoing finished work, and an in-process event bus
// publishes phase transitions so callers can observe a running build
// without polling.
package buildstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nwalsh/imdbsearch/internal/logging"
)

// Phase names one unit of index construction that completes
// atomically: its output files are fully written before the phase is
// marked done.
type Phase string

const (
	PhaseRating  Phase = "rating"
	PhaseEpisode Phase = "episode"
	PhaseAKA     Phase = "aka"
	PhaseNames   Phase = "names"
)

// Topic is the event bus topic build-phase events are published on.
const Topic = "index.build.phases"

// Event describes one build-phase transition.
type Event struct {
	Phase Phase `json:"phase"`
	// Completed is false for a phase-started event, true for a
	// phase-completed event.
	Completed bool `json:"completed"`
	// Rows is the number of source rows processed; only meaningful on
	// completion events and only for phases that count rows.
	Rows uint64 `json:"rows,omitempty"`
	// Elapsed is how long the phase took; only set on completion.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Bus is an in-process publish/subscribe channel for build events. The
// zero value is not usable; call NewBus.
type Bus struct {
	ps *gochannel.GoChannel
}

// NewBus creates an event bus. Subscribers that join after a build
// started miss earlier events; the bus does not replay.
func NewBus() *Bus {
	logger := watermillLogger{log: logging.WithComponent("event-bus")}
	return &Bus{ps: gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, logger)}
}

// Publish emits one build event and returns once every current
// subscriber has taken it, so subscribers see events in publish order.
// Publishing on a closed bus returns an error.
func (b *Bus) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal build event: %w", err)
	}
	return b.ps.Publish(Topic, message.NewMessage(uuid.NewString(), payload))
}

// Subscribe returns a channel of build events, closed when ctx is
// canceled or the bus closes.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.ps.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to build events: %w", err)
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Nack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.ps.Close()
}

// watermillLogger routes watermill's internal logging into a
// component-tagged zerolog child logger.
type watermillLogger struct {
	log    zerolog.Logger
	fields watermill.LogFields
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.log.Error().Err(err).Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log.Debug().Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug().Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log.Debug().Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{log: l.log, fields: l.fields.Add(fields)}
}

// Tracker checkpoints completed build phases in BadgerDB so a restarted
// build can skip phases whose output files are already on disk.
type Tracker struct {
	db *badger.DB
}

const keyPrefix = "build:phase:"

// OpenTracker opens (or creates) the checkpoint database at path.
func OpenTracker(path string) (*Tracker, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open build checkpoint db: %w", err)
	}
	return &Tracker{db: db}, nil
}

// MarkDone records that phase finished, along with when.
func (t *Tracker) MarkDone(_ context.Context, phase Phase) error {
	stamp, err := json.Marshal(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+string(phase)), stamp)
	})
}

// Done reports whether phase has a completion checkpoint.
func (t *Tracker) Done(_ context.Context, phase Phase) (bool, error) {
	err := t.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefix + string(phase)))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read checkpoint: %w", err)
	}
	return true, nil
}

// Clear removes every phase checkpoint. Call before a fresh build.
func (t *Tracker) Clear(_ context.Context) error {
	return t.db.Update(func(txn *badger.Txn) error {
		for _, phase := range []Phase{PhaseRating, PhaseEpisode, PhaseAKA, PhaseNames} {
			err := txn.Delete([]byte(keyPrefix + string(phase)))
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

// Close closes the checkpoint database.
func (t *Tracker) Close() error {
	return t.db.Close()
}
