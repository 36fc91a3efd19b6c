/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariacast/aria_radio/internal/media"
)

// EventType enumerates playback lifecycle event categories.
type EventType string

const (
	EventTrackStarted  EventType = "track_started"
	EventTrackEnded    EventType = "track_ended"
	EventTrackPaused   EventType = "track_paused"
	EventTrackResumed  EventType = "track_resumed"
	EventTrackError    EventType = "track_error"
	EventVolumeChanged EventType = "volume_changed"
	EventQueueUpdated  EventType = "queue_updated"
)

// Event is a playback lifecycle notification.
type Event struct {
	Type      EventType    `json:"type"`
	Track     *media.Track `json:"track,omitempty"`
	Manual    bool         `json:"manual,omitempty"` // set on track_ended for user-initiated skips
	Volume    float64      `json:"volume,omitempty"`
	QueueLen  int          `json:"queue_len,omitempty"`
	Message   string       `json:"message,omitempty"` // user-facing text on track_error
	Timestamp time.Time    `json:"timestamp"`
}

// Handler receives published events.
type Handler func(Event)

type subscriber struct {
	id      string
	handler Handler
}

// Bus is a session-scoped pubsub registry. Delivery is synchronous and in
// registration order; a handler that panics is logged and skipped, never
// aborting delivery to the remaining handlers.
type Bus struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	subs     []subscriber
	snapshot Snapshot
}

// NewBus creates an event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger.With().Str("component", "events").Logger()}
}

// Subscribe registers a named handler. A duplicate id overwrites the
// existing handler in place, keeping its registration order.
func (b *Bus) Subscribe(id string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs[i].handler = handler
			return
		}
	}
	b.subs = append(b.subs, subscriber{id: id, handler: handler})
}

// Unsubscribe removes the named handler.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every registered handler before returning.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("subscriber", sub.id).
				Str("event", string(event.Type)).
				Any("panic", r).
				Msg("event handler panicked")
		}
	}()
	sub.handler(event)
}
