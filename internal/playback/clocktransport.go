/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTrackLength = 180 * time.Second
	clockTick          = 500 * time.Millisecond
	readyDelay         = 100 * time.Millisecond
)

// ClockTransport is a headless transport: it simulates a stream by
// advancing position on a wall-clock ticker and firing the usual transport
// callbacks. The actual audio rendering happens in the excluded UI layer;
// this keeps the engine state machine running server-side.
type ClockTransport struct {
	logger zerolog.Logger

	mu       sync.Mutex
	sink     TransportEvents
	url      string
	playing  bool
	ready    bool
	volume   float64
	position time.Duration
	duration time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

// NewClockTransport creates a simulated transport channel.
func NewClockTransport(logger zerolog.Logger) *ClockTransport {
	t := &ClockTransport{
		logger:   logger.With().Str("component", "transport").Logger(),
		duration: defaultTrackLength,
		done:     make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Close stops the transport clock.
func (t *ClockTransport) Close() {
	t.mu.Lock()
	select {
	case <-t.done:
		t.mu.Unlock()
		return
	default:
	}
	close(t.done)
	t.mu.Unlock()
	t.wg.Wait()
}

// SetTrackDuration overrides the simulated length for the next load. Zero
// keeps the default.
func (t *ClockTransport) SetTrackDuration(d time.Duration) {
	t.mu.Lock()
	if d > 0 {
		t.duration = d
	} else {
		t.duration = defaultTrackLength
	}
	t.mu.Unlock()
}

func (t *ClockTransport) Load(url string) {
	t.mu.Lock()
	t.url = url
	t.position = 0
	t.ready = false
	t.playing = false
	sink := t.sink
	t.mu.Unlock()

	t.logger.Debug().Str("url", url).Msg("load")

	// Simulated buffering: the channel becomes ready shortly after load.
	time.AfterFunc(readyDelay, func() {
		t.mu.Lock()
		if t.url != url {
			t.mu.Unlock()
			return
		}
		t.ready = true
		sink = t.sink
		t.mu.Unlock()

		if sink != nil {
			sink.Ready()
		}
	})
}

func (t *ClockTransport) Play() error {
	t.mu.Lock()
	t.playing = true
	t.mu.Unlock()
	return nil
}

func (t *ClockTransport) Pause() {
	t.mu.Lock()
	t.playing = false
	t.mu.Unlock()
}

func (t *ClockTransport) SetVolume(v float64) {
	t.mu.Lock()
	t.volume = v
	t.mu.Unlock()
}

func (t *ClockTransport) Volume() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

func (t *ClockTransport) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

func (t *ClockTransport) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// Buffered reports the full duration: a simulated stream never stalls.
func (t *ClockTransport) Buffered() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

func (t *ClockTransport) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

func (t *ClockTransport) SetEvents(events TransportEvents) {
	t.mu.Lock()
	t.sink = events
	t.mu.Unlock()
}

func (t *ClockTransport) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(clockTick)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		if !t.playing || !t.ready {
			t.mu.Unlock()
			continue
		}
		t.position += clockTick
		ended := t.position >= t.duration
		if ended {
			t.position = t.duration
			t.playing = false
		}
		sink := t.sink
		t.mu.Unlock()

		if sink == nil {
			continue
		}
		sink.TimeUpdate()
		if ended {
			sink.Ended()
		}
	}
}