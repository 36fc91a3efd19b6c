/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariacast/aria_radio/internal/events"
	"github.com/ariacast/aria_radio/internal/media"
	"github.com/ariacast/aria_radio/internal/queue"
)

// fakeTransport records every call and lets tests drive the event sink.
type fakeTransport struct {
	mu       sync.Mutex
	sink     TransportEvents
	loads    []string
	pauses   int
	playing  bool
	playErr  error
	volume   float64
	position time.Duration
	duration time.Duration
	buffered time.Duration
	ready    bool
}

func (f *fakeTransport) Load(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
	f.ready = false
	f.playing = false
}

func (f *fakeTransport) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeTransport) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	f.playing = false
}

func (f *fakeTransport) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeTransport) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeTransport) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeTransport) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeTransport) Buffered() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffered
}

func (f *fakeTransport) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeTransport) SetEvents(events TransportEvents) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = events
}

func (f *fakeTransport) lastLoad() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return ""
	}
	return f.loads[len(f.loads)-1]
}

func (f *fakeTransport) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func (f *fakeTransport) pauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses
}

func (f *fakeTransport) isPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeTransport) setTiming(position, duration, buffered time.Duration) {
	f.mu.Lock()
	f.position = position
	f.duration = duration
	f.buffered = buffered
	f.mu.Unlock()
}

func (f *fakeTransport) setReady(ready bool) {
	f.mu.Lock()
	f.ready = ready
	f.mu.Unlock()
}

// fire* helpers grab the sink under the transport lock, then invoke it
// outside the lock so the engine can call back into the transport.

func (f *fakeTransport) fireReady() {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.Ready()
	}
}

func (f *fakeTransport) fireEnded() {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.Ended()
	}
}

func (f *fakeTransport) fireError(err error) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.Error(err)
	}
}

func (f *fakeTransport) fireTimeUpdate() {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.TimeUpdate()
	}
}

// seqSource hands out uniquely numbered catalog tracks.
type seqSource struct {
	mu sync.Mutex
	n  int
}

func (s *seqSource) Fetch(ctx context.Context, count int) []media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks := make([]media.Track, count)
	for i := range tracks {
		s.n++
		tracks[i] = media.Track{
			ID:       fmt.Sprintf("catalog_%d", s.n),
			Title:    fmt.Sprintf("Catalog Track %d", s.n),
			Artist:   "Test Artist",
			AudioURL: fmt.Sprintf("https://cdn.example.com/%d.mp3", s.n),
			Origin:   media.OriginCatalog,
		}
	}
	return tracks
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) countOf(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) lastOf(t events.EventType) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

type harness struct {
	engine    *Engine
	primary   *fakeTransport
	secondary *fakeTransport
	bus       *events.Bus
	rec       *recorder
	source    *seqSource
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := zerolog.Nop()
	source := &seqSource{}
	builder := queue.NewBuilder(source, logger)
	bus := events.NewBus(logger)
	rec := &recorder{}
	bus.Subscribe("test", rec.handle)

	primary := &fakeTransport{}
	secondary := &fakeTransport{}
	engine := NewEngine(cfg, builder, bus, primary, secondary, logger)
	t.Cleanup(engine.Close)

	return &harness{
		engine:    engine,
		primary:   primary,
		secondary: secondary,
		bus:       bus,
		rec:       rec,
		source:    source,
	}
}

func ownedTracks(n int) []media.Track {
	tracks := make([]media.Track, n)
	for i := range tracks {
		tracks[i] = media.Track{
			ID:      fmt.Sprintf("owned_%d", i+1),
			Title:   fmt.Sprintf("Owned Track %d", i+1),
			Artist:  "Station Artist",
			FileURL: fmt.Sprintf("https://files.example.com/owned_%d.mp3", i+1),
			Origin:  media.OriginOwned,
			Status:  media.StatusApproved,
		}
	}
	return tracks
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestInitializeLoadsHighestPriorityTrack(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 10, LowWaterMark: 3})
	h.engine.Initialize(context.Background(), ownedTracks(2), media.TierArtistPremium)

	state := h.engine.State()
	if state.Current == nil {
		t.Fatal("expected a current track after initialize")
	}
	if state.Current.Track.ID != "owned_1" {
		t.Fatalf("current = %q, want owned_1", state.Current.Track.ID)
	}
	if got := h.primary.lastLoad(); got != "https://files.example.com/owned_1.mp3" {
		t.Fatalf("loaded %q, want owned file URL", got)
	}
	if got := len(h.engine.Queue()); got != 9 {
		t.Fatalf("queue length = %d, want 9", got)
	}
	if h.rec.countOf(events.EventTrackStarted) != 1 {
		t.Fatal("expected one track_started event")
	}
	if h.rec.countOf(events.EventQueueUpdated) != 1 {
		t.Fatal("expected one queue_updated event")
	}
}

func TestPlayWithoutTrack(t *testing.T) {
	h := newHarness(t, Config{})
	if err := h.engine.Play(); !errors.Is(err, ErrNoCurrentTrack) {
		t.Fatalf("err = %v, want ErrNoCurrentTrack", err)
	}
}

func TestPlayPauseToggle(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 5})
	h.engine.Initialize(context.Background(), ownedTracks(1), media.TierFree)

	if err := h.engine.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !h.primary.isPlaying() {
		t.Fatal("transport not playing after Play")
	}
	if h.rec.countOf(events.EventTrackResumed) != 1 {
		t.Fatal("expected track_resumed event")
	}

	h.engine.Pause()
	if h.primary.isPlaying() {
		t.Fatal("transport still playing after Pause")
	}
	if h.rec.countOf(events.EventTrackPaused) != 1 {
		t.Fatal("expected track_paused event")
	}

	if err := h.engine.Toggle(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !h.primary.isPlaying() {
		t.Fatal("toggle did not resume")
	}
}

func TestAdvancePushesHistoryAndLoadsNext(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 10, LowWaterMark: 2})
	h.engine.Initialize(context.Background(), ownedTracks(2), media.TierFree)

	first := h.engine.State().Current.Track
	h.engine.Advance(true)

	state := h.engine.State()
	if state.Current == nil || state.Current.Track.ID == first.ID {
		t.Fatal("advance did not move to the next track")
	}
	if len(state.History) != 1 || state.History[0].ID != first.ID {
		t.Fatalf("history = %v, want the first track", state.History)
	}
	if got := h.primary.loadCount(); got != 2 {
		t.Fatalf("load count = %d, want 2", got)
	}

	ended, ok := h.rec.lastOf(events.EventTrackEnded)
	if !ok {
		t.Fatal("expected track_ended event")
	}
	if !ended.Manual {
		t.Fatal("manual skip should mark track_ended as manual")
	}
	if ended.Track.ID != first.ID {
		t.Fatalf("track_ended for %q, want %q", ended.Track.ID, first.ID)
	}
}

func TestNaturalEndIsNotManual(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 10, LowWaterMark: 2})
	h.engine.Initialize(context.Background(), ownedTracks(1), media.TierFree)

	h.primary.fireEnded()

	ended, ok := h.rec.lastOf(events.EventTrackEnded)
	if !ok {
		t.Fatal("expected track_ended event")
	}
	if ended.Manual {
		t.Fatal("natural track end should not be manual")
	}
}

func TestHistoryBound(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 30, LowWaterMark: 2})
	h.engine.Initialize(context.Background(), nil, media.TierFree)

	for range [25]struct{}{} {
		h.engine.Advance(false)
	}

	if got := len(h.engine.State().History); got != historyLimit {
		t.Fatalf("history length = %d, want %d", got, historyLimit)
	}
}

func TestPreviousRestoresHistoryHead(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 10, LowWaterMark: 2})
	h.engine.Initialize(context.Background(), ownedTracks(2), media.TierFree)

	first := h.engine.State().Current.Track
	h.engine.Advance(true)
	replaced := h.engine.State().Current.Track

	h.engine.Previous()

	state := h.engine.State()
	if state.Current.Track.ID != first.ID {
		t.Fatalf("current = %q, want %q", state.Current.Track.ID, first.ID)
	}
	if len(state.History) != 0 {
		t.Fatalf("history length = %d, want 0", len(state.History))
	}
	// The replaced track is dropped, not requeued.
	for _, item := range h.engine.Queue() {
		if item.Track.ID == replaced.ID {
			t.Fatal("replaced track should not re-enter the queue")
		}
	}
}

func TestPreviousWithEmptyHistory(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 5})
	h.engine.Initialize(context.Background(), ownedTracks(1), media.TierFree)

	current := h.engine.State().Current.Track
	loads := h.primary.loadCount()
	h.engine.Previous()

	if h.engine.State().Current.Track.ID != current.ID {
		t.Fatal("previous with empty history should be a no-op")
	}
	if h.primary.loadCount() != loads {
		t.Fatal("previous with empty history should not touch the transport")
	}
}

func TestSkipToMovesSkippedIntoHistory(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 10, LowWaterMark: 2})
	h.engine.Initialize(context.Background(), nil, media.TierFree)

	before := h.engine.Queue()
	target := before[2].Track

	h.engine.SkipTo(2)

	state := h.engine.State()
	if state.Current.Track.ID != target.ID {
		t.Fatalf("current = %q, want %q", state.Current.Track.ID, target.ID)
	}
	// Replaced current first, then the skipped items in queue order.
	wantHistory := []string{before[0].Track.ID, before[1].Track.ID}
	if len(state.History) < len(wantHistory)+1 {
		t.Fatalf("history too short: %d", len(state.History))
	}
	for i, id := range wantHistory {
		if state.History[i].ID != id {
			t.Fatalf("history[%d] = %q, want %q", i, state.History[i].ID, id)
		}
	}
	if got := len(h.engine.Queue()); got != len(before)-3 {
		t.Fatalf("queue length = %d, want %d", got, len(before)-3)
	}
}

func TestSkipToOutOfRange(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 5})
	h.engine.Initialize(context.Background(), nil, media.TierFree)

	current := h.engine.State().Current.Track
	h.engine.SkipTo(99)
	h.engine.SkipTo(-1)

	if h.engine.State().Current.Track.ID != current.ID {
		t.Fatal("out-of-range skip should be a no-op")
	}
}

func TestLowWaterRefill(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 8, LowWaterMark: 5})
	h.engine.Initialize(context.Background(), nil, media.TierFree)

	// Drain below the low-water mark.
	for range [4]struct{}{} {
		h.engine.Advance(false)
	}

	// The refill snapshots the deficit before fetching, so a concurrent
	// advance can leave the queue one short of the target.
	eventually(t, 2*time.Second, func() bool {
		return len(h.engine.Queue()) >= 7
	}, "queue was not refilled above the low-water mark")
}

func TestErrorSchedulesSkip(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 10, LowWaterMark: 2, RetryDelay: 20 * time.Millisecond})
	h.engine.Initialize(context.Background(), nil, media.TierFree)

	first := h.engine.State().Current.Track
	h.primary.fireError(errors.New("stream stalled"))

	if h.rec.countOf(events.EventTrackError) != 1 {
		t.Fatal("expected track_error event")
	}
	evt, _ := h.rec.lastOf(events.EventTrackError)
	if evt.Message == "" {
		t.Fatal("track_error should carry a user-facing message")
	}

	eventually(t, time.Second, func() bool {
		state := h.engine.State()
		return state.Current != nil && state.Current.Track.ID != first.ID
	}, "engine did not skip past the broken track")
}

func TestReadyResetsErrorStreak(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 10, LowWaterMark: 2, RetryDelay: time.Minute})
	h.engine.Initialize(context.Background(), nil, media.TierFree)

	h.primary.fireError(errors.New("stall"))
	h.primary.fireError(errors.New("stall"))
	if got := h.engine.State().ConsecutiveErrors; got != 2 {
		t.Fatalf("consecutive errors = %d, want 2", got)
	}

	h.primary.fireReady()
	if got := h.engine.State().ConsecutiveErrors; got != 0 {
		t.Fatalf("consecutive errors after ready = %d, want 0", got)
	}
}

func TestCircuitBreakerReinitializesQueue(t *testing.T) {
	h := newHarness(t, Config{
		TargetSize:   10,
		LowWaterMark: 2,
		RetryDelay:   time.Minute,
		ReinitDelay:  20 * time.Millisecond,
	})
	h.engine.Initialize(context.Background(), ownedTracks(1), media.TierFree)

	h.primary.fireError(errors.New("stall"))
	h.primary.fireError(errors.New("stall"))
	h.primary.fireError(errors.New("stall"))

	if h.engine.State().Playing {
		t.Fatal("circuit breaker should stop playback")
	}
	if h.primary.pauseCount() == 0 {
		t.Fatal("circuit breaker should pause the transport")
	}

	eventually(t, 2*time.Second, func() bool {
		state := h.engine.State()
		return state.Current != nil &&
			state.Current.Track.ID == "owned_1" &&
			state.ConsecutiveErrors == 0 &&
			len(h.engine.Queue()) == 9
	}, "circuit breaker did not rebuild the queue")
}

func TestSetVolumeClamps(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 5})
	h.engine.Initialize(context.Background(), nil, media.TierFree)

	h.engine.SetVolume(1.5)
	if got := h.engine.State().Volume; got != 1 {
		t.Fatalf("volume = %v, want 1", got)
	}
	h.engine.SetVolume(-0.2)
	if got := h.engine.State().Volume; got != 0 {
		t.Fatalf("volume = %v, want 0", got)
	}
	if got := h.primary.Volume(); got != 0 {
		t.Fatalf("transport volume = %v, want 0", got)
	}
	evt, ok := h.rec.lastOf(events.EventVolumeChanged)
	if !ok || evt.Volume != 0 {
		t.Fatal("expected volume_changed event with the clamped value")
	}
}

func TestProgressFromTransportTiming(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 5})
	h.engine.Initialize(context.Background(), nil, media.TierFree)

	h.primary.setTiming(90*time.Second, 180*time.Second, 135*time.Second)
	h.primary.fireTimeUpdate()

	state := h.engine.State()
	if state.Progress != 50 {
		t.Fatalf("progress = %v, want 50", state.Progress)
	}
	if state.BufferHealth != 75 {
		t.Fatalf("buffer health = %v, want 75", state.BufferHealth)
	}
}

func TestSnapshotTracksState(t *testing.T) {
	h := newHarness(t, Config{TargetSize: 5})
	h.engine.Initialize(context.Background(), ownedTracks(1), media.TierFree)

	snap := h.bus.Snapshot()
	if snap.Current == nil || snap.Current.ID != "owned_1" {
		t.Fatal("snapshot should carry the current track")
	}
	if snap.QueueLen != 4 {
		t.Fatalf("snapshot queue length = %d, want 4", snap.QueueLen)
	}
}
