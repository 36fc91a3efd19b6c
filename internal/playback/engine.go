/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback owns the single "now playing" state: it drives the audio
// transports, tracks progress and buffering, recovers from stream errors and
// advances through the queue.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariacast/aria_radio/internal/events"
	"github.com/ariacast/aria_radio/internal/media"
	"github.com/ariacast/aria_radio/internal/queue"
	"github.com/ariacast/aria_radio/internal/telemetry"
)

// ErrNoCurrentTrack indicates play was requested before any track loaded.
var ErrNoCurrentTrack = errors.New("no current track loaded")

// Config contains engine tuning. Zero values fall back to production
// defaults.
type Config struct {
	TargetSize    int
	LowWaterMark  int
	InitialVolume float64
	Crossfade     CrossfadeConfig

	// RetryDelay is the pause before advancing past a broken track.
	RetryDelay time.Duration
	// ReinitDelay is the pause before the circuit breaker rebuilds the queue.
	ReinitDelay time.Duration
	// ResumeGrace lets a freshly loaded track become ready before resuming.
	ResumeGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.TargetSize <= 0 {
		c.TargetSize = 20
	}
	if c.LowWaterMark <= 0 {
		c.LowWaterMark = 5
	}
	if c.InitialVolume <= 0 {
		c.InitialVolume = 0.7
	}
	if c.Crossfade.DurationMS == 0 {
		c.Crossfade.DurationMS = 3000
	}
	c.Crossfade.DurationMS = clampCrossfadeMS(c.Crossfade.DurationMS)
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.ReinitDelay <= 0 {
		c.ReinitDelay = 3 * time.Second
	}
	if c.ResumeGrace <= 0 {
		c.ResumeGrace = 200 * time.Millisecond
	}
	return c
}

// Engine owns the mutable playback state and both transport channels.
// Callbacks arrive from timer and transport goroutines; a single mutex
// serializes them, and lifecycle events are published only after the state
// transition has fully completed.
type Engine struct {
	cfg     Config
	builder *queue.Builder
	bus     *events.Bus
	logger  zerolog.Logger

	mu       sync.Mutex
	channels [2]Transport
	primary  int
	state    State
	queue    []media.QueueItem
	owned    []media.Track
	tier     media.Tier

	fade         *fade
	preloaded    string // locator staged on the idle channel for the next crossfade
	retryTimer   *time.Timer
	reinitTimer  *time.Timer
	resumeTimer  *time.Timer
	fillInFlight bool
	closed       bool
}

// NewEngine creates a playback engine over the two transport channels.
func NewEngine(cfg Config, builder *queue.Builder, bus *events.Bus, primary, secondary Transport, logger zerolog.Logger) *Engine {
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:     cfg,
		builder: builder,
		bus:     bus,
		logger:  logger.With().Str("component", "playback").Logger(),
	}
	e.channels[0] = primary
	e.channels[1] = secondary
	e.state.Volume = cfg.InitialVolume
	e.state.Crossfade = cfg.Crossfade

	primary.SetVolume(cfg.InitialVolume)
	secondary.SetVolume(0)
	primary.SetEvents(&channelSink{engine: e, idx: 0})
	secondary.SetEvents(&channelSink{engine: e, idx: 1})

	return e
}

// channelSink routes transport callbacks back to the engine with the
// originating channel index attached.
type channelSink struct {
	engine *Engine
	idx    int
}

func (s *channelSink) TimeUpdate()     { s.engine.onTimeUpdate(s.idx) }
func (s *channelSink) Ended()          { s.engine.onEnded(s.idx) }
func (s *channelSink) Ready()          { s.engine.onReady(s.idx) }
func (s *channelSink) Error(err error) { s.engine.onError(s.idx, err) }

// Initialize builds the queue from scratch for the supplied owned tracks and
// tier, loads the head track and publishes the initial state. It is also the
// circuit breaker's recovery path.
func (e *Engine) Initialize(ctx context.Context, owned []media.Track, tier media.Tier) {
	initial := e.builder.BuildInitial(owned, tier)
	full := e.builder.Fill(ctx, initial, e.cfg.TargetSize)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.owned = append([]media.Track(nil), owned...)
	e.tier = tier

	e.cancelTimersLocked()
	e.abortFadeLocked()

	e.queue = full
	e.state.Current = nil
	e.state.Progress = 0
	e.state.BufferHealth = 0
	e.state.ConsecutiveErrors = 0

	var evts []events.Event
	if len(e.queue) > 0 {
		item := e.queue[0]
		e.queue = e.queue[1:]
		e.state.Current = &item
		e.state.Loading = true
		e.channels[e.primary].Load(item.Track.StreamURL())
		evts = append(evts, e.trackEvent(events.EventTrackStarted, item.Track))
	}
	evts = append(evts, e.queueEvent())
	e.updateSnapshotLocked()
	e.mu.Unlock()

	e.publish(evts)
}

// Reinitialize rebuilds the queue using the owned tracks and tier captured
// at the last Initialize.
func (e *Engine) Reinitialize(ctx context.Context) {
	e.mu.Lock()
	owned := append([]media.Track(nil), e.owned...)
	tier := e.tier
	e.mu.Unlock()

	e.logger.Warn().Msg("reinitializing queue")
	e.Initialize(ctx, owned, tier)
}

// Play starts or resumes the transport.
func (e *Engine) Play() error {
	e.mu.Lock()
	if e.state.Current == nil {
		e.mu.Unlock()
		return ErrNoCurrentTrack
	}
	if err := e.channels[e.primary].Play(); err != nil {
		e.mu.Unlock()
		e.logger.Warn().Err(err).Msg("transport play failed")
		return err
	}
	e.state.Playing = true
	e.updateSnapshotLocked()
	evt := e.trackEvent(events.EventTrackResumed, e.state.Current.Track)
	e.mu.Unlock()

	e.publish([]events.Event{evt})
	return nil
}

// Pause stops the transport. It always succeeds and is a no-op when already
// paused.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.cancelResumeLocked()
	e.abortFadeLocked()
	e.channels[e.primary].Pause()
	wasPlaying := e.state.Playing
	e.state.Playing = false
	e.updateSnapshotLocked()
	var evts []events.Event
	if wasPlaying && e.state.Current != nil {
		evts = append(evts, e.trackEvent(events.EventTrackPaused, e.state.Current.Track))
	}
	e.mu.Unlock()

	e.publish(evts)
}

// Toggle dispatches to Play or Pause based on the current flag.
func (e *Engine) Toggle() error {
	e.mu.Lock()
	playing := e.state.Playing
	e.mu.Unlock()

	if playing {
		e.Pause()
		return nil
	}
	return e.Play()
}

// SetVolume clamps v to [0,1], applies it to the transport and publishes a
// volume-changed event.
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	e.mu.Lock()
	e.state.Volume = v
	if e.fade == nil {
		e.channels[e.primary].SetVolume(v)
	}
	e.updateSnapshotLocked()
	e.mu.Unlock()

	e.publish([]events.Event{{Type: events.EventVolumeChanged, Volume: v}})
}

// SetCrossfade updates the crossfade configuration, clamping the duration to
// the supported range.
func (e *Engine) SetCrossfade(enabled bool, durationMS int) {
	e.mu.Lock()
	e.state.Crossfade.Enabled = enabled
	if durationMS != 0 {
		e.state.Crossfade.DurationMS = clampCrossfadeMS(durationMS)
	}
	e.preloadNextLocked()
	e.mu.Unlock()
}

// Advance rotates to the next queued track. Manual advances suppress outro
// narration downstream.
func (e *Engine) Advance(manual bool) {
	e.mu.Lock()
	evts := e.advanceLocked(manual, false)
	e.mu.Unlock()

	e.publish(evts)
}

// advanceLocked is the central transition: history, queue head, transport
// load and refill trigger. fromFade skips the transport load because the
// incoming channel is already audible.
func (e *Engine) advanceLocked(manual, fromFade bool) []events.Event {
	e.cancelTimersLocked()
	if !fromFade {
		e.abortFadeLocked()
	}

	var evts []events.Event
	if e.state.Current != nil {
		e.state.pushHistory(e.state.Current.Track)
		evt := e.trackEvent(events.EventTrackEnded, e.state.Current.Track)
		evt.Manual = manual
		evts = append(evts, evt)
	}

	if len(e.queue) > 0 {
		item := e.queue[0]
		e.queue = e.queue[1:]
		e.state.Current = &item
	} else {
		e.state.Current = nil
		e.state.Playing = false
	}
	e.state.Progress = 0
	e.state.BufferHealth = 0

	if len(e.queue) < e.cfg.LowWaterMark && !e.fillInFlight {
		e.fillInFlight = true
		go e.refill()
	}

	if e.state.Current != nil {
		if !fromFade {
			e.state.Loading = true
			e.channels[e.primary].Load(e.state.Current.Track.StreamURL())
			if e.state.Playing {
				e.scheduleResumeLocked()
			}
		}
		evts = append(evts, e.trackEvent(events.EventTrackStarted, e.state.Current.Track))
	}

	evts = append(evts, e.queueEvent())
	e.updateSnapshotLocked()
	return evts
}

// Previous loads the most recent history entry as current. No-op when
// history is empty; the replaced current track is dropped, not requeued.
func (e *Engine) Previous() {
	e.mu.Lock()
	track, ok := e.state.popHistory()
	if !ok {
		e.mu.Unlock()
		return
	}

	e.cancelTimersLocked()
	e.abortFadeLocked()

	var evts []events.Event
	if e.state.Current != nil {
		evt := e.trackEvent(events.EventTrackEnded, e.state.Current.Track)
		evt.Manual = true
		evts = append(evts, evt)
	}

	item := media.QueueItem{Track: track, Origin: track.Origin}
	e.state.Current = &item
	e.state.Progress = 0
	e.state.BufferHealth = 0
	e.state.Loading = true
	e.channels[e.primary].Load(track.StreamURL())
	if e.state.Playing {
		e.scheduleResumeLocked()
	}
	evts = append(evts, e.trackEvent(events.EventTrackStarted, track))
	e.updateSnapshotLocked()
	e.mu.Unlock()

	e.publish(evts)
}

// SkipTo jumps to the queue item at index, moving the skipped-over items
// into history in their original order. Out-of-bounds indexes are ignored.
func (e *Engine) SkipTo(index int) {
	e.mu.Lock()
	if index < 0 || index >= len(e.queue) {
		e.mu.Unlock()
		return
	}

	e.cancelTimersLocked()
	e.abortFadeLocked()

	var evts []events.Event
	if e.state.Current != nil {
		evt := e.trackEvent(events.EventTrackEnded, e.state.Current.Track)
		evt.Manual = true
		evts = append(evts, evt)
	}

	skipped := make([]media.Track, 0, index)
	for _, item := range e.queue[:index] {
		skipped = append(skipped, item.Track)
	}
	e.state.History = append(skipped, e.state.History...)
	if len(e.state.History) > historyLimit {
		e.state.History = e.state.History[:historyLimit]
	}

	item := e.queue[index]
	e.queue = append([]media.QueueItem(nil), e.queue[index+1:]...)
	e.state.Current = &item
	e.state.Progress = 0
	e.state.BufferHealth = 0
	e.state.Loading = true
	e.channels[e.primary].Load(item.Track.StreamURL())
	if e.state.Playing {
		e.scheduleResumeLocked()
	}

	if len(e.queue) < e.cfg.LowWaterMark && !e.fillInFlight {
		e.fillInFlight = true
		go e.refill()
	}

	evts = append(evts, e.trackEvent(events.EventTrackStarted, item.Track))
	evts = append(evts, e.queueEvent())
	e.updateSnapshotLocked()
	e.mu.Unlock()

	e.publish(evts)
}

// Volume returns the configured music volume.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Volume
}

// State returns a copy of the playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	if e.state.Current != nil {
		current := *e.state.Current
		s.Current = &current
	}
	s.History = append([]media.Track(nil), e.state.History...)
	return s
}

// Queue returns a copy of the pending queue.
func (e *Engine) Queue() []media.QueueItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]media.QueueItem(nil), e.queue...)
}

// Close tears down timers, any in-flight crossfade and the transports.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.cancelTimersLocked()
	e.abortFadeLocked()
	for _, ch := range e.channels {
		ch.Pause()
		ch.SetEvents(nil)
	}
	e.mu.Unlock()
}

// Transport callbacks.

func (e *Engine) onTimeUpdate(idx int) {
	e.mu.Lock()
	if e.closed || idx != e.primary {
		e.mu.Unlock()
		return
	}

	transport := e.channels[e.primary]
	duration := transport.Duration()
	if duration <= 0 {
		e.mu.Unlock()
		return
	}

	e.state.Progress = float64(transport.Position()) / float64(duration) * 100
	e.state.BufferHealth = float64(transport.Buffered()) / float64(duration) * 100
	e.updateSnapshotLocked()

	// The idle channel must hold the current queue head, not just any ready
	// media: an async refill can re-sort a new head in front of whatever was
	// staged earlier.
	shouldFade := e.state.Crossfade.Enabled &&
		e.state.Progress > crossfadeTriggerPct &&
		e.fade == nil &&
		e.state.Current != nil &&
		len(e.queue) > 0 &&
		e.preloaded == e.queue[0].Track.StreamURL() &&
		e.channels[1-e.primary].Ready()
	if shouldFade {
		e.startFadeLocked()
	}
	e.mu.Unlock()
}

func (e *Engine) onEnded(idx int) {
	e.mu.Lock()
	if e.closed || idx != e.primary {
		e.mu.Unlock()
		return
	}
	evts := e.advanceLocked(false, false)
	e.mu.Unlock()

	e.publish(evts)
}

func (e *Engine) onReady(idx int) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	if idx != e.primary {
		// Secondary channel finished buffering. Only flag the head when it
		// is still the track that was staged.
		if len(e.queue) > 0 && e.queue[0].Track.StreamURL() == e.preloaded {
			e.queue[0].Preloaded = true
		}
		e.mu.Unlock()
		return
	}

	e.state.Loading = false
	e.state.ConsecutiveErrors = 0

	e.preloadNextLocked()
	e.updateSnapshotLocked()
	e.mu.Unlock()
}

func (e *Engine) onError(idx int, err error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	if idx != e.primary {
		// The preloading channel broke; abandon any ramp that depends on it.
		e.abortFadeLocked()
		e.mu.Unlock()
		return
	}

	telemetry.PlaybackErrorsTotal.Inc()
	e.state.ConsecutiveErrors++
	e.state.Loading = false
	count := e.state.ConsecutiveErrors
	e.logger.Warn().Err(err).Int("consecutive", count).Msg("transport error")

	var evts []events.Event
	if e.state.Current != nil {
		evt := e.trackEvent(events.EventTrackError, e.state.Current.Track)
		evt.Message = "Playback problem, skipping to the next track"
		evts = append(evts, evt)
	}

	if count < errorThreshold {
		e.cancelRetryLocked()
		e.retryTimer = time.AfterFunc(e.cfg.RetryDelay, func() {
			e.Advance(false)
		})
	} else {
		// Circuit breaker: stop retrying track by track and rebuild the
		// whole queue after a cool-down.
		telemetry.PlaybackCircuitBreaksTotal.Inc()
		e.channels[e.primary].Pause()
		e.state.Playing = false
		e.state.ConsecutiveErrors = 0
		e.cancelTimersLocked()
		e.reinitTimer = time.AfterFunc(e.cfg.ReinitDelay, func() {
			e.Reinitialize(context.Background())
		})
	}
	e.updateSnapshotLocked()
	e.mu.Unlock()

	e.publish(evts)
}

// Timer management. Every state-changing operation clears superseded
// handles so stale callbacks cannot fire against new state.

func (e *Engine) cancelTimersLocked() {
	e.cancelRetryLocked()
	if e.reinitTimer != nil {
		e.reinitTimer.Stop()
		e.reinitTimer = nil
	}
	e.cancelResumeLocked()
}

func (e *Engine) cancelRetryLocked() {
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
}

func (e *Engine) cancelResumeLocked() {
	if e.resumeTimer != nil {
		e.resumeTimer.Stop()
		e.resumeTimer = nil
	}
}

func (e *Engine) scheduleResumeLocked() {
	e.cancelResumeLocked()
	e.resumeTimer = time.AfterFunc(e.cfg.ResumeGrace, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || !e.state.Playing || e.state.Current == nil {
			return
		}
		if err := e.channels[e.primary].Play(); err != nil {
			e.logger.Warn().Err(err).Msg("resume after advance failed")
		}
	})
}

// refill asynchronously tops the queue back up to the target size and merges
// against whatever the queue looks like by the time the fetch returns.
func (e *Engine) refill() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	e.mu.Lock()
	needed := e.cfg.TargetSize - len(e.queue)
	e.mu.Unlock()

	items := e.builder.CatalogItems(ctx, needed)

	e.mu.Lock()
	e.fillInFlight = false
	if e.closed || len(items) == 0 {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, items...)
	queue.Sort(e.queue)
	e.preloadNextLocked()
	evt := e.queueEvent()
	e.updateSnapshotLocked()
	e.mu.Unlock()

	e.publish([]events.Event{evt})
}

// Event helpers.

func (e *Engine) trackEvent(eventType events.EventType, track media.Track) events.Event {
	t := track
	return events.Event{Type: eventType, Track: &t, Volume: e.state.Volume}
}

func (e *Engine) queueEvent() events.Event {
	return events.Event{Type: events.EventQueueUpdated, QueueLen: len(e.queue)}
}

func (e *Engine) updateSnapshotLocked() {
	snap := events.Snapshot{
		Playing:      e.state.Playing,
		Volume:       e.state.Volume,
		Progress:     e.state.Progress,
		BufferHealth: e.state.BufferHealth,
		Loading:      e.state.Loading,
		QueueLen:     len(e.queue),
		HistoryLen:   len(e.state.History),
	}
	if e.state.Current != nil {
		track := e.state.Current.Track
		snap.Current = &track
	}
	e.bus.SetSnapshot(snap)
}

func (e *Engine) publish(evts []events.Event) {
	for _, evt := range evts {
		e.bus.Publish(evt)
	}
}
