/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package announcer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ariacast/aria_radio/internal/events"
	"github.com/ariacast/aria_radio/internal/media"
	"github.com/ariacast/aria_radio/internal/telemetry"
)

// Frequency controls how often the announcer generates track narration.
type Frequency string

const (
	FrequencyLow    Frequency = "low"
	FrequencyMedium Frequency = "medium"
	FrequencyHigh   Frequency = "high"
)

// minInterval returns the minimum gap between generated intro/outro items.
func (f Frequency) minInterval() time.Duration {
	switch f {
	case FrequencyHigh:
		return 2 * time.Minute
	case FrequencyLow:
		return 10 * time.Minute
	default:
		return 5 * time.Minute
	}
}

const (
	defaultTick       = time.Second
	defaultDuckFactor = 0.25
	speechVolumeBoost = 1.2
)

// Mixer is the slice of the playback engine the announcer drives: reading
// the music volume and ducking/restoring it around speech.
type Mixer interface {
	Volume() float64
	SetVolume(v float64)
}

// Config tunes the announcer.
type Config struct {
	Tick        time.Duration
	DuckFactor  float64
	Frequency   Frequency
	Personality string
	Voice       string

	// DisableIntros and DisableOutros switch off the corresponding
	// generated narration while keeping the announcer active.
	DisableIntros bool
	DisableOutros bool
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = defaultTick
	}
	if c.DuckFactor <= 0 || c.DuckFactor >= 1 {
		c.DuckFactor = defaultDuckFactor
	}
	if c.Frequency == "" {
		c.Frequency = FrequencyMedium
	}
	return c
}

// Status is a read-only view of the announcer for API consumers.
type Status struct {
	Active       bool         `json:"active"`
	Speaking     bool         `json:"speaking"`
	Current      *ContentItem `json:"current,omitempty"`
	QueueLen     int          `json:"queue_len"`
	SpeechVolume float64      `json:"speech_volume"`
}

// Announcer is the narration state machine: inactive, idle (active but
// silent) or speaking. It subscribes to the playback bus, queues content by
// priority and serializes speech against the music volume.
type Announcer struct {
	cfg      Config
	bus      *events.Bus
	mixer    Mixer
	narrator Narrator
	logger   zerolog.Logger

	mu            sync.Mutex
	active        bool
	speaking      bool
	current       *ContentItem
	queue         []ContentItem
	seq           uint64
	speechVolume  float64
	preDuck       float64
	lastGenerated time.Time
	selfVolume    int // volume-changed events caused by our own duck/restore
	speakTimer    *time.Timer
	closed        bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an announcer wired to the bus and mixer. Call Start to begin
// processing.
func New(cfg Config, bus *events.Bus, mixer Mixer, narrator Narrator, logger zerolog.Logger) *Announcer {
	cfg = cfg.withDefaults()
	return &Announcer{
		cfg:          cfg,
		bus:          bus,
		mixer:        mixer,
		narrator:     narrator,
		logger:       logger.With().Str("component", "announcer").Logger(),
		speechVolume: 1.0,
		done:         make(chan struct{}),
	}
}

// Start subscribes to playback events and begins the drain loop.
func (a *Announcer) Start() {
	a.bus.Subscribe("announcer", a.onEvent)
	a.wg.Add(1)
	go a.drainLoop()
}

// Close stops the drain loop, interrupts any speech with a volume restore
// and unsubscribes from the bus.
func (a *Announcer) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()
	a.Interrupt()
	a.bus.Unsubscribe("announcer")
}

// Activate switches the announcer on. When a track is already playing it
// queues a high-priority welcome for it.
func (a *Announcer) Activate() {
	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return
	}
	a.active = true
	a.mu.Unlock()

	a.logger.Info().Msg("announcer activated")

	snap := a.bus.Snapshot()
	if snap.Current == nil {
		return
	}
	a.generate(ContentWelcome, snap.Current, PriorityHigh, false)
}

// Deactivate switches the announcer off, interrupting any current speech.
func (a *Announcer) Deactivate() {
	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	a.active = false
	a.queue = nil
	a.mu.Unlock()

	a.Interrupt()
	a.logger.Info().Msg("announcer deactivated")
}

// Toggle flips activation and reports the new state.
func (a *Announcer) Toggle() bool {
	a.mu.Lock()
	active := a.active
	a.mu.Unlock()

	if active {
		a.Deactivate()
		return false
	}
	a.Activate()
	return true
}

// Active reports whether the announcer is switched on.
func (a *Announcer) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// SetPreferences applies stored listener preferences.
func (a *Announcer) SetPreferences(frequency Frequency, personality, voice string) {
	a.mu.Lock()
	if frequency != "" {
		a.cfg.Frequency = frequency
	}
	if personality != "" {
		a.cfg.Personality = personality
	}
	if voice != "" {
		a.cfg.Voice = voice
	}
	a.mu.Unlock()
}

// SetContentToggles switches intro and outro generation on or off.
func (a *Announcer) SetContentToggles(intros, outros bool) {
	a.mu.Lock()
	a.cfg.DisableIntros = !intros
	a.cfg.DisableOutros = !outros
	a.mu.Unlock()
}

func (a *Announcer) introsDisabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.DisableIntros
}

func (a *Announcer) outrosDisabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.DisableOutros
}

// Status returns a snapshot of the announcer state.
func (a *Announcer) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Status{
		Active:       a.active,
		Speaking:     a.speaking,
		QueueLen:     len(a.queue),
		SpeechVolume: a.speechVolume,
	}
	if a.current != nil {
		item := *a.current
		s.Current = &item
	}
	return s
}

// Announce queues free-text narration at medium priority. Duration is
// estimated from text length. No-op while inactive.
func (a *Announcer) Announce(text string) {
	if text == "" {
		return
	}

	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}
	personality, voice := a.cfg.Personality, a.cfg.Voice
	a.mu.Unlock()

	narration, err := a.narrator.Narrate(context.Background(), NarrationRequest{
		Type:        ContentAnnouncement,
		Text:        text,
		Personality: personality,
		Voice:       voice,
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("announcement narration failed")
		return
	}
	a.enqueue(ContentAnnouncement, narration, PriorityMedium)
}

// Interrupt stops the current speech immediately and restores the pre-duck
// music volume. Pending queue content is kept.
func (a *Announcer) Interrupt() {
	a.mu.Lock()
	if !a.speaking {
		a.mu.Unlock()
		return
	}
	if a.speakTimer != nil {
		a.speakTimer.Stop()
		a.speakTimer = nil
	}
	restore := a.finishSpeakingLocked()
	a.mu.Unlock()

	a.mixer.SetVolume(restore)
}

// onEvent handles bus deliveries. Reactions that touch the mixer run after
// the lock is released because SetVolume publishes back onto this bus.
func (a *Announcer) onEvent(e events.Event) {
	switch e.Type {
	case events.EventTrackStarted:
		if a.Active() && !a.introsDisabled() {
			a.generate(ContentTrackIntro, e.Track, PriorityHigh, true)
		}
	case events.EventTrackEnded:
		if e.Manual {
			// A manual skip suppresses the outro and cuts off any speech.
			a.Interrupt()
			return
		}
		if a.Active() && !a.outrosDisabled() {
			a.generate(ContentTrackOutro, e.Track, PriorityMedium, true)
		}
	case events.EventTrackPaused:
		a.Interrupt()
	case events.EventVolumeChanged:
		a.onVolumeChanged(e.Volume)
	}
}

func (a *Announcer) onVolumeChanged(music float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.selfVolume > 0 {
		// Our own duck or restore echoing back; speech volume follows the
		// listener's setting, not the ducked level.
		a.selfVolume--
		return
	}

	v := music * speechVolumeBoost
	if v > 1.0 {
		v = 1.0
	}
	a.speechVolume = v

	if a.speaking {
		// Listener adjusted volume mid-speech; restore to the new setting.
		a.preDuck = music
	}
}

// generate runs the narrator for a track and enqueues the result. Gated
// generation honors the frequency preference; a narration failure is a
// silent cycle, never an error to the caller.
func (a *Announcer) generate(contentType ContentType, track *media.Track, priority Priority, gated bool) {
	if track == nil {
		return
	}

	a.mu.Lock()
	if gated && time.Since(a.lastGenerated) < a.cfg.Frequency.minInterval() {
		a.mu.Unlock()
		return
	}
	a.lastGenerated = time.Now()
	personality, voice := a.cfg.Personality, a.cfg.Voice
	a.mu.Unlock()

	narration, err := a.narrator.Narrate(context.Background(), NarrationRequest{
		Type:        contentType,
		Track:       track,
		Personality: personality,
		Voice:       voice,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("type", string(contentType)).Msg("narration failed")
		return
	}
	a.enqueue(contentType, narration, priority)
}

func (a *Announcer) enqueue(contentType ContentType, narration Narration, priority Priority) {
	duration := narration.DurationMS
	if duration <= 0 {
		duration = estimateDurationMS(narration.Text)
	}

	a.mu.Lock()
	a.seq++
	a.queue = append(a.queue, ContentItem{
		ID:         uuid.NewString(),
		Type:       contentType,
		Text:       narration.Text,
		DurationMS: duration,
		Priority:   priority,
		seq:        a.seq,
	})
	sortContent(a.queue)
	a.mu.Unlock()
}

func (a *Announcer) drainLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.drainOnce()
		}
	}
}

// drainOnce starts the highest-priority pending item when idle: duck the
// music, mark speaking, and schedule the restore for the item's duration.
func (a *Announcer) drainOnce() {
	a.mu.Lock()
	if !a.active || a.speaking || len(a.queue) == 0 {
		a.mu.Unlock()
		return
	}

	item := a.queue[0]
	a.queue = a.queue[1:]
	a.current = &item
	a.speaking = true
	a.preDuck = a.mixer.Volume()
	ducked := a.preDuck * a.cfg.DuckFactor
	a.selfVolume++
	a.speakTimer = time.AfterFunc(time.Duration(item.DurationMS)*time.Millisecond, a.onSpeechDone)
	a.mu.Unlock()

	telemetry.AnnouncerSpeechesTotal.WithLabelValues(string(item.Type)).Inc()
	a.logger.Debug().
		Str("type", string(item.Type)).
		Int("duration_ms", item.DurationMS).
		Msg("speaking")

	a.mixer.SetVolume(ducked)
}

func (a *Announcer) onSpeechDone() {
	a.mu.Lock()
	if !a.speaking {
		a.mu.Unlock()
		return
	}
	restore := a.finishSpeakingLocked()
	a.mu.Unlock()

	a.mixer.SetVolume(restore)
}

// finishSpeakingLocked clears the speaking state and returns the volume to
// restore. Caller holds a.mu and applies the restore after unlocking.
func (a *Announcer) finishSpeakingLocked() float64 {
	a.speaking = false
	a.current = nil
	a.speakTimer = nil
	a.selfVolume++
	return a.preDuck
}
