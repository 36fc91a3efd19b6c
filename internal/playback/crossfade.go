/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import "time"

// fadeSteps is the number of discrete volume adjustments in a crossfade.
const fadeSteps = 50

// fade tracks one in-flight crossfade. Closing stop aborts the ramp
// goroutine before its next step.
type fade struct {
	stop chan struct{}
}

// rampVolumes returns the outgoing and incoming channel volumes for the
// given step of a linear crossfade toward target. The two always sum to
// target, so perceived loudness stays flat across the transition.
func rampVolumes(target float64, step, steps int) (outgoing, incoming float64) {
	progress := float64(step) / float64(steps)
	return target * (1 - progress), target * progress
}

// preloadNextLocked stages the queue head on the idle channel and records
// its locator. Restaging clears lingering Preloaded flags, so the fade
// trigger only fires once the channel has buffered the actual head.
func (e *Engine) preloadNextLocked() {
	if !e.state.Crossfade.Enabled || e.fade != nil || len(e.queue) == 0 {
		return
	}
	url := e.queue[0].Track.StreamURL()
	if url == e.preloaded {
		return
	}
	for i := range e.queue {
		e.queue[i].Preloaded = false
	}
	e.preloaded = url
	e.channels[1-e.primary].Load(url)
}

// startFadeLocked begins a crossfade from the primary channel into the
// preloaded secondary. Caller holds e.mu and has verified the secondary
// holds the queue head, buffered and ready.
func (e *Engine) startFadeLocked() {
	duration := time.Duration(clampCrossfadeMS(e.state.Crossfade.DurationMS)) * time.Millisecond

	f := &fade{stop: make(chan struct{})}
	e.fade = f

	outgoing := e.channels[e.primary]
	incoming := e.channels[1-e.primary]
	incoming.SetVolume(0)
	if err := incoming.Play(); err != nil {
		e.logger.Warn().Err(err).Msg("crossfade start failed")
		e.fade = nil
		return
	}

	e.logger.Debug().Dur("duration", duration).Msg("crossfade started")
	go e.runFade(f, outgoing, incoming, e.state.Volume, duration)
}

// runFade executes the ramp off the engine lock, then completes the
// transition: the incoming channel becomes primary and the queue rotates
// without touching the transport again.
func (e *Engine) runFade(f *fade, outgoing, incoming Transport, target float64, duration time.Duration) {
	ticker := time.NewTicker(duration / fadeSteps)
	defer ticker.Stop()

	for step := 1; step <= fadeSteps; step++ {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
		}
		outVol, inVol := rampVolumes(target, step, fadeSteps)

		// Re-check ownership under the lock so an abort that already
		// restored channel volumes cannot be overwritten by a late step.
		e.mu.Lock()
		if e.closed || e.fade != f {
			e.mu.Unlock()
			return
		}
		outgoing.SetVolume(outVol)
		incoming.SetVolume(inVol)
		e.mu.Unlock()
	}

	e.mu.Lock()
	if e.closed || e.fade != f {
		e.mu.Unlock()
		return
	}
	e.fade = nil
	outgoing.Pause()
	outgoing.SetVolume(0)
	e.primary = 1 - e.primary
	// The idle channel is now the old outgoing with the finished track
	// loaded; forget its locator before staging the next one.
	e.preloaded = ""
	e.state.Playing = true
	evts := e.advanceLocked(false, true)
	e.preloadNextLocked()
	e.mu.Unlock()

	e.publish(evts)
}

// abortFadeLocked cancels an in-flight crossfade and restores the primary
// channel to the configured volume. Manual playback actions supersede an
// automatic transition.
func (e *Engine) abortFadeLocked() {
	if e.fade == nil {
		return
	}
	close(e.fade.stop)
	e.fade = nil

	e.channels[e.primary].SetVolume(e.state.Volume)
	e.channels[1-e.primary].Pause()
	e.channels[1-e.primary].SetVolume(0)
	e.logger.Debug().Msg("crossfade aborted")
}