package playback

import "github.com/ariacast/aria_radio/internal/media"

const (
	// historyLimit bounds the play history ring.
	historyLimit = 20

	// errorThreshold is the consecutive-error count that trips the circuit
	// breaker into a full queue reinitialization.
	errorThreshold = 3

	// crossfadeTriggerPct is the progress percentage past which a crossfade
	// may begin.
	crossfadeTriggerPct = 95.0

	minCrossfadeMS = 1000
	maxCrossfadeMS = 10000
)

// CrossfadeConfig controls the timed dual-channel ramp between tracks.
type CrossfadeConfig struct {
	Enabled    bool
	DurationMS int
}

// clampCrossfadeMS bounds a requested duration to [1000, 10000] ms.
func clampCrossfadeMS(ms int) int {
	if ms < minCrossfadeMS {
		return minCrossfadeMS
	}
	if ms > maxCrossfadeMS {
		return maxCrossfadeMS
	}
	return ms
}

// State is the engine's mutable playback state. Progress and buffer health
// are always recomputed from transport timing, never stored independently
// of it.
type State struct {
	Current           *media.QueueItem
	Playing           bool
	Volume            float64
	Progress          float64 // 0-100
	BufferHealth      float64 // 0-100
	Loading           bool
	ConsecutiveErrors int
	Crossfade         CrossfadeConfig
	History           []media.Track // most recent first, bounded to historyLimit
}

// pushHistory prepends a track, evicting the oldest past the bound.
func (s *State) pushHistory(track media.Track) {
	s.History = append([]media.Track{track}, s.History...)
	if len(s.History) > historyLimit {
		s.History = s.History[:historyLimit]
	}
}

// popHistory removes and returns the most recent entry.
func (s *State) popHistory() (media.Track, bool) {
	if len(s.History) == 0 {
		return media.Track{}, false
	}
	track := s.History[0]
	s.History = s.History[1:]
	return track, true
}
