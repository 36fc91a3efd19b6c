package events

import "github.com/ariacast/aria_radio/internal/media"

// Snapshot mirrors the playback engine's state for read-only consumption by
// subscribers that must not hold a direct engine reference.
type Snapshot struct {
	Current      *media.Track `json:"current,omitempty"`
	Playing      bool         `json:"playing"`
	Volume       float64      `json:"volume"`
	Progress     float64      `json:"progress"`       // 0-100
	BufferHealth float64      `json:"buffer_health"`  // 0-100
	Loading      bool         `json:"loading"`
	QueueLen     int          `json:"queue_len"`
	HistoryLen   int          `json:"history_len"`
}

// SetSnapshot replaces the shared state mirror. The engine updates it before
// publishing the corresponding events so subscribers never observe a
// half-updated transition.
func (b *Bus) SetSnapshot(s Snapshot) {
	b.mu.Lock()
	b.snapshot = s
	b.mu.Unlock()
}

// Snapshot returns the current shared state mirror.
func (b *Bus) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}
