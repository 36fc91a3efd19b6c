package playback

import "time"

// TransportEvents receives callbacks from a transport channel. Callbacks
// arrive on timer/decoder goroutines; the engine serializes them internally.
type TransportEvents interface {
	TimeUpdate()
	Ended()
	Ready()
	Error(err error)
}

// Transport drives a single audio channel. The engine owns two channels so
// the crossfade controller can overlap an outgoing and an incoming track.
type Transport interface {
	// Load points the channel at a new media locator and begins buffering.
	Load(url string)
	Play() error
	Pause()
	SetVolume(v float64)
	Volume() float64

	Position() time.Duration
	Duration() time.Duration
	Buffered() time.Duration
	Ready() bool

	// SetEvents registers the callback sink. A nil sink detaches.
	SetEvents(events TransportEvents)
}
