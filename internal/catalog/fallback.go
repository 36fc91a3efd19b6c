package catalog

import "github.com/ariacast/aria_radio/internal/media"

// fallbackTracks is the built-in static set returned when every strategy is
// exhausted. The queue must never be starved by upstream unavailability.
var fallbackTracks = []media.Track{
	{
		ID:          "fallback_1",
		Title:       "Demo Track 1",
		Artist:      "Demo Artist",
		Duration:    240,
		Genre:       "Demo",
		Origin:      media.OriginCatalog,
		AudioURL:    "https://www2.cs.uic.edu/~i101/SoundFiles/BabyElephantWalk60.wav",
		Source:      "fallback",
		License:     "Demo Content",
		Attribution: "Demo content for testing",
	},
	{
		ID:          "fallback_2",
		Title:       "Demo Track 2",
		Artist:      "Demo Artist",
		Duration:    180,
		Genre:       "Demo",
		Origin:      media.OriginCatalog,
		AudioURL:    "https://www2.cs.uic.edu/~i101/SoundFiles/PinkPanther30.wav",
		Source:      "fallback",
		License:     "Demo Content",
		Attribution: "Demo content for testing",
	},
}

// FallbackTracks returns up to count tracks from the static set.
func FallbackTracks(count int) []media.Track {
	if count <= 0 || count > len(fallbackTracks) {
		count = len(fallbackTracks)
	}
	out := make([]media.Track, count)
	copy(out, fallbackTracks[:count])
	return out
}
