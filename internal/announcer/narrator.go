/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package announcer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/ariacast/aria_radio/internal/media"
)

// NarrationRequest carries the context a narrator needs to produce speech.
type NarrationRequest struct {
	Type        ContentType
	Track       *media.Track
	Text        string // free text for announcements
	Personality string
	Voice       string
}

// Narration is the produced speech: display text plus an optional playable
// locator when the narrator synthesizes audio.
type Narration struct {
	Text       string
	AudioURL   string
	DurationMS int
}

// Narrator turns a request into playable narration. Implementations may call
// out to a synthesis service; a failure simply skips that speech cycle.
type Narrator interface {
	Narrate(ctx context.Context, req NarrationRequest) (Narration, error)
}

var (
	welcomeTemplates = []string{
		"Hey there, welcome back to the stream. We're rolling with %q by %s right now.",
		"Good to have you with us. Currently on air, %q from %s.",
		"Welcome in. The track you're hearing is %q by %s.",
	}
	introTemplates = []string{
		"Up next, %q by %s.",
		"Here comes %q from %s, enjoy.",
		"Keeping it moving with %q by %s.",
		"This is %q by %s, coming right up.",
	}
	outroTemplates = []string{
		"That was %q by %s.",
		"You just heard %q from %s.",
		"And that wraps up %q by %s.",
	}
)

// TemplateNarrator is the built-in narrator: it renders text from a small
// fixed template pool chosen pseudo-randomly. No audio synthesis.
type TemplateNarrator struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewTemplateNarrator creates a template narrator seeded from seed.
func NewTemplateNarrator(seed int64) *TemplateNarrator {
	return &TemplateNarrator{rand: rand.New(rand.NewSource(seed))}
}

func (n *TemplateNarrator) pick(pool []string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return pool[n.rand.Intn(len(pool))]
}

// Narrate renders the request through the template pool for its type.
func (n *TemplateNarrator) Narrate(_ context.Context, req NarrationRequest) (Narration, error) {
	var text string
	switch req.Type {
	case ContentAnnouncement:
		text = req.Text
	case ContentWelcome:
		if req.Track == nil {
			return Narration{}, fmt.Errorf("welcome narration requires a track")
		}
		text = fmt.Sprintf(n.pick(welcomeTemplates), req.Track.Title, req.Track.Artist)
	case ContentTrackOutro:
		if req.Track == nil {
			return Narration{}, fmt.Errorf("outro narration requires a track")
		}
		text = fmt.Sprintf(n.pick(outroTemplates), req.Track.Title, req.Track.Artist)
	default:
		if req.Track == nil {
			return Narration{}, fmt.Errorf("intro narration requires a track")
		}
		text = fmt.Sprintf(n.pick(introTemplates), req.Track.Title, req.Track.Artist)
	}
	return Narration{Text: text, DurationMS: estimateDurationMS(text)}, nil
}