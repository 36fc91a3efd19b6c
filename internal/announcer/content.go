/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package announcer layers a DJ-style narration state machine on top of the
// playback event bus: it queues narration content, ducks music while
// speaking and restores the prior volume afterward.
package announcer

import "sort"

// Priority orders pending narration content. Higher speaks sooner.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// ContentType classifies a narration item.
type ContentType string

const (
	ContentWelcome      ContentType = "welcome"
	ContentTrackIntro   ContentType = "track_intro"
	ContentTrackOutro   ContentType = "track_outro"
	ContentAnnouncement ContentType = "announcement"
)

// ContentItem is one pending piece of narration.
type ContentItem struct {
	ID         string
	Type       ContentType
	Text       string
	DurationMS int
	Priority   Priority

	seq uint64 // insertion order, breaks priority ties FIFO
}

const (
	minSpeechMS    = 3000
	msPerCharacter = 80
)

// estimateDurationMS derives a speech duration from text length with a
// floor so even short lines get an audible window.
func estimateDurationMS(text string) int {
	ms := len(text) * msPerCharacter
	if ms < minSpeechMS {
		return minSpeechMS
	}
	return ms
}

// sortContent orders items by priority descending, stable so items within a
// tier keep FIFO order.
func sortContent(items []ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority > items[j].Priority
	})
}