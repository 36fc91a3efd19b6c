/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media defines the track data model shared by the queue, playback
// and announcer subsystems.
package media

// Origin distinguishes where a track came from.
type Origin string

const (
	OriginOwned   Origin = "owned"
	OriginCatalog Origin = "catalog"
)

// TrackStatus enumerates the moderation lifecycle of owned tracks.
type TrackStatus string

const (
	StatusPending  TrackStatus = "pending"
	StatusApproved TrackStatus = "approved"
	StatusRejected TrackStatus = "rejected"
)

// Track is a playable item from either source. Origin selects which of the
// variant fields are meaningful; call sites use the accessors instead of
// branching on shape.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration int    `json:"duration"` // seconds
	Genre    string `json:"genre,omitempty"`
	Artwork  string `json:"artwork,omitempty"`

	Origin Origin `json:"origin"`

	// Owned variant
	FileURL       string      `json:"file_url,omitempty"`
	PlayCount     int         `json:"play_count,omitempty"`
	PriorityLevel int         `json:"priority_level,omitempty"`
	Status        TrackStatus `json:"status,omitempty"`

	// Catalog variant
	AudioURL    string `json:"audio_url,omitempty"`
	Source      string `json:"source,omitempty"`
	License     string `json:"license,omitempty"`
	Attribution string `json:"attribution,omitempty"`
}

// StreamURL resolves the playable media locator for either variant.
func (t Track) StreamURL() string {
	if t.Origin == OriginOwned {
		return t.FileURL
	}
	return t.AudioURL
}

// ArtworkURL returns the artwork locator, empty when none is set.
func (t Track) ArtworkURL() string {
	return t.Artwork
}

// QueueItem wraps a track with its queue bookkeeping.
type QueueItem struct {
	Track     Track  `json:"track"`
	Priority  int    `json:"priority"`
	Origin    Origin `json:"origin"`
	Preloaded bool   `json:"preloaded"`
}
