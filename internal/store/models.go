/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists listener preferences, subscription records and
// play history through gorm. The playback core treats it as a simple
// get/save record store.
package store

import "time"

// AnnouncerPreferences stores the listener's DJ settings.
type AnnouncerPreferences struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	UserID      string `gorm:"uniqueIndex"`
	Enabled     bool
	Frequency   string `gorm:"type:varchar(16)"`
	Personality string `gorm:"type:varchar(32)"`
	Voice       string `gorm:"type:varchar(64)"`
	Intros      bool
	Outros      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subscription is the listener's billing tier record. The station reads it
// once at startup to pick the queue tier.
type Subscription struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	UserID      string `gorm:"uniqueIndex"`
	Tier        string `gorm:"type:varchar(32)"`
	Status      string `gorm:"type:varchar(16)"`
	PeriodStart time.Time
	PeriodEnd   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnedTrack is an entry in the listener's own library. Approved entries are
// placed ahead of catalog material when the queue is built.
type OwnedTrack struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	UserID        string `gorm:"index"`
	Title         string
	Artist        string
	Genre         string
	Duration      int
	FileURL       string
	Artwork       string
	PriorityLevel int
	Status        string `gorm:"type:varchar(16)"`
	PlayCount     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PlayEvent records one track start for usage counters.
type PlayEvent struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	TrackID  string `gorm:"index"`
	Title    string
	Artist   string
	Origin   string `gorm:"type:varchar(16)"`
	Manual   bool
	PlayedAt time.Time `gorm:"index"`
}