/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ariacast/aria_radio/internal/media"
)

// Service wraps record access. All methods degrade to sensible defaults on
// a missing row; only infrastructure failures surface as errors.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewService creates a record store over db.
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// DefaultPreferences is what a listener gets before saving anything.
func DefaultPreferences(userID string) AnnouncerPreferences {
	return AnnouncerPreferences{
		ID:          uuid.NewString(),
		UserID:      userID,
		Enabled:     false,
		Frequency:   "medium",
		Personality: "friendly",
		Voice:       "default",
		Intros:      true,
		Outros:      true,
	}
}

// GetPreferences loads the listener's announcer preferences, falling back
// to defaults when none are stored yet.
func (s *Service) GetPreferences(ctx context.Context, userID string) (AnnouncerPreferences, error) {
	var prefs AnnouncerPreferences
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultPreferences(userID), nil
	}
	if err != nil {
		return AnnouncerPreferences{}, err
	}
	return prefs, nil
}

// SavePreferences upserts the listener's announcer preferences.
func (s *Service) SavePreferences(ctx context.Context, prefs AnnouncerPreferences) error {
	if prefs.UserID == "" {
		return errors.New("preferences require a user id")
	}

	var existing AnnouncerPreferences
	err := s.db.WithContext(ctx).Where("user_id = ?", prefs.UserID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if prefs.ID == "" {
			prefs.ID = uuid.NewString()
		}
		return s.db.WithContext(ctx).Create(&prefs).Error
	case err != nil:
		return err
	default:
		prefs.ID = existing.ID
		prefs.CreatedAt = existing.CreatedAt
		return s.db.WithContext(ctx).Save(&prefs).Error
	}
}

// GetSubscription loads the listener's subscription, defaulting to an
// active free tier when no record exists.
func (s *Service) GetSubscription(ctx context.Context, userID string) (Subscription, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Subscription{UserID: userID, Tier: string(media.TierFree), Status: "active"}, nil
	}
	if err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// Tier resolves the listener's queue tier from the subscription record.
// Inactive subscriptions fall back to the free tier.
func (s *Service) Tier(ctx context.Context, userID string) media.Tier {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("subscription lookup failed, using free tier")
		return media.TierFree
	}
	if sub.Status != "active" {
		return media.TierFree
	}
	return media.Tier(sub.Tier)
}

// AddOwnedTrack stores a library entry. New entries without a status start
// in moderation as pending.
func (s *Service) AddOwnedTrack(ctx context.Context, entry OwnedTrack) (OwnedTrack, error) {
	if entry.UserID == "" {
		return OwnedTrack{}, errors.New("owned track requires a user id")
	}
	if entry.Title == "" || entry.FileURL == "" {
		return OwnedTrack{}, errors.New("owned track requires a title and file url")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = string(media.StatusPending)
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return OwnedTrack{}, err
	}
	return entry, nil
}

// OwnedTracks returns the listener's approved library in queue order:
// highest priority level first, oldest first within a level.
func (s *Service) OwnedTracks(ctx context.Context, userID string) ([]media.Track, error) {
	var entries []OwnedTrack
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(media.StatusApproved)).
		Order("priority_level DESC, created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	tracks := make([]media.Track, 0, len(entries))
	for _, entry := range entries {
		tracks = append(tracks, media.Track{
			ID:            entry.ID,
			Title:         entry.Title,
			Artist:        entry.Artist,
			Duration:      entry.Duration,
			Genre:         entry.Genre,
			Artwork:       entry.Artwork,
			Origin:        media.OriginOwned,
			FileURL:       entry.FileURL,
			PlayCount:     entry.PlayCount,
			PriorityLevel: entry.PriorityLevel,
			Status:        media.TrackStatus(entry.Status),
		})
	}
	return tracks, nil
}

// RecordPlay appends a play event for the track.
func (s *Service) RecordPlay(ctx context.Context, track media.Track, manual bool) error {
	event := PlayEvent{
		ID:       uuid.NewString(),
		TrackID:  track.ID,
		Title:    track.Title,
		Artist:   track.Artist,
		Origin:   string(track.Origin),
		Manual:   manual,
		PlayedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Create(&event).Error
}

// RecentPlays returns the newest play events, most recent first.
func (s *Service) RecentPlays(ctx context.Context, limit int) ([]PlayEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var plays []PlayEvent
	err := s.db.WithContext(ctx).Order("played_at DESC").Limit(limit).Find(&plays).Error
	return plays, err
}

// PlayCount returns how many times a track has been started.
func (s *Service) PlayCount(ctx context.Context, trackID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&PlayEvent{}).Where("track_id = ?", trackID).Count(&count).Error
	return count, err
}