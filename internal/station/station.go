/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package station assembles one playback session: the event bus, catalog
// client, queue builder, playback engine, announcer and their supporting
// services, with an explicit create/teardown lifecycle.
package station

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ariacast/aria_radio/internal/announcer"
	"github.com/ariacast/aria_radio/internal/cache"
	"github.com/ariacast/aria_radio/internal/catalog"
	"github.com/ariacast/aria_radio/internal/config"
	"github.com/ariacast/aria_radio/internal/eventbus"
	"github.com/ariacast/aria_radio/internal/events"
	"github.com/ariacast/aria_radio/internal/media"
	"github.com/ariacast/aria_radio/internal/playback"
	"github.com/ariacast/aria_radio/internal/queue"
	"github.com/ariacast/aria_radio/internal/store"
)

// DefaultUserID scopes preference and subscription records when the
// deployment runs a single listener session.
const DefaultUserID = "default"

const playLogSubscriber = "playlog"

// Station owns one radio session end to end.
type Station struct {
	cfg    *config.Config
	logger zerolog.Logger
	userID string

	Bus       *events.Bus
	Catalog   *catalog.Client
	Builder   *queue.Builder
	Engine    *playback.Engine
	Announcer *announcer.Announcer
	Store     *store.Service

	bridge     *eventbus.Bridge
	transports []*playback.ClockTransport
}

// New assembles a station from configuration. The database is owned by the
// caller; everything else is created here and torn down by Close.
func New(cfg *config.Config, database *gorm.DB, logger zerolog.Logger) *Station {
	bus := events.NewBus(logger)

	var trackCache cache.TrackCache
	if cfg.RedisAddr != "" {
		redisCfg := cache.DefaultConfig()
		redisCfg.RedisAddr = cfg.RedisAddr
		redisCfg.RedisPassword = cfg.RedisPassword
		redisCfg.RedisDB = cfg.RedisDB
		trackCache = cache.NewRedis(redisCfg, logger)
	} else {
		trackCache = cache.NewMemory()
	}

	catalogClient := catalog.New(catalog.Config{
		BaseURL:  cfg.CatalogBaseURL,
		ClientID: cfg.CatalogClientID,
		Timeout:  cfg.CatalogTimeout,
	}, trackCache, logger)

	builder := queue.NewBuilder(catalogClient, logger)

	primary := playback.NewClockTransport(logger)
	secondary := playback.NewClockTransport(logger)

	engine := playback.NewEngine(playback.Config{
		TargetSize:    cfg.QueueTargetSize,
		LowWaterMark:  cfg.QueueLowWaterMark,
		InitialVolume: cfg.InitialVolume,
		Crossfade: playback.CrossfadeConfig{
			Enabled:    cfg.CrossfadeEnabled,
			DurationMS: cfg.CrossfadeDurationMS,
		},
	}, builder, bus, primary, secondary, logger)

	svc := store.NewService(database, logger)

	s := &Station{
		cfg:        cfg,
		logger:     logger.With().Str("component", "station").Logger(),
		userID:     DefaultUserID,
		Bus:        bus,
		Catalog:    catalogClient,
		Builder:    builder,
		Engine:     engine,
		Store:      svc,
		transports: []*playback.ClockTransport{primary, secondary},
	}

	ann := announcer.New(announcer.Config{Tick: cfg.AnnouncerTick}, bus, engine, announcer.NewTemplateNarrator(time.Now().UnixNano()), logger)
	s.Announcer = ann

	if cfg.EventBridge {
		s.bridge = eventbus.NewBridge(eventbus.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, bus, logger)
	}

	return s
}

// Start applies stored preferences, records plays, resolves the listener's
// tier and builds the initial queue. owned overrides the stored library;
// pass nil to serve the listener's approved tracks from the store.
func (s *Station) Start(ctx context.Context, owned []media.Track) {
	s.Announcer.Start()

	if owned == nil {
		library, err := s.Store.OwnedTracks(ctx, s.userID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("library load failed, catalog-only session")
		}
		owned = library
	}

	prefs, err := s.Store.GetPreferences(ctx, s.userID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("preferences load failed, using defaults")
		prefs = store.DefaultPreferences(s.userID)
	}
	s.Announcer.SetPreferences(announcer.Frequency(prefs.Frequency), prefs.Personality, prefs.Voice)
	s.Announcer.SetContentToggles(prefs.Intros, prefs.Outros)
	if prefs.Enabled {
		s.Announcer.Activate()
	}

	s.Bus.Subscribe(playLogSubscriber, s.recordPlay)

	tier := s.Store.Tier(ctx, s.userID)
	s.logger.Info().
		Str("tier", string(tier)).
		Int("owned_tracks", len(owned)).
		Msg("station starting")

	s.Engine.Initialize(ctx, owned, tier)
}

// Close tears the session down in dependency order.
func (s *Station) Close() {
	s.Bus.Unsubscribe(playLogSubscriber)
	if s.bridge != nil {
		s.bridge.Close()
	}
	s.Announcer.Close()
	s.Engine.Close()
	for _, t := range s.transports {
		t.Close()
	}
	s.logger.Info().Msg("station stopped")
}

// recordPlay runs on the bus delivery path; the write happens off it.
func (s *Station) recordPlay(e events.Event) {
	if e.Type != events.EventTrackStarted || e.Track == nil {
		return
	}
	track := *e.Track
	manual := e.Manual

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Store.RecordPlay(ctx, track, manual); err != nil {
			s.logger.Warn().Err(err).Str("track", track.ID).Msg("play record failed")
		}
	}()
}