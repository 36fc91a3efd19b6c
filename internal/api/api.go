/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP contract the rendering layer consumes:
// playback control, queue/history reads, announcer control and an SSE
// stream of bus events.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariacast/aria_radio/internal/announcer"
	"github.com/ariacast/aria_radio/internal/events"
	"github.com/ariacast/aria_radio/internal/playback"
	"github.com/ariacast/aria_radio/internal/store"
)

// API exposes HTTP handlers over the station's subsystems.
type API struct {
	engine    *playback.Engine
	announcer *announcer.Announcer
	bus       *events.Bus
	store     *store.Service
	userID    string
	logger    zerolog.Logger
}

// New creates the API wrapper. userID scopes preference and subscription
// records for this station session.
func New(engine *playback.Engine, ann *announcer.Announcer, bus *events.Bus, svc *store.Service, userID string, logger zerolog.Logger) *API {
	return &API{
		engine:    engine,
		announcer: ann,
		bus:       bus,
		store:     svc,
		userID:    userID,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all endpoints on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/now-playing", a.handleNowPlaying)
		r.Get("/queue", a.handleQueue)
		r.Get("/history", a.handleHistory)
		r.Get("/plays", a.handleRecentPlays)
		r.Get("/events", a.handleEvents)

		r.Route("/playback", func(r chi.Router) {
			r.Post("/play", a.handlePlay)
			r.Post("/pause", a.handlePause)
			r.Post("/toggle", a.handleToggle)
			r.Post("/next", a.handleNext)
			r.Post("/previous", a.handlePrevious)
			r.Post("/skip", a.handleSkip)
			r.Post("/volume", a.handleVolume)
			r.Post("/crossfade", a.handleCrossfade)
		})

		r.Route("/announcer", func(r chi.Router) {
			r.Get("/", a.handleAnnouncerStatus)
			r.Post("/toggle", a.handleAnnouncerToggle)
			r.Post("/announce", a.handleAnnounce)
		})

		r.Route("/library", func(r chi.Router) {
			r.Get("/", a.handleLibraryList)
			r.Post("/", a.handleLibraryAdd)
		})

		r.Get("/preferences", a.handlePreferencesGet)
		r.Put("/preferences", a.handlePreferencesPut)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.bus.Snapshot())
}

func (a *API) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.Queue())
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.engine.State().History)
}

func (a *API) handleRecentPlays(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	plays, err := a.store.RecentPlays(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, plays)
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Play(); err != nil {
		if errors.Is(err, playback.ErrNoCurrentTrack) {
			writeError(w, http.StatusConflict, "no_current_track")
			return
		}
		writeError(w, http.StatusInternalServerError, "transport_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"playing": true})
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	a.engine.Pause()
	writeJSON(w, http.StatusOK, map[string]bool{"playing": false})
}

func (a *API) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Toggle(); err != nil && !errors.Is(err, playback.ErrNoCurrentTrack) {
		writeError(w, http.StatusInternalServerError, "transport_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"playing": a.engine.State().Playing})
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	a.engine.Advance(true)
	writeJSON(w, http.StatusOK, a.bus.Snapshot())
}

func (a *API) handlePrevious(w http.ResponseWriter, r *http.Request) {
	a.engine.Previous()
	writeJSON(w, http.StatusOK, a.bus.Snapshot())
}

func (a *API) handleSkip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	// Out-of-bounds indexes are silently ignored by the engine.
	a.engine.SkipTo(req.Index)
	writeJSON(w, http.StatusOK, a.bus.Snapshot())
}

func (a *API) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	a.engine.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, map[string]float64{"volume": a.engine.Volume()})
}

func (a *API) handleCrossfade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled    bool `json:"enabled"`
		DurationMS int  `json:"duration_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	a.engine.SetCrossfade(req.Enabled, req.DurationMS)
	cfg := a.engine.State().Crossfade
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":     cfg.Enabled,
		"duration_ms": cfg.DurationMS,
	})
}

func (a *API) handleAnnouncerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.announcer.Status())
}

func (a *API) handleAnnouncerToggle(w http.ResponseWriter, r *http.Request) {
	active := a.announcer.Toggle()

	prefs, err := a.store.GetPreferences(r.Context(), a.userID)
	if err == nil {
		prefs.Enabled = active
		if err := a.store.SavePreferences(r.Context(), prefs); err != nil {
			a.logger.Warn().Err(err).Msg("failed to persist announcer toggle")
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (a *API) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text_required")
		return
	}
	if !a.announcer.Active() {
		writeError(w, http.StatusConflict, "announcer_inactive")
		return
	}
	a.announcer.Announce(req.Text)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (a *API) handleLibraryList(w http.ResponseWriter, r *http.Request) {
	tracks, err := a.store.OwnedTracks(r.Context(), a.userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) handleLibraryAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title         string `json:"title"`
		Artist        string `json:"artist"`
		Genre         string `json:"genre"`
		Duration      int    `json:"duration"`
		FileURL       string `json:"file_url"`
		Artwork       string `json:"artwork"`
		PriorityLevel int    `json:"priority_level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Title == "" || req.FileURL == "" {
		writeError(w, http.StatusBadRequest, "title_and_file_url_required")
		return
	}

	entry, err := a.store.AddOwnedTrack(r.Context(), store.OwnedTrack{
		UserID:        a.userID,
		Title:         req.Title,
		Artist:        req.Artist,
		Genre:         req.Genre,
		Duration:      req.Duration,
		FileURL:       req.FileURL,
		Artwork:       req.Artwork,
		PriorityLevel: req.PriorityLevel,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// preferencesPayload is the wire shape for announcer preferences.
type preferencesPayload struct {
	Enabled     bool   `json:"enabled"`
	Frequency   string `json:"frequency"`
	Personality string `json:"personality"`
	Voice       string `json:"voice"`
	Intros      bool   `json:"intros"`
	Outros      bool   `json:"outros"`
}

func (a *API) handlePreferencesGet(w http.ResponseWriter, r *http.Request) {
	prefs, err := a.store.GetPreferences(r.Context(), a.userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, preferencesPayload{
		Enabled:     prefs.Enabled,
		Frequency:   prefs.Frequency,
		Personality: prefs.Personality,
		Voice:       prefs.Voice,
		Intros:      prefs.Intros,
		Outros:      prefs.Outros,
	})
}

func (a *API) handlePreferencesPut(w http.ResponseWriter, r *http.Request) {
	var req preferencesPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	prefs, err := a.store.GetPreferences(r.Context(), a.userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	prefs.Enabled = req.Enabled
	prefs.Frequency = req.Frequency
	prefs.Personality = req.Personality
	prefs.Voice = req.Voice
	prefs.Intros = req.Intros
	prefs.Outros = req.Outros
	if err := a.store.SavePreferences(r.Context(), prefs); err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.announcer.SetPreferences(announcer.Frequency(req.Frequency), req.Personality, req.Voice)
	a.announcer.SetContentToggles(req.Intros, req.Outros)
	if req.Enabled != a.announcer.Active() {
		a.announcer.Toggle()
	}

	writeJSON(w, http.StatusOK, req)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}