/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog fetches externally hosted track metadata and stream URLs
// with strategy rotation, response validation and a static fallback set.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ariacast/aria_radio/internal/cache"
	"github.com/ariacast/aria_radio/internal/media"
	"github.com/ariacast/aria_radio/internal/telemetry"
)

// ErrAllStrategiesFailed indicates no strategy produced valid tracks.
// It stays internal to the adapter; Fetch converts it into fallback content.
var ErrAllStrategiesFailed = errors.New("all catalog search strategies failed")

// Config contains catalog client configuration.
type Config struct {
	BaseURL  string
	ClientID string
	Timeout  time.Duration
}

// Client is the catalog source adapter.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      cache.TrackCache
	logger     zerolog.Logger

	mu    sync.Mutex
	state RotationState
}

// New creates a catalog client.
func New(cfg Config, trackCache cache.TrackCache, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if trackCache == nil {
		trackCache = cache.NewMemory()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      trackCache,
		logger:     logger.With().Str("component", "catalog").Logger(),
	}
}

// envelope is the upstream JSON response shape.
type envelope struct {
	Headers struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	} `json:"headers"`
	Results []record `json:"results"`
}

type record struct {
	ID         json.Number `json:"id"`
	Name       string      `json:"name"`
	ArtistName string      `json:"artist_name"`
	Duration   json.Number `json:"duration"`
	Audio      string      `json:"audio"`
	AlbumImage string      `json:"album_image"`
	Image      string      `json:"image"`
	MusicInfo  struct {
		Tags struct {
			Genres []string `json:"genres"`
		} `json:"tags"`
	} `json:"musicinfo"`
}

// Fetch returns up to count catalog tracks. It never returns an error: when
// every strategy is exhausted it serves the built-in fallback set instead.
func (c *Client) Fetch(ctx context.Context, count int) []media.Track {
	if count <= 0 {
		return nil
	}

	tracks, err := c.fetchRotating(ctx, count)
	if err != nil {
		c.logger.Warn().Err(err).Msg("catalog exhausted, serving fallback tracks")
		telemetry.CatalogFallbacksTotal.Inc()
		return FallbackTracks(count)
	}
	return tracks
}

// fetchRotating attempts each strategy at most once, advancing the rotation
// on empty or malformed responses.
func (c *Client) fetchRotating(ctx context.Context, count int) ([]media.Track, error) {
	for attempt := 0; attempt < len(Strategies); attempt++ {
		c.mu.Lock()
		strategy, page, next := NextAttempt(c.state)
		c.state = next
		strategyIdx := c.state.StrategyIndex
		c.mu.Unlock()

		key := cache.Key(count, page, strategyIdx)
		if cached, ok := c.cache.Get(ctx, key); ok {
			c.logger.Debug().
				Int("strategy", strategyIdx).
				Int("page", page).
				Msg("serving cached catalog tracks")
			telemetry.CatalogFetchesTotal.WithLabelValues(strconv.Itoa(strategyIdx), "cache_hit").Inc()
			return cached, nil
		}

		tracks, err := c.fetchStrategy(ctx, strategy, count, page)
		if err != nil || len(tracks) == 0 {
			if err != nil {
				c.logger.Warn().Err(err).Int("strategy", strategyIdx).Msg("catalog strategy failed")
			} else {
				c.logger.Debug().Int("strategy", strategyIdx).Msg("catalog strategy returned no valid tracks")
			}
			telemetry.CatalogFetchesTotal.WithLabelValues(strconv.Itoa(strategyIdx), "miss").Inc()

			c.mu.Lock()
			c.state = AdvanceStrategy(c.state)
			c.mu.Unlock()
			continue
		}

		c.cache.Set(ctx, key, tracks)
		telemetry.CatalogFetchesTotal.WithLabelValues(strconv.Itoa(strategyIdx), "success").Inc()
		return tracks, nil
	}

	return nil, ErrAllStrategiesFailed
}

func (c *Client) fetchStrategy(ctx context.Context, strategy Strategy, count, page int) ([]media.Track, error) {
	reqURL, err := c.buildURL(strategy, count, page)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog responded %s", resp.Status)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	if env.Headers.Status != "success" {
		return nil, fmt.Errorf("catalog error: %s", env.Headers.ErrorMessage)
	}

	tracks := make([]media.Track, 0, len(env.Results))
	for _, rec := range env.Results {
		track, ok := c.convert(rec)
		if !ok {
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (c *Client) buildURL(strategy Strategy, count, page int) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL + "/tracks/")
	if err != nil {
		return "", fmt.Errorf("parse catalog base url: %w", err)
	}

	q := base.Query()
	q.Set("client_id", c.cfg.ClientID)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(count))
	q.Set("offset", strconv.Itoa((page-1)*count))
	q.Set("order", strategy.Order)
	q.Set("include", "musicinfo")
	q.Set("audioformat", "mp32")
	if strategy.Tags != "" {
		q.Set("tags", strategy.Tags)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// convert validates and maps one upstream record. Invalid records are
// dropped, not surfaced.
func (c *Client) convert(rec record) (media.Track, bool) {
	if rec.Name == "" || rec.ArtistName == "" || !validAudioURL(rec.Audio) {
		return media.Track{}, false
	}

	duration := 180
	if d, err := rec.Duration.Int64(); err == nil && d > 0 {
		duration = int(d)
	}

	artwork := rec.AlbumImage
	if artwork == "" {
		artwork = rec.Image
	}

	genre := "Unknown"
	if len(rec.MusicInfo.Tags.Genres) > 0 {
		genre = rec.MusicInfo.Tags.Genres[0]
	}

	return media.Track{
		ID:          "catalog_" + rec.ID.String(),
		Title:       rec.Name,
		Artist:      rec.ArtistName,
		Duration:    duration,
		Genre:       genre,
		Artwork:     artwork,
		Origin:      media.OriginCatalog,
		AudioURL:    rec.Audio,
		Source:      "jamendo",
		License:     "Creative Commons",
		Attribution: fmt.Sprintf("%q by %s from Jamendo", rec.Name, rec.ArtistName),
	}, true
}

// ResetRotation clears the strategy and page cursors.
func (c *Client) ResetRotation() {
	c.mu.Lock()
	c.state = RotationState{}
	c.mu.Unlock()
}
