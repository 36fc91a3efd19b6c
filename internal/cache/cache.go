/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides the catalog result cache: Redis-backed when
// configured, with an in-memory fallback so the adapter's caching contract
// holds without infrastructure.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ariacast/aria_radio/internal/media"
)

// DefaultTrackTTL bounds how long catalog results are reused.
const DefaultTrackTTL = 30 * time.Minute

const keyPrefix = "aria:cache:catalog:"

// TrackCache stores catalog fetch results keyed by fetch parameters.
type TrackCache interface {
	Get(ctx context.Context, key string) ([]media.Track, bool)
	Set(ctx context.Context, key string, tracks []media.Track)
}

// Key builds the cache key for a fetch parameter tuple.
func Key(count, page, strategy int) string {
	return fmt.Sprintf("%d_%d_%d", count, page, strategy)
}

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TrackTTL      time.Duration

	// If true, disable caching after a Redis error instead of retrying.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		TrackTTL:       DefaultTrackTTL,
		DisableOnError: true,
	}
}

// RedisCache is a Redis-backed TrackCache with graceful fallback.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// NewRedis creates a Redis-backed cache. If Redis is unreachable the cache
// starts disabled: lookups miss and stores are dropped, never failing a fetch.
func NewRedis(cfg Config, logger zerolog.Logger) *RedisCache {
	if cfg.TrackTTL <= 0 {
		cfg.TrackTTL = DefaultTrackTTL
	}

	c := &RedisCache{
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		c.disabled = true
		return c
	}

	c.client = client
	c.logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return c
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *RedisCache) available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *RedisCache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// Get retrieves cached tracks for the key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]media.Track, bool) {
	if !c.available() {
		return nil, false
	}

	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.handleError(err, "get")
		return nil, false
	}

	var tracks []media.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached tracks")
		return nil, false
	}
	if len(tracks) == 0 {
		return nil, false
	}
	return tracks, true
}

// Set stores tracks under the key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, tracks []media.Track) {
	if !c.available() || len(tracks) == 0 {
		return
	}

	data, err := json.Marshal(tracks)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to marshal tracks")
		return
	}

	if err := c.client.Set(ctx, keyPrefix+key, data, c.config.TrackTTL).Err(); err != nil {
		c.handleError(err, "set")
	}
}

// MemoryCache is an in-process TrackCache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]media.Track
}

// NewMemory creates an in-memory cache.
func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]media.Track)}
}

// Get retrieves cached tracks for the key.
func (m *MemoryCache) Get(_ context.Context, key string) ([]media.Track, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tracks, ok := m.entries[key]
	if !ok || len(tracks) == 0 {
		return nil, false
	}
	return tracks, true
}

// Set stores tracks under the key.
func (m *MemoryCache) Set(_ context.Context, key string, tracks []media.Track) {
	if len(tracks) == 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = tracks
	m.mu.Unlock()
}

// Clear drops all entries.
func (m *MemoryCache) Clear() {
	m.mu.Lock()
	m.entries = make(map[string][]media.Track)
	m.mu.Unlock()
}
