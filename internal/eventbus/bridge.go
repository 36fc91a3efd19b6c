/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus fans playback events out to Redis pub/sub so
// out-of-process UI consumers can follow the session. The in-process bus in
// internal/events stays the source of truth; this bridge is optional and
// degrades to a no-op when Redis is unavailable.
package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ariacast/aria_radio/internal/events"
)

const (
	// Channel is the Redis pub/sub channel bridged events land on.
	Channel = "aria:events"

	subscriberID = "redis-bridge"
)

// Config contains Redis connection and circuit breaker settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxFailures is how many publish errors disable the bridge.
	MaxFailures int
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	return c
}

// Bridge relays in-process bus events onto a Redis channel. Publish
// failures trip a circuit breaker that silences the bridge rather than ever
// slowing playback down.
type Bridge struct {
	client *redis.Client
	bus    *events.Bus
	logger zerolog.Logger

	mu        sync.Mutex
	disabled  bool
	failCount int
	maxFails  int
}

// NewBridge connects to Redis and subscribes to the bus. When Redis is
// unreachable the bridge is created disabled and playback proceeds without
// external fan-out.
func NewBridge(cfg Config, bus *events.Bus, logger zerolog.Logger) *Bridge {
	cfg = cfg.withDefaults()

	b := &Bridge{
		bus:      bus,
		logger:   logger.With().Str("component", "eventbridge").Logger(),
		maxFails: cfg.MaxFailures,
	}

	if cfg.Addr == "" {
		b.disabled = true
		return b
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		b.logger.Warn().Err(err).Msg("redis unreachable, event bridge disabled")
		b.disabled = true
		return b
	}

	b.client = client
	bus.Subscribe(subscriberID, b.relay)
	b.logger.Info().Str("channel", Channel).Msg("event bridge connected")
	return b
}

// Enabled reports whether events are being relayed.
func (b *Bridge) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.disabled
}

// Close unsubscribes from the bus and closes the Redis client.
func (b *Bridge) Close() {
	b.bus.Unsubscribe(subscriberID)
	if b.client != nil {
		if err := b.client.Close(); err != nil {
			b.logger.Warn().Err(err).Msg("redis close failed")
		}
	}
}

// relay runs on the bus delivery path, so it must never block playback:
// publish uses a short timeout and errors only count toward the breaker.
func (b *Bridge) relay(event events.Event) {
	b.mu.Lock()
	if b.disabled {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Str("event", string(event.Type)).Msg("event marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := b.client.Publish(ctx, Channel, payload).Err(); err != nil {
		b.handleError(err)
		return
	}

	b.mu.Lock()
	b.failCount = 0
	b.mu.Unlock()
}

func (b *Bridge) handleError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failCount++
	if b.failCount >= b.maxFails && !b.disabled {
		b.disabled = true
		b.logger.Warn().Err(err).Int("failures", b.failCount).Msg("event bridge disabled after repeated errors")
		return
	}
	b.logger.Debug().Err(err).Msg("event publish failed")
}