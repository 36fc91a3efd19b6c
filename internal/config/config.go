/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	DBBackend DatabaseBackend
	DBDSN     string

	// Catalog upstream
	CatalogBaseURL  string
	CatalogClientID string
	CatalogTimeout  time.Duration

	// Queue sizing
	QueueTargetSize   int
	QueueLowWaterMark int

	// Playback defaults
	CrossfadeEnabled    bool
	CrossfadeDurationMS int
	InitialVolume       float64

	// Announcer
	AnnouncerTick time.Duration

	// Redis (catalog result cache + external event bridge)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventBridge   bool

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ARIA_ENV", "development"),
		HTTPBind:    getEnv("ARIA_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("ARIA_HTTP_PORT", 8080),
		MetricsBind: getEnv("ARIA_METRICS_BIND", "127.0.0.1:9000"),

		DBBackend: DatabaseBackend(getEnv("ARIA_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("ARIA_DB_DSN", "aria.db"),

		CatalogBaseURL:  getEnv("ARIA_CATALOG_BASE_URL", "https://api.jamendo.com/v3.0"),
		CatalogClientID: getEnv("ARIA_CATALOG_CLIENT_ID", ""),
		CatalogTimeout:  time.Duration(getEnvInt("ARIA_CATALOG_TIMEOUT_SECONDS", 10)) * time.Second,

		QueueTargetSize:   getEnvInt("ARIA_QUEUE_TARGET_SIZE", 20),
		QueueLowWaterMark: getEnvInt("ARIA_QUEUE_LOW_WATER_MARK", 5),

		CrossfadeEnabled:    getEnvBool("ARIA_CROSSFADE_ENABLED", true),
		CrossfadeDurationMS: getEnvInt("ARIA_CROSSFADE_DURATION_MS", 3000),
		InitialVolume:       getEnvFloat("ARIA_INITIAL_VOLUME", 0.7),

		AnnouncerTick: time.Duration(getEnvInt("ARIA_ANNOUNCER_TICK_MS", 1000)) * time.Millisecond,

		RedisAddr:     getEnv("ARIA_REDIS_ADDR", ""),
		RedisPassword: getEnv("ARIA_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("ARIA_REDIS_DB", 0),
		EventBridge:   getEnvBool("ARIA_EVENT_BRIDGE_ENABLED", false),

		TracingEnabled:    getEnvBool("ARIA_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("ARIA_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("ARIA_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("ARIA_DB_DSN must be provided")
	}

	if cfg.QueueTargetSize <= 0 {
		return nil, fmt.Errorf("ARIA_QUEUE_TARGET_SIZE must be positive")
	}

	if cfg.QueueLowWaterMark >= cfg.QueueTargetSize {
		return nil, fmt.Errorf("ARIA_QUEUE_LOW_WATER_MARK must be below ARIA_QUEUE_TARGET_SIZE")
	}

	if cfg.InitialVolume < 0 || cfg.InitialVolume > 1 {
		return nil, fmt.Errorf("ARIA_INITIAL_VOLUME must be within [0,1]")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
