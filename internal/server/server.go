/*
Copyright (C) 2026 Ariacast

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the station, database and HTTP surface together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/ariacast/aria_radio/internal/api"
	"github.com/ariacast/aria_radio/internal/config"
	"github.com/ariacast/aria_radio/internal/db"
	"github.com/ariacast/aria_radio/internal/station"
	"github.com/ariacast/aria_radio/internal/telemetry"
)

// Server bundles the HTTP API, metrics endpoint and the station session.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	database      *gorm.DB
	station       *station.Station
	httpServer    *http.Server
	metricsServer *http.Server
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	st := station.New(cfg, database, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)
	// The SSE event stream is long-lived, so no blanket request timeout.

	apiHandler := api.New(st.Engine, st.Announcer, st.Bus, st.Store, station.DefaultUserID, logger)
	apiHandler.Routes(router)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.Handler())

	return &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "server").Logger(),
		database: database,
		station:  st,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
			Handler:           otelhttp.NewHandler(router, "ariaradio-api"),
			ReadHeaderTimeout: 10 * time.Second,
		},
		metricsServer: &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start boots the station and begins serving. It blocks until the HTTP
// listener stops.
func (s *Server) Start(ctx context.Context) error {
	s.station.Start(ctx, nil)

	go func() {
		s.logger.Info().Str("addr", s.metricsServer.Addr).Msg("metrics server listening")
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listeners and tears the station down.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("http shutdown failed")
	}
	if err := s.metricsServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("metrics shutdown failed")
	}

	s.station.Close()

	if err := db.Close(s.database); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}