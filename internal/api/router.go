// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/playcaster/internal/config"
)

// NewRouter assembles the HTTP surface. CORS is global so preflight
// OPTIONS requests succeed; rate limiting applies per client IP to the
// API routes but not to health probes or the websocket.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
		r.Get("/", h.Health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, window))
		}

		r.Get("/status", h.Status)
		r.Get("/sessions", h.Sessions)
		r.Get("/users-devices", h.UsersDevices)
		r.Get("/config", h.Config)
	})

	r.Get("/api/v1/ws", h.WebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
