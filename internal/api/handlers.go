// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package api serves the read-only status surface: health probes,
// dispatcher statistics, the live session list and the websocket
// endpoint. It never mutates bridge state.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/playcaster/internal/bridge"
	"github.com/tomtom215/playcaster/internal/config"
	"github.com/tomtom215/playcaster/internal/logging"
	"github.com/tomtom215/playcaster/internal/session"
	"github.com/tomtom215/playcaster/internal/websocket"
)

// Bridge is the dispatcher surface the handlers read from.
type Bridge interface {
	Stats() bridge.Stats
	CurrentSessions() []session.Snapshot
}

// BreakerStatus reports the upstream circuit breaker state.
type BreakerStatus interface {
	State() string
}

// Handler holds the read-only collaborators for all endpoints.
type Handler struct {
	bridge  Bridge
	cfg     *config.Config
	breaker BreakerStatus // nil when the source is not breaker-wrapped
	hub     *websocket.Hub
}

// NewHandler wires the API handlers.
func NewHandler(b Bridge, cfg *config.Config, breaker BreakerStatus, hub *websocket.Hub) *Handler {
	return &Handler{bridge: b, cfg: cfg, breaker: breaker, hub: hub}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Response encode failed")
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the dispatcher must have completed a
// tick within two poll intervals.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	stats := h.bridge.Stats()
	staleAfter := 2 * h.cfg.Plex.PollInterval
	if stats.Ticks == 0 || time.Since(stats.LastTickAt) > staleAfter {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":       "not_ready",
			"ticks":        stats.Ticks,
			"last_tick_at": stats.LastTickAt,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Health reports overall health including the upstream breaker.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	stats := h.bridge.Stats()
	resp := map[string]interface{}{
		"status":     "ok",
		"started_at": stats.StartedAt,
		"uptime":     time.Since(stats.StartedAt).Round(time.Second).String(),
		"last_error": stats.LastError,
	}
	if h.breaker != nil {
		resp["plex_breaker"] = h.breaker.State()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Status returns the dispatcher counters.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]interface{}{
		"stats": h.bridge.Stats(),
	}
	if h.hub != nil {
		resp["websocket_clients"] = h.hub.ClientCount()
	}
	if h.breaker != nil {
		resp["plex_breaker"] = h.breaker.State()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sessions returns the full payload for every tracked session.
func (h *Handler) Sessions(w http.ResponseWriter, _ *http.Request) {
	snaps := h.bridge.CurrentSessions()
	payloads := make([]session.Payload, 0, len(snaps))
	for i := range snaps {
		payloads = append(payloads, session.BuildPayload(&snaps[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_sessions": len(payloads),
		"sessions":        payloads,
	})
}

// UsersDevices returns who is playing on what, for topic debugging.
func (h *Handler) UsersDevices(w http.ResponseWriter, _ *http.Request) {
	snaps := h.bridge.CurrentSessions()
	byUser := make(map[string][]string)
	for i := range snaps {
		id := snaps[i].Identity
		devices := byUser[id.User]
		seen := false
		for _, d := range devices {
			if d == id.Device {
				seen = true
				break
			}
		}
		if !seen {
			byUser[id.User] = append(devices, id.Device)
		}
	}
	writeJSON(w, http.StatusOK, byUser)
}

// redactedConfig is the externally visible configuration. Credentials
// never appear here.
type redactedConfig struct {
	PlexURL         string   `json:"plex_url"`
	PollInterval    string   `json:"poll_interval"`
	SelectionPolicy string   `json:"selection_policy"`
	PriorityUser    string   `json:"priority_user,omitempty"`
	AllowedUsers    []string `json:"allowed_users,omitempty"`
	TopicStrategy   string   `json:"topic_strategy"`
	BaseTopic       string   `json:"base_topic"`
	MQTTEnabled     bool     `json:"mqtt_enabled"`
	NATSEnabled     bool     `json:"nats_enabled"`
	ScrobbleEnabled bool     `json:"scrobble_enabled"`
}

// Config returns the redacted runtime configuration.
func (h *Handler) Config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, redactedConfig{
		PlexURL:         h.cfg.Plex.URL,
		PollInterval:    h.cfg.Plex.PollInterval.String(),
		SelectionPolicy: h.cfg.Bridge.SelectionPolicy,
		PriorityUser:    h.cfg.Bridge.PriorityUser,
		AllowedUsers:    h.cfg.Bridge.AllowedUsers,
		TopicStrategy:   h.cfg.Bridge.TopicStrategy,
		BaseTopic:       h.cfg.Bridge.BaseTopic,
		MQTTEnabled:     h.cfg.MQTT.Enabled,
		NATSEnabled:     h.cfg.NATS.Enabled,
		ScrobbleEnabled: h.cfg.Scrobble.Enabled,
	})
}

// WebSocket upgrades to the live update stream.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "websocket disabled", http.StatusNotFound)
		return
	}
	websocket.ServeWS(h.hub, w, r)
}
