// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package metrics provides Prometheus instrumentation for the bridge:
// poll cycle timing, publish throughput per classification, completion
// events, and the live session gauge. Collectors are registered via
// promauto and exposed on the status API's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll cycle metrics
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playcaster_poll_duration_seconds",
			Help:    "Duration of one poll-reconcile-publish cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playcaster_poll_errors_total",
			Help: "Total abandoned ticks by error kind",
		},
		[]string{"kind"}, // "upstream", "malformed"
	)

	// Session state metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playcaster_active_sessions",
			Help: "Sessions observed in the most recent poll",
		},
	)

	TrackedIdentities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playcaster_tracked_identities",
			Help: "Identities currently held in session state (including grace period)",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playcaster_sessions_evicted_total",
			Help: "Identities evicted after the absence grace period",
		},
	)

	// Publish metrics
	Publishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playcaster_publishes_total",
			Help: "Messages handed to the publish sink by payload kind",
		},
		[]string{"kind"}, // "session", "summary", "stopped"
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playcaster_publish_errors_total",
			Help: "Failed publish calls by payload kind",
		},
		[]string{"kind"},
	)

	UpdatesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playcaster_updates_suppressed_total",
			Help: "Snapshot updates classified NoOp and not published",
		},
	)

	// Completion metrics
	CompletionEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playcaster_completion_events_total",
			Help: "Completion events fired (at most once per session identity)",
		},
	)

	ScrobbleErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playcaster_scrobble_errors_total",
			Help: "Failed completion sink calls",
		},
	)
)

// ObservePoll records one full cycle duration.
func ObservePoll(start time.Time) {
	PollDuration.Observe(time.Since(start).Seconds())
}

// RecordPublish increments the publish counter for a payload kind.
func RecordPublish(kind string) {
	Publishes.WithLabelValues(kind).Inc()
}

// RecordPublishError increments the publish error counter for a payload kind.
func RecordPublishError(kind string) {
	PublishErrors.WithLabelValues(kind).Inc()
}
