// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package plex

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/playcaster/internal/logging"
	"github.com/tomtom215/playcaster/internal/models"
)

// BreakerClient wraps a Client with a circuit breaker so a dead or
// misbehaving Plex server fails fast instead of holding the dispatch
// loop at its HTTP timeout on every tick.
type BreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker[[]models.PlexSession]
}

// NewBreakerClient creates a circuit-breaker-protected session source.
//
// The breaker opens when at least 10 requests in the rolling interval have
// a failure ratio of 60% or higher, and probes again after 30 seconds.
func NewBreakerClient(client *Client) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        "plex-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &BreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[[]models.PlexSession](settings),
	}
}

// ListSessions fetches active sessions through the breaker. When the
// breaker is open the call returns immediately with ErrUnavailable.
func (b *BreakerClient) ListSessions(ctx context.Context) ([]models.PlexSession, error) {
	sessions, err := b.breaker.Execute(func() ([]models.PlexSession, error) {
		return b.client.ListSessions(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("%w: circuit breaker open", ErrUnavailable)
	}
	return sessions, err
}

// Ping bypasses the breaker; it is used for startup connectivity checks
// where an immediate real probe is wanted.
func (b *BreakerClient) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

// State reports the current breaker state for the status API.
func (b *BreakerClient) State() string {
	return b.breaker.State().String()
}
