// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package plex implements the upstream session source: an authenticated
// HTTP client for the Plex Media Server API, plus a circuit breaker wrapper
// for fault tolerance when the server is unavailable or slow.
package plex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/playcaster/internal/logging"
	"github.com/tomtom215/playcaster/internal/models"
)

// ErrUnavailable is returned when the Plex server cannot be reached or
// rejects the request. The dispatch loop abandons the tick and retries on
// the next cycle; this error is never fatal.
var ErrUnavailable = errors.New("plex server unavailable")

// Config holds client connection settings.
type Config struct {
	// URL is the Plex server base URL, e.g. http://localhost:32400.
	URL string

	// Token is the X-Plex-Token used on every request.
	Token string

	// Timeout bounds each HTTP request. Default: 10s.
	Timeout time.Duration

	// RateLimitRPS caps outbound requests per second. Zero disables
	// client-side limiting.
	RateLimitRPS float64
}

// Client handles communication with the Plex Media Server API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates an authenticated Plex API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &Client{
		baseURL:    cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// Ping verifies connectivity and authentication.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSONRequest(ctx, "/identity", nil)
}

// ListSessions retrieves the currently active playback sessions.
//
// Endpoint: GET /status/sessions. An empty Metadata array means no active
// sessions, which is a normal result, not an error.
func (c *Client) ListSessions(ctx context.Context) ([]models.PlexSession, error) {
	var resp models.PlexSessionsResponse
	if err := c.doJSONRequest(ctx, "/status/sessions", &resp); err != nil {
		return nil, err
	}
	if resp.MediaContainer.Metadata == nil {
		return []models.PlexSession{}, nil
	}
	return resp.MediaContainer.Metadata, nil
}

// doJSONRequest executes an authenticated GET and decodes the JSON
// response into result when non-nil. All failure modes wrap
// ErrUnavailable so callers can treat them uniformly as a transient
// upstream failure.
func (c *Client) doJSONRequest(ctx context.Context, path string, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRateLimit(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d %s", ErrUnavailable, resp.StatusCode, resp.Status)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
	}

	return nil
}

// doRequestWithRateLimit executes the request, retrying on HTTP 429 with
// exponential backoff and honoring Retry-After (RFC 6585).
func (c *Client) doRequestWithRateLimit(req *http.Request) (*http.Response, error) {
	const maxRetries = 3
	baseDelay := 1 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		resp.Body.Close()

		if attempt == maxRetries {
			return nil, fmt.Errorf("rate limit exceeded after %d retries", maxRetries)
		}

		retryDelay := baseDelay * (1 << attempt)
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				retryDelay = seconds
			}
		}

		logging.Warn().
			Dur("retry_delay", retryDelay).
			Int("attempt", attempt+1).
			Msg("Plex API rate limited (HTTP 429), retrying")

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("unreachable: retry loop must return")
}
