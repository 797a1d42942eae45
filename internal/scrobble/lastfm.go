// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package scrobble submits finished tracks to Last.fm. Deduplication is
// the completion tracker's job; this package only signs and ships what
// it is handed.
package scrobble

import (
	"context"
	"crypto/md5" //nolint:gosec // Last.fm API signatures require MD5
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/playcaster/internal/logging"
	"github.com/tomtom215/playcaster/internal/session"
)

const defaultAPIURL = "https://ws.audioscrobbler.com/2.0/"

// Config holds Last.fm API credentials. Username and Password are the
// account being scrobbled to; the session key is negotiated at startup
// via auth.getMobileSession.
type Config struct {
	APIKey    string
	APISecret string
	Username  string
	Password  string

	// APIURL overrides the Last.fm endpoint, used by tests.
	APIURL string
}

// Client is an authenticated Last.fm scrobbler.
type Client struct {
	apiKey     string
	apiSecret  string
	apiURL     string
	sessionKey string
	httpClient *http.Client
}

type apiResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Session struct {
		Key string `json:"key"`
	} `json:"session"`
}

// NewClient authenticates against Last.fm and returns a ready scrobbler.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	resp, err := c.call(ctx, map[string]string{
		"method":   "auth.getMobileSession",
		"username": cfg.Username,
		"password": cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("lastfm auth: %w", err)
	}
	if resp.Session.Key == "" {
		return nil, fmt.Errorf("lastfm auth: empty session key")
	}
	c.sessionKey = resp.Session.Key

	logging.Info().Str("user", cfg.Username).Msg("Last.fm authenticated")
	return c, nil
}

// Scrobble submits a finished track. The timestamp is when playback
// started, per the Last.fm API contract, approximated as firedAt minus
// the track duration.
func (c *Client) Scrobble(ctx context.Context, snap session.Snapshot, firedAt time.Time) error {
	if snap.Artist == "" || snap.Title == "" {
		return fmt.Errorf("lastfm scrobble: artist and title are required")
	}

	startedAt := firedAt.Add(-time.Duration(snap.Duration) * time.Millisecond)
	params := map[string]string{
		"method":    "track.scrobble",
		"sk":        c.sessionKey,
		"artist":    snap.Artist,
		"track":     snap.Title,
		"timestamp": strconv.FormatInt(startedAt.Unix(), 10),
	}
	if snap.Album != "" {
		params["album"] = snap.Album
	}
	if snap.Duration > 0 {
		params["duration"] = strconv.FormatInt(snap.Duration/1000, 10)
	}
	if snap.TrackNumber > 0 {
		params["trackNumber"] = strconv.Itoa(snap.TrackNumber)
	}

	if _, err := c.call(ctx, params); err != nil {
		return fmt.Errorf("lastfm scrobble %q by %q: %w", snap.Title, snap.Artist, err)
	}

	logging.Debug().
		Str("artist", snap.Artist).
		Str("track", snap.Title).
		Msg("Scrobbled to Last.fm")
	return nil
}

// call signs params with the API secret and POSTs them. The signature
// is the MD5 of sorted key+value pairs concatenated with the secret,
// excluding the format parameter.
func (c *Client) call(ctx context.Context, params map[string]string) (*apiResponse, error) {
	params["api_key"] = c.apiKey
	params["api_sig"] = c.sign(params)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != 0 {
		return nil, fmt.Errorf("api error %d: %s", parsed.Error, parsed.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return &parsed, nil
}

func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	b.WriteString(c.apiSecret)

	sum := md5.Sum([]byte(b.String())) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
