// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package session

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/playcaster/internal/models"
)

// ErrMalformedRecord is returned when a raw upstream session record is
// missing required fields or carries values of the wrong shape. The caller
// skips that one session for the tick and continues with the rest.
var ErrMalformedRecord = errors.New("malformed session record")

// Normalizer converts raw Plex session records into canonical snapshots.
// It is a pure transform; the only configuration it carries is what is
// needed to resolve server-relative artwork paths to absolute URLs.
type Normalizer struct {
	// ThumbBaseURL is the Plex server base URL used to absolutize relative
	// artwork paths. Empty disables resolution (thumb passed through as-is).
	ThumbBaseURL string

	// Token is appended as X-Plex-Token to resolved artwork URLs so they
	// are fetchable by bus consumers. Empty omits the parameter.
	Token string
}

// Normalize produces a Snapshot from one raw session record, capturing it
// at the given time. It fails with ErrMalformedRecord when identity
// components or the playback status are absent or unrecognized.
func (n *Normalizer) Normalize(raw *models.PlexSession, capturedAt time.Time) (Snapshot, error) {
	if raw == nil {
		return Snapshot{}, fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	if raw.SessionKey == "" {
		return Snapshot{}, fmt.Errorf("%w: missing sessionKey", ErrMalformedRecord)
	}
	if raw.User == nil || raw.User.Title == "" {
		return Snapshot{}, fmt.Errorf("%w: session %s has no user", ErrMalformedRecord, raw.SessionKey)
	}
	if raw.Player == nil {
		return Snapshot{}, fmt.Errorf("%w: session %s has no player", ErrMalformedRecord, raw.SessionKey)
	}

	status, err := normalizeStatus(raw.Player.State)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: session %s: %v", ErrMalformedRecord, raw.SessionKey, err)
	}

	device := raw.Player.MachineID
	if device == "" {
		// Older clients omit machineIdentifier; the friendly name is the
		// next most stable thing we have.
		device = raw.Player.Title
	}
	if device == "" {
		return Snapshot{}, fmt.Errorf("%w: session %s has no device identity", ErrMalformedRecord, raw.SessionKey)
	}

	snap := Snapshot{
		Identity: Identity{
			User:       raw.User.Title,
			Device:     device,
			SessionKey: raw.SessionKey,
		},
		Status:      status,
		Title:       raw.Title,
		Artist:      raw.GrandparentTitle,
		Album:       raw.ParentTitle,
		Duration:    raw.Duration,
		Position:    raw.ViewOffset,
		Year:        raw.Year,
		TrackNumber: raw.Index,
		DiscNumber:  raw.ParentIndex,
		Thumb:       n.resolveThumb(raw),
		CapturedAt:  capturedAt,
	}

	if len(raw.Media) > 0 {
		snap.Bitrate = raw.Media[0].Bitrate
		snap.Codec = raw.Media[0].AudioCodec
	}

	if snap.Position < 0 {
		snap.Position = 0
	}
	if snap.Duration < 0 {
		snap.Duration = 0
	}

	return snap, nil
}

// normalizeStatus maps a Plex player state onto the closed Status set.
func normalizeStatus(state string) (Status, error) {
	switch strings.ToLower(state) {
	case "playing", "buffering":
		return StatusPlaying, nil
	case "paused":
		return StatusPaused, nil
	case "stopped":
		return StatusStopped, nil
	default:
		return "", fmt.Errorf("unrecognized player state %q", state)
	}
}

// resolveThumb absolutizes the session's artwork reference. Plex returns
// server-relative paths like /library/metadata/123/thumb/456; consumers on
// the bus need a fetchable URL.
func (n *Normalizer) resolveThumb(raw *models.PlexSession) string {
	thumb := raw.Thumb
	if thumb == "" {
		thumb = raw.Art
	}
	if thumb == "" {
		return ""
	}
	if !strings.HasPrefix(thumb, "/") || n.ThumbBaseURL == "" {
		return thumb
	}

	resolved := strings.TrimSuffix(n.ThumbBaseURL, "/") + thumb
	if n.Token != "" {
		resolved += "?X-Plex-Token=" + url.QueryEscape(n.Token)
	}
	return resolved
}
