// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package session defines the canonical playback session snapshot and the
// normalizer that produces it from raw Plex session records.
//
// A Snapshot is an immutable value captured at one poll tick. It is never
// mutated after creation; each tick supersedes it with a fresh snapshot for
// the same identity. All downstream components (change detection, selection,
// routing, progress tracking) operate on snapshots, never on raw API types.
package session

import (
	"strings"
	"time"
)

// Status is the normalized playback state of a session.
type Status string

// Normalized playback states. Plex reports "buffering" transiently during
// seeks and stream starts; the normalizer folds it into StatusPlaying.
const (
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// Identity is the stable key for a single playback session, composed of the
// user, the device machine identifier, and the upstream session key.
//
// Upstream session keys may be reused after a session ends, so identity
// equality must not be relied upon across a gap longer than the eviction
// grace period without the user/device components also matching - which is
// why all three participate in the key.
type Identity struct {
	User       string `json:"user"`
	Device     string `json:"device"`
	SessionKey string `json:"session_key"`
}

// Key returns a stable string form of the identity, used as the map key for
// session state and as the deterministic lexical tie-break order.
func (id Identity) Key() string {
	return id.User + "|" + id.Device + "|" + id.SessionKey
}

// Snapshot is a single point-in-time observation of a session's playback
// state. Position and Duration are in milliseconds, matching the Plex API.
type Snapshot struct {
	Identity Identity

	Status Status
	Title  string
	Artist string
	Album  string

	Duration int64 // milliseconds, 0 when unknown
	Position int64 // milliseconds (Plex viewOffset)

	Year        int
	TrackNumber int
	DiscNumber  int
	Bitrate     int // Kbps
	Codec       string
	Thumb       string // absolute artwork URL, empty when unavailable

	CapturedAt time.Time
}

// ProgressPercent returns position/duration as a percentage clamped to
// [0, 100]. A zero or unknown duration yields 0.
func (s *Snapshot) ProgressPercent() float64 {
	if s.Duration <= 0 {
		return 0
	}
	pct := float64(s.Position) / float64(s.Duration) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Remaining returns the milliseconds left to play, clamped to zero.
func (s *Snapshot) Remaining() int64 {
	if rem := s.Duration - s.Position; rem > 0 {
		return rem
	}
	return 0
}

// TrackKey identifies the content being played, independent of playback
// position. Used by the change detector to recognize track changes.
func (s *Snapshot) TrackKey() string {
	return strings.Join([]string{s.Artist, s.Album, s.Title}, "\x1f")
}
