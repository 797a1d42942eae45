// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package session

import (
	"time"

	"github.com/goccy/go-json"
)

// Payload is the per-session JSON object published to the bus for every
// significant or heartbeat update.
type Payload struct {
	Status             string  `json:"status"`
	Title              string  `json:"title"`
	Artist             string  `json:"artist"`
	Album              string  `json:"album"`
	Thumb              string  `json:"thumb"`
	Duration           int64   `json:"duration"`   // milliseconds
	ViewOffset         int64   `json:"viewOffset"` // milliseconds
	ProgressPercent    float64 `json:"progress_percent"`
	DurationFormatted  string  `json:"duration_formatted"`
	PositionFormatted  string  `json:"position_formatted"`
	RemainingFormatted string  `json:"remaining_formatted"`
	User               string  `json:"user"`
	Timestamp          string  `json:"timestamp"` // ISO-8601 UTC
	Year               int     `json:"year,omitempty"`
	TrackNumber        int     `json:"track_number,omitempty"`
	DiscNumber         int     `json:"disc_number,omitempty"`
	Bitrate            int     `json:"bitrate,omitempty"`
	Codec              string  `json:"codec,omitempty"`
	SessionKey         string  `json:"session_key"`
}

// BuildPayload derives the publishable payload from a snapshot.
func BuildPayload(snap *Snapshot) Payload {
	return Payload{
		Status:             string(snap.Status),
		Title:              snap.Title,
		Artist:             snap.Artist,
		Album:              snap.Album,
		Thumb:              snap.Thumb,
		Duration:           snap.Duration,
		ViewOffset:         snap.Position,
		ProgressPercent:    snap.ProgressPercent(),
		DurationFormatted:  FormatMillis(snap.Duration),
		PositionFormatted:  FormatMillis(snap.Position),
		RemainingFormatted: FormatMillis(snap.Remaining()),
		User:               snap.Identity.User,
		Timestamp:          snap.CapturedAt.UTC().Format(time.RFC3339),
		Year:               snap.Year,
		TrackNumber:        snap.TrackNumber,
		DiscNumber:         snap.DiscNumber,
		Bitrate:            snap.Bitrate,
		Codec:              snap.Codec,
		SessionKey:         snap.Identity.SessionKey,
	}
}

// MarshalPayload renders the snapshot payload as JSON bytes ready to hand
// to a publish sink.
func MarshalPayload(snap *Snapshot) ([]byte, error) {
	p := BuildPayload(snap)
	return json.Marshal(&p)
}

// StoppedPayload is the minimal object published to the system/stopped
// destination when the active session set empties.
type StoppedPayload struct {
	Status string `json:"status"`
}

// MarshalStoppedPayload renders the system-stopped payload.
func MarshalStoppedPayload() ([]byte, error) {
	return json.Marshal(&StoppedPayload{Status: string(StatusStopped)})
}

// SummaryEntry is one row of the aggregate summary payload.
type SummaryEntry struct {
	User   string `json:"user"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// SummaryPayload is the aggregate view published to the fixed summary
// destination every tick the active set is non-empty.
type SummaryPayload struct {
	ActiveSessions int            `json:"active_sessions"`
	Users          []string       `json:"users"`
	Sessions       []SummaryEntry `json:"sessions"`
}

// BuildSummary aggregates the tick's snapshots. Users are deduplicated;
// entry order follows the input order.
func BuildSummary(snaps []Snapshot) SummaryPayload {
	summary := SummaryPayload{
		ActiveSessions: len(snaps),
		Users:          make([]string, 0, len(snaps)),
		Sessions:       make([]SummaryEntry, 0, len(snaps)),
	}
	seen := make(map[string]struct{}, len(snaps))
	for i := range snaps {
		snap := &snaps[i]
		if _, ok := seen[snap.Identity.User]; !ok {
			seen[snap.Identity.User] = struct{}{}
			summary.Users = append(summary.Users, snap.Identity.User)
		}
		summary.Sessions = append(summary.Sessions, SummaryEntry{
			User:   snap.Identity.User,
			Title:  snap.Title,
			Status: string(snap.Status),
		})
	}
	return summary
}

// MarshalSummary renders the aggregate summary payload.
func MarshalSummary(snaps []Snapshot) ([]byte, error) {
	s := BuildSummary(snaps)
	return json.Marshal(&s)
}
