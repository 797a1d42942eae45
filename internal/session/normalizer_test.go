// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package session

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/playcaster/internal/models"
)

func validRecord() *models.PlexSession {
	return &models.PlexSession{
		SessionKey:       "42",
		Type:             "track",
		Title:            "Kid A",
		GrandparentTitle: "Radiohead",
		ParentTitle:      "Kid A",
		Duration:         240000,
		ViewOffset:       30000,
		Year:             2000,
		Index:            2,
		ParentIndex:      1,
		Thumb:            "/library/metadata/100/thumb/200",
		User:             &models.PlexSessionUser{ID: 1, Title: "alice"},
		Player: &models.PlexSessionPlayer{
			MachineID: "machine-1",
			Title:     "Living Room",
			State:     "playing",
		},
		Media: []models.PlexMedia{{Bitrate: 320, AudioCodec: "flac"}},
	}
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := &Normalizer{ThumbBaseURL: "http://plex:32400", Token: "secret-token"}

	snap, err := n.Normalize(validRecord(), now)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if snap.Identity.User != "alice" {
		t.Errorf("user = %q, want alice", snap.Identity.User)
	}
	if snap.Identity.Device != "machine-1" {
		t.Errorf("device = %q, want machine-1", snap.Identity.Device)
	}
	if snap.Identity.SessionKey != "42" {
		t.Errorf("sessionKey = %q, want 42", snap.Identity.SessionKey)
	}
	if snap.Status != StatusPlaying {
		t.Errorf("status = %q, want playing", snap.Status)
	}
	if snap.Artist != "Radiohead" {
		t.Errorf("artist = %q, want Radiohead", snap.Artist)
	}
	if snap.Bitrate != 320 || snap.Codec != "flac" {
		t.Errorf("media = %d/%q, want 320/flac", snap.Bitrate, snap.Codec)
	}
	wantThumb := "http://plex:32400/library/metadata/100/thumb/200?X-Plex-Token=secret-token"
	if snap.Thumb != wantThumb {
		t.Errorf("thumb = %q, want %q", snap.Thumb, wantThumb)
	}
	if !snap.CapturedAt.Equal(now) {
		t.Errorf("capturedAt = %v, want %v", snap.CapturedAt, now)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.PlexSession)
	}{
		{"nil user", func(r *models.PlexSession) { r.User = nil }},
		{"empty user title", func(r *models.PlexSession) { r.User.Title = "" }},
		{"nil player", func(r *models.PlexSession) { r.Player = nil }},
		{"no device identity", func(r *models.PlexSession) {
			r.Player.MachineID = ""
			r.Player.Title = ""
		}},
		{"missing session key", func(r *models.PlexSession) { r.SessionKey = "" }},
		{"unknown player state", func(r *models.PlexSession) { r.Player.State = "rewinding" }},
	}

	n := &Normalizer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRecord()
			tt.mutate(raw)
			if _, err := n.Normalize(raw, time.Now()); !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("err = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestNormalizeStatusMapping(t *testing.T) {
	tests := []struct {
		state string
		want  Status
	}{
		{"playing", StatusPlaying},
		{"Playing", StatusPlaying},
		{"buffering", StatusPlaying},
		{"paused", StatusPaused},
		{"stopped", StatusStopped},
	}

	n := &Normalizer{}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			raw := validRecord()
			raw.Player.State = tt.state
			snap, err := n.Normalize(raw, time.Now())
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if snap.Status != tt.want {
				t.Errorf("status = %q, want %q", snap.Status, tt.want)
			}
		})
	}
}

func TestNormalizeDeviceFallback(t *testing.T) {
	raw := validRecord()
	raw.Player.MachineID = ""

	n := &Normalizer{}
	snap, err := n.Normalize(raw, time.Now())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if snap.Identity.Device != "Living Room" {
		t.Errorf("device = %q, want player title fallback", snap.Identity.Device)
	}
}

func TestNormalizeThumbPassthrough(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		thumb string
		want  string
	}{
		{"absolute url untouched", "http://plex:32400", "https://cdn/img.jpg", "https://cdn/img.jpg"},
		{"no base url untouched", "", "/library/metadata/1/thumb/2", "/library/metadata/1/thumb/2"},
		{"empty thumb stays empty", "http://plex:32400", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRecord()
			raw.Thumb = tt.thumb
			raw.Art = ""
			n := &Normalizer{ThumbBaseURL: tt.base}
			snap, err := n.Normalize(raw, time.Now())
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if snap.Thumb != tt.want {
				t.Errorf("thumb = %q, want %q", snap.Thumb, tt.want)
			}
		})
	}
}
