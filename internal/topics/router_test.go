// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package topics

import (
	"errors"
	"testing"

	"github.com/tomtom215/playcaster/internal/session"
)

func testSnapshot() *session.Snapshot {
	return &session.Snapshot{
		Identity: session.Identity{
			User:       "Alice Smith",
			Device:     "iPhone",
			SessionKey: "42",
		},
		Status: session.StatusPlaying,
	}
}

func TestRouteStrategies(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     string
	}{
		{Single, "plex/playing_status"},
		{PerUser, "plex/playing_status/Alice_Smith"},
		{PerDevice, "plex/playing_status/42"},
		{Hierarchical, "plex/playing_status/Alice_Smith/42"},
		{UserDeviceTrack, "plex/playing_status/Alice_Smith/iPhone/DATA"},
	}

	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			r := &Router{Strategy: tt.strategy, Base: "plex/playing_status"}
			got, err := r.Route(testSnapshot())
			if err != nil {
				t.Fatalf("Route returned error: %v", err)
			}
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("destinations = %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestRouteNoActiveSession(t *testing.T) {
	for _, strategy := range []Strategy{Single, PerUser, PerDevice, Hierarchical, UserDeviceTrack} {
		r := &Router{Strategy: strategy, Base: "plex/playing_status"}
		got, err := r.Route(nil)
		if err != nil {
			t.Fatalf("strategy %v: Route(nil) returned error: %v", strategy, err)
		}
		if len(got) != 1 || got[0] != "plex/playing_status/status" {
			t.Errorf("strategy %v: destinations = %v, want fixed stopped destination", strategy, got)
		}
	}
}

func TestRouteRejectsSeparators(t *testing.T) {
	tests := []struct {
		name string
		user string
	}{
		{"path separator", "alice/admin"},
		{"mqtt multi-level wildcard", "alice#"},
		{"mqtt single-level wildcard", "ali+ce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Router{Strategy: PerUser, Base: "plex/playing_status"}
			snap := testSnapshot()
			snap.Identity.User = tt.user
			if _, err := r.Route(snap); !errors.Is(err, ErrInvalidTopicComponent) {
				t.Errorf("err = %v, want ErrInvalidTopicComponent", err)
			}
		})
	}
}

func TestRouteWhitespaceSanitization(t *testing.T) {
	r := &Router{Strategy: UserDeviceTrack, Base: "base"}
	snap := testSnapshot()
	snap.Identity.User = "Bob  The\tBuilder"
	snap.Identity.Device = "Living Room TV"

	got, err := r.Route(snap)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if got[0] != "base/Bob__The_Builder/Living_Room_TV/DATA" {
		t.Errorf("destination = %q", got[0])
	}
}

func TestFixedDestinations(t *testing.T) {
	r := &Router{Strategy: PerUser, Base: "plex/playing_status"}
	if got := r.SummaryTopic(); got != "plex/playing_status/summary" {
		t.Errorf("summary = %q", got)
	}
	if got := r.StoppedTopic(); got != "plex/playing_status/status" {
		t.Errorf("stopped = %q", got)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input   string
		want    Strategy
		wantErr bool
	}{
		{"single", Single, false},
		{"", Single, false},
		{"PER_USER", PerUser, false},
		{"user_device_track", UserDeviceTrack, false},
		{"fanout", Single, true},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) err = %v, wantErr = %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
