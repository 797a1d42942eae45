// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package selector

import (
	"testing"
	"time"

	"github.com/tomtom215/playcaster/internal/session"
)

func snap(user, device, key string, capturedAt time.Time) session.Snapshot {
	return session.Snapshot{
		Identity:   session.Identity{User: user, Device: device, SessionKey: key},
		Status:     session.StatusPlaying,
		CapturedAt: capturedAt,
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    Policy
		wantErr bool
	}{
		{"all", All, false},
		{"", All, false},
		{"PRIORITY_USER", PriorityUser, false},
		{"first_only", FirstOnly, false},
		{"user_filter", UserFilter, false},
		{"most_recent", MostRecent, false},
		{"round_robin", All, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("policy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectEmptyInput(t *testing.T) {
	for _, policy := range []Policy{All, PriorityUser, FirstOnly, UserFilter, MostRecent} {
		if got := Select(nil, policy, Params{PriorityUser: "alice"}); len(got) != 0 {
			t.Errorf("policy %v: %d selected from empty input, want 0", policy, len(got))
		}
	}
}

func TestSelectAll(t *testing.T) {
	now := time.Now()
	snaps := []session.Snapshot{
		snap("carol", "d3", "3", now),
		snap("alice", "d1", "1", now),
		snap("bob", "d2", "2", now),
	}

	got := Select(snaps, All, Params{})
	if len(got) != 3 {
		t.Fatalf("selected %d, want 3", len(got))
	}
	// Deterministic identity order.
	if got[0].Identity.User != "alice" || got[2].Identity.User != "carol" {
		t.Errorf("order = %s,%s,%s", got[0].Identity.User, got[1].Identity.User, got[2].Identity.User)
	}
}

func TestSelectPriorityUser(t *testing.T) {
	now := time.Now()
	snaps := []session.Snapshot{
		snap("bob", "d2", "2", now),
		snap("alice", "d1", "1", now),
		snap("bob", "d4", "4", now),
	}

	got := Select(snaps, PriorityUser, Params{PriorityUser: "bob"})
	if len(got) != 2 {
		t.Fatalf("selected %d, want both of bob's sessions", len(got))
	}
	for i := range got {
		if got[i].Identity.User != "bob" {
			t.Errorf("selected %s, want bob", got[i].Identity.User)
		}
	}

	// Priority user idle: deterministic fallback to lexically-first.
	fallback := Select(snaps, PriorityUser, Params{PriorityUser: "dave"})
	if len(fallback) != 1 || fallback[0].Identity.User != "alice" {
		t.Errorf("fallback = %+v, want alice's session", fallback)
	}
}

func TestSelectFirstOnly(t *testing.T) {
	now := time.Now()
	snaps := []session.Snapshot{
		snap("carol", "d3", "3", now),
		snap("alice", "d1", "1", now),
	}

	got := Select(snaps, FirstOnly, Params{})
	if len(got) != 1 || got[0].Identity.User != "alice" {
		t.Errorf("got %+v, want exactly alice's session", got)
	}
}

func TestSelectUserFilter(t *testing.T) {
	now := time.Now()
	snaps := []session.Snapshot{
		snap("alice", "d1", "1", now),
		snap("bob", "d2", "2", now),
		snap("carol", "d3", "3", now),
	}

	got := Select(snaps, UserFilter, Params{AllowedUsers: []string{"bob", "carol"}})
	if len(got) != 2 {
		t.Fatalf("selected %d, want 2", len(got))
	}

	// Empty allow-list selects nothing, without error, for any input.
	if got := Select(snaps, UserFilter, Params{}); len(got) != 0 {
		t.Errorf("empty allow-list selected %d sessions, want 0", len(got))
	}
}

func TestSelectMostRecent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snaps := []session.Snapshot{
		snap("alice", "d1", "1", base.Add(time.Second)),
		snap("bob", "d2", "2", base.Add(3*time.Second)),
		snap("carol", "d3", "3", base.Add(2*time.Second)),
	}

	got := Select(snaps, MostRecent, Params{})
	if len(got) != 1 || got[0].Identity.User != "bob" {
		t.Errorf("got %+v, want bob's session (latest capture)", got)
	}
}

func TestSelectMostRecentTieBreak(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snaps := []session.Snapshot{
		snap("bob", "d2", "2", now),
		snap("alice", "d1", "1", now),
	}

	got := Select(snaps, MostRecent, Params{})
	if len(got) != 1 || got[0].Identity.User != "alice" {
		t.Errorf("got %+v, want lexically-first identity on timestamp tie", got)
	}
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	now := time.Now()
	snaps := []session.Snapshot{
		snap("carol", "d3", "3", now),
		snap("alice", "d1", "1", now),
	}

	Select(snaps, FirstOnly, Params{})
	if snaps[0].Identity.User != "carol" {
		t.Error("Select reordered the caller's slice")
	}
}
