// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package progress

import (
	"testing"
	"time"

	"github.com/tomtom215/playcaster/internal/session"
)

func observed(position int64, status session.Status) *session.Snapshot {
	return &session.Snapshot{
		Identity:   session.Identity{User: "alice", Device: "d1", SessionKey: "42"},
		Status:     status,
		Duration:   240000,
		Position:   position,
		CapturedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCompletionFiresExactlyOnce(t *testing.T) {
	tracker := NewTracker(0.5, 30*time.Second, NewMemoryStore())

	// Below threshold: nothing fires.
	if ev, err := tracker.Observe(observed(96000, session.StatusPlaying)); err != nil || ev != nil {
		t.Fatalf("at 40%%: ev = %v, err = %v, want nil/nil", ev, err)
	}

	// Crossing 50% at 60% progress fires once.
	ev, err := tracker.Observe(observed(144000, session.StatusPlaying))
	if err != nil {
		t.Fatalf("Observe returned error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected completion event at 60% progress")
	}
	if ev.Progress != 0.6 {
		t.Errorf("progress = %v, want 0.6", ev.Progress)
	}
	if ev.Identity.SessionKey != "42" {
		t.Errorf("identity = %+v", ev.Identity)
	}

	// Subsequent ticks never re-fire, even after progress drops back and
	// rises again (replay from start).
	for _, pos := range []int64{150000, 96000, 10000, 144000, 200000} {
		if ev, err := tracker.Observe(observed(pos, session.StatusPlaying)); err != nil || ev != nil {
			t.Errorf("position %d: ev = %v, err = %v, want no re-fire", pos, ev, err)
		}
	}
}

func TestCompletionRequiresPlaying(t *testing.T) {
	tracker := NewTracker(0.5, 30*time.Second, NewMemoryStore())

	// A session first seen paused at 60% has not accumulated progress.
	if ev, _ := tracker.Observe(observed(144000, session.StatusPaused)); ev != nil {
		t.Error("paused session fired completion without playing")
	}

	// Once it plays at that position, the observation counts.
	if ev, _ := tracker.Observe(observed(144000, session.StatusPlaying)); ev == nil {
		t.Error("expected completion once the session played past the threshold")
	}
}

func TestCompletionMinimumDuration(t *testing.T) {
	tracker := NewTracker(0.5, 60*time.Second, NewMemoryStore())

	snap := observed(20000, session.StatusPlaying)
	snap.Duration = 30000 // 30s track, below the 60s minimum
	snap.Position = 20000 // 66%

	if ev, _ := tracker.Observe(snap); ev != nil {
		t.Error("completion fired for content below the minimum eligible duration")
	}
}

func TestCompletionZeroDuration(t *testing.T) {
	tracker := NewTracker(0.5, 0, NewMemoryStore())

	snap := observed(144000, session.StatusPlaying)
	snap.Duration = 0

	if ev, _ := tracker.Observe(snap); ev != nil {
		t.Error("completion fired for unknown duration")
	}
}

func TestFiredFlagSurvivesRestart(t *testing.T) {
	store := NewMemoryStore()

	first := NewTracker(0.5, 0, store)
	if ev, _ := first.Observe(observed(144000, session.StatusPlaying)); ev == nil {
		t.Fatal("expected completion from first tracker")
	}

	// A fresh tracker over the same store models a process restart; the
	// same identity must not fire again.
	second := NewTracker(0.5, 0, store)
	if ev, _ := second.Observe(observed(150000, session.StatusPlaying)); ev != nil {
		t.Error("completion re-fired after simulated restart")
	}
}

func TestEvictKeepsPersistedFlag(t *testing.T) {
	store := NewMemoryStore()
	tracker := NewTracker(0.5, 0, store)

	snap := observed(144000, session.StatusPlaying)
	if ev, _ := tracker.Observe(snap); ev == nil {
		t.Fatal("expected completion event")
	}

	tracker.Evict(snap.Identity)
	if tracker.Tracked() != 0 {
		t.Errorf("tracked = %d after evict, want 0", tracker.Tracked())
	}

	// Same upstream session token reappearing is not a new opportunity.
	if ev, _ := tracker.Observe(observed(150000, session.StatusPlaying)); ev != nil {
		t.Error("same-token replay fired a second completion")
	}

	// A different session token is a distinct identity and may fire.
	fresh := observed(144000, session.StatusPlaying)
	fresh.Identity.SessionKey = "43"
	if ev, _ := tracker.Observe(fresh); ev == nil {
		t.Error("new session token should be a fresh completion opportunity")
	}
}

func TestThresholdBoundary(t *testing.T) {
	tracker := NewTracker(0.5, 0, NewMemoryStore())

	// Exactly at threshold fires.
	if ev, _ := tracker.Observe(observed(120000, session.StatusPlaying)); ev == nil {
		t.Error("expected completion exactly at the threshold")
	}
}
