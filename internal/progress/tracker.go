// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package progress maintains per-identity listened-position bookkeeping and
// fires an at-most-once completion event when a session crosses the
// configured threshold.
//
// The tracker is owned by the dispatch loop and accessed from its single
// goroutine only; the completion flag itself lives behind a FiredStore so
// the at-most-once guarantee holds across process restarts.
package progress

import (
	"fmt"
	"time"

	"github.com/tomtom215/playcaster/internal/session"
)

// CompletionEvent signals that a session has been listened to past the
// configured threshold. It fires exactly once per identity lifetime.
type CompletionEvent struct {
	Identity session.Identity
	Snapshot session.Snapshot
	Progress float64 // fraction of the track observed, 0.0-1.0
	FiredAt  time.Time
}

// entry is the per-identity mutable state.
type entry struct {
	maxProgress float64 // highest fraction observed while playing
	fired       bool
}

// Tracker watches playback progress and triggers completion events.
type Tracker struct {
	// Threshold is the progress fraction (0.0-1.0) past which a session
	// counts as completed, e.g. 0.5 for the scrobbling convention.
	Threshold float64

	// MinDuration excludes short content: completion never fires for
	// sessions whose duration is below this.
	MinDuration time.Duration

	store   FiredStore
	entries map[string]*entry
}

// NewTracker creates a tracker backed by the given store.
func NewTracker(threshold float64, minDuration time.Duration, store FiredStore) *Tracker {
	return &Tracker{
		Threshold:   threshold,
		MinDuration: minDuration,
		store:       store,
		entries:     make(map[string]*entry),
	}
}

// Observe folds one snapshot into the identity's bookkeeping and returns a
// CompletionEvent if this observation crossed the threshold for the first
// time. Progress only accumulates while the session is playing, so a
// paused session at 60% does not fire until it actually played there.
//
// The fired flag is monotone: once set it never resets for the lifetime of
// the identity, even if progress later drops back (replay from start).
func (t *Tracker) Observe(snap *session.Snapshot) (*CompletionEvent, error) {
	key := snap.Identity.Key()

	e, ok := t.entries[key]
	if !ok {
		fired, err := t.store.IsFired(key)
		if err != nil {
			return nil, fmt.Errorf("load completion flag for %s: %w", key, err)
		}
		e = &entry{fired: fired}
		t.entries[key] = e
	}

	if snap.Status == session.StatusPlaying {
		if p := snap.ProgressPercent() / 100; p > e.maxProgress {
			e.maxProgress = p
		}
	}

	if e.fired {
		return nil, nil
	}
	if t.Threshold <= 0 || e.maxProgress < t.Threshold {
		return nil, nil
	}
	if snap.Duration <= 0 || time.Duration(snap.Duration)*time.Millisecond < t.MinDuration {
		return nil, nil
	}

	// Set the flag atomically with firing: persist first, then mark, so a
	// store failure surfaces now and the next tick retries rather than
	// silently losing the at-most-once bookkeeping.
	firedAt := snap.CapturedAt
	if err := t.store.MarkFired(key, firedAt); err != nil {
		return nil, fmt.Errorf("persist completion flag for %s: %w", key, err)
	}
	e.fired = true

	return &CompletionEvent{
		Identity: snap.Identity,
		Snapshot: *snap,
		Progress: e.maxProgress,
		FiredAt:  firedAt,
	}, nil
}

// Evict drops the in-memory entry for an identity whose session ended and
// outlived the grace period. The persisted flag is deliberately kept: a
// later session reusing the same upstream session token must not become a
// new completion opportunity, and a genuinely new session carries a
// different token and therefore a different identity key.
func (t *Tracker) Evict(id session.Identity) {
	delete(t.entries, id.Key())
}

// Tracked returns the number of identities with live bookkeeping.
func (t *Tracker) Tracked() int {
	return len(t.entries)
}
