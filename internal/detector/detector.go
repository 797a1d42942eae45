// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package detector classifies the difference between consecutive snapshots
// of the same session identity.
//
// Classification keeps the bus quiet: unchanged progress ticks are
// suppressed, periodic heartbeats keep consumers aware the session is
// alive, and every qualitative change (status transition, track change,
// seek) is always surfaced.
package detector

import (
	"time"

	"github.com/tomtom215/playcaster/internal/session"
)

// Classification is the outcome of comparing a new snapshot against the
// last published state for the same identity.
type Classification int

const (
	// NoOp suppresses the update; nothing is published this tick.
	NoOp Classification = iota

	// Minor is a periodic heartbeat refresh: eligible for publishing but
	// not for completion-adjacent side effects.
	Minor

	// Significant must always be published: new session, status change,
	// track change, or seek.
	Significant
)

// String implements fmt.Stringer for logging and metrics labels.
func (c Classification) String() string {
	switch c {
	case NoOp:
		return "noop"
	case Minor:
		return "minor"
	case Significant:
		return "significant"
	default:
		return "unknown"
	}
}

// Result carries the classification and the first rule that matched,
// for observability.
type Result struct {
	Class  Classification
	Reason string
}

// Previous is what the dispatch loop remembers about an identity from its
// last published update.
type Previous struct {
	Snapshot    session.Snapshot
	PublishedAt time.Time
}

// Detector holds the tunable comparison thresholds. Both values are
// configuration-driven; the zero value disables heartbeats and treats any
// unexpected position delta as a seek, so callers should always set them.
type Detector struct {
	// SeekJitter is the tolerance applied to position deltas before a
	// jump is treated as a deliberate seek rather than clock noise.
	SeekJitter time.Duration

	// Heartbeat is the wall-clock interval after which an otherwise
	// unchanged session is republished as a liveness refresh.
	Heartbeat time.Duration
}

// Classify compares the current snapshot against the previously published
// state. Rules apply in priority order; the first match wins.
func (d *Detector) Classify(prev *Previous, cur *session.Snapshot) Result {
	if prev == nil {
		return Result{Class: Significant, Reason: "new session"}
	}

	if prev.Snapshot.Status != cur.Status {
		return Result{Class: Significant, Reason: "status change"}
	}

	if prev.Snapshot.TrackKey() != cur.TrackKey() {
		return Result{Class: Significant, Reason: "track change"}
	}

	if d.seekDetected(&prev.Snapshot, cur) {
		return Result{Class: Significant, Reason: "seek"}
	}

	if d.Heartbeat > 0 && cur.CapturedAt.Sub(prev.PublishedAt) >= d.Heartbeat {
		return Result{Class: Minor, Reason: "heartbeat"}
	}

	return Result{Class: NoOp, Reason: "unchanged"}
}

// seekDetected reports whether the position moved in an unexpected
// direction: a backward jump beyond the jitter tolerance, or a forward jump
// exceeding the elapsed wall-clock time by more than the tolerance.
func (d *Detector) seekDetected(prev, cur *session.Snapshot) bool {
	delta := time.Duration(cur.Position-prev.Position) * time.Millisecond

	if delta < -d.SeekJitter {
		return true
	}

	elapsed := cur.CapturedAt.Sub(prev.CapturedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return delta > elapsed+d.SeekJitter
}
