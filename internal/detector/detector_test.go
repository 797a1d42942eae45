// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package detector

import (
	"testing"
	"time"

	"github.com/tomtom215/playcaster/internal/session"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func playingSnapshot(position int64, at time.Time) session.Snapshot {
	return session.Snapshot{
		Identity:   session.Identity{User: "alice", Device: "d1", SessionKey: "1"},
		Status:     session.StatusPlaying,
		Title:      "Kid A",
		Artist:     "Radiohead",
		Album:      "Kid A",
		Duration:   240000,
		Position:   position,
		CapturedAt: at,
	}
}

// jitter and heartbeat values are configuration-driven; tests run the same
// scenarios over several plausible settings.
var tunings = []struct {
	name      string
	jitter    time.Duration
	heartbeat time.Duration
}{
	{"tight", 2 * time.Second, 30 * time.Second},
	{"default", 10 * time.Second, 60 * time.Second},
	{"loose", 30 * time.Second, 5 * time.Minute},
}

func TestClassifyNewSession(t *testing.T) {
	for _, tune := range tunings {
		t.Run(tune.name, func(t *testing.T) {
			d := &Detector{SeekJitter: tune.jitter, Heartbeat: tune.heartbeat}
			cur := playingSnapshot(0, baseTime)
			res := d.Classify(nil, &cur)
			if res.Class != Significant {
				t.Errorf("class = %v, want Significant for new session", res.Class)
			}
		})
	}
}

func TestClassifyStatusChange(t *testing.T) {
	for _, tune := range tunings {
		t.Run(tune.name, func(t *testing.T) {
			d := &Detector{SeekJitter: tune.jitter, Heartbeat: tune.heartbeat}

			prevSnap := playingSnapshot(30000, baseTime)
			cur := playingSnapshot(30100, baseTime.Add(time.Second))
			cur.Status = session.StatusPaused

			res := d.Classify(&Previous{Snapshot: prevSnap, PublishedAt: baseTime}, &cur)
			if res.Class != Significant {
				t.Errorf("class = %v, want Significant for playing->paused", res.Class)
			}
			if res.Reason != "status change" {
				t.Errorf("reason = %q", res.Reason)
			}
		})
	}
}

func TestClassifyTrackChange(t *testing.T) {
	d := &Detector{SeekJitter: 10 * time.Second, Heartbeat: time.Minute}

	prevSnap := playingSnapshot(230000, baseTime)
	cur := playingSnapshot(0, baseTime.Add(5*time.Second))
	cur.Title = "The National Anthem"

	res := d.Classify(&Previous{Snapshot: prevSnap, PublishedAt: baseTime}, &cur)
	if res.Class != Significant || res.Reason != "track change" {
		t.Errorf("got %v/%q, want Significant/track change", res.Class, res.Reason)
	}
}

func TestClassifySeek(t *testing.T) {
	tests := []struct {
		name     string
		prevPos  int64
		curPos   int64
		elapsed  time.Duration
		wantSeek bool
	}{
		{"normal forward progress", 30000, 35000, 5 * time.Second, false},
		{"small backward jitter", 30000, 29000, 5 * time.Second, false},
		{"large backward jump", 120000, 10000, 5 * time.Second, true},
		{"forward jump beyond wall clock", 30000, 120000, 5 * time.Second, true},
		{"forward within tolerance", 30000, 42000, 5 * time.Second, false},
	}

	d := &Detector{SeekJitter: 10 * time.Second, Heartbeat: time.Hour}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prevSnap := playingSnapshot(tt.prevPos, baseTime)
			cur := playingSnapshot(tt.curPos, baseTime.Add(tt.elapsed))

			res := d.Classify(&Previous{Snapshot: prevSnap, PublishedAt: baseTime}, &cur)
			gotSeek := res.Class == Significant
			if gotSeek != tt.wantSeek {
				t.Errorf("class = %v (%q), want seek=%v", res.Class, res.Reason, tt.wantSeek)
			}
		})
	}
}

// Identical consecutive snapshots stay NoOp until the heartbeat interval
// elapses, then become Minor.
func TestClassifySuppressionAndHeartbeat(t *testing.T) {
	for _, tune := range tunings {
		t.Run(tune.name, func(t *testing.T) {
			d := &Detector{SeekJitter: tune.jitter, Heartbeat: tune.heartbeat}

			prevSnap := playingSnapshot(30000, baseTime)
			prev := &Previous{Snapshot: prevSnap, PublishedAt: baseTime}

			// Second occurrence well inside the heartbeat window.
			step := time.Second
			cur := playingSnapshot(30000+step.Milliseconds(), baseTime.Add(step))
			if res := d.Classify(prev, &cur); res.Class != NoOp {
				t.Errorf("within heartbeat: class = %v (%q), want NoOp", res.Class, res.Reason)
			}

			// After the heartbeat interval the same state refreshes as Minor.
			late := playingSnapshot(30000+tune.heartbeat.Milliseconds(), baseTime.Add(tune.heartbeat))
			if res := d.Classify(prev, &late); res.Class != Minor {
				t.Errorf("past heartbeat: class = %v (%q), want Minor", res.Class, res.Reason)
			}
		})
	}
}

func TestClassifyPausedSessionStaysQuiet(t *testing.T) {
	d := &Detector{SeekJitter: 10 * time.Second, Heartbeat: time.Minute}

	prevSnap := playingSnapshot(30000, baseTime)
	prevSnap.Status = session.StatusPaused
	cur := playingSnapshot(30000, baseTime.Add(5*time.Second))
	cur.Status = session.StatusPaused

	res := d.Classify(&Previous{Snapshot: prevSnap, PublishedAt: baseTime}, &cur)
	if res.Class != NoOp {
		t.Errorf("class = %v (%q), want NoOp for unchanged paused session", res.Class, res.Reason)
	}
}
