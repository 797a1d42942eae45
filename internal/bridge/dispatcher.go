// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package bridge runs the dispatch loop: poll Plex, normalize sessions,
// detect changes, select which sessions matter, route them to topics and
// publish. One goroutine owns all session state; HTTP handlers and the
// websocket hub read through accessor methods behind a read lock.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/playcaster/internal/detector"
	"github.com/tomtom215/playcaster/internal/logging"
	"github.com/tomtom215/playcaster/internal/metrics"
	"github.com/tomtom215/playcaster/internal/models"
	"github.com/tomtom215/playcaster/internal/progress"
	"github.com/tomtom215/playcaster/internal/publish"
	"github.com/tomtom215/playcaster/internal/selector"
	"github.com/tomtom215/playcaster/internal/session"
	"github.com/tomtom215/playcaster/internal/topics"
)

// SessionSource produces the raw session list each tick. Implemented by
// the Plex client and its circuit breaker wrapper.
type SessionSource interface {
	ListSessions(ctx context.Context) ([]models.PlexSession, error)
}

// CompletionSink receives completion events, e.g. the Last.fm scrobbler.
type CompletionSink interface {
	Scrobble(ctx context.Context, snap session.Snapshot, firedAt time.Time) error
}

// Broadcaster pushes live updates to connected dashboard clients.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Options wires the dispatcher's collaborators and tuning.
type Options struct {
	Source     SessionSource
	Sink       publish.Sink
	Normalizer *session.Normalizer
	Detector   *detector.Detector
	Tracker    *progress.Tracker
	Router     *topics.Router

	Policy         selector.Policy
	SelectorParams selector.Params

	PollInterval   time.Duration
	GracePeriod    time.Duration
	Retain         bool
	PublishSummary bool

	// Optional side channels.
	Completion  CompletionSink
	Broadcaster Broadcaster
}

// Stats is a point-in-time view of dispatcher health for the status API.
type Stats struct {
	StartedAt        time.Time     `json:"started_at"`
	Ticks            uint64        `json:"ticks"`
	LastTickAt       time.Time     `json:"last_tick_at"`
	LastTickDuration time.Duration `json:"last_tick_duration"`
	LastError        string        `json:"last_error,omitempty"`
	ActiveSessions   int           `json:"active_sessions"`
	Published        uint64        `json:"published"`
	Suppressed       uint64        `json:"suppressed"`
	Evicted          uint64        `json:"evicted"`
	Completions      uint64        `json:"completions"`
}

// sessionState is what the loop remembers per identity between ticks.
type sessionState struct {
	snapshot session.Snapshot
	lastSeen time.Time

	// published reflects the last successfully delivered update; nil
	// until the first publish so a newly selected session always
	// classifies as significant.
	published    *detector.Previous
	destinations []string
}

// Dispatcher owns the poll-and-publish cycle.
type Dispatcher struct {
	opts Options

	mu     sync.RWMutex
	states map[string]*sessionState
	stats  Stats

	// lastTickActive records whether the previous poll returned any
	// sessions, driving the exactly-once system-stopped transition.
	lastTickActive bool
}

// NewDispatcher creates a dispatcher; call Serve to start it.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	switch {
	case opts.Source == nil:
		return nil, errors.New("bridge: session source is required")
	case opts.Sink == nil:
		return nil, errors.New("bridge: sink is required")
	case opts.Normalizer == nil:
		return nil, errors.New("bridge: normalizer is required")
	case opts.Detector == nil:
		return nil, errors.New("bridge: detector is required")
	case opts.Tracker == nil:
		return nil, errors.New("bridge: tracker is required")
	case opts.Router == nil:
		return nil, errors.New("bridge: router is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.GracePeriod < 0 {
		opts.GracePeriod = 0
	}
	return &Dispatcher{
		opts:   opts,
		states: make(map[string]*sessionState),
	}, nil
}

// String identifies the service in supervisor logs.
func (d *Dispatcher) String() string { return "bridge-dispatcher" }

// Serve runs the dispatch loop until the context is canceled. It
// satisfies the suture service contract: the error return is the context
// cause, transient tick failures never escape.
func (d *Dispatcher) Serve(ctx context.Context) error {
	d.mu.Lock()
	if d.stats.StartedAt.IsZero() {
		d.stats.StartedAt = time.Now().UTC()
	}
	d.mu.Unlock()

	logging.Info().
		Dur("poll_interval", d.opts.PollInterval).
		Str("policy", d.opts.Policy.String()).
		Msg("Dispatch loop started")

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	d.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Dispatch loop stopping")
			return ctx.Err()
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick runs one complete poll-to-publish cycle. Any failure abandons the
// remainder of the cycle but leaves state intact for the next tick.
func (d *Dispatcher) tick(ctx context.Context) {
	start := time.Now()
	defer metrics.ObservePoll(start)

	raw, err := d.opts.Source.ListSessions(ctx)
	if err != nil {
		metrics.PollErrors.WithLabelValues("upstream").Inc()
		d.recordError(err)
		logging.Warn().Err(err).Msg("Session poll failed, keeping previous state")
		return
	}

	now := time.Now().UTC()
	snapshots := d.normalize(raw, now)

	d.observeProgress(ctx, snapshots)

	selected := selector.Select(snapshots, d.opts.Policy, d.opts.SelectorParams)

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range snapshots {
		snap := snapshots[i]
		key := snap.Identity.Key()
		st, ok := d.states[key]
		if !ok {
			st = &sessionState{}
			d.states[key] = st
		}
		st.snapshot = snap
		st.lastSeen = now
	}

	for i := range selected {
		d.publishSession(ctx, &selected[i], now)
	}

	d.evictStale(ctx, now)

	// The system-stopped event tracks the polled set, not the state map:
	// it fires on the first empty poll after a non-empty one, before any
	// grace-period eviction cleans up.
	if d.lastTickActive && len(snapshots) == 0 {
		d.publishSystemStopped(ctx)
	}
	d.lastTickActive = len(snapshots) > 0

	if len(snapshots) > 0 {
		d.publishSummaryLocked(ctx, snapshots)
	}

	d.stats.Ticks++
	d.stats.LastTickAt = now
	d.stats.LastTickDuration = time.Since(start)
	d.stats.ActiveSessions = len(d.states)
	d.stats.LastError = ""
	metrics.ActiveSessions.Set(float64(len(d.states)))
	metrics.TrackedIdentities.Set(float64(d.opts.Tracker.Tracked()))
}

// normalize converts raw records to snapshots, dropping malformed ones.
func (d *Dispatcher) normalize(raw []models.PlexSession, now time.Time) []session.Snapshot {
	snapshots := make([]session.Snapshot, 0, len(raw))
	for i := range raw {
		snap, err := d.opts.Normalizer.Normalize(&raw[i], now)
		if err != nil {
			metrics.PollErrors.WithLabelValues("malformed").Inc()
			logging.Debug().Err(err).
				Str("session_key", raw[i].SessionKey).
				Msg("Dropped malformed session record")
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

// observeProgress feeds every snapshot to the completion tracker,
// regardless of selection, and dispatches any completion events.
func (d *Dispatcher) observeProgress(ctx context.Context, snapshots []session.Snapshot) {
	for i := range snapshots {
		event, err := d.opts.Tracker.Observe(&snapshots[i])
		if err != nil {
			logging.Error().Err(err).
				Str("identity", snapshots[i].Identity.Key()).
				Msg("Completion tracking failed")
			continue
		}
		if event == nil {
			continue
		}

		metrics.CompletionEvents.Inc()
		d.mu.Lock()
		d.stats.Completions++
		d.mu.Unlock()

		logging.Info().
			Str("user", event.Identity.User).
			Str("title", event.Snapshot.Title).
			Str("artist", event.Snapshot.Artist).
			Float64("progress", event.Progress).
			Msg("Track completed")

		if d.opts.Completion != nil {
			if err := d.opts.Completion.Scrobble(ctx, event.Snapshot, event.FiredAt); err != nil {
				metrics.ScrobbleErrors.Inc()
				logging.Error().Err(err).Msg("Scrobble failed")
			}
		}
	}
}

// publishSession classifies one selected snapshot and publishes it when
// the classification warrants. Caller holds d.mu.
func (d *Dispatcher) publishSession(ctx context.Context, snap *session.Snapshot, now time.Time) {
	key := snap.Identity.Key()
	st := d.states[key]

	result := d.opts.Detector.Classify(st.published, snap)
	if result.Class == detector.NoOp {
		metrics.UpdatesSuppressed.Inc()
		d.stats.Suppressed++
		return
	}

	destinations, err := d.opts.Router.Route(snap)
	if err != nil {
		logging.Warn().Err(err).
			Str("identity", key).
			Msg("Session not routable, skipping")
		return
	}

	payload, err := session.MarshalPayload(snap)
	if err != nil {
		logging.Error().Err(err).Str("identity", key).Msg("Payload marshal failed")
		return
	}

	delivered := false
	for _, topic := range destinations {
		if err := d.opts.Sink.Publish(ctx, topic, payload, d.opts.Retain); err != nil {
			metrics.RecordPublishError("session")
			logging.Error().Err(err).Str("topic", topic).Msg("Publish failed")
			continue
		}
		metrics.RecordPublish("session")
		delivered = true
	}
	if !delivered {
		// Leave published state untouched so the change is re-detected
		// and retried next tick.
		return
	}

	logging.Debug().
		Str("identity", key).
		Str("class", result.Class.String()).
		Str("reason", result.Reason).
		Strs("topics", destinations).
		Msg("Session update published")

	st.published = &detector.Previous{Snapshot: *snap, PublishedAt: now}
	st.destinations = destinations
	d.stats.Published++
}

// evictStale removes sessions unseen past the grace period, publishing a
// stopped payload to each one's last destinations. Caller holds d.mu.
func (d *Dispatcher) evictStale(ctx context.Context, now time.Time) {
	for key, st := range d.states {
		if now.Sub(st.lastSeen) <= d.opts.GracePeriod {
			continue
		}

		stopped, err := session.MarshalStoppedPayload()
		if err == nil {
			for _, topic := range st.destinations {
				if err := d.opts.Sink.Publish(ctx, topic, stopped, d.opts.Retain); err != nil {
					metrics.RecordPublishError("stopped")
					logging.Error().Err(err).Str("topic", topic).Msg("Stopped publish failed")
					continue
				}
				metrics.RecordPublish("stopped")
			}
		}

		d.opts.Tracker.Evict(st.snapshot.Identity)
		delete(d.states, key)
		metrics.SessionsEvicted.Inc()
		d.stats.Evicted++

		logging.Info().
			Str("identity", key).
			Time("last_seen", st.lastSeen).
			Msg("Session evicted")
	}
}

// publishSystemStopped announces the all-idle transition on the fixed
// status topic. Caller holds d.mu.
func (d *Dispatcher) publishSystemStopped(ctx context.Context) {
	stopped, err := session.MarshalStoppedPayload()
	if err != nil {
		return
	}
	topic := d.opts.Router.StoppedTopic()
	if err := d.opts.Sink.Publish(ctx, topic, stopped, d.opts.Retain); err != nil {
		metrics.RecordPublishError("stopped")
		logging.Error().Err(err).Str("topic", topic).Msg("Stopped publish failed")
		return
	}
	metrics.RecordPublish("stopped")
	logging.Info().Str("topic", topic).Msg("All sessions stopped")
}

// publishSummaryLocked sends the aggregate summary and mirrors it to the
// websocket broadcaster. Caller holds d.mu.
func (d *Dispatcher) publishSummaryLocked(ctx context.Context, snapshots []session.Snapshot) {
	payload, err := session.MarshalSummary(snapshots)
	if err != nil {
		logging.Error().Err(err).Msg("Summary marshal failed")
		return
	}

	if d.opts.PublishSummary {
		topic := d.opts.Router.SummaryTopic()
		if err := d.opts.Sink.Publish(ctx, topic, payload, d.opts.Retain); err != nil {
			metrics.RecordPublishError("summary")
			logging.Error().Err(err).Str("topic", topic).Msg("Summary publish failed")
		} else {
			metrics.RecordPublish("summary")
		}
	}

	if d.opts.Broadcaster != nil {
		d.opts.Broadcaster.Broadcast(payload)
	}
}

func (d *Dispatcher) recordError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.LastError = err.Error()
}

// Stats returns a copy of the dispatcher's counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// CurrentSessions returns the latest snapshot of every tracked session,
// ordered deterministically by identity.
func (d *Dispatcher) CurrentSessions() []session.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snaps := make([]session.Snapshot, 0, len(d.states))
	for _, st := range d.states {
		snaps = append(snaps, st.snapshot)
	}
	return selector.Select(snaps, selector.All, selector.Params{})
}
