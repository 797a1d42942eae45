// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package topics maps session snapshots to bus destination strings per the
// configured topic strategy.
//
// Strategies are a closed enum with exhaustive dispatch. User and device
// components are sanitized before they become destination segments:
// whitespace is replaced with underscores, and a path separator in the
// source value is rejected outright rather than silently altered, so a
// crafted username can never change the destination hierarchy.
package topics

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tomtom215/playcaster/internal/session"
)

// ErrInvalidTopicComponent is returned when a destination segment would be
// ambiguous. The caller skips publishing for that session and continues.
var ErrInvalidTopicComponent = errors.New("invalid topic component")

// Strategy determines how a session maps to destinations.
type Strategy int

const (
	// Single routes every session to the base topic.
	Single Strategy = iota

	// PerUser routes to base/{user}.
	PerUser

	// PerDevice routes to base/{sessionId}.
	PerDevice

	// Hierarchical routes to base/{user}/{sessionId}.
	Hierarchical

	// UserDeviceTrack routes to base/{user}/{device}/DATA.
	UserDeviceTrack
)

// String implements fmt.Stringer, yielding the configuration spelling.
func (s Strategy) String() string {
	switch s {
	case Single:
		return "single"
	case PerUser:
		return "per_user"
	case PerDevice:
		return "per_device"
	case Hierarchical:
		return "hierarchical"
	case UserDeviceTrack:
		return "user_device_track"
	default:
		return "unknown"
	}
}

// ParseStrategy converts the configuration spelling into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "":
		return Single, nil
	case "per_user":
		return PerUser, nil
	case "per_device":
		return PerDevice, nil
	case "hierarchical":
		return Hierarchical, nil
	case "user_device_track":
		return UserDeviceTrack, nil
	default:
		return Single, fmt.Errorf("unknown topic strategy %q", s)
	}
}

// Router computes destinations for snapshots. It is stateless per call.
type Router struct {
	Strategy Strategy
	Base     string // configured base topic, e.g. "plex/playing_status"
}

// Route maps a snapshot to its ordered destination list. A nil snapshot
// represents the "no active session" condition and routes to the fixed
// stopped destination regardless of strategy.
func (r *Router) Route(snap *session.Snapshot) ([]string, error) {
	if snap == nil {
		return []string{r.StoppedTopic()}, nil
	}

	switch r.Strategy {
	case Single:
		return []string{r.Base}, nil

	case PerUser:
		user, err := sanitizeComponent(snap.Identity.User)
		if err != nil {
			return nil, err
		}
		return []string{r.Base + "/" + user}, nil

	case PerDevice:
		sessionID, err := sanitizeComponent(snap.Identity.SessionKey)
		if err != nil {
			return nil, err
		}
		return []string{r.Base + "/" + sessionID}, nil

	case Hierarchical:
		user, err := sanitizeComponent(snap.Identity.User)
		if err != nil {
			return nil, err
		}
		sessionID, err := sanitizeComponent(snap.Identity.SessionKey)
		if err != nil {
			return nil, err
		}
		return []string{r.Base + "/" + user + "/" + sessionID}, nil

	case UserDeviceTrack:
		user, err := sanitizeComponent(snap.Identity.User)
		if err != nil {
			return nil, err
		}
		device, err := sanitizeComponent(snap.Identity.Device)
		if err != nil {
			return nil, err
		}
		return []string{r.Base + "/" + user + "/" + device + "/DATA"}, nil

	default:
		return nil, fmt.Errorf("unhandled topic strategy %d", r.Strategy)
	}
}

// SummaryTopic is the fixed aggregate destination, available independent
// of strategy.
func (r *Router) SummaryTopic() string {
	return r.Base + "/summary"
}

// StoppedTopic is the fixed destination for the system-stopped signal.
func (r *Router) StoppedTopic() string {
	return r.Base + "/status"
}

// sanitizeComponent prepares a user or device value for use as a
// destination segment. Whitespace becomes underscore; path separators and
// bus wildcard characters are rejected rather than rewritten.
func sanitizeComponent(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: empty component", ErrInvalidTopicComponent)
	}
	if strings.ContainsAny(value, "/#+") {
		return "", fmt.Errorf("%w: %q contains a destination separator", ErrInvalidTopicComponent, value)
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, value), nil
}
