// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package selector applies the configured multi-session selection policy to
// one tick's snapshot set.
//
// Policies are a closed enum dispatched by exhaustive switch, so adding a
// policy is a compile-time concern rather than a string comparison buried
// in the loop. Selection is a pure function of the tick's input; it holds
// no state across ticks.
package selector

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tomtom215/playcaster/internal/session"
)

// Policy selects which of the concurrently active sessions are eligible
// for publishing this cycle.
type Policy int

const (
	// All publishes every active session.
	All Policy = iota

	// PriorityUser publishes only the configured user's sessions, falling
	// back to the lexically-first session when that user is idle.
	PriorityUser

	// FirstOnly publishes exactly one session, chosen deterministically by
	// identity lexical order.
	FirstOnly

	// UserFilter publishes sessions whose user is on the allow-list. An
	// empty list selects nothing; that is configuration, not an error.
	UserFilter

	// MostRecent publishes the single most recently captured session.
	MostRecent
)

// String implements fmt.Stringer, yielding the configuration spelling.
func (p Policy) String() string {
	switch p {
	case All:
		return "all"
	case PriorityUser:
		return "priority_user"
	case FirstOnly:
		return "first_only"
	case UserFilter:
		return "user_filter"
	case MostRecent:
		return "most_recent"
	default:
		return "unknown"
	}
}

// ParsePolicy converts the configuration spelling into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return All, nil
	case "priority_user":
		return PriorityUser, nil
	case "first_only":
		return FirstOnly, nil
	case "user_filter":
		return UserFilter, nil
	case "most_recent":
		return MostRecent, nil
	default:
		return All, fmt.Errorf("unknown selection policy %q", s)
	}
}

// Params carries the policy-specific configuration.
type Params struct {
	// PriorityUser is the user favored by the priority_user policy.
	PriorityUser string

	// AllowedUsers is the allow-list consulted by the user_filter policy.
	AllowedUsers []string
}

// Select returns the subset of snapshots eligible for publishing under the
// given policy. The result is ordered by identity lexical order so single-
// session policies and fallbacks are deterministic. An empty input always
// yields an empty output.
func Select(snaps []session.Snapshot, policy Policy, params Params) []session.Snapshot {
	if len(snaps) == 0 {
		return nil
	}

	ordered := make([]session.Snapshot, len(snaps))
	copy(ordered, snaps)
	slices.SortFunc(ordered, func(a, b session.Snapshot) int {
		return strings.Compare(a.Identity.Key(), b.Identity.Key())
	})

	switch policy {
	case All:
		return ordered

	case PriorityUser:
		var matched []session.Snapshot
		for i := range ordered {
			if ordered[i].Identity.User == params.PriorityUser {
				matched = append(matched, ordered[i])
			}
		}
		if len(matched) > 0 {
			return matched
		}
		// Priority user idle: fall back to the lexically-first session.
		return ordered[:1]

	case FirstOnly:
		return ordered[:1]

	case UserFilter:
		allowed := make(map[string]struct{}, len(params.AllowedUsers))
		for _, u := range params.AllowedUsers {
			allowed[u] = struct{}{}
		}
		var matched []session.Snapshot
		for i := range ordered {
			if _, ok := allowed[ordered[i].Identity.User]; ok {
				matched = append(matched, ordered[i])
			}
		}
		return matched

	case MostRecent:
		best := 0
		for i := 1; i < len(ordered); i++ {
			// Strictly-after keeps the lexical tie-break from the sort.
			if ordered[i].CapturedAt.After(ordered[best].CapturedAt) {
				best = i
			}
		}
		return ordered[best : best+1]

	default:
		// Unreachable for parsed policies; behave like All rather than
		// dropping sessions on a programming error.
		return ordered
	}
}
