// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package publish provides the message bus sinks the dispatch loop
// delivers payloads to. Topics use '/' separators at this layer; each
// sink maps them to its transport's native form.
package publish

import (
	"context"
	"errors"
)

// ErrSinkClosed is returned by Publish after Close.
var ErrSinkClosed = errors.New("sink is closed")

// Sink delivers a serialized payload to a bus destination. Retain asks
// the transport to keep the message as the topic's last known value,
// where the transport supports that.
type Sink interface {
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error
	Close() error
}

// Multi fans a publish out to several sinks. All sinks are attempted;
// errors are joined so one failing transport does not hide another's.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out sink. Nil entries are skipped.
func NewMulti(sinks ...Sink) *Multi {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Multi{sinks: kept}
}

func (m *Multi) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, topic, payload, retain); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len reports how many sinks are wired.
func (m *Multi) Len() int { return len(m.sinks) }
