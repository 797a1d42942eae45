// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package progress

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// FiredStore records which session identities have already produced a
// completion event. The flag is written atomically with firing and is never
// cleared for a live identity, which is what makes completion at-most-once
// even across process restarts.
type FiredStore interface {
	// IsFired reports whether the identity has already fired.
	IsFired(identityKey string) (bool, error)

	// MarkFired durably sets the flag for the identity.
	MarkFired(identityKey string, at time.Time) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is a process-local FiredStore for tests and for deployments
// that opt out of persistence.
type MemoryStore struct {
	mu    sync.RWMutex
	fired map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fired: make(map[string]time.Time)}
}

// IsFired implements FiredStore.
func (s *MemoryStore) IsFired(identityKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fired[identityKey]
	return ok, nil
}

// MarkFired implements FiredStore.
func (s *MemoryStore) MarkFired(identityKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[identityKey] = at
	return nil
}

// Close implements FiredStore.
func (s *MemoryStore) Close() error { return nil }

// firedKeyPrefix namespaces completion flags inside the shared BadgerDB.
const firedKeyPrefix = "completion:"

// BadgerStore persists completion flags in BadgerDB so a restart cannot
// re-fire a completion for a session that already scrobbled. Entries carry
// a TTL: once an upstream session key is old enough to have been recycled,
// the flag has no meaning and BadgerDB drops it on its own.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerStore wraps an open BadgerDB handle. A non-positive ttl keeps
// entries forever.
func NewBadgerStore(db *badger.DB, ttl time.Duration) *BadgerStore {
	return &BadgerStore{db: db, ttl: ttl}
}

// IsFired implements FiredStore.
func (s *BadgerStore) IsFired(identityKey string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(firedKeyPrefix + identityKey))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get completion flag: %w", err)
	}
	return true, nil
}

// MarkFired implements FiredStore.
func (s *BadgerStore) MarkFired(identityKey string, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(
			[]byte(firedKeyPrefix+identityKey),
			[]byte(at.UTC().Format(time.RFC3339)),
		)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set completion flag: %w", err)
		}
		return nil
	})
}

// Close implements FiredStore. The underlying DB handle is shared with the
// rest of the process and closed by its owner, not here.
func (s *BadgerStore) Close() error { return nil }
