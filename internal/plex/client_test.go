// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package plex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sessionsBody = `{
	"MediaContainer": {
		"size": 1,
		"Metadata": [{
			"sessionKey": "42",
			"ratingKey": "1001",
			"type": "track",
			"title": "Karma Police",
			"grandparentTitle": "Radiohead",
			"parentTitle": "OK Computer",
			"viewOffset": 30000,
			"duration": 240000,
			"User": {"id": 1, "title": "alice"},
			"Player": {"title": "Living Room", "machineIdentifier": "mach-1", "state": "playing"}
		}]
	}
}`

func TestListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/sessions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Plex-Token"); got != "secret" {
			t.Errorf("token header = %q, want %q", got, "secret")
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("accept header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sessionsBody))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, Token: "secret"})
	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.SessionKey != "42" || s.Title != "Karma Police" || s.GrandparentTitle != "Radiohead" {
		t.Errorf("unexpected session: %+v", s)
	}
	if s.Player.State != "playing" {
		t.Errorf("player state = %q", s.Player.State)
	}
}

func TestListSessionsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MediaContainer": {"size": 0}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, Token: "t"})
	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if sessions == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(sessions) != 0 {
		t.Errorf("got %d sessions, want 0", len(sessions))
	}
}

func TestListSessionsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, Token: "t"})
	_, err := client.ListSessions(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestListSessionsUnreachable(t *testing.T) {
	client := NewClient(Config{
		URL:     "http://127.0.0.1:1",
		Token:   "t",
		Timeout: 500 * time.Millisecond,
	})
	_, err := client.ListSessions(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestRateLimitRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"MediaContainer": {"size": 0}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, Token: "t"})
	_, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identity" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL, Token: "t"})
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := NewBreakerClient(NewClient(Config{URL: srv.URL, Token: "t"}))
	for i := 0; i < 12; i++ {
		breaker.ListSessions(context.Background())
	}
	if got := breaker.State(); got != "open" {
		t.Errorf("breaker state = %q, want open", got)
	}
	_, err := breaker.ListSessions(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable when open", err)
	}
}
