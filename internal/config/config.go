// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

// Package config defines the application configuration and its layered
// loading: struct defaults, then an optional YAML file, then environment
// variables.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	Plex     PlexConfig     `koanf:"plex"`
	Bridge   BridgeConfig   `koanf:"bridge"`
	Progress ProgressConfig `koanf:"progress"`
	MQTT     MQTTConfig     `koanf:"mqtt"`     // Primary bus transport
	NATS     NATSConfig     `koanf:"nats"`     // Optional: JetStream mirror of the MQTT stream
	Scrobble ScrobbleConfig `koanf:"scrobble"` // Optional: Last.fm scrobbling on completion
	Store    StoreConfig    `koanf:"store"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// PlexConfig holds upstream server settings.
type PlexConfig struct {
	URL          string        `koanf:"url"`
	Token        string        `koanf:"token"`
	PollInterval time.Duration `koanf:"poll_interval"`
	Timeout      time.Duration `koanf:"timeout"`
	RateLimitRPS float64       `koanf:"rate_limit_rps"`
}

// BridgeConfig tunes the dispatch loop: which sessions are chosen, where
// their payloads go, and when a session counts as changed or gone.
type BridgeConfig struct {
	SelectionPolicy   string        `koanf:"selection_policy"`
	PriorityUser      string        `koanf:"priority_user"`
	AllowedUsers      []string      `koanf:"allowed_users"`
	TopicStrategy     string        `koanf:"topic_strategy"`
	BaseTopic         string        `koanf:"base_topic"`
	SeekJitter        time.Duration `koanf:"seek_jitter"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	GracePeriod       time.Duration `koanf:"grace_period"`
	Retain            bool          `koanf:"retain"`
	PublishSummary    bool          `koanf:"publish_summary"`
}

// ProgressConfig tunes the completion trigger.
type ProgressConfig struct {
	Threshold   float64       `koanf:"threshold"` // Fraction of duration, 0..1
	MinDuration time.Duration `koanf:"min_duration"`
}

// MQTTConfig holds broker settings for the primary sink.
type MQTTConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BrokerURL   string `koanf:"broker_url"`
	ClientID    string `koanf:"client_id"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	QoS         int    `koanf:"qos"`
	TLSInsecure bool   `koanf:"tls_insecure"`
}

// NATSConfig holds settings for the optional NATS sink.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	SubjectPrefix string        `koanf:"subject_prefix"`
	JetStream     bool          `koanf:"jetstream"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// ScrobbleConfig holds Last.fm credentials.
type ScrobbleConfig struct {
	Enabled   bool   `koanf:"enabled"`
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

// StoreConfig holds the completion flag store settings. TTL bounds how
// long fired flags persist; it should comfortably exceed the longest
// session a user might replay.
type StoreConfig struct {
	Path string        `koanf:"path"`
	TTL  time.Duration `koanf:"ttl"`
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
