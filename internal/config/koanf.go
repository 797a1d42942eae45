// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/playcaster/config.yaml",
	"/etc/playcaster/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Plex: PlexConfig{
			URL:          "http://localhost:32400",
			Token:        "",
			PollInterval: 5 * time.Second,
			Timeout:      10 * time.Second,
			RateLimitRPS: 0, // Disabled; poll interval already paces requests
		},
		Bridge: BridgeConfig{
			SelectionPolicy:   "all",
			PriorityUser:      "",
			AllowedUsers:      []string{},
			TopicStrategy:     "single",
			BaseTopic:         "plex/playing_status",
			SeekJitter:        10 * time.Second,
			HeartbeatInterval: 60 * time.Second,
			GracePeriod:       15 * time.Second,
			Retain:            true,
			PublishSummary:    true,
		},
		Progress: ProgressConfig{
			Threshold:   0.9,
			MinDuration: 30 * time.Second,
		},
		MQTT: MQTTConfig{
			Enabled:     true,
			BrokerURL:   "tcp://localhost:1883",
			ClientID:    "playcaster",
			Username:    "",
			Password:    "",
			QoS:         1,
			TLSInsecure: false,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "playcaster",
			JetStream:     false,
			MaxReconnects: 60,
			ReconnectWait: 2 * time.Second,
		},
		Scrobble: ScrobbleConfig{
			Enabled: false,
		},
		Store: StoreConfig{
			Path: "/data/playcaster",
			TTL:  7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8089,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration using Koanf v2 with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches the env override, then the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"bridge.allowed_users",
	"server.cors_origins",
}

// processSliceFields converts comma-separated env var strings to slices
// for the known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped variables return empty string and are skipped, so
// unrelated environment noise never reaches the config.
//
// Examples:
//   - PLEX_URL -> plex.url
//   - MQTT_BROKER_URL -> mqtt.broker_url
//   - BRIDGE_TOPIC_STRATEGY -> bridge.topic_strategy
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Plex mappings
		"plex_url":            "plex.url",
		"plex_token":          "plex.token",
		"plex_poll_interval":  "plex.poll_interval",
		"plex_timeout":        "plex.timeout",
		"plex_rate_limit_rps": "plex.rate_limit_rps",

		// Bridge mappings
		"bridge_selection_policy":   "bridge.selection_policy",
		"bridge_priority_user":      "bridge.priority_user",
		"bridge_allowed_users":      "bridge.allowed_users",
		"bridge_topic_strategy":     "bridge.topic_strategy",
		"bridge_base_topic":         "bridge.base_topic",
		"bridge_seek_jitter":        "bridge.seek_jitter",
		"bridge_heartbeat_interval": "bridge.heartbeat_interval",
		"bridge_grace_period":       "bridge.grace_period",
		"bridge_retain":             "bridge.retain",
		"bridge_publish_summary":    "bridge.publish_summary",

		// Progress mappings
		"progress_threshold":    "progress.threshold",
		"progress_min_duration": "progress.min_duration",

		// MQTT mappings
		"mqtt_enabled":      "mqtt.enabled",
		"mqtt_broker_url":   "mqtt.broker_url",
		"mqtt_client_id":    "mqtt.client_id",
		"mqtt_username":     "mqtt.username",
		"mqtt_password":     "mqtt.password",
		"mqtt_qos":          "mqtt.qos",
		"mqtt_tls_insecure": "mqtt.tls_insecure",

		// NATS mappings
		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_subject_prefix": "nats.subject_prefix",
		"nats_jetstream":      "nats.jetstream",
		"nats_max_reconnects": "nats.max_reconnects",
		"nats_reconnect_wait": "nats.reconnect_wait",

		// Last.fm mappings
		"lastfm_enabled":    "scrobble.enabled",
		"lastfm_api_key":    "scrobble.api_key",
		"lastfm_api_secret": "scrobble.api_secret",
		"lastfm_username":   "scrobble.username",
		"lastfm_password":   "scrobble.password",

		// Store mappings
		"store_path": "store.path",
		"store_ttl":  "store.ttl",

		// Server mappings
		"http_enabled":      "server.enabled",
		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"cors_origins":      "server.cors_origins",
		"rate_limit_reqs":   "server.rate_limit_reqs",
		"rate_limit_window": "server.rate_limit_window",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
