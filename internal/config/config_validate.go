// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/playcaster/internal/selector"
	"github.com/tomtom215/playcaster/internal/topics"
)

// Validate checks configuration sanity. Error messages name the
// environment variable form of each setting since that is how most
// deployments configure the bridge.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateBridge(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateSinks(); err != nil {
		return err
	}
	if err := c.validateScrobble(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validatePlex() error {
	if c.Plex.URL == "" {
		return fmt.Errorf("PLEX_URL is required")
	}
	if _, err := url.ParseRequestURI(c.Plex.URL); err != nil {
		return fmt.Errorf("PLEX_URL is invalid: %w", err)
	}
	if c.Plex.Token == "" {
		return fmt.Errorf("PLEX_TOKEN is required")
	}
	if c.Plex.PollInterval < time.Second || c.Plex.PollInterval > 5*time.Minute {
		return fmt.Errorf("PLEX_POLL_INTERVAL must be between 1s and 5m")
	}
	return nil
}

func (c *Config) validateBridge() error {
	if _, err := selector.ParsePolicy(c.Bridge.SelectionPolicy); err != nil {
		return fmt.Errorf("BRIDGE_SELECTION_POLICY is invalid: %w", err)
	}
	if c.Bridge.SelectionPolicy == "priority_user" && c.Bridge.PriorityUser == "" {
		return fmt.Errorf("BRIDGE_PRIORITY_USER is required when BRIDGE_SELECTION_POLICY=priority_user")
	}
	if _, err := topics.ParseStrategy(c.Bridge.TopicStrategy); err != nil {
		return fmt.Errorf("BRIDGE_TOPIC_STRATEGY is invalid: %w", err)
	}
	if c.Bridge.BaseTopic == "" {
		return fmt.Errorf("BRIDGE_BASE_TOPIC is required")
	}
	if strings.ContainsAny(c.Bridge.BaseTopic, "#+") {
		return fmt.Errorf("BRIDGE_BASE_TOPIC must not contain wildcard characters")
	}
	if c.Bridge.SeekJitter < 0 {
		return fmt.Errorf("BRIDGE_SEEK_JITTER must be non-negative")
	}
	if c.Bridge.HeartbeatInterval < 0 {
		return fmt.Errorf("BRIDGE_HEARTBEAT_INTERVAL must be non-negative")
	}
	if c.Bridge.GracePeriod < 0 {
		return fmt.Errorf("BRIDGE_GRACE_PERIOD must be non-negative")
	}
	return nil
}

func (c *Config) validateProgress() error {
	if c.Progress.Threshold <= 0 || c.Progress.Threshold > 1 {
		return fmt.Errorf("PROGRESS_THRESHOLD must be in (0, 1]")
	}
	if c.Progress.MinDuration < 0 {
		return fmt.Errorf("PROGRESS_MIN_DURATION must be non-negative")
	}
	return nil
}

func (c *Config) validateSinks() error {
	if !c.MQTT.Enabled && !c.NATS.Enabled {
		return fmt.Errorf("at least one of MQTT_ENABLED or NATS_ENABLED must be true")
	}
	if c.MQTT.Enabled {
		if c.MQTT.BrokerURL == "" {
			return fmt.Errorf("MQTT_BROKER_URL is required when MQTT_ENABLED=true")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
		}
		if c.MQTT.ClientID == "" {
			return fmt.Errorf("MQTT_CLIENT_ID is required when MQTT_ENABLED=true")
		}
	}
	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
		}
		if _, err := url.ParseRequestURI(c.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	}
	return nil
}

func (c *Config) validateScrobble() error {
	if !c.Scrobble.Enabled {
		return nil
	}
	if c.Scrobble.APIKey == "" || c.Scrobble.APISecret == "" {
		return fmt.Errorf("LASTFM_API_KEY and LASTFM_API_SECRET are required when LASTFM_ENABLED=true")
	}
	if c.Scrobble.Username == "" || c.Scrobble.Password == "" {
		return fmt.Errorf("LASTFM_USERNAME and LASTFM_PASSWORD are required when LASTFM_ENABLED=true")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout < time.Second {
		return fmt.Errorf("HTTP_TIMEOUT must be at least 1s")
	}
	return nil
}
