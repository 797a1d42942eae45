// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package publish

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tomtom215/playcaster/internal/logging"
)

// MQTTConfig holds broker connection settings. BrokerURL accepts tcp://,
// ssl:// and ws:// schemes; ws:// enables MQTT over WebSockets for
// brokers behind HTTP-only ingress.
type MQTTConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	TLSInsecure    bool
}

// MQTTSink publishes payloads to an MQTT broker. QoS is fixed per sink;
// the broker-side delivery guarantee applies uniformly to session,
// summary and stopped messages.
type MQTTSink struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewMQTTSink connects to the broker and returns a ready sink. The
// client auto-reconnects; publishes during an outage fail rather than
// queue, keeping now-playing data fresh.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.TLSInsecure {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logging.Warn().Err(err).Msg("MQTT connection lost, reconnecting")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logging.Info().Str("broker", cfg.BrokerURL).Msg("MQTT connected")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout after %s", cfg.BrokerURL, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.BrokerURL, err)
	}

	return &MQTTSink{
		client:  client,
		qos:     cfg.QoS,
		timeout: publishTimeout,
	}, nil
}

func (s *MQTTSink) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	s.mu.Unlock()

	token := s.client.Publish(topic, s.qos, retain, payload)

	done := make(chan bool, 1)
	go func() { done <- token.WaitTimeout(s.timeout) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case completed := <-done:
		if !completed {
			return fmt.Errorf("mqtt publish to %q: timeout after %s", topic, s.timeout)
		}
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %q: %w", topic, err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.Disconnect(250)
	return nil
}
