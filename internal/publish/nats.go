// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package publish

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/playcaster/internal/logging"
)

// NATSConfig holds NATS sink settings.
type NATSConfig struct {
	URL             string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
	JetStream       bool
}

// NATSSink publishes payloads through Watermill to NATS. Bus topics use
// '/' separators; NATS subjects use '.', so SubjectForTopic rewrites
// them on the way out. Retain has no NATS equivalent and is ignored;
// JetStream stream retention covers replay instead.
type NATSSink struct {
	publisher message.Publisher
	prefix    string

	mu     sync.Mutex
	closed bool
}

// NewNATSSink connects to the NATS server and returns a ready sink.
func NewNATSSink(cfg NATSConfig) (*NATSSink, error) {
	maxReconnects := cfg.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = 60
	}
	reconnectWait := cfg.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}

	wmLogger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(maxReconnects),
		natsgo.ReconnectWait(reconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logging.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      !cfg.JetStream,
			AutoProvision: cfg.JetStream,
			TrackMsgId:    cfg.JetStream,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &NATSSink{
		publisher: pub,
		prefix:    cfg.SubjectPrefix,
	}, nil
}

// SubjectForTopic maps a bus topic to a NATS subject: '/' becomes '.'
// and the configured prefix is prepended.
func (s *NATSSink) SubjectForTopic(topic string) string {
	subject := strings.ReplaceAll(topic, "/", ".")
	if s.prefix != "" {
		subject = s.prefix + "." + subject
	}
	return subject
}

func (s *NATSSink) Publish(ctx context.Context, topic string, payload []byte, _ bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)

	subject := s.SubjectForTopic(topic)
	if err := s.publisher.Publish(subject, msg); err != nil {
		return fmt.Errorf("nats publish to %q: %w", subject, err)
	}
	return nil
}

func (s *NATSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.publisher.Close()
}
