// Playcaster - Plex Now Playing to Message Bus Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playcaster

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/playcaster/internal/api"
	"github.com/tomtom215/playcaster/internal/bridge"
	"github.com/tomtom215/playcaster/internal/config"
	"github.com/tomtom215/playcaster/internal/detector"
	"github.com/tomtom215/playcaster/internal/logging"
	"github.com/tomtom215/playcaster/internal/plex"
	"github.com/tomtom215/playcaster/internal/progress"
	"github.com/tomtom215/playcaster/internal/publish"
	"github.com/tomtom215/playcaster/internal/scrobble"
	"github.com/tomtom215/playcaster/internal/selector"
	"github.com/tomtom215/playcaster/internal/session"
	"github.com/tomtom215/playcaster/internal/supervisor"
	"github.com/tomtom215/playcaster/internal/supervisor/services"
	"github.com/tomtom215/playcaster/internal/topics"
	"github.com/tomtom215/playcaster/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting Playcaster")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Completion flag store. Badger persistence is what keeps completed
	// tracks from re-firing across restarts.
	var store progress.FiredStore
	var db *badger.DB
	if cfg.Store.Path != "" {
		db, err = badger.Open(badger.DefaultOptions(cfg.Store.Path).WithLogger(nil))
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open completion store")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Completion store close failed")
			}
		}()
		store = progress.NewBadgerStore(db, cfg.Store.TTL)
	} else {
		logging.Warn().Msg("No store path configured, completion flags will not survive restarts")
		store = progress.NewMemoryStore()
	}

	sink, err := buildSink(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect message bus sinks")
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logging.Error().Err(err).Msg("Sink close failed")
		}
	}()

	client := plex.NewClient(plex.Config{
		URL:          cfg.Plex.URL,
		Token:        cfg.Plex.Token,
		Timeout:      cfg.Plex.Timeout,
		RateLimitRPS: cfg.Plex.RateLimitRPS,
	})
	source := plex.NewBreakerClient(client)

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := source.Ping(pingCtx); err != nil {
		logging.Warn().Err(err).Msg("Plex server unreachable at startup, continuing anyway")
	}
	pingCancel()

	var completion bridge.CompletionSink
	if cfg.Scrobble.Enabled {
		lastfm, err := scrobble.NewClient(ctx, scrobble.Config{
			APIKey:    cfg.Scrobble.APIKey,
			APISecret: cfg.Scrobble.APISecret,
			Username:  cfg.Scrobble.Username,
			Password:  cfg.Scrobble.Password,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to authenticate with Last.fm")
		}
		completion = lastfm
	}

	policy, err := selector.ParsePolicy(cfg.Bridge.SelectionPolicy)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid selection policy")
	}
	strategy, err := topics.ParseStrategy(cfg.Bridge.TopicStrategy)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid topic strategy")
	}

	hub := websocket.NewHub()

	dispatcher, err := bridge.NewDispatcher(bridge.Options{
		Source: source,
		Sink:   sink,
		Normalizer: &session.Normalizer{
			ThumbBaseURL: cfg.Plex.URL,
			Token:        cfg.Plex.Token,
		},
		Detector: &detector.Detector{
			SeekJitter: cfg.Bridge.SeekJitter,
			Heartbeat:  cfg.Bridge.HeartbeatInterval,
		},
		Tracker: progress.NewTracker(cfg.Progress.Threshold, cfg.Progress.MinDuration, store),
		Router:  &topics.Router{Strategy: strategy, Base: cfg.Bridge.BaseTopic},
		Policy:  policy,
		SelectorParams: selector.Params{
			PriorityUser: cfg.Bridge.PriorityUser,
			AllowedUsers: cfg.Bridge.AllowedUsers,
		},
		PollInterval:   cfg.Plex.PollInterval,
		GracePeriod:    cfg.Bridge.GracePeriod,
		Retain:         cfg.Bridge.Retain,
		PublishSummary: cfg.Bridge.PublishSummary,
		Completion:     completion,
		Broadcaster:    hub,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build dispatcher")
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddBridgeService(dispatcher)
	tree.AddBridgeService(hub)

	if cfg.Server.Enabled {
		handler := api.NewHandler(dispatcher, cfg, source, hub)
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           api.NewRouter(handler, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.Server.Timeout,
		}
		tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))
		logging.Info().Str("addr", httpServer.Addr).Msg("Status API enabled")
	}

	if err := tree.Serve(ctx); err != nil && err != context.Canceled {
		logging.Error().Err(err).Msg("Supervisor tree exited")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", fmt.Sprint(svc.Service)).Msg("Service missed shutdown timeout")
		}
	}

	logging.Info().Msg("Playcaster stopped")
}

// buildSink assembles the configured transports behind a single fan-out.
func buildSink(cfg *config.Config) (publish.Sink, error) {
	var sinks []publish.Sink

	if cfg.MQTT.Enabled {
		mqttSink, err := publish.NewMQTTSink(publish.MQTTConfig{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         byte(cfg.MQTT.QoS),
			TLSInsecure: cfg.MQTT.TLSInsecure,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, mqttSink)
		logging.Info().Str("broker", cfg.MQTT.BrokerURL).Msg("MQTT sink connected")
	}

	if cfg.NATS.Enabled {
		natsSink, err := publish.NewNATSSink(publish.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
			JetStream:     cfg.NATS.JetStream,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, natsSink)
		logging.Info().Str("url", cfg.NATS.URL).Msg("NATS sink connected")
	}

	return publish.NewMulti(sinks...), nil
}
