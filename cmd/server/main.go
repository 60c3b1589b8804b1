// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

// Command server runs the Logwarden pipeline: HTTP ingestion, keyword
// detection, DuckDB persistence and supervised response dispatch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/logwarden/logwarden/internal/aggregate"
	"github.com/logwarden/logwarden/internal/api"
	"github.com/logwarden/logwarden/internal/config"
	"github.com/logwarden/logwarden/internal/detection"
	"github.com/logwarden/logwarden/internal/ingest"
	"github.com/logwarden/logwarden/internal/logging"
	"github.com/logwarden/logwarden/internal/respond"
	"github.com/logwarden/logwarden/internal/store"
	"github.com/logwarden/logwarden/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Int("keywords", len(cfg.Detection.Keywords)).
		Msg("starting logwarden")

	db, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer db.Close()

	classifier := detection.NewClassifier(detection.NewRuleSet(cfg.Detection.Keywords))

	responders, closers, err := buildResponders(cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if cerr := c.Close(); cerr != nil {
				logging.Warn().Err(cerr).Msg("responder close failed")
			}
		}
	}()

	dispatcher := respond.NewDispatcher(
		responders,
		cfg.Responder.BufferSize,
		cfg.Responder.DispatchTimeout,
		respond.NewWatermillLogger(),
	)
	defer dispatcher.Close()

	coordinator := ingest.NewCoordinator(db, classifier, dispatcher)
	aggregator := aggregate.NewService(db)

	handlers := api.NewHandlers(coordinator, db, aggregator, classifier)
	router := api.NewRouter(&cfg.Server, handlers)
	server := api.NewServer(&cfg.Server, router.Setup())

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	// The dispatcher subscribes before the HTTP server starts accepting,
	// so no accepted event can race its alert past the consumer.
	tree.AddMessagingService(dispatcher)
	tree.AddAPIService(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("logwarden stopped")
	return nil
}

type closer interface {
	Close() error
}

// buildResponders assembles the configured response sinks. The log responder
// is always constructed; webhook and NATS join when enabled.
func buildResponders(cfg *config.Config) ([]respond.Responder, []closer, error) {
	responders := []respond.Responder{
		respond.NewLogResponder(cfg.Responder.Log.Enabled),
	}
	var closers []closer

	if cfg.Responder.Webhook.Enabled {
		responders = append(responders, respond.NewWebhookResponder(cfg.Responder.Webhook))
	}

	if cfg.Responder.NATS.Enabled {
		nr, err := respond.NewNATSResponder(cfg.Responder.NATS, respond.NewWatermillLogger())
		if err != nil {
			return nil, nil, fmt.Errorf("connect NATS responder: %w", err)
		}
		responders = append(responders, nr)
		closers = append(closers, nr)
	}

	return responders, closers, nil
}
