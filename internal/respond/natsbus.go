// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package respond

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/logwarden/logwarden/internal/config"
)

// NATSResponder publishes alerts to an external NATS subject so downstream
// SOAR tooling can consume them. JetStream publishing with message-id
// deduplication is optional.
type NATSResponder struct {
	publisher message.Publisher
	subject   string

	mu     sync.RWMutex
	closed bool
}

// NewNATSResponder connects to NATS and builds the alert bus responder.
func NewNATSResponder(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*NATSResponder, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
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
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	return &NATSResponder{
		publisher: pub,
		subject:   cfg.Subject,
	}, nil
}

// Name returns the responder name.
func (r *NATSResponder) Name() string { return "natsbus" }

// Enabled reports whether the responder can publish.
func (r *NATSResponder) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed
}

// Send publishes the alert to the configured subject.
func (r *NATSResponder) Send(_ context.Context, alert *Alert) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return fmt.Errorf("nats responder is closed")
	}
	r.mu.RUnlock()

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	msg := message.NewMessage(alert.ID, payload)
	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, alert.ID)
	}

	if err := r.publisher.Publish(r.subject, msg); err != nil {
		return fmt.Errorf("publish alert to %s: %w", r.subject, err)
	}
	return nil
}

// Close shuts the underlying publisher down.
func (r *NATSResponder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.publisher.Close()
}
