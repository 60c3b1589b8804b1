// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package respond

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/logwarden/logwarden/internal/logging"
	"github.com/logwarden/logwarden/internal/metrics"
)

// alertTopic is the in-process topic alerts are queued on.
const alertTopic = "alerts.dispatch"

// Dispatcher queues alerts on an in-process Watermill pub/sub and delivers
// them to the configured responders. Publishing is cheap and bounded, so the
// ingestion path never waits on a slow responder; each delivery runs under
// its own timeout.
type Dispatcher struct {
	pubSub          *gochannel.GoChannel
	responders      []Responder
	dispatchTimeout time.Duration
}

// NewDispatcher creates a dispatcher with the given responders. bufferSize
// bounds the queue depth; dispatchTimeout bounds one responder delivery.
func NewDispatcher(responders []Responder, bufferSize int, dispatchTimeout time.Duration, logger watermill.LoggerAdapter) *Dispatcher {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if bufferSize < 1 {
		bufferSize = 256
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = 5 * time.Second
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(bufferSize),
	}, logger)

	return &Dispatcher{
		pubSub:          pubSub,
		responders:      responders,
		dispatchTimeout: dispatchTimeout,
	}
}

// Dispatch queues one alert for delivery. It returns quickly; delivery
// happens on the dispatcher's own goroutine.
func (d *Dispatcher) Dispatch(alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	msg := message.NewMessage(alert.ID, payload)
	if err := d.pubSub.Publish(alertTopic, msg); err != nil {
		return fmt.Errorf("queue alert: %w", err)
	}
	return nil
}

// Serve consumes queued alerts and fans them out to responders until the
// context is canceled. It satisfies suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	messages, err := d.pubSub.Subscribe(ctx, alertTopic)
	if err != nil {
		return fmt.Errorf("subscribe to alert topic: %w", err)
	}

	logging.Info().Int("responders", len(d.responders)).Msg("alert dispatcher started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("alert dispatcher shutting down")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			d.deliver(msg)
		}
	}
}

// deliver decodes one queued alert and sends it to every enabled responder.
// Failures are logged and counted; the message is always acked since alert
// delivery is best-effort by contract.
func (d *Dispatcher) deliver(msg *message.Message) {
	defer msg.Ack()

	var alert Alert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		logging.Error().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable alert")
		return
	}

	for _, responder := range d.responders {
		if !responder.Enabled() {
			continue
		}
		metrics.ResponderDispatches.WithLabelValues(responder.Name()).Inc()

		ctx, cancel := context.WithTimeout(context.Background(), d.dispatchTimeout)
		err := responder.Send(ctx, &alert)
		cancel()
		if err != nil {
			metrics.ResponderFailures.WithLabelValues(responder.Name()).Inc()
			logging.Error().Err(err).
				Str("responder", responder.Name()).
				Str("alert_id", alert.ID).
				Msg("responder delivery failed")
		}
	}
}

// Close shuts the queue down. Pending alerts are dropped.
func (d *Dispatcher) Close() error {
	return d.pubSub.Close()
}
