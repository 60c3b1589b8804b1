// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

// Package respond implements response dispatch for triggering detections.
//
// The ingestion coordinator hands alerts to a Dispatcher, which queues them
// on an in-process Watermill pub/sub and delivers them to the configured
// responders asynchronously. Responder outcomes never propagate back to the
// ingestion caller; failures are logged and counted only.
package respond

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/logwarden/logwarden/internal/detection"
	"github.com/logwarden/logwarden/internal/logging"
)

// BlockMessage is the fixed response action text dispatched for keyword
// matches.
const BlockMessage = "IP BLOCKING...!"

// Alert is one response request produced by a triggering detection.
type Alert struct {
	ID        string             `json:"id"`
	Action    string             `json:"action"`
	RuleLabel string             `json:"rule_label"`
	Keyword   string             `json:"keyword,omitempty"`
	Severity  detection.Severity `json:"severity"`

	// EventID is the caller-supplied id of the originating event; may be
	// null.
	EventID *int64 `json:"event_id"`

	// Source is the origin label of the originating event.
	Source string `json:"source,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewAlert builds an alert for a triggering candidate.
func NewAlert(cand detection.Candidate, eventID *int64, source string) *Alert {
	return &Alert{
		ID:        uuid.New().String(),
		Action:    BlockMessage,
		RuleLabel: cand.RuleLabel,
		Keyword:   cand.Keyword,
		Severity:  cand.Severity,
		EventID:   eventID,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// Responder executes a response action for an alert. Implementations must be
// safe for concurrent use.
type Responder interface {
	// Send delivers the alert. The context carries the dispatch timeout.
	Send(ctx context.Context, alert *Alert) error

	// Name identifies the responder ("log", "webhook", "natsbus").
	Name() string

	// Enabled reports whether this responder should receive alerts.
	Enabled() bool
}

// LogResponder records alerts as structured log entries. It is the stock
// responder; real deployments chain a webhook or message bus responder after
// it.
type LogResponder struct {
	enabled bool
}

// NewLogResponder creates a log responder.
func NewLogResponder(enabled bool) *LogResponder {
	return &LogResponder{enabled: enabled}
}

// Name returns the responder name.
func (r *LogResponder) Name() string { return "log" }

// Enabled reports whether this responder is enabled.
func (r *LogResponder) Enabled() bool { return r.enabled }

// Send logs the alert.
func (r *LogResponder) Send(_ context.Context, alert *Alert) error {
	evt := logging.Warn().
		Str("alert_id", alert.ID).
		Str("action", alert.Action).
		Str("rule", alert.RuleLabel).
		Str("severity", string(alert.Severity))
	if alert.EventID != nil {
		evt = evt.Int64("event_id", *alert.EventID)
	}
	evt.Msg("response action triggered")
	return nil
}
