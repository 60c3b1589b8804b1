// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

// Package ingest implements the ingestion coordinator: the single entry
// point through which events flow into the pipeline.
//
// One ingestion call persists the raw event, classifies its message,
// persists the resulting detections and queues response actions for
// triggering matches. Success or failure is decided solely by the event
// write; everything downstream of it is a best-effort side channel.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/logwarden/logwarden/internal/detection"
	"github.com/logwarden/logwarden/internal/logging"
	"github.com/logwarden/logwarden/internal/metrics"
	"github.com/logwarden/logwarden/internal/respond"
	"github.com/logwarden/logwarden/internal/validation"
)

// Record is one inbound event as submitted by a transport.
type Record struct {
	// ID is an optional caller-supplied correlation id. It is carried into
	// detections verbatim and never validated against store keys.
	ID *int64 `json:"id"`

	// Source is a free-text origin label.
	Source string `json:"source" validate:"max=512"`

	// Message is the payload rules evaluate against. Required.
	Message string `json:"message" validate:"required"`
}

// Result reports what one accepted ingestion produced.
type Result struct {
	// StoreID is the event store's own id for the recorded event.
	StoreID int64 `json:"store_id"`

	// Candidates are the detections the message produced, in rule order.
	Candidates []detection.Candidate `json:"candidates"`
}

// EventStore is the write-side slice of the store the coordinator needs.
// Each call is an atomic, self-contained operation; the coordinator never
// wraps them in a shared transaction or lock.
type EventStore interface {
	InsertEvent(ctx context.Context, source, message string, ts time.Time) (int64, error)
	InsertDetection(ctx context.Context, ruleLabel string, eventID *int64, ts time.Time) (int64, error)
}

// AlertDispatcher queues response actions. Dispatch must be cheap and must
// not wait on delivery.
type AlertDispatcher interface {
	Dispatch(alert *respond.Alert) error
}

// Coordinator orchestrates one ingestion call. It holds no mutable state and
// is safe for concurrent use; events from independent callers may interleave
// freely.
type Coordinator struct {
	store      EventStore
	classifier *detection.Classifier
	dispatcher AlertDispatcher

	// now is swappable for tests.
	now func() time.Time
}

// NewCoordinator creates a coordinator.
func NewCoordinator(store EventStore, classifier *detection.Classifier, dispatcher AlertDispatcher) *Coordinator {
	return &Coordinator{
		store:      store,
		classifier: classifier,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Ingest processes one record.
//
// The record is validated, timestamped at receipt and persisted; a store
// failure here aborts the call. The message is then classified, each
// candidate detection is persisted independently, and each triggering
// candidate is queued for response dispatch. Failures after the event write
// are logged and counted but never fail the call or abort the remaining
// candidates.
func (c *Coordinator) Ingest(ctx context.Context, rec Record) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	if err := validation.ValidateStruct(&rec); err != nil {
		metrics.EventsRejected.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%w: %s", ErrMalformedEvent, err)
	}

	receivedAt := c.now().UTC()
	storeID, err := c.store.InsertEvent(ctx, rec.Source, rec.Message, receivedAt)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("store_unavailable").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	metrics.EventsIngested.Inc()

	candidates := c.classifier.Classify(rec.Message)
	for _, cand := range candidates {
		c.recordDetection(ctx, cand, rec)
		if cand.Triggering {
			c.dispatchAlert(cand, rec)
		}
	}

	logging.Debug().
		Int64("store_id", storeID).
		Str("source", rec.Source).
		Int("detections", len(candidates)).
		Msg("event ingested")

	return &Result{StoreID: storeID, Candidates: candidates}, nil
}

// recordDetection persists one candidate. A write failure is logged and
// counted only; the event is already durable.
func (c *Coordinator) recordDetection(ctx context.Context, cand detection.Candidate, rec Record) {
	if _, err := c.store.InsertDetection(ctx, cand.RuleLabel, rec.ID, c.now().UTC()); err != nil {
		metrics.DetectionWriteFailures.Inc()
		logging.Error().Err(err).
			Str("rule", cand.RuleLabel).
			Msg("failed to persist detection")
		return
	}
	metrics.DetectionsRecorded.WithLabelValues(candidateKind(cand)).Inc()
}

// dispatchAlert queues the response action for a keyword match. Dispatch
// failures are logged only.
func (c *Coordinator) dispatchAlert(cand detection.Candidate, rec Record) {
	alert := respond.NewAlert(cand, rec.ID, rec.Source)
	if err := c.dispatcher.Dispatch(alert); err != nil {
		logging.Error().Err(err).
			Str("rule", cand.RuleLabel).
			Msg("failed to queue response action")
	}
}

func candidateKind(cand detection.Candidate) string {
	if cand.Triggering {
		return "keyword"
	}
	return "generic"
}
