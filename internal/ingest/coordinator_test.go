// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/logwarden/logwarden/internal/detection"
	"github.com/logwarden/logwarden/internal/respond"
)

// mockStore implements EventStore.
type mockStore struct {
	mu sync.Mutex

	events     []storedEvent
	detections []storedDetection

	eventErr     error
	detectionErr error
}

type storedEvent struct {
	source  string
	message string
	ts      time.Time
}

type storedDetection struct {
	ruleLabel string
	eventID   *int64
	ts        time.Time
}

func (m *mockStore) InsertEvent(_ context.Context, source, message string, ts time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eventErr != nil {
		return 0, m.eventErr
	}
	m.events = append(m.events, storedEvent{source: source, message: message, ts: ts})
	return int64(len(m.events)), nil
}

func (m *mockStore) InsertDetection(_ context.Context, ruleLabel string, eventID *int64, ts time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detectionErr != nil {
		return 0, m.detectionErr
	}
	m.detections = append(m.detections, storedDetection{ruleLabel: ruleLabel, eventID: eventID, ts: ts})
	return int64(len(m.detections)), nil
}

// mockDispatcher implements AlertDispatcher.
type mockDispatcher struct {
	mu     sync.Mutex
	alerts []respond.Alert
	err    error
}

func (m *mockDispatcher) Dispatch(alert *respond.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, *alert)
	return nil
}

func newCoordinator(keywords []string, store *mockStore, dispatcher *mockDispatcher) *Coordinator {
	classifier := detection.NewClassifier(detection.NewRuleSet(keywords))
	return NewCoordinator(store, classifier, dispatcher)
}

func TestIngestKeywordMatch(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{}
	c := newCoordinator(detection.DefaultKeywords(), store, dispatcher)

	id := int64(1)
	res, err := c.Ingest(context.Background(), Record{
		ID:      &id,
		Source:  "fw1",
		Message: "admin tried union select on db",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(store.events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(store.events))
	}
	if len(store.detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(store.detections))
	}
	if store.detections[0].ruleLabel != "Strange access DETECTED! -> union select" {
		t.Errorf("unexpected rule label %q", store.detections[0].ruleLabel)
	}
	if store.detections[0].eventID == nil || *store.detections[0].eventID != 1 {
		t.Errorf("caller id not passed through: %+v", store.detections[0].eventID)
	}
	if len(dispatcher.alerts) != 1 {
		t.Fatalf("expected 1 dispatched alert, got %d", len(dispatcher.alerts))
	}
	if dispatcher.alerts[0].Action != respond.BlockMessage {
		t.Errorf("unexpected alert action %q", dispatcher.alerts[0].Action)
	}
	if res.StoreID != 1 || len(res.Candidates) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestIngestCleanMessage(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{}
	c := newCoordinator(detection.DefaultKeywords(), store, dispatcher)

	id := int64(3)
	res, err := c.Ingest(context.Background(), Record{ID: &id, Source: "x", Message: "hello world"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(store.events) != 1 {
		t.Errorf("event must still be stored, got %d", len(store.events))
	}
	if len(store.detections) != 0 || len(dispatcher.alerts) != 0 {
		t.Errorf("clean message must yield no detections or alerts")
	}
	if len(res.Candidates) != 0 {
		t.Errorf("unexpected candidates %+v", res.Candidates)
	}
}

func TestIngestEmptyKeywordListWithFailure(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{}
	c := newCoordinator(nil, store, dispatcher)

	id := int64(2)
	if _, err := c.Ingest(context.Background(), Record{ID: &id, Source: "auth", Message: "Failed login for user bob"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(store.events) != 1 {
		t.Errorf("expected 1 stored event, got %d", len(store.events))
	}
	// No keywords means no rule iteration, so no generic detections either.
	if len(store.detections) != 0 {
		t.Errorf("expected no detections, got %d", len(store.detections))
	}
}

func TestIngestGenericDetectionsDoNotDispatch(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{}
	c := newCoordinator([]string{"xss", "malware"}, store, dispatcher)

	if _, err := c.Ingest(context.Background(), Record{Source: "auth", Message: "failed login"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	// One generic detection per non-matching keyword.
	if len(store.detections) != 2 {
		t.Fatalf("expected 2 generic detections, got %d", len(store.detections))
	}
	for _, det := range store.detections {
		if det.ruleLabel != detection.GenericLabel {
			t.Errorf("unexpected label %q", det.ruleLabel)
		}
		if det.eventID != nil {
			t.Errorf("missing caller id must persist as null, got %v", *det.eventID)
		}
	}
	if len(dispatcher.alerts) != 0 {
		t.Error("generic detections must never dispatch a response")
	}
}

func TestIngestMissingMessageRejected(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{}
	c := newCoordinator(detection.DefaultKeywords(), store, dispatcher)

	_, err := c.Ingest(context.Background(), Record{Source: "fw1"})
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
	if len(store.events) != 0 {
		t.Error("nothing may be persisted for a malformed record")
	}
}

func TestIngestStoreFailureAborts(t *testing.T) {
	store := &mockStore{eventErr: errors.New("disk full")}
	dispatcher := &mockDispatcher{}
	c := newCoordinator(detection.DefaultKeywords(), store, dispatcher)

	_, err := c.Ingest(context.Background(), Record{Source: "fw1", Message: "malware found"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if len(store.detections) != 0 || len(dispatcher.alerts) != 0 {
		t.Error("no classification side effects may run for an unpersisted event")
	}
}

func TestIngestDetectionWriteFailureIsNonFatal(t *testing.T) {
	store := &mockStore{detectionErr: errors.New("constraint violation")}
	dispatcher := &mockDispatcher{}
	c := newCoordinator([]string{"malware"}, store, dispatcher)

	res, err := c.Ingest(context.Background(), Record{Source: "edr", Message: "malware beacon"})
	if err != nil {
		t.Fatalf("detection write failure must not fail ingestion: %v", err)
	}
	if len(store.events) != 1 {
		t.Errorf("event write must stand, got %d events", len(store.events))
	}
	// The response action still fires: persistence and dispatch are
	// independent side channels.
	if len(dispatcher.alerts) != 1 {
		t.Errorf("expected 1 alert despite detection write failure, got %d", len(dispatcher.alerts))
	}
	if len(res.Candidates) != 1 {
		t.Errorf("unexpected candidates %+v", res.Candidates)
	}
}

func TestIngestDispatchFailureIsNonFatal(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{err: errors.New("queue closed")}
	c := newCoordinator([]string{"attack"}, store, dispatcher)

	if _, err := c.Ingest(context.Background(), Record{Source: "ids", Message: "attack detected"}); err != nil {
		t.Fatalf("dispatch failure must not fail ingestion: %v", err)
	}
	if len(store.events) != 1 || len(store.detections) != 1 {
		t.Error("event and detection writes must stand despite dispatch failure")
	}
}

func TestIngestAppendOnly(t *testing.T) {
	store := &mockStore{detectionErr: errors.New("flaky")}
	dispatcher := &mockDispatcher{err: errors.New("flaky")}
	c := newCoordinator(detection.DefaultKeywords(), store, dispatcher)

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := c.Ingest(context.Background(), Record{Source: "s", Message: "sql injection attempt"}); err != nil {
			t.Fatalf("Ingest %d: %v", i, err)
		}
	}
	if len(store.events) != n {
		t.Errorf("expected exactly %d events regardless of downstream failures, got %d", n, len(store.events))
	}
}

func TestIngestTimestampAssignedAtReceipt(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{}
	c := newCoordinator(nil, store, dispatcher)

	fixed := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	if _, err := c.Ingest(context.Background(), Record{Source: "s", Message: "m"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !store.events[0].ts.Equal(fixed) {
		t.Errorf("timestamp not assigned at receipt: %v", store.events[0].ts)
	}
}
