// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package store

import (
	"context"
	"testing"
	"time"

	"github.com/logwarden/logwarden/internal/config"
)

// newTestDB opens an in-memory DuckDB instance.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{
		Path:         "", // in-memory
		MaxMemory:    "256MB",
		QueryTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func TestInsertAndListEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	id1, err := db.InsertEvent(ctx, "fw1", "first message", base)
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	id2, err := db.InsertEvent(ctx, "auth", "second message", base.Add(time.Minute))
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("ids must be insertion ordered: %d then %d", id1, id2)
	}

	events, err := db.ListEvents(ctx)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != id1 || events[1].ID != id2 {
		t.Errorf("events out of insertion order: %+v", events)
	}
	if events[0].Source != "fw1" || events[0].Message != "first message" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
}

func TestListEventsInWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := db.InsertEvent(ctx, "src", "msg", base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}

	// Window is [start, end).
	events, err := db.ListEventsInWindow(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ListEventsInWindow: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events in window, got %d", len(events))
	}
}

func TestInsertDetectionNullEventID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := db.InsertDetection(ctx, "Dangerous please analyze this log!", nil, now); err != nil {
		t.Fatalf("InsertDetection with nil event id: %v", err)
	}

	callerID := int64(42)
	if _, err := db.InsertDetection(ctx, "Strange access DETECTED! -> xss", &callerID, now); err != nil {
		t.Fatalf("InsertDetection with event id: %v", err)
	}

	dets, err := db.ListDetectionsInWindow(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ListDetectionsInWindow: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(dets))
	}
	if dets[0].EventID != nil {
		t.Errorf("expected null event id, got %v", *dets[0].EventID)
	}
	if dets[1].EventID == nil || *dets[1].EventID != 42 {
		t.Errorf("expected event id 42, got %+v", dets[1].EventID)
	}
}

func TestListDetectionsFullHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := db.InsertDetection(ctx, "label", nil, base.AddDate(0, 0, i)); err != nil {
			t.Fatalf("InsertDetection %d: %v", i, err)
		}
	}

	dets, err := db.ListDetections(ctx)
	if err != nil {
		t.Fatalf("ListDetections: %v", err)
	}
	if len(dets) != 3 {
		t.Fatalf("expected 3 detections, got %d", len(dets))
	}
	for i := 1; i < len(dets); i++ {
		if dets[i].ID <= dets[i-1].ID {
			t.Errorf("detections out of insertion order: %d then %d", dets[i-1].ID, dets[i].ID)
		}
	}
}

// The caller-supplied detection reference is opaque: it need not name any
// stored event.
func TestDetectionReferenceUnvalidated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	missing := int64(99999)
	if _, err := db.InsertDetection(ctx, "label", &missing, time.Now().UTC()); err != nil {
		t.Fatalf("detection referencing an unknown event must be accepted: %v", err)
	}
}

func TestConcurrentInserts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 10

	errCh := make(chan error, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for i := 0; i < perWorker; i++ {
				if _, err := db.InsertEvent(ctx, "concurrent", "msg", time.Now().UTC()); err != nil {
					errCh <- err
					return
				}
			}
			errCh <- nil
		}()
	}
	for w := 0; w < workers; w++ {
		if err := <-errCh; err != nil {
			t.Fatalf("concurrent insert: %v", err)
		}
	}

	n, err := db.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if n != workers*perWorker {
		t.Errorf("expected %d events, got %d", workers*perWorker, n)
	}
}
