// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/logwarden/logwarden/internal/metrics"
	"github.com/logwarden/logwarden/internal/models"
)

// InsertEvent appends one raw event and returns the store's own id.
func (db *DB) InsertEvent(ctx context.Context, source, message string, ts time.Time) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	var id int64
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO events (source, message, ts) VALUES (?, ?, ?) RETURNING id`,
		source, message, ts,
	).Scan(&id)
	metrics.ObserveStoreQuery("insert", "events", start, err)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// ListEvents returns every event in insertion order.
func (db *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, source, message, ts FROM events ORDER BY id ASC`)
	metrics.ObserveStoreQuery("select", "events", start, err)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListEventsInWindow returns events with start <= ts < end, in insertion
// order.
func (db *DB) ListEventsInWindow(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Event, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, source, message, ts FROM events WHERE ts >= ? AND ts < ? ORDER BY id ASC`,
		windowStart, windowEnd)
	metrics.ObserveStoreQuery("select_window", "events", start, err)
	if err != nil {
		return nil, fmt.Errorf("list events in window: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountEvents returns the number of stored events.
func (db *DB) CountEvents(ctx context.Context) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	metrics.ObserveStoreQuery("count", "events", start, err)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows rowScanner) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Source, &ev.Message, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
