// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/logwarden/logwarden/internal/metrics"
	"github.com/logwarden/logwarden/internal/models"
)

// InsertDetection appends one detection record. eventID is the
// caller-supplied id of the originating event, stored opaque and unvalidated;
// nil is stored as NULL.
func (db *DB) InsertDetection(ctx context.Context, ruleLabel string, eventID *int64, ts time.Time) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var ref sql.NullInt64
	if eventID != nil {
		ref = sql.NullInt64{Int64: *eventID, Valid: true}
	}

	start := time.Now()
	var id int64
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO detections (rule_label, event_id, ts) VALUES (?, ?, ?) RETURNING id`,
		ruleLabel, ref, ts,
	).Scan(&id)
	metrics.ObserveStoreQuery("insert", "detections", start, err)
	if err != nil {
		return 0, fmt.Errorf("insert detection: %w", err)
	}
	return id, nil
}

// ListDetectionsInWindow returns detections with start <= ts < end, in
// insertion order.
func (db *DB) ListDetectionsInWindow(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Detection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, rule_label, event_id, ts FROM detections WHERE ts >= ? AND ts < ? ORDER BY id ASC`,
		windowStart, windowEnd)
	metrics.ObserveStoreQuery("select_window", "detections", start, err)
	if err != nil {
		return nil, fmt.Errorf("list detections in window: %w", err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

// ListDetections returns the full detection history in insertion order.
func (db *DB) ListDetections(ctx context.Context) ([]models.Detection, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, rule_label, event_id, ts FROM detections ORDER BY id ASC`)
	metrics.ObserveStoreQuery("select_all", "detections", start, err)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

func scanDetections(rows *sql.Rows) ([]models.Detection, error) {
	var detections []models.Detection
	for rows.Next() {
		var (
			det models.Detection
			ref sql.NullInt64
		)
		if err := rows.Scan(&det.ID, &det.RuleLabel, &ref, &det.Timestamp); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		if ref.Valid {
			id := ref.Int64
			det.EventID = &id
		}
		detections = append(detections, det)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return detections, nil
}

// CountDetections returns the number of stored detections.
func (db *DB) CountDetections(ctx context.Context) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	var n int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`).Scan(&n)
	metrics.ObserveStoreQuery("count", "detections", start, err)
	if err != nil {
		return 0, fmt.Errorf("count detections: %w", err)
	}
	return n, nil
}
