// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

// Package models defines the persisted record shapes shared across Logwarden.
package models

import "time"

// Event is one ingested log record. Events are created once at ingestion and
// are immutable thereafter; retention is an operator concern, the pipeline
// never deletes them.
type Event struct {
	// ID is the store's own insertion-ordered key. The caller-supplied
	// correlation id is not persisted on the event; it flows verbatim into
	// any detections the event produces.
	ID int64 `json:"id"`

	// Source is a free-text origin label (e.g. "fw1", "auth").
	Source string `json:"source"`

	// Message is the free-text payload. Detection rules evaluate only this
	// field.
	Message string `json:"message"`

	// Timestamp is assigned by the ingestion coordinator at receipt, not by
	// the caller.
	Timestamp time.Time `json:"timestamp"`
}

// Detection is one record of a rule firing against an event. Detections are
// append-only and never updated.
type Detection struct {
	// ID is the store's own insertion-ordered key.
	ID int64 `json:"id"`

	// RuleLabel is the label of the rule that fired, or the generic fallback
	// label.
	RuleLabel string `json:"rule_label"`

	// EventID is the caller-supplied id of the originating event, passed
	// through verbatim. May be null.
	EventID *int64 `json:"event_id"`

	// Timestamp is the time of detection, distinct from the event timestamp.
	Timestamp time.Time `json:"timestamp"`
}
