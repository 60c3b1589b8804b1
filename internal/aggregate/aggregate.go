// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

// Package aggregate produces the hourly failure counts used for reporting.
//
// Aggregation is a pure read-side reduction over the event history: it never
// mutates state and never consults detection records, so running it twice
// over the same history yields identical results.
package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/logwarden/logwarden/internal/models"
)

// failureIndicator marks a message as reporting a failure.
const failureIndicator = "failed"

// EventReader is the read-side slice of the event store the aggregator
// needs.
type EventReader interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	ListEventsInWindow(ctx context.Context, start, end time.Time) ([]models.Event, error)
}

// ByHour reduces events to a sparse hour-of-day histogram. Only events whose
// message contains "failed" (case-insensitive) are counted; hours with no
// occurrences are omitted.
func ByHour(events []models.Event) map[int]int {
	counts := make(map[int]int)
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Message), failureIndicator) {
			counts[ev.Timestamp.Hour()]++
		}
	}
	return counts
}

// Service reads events from the store and reduces them on demand.
type Service struct {
	reader EventReader
}

// NewService creates an aggregation service over the given reader.
func NewService(reader EventReader) *Service {
	return &Service{reader: reader}
}

// FailedByHour returns the sparse hour histogram for the given window. Zero
// start and end times select the full event history.
func (s *Service) FailedByHour(ctx context.Context, start, end time.Time) (map[int]int, error) {
	var (
		events []models.Event
		err    error
	)
	if start.IsZero() && end.IsZero() {
		events, err = s.reader.ListEvents(ctx)
	} else {
		events, err = s.reader.ListEventsInWindow(ctx, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("read events for aggregation: %w", err)
	}
	return ByHour(events), nil
}
