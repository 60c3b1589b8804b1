// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/logwarden/logwarden/internal/detection"
	"github.com/logwarden/logwarden/internal/ingest"
	"github.com/logwarden/logwarden/internal/logging"
	"github.com/logwarden/logwarden/internal/models"
)

// maxRequestBodySize limits event submissions to 1 MiB.
const maxRequestBodySize = 1 << 20

// Ingestor accepts inbound event records.
type Ingestor interface {
	Ingest(ctx context.Context, rec ingest.Record) (*ingest.Result, error)
}

// EventReader is the read-side slice of the store the handlers need.
type EventReader interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
	ListDetections(ctx context.Context) ([]models.Detection, error)
	ListDetectionsInWindow(ctx context.Context, start, end time.Time) ([]models.Detection, error)
	Ping(ctx context.Context) error
}

// Aggregator produces the hourly failure histogram.
type Aggregator interface {
	FailedByHour(ctx context.Context, start, end time.Time) (map[int]int, error)
}

// Handlers holds the HTTP handlers for all endpoints.
type Handlers struct {
	ingestor   Ingestor
	reader     EventReader
	aggregator Aggregator
	classifier *detection.Classifier
	startTime  time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(ingestor Ingestor, reader EventReader, aggregator Aggregator, classifier *detection.Classifier) *Handlers {
	return &Handlers{
		ingestor:   ingestor,
		reader:     reader,
		aggregator: aggregator,
		classifier: classifier,
		startTime:  time.Now(),
	}
}

// ingestAccepted is the payload for an accepted event submission.
type ingestAccepted struct {
	StoreID    int64 `json:"store_id"`
	Detections int   `json:"detections"`
	Triggered  int   `json:"triggered"`
}

// CollectEvent handles POST /api/v1/events. The event is validated,
// persisted and classified synchronously; response actions run
// asynchronously, hence 202 rather than 201.
func (h *Handlers) CollectEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var rec ingest.Record
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), rec)
	switch {
	case errors.Is(err, ingest.ErrMalformedEvent):
		rw.MalformedEvent(err.Error())
		return
	case errors.Is(err, ingest.ErrStoreUnavailable):
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("event store rejected write")
		rw.StoreUnavailable("event could not be recorded")
		return
	case err != nil:
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("ingestion failed")
		rw.InternalError("ingestion failed")
		return
	}

	triggered := 0
	for _, cand := range result.Candidates {
		if cand.Triggering {
			triggered++
		}
	}

	rw.Accepted(ingestAccepted{
		StoreID:    result.StoreID,
		Detections: len(result.Candidates),
		Triggered:  triggered,
	})
}

// eventView is one event row with its advisory classification labels.
// Labels are recomputed against the current rule set on every read, so a
// rule change reclassifies history without touching stored records.
type eventView struct {
	models.Event
	Labels []string `json:"labels"`
}

// ListEvents handles GET /api/v1/events.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	events, err := h.reader.ListEvents(r.Context())
	if err != nil {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("failed to list events")
		rw.InternalError("failed to list events")
		return
	}

	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		candidates := h.classifier.Classify(ev.Message)
		labels := make([]string, 0, len(candidates))
		for _, cand := range candidates {
			labels = append(labels, cand.RuleLabel)
		}
		views = append(views, eventView{Event: ev, Labels: labels})
	}

	rw.SuccessWithCount(views, len(views))
}

// ListDetections handles GET /api/v1/detections. Optional start and end
// query parameters (RFC 3339) select a half-open window; omitting both
// returns the full history.
func (h *Handlers) ListDetections(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	start, end, err := parseWindow(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	var detections []models.Detection
	if start.IsZero() && end.IsZero() {
		detections, err = h.reader.ListDetections(r.Context())
	} else {
		detections, err = h.reader.ListDetectionsInWindow(r.Context(), start, end)
	}
	if err != nil {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("failed to list detections")
		rw.InternalError("failed to list detections")
		return
	}

	if detections == nil {
		detections = []models.Detection{}
	}
	rw.SuccessWithCount(detections, len(detections))
}

// hourlyFailures is the payload for the failure histogram endpoint.
type hourlyFailures struct {
	Hours map[int]int `json:"hours"`
}

// HourlyFailures handles GET /api/v1/stats/hourly-failures. Optional start
// and end query parameters narrow the window; the histogram is sparse, hours
// without failures are omitted.
func (h *Handlers) HourlyFailures(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	start, end, err := parseWindow(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	counts, err := h.aggregator.FailedByHour(r.Context(), start, end)
	if err != nil {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("failure aggregation failed")
		rw.InternalError("failure aggregation failed")
		return
	}

	rw.Success(hourlyFailures{Hours: counts})
}

// HealthLive handles GET /api/v1/health/live. Always succeeds while the
// process is serving.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]interface{}{
		"status":         "alive",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// HealthReady handles GET /api/v1/health/ready. Ready means the event store
// answers a ping; without it ingestion cannot accept anything.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.reader.Ping(r.Context()); err != nil {
		logger := logging.FromContext(r.Context())
		logger.Warn().Err(err).Msg("readiness probe failed")
		rw.ServiceUnavailable("event store unreachable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

// parseWindow reads optional RFC 3339 start and end query parameters.
// Providing one without the other is an error.
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	startRaw := r.URL.Query().Get("start")
	endRaw := r.URL.Query().Get("end")

	if startRaw == "" && endRaw == "" {
		return time.Time{}, time.Time{}, nil
	}
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, errors.New("start and end must be provided together")
	}

	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start must be RFC 3339")
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end must be RFC 3339")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("end must be after start")
	}
	return start, end, nil
}
