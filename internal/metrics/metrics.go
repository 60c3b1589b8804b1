// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

// Package metrics exposes Prometheus instrumentation for the detection
// pipeline: ingestion throughput, detection counts, responder dispatch
// outcomes, store query performance and HTTP endpoint latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics

	EventsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logwarden_events_ingested_total",
			Help: "Total number of events durably recorded",
		},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logwarden_events_rejected_total",
			Help: "Total number of events rejected before persistence",
		},
		[]string{"reason"}, // "malformed", "store_unavailable"
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logwarden_ingest_duration_seconds",
			Help:    "Duration of ingestion calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Detection metrics

	DetectionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logwarden_detections_recorded_total",
			Help: "Total number of detection records persisted",
		},
		[]string{"kind"}, // "keyword", "generic"
	)

	DetectionWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logwarden_detection_write_failures_total",
			Help: "Total number of detection writes that failed after a successful event write",
		},
	)

	// Responder metrics

	ResponderDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logwarden_responder_dispatches_total",
			Help: "Total number of alerts handed to responders",
		},
		[]string{"responder"},
	)

	ResponderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logwarden_responder_failures_total",
			Help: "Total number of responder deliveries that failed or timed out",
		},
		[]string{"responder"},
	)

	// Store metrics

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logwarden_store_query_duration_seconds",
			Help:    "Duration of event store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logwarden_store_query_errors_total",
			Help: "Total number of event store query errors",
		},
		[]string{"operation", "table"},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logwarden_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logwarden_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveStoreQuery records one store query observation.
func ObserveStoreQuery(operation, table string, start time.Time, err error) {
	StoreQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// ObserveAPIRequest records one HTTP request observation.
func ObserveAPIRequest(method, path string, status int, start time.Time) {
	APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
}
