// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/logwarden/logwarden/internal/config"
	"github.com/logwarden/logwarden/internal/detection"
	"github.com/logwarden/logwarden/internal/ingest"
	"github.com/logwarden/logwarden/internal/models"
)

// mockIngestor implements Ingestor.
type mockIngestor struct {
	result *ingest.Result
	err    error

	gotRecord ingest.Record
}

func (m *mockIngestor) Ingest(_ context.Context, rec ingest.Record) (*ingest.Result, error) {
	m.gotRecord = rec
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockReader implements EventReader.
type mockReader struct {
	events     []models.Event
	detections []models.Detection
	windowed   []models.Detection
	listErr    error
	pingErr    error

	windowCalls int
}

func (m *mockReader) ListEvents(context.Context) ([]models.Event, error) {
	return m.events, m.listErr
}

func (m *mockReader) ListDetections(context.Context) ([]models.Detection, error) {
	return m.detections, m.listErr
}

func (m *mockReader) ListDetectionsInWindow(_ context.Context, _, _ time.Time) ([]models.Detection, error) {
	m.windowCalls++
	return m.windowed, m.listErr
}

func (m *mockReader) Ping(context.Context) error {
	return m.pingErr
}

// mockAggregator implements Aggregator.
type mockAggregator struct {
	counts map[int]int
	err    error
}

func (m *mockAggregator) FailedByHour(context.Context, time.Time, time.Time) (map[int]int, error) {
	return m.counts, m.err
}

type testDeps struct {
	ingestor   *mockIngestor
	reader     *mockReader
	aggregator *mockAggregator
}

func newTestServer(t *testing.T, deps testDeps) *httptest.Server {
	t.Helper()

	if deps.ingestor == nil {
		deps.ingestor = &mockIngestor{result: &ingest.Result{StoreID: 1}}
	}
	if deps.reader == nil {
		deps.reader = &mockReader{}
	}
	if deps.aggregator == nil {
		deps.aggregator = &mockAggregator{counts: map[int]int{}}
	}

	classifier := detection.NewClassifier(detection.NewRuleSet(detection.DefaultKeywords()))
	handlers := NewHandlers(deps.ingestor, deps.reader, deps.aggregator, classifier)
	router := NewRouter(&config.ServerConfig{}, handlers)

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func decodeResponse(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer resp.Body.Close()

	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestCollectEventAccepted(t *testing.T) {
	ingestor := &mockIngestor{result: &ingest.Result{
		StoreID: 7,
		Candidates: []detection.Candidate{
			{RuleLabel: "Strange access DETECTED! -> malware", Triggering: true},
		},
	}}
	srv := newTestServer(t, testDeps{ingestor: ingestor})

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json",
		strings.NewReader(`{"id": 42, "source": "edr", "message": "malware beacon"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	body := decodeResponse(t, resp)
	if !body.Success {
		t.Error("expected success envelope")
	}
	data := body.Data.(map[string]interface{})
	if data["store_id"].(float64) != 7 {
		t.Errorf("store_id = %v, want 7", data["store_id"])
	}
	if data["triggered"].(float64) != 1 {
		t.Errorf("triggered = %v, want 1", data["triggered"])
	}
	if ingestor.gotRecord.ID == nil || *ingestor.gotRecord.ID != 42 {
		t.Errorf("caller id not decoded: %+v", ingestor.gotRecord.ID)
	}
}

func TestCollectEventInvalidJSON(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json",
		strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body.Error == nil || body.Error.Code != ErrCodeBadRequest {
		t.Errorf("unexpected error payload %+v", body.Error)
	}
}

func TestCollectEventMalformed(t *testing.T) {
	ingestor := &mockIngestor{err: ingest.ErrMalformedEvent}
	srv := newTestServer(t, testDeps{ingestor: ingestor})

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json",
		strings.NewReader(`{"source": "fw1"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body.Error == nil || body.Error.Code != ErrCodeMalformedEvent {
		t.Errorf("unexpected error payload %+v", body.Error)
	}
}

func TestCollectEventStoreUnavailable(t *testing.T) {
	ingestor := &mockIngestor{err: ingest.ErrStoreUnavailable}
	srv := newTestServer(t, testDeps{ingestor: ingestor})

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json",
		strings.NewReader(`{"source": "fw1", "message": "m"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body.Error == nil || body.Error.Code != ErrCodeStoreUnavailable {
		t.Errorf("unexpected error payload %+v", body.Error)
	}
}

func TestListEventsAdvisoryLabels(t *testing.T) {
	reader := &mockReader{events: []models.Event{
		{ID: 1, Source: "db", Message: "union select attempt", Timestamp: time.Now().UTC()},
		{ID: 2, Source: "app", Message: "all quiet", Timestamp: time.Now().UTC()},
	}}
	srv := newTestServer(t, testDeps{reader: reader})

	resp, err := http.Get(srv.URL + "/api/v1/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeResponse(t, resp)
	views := body.Data.([]interface{})
	if len(views) != 2 {
		t.Fatalf("expected 2 events, got %d", len(views))
	}
	first := views[0].(map[string]interface{})
	labels := first["labels"].([]interface{})
	if len(labels) != 1 || labels[0] != "Strange access DETECTED! -> union select" {
		t.Errorf("unexpected labels %v", labels)
	}
	second := views[1].(map[string]interface{})
	if len(second["labels"].([]interface{})) != 0 {
		t.Errorf("clean event must carry no labels: %v", second["labels"])
	}
	if body.Meta == nil || body.Meta.Count != 2 {
		t.Errorf("unexpected meta %+v", body.Meta)
	}
}

func TestListDetectionsFullHistory(t *testing.T) {
	id := int64(9)
	reader := &mockReader{detections: []models.Detection{
		{ID: 1, RuleLabel: "Dangerous please analyze this log!", EventID: &id},
	}}
	srv := newTestServer(t, testDeps{reader: reader})

	resp, err := http.Get(srv.URL + "/api/v1/detections")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body.Meta == nil || body.Meta.Count != 1 {
		t.Errorf("unexpected meta %+v", body.Meta)
	}
	if reader.windowCalls != 0 {
		t.Error("no window params must read the full history")
	}
}

func TestListDetectionsWindowed(t *testing.T) {
	reader := &mockReader{}
	srv := newTestServer(t, testDeps{reader: reader})

	resp, err := http.Get(srv.URL +
		"/api/v1/detections?start=2026-08-29T00:00:00Z&end=2026-08-30T00:00:00Z")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
	if reader.windowCalls != 1 {
		t.Errorf("windowCalls = %d, want 1", reader.windowCalls)
	}
}

func TestListDetectionsHalfWindowRejected(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp, err := http.Get(srv.URL + "/api/v1/detections?start=2026-08-29T00:00:00Z")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHourlyFailures(t *testing.T) {
	agg := &mockAggregator{counts: map[int]int{9: 2, 14: 1}}
	srv := newTestServer(t, testDeps{aggregator: agg})

	resp, err := http.Get(srv.URL + "/api/v1/stats/hourly-failures")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	hours := body.Data.(map[string]interface{})["hours"].(map[string]interface{})
	if hours["9"].(float64) != 2 || hours["14"].(float64) != 1 {
		t.Errorf("unexpected histogram %v", hours)
	}
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp, err := http.Get(srv.URL + "/api/v1/health/live")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHealthReadyStoreDown(t *testing.T) {
	reader := &mockReader{pingErr: errors.New("store offline")}
	srv := newTestServer(t, testDeps{reader: reader})

	resp, err := http.Get(srv.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	if body.Error == nil || body.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("unexpected error payload %+v", body.Error)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp, err := http.Get(srv.URL + "/api/v1/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	want := map[string]string{
		"Content-Security-Policy": "default-src 'self'",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
	}
	for header, value := range want {
		if got := resp.Header.Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header must be set")
	}
}
