// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package respond

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/logwarden/logwarden/internal/config"
)

// WebhookResponder POSTs alerts to an external endpoint (a SOAR intake, a
// firewall controller, a chat hook). Deliveries are rate limited and guarded
// by a circuit breaker so a dead endpoint cannot pile up blocked goroutines.
type WebhookResponder struct {
	url     string
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*http.Response]

	mu      sync.RWMutex
	enabled bool
}

// WebhookPayload is the JSON body sent to the endpoint.
type WebhookPayload struct {
	Alert     *Alert    `json:"alert"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// NewWebhookResponder creates a webhook responder from config.
func NewWebhookResponder(cfg config.WebhookConfig) *WebhookResponder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ratePerSecond := cfg.RatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = 2
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	failureThreshold := cfg.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "webhook-responder",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
	})

	return &WebhookResponder{
		url:     cfg.URL,
		headers: headers,
		enabled: cfg.Enabled,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		breaker: breaker,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the responder name.
func (r *WebhookResponder) Name() string { return "webhook" }

// Enabled reports whether this responder is enabled and configured.
func (r *WebhookResponder) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled && r.url != ""
}

// SetEnabled enables or disables the responder.
func (r *WebhookResponder) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// Send delivers the alert to the webhook endpoint.
func (r *WebhookResponder) Send(ctx context.Context, alert *Alert) error {
	if !r.Enabled() {
		return nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit wait: %w", err)
	}

	payload := WebhookPayload{
		Alert:     alert,
		EventType: "response_action",
		Timestamp: time.Now().UTC(),
		Source:    "logwarden",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	r.mu.RLock()
	url := r.url
	headers := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		headers[k] = v
	}
	r.mu.RUnlock()

	_, err = r.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return resp, nil
	})
	return err
}
