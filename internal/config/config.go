// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

// Package config loads and validates the Logwarden configuration.
//
// Configuration is layered with koanf: struct defaults first, then an
// optional YAML file, then environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/logwarden/logwarden/internal/detection"
)

// Config is the root configuration for the Logwarden server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Detection DetectionConfig `koanf:"detection"`
	Responder ResponderConfig `koanf:"responder"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is the per-client request budget per minute. 0 disables
	// rate limiting.
	RateLimit int `koanf:"rate_limit"`

	// CORSOrigins lists allowed CORS origins. Empty means same-origin only.
	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig configures the DuckDB event store.
type DatabaseConfig struct {
	// Path is the database file path. An empty path opens an in-memory
	// database (used by tests).
	Path string `koanf:"path"`

	MaxMemory string `koanf:"max_memory"`

	// Threads caps DuckDB worker threads. 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`

	// QueryTimeout bounds every store call so ingestion cannot block
	// indefinitely under store contention.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// DetectionConfig configures the rule set.
type DetectionConfig struct {
	// Keywords is the ordered suspicious keyword list. Order is significant:
	// it fixes the order detections are reported in.
	Keywords []string `koanf:"keywords"`
}

// ResponderConfig configures alert dispatch.
type ResponderConfig struct {
	// DispatchTimeout bounds a single responder delivery.
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`

	// BufferSize is the dispatch queue depth before publishers block.
	BufferSize int `koanf:"buffer_size"`

	Log     LogResponderConfig `koanf:"log"`
	Webhook WebhookConfig      `koanf:"webhook"`
	NATS    NATSConfig         `koanf:"nats"`
}

// LogResponderConfig configures the structured-log responder.
type LogResponderConfig struct {
	Enabled bool `koanf:"enabled"`
}

// WebhookConfig configures the webhook responder.
type WebhookConfig struct {
	Enabled bool              `koanf:"enabled"`
	URL     string            `koanf:"url"`
	Headers map[string]string `koanf:"headers"`

	// RatePerSecond and Burst feed the delivery rate limiter.
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
	Timeout       time.Duration `koanf:"timeout"`

	// FailureThreshold is the consecutive-failure count that opens the
	// circuit breaker.
	FailureThreshold uint32        `koanf:"failure_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

// NATSConfig configures the NATS alert bus responder.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Subject       string        `koanf:"subject"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`

	// JetStream enables publishing through JetStream with message-id
	// deduplication.
	JetStream bool `koanf:"jetstream"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            7777,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       600,
			CORSOrigins:     []string{},
		},
		Database: DatabaseConfig{
			Path:         "/data/logwarden.duckdb",
			MaxMemory:    "1GB",
			Threads:      0,
			QueryTimeout: 5 * time.Second,
		},
		Detection: DetectionConfig{
			Keywords: detection.DefaultKeywords(),
		},
		Responder: ResponderConfig{
			DispatchTimeout: 5 * time.Second,
			BufferSize:      256,
			Log:             LogResponderConfig{Enabled: true},
			Webhook: WebhookConfig{
				Enabled:          false,
				URL:              "",
				Headers:          map[string]string{},
				RatePerSecond:    2,
				Burst:            4,
				Timeout:          10 * time.Second,
				FailureThreshold: 5,
				BreakerCooldown:  30 * time.Second,
			},
			NATS: NATSConfig{
				Enabled:       false,
				URL:           "nats://127.0.0.1:4222",
				Subject:       "logwarden.alerts",
				MaxReconnects: -1,
				ReconnectWait: 2 * time.Second,
				JetStream:     false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be positive, got %s", c.Database.QueryTimeout)
	}
	if c.Responder.DispatchTimeout <= 0 {
		return fmt.Errorf("responder.dispatch_timeout must be positive, got %s", c.Responder.DispatchTimeout)
	}
	if c.Responder.BufferSize < 1 {
		return fmt.Errorf("responder.buffer_size must be at least 1, got %d", c.Responder.BufferSize)
	}
	if c.Responder.Webhook.Enabled && c.Responder.Webhook.URL == "" {
		return fmt.Errorf("responder.webhook.url is required when the webhook responder is enabled")
	}
	if c.Responder.NATS.Enabled {
		if c.Responder.NATS.URL == "" {
			return fmt.Errorf("responder.nats.url is required when the NATS responder is enabled")
		}
		if c.Responder.NATS.Subject == "" {
			return fmt.Errorf("responder.nats.subject is required when the NATS responder is enabled")
		}
	}
	return nil
}
