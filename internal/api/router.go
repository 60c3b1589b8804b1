// Logwarden - Security Event Detection and Response Pipeline
// Copyright 2026 The Logwarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logwarden/logwarden

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/logwarden/logwarden/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the HTTP routing tree.
type Router struct {
	cfg      *config.ServerConfig
	handlers *Handlers
}

// NewRouter creates a router over the given handler set.
func NewRouter(cfg *config.ServerConfig, handlers *Handlers) *Router {
	return &Router{cfg: cfg, handlers: handlers}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())
	r.Use(SecurityHeaders())
	r.Use(router.corsMiddleware())

	// Health endpoints stay outside the rate limit so probes never starve.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handlers.HealthLive)
		r.Get("/ready", router.handlers.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		if router.cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(router.cfg.RateLimit, time.Minute))
		}
		r.Use(PrometheusMetrics())

		r.Post("/events", router.handlers.CollectEvent)
		r.Get("/events", router.handlers.ListEvents)
		r.Get("/detections", router.handlers.ListDetections)
		r.Get("/stats/hourly-failures", router.handlers.HourlyFailures)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (router *Router) corsMiddleware() func(http.Handler) http.Handler {
	origins := router.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{} // same-origin only
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}
