// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the control plane over HTTP/JSON.
package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/yanagi/internal/api/middleware"
	"github.com/ManuGH/yanagi/internal/control"
	"github.com/go-chi/chi/v5"
)

// SchedulerService is the job inspection and tracking surface.
type SchedulerService interface {
	GetJobs(ctx context.Context) control.JobList
	TrackTid(ctx context.Context, tid int) (control.TrackedTitle, error)
	ListTracked(ctx context.Context) (control.TrackedList, error)
}

// SystemService is the engine steering surface.
type SystemService interface {
	Stop(ctx context.Context) control.Ack
	Reload(ctx context.Context) control.Ack
	Refresh(ctx context.Context) (control.RefreshResult, error)
}

// Probes serves liveness and readiness.
type Probes interface {
	ServeHealth(w http.ResponseWriter, r *http.Request)
	ServeReady(w http.ResponseWriter, r *http.Request)
}

// Options configures the router.
type Options struct {
	// RefreshRateLimit is refreshes per minute per client IP; 0 disables it.
	RefreshRateLimit int
	EnableMetrics    bool
	TracingService   string
}

// Server routes control plane requests to the services.
type Server struct {
	scheduler SchedulerService
	system    SystemService
	probes    Probes
	opts      Options
}

// New creates the API server.
func New(scheduler SchedulerService, system SystemService, probes Probes, opts Options) *Server {
	return &Server{scheduler: scheduler, system: system, probes: probes, opts: opts}
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  s.opts.EnableMetrics,
		TracingService: s.opts.TracingService,
		EnableLogging:  true,
	})

	if s.probes != nil {
		r.Get("/healthz", s.probes.ServeHealth)
		r.Get("/readyz", s.probes.ServeReady)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/jobs", s.handleGetJobs)
			r.Post("/track", s.handleTrackTid)
			r.Get("/tracked", s.handleListTracked)
		})
		r.Route("/system", func(r chi.Router) {
			r.Post("/stop", s.handleStop)
			r.Post("/reload", s.handleReload)
			r.With(middleware.RefreshRateLimit(s.opts.RefreshRateLimit)).Post("/refresh", s.handleRefresh)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	return r
}
