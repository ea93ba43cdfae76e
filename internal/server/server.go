// Package server exposes the read API, the inbound webhook and the
// operational endpoints over one chi router.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"trade-signal-lab/internal/corpus"
	"trade-signal-lab/internal/coverage"
	"trade-signal-lab/internal/lifecycle"
	"trade-signal-lab/internal/observability"
	"trade-signal-lab/internal/storage"
)

// Options holds the dependencies and listener settings for the server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Lifecycle  *lifecycle.Store
	Excursions storage.ExcursionStore
	Corpus     *corpus.Service
	Coverage   *coverage.Monitor
	Webhook    http.Handler
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

// Server is the HTTP front of the engine.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	lifecycle  *lifecycle.Store
	excursions storage.ExcursionStore
	corpus     *corpus.Service
	coverage   *coverage.Monitor
	metrics    *observability.Metrics
}

// New creates a new HTTP server.
func New(opts Options) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        opts.Logger.With().Str("component", "server").Logger(),
		lifecycle:  opts.Lifecycle,
		excursions: opts.Excursions,
		corpus:     opts.Corpus,
		coverage:   opts.Coverage,
		metrics:    opts.Metrics,
	}

	s.setupMiddleware()
	s.setupRoutes(opts.Webhook)

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes(webhook http.Handler) {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", observability.Handler())

	if webhook != nil {
		s.router.Post("/webhook/events", webhook.ServeHTTP)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/lifecycle/summary", s.handleSummary)
		r.Route("/history", func(r chi.Router) {
			r.Get("/point", s.handleHistoryPoint)
			r.Get("/range", s.handleHistoryRange)
		})
		r.Route("/quality", func(r chi.Router) {
			r.Get("/determinism", s.handleQualityDeterminism)
			r.Get("/alignment", s.handleQualityAlignment)
			r.Get("/coverage", s.handleQualityCoverage)
		})
		r.Get("/coverage/health", s.handleCoverageHealth)
	})
}

// loggingMiddleware logs each request with latency.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	})
}

// Router exposes the router, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}
