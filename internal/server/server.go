// Package server provides the HTTP API for autocat.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/config"
	"github.com/hyperjump/autocat/internal/engine"
	"github.com/hyperjump/autocat/internal/metrics"
)

// Server is the HTTP server for the autocat API.
type Server struct {
	engine *engine.Engine
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server. cfg supplies the listen address and the paths reported by
// the status endpoint; tuning parameters are read from the engine on every request.
func NewServer(eng *engine.Engine, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: eng, config: cfg, logger: logger}
}

// Router returns the API handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))
	r.Use(instrument)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/items/{id}", func(r chi.Router) {
			r.Post("/classify", s.handleClassifyItem)
			r.Post("/embed", s.handleEmbedItem)
			r.Put("/category", s.handleSetCategory)
			r.Put("/lock", s.handleLock(true))
			r.Delete("/lock", s.handleLock(false))
		})
		r.Post("/maintenance/reclassify", s.handleReclassify)
		r.Get("/maintenance/config", s.handleConfig)
		r.Get("/prototypes", s.handlePrototypes)
		r.Post("/categories/embeddings", s.handleCategoryEmbeddings)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// instrument records request counts and latency per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, status, time.Since(start))
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
