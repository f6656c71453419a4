// Package server exposes the planner's operations surface: health, metrics
// and the progress of solver runs. It does not start solves.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/tundr-planner/internal/config"
	perrors "github.com/copyleftdev/tundr-planner/internal/errors"
	"github.com/copyleftdev/tundr-planner/internal/logging"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server serves the operations API over a run registry.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger
	runs   *Runs
}

// NewServer creates a server reporting on runs.
func NewServer(cfg *config.Config, logger Logger, runs *Runs) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.WithFields(map[string]interface{}{"component": "server"}),
		runs:   runs,
	}
}

// Handler returns the complete router: middleware, /healthz, /metrics and
// the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.logger))
	r.Use(perrors.RecoveryMiddleware(s.logger))
	if s.cfg != nil && s.cfg.HTTP.WriteTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.HTTP.WriteTimeout))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API under /api/v1.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs", s.handleList)
		r.Get("/runs/{id}", s.handleGet)
		r.Delete("/runs/{id}", s.handleCancel)
	})
}

// Close cancels every unfinished run.
func (s *Server) Close() error {
	s.runs.CancelAll()
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, s.runs.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		perrors.WriteJSON(w, http.StatusNotFound, ErrRunNotFound)
		return
	}
	s.respond(w, http.StatusOK, run)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.runs.Cancel(id)
	switch {
	case errors.Is(err, ErrRunNotFound):
		perrors.WriteJSON(w, http.StatusNotFound, err)
		return
	case errors.Is(err, ErrRunFinished):
		perrors.WriteJSON(w, http.StatusConflict, err)
		return
	}
	logging.FromContext(r.Context()).Info("Run cancellation requested", map[string]interface{}{"run_id": id})
	s.respond(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}
