// Package http exposes a machine over a small JSON API: definition
// inspection, synchronous run execution and recorded trails, plus
// Prometheus metrics.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wovenlab/shuttle"
	"github.com/wovenlab/shuttle/internal/logging"
	"github.com/wovenlab/shuttle/pkg/adapters/file"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/ports"
	"github.com/wovenlab/shuttle/pkg/runner"
)

// Server serves one machine. Runs execute synchronously inside the
// request, steered by the server's configured agent.
type Server struct {
	machine  *shuttle.Machine
	runner   *runner.Runner
	decider  ports.Agent
	recorder ports.TrailRecorder
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithTrailRecorder enables the trail endpoints.
func WithTrailRecorder(rec ports.TrailRecorder) Option {
	return func(s *Server) {
		s.recorder = rec
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server for the machine, using the given agent for
// every run started over HTTP.
func NewServer(m *shuttle.Machine, decider ports.Agent, opts ...Option) *Server {
	s := &Server{
		machine: m,
		decider: decider,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = runner.New(m, runner.WithLogger(s.logger))
	return s
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/definition", s.definition)
	r.Post("/runs", s.startRun)
	r.Get("/runs/{runID}/trail", s.trail)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "machine": s.machine.Name})
}

func (s *Server) definition(w http.ResponseWriter, r *http.Request) {
	g, err := s.machine.Definition(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, file.FromGraph(s.machine.Name, g))
}

type startRunRequest struct {
	RunID string `json:"run_id,omitempty"`
}

type runResponse struct {
	RunID     string           `json:"run_id"`
	Status    domain.RunStatus `json:"status"`
	FinalNode string           `json:"final_node"`
	Steps     int              `json:"steps"`
	Failure   string           `json:"failure,omitempty"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var opts []shuttle.RunOption
	if req.RunID != "" {
		opts = append(opts, shuttle.WithRunID(req.RunID))
	}

	final, err := s.runner.Run(r.Context(), s.decider, opts...)
	if err != nil && final == nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := runResponse{
		RunID:     final.RunID,
		Status:    final.Status,
		FinalNode: final.CurrentNode,
		Steps:     final.StepCount,
		Failure:   final.Failure,
	}
	status := http.StatusOK
	if final.Status == domain.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) trail(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.writeError(w, http.StatusNotFound, errors.New("trail recording is not enabled"))
		return
	}
	runID := chi.URLParam(r, "runID")
	trail, err := s.recorder.Trail(r.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "trail": trail})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("request failed", "status", status, "err", err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
