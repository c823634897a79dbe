// Package http exposes a workflow over HTTP: trigger runs, inspect run
// records, and visualize the graph.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Runner is the engine surface the server needs: execute a run against a
// seed context and expose the definition for inspection.
type Runner interface {
	Run(ctx context.Context, seed domain.Context) (*domain.RunRecord, error)
	Graph() *domain.Graph
}

// Server wires a runner and a run store into an HTTP handler.
type Server struct {
	runner  Runner
	store   ports.RunStore
	metrics http.Handler
	logger  *slog.Logger
}

type Option func(*Server)

// WithMetricsHandler mounts a handler at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for a workflow.
func NewHandler(runner Runner, store ports.RunStore, opts ...Option) http.Handler {
	s := &Server{runner: runner, store: store, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Post("/runs", s.createRun)
	r.Get("/runs", s.listRuns)
	r.Get("/runs/{id}", s.getRun)
	r.Get("/graph", s.getGraph)
	r.Get("/graph/mermaid", s.getGraphMermaid)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.ServeHTTP)
	}
	return r
}

type createRunRequest struct {
	Context domain.Context `json:"context"`
}

// createRun handles POST /runs: executes the workflow synchronously with
// the request's seed context and returns the finished record.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.runner.Run(r.Context(), body.Context)
	if err != nil {
		// The record still carries the failed run's identity and error.
		if record != nil {
			s.writeJSON(w, http.StatusUnprocessableEntity, record)
			return
		}
		http.Error(w, fmt.Sprintf("Run error: %v", err), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusCreated, record)
}

// getRun handles GET /runs/{id}.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := s.store.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Load error: %v", err), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

// listRuns handles GET /runs.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": ids})
}

// getGraph handles GET /graph.
func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.Graph())
}

// getGraphMermaid handles GET /graph/mermaid.
func (s *Server) getGraphMermaid(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(s.runner.Graph()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}
