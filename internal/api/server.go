// Package api serves the read-only status surface of a running pipeline:
// run progress, task states, the journal, and metrics.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smbiz1/ViMax/internal/observability"
	"github.com/smbiz1/ViMax/internal/state"
	"github.com/smbiz1/ViMax/pkg/vimaxapi"
)

type Server struct {
	store   state.Store
	metrics *observability.Registry
	log     *slog.Logger
}

func NewServer(store state.Store, metrics *observability.Registry, log *slog.Logger) *Server {
	if metrics == nil {
		metrics = observability.Default
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: store, metrics: metrics, log: log}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetricsPrometheus)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics", s.handleMetricsJSON)
		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/", s.handleRun)
			r.Get("/tasks", s.handleRunTasks)
			r.Get("/events", s.handleRunEvents)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetricsPrometheus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(s.metrics.RenderPrometheus()))
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, ok, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, vimaxapi.ErrorResponse{Error: "run not found"})
		return
	}

	resp := vimaxapi.RunStatusResponse{
		RunID:     run.ID,
		Status:    run.Status,
		ShotCount: run.ShotCount,
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
		UpdatedAt: run.UpdatedAt.Format(time.RFC3339),
	}
	for status, dst := range map[string]*int{
		state.StatusPending: &resp.Pending,
		state.StatusRunning: &resp.Running,
		state.StatusDone:    &resp.Done,
		state.StatusFailed:  &resp.Failed,
	} {
		n, err := s.store.CountTasksByStatus(r.Context(), runID, status)
		if err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		*dst = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunTasks(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	tasks, err := s.store.ListTasksByRun(r.Context(), runID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	resp := vimaxapi.RunTasksResponse{RunID: runID, Total: len(tasks)}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, vimaxapi.TaskStatus{
			TaskID:      t.TaskID,
			ShotIdx:     t.ShotIdx,
			Kind:        t.Kind,
			Status:      t.Status,
			Attempt:     t.Attempt,
			Cached:      t.Cached,
			ArtifactKey: t.ArtifactKey,
			Deps:        t.Deps,
			Error:       t.Error,
			CreatedAt:   t.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	q := state.EventQuery{
		RunID:  runID,
		Action: r.URL.Query().Get("action"),
		TaskID: r.URL.Query().Get("task"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	events, err := s.store.ListEvents(r.Context(), q)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	resp := vimaxapi.RunEventsResponse{RunID: runID}
	for _, e := range events {
		resp.Events = append(resp.Events, vimaxapi.RunEvent{
			ID:        e.ID,
			Action:    e.Action,
			TaskID:    e.TaskID,
			Details:   e.Details,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	s.log.Error("status api error", "error", err)
	writeJSON(w, code, vimaxapi.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}
