// Package server exposes the orchestrator over HTTP. Handlers are thin: they
// decode JSON, call the workflow service or registry, and map sentinel errors
// to status codes.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harrison/foreman/internal/models"
	"github.com/harrison/foreman/internal/registry"
	"github.com/harrison/foreman/internal/store"
	"github.com/harrison/foreman/internal/workflow"
)

// CreateWorkflowRequest is the body of POST /api/workflows.
type CreateWorkflowRequest struct {
	WorkflowType string         `json:"workflow_type"`
	Parameters   map[string]any `json:"parameters"`
	Priority     int            `json:"priority"`
}

// CreateWorkflowResponse is the reply to a successful workflow creation.
type CreateWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
}

// AgentsResponse is the reply to GET /api/agents.
type AgentsResponse struct {
	Agents []models.Agent          `json:"agents"`
	Counts registry.CountsSnapshot `json:"counts"`
}

// ErrorResponse is the error envelope for all non-2xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server wires the HTTP API to the orchestrator components.
type Server struct {
	workflows *workflow.Service
	registry  *registry.Registry
	store     *store.TaskStore
}

// New creates a Server.
func New(wf *workflow.Service, reg *registry.Registry, ts *store.TaskStore) *Server {
	return &Server{workflows: wf, registry: reg, store: ts}
}

// Handler builds the chi router for the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/workflows", s.handleCreateWorkflow)
		r.Get("/workflows", s.handleListWorkflows)
		r.Get("/workflows/{id}", s.handleWorkflowStatus)
		r.Get("/agents", s.handleAgents)
		r.Get("/queue", s.handleQueue)
		r.Get("/healthz", s.handleHealthz)
	})
	return r
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Priority == 0 {
		req.Priority = 2
	}

	id, err := s.workflows.Create(models.WorkflowType(req.WorkflowType), req.Parameters, req.Priority)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrUnknownWorkflowType), errors.Is(err, workflow.ErrUnknownTaskType):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, CreateWorkflowResponse{WorkflowID: id})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.workflows.List())
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.workflows.Status(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AgentsResponse{
		Agents: s.registry.Snapshot(),
		Counts: s.registry.Counts(),
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Counts())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
