package server

import (
	"encoding/json"
	"net/http"

	"github.com/provisio/provisio/internal/cleanup"
	"github.com/provisio/provisio/internal/orchestrator"
)

type lifecycleRequest struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type deployResponse struct {
	Status string `json:"status"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

type destroyResponse struct {
	Status      string      `json:"status"`
	Stdout      string      `json:"stdout"`
	Stderr      string      `json:"stderr"`
	CleanupLogs cleanup.Log `json:"cleanupLogs"`
}

type outputsResponse struct {
	Status  string         `json:"status"`
	Outputs map[string]any `json:"outputs"`
}

type stateResponse struct {
	Status string          `json:"status"`
	State  json.RawMessage `json:"state"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Logs  cleanup.Log `json:"logs,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: ServiceName})
}

// parseRequest decodes the common request body and enforces projectId.
func (s *Server) parseRequest(w http.ResponseWriter, r *http.Request) (lifecycleRequest, bool) {
	var req lifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return req, false
	}
	if req.ProjectID == "" {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "projectId is required"})
		return req, false
	}
	return req, true
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseRequest(w, r)
	if !ok {
		return
	}
	outcome, err := s.lifecycle.Deploy(r.Context(), req.ProjectID, req.UserID)
	if err != nil {
		s.logger.Error().Str("project", req.ProjectID).Err(err).Msg("deploy failed")
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.respondJSON(w, statusCode(outcome.Status), deployResponse{
		Status: outcome.Status,
		Stdout: outcome.Stdout,
		Stderr: outcome.Stderr,
	})
}

func (s *Server) handleDestroy(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseRequest(w, r)
	if !ok {
		return
	}
	outcome, err := s.lifecycle.Destroy(r.Context(), req.ProjectID, req.UserID)
	if err != nil {
		s.logger.Error().Str("project", req.ProjectID).Err(err).Msg("destroy failed")
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Logs: outcome.CleanupLogs})
		return
	}
	if outcome.CleanupLogs == nil {
		outcome.CleanupLogs = cleanup.Log{}
	}
	s.respondJSON(w, statusCode(outcome.Status), destroyResponse{
		Status:      outcome.Status,
		Stdout:      outcome.Stdout,
		Stderr:      outcome.Stderr,
		CleanupLogs: outcome.CleanupLogs,
	})
}

func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseRequest(w, r)
	if !ok {
		return
	}
	outputs, err := s.lifecycle.Outputs(r.Context(), req.ProjectID)
	if err != nil {
		s.logger.Error().Str("project", req.ProjectID).Err(err).Msg("outputs read failed")
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, outputsResponse{Status: orchestrator.StatusSuccess, Outputs: outputs})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseRequest(w, r)
	if !ok {
		return
	}
	raw, err := s.lifecycle.State(r.Context(), req.ProjectID)
	if err != nil {
		s.logger.Error().Str("project", req.ProjectID).Err(err).Msg("state read failed")
		s.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	s.respondJSON(w, http.StatusOK, stateResponse{Status: orchestrator.StatusSuccess, State: raw})
}

func statusCode(status string) int {
	if status == orchestrator.StatusSuccess {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
