package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mlindqvist/groundwork/internal/provision"
	"github.com/mlindqvist/groundwork/internal/workspace"
)

// HealthzResponse is the GET /healthz body.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// CommandRequest is the POST /v1/commands body.
type CommandRequest struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ViewResponse is the GET /v1/view body.
type ViewResponse struct {
	Snapshot provision.Snapshot `json:"snapshot"`
	Markup   string             `json:"markup,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleView handles GET /v1/view?project=<name>. Returns the current
// snapshot plus rendered markup for the panel webview.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	c, ok := s.projectController(w, r)
	if !ok {
		return
	}
	snap := c.Snapshot()
	resp := ViewResponse{Snapshot: snap}
	if s.render != nil {
		resp.Markup = s.render(snap)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRecord handles GET /v1/record?project=<name>. The snapshot carries
// hasToken, never the token itself.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := s.projectController(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, c.Snapshot())
}

// handleCommand handles POST /v1/commands. Validation runs synchronously so
// bad input gets a 400; the step itself runs in the background and the
// caller follows progress over /v1/events.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "command name is required")
		return
	}

	if err := s.dispatcher.Validate(req.Name, req.Payload); err != nil {
		var verr *provision.ValidationError
		if errors.As(err, &verr) {
			s.writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	go func() {
		// Detached from the request: steps outlive the HTTP exchange.
		if err := s.dispatcher.Dispatch(context.Background(), req.Name, req.Payload); err != nil {
			s.logger.Error("command failed", "command", req.Name, "error", err)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "command": req.Name})
}

// projectController resolves the ?project= query into a controller, writing
// the error response itself on failure.
func (s *Server) projectController(w http.ResponseWriter, r *http.Request) (*provision.Controller, bool) {
	project := r.URL.Query().Get("project")
	if err := workspace.ValidateProjectName(project); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	c, err := s.dispatcher.Controller(r.Context(), project)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return c, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
