package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coopco/toolbridge/internal/tools"
)

// Error types reported by the tool endpoints.
const (
	errTypeInvalidRequest = "invalid_request"
	errTypeUnknownTool    = "unknown_tool"
	errTypeValidation     = "validation_error"
	errTypeHandler        = "handler_error"
	errTypeInternal       = "internal_error"
)

type toolError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Tool    string `json:"tool,omitempty"`
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type toolErrorBody struct {
	Error toolError `json:"error"`
}

type toolList struct {
	Tools []tools.Summary `json:"tools"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, toolList{Tools: s.tools.List()})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req tools.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, toolErrorBody{Error: toolError{Type: errTypeInvalidRequest, Message: "invalid JSON body: " + err.Error()}})
		return
	}
	if req.Name == "" {
		s.respond(w, http.StatusBadRequest, toolErrorBody{Error: toolError{Type: errTypeInvalidRequest, Message: "name is required"}})
		return
	}

	res, err := s.tools.Invoke(r.Context(), req)
	if err != nil {
		status, body := classify(req.Name, err)
		if status == http.StatusInternalServerError {
			s.logger.Error("tool call failed", "tool", req.Name, "err", err)
		}
		s.respond(w, status, toolErrorBody{Error: body})
		return
	}
	s.respond(w, http.StatusOK, res)
}

// classify maps dispatcher errors onto a status code and error body.
func classify(name string, err error) (int, toolError) {
	var verr *tools.ValidationError
	var herr *tools.HandlerError
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return http.StatusNotFound, toolError{Type: errTypeUnknownTool, Message: err.Error(), Tool: name}
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, toolError{
			Type:    errTypeValidation,
			Message: err.Error(),
			Tool:    verr.Tool,
			Field:   verr.Field,
			Reason:  verr.Reason,
		}
	case errors.As(err, &herr):
		return http.StatusInternalServerError, toolError{Type: errTypeHandler, Message: herr.Err.Error(), Tool: herr.Tool}
	}
	return http.StatusInternalServerError, toolError{Type: errTypeInternal, Message: err.Error(), Tool: name}
}

// respond writes v as JSON. The status line is already sent when encoding
// fails, so the failure can only be logged.
func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.logger.Warn("write response", "status", status, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
