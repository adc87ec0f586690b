package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mcp-frete-sistema/internal/common/database"
	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/metrics"
	"mcp-frete-sistema/internal/common/validation"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/pipeline"
)

type envelope struct {
	Success bool                 `json:"success"`
	Result  interface{}          `json:"result,omitempty"`
	Errors  []contract.ToolError `json:"errors,omitempty"`
}

type queryEnvelope struct {
	Success  bool                              `json:"success"`
	Analysis *contract.QueryAnalyzerOutput     `json:"analysis,omitempty"`
	Data     *contract.DataLoaderOutput        `json:"data,omitempty"`
	Response *contract.ResponseGeneratorOutput `json:"response,omitempty"`
	Errors   []contract.ToolError              `json:"errors,omitempty"`
}

type errorEnvelope struct {
	Success bool                     `json:"success"`
	Error   *apperrors.StandardError `json:"error,omitempty"`
	Errors  []contract.ToolError     `json:"errors,omitempty"`
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	failures := database.CheckAll(ctx, s.checks)

	checks := make(map[string]string, len(s.checks))
	for name := range s.checks {
		checks[name] = "ok"
		if err, failed := failures[name]; failed {
			checks[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		s.respondJSON(w, r, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "checks": checks})
		return
	}
	s.respondJSON(w, r, http.StatusOK, map[string]interface{}{"status": "ready", "checks": checks})
}

func (s *server) listTools(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.respondJSON(w, r, http.StatusServiceUnavailable, errorEnvelope{Error: apperrors.NewInternalError(errors.New("tool registry not loaded"))})
		return
	}
	s.respondJSON(w, r, http.StatusOK, s.registry)
}

func (s *server) runTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "tool")
	run, ok := s.tools[name]
	if !ok {
		s.respondJSON(w, r, http.StatusNotFound, errorEnvelope{Errors: []contract.ToolError{{
			Code:    "UNKNOWN_TOOL",
			Message: "no tool named " + name,
		}}})
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		s.respondJSON(w, r, http.StatusBadRequest, errorEnvelope{Errors: []contract.ToolError{{Code: validation.CodeInvalidJSON, Message: err.Error()}}})
		return
	}

	start := time.Now()
	result, toolErrs, err := run(r.Context(), body)
	s.observe(r.Context(), name, callStatus(toolErrs, err), time.Since(start))
	if err != nil {
		s.respondError(w, r, name, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, envelope{Success: len(toolErrs) == 0, Result: result, Errors: toolErrs})
}

func (s *server) runQuery(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.respondJSON(w, r, http.StatusServiceUnavailable, errorEnvelope{Error: apperrors.NewInternalError(errors.New("pipeline not configured"))})
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.respondJSON(w, r, http.StatusBadRequest, errorEnvelope{Errors: []contract.ToolError{{Code: validation.CodeInvalidJSON, Message: err.Error()}}})
		return
	}
	var req pipeline.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondJSON(w, r, http.StatusBadRequest, errorEnvelope{Errors: []contract.ToolError{{Code: validation.CodeInvalidJSON, Message: err.Error()}}})
		return
	}
	if req.SessionID == "" {
		s.respondJSON(w, r, http.StatusUnprocessableEntity, errorEnvelope{Errors: []contract.ToolError{{
			Code: contract.CodeEmptySessionID, Message: "sessionId must not be empty", Field: "sessionId",
		}}})
		return
	}

	res, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		s.respondError(w, r, "pipeline", err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, queryEnvelope{
		Success:  len(res.Errors) == 0,
		Analysis: res.Analysis,
		Data:     res.Data,
		Response: res.Response,
		Errors:   res.Errors,
	})
}

// respondError maps input contract failures to 422 with one entry per violation; anything
// else is a 500 carrying the StandardError.
func (s *server) respondError(w http.ResponseWriter, r *http.Request, tool string, err error) {
	stdErr, ok := apperrors.AsStandardError(err)
	if ok && stdErr.Code == apperrors.ErrCodeContractValidationFailed {
		s.respondJSON(w, r, http.StatusUnprocessableEntity, errorEnvelope{Error: stdErr, Errors: violations(stdErr)})
		return
	}
	if !ok {
		stdErr = apperrors.NewInternalError(err)
	}
	s.logger.Error("tool call failed", map[string]interface{}{
		"tool":      tool,
		"code":      stdErr.Code,
		"error":     err.Error(),
		"requestId": chimw.GetReqID(r.Context()),
	})
	s.respondJSON(w, r, http.StatusInternalServerError, errorEnvelope{Error: stdErr, Errors: []contract.ToolError{apperrors.ToToolError(stdErr, "")}})
}

func (s *server) observe(ctx context.Context, tool, status string, d time.Duration) {
	if s.observer != nil {
		s.observer.RecordToolCall(ctx, tool, status, d)
	}
}

func callStatus(toolErrs []contract.ToolError, err error) string {
	switch {
	case err == nil && len(toolErrs) == 0:
		return metrics.StatusSuccess
	case err == nil:
		return metrics.StatusPartial
	}
	if stdErr, ok := apperrors.AsStandardError(err); ok && stdErr.Code == apperrors.ErrCodeContractValidationFailed {
		return metrics.StatusRejected
	}
	return metrics.StatusFailed
}

func violations(stdErr *apperrors.StandardError) []contract.ToolError {
	errs, _ := stdErr.Metadata["validationErrors"].([]validation.ValidationError)
	if len(errs) == 0 {
		return []contract.ToolError{apperrors.ToToolError(stdErr, "")}
	}
	return contract.ToolErrorsFrom(&validation.ValidationResult{Valid: false, Errors: errs})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func (s *server) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to write response", map[string]interface{}{
			"path":      r.URL.Path,
			"status":    status,
			"requestId": chimw.GetReqID(r.Context()),
			"error":     err.Error(),
		})
	}
}
