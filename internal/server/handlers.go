package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/repository"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// submitWorkflowRequest is the JSON request body for submitting a research
// query.
type submitWorkflowRequest struct {
	Query     string `json:"query" validate:"required,min=3,max=10000"`
	MaxPapers int    `json:"max_papers,omitempty" validate:"omitempty,gte=1,lte=500"`
}

// submitWorkflow handles POST /api/v1/workflows.
func (s *Server) submitWorkflow(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req submitWorkflowRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid field %s: failed %q rule", verrs[0].Field(), verrs[0].Tag()))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	state, err := s.manager.Start(r.Context(), req.Query, req.MaxPapers)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitWorkflowResponse{
		WorkflowID: state.ID.String(),
		Query:      state.Query,
		Status:     string(state.Status),
		MaxPapers:  state.MaxPapers,
		CreatedAt:  state.CreatedAt,
	})
}

// getWorkflow handles GET /api/v1/workflows/{workflowID}. It returns the
// full state snapshot including artifacts, errors, and the decision log.
func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "workflowID"), "workflow_id")
	if !ok {
		return
	}

	state, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// getWorkflowSummary handles GET /api/v1/workflows/{workflowID}/summary.
func (s *Server) getWorkflowSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "workflowID"), "workflow_id")
	if !ok {
		return
	}

	state, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state.Summarize())
}

// listWorkflows handles GET /api/v1/workflows with optional status filter
// and pagination.
func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	filter := repository.WorkflowFilter{}

	if status := r.URL.Query().Get("status"); status != "" {
		ws := domain.WorkflowStatus(status)
		if !ws.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status: %s", status))
			return
		}
		filter.Status = ws
	}

	filter.Limit, filter.Offset = parsePaginationParams(r)

	states, err := s.repo.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	total, err := s.repo.Count(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	summaries := make([]domain.Summary, len(states))
	for i, state := range states {
		summaries[i] = state.Summarize()
	}

	writeJSON(w, http.StatusOK, listWorkflowsResponse{
		Workflows:     summaries,
		TotalCount:    total,
		NextPageToken: encodePageToken(filter.Offset, filter.Limit, total),
	})
}

// cancelWorkflow handles POST /api/v1/workflows/{workflowID}/cancel.
func (s *Server) cancelWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "workflowID"), "workflow_id")
	if !ok {
		return
	}

	state, err := s.manager.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cancelWorkflowResponse{
		WorkflowID: state.ID.String(),
		Status:     string(state.Status),
		Message:    "cancellation requested",
	})
}

// writeDomainError maps domain errors to HTTP status codes. Internal error
// details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrWorkflowTerminal):
		writeError(w, http.StatusConflict, "workflow already finished")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response on
// failure. The parse error is not echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query
// parameters, bounding the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodePageToken returns the opaque token for the next page, or empty when
// the listing is exhausted.
func encodePageToken(offset, limit, total int) string {
	next := offset + limit
	if next >= total {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(next)))
}
