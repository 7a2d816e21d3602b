package server

import (
	"time"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Response types for JSON serialization. Full workflow reads return the
// domain.WorkflowState snapshot directly; these wrap the remaining shapes.

type submitWorkflowResponse struct {
	WorkflowID string    `json:"workflow_id"`
	Query      string    `json:"query"`
	Status     string    `json:"status"`
	MaxPapers  int       `json:"max_papers"`
	CreatedAt  time.Time `json:"created_at"`
}

type listWorkflowsResponse struct {
	Workflows     []domain.Summary `json:"workflows"`
	TotalCount    int              `json:"total_count"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type cancelWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}
