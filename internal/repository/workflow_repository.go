package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// WorkflowFilter selects workflows for list queries.
type WorkflowFilter struct {
	// Status filters by workflow status when non-empty.
	Status domain.WorkflowStatus

	// Limit is the maximum number of workflows to return (default 100, max 1000).
	Limit int

	// Offset is the number of workflows to skip for pagination.
	Offset int
}

// WorkflowRepository persists research workflow state snapshots.
//
// The full state travels as a JSONB snapshot; status, stage, and artifact
// counts are mirrored into plain columns so list queries never have to
// unpack the snapshot.
type WorkflowRepository interface {
	// Create inserts a new workflow. Returns domain.ErrAlreadyExists if the
	// ID is already taken.
	Create(ctx context.Context, state *domain.WorkflowState) error

	// Get loads the latest snapshot of a workflow. Returns domain.ErrNotFound
	// if the workflow does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error)

	// Save upserts the current snapshot. The pipeline driver calls this
	// between every decision and stage execution, so it must be cheap and
	// idempotent.
	Save(ctx context.Context, state *domain.WorkflowState) error

	// List returns workflow snapshots matching the filter, most recent first.
	List(ctx context.Context, filter WorkflowFilter) ([]*domain.WorkflowState, error)

	// Count returns the number of workflows matching the filter, ignoring
	// pagination.
	Count(ctx context.Context, filter WorkflowFilter) (int, error)

	// Delete removes a workflow. Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error
}
