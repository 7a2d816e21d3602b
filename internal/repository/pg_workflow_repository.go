package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// Compile-time interface verification.
var _ WorkflowRepository = (*PgWorkflowRepository)(nil)

// PgWorkflowRepository is a PostgreSQL implementation of WorkflowRepository.
type PgWorkflowRepository struct {
	db DBTX
}

// NewPgWorkflowRepository creates a new PostgreSQL workflow repository.
func NewPgWorkflowRepository(db DBTX) *PgWorkflowRepository {
	return &PgWorkflowRepository{db: db}
}

// Create inserts a new workflow row with its initial snapshot.
func (r *PgWorkflowRepository) Create(ctx context.Context, state *domain.WorkflowState) error {
	if state == nil {
		return domain.NewValidationError("state", "state cannot be nil")
	}
	if state.ID == uuid.Nil {
		return domain.NewValidationError("id", "workflow ID is required")
	}
	if state.Query == "" {
		return domain.NewValidationError("query", "query is required")
	}

	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}

	query := `
		INSERT INTO workflows (
			id, query, status, current_stage, iteration,
			paper_count, hypothesis_count, error_count,
			state, created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12
		)`

	_, err = r.db.Exec(ctx, query,
		state.ID, state.Query, state.Status, state.CurrentStage, state.Iteration,
		len(state.Papers), len(state.Hypotheses), len(state.Errors),
		snapshot, state.CreatedAt, state.UpdatedAt, state.CompletedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("workflow %s: %w", state.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// Get loads the latest snapshot of a workflow.
func (r *PgWorkflowRepository) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error) {
	query := `SELECT state FROM workflows WHERE id = $1`

	var snapshot []byte
	if err := r.db.QueryRow(ctx, query, id).Scan(&snapshot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("workflow", id.String())
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	var state domain.WorkflowState
	if err := json.Unmarshal(snapshot, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow state: %w", err)
	}

	return &state, nil
}

// Save upserts the current snapshot and its queryable columns.
func (r *PgWorkflowRepository) Save(ctx context.Context, state *domain.WorkflowState) error {
	if state == nil {
		return domain.NewValidationError("state", "state cannot be nil")
	}
	if state.ID == uuid.Nil {
		return domain.NewValidationError("id", "workflow ID is required")
	}

	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}

	query := `
		INSERT INTO workflows (
			id, query, status, current_stage, iteration,
			paper_count, hypothesis_count, error_count,
			state, created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_stage = EXCLUDED.current_stage,
			iteration = EXCLUDED.iteration,
			paper_count = EXCLUDED.paper_count,
			hypothesis_count = EXCLUDED.hypothesis_count,
			error_count = EXCLUDED.error_count,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at`

	_, err = r.db.Exec(ctx, query,
		state.ID, state.Query, state.Status, state.CurrentStage, state.Iteration,
		len(state.Papers), len(state.Hypotheses), len(state.Errors),
		snapshot, state.CreatedAt, state.UpdatedAt, state.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// Checkpoint persists a snapshot between pipeline steps. It satisfies the
// pipeline driver's checkpoint sink contract.
func (r *PgWorkflowRepository) Checkpoint(ctx context.Context, state *domain.WorkflowState) error {
	return r.Save(ctx, state)
}

// List returns workflow snapshots matching the filter, most recent first.
func (r *PgWorkflowRepository) List(ctx context.Context, filter WorkflowFilter) ([]*domain.WorkflowState, error) {
	applyPaginationDefaults(&filter.Limit, &filter.Offset)

	query := `
		SELECT state FROM workflows
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var states []*domain.WorkflowState
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}

		var state domain.WorkflowState
		if err := json.Unmarshal(snapshot, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow state: %w", err)
		}
		states = append(states, &state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow rows: %w", err)
	}

	return states, nil
}

// Count returns the number of workflows matching the filter.
func (r *PgWorkflowRepository) Count(ctx context.Context, filter WorkflowFilter) (int, error) {
	query := `SELECT COUNT(*) FROM workflows WHERE ($1 = '' OR status = $1)`

	var count int
	if err := r.db.QueryRow(ctx, query, string(filter.Status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count workflows: %w", err)
	}

	return count, nil
}

// Delete removes a workflow row.
func (r *PgWorkflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("workflow", id.String())
	}

	return nil
}

// isPgUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
