package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Helper to create a workflow state for testing.
func newTestState() *domain.WorkflowState {
	state := domain.NewWorkflowState("quantum error correction", 50)
	state.Papers = []domain.Paper{
		{ID: "arxiv:2401.00001", Title: "Surface codes revisited", Source: domain.SourceTypeArXiv},
		{ID: "arxiv:2401.00002", Title: "Decoder latency bounds", Source: domain.SourceTypeArXiv},
	}
	return state
}

func snapshotOf(t *testing.T, state *domain.WorkflowState) []byte {
	t.Helper()
	snapshot, err := json.Marshal(state)
	require.NoError(t, err)
	return snapshot
}

func TestPgWorkflowRepository_Create(t *testing.T) {
	t.Run("successful create", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		state := newTestState()

		mock.ExpectExec("INSERT INTO workflows").
			WithArgs(
				state.ID, state.Query, state.Status, state.CurrentStage, state.Iteration,
				len(state.Papers), len(state.Hypotheses), len(state.Errors),
				snapshotOf(t, state), state.CreatedAt, state.UpdatedAt, state.CompletedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewPgWorkflowRepository(mock)
		require.NoError(t, repo.Create(context.Background(), state))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil state", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkflowRepository(mock)
		err = repo.Create(context.Background(), nil)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "state", verr.Field)
	})

	t.Run("missing query", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		state := newTestState()
		state.Query = ""

		repo := NewPgWorkflowRepository(mock)
		err = repo.Create(context.Background(), state)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "query", verr.Field)
	})

	t.Run("duplicate ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		state := newTestState()

		mock.ExpectExec("INSERT INTO workflows").
			WithArgs(
				state.ID, state.Query, state.Status, state.CurrentStage, state.Iteration,
				len(state.Papers), len(state.Hypotheses), len(state.Errors),
				snapshotOf(t, state), state.CreatedAt, state.UpdatedAt, state.CompletedAt,
			).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		repo := NewPgWorkflowRepository(mock)
		err = repo.Create(context.Background(), state)

		require.ErrorIs(t, err, domain.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgWorkflowRepository_Get(t *testing.T) {
	t.Run("successful get", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		state := newTestState()
		rows := pgxmock.NewRows([]string{"state"}).AddRow(snapshotOf(t, state))

		mock.ExpectQuery("SELECT state FROM workflows WHERE id = \\$1").
			WithArgs(state.ID).
			WillReturnRows(rows)

		repo := NewPgWorkflowRepository(mock)
		got, err := repo.Get(context.Background(), state.ID)

		require.NoError(t, err)
		assert.Equal(t, state.ID, got.ID)
		assert.Equal(t, state.Query, got.Query)
		assert.Len(t, got.Papers, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := uuid.New()
		mock.ExpectQuery("SELECT state FROM workflows WHERE id = \\$1").
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		repo := NewPgWorkflowRepository(mock)
		_, err = repo.Get(context.Background(), id)

		require.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt snapshot", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := uuid.New()
		rows := pgxmock.NewRows([]string{"state"}).AddRow([]byte("{not json"))

		mock.ExpectQuery("SELECT state FROM workflows WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(rows)

		repo := NewPgWorkflowRepository(mock)
		_, err = repo.Get(context.Background(), id)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshal")
	})
}

func TestPgWorkflowRepository_Save(t *testing.T) {
	t.Run("upserts snapshot", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		state := newTestState()
		state.Status = domain.WorkflowStatusSearching
		state.Iteration = 3

		mock.ExpectExec("INSERT INTO workflows .* ON CONFLICT \\(id\\) DO UPDATE").
			WithArgs(
				state.ID, state.Query, state.Status, state.CurrentStage, state.Iteration,
				len(state.Papers), len(state.Hypotheses), len(state.Errors),
				snapshotOf(t, state), state.CreatedAt, state.UpdatedAt, state.CompletedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewPgWorkflowRepository(mock)
		require.NoError(t, repo.Save(context.Background(), state))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		state := newTestState()

		mock.ExpectExec("INSERT INTO workflows .* ON CONFLICT \\(id\\) DO UPDATE").
			WithArgs(
				state.ID, state.Query, state.Status, state.CurrentStage, state.Iteration,
				len(state.Papers), len(state.Hypotheses), len(state.Errors),
				snapshotOf(t, state), state.CreatedAt, state.UpdatedAt, state.CompletedAt,
			).
			WillReturnError(errors.New("connection refused"))

		repo := NewPgWorkflowRepository(mock)
		err = repo.Save(context.Background(), state)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save workflow")
	})
}

func TestPgWorkflowRepository_Checkpoint(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	state := newTestState()

	mock.ExpectExec("INSERT INTO workflows .* ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs(
			state.ID, state.Query, state.Status, state.CurrentStage, state.Iteration,
			len(state.Papers), len(state.Hypotheses), len(state.Errors),
			snapshotOf(t, state), state.CreatedAt, state.UpdatedAt, state.CompletedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPgWorkflowRepository(mock)
	require.NoError(t, repo.Checkpoint(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgWorkflowRepository_List(t *testing.T) {
	t.Run("returns snapshots", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		first := newTestState()
		second := newTestState()

		rows := pgxmock.NewRows([]string{"state"}).
			AddRow(snapshotOf(t, first)).
			AddRow(snapshotOf(t, second))

		mock.ExpectQuery("SELECT state FROM workflows").
			WithArgs("", 100, 0).
			WillReturnRows(rows)

		repo := NewPgWorkflowRepository(mock)
		states, err := repo.List(context.Background(), WorkflowFilter{})

		require.NoError(t, err)
		require.Len(t, states, 2)
		assert.Equal(t, first.ID, states[0].ID)
		assert.Equal(t, second.ID, states[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status filter and pagination", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"state"})

		mock.ExpectQuery("SELECT state FROM workflows").
			WithArgs(string(domain.WorkflowStatusCompleted), 10, 20).
			WillReturnRows(rows)

		repo := NewPgWorkflowRepository(mock)
		states, err := repo.List(context.Background(), WorkflowFilter{
			Status: domain.WorkflowStatusCompleted,
			Limit:  10,
			Offset: 20,
		})

		require.NoError(t, err)
		assert.Empty(t, states)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("limit is clamped", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"state"})

		mock.ExpectQuery("SELECT state FROM workflows").
			WithArgs("", maxFilterLimit, 0).
			WillReturnRows(rows)

		repo := NewPgWorkflowRepository(mock)
		_, err = repo.List(context.Background(), WorkflowFilter{Limit: 5000, Offset: -3})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgWorkflowRepository_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"count"}).AddRow(7)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM workflows").
		WithArgs(string(domain.WorkflowStatusFailed)).
		WillReturnRows(rows)

	repo := NewPgWorkflowRepository(mock)
	count, err := repo.Count(context.Background(), WorkflowFilter{Status: domain.WorkflowStatusFailed})

	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgWorkflowRepository_Delete(t *testing.T) {
	t.Run("successful delete", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := uuid.New()
		mock.ExpectExec("DELETE FROM workflows WHERE id = \\$1").
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewPgWorkflowRepository(mock)
		require.NoError(t, repo.Delete(context.Background(), id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := uuid.New()
		mock.ExpectExec("DELETE FROM workflows WHERE id = \\$1").
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewPgWorkflowRepository(mock)
		err = repo.Delete(context.Background(), id)

		require.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
