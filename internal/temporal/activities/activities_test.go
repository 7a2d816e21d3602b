package activities

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-pipeline-service/internal/agents"
	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/supervisor"
)

// memStore is an in-memory Store for activity tests.
type memStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]*domain.WorkflowState
	saves  int
}

func newMemStore() *memStore {
	return &memStore{states: make(map[uuid.UUID]*domain.WorkflowState)}
}

func (s *memStore) Create(_ context.Context, state *domain.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[state.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.states[state.ID] = state
	return nil
}

func (s *memStore) Save(_ context.Context, state *domain.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.states[state.ID] = state
	return nil
}

// stubAgent runs a plain function as a pipeline stage.
type stubAgent struct {
	stage domain.Stage
	fn    func(state *domain.WorkflowState) error
}

func (a *stubAgent) Stage() domain.Stage { return a.stage }

func (a *stubAgent) Execute(_ context.Context, state *domain.WorkflowState) error {
	return a.fn(state)
}

func newTestActivities(store Store, workers ...agents.Agent) *Activities {
	sup := supervisor.New(supervisor.DefaultPolicy(), zerolog.Nop())
	return New(sup, agents.NewRegistry(workers...), store, nil, zerolog.Nop())
}

func TestActivities_Initialize(t *testing.T) {
	t.Run("creates state with the given id", func(t *testing.T) {
		store := newMemStore()
		a := newTestActivities(store)

		id := uuid.New()
		state, err := a.Initialize(context.Background(), InitializeInput{
			WorkflowID: id,
			Query:      "neuromorphic computing",
			MaxPapers:  30,
		})
		require.NoError(t, err)

		assert.Equal(t, id, state.ID)
		assert.Equal(t, "neuromorphic computing", state.Query)
		assert.Equal(t, 30, state.MaxPapers)
		assert.Equal(t, domain.WorkflowStatusInitialized, state.Status)
		assert.Contains(t, store.states, id)
	})

	t.Run("empty query is rejected", func(t *testing.T) {
		a := newTestActivities(newMemStore())

		_, err := a.Initialize(context.Background(), InitializeInput{WorkflowID: uuid.New()})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		store := newMemStore()
		a := newTestActivities(store)

		input := InitializeInput{WorkflowID: uuid.New(), Query: "q", MaxPapers: 10}
		_, err := a.Initialize(context.Background(), input)
		require.NoError(t, err)

		_, err = a.Initialize(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})
}

func TestActivities_Decide(t *testing.T) {
	a := newTestActivities(newMemStore())

	state := domain.NewWorkflowState("graphene batteries", 50)
	out, err := a.Decide(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, domain.StageLiteratureSearch, out.Decision.NextStage)
	assert.True(t, out.Decision.Continue)
	assert.Equal(t, domain.WorkflowStatusSearching, out.State.Status)
	assert.Equal(t, 1, out.State.Iteration)
}

func TestActivities_ExecuteStage(t *testing.T) {
	t.Run("successful stage writes its artifact", func(t *testing.T) {
		worker := &stubAgent{stage: domain.StageLiteratureSearch, fn: func(state *domain.WorkflowState) error {
			state.Papers = make([]domain.Paper, 7)
			return nil
		}}
		a := newTestActivities(newMemStore(), worker)

		state := domain.NewWorkflowState("q", 50)
		result, err := a.ExecuteStage(context.Background(), StageInput{State: state, Stage: domain.StageLiteratureSearch})
		require.NoError(t, err)

		assert.Len(t, result.Papers, 7)
		assert.Empty(t, result.Errors)
	})

	t.Run("worker failure is recorded, not returned", func(t *testing.T) {
		worker := &stubAgent{stage: domain.StageSynthesis, fn: func(_ *domain.WorkflowState) error {
			return errors.New("llm timeout")
		}}
		a := newTestActivities(newMemStore(), worker)

		state := domain.NewWorkflowState("q", 50)
		result, err := a.ExecuteStage(context.Background(), StageInput{State: state, Stage: domain.StageSynthesis})
		require.NoError(t, err)

		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "llm timeout")
	})

	t.Run("missing worker is recorded as stage error", func(t *testing.T) {
		a := newTestActivities(newMemStore())

		state := domain.NewWorkflowState("q", 50)
		result, err := a.ExecuteStage(context.Background(), StageInput{State: state, Stage: domain.StageValidation})
		require.NoError(t, err)

		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "no worker registered")
	})

	t.Run("nil state is an error", func(t *testing.T) {
		a := newTestActivities(newMemStore())

		_, err := a.ExecuteStage(context.Background(), StageInput{Stage: domain.StageValidation})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestActivities_Checkpoint(t *testing.T) {
	store := newMemStore()
	a := newTestActivities(store)

	state := domain.NewWorkflowState("q", 50)
	require.NoError(t, a.Checkpoint(context.Background(), state))
	assert.Equal(t, 1, store.saves)
}

func TestActivities_Finalize(t *testing.T) {
	t.Run("terminal state is saved unchanged", func(t *testing.T) {
		store := newMemStore()
		a := newTestActivities(store)

		state := domain.NewWorkflowState("q", 50)
		state.Status = domain.WorkflowStatusCompleted

		result, err := a.Finalize(context.Background(), FinalizeInput{State: state})
		require.NoError(t, err)

		assert.Equal(t, domain.WorkflowStatusCompleted, result.Status)
		assert.Equal(t, 1, store.saves)
	})

	t.Run("cancelled run is marked failed", func(t *testing.T) {
		store := newMemStore()
		a := newTestActivities(store)

		state := domain.NewWorkflowState("q", 50)
		state.Status = domain.WorkflowStatusSearching

		result, err := a.Finalize(context.Background(), FinalizeInput{State: state, Cancelled: true})
		require.NoError(t, err)

		assert.Equal(t, domain.WorkflowStatusFailed, result.Status)
		require.NotNil(t, result.CompletedAt)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[len(result.Errors)-1], "cancelled")
	})

	t.Run("non-terminal uncancelled state is failed defensively", func(t *testing.T) {
		store := newMemStore()
		a := newTestActivities(store)

		state := domain.NewWorkflowState("q", 50)
		state.Status = domain.WorkflowStatusSynthesizing

		result, err := a.Finalize(context.Background(), FinalizeInput{State: state})
		require.NoError(t, err)

		assert.Equal(t, domain.WorkflowStatusFailed, result.Status)
		require.NotNil(t, result.CompletedAt)
	})
}
