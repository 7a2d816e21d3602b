// Package activities implements the Temporal activities for the research
// pipeline workflow. Each supervisor decision and each stage execution runs
// as its own activity so the workflow history records every step and a
// worker crash resumes from the last completed one.
package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/activity"

	"github.com/helixir/research-pipeline-service/internal/agents"
	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/events"
	"github.com/helixir/research-pipeline-service/internal/supervisor"
)

// Store is the persistence surface the activities need. The workflow
// repository satisfies it.
type Store interface {
	Create(ctx context.Context, state *domain.WorkflowState) error
	Save(ctx context.Context, state *domain.WorkflowState) error
}

// Activities bundles the pipeline dependencies for Temporal registration.
type Activities struct {
	supervisor *supervisor.Supervisor
	workers    agents.Registry
	store      Store
	emitter    *events.Emitter
	logger     zerolog.Logger
}

// New creates the activity set. emitter may be nil.
func New(sup *supervisor.Supervisor, workers agents.Registry, store Store, emitter *events.Emitter, logger zerolog.Logger) *Activities {
	if emitter == nil {
		emitter = events.NewEmitter(events.NopPublisher{}, logger)
	}
	return &Activities{
		supervisor: sup,
		workers:    workers,
		store:      store,
		emitter:    emitter,
		logger:     logger.With().Str("component", "pipeline_activities").Logger(),
	}
}

// InitializeInput is the input for the Initialize activity.
type InitializeInput struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	Query      string    `json:"query"`
	MaxPapers  int       `json:"max_papers"`
}

// Initialize creates and persists the initial workflow state. The state ID
// is taken from the input so the REST and Temporal views of a run coincide.
func (a *Activities) Initialize(ctx context.Context, input InitializeInput) (*domain.WorkflowState, error) {
	if input.Query == "" {
		return nil, domain.NewValidationError("query", "query is required")
	}

	state := domain.NewWorkflowState(input.Query, input.MaxPapers)
	if input.WorkflowID != uuid.Nil {
		state.ID = input.WorkflowID
	}

	if err := a.store.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist initial state: %w", err)
	}

	a.emitter.WorkflowStarted(ctx, state)

	return state, nil
}

// DecideOutput carries the updated state and the decision that was applied.
type DecideOutput struct {
	State    *domain.WorkflowState    `json:"state"`
	Decision domain.SupervisorDecision `json:"decision"`
}

// Decide runs one supervisor turn and applies the decision. A structural
// apply failure has already forced the state to failed, so it is returned
// as a terminal result rather than an activity error.
func (a *Activities) Decide(ctx context.Context, state *domain.WorkflowState) (*DecideOutput, error) {
	decision := a.supervisor.Decide(ctx, state)
	if err := a.supervisor.Apply(state, decision); err != nil {
		a.logger.Error().Err(err).
			Stringer("workflow_id", state.ID).
			Msg("decision apply failed")
	}

	return &DecideOutput{State: state, Decision: decision}, nil
}

// StageInput is the input for the ExecuteStage activity.
type StageInput struct {
	State *domain.WorkflowState `json:"state"`
	Stage domain.Stage          `json:"stage"`
}

// ExecuteStage runs the worker for the given stage. Worker failures are
// recorded in the state's error log for the supervisor to judge on the next
// turn; only a missing state is an activity error.
func (a *Activities) ExecuteStage(ctx context.Context, input StageInput) (*domain.WorkflowState, error) {
	state := input.State
	if state == nil {
		return nil, domain.NewValidationError("state", "state is required")
	}

	worker := a.workers.Get(input.Stage)
	if worker == nil {
		state.AddError(input.Stage, fmt.Errorf("no worker registered for stage"))
		return state, nil
	}

	if activity.IsActivity(ctx) {
		activity.RecordHeartbeat(ctx, string(input.Stage))
	}

	started := time.Now()
	err := worker.Execute(ctx, state)
	elapsed := time.Since(started)

	a.emitter.StageCompleted(ctx, state, input.Stage, err == nil, elapsed)

	if err != nil {
		state.AddError(input.Stage, err)
		a.logger.Warn().Err(err).
			Stringer("workflow_id", state.ID).
			Str("stage", string(input.Stage)).
			Dur("elapsed", elapsed).
			Msg("stage failed")
		return state, nil
	}

	a.logger.Info().
		Stringer("workflow_id", state.ID).
		Str("stage", string(input.Stage)).
		Dur("elapsed", elapsed).
		Msg("stage complete")

	return state, nil
}

// Checkpoint persists a state snapshot.
func (a *Activities) Checkpoint(ctx context.Context, state *domain.WorkflowState) error {
	return a.store.Save(ctx, state)
}

// FinalizeInput is the input for the Finalize activity.
type FinalizeInput struct {
	State     *domain.WorkflowState `json:"state"`
	Cancelled bool                  `json:"cancelled"`
}

// Finalize forces a non-terminal state to failed (cancellation path), saves
// the final snapshot, and emits the terminal lifecycle event.
func (a *Activities) Finalize(ctx context.Context, input FinalizeInput) (*domain.WorkflowState, error) {
	state := input.State
	if state == nil {
		return nil, domain.NewValidationError("state", "state is required")
	}

	if !state.IsTerminal() {
		now := time.Now().UTC()
		if input.Cancelled {
			state.AddError(state.CurrentStage, domain.ErrCancelled)
		}
		state.Status = domain.WorkflowStatusFailed
		state.UpdatedAt = now
		state.CompletedAt = &now
	}

	if err := a.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save final state: %w", err)
	}

	switch {
	case input.Cancelled:
		a.emitter.WorkflowCancelled(ctx, state, "cancelled")
	case state.Status == domain.WorkflowStatusCompleted:
		a.emitter.WorkflowCompleted(ctx, state)
	default:
		reason := "pipeline failed"
		if n := len(state.DecisionLog); n > 0 {
			reason = state.DecisionLog[n-1].Reason
		}
		a.emitter.WorkflowFailed(ctx, state, reason)
	}

	return state, nil
}
