// Package pipeline runs the supervisor/worker loop for a single workflow:
// the supervisor decides, the decision is applied to the state, the selected
// worker executes, and the cycle repeats until the state is terminal.
//
// The driver is the single logical thread of control for its workflow. It
// never runs supervisor and worker concurrently against the same state,
// which is what makes the "workers only touch their own fields" contract
// sufficient without locks. Separate workflow instances are independent and
// may run concurrently.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-pipeline-service/internal/agents"
	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/observability"
	"github.com/helixir/research-pipeline-service/internal/supervisor"
)

// DefaultStageDelay is the cooperative pause between loop turns, giving
// external rate limits room to breathe.
const DefaultStageDelay = 100 * time.Millisecond

// CheckpointSink persists workflow state snapshots between steps so an
// interrupted run can be inspected or resumed. A nil sink disables
// checkpointing.
type CheckpointSink interface {
	Checkpoint(ctx context.Context, state *domain.WorkflowState) error
}

// Config holds driver tuning knobs.
type Config struct {
	// StageDelay is the pause inserted after each worker execution.
	StageDelay time.Duration
}

// Observer receives loop progress callbacks. Both hooks run on the driver's
// goroutine and must return quickly.
type Observer interface {
	// StageExecuted fires after a worker runs; err is nil on success.
	StageExecuted(ctx context.Context, state *domain.WorkflowState, stage domain.Stage, err error, elapsed time.Duration)

	// DecisionApplied fires after a supervisor decision is applied to the
	// state.
	DecisionApplied(ctx context.Context, state *domain.WorkflowState, decision domain.SupervisorDecision)
}

// Driver executes the supervisor loop for workflow states.
type Driver struct {
	supervisor *supervisor.Supervisor
	workers    agents.Registry
	sink       CheckpointSink
	observer   Observer
	config     Config
	logger     zerolog.Logger
}

// New creates a pipeline driver. sink may be nil.
func New(sup *supervisor.Supervisor, workers agents.Registry, sink CheckpointSink, cfg Config, logger zerolog.Logger) *Driver {
	if cfg.StageDelay == 0 {
		cfg.StageDelay = DefaultStageDelay
	}

	return &Driver{
		supervisor: sup,
		workers:    workers,
		sink:       sink,
		config:     cfg,
		logger:     logger.With().Str("component", "pipeline_driver").Logger(),
	}
}

// SetObserver installs a progress observer. Must be called before Run.
func (d *Driver) SetObserver(observer Observer) {
	d.observer = observer
}

// Run drives the state to a terminal status and returns it. Worker failures
// are recorded in the state's error log and fed back to the supervisor; the
// only error Run itself returns is context cancellation or a structural
// failure applying a decision.
func (d *Driver) Run(ctx context.Context, state *domain.WorkflowState) (*domain.WorkflowState, error) {
	logger := d.logger.With().Stringer("workflow_id", state.ID).Logger()
	logger.Info().Str("query", state.Query).Msg("pipeline started")

	for !state.IsTerminal() {
		if err := ctx.Err(); err != nil {
			state.AddError(state.CurrentStage, domain.ErrCancelled)
			return state, err
		}

		decision := d.supervisor.Decide(ctx, state)
		if err := d.supervisor.Apply(state, decision); err != nil {
			// Apply already forced the state to Failed; surface the cause.
			d.checkpoint(ctx, state)
			return state, fmt.Errorf("applying decision: %w", err)
		}
		if d.observer != nil {
			d.observer.DecisionApplied(ctx, state, decision)
		}
		d.checkpoint(ctx, state)

		if state.IsTerminal() {
			break
		}

		d.executeStage(ctx, state, decision.NextStage)
		d.checkpoint(ctx, state)

		if err := d.pause(ctx); err != nil {
			state.AddError(state.CurrentStage, domain.ErrCancelled)
			return state, err
		}
	}

	logger.Info().
		Str("status", string(state.Status)).
		Int("iterations", state.Iteration).
		Int("papers", len(state.Papers)).
		Int("hypotheses", len(state.Hypotheses)).
		Msg("pipeline finished")

	return state, nil
}

// executeStage runs the worker for the stage. A missing worker and a worker
// failure are both recorded as stage errors for the supervisor to judge on
// the next turn.
func (d *Driver) executeStage(ctx context.Context, state *domain.WorkflowState, stage domain.Stage) {
	logger := observability.WithPipelineContext(d.logger, state.ID.String(), string(stage))

	worker := d.workers.Get(stage)
	if worker == nil {
		state.AddError(stage, fmt.Errorf("no worker registered for stage"))
		logger.Error().Msg("no worker registered")
		return
	}

	started := time.Now()
	err := worker.Execute(ctx, state)
	elapsed := time.Since(started)

	if d.observer != nil {
		d.observer.StageExecuted(ctx, state, stage, err, elapsed)
	}

	if err != nil {
		state.AddError(stage, err)
		logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("stage failed")
		return
	}

	logger.Info().Dur("elapsed", elapsed).Msg("stage complete")
}

// checkpoint persists a snapshot; checkpoint failures are logged, never
// fatal, so a flaky store cannot kill a healthy pipeline.
func (d *Driver) checkpoint(ctx context.Context, state *domain.WorkflowState) {
	if d.sink == nil {
		return
	}
	if err := d.sink.Checkpoint(ctx, state); err != nil {
		d.logger.Warn().
			Err(err).
			Stringer("workflow_id", state.ID).
			Msg("checkpoint failed")
	}
}

func (d *Driver) pause(ctx context.Context) error {
	timer := time.NewTimer(d.config.StageDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
