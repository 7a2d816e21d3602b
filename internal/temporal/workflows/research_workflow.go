// Package workflows implements the Temporal research pipeline workflow: the
// same supervisor loop the in-process driver runs, expressed as a durable
// workflow with each decision and stage execution recorded as an activity.
package workflows

import (
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/helixir/research-pipeline-service/internal/domain"
	pipelinetemporal "github.com/helixir/research-pipeline-service/internal/temporal"
	"github.com/helixir/research-pipeline-service/internal/temporal/activities"
)

// Activity timeout constants.
const (
	// stageActivityTimeout caps a single stage execution, including LLM and
	// search source calls.
	stageActivityTimeout = 10 * time.Minute

	// controlActivityTimeout caps decision, checkpoint, and finalize
	// activities, which only touch the database.
	controlActivityTimeout = 30 * time.Second

	// stageHeartbeatTimeout detects a worker that died mid-stage.
	stageHeartbeatTimeout = 2 * time.Minute
)

// ResearchPipelineWorkflow drives a research query to a terminal state.
// Retries are owned by the supervisor, so activities run with a single
// attempt except for control-plane calls, which retry on transient database
// errors. A cancel signal finalizes the state and exits cleanly.
func ResearchPipelineWorkflow(ctx workflow.Context, input pipelinetemporal.ResearchWorkflowInput) (domain.Summary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("research pipeline workflow started", "workflow_id", input.WorkflowID, "query", input.Query)

	var state *domain.WorkflowState

	if err := workflow.SetQueryHandler(ctx, pipelinetemporal.QueryProgress, func() (domain.Summary, error) {
		if state == nil {
			return domain.Summary{}, nil
		}
		return state.Summarize(), nil
	}); err != nil {
		return domain.Summary{}, err
	}

	cancelled := false
	workflow.Go(ctx, func(gctx workflow.Context) {
		ch := workflow.GetSignalChannel(gctx, pipelinetemporal.SignalCancel)
		ch.Receive(gctx, nil)
		cancelled = true
	})

	// Stage activities get one attempt; the supervisor decides whether a
	// failed stage is retried, rerouted, or terminal.
	stageCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: stageActivityTimeout,
		HeartbeatTimeout:    stageHeartbeatTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	controlCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: controlActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	var a *activities.Activities

	if err := workflow.ExecuteActivity(controlCtx, a.Initialize, activities.InitializeInput{
		WorkflowID: input.WorkflowID,
		Query:      input.Query,
		MaxPapers:  input.MaxPapers,
	}).Get(ctx, &state); err != nil {
		return domain.Summary{}, err
	}

	for !state.IsTerminal() && !cancelled {
		var out activities.DecideOutput
		if err := workflow.ExecuteActivity(controlCtx, a.Decide, state).Get(ctx, &out); err != nil {
			return finalize(ctx, controlCtx, a, state, cancelled)
		}
		state = out.State
		checkpoint(controlCtx, a, state, logger)

		if state.IsTerminal() || cancelled {
			break
		}

		if err := workflow.ExecuteActivity(stageCtx, a.ExecuteStage, activities.StageInput{
			State: state,
			Stage: out.Decision.NextStage,
		}).Get(ctx, &state); err != nil {
			// Activity-level failure (timeout, worker loss): record it and
			// let the supervisor judge on the next turn.
			state.AddError(out.Decision.NextStage, err)
		}
		checkpoint(controlCtx, a, state, logger)
	}

	return finalize(ctx, controlCtx, a, state, cancelled)
}

// checkpoint persists a snapshot; failures are logged, never fatal.
func checkpoint(controlCtx workflow.Context, a *activities.Activities, state *domain.WorkflowState, logger log.Logger) {
	if err := workflow.ExecuteActivity(controlCtx, a.Checkpoint, state).Get(controlCtx, nil); err != nil {
		logger.Warn("checkpoint failed", "error", err)
	}
}

// finalize saves the terminal state, emits the terminal event, and returns
// the summary.
func finalize(ctx workflow.Context, controlCtx workflow.Context, a *activities.Activities, state *domain.WorkflowState, cancelled bool) (domain.Summary, error) {
	if err := workflow.ExecuteActivity(controlCtx, a.Finalize, activities.FinalizeInput{
		State:     state,
		Cancelled: cancelled,
	}).Get(ctx, &state); err != nil {
		workflow.GetLogger(ctx).Error("finalize failed", "error", err)
		if state == nil {
			return domain.Summary{}, err
		}
		return state.Summarize(), err
	}

	return state.Summarize(), nil
}
