package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Emitter builds and publishes typed lifecycle events. Publish failures are
// logged, never propagated: an unhealthy broker must not fail a healthy
// pipeline.
type Emitter struct {
	publisher Publisher
	logger    zerolog.Logger
}

// NewEmitter wraps a publisher with typed, best-effort emit helpers.
func NewEmitter(publisher Publisher, logger zerolog.Logger) *Emitter {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Emitter{
		publisher: publisher,
		logger:    logger.With().Str("component", "event_emitter").Logger(),
	}
}

// WorkflowStarted emits a workflow.started event.
func (e *Emitter) WorkflowStarted(ctx context.Context, state *domain.WorkflowState) {
	e.emit(ctx, domain.EventTypeWorkflowStarted, state.ID, domain.WorkflowStartedPayload{
		WorkflowID: state.ID,
		Query:      state.Query,
		MaxPapers:  state.MaxPapers,
	})
}

// StageCompleted emits a workflow.stage_completed event.
func (e *Emitter) StageCompleted(ctx context.Context, state *domain.WorkflowState, stage domain.Stage, succeeded bool, duration time.Duration) {
	e.emit(ctx, domain.EventTypeStageCompleted, state.ID, domain.StageCompletedPayload{
		WorkflowID: state.ID,
		Stage:      stage,
		Iteration:  state.Iteration,
		Succeeded:  succeeded,
		Duration:   duration,
	})
}

// WorkflowCompleted emits a workflow.completed event with the final summary.
func (e *Emitter) WorkflowCompleted(ctx context.Context, state *domain.WorkflowState) {
	e.emit(ctx, domain.EventTypeWorkflowCompleted, state.ID, domain.WorkflowCompletedPayload{
		WorkflowID: state.ID,
		Summary:    state.Summarize(),
	})
}

// WorkflowFailed emits a workflow.failed event carrying the error log.
func (e *Emitter) WorkflowFailed(ctx context.Context, state *domain.WorkflowState, reason string) {
	e.emit(ctx, domain.EventTypeWorkflowFailed, state.ID, domain.WorkflowFailedPayload{
		WorkflowID: state.ID,
		Reason:     reason,
		Errors:     state.Errors,
	})
}

// WorkflowCancelled emits a workflow.cancelled event.
func (e *Emitter) WorkflowCancelled(ctx context.Context, state *domain.WorkflowState, reason string) {
	e.emit(ctx, domain.EventTypeWorkflowCancelled, state.ID, domain.WorkflowCancelledPayload{
		WorkflowID: state.ID,
		Reason:     reason,
	})
}

func (e *Emitter) emit(ctx context.Context, eventType string, workflowID uuid.UUID, payload interface{}) {
	event, err := domain.NewEvent(eventType, workflowID, payload)
	if err != nil {
		e.logger.Error().Err(err).
			Str("event_type", eventType).
			Stringer("workflow_id", workflowID).
			Msg("failed to build event")
		return
	}

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn().Err(err).
			Str("event_type", eventType).
			Stringer("workflow_id", workflowID).
			Msg("failed to publish event")
	}
}
