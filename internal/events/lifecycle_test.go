package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// capturingPublisher records published events in memory.
type capturingPublisher struct {
	events     []*domain.Event
	publishErr error
}

func (p *capturingPublisher) Publish(ctx context.Context, event *domain.Event) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func TestEmitter_WorkflowStarted(t *testing.T) {
	pub := &capturingPublisher{}
	emitter := NewEmitter(pub, zerolog.Nop())

	state := domain.NewWorkflowState("CRISPR off-target effects", 50)
	emitter.WorkflowStarted(context.Background(), state)

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, domain.EventTypeWorkflowStarted, event.EventType)
	assert.Equal(t, state.ID.String(), event.WorkflowID)

	var payload domain.WorkflowStartedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, state.ID, payload.WorkflowID)
	assert.Equal(t, "CRISPR off-target effects", payload.Query)
	assert.Equal(t, 50, payload.MaxPapers)
}

func TestEmitter_StageCompleted(t *testing.T) {
	pub := &capturingPublisher{}
	emitter := NewEmitter(pub, zerolog.Nop())

	state := domain.NewWorkflowState("test query", 50)
	state.Iteration = 3
	emitter.StageCompleted(context.Background(), state, domain.StageSynthesis, true, 2*time.Second)

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.EventTypeStageCompleted, pub.events[0].EventType)

	var payload domain.StageCompletedPayload
	require.NoError(t, json.Unmarshal(pub.events[0].Payload, &payload))
	assert.Equal(t, domain.StageSynthesis, payload.Stage)
	assert.Equal(t, 3, payload.Iteration)
	assert.True(t, payload.Succeeded)
	assert.Equal(t, 2*time.Second, payload.Duration)
}

func TestEmitter_WorkflowCompleted(t *testing.T) {
	pub := &capturingPublisher{}
	emitter := NewEmitter(pub, zerolog.Nop())

	state := domain.NewWorkflowState("test query", 50)
	state.Status = domain.WorkflowStatusCompleted
	emitter.WorkflowCompleted(context.Background(), state)

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.EventTypeWorkflowCompleted, pub.events[0].EventType)

	var payload domain.WorkflowCompletedPayload
	require.NoError(t, json.Unmarshal(pub.events[0].Payload, &payload))
	assert.Equal(t, domain.WorkflowStatusCompleted, payload.Summary.Status)
}

func TestEmitter_WorkflowFailed(t *testing.T) {
	pub := &capturingPublisher{}
	emitter := NewEmitter(pub, zerolog.Nop())

	state := domain.NewWorkflowState("test query", 50)
	state.AddError(domain.StageLiteratureSearch, errors.New("no papers found"))
	emitter.WorkflowFailed(context.Background(), state, "search retries exhausted")

	require.Len(t, pub.events, 1)

	var payload domain.WorkflowFailedPayload
	require.NoError(t, json.Unmarshal(pub.events[0].Payload, &payload))
	assert.Equal(t, "search retries exhausted", payload.Reason)
	require.Len(t, payload.Errors, 1)
	assert.Contains(t, payload.Errors[0], "no papers found")
}

func TestEmitter_WorkflowCancelled(t *testing.T) {
	pub := &capturingPublisher{}
	emitter := NewEmitter(pub, zerolog.Nop())

	state := domain.NewWorkflowState("test query", 50)
	emitter.WorkflowCancelled(context.Background(), state, "user requested")

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.EventTypeWorkflowCancelled, pub.events[0].EventType)

	var payload domain.WorkflowCancelledPayload
	require.NoError(t, json.Unmarshal(pub.events[0].Payload, &payload))
	assert.Equal(t, "user requested", payload.Reason)
}

func TestEmitter_PublishFailureIsSwallowed(t *testing.T) {
	pub := &capturingPublisher{publishErr: errors.New("broker down")}
	emitter := NewEmitter(pub, zerolog.Nop())

	state := domain.NewWorkflowState("test query", 50)

	// Must not panic or propagate the error.
	assert.NotPanics(t, func() {
		emitter.WorkflowStarted(context.Background(), state)
	})
}

func TestNewEmitter_NilPublisherDefaultsToNop(t *testing.T) {
	emitter := NewEmitter(nil, zerolog.Nop())

	state := domain.NewWorkflowState("test query", 50)
	assert.NotPanics(t, func() {
		emitter.WorkflowCompleted(context.Background(), state)
	})
}
