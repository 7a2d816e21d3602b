package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for workflow lifecycle events.
const (
	EventTypeWorkflowStarted   = "workflow.started"
	EventTypeStageCompleted    = "workflow.stage_completed"
	EventTypeWorkflowCompleted = "workflow.completed"
	EventTypeWorkflowFailed    = "workflow.failed"
	EventTypeWorkflowCancelled = "workflow.cancelled"
)

// Event is a workflow lifecycle event published to Kafka.
type Event struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	WorkflowID string    `json:"workflow_id"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEvent creates a lifecycle event with a JSON-serialized payload.
func NewEvent(eventType string, workflowID uuid.UUID, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		WorkflowID: workflowID.String(),
		Payload:    payloadBytes,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// WorkflowStartedPayload is the payload for workflow.started events.
type WorkflowStartedPayload struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	Query      string    `json:"query"`
	MaxPapers  int       `json:"max_papers"`
}

// StageCompletedPayload is the payload for workflow.stage_completed events.
type StageCompletedPayload struct {
	WorkflowID uuid.UUID     `json:"workflow_id"`
	Stage      Stage         `json:"stage"`
	Iteration  int           `json:"iteration"`
	Succeeded  bool          `json:"succeeded"`
	Duration   time.Duration `json:"duration_ns"`
}

// WorkflowCompletedPayload is the payload for workflow.completed events.
type WorkflowCompletedPayload struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	Summary    Summary   `json:"summary"`
}

// WorkflowFailedPayload is the payload for workflow.failed events.
type WorkflowFailedPayload struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	Reason     string    `json:"reason"`
	Errors     []string  `json:"errors"`
}

// WorkflowCancelledPayload is the payload for workflow.cancelled events.
type WorkflowCancelledPayload struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	Reason     string    `json:"reason,omitempty"`
}
