package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkflowState is the single source of truth threaded through the pipeline.
// It is mutated in place by the supervisor (control fields) and by each
// worker (its own artifact fields only) and becomes immutable once terminal.
//
// The driver runs a single logical thread of control per workflow instance,
// so no locking is required on this struct.
type WorkflowState struct {
	// Identity.
	ID    uuid.UUID `json:"id"`
	Query string    `json:"query"`

	// Control. Owned by the supervisor and driver exclusively.
	Status       WorkflowStatus `json:"status"`
	CurrentStage Stage          `json:"current_stage"`
	Iteration    int            `json:"iteration"`
	Continue     bool           `json:"continue"`

	// MaxPapers is the current requested search cap. The supervisor widens
	// it when a search retry is ordered.
	MaxPapers int `json:"max_papers"`

	// Accumulated artifacts. Each is written by exactly one stage.
	Papers            []Paper            `json:"papers"`
	Synthesis         *Synthesis         `json:"synthesis,omitempty"`
	Hypotheses        []Hypothesis       `json:"hypotheses"`
	Methodologies     []Methodology      `json:"methodologies"`
	ValidationResults []ValidationResult `json:"validation_results"`

	// Diagnostics.
	Errors      []string         `json:"errors"`
	RetryCounts map[Stage]int    `json:"retry_counts"`
	DecisionLog []DecisionRecord `json:"decision_log"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DecisionRecord is one entry of the supervisor audit trail.
type DecisionRecord struct {
	Iteration int       `json:"iteration"`
	NextStage Stage     `json:"next_stage"`
	Continue  bool      `json:"continue"`
	Reason    string    `json:"reason"`
	DecidedAt time.Time `json:"decided_at"`
}

// NewWorkflowState creates the initial state for a research query.
func NewWorkflowState(query string, maxPapers int) *WorkflowState {
	now := time.Now().UTC()
	return &WorkflowState{
		ID:          uuid.New(),
		Query:       query,
		Status:      WorkflowStatusInitialized,
		Continue:    true,
		MaxPapers:   maxPapers,
		RetryCounts: make(map[Stage]int),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddError appends a stage-tagged message to the error log.
// Worker failures are recorded here rather than propagated; the supervisor
// reads the log to decide the fallback.
func (s *WorkflowState) AddError(stage Stage, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("[%s] %v", stage, err))
	s.UpdatedAt = time.Now().UTC()
}

// IsTerminal reports whether the workflow has reached an absorbing state.
func (s *WorkflowState) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Elapsed returns the wall-clock time since the workflow was created.
func (s *WorkflowState) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// RetryCount returns the recorded retry count for a stage.
func (s *WorkflowState) RetryCount(stage Stage) int {
	return s.RetryCounts[stage]
}

// Summary condenses the terminal state for API responses and events.
type Summary struct {
	ID               uuid.UUID      `json:"id"`
	Query            string         `json:"query"`
	Status           WorkflowStatus `json:"status"`
	Iterations       int            `json:"iterations"`
	PaperCount       int            `json:"paper_count"`
	PatternCount     int            `json:"pattern_count"`
	HypothesisCount  int            `json:"hypothesis_count"`
	MethodologyCount int            `json:"methodology_count"`
	ValidationCount  int            `json:"validation_count"`
	ErrorCount       int            `json:"error_count"`
	Errors           []string       `json:"errors,omitempty"`
	Duration         time.Duration  `json:"duration_ns"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// Summarize builds a Summary from the current state.
func (s *WorkflowState) Summarize() Summary {
	patterns := 0
	if s.Synthesis != nil {
		patterns = len(s.Synthesis.Patterns)
	}

	end := time.Now().UTC()
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}

	return Summary{
		ID:               s.ID,
		Query:            s.Query,
		Status:           s.Status,
		Iterations:       s.Iteration,
		PaperCount:       len(s.Papers),
		PatternCount:     patterns,
		HypothesisCount:  len(s.Hypotheses),
		MethodologyCount: len(s.Methodologies),
		ValidationCount:  len(s.ValidationResults),
		ErrorCount:       len(s.Errors),
		Errors:           s.Errors,
		Duration:         end.Sub(s.CreatedAt),
		CreatedAt:        s.CreatedAt,
		CompletedAt:      s.CompletedAt,
	}
}
