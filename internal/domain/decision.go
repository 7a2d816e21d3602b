package domain

import "fmt"

// SupervisorDecision is the outcome of one supervisor evaluation: which stage
// runs next (or StageEnd with a terminal status), whether the pipeline
// continues, and a human-readable reason for the audit trail.
//
// It is a value object; it is not persisted beyond the DecisionRecord it
// produces.
type SupervisorDecision struct {
	NextStage      Stage
	Continue       bool
	Reason         string
	TerminalStatus WorkflowStatus
}

// RouteTo builds a continue decision routing to the given worker stage.
func RouteTo(stage Stage, reason string) SupervisorDecision {
	return SupervisorDecision{
		NextStage: stage,
		Continue:  true,
		Reason:    reason,
	}
}

// Terminate builds a terminal decision with the given final status.
func Terminate(status WorkflowStatus, reason string) SupervisorDecision {
	return SupervisorDecision{
		NextStage:      StageEnd,
		Continue:       false,
		Reason:         reason,
		TerminalStatus: status,
	}
}

// Validate checks the decision's internal consistency.
func (d SupervisorDecision) Validate() error {
	if d.Continue {
		if !d.NextStage.IsWorker() {
			return fmt.Errorf("%w: continue decision must route to a worker stage, got %q", ErrInvalidDecision, d.NextStage)
		}
		return nil
	}
	if d.NextStage != StageEnd {
		return fmt.Errorf("%w: terminal decision must route to %q, got %q", ErrInvalidDecision, StageEnd, d.NextStage)
	}
	if !d.TerminalStatus.IsTerminal() {
		return fmt.Errorf("%w: terminal decision carries non-terminal status %q", ErrInvalidDecision, d.TerminalStatus)
	}
	return nil
}

// String returns a compact representation for logging.
func (d SupervisorDecision) String() string {
	if d.Continue {
		return fmt.Sprintf("route=%s reason=%q", d.NextStage, d.Reason)
	}
	return fmt.Sprintf("terminate=%s reason=%q", d.TerminalStatus, d.Reason)
}
