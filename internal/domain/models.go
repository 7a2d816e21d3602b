// Package domain provides domain models and business logic for the Research Pipeline Service.
package domain

// WorkflowStatus represents the lifecycle states of a research workflow.
// These values must match the database enum workflow_status.
type WorkflowStatus string

const (
	WorkflowStatusInitialized  WorkflowStatus = "initialized"
	WorkflowStatusSearching    WorkflowStatus = "searching"
	WorkflowStatusSynthesizing WorkflowStatus = "synthesizing"
	WorkflowStatusGenerating   WorkflowStatus = "generating"
	WorkflowStatusValidating   WorkflowStatus = "validating"
	WorkflowStatusCompleted    WorkflowStatus = "completed"
	WorkflowStatusFailed       WorkflowStatus = "failed"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// IsValid returns true if the status is one of the known lifecycle values.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case WorkflowStatusInitialized, WorkflowStatusSearching, WorkflowStatusSynthesizing,
		WorkflowStatusGenerating, WorkflowStatusValidating, WorkflowStatusCompleted,
		WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// validTransitions is the static adjacency table for the workflow state machine.
// Transitions are mostly forward but a retry decision may route back to an
// earlier state (e.g. synthesizing -> searching when papers are insufficient).
// Completed and Failed are absorbing.
var validTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowStatusInitialized:  {WorkflowStatusSearching, WorkflowStatusFailed},
	WorkflowStatusSearching:    {WorkflowStatusSearching, WorkflowStatusSynthesizing, WorkflowStatusFailed},
	WorkflowStatusSynthesizing: {WorkflowStatusSynthesizing, WorkflowStatusSearching, WorkflowStatusGenerating, WorkflowStatusFailed},
	WorkflowStatusGenerating:   {WorkflowStatusGenerating, WorkflowStatusValidating, WorkflowStatusFailed},
	WorkflowStatusValidating:   {WorkflowStatusCompleted, WorkflowStatusFailed},
	WorkflowStatusCompleted:    {},
	WorkflowStatusFailed:       {},
}

// CanTransition reports whether moving from s to target is a legal transition
// according to the adjacency table.
func (s WorkflowStatus) CanTransition(target WorkflowStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Stage identifies one of the pipeline workers.
type Stage string

const (
	StageLiteratureSearch  Stage = "literature_search"
	StageSynthesis         Stage = "synthesis"
	StageHypothesis        Stage = "hypothesis_generation"
	StageMethodology       Stage = "methodology_design"
	StageValidation        Stage = "validation"
	// StageEnd signals a terminal decision; no worker runs for it.
	StageEnd Stage = "end"
)

// IsWorker returns true if the stage maps to a runnable pipeline worker.
func (s Stage) IsWorker() bool {
	switch s {
	case StageLiteratureSearch, StageSynthesis, StageHypothesis, StageMethodology, StageValidation:
		return true
	default:
		return false
	}
}

// Status returns the workflow status that a routing decision to this stage
// implies. StageEnd has no status of its own; terminal statuses are chosen
// by the supervisor's termination logic.
func (s Stage) Status() WorkflowStatus {
	switch s {
	case StageLiteratureSearch:
		return WorkflowStatusSearching
	case StageSynthesis:
		return WorkflowStatusSynthesizing
	case StageHypothesis, StageMethodology:
		return WorkflowStatusGenerating
	case StageValidation:
		return WorkflowStatusValidating
	default:
		return WorkflowStatusFailed
	}
}

// SourceType represents the search source that provided paper data.
type SourceType string

const (
	SourceTypeArXiv          SourceType = "arxiv"
	SourceTypeBioRxiv        SourceType = "biorxiv"
	SourceTypeMedRxiv        SourceType = "medrxiv"
	SourceTypeChemRxiv       SourceType = "chemrxiv"
	SourceTypeOpenAlex       SourceType = "openalex"
	SourceTypeResearchSquare SourceType = "researchsquare"
	SourceTypeSSRN           SourceType = "ssrn"
)

// Weight returns the fixed reputation constant for the source, used as the
// source_weight term of the composite ranking score.
func (s SourceType) Weight() float64 {
	switch s {
	case SourceTypeArXiv:
		return 1.0
	case SourceTypeBioRxiv, SourceTypeMedRxiv:
		return 0.95
	case SourceTypeChemRxiv:
		return 0.9
	case SourceTypeResearchSquare, SourceTypeSSRN:
		return 0.85
	default:
		return 0.8
	}
}
