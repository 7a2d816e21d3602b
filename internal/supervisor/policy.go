// Package supervisor implements the decision engine that routes the research
// pipeline: it inspects the workflow state after every stage execution and
// decides which worker runs next, orders bounded retries with quality gating,
// and chooses the terminal status.
package supervisor

import (
	"time"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Policy holds the quality thresholds and retry budgets the supervisor
// evaluates against. A zero-value Policy is not usable; construct with
// DefaultPolicy and override from configuration.
type Policy struct {
	// MinPapers is the paper count below which a search retry is ordered.
	MinPapers int

	// MinPatterns is the pattern count below which a synthesis fails the
	// quality bar (unless it identified research gaps).
	MinPatterns int

	// MinHypotheses is the minimum hypothesis count for the quality gate.
	MinHypotheses int

	// MinConfidence is the minimum average hypothesis confidence.
	MinConfidence float64

	// MaxErrors terminates the workflow once the error log reaches it.
	MaxErrors int

	// MaxIterations is a hard backstop on supervisor decisions per workflow.
	MaxIterations int

	// TimeBudget is the wall-clock budget for a workflow run.
	TimeBudget time.Duration

	// MaxRetries is the per-stage retry budget.
	MaxRetries map[domain.Stage]int

	// SearchWidenCap bounds the doubled paper cap on search retries.
	SearchWidenCap int

	// PoorSynthesisPaperBound: a below-bar synthesis routes back to search
	// only while the paper count is under this bound.
	PoorSynthesisPaperBound int

	// PoorSynthesisMaxPapers is the paper cap set when routing back to
	// search after a below-bar synthesis.
	PoorSynthesisMaxPapers int

	// CriticalPatterns are the fatal substrings scanned for in the error
	// log. Any match fails the workflow immediately.
	CriticalPatterns []string
}

// DefaultPolicy returns the standard thresholds and retry budgets.
func DefaultPolicy() Policy {
	return Policy{
		MinPapers:     5,
		MinPatterns:   2,
		MinHypotheses: 1,
		MinConfidence: 0.5,
		MaxErrors:     5,
		MaxIterations: 25,
		TimeBudget:    5 * time.Minute,
		MaxRetries: map[domain.Stage]int{
			domain.StageLiteratureSearch: 3,
			domain.StageSynthesis:        2,
			domain.StageHypothesis:       2,
			domain.StageMethodology:      2,
			domain.StageValidation:       1,
		},
		SearchWidenCap:          200,
		PoorSynthesisPaperBound: 20,
		PoorSynthesisMaxPapers:  50,
		CriticalPatterns: []string{
			"api key",
			"rate limit",
			"authentication",
			"unauthorized",
			"quota exceeded",
		},
	}
}

// RetryBudget returns the retry budget for a stage, 0 if unset.
func (p Policy) RetryBudget(stage domain.Stage) int {
	return p.MaxRetries[stage]
}
