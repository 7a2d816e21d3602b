package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// DecisionOracle is an optional fallback consulted when the rule table cannot
// route (unknown workflow status). Implementations typically delegate to a
// generative model. The oracle's output is validated against the decision
// contract before use; on any oracle failure the deterministic Failed default
// stands.
type DecisionOracle interface {
	Decide(ctx context.Context, state *domain.WorkflowState) (domain.SupervisorDecision, error)
}

// Supervisor is the pipeline's decision engine. Decide is pure with respect
// to its inputs except for mutating the per-workflow retry counters, the
// search cap on widening retries, and the synthesis placeholder on the
// synthesis degrade branch. All counters live on the WorkflowState, so
// concurrent workflow instances are isolated without synchronization.
type Supervisor struct {
	policy   Policy
	critical *CriticalClassifier
	oracle   DecisionOracle
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithOracle installs a fallback decision oracle.
func WithOracle(oracle DecisionOracle) Option {
	return func(s *Supervisor) { s.oracle = oracle }
}

// WithClock overrides the time source used for the elapsed-budget check.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// New creates a Supervisor with the given policy.
func New(policy Policy, logger zerolog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		policy:   policy,
		critical: NewCriticalClassifier(policy.CriticalPatterns),
		now:      time.Now,
		logger:   logger.With().Str("component", "supervisor").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decide evaluates the workflow state and returns the next routing decision.
// Evaluation order is fixed: termination checks, critical-error scan,
// stage-keyed routing, unknown-status default.
func (s *Supervisor) Decide(ctx context.Context, state *domain.WorkflowState) domain.SupervisorDecision {
	if decision, terminate := s.checkTermination(state); terminate {
		return decision
	}

	if msg, found := s.critical.Match(state.Errors); found {
		s.logger.Error().
			Str("workflow_id", state.ID.String()).
			Str("error", msg).
			Msg("critical error detected, failing workflow")
		return domain.Terminate(domain.WorkflowStatusFailed, fmt.Sprintf("critical error: %s", msg))
	}

	decision := s.route(ctx, state)

	s.logger.Info().
		Str("workflow_id", state.ID.String()).
		Str("status", string(state.Status)).
		Str("next_stage", string(decision.NextStage)).
		Bool("continue", decision.Continue).
		Str("reason", decision.Reason).
		Msg("routing decision")

	return decision
}

// checkTermination evaluates the terminal conditions: explicit stop flag,
// already-terminal status, error budget, iteration backstop, time budget.
func (s *Supervisor) checkTermination(state *domain.WorkflowState) (domain.SupervisorDecision, bool) {
	if state.Status.IsTerminal() {
		return domain.Terminate(state.Status, fmt.Sprintf("workflow already %s", state.Status)), true
	}

	if !state.Continue {
		return s.terminalByResults(state, "termination requested"), true
	}

	if len(state.Errors) >= s.policy.MaxErrors {
		return s.terminalByResults(state, fmt.Sprintf("error budget exhausted (%d errors)", len(state.Errors))), true
	}

	if s.policy.MaxIterations > 0 && state.Iteration >= s.policy.MaxIterations {
		return s.terminalByResults(state, fmt.Sprintf("iteration limit reached (%d)", state.Iteration)), true
	}

	if s.policy.TimeBudget > 0 && state.Elapsed(s.now()) > s.policy.TimeBudget {
		return s.terminalByResults(state, fmt.Sprintf("time budget exceeded (%s)", s.policy.TimeBudget)), true
	}

	return domain.SupervisorDecision{}, false
}

// terminalByResults picks the final status for a forced termination:
// Completed if validation produced results, Failed otherwise.
func (s *Supervisor) terminalByResults(state *domain.WorkflowState, reason string) domain.SupervisorDecision {
	if len(state.ValidationResults) > 0 {
		return domain.Terminate(domain.WorkflowStatusCompleted, reason)
	}
	return domain.Terminate(domain.WorkflowStatusFailed, reason)
}

// route is the stage-keyed routing table.
func (s *Supervisor) route(ctx context.Context, state *domain.WorkflowState) domain.SupervisorDecision {
	switch state.Status {
	case domain.WorkflowStatusInitialized:
		return domain.RouteTo(domain.StageLiteratureSearch, "starting workflow with literature search")

	case domain.WorkflowStatusSearching:
		return s.routeAfterSearch(state)

	case domain.WorkflowStatusSynthesizing:
		return s.routeAfterSynthesis(state)

	case domain.WorkflowStatusGenerating:
		return s.routeGeneration(state)

	case domain.WorkflowStatusValidating:
		return s.routeAfterValidation(state)

	default:
		return s.routeUnknown(ctx, state)
	}
}

// routeAfterSearch gates on paper count. Insufficient results order a retry
// with a widened search cap; exhausted retries advance with whatever papers
// exist, or fail the workflow when there are none at all.
func (s *Supervisor) routeAfterSearch(state *domain.WorkflowState) domain.SupervisorDecision {
	paperCount := len(state.Papers)

	if paperCount >= s.policy.MinPapers {
		return domain.RouteTo(domain.StageSynthesis, fmt.Sprintf("sufficient papers found (%d)", paperCount))
	}

	retries := state.RetryCount(domain.StageLiteratureSearch)
	budget := s.policy.RetryBudget(domain.StageLiteratureSearch)

	if retries < budget {
		state.RetryCounts[domain.StageLiteratureSearch] = retries + 1
		state.MaxPapers = min(state.MaxPapers*2, s.policy.SearchWidenCap)

		return domain.RouteTo(domain.StageLiteratureSearch,
			fmt.Sprintf("retrying search with expanded parameters (attempt %d/%d)", retries+1, budget))
	}

	if paperCount > 0 {
		return domain.RouteTo(domain.StageSynthesis,
			fmt.Sprintf("proceeding with %d papers after max retries", paperCount))
	}

	state.AddError(domain.StageLiteratureSearch, domain.ErrNoPapersFound)
	return domain.Terminate(domain.WorkflowStatusFailed, "no papers found after maximum retries")
}

// routeAfterSynthesis retries a missing synthesis while budget remains, then
// degrades to a placeholder rather than deadlocking. A present but below-bar
// synthesis routes back to search for more material while the paper set is
// small.
func (s *Supervisor) routeAfterSynthesis(state *domain.WorkflowState) domain.SupervisorDecision {
	if state.Synthesis == nil {
		retries := state.RetryCount(domain.StageSynthesis)
		budget := s.policy.RetryBudget(domain.StageSynthesis)

		if retries < budget {
			state.RetryCounts[domain.StageSynthesis] = retries + 1
			return domain.RouteTo(domain.StageSynthesis,
				fmt.Sprintf("retrying synthesis (attempt %d/%d)", retries+1, budget))
		}

		state.Synthesis = domain.PlaceholderSynthesis(len(state.Papers))
		return domain.RouteTo(domain.StageHypothesis, "proceeding with minimal synthesis after retries")
	}

	if state.Synthesis.MeetsQualityBar(s.policy.MinPatterns) {
		return domain.RouteTo(domain.StageHypothesis,
			fmt.Sprintf("synthesis with %d patterns and %d gaps",
				len(state.Synthesis.Patterns), len(state.Synthesis.ResearchGaps)))
	}

	if len(state.Papers) < s.policy.PoorSynthesisPaperBound {
		state.MaxPapers = s.policy.PoorSynthesisMaxPapers
		return domain.RouteTo(domain.StageLiteratureSearch, "poor synthesis, gathering more papers")
	}

	return domain.RouteTo(domain.StageHypothesis, "proceeding with limited synthesis")
}

// routeGeneration covers both sub-stages of the generating status: hypothesis
// generation first, then methodology design, with a quality gate on the
// hypotheses in between.
func (s *Supervisor) routeGeneration(state *domain.WorkflowState) domain.SupervisorDecision {
	if len(state.Hypotheses) == 0 {
		return domain.RouteTo(domain.StageHypothesis, "generating hypotheses")
	}

	if len(state.Methodologies) == 0 {
		if !s.hypothesesMeetQualityBar(state.Hypotheses) {
			retries := state.RetryCount(domain.StageHypothesis)
			budget := s.policy.RetryBudget(domain.StageHypothesis)

			if retries < budget {
				state.RetryCounts[domain.StageHypothesis] = retries + 1
				return domain.RouteTo(domain.StageHypothesis,
					fmt.Sprintf("regenerating higher quality hypotheses (attempt %d/%d)", retries+1, budget))
			}
		}

		return domain.RouteTo(domain.StageMethodology,
			fmt.Sprintf("designing methodologies for %d hypotheses", len(state.Hypotheses)))
	}

	return domain.RouteTo(domain.StageValidation, "moving to validation phase")
}

// routeAfterValidation terminates the workflow. The presence of validation
// results, not their verdicts, determines success: the pipeline's job is to
// produce a judgment.
func (s *Supervisor) routeAfterValidation(state *domain.WorkflowState) domain.SupervisorDecision {
	if len(state.ValidationResults) > 0 {
		validCount := 0
		for _, r := range state.ValidationResults {
			if r.IsValid {
				validCount++
			}
		}
		return domain.Terminate(domain.WorkflowStatusCompleted,
			fmt.Sprintf("workflow complete with %d/%d hypotheses judged valid",
				validCount, len(state.ValidationResults)))
	}

	return domain.Terminate(domain.WorkflowStatusFailed, "validation completed but no results generated")
}

// routeUnknown handles a status outside the state machine. The oracle, when
// configured, may propose a route; anything it returns is validated before
// use. Without a valid oracle answer the workflow fails explicitly.
func (s *Supervisor) routeUnknown(ctx context.Context, state *domain.WorkflowState) domain.SupervisorDecision {
	if s.oracle != nil {
		decision, err := s.oracle.Decide(ctx, state)
		if err == nil && decision.Validate() == nil {
			s.logger.Warn().
				Str("workflow_id", state.ID.String()).
				Str("status", string(state.Status)).
				Str("next_stage", string(decision.NextStage)).
				Msg("oracle resolved unknown status")
			return decision
		}
		if err != nil {
			s.logger.Error().Err(err).
				Str("workflow_id", state.ID.String()).
				Msg("oracle decision failed")
		}
	}

	return domain.Terminate(domain.WorkflowStatusFailed,
		fmt.Sprintf("unknown workflow status: %s", state.Status))
}

// hypothesesMeetQualityBar checks count and average confidence thresholds.
func (s *Supervisor) hypothesesMeetQualityBar(hypotheses []domain.Hypothesis) bool {
	if len(hypotheses) < s.policy.MinHypotheses {
		return false
	}
	return domain.AverageConfidence(hypotheses) >= s.policy.MinConfidence
}

// Apply commits a decision to the workflow state: increments the iteration
// counter exactly once, records the audit entry, and performs the status
// transition. A transition not present in the adjacency table is a structural
// error that fails the workflow.
func (s *Supervisor) Apply(state *domain.WorkflowState, decision domain.SupervisorDecision) error {
	now := s.now().UTC()

	state.Iteration++
	state.DecisionLog = append(state.DecisionLog, domain.DecisionRecord{
		Iteration: state.Iteration,
		NextStage: decision.NextStage,
		Continue:  decision.Continue,
		Reason:    decision.Reason,
		DecidedAt: now,
	})
	state.UpdatedAt = now

	if err := decision.Validate(); err != nil {
		s.failStructural(state, now, err.Error())
		return err
	}

	if !decision.Continue {
		if !state.Status.IsTerminal() {
			target := decision.TerminalStatus
			if !state.Status.CanTransition(target) {
				// Completed is only reachable from Validating; anything
				// else collapses to Failed.
				target = domain.WorkflowStatusFailed
			}
			state.Status = target
		}
		state.Continue = false
		state.CurrentStage = domain.StageEnd
		if state.CompletedAt == nil {
			state.CompletedAt = &now
		}
		return nil
	}

	next := decision.NextStage.Status()
	if state.Status != next && !state.Status.CanTransition(next) {
		err := fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, state.Status, next)
		state.AddError(decision.NextStage, err)
		s.failStructural(state, now, err.Error())
		return err
	}

	state.Status = next
	state.CurrentStage = decision.NextStage
	return nil
}

// failStructural forces the workflow into Failed after a contract violation.
func (s *Supervisor) failStructural(state *domain.WorkflowState, now time.Time, reason string) {
	s.logger.Error().
		Str("workflow_id", state.ID.String()).
		Str("reason", reason).
		Msg("structural error, failing workflow")

	state.Status = domain.WorkflowStatusFailed
	state.Continue = false
	state.CurrentStage = domain.StageEnd
	if state.CompletedAt == nil {
		state.CompletedAt = &now
	}
}
