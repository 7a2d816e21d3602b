package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/llm"
)

// oracleTemperature keeps oracle routing near-deterministic.
const oracleTemperature = 0.3

// LLMOracle asks a generative model to propose a routing decision when the
// rule table cannot. It is a fallback, never the primary decision path.
type LLMOracle struct {
	client llm.Client
}

// NewLLMOracle creates an oracle backed by the given client.
func NewLLMOracle(client llm.Client) *LLMOracle {
	return &LLMOracle{client: client}
}

// oracleResponse is the JSON shape the oracle prompt requests.
type oracleResponse struct {
	NextStage string `json:"next_stage"`
	Continue  bool   `json:"continue"`
	Reason    string `json:"reason"`
}

// Decide proposes a routing decision from a state summary. The returned
// decision is validated by the supervisor against the decision contract
// before use.
func (o *LLMOracle) Decide(ctx context.Context, state *domain.WorkflowState) (domain.SupervisorDecision, error) {
	resp, err := o.client.Complete(ctx, llm.Request{
		System:      oracleSystemPrompt,
		User:        buildOraclePrompt(state),
		Temperature: oracleTemperature,
		JSONOutput:  true,
	})
	if err != nil {
		return domain.SupervisorDecision{}, fmt.Errorf("oracle completion: %w", err)
	}

	var parsed oracleResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return domain.SupervisorDecision{}, fmt.Errorf("oracle response parse: %w", err)
	}

	if !parsed.Continue {
		return domain.Terminate(domain.WorkflowStatusFailed, parsed.Reason), nil
	}

	stage := domain.Stage(parsed.NextStage)
	if !stage.IsWorker() {
		return domain.SupervisorDecision{}, fmt.Errorf("oracle proposed unknown stage %q", parsed.NextStage)
	}

	return domain.RouteTo(stage, parsed.Reason), nil
}

const oracleSystemPrompt = `You are the routing supervisor of a research pipeline with five stages:
literature_search, synthesis, hypothesis_generation, methodology_design, validation.
Given a workflow state summary, choose the next stage.
Respond with JSON only: {"next_stage": "<stage>", "continue": true|false, "reason": "<short reason>"}.
Set continue to false only when no stage can make progress.`

// buildOraclePrompt summarizes the state for the oracle.
func buildOraclePrompt(state *domain.WorkflowState) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Workflow status: %s\n", state.Status)
	fmt.Fprintf(&sb, "Iteration: %d\n", state.Iteration)
	fmt.Fprintf(&sb, "Papers found: %d\n", len(state.Papers))
	fmt.Fprintf(&sb, "Synthesis present: %t\n", state.Synthesis != nil)
	fmt.Fprintf(&sb, "Hypotheses: %d\n", len(state.Hypotheses))
	fmt.Fprintf(&sb, "Methodologies: %d\n", len(state.Methodologies))
	fmt.Fprintf(&sb, "Validation results: %d\n", len(state.ValidationResults))
	fmt.Fprintf(&sb, "Errors: %d\n", len(state.Errors))

	return sb.String()
}
