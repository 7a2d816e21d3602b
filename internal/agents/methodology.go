package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/llm"
)

// MethodologyDesigner produces one experimental methodology per hypothesis.
type MethodologyDesigner struct {
	client llm.Client
	logger zerolog.Logger
}

// NewMethodologyDesigner creates the methodology design worker.
func NewMethodologyDesigner(client llm.Client, logger zerolog.Logger) *MethodologyDesigner {
	return &MethodologyDesigner{
		client: client,
		logger: logger.With().Str("component", "methodology_designer").Logger(),
	}
}

// Stage implements Agent.
func (d *MethodologyDesigner) Stage() domain.Stage {
	return domain.StageMethodology
}

const methodologySystemPrompt = `You are an experimental design expert.
Design a rigorous, practical methodology to test the given hypothesis.
Respond with JSON only:
{
  "approach": "...",
  "experimental_design": ["step"],
  "required_resources": ["resource"],
  "estimated_duration": "...",
  "expected_outcomes": ["outcome"]
}`

type methodologyResponse struct {
	Approach           string   `json:"approach"`
	ExperimentalDesign []string `json:"experimental_design"`
	RequiredResources  []string `json:"required_resources"`
	EstimatedDuration  string   `json:"estimated_duration"`
	ExpectedOutcomes   []string `json:"expected_outcomes"`
}

// Execute writes state.Methodologies, one entry per hypothesis in hypothesis
// order. The slice is assigned only after every design succeeds, so a partial
// failure leaves the state unchanged for retry.
func (d *MethodologyDesigner) Execute(ctx context.Context, state *domain.WorkflowState) error {
	if len(state.Hypotheses) == 0 {
		return fmt.Errorf("no hypotheses available for methodology design")
	}

	methodologies := make([]domain.Methodology, 0, len(state.Hypotheses))
	for i, hypothesis := range state.Hypotheses {
		methodology, err := d.design(ctx, state.Query, i, hypothesis)
		if err != nil {
			return fmt.Errorf("designing methodology for hypothesis %d: %w", i, err)
		}
		methodologies = append(methodologies, methodology)
	}

	state.Methodologies = methodologies
	state.UpdatedAt = nowUTC()

	d.logger.Info().
		Stringer("workflow_id", state.ID).
		Int("methodologies", len(methodologies)).
		Msg("methodology design complete")

	return nil
}

func (d *MethodologyDesigner) design(ctx context.Context, query string, index int, hypothesis domain.Hypothesis) (domain.Methodology, error) {
	resp, err := d.client.Complete(ctx, llm.Request{
		System:      methodologySystemPrompt,
		User:        buildMethodologyPrompt(query, hypothesis),
		Temperature: temperatureMethodology,
		JSONOutput:  true,
	})
	if err != nil {
		return domain.Methodology{}, fmt.Errorf("methodology completion: %w", err)
	}

	var parsed methodologyResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return domain.Methodology{}, fmt.Errorf("methodology response parse: %w", err)
	}
	if strings.TrimSpace(parsed.Approach) == "" {
		return domain.Methodology{}, fmt.Errorf("methodology response missing approach")
	}

	return domain.Methodology{
		HypothesisIndex:    index,
		Approach:           parsed.Approach,
		ExperimentalDesign: parsed.ExperimentalDesign,
		RequiredResources:  parsed.RequiredResources,
		EstimatedDuration:  parsed.EstimatedDuration,
		ExpectedOutcomes:   parsed.ExpectedOutcomes,
	}, nil
}

func buildMethodologyPrompt(query string, hypothesis domain.Hypothesis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research query: %s\n\nHypothesis: %s\n", query, hypothesis.Content)
	if hypothesis.Reasoning != "" {
		fmt.Fprintf(&sb, "Reasoning: %s\n", hypothesis.Reasoning)
	}
	fmt.Fprintf(&sb, "Confidence: %.2f\n", hypothesis.ConfidenceScore)
	return sb.String()
}
