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

// HypothesisGenerator derives testable research hypotheses from the
// synthesis.
type HypothesisGenerator struct {
	client llm.Client
	logger zerolog.Logger
}

// NewHypothesisGenerator creates the hypothesis generation worker.
func NewHypothesisGenerator(client llm.Client, logger zerolog.Logger) *HypothesisGenerator {
	return &HypothesisGenerator{
		client: client,
		logger: logger.With().Str("component", "hypothesis_generator").Logger(),
	}
}

// Stage implements Agent.
func (g *HypothesisGenerator) Stage() domain.Stage {
	return domain.StageHypothesis
}

const hypothesisSystemPrompt = `You are a research scientist proposing novel, testable hypotheses.
Ground every hypothesis in the provided synthesis; prefer hypotheses that address the identified gaps.
Respond with JSON only:
{
  "hypotheses": [
    {
      "content": "...",
      "reasoning": "...",
      "confidence": 0.0,
      "supporting_papers": ["id"],
      "novelty": 0.0,
      "feasibility": 0.0
    }
  ]
}`

type hypothesisResponse struct {
	Hypotheses []struct {
		Content          string   `json:"content"`
		Reasoning        string   `json:"reasoning"`
		Confidence       float64  `json:"confidence"`
		SupportingPapers []string `json:"supporting_papers"`
		Novelty          float64  `json:"novelty"`
		Feasibility      float64  `json:"feasibility"`
	} `json:"hypotheses"`
}

// Execute writes state.Hypotheses from the synthesis. A regeneration run
// (ordered by the supervisor after a failed quality gate) replaces the
// previous set.
func (g *HypothesisGenerator) Execute(ctx context.Context, state *domain.WorkflowState) error {
	if state.Synthesis == nil {
		return fmt.Errorf("no synthesis available for hypothesis generation")
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		System:      hypothesisSystemPrompt,
		User:        buildHypothesisPrompt(state.Query, state.Synthesis),
		Temperature: temperatureHypothesis,
		JSONOutput:  true,
	})
	if err != nil {
		return fmt.Errorf("hypothesis completion: %w", err)
	}

	var parsed hypothesisResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return fmt.Errorf("hypothesis response parse: %w", err)
	}

	hypotheses := make([]domain.Hypothesis, 0, len(parsed.Hypotheses))
	for _, h := range parsed.Hypotheses {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		hypotheses = append(hypotheses, domain.Hypothesis{
			Content:          h.Content,
			Reasoning:        h.Reasoning,
			ConfidenceScore:  h.Confidence,
			SupportingPapers: h.SupportingPapers,
			NoveltyScore:     h.Novelty,
			FeasibilityScore: h.Feasibility,
		})
	}

	state.Hypotheses = hypotheses
	state.UpdatedAt = nowUTC()

	g.logger.Info().
		Stringer("workflow_id", state.ID).
		Int("hypotheses", len(hypotheses)).
		Float64("avg_confidence", domain.AverageConfidence(hypotheses)).
		Msg("hypothesis generation complete")

	return nil
}

// buildHypothesisPrompt renders the synthesis for the prompt.
func buildHypothesisPrompt(query string, synthesis *domain.Synthesis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research query: %s\n\nSynthesis of %d papers:\n", query, synthesis.TotalPapersAnalyzed)

	if len(synthesis.Patterns) > 0 {
		sb.WriteString("\nPatterns:\n")
		for _, p := range synthesis.Patterns {
			fmt.Fprintf(&sb, "- %s (confidence: %.2f)\n", p.Description, p.Confidence)
		}
	}
	if len(synthesis.KeyFindings) > 0 {
		sb.WriteString("\nKey findings:\n")
		for _, f := range synthesis.KeyFindings {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}
	if len(synthesis.ResearchGaps) > 0 {
		sb.WriteString("\nResearch gaps:\n")
		for _, gap := range synthesis.ResearchGaps {
			fmt.Fprintf(&sb, "- %s\n", gap)
		}
	}

	return sb.String()
}
