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

// maxPapersInPrompt caps how many papers the synthesis prompt includes.
const maxPapersInPrompt = 20

// Synthesizer identifies patterns, key findings and research gaps across the
// discovered papers.
type Synthesizer struct {
	client llm.Client
	logger zerolog.Logger
}

// NewSynthesizer creates the synthesis worker.
func NewSynthesizer(client llm.Client, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		client: client,
		logger: logger.With().Str("component", "synthesizer").Logger(),
	}
}

// Stage implements Agent.
func (s *Synthesizer) Stage() domain.Stage {
	return domain.StageSynthesis
}

const synthesizerSystemPrompt = `You are a research analyst synthesizing a body of literature.
Identify recurring patterns, key findings and research gaps across the papers.
Respond with JSON only:
{
  "patterns": [{"name": "...", "description": "...", "supporting_papers": ["id"], "confidence": 0.0}],
  "key_findings": ["..."],
  "research_gaps": ["..."]
}`

type synthesisResponse struct {
	Patterns []struct {
		Name             string   `json:"name"`
		Description      string   `json:"description"`
		SupportingPapers []string `json:"supporting_papers"`
		Confidence       float64  `json:"confidence"`
	} `json:"patterns"`
	KeyFindings  []string `json:"key_findings"`
	ResearchGaps []string `json:"research_gaps"`
}

// Execute writes state.Synthesis from an analysis of the top-ranked papers.
// A repeated run replaces the previous synthesis.
func (s *Synthesizer) Execute(ctx context.Context, state *domain.WorkflowState) error {
	if len(state.Papers) == 0 {
		return fmt.Errorf("no papers available to synthesize")
	}

	analyzed := len(state.Papers)
	if analyzed > maxPapersInPrompt {
		analyzed = maxPapersInPrompt
	}

	resp, err := s.client.Complete(ctx, llm.Request{
		System:      synthesizerSystemPrompt,
		User:        buildSynthesisPrompt(state.Query, state.Papers[:analyzed]),
		Temperature: temperatureSynthesis,
		JSONOutput:  true,
	})
	if err != nil {
		return fmt.Errorf("synthesis completion: %w", err)
	}

	var parsed synthesisResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return fmt.Errorf("synthesis response parse: %w", err)
	}

	patterns := make([]domain.Pattern, 0, len(parsed.Patterns))
	for _, p := range parsed.Patterns {
		if p.Description == "" && p.Name == "" {
			continue
		}
		patterns = append(patterns, domain.Pattern{
			Name:             p.Name,
			Description:      p.Description,
			SupportingPapers: p.SupportingPapers,
			Confidence:       p.Confidence,
		})
	}

	state.Synthesis = &domain.Synthesis{
		Patterns:            patterns,
		KeyFindings:         parsed.KeyFindings,
		ResearchGaps:        parsed.ResearchGaps,
		TotalPapersAnalyzed: analyzed,
	}
	state.UpdatedAt = nowUTC()

	s.logger.Info().
		Stringer("workflow_id", state.ID).
		Int("patterns", len(patterns)).
		Int("findings", len(parsed.KeyFindings)).
		Int("gaps", len(parsed.ResearchGaps)).
		Msg("synthesis complete")

	return nil
}

// buildSynthesisPrompt renders the numbered paper summaries for the prompt.
func buildSynthesisPrompt(query string, papers []domain.Paper) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research query: %s\n\nPapers:\n", query)

	for i, paper := range papers {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, paper.ID, paper.Title)
		if abstract := truncate(paper.Abstract, 500); abstract != "" {
			fmt.Fprintf(&sb, "   Abstract: %s\n", abstract)
		}
	}

	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
