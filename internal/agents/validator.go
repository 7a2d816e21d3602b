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

// Validator judges each hypothesis against its methodology and the collected
// evidence. The verdicts themselves do not gate pipeline success; producing a
// judgment for every hypothesis is the stage's whole job.
type Validator struct {
	client llm.Client
	logger zerolog.Logger
}

// NewValidator creates the validation worker.
func NewValidator(client llm.Client, logger zerolog.Logger) *Validator {
	return &Validator{
		client: client,
		logger: logger.With().Str("component", "validator").Logger(),
	}
}

// Stage implements Agent.
func (v *Validator) Stage() domain.Stage {
	return domain.StageValidation
}

const validatorSystemPrompt = `You are a rigorous scientific reviewer validating a research hypothesis.
Assess whether the hypothesis is sound, testable with the proposed methodology, and supported by the synthesis.
A negative verdict is a legitimate outcome; report it honestly.
Respond with JSON only:
{
  "is_valid": true,
  "confidence": 0.0,
  "issues": ["..."],
  "recommendations": ["..."]
}`

type validationResponse struct {
	IsValid         bool     `json:"is_valid"`
	Confidence      float64  `json:"confidence"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// Execute writes state.ValidationResults, one judgment per hypothesis. The
// slice is assigned only after every validation succeeds, so a partial
// failure leaves the state unchanged.
func (v *Validator) Execute(ctx context.Context, state *domain.WorkflowState) error {
	if len(state.Hypotheses) == 0 {
		return fmt.Errorf("no hypotheses available for validation")
	}

	results := make([]domain.ValidationResult, 0, len(state.Hypotheses))
	for i, hypothesis := range state.Hypotheses {
		result, err := v.validate(ctx, state, i, hypothesis)
		if err != nil {
			return fmt.Errorf("validating hypothesis %d: %w", i, err)
		}
		results = append(results, result)
	}

	state.ValidationResults = results
	state.UpdatedAt = nowUTC()

	valid := 0
	for _, r := range results {
		if r.IsValid {
			valid++
		}
	}
	v.logger.Info().
		Stringer("workflow_id", state.ID).
		Int("validated", len(results)).
		Int("valid", valid).
		Msg("validation complete")

	return nil
}

func (v *Validator) validate(ctx context.Context, state *domain.WorkflowState, index int, hypothesis domain.Hypothesis) (domain.ValidationResult, error) {
	resp, err := v.client.Complete(ctx, llm.Request{
		System:      validatorSystemPrompt,
		User:        buildValidationPrompt(state, index, hypothesis),
		Temperature: temperatureValidation,
		JSONOutput:  true,
	})
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("validation completion: %w", err)
	}

	var parsed validationResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return domain.ValidationResult{}, fmt.Errorf("validation response parse: %w", err)
	}

	return domain.ValidationResult{
		HypothesisIndex: index,
		IsValid:         parsed.IsValid,
		Confidence:      parsed.Confidence,
		Issues:          parsed.Issues,
		Recommendations: parsed.Recommendations,
	}, nil
}

func buildValidationPrompt(state *domain.WorkflowState, index int, hypothesis domain.Hypothesis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research query: %s\n\nHypothesis: %s\n", state.Query, hypothesis.Content)
	if hypothesis.Reasoning != "" {
		fmt.Fprintf(&sb, "Reasoning: %s\n", hypothesis.Reasoning)
	}
	fmt.Fprintf(&sb, "Hypothesis confidence: %.2f\n", hypothesis.ConfidenceScore)

	if methodology := findMethodology(state.Methodologies, index); methodology != nil {
		fmt.Fprintf(&sb, "\nProposed methodology: %s\n", methodology.Approach)
		if methodology.EstimatedDuration != "" {
			fmt.Fprintf(&sb, "Estimated duration: %s\n", methodology.EstimatedDuration)
		}
	}

	if state.Synthesis != nil && len(state.Synthesis.Patterns) > 0 {
		sb.WriteString("\nSupporting patterns:\n")
		for _, p := range state.Synthesis.Patterns {
			fmt.Fprintf(&sb, "- %s\n", p.Description)
		}
	}

	return sb.String()
}

func findMethodology(methodologies []domain.Methodology, hypothesisIndex int) *domain.Methodology {
	for i := range methodologies {
		if methodologies[i].HypothesisIndex == hypothesisIndex {
			return &methodologies[i]
		}
	}
	return nil
}
