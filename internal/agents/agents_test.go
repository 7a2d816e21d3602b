package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/llm"
)

type fakeLLM struct {
	content  string
	err      error
	requests []llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content, Model: "fake-model"}, nil
}

func (f *fakeLLM) Provider() string { return "fake" }
func (f *fakeLLM) Model() string    { return "fake-model" }

type fakeSearcher struct {
	papers   []domain.Paper
	err      error
	lastMax  int
	lastWord string
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxPapers int) ([]domain.Paper, error) {
	f.lastWord = query
	f.lastMax = maxPapers
	return f.papers, f.err
}

func newState() *domain.WorkflowState {
	return domain.NewWorkflowState("quantum error correction", 50)
}

func TestLiteratureHunter_Execute(t *testing.T) {
	t.Parallel()

	t.Run("stores search results", func(t *testing.T) {
		t.Parallel()

		searcher := &fakeSearcher{papers: []domain.Paper{{ID: "a", Title: "Paper A"}}}
		hunter := NewLiteratureHunter(searcher, zerolog.Nop())
		state := newState()

		err := hunter.Execute(context.Background(), state)

		require.NoError(t, err)
		require.Len(t, state.Papers, 1)
		assert.Equal(t, "quantum error correction", searcher.lastWord)
		assert.Equal(t, 50, searcher.lastMax)
	})

	t.Run("replaces previous results on re-execution", func(t *testing.T) {
		t.Parallel()

		searcher := &fakeSearcher{papers: []domain.Paper{{ID: "new"}}}
		hunter := NewLiteratureHunter(searcher, zerolog.Nop())
		state := newState()
		state.Papers = []domain.Paper{{ID: "stale-1"}, {ID: "stale-2"}}

		require.NoError(t, hunter.Execute(context.Background(), state))

		require.Len(t, state.Papers, 1)
		assert.Equal(t, "new", state.Papers[0].ID)
	})

	t.Run("search failure leaves state unchanged", func(t *testing.T) {
		t.Parallel()

		hunter := NewLiteratureHunter(&fakeSearcher{err: errors.New("all sources down")}, zerolog.Nop())
		state := newState()
		state.Papers = []domain.Paper{{ID: "kept"}}

		err := hunter.Execute(context.Background(), state)

		require.Error(t, err)
		require.Len(t, state.Papers, 1)
		assert.Equal(t, "kept", state.Papers[0].ID)
	})

	t.Run("stage mapping", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, domain.StageLiteratureSearch, NewLiteratureHunter(nil, zerolog.Nop()).Stage())
	})
}

func TestSynthesizer_Execute(t *testing.T) {
	t.Parallel()

	t.Run("writes synthesis from model output", func(t *testing.T) {
		t.Parallel()

		client := &fakeLLM{content: `{
			"patterns": [
				{"name": "surface codes", "description": "Surface codes dominate", "supporting_papers": ["a"], "confidence": 0.9}
			],
			"key_findings": ["error thresholds improved"],
			"research_gaps": ["decoder latency underexplored"]
		}`}
		synth := NewSynthesizer(client, zerolog.Nop())
		state := newState()
		state.Papers = []domain.Paper{{ID: "a", Title: "Paper A", Abstract: "about codes"}}

		err := synth.Execute(context.Background(), state)

		require.NoError(t, err)
		require.NotNil(t, state.Synthesis)
		require.Len(t, state.Synthesis.Patterns, 1)
		assert.Equal(t, "Surface codes dominate", state.Synthesis.Patterns[0].Description)
		assert.Equal(t, []string{"decoder latency underexplored"}, state.Synthesis.ResearchGaps)
		assert.Equal(t, 1, state.Synthesis.TotalPapersAnalyzed)

		require.Len(t, client.requests, 1)
		assert.True(t, client.requests[0].JSONOutput)
		assert.InDelta(t, temperatureSynthesis, client.requests[0].Temperature, 1e-9)
		assert.Contains(t, client.requests[0].User, "Paper A")
	})

	t.Run("caps papers included in the prompt", func(t *testing.T) {
		t.Parallel()

		client := &fakeLLM{content: `{"patterns": [], "key_findings": [], "research_gaps": []}`}
		synth := NewSynthesizer(client, zerolog.Nop())
		state := newState()
		for i := 0; i < 30; i++ {
			state.Papers = append(state.Papers, domain.Paper{ID: "p", Title: "T"})
		}

		require.NoError(t, synth.Execute(context.Background(), state))

		assert.Equal(t, maxPapersInPrompt, state.Synthesis.TotalPapersAnalyzed)
	})

	t.Run("fails without papers", func(t *testing.T) {
		t.Parallel()

		err := NewSynthesizer(&fakeLLM{}, zerolog.Nop()).Execute(context.Background(), newState())

		require.Error(t, err)
	})

	t.Run("parse failure leaves synthesis unset", func(t *testing.T) {
		t.Parallel()

		synth := NewSynthesizer(&fakeLLM{content: "not json"}, zerolog.Nop())
		state := newState()
		state.Papers = []domain.Paper{{ID: "a"}}

		err := synth.Execute(context.Background(), state)

		require.Error(t, err)
		assert.Nil(t, state.Synthesis)
	})
}

func TestHypothesisGenerator_Execute(t *testing.T) {
	t.Parallel()

	t.Run("writes hypotheses from model output", func(t *testing.T) {
		t.Parallel()

		client := &fakeLLM{content: `{
			"hypotheses": [
				{"content": "Combining decoders improves thresholds", "reasoning": "complementary strengths",
				 "confidence": 0.75, "supporting_papers": ["a"], "novelty": 0.8, "feasibility": 0.6},
				{"content": "", "confidence": 0.9},
				{"content": "Hardware-aware codes reduce overhead", "confidence": 0.65}
			]
		}`}
		gen := NewHypothesisGenerator(client, zerolog.Nop())
		state := newState()
		state.Synthesis = &domain.Synthesis{
			Patterns:     []domain.Pattern{{Description: "pattern"}},
			ResearchGaps: []string{"gap"},
		}

		err := gen.Execute(context.Background(), state)

		require.NoError(t, err)
		// The empty-content entry is dropped.
		require.Len(t, state.Hypotheses, 2)
		assert.InDelta(t, 0.75, state.Hypotheses[0].ConfidenceScore, 1e-9)
		assert.InDelta(t, 0.7, domain.AverageConfidence(state.Hypotheses), 1e-9)

		require.Len(t, client.requests, 1)
		assert.InDelta(t, temperatureHypothesis, client.requests[0].Temperature, 1e-9)
		assert.Contains(t, client.requests[0].User, "gap")
	})

	t.Run("fails without synthesis", func(t *testing.T) {
		t.Parallel()

		err := NewHypothesisGenerator(&fakeLLM{}, zerolog.Nop()).Execute(context.Background(), newState())

		require.Error(t, err)
	})

	t.Run("model failure leaves hypotheses unchanged", func(t *testing.T) {
		t.Parallel()

		gen := NewHypothesisGenerator(&fakeLLM{err: errors.New("boom")}, zerolog.Nop())
		state := newState()
		state.Synthesis = &domain.Synthesis{}
		state.Hypotheses = []domain.Hypothesis{{Content: "kept"}}

		err := gen.Execute(context.Background(), state)

		require.Error(t, err)
		require.Len(t, state.Hypotheses, 1)
		assert.Equal(t, "kept", state.Hypotheses[0].Content)
	})
}

func TestMethodologyDesigner_Execute(t *testing.T) {
	t.Parallel()

	t.Run("designs one methodology per hypothesis", func(t *testing.T) {
		t.Parallel()

		client := &fakeLLM{content: `{
			"approach": "Controlled simulation study",
			"experimental_design": ["simulate", "measure"],
			"required_resources": ["GPU cluster"],
			"estimated_duration": "6 months",
			"expected_outcomes": ["threshold comparison"]
		}`}
		designer := NewMethodologyDesigner(client, zerolog.Nop())
		state := newState()
		state.Hypotheses = []domain.Hypothesis{
			{Content: "h1", ConfidenceScore: 0.7},
			{Content: "h2", ConfidenceScore: 0.6},
		}

		err := designer.Execute(context.Background(), state)

		require.NoError(t, err)
		require.Len(t, state.Methodologies, 2)
		assert.Equal(t, 0, state.Methodologies[0].HypothesisIndex)
		assert.Equal(t, 1, state.Methodologies[1].HypothesisIndex)
		assert.Equal(t, "Controlled simulation study", state.Methodologies[0].Approach)

		require.Len(t, client.requests, 2)
		assert.InDelta(t, temperatureMethodology, client.requests[0].Temperature, 1e-9)
	})

	t.Run("fails without hypotheses", func(t *testing.T) {
		t.Parallel()

		err := NewMethodologyDesigner(&fakeLLM{}, zerolog.Nop()).Execute(context.Background(), newState())

		require.Error(t, err)
	})

	t.Run("missing approach leaves state unchanged", func(t *testing.T) {
		t.Parallel()

		designer := NewMethodologyDesigner(&fakeLLM{content: `{"approach": ""}`}, zerolog.Nop())
		state := newState()
		state.Hypotheses = []domain.Hypothesis{{Content: "h1"}}

		err := designer.Execute(context.Background(), state)

		require.Error(t, err)
		assert.Empty(t, state.Methodologies)
	})
}

func TestValidator_Execute(t *testing.T) {
	t.Parallel()

	t.Run("judges every hypothesis", func(t *testing.T) {
		t.Parallel()

		client := &fakeLLM{content: `{
			"is_valid": false,
			"confidence": 0.4,
			"issues": ["insufficient evidence"],
			"recommendations": ["gather more data"]
		}`}
		validator := NewValidator(client, zerolog.Nop())
		state := newState()
		state.Hypotheses = []domain.Hypothesis{{Content: "h1"}, {Content: "h2"}}
		state.Methodologies = []domain.Methodology{
			{HypothesisIndex: 0, Approach: "simulation", EstimatedDuration: "3 months"},
		}

		err := validator.Execute(context.Background(), state)

		// Negative verdicts are still successful validations.
		require.NoError(t, err)
		require.Len(t, state.ValidationResults, 2)
		assert.False(t, state.ValidationResults[0].IsValid)
		assert.Equal(t, 0, state.ValidationResults[0].HypothesisIndex)
		assert.Equal(t, 1, state.ValidationResults[1].HypothesisIndex)

		require.Len(t, client.requests, 2)
		assert.InDelta(t, temperatureValidation, client.requests[0].Temperature, 1e-9)
		// The first prompt includes the matching methodology, the second has none.
		assert.Contains(t, client.requests[0].User, "simulation")
		assert.NotContains(t, client.requests[1].User, "simulation")
	})

	t.Run("fails without hypotheses", func(t *testing.T) {
		t.Parallel()

		err := NewValidator(&fakeLLM{}, zerolog.Nop()).Execute(context.Background(), newState())

		require.Error(t, err)
	})

	t.Run("model failure leaves results unset", func(t *testing.T) {
		t.Parallel()

		validator := NewValidator(&fakeLLM{err: errors.New("boom")}, zerolog.Nop())
		state := newState()
		state.Hypotheses = []domain.Hypothesis{{Content: "h1"}}

		err := validator.Execute(context.Background(), state)

		require.Error(t, err)
		assert.Empty(t, state.ValidationResults)
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	hunter := NewLiteratureHunter(&fakeSearcher{}, zerolog.Nop())
	synth := NewSynthesizer(&fakeLLM{}, zerolog.Nop())

	registry := NewRegistry(hunter, synth)

	assert.Equal(t, hunter, registry.Get(domain.StageLiteratureSearch))
	assert.Equal(t, synth, registry.Get(domain.StageSynthesis))
	assert.Nil(t, registry.Get(domain.StageValidation))
}
