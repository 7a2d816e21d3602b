package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/helixir/research-pipeline-service/internal/llm"
)

const (
	// plannerTemperature matches the literature stage's creative setting.
	plannerTemperature = 0.7

	// minStrategies and maxStrategies bound the fan-out width.
	minStrategies = 2
	maxStrategies = 4
)

// SearchStrategy is one query variant produced by the planner. Priority 1 is
// the highest; strategies are executed in priority order.
type SearchStrategy struct {
	Query    string `json:"query"`
	Focus    string `json:"focus"`
	Priority int    `json:"priority"`
}

// Planner turns a research query into a small set of prioritized search
// strategies. An LLM proposes the variants when a client is configured; a
// deterministic heuristic expansion is used otherwise, and whenever the model
// output cannot be used.
type Planner struct {
	client llm.Client
	logger zerolog.Logger
}

// NewPlanner creates a strategy planner. client may be nil, in which case
// only the heuristic expansion is used.
func NewPlanner(client llm.Client, logger zerolog.Logger) *Planner {
	return &Planner{
		client: client,
		logger: logger.With().Str("component", "strategy_planner").Logger(),
	}
}

const plannerSystemPrompt = `You are a research librarian planning literature searches.
Given a research query, produce between 2 and 4 search strategies as a JSON object:
{"strategies": [{"query": "...", "focus": "...", "priority": 1}]}
Each strategy has a distinct focus (core topic, recent work, methods, applications).
Priority 1 is the most important strategy. Respond with JSON only.`

type plannerResponse struct {
	Strategies []SearchStrategy `json:"strategies"`
}

// Plan produces 2-4 strategies for the query, sorted by ascending priority.
// Plan never fails: any planning error falls back to the heuristic expansion.
func (p *Planner) Plan(ctx context.Context, query string) []SearchStrategy {
	if p.client == nil {
		return heuristicStrategies(query)
	}

	strategies, err := p.planWithModel(ctx, query)
	if err != nil {
		p.logger.Warn().Err(err).Msg("strategy planning failed, using heuristic expansion")
		return heuristicStrategies(query)
	}
	return strategies
}

func (p *Planner) planWithModel(ctx context.Context, query string) ([]SearchStrategy, error) {
	resp, err := p.client.Complete(ctx, llm.Request{
		System:      plannerSystemPrompt,
		User:        fmt.Sprintf("Research query: %s", query),
		Temperature: plannerTemperature,
		JSONOutput:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("planner completion: %w", err)
	}

	var parsed plannerResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, fmt.Errorf("planner response parse: %w", err)
	}

	strategies := make([]SearchStrategy, 0, len(parsed.Strategies))
	for _, s := range parsed.Strategies {
		if s.Query == "" {
			continue
		}
		if s.Priority < 1 {
			s.Priority = len(strategies) + 1
		}
		strategies = append(strategies, s)
	}

	if len(strategies) < minStrategies {
		return nil, fmt.Errorf("planner produced %d usable strategies, need at least %d", len(strategies), minStrategies)
	}
	if len(strategies) > maxStrategies {
		strategies = strategies[:maxStrategies]
	}

	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].Priority < strategies[j].Priority
	})
	return strategies, nil
}

// heuristicStrategies is the deterministic fallback expansion: the base query
// plus recency- and methods-focused variants.
func heuristicStrategies(query string) []SearchStrategy {
	return []SearchStrategy{
		{Query: query, Focus: "core topic", Priority: 1},
		{Query: "recent advances in " + query, Focus: "recent work", Priority: 2},
		{Query: query + " methods", Focus: "methodology", Priority: 3},
	}
}
