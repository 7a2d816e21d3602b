// Package aggregator fans a research query out into multiple prioritized
// search strategies across the registered paper sources, then deduplicates
// and ranks the combined results.
//
// Every strategy and every source is independently fallible: a failed or
// timed-out search contributes zero papers and never aborts the rest of the
// fan-out. The aggregator only reports an error when it could not search at
// all.
package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/observability"
	"github.com/helixir/research-pipeline-service/internal/papersources"
)

// DefaultStrategyTimeout bounds how long one strategy's fan-out may take.
const DefaultStrategyTimeout = 30 * time.Second

// Config holds aggregator tuning knobs.
type Config struct {
	// StrategyTimeout is the per-strategy search deadline. A strategy that
	// exceeds it contributes zero papers, identical to a failed one.
	StrategyTimeout time.Duration

	// MaxResultsPerSource caps how many papers each source returns per
	// strategy. Zero uses each source's own default.
	MaxResultsPerSource int
}

func (c *Config) applyDefaults() {
	if c.StrategyTimeout == 0 {
		c.StrategyTimeout = DefaultStrategyTimeout
	}
}

// Aggregator coordinates strategy planning, concurrent source fan-out,
// scoring, deduplication and ranking.
type Aggregator struct {
	registry *papersources.Registry
	planner  *Planner
	config   Config
	logger   zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// New creates an aggregator over the given source registry.
func New(registry *papersources.Registry, planner *Planner, cfg Config, logger zerolog.Logger) *Aggregator {
	cfg.applyDefaults()

	return &Aggregator{
		registry: registry,
		planner:  planner,
		config:   cfg,
		logger:   logger.With().Str("component", "aggregator").Logger(),
		now:      time.Now,
	}
}

// SetMetrics attaches Prometheus instruments for fetched and deduplicated
// paper counts. A nil receiver field means no recording.
func (a *Aggregator) SetMetrics(m *observability.Metrics) {
	a.metrics = m
}

// strategyOutcome pairs a strategy index with the papers it found, so merged
// results can be ordered by strategy priority regardless of completion order.
type strategyOutcome struct {
	index  int
	papers []domain.Paper
}

// Search plans strategies for the query, executes them against the preferred
// sources for the detected field, and returns a deduplicated list ranked by
// composite score, capped to maxPapers. The cap is applied after ranking.
//
// An empty result with a nil error means the searches ran but found nothing;
// the caller decides whether that is fatal.
func (a *Aggregator) Search(ctx context.Context, query string, maxPapers int) ([]domain.Paper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	strategies := a.planner.Plan(ctx, query)

	field := DetectField(query)
	sourceTypes := PreferredSources(field)

	a.logger.Info().
		Str("query", query).
		Str("field", string(field)).
		Int("strategies", len(strategies)).
		Int("max_papers", maxPapers).
		Msg("starting literature search")

	outcomes := make(chan strategyOutcome, len(strategies))
	var wg sync.WaitGroup

	for i, strategy := range strategies {
		wg.Add(1)
		go func(index int, strategy SearchStrategy) {
			defer wg.Done()
			outcomes <- strategyOutcome{
				index:  index,
				papers: a.runStrategy(ctx, strategy, sourceTypes),
			}
		}(i, strategy)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	byStrategy := make([][]domain.Paper, len(strategies))
	for outcome := range outcomes {
		byStrategy[outcome.index] = outcome.papers
	}

	// Merge in priority order so discovery order is deterministic.
	var papers []domain.Paper
	for _, found := range byStrategy {
		papers = append(papers, found...)
	}

	now := a.now()
	ScorePapers(papers, query, now)
	merged := len(papers)
	papers = Deduplicate(papers)
	if a.metrics != nil {
		a.metrics.RecordPapersDeduplicated(merged - len(papers))
	}
	Rank(papers, now)

	if maxPapers > 0 && len(papers) > maxPapers {
		papers = papers[:maxPapers]
	}

	a.logger.Info().
		Str("query", query).
		Int("papers", len(papers)).
		Msg("literature search complete")

	return papers, nil
}

// runStrategy executes one strategy's fan-out under its own timeout. All
// failures are logged and swallowed; a failing strategy just yields nothing.
func (a *Aggregator) runStrategy(ctx context.Context, strategy SearchStrategy, sourceTypes []domain.SourceType) []domain.Paper {
	strategyCtx, cancel := context.WithTimeout(ctx, a.config.StrategyTimeout)
	defer cancel()

	results := a.registry.SearchSources(strategyCtx, papersources.SearchParams{
		Query:      strategy.Query,
		MaxResults: a.config.MaxResultsPerSource,
	}, sourceTypes)

	var papers []domain.Paper
	for _, result := range results {
		if result.Error != nil {
			a.logger.Warn().
				Err(result.Error).
				Str("source", string(result.Source)).
				Str("strategy_query", strategy.Query).
				Msg("source search failed")
			continue
		}
		if a.metrics != nil {
			a.metrics.RecordPapersFetched(string(result.Source), len(result.Result.Papers))
		}
		papers = append(papers, result.Result.Papers...)
	}

	a.logger.Debug().
		Str("strategy_query", strategy.Query).
		Int("priority", strategy.Priority).
		Int("papers", len(papers)).
		Msg("strategy complete")

	return papers
}
