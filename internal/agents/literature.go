package agents

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Searcher is the literature aggregation surface the hunter depends on.
type Searcher interface {
	Search(ctx context.Context, query string, maxPapers int) ([]domain.Paper, error)
}

// LiteratureHunter discovers candidate papers for the research query via the
// aggregator's multi-strategy search.
type LiteratureHunter struct {
	searcher Searcher
	logger   zerolog.Logger
}

// NewLiteratureHunter creates the literature search worker.
func NewLiteratureHunter(searcher Searcher, logger zerolog.Logger) *LiteratureHunter {
	return &LiteratureHunter{
		searcher: searcher,
		logger:   logger.With().Str("component", "literature_hunter").Logger(),
	}
}

// Stage implements Agent.
func (h *LiteratureHunter) Stage() domain.Stage {
	return domain.StageLiteratureSearch
}

// Execute replaces the state's paper list with a fresh ranked search result.
// Re-execution (the supervisor's widened retry) overwrites the previous list
// wholesale, so the operation is idempotent for a fixed MaxPapers.
func (h *LiteratureHunter) Execute(ctx context.Context, state *domain.WorkflowState) error {
	papers, err := h.searcher.Search(ctx, state.Query, state.MaxPapers)
	if err != nil {
		return err
	}

	state.Papers = papers
	state.UpdatedAt = nowUTC()

	h.logger.Info().
		Stringer("workflow_id", state.ID).
		Int("papers", len(papers)).
		Int("max_papers", state.MaxPapers).
		Msg("literature search finished")

	return nil
}
