package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/observability"
	"github.com/helixir/research-pipeline-service/internal/papersources"
)

// stubSource serves canned papers for every strategy query.
type stubSource struct {
	sourceType domain.SourceType
	papers     []domain.Paper
	err        error
	calls      atomic.Int32
}

func (s *stubSource) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &papersources.SearchResult{
		Papers:       s.papers,
		TotalResults: len(s.papers),
		Source:       s.sourceType,
	}, nil
}

func (s *stubSource) SourceType() domain.SourceType { return s.sourceType }
func (s *stubSource) Name() string                  { return string(s.sourceType) }
func (s *stubSource) IsEnabled() bool               { return true }

func newAggregator(t *testing.T, sources ...papersources.PaperSource) *Aggregator {
	t.Helper()

	registry := papersources.NewRegistry()
	for _, source := range sources {
		registry.Register(source)
	}

	agg := New(registry, NewPlanner(nil, zerolog.Nop()), Config{
		StrategyTimeout: 5 * time.Second,
	}, zerolog.Nop())
	agg.now = func() time.Time {
		return time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	}
	return agg
}

func TestAggregator_Search(t *testing.T) {
	t.Parallel()

	t.Run("merges, deduplicates and ranks across sources", func(t *testing.T) {
		t.Parallel()

		arxiv := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			papers: []domain.Paper{
				{ID: "arxiv:1", Title: "Deep Learning in Medicine", Source: domain.SourceTypeArXiv},
				{ID: "arxiv:2", Title: "Quantum Chemistry Advances", Source: domain.SourceTypeArXiv},
			},
		}
		openalex := &stubSource{
			sourceType: domain.SourceTypeOpenAlex,
			papers: []domain.Paper{
				// Duplicate of arxiv:1 modulo punctuation and case, with
				// citations that lift its quality score.
				{ID: "doi:10.1/dup", Title: "deep learning in medicine!",
					Source: domain.SourceTypeOpenAlex, Citations: 500},
			},
		}

		agg := newAggregator(t, arxiv, openalex)

		papers, err := agg.Search(context.Background(), "interesting open problems", 10)

		require.NoError(t, err)
		require.Len(t, papers, 2)

		ids := []string{papers[0].ID, papers[1].ID}
		assert.Contains(t, ids, "doi:10.1/dup")
		assert.Contains(t, ids, "arxiv:2")
		assert.NotContains(t, ids, "arxiv:1")
	})

	t.Run("caps results after ranking", func(t *testing.T) {
		t.Parallel()

		source := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			papers: []domain.Paper{
				{ID: "a", Title: "irrelevant paper one", Source: domain.SourceTypeArXiv},
				{ID: "b", Title: "quantum entanglement relevant paper", Source: domain.SourceTypeArXiv},
				{ID: "c", Title: "irrelevant paper two", Source: domain.SourceTypeArXiv},
			},
		}

		agg := newAggregator(t, source)

		papers, err := agg.Search(context.Background(), "quantum entanglement", 1)

		require.NoError(t, err)
		require.Len(t, papers, 1)
		// The best-ranked paper survives the cap, not the first-discovered.
		assert.Equal(t, "b", papers[0].ID)
	})

	t.Run("failing source contributes nothing without aborting search", func(t *testing.T) {
		t.Parallel()

		healthy := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			papers:     []domain.Paper{{ID: "ok", Title: "Found Paper", Source: domain.SourceTypeArXiv}},
		}
		broken := &stubSource{
			sourceType: domain.SourceTypeOpenAlex,
			err:        errors.New("connection refused"),
		}

		agg := newAggregator(t, healthy, broken)

		papers, err := agg.Search(context.Background(), "interesting open problems", 10)

		require.NoError(t, err)
		require.Len(t, papers, 1)
		assert.Equal(t, "ok", papers[0].ID)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		t.Parallel()

		agg := newAggregator(t, &stubSource{sourceType: domain.SourceTypeArXiv})

		papers, err := agg.Search(context.Background(), "anything", 10)

		require.NoError(t, err)
		assert.Empty(t, papers)
	})

	t.Run("field detection routes to preferred sources", func(t *testing.T) {
		t.Parallel()

		arxiv := &stubSource{sourceType: domain.SourceTypeArXiv}
		biorxiv := &stubSource{sourceType: domain.SourceTypeBioRxiv}
		openalex := &stubSource{sourceType: domain.SourceTypeOpenAlex}

		agg := newAggregator(t, arxiv, biorxiv, openalex)

		// Physics query: only arXiv should be searched, once per strategy.
		_, err := agg.Search(context.Background(), "quantum particle cosmology", 10)

		require.NoError(t, err)
		assert.Equal(t, int32(3), arxiv.calls.Load())
		assert.Zero(t, biorxiv.calls.Load())
		assert.Zero(t, openalex.calls.Load())
	})

	t.Run("records fetched and deduplicated paper counts", func(t *testing.T) {
		t.Parallel()

		// The same two papers come back for each of the three planned
		// strategies: six fetched, four removed as duplicates.
		source := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			papers: []domain.Paper{
				{ID: "a", Title: "Paper One", Source: domain.SourceTypeArXiv},
				{ID: "b", Title: "Paper Two", Source: domain.SourceTypeArXiv},
			},
		}

		agg := newAggregator(t, source)
		metrics := observability.NewMetrics("test_aggregator_metrics")
		agg.SetMetrics(metrics)

		papers, err := agg.Search(context.Background(), "interesting open problems", 10)

		require.NoError(t, err)
		require.Len(t, papers, 2)
		assert.Equal(t, float64(6), testutil.ToFloat64(metrics.PapersFetched.WithLabelValues("arxiv")))
		assert.Equal(t, float64(4), testutil.ToFloat64(metrics.PapersDeduplicated))
	})

	t.Run("canceled context aborts search", func(t *testing.T) {
		t.Parallel()

		agg := newAggregator(t, &stubSource{sourceType: domain.SourceTypeArXiv})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := agg.Search(ctx, "anything", 10)

		require.ErrorIs(t, err, context.Canceled)
	})
}
