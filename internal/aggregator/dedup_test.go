package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

func TestDeduplicate(t *testing.T) {
	t.Parallel()

	t.Run("keeps higher quality duplicate regardless of punctuation and case", func(t *testing.T) {
		t.Parallel()

		papers := []domain.Paper{
			{ID: "arxiv:1", Title: "Deep Learning in Medicine", QualityScore: 0.4},
			{ID: "doi:10.1/x", Title: "deep learning in medicine!", QualityScore: 0.7},
		}

		unique := Deduplicate(papers)

		require.Len(t, unique, 1)
		assert.Equal(t, "doi:10.1/x", unique[0].ID)
		assert.InDelta(t, 0.7, unique[0].QualityScore, 1e-9)
	})

	t.Run("keeps first seen when quality ties", func(t *testing.T) {
		t.Parallel()

		papers := []domain.Paper{
			{ID: "a", Title: "Same Title", QualityScore: 0.5},
			{ID: "b", Title: "same title", QualityScore: 0.5},
		}

		unique := Deduplicate(papers)

		require.Len(t, unique, 1)
		assert.Equal(t, "a", unique[0].ID)
	})

	t.Run("preserves discovery order of distinct papers", func(t *testing.T) {
		t.Parallel()

		papers := []domain.Paper{
			{ID: "a", Title: "First"},
			{ID: "b", Title: "Second"},
			{ID: "c", Title: "first"}, // duplicate of a
			{ID: "d", Title: "Third"},
		}

		unique := Deduplicate(papers)

		require.Len(t, unique, 3)
		assert.Equal(t, "a", unique[0].ID)
		assert.Equal(t, "b", unique[1].ID)
		assert.Equal(t, "d", unique[2].ID)
	})

	t.Run("idempotent on unique input", func(t *testing.T) {
		t.Parallel()

		papers := []domain.Paper{
			{ID: "a", Title: "Alpha"},
			{ID: "b", Title: "Beta"},
		}

		once := Deduplicate(papers)
		twice := Deduplicate(once)

		assert.Equal(t, once, twice)
	})

	t.Run("handles empty and single-element inputs", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, Deduplicate(nil))
		assert.Len(t, Deduplicate([]domain.Paper{{Title: "only"}}), 1)
	})
}
