package aggregator

import "github.com/helixir/research-pipeline-service/internal/domain"

// Deduplicate removes papers whose normalized titles collide, keeping the
// entry with the higher quality score. The first-seen position is preserved
// so discovery order (and therefore ranking tie-breaks) stays deterministic.
// Running Deduplicate on already-unique input returns it unchanged.
func Deduplicate(papers []domain.Paper) []domain.Paper {
	if len(papers) <= 1 {
		return papers
	}

	unique := make([]domain.Paper, 0, len(papers))
	seen := make(map[string]int, len(papers))

	for _, paper := range papers {
		key := paper.NormalizedTitle()

		idx, dup := seen[key]
		if !dup {
			seen[key] = len(unique)
			unique = append(unique, paper)
			continue
		}

		if paper.QualityScore > unique[idx].QualityScore {
			unique[idx] = paper
		}
	}

	return unique
}
