package aggregator

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Composite ranking weights.
const (
	weightRelevance = 0.4
	weightQuality   = 0.3
	weightRecency   = 0.2
	weightSource    = 0.1
)

// ScorePapers fills in RelevanceScore and QualityScore for every paper.
// Scoring happens before deduplication so duplicate resolution can compare
// quality.
func ScorePapers(papers []domain.Paper, query string, now time.Time) {
	queryTerms := termSet(query)
	for i := range papers {
		papers[i].RelevanceScore = relevanceScore(&papers[i], queryTerms)
		papers[i].QualityScore = qualityScore(&papers[i], now)
	}
}

// Rank sorts papers descending by composite score. The sort is stable, so
// equal scores keep their discovery order and identical inputs always produce
// identical rankings.
func Rank(papers []domain.Paper, now time.Time) {
	type scored struct {
		paper domain.Paper
		score float64
	}

	entries := make([]scored, len(papers))
	for i := range papers {
		entries[i] = scored{paper: papers[i], score: compositeScore(&papers[i], now)}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	for i := range entries {
		papers[i] = entries[i].paper
	}
}

// compositeScore combines relevance (40%), quality (30%), recency (20%) and
// source reputation (10%).
func compositeScore(p *domain.Paper, now time.Time) float64 {
	return p.RelevanceScore*weightRelevance +
		p.QualityScore*weightQuality +
		recencyScore(p, now)*weightRecency +
		p.Source.Weight()*weightSource
}

// recencyScore decays linearly from 1 to 0 over one year. Papers with an
// unknown publication date score zero.
func recencyScore(p *domain.Paper, now time.Time) float64 {
	age := p.AgeDays(now)
	if age < 0 {
		return 0
	}
	return math.Max(0, 1-float64(age)/365)
}

// relevanceScore is a term-overlap measure: the fraction of query terms
// appearing in the title (60%) and in the abstract (40%).
func relevanceScore(p *domain.Paper, queryTerms map[string]struct{}) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	titleTerms := termSet(p.Title)
	abstractTerms := termSet(p.Abstract)

	titleOverlap := overlap(queryTerms, titleTerms)
	abstractOverlap := overlap(queryTerms, abstractTerms)

	return titleOverlap*0.6 + abstractOverlap*0.4
}

// qualityScore rates a paper on recency, abstract completeness, author count,
// revision activity and citations. The result is clamped to [0, 1].
func qualityScore(p *domain.Paper, now time.Time) float64 {
	score := 0.0

	// Recency bonus for papers from the last two years.
	if age := p.AgeDays(now); age >= 0 && age < 730 {
		score += math.Max(0, float64(730-age)/730) * 0.3
	}

	// Abstract length (ideal: 150-300 words).
	abstractWords := len(strings.Fields(p.Abstract))
	switch {
	case abstractWords >= 150 && abstractWords <= 300:
		score += 0.2
	case abstractWords > 100:
		score += 0.1
	}

	// Author count (collaborative work tends to be higher quality).
	switch n := len(p.Authors); {
	case n >= 2 && n <= 10:
		score += 0.2
	case n > 10:
		score += 0.1
	}

	// Version number (updated papers show engagement).
	if p.Version > 1 {
		score += math.Min(0.2, float64(p.Version)*0.05)
	}

	// Citation count, log-scaled.
	if p.Citations > 0 {
		score += math.Min(0.3, math.Log(float64(p.Citations+1))/10)
	}

	return math.Min(1.0, score)
}

func termSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,;:!?()[]{}\"'")] = struct{}{}
	}
	delete(set, "")
	return set
}

func overlap(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for term := range query {
		if _, ok := doc[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
