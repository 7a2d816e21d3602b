package domain

// Pattern is a recurring theme identified across the paper set.
type Pattern struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	SupportingPapers []string `json:"supporting_papers"`
	Confidence       float64  `json:"confidence"`
}

// Synthesis is the aggregated analysis of the discovered literature.
// Exactly one synthesis exists per workflow run; it is written once by the
// synthesis stage and read-only afterwards.
type Synthesis struct {
	Patterns            []Pattern `json:"patterns"`
	KeyFindings         []string  `json:"key_findings"`
	ResearchGaps        []string  `json:"research_gaps"`
	TotalPapersAnalyzed int       `json:"total_papers_analyzed"`
}

// PlaceholderSynthesis returns the minimal degraded synthesis used when the
// synthesis stage exhausts its retries without producing output. The pipeline
// advances with this instead of deadlocking on the missing artifact.
func PlaceholderSynthesis(papersAnalyzed int) *Synthesis {
	return &Synthesis{
		Patterns:            []Pattern{},
		KeyFindings:         []string{"Unable to synthesize patterns"},
		ResearchGaps:        []string{"Further analysis needed"},
		TotalPapersAnalyzed: papersAnalyzed,
	}
}

// MeetsQualityBar reports whether the synthesis is good enough to proceed on:
// it has at least minPatterns patterns or identified at least one research gap.
func (s *Synthesis) MeetsQualityBar(minPatterns int) bool {
	return len(s.Patterns) >= minPatterns || len(s.ResearchGaps) > 0
}

// Hypothesis is a testable research hypothesis derived from the synthesis.
type Hypothesis struct {
	Content          string   `json:"content"`
	Reasoning        string   `json:"reasoning"`
	ConfidenceScore  float64  `json:"confidence_score"`
	SupportingPapers []string `json:"supporting_papers"`
	NoveltyScore     float64  `json:"novelty_score"`
	FeasibilityScore float64  `json:"feasibility_score"`
}

// AverageConfidence returns the mean confidence score of the hypotheses,
// or 0 for an empty list.
func AverageConfidence(hypotheses []Hypothesis) float64 {
	if len(hypotheses) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hypotheses {
		sum += h.ConfidenceScore
	}
	return sum / float64(len(hypotheses))
}

// Methodology describes an experimental approach for testing one hypothesis.
type Methodology struct {
	HypothesisIndex    int      `json:"hypothesis_index"`
	Approach           string   `json:"approach"`
	ExperimentalDesign []string `json:"experimental_design"`
	RequiredResources  []string `json:"required_resources"`
	EstimatedDuration  string   `json:"estimated_duration"`
	ExpectedOutcomes   []string `json:"expected_outcomes"`
}

// ValidationResult is the validator's judgment of a single hypothesis.
// A negative verdict is still a successful validation; the pipeline's job is
// to produce a judgment, not to force a particular one.
type ValidationResult struct {
	HypothesisIndex int      `json:"hypothesis_index"`
	IsValid         bool     `json:"is_valid"`
	Confidence      float64  `json:"confidence"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}
