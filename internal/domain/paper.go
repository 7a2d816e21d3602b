package domain

import (
	"strings"
	"time"
	"unicode"
)

// Author represents a paper author with an optional affiliation.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	if a.Affiliation == "" {
		return a.Name
	}
	return a.Name + " (" + a.Affiliation + ")"
}

// Paper represents a candidate paper discovered by the literature aggregator.
// Papers are created by the aggregator and immutable afterwards except for
// score refinement before ranking.
type Paper struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Abstract       string     `json:"abstract"`
	Authors        []Author   `json:"authors"`
	PublishedDate  *time.Time `json:"published_date,omitempty"`
	Year           int        `json:"year"`
	Source         SourceType `json:"source"`
	URL            string     `json:"url,omitempty"`
	Citations      int        `json:"citations"`
	Version        int        `json:"version"`
	RelevanceScore float64    `json:"relevance_score"`
	QualityScore   float64    `json:"quality_score"`
}

// AgeDays returns the paper age in whole days at the given instant, or -1 if
// the published date is unknown.
func (p *Paper) AgeDays(now time.Time) int {
	if p.PublishedDate == nil {
		return -1
	}
	return int(now.Sub(*p.PublishedDate).Hours() / 24)
}

// NormalizedTitle returns the title in canonical form for deduplication:
// lowercased, punctuation stripped, whitespace collapsed to single spaces.
// Two papers are considered duplicates when their normalized titles match.
func (p *Paper) NormalizedTitle() string {
	return NormalizeTitle(p.Title)
}

// NormalizeTitle canonicalizes a paper title for equality comparison.
func NormalizeTitle(title string) string {
	var sb strings.Builder
	sb.Grow(len(title))

	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				sb.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(sb.String())
}
