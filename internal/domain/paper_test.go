package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase conversion",
			input:    "Deep Learning in Medicine",
			expected: "deep learning in medicine",
		},
		{
			name:     "punctuation stripped",
			input:    "deep learning in medicine!",
			expected: "deep learning in medicine",
		},
		{
			name:     "punctuation collapses to single space",
			input:    "Attention: Is All You Need?",
			expected: "attention is all you need",
		},
		{
			name:     "whitespace collapsed",
			input:    "graph   neural \t networks",
			expected: "graph neural networks",
		},
		{
			name:     "hyphenated words split",
			input:    "Self-supervised pre-training",
			expected: "self supervised pre training",
		},
		{
			name:     "digits preserved",
			input:    "GPT-4 Technical Report",
			expected: "gpt 4 technical report",
		},
		{
			name:     "leading and trailing noise",
			input:    "  [PREPRINT] CRISPR screening.  ",
			expected: "preprint crispr screening",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "only punctuation",
			input:    "?!...",
			expected: "",
		},
		{
			name:     "unicode letters preserved",
			input:    "Schrödinger Equation Solvers",
			expected: "schrödinger equation solvers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NormalizeTitle(tt.input))
		})
	}
}

func TestNormalizeTitle_EquivalentTitlesMatch(t *testing.T) {
	t.Parallel()

	a := Paper{Title: "Deep Learning in Medicine"}
	b := Paper{Title: "deep learning in medicine!"}

	assert.Equal(t, a.NormalizedTitle(), b.NormalizedTitle())
}

func TestPaper_AgeDays(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	published := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	paper := Paper{PublishedDate: &published}
	assert.Equal(t, 30, paper.AgeDays(now))

	unknown := Paper{}
	assert.Equal(t, -1, unknown.AgeDays(now))
}

func TestAuthor_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ada Lovelace", Author{Name: "Ada Lovelace"}.String())
	assert.Equal(t, "Ada Lovelace (Analytical Engines Ltd)", Author{
		Name:        "Ada Lovelace",
		Affiliation: "Analytical Engines Ltd",
	}.String())
}
