package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

func TestDetectField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  Field
	}{
		{"physics keywords", "quantum entanglement in particle systems", FieldPhysics},
		{"computer science keywords", "neural network training algorithm", FieldComputerScience},
		{"mathematics keywords", "a new proof of the spectral theorem", FieldMathematics},
		{"biology keywords", "protein expression and gene regulation in cell lines", FieldBiology},
		{"medicine keywords", "clinical treatment outcomes for patient cohorts", FieldMedicine},
		{"no keywords", "interesting open problems", FieldGeneral},
		{"most matches wins", "quantum computation algorithm software", FieldComputerScience},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectField(tt.query))
		})
	}
}

func TestPreferredSources(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []domain.SourceType{domain.SourceTypeArXiv}, PreferredSources(FieldPhysics))
	assert.Equal(t,
		[]domain.SourceType{domain.SourceTypeBioRxiv, domain.SourceTypeArXiv},
		PreferredSources(FieldBiology))
	assert.Equal(t,
		[]domain.SourceType{domain.SourceTypeBioRxiv, domain.SourceTypeOpenAlex},
		PreferredSources(FieldMedicine))

	// General searches every enabled source.
	assert.Nil(t, PreferredSources(FieldGeneral))
}
