package aggregator

import (
	"strings"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Field is a coarse research domain detected from query keywords, used to
// route searches toward the sources most likely to carry relevant preprints.
type Field string

// Known research fields.
const (
	FieldPhysics         Field = "physics"
	FieldComputerScience Field = "computer science"
	FieldMathematics     Field = "mathematics"
	FieldBiology         Field = "biology"
	FieldMedicine        Field = "medicine"
	FieldGeneral         Field = "general"
)

// fieldOrder fixes the iteration order so ties resolve deterministically.
var fieldOrder = []Field{
	FieldPhysics,
	FieldComputerScience,
	FieldMathematics,
	FieldBiology,
	FieldMedicine,
}

var fieldKeywords = map[Field][]string{
	FieldPhysics:         {"quantum", "particle", "relativity", "cosmology", "physics"},
	FieldComputerScience: {"algorithm", "machine learning", "neural network", "software", "computation"},
	FieldMathematics:     {"theorem", "proof", "algebra", "topology", "calculus"},
	FieldBiology:         {"cell", "protein", "gene", "dna", "evolution", "organism"},
	FieldMedicine:        {"treatment", "disease", "clinical", "patient", "therapy", "drug"},
}

// fieldSources maps each field to its preferred sources. A nil entry means
// "search every enabled source".
var fieldSources = map[Field][]domain.SourceType{
	FieldPhysics:         {domain.SourceTypeArXiv},
	FieldComputerScience: {domain.SourceTypeArXiv},
	FieldMathematics:     {domain.SourceTypeArXiv},
	FieldBiology:         {domain.SourceTypeBioRxiv, domain.SourceTypeArXiv},
	FieldMedicine:        {domain.SourceTypeBioRxiv, domain.SourceTypeOpenAlex},
	FieldGeneral:         nil,
}

// DetectField scores each field by the number of its keywords appearing in
// the query and returns the best match, or FieldGeneral when nothing matches.
func DetectField(query string) Field {
	queryLower := strings.ToLower(query)

	best := FieldGeneral
	bestScore := 0
	for _, field := range fieldOrder {
		score := 0
		for _, keyword := range fieldKeywords[field] {
			if strings.Contains(queryLower, keyword) {
				score++
			}
		}
		if score > bestScore {
			best = field
			bestScore = score
		}
	}

	return best
}

// PreferredSources returns the source types to search for the field. A nil
// result means all enabled sources should be searched.
func PreferredSources(field Field) []domain.SourceType {
	return fieldSources[field]
}
