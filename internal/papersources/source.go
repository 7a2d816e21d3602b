// Package papersources provides clients for searching preprint and academic
// paper databases.
//
// Each search backend (arXiv, bioRxiv, OpenAlex) implements the PaperSource
// interface, letting the literature aggregator fan a query out across
// multiple sources concurrently with a unified API. Every source is
// independently fallible: a failing source contributes zero papers and never
// aborts the others.
package papersources

import (
	"context"
	"time"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// SearchParams defines the parameters for searching papers.
type SearchParams struct {
	// Query is the search query string (required). The format may vary by
	// source; some support boolean operators or field-specific searches.
	Query string

	// MaxResults limits the number of papers returned in a single request.
	// Sources may have their own maximum limits that override this value.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// DateFrom filters papers published on or after this date.
	// If nil, no lower date bound is applied.
	DateFrom *time.Time
}

// SearchResult contains the results from one source search operation.
type SearchResult struct {
	// Papers contains the papers returned by the search.
	// May be empty if no papers match the search criteria.
	Papers []domain.Paper

	// TotalResults is the total number of papers matching the query,
	// regardless of the result cap. Provided by the source API; may be an
	// estimate for large result sets.
	TotalResults int

	// Source identifies which paper source provided these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search, including
	// network latency and response parsing.
	SearchDuration time.Duration
}

// PaperSource defines the interface that all paper source clients implement.
type PaperSource interface {
	// Search queries the source for papers matching the given parameters.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting as needed
	//   - Transform source-specific responses to domain.Paper
	//   - Include appropriate error wrapping with source context
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this paper source.
	// Used for attribution, deduplication, and ranking weights.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this paper source.
	// Used for logging and metrics.
	Name() string

	// IsEnabled returns whether this source is currently enabled and
	// available for searches. A source may be disabled by configuration.
	IsEnabled() bool
}
