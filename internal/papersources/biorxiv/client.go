// Package biorxiv implements the papersources.PaperSource interface for the
// bioRxiv and medRxiv preprint servers, queried through the Europe PMC API.
package biorxiv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default Europe PMC API base URL.
	DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultRateLimit is the default rate limit (5 requests per second).
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100
)

// Config holds configuration for the bioRxiv/medRxiv client.
type Config struct {
	// BaseURL is the Europe PMC API base URL.
	BaseURL string

	// Server is the preprint server name ("bioRxiv" or "medRxiv").
	// Used in the PUBLISHER filter for Europe PMC queries.
	Server string

	// SourceType is the domain source type (SourceTypeBioRxiv or SourceTypeMedRxiv).
	SourceType domain.SourceType

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Server == "" {
		c.Server = "bioRxiv"
	}
	if c.SourceType == "" {
		c.SourceType = domain.SourceTypeBioRxiv
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.PaperSource interface for bioRxiv/medRxiv
// using the Europe PMC API as a proxy.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new bioRxiv/medRxiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new bioRxiv/medRxiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries Europe PMC for bioRxiv/medRxiv papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			c.config.Server,
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Parse the JSON response (limit body to 10MB).
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := make([]domain.Paper, 0, len(searchResp.ResultList.Result))
	for i := range searchResp.ResultList.Result {
		paper, ok := c.articleToPaper(&searchResp.ResultList.Result[i])
		if ok {
			papers = append(papers, paper)
		}
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   searchResp.HitCount,
		Source:         c.config.SourceType,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return c.config.SourceType
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return c.config.Server
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the Europe PMC search API URL.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search"

	// Build query: {query} AND (SRC:PPR) AND (PUBLISHER:"{server}")
	queryParts := []string{
		params.Query,
		"(SRC:PPR)",
		fmt.Sprintf(`(PUBLISHER:"%s")`, c.config.Server),
	}
	if params.DateFrom != nil {
		queryParts = append(queryParts,
			fmt.Sprintf("(FIRST_PDATE:[%s TO *])", params.DateFrom.Format("2006-01-02")))
	}

	urlQuery := url.Values{}
	urlQuery.Set("query", strings.Join(queryParts, " AND "))
	urlQuery.Set("format", "json")
	urlQuery.Set("resultType", "core")

	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	urlQuery.Set("pageSize", strconv.Itoa(maxResults))

	baseURL.RawQuery = urlQuery.Encode()
	return baseURL.String(), nil
}

// articleToPaper converts a Europe PMC Article to a domain Paper.
func (c *Client) articleToPaper(article *Article) (domain.Paper, bool) {
	if article == nil {
		return domain.Paper{}, false
	}

	doi := strings.TrimSpace(article.DOI)
	id := article.ID
	if doi != "" {
		id = "doi:" + doi
	}
	if id == "" {
		return domain.Paper{}, false
	}

	var pubDate *time.Time
	var pubYear int
	if article.FirstPublicationDate != "" {
		if t, err := time.Parse("2006-01-02", article.FirstPublicationDate); err == nil {
			pubDate = &t
			pubYear = t.Year()
		}
	}
	if pubYear == 0 && article.PubYear != "" {
		pubYear, _ = strconv.Atoi(article.PubYear)
	}

	var paperURL string
	if doi != "" {
		paperURL = "https://doi.org/" + doi
	}

	version, _ := strconv.Atoi(strings.TrimSpace(article.Version))

	return domain.Paper{
		ID:            id,
		Title:         strings.TrimSpace(article.Title),
		Abstract:      strings.TrimSpace(article.AbstractText),
		Authors:       parseAuthorString(article.AuthorString),
		PublishedDate: pubDate,
		Year:          pubYear,
		Source:        c.config.SourceType,
		URL:           paperURL,
		Citations:     article.CitedByCount,
		Version:       version,
	}, true
}

// parseAuthorString parses the Europe PMC authorString field.
// Europe PMC uses "GivenName Surname" format with authors separated by ", ".
func parseAuthorString(authorString string) []domain.Author {
	authorString = strings.TrimSpace(authorString)
	authorString = strings.TrimSuffix(authorString, ".")
	if authorString == "" {
		return nil
	}

	parts := strings.Split(authorString, ", ")
	authors := make([]domain.Author, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{Name: name})
	}

	return authors
}
