package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/papersources"
)

const atomFeedBody = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">
  <opensearch:totalResults>2</opensearch:totalResults>
  <opensearch:startIndex>0</opensearch:startIndex>
  <opensearch:itemsPerPage>2</opensearch:itemsPerPage>
  <entry>
    <id>http://arxiv.org/abs/2301.12345v2</id>
    <title>Attention Is
        All You Need</title>
    <summary>  We propose a new
        architecture.  </summary>
    <published>2023-01-15T18:30:00Z</published>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
  </entry>
  <entry>
    <id>not-a-valid-arxiv-url</id>
    <title>Broken entry</title>
  </entry>
</feed>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewWithHTTPClient(Config{
		BaseURL: server.URL,
		Enabled: true,
	}, papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  100,
		BurstSize:  10,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	}))
}

func TestClient_Search(t *testing.T) {
	t.Run("parses Atom feed entries", func(t *testing.T) {
		var receivedQuery string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			receivedQuery = r.URL.Query().Get("search_query")
			assert.Equal(t, "/query", r.URL.Path)
			assert.Equal(t, "submittedDate", r.URL.Query().Get("sortBy"))
			w.Write([]byte(atomFeedBody))
		})

		result, err := client.Search(context.Background(), papersources.SearchParams{
			Query:      "transformers",
			MaxResults: 10,
		})

		require.NoError(t, err)
		assert.Equal(t, "all:transformers", receivedQuery)
		assert.Equal(t, 2, result.TotalResults)
		assert.Equal(t, domain.SourceTypeArXiv, result.Source)

		// The entry without a parseable arXiv ID is dropped.
		require.Len(t, result.Papers, 1)

		paper := result.Papers[0]
		assert.Equal(t, "arxiv:2301.12345", paper.ID)
		assert.Equal(t, "Attention Is All You Need", paper.Title)
		assert.Equal(t, "We propose a new architecture.", paper.Abstract)
		assert.Equal(t, 2023, paper.Year)
		assert.Equal(t, 2, paper.Version)
		assert.Equal(t, "https://arxiv.org/abs/2301.12345", paper.URL)
		require.Len(t, paper.Authors, 2)
		assert.Equal(t, "Ashish Vaswani", paper.Authors[0].Name)
	})

	t.Run("includes date filter in query", func(t *testing.T) {
		var receivedQuery string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			receivedQuery = r.URL.Query().Get("search_query")
			w.Write([]byte(`<feed><totalResults>0</totalResults></feed>`))
		})

		from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		_, err := client.Search(context.Background(), papersources.SearchParams{
			Query:    "q",
			DateFrom: &from,
		})

		require.NoError(t, err)
		assert.Contains(t, receivedQuery, "submittedDate:[202406010000 TO *]")
	})

	t.Run("returns external API error on failure status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "q"})

		require.Error(t, err)
		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestExtractArXivID(t *testing.T) {
	tests := []struct {
		input       string
		wantID      string
		wantVersion int
	}{
		{"http://arxiv.org/abs/2301.12345v1", "2301.12345", 1},
		{"http://arxiv.org/abs/2301.12345", "2301.12345", 0},
		{"http://arxiv.org/abs/hep-th/9901001v3", "hep-th/9901001", 3},
		{"https://example.com/other", "", 0},
	}

	for _, tt := range tests {
		id, version := extractArXivID(tt.input)
		assert.Equal(t, tt.wantID, id, tt.input)
		assert.Equal(t, tt.wantVersion, version, tt.input)
	}
}
