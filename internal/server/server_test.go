package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-pipeline-service/internal/database"
)

// stubHealth reports a fixed health status.
type stubHealth struct {
	status database.HealthStatus
}

func (h *stubHealth) Health(_ context.Context) database.HealthStatus {
	return h.status
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubManager{}, newStubRepo())

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadinessEndpoint(t *testing.T) {
	t.Run("healthy database reports ready", func(t *testing.T) {
		health := &stubHealth{status: database.HealthStatus{Status: "healthy"}}
		srv := NewServer(Config{Address: "127.0.0.1:0"}, &stubManager{}, newStubRepo(), health, nil, zerolog.Nop())

		rec := doRequest(t, srv, http.MethodGet, "/ready", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ready"`)
	})

	t.Run("unhealthy database reports 503", func(t *testing.T) {
		health := &stubHealth{status: database.HealthStatus{Status: "unhealthy", Error: "connection refused"}}
		srv := NewServer(Config{Address: "127.0.0.1:0"}, &stubManager{}, newStubRepo(), health, nil, zerolog.Nop())

		rec := doRequest(t, srv, http.MethodGet, "/ready", nil)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "not_ready")
	})

	t.Run("no health checker reports ready", func(t *testing.T) {
		srv := newTestServer(&stubManager{}, newStubRepo())

		rec := doRequest(t, srv, http.MethodGet, "/ready", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&stubManager{}, newStubRepo())

	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil)

	// promhttp serves the default registry; the endpoint must exist.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCorrelationIDMiddleware(t *testing.T) {
	t.Run("propagates provided correlation id", func(t *testing.T) {
		srv := newTestServer(&stubManager{}, newStubRepo())

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Correlation-ID", "abc-123")
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))
	})

	t.Run("generates correlation id when absent", func(t *testing.T) {
		srv := newTestServer(&stubManager{}, newStubRepo())

		rec := doRequest(t, srv, http.MethodGet, "/health", nil)

		assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
	})
}

func TestAPIRoutesSetJSONContentType(t *testing.T) {
	srv := newTestServer(&stubManager{}, newStubRepo())

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/workflows", nil)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
