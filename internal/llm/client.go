// Package llm provides the generative-model abstraction used by the pipeline
// workers and the supervisor's decision oracle. Providers are opaque
// completion backends: prompt in, text out, may fail or time out. Callers own
// prompt construction and response parsing.
package llm

import (
	"context"
	"errors"
)

// Request is a single completion request.
type Request struct {
	// System is the system prompt, empty for none.
	System string
	// User is the user prompt.
	User string
	// Temperature is the sampling temperature for this call. Stages use
	// different temperatures, so it is per-request rather than per-client.
	Temperature float64
	// MaxTokens caps the response length; 0 uses the provider default.
	MaxTokens int
	// JSONOutput requests structured JSON output where the provider
	// supports enforcing it.
	JSONOutput bool
}

// Response is a completed generation.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Client is a generative-model backend. Implementations must be safe for
// concurrent use and must be safe to retry; no state is implied between
// calls.
type Client interface {
	// Complete runs one generation. Transient provider errors (429, 5xx,
	// network) are retried internally up to the configured budget.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Provider returns the provider name ("openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// isTransientError reports whether the error is an APIError eligible for retry.
func isTransientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	return false
}
