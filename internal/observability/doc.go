// Package observability provides logging and metrics support for the
// research pipeline service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for workflows, stages, paper aggregation, and the HTTP API
//   - Context helpers for propagating request identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("workflow_id", id).Msg("workflow started")
//
// Add pipeline context to a logger:
//
//	logger = observability.WithPipelineContext(logger, workflowID, stage)
//
// # Metrics
//
// Initialize metrics once per process:
//
//	metrics := observability.NewMetrics("research_pipeline")
//
// Record metrics:
//
//	metrics.RecordWorkflowStarted()
//	metrics.RecordStageExecution("synthesis", true, 2.1)
//	metrics.RecordPapersFetched("arxiv", 42)
//
// # Context Helpers
//
// Store and retrieve the request correlation ID:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - workflow_id: Research workflow identifier
//   - stage: Pipeline stage (literature_search, synthesis, ...)
//   - query: User's research query
//   - source: Paper source (arxiv, biorxiv, openalex, ...)
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
