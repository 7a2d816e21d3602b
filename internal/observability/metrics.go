package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments the service records: workflow
// lifecycle counters, supervisor decisions, stage executions, literature
// aggregation counts, and HTTP API traffic. Everything is registered with
// the default registry via promauto.
type Metrics struct {
	// WorkflowsStarted counts the total number of research workflows initiated.
	WorkflowsStarted prometheus.Counter

	// WorkflowsCompleted counts the total number of workflows that reached Completed.
	WorkflowsCompleted prometheus.Counter

	// WorkflowsFailed counts the total number of workflows that reached Failed.
	WorkflowsFailed prometheus.Counter

	// WorkflowsCancelled counts the total number of workflows cancelled by user or system.
	WorkflowsCancelled prometheus.Counter

	// WorkflowDuration observes the end-to-end duration of workflows in seconds.
	WorkflowDuration prometheus.Histogram

	// SupervisorDecisions counts supervisor decisions, labeled by next stage and continue verdict.
	SupervisorDecisions *prometheus.CounterVec

	// StageExecutions counts worker executions, labeled by stage and outcome ("ok", "error").
	StageExecutions *prometheus.CounterVec

	// StageDuration observes worker execution duration in seconds, labeled by stage.
	StageDuration *prometheus.HistogramVec

	// PapersFetched counts papers returned by searches, labeled by paper source.
	PapersFetched *prometheus.CounterVec

	// PapersDeduplicated counts papers removed as duplicates during aggregation.
	PapersDeduplicated prometheus.Counter

	// HTTPRequestsTotal counts HTTP API requests, labeled by method, route, and status.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP API request duration in seconds, labeled by method and route.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Workflows
		WorkflowsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_started_total",
			Help:      "Total number of research workflows started",
		}),
		WorkflowsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_completed_total",
			Help:      "Total number of research workflows completed successfully",
		}),
		WorkflowsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_failed_total",
			Help:      "Total number of research workflows that failed",
		}),
		WorkflowsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_cancelled_total",
			Help:      "Total number of research workflows cancelled",
		}),
		WorkflowDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Duration of research workflows in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),

		// Supervisor
		SupervisorDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supervisor_decisions_total",
			Help:      "Total number of supervisor decisions by next stage and verdict",
		}, []string{"stage", "continue"}),

		// Stage executions
		StageExecutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Total number of stage executions by stage and outcome",
		}, []string{"stage", "outcome"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of stage executions in seconds by stage",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),

		// Literature search
		PapersFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Total number of papers fetched by source",
		}, []string{"source"}),
		PapersDeduplicated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_deduplicated_total",
			Help:      "Total number of duplicate papers removed during aggregation",
		}),

		// HTTP API
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP API requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
}

// RecordWorkflowStarted records that a workflow has started.
func (m *Metrics) RecordWorkflowStarted() {
	m.WorkflowsStarted.Inc()
}

// RecordWorkflowCompleted records that a workflow has completed.
func (m *Metrics) RecordWorkflowCompleted(durationSeconds float64) {
	m.WorkflowsCompleted.Inc()
	m.WorkflowDuration.Observe(durationSeconds)
}

// RecordWorkflowFailed records that a workflow has failed.
func (m *Metrics) RecordWorkflowFailed(durationSeconds float64) {
	m.WorkflowsFailed.Inc()
	m.WorkflowDuration.Observe(durationSeconds)
}

// RecordWorkflowCancelled records that a workflow has been cancelled.
func (m *Metrics) RecordWorkflowCancelled() {
	m.WorkflowsCancelled.Inc()
}

// RecordSupervisorDecision records a supervisor decision.
func (m *Metrics) RecordSupervisorDecision(stage string, shouldContinue bool) {
	verdict := "false"
	if shouldContinue {
		verdict = "true"
	}
	m.SupervisorDecisions.WithLabelValues(stage, verdict).Inc()
}

// RecordStageExecution records a worker execution and its duration.
func (m *Metrics) RecordStageExecution(stage string, success bool, durationSeconds float64) {
	outcome := "error"
	if success {
		outcome = "ok"
	}
	m.StageExecutions.WithLabelValues(stage, outcome).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordPapersFetched records papers returned from a source.
func (m *Metrics) RecordPapersFetched(source string, count int) {
	m.PapersFetched.WithLabelValues(source).Add(float64(count))
}

// RecordPapersDeduplicated records duplicate papers removed during aggregation.
func (m *Metrics) RecordPapersDeduplicated(count int) {
	m.PapersDeduplicated.Add(float64(count))
}

// RecordHTTPRequest records an HTTP API request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
