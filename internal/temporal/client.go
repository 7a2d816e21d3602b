// Package temporal provides the durable execution variant of the research
// pipeline: a Temporal client wrapper, worker lifecycle management, and the
// shared signal/query names and input types used by both the workflow
// implementation and its callers.
package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Signal and query names for external interaction with pipeline workflows.
// Defined here rather than in the workflows package so callers can reference
// them without importing the workflow implementation.
const (
	// SignalCancel requests cooperative cancellation of a running pipeline.
	SignalCancel = "cancel"

	// QueryProgress returns the current workflow summary.
	QueryProgress = "progress"
)

// Default timeouts.
const (
	// DefaultWorkflowExecutionTimeout caps a single pipeline run.
	DefaultWorkflowExecutionTimeout = 2 * time.Hour

	// DefaultHealthCheckTimeout bounds Temporal server health checks.
	DefaultHealthCheckTimeout = 5 * time.Second
)

// Sentinel errors for Temporal operations.
var (
	// ErrWorkflowNotFound indicates the workflow execution was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyStarted indicates a workflow with the same ID is already running.
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")

	// ErrQueryFailed indicates the workflow query failed.
	ErrQueryFailed = errors.New("query failed")

	// ErrSignalFailed indicates the workflow signal failed.
	ErrSignalFailed = errors.New("signal failed")

	// ErrConnectionFailed indicates a connection failure to the Temporal server.
	ErrConnectionFailed = errors.New("connection failed")
)

// OperationError wraps a Temporal SDK error with the failing operation and
// a sentinel kind usable with errors.Is.
type OperationError struct {
	Op         string
	Kind       error
	WorkflowID string
	Err        error
}

// Error returns the error message.
func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflow_id=%s]", e.WorkflowID)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error's Kind.
func (e *OperationError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapOperationError maps a Temporal SDK error to an OperationError.
func wrapOperationError(op string, err error, workflowID string) error {
	if err == nil {
		return nil
	}

	oe := &OperationError{Op: op, WorkflowID: workflowID, Err: err}

	var notFoundErr *serviceerror.NotFound
	var alreadyStartedErr *serviceerror.WorkflowExecutionAlreadyStarted
	var queryFailedErr *serviceerror.QueryFailed

	switch {
	case errors.As(err, &notFoundErr):
		oe.Kind = ErrWorkflowNotFound
	case errors.As(err, &alreadyStartedErr):
		oe.Kind = ErrWorkflowAlreadyStarted
	case errors.As(err, &queryFailedErr):
		oe.Kind = ErrQueryFailed
	default:
		oe.Kind = ErrConnectionFailed
	}

	return oe
}

// ClientConfig contains configuration for the Temporal client.
type ClientConfig struct {
	// HostPort is the Temporal server address, e.g. "localhost:7233".
	HostPort string

	// Namespace is the Temporal namespace to use.
	Namespace string

	// TaskQueue is the task queue pipeline workflows are scheduled on.
	TaskQueue string

	// Logger is the logger the Temporal SDK uses. Nil keeps the SDK default.
	Logger log.Logger
}

// NewClient dials the Temporal server.
func NewClient(cfg ClientConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}

	return c, nil
}

// ResearchWorkflowInput contains the parameters for starting a pipeline
// workflow. The workflow ID doubles as the domain workflow ID so REST and
// Temporal views of a run coincide.
type ResearchWorkflowInput struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	Query      string    `json:"query"`
	MaxPapers  int       `json:"max_papers"`
}

// PipelineClient wraps a Temporal client with typed operations for the
// research pipeline workflow.
type PipelineClient struct {
	client    client.Client
	taskQueue string
}

// NewPipelineClient creates a typed workflow client.
func NewPipelineClient(c client.Client, taskQueue string) *PipelineClient {
	return &PipelineClient{client: c, taskQueue: taskQueue}
}

// Client returns the underlying Temporal client.
func (c *PipelineClient) Client() client.Client {
	return c.client
}

// Close closes the underlying connection.
func (c *PipelineClient) Close() {
	c.client.Close()
}

// StartResearchWorkflow starts a pipeline workflow for the given input.
// workflowFunc is the registered workflow function; it is passed as an
// opaque reference so this package does not import the implementation.
func (c *PipelineClient) StartResearchWorkflow(ctx context.Context, workflowFunc interface{}, input ResearchWorkflowInput) (workflowID, runID string, err error) {
	workflowID = "research-pipeline-" + input.WorkflowID.String()

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultWorkflowExecutionTimeout,
	}, workflowFunc, input)
	if err != nil {
		return "", "", wrapOperationError("start workflow", err, workflowID)
	}

	return run.GetID(), run.GetRunID(), nil
}

// CancelResearchWorkflow requests cooperative cancellation via the cancel
// signal. The workflow finalizes its state before exiting.
func (c *PipelineClient) CancelResearchWorkflow(ctx context.Context, workflowID string) error {
	if err := c.client.SignalWorkflow(ctx, workflowID, "", SignalCancel, nil); err != nil {
		return wrapOperationError("signal cancel", err, workflowID)
	}
	return nil
}

// GetProgress queries the running workflow for its current summary.
func (c *PipelineClient) GetProgress(ctx context.Context, workflowID string) (domain.Summary, error) {
	resp, err := c.client.QueryWorkflow(ctx, workflowID, "", QueryProgress)
	if err != nil {
		return domain.Summary{}, wrapOperationError("query progress", err, workflowID)
	}

	var summary domain.Summary
	if err := resp.Get(&summary); err != nil {
		return domain.Summary{}, wrapOperationError("decode progress", err, workflowID)
	}

	return summary, nil
}

// GetResult blocks until the workflow completes and decodes its summary.
func (c *PipelineClient) GetResult(ctx context.Context, workflowID, runID string) (domain.Summary, error) {
	var summary domain.Summary
	run := c.client.GetWorkflow(ctx, workflowID, runID)
	if err := run.Get(ctx, &summary); err != nil {
		return domain.Summary{}, wrapOperationError("get result", err, workflowID)
	}
	return summary, nil
}

// Health verifies connectivity by checking the server's capabilities.
func (c *PipelineClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultHealthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
		return wrapOperationError("health check", err, "")
	}
	return nil
}
