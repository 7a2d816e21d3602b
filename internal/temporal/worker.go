package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// TaskQueue is the name of the task queue to poll.
	TaskQueue string

	// MaxConcurrentActivityExecutionSize is the maximum concurrent activity
	// executions. Default: 50.
	MaxConcurrentActivityExecutionSize int

	// MaxConcurrentWorkflowTaskExecutionSize is the maximum concurrent
	// workflow task executions. Default: 25.
	MaxConcurrentWorkflowTaskExecutionSize int
}

// DefaultWorkerConfig returns a WorkerConfig with default values.
func DefaultWorkerConfig(taskQueue string) WorkerConfig {
	return WorkerConfig{
		TaskQueue:                              taskQueue,
		MaxConcurrentActivityExecutionSize:     50,
		MaxConcurrentWorkflowTaskExecutionSize: 25,
	}
}

// WorkerManager manages the lifecycle of a Temporal worker that hosts the
// pipeline workflow and its activities.
type WorkerManager struct {
	worker    worker.Worker
	taskQueue string
}

// NewWorkerManager creates a worker and registers the given workflow and
// activity implementations. Both slices hold opaque references so this
// package does not depend on the implementations.
func NewWorkerManager(c client.Client, cfg WorkerConfig, workflows []interface{}, activities []interface{}) (*WorkerManager, error) {
	if cfg.TaskQueue == "" {
		return nil, fmt.Errorf("task queue is required")
	}

	options := worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.MaxConcurrentActivityExecutionSize,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.MaxConcurrentWorkflowTaskExecutionSize,
	}
	if options.MaxConcurrentActivityExecutionSize == 0 {
		options.MaxConcurrentActivityExecutionSize = 50
	}
	if options.MaxConcurrentWorkflowTaskExecutionSize == 0 {
		options.MaxConcurrentWorkflowTaskExecutionSize = 25
	}

	w := worker.New(c, cfg.TaskQueue, options)
	for _, wf := range workflows {
		w.RegisterWorkflow(wf)
	}
	for _, act := range activities {
		w.RegisterActivity(act)
	}

	return &WorkerManager{worker: w, taskQueue: cfg.TaskQueue}, nil
}

// Run starts the worker and blocks until the interrupt channel closes.
func (m *WorkerManager) Run(interruptCh <-chan interface{}) error {
	if err := m.worker.Run(interruptCh); err != nil {
		return fmt.Errorf("worker on task queue %s: %w", m.taskQueue, err)
	}
	return nil
}

// Start starts the worker without blocking.
func (m *WorkerManager) Start() error {
	if err := m.worker.Start(); err != nil {
		return fmt.Errorf("start worker on task queue %s: %w", m.taskQueue, err)
	}
	return nil
}

// Stop stops the worker.
func (m *WorkerManager) Stop() {
	m.worker.Stop()
}

// TaskQueue returns the task queue this worker polls.
func (m *WorkerManager) TaskQueue() string {
	return m.taskQueue
}
