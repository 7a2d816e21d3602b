package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-pipeline-service/internal/domain"
	"github.com/helixir/research-pipeline-service/internal/events"
	"github.com/helixir/research-pipeline-service/internal/observability"
)

// finalizeTimeout bounds the persistence and event work done after a run
// ends, including runs ended by cancellation.
const finalizeTimeout = 10 * time.Second

// Store is the persistence surface the manager needs. The workflow
// repository satisfies it.
type Store interface {
	Create(ctx context.Context, state *domain.WorkflowState) error
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error)
	Save(ctx context.Context, state *domain.WorkflowState) error
}

// ManagerConfig holds manager tuning knobs.
type ManagerConfig struct {
	// DefaultMaxPapers is applied when a submission does not set a cap.
	DefaultMaxPapers int
}

// Manager owns the in-process execution of workflows: it accepts
// submissions, runs each one on its own goroutine, and supports
// cancellation of in-flight runs. Terminal bookkeeping (final save,
// lifecycle event, metrics) happens here so the driver stays a pure loop.
type Manager struct {
	driver  *Driver
	store   Store
	emitter *events.Emitter
	metrics *observability.Metrics
	config  ManagerConfig
	logger  zerolog.Logger

	mu     sync.Mutex
	runs   map[uuid.UUID]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewManager creates a workflow manager. The manager registers itself as the
// driver's observer so stage completions surface as events and metrics.
func NewManager(driver *Driver, store Store, emitter *events.Emitter, metrics *observability.Metrics, cfg ManagerConfig, logger zerolog.Logger) *Manager {
	if cfg.DefaultMaxPapers <= 0 {
		cfg.DefaultMaxPapers = 50
	}
	if emitter == nil {
		emitter = events.NewEmitter(events.NopPublisher{}, logger)
	}

	m := &Manager{
		driver:  driver,
		store:   store,
		emitter: emitter,
		metrics: metrics,
		config:  cfg,
		logger:  logger.With().Str("component", "workflow_manager").Logger(),
		runs:    make(map[uuid.UUID]context.CancelFunc),
	}
	driver.SetObserver(m)

	return m
}

// Start validates the submission, persists the initial state, and launches
// the pipeline on a background goroutine. The returned state is a snapshot
// taken before the run begins.
func (m *Manager) Start(ctx context.Context, query string, maxPapers int) (*domain.WorkflowState, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewValidationError("query", "query is required")
	}
	if maxPapers <= 0 {
		maxPapers = m.config.DefaultMaxPapers
	}

	state := domain.NewWorkflowState(query, maxPapers)
	if err := m.store.Create(ctx, state); err != nil {
		return nil, err
	}

	m.emitter.WorkflowStarted(ctx, state)
	if m.metrics != nil {
		m.metrics.RecordWorkflowStarted()
	}

	// The run must outlive the submitting request.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("workflow manager: %w", domain.ErrServiceUnavailable)
	}
	m.runs[state.ID] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	snapshot := *state
	go m.run(runCtx, cancel, state)

	return &snapshot, nil
}

// Cancel stops a workflow. An in-flight run is cancelled through its
// context; a run that is no longer executing (for example after a restart)
// is marked failed directly. Returns domain.ErrWorkflowTerminal if the
// workflow already finished.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error) {
	state, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.IsTerminal() {
		return nil, fmt.Errorf("workflow %s: %w", id, domain.ErrWorkflowTerminal)
	}

	m.mu.Lock()
	cancel, running := m.runs[id]
	m.mu.Unlock()

	if running {
		cancel()
		return state, nil
	}

	// Orphaned non-terminal state: finalize it here.
	now := time.Now().UTC()
	state.AddError(state.CurrentStage, domain.ErrCancelled)
	state.Status = domain.WorkflowStatusFailed
	state.UpdatedAt = now
	state.CompletedAt = &now

	if err := m.store.Save(ctx, state); err != nil {
		return nil, err
	}

	m.emitter.WorkflowCancelled(ctx, state, "cancelled")
	if m.metrics != nil {
		m.metrics.RecordWorkflowCancelled()
	}

	return state, nil
}

// Running reports the number of in-flight workflow runs.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// Shutdown cancels all in-flight runs and waits for their finalization,
// bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, cancel := range m.runs {
		cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// run executes one workflow to completion and performs terminal bookkeeping.
func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, state *domain.WorkflowState) {
	defer m.wg.Done()
	defer cancel()
	defer func() {
		m.mu.Lock()
		delete(m.runs, state.ID)
		m.mu.Unlock()
	}()

	started := time.Now()
	final, runErr := m.driver.Run(ctx, state)
	elapsed := time.Since(started)
	cancelled := errors.Is(runErr, context.Canceled)

	// Finalization must not be cut short by the cancelled run context.
	finCtx, finCancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer finCancel()

	if !final.IsTerminal() {
		now := time.Now().UTC()
		final.Status = domain.WorkflowStatusFailed
		final.UpdatedAt = now
		final.CompletedAt = &now
	}
	if err := m.store.Save(finCtx, final); err != nil {
		m.logger.Error().Err(err).
			Stringer("workflow_id", final.ID).
			Msg("failed to save final workflow state")
	}

	switch {
	case cancelled:
		m.emitter.WorkflowCancelled(finCtx, final, "cancelled")
		if m.metrics != nil {
			m.metrics.RecordWorkflowCancelled()
		}
	case final.Status == domain.WorkflowStatusCompleted:
		m.emitter.WorkflowCompleted(finCtx, final)
		if m.metrics != nil {
			m.metrics.RecordWorkflowCompleted(elapsed.Seconds())
		}
	default:
		m.emitter.WorkflowFailed(finCtx, final, failureReason(final, runErr))
		if m.metrics != nil {
			m.metrics.RecordWorkflowFailed(elapsed.Seconds())
		}
	}
}

// StageExecuted implements the driver Observer hook: each stage completion
// becomes a lifecycle event and a metric sample.
func (m *Manager) StageExecuted(ctx context.Context, state *domain.WorkflowState, stage domain.Stage, err error, elapsed time.Duration) {
	m.emitter.StageCompleted(ctx, state, stage, err == nil, elapsed)
	if m.metrics != nil {
		m.metrics.RecordStageExecution(string(stage), err == nil, elapsed.Seconds())
	}
}

// DecisionApplied implements the driver Observer hook for supervisor
// decisions.
func (m *Manager) DecisionApplied(ctx context.Context, state *domain.WorkflowState, decision domain.SupervisorDecision) {
	if m.metrics != nil {
		m.metrics.RecordSupervisorDecision(string(decision.NextStage), decision.Continue)
	}
}

// failureReason picks the most informative reason for a failed run.
func failureReason(state *domain.WorkflowState, runErr error) string {
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr.Error()
	}
	if n := len(state.DecisionLog); n > 0 {
		return state.DecisionLog[n-1].Reason
	}
	if n := len(state.Errors); n > 0 {
		return state.Errors[n-1]
	}
	return "pipeline failed"
}
