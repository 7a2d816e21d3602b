// Package agents contains the five pipeline workers: literature hunter,
// synthesizer, hypothesis generator, methodology designer and validator.
//
// Workers obey a strict contract: each writes only its own artifact field on
// the workflow state, never control fields, and a failed Execute leaves the
// state unchanged so the supervisor can retry it safely.
package agents

import (
	"context"
	"time"

	"github.com/helixir/research-pipeline-service/internal/domain"
)

// Agent is a single pipeline worker.
type Agent interface {
	// Stage identifies which pipeline stage this worker serves.
	Stage() domain.Stage

	// Execute runs the worker against the state. On success the worker has
	// written its artifact field; on error the state is unchanged and the
	// caller records the failure.
	Execute(ctx context.Context, state *domain.WorkflowState) error
}

// Per-stage sampling temperatures. Creative stages run hotter, judgment
// stages colder. The literature stage's planner temperature lives with the
// aggregator.
const (
	temperatureSynthesis   = 0.5
	temperatureHypothesis  = 0.8
	temperatureMethodology = 0.6
	temperatureValidation  = 0.3
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Registry maps stages to their workers.
type Registry map[domain.Stage]Agent

// NewRegistry builds a stage-keyed lookup from the given workers.
func NewRegistry(workers ...Agent) Registry {
	registry := make(Registry, len(workers))
	for _, worker := range workers {
		registry[worker.Stage()] = worker
	}
	return registry
}

// Get returns the worker for a stage, or nil when no worker serves it.
func (r Registry) Get(stage domain.Stage) Agent {
	return r[stage]
}
