package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StageFunc consumes the accumulated state and returns a partial-state
// patch. Stage functions must be total over any reachable state: the first
// stage initializes every expected field, so later stages may rely on
// defaults but never on fields that only exist for some routes.
type StageFunc[S, P any] func(ctx context.Context, state S) (P, error)

// Stage is one named step in a pipeline.
type Stage[S, P any] struct {
	Name string
	Fn   StageFunc[S, P]
}

// MergeFunc applies a stage's patch onto the accumulated state and returns
// the next accumulated state. Implementations must be pure: absent patch
// fields are no-ops, present fields overwrite, and append-only fields
// concatenate (see Append).
type MergeFunc[S, P any] func(state S, patch P) S

// StageObserver receives timing for each completed stage.
type StageObserver func(stage string, elapsed time.Duration, err error)

// EngineOption configures an Engine.
type EngineOption[S, P any] func(*Engine[S, P])

// WithStageObserver registers an observer invoked after every stage.
func WithStageObserver[S, P any](obs StageObserver) EngineOption[S, P] {
	return func(e *Engine[S, P]) {
		e.observer = obs
	}
}

// Engine drives a fixed, linear stage sequence against one state value.
// There is no branching and no retry between stages: any specialization is
// decided inside a single stage based on an earlier routing decision, not
// by altering the stage order.
type Engine[S, P any] struct {
	name     string
	stages   []Stage[S, P]
	merge    MergeFunc[S, P]
	observer StageObserver
	logger   *zap.Logger
}

// NewEngine creates an engine with the declared stage order.
func NewEngine[S, P any](name string, merge MergeFunc[S, P], logger *zap.Logger, stages []Stage[S, P], opts ...EngineOption[S, P]) *Engine[S, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine[S, P]{
		name:   name,
		stages: stages,
		merge:  merge,
		logger: logger.With(zap.String("pipeline", name)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every stage exactly once in declared order, merging each
// stage's patch before the next stage starts. The returned state is the
// accumulated state after the last stage. A stage error aborts the run;
// the partially accumulated state is returned alongside it for inspection
// but callers must not persist it.
func (e *Engine[S, P]) Execute(ctx context.Context, state S) (S, error) {
	for i, stage := range e.stages {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}

		start := time.Now()
		patch, err := stage.Fn(ctx, state)
		elapsed := time.Since(start)

		if e.observer != nil {
			e.observer(stage.Name, elapsed, err)
		}
		if err != nil {
			return state, fmt.Errorf("stage %d (%s) failed: %w", i+1, stage.Name, err)
		}

		state = e.merge(state, patch)
		e.logger.Debug("stage completed",
			zap.String("stage", stage.Name),
			zap.Duration("elapsed", elapsed),
		)
	}
	return state, nil
}

// Name returns the pipeline name.
func (e *Engine[S, P]) Name() string { return e.name }

// StageNames returns the declared stage order.
func (e *Engine[S, P]) StageNames() []string {
	names := make([]string, len(e.stages))
	for i, s := range e.stages {
		names[i] = s.Name
	}
	return names
}
