package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seismiq/quakeagent/internal/domain"
	"github.com/seismiq/quakeagent/internal/ports"
)

// stageState is a node of the pipeline's finite-state machine.
type stageState string

const (
	stateSupervisor stageState = "supervisor"
	stateNormaliser stageState = "normaliser"
	stateExecutor   stageState = "executor"
	stateSummariser stageState = "summariser"
	stateEvaluator  stageState = "evaluator"
	stateTerminal   stageState = "terminal"
)

// Orchestrator drives the five stages over one shared conversation
// record. Stages never run concurrently: each computes a patch, the
// orchestrator merges it, then the transition table picks the next state.
// Termination is guaranteed twice over, by the evaluator's bounded pass
// counter and by a coarse overall step cap.
type Orchestrator struct {
	stages  map[stageState]ports.Stage
	cfg     Config
	logger  zerolog.Logger
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOrchestrator wires the five stages into a runnable pipeline.
func NewOrchestrator(
	supervisor, normaliser, executor, summariser, evaluator ports.Stage,
	cfg Config,
	logger zerolog.Logger,
	metrics ports.MetricsCollector,
) *Orchestrator {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &Orchestrator{
		stages: map[stageState]ports.Stage{
			stateSupervisor: supervisor,
			stateNormaliser: normaliser,
			stateExecutor:   executor,
			stateSummariser: summariser,
			stateEvaluator:  evaluator,
		},
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("quakeagent/pipeline"),
	}
}

// Run executes one conversation turn, mutating state in place via patch
// merges. The run always reaches the terminal state: stage errors become
// a user-visible failure message rather than propagating out.
func (o *Orchestrator) Run(ctx context.Context, state *domain.ConversationState) error {
	ctx, span := o.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	current := stateSupervisor
	for step := 0; current != stateTerminal; step++ {
		if step >= o.cfg.MaxRunSteps {
			o.logger.Error().Int("steps", step).Msg("run step cap reached, forcing terminal")
			o.metrics.RecordCounter("pipeline_step_cap_hits", 1, nil)
			state.Apply(domain.Patch{Messages: []domain.Message{{
				Role:    domain.RoleAssistant,
				Content: "Internal error: pipeline exceeded its step budget.",
			}}})
			break
		}

		stage := o.stages[current]
		patch, err := o.runStage(ctx, stage, state)
		if err != nil {
			o.logger.Error().Err(err).Str("stage", stage.Name()).Msg("stage failed")
			o.metrics.RecordCounter("pipeline_stage_errors", 1, map[string]string{"stage": stage.Name()})
			state.Apply(domain.Patch{Messages: []domain.Message{{
				Role:    domain.RoleAssistant,
				Content: fmt.Sprintf("The %s step failed: %v", stage.Name(), err),
			}}})
			break
		}
		state.Apply(patch)

		next := transition(current, state)
		o.logger.Debug().
			Str("from", string(current)).
			Str("to", string(next)).
			Msg("pipeline transition")
		current = next
	}

	if state.EvaluationResult != nil {
		o.metrics.RecordHistogram("evaluation_score", float64(state.EvaluationResult.ConfidenceScore), nil)
	}
	o.metrics.RecordGauge("eval_loop_count", float64(state.EvalLoopCount), nil)
	return nil
}

// runStage invokes one stage with its own span and latency metric.
func (o *Orchestrator) runStage(ctx context.Context, stage ports.Stage, state *domain.ConversationState) (domain.Patch, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.stage."+stage.Name(),
		trace.WithAttributes(
			attribute.String("stage", stage.Name()),
			attribute.Int("eval_loop_count", state.EvalLoopCount),
		))
	defer span.End()

	start := time.Now()
	patch, err := stage.Run(ctx, state)
	o.metrics.RecordLatency("pipeline_stage", time.Since(start), map[string]string{"stage": stage.Name()})
	if err != nil {
		span.RecordError(err)
	}
	return patch, err
}

// transition implements the state graph:
//
//	supervisor -> normaliser        when the turn is a data request
//	supervisor -> terminal          otherwise
//	normaliser -> executor -> summariser -> evaluator, unconditionally
//	evaluator  -> terminal          when passed, or nothing was judged
//	evaluator  -> normaliser        on an intent misalignment retry
//	evaluator  -> summariser        on any other failed-check retry
func transition(current stageState, state *domain.ConversationState) stageState {
	switch current {
	case stateSupervisor:
		if state.Action == domain.ActionNormaliseQuery {
			return stateNormaliser
		}
		return stateTerminal
	case stateNormaliser:
		return stateExecutor
	case stateExecutor:
		return stateSummariser
	case stateSummariser:
		return stateEvaluator
	case stateEvaluator:
		result := state.EvaluationResult
		if result == nil || result.Passed {
			return stateTerminal
		}
		switch result.RetryTarget {
		case domain.RetryNormaliser:
			return stateNormaliser
		case domain.RetrySummariser:
			return stateSummariser
		}
		return stateTerminal
	}
	return stateTerminal
}
