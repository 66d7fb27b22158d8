package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// Engine executes stage sequences and synthesizes their results.
type Engine struct {
	stages           *stage.Registry
	invoker          *stage.Invoker
	synth            *synthesis.Engine
	logger           *Logger
	metrics          *Metrics
	tracer           trace.Tracer
	progressCallback ProgressCallback
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the zap logger.
func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = NewLogger(l) }
}

// WithEngineMetrics sets execution metrics.
func WithEngineMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine.
func NewEngine(stages *stage.Registry, invoker *stage.Invoker, synth *synthesis.Engine, opts ...EngineOption) *Engine {
	e := &Engine{
		stages:  stages,
		invoker: invoker,
		synth:   synth,
		logger:  NewLogger(nil),
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnProgress sets the progress callback.
func (e *Engine) OnProgress(callback ProgressCallback) {
	e.progressCallback = callback
}

// Order returns ids in execution order for pattern.
func Order(pattern workflow.FlowPattern, ids []string) ([]string, error) {
	switch pattern {
	case workflow.Descending, workflow.Balancing, "":
		return append([]string(nil), ids...), nil
	case workflow.Ascending:
		out := make([]string, len(ids))
		for i, id := range ids {
			out[len(ids)-1-i] = id
		}
		return out, nil
	case workflow.Lightning:
		return nil, ErrLightningFlow
	default:
		return nil, fmt.Errorf("%w: %q", workflow.ErrInvalidFlowPattern, pattern)
	}
}

// RunWorkflow executes the session's stages, stores the synthesis on the
// session and records synthesis_completed. The caller must hold the session
// through session.Manager.WithSession.
func (e *Engine) RunWorkflow(ctx context.Context, sess *session.Session, input string, base map[string]any) ([]stage.Result, *synthesis.Synthesis, error) {
	if err := sess.EnsureOpen(); err != nil {
		return nil, nil, err
	}
	ids, err := Order(sess.FlowPattern, sess.Stages)
	if err != nil {
		return nil, nil, err
	}

	ctx, span := e.tracer.Start(ctx, "orchestrator.RunWorkflow", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("flow_pattern", string(sess.FlowPattern)),
		attribute.Int("stages", len(ids)),
	))
	defer span.End()

	start := time.Now()
	results := e.run(ctx, sess.ID, ids, input, base)
	syn := e.synth.Synthesize(results)

	sess.SetSynthesis(syn)
	sess.Record(session.EventSynthesisCompleted, map[string]any{
		"flow_pattern": string(sess.FlowPattern),
		"successful":   syn.SuccessfulStages,
		"total":        syn.TotalStages,
		"confidence":   syn.Confidence,
		"quality":      string(syn.Quality),
	})

	span.SetAttributes(
		attribute.Int("successful", syn.SuccessfulStages),
		attribute.Float64("confidence", syn.Confidence),
	)
	e.metrics.recordRun(ctx, string(sess.FlowPattern), syn.Confidence)
	e.logger.RunFinished(ctx, sess.ID, summarize(results, syn, time.Since(start)))
	return results, syn, nil
}

// RunStages executes ids in the given order without touching any session.
func (e *Engine) RunStages(ctx context.Context, ids []string, input string, base map[string]any) []stage.Result {
	return e.run(ctx, "", ids, input, base)
}

func (e *Engine) run(ctx context.Context, sessionID string, ids []string, input string, base map[string]any) []stage.Result {
	resolved, missing := e.stages.Resolve(ids)
	for _, id := range missing {
		e.logger.StageSkipped(ctx, sessionID, id)
		e.reportProgress(StageProgress{
			SessionID: sessionID,
			StageID:   id,
			Status:    StatusSkipped,
			Message:   fmt.Sprintf("Skipped unregistered stage: %s", id),
		})
	}
	e.logger.RunStarted(ctx, sessionID, ids, input)

	total := len(resolved)
	results := make([]stage.Result, 0, total)
	for i, st := range resolved {
		e.reportProgress(StageProgress{
			SessionID:  sessionID,
			StageID:    st.ID(),
			Status:     StatusInProgress,
			Position:   i + 1,
			Total:      total,
			Message:    fmt.Sprintf("Starting stage: %s", st.ID()),
			Percentage: (i * 100) / total,
		})

		sctx := stage.Clone(base)
		sctx[stage.ContextPreviousResults] = append([]stage.Result(nil), results...)
		sctx[stage.ContextPosition] = i + 1
		sctx[stage.ContextTotalStages] = total

		// A canceled ctx yields a failed result without invoking the stage.
		res, _ := e.invoker.Invoke(ctx, st, input, sctx)
		results = append(results, *res)
		e.metrics.recordStage(ctx, res)

		status, msg := StatusCompleted, fmt.Sprintf("Completed stage: %s", st.ID())
		if !res.Success {
			status, msg = StatusFailed, fmt.Sprintf("Stage %s failed: %s", st.ID(), res.Error)
		}
		e.reportProgress(StageProgress{
			SessionID:  sessionID,
			StageID:    st.ID(),
			Status:     status,
			Position:   i + 1,
			Total:      total,
			Message:    msg,
			Percentage: ((i + 1) * 100) / total,
		})
	}
	return results
}

// reportProgress calls the progress callback if set.
func (e *Engine) reportProgress(progress StageProgress) {
	if e.progressCallback != nil {
		e.progressCallback(progress)
	}
}
