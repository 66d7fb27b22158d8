package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/integration"
	"github.com/fyrsmithlabs/stagehand/internal/lightning"
	"github.com/fyrsmithlabs/stagehand/internal/patterns"
	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// MockStage is a mock implementation of stage.Stage
type MockStage struct {
	mock.Mock
	id string
}

func NewMockStage(id string) *MockStage {
	return &MockStage{id: id}
}

func (m *MockStage) ID() string { return m.id }

func (m *MockStage) Process(ctx context.Context, input string, sctx map[string]any) (*stage.Result, error) {
	args := m.Called(ctx, input, sctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stage.Result), args.Error(1)
}

func (m *MockStage) HealthCheck(ctx context.Context) map[string]any {
	return map[string]any{"status": "healthy", "type": "mock"}
}

// fixedStage returns a constant result and records the contexts it saw.
type fixedStage struct {
	id         string
	confidence float64
	err        error
	seen       []map[string]any
}

func fixed(id string, confidence float64) *fixedStage {
	return &fixedStage{id: id, confidence: confidence}
}

func failing(id string) *fixedStage {
	return &fixedStage{id: id, err: errors.New(id + " unavailable")}
}

func (f *fixedStage) ID() string { return f.id }

func (f *fixedStage) Process(_ context.Context, _ string, sctx map[string]any) (*stage.Result, error) {
	f.seen = append(f.seen, sctx)
	if f.err != nil {
		return nil, f.err
	}
	return &stage.Result{
		Success:    true,
		Confidence: f.confidence,
		Payload: stage.Payload{
			Insights: []string{"The " + f.id + " lens shows a distinct angle on " + f.id},
			Guidance: []string{"Practice " + f.id + " awareness today"},
		},
	}, nil
}

func (f *fixedStage) HealthCheck(context.Context) map[string]any {
	return map[string]any{"status": "healthy"}
}

func registryOf(stages ...stage.Stage) *stage.Registry {
	reg := stage.NewRegistry()
	reg.MustRegister(stages...)
	return reg
}

type harness struct {
	svc      *Service
	engine   *Engine
	sessions *session.Manager
	stages   *stage.Registry
}

func newHarness(t *testing.T, reg *stage.Registry, logger *zap.Logger, opts ...ServiceOption) *harness {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	wfs, err := workflow.NewBuiltinRegistry()
	require.NoError(t, err)

	invoker := stage.NewInvoker(stage.WithLogger(logger))
	synth := synthesis.New()
	sessions := session.NewManager(reg, wfs, session.WithLogger(logger))
	engine := NewEngine(reg, invoker, synth, WithEngineLogger(logger))
	adapter := integration.NewAdapter(sessions, engine, invoker, synth, integration.WithLogger(logger))
	require.NoError(t, adapter.RegisterBuiltins())

	svc, err := NewService(Dependencies{
		Sessions:  sessions,
		Workflows: wfs,
		Stages:    reg,
		Engine:    engine,
		Patterns:  patterns.New(invoker, synth, patterns.WithLogger(logger)),
		Lightning: lightning.NewController(reg, invoker, synth,
			lightning.WithClock(lightning.NewManualClock(epoch)),
			lightning.WithLogger(logger),
		),
		Adapter: adapter,
	}, append([]ServiceOption{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return &harness{svc: svc, engine: engine, sessions: sessions, stages: reg}
}

func builtinRegistry() *stage.Registry {
	return registryOf(stage.Builtins()...)
}
