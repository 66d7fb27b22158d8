// Package integration lets an external processing module run inside a
// session: the module's result is refined by a mapped subset of stages and
// merged into one synthesis recorded on the session.
package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
)

// Rate limiter defaults: 50 module calls per minute, bursts of 5.
const (
	DefaultRatePerMinute = 50
	DefaultBurst         = 5
)

// Context keys handed to the mapped stages.
const (
	ContextExternalModule = "external_module"
	ContextExternalResult = "external_result"
)

// Runner executes stages in order with context accumulation.
type Runner interface {
	RunStages(ctx context.Context, ids []string, input string, base map[string]any) []stage.Result
}

// CombinedResult is the outcome of one adapter call.
type CombinedResult struct {
	Module       string               `json:"module"`
	ModuleResult stage.Result         `json:"module_result"`
	MappedStages []string             `json:"mapped_stages"`
	StageResults []stage.Result       `json:"stage_results"`
	Synthesis    *synthesis.Synthesis `json:"synthesis"`
}

type module struct {
	stage  stage.Stage
	stages []string
}

// Adapter runs external modules against sessions.
type Adapter struct {
	sessions *session.Manager
	runner   Runner
	invoker  *stage.Invoker
	synth    *synthesis.Engine
	limiter  *rate.Limiter
	logger   *zap.Logger

	mu      sync.RWMutex
	modules map[string]module
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRateLimit limits module calls to perMinute with the given burst.
func WithRateLimit(perMinute, burst int) Option {
	return func(a *Adapter) {
		if perMinute > 0 && burst > 0 {
			a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
		}
	}
}

// WithLogger sets the zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l.Named("integration")
		}
	}
}

// NewAdapter creates an Adapter with no modules registered.
func NewAdapter(sessions *session.Manager, runner Runner, invoker *stage.Invoker, synth *synthesis.Engine, opts ...Option) *Adapter {
	a := &Adapter{
		sessions: sessions,
		runner:   runner,
		invoker:  invoker,
		synth:    synth,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/DefaultRatePerMinute), DefaultBurst),
		logger:   zap.NewNop(),
		modules:  make(map[string]module),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds an external module refined by stages.
func (a *Adapter) Register(m stage.Stage, stages []string) error {
	if m == nil {
		return stage.ErrNilStage
	}
	if len(stages) == 0 {
		return fmt.Errorf("%w: %s", ErrUnmappedModule, m.ID())
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.modules[m.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.ID())
	}
	a.modules[m.ID()] = module{stage: m, stages: append([]string(nil), stages...)}
	return nil
}

// RegisterBuiltins registers BuiltinModules with DefaultMappings.
func (a *Adapter) RegisterBuiltins() error {
	mappings := DefaultMappings()
	for _, m := range BuiltinModules() {
		if err := a.Register(m, mappings[m.ID()]); err != nil {
			return err
		}
	}
	return nil
}

// Modules returns the mapping of every registered module.
func (a *Adapter) Modules() map[string][]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string][]string, len(a.modules))
	for name, m := range a.modules {
		out[name] = append([]string(nil), m.stages...)
	}
	return out
}

// Process runs the named module, then its mapped stages, under the
// session lock. A failing module is recorded like any failed stage.
func (a *Adapter) Process(ctx context.Context, moduleName, sessionID, input string, base map[string]any) (*CombinedResult, error) {
	a.mu.RLock()
	m, ok := a.modules[moduleName]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, moduleName)
	}

	var out *CombinedResult
	err := a.sessions.WithSession(ctx, sessionID, func(s *session.Session) error {
		if err := s.EnsureOpen(); err != nil {
			return err
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}

		mctx := stage.Clone(base)
		mctx[stage.ContextPreviousResults] = []stage.Result{}
		mctx[stage.ContextPosition] = 1
		mctx[stage.ContextTotalStages] = len(m.stages) + 1
		modRes, err := a.invoker.Invoke(ctx, m.stage, input, mctx)
		if err != nil {
			a.logger.Warn("external module failed",
				zap.String("module", moduleName),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}

		sctx := stage.Clone(base)
		sctx[ContextExternalModule] = moduleName
		sctx[ContextExternalResult] = *modRes
		stageResults := a.runner.RunStages(ctx, m.stages, input, sctx)

		all := make([]stage.Result, 0, len(stageResults)+1)
		all = append(all, *modRes)
		all = append(all, stageResults...)
		syn := a.synth.Synthesize(all)

		s.SetSynthesis(syn)
		s.Record(session.EventAdapterProcessed, map[string]any{
			"module":     moduleName,
			"stages":     m.stages,
			"successful": syn.SuccessfulStages,
			"total":      syn.TotalStages,
			"confidence": syn.Confidence,
		})
		out = &CombinedResult{
			Module:       moduleName,
			ModuleResult: *modRes,
			MappedStages: append([]string(nil), m.stages...),
			StageResults: stageResults,
			Synthesis:    syn,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("adapter processed",
		zap.String("module", moduleName),
		zap.String("session_id", sessionID),
		zap.Int("successful", out.Synthesis.SuccessfulStages),
	)
	return out, nil
}
