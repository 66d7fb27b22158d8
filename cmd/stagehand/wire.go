package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/stagehand/internal/config"
	"github.com/fyrsmithlabs/stagehand/internal/integration"
	"github.com/fyrsmithlabs/stagehand/internal/lightning"
	"github.com/fyrsmithlabs/stagehand/internal/logging"
	"github.com/fyrsmithlabs/stagehand/internal/orchestrator"
	"github.com/fyrsmithlabs/stagehand/internal/patterns"
	"github.com/fyrsmithlabs/stagehand/internal/secrets"
	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// app holds the wired service and the resources it owns.
type app struct {
	service *orchestrator.Service
	nc      *nats.Conn
	logger  *logging.Logger
}

// Close releases infrastructure resources.
func (a *app) Close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.Warn(context.Background(), "nats drain failed", zap.Error(err))
		}
	}
}

// eventsFields describes the event sink for the startup log.
func eventsFields(cfg config.EventsConfig) []zap.Field {
	return []zap.Field{
		zap.String("url", cfg.NATSURL),
		zap.String("prefix", cfg.SubjectPrefix),
		logging.Secret("nats_token", cfg.NATSToken),
	}
}

// build wires registries, engines and the service from cfg.
func build(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	a := &app{logger: logger}
	zl := logger.Underlying()

	stages := stage.NewRegistry()
	for _, st := range stage.Builtins() {
		if err := stages.Register(st); err != nil {
			return nil, fmt.Errorf("register builtin stage: %w", err)
		}
	}

	workflows, err := workflow.NewBuiltinRegistry()
	if err != nil {
		return nil, fmt.Errorf("load builtin workflows: %w", err)
	}
	for _, path := range cfg.Workflows.Files {
		n, err := workflows.LoadFile(path)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "loaded workflow file", zap.String("path", path), zap.Int("workflows", n))
	}
	if logger.Enabled(zapcore.DebugLevel) {
		names := make([]string, 0, workflows.Len())
		for _, wf := range workflows.List() {
			names = append(names, wf.Name)
		}
		logger.Debug(ctx, "registries ready", zap.Strings("stages", stages.IDs()), zap.Strings("workflows", names))
	}

	sessionOpts := []session.Option{
		session.WithLogger(zl),
		session.WithExpiry(cfg.Session.IdleTTL.Duration(), cfg.Session.CleanupInterval.Duration()),
		session.WithDefaultStages(cfg.Session.DefaultStages),
	}
	if m, err := session.NewMetrics(nil); err != nil {
		logger.Warn(ctx, "session metrics unavailable", zap.Error(err))
	} else {
		sessionOpts = append(sessionOpts, session.WithMetrics(m))
	}
	if cfg.Events.Enabled {
		nc, err := session.DialNATS(cfg.Events)
		if err != nil {
			return nil, err
		}
		a.nc = nc
		sessionOpts = append(sessionOpts, session.WithPublisher(session.NewNATSPublisher(nc, cfg.Events.SubjectPrefix)))
		logger.Info(ctx, "publishing session events", eventsFields(cfg.Events)...)
	}
	sessions := session.NewManager(stages, workflows, sessionOpts...)

	invoker := stage.NewInvoker(
		stage.WithTimeout(cfg.Execution.StageTimeout.Duration()),
		stage.WithLogger(zl),
	)
	synth := synthesis.New(
		synthesis.WithThreshold(cfg.Synthesis.SimilarityThreshold),
		synthesis.WithCaps(cfg.Synthesis.MaxInsights, cfg.Synthesis.MaxActionable, cfg.Synthesis.MaxReflective),
	)

	metrics, err := orchestrator.NewMetrics(nil)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("orchestrator metrics: %w", err)
	}
	engine := orchestrator.NewEngine(stages, invoker, synth,
		orchestrator.WithEngineLogger(zl),
		orchestrator.WithEngineMetrics(metrics),
	)

	adapter := integration.NewAdapter(sessions, engine, invoker, synth,
		integration.WithRateLimit(cfg.Adapter.RatePerMinute, cfg.Adapter.Burst),
		integration.WithLogger(zl),
	)
	if err := adapter.RegisterBuiltins(); err != nil {
		a.Close()
		return nil, fmt.Errorf("register builtin modules: %w", err)
	}

	controller := lightning.NewController(stages, invoker, synth,
		lightning.WithMaxDuration(cfg.Lightning.MaxDuration.Duration()),
		lightning.WithBreakthroughThreshold(cfg.Lightning.BreakthroughThreshold),
		lightning.WithLogger(zl),
		lightning.WithMetrics(lightning.NewMetrics()),
	)

	scrubber, err := newScrubber(cfg.Secrets)
	if err != nil {
		a.Close()
		return nil, err
	}

	svc, err := orchestrator.NewService(orchestrator.Dependencies{
		Sessions:  sessions,
		Workflows: workflows,
		Stages:    stages,
		Engine:    engine,
		Patterns:  patterns.New(invoker, synth, patterns.WithLogger(zl)),
		Lightning: controller,
		Adapter:   adapter,
	},
		orchestrator.WithLogger(zl),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithScrubber(scrubber),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = svc
	return a, nil
}

func newScrubber(cfg config.SecretsConfig) (*secrets.Scrubber, error) {
	switch {
	case cfg.Disabled:
		return nil, nil
	case cfg.Gitleaks:
		sc, err := secrets.WithGitleaks(secrets.DefaultRules()...)
		if err != nil {
			return nil, fmt.Errorf("secret scrubber: %w", err)
		}
		return sc, nil
	default:
		return secrets.Default(), nil
	}
}
