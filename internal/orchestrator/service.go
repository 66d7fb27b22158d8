package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/integration"
	"github.com/fyrsmithlabs/stagehand/internal/lightning"
	"github.com/fyrsmithlabs/stagehand/internal/logging"
	"github.com/fyrsmithlabs/stagehand/internal/patterns"
	"github.com/fyrsmithlabs/stagehand/internal/secrets"
	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// Dependencies are the components a Service coordinates. Adapter is
// optional.
type Dependencies struct {
	Sessions  *session.Manager
	Workflows *workflow.Registry
	Stages    *stage.Registry
	Engine    *Engine
	Patterns  *patterns.Engine
	Lightning *lightning.Controller
	Adapter   *integration.Adapter
}

// Service is the boundary contract over sessions, execution, lightning
// runs and external modules.
type Service struct {
	sessions  *session.Manager
	workflows *workflow.Registry
	stages    *stage.Registry
	engine    *Engine
	patterns  *patterns.Engine
	lightning *lightning.Controller
	adapter   *integration.Adapter
	gates     []Gate
	scrubber  *secrets.Scrubber
	logger    *Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithGates replaces DefaultGates.
func WithGates(gates ...Gate) ServiceOption {
	return func(s *Service) { s.gates = gates }
}

// WithScrubber replaces the default secret scrubber. nil disables
// redaction.
func WithScrubber(sc *secrets.Scrubber) ServiceOption {
	return func(s *Service) { s.scrubber = sc }
}

// WithLogger sets the zap logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = NewLogger(l) }
}

// WithMetrics sets service metrics.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service.
func NewService(deps Dependencies, opts ...ServiceOption) (*Service, error) {
	switch {
	case deps.Sessions == nil:
		return nil, fmt.Errorf("%w: sessions", ErrMissingDependency)
	case deps.Workflows == nil:
		return nil, fmt.Errorf("%w: workflows", ErrMissingDependency)
	case deps.Stages == nil:
		return nil, fmt.Errorf("%w: stages", ErrMissingDependency)
	case deps.Engine == nil:
		return nil, fmt.Errorf("%w: engine", ErrMissingDependency)
	case deps.Patterns == nil:
		return nil, fmt.Errorf("%w: patterns", ErrMissingDependency)
	case deps.Lightning == nil:
		return nil, fmt.Errorf("%w: lightning", ErrMissingDependency)
	}
	s := &Service{
		sessions:  deps.Sessions,
		workflows: deps.Workflows,
		stages:    deps.Stages,
		engine:    deps.Engine,
		patterns:  deps.Patterns,
		lightning: deps.Lightning,
		adapter:   deps.Adapter,
		gates:     DefaultGates(),
		scrubber:  secrets.Default(),
		logger:    NewLogger(nil),
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateSession creates a session from a workflow, explicit stages or the
// default stage set.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error) {
	sess, err := s.sessions.Create(ctx, session.CreateRequest{
		OwnerID:        req.OwnerID,
		Intent:         req.Intent,
		WorkflowName:   req.WorkflowName,
		ExplicitStages: req.ExplicitStages,
		FlowPattern:    req.FlowPattern,
	})
	if err != nil {
		return nil, err
	}
	return &CreateSessionResponse{
		SessionID:      sess.ID,
		ResolvedStages: sess.Stages,
		FlowPattern:    sess.FlowPattern,
		WorkflowName:   sess.WorkflowName,
		Intent:         sess.Intent,
	}, nil
}

// GetSession returns a snapshot of a session.
func (s *Service) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Get(ctx, id)
}

// Process runs the session's stages over input. Balancing sessions are
// routed to the pattern engine; lightning sessions are rejected with
// ErrLightningFlow.
func (s *Service) Process(ctx context.Context, sessionID, input string, base map[string]any) (*ProcessResponse, error) {
	ctx = logging.WithSessionID(ctx, sessionID)
	ctx, span := s.tracer.Start(ctx, "orchestrator.Process", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	violations, err := checkGates(ctx, s.gates, GateInput{SessionID: sessionID, Input: input, Context: base})
	if err != nil {
		return nil, recordSpanError(span, err)
	}
	if hasBlockingViolation(violations) {
		s.logger.InputRejected(ctx, sessionID, violations)
		s.metrics.recordRejected(ctx)
		return nil, recordSpanError(span, fmt.Errorf("%w: %s", ErrInputRejected, describeViolations(violations)))
	}

	input, redacted := s.redact(ctx, sessionID, input)
	if redacted != nil {
		violations = append(violations, *redacted)
	}

	start := time.Now()
	var resp *ProcessResponse
	err = s.sessions.WithSession(ctx, sessionID, func(sess *session.Session) error {
		if err := sess.EnsureOpen(); err != nil {
			return err
		}
		if sess.FlowPattern == workflow.Balancing {
			r, err := s.processPattern(ctx, sess, input, base)
			resp = r
			return err
		}
		results, syn, err := s.engine.RunWorkflow(ctx, sess, input, base)
		if err != nil {
			return err
		}
		resp = &ProcessResponse{
			SessionID:   sess.ID,
			FlowPattern: sess.FlowPattern,
			Results:     results,
			Synthesis:   syn,
			Narrative:   syn.Narrative,
		}
		return nil
	})
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	resp.Success = !resp.Synthesis.Failed()
	resp.Summary = summarize(resp.Results, resp.Synthesis, time.Since(start))
	resp.Violations = violations
	span.SetAttributes(attribute.Bool("success", resp.Success))
	return resp, nil
}

func (s *Service) processPattern(ctx context.Context, sess *session.Session, input string, base map[string]any) (*ProcessResponse, error) {
	resolved, missing := s.stages.Resolve(sess.Stages)
	for _, id := range missing {
		s.logger.StageSkipped(ctx, sess.ID, id)
	}
	pr, err := s.patterns.Route(ctx, resolved, input, base)
	if err != nil {
		return nil, err
	}

	sess.SetSynthesis(pr.Synthesis)
	payload := map[string]any{
		"pattern":    string(pr.Pattern),
		"successful": pr.Synthesis.SuccessfulStages,
		"total":      pr.Synthesis.TotalStages,
		"confidence": pr.Synthesis.Confidence,
		"quality":    string(pr.Synthesis.Quality),
	}
	if pr.Balance != nil {
		payload["balance_ratio"] = pr.Balance.Ratio
		payload["balance_rating"] = pr.Balance.Rating
	}
	if pr.Pattern == patterns.KindPillar {
		payload["progression"] = pr.Progression
	}
	sess.Record(session.EventPatternCompleted, payload)
	s.metrics.recordRun(ctx, string(workflow.Balancing), pr.Synthesis.Confidence)

	return &ProcessResponse{
		SessionID:   sess.ID,
		FlowPattern: sess.FlowPattern,
		Pattern:     pr.Pattern,
		Results:     pr.Results,
		Synthesis:   pr.Synthesis,
		Balance:     pr.Balance,
		Progression: pr.Progression,
		Narrative:   pr.Narrative,
	}, nil
}

// CompleteResponse is returned by CompleteSession.
type CompleteResponse struct {
	Summary        *session.FinalSummary `json:"summary"`
	FinalSynthesis *synthesis.Synthesis  `json:"final_synthesis,omitempty"`
}

// CompleteSession closes a session. Repeated calls return the same summary.
func (s *Service) CompleteSession(ctx context.Context, id string) (*CompleteResponse, error) {
	ctx = logging.WithSessionID(ctx, id)
	summary, err := s.sessions.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CompleteResponse{Summary: summary, FinalSynthesis: summary.FinalSynthesis}, nil
}

// InitiateLightning starts a lightning run.
func (s *Service) InitiateLightning(ctx context.Context, req lightning.Request) (*lightning.Response, error) {
	req.Input, _ = s.redact(ctx, "", req.Input)
	return s.lightning.Initiate(ctx, req)
}

// GetLightningRun returns a finished lightning run.
func (s *Service) GetLightningRun(id string) (*lightning.Run, error) {
	return s.lightning.Get(id)
}

// ProcessViaAdapter runs an external module and its mapped stages on a
// session.
func (s *Service) ProcessViaAdapter(ctx context.Context, module, sessionID, input string, base map[string]any) (*integration.CombinedResult, error) {
	if s.adapter == nil {
		return nil, ErrAdapterUnavailable
	}
	ctx = logging.WithSessionID(ctx, sessionID)
	input, _ = s.redact(ctx, sessionID, input)
	return s.adapter.Process(ctx, module, sessionID, input, base)
}

// ListModules returns the registered external modules and their stages.
func (s *Service) ListModules() map[string][]string {
	if s.adapter == nil {
		return map[string][]string{}
	}
	return s.adapter.Modules()
}

// ListWorkflows returns the workflow catalogue.
func (s *Service) ListWorkflows() []workflow.Workflow {
	return s.workflows.List()
}

// ListLightningPathways returns the lightning pathways.
func (s *Service) ListLightningPathways() []lightning.PathwayInfo {
	return lightning.Pathways()
}

// HealthCheck reports service health. Any stage reporting a status other
// than healthy degrades the service.
func (s *Service) HealthCheck(ctx context.Context) HealthStatus {
	stages := s.stages.HealthCheck(ctx)
	status := HealthHealthy
	for _, report := range stages {
		if st, _ := report["status"].(string); st != HealthHealthy {
			status = HealthDegraded
		}
	}
	return HealthStatus{
		Status:           status,
		ActiveSessions:   s.sessions.ActiveSessions(),
		RegisteredStages: s.stages.Len(),
		Workflows:        s.workflows.Len(),
		Stages:           stages,
	}
}

// redact strips credentials from input before any stage, history entry or
// published event can see it.
func (s *Service) redact(ctx context.Context, sessionID, input string) (string, *Violation) {
	if s.scrubber == nil {
		return input, nil
	}
	res := s.scrubber.Scrub(input)
	if !res.HasFindings() {
		return input, nil
	}
	rules := res.RuleIDs()
	s.logger.SecretsRedacted(ctx, sessionID, len(res.Findings), rules)
	return res.Scrubbed, &Violation{
		Type:        ViolationSecret,
		Gate:        "secrets",
		Description: fmt.Sprintf("redacted %d secret(s): %s", len(res.Findings), strings.Join(rules, ", ")),
		Severity:    SeverityWarning,
		DetectedAt:  time.Now(),
	}
}
