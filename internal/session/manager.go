package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/logging"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// Defaults used when options are not supplied.
const (
	DefaultIdleTTL         = 24 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// DefaultStages is the minimal stage set used when a request names neither
// a workflow nor explicit stages.
var DefaultStages = []string{stage.Keter, stage.Tiferet, stage.Malchut}

// Manager owns session lifecycle.
type Manager struct {
	stages        *stage.Registry
	workflows     *workflow.Registry
	store         Store
	publisher     Publisher
	logger        *Logger
	metrics       *Metrics
	tracer        trace.Tracer
	defaultStages []string
	idleTTL       time.Duration
	cleanup       time.Duration
	now           func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore injects a session store. Without it a CacheStore is created.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithExpiry configures the default CacheStore.
func WithExpiry(idleTTL, cleanupInterval time.Duration) Option {
	return func(m *Manager) {
		if idleTTL > 0 {
			m.idleTTL = idleTTL
		}
		if cleanupInterval > 0 {
			m.cleanup = cleanupInterval
		}
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithLogger sets the zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = NewLogger(l) }
}

// WithMetrics sets session metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithDefaultStages overrides DefaultStages.
func WithDefaultStages(ids []string) Option {
	return func(m *Manager) {
		if len(ids) > 0 {
			m.defaultStages = append([]string(nil), ids...)
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager resolving against stages and workflows.
func NewManager(stages *stage.Registry, workflows *workflow.Registry, opts ...Option) *Manager {
	m := &Manager{
		stages:        stages,
		workflows:     workflows,
		publisher:     NopPublisher{},
		logger:        NewLogger(nil),
		tracer:        otel.Tracer(instrumentationName),
		defaultStages: append([]string(nil), DefaultStages...),
		idleTTL:       DefaultIdleTTL,
		cleanup:       DefaultCleanupInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewCacheStore(m.idleTTL, m.cleanup, m.onEvict)
	}
	return m
}

func (m *Manager) onEvict(s *Session) {
	completed := s.done.Load()
	m.logger.SessionExpired(s.ID, completed)
	m.metrics.recordExpired(context.Background(), completed)
}

// Create resolves the request into a stage set and stores a new session.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	ctx, span := m.tracer.Start(ctx, "session.Create")
	defer span.End()

	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, recordSpanError(span, ErrMissingOwner)
	}
	ctx = logging.WithOwnerID(ctx, req.OwnerID)

	pattern := req.FlowPattern
	if pattern == "" {
		pattern = workflow.Descending
	}
	if !pattern.Valid() {
		return nil, recordSpanError(span, fmt.Errorf("%w: %q", workflow.ErrInvalidFlowPattern, pattern))
	}

	var ids []string
	workflowName := ""
	intent := req.Intent
	switch {
	case len(req.ExplicitStages) > 0:
		ids = req.ExplicitStages
		if req.WorkflowName != "" {
			m.logger.ExplicitStagesOverride(ctx, req.WorkflowName, req.ExplicitStages)
		}
	case req.WorkflowName != "":
		wf, err := m.workflows.Get(req.WorkflowName)
		if err != nil {
			return nil, recordSpanError(span, err)
		}
		ids = wf.Stages
		pattern = wf.FlowPattern
		workflowName = wf.Name
		if intent == "" {
			intent = wf.Intent
		}
	default:
		ids = m.defaultStages
	}

	resolved, missing := m.stages.Resolve(ids)
	if len(resolved) == 0 {
		return nil, recordSpanError(span, fmt.Errorf("%w: requested %v", ErrEmptyStageSet, ids))
	}
	stageIDs := make([]string, 0, len(resolved))
	for _, s := range resolved {
		stageIDs = append(stageIDs, s.ID())
	}

	now := m.now()
	s := &Session{
		ID:           uuid.NewString(),
		OwnerID:      req.OwnerID,
		Intent:       intent,
		WorkflowName: workflowName,
		Stages:       stageIDs,
		FlowPattern:  pattern,
		CreatedAt:    now,
		UpdatedAt:    now,
		lock:         &sync.Mutex{},
		done:         &atomic.Bool{},
		view:         &atomic.Pointer[Session]{},
		now:          m.now,
	}
	ctx = logging.WithSessionID(ctx, s.ID)
	span.SetAttributes(
		attribute.String("session.id", s.ID),
		attribute.String("flow_pattern", string(pattern)),
		attribute.Int("stages", len(stageIDs)),
	)

	s.Record(EventSessionCreated, map[string]any{
		"workflow":     workflowName,
		"stages":       stageIDs,
		"flow_pattern": string(pattern),
	})
	for _, id := range missing {
		m.logger.StageUnresolved(ctx, s.ID, id)
		s.Record(EventStageUnresolved, map[string]any{"stage_id": id})
	}

	s.lock.Lock()
	m.store.Put(s)
	m.flush(ctx, s, 0)
	s.publish()
	snap := s.snapshot()
	s.lock.Unlock()

	m.metrics.recordCreated(ctx, string(pattern), len(missing))
	m.logger.SessionCreated(ctx, snap)
	return snap, nil
}

// Get returns a snapshot of the session as of its last completed
// mutation. It does not wait for in-flight processing and does not append
// history.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	s, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	v := s.view.Load()
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return v.snapshot(), nil
}

// WithSession runs fn with exclusive access to the live session. Events
// recorded by fn are published after it returns, whether or not it failed,
// and the session's idle timer is refreshed.
func (m *Manager) WithSession(ctx context.Context, id string, fn func(*Session) error) error {
	s, ok := m.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	mark := len(s.History)
	err := fn(s)
	m.flush(ctx, s, mark)
	s.publish()
	m.store.Put(s)
	return err
}

// Complete marks the session completed and returns its final summary.
// Repeated calls return the first summary without recording anything.
func (m *Manager) Complete(ctx context.Context, id string) (*FinalSummary, error) {
	ctx, span := m.tracer.Start(ctx, "session.Complete", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	var summary *FinalSummary
	first := false
	err := m.WithSession(ctx, id, func(s *Session) error {
		if s.Completed {
			summary = s.Summary
			return nil
		}
		first = true
		completedAt := s.clock()
		s.Completed = true
		s.done.Store(true)
		s.Record(EventSessionCompleted, map[string]any{"processing_count": s.ProcessingCount()})
		s.Summary = &FinalSummary{
			SessionID:       s.ID,
			OwnerID:         s.OwnerID,
			Intent:          s.Intent,
			WorkflowName:    s.WorkflowName,
			Stages:          append([]string(nil), s.Stages...),
			ProcessingCount: s.ProcessingCount(),
			EventCount:      len(s.History),
			CreatedAt:       s.CreatedAt,
			CompletedAt:     completedAt,
			Duration:        completedAt.Sub(s.CreatedAt),
			FinalSynthesis:  s.LatestSynthesis,
		}
		summary = s.Summary
		return nil
	})
	if err != nil {
		return nil, recordSpanError(span, err)
	}
	if first {
		m.metrics.recordCompleted(ctx)
		m.logger.SessionCompleted(ctx, summary)
	}
	return summary, nil
}

// ActiveSessions counts sessions in memory that have not completed. It
// does not wait on session locks.
func (m *Manager) ActiveSessions() int {
	n := 0
	m.store.Each(func(s *Session) bool {
		if !s.done.Load() {
			n++
		}
		return true
	})
	return n
}

// flush publishes events recorded since mark. Publish failures are logged.
func (m *Manager) flush(ctx context.Context, s *Session, mark int) {
	for _, ev := range s.History[mark:] {
		m.metrics.recordEvent(ctx, ev.Type)
		if err := m.publisher.Publish(ctx, s, ev); err != nil {
			m.logger.PublishFailed(ctx, s.ID, ev.Type, err)
		}
	}
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// IsNotFound reports whether err is a session or workflow lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, workflow.ErrWorkflowNotFound)
}
