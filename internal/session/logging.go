package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/logging"
)

// Logger wraps zap.Logger with session lifecycle events.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a Logger. A nil logger yields a no-op Logger.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("session")}
}

func (l *Logger) fields(ctx context.Context, sessionID string, extra ...zap.Field) []zap.Field {
	fields := logging.ContextFields(logging.WithSessionID(ctx, sessionID))
	return append(fields, extra...)
}

// SessionCreated logs a new session.
func (l *Logger) SessionCreated(ctx context.Context, s *Session) {
	if l == nil || l.logger == nil {
		return
	}
	fields := l.fields(ctx, s.ID,
		zap.String("workflow", s.WorkflowName),
		zap.String("flow_pattern", string(s.FlowPattern)),
		zap.Strings("stages", s.Stages),
	)
	// Owner IDs outside the log-safe alphabet never reach the context.
	if logging.OwnerIDFromContext(ctx) == "" {
		fields = append(fields, zap.String("owner_id", s.OwnerID))
	}
	l.logger.Info("session created", fields...)
}

// StageUnresolved logs a stage ID that is not registered.
func (l *Logger) StageUnresolved(ctx context.Context, sessionID, stageID string) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Warn("stage not registered, skipping", l.fields(ctx, sessionID, zap.String("stage_id", stageID))...)
}

// ExplicitStagesOverride logs that explicit stages replaced a workflow.
func (l *Logger) ExplicitStagesOverride(ctx context.Context, workflowName string, stages []string) {
	if l == nil || l.logger == nil {
		return
	}
	fields := append(logging.ContextFields(ctx),
		zap.String("workflow", workflowName),
		zap.Strings("explicit_stages", stages),
	)
	l.logger.Warn("explicit stages override workflow", fields...)
}

// SessionCompleted logs session completion.
func (l *Logger) SessionCompleted(ctx context.Context, sum *FinalSummary) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("session completed", l.fields(ctx, sum.SessionID,
		zap.Int("processing_count", sum.ProcessingCount),
		zap.Int("event_count", sum.EventCount),
		zap.Duration("duration", sum.Duration),
	)...)
}

// SessionExpired logs idle eviction.
func (l *Logger) SessionExpired(sessionID string, completed bool) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("session expired", l.fields(context.Background(), sessionID, zap.Bool("completed", completed))...)
}

// PublishFailed logs an event that could not be published.
func (l *Logger) PublishFailed(ctx context.Context, sessionID string, t EventType, err error) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Warn("event publish failed", l.fields(ctx, sessionID,
		zap.String("event_type", string(t)),
		zap.Error(err),
	)...)
}
