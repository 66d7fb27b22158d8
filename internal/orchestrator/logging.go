package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/logging"
)

// Logger wraps zap.Logger with execution events.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a Logger. A nil logger yields a no-op Logger.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("orchestrator")}
}

// fields returns the correlation fields of ctx with sessionID attached.
// Runs outside any session pass an empty sessionID.
func (l *Logger) fields(ctx context.Context, sessionID string, extra ...zap.Field) []zap.Field {
	if sessionID != "" {
		ctx = logging.WithSessionID(ctx, sessionID)
	}
	return append(logging.ContextFields(ctx), extra...)
}

// RunStarted logs the stage order of a run. Input is logged by length only.
func (l *Logger) RunStarted(ctx context.Context, sessionID string, stages []string, input string) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug("run started", l.fields(ctx, sessionID,
		zap.Strings("stages", stages),
		logging.RedactedString("input", input),
	)...)
}

// StageSkipped logs a stage ID with no registered implementation.
func (l *Logger) StageSkipped(ctx context.Context, sessionID, stageID string) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Warn("stage not registered, skipping", l.fields(ctx, sessionID,
		zap.String("stage_id", stageID),
	)...)
}

func (l *Logger) RunFinished(ctx context.Context, sessionID string, summary ProcessingSummary) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("processing finished", l.fields(ctx, sessionID,
		zap.Int("stages_run", summary.StagesRun),
		zap.Int("successful", summary.Successful),
		zap.Float64("confidence", summary.Confidence),
		zap.String("quality", summary.Quality),
		zap.Duration("duration", summary.Duration),
	)...)
}

// InputRejected logs a request blocked by a gate.
func (l *Logger) InputRejected(ctx context.Context, sessionID string, violations []Violation) {
	if l == nil || l.logger == nil {
		return
	}
	types := make([]string, 0, len(violations))
	for _, v := range violations {
		types = append(types, string(v.Type))
	}
	l.logger.Warn("input rejected", l.fields(ctx, sessionID,
		zap.Strings("violations", types),
	)...)
}

// SecretsRedacted logs credentials stripped from caller input. Only rule
// IDs are recorded, never the matched text.
func (l *Logger) SecretsRedacted(ctx context.Context, sessionID string, count int, rules []string) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Warn("secrets redacted from input", l.fields(ctx, sessionID,
		zap.Int("count", count),
		zap.Strings("rules", rules),
	)...)
}
