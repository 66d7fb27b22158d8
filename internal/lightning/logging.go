package lightning

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/logging"
)

// Logger wraps zap.Logger with lightning run events.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a Logger. A nil logger yields a no-op Logger.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("lightning")}
}

func (l *Logger) RunStarted(ctx context.Context, run *Run) {
	if l == nil || l.logger == nil {
		return
	}
	fields := append(logging.ContextFields(ctx),
		zap.String("run_id", run.ID),
		zap.String("pathway", run.Pathway),
		zap.String("intensity", string(run.Intensity)),
		zap.Int("steps", run.TotalSteps),
	)
	if logging.OwnerIDFromContext(ctx) == "" {
		fields = append(fields, zap.String("owner_id", run.OwnerID))
	}
	l.logger.Info("lightning run started", fields...)
}

func (l *Logger) StageSkipped(ctx context.Context, runID, stageID string) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Warn("stage not registered, skipping", append(logging.ContextFields(ctx),
		zap.String("run_id", runID),
		zap.String("stage_id", stageID),
	)...)
}

func (l *Logger) Breakthrough(ctx context.Context, runID, stageID string, confidence float64) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("breakthrough", append(logging.ContextFields(ctx),
		zap.String("run_id", runID),
		zap.String("stage_id", stageID),
		zap.Float64("confidence", confidence),
	)...)
}

// Grounded logs an emergency grounding.
func (l *Logger) Grounded(ctx context.Context, runID, reason string, completed int) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Warn("emergency grounding applied", append(logging.ContextFields(ctx),
		zap.String("run_id", runID),
		zap.String("reason", reason),
		zap.Int("stages_completed", completed),
	)...)
}

func (l *Logger) RunFinished(ctx context.Context, run *Run) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("lightning run finished", append(logging.ContextFields(ctx),
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("stages_completed", run.StagesCompleted),
		zap.Int("breakthroughs", len(run.Breakthroughs)),
		zap.String("transformation_level", string(run.TransformationLevel)),
		zap.Duration("elapsed", run.Elapsed),
	)...)
}
