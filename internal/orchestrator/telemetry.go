package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/stagehand/internal/stage"
)

const instrumentationName = "github.com/fyrsmithlabs/stagehand/internal/orchestrator"

// Metrics records execution metrics.
type Metrics struct {
	stageInvocations metric.Int64Counter
	stageDuration    metric.Float64Histogram
	runs             metric.Int64Counter
	confidence       metric.Float64Histogram
	rejected         metric.Int64Counter
}

// NewMetrics creates orchestrator metrics. A nil meter uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &Metrics{}
	var err error

	if m.stageInvocations, err = meter.Int64Counter("stagehand.stage.invocations.total",
		metric.WithDescription("Stage invocations by outcome"), metric.WithUnit("{invocation}")); err != nil {
		return nil, err
	}
	if m.stageDuration, err = meter.Float64Histogram("stagehand.stage.duration",
		metric.WithDescription("Stage invocation duration"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("stagehand.process.total",
		metric.WithDescription("Processing passes by flow pattern"), metric.WithUnit("{run}")); err != nil {
		return nil, err
	}
	if m.confidence, err = meter.Float64Histogram("stagehand.synthesis.confidence",
		metric.WithDescription("Synthesis confidence per processing pass")); err != nil {
		return nil, err
	}
	if m.rejected, err = meter.Int64Counter("stagehand.process.rejected.total",
		metric.WithDescription("Requests rejected by input gates"), metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordStage(ctx context.Context, res *stage.Result) {
	if m == nil {
		return
	}
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("stage_id", res.StageID), attribute.String("outcome", outcome))
	m.stageInvocations.Add(ctx, 1, attrs)
	m.stageDuration.Record(ctx, res.Duration.Seconds(), metric.WithAttributes(attribute.String("stage_id", res.StageID)))
}

func (m *Metrics) recordRun(ctx context.Context, pattern string, confidence float64) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("flow_pattern", pattern)))
	m.confidence.Record(ctx, confidence, metric.WithAttributes(attribute.String("flow_pattern", pattern)))
}

func (m *Metrics) recordRejected(ctx context.Context) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1)
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
