package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fyrsmithlabs/stagehand/internal/session"

// Metrics records session lifecycle counters.
type Metrics struct {
	created    metric.Int64Counter
	completed  metric.Int64Counter
	expired    metric.Int64Counter
	unresolved metric.Int64Counter
	events     metric.Int64Counter
	active     metric.Int64UpDownCounter
}

// NewMetrics creates session metrics. A nil meter uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &Metrics{}
	var err error

	if m.created, err = meter.Int64Counter("stagehand.session.created.total",
		metric.WithDescription("Sessions created"), metric.WithUnit("{session}")); err != nil {
		return nil, err
	}
	if m.completed, err = meter.Int64Counter("stagehand.session.completed.total",
		metric.WithDescription("Sessions completed"), metric.WithUnit("{session}")); err != nil {
		return nil, err
	}
	if m.expired, err = meter.Int64Counter("stagehand.session.expired.total",
		metric.WithDescription("Sessions evicted after idling"), metric.WithUnit("{session}")); err != nil {
		return nil, err
	}
	if m.unresolved, err = meter.Int64Counter("stagehand.session.stage_unresolved.total",
		metric.WithDescription("Stage IDs dropped at session creation"), metric.WithUnit("{stage}")); err != nil {
		return nil, err
	}
	if m.events, err = meter.Int64Counter("stagehand.session.events.total",
		metric.WithDescription("History events appended"), metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if m.active, err = meter.Int64UpDownCounter("stagehand.session.active",
		metric.WithDescription("Open sessions held in memory"), metric.WithUnit("{session}")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordCreated(ctx context.Context, pattern string, unresolved int) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("flow_pattern", pattern)))
	m.active.Add(ctx, 1)
	if unresolved > 0 {
		m.unresolved.Add(ctx, int64(unresolved))
	}
}

func (m *Metrics) recordCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.completed.Add(ctx, 1)
	m.active.Add(ctx, -1)
}

func (m *Metrics) recordExpired(ctx context.Context, completed bool) {
	if m == nil {
		return
	}
	m.expired.Add(ctx, 1)
	if !completed {
		m.active.Add(ctx, -1)
	}
}

func (m *Metrics) recordEvent(ctx context.Context, t EventType) {
	if m == nil {
		return
	}
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(t))))
}
