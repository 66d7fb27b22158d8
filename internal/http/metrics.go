package http

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/stagehand/internal/http"

// Route groups used as a low-cardinality metric label.
const (
	groupSessions  = "sessions"
	groupLightning = "lightning"
	groupCatalogue = "catalogue"
	groupOps       = "ops"
	groupUnmatched = "unmatched"
)

// HTTPMetrics records request counts, latency, response size and in-flight
// requests for the API.
type HTTPMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	size     metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics creates HTTPMetrics on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	return newHTTPMetrics(otel.Meter(httpInstrumentationName), logger)
}

// newHTTPMetrics creates the instruments on meter. An instrument that fails
// to register is logged and left nil; recording skips it.
func newHTTPMetrics(meter metric.Meter, logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("failed to create http instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &HTTPMetrics{}
	var err error
	m.requests, err = meter.Int64Counter("stagehand.http.requests_total",
		metric.WithDescription("API requests by method, route, route group and status."),
		metric.WithUnit("{request}"),
	)
	warn("requests_total", err)

	m.latency, err = meter.Float64Histogram("stagehand.http.request_duration_seconds",
		metric.WithDescription("API request latency. Process and lightning routes dominate the upper buckets."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 600, 2700),
	)
	warn("request_duration_seconds", err)

	m.size, err = meter.Int64Histogram("stagehand.http.response_size_bytes",
		metric.WithDescription("API response body size."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(128, 512, 2048, 8192, 32768, 131072, 524288),
	)
	warn("response_size_bytes", err)

	m.inFlight, err = meter.Int64UpDownCounter("stagehand.http.active_requests",
		metric.WithDescription("API requests currently being served, by route group."),
		metric.WithUnit("{request}"),
	)
	warn("active_requests", err)

	return m
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
// It expects the status to be final when next returns.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()
			route := normalizePath(c.Path())
			group := attribute.String("group", routeGroup(route))

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1, metric.WithAttributes(group))
				defer m.inFlight.Add(ctx, -1, metric.WithAttributes(group))
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", route),
				group,
				attribute.Int("status", c.Response().Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.size != nil {
				m.size.Record(ctx, c.Response().Size, attrs)
			}
			return err
		}
	}
}

// normalizePath maps the matched route pattern to a metric label. Route
// patterns keep path parameters as placeholders (/api/v1/sessions/:id), so
// only unmatched requests need folding into one label.
func normalizePath(path string) string {
	if path == "" || path == "/*" {
		return groupUnmatched
	}
	return path
}

// routeGroup classifies a normalized route.
func routeGroup(route string) string {
	switch {
	case route == groupUnmatched:
		return groupUnmatched
	case route == "/health" || route == "/metrics":
		return groupOps
	case strings.HasPrefix(route, apiPrefix+"/sessions"):
		return groupSessions
	case route == apiPrefix+"/lightning/pathways":
		return groupCatalogue
	case strings.HasPrefix(route, apiPrefix+"/lightning"):
		return groupLightning
	case strings.HasPrefix(route, apiPrefix+"/"):
		return groupCatalogue
	default:
		return groupUnmatched
	}
}
