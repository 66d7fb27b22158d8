package lightning

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for lightning runs.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	ConsentRequired    prometheus.Counter
	StepsTotal         *prometheus.CounterVec
	BreakthroughsTotal *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	CompletionRatio    prometheus.Histogram
}

// NewMetrics creates and registers lightning metrics once per process.
//
// Metrics:
//   - lightning_runs_total{pathway,intensity,status}
//   - lightning_consent_required_total
//   - lightning_steps_total{pathway,outcome}
//   - lightning_breakthroughs_total{pathway}
//   - lightning_run_duration_seconds{pathway}
//   - lightning_completion_ratio
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lightning_runs_total",
					Help: "Total number of lightning runs by terminal status",
				},
				[]string{"pathway", "intensity", "status"},
			),
			ConsentRequired: promauto.NewCounter(prometheus.CounterOpts{
				Name: "lightning_consent_required_total",
				Help: "Requests turned away for missing consent",
			}),
			StepsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lightning_steps_total",
					Help: "Lightning steps invoked",
				},
				[]string{"pathway", "outcome"}, // "success", "soft_failure", "error"
			),
			BreakthroughsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lightning_breakthroughs_total",
					Help: "Steps at or above the breakthrough threshold",
				},
				[]string{"pathway"},
			),
			RunDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "lightning_run_duration_seconds",
					Help:    "Wall duration of lightning runs",
					Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 2700},
				},
				[]string{"pathway"},
			),
			CompletionRatio: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "lightning_completion_ratio",
				Help:    "Share of pathway steps completed per run",
				Buckets: []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1},
			}),
		}
	})
	return globalMetrics
}
