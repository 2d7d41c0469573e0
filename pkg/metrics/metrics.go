// Package metrics exposes Prometheus collectors fed by the engine lifecycle hooks.
package metrics

import (
	"context"

	"github.com/aretw0/desops/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector groups the desops metrics.
type Collector struct {
	Expanded *prometheus.CounterVec
	Verdicts *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	States   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Expanded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desops_expanded_states_total",
				Help: "Total number of states expanded by explorations",
			},
			[]string{"analysis"},
		),
		Verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desops_verdicts_total",
				Help: "Total number of finished analyses by outcome",
			},
			[]string{"analysis", "verdict"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "desops_analysis_errors_total",
				Help: "Total number of analyses that ended in an error",
			},
			[]string{"analysis"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "desops_analysis_duration_seconds",
				Help:    "Duration of analyses",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"analysis"},
		),
		States: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "desops_result_states",
				Help:    "Number of states in analysis results",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"analysis"},
		),
	}
	if reg != nil {
		reg.MustRegister(c.Expanded, c.Verdicts, c.Errors, c.Duration, c.States)
	}
	return c
}

// Hooks returns lifecycle hooks recording into c.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnExpand: func(_ context.Context, e *domain.ExpandEvent) {
			c.Expanded.WithLabelValues(string(e.Analysis)).Inc()
		},
		OnVerdict: func(_ context.Context, e *domain.VerdictEvent) {
			analysis := string(e.Analysis)
			c.Verdicts.WithLabelValues(analysis, e.Verdict).Inc()
			c.Duration.WithLabelValues(analysis).Observe(e.Duration.Seconds())
			if e.Err != nil {
				c.Errors.WithLabelValues(analysis).Inc()
				return
			}
			c.States.WithLabelValues(analysis).Observe(float64(e.States))
		},
	}
}
