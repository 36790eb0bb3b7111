package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the evaluation module.
type Metrics struct {
	// Verdict outcomes by aggregate outcome and stage
	VerdictOutcome *prometheus.CounterVec

	// Overrides applied to hard blocks
	OverridesApplied prometheus.Counter

	// Full evaluation latency including ruleset resolution
	EvaluateLatency prometheus.Histogram

	// Impact preview latency (bulk evaluation over a population sample)
	ImpactLatency prometheus.Histogram
}

// New creates a new Metrics instance with all evaluation module metrics registered.
func New() *Metrics {
	return &Metrics{
		VerdictOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docgate_evaluation_verdicts_total",
			Help: "Total evaluation verdicts by aggregate outcome and stage",
		}, []string{"outcome", "stage"}),

		OverridesApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docgate_evaluation_overrides_total",
			Help: "Total authorized overrides applied to hard-block outcomes",
		}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docgate_evaluation_evaluate_duration_seconds",
			Help:    "Duration of a single entity evaluation including ruleset resolution",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		ImpactLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docgate_evaluation_impact_duration_seconds",
			Help:    "Duration of an impact preview over a population sample",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementVerdict records an aggregate verdict outcome.
func (m *Metrics) IncrementVerdict(outcome, stage string) {
	if m != nil {
		m.VerdictOutcome.WithLabelValues(outcome, stage).Inc()
	}
}

// IncrementOverride records an applied override.
func (m *Metrics) IncrementOverride() {
	if m != nil {
		m.OverridesApplied.Inc()
	}
}

// ObserveEvaluateLatency records the duration of one evaluation.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// ObserveImpactLatency records the duration of one impact preview.
func (m *Metrics) ObserveImpactLatency(d time.Duration) {
	if m != nil {
		m.ImpactLatency.Observe(d.Seconds())
	}
}
