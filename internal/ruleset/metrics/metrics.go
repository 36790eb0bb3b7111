package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ruleset module.
type Metrics struct {
	// Drafts created, by entity type
	DraftsCreated *prometheus.CounterVec

	// Draft validation failures
	ValidationFailures prometheus.Counter

	// Lifecycle transitions by resulting status ("active", "locked")
	Transitions *prometheus.CounterVec

	// Active-ruleset cache hits and misses
	CacheLookups *prometheus.CounterVec
}

// New creates a new Metrics instance with all ruleset module metrics registered.
func New() *Metrics {
	return &Metrics{
		DraftsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docgate_ruleset_drafts_created_total",
			Help: "Total ruleset drafts created, by entity type",
		}, []string{"entity_type"}),

		ValidationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docgate_ruleset_validation_failures_total",
			Help: "Total draft submissions rejected by rule validation",
		}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docgate_ruleset_transitions_total",
			Help: "Total lifecycle transitions by resulting status",
		}, []string{"status"}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docgate_ruleset_cache_lookups_total",
			Help: "Active-ruleset cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

// IncrementDraftCreated records a created draft.
func (m *Metrics) IncrementDraftCreated(entityType string) {
	if m != nil {
		m.DraftsCreated.WithLabelValues(entityType).Inc()
	}
}

// IncrementValidationFailure records a rejected draft submission.
func (m *Metrics) IncrementValidationFailure() {
	if m != nil {
		m.ValidationFailures.Inc()
	}
}

// IncrementTransition records a lifecycle transition.
func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

// IncrementCacheLookup records a cache lookup result.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
