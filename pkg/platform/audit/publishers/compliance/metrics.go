package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for compliance audit tracking.
type Metrics struct {
	EventsEmitted   *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with compliance audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sahara_audit_events_emitted_total",
			Help: "Total number of audit events persisted, by action",
		}, []string{"action"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_audit_persist_failures_total",
			Help: "Total number of audit events that failed to persist",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sahara_audit_persist_duration_seconds",
			Help:    "Time to append an audit event to the outbox",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

func (m *Metrics) IncEventsEmitted(action string) {
	m.EventsEmitted.WithLabelValues(action).Inc()
}

func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

func (m *Metrics) ObservePersistDuration(seconds float64) {
	m.PersistDuration.Observe(seconds)
}
