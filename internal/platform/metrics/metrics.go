package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sahara_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sahara_http_requests_total",
			Help: "HTTP requests by route pattern and status",
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(method, route).Observe(seconds)
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
}
