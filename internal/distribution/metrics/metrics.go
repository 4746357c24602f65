package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for allocations, claims and reclaims.
type Metrics struct {
	Distributions   prometheus.Counter
	AllocatedAmount prometheus.Counter
	Claims          *prometheus.CounterVec
	ClaimedAmount   prometheus.Counter
	Reclaims        prometheus.Counter
	ReclaimedAmount prometheus.Counter
	Reclaimable     prometheus.Gauge
	RejectedByCode  *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry. Call once per process.
func New() *Metrics {
	return &Metrics{
		Distributions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_distributions_created_total",
			Help: "Total number of distributions allocated to beneficiaries",
		}),
		AllocatedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_distribution_allocated_amount_total",
			Help: "Sum of allocated shares in base units",
		}),
		Claims: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sahara_distribution_claims_total",
			Help: "Total number of successful claims, by tranches paid",
		}, []string{"tranches"}),
		ClaimedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_distribution_claimed_amount_total",
			Help: "Sum of claimed amounts in base units",
		}),
		Reclaims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_distribution_reclaims_total",
			Help: "Total number of expired distributions reclaimed",
		}),
		ReclaimedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_distribution_reclaimed_amount_total",
			Help: "Sum of reclaimed allocations in base units",
		}),
		Reclaimable: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sahara_distributions_reclaimable",
			Help: "Distributions past their claim deadline with nothing claimed, as of the last scan",
		}),
		RejectedByCode: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sahara_distribution_operations_rejected_total",
			Help: "Total number of refused distribution operations, by operation and error code",
		}, []string{"operation", "code"}),
	}
}

// ObserveDistribution counts an allocation of share base units.
func (m *Metrics) ObserveDistribution(share uint64) {
	m.Distributions.Inc()
	m.AllocatedAmount.Add(float64(share))
}

func (m *Metrics) ObserveClaim(tranches string, amount uint64) {
	m.Claims.WithLabelValues(tranches).Inc()
	m.ClaimedAmount.Add(float64(amount))
}

func (m *Metrics) ObserveReclaim(amount uint64) {
	m.Reclaims.Inc()
	m.ReclaimedAmount.Add(float64(amount))
}

func (m *Metrics) SetReclaimable(n int) {
	m.Reclaimable.Set(float64(n))
}

func (m *Metrics) IncrementRejected(operation, code string) {
	m.RejectedByCode.WithLabelValues(operation, code).Inc()
}
