package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for fund pools.
type Metrics struct {
	PoolsCreated   prometheus.Counter
	Deposits       prometheus.Counter
	DepositAmount  prometheus.Counter
	FeesCollected  prometheus.Counter
	Registrations  prometheus.Counter
	PhaseChanges   *prometheus.CounterVec
	RejectedByCode *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry. Call once per process.
func New() *Metrics {
	return &Metrics{
		PoolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_pools_created_total",
			Help: "Total number of fund pools created",
		}),
		Deposits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_pool_deposits_total",
			Help: "Total number of deposits recorded into pools",
		}),
		DepositAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_pool_deposit_amount_total",
			Help: "Sum of net deposit amounts in base units",
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_platform_fees_collected_total",
			Help: "Sum of platform fees taken from deposits in base units",
		}),
		Registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_pool_registrations_total",
			Help: "Total number of beneficiaries enrolled in pools",
		}),
		PhaseChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sahara_pool_phase_changes_total",
			Help: "Total number of pool phase changes, by target phase",
		}, []string{"phase"}),
		RejectedByCode: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sahara_pool_operations_rejected_total",
			Help: "Total number of refused pool operations, by operation and error code",
		}, []string{"operation", "code"}),
	}
}

func (m *Metrics) IncrementPoolsCreated()  { m.PoolsCreated.Inc() }
func (m *Metrics) IncrementRegistrations() { m.Registrations.Inc() }

// ObserveDeposit counts a deposit and its net and fee amounts.
func (m *Metrics) ObserveDeposit(net, fee uint64) {
	m.Deposits.Inc()
	m.DepositAmount.Add(float64(net))
	m.FeesCollected.Add(float64(fee))
}

func (m *Metrics) IncrementPhaseChange(phase string) {
	m.PhaseChanges.WithLabelValues(phase).Inc()
}

func (m *Metrics) IncrementRejected(operation, code string) {
	m.RejectedByCode.WithLabelValues(operation, code).Inc()
}
