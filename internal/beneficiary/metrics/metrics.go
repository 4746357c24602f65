package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the beneficiary module.
type Metrics struct {
	Registered         prometheus.Counter
	ApprovalsSubmitted prometheus.Counter
	Verified           prometheus.Counter
	Flagged            prometheus.Counter
	Reviews            *prometheus.CounterVec
	ApprovalDuration   prometheus.Histogram
	RejectedApprovals  *prometheus.CounterVec
}

// New creates a Metrics instance registered on the default registry. Call once per process.
func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_beneficiaries_registered_total",
			Help: "Total number of beneficiaries registered by field agents",
		}),
		ApprovalsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_approvals_submitted_total",
			Help: "Total number of accepted verification approvals",
		}),
		Verified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_beneficiaries_verified_total",
			Help: "Total number of beneficiaries that reached the verification threshold",
		}),
		Flagged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sahara_beneficiaries_flagged_total",
			Help: "Total number of beneficiaries flagged for review",
		}),
		Reviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sahara_beneficiary_reviews_total",
			Help: "Total number of admin reviews, by outcome",
		}, []string{"outcome"}),
		ApprovalDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sahara_submit_approval_duration_seconds",
			Help:    "Duration of SubmitApproval operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RejectedApprovals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sahara_approvals_rejected_total",
			Help: "Total number of approvals refused, by error code",
		}, []string{"code"}),
	}
}

func (m *Metrics) IncrementRegistered()        { m.Registered.Inc() }
func (m *Metrics) IncrementApprovalSubmitted() { m.ApprovalsSubmitted.Inc() }
func (m *Metrics) IncrementVerified()          { m.Verified.Inc() }
func (m *Metrics) IncrementFlagged()           { m.Flagged.Inc() }

// IncrementReview counts an admin review by outcome ("reinstated" or "rejected").
func (m *Metrics) IncrementReview(outcome string) {
	m.Reviews.WithLabelValues(outcome).Inc()
}

// IncrementApprovalRejected counts a refused approval by its error code.
func (m *Metrics) IncrementApprovalRejected(code string) {
	m.RejectedApprovals.WithLabelValues(code).Inc()
}

// ObserveSubmitApproval records the duration of a SubmitApproval operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmitApproval(start time.Time) {
	m.ApprovalDuration.Observe(time.Since(start).Seconds())
}
