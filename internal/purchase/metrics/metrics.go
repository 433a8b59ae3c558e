package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	initiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_purchase_initiated_total",
		Help: "Purchase attempts started, labeled by outcome",
	}, []string{"outcome"})
	rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_purchase_rejections_total",
		Help: "Rejected purchase attempts, labeled by reason code",
	}, []string{"reason"})
	completions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchasegate_purchase_completed_total",
		Help: "Purchases that granted an entitlement",
	})
	revenue = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_purchase_revenue_minor_units_total",
		Help: "Revenue committed by completed purchases, labeled by share and currency",
	}, []string{"share", "currency"})
	refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_purchase_refunds_total",
		Help: "Purchase refunds, labeled by outcome",
	}, []string{"outcome"})
	compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_purchase_compensations_total",
		Help: "Platform refunds issued because a charged purchase failed to commit, labeled by outcome",
	}, []string{"outcome"})
	completeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchasegate_purchase_complete_duration_seconds",
		Help:    "Time to redeem, charge and commit a purchase",
		Buckets: prometheus.DefBuckets,
	})
	commitLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchasegate_purchase_commit_lock_wait_seconds",
		Help:    "Time spent waiting for the per-child commit lock",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
)

type Metrics struct{}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncrementInitiated(outcome string) {
	initiated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRejection(reason string) {
	rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveCompleted(creatorShare, platformShare int64, currency string, took time.Duration) {
	completions.Inc()
	revenue.WithLabelValues("creator", currency).Add(float64(creatorShare))
	revenue.WithLabelValues("platform", currency).Add(float64(platformShare))
	completeDuration.Observe(took.Seconds())
}

func (m *Metrics) IncrementRefund(outcome string) {
	refunds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCompensation(outcome string) {
	compensations.WithLabelValues(outcome).Inc()
}

// ObserveCommitLockWait records how long a commit waited for its child's
// shard lock.
func ObserveCommitLockWait(seconds float64) {
	commitLockWait.Observe(seconds)
}
