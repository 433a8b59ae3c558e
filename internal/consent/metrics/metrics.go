package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are package-level so constructing Metrics more than once (one
// per test) never registers twice.
var (
	consentUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_consent_updates_total",
		Help: "Consent changes committed, labeled by resulting decision",
	}, []string{"decision"})
	consentWithdrawals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchasegate_consent_withdrawals_total",
		Help: "Consents withdrawn without a successor",
	})
	consentUpdateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_consent_update_failures_total",
		Help: "Consent changes rejected or rolled back, labeled by error code",
	}, []string{"code"})
	shardLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchasegate_consent_shard_lock_wait_seconds",
		Help:    "Time spent waiting to acquire a per-child consent lock",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
)

// Metrics records consent registry activity.
type Metrics struct{}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncrementUpdates(decision string) {
	consentUpdates.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncrementWithdrawals() {
	consentWithdrawals.Inc()
}

func (m *Metrics) IncrementFailures(code string) {
	consentUpdateFailures.WithLabelValues(code).Inc()
}

// ObserveShardLockWait is also called without a Metrics value from the
// in-memory transaction.
func ObserveShardLockWait(seconds float64) {
	shardLockWait.Observe(seconds)
}
