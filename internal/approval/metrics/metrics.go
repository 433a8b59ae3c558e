package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchasegate_approval_requests_total",
		Help: "Approval requests created",
	})
	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_approval_resolutions_total",
		Help: "Approval resolutions, labeled by resulting status",
	}, []string{"status"})
	redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_approval_redemptions_total",
		Help: "Redemption attempts, labeled by outcome code",
	}, []string{"outcome"})
	swept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_approval_swept_total",
		Help: "Requests handled by the sweep worker, labeled by action",
	}, []string{"action"})
	decisionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchasegate_approval_decision_seconds",
		Help:    "Time from approval request to parent decision",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 900},
	})
	shardLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchasegate_approval_shard_lock_wait_seconds",
		Help:    "Time waiting for an approval token shard lock",
		Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
	})
	redisRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchasegate_approval_redis_watch_retries_total",
		Help: "Optimistic transaction retries after a concurrent write on the token key",
	})
)

// Metrics records approval activity.
type Metrics struct{}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncrementRequested() {
	requestsCreated.Inc()
}

func (m *Metrics) IncrementResolved(status string) {
	resolutions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementRedemption(outcome string) {
	redemptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementSwept(action string, n int) {
	swept.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) ObserveDecisionLatency(seconds float64) {
	decisionLatency.Observe(seconds)
}

func ObserveShardLockWait(seconds float64) {
	shardLockWait.Observe(seconds)
}

func IncrementRedisRetry() {
	redisRetries.Inc()
}
