package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	grants = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_entitlement_grants_total",
		Help: "Entitlement grant attempts, labeled by outcome and scope",
	}, []string{"outcome", "scope"})
	refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_entitlement_refunds_total",
		Help: "Entitlement refunds, labeled by outcome",
	}, []string{"outcome"})
	checks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_entitlement_checks_total",
		Help: "Ownership checks, labeled by result",
	}, []string{"result"})
)

type Metrics struct{}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncrementGrant(outcome, scope string) {
	grants.WithLabelValues(outcome, scope).Inc()
}

func (m *Metrics) IncrementRefund(outcome string) {
	refunds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCheck(owned bool) {
	if owned {
		checks.WithLabelValues("owned").Inc()
		return
	}
	checks.WithLabelValues("not_owned").Inc()
}
