package payment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	charges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_payment_charges_total",
		Help: "Charge attempts against the payment platform, labeled by outcome",
	}, []string{"outcome"})
	refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_payment_refunds_total",
		Help: "Refunds issued on the payment platform, labeled by outcome",
	}, []string{"outcome"})
	chargeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchasegate_payment_charge_duration_seconds",
		Help:    "Time spent waiting on the payment platform",
		Buckets: prometheus.DefBuckets,
	})
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "purchasegate_payment_circuit_state",
		Help: "Payment circuit state: 0 closed, 1 open",
	}, []string{"circuit"})
)
