package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_ledger_entries_total",
		Help: "Ledger entries appended, labeled by kind",
	}, []string{"kind"})
	amountRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_ledger_amount_minor_units_total",
		Help: "Absolute minor units appended to the ledger, labeled by kind",
	}, []string{"kind"})
	duplicateSpends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchasegate_ledger_duplicate_spends_total",
		Help: "Spend entries rejected because the purchase was already recorded",
	})
	refundsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_ledger_refunds_rejected_total",
		Help: "Refunds refused, labeled by error code",
	}, []string{"code"})
)

// Metrics records ledger activity.
type Metrics struct{}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) ObserveEntry(kind string, amount int64) {
	if amount < 0 {
		amount = -amount
	}
	entriesRecorded.WithLabelValues(kind).Inc()
	amountRecorded.WithLabelValues(kind).Add(float64(amount))
}

func (m *Metrics) IncrementDuplicateSpend() {
	duplicateSpends.Inc()
}

func (m *Metrics) IncrementRefundRejected(code string) {
	refundsRejected.WithLabelValues(code).Inc()
}
