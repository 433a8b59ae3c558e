package notification

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_notifications_queued_total",
		Help: "Notifications accepted by the dispatcher, labeled by event",
	}, []string{"event"})
	dropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_notifications_dropped_total",
		Help: "Notifications dropped before delivery, labeled by event and reason",
	}, []string{"event", "reason"})
	delivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasegate_notifications_delivered_total",
		Help: "Notification delivery attempts, labeled by event and outcome",
	}, []string{"event", "outcome"})
	deliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchasegate_notification_delivery_seconds",
		Help:    "Time spent delivering one notification to its sinks",
		Buckets: prometheus.DefBuckets,
	})
)

func observeDelivery(event string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	delivered.WithLabelValues(event, outcome).Inc()
	deliveryLatency.Observe(d.Seconds())
}
