package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events successfully published to the event bus.",
	})

	OutboxRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_retried_total",
		Help: "Outbox publish attempts that failed and were scheduled for retry.",
	})

	OutboxDead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_dead_total",
		Help: "Outbox events left permanently failed (retry ceiling or unknown type).",
	})

	NotificationSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_sends_total",
		Help: "Notification send attempts by channel and result.",
	}, []string{"channel", "result"})

	PaymentCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Payment gateway callbacks by outcome.",
	}, []string{"outcome"})
)
