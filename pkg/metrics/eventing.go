package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventingMetrics covers both ends of the outbox pipeline: rows settled by
// the publisher and messages handled by the analytics subscriptions.
type EventingMetrics struct {
	settled       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	consumed      *prometheus.CounterVec
}

// NewEventingMetrics registers the pipeline metrics. A nil registerer yields
// a no-op collector.
func NewEventingMetrics(reg prometheus.Registerer) *EventingMetrics {
	if reg == nil {
		return &EventingMetrics{}
	}
	m := &EventingMetrics{
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_settled_total",
			Help: "Outbox rows settled by the publisher, by outcome and event type.",
		}, []string{"outcome", "event_type"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_publish_batch_duration_seconds",
			Help:    "Wall time of one claim-publish-settle batch.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_messages_total",
			Help: "Analytics subscription messages, by subscription and result.",
		}, []string{"subscription", "result"}),
	}
	reg.MustRegister(m.settled, m.batchDuration, m.consumed)
	return m
}

// IncSettled counts one outbox row that ended a batch as outcome.
func (m *EventingMetrics) IncSettled(outcome, eventType string) {
	if m == nil || m.settled == nil {
		return
	}
	m.settled.WithLabelValues(normalizeLabel(outcome), normalizeLabel(eventType)).Inc()
}

func (m *EventingMetrics) ObserveBatch(d time.Duration) {
	if m == nil || m.batchDuration == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}

// IncConsumed counts one analytics message. result is ack, nack, duplicate or dropped.
func (m *EventingMetrics) IncConsumed(subscription, result string) {
	if m == nil || m.consumed == nil {
		return
	}
	m.consumed.WithLabelValues(normalizeLabel(subscription), normalizeLabel(result)).Inc()
}
