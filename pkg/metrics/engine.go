package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records order lifecycle activity across settlement,
// webhook reconciliation, and the admin workflow.
type EngineMetrics struct {
	settlements       *prometheus.CounterVec
	webhookEvents     *prometheus.CounterVec
	adminTransitions  *prometheus.CounterVec
	carrierPlacement  prometheus.Histogram
	carrierFailures   prometheus.Counter
	notificationsSent prometheus.Counter
}

// NewEngineMetrics registers the lifecycle metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_settlements_total",
		Help: "Payment settlements grouped by outcome.",
	}, []string{"result"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_webhook_events_total",
		Help: "Carrier webhook deliveries grouped by outcome.",
	}, []string{"outcome"})
	adminTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_transitions_total",
		Help: "Back-office workflow transitions by target status.",
	}, []string{"to"})
	carrierPlacement := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "carrier_placement_duration_seconds",
		Help:    "Duration of quote-and-place calls against the carrier.",
		Buckets: prometheus.DefBuckets,
	})
	carrierFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carrier_placement_failures_total",
		Help: "Carrier placements that exhausted their retry budget.",
	})
	notificationsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_persisted_total",
		Help: "Notifications written by the worker.",
	})
	reg.MustRegister(settlements, webhookEvents, adminTransitions, carrierPlacement, carrierFailures, notificationsSent)
	return &EngineMetrics{
		settlements:       settlements,
		webhookEvents:     webhookEvents,
		adminTransitions:  adminTransitions,
		carrierPlacement:  carrierPlacement,
		carrierFailures:   carrierFailures,
		notificationsSent: notificationsSent,
	}
}

// IncSettlement counts a settlement attempt by result (settled, duplicate, failed).
func (m *EngineMetrics) IncSettlement(result string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncWebhookEvent counts a carrier webhook by outcome (applied, stale, ignored, orphan).
func (m *EngineMetrics) IncWebhookEvent(outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncAdminTransition counts a workflow transition by target status.
func (m *EngineMetrics) IncAdminTransition(to string) {
	if m == nil || m.adminTransitions == nil {
		return
	}
	m.adminTransitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// ObserveCarrierPlacement records how long quote-and-place took.
func (m *EngineMetrics) ObserveCarrierPlacement(duration time.Duration) {
	if m == nil || m.carrierPlacement == nil {
		return
	}
	m.carrierPlacement.Observe(duration.Seconds())
}

// IncCarrierFailure counts an exhausted placement retry budget.
func (m *EngineMetrics) IncCarrierFailure() {
	if m == nil || m.carrierFailures == nil {
		return
	}
	m.carrierFailures.Inc()
}

// IncNotificationPersisted counts a notification written by the worker.
func (m *EngineMetrics) IncNotificationPersisted() {
	if m == nil || m.notificationsSent == nil {
		return
	}
	m.notificationsSent.Inc()
}
