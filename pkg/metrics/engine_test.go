package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEngineMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewEngineMetrics(reg)

	metrics.IncSettlement("settled")
	metrics.IncSettlement("duplicate")
	metrics.IncWebhookEvent("applied")
	metrics.IncAdminTransition("preparing")
	metrics.ObserveCarrierPlacement(120 * time.Millisecond)
	metrics.IncCarrierFailure()
	metrics.IncNotificationPersisted()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "order_settlements_total", "result", "settled"); err != nil {
		t.Fatalf("fetch settlements: %v", err)
	} else if got != 1 {
		t.Fatalf("expected settled=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "delivery_webhook_events_total", "outcome", "applied"); err != nil {
		t.Fatalf("fetch webhook events: %v", err)
	} else if got != 1 {
		t.Fatalf("expected applied=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "admin_transitions_total", "to", "preparing"); err != nil {
		t.Fatalf("fetch admin transitions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected preparing=1, got %f", got)
	}

	if mf := findMetricFamily(mfs, "carrier_placement_duration_seconds"); mf == nil {
		t.Fatal("expected placement histogram to be registered")
	} else if mf.GetMetric()[0].GetHistogram().GetSampleSum() <= 0 {
		t.Fatal("expected placement duration sum > 0")
	}

	if mf := findMetricFamily(mfs, "carrier_placement_failures_total"); mf == nil {
		t.Fatal("expected failure counter to be registered")
	} else if mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected failure counter = 1")
	}
}

func TestEngineMetricsEmptyLabelFallsBackToUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewEngineMetrics(reg)

	metrics.IncSettlement("")
	metrics.IncWebhookEvent("")
	metrics.IncAdminTransition("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for _, tc := range []struct {
		family string
		label  string
	}{
		{"order_settlements_total", "result"},
		{"delivery_webhook_events_total", "outcome"},
		{"admin_transitions_total", "to"},
	} {
		if got, err := fetchCounterValue(mfs, tc.family, tc.label, "unknown"); err != nil {
			t.Fatalf("fetch %s: %v", tc.family, err)
		} else if got != 1 {
			t.Fatalf("expected %s{%s=\"unknown\"}=1, got %f", tc.family, tc.label, got)
		}
	}
}

func TestEngineMetricsNilRegisterer(t *testing.T) {
	metrics := NewEngineMetrics(nil)

	// No registry configured; all recorders must be safe no-ops.
	metrics.IncSettlement("settled")
	metrics.IncWebhookEvent("stale")
	metrics.IncAdminTransition("prepared")
	metrics.ObserveCarrierPlacement(time.Second)
	metrics.IncCarrierFailure()
	metrics.IncNotificationPersisted()
}
