package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestClinicMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClinicMetrics(reg)
	m.ObserveAuth("login", "doctor", "success")
	m.ObserveBooking("created")
	m.ObservePrescription(true)
	m.ObservePrescription(false)
	m.ObservePrescription(false)
	m.ObserveNotification("sns", "sent")
	m.ObserveNotifyLatency("sns", 0.2)

	if got := counterValue(t, reg, "medtrack_appointments_prescriptions_total", "linked", "false"); got != 2 {
		t.Fatalf("expected 2 unlinked prescriptions, got %v", got)
	}
	if got := counterValue(t, reg, "medtrack_notify_notifications_total", "status", "sent"); got != 1 {
		t.Fatalf("expected 1 sent notification, got %v", got)
	}
}

func TestClinicMetricsNilSafe(t *testing.T) {
	var m *ClinicMetrics
	m.ObserveAuth("signup", "patient", "duplicate")
	m.ObserveBooking("failed")
	m.ObservePrescription(true)
	m.ObserveNotification("log", "dropped")
	m.ObserveNotifyLatency("log", 1)
}

func TestClinicMetricsDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewClinicMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	NewClinicMetrics(reg)
}

func counterValue(t *testing.T, g prometheus.Gatherer, name, label, value string) float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if hasLabel(metric, label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name && pair.GetValue() == value {
			return true
		}
	}
	return false
}
