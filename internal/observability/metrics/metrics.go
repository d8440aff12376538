package metrics

import "github.com/prometheus/client_golang/prometheus"

// ClinicMetrics exposes counters for the booking, prescription, notification
// and authentication flows.
type ClinicMetrics struct {
	authTotal          *prometheus.CounterVec
	bookingsTotal      *prometheus.CounterVec
	prescriptionsTotal *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	notifyLatency      *prometheus.HistogramVec
}

func NewClinicMetrics(reg prometheus.Registerer) *ClinicMetrics {
	m := &ClinicMetrics{
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtrack",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Signup and login attempts by role and result",
		}, []string{"action", "role", "result"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtrack",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Appointment booking attempts by result",
		}, []string{"result"}),
		prescriptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtrack",
			Subsystem: "appointments",
			Name:      "prescriptions_total",
			Help:      "Prescriptions recorded, split by whether an appointment was linked",
		}, []string{"linked"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtrack",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Booking notifications by provider and outcome",
		}, []string{"provider", "status"}),
		notifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medtrack",
			Subsystem: "notify",
			Name:      "publish_latency_seconds",
			Help:      "Latency of notification publish calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.authTotal, m.bookingsTotal, m.prescriptionsTotal, m.notificationsTotal, m.notifyLatency)
	return m
}

// ObserveAuth records a signup or login outcome.
func (m *ClinicMetrics) ObserveAuth(action, role, result string) {
	if m == nil {
		return
	}
	m.authTotal.WithLabelValues(action, role, result).Inc()
}

func (m *ClinicMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *ClinicMetrics) ObservePrescription(linked bool) {
	if m == nil {
		return
	}
	label := "false"
	if linked {
		label = "true"
	}
	m.prescriptionsTotal.WithLabelValues(label).Inc()
}

// ObserveNotification records a publish outcome: sent, failed or dropped.
func (m *ClinicMetrics) ObserveNotification(provider, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(provider, status).Inc()
}

func (m *ClinicMetrics) ObserveNotifyLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.notifyLatency.WithLabelValues(provider).Observe(seconds)
}
