package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking and webhook
// flows.
type BookingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	bookingLatency prometheus.Histogram
	webhooksTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellora",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Total booking requests by outcome",
		}, []string{"status"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wellora",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Latency of booking orchestration",
			Buckets:   prometheus.DefBuckets,
		}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellora",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total inbound webhook events by source, type and outcome",
		}, []string{"source", "event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wellora",
			Subsystem: "webhook",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.webhooksTotal, m.webhookLatency)
	return m
}

func (m *BookingMetrics) ObserveBooking(status string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveWebhook(source, eventType, status string, seconds float64) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(source, eventType, status).Inc()
	m.webhookLatency.WithLabelValues(source).Observe(seconds)
}
