package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveBooking("ok", 0.25)
	m.ObserveBooking("invalid", 0.01)
	m.ObserveWebhook("stripe", "checkout.session.completed", "ok", 0.1)
	m.ObserveWebhook("qualiphy", "1", "unmatched", 0.05)
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("ok", 0.1)
	m.ObserveWebhook("stripe", "event", "ok", 0.1)
}
