// Package router wires the HTTP surface: booking, payment webhooks, exam
// provider webhooks, health, and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wellora/telehealth-booking/internal/appointments"
	"github.com/wellora/telehealth-booking/internal/payments"
	"github.com/wellora/telehealth-booking/internal/qualiphy"
	"github.com/wellora/telehealth-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	BookingHandler  *appointments.Handler
	StripeWebhook   *payments.StripeWebhookHandler
	QualiphyWebhook *qualiphy.Handler
	MetricsHandler  http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/stripe", func(stripe chi.Router) {
			if cfg.BookingHandler != nil {
				stripe.Post("/appointments", cfg.BookingHandler.Create)
			}
			if cfg.StripeWebhook != nil {
				stripe.Post("/webhook", cfg.StripeWebhook.Handle)
			}
		})
		if cfg.QualiphyWebhook != nil {
			api.Post("/qualiphy/webhook", cfg.QualiphyWebhook.Handle)
		}
	})

	return r
}
