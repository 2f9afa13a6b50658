package qualiphy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/wellora/telehealth-booking/internal/appointments"
	"github.com/wellora/telehealth-booking/internal/observability/metrics"
	"github.com/wellora/telehealth-booking/pkg/logging"
)

// reconciling is the handler's view of the reconciler, narrowed for tests.
type reconciling interface {
	HandleExamCompleted(ctx context.Context, evt ExamCompletedEvent) error
	HandlePrescriptionConfirmed(ctx context.Context, evt PrescriptionConfirmedEvent) error
	HandlePrescriptionTracking(ctx context.Context, evt PrescriptionTrackingEvent)
}

// Handler receives exam provider webhook posts.
type Handler struct {
	reconciler reconciling
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
}

// NewHandler constructs the webhook handler.
func NewHandler(reconciler reconciling, m *metrics.BookingMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{reconciler: reconciler, metrics: m, logger: logger}
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Handle processes one webhook event. Unknown discriminants are acknowledged
// so the provider does not retry them.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		h.observe("unparseable", "invalid", start)
		h.writeJSON(w, http.StatusBadRequest, webhookResponse{Success: false, Error: "invalid payload"})
		return
	}

	evt, err := ParseEvent(body)
	if err != nil {
		var unknown *UnknownEventError
		if errors.As(err, &unknown) {
			h.logger.Warn("unknown webhook event type", "event", unknown.Discriminant)
			h.observe(strconv.Itoa(unknown.Discriminant), "ignored", start)
			h.writeJSON(w, http.StatusOK, webhookResponse{Success: true})
			return
		}
		h.logger.Error("failed to decode webhook payload", "error", err)
		h.observe("unparseable", "invalid", start)
		h.writeJSON(w, http.StatusBadRequest, webhookResponse{Success: false, Error: "invalid payload"})
		return
	}

	eventType := strconv.Itoa(int(evt.Type()))

	switch e := evt.(type) {
	case ExamCompletedEvent:
		err = h.reconciler.HandleExamCompleted(r.Context(), e)
	case PrescriptionConfirmedEvent:
		err = h.reconciler.HandlePrescriptionConfirmed(r.Context(), e)
	case PrescriptionTrackingEvent:
		h.reconciler.HandlePrescriptionTracking(r.Context(), e)
	}

	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			h.logger.Warn("no appointment matched webhook event", "event", eventType)
			h.observe(eventType, "unmatched", start)
			h.writeJSON(w, http.StatusNotFound, webhookResponse{Success: false, Error: "appointment not found"})
			return
		}
		h.logger.Error("webhook reconciliation failed", "event", eventType, "error", err)
		h.observe(eventType, "error", start)
		h.writeJSON(w, http.StatusInternalServerError, webhookResponse{Success: false, Error: "internal error"})
		return
	}

	h.observe(eventType, "ok", start)
	h.writeJSON(w, http.StatusOK, webhookResponse{Success: true})
}

func (h *Handler) observe(eventType, status string, start time.Time) {
	h.metrics.ObserveWebhook("qualiphy", eventType, status, time.Since(start).Seconds())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
