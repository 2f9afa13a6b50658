package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wellora/telehealth-booking/internal/observability/metrics"
	"github.com/wellora/telehealth-booking/internal/payments"
	"github.com/wellora/telehealth-booking/pkg/logging"
)

// velocityChecker limits booking attempts per email.
type velocityChecker interface {
	CheckBookingVelocity(ctx context.Context, email string) (*payments.VelocityResult, error)
}

// booker runs the booking flow. Satisfied by *Service.
type booker interface {
	Book(ctx context.Context, req BookRequest) (*BookResult, error)
}

// Handler exposes the booking orchestrator over HTTP.
type Handler struct {
	service  booker
	velocity velocityChecker
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

// NewHandler creates the booking HTTP handler.
func NewHandler(service booker, velocity velocityChecker, m *metrics.BookingMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:  service,
		velocity: velocity,
		metrics:  m,
		logger:   logger,
	}
}

type bookingRequest struct {
	AppointmentID  string `json:"appointmentId"`
	UserID         string `json:"userId"`
	UserEmail      string `json:"userEmail"`
	UserName       string `json:"userName,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

type bookingResponse struct {
	Success       bool   `json:"success"`
	AppointmentID string `json:"appointmentId,omitempty"`
	SessionID     string `json:"sessionId,omitempty"`
	URL           string `json:"url,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Create handles POST /api/stripe/appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", start)
		return
	}

	// Validation happens before any external call.
	if req.AppointmentID == "" || req.UserID == "" || req.UserEmail == "" {
		h.writeError(w, http.StatusBadRequest, "appointmentId, userId and userEmail are required", start)
		return
	}

	if h.velocity != nil {
		result, err := h.velocity.CheckBookingVelocity(r.Context(), req.UserEmail)
		if err == nil && result != nil && !result.Allowed {
			h.logger.Warn("booking rejected by velocity check", "user_email", req.UserEmail, "count", result.CurrentCount)
			h.writeError(w, http.StatusTooManyRequests, "too many booking attempts, try again later", start)
			return
		}
	}

	result, err := h.service.Book(r.Context(), BookRequest{
		AppointmentTypeID: req.AppointmentID,
		UserID:            req.UserID,
		UserEmail:         req.UserEmail,
		UserName:          req.UserName,
		SubscriptionID:    req.SubscriptionID,
	})
	if err != nil {
		if errors.Is(err, ErrTypeNotFound) {
			h.writeError(w, http.StatusNotFound, "appointment type not found", start)
			return
		}
		h.logger.Error("booking failed", "error", err, "user_id", req.UserID)
		h.writeError(w, http.StatusInternalServerError, "failed to create appointment", start)
		return
	}

	h.metrics.ObserveBooking("ok", time.Since(start).Seconds())
	h.writeJSON(w, http.StatusOK, bookingResponse{
		Success:       true,
		AppointmentID: result.AppointmentDocID,
		SessionID:     result.SessionID,
		URL:           result.CheckoutURL,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string, start time.Time) {
	h.metrics.ObserveBooking(metricStatus(status), time.Since(start).Seconds())
	h.writeJSON(w, status, bookingResponse{Success: false, Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func metricStatus(httpStatus int) string {
	switch httpStatus {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "throttled"
	default:
		return "error"
	}
}
