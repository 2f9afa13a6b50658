package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wellora/telehealth-booking/internal/payments"
	"github.com/wellora/telehealth-booking/pkg/logging"
)

type stubBooker struct {
	calls  int
	result *BookResult
	err    error
}

func (s *stubBooker) Book(_ context.Context, req BookRequest) (*BookResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubVelocity struct {
	result *payments.VelocityResult
}

func (s *stubVelocity) CheckBookingVelocity(_ context.Context, email string) (*payments.VelocityResult, error) {
	return s.result, nil
}

func postBooking(t *testing.T, h *Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/appointments", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	return rr
}

func TestCreate_Success(t *testing.T) {
	booker := &stubBooker{result: &BookResult{
		AppointmentDocID: "doc-1",
		SessionID:        "cs_1",
		CheckoutURL:      "https://checkout.test/cs_1",
	}}
	h := NewHandler(booker, nil, nil, logging.Default())

	rr := postBooking(t, h, map[string]string{
		"appointmentId": "type-1",
		"userId":        "user-1",
		"userEmail":     "pat@example.com",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp bookingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.AppointmentID != "doc-1" || resp.SessionID != "cs_1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.URL != "https://checkout.test/cs_1" {
		t.Fatalf("expected checkout url, got %q", resp.URL)
	}
}

func TestCreate_MissingFieldsRejectedBeforeBooking(t *testing.T) {
	cases := []map[string]string{
		{"userId": "user-1", "userEmail": "pat@example.com"},
		{"appointmentId": "type-1", "userEmail": "pat@example.com"},
		{"appointmentId": "type-1", "userId": "user-1"},
	}
	for _, body := range cases {
		booker := &stubBooker{}
		h := NewHandler(booker, nil, nil, logging.Default())
		rr := postBooking(t, h, body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, rr.Code)
		}
		if booker.calls != 0 {
			t.Fatalf("expected no booking call for %v", body)
		}
	}
}

func TestCreate_InvalidJSON(t *testing.T) {
	h := NewHandler(&stubBooker{}, nil, nil, logging.Default())
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/appointments", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreate_TypeNotFound(t *testing.T) {
	h := NewHandler(&stubBooker{err: ErrTypeNotFound}, nil, nil, logging.Default())
	rr := postBooking(t, h, map[string]string{
		"appointmentId": "missing",
		"userId":        "user-1",
		"userEmail":     "pat@example.com",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCreate_Throttled(t *testing.T) {
	booker := &stubBooker{}
	velocity := &stubVelocity{result: &payments.VelocityResult{Allowed: false, CurrentCount: 6, MaxAllowed: 5}}
	h := NewHandler(booker, velocity, nil, logging.Default())

	rr := postBooking(t, h, map[string]string{
		"appointmentId": "type-1",
		"userId":        "user-1",
		"userEmail":     "pat@example.com",
	})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if booker.calls != 0 {
		t.Fatal("expected no booking call when throttled")
	}
}
