package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wellora/telehealth-booking/pkg/logging"
)

type capturingSender struct {
	sent []EmailMessage
}

func (c *capturingSender) Send(_ context.Context, msg EmailMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

func TestServiceNilSenderIsNoOp(t *testing.T) {
	svc := NewService(nil, logging.Default())
	if err := svc.BookingReceived(context.Background(), "pat@example.com", "Pat", "Consultation", 10000); err != nil {
		t.Fatalf("expected nil sender no-op, got %v", err)
	}

	var nilSvc *Service
	if err := nilSvc.BookingConfirmed(context.Background(), "pat@example.com", "Pat"); err != nil {
		t.Fatalf("expected nil service no-op, got %v", err)
	}
}

func TestBookingReceived(t *testing.T) {
	sender := &capturingSender{}
	svc := NewService(sender, logging.Default())

	if err := svc.BookingReceived(context.Background(), "pat@example.com", "Pat", "Initial Consultation", 8000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "pat@example.com" || msg.ToName != "Pat" {
		t.Fatalf("unexpected recipient: %+v", msg)
	}
	if !strings.Contains(msg.Body, "Initial Consultation") || !strings.Contains(msg.Body, "$80.00") {
		t.Fatalf("expected title and price in body, got:\n%s", msg.Body)
	}
}

func TestConsultationCompleted(t *testing.T) {
	sender := &capturingSender{}
	svc := NewService(sender, logging.Default())

	completedAt := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	if err := svc.ConsultationCompleted(context.Background(), "pat@example.com", "Pat", "Dr. Chen", completedAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := sender.sent[0]
	if !strings.Contains(msg.Body, "Dr. Chen") || !strings.Contains(msg.Body, "March 5, 2026") {
		t.Fatalf("expected provider and date in body, got:\n%s", msg.Body)
	}
}
