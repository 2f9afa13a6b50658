package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wellora/telehealth-booking/pkg/logging"
)

// Service sends patient-facing emails for the booking workflow. All sends are
// best effort; callers log failures and never surface them to the patient.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

// NewService creates a notification service. A nil sender disables all sends.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, logger: logger}
}

// BookingReceived tells the patient their booking was created and checkout is
// pending.
func (s *Service) BookingReceived(ctx context.Context, to, name, appointmentTitle string, priceCents int64) error {
	if s == nil || s.email == nil {
		return nil
	}
	amount := fmt.Sprintf("$%.2f", float64(priceCents)/100)
	subject := "Your consultation booking"
	body := fmt.Sprintf(`Hi %s,

We received your booking for %s (%s).

Complete the checkout to confirm your appointment. Your consultation will be
scheduled once payment goes through.

— Wellora Care`, name, appointmentTitle, amount)

	return s.send(ctx, to, name, subject, body)
}

// BookingConfirmed tells the patient their payment went through and the
// consultation is scheduled.
func (s *Service) BookingConfirmed(ctx context.Context, to, name string) error {
	if s == nil || s.email == nil {
		return nil
	}
	subject := "Your consultation is scheduled"
	body := fmt.Sprintf(`Hi %s,

Your payment was received and your consultation is scheduled. A provider will
reach out with next steps.

— Wellora Care`, name)

	return s.send(ctx, to, name, subject, body)
}

// ConsultationCompleted tells the patient their consultation outcome was
// recorded.
func (s *Service) ConsultationCompleted(ctx context.Context, to, name, providerName string, completedAt time.Time) error {
	if s == nil || s.email == nil {
		return nil
	}
	subject := "Your consultation results"
	body := fmt.Sprintf(`Hi %s,

Your consultation with %s on %s is complete. Log in to your account to review
the results and any prescriptions.

— Wellora Care`, name, providerName, completedAt.Format("January 2, 2006"))

	return s.send(ctx, to, name, subject, body)
}

func (s *Service) send(ctx context.Context, to, name, subject, body string) error {
	msg := EmailMessage{
		To:      to,
		ToName:  name,
		Subject: subject,
		Body:    body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: failed to send email", "error", err, "to", to, "subject", subject)
		return err
	}
	return nil
}
