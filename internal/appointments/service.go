package appointments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wellora/telehealth-booking/internal/content"
	"github.com/wellora/telehealth-booking/internal/customers"
	"github.com/wellora/telehealth-booking/internal/notify"
	"github.com/wellora/telehealth-booking/internal/payments"
	"github.com/wellora/telehealth-booking/internal/subscriptions"
	"github.com/wellora/telehealth-booking/pkg/logging"
)

var bookingTracer = otel.Tracer("wellora.internal.appointments")

// bookingTypeTag is the fixed tag carried in checkout session metadata so
// webhook consumers can tell appointment checkouts from other purchases.
const bookingTypeTag = "appointment"

// CatalogStore is the content-store surface the orchestrator needs.
type CatalogStore interface {
	GetAppointmentType(ctx context.Context, id string) (*content.AppointmentType, error)
	SetStripeRefs(ctx context.Context, typeID, productID, priceID string) error
	CreateUserAppointment(ctx context.Context, doc content.UserAppointmentDoc) (string, error)
	MarkScheduled(ctx context.Context, docID string) error
}

// PaymentGateway is the payment-platform surface the orchestrator needs.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	CreateProduct(ctx context.Context, name string) (string, error)
	CreatePrice(ctx context.Context, productID string, amountCents int64) (string, error)
	CreateCheckoutSession(ctx context.Context, params payments.CheckoutSessionParams) (*payments.CheckoutSession, error)
}

// CustomerStore resolves and creates user -> gateway customer mappings.
type CustomerStore interface {
	GetByUserID(ctx context.Context, userID string) (*customers.Customer, error)
	Create(ctx context.Context, userID, stripeCustomerID, email string) (*customers.Customer, error)
}

// SubscriptionResolver looks up active subscriptions granting appointment
// access.
type SubscriptionResolver interface {
	GetActiveForUser(ctx context.Context, subscriptionID, userID string) (*subscriptions.Subscription, error)
}

// Store is the relational-store surface the orchestrator needs.
type Store interface {
	Create(ctx context.Context, a *Appointment) error
	MarkScheduledBySession(ctx context.Context, sessionID string) (*Appointment, error)
}

// Service orchestrates appointment bookings: pricing, gateway records,
// checkout session, and the paired pending records in both stores.
type Service struct {
	catalog    CatalogStore
	gateway    PaymentGateway
	custs      CustomerStore
	subs       SubscriptionResolver
	repo       Store
	notifier   *notify.Service
	logger     *logging.Logger
	successURL string
	cancelURL  string
}

// NewService constructs the booking orchestrator.
func NewService(
	catalog CatalogStore,
	gateway PaymentGateway,
	custs CustomerStore,
	subs SubscriptionResolver,
	repo Store,
	notifier *notify.Service,
	successURL, cancelURL string,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		catalog:    catalog,
		gateway:    gateway,
		custs:      custs,
		subs:       subs,
		repo:       repo,
		notifier:   notifier,
		logger:     logger,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// BookRequest is a validated booking request.
type BookRequest struct {
	AppointmentTypeID string
	UserID            string
	UserEmail         string
	UserName          string
	SubscriptionID    string
}

// BookResult identifies the created booking attempt.
type BookResult struct {
	AppointmentDocID string
	SessionID        string
	CheckoutURL      string
}

// Book runs the booking flow end to end. The two-store write is not
// transactional: a failure after the checkout session or content document is
// created leaves that external state in place and only logs its identifiers.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	ctx, span := bookingTracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("wellora.user_id", req.UserID),
		attribute.String("wellora.appointment_type_id", req.AppointmentTypeID),
	)

	at, err := s.catalog.GetAppointmentType(ctx, req.AppointmentTypeID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, ErrTypeNotFound
		}
		return nil, fmt.Errorf("appointments: resolve type: %w", err)
	}

	priceCents := at.PriceCents
	discountPct := 0
	fromSubscription := false
	if req.SubscriptionID != "" {
		sub, err := s.subs.GetActiveForUser(ctx, req.SubscriptionID, req.UserID)
		switch {
		case err == nil:
			fromSubscription = true
			discountPct = sub.AppointmentDiscountPercent
			if discountPct > 0 {
				priceCents = at.PriceCents * int64(100-discountPct) / 100
			}
		case errors.Is(err, subscriptions.ErrNotFound):
			s.logger.Warn("subscription not applicable, booking at full price",
				"subscription_id", req.SubscriptionID, "user_id", req.UserID)
		default:
			return nil, fmt.Errorf("appointments: resolve subscription: %w", err)
		}
	}

	checkoutPriceID, err := s.resolvePrice(ctx, at, priceCents, discountPct)
	if err != nil {
		return nil, err
	}

	cust, err := s.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutSessionParams{
		PriceID:    checkoutPriceID,
		CustomerID: cust.StripeCustomerID,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
		Metadata: map[string]string{
			"user_id":             req.UserID,
			"user_email":          req.UserEmail,
			"appointment_type_id": at.ID,
			"booking_type":        bookingTypeTag,
			"from_subscription":   strconv.FormatBool(fromSubscription),
			"subscription_id":     req.SubscriptionID,
			"exam_catalog_id":     at.ExamCatalogID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: create checkout session: %w", err)
	}

	displayName := DisplayNameOrEmailLocal(req.UserName, req.UserEmail)
	now := time.Now().UTC()
	note := fmt.Sprintf("Appointment created on %s", now.Format("January 2, 2006"))

	docID, err := s.catalog.CreateUserAppointment(ctx, content.UserAppointmentDoc{
		UserID:            req.UserID,
		UserEmail:         req.UserEmail,
		DisplayName:       displayName,
		AppointmentTypeID: at.ID,
		FromSubscription:  fromSubscription,
		SubscriptionID:    req.SubscriptionID,
		ExamCatalogID:     at.ExamCatalogID,
		Status:            string(StatusPending),
		Notes:             note,
		CheckoutSessionID: session.ID,
		PriceCents:        priceCents,
		DurationMinutes:   at.DurationMinutes,
		CreatedAt:         now,
	})
	if err != nil {
		s.logger.Error("content document creation failed after checkout creation",
			"session_id", session.ID, "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("appointments: create content document: %w", err)
	}

	appt := &Appointment{
		UserID:            req.UserID,
		UserEmail:         req.UserEmail,
		DisplayName:       displayName,
		AppointmentTypeID: at.ID,
		ContentDocID:      docID,
		CheckoutSessionID: session.ID,
		CustomerID:        cust.ID,
		PriceCents:        priceCents,
		DurationMinutes:   at.DurationMinutes,
		FromSubscription:  fromSubscription,
		SubscriptionID:    req.SubscriptionID,
		ExamCatalogID:     at.ExamCatalogID,
		Status:            StatusPending,
		Notes:             note,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		// No compensation: the checkout session and content document already
		// exist. Log their ids so they can be reconciled by hand.
		s.logger.Error("appointment insert failed after checkout creation",
			"session_id", session.ID, "content_doc_id", docID, "error", err)
		return nil, fmt.Errorf("appointments: persist appointment: %w", err)
	}

	if err := s.notifier.BookingReceived(ctx, req.UserEmail, displayName, at.Title, priceCents); err != nil {
		s.logger.Warn("booking email failed", "error", err, "user_email", req.UserEmail)
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"content_doc_id", docID,
		"session_id", session.ID,
		"price_cents", priceCents,
		"from_subscription", fromSubscription,
	)
	return &BookResult{
		AppointmentDocID: docID,
		SessionID:        session.ID,
		CheckoutURL:      session.URL,
	}, nil
}

// resolvePrice returns the gateway price id to charge. The canonical price on
// the catalog document is only created or updated when no discount applies; a
// discount always mints a fresh one-off price.
func (s *Service) resolvePrice(ctx context.Context, at *content.AppointmentType, priceCents int64, discountPct int) (string, error) {
	productID := at.StripeProductID

	if discountPct > 0 {
		if productID == "" {
			created, err := s.gateway.CreateProduct(ctx, at.Title)
			if err != nil {
				return "", fmt.Errorf("appointments: create product: %w", err)
			}
			productID = created
			if err := s.catalog.SetStripeRefs(ctx, at.ID, productID, ""); err != nil {
				return "", err
			}
		}
		priceID, err := s.gateway.CreatePrice(ctx, productID, priceCents)
		if err != nil {
			return "", fmt.Errorf("appointments: create discounted price: %w", err)
		}
		return priceID, nil
	}

	if productID != "" && at.StripePriceID != "" {
		return at.StripePriceID, nil
	}
	if productID == "" {
		created, err := s.gateway.CreateProduct(ctx, at.Title)
		if err != nil {
			return "", fmt.Errorf("appointments: create product: %w", err)
		}
		productID = created
	}
	priceID, err := s.gateway.CreatePrice(ctx, productID, at.PriceCents)
	if err != nil {
		return "", fmt.Errorf("appointments: create price: %w", err)
	}
	if err := s.catalog.SetStripeRefs(ctx, at.ID, productID, priceID); err != nil {
		return "", err
	}
	return priceID, nil
}

// resolveCustomer returns the existing mapping or creates the gateway
// customer and its mapping. A mapping insert failure orphans the freshly
// created gateway customer; the id is logged for manual cleanup.
func (s *Service) resolveCustomer(ctx context.Context, req BookRequest) (*customers.Customer, error) {
	cust, err := s.custs.GetByUserID(ctx, req.UserID)
	if err == nil {
		return cust, nil
	}
	if !errors.Is(err, customers.ErrNotFound) {
		return nil, fmt.Errorf("appointments: resolve customer: %w", err)
	}

	stripeID, err := s.gateway.CreateCustomer(ctx, req.UserEmail, req.UserName)
	if err != nil {
		return nil, fmt.Errorf("appointments: create gateway customer: %w", err)
	}
	cust, err = s.custs.Create(ctx, req.UserID, stripeID, req.UserEmail)
	if err != nil {
		s.logger.Error("customer mapping insert failed, gateway customer orphaned",
			"stripe_customer_id", stripeID, "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("appointments: persist customer mapping: %w", err)
	}
	return cust, nil
}

// ConfirmCheckout applies the paid transition for a completed checkout
// session: the relational row moves to scheduled, the content document is
// mirrored, and the patient is told their consultation is scheduled. Content
// and email failures are logged only.
func (s *Service) ConfirmCheckout(ctx context.Context, sessionID string) (payments.ConfirmedBooking, error) {
	appt, err := s.repo.MarkScheduledBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return payments.ConfirmedBooking{}, payments.ErrUnknownSession
		}
		return payments.ConfirmedBooking{}, fmt.Errorf("appointments: mark scheduled: %w", err)
	}

	if appt.ContentDocID != "" {
		if err := s.catalog.MarkScheduled(ctx, appt.ContentDocID); err != nil {
			s.logger.Error("content scheduled update failed",
				"content_doc_id", appt.ContentDocID, "appointment_id", appt.ID, "error", err)
		}
	}

	if err := s.notifier.BookingConfirmed(ctx, appt.UserEmail, appt.DisplayName); err != nil {
		s.logger.Warn("confirmation email failed", "error", err, "user_email", appt.UserEmail)
	}

	s.logger.Info("appointment scheduled", "appointment_id", appt.ID, "session_id", sessionID)
	return payments.ConfirmedBooking{
		AppointmentID: appt.ID.String(),
		ContentDocID:  appt.ContentDocID,
		UserEmail:     appt.UserEmail,
		DisplayName:   appt.DisplayName,
	}, nil
}
