package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wellora/telehealth-booking/pkg/logging"
)

// AppointmentType is the catalog document for a bookable consultation.
// Maintained by editors in the CMS; this workflow only writes the stripe
// references back once they are minted.
type AppointmentType struct {
	ID              string `json:"_id"`
	Title           string `json:"title"`
	PriceCents      int64  `json:"priceCents"`
	DurationMinutes int    `json:"durationMinutes"`
	StripeProductID string `json:"stripeProductId"`
	StripePriceID   string `json:"stripePriceId"`
	ExamCatalogID   string `json:"qualiphyExamId"`
}

// UserAppointmentDoc is the content-store half of a PendingAppointment.
type UserAppointmentDoc struct {
	Type              string    `json:"_type"`
	UserID            string    `json:"userId"`
	UserEmail         string    `json:"userEmail"`
	DisplayName       string    `json:"displayName"`
	AppointmentTypeID string    `json:"appointmentTypeId"`
	FromSubscription  bool      `json:"fromSubscription"`
	SubscriptionID    string    `json:"subscriptionId,omitempty"`
	ExamCatalogID     string    `json:"qualiphyExamId,omitempty"`
	Status            string    `json:"status"`
	Notes             string    `json:"notes"`
	CheckoutSessionID string    `json:"checkoutSessionId"`
	PriceCents        int64     `json:"priceCents"`
	DurationMinutes   int       `json:"durationMinutes"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ExamResultPatch mirrors the relational reconciliation update onto the
// content document. Field names differ between the two stores.
type ExamResultPatch struct {
	Status       string
	ExamStatus   string
	ProviderName string
	Notes        string
	CompletedAt  time.Time
}

// AppointmentStore is the typed facade over the content client for the
// appointment workflow.
type AppointmentStore struct {
	client *Client
	logger *logging.Logger
}

// NewAppointmentStore wraps a content client.
func NewAppointmentStore(client *Client, logger *logging.Logger) *AppointmentStore {
	if client == nil {
		panic("content: client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentStore{client: client, logger: logger}
}

// GetAppointmentType fetches a catalog entry by id.
func (s *AppointmentStore) GetAppointmentType(ctx context.Context, id string) (*AppointmentType, error) {
	query := `*[_type == "appointmentType" && _id == $id][0]{
		_id, title, priceCents, durationMinutes, stripeProductId, stripePriceId, qualiphyExamId
	}`
	var at AppointmentType
	if err := s.client.Query(ctx, query, map[string]string{"id": id}, &at); err != nil {
		return nil, err
	}
	if at.ID == "" {
		return nil, ErrNotFound
	}
	return &at, nil
}

// SetStripeRefs persists freshly minted gateway references onto the catalog
// document. Empty values are left untouched.
func (s *AppointmentStore) SetStripeRefs(ctx context.Context, typeID, productID, priceID string) error {
	set := map[string]any{}
	if productID != "" {
		set["stripeProductId"] = productID
	}
	if priceID != "" {
		set["stripePriceId"] = priceID
	}
	if len(set) == 0 {
		return nil
	}
	if err := s.client.PatchDocument(ctx, typeID, set); err != nil {
		return fmt.Errorf("content: set stripe refs: %w", err)
	}
	return nil
}

// CreateUserAppointment creates the pending appointment document.
func (s *AppointmentStore) CreateUserAppointment(ctx context.Context, doc UserAppointmentDoc) (string, error) {
	doc.Type = "userAppointment"
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	id, err := s.client.CreateDocument(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("content: create user appointment: %w", err)
	}
	return id, nil
}

// MarkScheduled moves the document to scheduled once checkout completes.
func (s *AppointmentStore) MarkScheduled(ctx context.Context, docID string) error {
	if err := s.client.PatchDocument(ctx, docID, map[string]any{
		"status":    "scheduled",
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("content: mark scheduled: %w", err)
	}
	return nil
}

// ApplyExamResult records the consultation outcome on the document.
func (s *AppointmentStore) ApplyExamResult(ctx context.Context, docID string, patch ExamResultPatch) error {
	if err := s.client.PatchDocument(ctx, docID, map[string]any{
		"status":             patch.Status,
		"qualiphyExamStatus": patch.ExamStatus,
		"providerName":       patch.ProviderName,
		"notes":              patch.Notes,
		"completedAt":        patch.CompletedAt.UTC().Format(time.RFC3339),
		"updatedAt":          time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("content: apply exam result: %w", err)
	}
	return nil
}

// AppendNotes appends text to the document's notes. The content schema has no
// structured prescription field, so prescription events only land here as
// text.
func (s *AppointmentStore) AppendNotes(ctx context.Context, docID, notes string) error {
	query := `*[_id == $id][0]{notes}`
	var existing struct {
		Notes string `json:"notes"`
	}
	if err := s.client.Query(ctx, query, map[string]string{"id": docID}, &existing); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("content: read notes: %w", err)
	}
	combined := notes
	if existing.Notes != "" {
		combined = existing.Notes + "\n\n" + notes
	}
	if err := s.client.PatchDocument(ctx, docID, map[string]any{
		"notes":     combined,
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("content: append notes: %w", err)
	}
	return nil
}
