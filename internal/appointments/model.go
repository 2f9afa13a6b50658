package appointments

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment row. Rows are created as
// pending, move to scheduled once the checkout session completes, and end as
// completed or deferred when the exam provider reports back.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusDeferred  Status = "deferred"
)

// StatusFromExam maps the exam provider's status string to ours. Only a
// deferred exam keeps the appointment open; Approved, N/A and anything
// unrecognized all count as completed.
func StatusFromExam(examStatus string) Status {
	switch examStatus {
	case "Deferred":
		return StatusDeferred
	case "Approved":
		return StatusCompleted
	default:
		return StatusCompleted
	}
}

// Appointment is the relational-store row for one booking attempt. It is
// cross-linked to the content-store document via ContentDocID.
type Appointment struct {
	ID                uuid.UUID
	UserID            string
	UserEmail         string
	DisplayName       string
	AppointmentTypeID string
	ContentDocID      string
	CheckoutSessionID string
	CustomerID        uuid.UUID
	PriceCents        int64
	DurationMinutes   int
	FromSubscription  bool
	SubscriptionID    string
	ExamCatalogID     string
	PatientExamID     string
	Status            Status
	ExamStatus        string
	ProviderName      string
	Notes             string
	PrescriptionID    string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// PrescriptionDetails is the structured prescription payload stored as JSONB
// on the relational row. The content store only receives the notes text.
type PrescriptionDetails struct {
	DrugName       string `json:"drug_name"`
	Strength       string `json:"strength"`
	Quantity       string `json:"quantity"`
	Units          string `json:"units"`
	Directions     string `json:"directions"`
	DurationDays   int    `json:"duration_days"`
	Refills        int    `json:"refills"`
	PrescriptionID string `json:"prescription_id"`
	Schedule       string `json:"schedule"`
}

// DisplayNameOrEmailLocal falls back to the email's local part when the
// booking request carried no display name.
func DisplayNameOrEmailLocal(name, email string) string {
	if strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
