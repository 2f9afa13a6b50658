package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists appointment rows in the relational store.
type Repository struct {
	pool rowQuerier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q rowQuerier) *Repository {
	if q == nil {
		panic("appointments: querier required")
	}
	return &Repository{pool: q}
}

const appointmentColumns = `id, user_id, user_email, display_name, appointment_type_id,
		content_doc_id, checkout_session_id, customer_id, price_cents, duration_minutes,
		from_subscription, subscription_id, exam_catalog_id, patient_exam_id, status,
		qualiphy_exam_status, provider_name, notes, prescription_id,
		created_at, updated_at, completed_at`

// Create inserts a pending appointment row cross-referencing the content
// store document and the checkout session.
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	query := `
		INSERT INTO appointments (
			id, user_id, user_email, display_name, appointment_type_id,
			content_doc_id, checkout_session_id, customer_id, price_cents,
			duration_minutes, from_subscription, subscription_id, exam_catalog_id,
			status, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		a.ID,
		a.UserID,
		a.UserEmail,
		a.DisplayName,
		a.AppointmentTypeID,
		a.ContentDocID,
		a.CheckoutSessionID,
		a.CustomerID,
		a.PriceCents,
		a.DurationMinutes,
		a.FromSubscription,
		a.SubscriptionID,
		a.ExamCatalogID,
		string(a.Status),
		a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("appointments: insert failed: %w", err)
	}
	return nil
}

// FindByPatientExamID resolves the row the exam provider tagged with its
// per-patient exam identifier.
func (r *Repository) FindByPatientExamID(ctx context.Context, patientExamID string) (*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_exam_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, patientExamID))
}

// FindLatestByEmailStatus returns the most recently created row for the email
// in the given status. Used as the reconciler's fallback lookup.
func (r *Repository) FindLatestByEmailStatus(ctx context.Context, email string, status Status) (*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE user_email = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email, string(status)))
}

// MarkScheduledBySession moves the row for a completed checkout session from
// pending to scheduled and returns it for content-store mirroring.
func (r *Repository) MarkScheduledBySession(ctx context.Context, sessionID string) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE checkout_session_id = $1
		RETURNING ` + appointmentColumns + `
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, sessionID, string(StatusScheduled)))
}

// ExamResultUpdate carries the consultation outcome folded into the row.
type ExamResultUpdate struct {
	Status        Status
	ExamStatus    string
	ProviderName  string
	Notes         string
	PatientExamID string
	CompletedAt   time.Time
}

// ApplyExamResult records the consultation outcome on the row.
func (r *Repository) ApplyExamResult(ctx context.Context, id uuid.UUID, u ExamResultUpdate) error {
	query := `
		UPDATE appointments
		SET status = $2,
		    qualiphy_exam_status = $3,
		    provider_name = $4,
		    notes = $5,
		    patient_exam_id = $6,
		    completed_at = $7,
		    updated_at = now()
		WHERE id = $1
	`
	ct, err := r.pool.Exec(ctx, query,
		id, string(u.Status), u.ExamStatus, u.ProviderName, u.Notes, u.PatientExamID, u.CompletedAt)
	if err != nil {
		return fmt.Errorf("appointments: apply exam result: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyPrescription appends the prescription notes and stores the structured
// details as JSONB.
func (r *Repository) ApplyPrescription(ctx context.Context, id uuid.UUID, notes, prescriptionID string, details PrescriptionDetails) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("appointments: encode prescription details: %w", err)
	}
	query := `
		UPDATE appointments
		SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n\n' || $2 END,
		    prescription_id = $3,
		    prescription_details = $4,
		    updated_at = now()
		WHERE id = $1
	`
	ct, err := r.pool.Exec(ctx, query, id, notes, prescriptionID, payload)
	if err != nil {
		return fmt.Errorf("appointments: apply prescription: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.UserEmail,
		&a.DisplayName,
		&a.AppointmentTypeID,
		&a.ContentDocID,
		&a.CheckoutSessionID,
		&a.CustomerID,
		&a.PriceCents,
		&a.DurationMinutes,
		&a.FromSubscription,
		&a.SubscriptionID,
		&a.ExamCatalogID,
		&a.PatientExamID,
		&status,
		&a.ExamStatus,
		&a.ProviderName,
		&a.Notes,
		&a.PrescriptionID,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	a.Status = Status(status)
	return &a, nil
}
