package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no matching active subscription exists.
var ErrNotFound = errors.New("subscriptions: not found")

// Subscription is the slice of a user's plan this workflow reads: whether it
// grants appointment access and at what discount.
type Subscription struct {
	ID                         string
	UserID                     string
	Status                     string
	AllowsAppointments         bool
	AppointmentDiscountPercent int
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads subscriptions from the relational store. This workflow
// never writes them.
type Repository struct {
	pool rowQuerier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("subscriptions: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q rowQuerier) *Repository {
	return &Repository{pool: q}
}

// GetActiveForUser resolves a subscription by id, verifying it belongs to the
// user, is active, and grants appointment access.
func (r *Repository) GetActiveForUser(ctx context.Context, subscriptionID, userID string) (*Subscription, error) {
	query := `
		SELECT id, user_id, status, allows_appointments, appointment_discount_percent
		FROM subscriptions
		WHERE id = $1 AND user_id = $2 AND status = 'active' AND allows_appointments
	`
	var s Subscription
	if err := r.pool.QueryRow(ctx, query, subscriptionID, userID).Scan(
		&s.ID, &s.UserID, &s.Status, &s.AllowsAppointments, &s.AppointmentDiscountPercent,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("subscriptions: select failed: %w", err)
	}
	return &s, nil
}
