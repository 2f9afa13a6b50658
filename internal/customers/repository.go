package customers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no customer mapping exists for the user.
var ErrNotFound = errors.New("customers: not found")

// Customer maps an application user to their payment-gateway customer record.
// The gateway is the source of truth for StripeCustomerID; this table only
// keeps the mapping so a customer is created at most once per user.
type Customer struct {
	ID               uuid.UUID
	UserID           string
	StripeCustomerID string
	Email            string
	CreatedAt        time.Time
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores customer mappings in the relational store.
type Repository struct {
	pool rowQuerier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("customers: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q rowQuerier) *Repository {
	return &Repository{pool: q}
}

// GetByUserID fetches the mapping for a user.
func (r *Repository) GetByUserID(ctx context.Context, userID string) (*Customer, error) {
	query := `
		SELECT id, user_id, stripe_customer_id, email, created_at
		FROM customers
		WHERE user_id = $1
	`
	var c Customer
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&c.ID, &c.UserID, &c.StripeCustomerID, &c.Email, &c.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("customers: select failed: %w", err)
	}
	return &c, nil
}

// Create inserts a mapping for a freshly created gateway customer.
func (r *Repository) Create(ctx context.Context, userID, stripeCustomerID, email string) (*Customer, error) {
	id := uuid.New()
	query := `
		INSERT INTO customers (id, user_id, stripe_customer_id, email)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.pool.QueryRow(ctx, query, id, userID, stripeCustomerID, email).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("customers: insert failed: %w", err)
	}
	return &Customer{
		ID:               id,
		UserID:           userID,
		StripeCustomerID: stripeCustomerID,
		Email:            email,
		CreatedAt:        createdAt,
	}, nil
}
