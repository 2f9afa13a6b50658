package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wellora/telehealth-booking/pkg/logging"
)

// VelocityChecker limits booking attempts per email to slow down card-testing
// and duplicate bookings. Checks fail open when Redis is unavailable.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

// VelocityConfig contains velocity check configuration.
type VelocityConfig struct {
	MaxBookingsPerEmail int
	BookingWindowHours  int
	EnableBookingCheck  bool
}

// DefaultVelocityConfig returns default velocity limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxBookingsPerEmail: 5,
		BookingWindowHours:  24,
		EnableBookingCheck:  true,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// NewVelocityChecker creates a new velocity checker.
func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if logger == nil {
		logger = logging.Default()
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// CheckBookingVelocity checks if another booking attempt is allowed for the
// given email.
func (v *VelocityChecker) CheckBookingVelocity(ctx context.Context, email string) (*VelocityResult, error) {
	if !v.config.EnableBookingCheck || v.redis == nil {
		return &VelocityResult{Allowed: true}, nil
	}

	key := fmt.Sprintf("velocity:booking:%s", email)
	window := time.Duration(v.config.BookingWindowHours) * time.Hour

	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		// Fail open - allow the booking if Redis is down
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}

	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil {
		ttl = window
	}

	result := &VelocityResult{
		Allowed:      int(count) <= v.config.MaxBookingsPerEmail,
		CurrentCount: int(count),
		MaxAllowed:   v.config.MaxBookingsPerEmail,
		WindowExpiry: time.Now().Add(ttl),
	}

	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d booking attempts in %d hours", v.config.MaxBookingsPerEmail, v.config.BookingWindowHours)
		v.logger.Warn("booking velocity exceeded",
			"email", email,
			"count", count,
			"max", v.config.MaxBookingsPerEmail,
		)
	}

	return result, nil
}

// ResetBookingVelocity clears the counter for an email (admin use).
func (v *VelocityChecker) ResetBookingVelocity(ctx context.Context, email string) error {
	key := fmt.Sprintf("velocity:booking:%s", email)
	return v.redis.Del(ctx, key).Err()
}
