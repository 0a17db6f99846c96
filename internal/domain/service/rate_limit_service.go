// Package service defines the interfaces for domain services.
package service

import (
	"context"
	"time"

	"github.com/turtacn/throttle/internal/domain/models"
)

// WindowStore holds the request timestamp records of one named limiter.
//
// Hit runs the whole read-modify-write for key atomically: drop timestamps at or
// before now minus the store window, count what is left, and record now only when
// the count is below limit. Implementations return errors of the
// errors.ErrLimiterInternal kind for bookkeeping faults.
type WindowStore interface {
	// Hit records one attempt against key and reports the window state.
	Hit(ctx context.Context, key string, now time.Time, limit int) (models.WindowState, error)

	// Reset forgets every timestamp recorded for key.
	Reset(ctx context.Context, key string) error

	// Close releases background resources. It is safe to call more than once.
	Close() error
}

// RateLimiter decides admission for one named rule.
type RateLimiter interface {
	// Rule returns the configuration the limiter enforces.
	Rule() models.RateLimitRule

	// CheckLimit checks and, when admitted, records a request for key.
	// It never fails: internal faults are answered with a generous result.
	CheckLimit(ctx context.Context, key string) models.RateLimitResult

	// Check derives the key for subject from the rule's key strategy and checks it.
	Check(ctx context.Context, subject models.Subject) (string, models.RateLimitResult)

	// Reset clears the window of key.
	Reset(ctx context.Context, key string) error
}
