// Package store provides read access to the error log written by the bot core.
package store

import (
	"context"
	"time"

	"github.com/ashureev/bot-console/internal/domain"
)

// MaxRecentErrors caps how many error_log rows a single listing returns.
const MaxRecentErrors = 50

// Repository defines the read-only log query gateway.
type Repository interface {
	// RecentErrors returns at most MaxRecentErrors rows, newest first.
	// A limit outside 1..MaxRecentErrors is clamped.
	RecentErrors(ctx context.Context, limit int) ([]domain.ErrorLogRecord, error)

	// ErrorStats counts all rows and the rows created at or after since.
	ErrorStats(ctx context.Context, since time.Time) (*domain.ErrorStats, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecentErrors {
		return MaxRecentErrors
	}
	return limit
}
