package repository

import (
	"context"
	"time"

	"data-portal/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups return (nil, nil) when
// no row matches; errors are reserved for store failures.
type Repository interface {
	// GetByUser returns the session row for userID.
	GetByUser(ctx context.Context, userID string) (*domain.Session, error)
	// GetByUserAndToken returns the row matching both userID and tokenHash exactly.
	GetByUserAndToken(ctx context.Context, userID, tokenHash string) (*domain.Session, error)
	// Create inserts s.
	Create(ctx context.Context, s *domain.Session) error
	// Touch sets expires_at, and last_activity when activity is non-nil, on the matching row.
	Touch(ctx context.Context, userID, tokenHash string, expiresAt time.Time, activity *time.Time) error
	// DeleteByUser removes every row for userID. Deleting nothing is not an error.
	DeleteByUser(ctx context.Context, userID string) error
	// DeleteByUserAndToken removes the matching row. Deleting nothing is not an error.
	DeleteByUserAndToken(ctx context.Context, userID, tokenHash string) error
	// ListActive returns rows with expires_at after now, ordered by created_at.
	ListActive(ctx context.Context, now time.Time) ([]*domain.Session, error)
	// DeleteStale removes rows expired at expiredBy or idle since before idleBefore, returning how many were removed.
	DeleteStale(ctx context.Context, expiredBy, idleBefore time.Time) (int64, error)
}
