package repository

import (
	"context"

	"data-portal/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	// GetByID returns the user with login name id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// Upsert creates the user or replaces its name, password hash and role.
	Upsert(ctx context.Context, u *domain.User) error
}
