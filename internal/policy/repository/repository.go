package repository

import (
	"context"

	"data-portal/backend/internal/policy/domain"
)

// Repository defines persistence for access policies.
type Repository interface {
	// ListEnabled returns enabled policies ordered by name.
	ListEnabled(ctx context.Context) ([]*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
}
