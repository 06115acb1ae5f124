package repository

import (
	"context"
	"sync"

	"data-portal/backend/internal/user/domain"
)

// MemoryRepository keeps users in process. Used with SESSION_STORE=memory and in tests.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[string]domain.User
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]domain.User)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *u
	if prev, ok := r.m[u.ID]; ok {
		c.CreatedAt = prev.CreatedAt
	}
	r.m[u.ID] = c
	return nil
}
