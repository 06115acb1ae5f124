package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"data-portal/backend/internal/session/domain"
)

// MemoryRepository is an in-process Repository for development (SESSION_STORE=memory)
// and tests. Stored sessions are copied on the way in and out.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[string]domain.Session // by token hash
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]domain.Session)}
}

func (r *MemoryRepository) GetByUser(ctx context.Context, userID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.Session
	for _, s := range r.m {
		if s.UserID != userID {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			c := s
			latest = &c
		}
	}
	return latest, nil
}

func (r *MemoryRepository) GetByUserAndToken(ctx context.Context, userID, tokenHash string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.m[tokenHash]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	return &s, nil
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	if s.LastActivity != nil {
		t := *s.LastActivity
		c.LastActivity = &t
	}
	r.m[s.TokenHash] = c
	return nil
}

func (r *MemoryRepository) Touch(ctx context.Context, userID, tokenHash string, expiresAt time.Time, activity *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[tokenHash]
	if !ok || s.UserID != userID {
		return nil
	}
	s.ExpiresAt = expiresAt
	if activity != nil {
		t := *activity
		s.LastActivity = &t
	}
	r.m[tokenHash] = s
	return nil
}

func (r *MemoryRepository) DeleteByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.m {
		if s.UserID == userID {
			delete(r.m, k)
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteByUserAndToken(ctx context.Context, userID, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[tokenHash]; ok && s.UserID == userID {
		delete(r.m, tokenHash)
	}
	return nil
}

func (r *MemoryRepository) ListActive(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Session
	for _, s := range r.m {
		if s.ExpiresAt.After(now) {
			c := s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) DeleteStale(ctx context.Context, expiredBy, idleBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.m {
		if !s.ExpiresAt.After(expiredBy) || s.EffectiveLastActivity().Before(idleBefore) {
			delete(r.m, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
