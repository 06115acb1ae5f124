// Package seed creates the built-in portal accounts.
package seed

import (
	"context"
	"fmt"
	"time"

	identityservice "data-portal/backend/internal/identity/service"
	"data-portal/backend/internal/security"
	sessiondomain "data-portal/backend/internal/session/domain"
	"data-portal/backend/internal/user/domain"
)

// Upserter stores users. Implemented by the user repositories.
type Upserter interface {
	Upsert(ctx context.Context, u *domain.User) error
}

// Account is a user to create with a plaintext password.
type Account struct {
	ID       string
	Username string
	Role     sessiondomain.Role
	Password string
}

// DefaultAccounts returns the admin and guest accounts with the given passwords.
func DefaultAccounts(adminPassword, guestPassword string) []Account {
	return []Account{
		{ID: "admin", Username: "Administrator", Role: sessiondomain.RoleAdmin, Password: adminPassword},
		{ID: "guest", Username: "Guest", Role: sessiondomain.RoleGuest, Password: guestPassword},
	}
}

// Apply hashes and upserts every account that has a password and returns how
// many were written. A weak password stops the run before anything is written.
func Apply(ctx context.Context, repo Upserter, hasher *security.Hasher, accounts []Account) (int, error) {
	for _, a := range accounts {
		if a.Password == "" {
			continue
		}
		if err := identityservice.ValidatePassword(a.Password); err != nil {
			return 0, fmt.Errorf("account %s: %w", a.ID, err)
		}
	}
	now := time.Now().UTC()
	n := 0
	for _, a := range accounts {
		if a.Password == "" {
			continue
		}
		hash, err := hasher.Hash([]byte(a.Password))
		if err != nil {
			return n, fmt.Errorf("hash password for %s: %w", a.ID, err)
		}
		u := &domain.User{ID: a.ID, Username: a.Username, PasswordHash: hash, Role: a.Role, CreatedAt: now}
		if err := repo.Upsert(ctx, u); err != nil {
			return n, fmt.Errorf("upsert %s: %w", a.ID, err)
		}
		n++
	}
	return n, nil
}
