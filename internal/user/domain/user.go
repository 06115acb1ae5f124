package domain

import (
	"errors"
	"time"

	sessiondomain "data-portal/backend/internal/session/domain"
)

// User is a portal login principal. ID is the login name.
type User struct {
	ID           string
	Username     string // display name
	PasswordHash string
	Role         sessiondomain.Role
	CreatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("user id is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Username == "" {
		u.Username = u.ID
	}
	if u.Role == "" {
		u.Role = sessiondomain.RoleGuest
	}
	return nil
}
