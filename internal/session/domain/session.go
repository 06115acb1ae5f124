package domain

import "time"

// Role is the principal role captured from the credential store at login.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

// ParseRole maps a stored role name to a Role; unknown values become RoleGuest.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleGuest
}

// Session is the server-side login record for one user. At most one live
// session exists per UserID.
type Session struct {
	UserID string
	// TokenHash is the SHA-256 of the opaque session id handed to the client.
	TokenHash    string
	Role         Role
	ExpiresAt    time.Time
	LastActivity *time.Time // nil for rows written before activity tracking
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}

// EffectiveLastActivity returns LastActivity, or CreatedAt when it was never set.
func (s *Session) EffectiveLastActivity() time.Time {
	if s.LastActivity != nil {
		return *s.LastActivity
	}
	return s.CreatedAt
}

// Reason explains why validation failed.
type Reason string

const (
	ReasonNone       Reason = "none"
	ReasonNotFound   Reason = "not_found"
	ReasonExpired    Reason = "expired"
	ReasonInactivity Reason = "inactivity"
	ReasonError      Reason = "error"
)

// Validation is the outcome of validating a presented session.
type Validation struct {
	Valid  bool
	Reason Reason
	// Session is the stored row when Valid and the lookup returned it; nil when
	// the row could not be read (e.g. the rate-limit fallback).
	Session *Session
}
