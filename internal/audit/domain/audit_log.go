package domain

import "time"

// AuditLog represents an audit event.
type AuditLog struct {
	ID        string
	UserID    string // empty for events without a resolved principal (e.g. failed login for unknown user)
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
