package domain

import "time"

// EventType names a session lifecycle event.
type EventType string

const (
	EventSessionCreated     EventType = "session_created"
	EventSessionRenewed     EventType = "session_renewed"
	EventSessionInvalidated EventType = "session_invalidated"
	EventSessionDestroyed   EventType = "session_destroyed"
	EventLoginFailed        EventType = "login_failed"
)

// SessionEvent is one session lifecycle event. It is the JSON value written to
// Kafka and the attribute set of the OTel log record.
type SessionEvent struct {
	EventType EventType `json:"eventType"`
	UserID    string    `json:"userId,omitempty"`
	// SessionHash is the stored digest of the session id; raw ids never leave the authority.
	SessionHash string    `json:"sessionHash,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
