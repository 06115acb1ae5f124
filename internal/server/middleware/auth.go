package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"data-portal/backend/internal/session/domain"
)

// Reasons reported in 401 responses.
const (
	ReasonMissingCredentials = "missing_credentials"
	ReasonReplaced           = "replaced"
	ReasonExpired            = "expired"
	ReasonInactivity         = "inactivity"
	ReasonError              = "error"
)

// Response headers of the 401 contract.
const (
	HeaderSessionExpired       = "X-Session-Expired"
	HeaderSessionExpiredReason = "X-Session-Expired-Reason"
)

var reasonMessages = map[string]string{
	ReasonMissingCredentials: "Authentication required",
	ReasonReplaced:           "Your session was ended because you signed in elsewhere",
	ReasonExpired:            "Your session has expired",
	ReasonInactivity:         "Your session expired due to inactivity",
	ReasonError:              "Unable to verify your session",
}

// gin context keys set by RequireSession.
const (
	ContextUserID    = "user_id"
	ContextRole      = "role"
	ContextSessionID = "session_id"
	ContextSession   = "session"
)

// SessionValidator is the part of the session authority used to authenticate requests.
type SessionValidator interface {
	ValidateSession(ctx context.Context, userID, sessionID string) domain.Validation
	NeedsRefresh(s *domain.Session) bool
	ExtendSession(ctx context.Context, userID, sessionID string) bool
}

// Authenticator resolves presented credentials to an identity or a 401.
type Authenticator struct {
	sessions   SessionValidator
	strategies []Strategy
	log        *slog.Logger
}

// NewAuthenticator returns an Authenticator. Nil strategies means DefaultStrategies.
func NewAuthenticator(sessions SessionValidator, strategies []Strategy, log *slog.Logger) *Authenticator {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{sessions: sessions, strategies: strategies, log: log}
}

// Resolution is the outcome of Resolve. When Authenticated is false Reason is
// one of the 401 reasons.
type Resolution struct {
	Authenticated bool
	UserID        string
	Role          domain.Role
	SessionID     string
	Session       *domain.Session
	Reason        string
}

// Resolve authenticates r. A valid session close to expiry is extended; a
// failed extension is logged and does not affect the result.
func (a *Authenticator) Resolve(ctx context.Context, r *http.Request) Resolution {
	creds, ok := ExtractCredentials(r, a.strategies)
	if !ok || !creds.Complete() {
		return Resolution{Reason: ReasonMissingCredentials}
	}
	v := a.sessions.ValidateSession(ctx, creds.UserID, creds.SessionID)
	if !v.Valid {
		return Resolution{Reason: ResponseReason(v.Reason)}
	}

	res := Resolution{
		Authenticated: true,
		UserID:        creds.UserID,
		SessionID:     creds.SessionID,
		Session:       v.Session,
	}
	if v.Session != nil {
		res.Role = v.Session.Role
		if creds.ClaimedRole != "" && creds.ClaimedRole != string(v.Session.Role) {
			a.log.Warn("auth: presented role does not match session",
				"user_id", creds.UserID, "claimed_role", creds.ClaimedRole, "session_role", string(v.Session.Role), "source", creds.Source)
		}
		if a.sessions.NeedsRefresh(v.Session) && !a.sessions.ExtendSession(ctx, creds.UserID, creds.SessionID) {
			a.log.Warn("auth: session refresh failed", "user_id", creds.UserID)
		}
	} else {
		// store throttled: the row could not be read, grant least privilege
		res.Role = domain.RoleGuest
	}
	return res
}

// RequireSession returns gin middleware that aborts with the 401 contract
// unless the request carries a valid session. On success the identity is put
// on the request context and the gin context.
func (a *Authenticator) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		res := a.Resolve(c.Request.Context(), c.Request)
		if !res.Authenticated {
			AbortUnauthenticated(c, res.Reason)
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), res.UserID, string(res.Role), res.SessionID))
		c.Set(ContextUserID, res.UserID)
		c.Set(ContextRole, string(res.Role))
		c.Set(ContextSessionID, res.SessionID)
		if res.Session != nil {
			c.Set(ContextSession, res.Session)
		}
		c.Next()
	}
}

// ResponseReason maps a validation reason to the reason reported to clients.
// A presented session that no longer exists was replaced by a newer login.
func ResponseReason(r domain.Reason) string {
	switch r {
	case domain.ReasonNotFound:
		return ReasonReplaced
	case domain.ReasonExpired:
		return ReasonExpired
	case domain.ReasonInactivity:
		return ReasonInactivity
	default:
		return ReasonError
	}
}

// AbortUnauthenticated writes the 401 contract: X-Session-Expired headers and
// a JSON body {error, sessionExpired, reason}.
func AbortUnauthenticated(c *gin.Context, reason string) {
	msg, ok := reasonMessages[reason]
	if !ok {
		msg = reasonMessages[ReasonError]
	}
	c.Header(HeaderSessionExpired, "true")
	body := gin.H{"error": msg, "sessionExpired": true}
	if reason != "" {
		c.Header(HeaderSessionExpiredReason, reason)
		body["reason"] = reason
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}
