// Package handler exposes the session authority over HTTP: login, logout,
// activity and status for the browser client plus the admin session console.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	identityservice "data-portal/backend/internal/identity/service"
	"data-portal/backend/internal/server/middleware"
	"data-portal/backend/internal/session/domain"
	sessionservice "data-portal/backend/internal/session/service"
)

// Reasons reported by the status route. They follow the validation reasons
// except that store failures are reported as db_error.
const (
	statusMissingCredentials = "missing_credentials"
	statusDBError            = "db_error"
)

// Sessions is the part of the session authority used by the handlers.
type Sessions interface {
	ValidateSession(ctx context.Context, userID, sessionID string) domain.Validation
	NeedsRefresh(s *domain.Session) bool
	ExtendSession(ctx context.Context, userID, sessionID string) bool
	RenewSession(ctx context.Context, userID, sessionID string) bool
	ListActiveSessions(ctx context.Context) ([]*domain.Session, error)
	RevokeUser(ctx context.Context, actorID, userID string) error
}

// Auth performs credential checks and session issuance for login and logout.
type Auth interface {
	Login(ctx context.Context, username, password string, force bool, meta sessionservice.Meta) (*identityservice.LoginResult, error)
	Logout(ctx context.Context, userID, sessionID string) error
}

// CookieConfig holds the attributes of the session cookies.
type CookieConfig struct {
	Secure bool
	Domain string
}

// Handler serves the session routes.
type Handler struct {
	sessions Sessions
	auth     Auth
	cookies  CookieConfig
}

// NewHandler returns a Handler.
func NewHandler(sessions Sessions, auth Auth, cookies CookieConfig) *Handler {
	return &Handler{sessions: sessions, auth: auth, cookies: cookies}
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	ForceLogin bool   `json:"forceLogin"`
}

type sessionData struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Role      string `json:"role"`
}

// Login verifies credentials and issues a session. When the user already has
// a live session and forceLogin is not set, it reports that instead so the
// client can ask before taking over.
func (h *Handler) Login(c *gin.Context) {
	var body loginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}
	res, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(body.Username), body.Password, body.ForceLogin, sessionservice.Meta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if errors.Is(err, identityservice.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	if res.HasActiveSession {
		c.JSON(http.StatusOK, gin.H{"hasActiveSession": true})
		return
	}

	h.setSessionCookies(c, res.UserID, res.SessionID, string(res.Role))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"role":    string(res.Role),
		"sessionData": sessionData{
			SessionID: res.SessionID,
			UserID:    res.UserID,
			Username:  res.Username,
			Role:      string(res.Role),
		},
	})
}

// Logout destroys the presented session, if any, and clears the cookies.
// It always succeeds from the client's point of view.
func (h *Handler) Logout(c *gin.Context) {
	creds, ok := middleware.ExtractCredentials(c.Request, middleware.DefaultStrategies())
	if ok && creds.Complete() {
		if err := h.auth.Logout(c.Request.Context(), creds.UserID, creds.SessionID); err != nil {
			c.Error(err)
		}
	}
	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Activity is the client's activity beacon: it renews the session and restarts
// the inactivity timer.
func (h *Handler) Activity(c *gin.Context) {
	creds, ok := middleware.HeaderStrategy{}.Extract(c.Request)
	if !ok {
		middleware.AbortUnauthenticated(c, middleware.ReasonMissingCredentials)
		return
	}
	if !h.sessions.RenewSession(c.Request.Context(), creds.UserID, creds.SessionID) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status reports whether the header credentials name a live session. A
// session close to expiry is extended.
func (h *Handler) Status(c *gin.Context) {
	creds, ok := middleware.HeaderStrategy{}.Extract(c.Request)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"isLoggedIn": false, "reason": statusMissingCredentials})
		return
	}
	ctx := c.Request.Context()
	v := h.sessions.ValidateSession(ctx, creds.UserID, creds.SessionID)
	switch {
	case v.Valid:
		resp := gin.H{"isLoggedIn": true, "userId": creds.UserID}
		if v.Session != nil {
			if h.sessions.NeedsRefresh(v.Session) {
				h.sessions.ExtendSession(ctx, creds.UserID, creds.SessionID)
			}
			resp["role"] = string(v.Session.Role)
		}
		c.JSON(http.StatusOK, resp)
	case v.Reason == domain.ReasonError:
		c.JSON(http.StatusInternalServerError, gin.H{"isLoggedIn": false, "reason": statusDBError})
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"isLoggedIn": false, "reason": string(v.Reason)})
	}
}

// Session returns the caller's identity and session expiry. Requires
// RequireSession.
func (h *Handler) Session(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	role, _ := middleware.GetRole(c.Request.Context())
	resp := gin.H{"userId": userID, "role": role}
	if v, ok := c.Get(middleware.ContextSession); ok {
		if s, ok := v.(*domain.Session); ok {
			resp["expiresAt"] = s.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, resp)
}

type sessionView struct {
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	ExpiresAt    string `json:"expiresAt"`
	LastActivity string `json:"lastActivity"`
	IPAddress    string `json:"ipAddress,omitempty"`
	UserAgent    string `json:"userAgent,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

func toSessionView(s *domain.Session) sessionView {
	return sessionView{
		UserID:       s.UserID,
		Role:         string(s.Role),
		ExpiresAt:    s.ExpiresAt.UTC().Format(time.RFC3339),
		LastActivity: s.EffectiveLastActivity().UTC().Format(time.RFC3339),
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListSessions returns every live session. Admin only via policy.
func (h *Handler) ListSessions(c *gin.Context) {
	list, err := h.sessions.ListActiveSessions(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sessions"})
		return
	}
	out := make([]sessionView, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionView(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// RevokeSession ends the sessions of the user named in the path. Admin only
// via policy.
func (h *Handler) RevokeSession(c *gin.Context) {
	target := c.Param("userId")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}
	actor, _ := middleware.GetUserID(c.Request.Context())
	if err := h.sessions.RevokeUser(c.Request.Context(), actor, target); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Cookies are browser-session cookies; expiry is enforced server-side.
func (h *Handler) setSessionCookies(c *gin.Context, userID, sessionID, role string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieMarker, middleware.MarkerValue, 0, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.CookieUserID, userID, 0, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(middleware.CookieSessionID, sessionID, 0, "/", h.cookies.Domain, h.cookies.Secure, true)
	// readable by the client for UI decisions only
	c.SetCookie(middleware.CookieRole, role, 0, "/", h.cookies.Domain, h.cookies.Secure, false)
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	for _, name := range []string{middleware.CookieMarker, middleware.CookieUserID, middleware.CookieSessionID, middleware.CookieRole} {
		c.SetCookie(name, "", -1, "/", h.cookies.Domain, h.cookies.Secure, name != middleware.CookieRole)
	}
}
