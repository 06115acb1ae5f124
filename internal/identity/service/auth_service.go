// Package service authenticates portal users against the credential store and
// hands successful logins to the session authority.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"data-portal/backend/internal/audit"
	"data-portal/backend/internal/security"
	sessiondomain "data-portal/backend/internal/session/domain"
	sessionservice "data-portal/backend/internal/session/service"
	userdomain "data-portal/backend/internal/user/domain"
)

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be at least 8 characters and mix letters and digits")
)

// LoginResult is the outcome of Login. When HasActiveSession is set no session
// was created and the caller must confirm with force.
type LoginResult struct {
	HasActiveSession bool
	SessionID        string
	UserID           string
	Username         string
	Role             sessiondomain.Role
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Sessions is the part of the session authority used at login and logout.
type Sessions interface {
	HasActiveSession(ctx context.Context, userID string) (bool, error)
	CreateSession(ctx context.Context, userID string, role sessiondomain.Role, meta sessionservice.Meta) (string, error)
	DestroySession(ctx context.Context, userID, sessionID string) error
	RecordLoginFailure(userID, reason string)
}

// AuthService implements password login and logout.
type AuthService struct {
	users    UserRepo
	sessions Sessions
	hasher   *security.Hasher
	audit    audit.AuditLogger
	log      *slog.Logger
}

// NewAuthService returns an AuthService with the given dependencies. auditLog and log may be nil.
func NewAuthService(users UserRepo, sessions Sessions, hasher *security.Hasher, auditLog audit.AuditLogger, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{users: users, sessions: sessions, hasher: hasher, audit: auditLog, log: log}
}

// Login verifies username/password. Without force, an existing unexpired
// session stops the login and is reported through LoginResult.HasActiveSession.
// With force, or when there is no live session, a new session replaces any
// previous one.
func (s *AuthService) Login(ctx context.Context, username, password string, force bool, meta sessionservice.Meta) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByID(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if err := s.hasher.Verify(hash, []byte(password)); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			s.log.Error("auth: password verification failed", "user_id", username, "error", err)
		}
		s.logEvent(ctx, username, audit.ActionLoginFailed, "invalid_credentials")
		s.sessions.RecordLoginFailure(username, "invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	active, err := s.sessions.HasActiveSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if active && !force {
		return &LoginResult{HasActiveSession: true, UserID: user.ID, Username: user.Username, Role: user.Role}, nil
	}

	sid, err := s.sessions.CreateSession(ctx, user.ID, user.Role, meta)
	if err != nil {
		return nil, err
	}
	if active {
		s.logEvent(ctx, user.ID, audit.ActionTakeover, "force_login")
	}
	s.logEvent(ctx, user.ID, audit.ActionLogin, string(user.Role))
	return &LoginResult{
		SessionID: sid,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
	}, nil
}

// Logout destroys the presented session. Missing ids are a no-op.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return nil
	}
	if err := s.sessions.DestroySession(ctx, userID, sessionID); err != nil {
		return err
	}
	s.logEvent(ctx, userID, audit.ActionLogout, "")
	return nil
}

func (s *AuthService) logEvent(ctx context.Context, userID, action, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, action, audit.ResourceSession, metadata)
	}
}

// ValidatePassword enforces the minimum strength for passwords set by cmd/seed.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasNumber = true
		}
	}
	if !hasLetter || !hasNumber {
		return ErrWeakPassword
	}
	return nil
}
