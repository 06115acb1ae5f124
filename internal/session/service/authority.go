// Package service implements the session authority: issuing, validating,
// renewing and revoking server-side login sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"data-portal/backend/internal/audit"
	"data-portal/backend/internal/platform/retry"
	"data-portal/backend/internal/security"
	"data-portal/backend/internal/session/domain"
	"data-portal/backend/internal/session/repository"
	"data-portal/backend/internal/telemetry"
	telemetrydomain "data-portal/backend/internal/telemetry/domain"
)

// Reference durations used when Options leaves a duration unset.
const (
	DefaultTTL              = 10 * time.Minute
	DefaultInactivityWindow = 10 * time.Minute
	DefaultRefreshWindow    = 5 * time.Minute
	DefaultRetryBaseDelay   = 500 * time.Millisecond
)

const eventSource = "session-authority"

// ErrMissingUserID is returned by CreateSession when no user id is given.
var ErrMissingUserID = errors.New("user id is required")

// Metrics receives session counters. Implemented by telemetry/otel.SessionMetrics.
type Metrics interface {
	Validation(ctx context.Context, reason string)
	Created(ctx context.Context)
	Purged(ctx context.Context, n int64)
}

// Options configures an Authority. Zero durations fall back to the defaults
// above; RetryMax is taken as given.
type Options struct {
	TTL              time.Duration
	InactivityWindow time.Duration
	RefreshWindow    time.Duration
	// RetryMax is the number of lookup retries after the first attempt. Zero
	// disables retries.
	RetryMax       int
	RetryBaseDelay time.Duration
	// PurgeGrace is how long a dead session is kept before PurgeExpired may
	// remove it, so that a returning client still learns why it was logged
	// out. Zero means TTL.
	PurgeGrace time.Duration

	Logger  *slog.Logger
	Audit   audit.AuditLogger
	Events  telemetry.EventEmitter
	Metrics Metrics
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Meta is request information recorded on a new session.
type Meta struct {
	IPAddress string
	UserAgent string
}

// Authority owns the session lifecycle over a Repository.
type Authority struct {
	repo       repository.Repository
	ttl        time.Duration
	inactivity time.Duration
	refresh    time.Duration
	purgeGrace time.Duration
	lookup     retry.Policy
	now        func() time.Time
	log        *slog.Logger
	audit      audit.AuditLogger
	events     telemetry.EventEmitter
	metrics    Metrics
}

// NewAuthority returns an Authority storing sessions in repo.
func NewAuthority(repo repository.Repository, opts Options) *Authority {
	a := &Authority{
		repo:       repo,
		ttl:        orDefault(opts.TTL, DefaultTTL),
		inactivity: orDefault(opts.InactivityWindow, DefaultInactivityWindow),
		refresh:    orDefault(opts.RefreshWindow, DefaultRefreshWindow),
		now:        opts.Now,
		log:        opts.Logger,
		audit:      opts.Audit,
		events:     opts.Events,
		metrics:    opts.Metrics,
	}
	a.purgeGrace = orDefault(opts.PurgeGrace, a.ttl)
	if a.now == nil {
		a.now = time.Now
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	retries := opts.RetryMax
	if retries < 0 {
		retries = 0
	}
	a.lookup = retry.Policy{
		MaxRetries: retries,
		Backoff:    retry.Linear(orDefault(opts.RetryBaseDelay, DefaultRetryBaseDelay)),
		Permanent:  repository.IsRateLimited,
	}
	return a
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// TTL returns the session lifetime granted at creation and renewal.
func (a *Authority) TTL() time.Duration { return a.ttl }

// CreateSession replaces any session of userID with a new one and returns the
// raw session id for the client. Callers verify credentials first and decide
// about an existing session with HasActiveSession.
func (a *Authority) CreateSession(ctx context.Context, userID string, role domain.Role, meta Meta) (string, error) {
	if userID == "" {
		return "", ErrMissingUserID
	}
	// a failed delete must not block the login; the old row then simply fails
	// validation once the new one is inserted
	if err := a.repo.DeleteByUser(ctx, userID); err != nil {
		a.log.Warn("session: delete previous sessions failed", "user_id", userID, "error", err)
	}
	token, err := security.NewSessionToken()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	now := a.now().UTC()
	s := &domain.Session{
		UserID:       userID,
		TokenHash:    security.HashSessionToken(token),
		Role:         role,
		ExpiresAt:    now.Add(a.ttl),
		LastActivity: &now,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		CreatedAt:    now,
	}
	if err := a.repo.Create(ctx, s); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if a.metrics != nil {
		a.metrics.Created(ctx)
	}
	a.emit(telemetrydomain.EventSessionCreated, userID, s.TokenHash, "")
	a.log.Info("session created", "user_id", userID, "role", string(role), "expires_at", s.ExpiresAt)
	return token, nil
}

// HasActiveSession reports whether userID holds an unexpired session. An
// expired row found on the way is deleted.
func (a *Authority) HasActiveSession(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	s, err := a.repo.GetByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	if s == nil {
		return false, nil
	}
	if s.ExpiresAt.After(a.now()) {
		return true, nil
	}
	if err := a.repo.DeleteByUserAndToken(ctx, userID, s.TokenHash); err != nil {
		a.log.Warn("session: lazy cleanup failed", "user_id", userID, "error", err)
	}
	return false, nil
}

// ValidateSession checks the presented session. Store lookups are retried with
// linear backoff; a throttled store resolves to valid so that users are not
// logged out en masse, any other exhausted failure resolves to ReasonError.
func (a *Authority) ValidateSession(ctx context.Context, userID, sessionID string) domain.Validation {
	v := a.validate(ctx, userID, sessionID)
	if a.metrics != nil {
		a.metrics.Validation(ctx, string(v.Reason))
	}
	return v
}

func (a *Authority) validate(ctx context.Context, userID, sessionID string) domain.Validation {
	if userID == "" || sessionID == "" {
		return domain.Validation{Reason: domain.ReasonNotFound}
	}
	hash := security.HashSessionToken(sessionID)
	s, err := retry.DoValue(ctx, a.lookup, func(ctx context.Context) (*domain.Session, error) {
		return a.repo.GetByUserAndToken(ctx, userID, hash)
	})
	if err != nil {
		if repository.IsRateLimited(err) {
			a.log.Warn("session: store throttled, treating session as valid", "user_id", userID, "error", err)
			return domain.Validation{Valid: true, Reason: domain.ReasonNone}
		}
		a.log.Error("session: validation lookup failed", "user_id", userID, "error", err)
		return domain.Validation{Reason: domain.ReasonError}
	}
	if s == nil {
		return domain.Validation{Reason: domain.ReasonNotFound}
	}

	now := a.now()
	if !s.ExpiresAt.After(now) {
		a.invalidate(ctx, s, domain.ReasonExpired)
		return domain.Validation{Reason: domain.ReasonExpired}
	}
	if now.Sub(s.EffectiveLastActivity()) > a.inactivity {
		a.invalidate(ctx, s, domain.ReasonInactivity)
		return domain.Validation{Reason: domain.ReasonInactivity}
	}
	return domain.Validation{Valid: true, Reason: domain.ReasonNone, Session: s}
}

func (a *Authority) invalidate(ctx context.Context, s *domain.Session, reason domain.Reason) {
	if err := a.repo.DeleteByUserAndToken(ctx, s.UserID, s.TokenHash); err != nil {
		a.log.Warn("session: delete invalid session failed", "user_id", s.UserID, "reason", string(reason), "error", err)
	}
	if a.audit != nil {
		a.audit.LogEvent(ctx, s.UserID, audit.ActionInvalidated, audit.ResourceSession, string(reason))
	}
	a.emit(telemetrydomain.EventSessionInvalidated, s.UserID, s.TokenHash, string(reason))
	a.log.Info("session invalidated", "user_id", s.UserID, "reason", string(reason))
}

// RenewSession handles an activity signal: expiry moves to now+TTL and the
// inactivity timer restarts. It returns false on store failure, which callers
// must not treat as invalidating the session.
func (a *Authority) RenewSession(ctx context.Context, userID, sessionID string) bool {
	now := a.now().UTC()
	return a.touch(ctx, userID, sessionID, &now)
}

// ExtendSession moves expiry to now+TTL without counting as activity. Used for
// sessions close to expiry on authenticated requests.
func (a *Authority) ExtendSession(ctx context.Context, userID, sessionID string) bool {
	return a.touch(ctx, userID, sessionID, nil)
}

func (a *Authority) touch(ctx context.Context, userID, sessionID string, activity *time.Time) bool {
	if userID == "" || sessionID == "" {
		return false
	}
	hash := security.HashSessionToken(sessionID)
	expiresAt := a.now().UTC().Add(a.ttl)
	if err := a.repo.Touch(ctx, userID, hash, expiresAt, activity); err != nil {
		a.log.Warn("session: renew failed", "user_id", userID, "error", err)
		return false
	}
	if activity != nil {
		a.emit(telemetrydomain.EventSessionRenewed, userID, hash, "activity")
	} else {
		a.emit(telemetrydomain.EventSessionRenewed, userID, hash, "refresh_window")
	}
	return true
}

// NeedsRefresh reports whether s expires within the refresh window.
func (a *Authority) NeedsRefresh(s *domain.Session) bool {
	if s == nil {
		return false
	}
	return s.ExpiresAt.Sub(a.now()) <= a.refresh
}

// DestroySession deletes the user's session. An empty sessionID deletes every
// session of the user. Destroying a missing session is not an error.
func (a *Authority) DestroySession(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return nil
	}
	var hash string
	var err error
	if sessionID == "" {
		err = a.repo.DeleteByUser(ctx, userID)
	} else {
		hash = security.HashSessionToken(sessionID)
		err = a.repo.DeleteByUserAndToken(ctx, userID, hash)
	}
	if err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	a.emit(telemetrydomain.EventSessionDestroyed, userID, hash, "")
	return nil
}

// ListActiveSessions returns all sessions that have not expired.
func (a *Authority) ListActiveSessions(ctx context.Context) ([]*domain.Session, error) {
	return a.repo.ListActive(ctx, a.now())
}

// RevokeUser ends every session of userID on behalf of an administrator.
func (a *Authority) RevokeUser(ctx context.Context, actorID, userID string) error {
	if err := a.DestroySession(ctx, userID, ""); err != nil {
		return err
	}
	if a.audit != nil {
		a.audit.LogEvent(ctx, actorID, audit.ActionRevoked, audit.ResourceSession, userID)
	}
	a.log.Info("session revoked", "user_id", userID, "actor_id", actorID)
	return nil
}

// PurgeExpired deletes sessions that have been past expiry, or idle beyond the
// inactivity window, for longer than the purge grace and returns how many were
// removed. Rows inside the grace stay so ValidateSession can still report
// expired or inactivity instead of not_found.
func (a *Authority) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := a.now().Add(-a.purgeGrace)
	n, err := a.repo.DeleteStale(ctx, cutoff, cutoff.Add(-a.inactivity))
	if err != nil {
		return n, fmt.Errorf("purge sessions: %w", err)
	}
	if a.metrics != nil {
		a.metrics.Purged(ctx, n)
	}
	return n, nil
}

// RecordLoginFailure emits a login_failed event. userID may be unknown.
func (a *Authority) RecordLoginFailure(userID, reason string) {
	a.emit(telemetrydomain.EventLoginFailed, userID, "", reason)
}

func (a *Authority) emit(t telemetrydomain.EventType, userID, hash, reason string) {
	if a.events == nil {
		return
	}
	telemetry.EmitAsync(a.log, a.events, &telemetrydomain.SessionEvent{
		EventType:   t,
		UserID:      userID,
		SessionHash: hash,
		Reason:      reason,
		Source:      eventSource,
		CreatedAt:   a.now().UTC(),
	})
}
