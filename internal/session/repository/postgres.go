package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"data-portal/backend/internal/session/domain"
)

const sessionColumns = `user_id, session_hash, role, expires_at, last_activity, ip_address, user_agent, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by the user_sessions table.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUser returns the most recent session for userID, or nil if none.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID)
	return scanSession(row)
}

// GetByUserAndToken returns the session matching userID and tokenHash, or nil if none.
func (r *PostgresRepository) GetByUserAndToken(ctx context.Context, userID, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE user_id = $1 AND session_hash = $2`,
		userID, tokenHash)
	return scanSession(row)
}

// Create inserts the session row.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.UserID,
		s.TokenHash,
		string(s.Role),
		s.ExpiresAt,
		timeToNullTime(s.LastActivity),
		sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""},
		sql.NullString{String: s.UserAgent, Valid: s.UserAgent != ""},
		s.CreatedAt,
	)
	return err
}

// Touch updates expires_at and, when activity is set, last_activity.
func (r *PostgresRepository) Touch(ctx context.Context, userID, tokenHash string, expiresAt time.Time, activity *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions
		    SET expires_at = $3,
		        last_activity = COALESCE($4::timestamptz, last_activity)
		  WHERE user_id = $1 AND session_hash = $2`,
		userID, tokenHash, expiresAt, timeToNullTime(activity))
	return err
}

// DeleteByUser removes all sessions for userID.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID)
	return err
}

// DeleteByUserAndToken removes the session matching userID and tokenHash.
func (r *PostgresRepository) DeleteByUserAndToken(ctx context.Context, userID, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE user_id = $1 AND session_hash = $2`, userID, tokenHash)
	return err
}

// ListActive returns sessions that have not reached expires_at.
func (r *PostgresRepository) ListActive(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE expires_at > $1 ORDER BY created_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteStale removes expired sessions and sessions idle since before idleBefore.
func (r *PostgresRepository) DeleteStale(ctx context.Context, expiredBy, idleBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions
		  WHERE expires_at <= $1
		     OR COALESCE(last_activity, created_at) < $2`,
		expiredBy, idleBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s            domain.Session
		role         string
		lastActivity sql.NullTime
		ip, ua       sql.NullString
	)
	err := row.Scan(&s.UserID, &s.TokenHash, &role, &s.ExpiresAt, &lastActivity, &ip, &ua, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Role = domain.ParseRole(role)
	s.LastActivity = nullTimeToPtr(lastActivity)
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
