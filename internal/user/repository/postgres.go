package repository

import (
	"context"
	"database/sql"
	"errors"

	sessiondomain "data-portal/backend/internal/session/domain"
	"data-portal/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = sessiondomain.ParseRole(role)
	return &u, nil
}

// Upsert inserts the user or updates username, password_hash and role of an existing row.
func (r *PostgresRepository) Upsert(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		   SET username = EXCLUDED.username,
		       password_hash = EXCLUDED.password_hash,
		       role = EXCLUDED.role`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.CreatedAt)
	return err
}
