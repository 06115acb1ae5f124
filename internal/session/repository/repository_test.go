package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"data-portal/backend/internal/session/domain"
)

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*RedisRepository)(nil)
)

// exerciseRepository runs the behavior every Repository implementation must share.
func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)
	user := fmt.Sprintf("repo-test-%d", base.UnixNano())

	got, err := repo.GetByUser(ctx, user)
	if err != nil || got != nil {
		t.Fatalf("GetByUser on empty store = (%v, %v), want (nil, nil)", got, err)
	}

	act := base
	s := &domain.Session{
		UserID:       user,
		TokenHash:    "hash-1",
		Role:         domain.RoleAdmin,
		ExpiresAt:    base.Add(10 * time.Minute),
		LastActivity: &act,
		IPAddress:    "10.0.0.1",
		UserAgent:    "test-agent",
		CreatedAt:    base,
	}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err = repo.GetByUserAndToken(ctx, user, "hash-1")
	if err != nil {
		t.Fatalf("GetByUserAndToken: %v", err)
	}
	if got == nil {
		t.Fatal("GetByUserAndToken returned nil for stored session")
	}
	if got.Role != domain.RoleAdmin || got.IPAddress != "10.0.0.1" || got.UserAgent != "test-agent" {
		t.Errorf("stored fields = %+v", got)
	}
	if !got.ExpiresAt.Equal(s.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, s.ExpiresAt)
	}
	if got.LastActivity == nil || !got.LastActivity.Equal(act) {
		t.Errorf("LastActivity = %v, want %v", got.LastActivity, act)
	}

	if got, _ := repo.GetByUserAndToken(ctx, user, "other-hash"); got != nil {
		t.Error("GetByUserAndToken with wrong token should return nil")
	}
	if got, _ := repo.GetByUserAndToken(ctx, user+"-x", "hash-1"); got != nil {
		t.Error("GetByUserAndToken with wrong user should return nil")
	}

	newExp := base.Add(20 * time.Minute)
	if err := repo.Touch(ctx, user, "hash-1", newExp, nil); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	got, _ = repo.GetByUser(ctx, user)
	if got == nil || !got.ExpiresAt.Equal(newExp) {
		t.Fatalf("after Touch ExpiresAt = %v, want %v", got, newExp)
	}
	if got.LastActivity == nil || !got.LastActivity.Equal(act) {
		t.Errorf("Touch without activity changed LastActivity to %v", got.LastActivity)
	}

	act2 := base.Add(3 * time.Minute)
	if err := repo.Touch(ctx, user, "hash-1", newExp, &act2); err != nil {
		t.Fatalf("Touch with activity: %v", err)
	}
	got, _ = repo.GetByUser(ctx, user)
	if got.LastActivity == nil || !got.LastActivity.Equal(act2) {
		t.Errorf("LastActivity = %v, want %v", got.LastActivity, act2)
	}

	if err := repo.Touch(ctx, user, "wrong-hash", base.Add(time.Hour), nil); err != nil {
		t.Fatalf("Touch with wrong token: %v", err)
	}
	got, _ = repo.GetByUser(ctx, user)
	if !got.ExpiresAt.Equal(newExp) {
		t.Error("Touch with wrong token must not modify the session")
	}

	active, err := repo.ListActive(ctx, base)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	found := false
	for _, a := range active {
		if a.UserID == user {
			found = true
		}
	}
	if !found {
		t.Error("ListActive did not include the live session")
	}

	if err := repo.DeleteByUserAndToken(ctx, user, "wrong-hash"); err != nil {
		t.Fatalf("DeleteByUserAndToken wrong token: %v", err)
	}
	if got, _ := repo.GetByUser(ctx, user); got == nil {
		t.Fatal("DeleteByUserAndToken with wrong token removed the session")
	}
	if err := repo.DeleteByUserAndToken(ctx, user, "hash-1"); err != nil {
		t.Fatalf("DeleteByUserAndToken: %v", err)
	}
	if got, _ := repo.GetByUser(ctx, user); got != nil {
		t.Fatal("session still present after DeleteByUserAndToken")
	}
	if err := repo.DeleteByUser(ctx, user); err != nil {
		t.Fatalf("DeleteByUser on missing session: %v", err)
	}

	// stale purge: one expired, one idle, one live
	stale := []*domain.Session{
		{UserID: user + "-expired", TokenHash: "h-exp", Role: domain.RoleGuest, ExpiresAt: base.Add(-time.Minute), CreatedAt: base.Add(-11 * time.Minute)},
		{UserID: user + "-idle", TokenHash: "h-idle", Role: domain.RoleGuest, ExpiresAt: base.Add(5 * time.Minute), CreatedAt: base.Add(-20 * time.Minute)},
		{UserID: user + "-live", TokenHash: "h-live", Role: domain.RoleGuest, ExpiresAt: base.Add(5 * time.Minute), CreatedAt: base.Add(-time.Minute)},
	}
	for _, s := range stale {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create %s: %v", s.UserID, err)
		}
	}
	n, err := repo.DeleteStale(ctx, base, base.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("DeleteStale: %v", err)
	}
	if n < 2 {
		t.Errorf("DeleteStale removed %d rows, want at least 2", n)
	}
	if got, _ := repo.GetByUser(ctx, user+"-live"); got == nil {
		t.Error("DeleteStale removed the live session")
	}
	_ = repo.DeleteByUser(ctx, user+"-live")
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestMemoryRepository_CopiesOnWrite(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()
	s := &domain.Session{UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(time.Minute), LastActivity: &now, CreatedAt: now}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.ExpiresAt = time.Time{}
	*s.LastActivity = time.Time{}

	got, _ := repo.GetByUserAndToken(ctx, "u1", "h1")
	if got.ExpiresAt.IsZero() || got.LastActivity.IsZero() {
		t.Error("mutating the caller's session changed the stored copy")
	}
	if repo.Len() != 1 {
		t.Errorf("Len = %d, want 1", repo.Len())
	}
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres session repository test")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	exerciseRepository(t, NewPostgresRepository(db))
}

func TestRedisRepository(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set; skipping Redis session repository test")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()
	exerciseRepository(t, NewRedisRepository(client, time.Hour))
}

// replyError is a server error reply as go-redis surfaces it.
type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError() {}

func TestIsRateLimited(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrRateLimited, true},
		{"wrapped sentinel", fmt.Errorf("lookup: %w", ErrRateLimited), true},
		{"pg too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"pg configuration limit", fmt.Errorf("query: %w", &pgconn.PgError{Code: "53400"}), true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"http 429", errors.New("request failed with status 429"), true},
		{"too many requests", errors.New("Too Many Requests"), true},
		{"rate limit text", errors.New("rate limit exceeded"), true},
		{"redis max clients", errors.New("ERR max number of clients reached"), true},
		{"redis loading", replyError("LOADING Redis is loading the dataset in memory"), true},
		{"wrapped redis loading", fmt.Errorf("hgetall: %w", replyError("LOADING Redis is loading the dataset in memory")), true},
		{"redis other reply", replyError("WRONGTYPE Operation against a key holding the wrong kind of value"), false},
		{"plain loading text", errors.New("error loading session"), false},
		{"connection refused", errors.New("dial tcp: connection refused"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRateLimited(tc.err); got != tc.want {
				t.Errorf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
