package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	auditrepo "data-portal/backend/internal/audit/repository"
	"data-portal/backend/internal/config"
	"data-portal/backend/internal/db"
	healthhandler "data-portal/backend/internal/health/handler"
	policyrepo "data-portal/backend/internal/policy/repository"
	"data-portal/backend/internal/security"
	sessionrepo "data-portal/backend/internal/session/repository"
	userrepo "data-portal/backend/internal/user/repository"
	"data-portal/backend/internal/user/seed"
)

// stores holds the repositories selected by config. Interface fields are left
// nil when their backend is not configured.
type stores struct {
	kind     string
	sessions sessionrepo.Repository
	users    userrepo.Repository
	audit    auditrepo.Repository
	policies policyrepo.Repository
	pinger   healthhandler.Pinger

	closers []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openStores connects Postgres when DATABASE_URL is set and picks the session
// backend. Without a database the server runs on in-memory stores, which
// production forbids.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	st := &stores{kind: cfg.SessionStore}

	var conn *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		conn, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		st.closers = append(st.closers, conn.Close)
		st.users = userrepo.NewPostgresRepository(conn)
		st.audit = auditrepo.NewPostgresRepository(conn)
		st.policies = policyrepo.NewPostgresRepository(conn)
		st.pinger = conn
	} else {
		if cfg.Env == "production" {
			return nil, errors.New("DATABASE_URL is required when APP_ENV=production")
		}
		users := userrepo.NewMemoryRepository()
		n, err := seed.Apply(ctx, users, security.NewHasher(cfg.BcryptCost), seed.DefaultAccounts(cfg.SeedAdminPassword, cfg.SeedGuestPassword))
		if err != nil {
			return nil, fmt.Errorf("seed in-memory users: %w", err)
		}
		log.Warn("DATABASE_URL not set; users, audit and policies are in memory", "seeded_users", n)
		st.users = users
	}

	switch cfg.SessionStore {
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			st.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		st.closers = append(st.closers, client.Close)
		st.sessions = sessionrepo.NewRedisRepository(client, cfg.SessionTTL)
	case config.StorePostgres:
		if conn != nil {
			st.sessions = sessionrepo.NewPostgresRepository(conn)
			break
		}
		log.Warn("SESSION_STORE=postgres without DATABASE_URL; sessions are in memory")
		st.kind = config.StoreMemory
		st.sessions = sessionrepo.NewMemoryRepository()
	default:
		st.sessions = sessionrepo.NewMemoryRepository()
	}
	return st, nil
}
