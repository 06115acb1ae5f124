// seed creates or updates the admin and guest accounts in Postgres. Passwords
// come from SEED_ADMIN_PASSWORD and SEED_GUEST_PASSWORD; an account whose
// password is unset is skipped. Run after cmd/migrate.
package main

import (
	"context"
	"fmt"
	"os"

	"data-portal/backend/internal/config"
	"data-portal/backend/internal/db"
	"data-portal/backend/internal/logging"
	"data-portal/backend/internal/security"
	userrepo "data-portal/backend/internal/user/repository"
	"data-portal/backend/internal/user/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}
	if cfg.SeedAdminPassword == "" && cfg.SeedGuestPassword == "" {
		log.Error("set SEED_ADMIN_PASSWORD and/or SEED_GUEST_PASSWORD")
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db open failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	n, err := seed.Apply(ctx, userrepo.NewPostgresRepository(conn), security.NewHasher(cfg.BcryptCost),
		seed.DefaultAccounts(cfg.SeedAdminPassword, cfg.SeedGuestPassword))
	if err != nil {
		log.Error("seed failed", "error", err)
		conn.Close()
		os.Exit(1)
	}
	log.Info("seed applied", "accounts", n)
}
