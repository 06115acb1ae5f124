// migrate applies the embedded SQL migrations: go run ./cmd/migrate [-direction up|down].
package main

import (
	"flag"
	"fmt"
	"os"

	"data-portal/backend/internal/config"
	"data-portal/backend/internal/db/migrate"
	"data-portal/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := migrate.Run(cfg.DatabaseURL, *direction, log); err != nil {
		log.Error("migrate failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
}
