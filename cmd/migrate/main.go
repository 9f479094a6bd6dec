// Command migrate applies the embedded LeaseLens schema migrations.
package main

// Usage:
//   go run ./cmd/migrate                  # apply all pending
//   go run ./cmd/migrate -cmd status      # list applied and pending
//   go run ./cmd/migrate -cmd down -force # roll back the latest, required outside dev

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leaselens-backend/internal/shared/config"
	"leaselens-backend/internal/shared/storage/db"
)

func main() {
	command := flag.String("cmd", "up", "goose command: up, down, status, version")
	force := flag.Bool("force", false, "allow down outside dev")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	cfg := config.Load()
	if *command == "down" && cfg.Env != "dev" && !*force {
		log.Printf("refusing to roll back in %s without -force", cfg.Env)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		log.Printf("connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, *command); err != nil {
		log.Printf("migrate %s: %v", *command, err)
		os.Exit(1)
	}
	log.Printf("migrate %s: ok", *command)
}
