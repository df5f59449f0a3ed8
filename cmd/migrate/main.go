// Command migrate applies the embedded database schema migrations and exits.
// It is intended for deploy pipelines and local setup.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"solifund/internal/platform/config"
	"solifund/internal/platform/logger"
	"solifund/internal/platform/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("database schema is up to date")
}
