package main

// Apply the Postgres kv_entries schema for FP_STORE=postgres deployments:
//   DATABASE_URL=postgres://... go run ./cmd/migrate

import (
	"context"
	"log"

	"fineprint-agent/internal/shared/config"
	"fineprint-agent/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	log.Println("migrations applied")
}
