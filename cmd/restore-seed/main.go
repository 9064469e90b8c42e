// restore-seed recreates the demo account and its starter catalog in the
// configured database. Existing products are left untouched; only missing
// ones are added, so it is safe to run repeatedly.
//
// Usage: go run ./cmd/restore-seed
package main

import (
	"context"
	"log"

	"inventory-invoicing/internal/app"
	"inventory-invoicing/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	svc, backend, err := app.FromConfig(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer backend.Close()

	res, err := svc.SeedDemo(ctx, cfg.SeedPassword)
	if err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}

	if res.UserCreated {
		log.Printf("Created user %q (%s)", res.Username, res.UserID)
	} else {
		log.Printf("User %q already exists (%s)", res.Username, res.UserID)
	}
	log.Printf("Seed data restored: %d product(s) added.", res.ProductsCreated)
}
