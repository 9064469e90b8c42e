// verify-db applies pending schema migrations and then audits the stored
// inventory and invoices for broken invariants. It exits non-zero when any
// audit check finds rows.
//
// Usage: go run ./cmd/verify-db [-dir migrations] [-audit-only]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"inventory-invoicing/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// migrateLockKey serializes concurrent migrators through a session advisory lock.
const migrateLockKey = 7462839

func main() {
	dir := flag.String("dir", "migrations", "directory holding NNN_description.sql files")
	auditOnly := flag.Bool("audit-only", false, "skip migrations and only run the audit")
	flag.Parse()

	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()
	log.Println("[CONNECT] success")

	if !*auditOnly {
		if err := migrate(ctx, pool, *dir); err != nil {
			log.Fatalf("[MIGRATE] %v", err)
		}
	}

	findings, err := audit(ctx, pool)
	if err != nil {
		log.Fatalf("[AUDIT] %v", err)
	}
	if findings > 0 {
		log.Printf("[AUDIT] %d problem(s) found", findings)
		os.Exit(1)
	}
	log.Println("[DONE] database is consistent")
}

func migrate(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", migrateLockKey).Scan(&locked); err != nil {
		return err
	}
	if !locked {
		log.Fatalf("[LOCK] another migrator is currently running")
	}
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrateLockKey)
	log.Println("[LOCK] success")

	m := &migrator{pool: pool, dir: dir}
	if err := m.setup(ctx); err != nil {
		return err
	}
	files, err := m.discover()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := m.apply(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
