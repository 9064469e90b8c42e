package app

import (
	"context"
	"fmt"

	"inventory-invoicing/internal/ai"
	"inventory-invoicing/internal/config"
	"inventory-invoicing/internal/core"
	"inventory-invoicing/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Backend bundles the storage services an ApplicationService runs on.
type Backend struct {
	Catalog  core.CatalogService
	Invoices core.InvoiceService
	Users    core.UserService
	// InMemory is true when no database is configured and data lives only
	// for the lifetime of the process.
	InMemory bool

	pool *pgxpool.Pool
}

// OpenBackend connects to Postgres when databaseURL is set and falls back to
// a process-local MemoryStore otherwise.
func OpenBackend(ctx context.Context, databaseURL string) (*Backend, error) {
	if databaseURL == "" {
		store := core.NewMemoryStore()
		return &Backend{Catalog: store, Invoices: store, Users: store, InMemory: true}, nil
	}

	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Catalog:  core.NewCatalogService(pool),
		Invoices: core.NewInvoiceService(pool),
		Users:    core.NewUserService(pool),
		pool:     pool,
	}, nil
}

// Pool is the underlying connection pool, or nil for an in-memory backend.
func (b *Backend) Pool() *pgxpool.Pool { return b.pool }

func (b *Backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// FromConfig opens the backend described by cfg and builds the service over it.
// An in-memory backend is seeded with the demo account. The OpenAI extractor is
// only wired when an API key is configured. The caller closes the Backend.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ApplicationService, *Backend, error) {
	backend, err := OpenBackend(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	var extractor ai.Extractor
	if cfg.OpenAIKey != "" {
		extractor = ai.NewAgent(cfg.OpenAIKey, cfg.OpenAIModel)
	} else {
		logger.Warn("OPENAI_API_KEY is not set, image import is disabled")
	}

	reports := core.NewReportingService(backend.Invoices, cfg.ReportLocation)
	svc := NewAppService(backend.Catalog, backend.Invoices, backend.Users, reports, extractor, cfg.CatalogLocale, logger)

	if backend.InMemory {
		seeded, err := svc.SeedDemo(ctx, cfg.SeedPassword)
		if err != nil {
			backend.Close()
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
		logger.Info("DATABASE_URL is not set, running on the in-memory store",
			zap.String("username", seeded.Username),
			zap.Int("products", seeded.ProductsCreated),
		)
	}
	return svc, backend, nil
}
