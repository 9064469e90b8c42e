package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogService manages a user's products and the append-only stock history.
// Every quantity change it makes is recorded as a StockMovement in the same transaction.
type CatalogService interface {
	// ListEligibleProducts returns the sellable products (active, quantity > 0) ordered by name.
	ListEligibleProducts(ctx context.Context, userID string) ([]Product, error)
	// ListProducts returns every product of the user, newest first.
	ListProducts(ctx context.Context, userID string) ([]Product, error)
	GetProduct(ctx context.Context, userID, productID string) (*Product, error)

	CreateProduct(ctx context.Context, userID string, in ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, userID, productID string, in ProductInput) (*Product, error)
	// ArchiveProduct marks the product inactive. Products referenced by invoices are never removed.
	ArchiveProduct(ctx context.Context, userID, productID string) error

	// ListMovements returns the newest stock movements first. limit <= 0 means DefaultMovementLimit.
	ListMovements(ctx context.Context, userID string, limit int) ([]StockMovement, error)

	// ImportProducts reconciles bulk rows into the catalog in one transaction:
	// a case-insensitive name match adds quantity, otherwise a product is created.
	ImportProducts(ctx context.Context, userID string, lines []ImportLine) (*ImportSummary, error)
}

// DefaultMovementLimit caps ListMovements when no limit is given.
const DefaultMovementLimit = 100

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const productColumns = `
	id::text, user_id::text, name, description, category, unit_price, quantity, unit,
	status, barcode, location, supplier, expiration_date, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.Category, &p.UnitPrice, &p.Quantity, &p.Unit,
		&p.Status, &p.Barcode, &p.Location, &p.Supplier, &p.ExpirationDate, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

type catalogService struct {
	pool *pgxpool.Pool
}

// NewCatalogService constructs a CatalogService backed by PostgreSQL.
func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

func (s *catalogService) queryProducts(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

func (s *catalogService) ListEligibleProducts(ctx context.Context, userID string) ([]Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE user_id = $1 AND status = 'active' AND quantity > 0
		ORDER BY name
	`, userID)
}

func (s *catalogService) ListProducts(ctx context.Context, userID string) ([]Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE user_id = $1
		ORDER BY created_at DESC, name
	`, userID)
}

func (s *catalogService) GetProduct(ctx context.Context, userID, productID string) (*Product, error) {
	p, err := getProduct(ctx, s.pool, userID, productID, false)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// getProduct reads one product owned by userID. forUpdate locks the row and
// requires q to be a transaction.
func getProduct(ctx context.Context, q pgxQuerier, userID, productID string, forUpdate bool) (Product, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return Product{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	sql := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND user_id = $2`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	p, err := scanProduct(q.QueryRow(ctx, sql, productID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		return Product{}, fmt.Errorf("failed to fetch product: %w", err)
	}
	return p, nil
}

func insertProduct(ctx context.Context, tx pgx.Tx, userID string, in ProductInput) (Product, error) {
	p, err := scanProduct(tx.QueryRow(ctx, `
		INSERT INTO products (user_id, name, description, category, unit_price, quantity, unit,
		                      status, barcode, location, supplier, expiration_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+productColumns,
		userID, in.Name, in.Description, in.Category, in.UnitPrice, in.Quantity, in.Unit,
		string(in.Status), in.Barcode, in.Location, in.Supplier, in.ExpirationDate,
	))
	if err != nil {
		return Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return p, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, userID string, in ProductInput) (*Product, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := insertProduct(ctx, tx, userID, in)
	if err != nil {
		return nil, err
	}
	if err := insertMovement(ctx, tx, StockMovement{
		UserID:         userID,
		ProductID:      p.ID,
		Type:           MovementCreated,
		QuantityBefore: 0,
		QuantityAfter:  p.Quantity,
		Reason:         "product created",
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	return &p, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, userID, productID string, in ProductInput) (*Product, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	before, err := getProduct(ctx, tx, userID, productID, true)
	if err != nil {
		return nil, err
	}

	p, err := scanProduct(tx.QueryRow(ctx, `
		UPDATE products
		SET name = $1, description = $2, category = $3, unit_price = $4, quantity = $5, unit = $6,
		    status = $7, barcode = $8, location = $9, supplier = $10, expiration_date = $11,
		    updated_at = NOW()
		WHERE id = $12
		RETURNING `+productColumns,
		in.Name, in.Description, in.Category, in.UnitPrice, in.Quantity, in.Unit,
		string(in.Status), in.Barcode, in.Location, in.Supplier, in.ExpirationDate, before.ID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if err := insertMovement(ctx, tx, StockMovement{
		UserID:         userID,
		ProductID:      p.ID,
		Type:           MovementEdited,
		QuantityBefore: before.Quantity,
		QuantityAfter:  p.Quantity,
		Reason:         "product edited",
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product update: %w", err)
	}
	return &p, nil
}

func (s *catalogService) ArchiveProduct(ctx context.Context, userID, productID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := getProduct(ctx, tx, userID, productID, true)
	if err != nil {
		return err
	}
	if p.Status == ProductInactive {
		return nil
	}

	if _, err := tx.Exec(ctx,
		"UPDATE products SET status = 'inactive', updated_at = NOW() WHERE id = $1", p.ID,
	); err != nil {
		return fmt.Errorf("failed to archive product: %w", err)
	}
	if err := insertMovement(ctx, tx, StockMovement{
		UserID:         userID,
		ProductID:      p.ID,
		Type:           MovementDeleted,
		QuantityBefore: p.Quantity,
		QuantityAfter:  p.Quantity,
		Reason:         "product archived",
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit product archive: %w", err)
	}
	return nil
}

func (s *catalogService) ListMovements(ctx context.Context, userID string, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = DefaultMovementLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.user_id::text, m.product_id::text, COALESCE(p.name, ''), m.movement_type,
		       m.quantity_before, m.quantity_after, m.quantity_change, m.reason,
		       m.invoice_id::text, m.created_at
		FROM stock_movements m
		LEFT JOIN products p ON p.id = m.product_id
		WHERE m.user_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.ProductID, &m.ProductName, &m.Type,
			&m.QuantityBefore, &m.QuantityAfter, &m.QuantityChange, &m.Reason,
			&m.InvoiceID, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		if m.ProductName == "" {
			m.ProductName = DeletedProductName
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock movements: %w", err)
	}
	return movements, nil
}

func (s *catalogService) ImportProducts(ctx context.Context, userID string, lines []ImportLine) (*ImportSummary, error) {
	lines = NormalizeImportLines(lines)
	if len(lines) == 0 {
		return nil, fmt.Errorf("import contains no valid rows")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	summary := &ImportSummary{}
	for _, l := range lines {
		existing, err := scanProduct(tx.QueryRow(ctx, `
			SELECT `+productColumns+`
			FROM products
			WHERE user_id = $1 AND lower(name) = lower($2)
			ORDER BY (status = 'inactive'), created_at
			LIMIT 1
			FOR UPDATE
		`, userID, l.Name))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to match product %q: %w", l.Name, err)
		}

		if err == nil {
			merged, err := applyImport(existing, l)
			if err != nil {
				return nil, err
			}
			p, err := scanProduct(tx.QueryRow(ctx, `
				UPDATE products
				SET quantity = $1, unit_price = $2, status = $3, updated_at = NOW()
				WHERE id = $4
				RETURNING `+productColumns,
				merged.Quantity, merged.UnitPrice, string(merged.Status), existing.ID,
			))
			if err != nil {
				return nil, fmt.Errorf("failed to update product %q: %w", l.Name, err)
			}
			if err := insertMovement(ctx, tx, StockMovement{
				UserID:         userID,
				ProductID:      p.ID,
				Type:           MovementEntry,
				QuantityBefore: existing.Quantity,
				QuantityAfter:  p.Quantity,
				Reason:         "bulk import",
			}); err != nil {
				return nil, err
			}
			summary.Updated++
			summary.Products = append(summary.Products, p)
			continue
		}

		in, err := importedProductInput(l)
		if err != nil {
			return nil, err
		}
		p, err := insertProduct(ctx, tx, userID, in)
		if err != nil {
			return nil, err
		}
		if err := insertMovement(ctx, tx, StockMovement{
			UserID:         userID,
			ProductID:      p.ID,
			Type:           MovementCreated,
			QuantityBefore: 0,
			QuantityAfter:  p.Quantity,
			Reason:         "bulk import",
		}); err != nil {
			return nil, err
		}
		summary.Created++
		summary.Products = append(summary.Products, p)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return summary, nil
}

// insertMovement appends one row to the stock history. QuantityChange is derived.
func insertMovement(ctx context.Context, tx pgx.Tx, m StockMovement) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (user_id, product_id, movement_type, quantity_before, quantity_after,
		                             quantity_change, reason, invoice_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.UserID, m.ProductID, string(m.Type), m.QuantityBefore, m.QuantityAfter,
		m.QuantityAfter-m.QuantityBefore, m.Reason, m.InvoiceID)
	if err != nil {
		return fmt.Errorf("failed to insert %s movement for product %s: %w", m.Type, m.ProductID, err)
	}
	return nil
}
