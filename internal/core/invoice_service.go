package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// InvoiceService owns the only path that decrements stock as a result of a sale.
type InvoiceService interface {
	// CommitInvoice atomically re-validates stock for every pair, deducts it, and
	// records the invoice, its items and one exit movement per product.
	// Validation failures return *CommitValidationError and write nothing.
	CommitInvoice(ctx context.Context, userID string, items []CommitItem) (*CommitResult, error)

	GetInvoice(ctx context.Context, userID, invoiceID string) (*Invoice, error)
	// ListInvoices returns the invoices created in [from, to), newest first.
	// A zero bound is open.
	ListInvoices(ctx context.Context, userID string, from, to time.Time) ([]Invoice, error)
}

type invoiceService struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewInvoiceService constructs an InvoiceService backed by PostgreSQL.
func NewInvoiceService(pool *pgxpool.Pool) InvoiceService {
	return &invoiceService{pool: pool, now: time.Now}
}

func (s *invoiceService) CommitInvoice(ctx context.Context, userID string, items []CommitItem) (*CommitResult, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	items = canonicalItems(items)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := lockProducts(ctx, tx, userID, lockOrder(items))
	if err != nil {
		return nil, err
	}
	if err := validateCommit(items, locked); err != nil {
		return nil, err
	}
	lines, total := buildInvoiceItems(items, locked)

	now := s.now()
	number, err := nextInvoiceNumber(ctx, tx, userID, now.Year())
	if err != nil {
		return nil, err
	}

	var invoiceID string
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (user_id, invoice_number, total)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at
	`, userID, number, total).Scan(&invoiceID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	for i := range lines {
		line := &lines[i]
		line.InvoiceID = invoiceID
		if err := tx.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, line_number, product_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, invoiceID, line.LineNumber, line.ProductID, line.Quantity, line.UnitPrice, line.Subtotal,
		).Scan(&line.ID); err != nil {
			return nil, fmt.Errorf("failed to insert invoice item %d: %w", line.LineNumber, err)
		}

		p := locked[line.ProductID]
		remaining := p.Quantity - line.Quantity
		if _, err := tx.Exec(ctx, `
			UPDATE products SET quantity = $1, status = $2, updated_at = NOW()
			WHERE id = $3
		`, remaining, string(stockAfterSale(p.Status, remaining)), p.ID); err != nil {
			return nil, fmt.Errorf("failed to deduct stock for product %s: %w", p.Name, err)
		}

		if err := insertMovement(ctx, tx, StockMovement{
			UserID:         userID,
			ProductID:      p.ID,
			Type:           MovementExit,
			QuantityBefore: p.Quantity,
			QuantityAfter:  remaining,
			Reason:         "sale " + number,
			InvoiceID:      &invoiceID,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}

	return &CommitResult{
		InvoiceID:     invoiceID,
		InvoiceNumber: number,
		Total:         total,
		CreatedAt:     createdAt,
		Items:         lines,
	}, nil
}

// lockProducts reads and row-locks the given products of userID, in id order.
// Ids that are missing or owned by another user are simply absent from the result.
func lockProducts(ctx context.Context, tx pgx.Tx, userID string, ids []string) (map[string]Product, error) {
	locked := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}
	rows, err := tx.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE user_id = $1 AND id = ANY($2::uuid[])
		ORDER BY id
		FOR UPDATE
	`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan locked product: %w", err)
		}
		locked[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locked products: %w", err)
	}
	return locked, nil
}

// nextInvoiceNumber allocates the next gapless number for (user, year).
// The upsert holds the sequence row lock until the surrounding transaction ends,
// so a rolled-back commit never consumes a number.
func nextInvoiceNumber(ctx context.Context, tx pgx.Tx, userID string, year int) (string, error) {
	var last int64
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (user_id, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, year)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, userID, year).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("failed to generate gapless invoice number: %w", err)
	}
	return formatInvoiceNumber(year, last), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, userID, invoiceID string) (*Invoice, error) {
	if _, err := uuid.Parse(invoiceID); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
	}
	var inv Invoice
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, user_id::text, invoice_number, total, created_at
		FROM invoices
		WHERE id = $1 AND user_id = $2
	`, invoiceID, userID).Scan(&inv.ID, &inv.UserID, &inv.InvoiceNumber, &inv.Total, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}

	invoices := []Invoice{inv}
	if err := s.loadItems(ctx, invoices); err != nil {
		return nil, err
	}
	return &invoices[0], nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, userID string, from, to time.Time) ([]Invoice, error) {
	var fromArg, toArg *time.Time
	if !from.IsZero() {
		fromArg = &from
	}
	if !to.IsZero() {
		toArg = &to
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id::text, invoice_number, total, created_at
		FROM invoices
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <  $3)
		ORDER BY created_at DESC, invoice_number DESC
	`, userID, fromArg, toArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.InvoiceNumber, &inv.Total, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	if err := s.loadItems(ctx, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// loadItems batch-loads the items of all given invoices in one query.
func (s *invoiceService) loadItems(ctx context.Context, invoices []Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]string, len(invoices))
	index := make(map[string]int, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		index[inv.ID] = i
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ii.id, ii.invoice_id::text, ii.line_number, ii.product_id::text,
		       COALESCE(p.name, ''), COALESCE(p.unit, ''), ii.quantity, ii.unit_price, ii.subtotal
		FROM invoice_items ii
		LEFT JOIN products p ON p.id = ii.product_id
		WHERE ii.invoice_id = ANY($1::uuid[])
		ORDER BY ii.invoice_id, ii.line_number
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it InvoiceItem
		var productID *string
		var price, subtotal decimal.Decimal
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.LineNumber, &productID,
			&it.ProductName, &it.Unit, &it.Quantity, &price, &subtotal); err != nil {
			return fmt.Errorf("failed to scan invoice item: %w", err)
		}
		if productID != nil {
			it.ProductID = *productID
		}
		if it.ProductName == "" {
			it.ProductName = DeletedProductName
		}
		it.UnitPrice = price
		it.Subtotal = subtotal
		i := index[it.InvoiceID]
		invoices[i].Items = append(invoices[i].Items, it)
	}
	return rows.Err()
}
