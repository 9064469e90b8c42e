package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// auditCheck is a query returning one descriptive text column per offending row.
type auditCheck struct {
	name  string
	query string
}

var auditChecks = []auditCheck{
	{
		name: "negative stock",
		query: `SELECT id::text || ' ' || name || ' qty=' || quantity
			FROM products WHERE quantity < 0`,
	},
	{
		name: "status disagrees with quantity",
		query: `SELECT id::text || ' ' || name || ' status=' || status || ' qty=' || quantity
			FROM products
			WHERE (status = 'active' AND quantity = 0)
			   OR (status = 'out_of_stock' AND quantity > 0)`,
	},
	{
		name: "line subtotal is not quantity times price",
		query: `SELECT invoice_id::text || ' line ' || line_number
			FROM invoice_items WHERE subtotal <> quantity * unit_price`,
	},
	{
		name: "invoice total differs from its lines",
		query: `SELECT i.invoice_number || ' total=' || i.total || ' lines=' || COALESCE(SUM(it.subtotal), 0)
			FROM invoices i
			LEFT JOIN invoice_items it ON it.invoice_id = i.id
			GROUP BY i.id, i.invoice_number, i.total
			HAVING i.total <> COALESCE(SUM(it.subtotal), 0)`,
	},
	{
		name: "invoice without lines",
		query: `SELECT i.invoice_number FROM invoices i
			WHERE NOT EXISTS (SELECT 1 FROM invoice_items it WHERE it.invoice_id = i.id)`,
	},
	{
		name: "invoice numbering has gaps",
		query: `SELECT s.user_id::text || ' ' || s.year || ' last=' || s.last_number || ' count=' || COUNT(i.id)
			FROM invoice_sequences s
			LEFT JOIN invoices i
			  ON i.user_id = s.user_id
			 AND i.invoice_number LIKE 'FAC-' || s.year || '-%'
			GROUP BY s.user_id, s.year, s.last_number
			HAVING COUNT(i.id) <> s.last_number`,
	},
	{
		name: "movement arithmetic",
		query: `SELECT id::text || ' ' || movement_type
			FROM stock_movements WHERE quantity_after <> quantity_before + quantity_change`,
	},
}

// audit runs every check and returns how many offending rows were found.
func audit(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	total := 0
	for _, c := range auditChecks {
		rows, err := pool.Query(ctx, c.query)
		if err != nil {
			return total, fmt.Errorf("%s: %w", c.name, err)
		}
		var found []string
		for rows.Next() {
			var desc string
			if err := rows.Scan(&desc); err != nil {
				rows.Close()
				return total, fmt.Errorf("%s: %w", c.name, err)
			}
			found = append(found, desc)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return total, fmt.Errorf("%s: %w", c.name, err)
		}

		if len(found) == 0 {
			log.Printf("[OK] %s", c.name)
			continue
		}
		total += len(found)
		log.Printf("[FAIL] %s:\n  %s", c.name, strings.Join(found, "\n  "))
	}
	return total, nil
}
