package core

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// validateCommit checks every pair, in input order, against the authoritative
// product rows read under lock. The first failing pair is reported.
func validateCommit(items []CommitItem, products map[string]Product) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return &CommitValidationError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Reason:    ReasonInvalidQuantity,
			}
		}
		if seen[it.ProductID] {
			return &CommitValidationError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Reason:    ReasonDuplicateProduct,
			}
		}
		seen[it.ProductID] = true

		p, ok := products[it.ProductID]
		if !ok {
			return &CommitValidationError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Reason:    ReasonUnknownProduct,
			}
		}
		if p.Status == ProductInactive {
			return &CommitValidationError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   it.Quantity,
				Available:   p.Quantity,
				Reason:      ReasonProductInactive,
			}
		}
		if it.Quantity > p.Quantity {
			return &CommitValidationError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   it.Quantity,
				Available:   p.Quantity,
				Reason:      ReasonInsufficientStock,
			}
		}
	}
	return nil
}

// buildInvoiceItems prices each validated pair at the live catalog price.
// Line numbers follow input order.
func buildInvoiceItems(items []CommitItem, products map[string]Product) ([]InvoiceItem, decimal.Decimal) {
	lines := make([]InvoiceItem, 0, len(items))
	total := decimal.Zero
	for i, it := range items {
		p := products[it.ProductID]
		subtotal := p.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(subtotal)
		lines = append(lines, InvoiceItem{
			LineNumber:  i + 1,
			ProductID:   p.ID,
			ProductName: p.Name,
			Unit:        p.Unit,
			Quantity:    it.Quantity,
			UnitPrice:   p.UnitPrice,
			Subtotal:    subtotal,
		})
	}
	return lines, total
}

// canonicalItems rewrites well-formed ids into canonical UUID form so they
// compare equal to the ids read back from storage.
func canonicalItems(items []CommitItem) []CommitItem {
	out := make([]CommitItem, len(items))
	for i, it := range items {
		out[i] = it
		if id, err := uuid.Parse(it.ProductID); err == nil {
			out[i].ProductID = id.String()
		}
	}
	return out
}

// lockOrder returns the distinct, well-formed product ids of items sorted
// ascending. Rows are always locked in this order so concurrent commits
// touching overlapping products cannot deadlock.
func lockOrder(items []CommitItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id, err := uuid.Parse(it.ProductID)
		if err != nil {
			continue
		}
		ids = append(ids, id.String())
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// stockAfterSale returns the product status once quantity has been deducted.
func stockAfterSale(status ProductStatus, remaining int) ProductStatus {
	if remaining == 0 && status == ProductActive {
		return ProductOutOfStock
	}
	return status
}
