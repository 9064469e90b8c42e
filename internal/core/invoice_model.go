package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a committed sale. It is created only by CommitInvoice and never edited.
type Invoice struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []InvoiceItem   `json:"items"`
}

// ItemCount returns the number of units sold on the invoice.
func (inv Invoice) ItemCount() int {
	n := 0
	for _, it := range inv.Items {
		n += it.Quantity
	}
	return n
}

// InvoiceItem is one line of a committed invoice. UnitPrice is the live catalog
// price read inside the commit transaction.
type InvoiceItem struct {
	ID          int64           `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	LineNumber  int             `json:"line_number"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"` // joined from products
	Unit        string          `json:"unit"`         // joined from products
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CommitItem is one (product, quantity) pair sent to CommitInvoice.
type CommitItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CommitResult is returned by a successful CommitInvoice.
type CommitResult struct {
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []InvoiceItem   `json:"items"`
}

// FailureReason identifies why the commit procedure rejected a line.
type FailureReason string

const (
	ReasonInsufficientStock FailureReason = "INSUFFICIENT_STOCK"
	ReasonUnknownProduct    FailureReason = "UNKNOWN_PRODUCT"
	ReasonProductInactive   FailureReason = "PRODUCT_INACTIVE"
	ReasonInvalidQuantity   FailureReason = "INVALID_QUANTITY"
	ReasonDuplicateProduct  FailureReason = "DUPLICATE_PRODUCT"
)

// ErrNoItems is returned by CommitInvoice when called with an empty item list.
var ErrNoItems = errors.New("invoice must have at least one item")

// CommitValidationError is the authoritative rejection of a commit. It names the
// offending product and the quantity the database actually holds; nothing was written.
type CommitValidationError struct {
	ProductID   string        `json:"product_id"`
	ProductName string        `json:"product_name,omitempty"`
	Requested   int           `json:"requested"`
	Available   int           `json:"available"`
	Reason      FailureReason `json:"reason"`
}

func (e *CommitValidationError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	switch e.Reason {
	case ReasonInsufficientStock:
		return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", name, e.Available, e.Requested)
	case ReasonUnknownProduct:
		return fmt.Sprintf("product %s not found", name)
	case ReasonProductInactive:
		return fmt.Sprintf("product %s is not available for sale", name)
	case ReasonInvalidQuantity:
		return fmt.Sprintf("invalid quantity %d for product %s", e.Requested, name)
	case ReasonDuplicateProduct:
		return fmt.Sprintf("product %s appears more than once", name)
	}
	return fmt.Sprintf("commit rejected for product %s (%s)", name, e.Reason)
}

// ErrNotFound is returned when a product or invoice does not exist for the user.
var ErrNotFound = errors.New("not found")

// formatInvoiceNumber renders a gapless per-user, per-year invoice number.
func formatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("FAC-%d-%05d", year, seq)
}
