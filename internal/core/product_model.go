package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus is the lifecycle state of a catalog product.
type ProductStatus string

const (
	ProductActive     ProductStatus = "active"
	ProductInactive   ProductStatus = "inactive"
	ProductOutOfStock ProductStatus = "out_of_stock"
)

// Valid reports whether s is one of the known lifecycle states.
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductInactive, ProductOutOfStock:
		return true
	}
	return false
}

// DefaultUnit is used when a product is created without a unit-of-measure label.
const DefaultUnit = "unit"

// MaxQuantity is the largest on-hand quantity a product may hold. It matches
// the INTEGER column that stores it.
const MaxQuantity = math.MaxInt32

// Product is a catalog entry owned by one user.
// Quantity is never negative; only CommitInvoice decrements it as a result of a sale.
type Product struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	Unit           string          `json:"unit"`
	Status         ProductStatus   `json:"status"`
	Barcode        string          `json:"barcode,omitempty"`
	Location       string          `json:"location,omitempty"`
	Supplier       string          `json:"supplier,omitempty"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Sellable reports whether the product may appear in sale search results.
func (p Product) Sellable() bool {
	return p.Status == ProductActive && p.Quantity > 0
}

// ExpirationStatus buckets a product by days left until its expiration date.
type ExpirationStatus string

const (
	ExpirationNone    ExpirationStatus = ""
	ExpirationExpired ExpirationStatus = "expired"
	ExpirationSoon    ExpirationStatus = "expiring_soon"
	ExpirationWarning ExpirationStatus = "warning"
	ExpirationOK      ExpirationStatus = "ok"
)

const (
	expirationSoonDays = 7
	expirationWarnDays = 30
)

// ExpirationStatus returns the freshness bucket of the product relative to now,
// along with the absolute number of days to (or since) expiration.
func (p Product) ExpirationStatus(now time.Time) (ExpirationStatus, int) {
	if p.ExpirationDate == nil {
		return ExpirationNone, 0
	}
	today := truncateDay(now)
	exp := truncateDay(p.ExpirationDate.In(now.Location()))
	days := int(exp.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		return ExpirationExpired, -days
	case days <= expirationSoonDays:
		return ExpirationSoon, days
	case days <= expirationWarnDays:
		return ExpirationWarning, days
	default:
		return ExpirationOK, days
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ProductInput carries the editable fields of a product for create and update.
type ProductInput struct {
	Name           string
	Description    string
	Category       string
	UnitPrice      decimal.Decimal
	Quantity       int
	Unit           string
	Status         ProductStatus
	Barcode        string
	Location       string
	Supplier       string
	ExpirationDate *time.Time
}

// Normalize trims text fields and fills defaults.
func (in *ProductInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.Location = strings.TrimSpace(in.Location)
	in.Supplier = strings.TrimSpace(in.Supplier)
	if in.Unit == "" {
		in.Unit = DefaultUnit
	}
	if in.Status == "" {
		in.Status = ProductActive
	}
	switch {
	case in.Status == ProductActive && in.Quantity == 0:
		in.Status = ProductOutOfStock
	case in.Status == ProductOutOfStock && in.Quantity > 0:
		in.Status = ProductActive
	}
}

// ErrInvalidProduct wraps every ProductInput validation failure.
var ErrInvalidProduct = errors.New("invalid product")

// Validate checks the invariants every stored product must satisfy.
func (in ProductInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if in.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price cannot be negative, got %s", ErrInvalidProduct, in.UnitPrice)
	}
	if in.Quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative, got %d", ErrInvalidProduct, in.Quantity)
	}
	if in.Quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity cannot exceed %d, got %d", ErrInvalidProduct, MaxQuantity, in.Quantity)
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProduct, in.Status)
	}
	return nil
}

// MovementType classifies an entry of the append-only stock history.
type MovementType string

const (
	MovementEntry   MovementType = "entry"
	MovementExit    MovementType = "exit"
	MovementCreated MovementType = "created"
	MovementEdited  MovementType = "edited"
	MovementDeleted MovementType = "deleted"
)

// StockMovement is one row of the stock history.
// InvoiceID is set for sale-driven exits.
type StockMovement struct {
	ID             int64        `json:"id"`
	UserID         string       `json:"user_id"`
	ProductID      string       `json:"product_id"`
	ProductName    string       `json:"product_name"`
	Type           MovementType `json:"type"`
	QuantityBefore int          `json:"quantity_before"`
	QuantityAfter  int          `json:"quantity_after"`
	QuantityChange int          `json:"quantity_change"`
	Reason         string       `json:"reason,omitempty"`
	InvoiceID      *string      `json:"invoice_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ImportLine is one extracted or hand-entered row of a bulk stock import.
type ImportLine struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Category  string          `json:"category,omitempty"`
	Unit      string          `json:"unit,omitempty"`
}

// ImportSummary reports how an import was reconciled into the catalog.
type ImportSummary struct {
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Products []Product `json:"products"`
}
