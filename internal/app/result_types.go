package app

import (
	"time"

	"inventory-invoicing/internal/core"
	"inventory-invoicing/internal/pos"
)

// UserSession is returned by AuthenticateUser.
type UserSession struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// POS converts the session for a cart register.
func (s UserSession) POS() pos.UserSession {
	return pos.UserSession{UserID: s.UserID, Username: s.Username}
}

// UserResult is returned by GetUser and RegisterUser.
type UserResult struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductView is a product with its expiration bucket computed for today.
type ProductView struct {
	core.Product
	ExpirationStatus core.ExpirationStatus `json:"expiration_status,omitempty"`
	DaysToExpiry     *int                  `json:"days_to_expiry,omitempty"`
}

// ProductListResult is returned by ListProducts.
type ProductListResult struct {
	Products []ProductView `json:"products"`
}

// MovementListResult is returned by ListMovements.
type MovementListResult struct {
	Movements []core.StockMovement `json:"movements"`
}

// InvoiceListResult is returned by ListInvoices.
type InvoiceListResult struct {
	Invoices []core.Invoice `json:"invoices"`
}

// ImportProposal is a set of normalized lines awaiting confirmation.
type ImportProposal struct {
	Lines []core.ImportLine `json:"lines"`
}

// SeedResult is returned by SeedDemo.
type SeedResult struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	UserCreated     bool   `json:"user_created"`
	ProductsCreated int    `json:"products_created"`
}
