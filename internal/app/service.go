package app

import (
	"context"
	"errors"
	"io"
	"time"

	"inventory-invoicing/internal/core"
	"inventory-invoicing/internal/pos"
)

// ImageUpload is an invoice photo submitted for extraction.
type ImageUpload struct {
	MimeType string // "image/jpeg", "image/png", "image/webp"
	Data     []byte
}

var (
	// ErrInvalidCredentials is returned by AuthenticateUser for any unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidRequest wraps malformed input rejected before reaching storage.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrExtractionUnavailable is returned by ExtractImport when no AI key is configured.
	ErrExtractionUnavailable = errors.New("invoice extraction is not configured")
)

// ApplicationService is the single interface all UI adapters (REPL, CLI, Web) call.
// Implementations contain no display logic.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns a user profile by ID.
	GetUser(ctx context.Context, userID string) (*UserResult, error)

	// RegisterUser creates an account with a bcrypt-hashed password.
	RegisterUser(ctx context.Context, req RegisterUserRequest) (*UserResult, error)

	// ListProducts returns every product of the user, newest first, with expiration status.
	ListProducts(ctx context.Context, userID string) (*ProductListResult, error)

	GetProduct(ctx context.Context, userID, productID string) (*ProductView, error)

	CreateProduct(ctx context.Context, userID string, req ProductRequest) (*ProductView, error)

	UpdateProduct(ctx context.Context, userID, productID string, req ProductRequest) (*ProductView, error)

	// ArchiveProduct soft-deletes a product; it stops being sellable but history keeps it.
	ArchiveProduct(ctx context.Context, userID, productID string) error

	// ListMovements returns the stock history, newest first. limit <= 0 uses the default.
	ListMovements(ctx context.Context, userID string, limit int) (*MovementListResult, error)

	// OpenRegister loads a catalog snapshot for the session and starts an empty cart.
	OpenRegister(ctx context.Context, session UserSession) (*pos.Register, error)

	// ListInvoices returns invoices created in [from, to). A zero bound is open.
	ListInvoices(ctx context.Context, userID string, from, to time.Time) (*InvoiceListResult, error)

	GetInvoice(ctx context.Context, userID, invoiceID string) (*core.Invoice, error)

	// MonthlySales aggregates the invoices of one calendar month.
	MonthlySales(ctx context.Context, userID string, year, month int) (*core.SalesReport, error)

	// ExtractImport reads product lines from an invoice photo. Nothing is stored.
	ExtractImport(ctx context.Context, upload ImageUpload) (*ImportProposal, error)

	// ParseImportSpreadsheet reads product lines from an .xlsx sheet. Nothing is stored.
	ParseImportSpreadsheet(ctx context.Context, r io.ReaderAt, size int64) (*ImportProposal, error)

	// CommitImport reconciles proposed lines into the catalog in one transaction.
	CommitImport(ctx context.Context, userID string, lines []core.ImportLine) (*core.ImportSummary, error)

	// ExportProductsXLSX writes the user's catalog as a spreadsheet.
	ExportProductsXLSX(ctx context.Context, userID string, w io.Writer) error

	// SeedDemo creates the demo user (if missing) and its sample catalog.
	SeedDemo(ctx context.Context, password string) (*SeedResult, error)
}
