package pos

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart is returned by Submit when the cart has no lines. No state changes.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrLineNotFound is returned when editing a product that has no cart line.
	ErrLineNotFound = errors.New("product is not in the cart")
	// ErrSubmitInProgress is returned for any mutation or close while a submit is in flight.
	ErrSubmitInProgress = errors.New("invoice submission in progress")
	// ErrCartClosed is returned for mutations on a committed or closed cart.
	ErrCartClosed = errors.New("cart is closed")
	// ErrProductNotInCatalog is returned when a product id is absent from the loaded snapshot.
	ErrProductNotInCatalog = errors.New("product is not available for sale")
)

// StockExceededError is the local, advisory rejection of a cart mutation that
// would exceed the on-hand quantity captured when the line was added.
type StockExceededError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d", e.ProductName, e.Available)
}

// CommitTransportError wraps any submit failure that is not an authoritative
// validation rejection. The cart is preserved and the submit may be retried.
type CommitTransportError struct {
	Err error
}

func (e *CommitTransportError) Error() string {
	return fmt.Sprintf("failed to commit invoice: %v", e.Err)
}

func (e *CommitTransportError) Unwrap() error { return e.Err }

// Retryable is always true.
func (e *CommitTransportError) Retryable() bool { return true }

// CatalogLoadError reports a failed snapshot load. The previous snapshot is kept.
type CatalogLoadError struct {
	UserID string
	Err    error
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("failed to load catalog: %v", e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

// Retryable is always true.
func (e *CatalogLoadError) Retryable() bool { return true }
