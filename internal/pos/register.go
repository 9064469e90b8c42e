package pos

import (
	"context"
	"errors"
	"slices"
	"sync"

	"inventory-invoicing/internal/core"

	"go.uber.org/zap"
)

// Register is one user's point of sale: a session, its catalog snapshot and the
// cart currently being composed. A new cart is started after every successful sale.
type Register struct {
	session   UserSession
	catalog   *CatalogSnapshot
	committer Committer
	logger    *zap.Logger

	mu   sync.Mutex
	cart *Cart
}

// NewRegister wires a register. Call Open before selling.
func NewRegister(session UserSession, catalog *CatalogSnapshot, committer Committer, logger *zap.Logger) *Register {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Register{
		session:   session,
		catalog:   catalog,
		committer: committer,
		logger:    logger.With(zap.String("user_id", session.UserID)),
	}
}

// Open loads the catalog and starts an empty cart. On a load failure no cart is
// opened and a *CatalogLoadError is returned.
func (r *Register) Open(ctx context.Context) error {
	if err := r.catalog.Load(ctx, r.session.UserID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cart != nil && r.cart.State() == CartSubmitting {
		return ErrSubmitInProgress
	}
	r.cart = NewCart(r.committer)
	return nil
}

func (r *Register) Session() UserSession { return r.session }

func (r *Register) Catalog() *CatalogSnapshot { return r.catalog }

// Cart returns the current cart, or nil before Open and after Close.
func (r *Register) Cart() *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart
}

func (r *Register) current() (*Cart, error) {
	cart := r.Cart()
	if cart == nil {
		return nil, ErrCartClosed
	}
	return cart, nil
}

// Busy reports whether a submit is in flight.
func (r *Register) Busy() bool {
	cart := r.Cart()
	return cart != nil && cart.State() == CartSubmitting
}

// Search returns up to k catalog matches, excluding products already in the cart.
func (r *Register) Search(term string, k int) []core.Product {
	var exclude []string
	if cart := r.Cart(); cart != nil {
		exclude = cart.ProductIDs()
	}
	return r.catalog.Top(term, k, exclude...)
}

// Add puts one unit of the product into the cart, resolving it through the snapshot.
func (r *Register) Add(productID string) error {
	cart, err := r.current()
	if err != nil {
		return err
	}
	lines := cart.Lines()
	if i := slices.IndexFunc(lines, func(l CartLine) bool { return l.Product.ID == productID }); i >= 0 {
		return cart.AddProduct(lines[i].Product)
	}
	p, ok := r.catalog.Lookup(productID)
	if !ok {
		return ErrProductNotInCatalog
	}
	return cart.AddProduct(p)
}

func (r *Register) SetQuantity(productID string, n int) error {
	cart, err := r.current()
	if err != nil {
		return err
	}
	return cart.SetQuantity(productID, n)
}

func (r *Register) Remove(productID string) error {
	cart, err := r.current()
	if err != nil {
		return err
	}
	return cart.RemoveLine(productID)
}

// Submit commits the current cart. After any attempt the server answered
// (success or validation failure) the snapshot is reloaded; a reload failure is
// logged and does not affect the result. On success a fresh cart replaces the committed one.
func (r *Register) Submit(ctx context.Context) (*Receipt, error) {
	cart, err := r.current()
	if err != nil {
		return nil, err
	}
	receipt, err := cart.Submit(ctx, r.session)

	var cve *core.CommitValidationError
	if err == nil || errors.As(err, &cve) {
		if lerr := r.catalog.Load(ctx, r.session.UserID); lerr != nil {
			r.logger.Warn("catalog refresh after submit failed", zap.Error(lerr))
		}
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("invoice committed",
		zap.String("invoice_number", receipt.InvoiceNumber),
		zap.String("total", receipt.Total.StringFixed(2)),
		zap.Bool("price_mismatch", receipt.PriceMismatch),
	)

	r.mu.Lock()
	if r.cart == cart {
		r.cart = NewCart(r.committer)
	}
	r.mu.Unlock()
	return receipt, nil
}

// Close discards the current cart. Refused while a submit is in flight.
func (r *Register) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cart == nil {
		return nil
	}
	if err := r.cart.Close(); err != nil {
		return err
	}
	r.cart = nil
	return nil
}
