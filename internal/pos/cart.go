package pos

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"inventory-invoicing/internal/core"

	"github.com/shopspring/decimal"
)

// Committer is the authoritative, all-or-nothing invoice commit.
type Committer interface {
	CommitInvoice(ctx context.Context, userID string, items []core.CommitItem) (*core.CommitResult, error)
}

// UserSession identifies the user a cart sells for.
type UserSession struct {
	UserID   string
	Username string
}

// CartState is a position in the cart lifecycle.
type CartState int

const (
	CartEmpty CartState = iota
	CartComposing
	CartSubmitting
	CartCommitted
	CartFailed
	CartClosed
)

func (s CartState) String() string {
	switch s {
	case CartEmpty:
		return "empty"
	case CartComposing:
		return "composing"
	case CartSubmitting:
		return "submitting"
	case CartCommitted:
		return "committed"
	case CartFailed:
		return "failed"
	case CartClosed:
		return "closed"
	}
	return "unknown"
}

// CartLine is one product in the cart. Product is the snapshot copy taken when
// the line was created; its Quantity is the line's cap and UnitPrice is frozen.
type CartLine struct {
	Product   core.Product
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal is Quantity × UnitPrice.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Available is the on-hand quantity captured when the line was added.
func (l CartLine) Available() int {
	return l.Product.Quantity
}

// Receipt is handed to the caller after a successful submit.
// Total is the authoritative amount charged; CartTotal is what the cart displayed.
type Receipt struct {
	InvoiceID     string             `json:"invoice_id"`
	InvoiceNumber string             `json:"invoice_number"`
	Items         []core.InvoiceItem `json:"items"`
	Total         decimal.Decimal    `json:"total"`
	CartTotal     decimal.Decimal    `json:"cart_total"`
	PriceMismatch bool               `json:"price_mismatch"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Cart holds the candidate lines of one invoice, keyed by product id and kept
// in insertion order. It is safe for concurrent use; while a submit is in
// flight every mutation is refused with ErrSubmitInProgress.
type Cart struct {
	committer Committer

	mu      sync.Mutex
	state   CartState
	lines   []CartLine
	notice  string
	lastErr error
}

// NewCart returns an empty cart that commits through committer.
func NewCart(committer Committer) *Cart {
	return &Cart{committer: committer, state: CartEmpty}
}

// beginMutation checks the state allows editing. Caller holds c.mu.
func (c *Cart) beginMutation() error {
	switch c.state {
	case CartSubmitting:
		return ErrSubmitInProgress
	case CartCommitted, CartClosed:
		return ErrCartClosed
	case CartFailed:
		c.lastErr = nil
	}
	c.state = CartComposing
	c.notice = ""
	return nil
}

func (c *Cart) find(productID string) int {
	return slices.IndexFunc(c.lines, func(l CartLine) bool { return l.Product.ID == productID })
}

func (c *Cart) reject(l CartLine, requested int) error {
	err := &StockExceededError{
		ProductID:   l.Product.ID,
		ProductName: l.Product.Name,
		Requested:   requested,
		Available:   l.Available(),
	}
	c.notice = err.Error()
	return err
}

// AddProduct adds one unit of p. An existing line is incremented unless that
// would exceed its cap; a new line starts at quantity 1 with p's price.
func (c *Cart) AddProduct(p core.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginMutation(); err != nil {
		return err
	}

	if i := c.find(p.ID); i >= 0 {
		line := c.lines[i]
		if line.Quantity+1 > line.Available() {
			return c.reject(line, line.Quantity+1)
		}
		c.lines[i].Quantity++
		return nil
	}

	line := CartLine{Product: p, Quantity: 1, UnitPrice: p.UnitPrice}
	if line.Available() < 1 {
		return c.reject(line, 1)
	}
	c.lines = append(c.lines, line)
	return nil
}

// SetQuantity replaces a line's quantity. n < 1 removes the line. A value
// above the cap is rejected and the prior quantity kept.
func (c *Cart) SetQuantity(productID string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginMutation(); err != nil {
		return err
	}

	i := c.find(productID)
	if n < 1 {
		if i >= 0 {
			c.lines = slices.Delete(c.lines, i, i+1)
		}
		return nil
	}
	if i < 0 {
		return ErrLineNotFound
	}
	if n > c.lines[i].Available() {
		return c.reject(c.lines[i], n)
	}
	c.lines[i].Quantity = n
	return nil
}

// RemoveLine drops the product's line if present.
func (c *Cart) RemoveLine(productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginMutation(); err != nil {
		return err
	}
	if i := c.find(productID); i >= 0 {
		c.lines = slices.Delete(c.lines, i, i+1)
	}
	return nil
}

// Close discards all lines without contacting the server.
func (c *Cart) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case CartSubmitting:
		return ErrSubmitInProgress
	case CartCommitted, CartClosed:
		return nil
	}
	c.lines = nil
	c.notice = ""
	c.state = CartClosed
	return nil
}

// Submit sends the lines, in insertion order, to the committer.
// On success the cart becomes Committed and its lines are cleared. On failure it
// becomes Failed with its lines untouched; server validation failures are
// returned as *core.CommitValidationError, anything else as *CommitTransportError.
func (c *Cart) Submit(ctx context.Context, session UserSession) (*Receipt, error) {
	c.mu.Lock()
	switch c.state {
	case CartSubmitting:
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	case CartCommitted, CartClosed:
		c.mu.Unlock()
		return nil, ErrCartClosed
	}
	if len(c.lines) == 0 {
		c.mu.Unlock()
		return nil, ErrEmptyCart
	}
	items := make([]core.CommitItem, len(c.lines))
	for i, l := range c.lines {
		items[i] = core.CommitItem{ProductID: l.Product.ID, Quantity: l.Quantity}
	}
	cartTotal := c.total()
	c.state = CartSubmitting
	c.notice = ""
	c.mu.Unlock()

	res, err := c.committer.CommitInvoice(ctx, session.UserID, items)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		var cve *core.CommitValidationError
		if !errors.As(err, &cve) {
			err = &CommitTransportError{Err: err}
		}
		c.state = CartFailed
		c.lastErr = err
		return nil, err
	}

	c.state = CartCommitted
	c.lines = nil
	c.lastErr = nil
	return &Receipt{
		InvoiceID:     res.InvoiceID,
		InvoiceNumber: res.InvoiceNumber,
		Items:         res.Items,
		Total:         res.Total,
		CartTotal:     cartTotal,
		PriceMismatch: !res.Total.Equal(cartTotal),
		CreatedAt:     res.CreatedAt,
	}, nil
}

func (c *Cart) total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Total is the sum of line subtotals at the frozen cart prices.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total()
}

// ItemCount is the sum of line quantities.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.lines)
}

// ProductIDs returns the product id of every line, for search exclusion.
func (c *Cart) ProductIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(c.lines))
	for i, l := range c.lines {
		ids[i] = l.Product.ID
	}
	return ids
}

func (c *Cart) State() CartState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Notice is the transient message left by the last rejected mutation.
func (c *Cart) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// LastError is the error of the last failed submit, cleared by the next mutation.
func (c *Cart) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
