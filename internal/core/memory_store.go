package core

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process implementation of CatalogService, InvoiceService
// and UserService. It serves the demo mode (no DATABASE_URL) and the unit tests.
// A single mutex serialises every write, so CommitInvoice validates and applies
// a whole sale atomically with respect to concurrent commits.
type MemoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	users     map[string]User
	products  map[string]Product
	invoices  []Invoice
	movements []StockMovement
	sequences map[string]int64
	nextItem  int64
	nextMove  int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:       time.Now,
		users:     make(map[string]User),
		products:  make(map[string]Product),
		sequences: make(map[string]int64),
	}
}

// SetClock replaces the time source. Intended for tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// ── Users ─────────────────────────────────────────────────────────────────────

func (m *MemoryStore) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username && u.IsActive {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (m *MemoryStore) GetByID(_ context.Context, userID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user id=%s: %w", userID, ErrNotFound)
	}
	return &u, nil
}

func (m *MemoryStore) CreateUser(_ context.Context, username, email, passwordHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return nil, fmt.Errorf("user %q: %w", username, ErrUserExists)
		}
	}
	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    m.now(),
	}
	m.users[u.ID] = u
	return &u, nil
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (m *MemoryStore) ListEligibleProducts(_ context.Context, userID string) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for _, p := range m.products {
		if p.UserID == userID && p.Sellable() {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Product) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *MemoryStore) ListProducts(_ context.Context, userID string) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for _, p := range m.products {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (m *MemoryStore) GetProduct(_ context.Context, userID, productID string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.product(userID, productID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *MemoryStore) product(userID, productID string) (Product, error) {
	if id, err := uuid.Parse(productID); err == nil {
		productID = id.String()
	}
	p, ok := m.products[productID]
	if !ok || p.UserID != userID {
		return Product{}, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return p, nil
}

func (m *MemoryStore) insertProduct(userID string, in ProductInput) Product {
	now := m.now()
	p := Product{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           in.Name,
		Description:    in.Description,
		Category:       in.Category,
		UnitPrice:      in.UnitPrice,
		Quantity:       in.Quantity,
		Unit:           in.Unit,
		Status:         in.Status,
		Barcode:        in.Barcode,
		Location:       in.Location,
		Supplier:       in.Supplier,
		ExpirationDate: in.ExpirationDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.products[p.ID] = p
	return p
}

func (m *MemoryStore) appendMovement(mv StockMovement) {
	m.nextMove++
	mv.ID = m.nextMove
	mv.QuantityChange = mv.QuantityAfter - mv.QuantityBefore
	mv.CreatedAt = m.now()
	m.movements = append(m.movements, mv)
}

func (m *MemoryStore) CreateProduct(_ context.Context, userID string, in ProductInput) (*Product, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.insertProduct(userID, in)
	m.appendMovement(StockMovement{
		UserID:        userID,
		ProductID:     p.ID,
		Type:          MovementCreated,
		QuantityAfter: p.Quantity,
		Reason:        "product created",
	})
	return &p, nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, userID, productID string, in ProductInput) (*Product, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	before, err := m.product(userID, productID)
	if err != nil {
		return nil, err
	}
	p := before
	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.UnitPrice = in.UnitPrice
	p.Quantity = in.Quantity
	p.Unit = in.Unit
	p.Status = in.Status
	p.Barcode = in.Barcode
	p.Location = in.Location
	p.Supplier = in.Supplier
	p.ExpirationDate = in.ExpirationDate
	p.UpdatedAt = m.now()
	m.products[p.ID] = p

	m.appendMovement(StockMovement{
		UserID:         userID,
		ProductID:      p.ID,
		Type:           MovementEdited,
		QuantityBefore: before.Quantity,
		QuantityAfter:  p.Quantity,
		Reason:         "product edited",
	})
	return &p, nil
}

func (m *MemoryStore) ArchiveProduct(_ context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.product(userID, productID)
	if err != nil {
		return err
	}
	if p.Status == ProductInactive {
		return nil
	}
	p.Status = ProductInactive
	p.UpdatedAt = m.now()
	m.products[p.ID] = p
	m.appendMovement(StockMovement{
		UserID:         userID,
		ProductID:      p.ID,
		Type:           MovementDeleted,
		QuantityBefore: p.Quantity,
		QuantityAfter:  p.Quantity,
		Reason:         "product archived",
	})
	return nil
}

func (m *MemoryStore) ListMovements(_ context.Context, userID string, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = DefaultMovementLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []StockMovement
	for i := len(m.movements) - 1; i >= 0 && len(out) < limit; i-- {
		mv := m.movements[i]
		if mv.UserID != userID {
			continue
		}
		if p, ok := m.products[mv.ProductID]; ok {
			mv.ProductName = p.Name
		} else {
			mv.ProductName = DeletedProductName
		}
		out = append(out, mv)
	}
	return out, nil
}

func (m *MemoryStore) ImportProducts(_ context.Context, userID string, lines []ImportLine) (*ImportSummary, error) {
	lines = NormalizeImportLines(lines)
	if len(lines) == 0 {
		return nil, fmt.Errorf("import contains no valid rows")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rows apply in order so later rows see products created by earlier ones.
	// A rejected row restores the state captured here.
	products := maps.Clone(m.products)
	movements, nextMove := len(m.movements), m.nextMove
	rollback := func() {
		m.products = products
		m.movements = m.movements[:movements]
		m.nextMove = nextMove
	}

	summary := &ImportSummary{}
	for _, l := range lines {
		if existing, ok := m.matchByName(userID, l.Name); ok {
			p, err := applyImport(existing, l)
			if err != nil {
				rollback()
				return nil, err
			}
			p.UpdatedAt = m.now()
			m.products[p.ID] = p
			m.appendMovement(StockMovement{
				UserID:         userID,
				ProductID:      p.ID,
				Type:           MovementEntry,
				QuantityBefore: existing.Quantity,
				QuantityAfter:  p.Quantity,
				Reason:         "bulk import",
			})
			summary.Updated++
			summary.Products = append(summary.Products, p)
			continue
		}

		in, err := importedProductInput(l)
		if err != nil {
			rollback()
			return nil, err
		}
		p := m.insertProduct(userID, in)
		m.appendMovement(StockMovement{
			UserID:        userID,
			ProductID:     p.ID,
			Type:          MovementCreated,
			QuantityAfter: p.Quantity,
			Reason:        "bulk import",
		})
		summary.Created++
		summary.Products = append(summary.Products, p)
	}
	return summary, nil
}

// matchByName finds the user's product with the same case-insensitive name,
// preferring non-archived and then older rows.
func (m *MemoryStore) matchByName(userID, name string) (Product, bool) {
	var best Product
	found := false
	for _, p := range m.products {
		if p.UserID != userID || !strings.EqualFold(p.Name, name) {
			continue
		}
		if !found || betterImportMatch(p, best) {
			best, found = p, true
		}
	}
	return best, found
}

func betterImportMatch(a, b Product) bool {
	aArchived, bArchived := a.Status == ProductInactive, b.Status == ProductInactive
	if aArchived != bArchived {
		return !aArchived
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// ── Invoices ──────────────────────────────────────────────────────────────────

func (m *MemoryStore) CommitInvoice(_ context.Context, userID string, items []CommitItem) (*CommitResult, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	items = canonicalItems(items)

	m.mu.Lock()
	defer m.mu.Unlock()

	locked := make(map[string]Product, len(items))
	for _, id := range lockOrder(items) {
		if p, ok := m.products[id]; ok && p.UserID == userID {
			locked[id] = p
		}
	}
	if err := validateCommit(items, locked); err != nil {
		return nil, err
	}
	lines, total := buildInvoiceItems(items, locked)

	now := m.now()
	seqKey := fmt.Sprintf("%s/%d", userID, now.Year())
	m.sequences[seqKey]++
	number := formatInvoiceNumber(now.Year(), m.sequences[seqKey])
	invoiceID := uuid.NewString()

	for i := range lines {
		m.nextItem++
		lines[i].ID = m.nextItem
		lines[i].InvoiceID = invoiceID

		p := locked[lines[i].ProductID]
		remaining := p.Quantity - lines[i].Quantity
		p.Quantity = remaining
		p.Status = stockAfterSale(p.Status, remaining)
		p.UpdatedAt = now
		m.products[p.ID] = p

		id := invoiceID
		m.appendMovement(StockMovement{
			UserID:         userID,
			ProductID:      p.ID,
			Type:           MovementExit,
			QuantityBefore: remaining + lines[i].Quantity,
			QuantityAfter:  remaining,
			Reason:         "sale " + number,
			InvoiceID:      &id,
		})
	}

	m.invoices = append(m.invoices, Invoice{
		ID:            invoiceID,
		UserID:        userID,
		InvoiceNumber: number,
		Total:         total,
		CreatedAt:     now,
		Items:         slices.Clone(lines),
	})

	return &CommitResult{
		InvoiceID:     invoiceID,
		InvoiceNumber: number,
		Total:         total,
		CreatedAt:     now,
		Items:         lines,
	}, nil
}

func (m *MemoryStore) GetInvoice(_ context.Context, userID, invoiceID string) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.ID == invoiceID && inv.UserID == userID {
			out := m.withLiveNames(inv)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
}

func (m *MemoryStore) ListInvoices(_ context.Context, userID string, from, to time.Time) ([]Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for i := len(m.invoices) - 1; i >= 0; i-- {
		inv := m.invoices[i]
		if inv.UserID != userID {
			continue
		}
		if !from.IsZero() && inv.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !inv.CreatedAt.Before(to) {
			continue
		}
		out = append(out, m.withLiveNames(inv))
	}
	return out, nil
}

// withLiveNames copies inv, joining product names and units like the SQL read path does.
func (m *MemoryStore) withLiveNames(inv Invoice) Invoice {
	inv.Items = slices.Clone(inv.Items)
	for i, it := range inv.Items {
		if p, ok := m.products[it.ProductID]; ok {
			inv.Items[i].ProductName = p.Name
			inv.Items[i].Unit = p.Unit
		} else {
			inv.Items[i].ProductName = DeletedProductName
		}
	}
	return inv
}

var (
	_ CatalogService = (*MemoryStore)(nil)
	_ InvoiceService = (*MemoryStore)(nil)
	_ UserService    = (*MemoryStore)(nil)
)
