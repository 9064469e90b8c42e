package pos

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"inventory-invoicing/internal/core"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	// AutocompleteLimit is the result count for type-ahead search.
	AutocompleteLimit = 8
	// GridLimit is the result count for grid browsing.
	GridLimit = 12
)

// ProductSource lists the sellable products of a user, ordered by name.
type ProductSource interface {
	ListEligibleProducts(ctx context.Context, userID string) ([]core.Product, error)
}

// CatalogSnapshot is a read-mostly local copy of the products eligible for sale.
// It is safe for concurrent use. Loads replace the contents atomically; a failed
// load leaves the previous contents in place.
type CatalogSnapshot struct {
	source ProductSource
	locale language.Tag
	now    func() time.Time
	group  singleflight.Group

	mu       sync.RWMutex
	products []core.Product // eligible only, in locale name order
	byID     map[string]core.Product
	loadedAt time.Time
}

// SnapshotOption configures a CatalogSnapshot.
type SnapshotOption func(*CatalogSnapshot)

// WithLocale sets the language used to order product names.
func WithLocale(tag language.Tag) SnapshotOption {
	return func(s *CatalogSnapshot) { s.locale = tag }
}

// WithClock replaces the time source used for LoadedAt.
func WithClock(now func() time.Time) SnapshotOption {
	return func(s *CatalogSnapshot) { s.now = now }
}

// NewCatalogSnapshot returns an empty snapshot over source. Names are ordered
// with Spanish collation unless WithLocale says otherwise.
func NewCatalogSnapshot(source ProductSource, opts ...SnapshotOption) *CatalogSnapshot {
	s := &CatalogSnapshot{
		source: source,
		locale: language.Spanish,
		now:    time.Now,
		byID:   map[string]core.Product{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadTimeout bounds a shared fetch, which no single caller can cancel.
const loadTimeout = 30 * time.Second

// Load fetches every eligible product of userID and replaces the snapshot.
// Concurrent loads for the same user share a single fetch. The fetch outlives
// any one caller's cancellation; a caller whose ctx ends stops waiting and
// gets a *CatalogLoadError while the others still receive the result.
func (s *CatalogSnapshot) Load(ctx context.Context, userID string) error {
	ch := s.group.DoChan(userID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		products, err := s.source.ListEligibleProducts(fetchCtx, userID)
		if err != nil {
			return nil, err
		}
		s.replace(products)
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return &CatalogLoadError{UserID: userID, Err: res.Err}
		}
		return nil
	case <-ctx.Done():
		return &CatalogLoadError{UserID: userID, Err: ctx.Err()}
	}
}

func (s *CatalogSnapshot) replace(products []core.Product) {
	eligible := make([]core.Product, 0, len(products))
	byID := make(map[string]core.Product, len(products))
	for _, p := range products {
		if !p.Sellable() {
			continue
		}
		eligible = append(eligible, p)
		byID[p.ID] = p
	}

	c := collate.New(s.locale, collate.IgnoreCase)
	slices.SortStableFunc(eligible, func(a, b core.Product) int {
		return c.CompareString(a.Name, b.Name)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = eligible
	s.byID = byID
	s.loadedAt = s.now()
}

// Search yields the eligible products matching term: names starting with term
// first, then the remaining matches, each group in locale name order.
// An empty term matches everything. Products in excludeIDs are skipped.
// The sequence reads the contents current at call time and may be ranged over again.
func (s *CatalogSnapshot) Search(term string, excludeIDs ...string) iter.Seq[core.Product] {
	s.mu.RLock()
	products := s.products
	s.mu.RUnlock()

	raw := strings.TrimSpace(term)
	folded := strings.ToLower(raw)
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	return func(yield func(core.Product) bool) {
		for _, prefixPass := range []bool{true, false} {
			for _, p := range products {
				if excluded[p.ID] || !p.Sellable() {
					continue
				}
				if !matches(p, raw, folded) {
					continue
				}
				if strings.HasPrefix(strings.ToLower(p.Name), folded) != prefixPass {
					continue
				}
				if !yield(p) {
					return
				}
			}
		}
	}
}

func matches(p core.Product, raw, folded string) bool {
	if folded == "" {
		return true
	}
	for _, field := range []string{p.Name, p.Category, p.Description, p.Barcode} {
		if strings.Contains(strings.ToLower(field), folded) {
			return true
		}
	}
	return p.Barcode != "" && strings.Contains(p.Barcode, raw)
}

// Top returns at most k results of Search.
func (s *CatalogSnapshot) Top(term string, k int, excludeIDs ...string) []core.Product {
	if k <= 0 {
		return nil
	}
	out := make([]core.Product, 0, k)
	for p := range s.Search(term, excludeIDs...) {
		out = append(out, p)
		if len(out) == k {
			break
		}
	}
	return out
}

// Lookup returns the snapshot copy of an eligible product.
func (s *CatalogSnapshot) Lookup(productID string) (core.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[productID]
	return p, ok
}

// Products returns a copy of the snapshot contents in name order.
func (s *CatalogSnapshot) Products() []core.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.products)
}

// LoadedAt is the time of the last successful load, or zero.
func (s *CatalogSnapshot) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
