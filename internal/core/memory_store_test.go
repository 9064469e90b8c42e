package core_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"inventory-invoicing/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithUser(t *testing.T) (*core.MemoryStore, string, context.Context) {
	t.Helper()
	ctx := context.Background()
	store := core.NewMemoryStore()
	store.SetClock(func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) })
	u, err := store.CreateUser(ctx, "cashier", "cashier@example.com", "hash")
	require.NoError(t, err)
	return store, u.ID, ctx
}

func mustCreate(t *testing.T, ctx context.Context, svc core.CatalogService, userID, name, price string, qty int) core.Product {
	t.Helper()
	p, err := svc.CreateProduct(ctx, userID, core.ProductInput{
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	})
	require.NoError(t, err)
	return *p
}

func TestMemoryStore_CommitInvoice_DeductsStockAndRecordsSale(t *testing.T) {
	store, userID, ctx := newStoreWithUser(t)
	pen := mustCreate(t, ctx, store, userID, "Pen", "1.50", 10)
	ink := mustCreate(t, ctx, store, userID, "Ink", "4.00", 2)

	res, err := store.CommitInvoice(ctx, userID, []core.CommitItem{
		{ProductID: pen.ID, Quantity: 3},
		{ProductID: ink.ID, Quantity: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "FAC-2026-00001", res.InvoiceNumber)
	assert.True(t, res.Total.Equal(decimal.RequireFromString("12.50")), "total = %s", res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, pen.ID, res.Items[0].ProductID)
	assert.Equal(t, 1, res.Items[0].LineNumber)
	assert.Equal(t, 2, res.Items[1].LineNumber)

	gotPen, err := store.GetProduct(ctx, userID, pen.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, gotPen.Quantity)
	assert.Equal(t, core.ProductActive, gotPen.Status)

	gotInk, err := store.GetProduct(ctx, userID, ink.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, gotInk.Quantity)
	assert.Equal(t, core.ProductOutOfStock, gotInk.Status)

	eligible, err := store.ListEligibleProducts(ctx, userID)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "Pen", eligible[0].Name)

	movements, err := store.ListMovements(ctx, userID, 0)
	require.NoError(t, err)
	var exits int
	for _, m := range movements {
		if m.Type == core.MovementExit {
			exits++
			require.NotNil(t, m.InvoiceID)
			assert.Equal(t, res.InvoiceID, *m.InvoiceID)
			assert.Negative(t, m.QuantityChange)
		}
	}
	assert.Equal(t, 2, exits)

	inv, err := store.GetInvoice(ctx, userID, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, 5, inv.ItemCount())
}

func TestMemoryStore_CommitInvoice_ValidationFailureWritesNothing(t *testing.T) {
	store, userID, ctx := newStoreWithUser(t)
	pen := mustCreate(t, ctx, store, userID, "Pen", "1.50", 10)
	ink := mustCreate(t, ctx, store, userID, "Ink", "4.00", 2)
	before, err := store.ListMovements(ctx, userID, 0)
	require.NoError(t, err)

	_, err = store.CommitInvoice(ctx, userID, []core.CommitItem{
		{ProductID: pen.ID, Quantity: 3},
		{ProductID: ink.ID, Quantity: 5},
	})
	var cve *core.CommitValidationError
	require.ErrorAs(t, err, &cve)
	assert.Equal(t, core.ReasonInsufficientStock, cve.Reason)
	assert.Equal(t, ink.ID, cve.ProductID)
	assert.Equal(t, "Ink", cve.ProductName)
	assert.Equal(t, 2, cve.Available)
	assert.Equal(t, 5, cve.Requested)

	gotPen, err := store.GetProduct(ctx, userID, pen.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, gotPen.Quantity, "no partial deduction")

	after, err := store.ListMovements(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	invoices, err := store.ListInvoices(ctx, userID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestMemoryStore_CommitInvoice_Rejections(t *testing.T) {
	store, userID, ctx := newStoreWithUser(t)
	pen := mustCreate(t, ctx, store, userID, "Pen", "1.50", 10)
	archived := mustCreate(t, ctx, store, userID, "Old pen", "1.00", 4)
	require.NoError(t, store.ArchiveProduct(ctx, userID, archived.ID))

	other, err := store.CreateUser(ctx, "other", "", "hash")
	require.NoError(t, err)
	foreign := mustCreate(t, ctx, store, other.ID, "Foreign", "1.00", 4)

	tests := []struct {
		name   string
		items  []core.CommitItem
		reason core.FailureReason
	}{
		{"unknown product", []core.CommitItem{{ProductID: "00000000-0000-0000-0000-000000000001", Quantity: 1}}, core.ReasonUnknownProduct},
		{"malformed id", []core.CommitItem{{ProductID: "not-a-uuid", Quantity: 1}}, core.ReasonUnknownProduct},
		{"product of another user", []core.CommitItem{{ProductID: foreign.ID, Quantity: 1}}, core.ReasonUnknownProduct},
		{"archived product", []core.CommitItem{{ProductID: archived.ID, Quantity: 1}}, core.ReasonProductInactive},
		{"zero quantity", []core.CommitItem{{ProductID: pen.ID, Quantity: 0}}, core.ReasonInvalidQuantity},
		{"duplicate product", []core.CommitItem{{ProductID: pen.ID, Quantity: 1}, {ProductID: pen.ID, Quantity: 1}}, core.ReasonDuplicateProduct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.CommitInvoice(ctx, userID, tt.items)
			var cve *core.CommitValidationError
			require.ErrorAs(t, err, &cve)
			assert.Equal(t, tt.reason, cve.Reason)
		})
	}

	_, err = store.CommitInvoice(ctx, userID, nil)
	assert.ErrorIs(t, err, core.ErrNoItems)
}

func TestMemoryStore_CommitInvoice_LastUnitSoldOnce(t *testing.T) {
	store, userID, ctx := newStoreWithUser(t)
	last := mustCreate(t, ctx, store, userID, "Last lamp", "30.00", 1)

	const sessions = 8
	var wg sync.WaitGroup
	results := make([]error, sessions)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = store.CommitInvoice(ctx, userID, []core.CommitItem{{ProductID: last.ID, Quantity: 1}})
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range results {
		var cve *core.CommitValidationError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &cve):
			rejected++
			assert.Equal(t, 0, cve.Available)
			assert.Equal(t, core.ReasonInsufficientStock, cve.Reason)
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, sessions-1, rejected)

	p, err := store.GetProduct(ctx, userID, last.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)
}

func TestMemoryStore_InvoiceNumbersAreGapless(t *testing.T) {
	store, userID, ctx := newStoreWithUser(t)
	pen := mustCreate(t, ctx, store, userID, "Pen", "1.00", 3)

	first, err := store.CommitInvoice(ctx, userID, []core.CommitItem{{ProductID: pen.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = store.CommitInvoice(ctx, userID, []core.CommitItem{{ProductID: pen.ID, Quantity: 9}})
	require.Error(t, err)
	second, err := store.CommitInvoice(ctx, userID, []core.CommitItem{{ProductID: pen.ID, Quantity: 1}})
	require.NoError(t, err)

	assert.Equal(t, "FAC-2026-00001", first.InvoiceNumber)
	assert.Equal(t, "FAC-2026-00002", second.InvoiceNumber)
}

func TestMemoryStore_ImportProducts(t *testing.T) {
	store, userID, ctx := newStoreWithUser(t)
	rice := mustCreate(t, ctx, store, userID, "Rice", "2.00", 0)
	require.Equal(t, core.ProductOutOfStock, rice.Status)

	summary, err := store.ImportProducts(ctx, userID, []core.ImportLine{
		{Name: "  rice ", Quantity: 5, UnitPrice: decimal.RequireFromString("2.25")},
		{Name: "beans", Quantity: 0, UnitPrice: decimal.RequireFromString("-1")},
		{Name: "   ", Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Created)
	require.Len(t, summary.Products, 2)

	got, err := store.GetProduct(ctx, userID, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	assert.True(t, got.UnitPrice.Equal(decimal.RequireFromString("2.25")))
	assert.Equal(t, core.ProductActive, got.Status)

	beans := summary.Products[1]
	assert.Equal(t, "Beans", beans.Name)
	assert.Equal(t, 1, beans.Quantity)
	assert.True(t, beans.UnitPrice.IsZero())
	assert.Equal(t, core.DefaultUnit, beans.Unit)

	_, err = store.ImportProducts(ctx, userID, []core.ImportLine{{Name: ""}})
	assert.Error(t, err)
}

func TestMemoryStore_ImportProducts_RejectsQuantityOverflow(t *testing.T) {
	store, userID, ctx := newStoreWithUser(t)
	milk := mustCreate(t, ctx, store, userID, "Leche", "1.05", 5)
	before, err := store.ListMovements(ctx, userID, 0)
	require.NoError(t, err)

	_, err = store.ImportProducts(ctx, userID, []core.ImportLine{
		{Name: "Yerba", Quantity: 3},
		{Name: "leche", Quantity: math.MaxInt},
	})
	require.ErrorIs(t, err, core.ErrInvalidProduct)

	got, err := store.GetProduct(ctx, userID, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity, "a rejected import leaves stock untouched")
	products, err := store.ListProducts(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, products, 1, "rows before the rejected one are rolled back")
	after, err := store.ListMovements(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	_, err = store.ImportProducts(ctx, userID, []core.ImportLine{{Name: "Leche", Quantity: core.MaxQuantity - 5}})
	require.NoError(t, err)
	got, err = store.GetProduct(ctx, userID, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, core.MaxQuantity, got.Quantity)

	_, err = store.ImportProducts(ctx, userID, []core.ImportLine{{Name: "Leche", Quantity: 1}})
	assert.ErrorIs(t, err, core.ErrInvalidProduct)

	_, err = store.ImportProducts(ctx, userID, []core.ImportLine{{Name: "Azúcar", Quantity: core.MaxQuantity + 1}})
	assert.ErrorIs(t, err, core.ErrInvalidProduct)

	_, err = store.CreateProduct(ctx, userID, core.ProductInput{Name: "Arroz", Quantity: core.MaxQuantity + 1})
	assert.ErrorIs(t, err, core.ErrInvalidProduct)
}

func TestMemoryStore_ProductLifecycleMovements(t *testing.T) {
	store, userID, ctx := newStoreWithUser(t)
	p := mustCreate(t, ctx, store, userID, "Soap", "3.00", 4)

	_, err := store.UpdateProduct(ctx, userID, p.ID, core.ProductInput{
		Name:      "Soap bar",
		UnitPrice: decimal.RequireFromString("3.50"),
		Quantity:  6,
	})
	require.NoError(t, err)
	require.NoError(t, store.ArchiveProduct(ctx, userID, p.ID))
	require.NoError(t, store.ArchiveProduct(ctx, userID, p.ID), "archiving twice is a no-op")

	movements, err := store.ListMovements(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, core.MovementDeleted, movements[0].Type)
	assert.Equal(t, core.MovementEdited, movements[1].Type)
	assert.Equal(t, 2, movements[1].QuantityChange)
	assert.Equal(t, core.MovementCreated, movements[2].Type)
	assert.Equal(t, "Soap bar", movements[2].ProductName)

	limited, err := store.ListMovements(ctx, userID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = store.GetProduct(ctx, userID, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = store.CreateProduct(ctx, userID, core.ProductInput{Name: "Bad", Quantity: -1})
	assert.Error(t, err)
}

func TestMemoryStore_Users(t *testing.T) {
	store, userID, ctx := newStoreWithUser(t)

	u, err := store.GetByUsername(ctx, "cashier")
	require.NoError(t, err)
	assert.Equal(t, userID, u.ID)

	_, err = store.CreateUser(ctx, "cashier", "", "x")
	assert.ErrorIs(t, err, core.ErrUserExists)

	_, err = store.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
