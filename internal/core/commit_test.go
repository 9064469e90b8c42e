package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockOrder_SortsAndDropsMalformed(t *testing.T) {
	items := []CommitItem{
		{ProductID: "B0000000-0000-0000-0000-000000000000", Quantity: 1},
		{ProductID: "garbage", Quantity: 1},
		{ProductID: "a0000000-0000-0000-0000-000000000000", Quantity: 1},
		{ProductID: "b0000000-0000-0000-0000-000000000000", Quantity: 2},
	}
	assert.Equal(t, []string{
		"a0000000-0000-0000-0000-000000000000",
		"b0000000-0000-0000-0000-000000000000",
	}, lockOrder(items))
}

func TestValidateCommit_ReportsFirstFailingPairInInputOrder(t *testing.T) {
	products := map[string]Product{
		"p1": {ID: "p1", Name: "One", Quantity: 1, Status: ProductActive},
		"p2": {ID: "p2", Name: "Two", Quantity: 0, Status: ProductOutOfStock},
	}
	err := validateCommit([]CommitItem{
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 5},
	}, products)

	var cve *CommitValidationError
	require.ErrorAs(t, err, &cve)
	assert.Equal(t, "p2", cve.ProductID)
	assert.Equal(t, ReasonInsufficientStock, cve.Reason)
	assert.Equal(t, 0, cve.Available)
	assert.Contains(t, cve.Error(), "Two")
}

func TestBuildInvoiceItems_UsesLivePrice(t *testing.T) {
	products := map[string]Product{
		"p1": {ID: "p1", Name: "One", UnitPrice: decimal.RequireFromString("2.50"), Quantity: 9},
		"p2": {ID: "p2", Name: "Two", UnitPrice: decimal.RequireFromString("0.10"), Quantity: 9},
	}
	lines, total := buildInvoiceItems([]CommitItem{
		{ProductID: "p2", Quantity: 3},
		{ProductID: "p1", Quantity: 2},
	}, products)

	require.Len(t, lines, 2)
	assert.Equal(t, "p2", lines[0].ProductID)
	assert.True(t, lines[0].Subtotal.Equal(decimal.RequireFromString("0.30")))
	assert.True(t, total.Equal(decimal.RequireFromString("5.30")), "total = %s", total)
}

func TestStockAfterSale(t *testing.T) {
	assert.Equal(t, ProductOutOfStock, stockAfterSale(ProductActive, 0))
	assert.Equal(t, ProductActive, stockAfterSale(ProductActive, 1))
	assert.Equal(t, ProductInactive, stockAfterSale(ProductInactive, 0))
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "FAC-2026-00042", formatInvoiceNumber(2026, 42))
}
