package core_test

import (
	"testing"
	"time"

	"inventory-invoicing/internal/core"

	"github.com/shopspring/decimal"
)

func TestReporting_MonthlySalesFromPostgres(t *testing.T) {
	pool, userID, ctx := setupTestDB(t)
	catalog := core.NewCatalogService(pool)
	invoices := core.NewInvoiceService(pool)
	reporting := core.NewReportingService(invoices, time.Local)

	tea, err := catalog.CreateProduct(ctx, userID, core.ProductInput{Name: "Tea", UnitPrice: decimal.NewFromInt(3), Quantity: 20})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	mug, err := catalog.CreateProduct(ctx, userID, core.ProductInput{Name: "Mug", UnitPrice: decimal.RequireFromString("7.25"), Quantity: 5})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	sales := [][]core.CommitItem{
		{{ProductID: tea.ID, Quantity: 2}, {ProductID: mug.ID, Quantity: 1}},
		{{ProductID: tea.ID, Quantity: 4}},
	}
	for _, items := range sales {
		if _, err := invoices.CommitInvoice(ctx, userID, items); err != nil {
			t.Fatalf("CommitInvoice failed: %v", err)
		}
	}

	now := time.Now()
	report, err := reporting.MonthlySales(ctx, userID, now.Year(), int(now.Month()))
	if err != nil {
		t.Fatalf("MonthlySales failed: %v", err)
	}

	if report.InvoiceCount != 2 {
		t.Errorf("expected 2 invoices, got %d", report.InvoiceCount)
	}
	if report.ItemsSold != 7 {
		t.Errorf("expected 7 items sold, got %d", report.ItemsSold)
	}
	if want := decimal.RequireFromString("25.25"); !report.TotalSales.Equal(want) {
		t.Errorf("expected total %s, got %s", want, report.TotalSales)
	}
	if len(report.TopProducts) != 2 || report.TopProducts[0].ProductName != "Tea" || report.TopProducts[0].QuantitySold != 6 {
		t.Errorf("unexpected top products: %+v", report.TopProducts)
	}

	prev := now.AddDate(0, -1, 0)
	empty, err := reporting.MonthlySales(ctx, userID, prev.Year(), int(prev.Month()))
	if err != nil {
		t.Fatalf("MonthlySales (previous month) failed: %v", err)
	}
	if empty.InvoiceCount != 0 || !empty.TotalSales.IsZero() {
		t.Errorf("expected an empty previous month, got %+v", empty)
	}
}

func TestCatalogService_EditArchiveAndMovements(t *testing.T) {
	pool, userID, ctx := setupTestDB(t)
	catalog := core.NewCatalogService(pool)

	p, err := catalog.CreateProduct(ctx, userID, core.ProductInput{Name: "Flour", UnitPrice: decimal.NewFromInt(2), Quantity: 4})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	edited, err := catalog.UpdateProduct(ctx, userID, p.ID, core.ProductInput{Name: "Flour 000", UnitPrice: decimal.NewFromInt(2), Quantity: 0})
	if err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}
	if edited.Status != core.ProductOutOfStock {
		t.Errorf("expected out_of_stock after zeroing quantity, got %s", edited.Status)
	}

	if err := catalog.ArchiveProduct(ctx, userID, p.ID); err != nil {
		t.Fatalf("ArchiveProduct failed: %v", err)
	}
	eligible, err := catalog.ListEligibleProducts(ctx, userID)
	if err != nil {
		t.Fatalf("ListEligibleProducts failed: %v", err)
	}
	if len(eligible) != 0 {
		t.Errorf("archived product must not be sellable, got %+v", eligible)
	}

	movements, err := catalog.ListMovements(ctx, userID, 0)
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	var types []core.MovementType
	for _, m := range movements {
		types = append(types, m.Type)
	}
	want := []core.MovementType{core.MovementDeleted, core.MovementEdited, core.MovementCreated}
	if len(types) != len(want) {
		t.Fatalf("expected movements %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("movement %d: expected %s, got %s", i, want[i], types[i])
		}
	}
	if movements[1].QuantityChange != -4 {
		t.Errorf("expected edit change -4, got %d", movements[1].QuantityChange)
	}

	if _, err := catalog.GetProduct(ctx, userID, "not-a-uuid"); err == nil {
		t.Error("expected an error for an unknown product id")
	}
}
