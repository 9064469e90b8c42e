package app_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"inventory-invoicing/internal/ai"
	"inventory-invoicing/internal/app"
	"inventory-invoicing/internal/core"
	"inventory-invoicing/internal/pos"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/language"
)

type fakeExtractor struct {
	lines []core.ImportLine
	err   error
}

func (f *fakeExtractor) ExtractInvoiceLines(ctx context.Context, image []byte, mimeType string) ([]core.ImportLine, error) {
	return f.lines, f.err
}

func newService(t *testing.T, extractor *fakeExtractor) (app.ApplicationService, *core.MemoryStore) {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	store := core.NewMemoryStore()
	store.SetClock(clock)
	reports := core.NewReportingService(store, time.UTC)
	var ex ai.Extractor
	if extractor != nil {
		ex = extractor
	}
	svc := app.NewAppService(store, store, store, reports, ex, language.Spanish, zaptest.NewLogger(t), app.WithClock(clock))
	return svc, store
}

func seeded(t *testing.T, svc app.ApplicationService) *app.SeedResult {
	t.Helper()
	res, err := svc.SeedDemo(context.Background(), "demo-pass")
	require.NoError(t, err)
	return res
}

func TestSeedDemo_IsIdempotent(t *testing.T) {
	svc, _ := newService(t, nil)
	first := seeded(t, svc)
	assert.True(t, first.UserCreated)
	assert.Greater(t, first.ProductsCreated, 0)

	second := seeded(t, svc)
	assert.False(t, second.UserCreated)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Zero(t, second.ProductsCreated)
}

func TestAuthenticateUser(t *testing.T) {
	svc, _ := newService(t, nil)
	seed := seeded(t, svc)
	ctx := context.Background()

	session, err := svc.AuthenticateUser(ctx, " demo ", "demo-pass")
	require.NoError(t, err)
	assert.Equal(t, seed.UserID, session.UserID)
	assert.Equal(t, app.DemoUsername, session.Username)

	_, err = svc.AuthenticateUser(ctx, "demo", "wrong")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)
	_, err = svc.AuthenticateUser(ctx, "nobody", "demo-pass")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)

	user, err := svc.GetUser(ctx, seed.UserID)
	require.NoError(t, err)
	assert.Equal(t, "demo@example.com", user.Email)
}

func TestRegisterUser_Validation(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, app.RegisterUserRequest{Username: "", Password: "long-enough"})
	assert.ErrorIs(t, err, app.ErrInvalidRequest)
	_, err = svc.RegisterUser(ctx, app.RegisterUserRequest{Username: "ana", Password: "short"})
	assert.ErrorIs(t, err, app.ErrInvalidRequest)

	_, err = svc.RegisterUser(ctx, app.RegisterUserRequest{Username: "ana", Password: "long-enough"})
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, app.RegisterUserRequest{Username: "ana", Password: "long-enough"})
	assert.ErrorIs(t, err, core.ErrUserExists)
}

func TestProducts_ExpirationAndValidation(t *testing.T) {
	svc, _ := newService(t, nil)
	seed := seeded(t, svc)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, seed.UserID, app.ProductRequest{
		Name:           "Yogur",
		UnitPrice:      decimal.NewFromInt(2),
		Quantity:       4,
		ExpirationDate: "2026-03-18",
	})
	require.NoError(t, err)
	assert.Equal(t, core.ExpirationSoon, p.ExpirationStatus)
	require.NotNil(t, p.DaysToExpiry)
	assert.Equal(t, 4, *p.DaysToExpiry)

	_, err = svc.CreateProduct(ctx, seed.UserID, app.ProductRequest{Name: "Bad", ExpirationDate: "18/03/2026"})
	assert.ErrorIs(t, err, core.ErrInvalidProduct)
	_, err = svc.CreateProduct(ctx, seed.UserID, app.ProductRequest{Name: "  "})
	assert.ErrorIs(t, err, core.ErrInvalidProduct)

	require.NoError(t, svc.ArchiveProduct(ctx, seed.UserID, p.ID))
	got, err := svc.GetProduct(ctx, seed.UserID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ProductInactive, got.Status)

	moves, err := svc.ListMovements(ctx, seed.UserID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, moves.Movements)
	assert.Equal(t, core.MovementDeleted, moves.Movements[0].Type)
}

func TestOpenRegister_SellsAndReports(t *testing.T) {
	svc, _ := newService(t, nil)
	seed := seeded(t, svc)
	ctx := context.Background()

	reg, err := svc.OpenRegister(ctx, app.UserSession{UserID: seed.UserID, Username: app.DemoUsername})
	require.NoError(t, err)

	hits := reg.Search("leche", pos.AutocompleteLimit)
	require.Len(t, hits, 2)
	assert.Equal(t, "Leche entera", hits[0].Name, "prefix match ranks first")
	for _, p := range reg.Search("", pos.GridLimit) {
		assert.NotEqual(t, "Lavandina", p.Name, "out of stock products are not offered")
	}

	require.NoError(t, reg.Add(hits[0].ID))
	require.NoError(t, reg.SetQuantity(hits[0].ID, 3))
	receipt, err := reg.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-00001", receipt.InvoiceNumber)
	assert.True(t, receipt.Total.Equal(decimal.RequireFromString("3.15")))

	invoices, err := svc.ListInvoices(ctx, seed.UserID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, invoices.Invoices, 1)

	report, err := svc.MonthlySales(ctx, seed.UserID, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, report.InvoiceCount)
	assert.Equal(t, 3, report.ItemsSold)

	_, err = svc.MonthlySales(ctx, seed.UserID, 2026, 13)
	assert.ErrorIs(t, err, app.ErrInvalidRequest)
}

func TestExtractAndCommitImport(t *testing.T) {
	ex := &fakeExtractor{lines: []core.ImportLine{
		{Name: "Leche entera", Quantity: 10, UnitPrice: decimal.RequireFromString("1.10")},
		{Name: "Fideos", Quantity: 5, UnitPrice: decimal.RequireFromString("0.90")},
	}}
	svc, _ := newService(t, ex)
	seed := seeded(t, svc)
	ctx := context.Background()

	_, err := svc.ExtractImport(ctx, app.ImageUpload{MimeType: "image/gif", Data: []byte("x")})
	assert.ErrorIs(t, err, app.ErrInvalidRequest)

	proposal, err := svc.ExtractImport(ctx, app.ImageUpload{MimeType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	require.Len(t, proposal.Lines, 2)

	summary, err := svc.CommitImport(ctx, seed.UserID, proposal.Lines)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Updated)

	_, err = svc.CommitImport(ctx, seed.UserID, []core.ImportLine{{Name: "  "}})
	assert.ErrorIs(t, err, app.ErrInvalidRequest)

	ex.err = errors.New("model unavailable")
	_, err = svc.ExtractImport(ctx, app.ImageUpload{MimeType: "image/png", Data: []byte("png")})
	assert.ErrorContains(t, err, "model unavailable")
}

func TestExtractImport_Unconfigured(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.ExtractImport(context.Background(), app.ImageUpload{MimeType: "image/png", Data: []byte("png")})
	assert.ErrorIs(t, err, app.ErrExtractionUnavailable)
}

func TestSpreadsheet_ExportThenImport(t *testing.T) {
	svc, _ := newService(t, nil)
	seed := seeded(t, svc)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, svc.ExportProductsXLSX(ctx, seed.UserID, &buf))
	require.NotZero(t, buf.Len())

	proposal, err := svc.ParseImportSpreadsheet(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	products, err := svc.ListProducts(ctx, seed.UserID)
	require.NoError(t, err)
	require.Len(t, proposal.Lines, len(products.Products))

	byName := map[string]core.ImportLine{}
	for _, l := range proposal.Lines {
		byName[l.Name] = l
	}
	arroz, ok := byName["Arroz largo fino"]
	require.True(t, ok)
	assert.Equal(t, 40, arroz.Quantity)
	assert.Equal(t, "kg", arroz.Unit)
	assert.True(t, arroz.UnitPrice.Equal(decimal.RequireFromString("1.8")))

	lavandina := byName["Lavandina"]
	assert.Equal(t, 1, lavandina.Quantity, "zero quantity imports as one unit")
}

func TestParseImportSpreadsheet_RejectsGarbage(t *testing.T) {
	svc, _ := newService(t, nil)
	data := []byte("not a spreadsheet")
	_, err := svc.ParseImportSpreadsheet(context.Background(), bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, app.ErrInvalidRequest)
}

func TestParseImportSpreadsheet_CapsHugeQuantity(t *testing.T) {
	svc, _ := newService(t, nil)
	seed := seeded(t, svc)
	ctx := context.Background()

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Compras")
	require.NoError(t, err)
	header := sheet.AddRow()
	header.AddCell().SetString("Name")
	header.AddCell().SetString("Quantity")
	row := sheet.AddRow()
	row.AddCell().SetString("Arroz largo fino")
	row.AddCell().SetString("1e30")
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))

	proposal, err := svc.ParseImportSpreadsheet(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, proposal.Lines, 1)
	assert.Equal(t, core.MaxQuantity, proposal.Lines[0].Quantity)

	_, err = svc.CommitImport(ctx, seed.UserID, proposal.Lines)
	assert.ErrorIs(t, err, core.ErrInvalidProduct, "on-hand stock plus the capped quantity overflows")
}
