package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inventory-invoicing/internal/ai"
	"inventory-invoicing/internal/app"
	"inventory-invoicing/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/language"
)

type stubExtractor struct{}

func (stubExtractor) ExtractInvoiceLines(ctx context.Context, image []byte, mimeType string) ([]core.ImportLine, error) {
	return []core.ImportLine{{Name: "Fideos", Quantity: 12, UnitPrice: decimal.RequireFromString("0.85"), Unit: "unit"}}, nil
}

type testServer struct {
	t      *testing.T
	h      *Handler
	cookie *http.Cookie
	userID string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	store := core.NewMemoryStore()
	store.SetClock(clock)
	logger := zaptest.NewLogger(t)

	var extractor ai.Extractor = stubExtractor{}
	svc := app.NewAppService(store, store, store, core.NewReportingService(store, time.UTC),
		extractor, language.Spanish, logger, app.WithClock(clock))
	seed, err := svc.SeedDemo(context.Background(), "demo-pass")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHandler(ctx, svc, Options{JWTSecret: "test-secret", Location: time.UTC, Logger: logger})

	ts := &testServer{t: t, h: h, userID: seed.UserID}
	rec := ts.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "demo", "password": "demo-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookie {
			ts.cookie = c
		}
	}
	require.NotNil(t, ts.cookie)
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(path, filename string, data []byte) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(ts.t, err)
	_, err = fw.Write(data)
	require.NoError(ts.t, err)
	require.NoError(ts.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(ts.cookie)
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) findProduct(q string) core.Product {
	ts.t.Helper()
	rec := ts.do(http.MethodGet, "/api/products/search?q="+q, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[struct {
		Products []core.Product `json:"products"`
	}](ts.t, rec)
	require.NotEmpty(ts.t, res.Products)
	return res.Products[0]
}

func TestHealthAndAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = ts.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "demo", decode[app.UserResult](t, rec).Username)

	anon := &testServer{t: t, h: ts.h}
	rec = anon.do(http.MethodGet, "/api/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[errorResponse](t, rec).Code)

	rec = anon.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "demo", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged := &testServer{t: t, h: ts.h, cookie: &http.Cookie{Name: authCookie, Value: "not.a.jwt"}}
	rec = forged.do(http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterThenLogin(t *testing.T) {
	ts := newTestServer(t)
	anon := &testServer{t: t, h: ts.h}

	rec := anon.do(http.MethodPost, "/api/auth/register", map[string]string{"username": "marta", "password": "kiosko-2026"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "marta", decode[app.UserResult](t, rec).Username)

	rec = anon.do(http.MethodPost, "/api/auth/register", map[string]string{"username": "marta", "password": "kiosko-2026"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = anon.do(http.MethodPost, "/api/auth/register", map[string]string{"username": "short", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = anon.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "marta", "password": "kiosko-2026"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/products", app.ProductRequest{
		Name: "Galletitas", UnitPrice: decimal.RequireFromString("1.25"), Quantity: 9,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[app.ProductView](t, rec)
	assert.Equal(t, core.ProductActive, created.Status)

	rec = ts.do(http.MethodPost, "/api/products", app.ProductRequest{Name: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decode[errorResponse](t, rec).Code)

	rec = ts.do(http.MethodGet, "/api/products/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(http.MethodGet, "/api/products/6f1c1b51-0000-4000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/products/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, "/api/movements?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	moves := decode[app.MovementListResult](t, rec)
	require.Len(t, moves.Movements, 1)
	assert.Equal(t, core.MovementDeleted, moves.Movements[0].Type)

	rec = ts.do(http.MethodGet, "/api/movements?limit=ten", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/products/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}

func TestCartSaleFlow(t *testing.T) {
	ts := newTestServer(t)
	queso := ts.findProduct("queso")
	require.Equal(t, 6, queso.Quantity)

	for range 6 {
		rec := ts.do(http.MethodPost, "/api/cart/lines", map[string]string{"product_id": queso.ID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := ts.do(http.MethodPost, "/api/cart/lines", map[string]string{"product_id": queso.ID})
	require.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[errorResponse](t, rec)
	assert.Equal(t, "STOCK_EXCEEDED", errResp.Code)
	assert.Equal(t, map[string]any{"product_id": queso.ID, "requested": float64(7), "available": float64(6)}, errResp.Details)

	cart := decode[cartView](t, ts.do(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, "composing", cart.State)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 6, cart.Lines[0].Quantity)
	assert.NotEmpty(t, cart.Notice)
	assert.True(t, cart.Total.Equal(decimal.RequireFromString("53.40")))

	rec = ts.do(http.MethodPut, "/api/cart/lines/"+queso.ID, map[string]int{"quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/cart/submit", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var receipt struct {
		InvoiceID     string          `json:"invoice_id"`
		InvoiceNumber string          `json:"invoice_number"`
		Total         decimal.Decimal `json:"total"`
		PriceMismatch bool            `json:"price_mismatch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, "FAC-2026-00001", receipt.InvoiceNumber)
	assert.True(t, receipt.Total.Equal(decimal.RequireFromString("17.80")))
	assert.False(t, receipt.PriceMismatch)

	cart = decode[cartView](t, ts.do(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, "empty", cart.State)
	assert.Empty(t, cart.Lines)

	rec = ts.do(http.MethodPost, "/api/cart/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EMPTY_CART", decode[errorResponse](t, rec).Code)

	assert.Equal(t, 4, ts.findProduct("queso").Quantity)

	rec = ts.do(http.MethodGet, "/api/invoices/"+receipt.InvoiceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[core.Invoice](t, rec).ItemCount())

	rec = ts.do(http.MethodGet, "/api/invoices?from=2026-03-01&to=2026-04-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[app.InvoiceListResult](t, rec).Invoices, 1)

	rec = ts.do(http.MethodGet, "/api/reports/monthly?year=2026&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[core.SalesReport](t, rec)
	assert.Equal(t, 1, report.InvoiceCount)
	assert.Equal(t, 2, report.ItemsSold)

	rec = ts.do(http.MethodGet, "/api/reports/monthly?year=2026&month=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartSubmit_StaleStockIsRejectedAndCartKept(t *testing.T) {
	ts := newTestServer(t)
	yerba := ts.findProduct("yerba")

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/cart/lines", map[string]string{"product_id": yerba.ID}).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPut, "/api/cart/lines/"+yerba.ID, map[string]int{"quantity": 5}).Code)

	rec := ts.do(http.MethodPut, "/api/products/"+yerba.ID, app.ProductRequest{
		Name: yerba.Name, UnitPrice: yerba.UnitPrice, Quantity: 3, Unit: yerba.Unit, Category: yerba.Category,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/cart/submit", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[errorResponse](t, rec)
	assert.Equal(t, "COMMIT_VALIDATION_FAILED", errResp.Code)
	details, ok := errResp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(core.ReasonInsufficientStock), details["reason"])
	assert.Equal(t, float64(3), details["available"])

	cart := decode[cartView](t, ts.do(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, "failed", cart.State)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 5, cart.Lines[0].Quantity)
	assert.NotEmpty(t, cart.LastError)

	rec = ts.do(http.MethodGet, "/api/invoices", nil)
	assert.Empty(t, decode[app.InvoiceListResult](t, rec).Invoices)
}

func TestCartOpenAndClose(t *testing.T) {
	ts := newTestServer(t)
	arroz := ts.findProduct("arroz")
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/cart/lines", map[string]string{"product_id": arroz.ID}).Code)

	rec := ts.do(http.MethodPost, "/api/cart", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, decode[cartView](t, rec).Lines, "opening discards the previous cart")

	rec = ts.do(http.MethodPost, "/api/cart/lines", map[string]string{"product_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/cart", nil).Code)
	assert.Zero(t, ts.h.registers.len())
}

func TestImportEndpoints(t *testing.T) {
	ts := newTestServer(t)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	rec := ts.upload("/api/import/extract", "invoice.png", png)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	proposal := decode[app.ImportProposal](t, rec)
	require.Len(t, proposal.Lines, 1)

	rec = ts.upload("/api/import/extract", "invoice.gif", []byte("GIF89a......"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = ts.do(http.MethodPost, "/api/import/commit", proposal)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[core.ImportSummary](t, rec)
	assert.Equal(t, 1, summary.Created)

	assert.Equal(t, "Fideos", ts.findProduct("fideos").Name)

	rec = ts.do(http.MethodGet, "/api/products/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.upload("/api/import/spreadsheet", "products.xlsx", rec.Body.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[app.ImportProposal](t, rec).Lines)
}
