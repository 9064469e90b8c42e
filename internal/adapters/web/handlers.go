package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"inventory-invoicing/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures the HTTP handler.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	CartIdleTTL    time.Duration  // default 30m
	Location       *time.Location // for date query parameters; default time.Local
	Logger         *zap.Logger
}

// Handler holds the ApplicationService, the chi router, and the open registers.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	registers *registerStore
	jwtSecret string
	loc       *time.Location
	logger    *zap.Logger
}

// NewHandler creates and wires the chi router with all routes. The idle-cart
// purge runs until ctx is done.
func NewHandler(ctx context.Context, svc app.ApplicationService, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.CartIdleTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	h := &Handler{
		svc:       svc,
		registers: newRegisterStore(ttl, logger),
		jwtSecret: opts.JWTSecret,
		loc:       loc,
		logger:    logger,
	}
	h.registers.startPurge(ctx)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Auth (public API) ─────────────────────────────────────────────────────
	r.With(RequestBodyLimit(1<<20)).Post("/api/auth/login", h.login)
	r.With(RequestBodyLimit(1<<20)).Post("/api/auth/register", h.signup)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		// Uploads: body limit is managed inside the handlers.
		r.Post("/api/import/extract", h.importExtract)
		r.Post("/api/import/spreadsheet", h.importSpreadsheet)

		r.Group(func(r chi.Router) {
			r.Use(RequestBodyLimit(1 << 20))

			r.Get("/api/auth/me", h.me)

			// ── Catalog ───────────────────────────────────────────────────────
			r.Get("/api/products", h.listProducts)
			r.Post("/api/products", h.createProduct)
			r.Get("/api/products/eligible", h.eligibleProducts)
			r.Get("/api/products/search", h.searchProducts)
			r.Get("/api/products/export.xlsx", h.exportProducts)
			r.Get("/api/products/{id}", h.getProduct)
			r.Put("/api/products/{id}", h.updateProduct)
			r.Delete("/api/products/{id}", h.archiveProduct)
			r.Get("/api/movements", h.listMovements)

			// ── Cart ──────────────────────────────────────────────────────────
			r.Post("/api/cart", h.openCart)
			r.Get("/api/cart", h.getCart)
			r.Delete("/api/cart", h.closeCart)
			r.Post("/api/cart/lines", h.addLine)
			r.Put("/api/cart/lines/{productID}", h.setLineQuantity)
			r.Delete("/api/cart/lines/{productID}", h.removeLine)
			r.Post("/api/cart/submit", h.submitCart)

			// ── Invoices & reports ────────────────────────────────────────────
			r.Get("/api/invoices", h.listInvoices)
			r.Get("/api/invoices/{id}", h.getInvoice)
			r.Get("/api/reports/monthly", h.monthlyReport)

			r.Post("/api/import/commit", h.importCommit)
		})
	})

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status    string `json:"status"`
		OpenCarts int    `json:"open_carts"`
	}
	writeJSON(w, response{Status: "ok", OpenCarts: h.registers.len()})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", app.ErrInvalidRequest, name)
	}
	return n, nil
}
