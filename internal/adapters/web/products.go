package web

import (
	"bytes"
	"net/http"
	"strconv"

	"inventory-invoicing/internal/app"
	"inventory-invoicing/internal/core"
	"inventory-invoicing/internal/pos"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func userID(r *http.Request) string {
	return authFromContext(r.Context()).UserID
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListProducts(r.Context(), userID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req app.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), userID(r), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.refreshCatalog(r)
	writeJSONStatus(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req app.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), userID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.refreshCatalog(r)
	writeJSON(w, p)
}

func (h *Handler) archiveProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ArchiveProduct(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.refreshCatalog(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", core.DefaultMovementLimit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	res, err := h.svc.ListMovements(r.Context(), userID(r), limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// eligibleProducts handles GET /api/products/eligible: the caller's sale
// snapshot in name order.
func (h *Handler) eligibleProducts(w http.ResponseWriter, r *http.Request) {
	reg, err := h.register(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"products":  reg.Catalog().Products(),
		"loaded_at": reg.Catalog().LoadedAt(),
	})
}

// searchProducts handles GET /api/products/search?q=&limit=. Products already
// in the cart are left out. An empty q browses the whole snapshot.
func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	def := pos.AutocompleteLimit
	if q == "" {
		def = pos.GridLimit
	}
	limit, err := queryInt(r, "limit", def)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	reg, err := h.register(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"products": reg.Search(q, limit)})
}

func (h *Handler) exportProducts(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportProductsXLSX(r.Context(), userID(r), &buf); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=products.xlsx")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("product export interrupted", zap.Error(err))
	}
}
