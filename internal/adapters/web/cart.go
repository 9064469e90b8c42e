package web

import (
	"net/http"
	"time"

	"inventory-invoicing/internal/pos"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cartLineView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  int             `json:"quantity"`
	Available int             `json:"available"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type cartView struct {
	State           string          `json:"state"`
	Lines           []cartLineView  `json:"lines"`
	Total           decimal.Decimal `json:"total"`
	ItemCount       int             `json:"item_count"`
	Notice          string          `json:"notice,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
	CatalogLoadedAt time.Time       `json:"catalog_loaded_at"`
}

func newCartView(reg *pos.Register) cartView {
	cart := reg.Cart()
	v := cartView{
		State:           pos.CartClosed.String(),
		Lines:           []cartLineView{},
		Total:           decimal.Zero,
		CatalogLoadedAt: reg.Catalog().LoadedAt(),
	}
	if cart == nil {
		return v
	}
	v.State = cart.State().String()
	for _, l := range cart.Lines() {
		v.Lines = append(v.Lines, cartLineView{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Unit:      l.Product.Unit,
			Quantity:  l.Quantity,
			Available: l.Available(),
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal(),
		})
	}
	v.Total = cart.Total()
	v.ItemCount = cart.ItemCount()
	v.Notice = cart.Notice()
	if err := cart.LastError(); err != nil {
		v.LastError = err.Error()
	}
	return v
}

// register returns the caller's open register, opening one when there is none.
func (h *Handler) register(r *http.Request) (*pos.Register, error) {
	claims := authFromContext(r.Context())
	if reg, ok := h.registers.get(claims.UserID); ok {
		return reg, nil
	}
	reg, err := h.svc.OpenRegister(r.Context(), claims.Session())
	if err != nil {
		return nil, err
	}
	return h.registers.add(claims.UserID, reg), nil
}

// refreshCatalog reloads the caller's snapshot after a catalog write.
func (h *Handler) refreshCatalog(r *http.Request) {
	claims := authFromContext(r.Context())
	reg, ok := h.registers.get(claims.UserID)
	if !ok {
		return
	}
	if err := reg.Catalog().Load(r.Context(), claims.UserID); err != nil {
		h.logger.Warn("catalog refresh failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
}

// openCart handles POST /api/cart: reloads the catalog and starts a fresh cart,
// discarding any cart in progress. Refused while the current cart is submitting.
func (h *Handler) openCart(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if old, ok := h.registers.get(claims.UserID); ok && old.Busy() {
		h.writeDomainError(w, r, pos.ErrSubmitInProgress)
		return
	}
	reg, err := h.svc.OpenRegister(r.Context(), claims.Session())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.registers.replace(claims.UserID, reg); err != nil {
		_ = reg.Close()
		h.writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, newCartView(reg))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	reg, err := h.register(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, newCartView(reg))
}

func (h *Handler) closeCart(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if reg, ok := h.registers.get(claims.UserID); ok {
		if err := reg.Close(); err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		h.registers.remove(claims.UserID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeError(w, r, "product_id is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	reg, err := h.register(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := reg.Add(req.ProductID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, newCartView(reg))
}

func (h *Handler) setLineQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeError(w, r, "quantity is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	reg, err := h.register(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := reg.SetQuantity(chi.URLParam(r, "productID"), *req.Quantity); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, newCartView(reg))
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	reg, err := h.register(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := reg.Remove(chi.URLParam(r, "productID")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, newCartView(reg))
}

// submitCart handles POST /api/cart/submit. On success the receipt is returned
// and the register already holds a fresh cart.
func (h *Handler) submitCart(w http.ResponseWriter, r *http.Request) {
	reg, err := h.register(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	receipt, err := reg.Submit(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, receipt)
}
