package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"inventory-invoicing/internal/app"
	"inventory-invoicing/internal/core"
	"inventory-invoicing/internal/pos"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Details:   details,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type stockDetails struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// writeDomainError maps service and cart errors to HTTP responses.
// Anything unrecognised is logged and reported as a 500 without its message.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stock     *pos.StockExceededError
		invalid   *core.CommitValidationError
		transport *pos.CommitTransportError
		load      *pos.CatalogLoadError
	)
	switch {
	case errors.As(err, &stock):
		writeErrorDetails(w, r, err.Error(), "STOCK_EXCEEDED", http.StatusConflict, stockDetails{
			ProductID: stock.ProductID,
			Requested: stock.Requested,
			Available: stock.Available,
		})
	case errors.As(err, &invalid):
		writeErrorDetails(w, r, err.Error(), "COMMIT_VALIDATION_FAILED", http.StatusConflict, invalid)
	case errors.As(err, &transport):
		h.logger.Warn("invoice commit failed", zap.Error(err), zap.String("request_id", requestIDFromContext(r.Context())))
		writeError(w, r, "invoice could not be committed; the cart was kept, try again", "COMMIT_FAILED", http.StatusBadGateway)
	case errors.As(err, &load):
		h.logger.Warn("catalog load failed", zap.Error(err))
		writeError(w, r, "product catalog is unavailable, try again", "CATALOG_LOAD_FAILED", http.StatusServiceUnavailable)
	case errors.Is(err, pos.ErrEmptyCart), errors.Is(err, core.ErrNoItems):
		writeError(w, r, err.Error(), "EMPTY_CART", http.StatusUnprocessableEntity)
	case errors.Is(err, pos.ErrSubmitInProgress):
		writeError(w, r, err.Error(), "SUBMIT_IN_PROGRESS", http.StatusConflict)
	case errors.Is(err, pos.ErrCartClosed):
		writeError(w, r, err.Error(), "CART_CLOSED", http.StatusConflict)
	case errors.Is(err, pos.ErrProductNotInCatalog), errors.Is(err, pos.ErrLineNotFound), errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidProduct), errors.Is(err, app.ErrInvalidRequest):
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, r, err.Error(), "UNAUTHORIZED", http.StatusUnauthorized)
	case errors.Is(err, core.ErrUserExists):
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
	case errors.Is(err, app.ErrExtractionUnavailable):
		writeError(w, r, err.Error(), "EXTRACTION_UNAVAILABLE", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", zap.Error(err), zap.String("request_id", requestIDFromContext(r.Context())))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
