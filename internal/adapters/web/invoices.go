package web

import (
	"fmt"
	"net/http"
	"time"

	"inventory-invoicing/internal/app"

	"github.com/go-chi/chi/v5"
)

// queryDate parses an optional YYYY-MM-DD query parameter as midnight in loc.
func queryDate(r *http.Request, name string, loc *time.Location) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", app.ErrInvalidRequest, name)
	}
	return t, nil
}

// listInvoices handles GET /api/invoices?from=&to=. The range is [from, to).
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from", h.loc)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	to, err := queryDate(r, "to", h.loc)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	res, err := h.svc.ListInvoices(r.Context(), userID(r), from, to)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.GetInvoice(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

// monthlyReport handles GET /api/reports/monthly?year=&month=, defaulting to the current month.
func (h *Handler) monthlyReport(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	report, err := h.svc.MonthlySales(r.Context(), userID(r), year, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, report)
}
