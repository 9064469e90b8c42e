package core

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DeletedProductName labels sales lines whose product row no longer exists.
const DeletedProductName = "deleted product"

// TopProductsLimit is the number of best sellers in a SalesReport.
const TopProductsLimit = 10

// ── Report types ──────────────────────────────────────────────────────────────

// ProductSales aggregates the units and revenue of one product over a period.
type ProductSales struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// SalesReport is the monthly sales summary of one user.
type SalesReport struct {
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	TotalSales   decimal.Decimal `json:"total_sales"`
	InvoiceCount int             `json:"invoice_count"`
	ItemsSold    int             `json:"items_sold"`
	TopProducts  []ProductSales  `json:"top_products"` // by quantity desc, ties by name
	Invoices     []Invoice       `json:"invoices"`     // newest first
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only sales reports over committed invoices.
type ReportingService interface {
	// MonthlySales reports on invoices created in [first day of month, first day of next month)
	// in the service's time zone.
	MonthlySales(ctx context.Context, userID string, year, month int) (*SalesReport, error)
}

type reportingService struct {
	invoices InvoiceService
	loc      *time.Location
}

// NewReportingService builds reports from the invoices of the given service.
// A nil loc means time.Local.
func NewReportingService(invoices InvoiceService, loc *time.Location) ReportingService {
	if loc == nil {
		loc = time.Local
	}
	return &reportingService{invoices: invoices, loc: loc}
}

// MonthWindow returns the half-open interval covering the given month in loc.
func MonthWindow(year, month int, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}

func (s *reportingService) MonthlySales(ctx context.Context, userID string, year, month int) (*SalesReport, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month must be between 1 and 12, got %d", month)
	}
	from, to := MonthWindow(year, month, s.loc)
	invoices, err := s.invoices.ListInvoices(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices for %04d-%02d: %w", year, month, err)
	}

	report := BuildSalesReport(invoices)
	report.Year = year
	report.Month = month
	report.From = from
	report.To = to
	return report, nil
}

// BuildSalesReport aggregates the given invoices. It does not filter by date.
func BuildSalesReport(invoices []Invoice) *SalesReport {
	report := &SalesReport{
		TotalSales:   decimal.Zero,
		InvoiceCount: len(invoices),
		Invoices:     invoices,
	}

	byProduct := make(map[string]*ProductSales)
	for _, inv := range invoices {
		report.TotalSales = report.TotalSales.Add(inv.Total)
		for _, it := range inv.Items {
			report.ItemsSold += it.Quantity

			key := it.ProductID
			if key == "" {
				key = "name:" + it.ProductName
			}
			ps, ok := byProduct[key]
			if !ok {
				name := it.ProductName
				if name == "" {
					name = DeletedProductName
				}
				ps = &ProductSales{ProductID: it.ProductID, ProductName: name, Revenue: decimal.Zero}
				byProduct[key] = ps
			}
			ps.QuantitySold += it.Quantity
			ps.Revenue = ps.Revenue.Add(it.Subtotal)
		}
	}

	top := make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		top = append(top, *ps)
	}
	slices.SortFunc(top, func(a, b ProductSales) int {
		if c := cmp.Compare(b.QuantitySold, a.QuantitySold); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductName, b.ProductName)
	})
	if len(top) > TopProductsLimit {
		top = top[:TopProductsLimit]
	}
	report.TopProducts = top
	return report
}
