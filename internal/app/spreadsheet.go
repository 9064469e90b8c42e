package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"inventory-invoicing/internal/core"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

var exportHeaders = []string{
	"Name", "Category", "Description", "Unit price", "Quantity", "Unit",
	"Status", "Barcode", "Location", "Supplier", "Expiration date",
}

func (s *appService) ExportProductsXLSX(ctx context.Context, userID string, w io.Writer) error {
	products, err := s.catalog.ListProducts(ctx, userID)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.Category)
		row.AddCell().SetString(p.Description)
		row.AddCell().SetFloat(p.UnitPrice.InexactFloat64())
		row.AddCell().SetInt(p.Quantity)
		row.AddCell().SetString(p.Unit)
		row.AddCell().SetString(string(p.Status))
		row.AddCell().SetString(p.Barcode)
		row.AddCell().SetString(p.Location)
		row.AddCell().SetString(p.Supplier)
		exp := ""
		if p.ExpirationDate != nil {
			exp = p.ExpirationDate.Format("2006-01-02")
		}
		row.AddCell().SetString(exp)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

// ParseImportSpreadsheet reads the first sheet. The header row names the
// columns (case-insensitive): "name" is required; "quantity", "unit price",
// "category" and "unit" are optional. The export layout is accepted as-is.
func (s *appService) ParseImportSpreadsheet(_ context.Context, r io.ReaderAt, size int64) (*ImportProposal, error) {
	file, err := xlsx.OpenReaderAt(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable .xlsx file: %v", ErrInvalidRequest, err)
	}
	if len(file.Sheets) == 0 || len(file.Sheets[0].Rows) < 2 {
		return nil, fmt.Errorf("%w: spreadsheet is empty or missing header row", ErrInvalidRequest)
	}

	rows := file.Sheets[0].Rows
	cols := map[string]int{}
	for i, c := range rows[0].Cells {
		cols[strings.ToLower(strings.TrimSpace(c.String()))] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("%w: spreadsheet has no \"name\" column", ErrInvalidRequest)
	}

	var lines []core.ImportLine
	for _, row := range rows[1:] {
		if row == nil {
			continue
		}
		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(row.Cells) {
				return ""
			}
			return strings.TrimSpace(row.Cells[i].String())
		}

		qty := 1
		if q, err := strconv.ParseFloat(get("quantity"), 64); err == nil && q >= 1 {
			qty = int(math.Min(q, core.MaxQuantity))
		}
		price, err := decimal.NewFromString(get("unit price"))
		if err != nil {
			price = decimal.Zero
		}

		line, ok := core.NormalizeImportLine(core.ImportLine{
			Name:      get("name"),
			Quantity:  qty,
			UnitPrice: price,
			Category:  get("category"),
			Unit:      get("unit"),
		})
		if ok {
			lines = append(lines, line)
		}
	}
	return &ImportProposal{Lines: lines}, nil
}
