package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// NormalizeImportLine cleans one extracted row before reconciliation.
// Rows without a name are dropped (ok == false).
func NormalizeImportLine(l ImportLine) (ImportLine, bool) {
	l.Name = capitalizeFirst(strings.Join(strings.Fields(l.Name), " "))
	if l.Name == "" {
		return ImportLine{}, false
	}
	if l.Quantity < 1 {
		l.Quantity = 1
	}
	if l.UnitPrice.IsNegative() {
		l.UnitPrice = decimal.Zero
	}
	l.UnitPrice = l.UnitPrice.Round(2)
	l.Category = strings.TrimSpace(l.Category)
	l.Unit = strings.TrimSpace(l.Unit)
	if l.Unit == "" {
		l.Unit = DefaultUnit
	}
	return l, true
}

// NormalizeImportLines applies NormalizeImportLine to every row, dropping the nameless ones.
func NormalizeImportLines(lines []ImportLine) []ImportLine {
	out := make([]ImportLine, 0, len(lines))
	for _, l := range lines {
		if n, ok := NormalizeImportLine(l); ok {
			out = append(out, n)
		}
	}
	return out
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// importedProductInput builds and validates the input for a catalog row created by an import.
func importedProductInput(l ImportLine) (ProductInput, error) {
	in := ProductInput{
		Name:      l.Name,
		Category:  l.Category,
		UnitPrice: l.UnitPrice,
		Quantity:  l.Quantity,
		Unit:      l.Unit,
		Status:    ProductActive,
	}
	return in, in.Validate()
}

// applyImport merges one normalized row into an existing product:
// quantity is added, price overwritten when positive, sold-out products reactivated.
// A sum above MaxQuantity is rejected with ErrInvalidProduct.
func applyImport(p Product, l ImportLine) (Product, error) {
	if l.Quantity > MaxQuantity-p.Quantity {
		return Product{}, fmt.Errorf("%w: importing %d of %q would exceed the maximum quantity %d (on hand %d)",
			ErrInvalidProduct, l.Quantity, p.Name, MaxQuantity, p.Quantity)
	}
	p.Quantity += l.Quantity
	if l.UnitPrice.IsPositive() {
		p.UnitPrice = l.UnitPrice
	}
	if p.Status == ProductOutOfStock && p.Quantity > 0 {
		p.Status = ProductActive
	}
	return p, nil
}
