package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"inventory-invoicing/internal/core"

	"github.com/shopspring/decimal"
)

// extraction is the structured output requested from the model.
type extraction struct {
	Items []extractedLine `json:"items" jsonschema:"required"`
}

type extractedLine struct {
	Name      string  `json:"name" jsonschema:"required"`
	Quantity  float64 `json:"quantity" jsonschema:"required"`
	UnitPrice float64 `json:"unit_price" jsonschema:"required"`
	Category  string  `json:"category" jsonschema:"required"`
	Unit      string  `json:"unit" jsonschema:"required"`
}

// ParseExtraction reads model output into normalized import rows. It accepts the
// structured object, a bare array, and either wrapped in markdown fences or prose.
func ParseExtraction(text string) ([]core.ImportLine, error) {
	text = stripFences(text)

	var lines []extractedLine
	var obj extraction
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj.Items != nil {
		lines = obj.Items
	} else {
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no product list found in model output")
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &lines); err != nil {
			return nil, fmt.Errorf("failed to parse product list: %w", err)
		}
	}

	out := make([]core.ImportLine, 0, len(lines))
	for _, l := range lines {
		qty := 1
		if l.Quantity >= 1 {
			qty = int(math.Floor(math.Min(l.Quantity, core.MaxQuantity)))
		}
		price := decimal.Zero
		if l.UnitPrice > 0 && !math.IsInf(l.UnitPrice, 0) {
			price = decimal.NewFromFloat(l.UnitPrice)
		}
		line, ok := core.NormalizeImportLine(core.ImportLine{
			Name:      l.Name,
			Quantity:  qty,
			UnitPrice: price,
			Category:  l.Category,
			Unit:      l.Unit,
		})
		if ok {
			out = append(out, line)
		}
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
