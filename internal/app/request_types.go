package app

import (
	"fmt"
	"time"

	"inventory-invoicing/internal/core"

	"github.com/shopspring/decimal"
)

// ProductRequest is the input for creating or editing a product.
type ProductRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	Unit           string          `json:"unit"`
	Status         string          `json:"status"`
	Barcode        string          `json:"barcode"`
	Location       string          `json:"location"`
	Supplier       string          `json:"supplier"`
	ExpirationDate string          `json:"expiration_date"` // YYYY-MM-DD, optional
}

func (r ProductRequest) toInput() (core.ProductInput, error) {
	in := core.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		UnitPrice:   r.UnitPrice,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		Status:      core.ProductStatus(r.Status),
		Barcode:     r.Barcode,
		Location:    r.Location,
		Supplier:    r.Supplier,
	}
	if r.ExpirationDate != "" {
		d, err := time.Parse("2006-01-02", r.ExpirationDate)
		if err != nil {
			return core.ProductInput{}, fmt.Errorf("%w: expiration date must be YYYY-MM-DD", core.ErrInvalidProduct)
		}
		in.ExpirationDate = &d
	}
	return in, nil
}

// RegisterUserRequest is the input for creating an account.
type RegisterUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
