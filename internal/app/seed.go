package app

import (
	"context"
	"errors"
	"strings"

	"inventory-invoicing/internal/core"

	"github.com/shopspring/decimal"
)

// DemoUsername is the account created by SeedDemo.
const DemoUsername = "demo"

var demoCatalog = []ProductRequest{
	{Name: "Arroz largo fino", Category: "Almacén", UnitPrice: decimal.RequireFromString("1.80"), Quantity: 40, Unit: "kg", Barcode: "7790070012345"},
	{Name: "Azúcar", Category: "Almacén", UnitPrice: decimal.RequireFromString("1.20"), Quantity: 35, Unit: "kg"},
	{Name: "Aceite de girasol", Category: "Almacén", UnitPrice: decimal.RequireFromString("3.45"), Quantity: 18, Unit: "l"},
	{Name: "Yerba mate", Category: "Infusiones", UnitPrice: decimal.RequireFromString("4.10"), Quantity: 25, Unit: "kg"},
	{Name: "Leche entera", Category: "Lácteos", UnitPrice: decimal.RequireFromString("1.05"), Quantity: 30, Unit: "l", Location: "Heladera 1"},
	{Name: "Queso cremoso", Category: "Lácteos", UnitPrice: decimal.RequireFromString("8.90"), Quantity: 6, Unit: "kg", Location: "Heladera 1"},
	{Name: "Dulce de leche", Category: "Lácteos", UnitPrice: decimal.RequireFromString("2.75"), Quantity: 12},
	{Name: "Pan francés", Category: "Panadería", UnitPrice: decimal.RequireFromString("2.20"), Quantity: 15, Unit: "kg"},
	{Name: "Ñoquis", Category: "Pastas", UnitPrice: decimal.RequireFromString("3.30"), Quantity: 1},
	{Name: "Jabón de tocador", Category: "Limpieza", UnitPrice: decimal.RequireFromString("0.95"), Quantity: 50, Barcode: "7791234000017"},
	{Name: "Lavandina", Category: "Limpieza", UnitPrice: decimal.RequireFromString("1.40"), Quantity: 0},
}

func (s *appService) SeedDemo(ctx context.Context, password string) (*SeedResult, error) {
	res := &SeedResult{Username: DemoUsername}

	user, err := s.users.GetByUsername(ctx, DemoUsername)
	switch {
	case errors.Is(err, core.ErrNotFound):
		created, err := s.RegisterUser(ctx, RegisterUserRequest{
			Username: DemoUsername,
			Email:    "demo@example.com",
			Password: password,
		})
		if err != nil {
			return nil, err
		}
		res.UserID = created.ID
		res.UserCreated = true
	case err != nil:
		return nil, err
	default:
		res.UserID = user.ID
	}

	existing, err := s.catalog.ListProducts(ctx, res.UserID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[strings.ToLower(p.Name)] = true
	}

	for _, req := range demoCatalog {
		if have[strings.ToLower(req.Name)] {
			continue
		}
		if _, err := s.CreateProduct(ctx, res.UserID, req); err != nil {
			return nil, err
		}
		res.ProductsCreated++
	}
	return res, nil
}
