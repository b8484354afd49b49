package store

import (
	"github.com/fairyhunter13/cart-reservation-service/internal/model"
	"github.com/shopspring/decimal"
)

// DemoCatalog is loaded at boot when SEED_CATALOG is enabled.
func DemoCatalog() []model.Product {
	return []model.Product{
		{
			ID:    "11111111-1111-1111-1111-111111111111",
			Name:  "Mouse Gamer",
			Price: decimal.RequireFromString("79.90"),
			Stock: 10,
		},
		{
			ID:    "22222222-2222-2222-2222-222222222222",
			Name:  "Teclado Mecánico",
			Price: decimal.RequireFromString("199.00"),
			Stock: 5,
		},
	}
}
