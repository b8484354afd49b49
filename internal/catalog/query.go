// Package catalog implements read-only product queries.
package catalog

import (
	"context"
	"strconv"

	"github.com/fairyhunter13/cart-reservation-service/internal/model"
	"github.com/fairyhunter13/cart-reservation-service/internal/store"
	"github.com/shopspring/decimal"
)

// Query filters the catalog. It never mutates the store.
type Query struct {
	products *store.Products
}

func NewQuery(products *store.Products) *Query {
	return &Query{products: products}
}

// List returns products matching every option set in f. MaxPrice is an
// inclusive upper bound and must be positive.
func (q *Query) List(ctx context.Context, f model.ListFilter) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.MaxPrice != nil && !f.MaxPrice.IsPositive() {
		return nil, model.NewValidationError("max_price", "must be > 0")
	}
	return q.products.List(f), nil
}

// ParseFilter builds a ListFilter from raw query values. Empty strings leave
// the option unset.
func ParseFilter(maxPrice, inStock string) (model.ListFilter, error) {
	var f model.ListFilter
	if maxPrice != "" {
		d, err := decimal.NewFromString(maxPrice)
		if err != nil {
			return f, model.NewValidationError("max_price", "must be a number")
		}
		f.MaxPrice = &d
	}
	if inStock != "" {
		b, err := strconv.ParseBool(inStock)
		if err != nil {
			return f, model.NewValidationError("in_stock", "must be a boolean")
		}
		f.InStock = &b
	}
	return f, nil
}
