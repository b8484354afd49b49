// Package model defines domain types used by the service.
package model

import "github.com/shopspring/decimal"

// Product represents a catalog entry and its available stock.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int64
}

// Cart is a snapshot of the reserved quantities held by one cart.
type Cart struct {
	ID    string
	Items []CartItem
}

// CartItem is a single reserved line in a cart.
type CartItem struct {
	ProductID string
	Quantity  int64
}

// Quantity returns the reserved quantity for productID, or 0.
func (c Cart) Quantity(productID string) int64 {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

// CartView is the priced projection of a cart. It is computed on every read.
type CartView struct {
	ID    string
	Items []CartLine
	Total decimal.Decimal
}

// CartLine is one resolved line of a CartView.
type CartLine struct {
	ProductID string
	Name      string
	PriceUnit decimal.Decimal
	Quantity  int64
	Subtotal  decimal.Decimal
}

// EmptyCartView is returned when the last item of a cart was removed.
func EmptyCartView(cartID string) CartView {
	return CartView{ID: cartID, Items: []CartLine{}, Total: decimal.Zero}
}

// ListFilter selects catalog entries. Nil fields are not applied.
type ListFilter struct {
	MaxPrice *decimal.Decimal
	InStock  *bool
}

// PriceUpdate represents an incoming catalog price change.
type PriceUpdate struct {
	ProductID string
	Price     decimal.Decimal
	Sequence  uint64
}
