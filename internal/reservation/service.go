// Package reservation moves stock between the catalog and carts.
//
// Every add or remove holds the lock of the product it touches for the whole
// lookup, check and mutate sequence. The stock change and the cart change are
// applied together under the write side of a service-wide RWMutex, and cart
// views are built under its read side, so a reader sees either both writes or
// neither.
package reservation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fairyhunter13/cart-reservation-service/internal/model"
	"github.com/fairyhunter13/cart-reservation-service/internal/store"
	"github.com/shopspring/decimal"
)

// Service coordinates the product and cart stores.
type Service struct {
	products *store.Products
	carts    *store.Carts

	locks   *keyedMutex
	publish sync.RWMutex

	added    atomic.Uint64
	removed  atomic.Uint64
	rejected atomic.Uint64
}

// Stats are cumulative reservation counters.
type Stats struct {
	Added    uint64 `json:"reservations_added"`
	Removed  uint64 `json:"reservations_removed"`
	Rejected uint64 `json:"reservations_rejected"`
	Carts    int    `json:"carts"`
}

func New(products *store.Products, carts *store.Carts) *Service {
	return &Service{products: products, carts: carts, locks: newKeyedMutex()}
}

// AddItem reserves quantity units of productID into cartID and returns the
// updated view. Nothing changes when it fails.
func (s *Service) AddItem(ctx context.Context, cartID, productID string, quantity int64) (model.CartView, error) {
	if err := ctx.Err(); err != nil {
		return model.CartView{}, err
	}
	if cartID == "" {
		return model.CartView{}, model.NewValidationError("cart_id", "is required")
	}
	if productID == "" {
		return model.CartView{}, model.NewValidationError("product_id", "is required")
	}
	if quantity <= 0 {
		return model.CartView{}, model.NewValidationError("quantity", "must be > 0")
	}

	unlock := s.locks.Lock(productID)
	defer unlock()

	p, err := s.products.Get(productID)
	if err != nil {
		s.rejected.Add(1)
		return model.CartView{}, err
	}
	if p.Stock < quantity {
		s.rejected.Add(1)
		return model.CartView{}, &model.InsufficientStockError{ProductID: productID, Requested: quantity, Available: p.Stock}
	}

	s.publish.Lock()
	defer s.publish.Unlock()
	if _, err := s.products.AdjustStock(productID, -quantity); err != nil {
		s.rejected.Add(1)
		return model.CartView{}, err
	}
	s.carts.Add(cartID, productID, quantity)
	s.added.Add(1)
	return s.viewLocked(cartID)
}

// RemoveItem drops the whole line for productID and returns its quantity to
// stock. When the cart becomes empty it is deleted and an empty view is
// returned.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID string) (model.CartView, error) {
	if err := ctx.Err(); err != nil {
		return model.CartView{}, err
	}

	unlock := s.locks.Lock(productID)
	defer unlock()

	cart, err := s.carts.Get(cartID)
	if err != nil {
		return model.CartView{}, err
	}
	qty := cart.Quantity(productID)
	if qty == 0 {
		return model.CartView{}, model.NewNotFound(model.EntityItem, productID)
	}

	s.publish.Lock()
	defer s.publish.Unlock()
	if _, err := s.products.AdjustStock(productID, qty); err != nil {
		return model.CartView{}, err
	}
	s.carts.SetQuantity(cartID, productID, 0)
	s.removed.Add(1)

	view, err := s.viewLocked(cartID)
	if errors.Is(err, model.ErrNotFound) {
		return model.EmptyCartView(cartID), nil
	}
	return view, err
}

// ViewCart prices the cart with the catalog's current names and prices.
func (s *Service) ViewCart(ctx context.Context, cartID string) (model.CartView, error) {
	if err := ctx.Err(); err != nil {
		return model.CartView{}, err
	}
	s.publish.RLock()
	defer s.publish.RUnlock()
	return s.viewLocked(cartID)
}

func (s *Service) viewLocked(cartID string) (model.CartView, error) {
	cart, err := s.carts.Get(cartID)
	if err != nil {
		return model.CartView{}, err
	}
	view := model.CartView{ID: cartID, Items: make([]model.CartLine, 0, len(cart.Items))}
	total := decimal.Zero
	for _, it := range cart.Items {
		p, err := s.products.Get(it.ProductID)
		if err != nil {
			return model.CartView{}, err
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(it.Quantity))
		total = total.Add(subtotal)
		view.Items = append(view.Items, model.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			PriceUnit: p.Price,
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		})
	}
	view.Total = total.Round(2)
	return view, nil
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	return Stats{
		Added:    s.added.Load(),
		Removed:  s.removed.Load(),
		Rejected: s.rejected.Load(),
		Carts:    s.carts.Len(),
	}
}
