package store

import (
	"sync"

	"github.com/fairyhunter13/cart-reservation-service/internal/model"
)

type cartState struct {
	order []string
	qty   map[string]int64
}

func (c *cartState) snapshot(id string) model.Cart {
	items := make([]model.CartItem, 0, len(c.order))
	for _, pid := range c.order {
		items = append(items, model.CartItem{ProductID: pid, Quantity: c.qty[pid]})
	}
	return model.Cart{ID: id, Items: items}
}

// Carts maps cart ids to reserved quantities. A cart record exists only while
// it holds at least one item.
type Carts struct {
	mu sync.RWMutex
	m  map[string]*cartState
}

func NewCarts() *Carts {
	return &Carts{m: make(map[string]*cartState)}
}

// GetOrCreate returns a read-only snapshot of the cart, or an empty one when
// none is stored. The empty cart is not recorded; writes go through Add and
// SetQuantity, which create the record on the first item.
func (s *Carts) GetOrCreate(cartID string) model.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.m[cartID]; ok {
		return c.snapshot(cartID)
	}
	return model.Cart{ID: cartID, Items: []model.CartItem{}}
}

func (s *Carts) Get(cartID string) (model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.m[cartID]
	if !ok {
		return model.Cart{}, model.NewNotFound(model.EntityCart, cartID)
	}
	return c.snapshot(cartID), nil
}

// SetQuantity sets the quantity of productID. Zero removes the line and
// deletes the cart once it is empty.
func (s *Carts) SetQuantity(cartID, productID string, quantity int64) {
	if quantity < 0 {
		panic("store: negative cart quantity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(cartID, productID, quantity)
}

// Add increments the quantity of productID and returns the new value.
func (s *Carts) Add(cartID, productID string, delta int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cur int64
	if c, ok := s.m[cartID]; ok {
		cur = c.qty[productID]
	}
	next := cur + delta
	if next < 0 {
		panic("store: negative cart quantity")
	}
	s.setLocked(cartID, productID, next)
	return next
}

func (s *Carts) setLocked(cartID, productID string, quantity int64) {
	c, ok := s.m[cartID]
	if quantity == 0 {
		if !ok {
			return
		}
		if _, had := c.qty[productID]; !had {
			return
		}
		delete(c.qty, productID)
		for i, pid := range c.order {
			if pid == productID {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		if len(c.qty) == 0 {
			delete(s.m, cartID)
		}
		return
	}
	if !ok {
		c = &cartState{qty: make(map[string]int64)}
		s.m[cartID] = c
	}
	if _, had := c.qty[productID]; !had {
		c.order = append(c.order, productID)
	}
	c.qty[productID] = quantity
}

// Len returns the number of live carts.
func (s *Carts) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
