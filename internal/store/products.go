// Package store holds the in-memory catalog and cart tables.
package store

import (
	"sync"

	"github.com/fairyhunter13/cart-reservation-service/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type productState struct {
	p            model.Product
	lastSequence uint64
}

// Products owns the catalog. Stock is only adjusted through AdjustStock.
type Products struct {
	mu    sync.RWMutex
	m     map[string]*productState
	order []string
}

func NewProducts() *Products {
	return &Products{m: make(map[string]*productState)}
}

func validateProduct(name string, price decimal.Decimal, stock int64) error {
	if name == "" {
		return model.NewValidationError("name", "is required")
	}
	if !price.IsPositive() {
		return model.NewValidationError("price", "must be > 0")
	}
	if stock < 0 {
		return model.NewValidationError("stock", "must be >= 0")
	}
	return nil
}

// Create validates and inserts a product under a fresh id.
func (s *Products) Create(name string, price decimal.Decimal, stock int64) (model.Product, error) {
	if err := validateProduct(name, price, stock); err != nil {
		return model.Product{}, err
	}
	p := model.Product{ID: uuid.NewString(), Name: name, Price: price, Stock: stock}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(p)
	return p, nil
}

// Seed inserts products with caller-chosen ids. Existing ids are left untouched.
func (s *Products) Seed(products ...model.Product) error {
	for _, p := range products {
		if p.ID == "" {
			return model.NewValidationError("id", "is required")
		}
		if err := validateProduct(p.Name, p.Price, p.Stock); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if _, ok := s.m[p.ID]; ok {
			continue
		}
		s.insertLocked(p)
	}
	return nil
}

func (s *Products) insertLocked(p model.Product) {
	s.m[p.ID] = &productState{p: p}
	s.order = append(s.order, p.ID)
}

func (s *Products) Get(id string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[id]
	if !ok {
		return model.Product{}, model.NewNotFound(model.EntityProduct, id)
	}
	return st.p, nil
}

// List returns the products matching f in creation order.
func (s *Products) List(f model.ListFilter) []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0, len(s.order))
	for _, id := range s.order {
		p := s.m[id].p
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.InStock != nil && *f.InStock != (p.Stock > 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Len returns the catalog size.
func (s *Products) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// AdjustStock adds delta to the product stock. Stock never goes below zero.
func (s *Products) AdjustStock(id string, delta int64) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	if !ok {
		return model.Product{}, model.NewNotFound(model.EntityProduct, id)
	}
	if st.p.Stock+delta < 0 {
		return st.p, &model.InsufficientStockError{ProductID: id, Requested: -delta, Available: st.p.Stock}
	}
	st.p.Stock += delta
	return st.p, nil
}

// ApplyPrice replaces the product price unless the update is stale.
// Unknown products and non-positive prices are ignored.
func (s *Products) ApplyPrice(u model.PriceUpdate) bool {
	if u.ProductID == "" || !u.Price.IsPositive() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[u.ProductID]
	if !ok {
		return false
	}
	if u.Sequence <= st.lastSequence {
		return false
	}
	st.p.Price = u.Price
	st.lastSequence = u.Sequence
	return true
}
