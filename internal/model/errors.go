package model

import (
	"errors"
	"fmt"
)

// Sentinels matched through errors.Is by the typed errors below.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Entities reported by NotFoundError.
const (
	EntityProduct = "product"
	EntityCart    = "cart"
	EntityItem    = "item"
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError names the missing entity and its id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.Entity == EntityItem {
		return fmt.Sprintf("item %s not in cart", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientStockError is returned when a reservation asks for more than is available.
type InsufficientStockError struct {
	ProductID string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// NewValidationError is a shorthand used by the stores and services.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NewNotFound is a shorthand used by the stores and services.
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}
