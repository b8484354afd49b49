// Package httpapi exposes the HTTP API layer of the service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/cart-reservation-service/internal/model"
	"github.com/fairyhunter13/cart-reservation-service/internal/obs"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// writeDomainError maps the core error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, model.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, model.ErrInsufficientStock):
		WriteJSONError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		WriteJSONError(w, http.StatusServiceUnavailable, "request_canceled", "")
	default:
		obs.Logger.Error("internal_error", "error", err, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
