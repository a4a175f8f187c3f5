package services

import (
	"errors"
	"fmt"

	"bookstore-service/models"
	"bookstore-service/store"
)

// Failure kinds returned by every service operation. Callers match them with
// errors.Is; the wrapped message is safe to show to API clients.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrConflict)
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrValidation)
)

// Kind names the failure kind of err, or "internal" when err carries none.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	}
	return "internal"
}

// storeError translates a store failure into a service failure kind.
// Unrecognised errors are wrapped as-is and surface as internal errors.
func storeError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %s already exists", ErrConflict, msg)
	case errors.Is(err, store.ErrReferenced):
		return fmt.Errorf("%w: %s is still referenced", ErrConflict, msg)
	case errors.Is(err, store.ErrStockExhausted):
		return fmt.Errorf("%w: %s", ErrInsufficientStock, msg)
	case errors.Is(err, store.ErrOutOfRange):
		return fmt.Errorf("%w: %s stock would exceed %d", ErrValidation, msg, models.MaxStock)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
