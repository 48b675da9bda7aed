package orders

import (
	"errors"
	"fmt"
)

var (
	ErrQuoteNotFound        = errors.New("quote not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrSpotPriceUnavailable = errors.New("spot price unavailable")
	ErrRequoteRequired      = errors.New("requote required")
	ErrOutOfStock           = errors.New("out of stock")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrUnknownIntent        = errors.New("unknown payment intent")
	ErrValidation           = errors.New("validation failed")

	// ErrInventoryUnavailable means the fulfillment oracle timed out or answered
	// with a non-success response. Callers may retry.
	ErrInventoryUnavailable = errors.New("inventory unavailable")

	// Storage level.
	ErrNotFound            = errors.New("record not found")
	ErrIdempotencyConflict = errors.New("idempotency key already bound")
)

// Validation wraps ErrValidation with a field-level message.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
