package order

import "errors"

var (
	// ErrNotFound is returned when no order exists for the given id.
	ErrNotFound = errors.New("order not found")

	// ErrAlreadyPaid is returned by the conditional paid transition when
	// the order has already been paid. It marks a repeat notification,
	// not a fault.
	ErrAlreadyPaid = errors.New("order already paid")

	ErrMissingID     = errors.New("order id is required")
	ErrNegativeTotal = errors.New("order total must not be negative")
)
