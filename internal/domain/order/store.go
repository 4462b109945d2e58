package order

import (
	"context"
	"time"
)

// Store is the persistence boundary for orders. The paid transition goes
// through MarkPaid rather than a generic update so the store can make the
// read-check-write a single conditional operation: two concurrent valid
// notifications for the same order must apply the transition exactly once.
type Store interface {
	Create(ctx context.Context, o *Order) error

	// GetByID returns ErrNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*Order, error)

	// MarkPaid sets the paid fields iff the order is still unpaid and
	// returns the persisted order. Returns ErrNotFound for an unknown id
	// and ErrAlreadyPaid when the order was paid before this call; in the
	// latter case the returned order reflects the stored paid state.
	MarkPaid(ctx context.Context, id string, paidAt time.Time, result PaymentResult) (*Order, error)
}
