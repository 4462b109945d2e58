package order

import (
	"time"

	"github.com/google/uuid"
)

// PaymentResult holds the processor-side metadata recorded when an order
// transitions to paid.
type PaymentResult struct {
	TransactionID string
	Status        string
	PayerEmail    string
}

type Order struct {
	ID          string
	TotalPrice  float64
	IsPaid      bool
	PaidAt      *time.Time
	Payment     *PaymentResult
	IsDelivered bool
	DeliveredAt *time.Time
	CreatedAt   time.Time
}

func New(totalPrice float64) *Order {
	return &Order{
		ID:         uuid.NewString(),
		TotalPrice: totalPrice,
		CreatedAt:  time.Now().UTC(),
	}
}

// MarkPaid applies the unpaid -> paid transition. The transition is
// monotone: a second call leaves the order untouched and reports
// ErrAlreadyPaid so callers can treat a repeat notification as a no-op.
func (o *Order) MarkPaid(at time.Time, result PaymentResult) error {
	if o.IsPaid {
		return ErrAlreadyPaid
	}
	o.IsPaid = true
	o.PaidAt = &at
	o.Payment = &result
	return nil
}

// MarkDelivered is independent of the payment lifecycle.
func (o *Order) MarkDelivered(at time.Time) {
	if o.IsDelivered {
		return
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
}

func (o *Order) Validate() error {
	if o.ID == "" {
		return ErrMissingID
	}
	if o.TotalPrice < 0 {
		return ErrNegativeTotal
	}
	return nil
}
