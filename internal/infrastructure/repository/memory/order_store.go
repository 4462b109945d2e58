// Package memory provides an in-process order store for tests and local
// runs, behind the same interface as the Postgres store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shopfast/internal/domain/order"
)

type OrderStore struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*order.Order)}
}

func (s *OrderStore) Create(_ context.Context, o *order.Order) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = clone(o)
	return nil
}

func (s *OrderStore) GetByID(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return clone(o), nil
}

// MarkPaid holds the lock across the check and the write, mirroring the
// conditional update the Postgres store performs.
func (s *OrderStore) MarkPaid(_ context.Context, id string, paidAt time.Time, result order.PaymentResult) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if err := o.MarkPaid(paidAt, result); err != nil {
		return clone(o), err
	}
	return clone(o), nil
}

func clone(o *order.Order) *order.Order {
	c := *o
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	if o.Payment != nil {
		p := *o.Payment
		c.Payment = &p
	}
	return &c
}
