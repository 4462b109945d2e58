package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopfast/internal/domain/order"
)

// OrderStore persists orders in Postgres. The paid transition is a
// conditional update (`... AND is_paid = false`), so concurrent valid
// notifications for one order settle to exactly one application.
type OrderStore struct {
	db *pgxpool.Pool
}

func NewOrderStore(db *pgxpool.Pool) order.Store {
	return &OrderStore{db: db}
}

const orderColumns = `id, total_price, is_paid, paid_at,
	payment_transaction_id, payment_status, payer_email,
	is_delivered, delivered_at, created_at`

func (s *OrderStore) Create(ctx context.Context, o *order.Order) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (id, total_price, is_paid, is_delivered, created_at)
		VALUES ($1, $2, false, false, $3)`,
		o.ID, o.TotalPrice, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order by id: %w", err)
	}
	return o, nil
}

func (s *OrderStore) MarkPaid(ctx context.Context, id string, paidAt time.Time, result order.PaymentResult) (*order.Order, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders
		SET is_paid = true,
		    paid_at = $2,
		    payment_transaction_id = $3,
		    payment_status = $4,
		    payer_email = $5
		WHERE id = $1 AND is_paid = false
		RETURNING `+orderColumns,
		id, paidAt, result.TransactionID, result.Status, result.PayerEmail,
	)

	o, err := scanOrder(row)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	// No row matched: either the id is unknown or the order was paid
	// before this call. Re-read to tell the two apart.
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return existing, order.ErrAlreadyPaid
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o             order.Order
		paidAt        pgtype.Timestamptz
		deliveredAt   pgtype.Timestamptz
		transactionID pgtype.Text
		status        pgtype.Text
		payerEmail    pgtype.Text
	)

	err := row.Scan(
		&o.ID, &o.TotalPrice, &o.IsPaid, &paidAt,
		&transactionID, &status, &payerEmail,
		&o.IsDelivered, &deliveredAt, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	if o.IsPaid {
		o.Payment = &order.PaymentResult{
			TransactionID: transactionID.String,
			Status:        status.String,
			PayerEmail:    payerEmail.String,
		}
	}
	return &o, nil
}
