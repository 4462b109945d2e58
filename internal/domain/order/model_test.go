package order

import (
	"errors"
	"testing"
	"time"
)

func TestMarkPaid(t *testing.T) {
	o := New(250.00)
	paidAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	result := PaymentResult{
		TransactionID: "1089250",
		Status:        "COMPLETE",
		PayerEmail:    "buyer@example.com",
	}

	if err := o.MarkPaid(paidAt, result); err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}
	if !o.IsPaid {
		t.Error("IsPaid = false after MarkPaid")
	}
	if o.PaidAt == nil || !o.PaidAt.Equal(paidAt) {
		t.Errorf("PaidAt = %v, want %v", o.PaidAt, paidAt)
	}
	if o.Payment == nil || *o.Payment != result {
		t.Errorf("Payment = %+v, want %+v", o.Payment, result)
	}
}

func TestMarkPaid_Idempotent(t *testing.T) {
	o := New(100.00)
	first := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	firstResult := PaymentResult{TransactionID: "t1", Status: "COMPLETE", PayerEmail: "a@b.c"}

	if err := o.MarkPaid(first, firstResult); err != nil {
		t.Fatalf("first MarkPaid() error = %v", err)
	}

	second := first.Add(time.Hour)
	err := o.MarkPaid(second, PaymentResult{TransactionID: "t2"})
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("second MarkPaid() error = %v, want ErrAlreadyPaid", err)
	}
	if !o.PaidAt.Equal(first) {
		t.Errorf("PaidAt changed on repeat: %v", o.PaidAt)
	}
	if o.Payment.TransactionID != "t1" {
		t.Errorf("Payment changed on repeat: %+v", o.Payment)
	}
}

func TestMarkDelivered(t *testing.T) {
	o := New(10)
	at := time.Now()
	o.MarkDelivered(at)
	if !o.IsDelivered || o.DeliveredAt == nil {
		t.Error("MarkDelivered did not set delivered state")
	}

	later := at.Add(time.Hour)
	o.MarkDelivered(later)
	if !o.DeliveredAt.Equal(at) {
		t.Errorf("DeliveredAt changed on repeat: %v", o.DeliveredAt)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		order   *Order
		wantErr error
	}{
		{"valid", New(100), nil},
		{"missing id", &Order{TotalPrice: 1}, ErrMissingID},
		{"negative total", &Order{ID: "o1", TotalPrice: -1}, ErrNegativeTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.order.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
