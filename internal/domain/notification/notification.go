// Package notification models the ITN (Instant Transaction Notification)
// payload PayFast posts to the notify URL after a payment attempt.
package notification

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SignatureField is the processor's wire spelling of the signature key.
const SignatureField = "signiture"

// Field names PayFast sends that this service reads.
const (
	FieldItemName      = "item_name"
	FieldAmountGross   = "amount_gross"
	FieldPaymentStatus = "payment_status"
	FieldTransactionID = "pf_payment_id"
	FieldPayerEmail    = "email_address"
)

// Payment status values reported by the processor.
const (
	StatusComplete = "COMPLETE"
	StatusFailed   = "FAILED"
	StatusPending  = "PENDING"
)

type Field struct {
	Key   string
	Value string
}

// Payload is an ordered set of notification fields. Order matters: the
// processor signs the fields in the order they appear on the wire, so a
// map cannot carry them. Duplicate keys keep their first occurrence.
type Payload struct {
	fields []Field
	index  map[string]int
}

func New() *Payload {
	return &Payload{index: make(map[string]int)}
}

// Parse decodes a form-encoded request body into a Payload, preserving
// wire order. url.ParseQuery is deliberately not used here: it returns an
// unordered map and would destroy the byte sequence the signature covers.
func Parse(body []byte) (*Payload, error) {
	p := New()

	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		key, rawValue, _ := strings.Cut(pair, "=")

		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("decode field name %q: %w", key, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("decode value of field %q: %w", decodedKey, err)
		}

		p.Set(decodedKey, value)
	}

	if p.Len() == 0 {
		return nil, fmt.Errorf("empty notification body")
	}
	return p, nil
}

// Set appends a field, or overwrites the value in place when the key is
// already present so field order stays stable.
func (p *Payload) Set(key, value string) {
	if i, ok := p.index[key]; ok {
		p.fields[i].Value = value
		return
	}
	p.index[key] = len(p.fields)
	p.fields = append(p.fields, Field{Key: key, Value: value})
}

func (p *Payload) Get(key string) string {
	if i, ok := p.index[key]; ok {
		return p.fields[i].Value
	}
	return ""
}

func (p *Payload) Has(key string) bool {
	_, ok := p.index[key]
	return ok
}

// Fields returns the fields in wire order. Callers must not mutate the
// returned slice.
func (p *Payload) Fields() []Field {
	return p.fields
}

func (p *Payload) Len() int {
	return len(p.fields)
}

// Require reports the first missing key as an error.
func (p *Payload) Require(keys ...string) error {
	for _, key := range keys {
		if !p.Has(key) {
			return fmt.Errorf("notification is missing required field %q", key)
		}
	}
	return nil
}

func (p *Payload) OrderID() string {
	return p.Get(FieldItemName)
}

func (p *Payload) Signature() string {
	return p.Get(SignatureField)
}

// AmountGross parses the claimed gross amount. Every wire value is a
// string; numeric comparison happens only after this parse.
func (p *Payload) AmountGross() (float64, error) {
	raw := strings.TrimSpace(p.Get(FieldAmountGross))
	if raw == "" {
		return 0, fmt.Errorf("notification has no %s field", FieldAmountGross)
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", FieldAmountGross, raw, err)
	}
	return amount, nil
}

func (p *Payload) TransactionID() string {
	return p.Get(FieldTransactionID)
}

func (p *Payload) PaymentStatus() string {
	return p.Get(FieldPaymentStatus)
}

func (p *Payload) PayerEmail() string {
	return p.Get(FieldPayerEmail)
}
