// Package payment builds the signed request the buyer's browser submits
// to the processor's payment page.
package payment

import (
	"fmt"

	"shopfast/config"
	"shopfast/internal/domain/notification"
	"shopfast/internal/domain/order"
	"shopfast/internal/services/signature"
)

// Buyer identifies the paying customer on the payment page.
type Buyer struct {
	FirstName string
	LastName  string
	Email     string
}

// Builder assembles outbound payment requests. It must hold the same
// codec instance the notification verifier uses: the signature attached
// here is the one the processor echoes back, and the two sides agreeing
// on canonicalization is the load-bearing contract of the whole flow.
type Builder struct {
	codec *signature.Codec
	cfg   config.PayFastConfig
}

func NewBuilder(codec *signature.Codec, cfg config.PayFastConfig) *Builder {
	return &Builder{codec: codec, cfg: cfg}
}

// BuildRequest returns the ordered field set for the order, signed. The
// field order below is the declared wire order; changing it changes
// every signature.
func (b *Builder) BuildRequest(o *order.Order, buyer Buyer) (*notification.Payload, error) {
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	p := notification.New()
	p.Set("merchant_id", b.cfg.MerchantID)
	p.Set("merchant_key", b.cfg.MerchantKey)
	setIfPresent(p, "return_url", b.cfg.ReturnURL)
	setIfPresent(p, "cancel_url", b.cfg.CancelURL)
	setIfPresent(p, "notify_url", b.cfg.NotifyURL)
	setIfPresent(p, "name_first", buyer.FirstName)
	setIfPresent(p, "name_last", buyer.LastName)
	setIfPresent(p, notification.FieldPayerEmail, buyer.Email)
	p.Set("m_payment_id", o.ID)
	p.Set("amount", fmt.Sprintf("%.2f", o.TotalPrice))
	p.Set(notification.FieldItemName, o.ID)

	sig, err := b.codec.Sign(p)
	if err != nil {
		return nil, fmt.Errorf("sign payment request: %w", err)
	}
	p.Set(notification.SignatureField, sig)

	return p, nil
}

// ProcessURL is the processor page the signed request is posted to.
func (b *Builder) ProcessURL() string {
	return fmt.Sprintf("https://%s/eng/process", b.cfg.Host())
}

// Empty optional fields are left out entirely; an empty term would still
// count toward the signature.
func setIfPresent(p *notification.Payload, key, value string) {
	if value == "" {
		return
	}
	p.Set(key, value)
}
