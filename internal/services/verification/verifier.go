// Package verification decides whether an inbound payment notification
// is genuine. Four checks — signature, origin, amount, processor-side
// confirmation — must all pass; everything ambiguous fails closed.
package verification

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"shopfast/internal/domain/notification"
	"shopfast/internal/domain/order"
	"shopfast/internal/services/hostcheck"
	"shopfast/internal/services/signature"
	"shopfast/pkg/logger"
)

// Check names, used as fault keys and in diagnostics.
const (
	CheckSignature    = "signature"
	CheckOrigin       = "origin"
	CheckAmount       = "amount"
	CheckConfirmation = "confirmation"
)

// AmountTolerance is the fixed absolute tolerance for the amount check.
// It absorbs currency-rounding noise; it is not a relative tolerance.
const AmountTolerance = 0.01

// confirmBody is the only processor response that confirms a
// notification. Anything else, including transport failure, is a reject.
const confirmBody = "VALID"

// Verdict records each check separately so a rejected notification can
// be reviewed for fraud patterns. OK is the conjunction.
type Verdict struct {
	Signature    bool              `json:"signature"`
	Origin       bool              `json:"origin"`
	Amount       bool              `json:"amount"`
	Confirmation bool              `json:"confirmation"`
	Faults       map[string]string `json:"faults,omitempty"`
}

func (v Verdict) OK() bool {
	return v.Signature && v.Origin && v.Amount && v.Confirmation
}

// FailedChecks lists the names of the checks that did not pass.
func (v Verdict) FailedChecks() []string {
	var failed []string
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{CheckSignature, v.Signature},
		{CheckOrigin, v.Origin},
		{CheckAmount, v.Amount},
		{CheckConfirmation, v.Confirmation},
	} {
		if !c.ok {
			failed = append(failed, c.name)
		}
	}
	return failed
}

// Config carries the processor-facing settings the verifier needs.
type Config struct {
	// Host is the processor hostname for the configured environment.
	Host string

	// TrustedHosts are the hostnames notifications may originate from.
	TrustedHosts []string

	// ConfirmURL overrides the derived validation endpoint; tests point
	// it at a local server. Empty means https://{Host}/eng/query/validate.
	ConfirmURL string

	// ConfirmTimeout bounds the confirmation round-trip.
	ConfirmTimeout time.Duration
}

func (c Config) confirmURL() string {
	if c.ConfirmURL != "" {
		return c.ConfirmURL
	}
	return fmt.Sprintf("https://%s/eng/query/validate", c.Host)
}

// Verifier runs the four checks. The signature codec is shared with the
// outbound request builder so both directions canonicalize identically.
type Verifier struct {
	codec   *signature.Codec
	checker *hostcheck.Checker
	client  *http.Client
	cfg     Config
	log     logger.Logger
}

func NewVerifier(codec *signature.Codec, checker *hostcheck.Checker, cfg Config, log logger.Logger) *Verifier {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Verifier{
		codec:   codec,
		checker: checker,
		client:  &http.Client{Timeout: cfg.ConfirmTimeout},
		cfg:     cfg,
		log:     log,
	}
}

// Validate runs all four checks against one notification and one order.
// The checks are independent and two of them wait on the network, so
// they run concurrently; the verdict is assembled only after every check
// has finished, never short-circuited, so diagnostics stay complete. Any
// internal fault inside a check folds into that check's false — a fault
// must never default a check to true or abort the others.
func (v *Verifier) Validate(ctx context.Context, sourceAddr string, p *notification.Payload, o *order.Order) Verdict {
	var verdict Verdict
	var sigErr, amountErr, confirmErr error

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		verdict.Signature, sigErr = v.codec.Verify(p, p.Signature())
	}()

	go func() {
		defer wg.Done()
		verdict.Origin = v.checker.IsTrustedOrigin(ctx, sourceAddr, v.cfg.TrustedHosts)
	}()

	go func() {
		defer wg.Done()
		verdict.Amount, amountErr = v.checkAmount(p, o)
	}()

	go func() {
		defer wg.Done()
		verdict.Confirmation, confirmErr = v.confirmWithProcessor(ctx, p)
	}()

	wg.Wait()

	verdict.Faults = collectFaults(map[string]error{
		CheckSignature:    sigErr,
		CheckAmount:       amountErr,
		CheckConfirmation: confirmErr,
	})

	if !verdict.OK() {
		v.log.Warn("notification rejected",
			zap.String("order_id", o.ID),
			zap.Strings("failed_checks", verdict.FailedChecks()),
			zap.Any("faults", verdict.Faults),
		)
	}
	return verdict
}

func (v *Verifier) checkAmount(p *notification.Payload, o *order.Order) (bool, error) {
	claimed, err := p.AmountGross()
	if err != nil {
		return false, err
	}
	return math.Abs(o.TotalPrice-claimed) <= AmountTolerance, nil
}

// confirmWithProcessor posts the notification's parameter string back to
// the processor's validation endpoint. Only the literal body "VALID"
// confirms; a network fault or any other body is a reject, not an
// indeterminate state.
func (v *Verifier) confirmWithProcessor(ctx context.Context, p *notification.Payload) (bool, error) {
	paramString, err := v.codec.Canonicalize(p)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.confirmURL(), strings.NewReader(paramString))
	if err != nil {
		return false, fmt.Errorf("build confirmation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("processor confirmation call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return false, fmt.Errorf("read confirmation response: %w", err)
	}

	return string(body) == confirmBody, nil
}

func collectFaults(errs map[string]error) map[string]string {
	var faults map[string]string
	for check, err := range errs {
		if err == nil {
			continue
		}
		if faults == nil {
			faults = make(map[string]string)
		}
		faults[check] = err.Error()
	}
	return faults
}
