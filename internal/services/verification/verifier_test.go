package verification

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shopfast/internal/domain/notification"
	"shopfast/internal/domain/order"
	"shopfast/internal/services/hostcheck"
	"shopfast/internal/services/signature"
	"shopfast/pkg/logger"
)

const trustedIP = "197.97.145.1"

type fakeResolver struct {
	hosts map[string][]string
}

func (f *fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	addrs, ok := f.hosts[host]
	if !ok {
		return nil, fmt.Errorf("lookup %s: no such host", host)
	}
	return addrs, nil
}

func trustedChecker() *hostcheck.Checker {
	return hostcheck.NewChecker(&fakeResolver{hosts: map[string][]string{
		"sandbox.payfast.co.za": {trustedIP},
	}}, time.Second, logger.Noop())
}

// confirmServer answers the processor validation endpoint with the given
// body.
func confirmServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newVerifier(codec *signature.Codec, confirmURL string) *Verifier {
	return NewVerifier(codec, trustedChecker(), Config{
		Host:           "sandbox.payfast.co.za",
		TrustedHosts:   []string{"sandbox.payfast.co.za"},
		ConfirmURL:     confirmURL,
		ConfirmTimeout: 2 * time.Second,
	}, logger.Noop())
}

// signedNotification builds a payload for the order and signs it with
// the codec, the way the processor would.
func signedNotification(t *testing.T, codec *signature.Codec, orderID, amount string) *notification.Payload {
	t.Helper()
	p := notification.New()
	p.Set("m_payment_id", orderID)
	p.Set(notification.FieldTransactionID, "1089250")
	p.Set(notification.FieldPaymentStatus, notification.StatusComplete)
	p.Set(notification.FieldItemName, orderID)
	p.Set(notification.FieldAmountGross, amount)
	p.Set(notification.FieldPayerEmail, "buyer@example.com")

	sig, err := codec.Sign(p)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	p.Set(notification.SignatureField, sig)
	return p
}

func TestValidate_AllChecksPass(t *testing.T) {
	codec := signature.NewCodec("jt7NOE43FZPn")
	srv := confirmServer(t, "VALID")
	v := newVerifier(codec, srv.URL)

	o := &order.Order{ID: "o1", TotalPrice: 250.00}
	p := signedNotification(t, codec, "o1", "250.00")

	verdict := v.Validate(context.Background(), trustedIP, p, o)
	if !verdict.OK() {
		t.Fatalf("verdict = %+v, want all checks true", verdict)
	}
	if len(verdict.Faults) != 0 {
		t.Errorf("unexpected faults: %v", verdict.Faults)
	}
}

// A notification whose amount was tampered with before signing carries a
// valid signature over the tampered payload: check 1 passes, check 3
// must catch the mismatch.
func TestValidate_TamperedAmountValidSignature(t *testing.T) {
	codec := signature.NewCodec("")
	srv := confirmServer(t, "VALID")
	v := newVerifier(codec, srv.URL)

	o := &order.Order{ID: "o1", TotalPrice: 250.00}
	p := signedNotification(t, codec, "o1", "1.00")

	verdict := v.Validate(context.Background(), trustedIP, p, o)
	if !verdict.Signature {
		t.Error("signature check should pass, signature covers the tampered payload")
	}
	if verdict.Amount {
		t.Error("amount check should fail for 1.00 against 250.00")
	}
	if verdict.OK() {
		t.Error("overall verdict must be false")
	}
}

func TestValidate_AmountTolerance(t *testing.T) {
	tests := []struct {
		claimed string
		want    bool
	}{
		{"100.00", true},
		{"100.004", true},
		{"99.995", true},
		{"100.02", false},
		{"99.98", false},
	}

	codec := signature.NewCodec("")
	srv := confirmServer(t, "VALID")
	v := newVerifier(codec, srv.URL)
	o := &order.Order{ID: "o1", TotalPrice: 100.00}

	for _, tt := range tests {
		t.Run(tt.claimed, func(t *testing.T) {
			p := signedNotification(t, codec, "o1", tt.claimed)
			verdict := v.Validate(context.Background(), trustedIP, p, o)
			if verdict.Amount != tt.want {
				t.Errorf("amount check for %s = %v, want %v", tt.claimed, verdict.Amount, tt.want)
			}
		})
	}
}

func TestValidate_BadSignature(t *testing.T) {
	codec := signature.NewCodec("")
	srv := confirmServer(t, "VALID")
	v := newVerifier(codec, srv.URL)

	o := &order.Order{ID: "o1", TotalPrice: 250.00}
	p := signedNotification(t, codec, "o1", "250.00")
	p.Set(notification.SignatureField, "0123456789abcdef0123456789abcdef")

	verdict := v.Validate(context.Background(), trustedIP, p, o)
	if verdict.Signature {
		t.Error("signature check passed for a forged signature")
	}
	if verdict.OK() {
		t.Error("overall verdict must be false")
	}
}

func TestValidate_UntrustedOrigin(t *testing.T) {
	codec := signature.NewCodec("")
	srv := confirmServer(t, "VALID")
	v := newVerifier(codec, srv.URL)

	o := &order.Order{ID: "o1", TotalPrice: 250.00}
	p := signedNotification(t, codec, "o1", "250.00")

	verdict := v.Validate(context.Background(), "203.0.113.9", p, o)
	if verdict.Origin {
		t.Error("origin check passed for an untrusted address")
	}
	if !verdict.Signature || !verdict.Amount || !verdict.Confirmation {
		t.Errorf("other checks must still run: %+v", verdict)
	}
}

func TestValidate_ProcessorRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"INVALID body", "INVALID"},
		{"empty body", ""},
		{"VALID with trailing noise", "VALID\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := signature.NewCodec("")
			srv := confirmServer(t, tt.body)
			v := newVerifier(codec, srv.URL)

			o := &order.Order{ID: "o1", TotalPrice: 250.00}
			p := signedNotification(t, codec, "o1", "250.00")

			verdict := v.Validate(context.Background(), trustedIP, p, o)
			if verdict.Confirmation {
				t.Errorf("confirmation check passed for body %q", tt.body)
			}
		})
	}
}

// A dead processor endpoint is a check failure with a recorded fault,
// never a crash and never an accept.
func TestValidate_ProcessorUnreachable(t *testing.T) {
	codec := signature.NewCodec("")
	srv := confirmServer(t, "VALID")
	url := srv.URL
	srv.Close()
	v := newVerifier(codec, url)

	o := &order.Order{ID: "o1", TotalPrice: 250.00}
	p := signedNotification(t, codec, "o1", "250.00")

	verdict := v.Validate(context.Background(), trustedIP, p, o)
	if verdict.Confirmation {
		t.Error("confirmation check passed with processor unreachable")
	}
	if _, ok := verdict.Faults[CheckConfirmation]; !ok {
		t.Errorf("expected a confirmation fault, got %v", verdict.Faults)
	}
	if !verdict.Signature || !verdict.Origin || !verdict.Amount {
		t.Errorf("other checks must still run: %+v", verdict)
	}
}

func TestValidate_UnparsableAmountIsFault(t *testing.T) {
	codec := signature.NewCodec("")
	srv := confirmServer(t, "VALID")
	v := newVerifier(codec, srv.URL)

	o := &order.Order{ID: "o1", TotalPrice: 250.00}
	p := signedNotification(t, codec, "o1", "two hundred")

	verdict := v.Validate(context.Background(), trustedIP, p, o)
	if verdict.Amount {
		t.Error("amount check passed for an unparsable amount")
	}
	if _, ok := verdict.Faults[CheckAmount]; !ok {
		t.Errorf("expected an amount fault, got %v", verdict.Faults)
	}
}

func TestVerdict_FailedChecks(t *testing.T) {
	v := Verdict{Signature: true, Origin: false, Amount: true, Confirmation: false}
	got := v.FailedChecks()
	want := []string{CheckOrigin, CheckConfirmation}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("FailedChecks() = %v, want %v", got, want)
	}

	all := Verdict{Signature: true, Origin: true, Amount: true, Confirmation: true}
	if !all.OK() || all.FailedChecks() != nil {
		t.Error("fully passing verdict should report no failed checks")
	}
}
