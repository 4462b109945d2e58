// Package signature implements the PayFast parameter-string signature.
//
// The processor signs the exact byte sequence of the form fields in wire
// order; verifying means rebuilding that sequence and hashing it again.
// MD5 is the processor's wire contract and is not used anywhere else.
package signature

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"shopfast/internal/domain/notification"
)

// ErrEncoding marks a field value that cannot be canonicalized.
var ErrEncoding = errors.New("field value cannot be encoded")

// Codec builds and checks signatures over ordered payloads. The same
// codec instance signs outbound payment requests and verifies inbound
// notifications; the two directions must never diverge.
type Codec struct {
	passphrase string
}

func NewCodec(passphrase string) *Codec {
	return &Codec{passphrase: passphrase}
}

// Canonicalize serializes the payload into its parameter string:
// key=value pairs joined by '&' in field order, values trimmed and
// urlencoded with spaces as '+', excluded keys skipped. The passphrase is
// not part of this string; it is appended only on the signing path (see
// SigningString) and must never appear in anything sent over the wire.
func (c *Codec) Canonicalize(p *notification.Payload, exclude ...string) (string, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, key := range exclude {
		skip[key] = struct{}{}
	}

	var b strings.Builder
	for _, f := range p.Fields() {
		if _, ok := skip[f.Key]; ok {
			continue
		}
		value := strings.TrimSpace(f.Value)
		if !utf8.ValidString(value) {
			return "", fmt.Errorf("%w: field %q", ErrEncoding, f.Key)
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(encode(value))
	}

	return b.String(), nil
}

// SigningString is the exact byte string the signature is computed over:
// the canonical parameter string without the signature field, plus the
// passphrase term when a shared secret is configured.
func (c *Codec) SigningString(p *notification.Payload) (string, error) {
	base, err := c.Canonicalize(p, notification.SignatureField)
	if err != nil {
		return "", err
	}
	if c.passphrase == "" {
		return base, nil
	}
	if base == "" {
		return "passphrase=" + encode(strings.TrimSpace(c.passphrase)), nil
	}
	return base + "&passphrase=" + encode(strings.TrimSpace(c.passphrase)), nil
}

// Digest returns the lowercase hex MD5 of s.
func (c *Codec) Digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Sign computes the signature for a payload, excluding any signature
// field already present.
func (c *Codec) Sign(p *notification.Payload) (string, error) {
	s, err := c.SigningString(p)
	if err != nil {
		return "", err
	}
	return c.Digest(s), nil
}

// Verify recomputes the payload's signature and compares it to the
// claimed one. A mismatch is a normal negative outcome, not an error;
// the error return covers canonicalization faults only.
func (c *Codec) Verify(p *notification.Payload, claimed string) (bool, error) {
	if claimed == "" {
		return false, nil
	}
	expected, err := c.Sign(p)
	if err != nil {
		return false, err
	}
	return expected == claimed, nil
}

// bareMarks reverts the characters the processor's encoding leaves
// unescaped but url.QueryEscape does not: ! ' ( ) *.
var bareMarks = strings.NewReplacer(
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encode urlencodes a value the way the processor does: percent escapes
// with literal spaces written as '+' and the marks in bareMarks kept
// bare. Diverging from the processor's character set here changes the
// canonical bytes and breaks signatures containing those characters.
func encode(value string) string {
	return bareMarks.Replace(url.QueryEscape(value))
}
