// File: internal/infra/security/codec.go
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
)

const (
	SerialLength  = 12
	serialDateFmt = "060102"
	randomDigits  = 5
	payloadSep    = "|"

	// domain separation so a share token can never pass as a voucher payload and vice versa
	payloadScope = "voucher:v1"
	shareScope   = "share:v1"
)

// MinSecretLength is the shortest signing secret accepted by NewCodec.
const MinSecretLength = 32

// Codec generates serial numbers and signs/verifies scannable payloads.
// It is safe for concurrent use; the secret is read-only after construction.
type Codec struct {
	secret []byte
	random io.Reader
}

type CodecOption func(*Codec)

// WithRandom replaces the entropy source used for serial generation (tests only).
func WithRandom(r io.Reader) CodecOption {
	return func(c *Codec) { c.random = r }
}

// NewCodec builds a codec around the given signing secret.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: signing secret must be at least %d bytes", domain.ErrInvalidArgument, MinSecretLength)
	}
	c := &Codec{secret: append([]byte(nil), secret...), random: rand.Reader}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// GenerateSerial returns YYMMDD + 5 random digits + a Luhn check digit.
// Uniqueness is enforced by the store; this only keeps collisions unlikely.
func (c *Codec) GenerateSerial(issueDate time.Time) (string, error) {
	n, err := rand.Int(c.random, big.NewInt(100000))
	if err != nil {
		return "", fmt.Errorf("serial entropy: %w", err)
	}
	body := issueDate.Format(serialDateFmt) + fmt.Sprintf("%0*d", randomDigits, n.Int64())
	return body + strconv.Itoa(luhnDigit(body)), nil
}

// ValidateSerial checks length, digits, date component and check digit.
func ValidateSerial(serial string) error {
	if len(serial) != SerialLength {
		return fmt.Errorf("%w: serial must be %d digits", domain.ErrInvalidArgument, SerialLength)
	}
	for _, r := range serial {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: serial must be numeric", domain.ErrInvalidArgument)
		}
	}
	if _, err := time.Parse(serialDateFmt, serial[:6]); err != nil {
		return fmt.Errorf("%w: serial date component", domain.ErrInvalidArgument)
	}
	body, check := serial[:SerialLength-1], int(serial[SerialLength-1]-'0')
	if luhnDigit(body) != check {
		return fmt.Errorf("%w: serial check digit", domain.ErrInvalidArgument)
	}
	return nil
}

// luhnDigit computes the Luhn check digit for a string of decimal digits.
func luhnDigit(digits string) int {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// EncodePayload returns "serial|unixMillis|signature".
// The timestamp is bound into the signature, so the same serial signed at
// two instants yields two different payloads.
func (c *Codec) EncodePayload(serial string, issuedAt time.Time) string {
	ts := strconv.FormatInt(issuedAt.UnixMilli(), 10)
	return serial + payloadSep + ts + payloadSep + c.sign(payloadScope, serial, ts)
}

// DecodeAndVerify parses a scanned payload and checks its signature.
// Payload age is informational only; expiry is enforced through the template.
func (c *Codec) DecodeAndVerify(payload string) (model.VerificationPayload, error) {
	parts := strings.Split(strings.TrimSpace(payload), payloadSep)
	if len(parts) != 3 || parts[2] == "" {
		return model.VerificationPayload{}, domain.ErrMalformedPayload
	}
	serial, ts, sig := parts[0], parts[1], parts[2]
	if err := ValidateSerial(serial); err != nil {
		return model.VerificationPayload{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || ms <= 0 {
		return model.VerificationPayload{}, fmt.Errorf("%w: timestamp", domain.ErrMalformedPayload)
	}
	want := c.sign(payloadScope, serial, ts)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return model.VerificationPayload{}, domain.ErrSignatureMismatch
	}
	return model.VerificationPayload{
		Serial:    serial,
		IssuedAt:  time.UnixMilli(ms).UTC(),
		Signature: sig,
	}, nil
}

// NewShareToken mints the opaque token holders use to fetch batch artifacts.
func (c *Codec) NewShareToken(batchID string, expiresAt time.Time) string {
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	return batchID + "." + ts + "." + c.sign(shareScope, batchID, ts)
}

// VerifyShareToken returns the batch id embedded in a valid, unexpired token.
func (c *Codec) VerifyShareToken(token string, now time.Time) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", domain.ErrMalformedPayload
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", domain.ErrMalformedPayload
	}
	want := c.sign(shareScope, parts[0], parts[1])
	if !hmac.Equal([]byte(want), []byte(parts[2])) {
		return "", domain.ErrSignatureMismatch
	}
	if now.After(time.Unix(exp, 0)) {
		return "", domain.ErrShareTokenExpired
	}
	return parts[0], nil
}

func (c *Codec) sign(scope string, fields ...string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(scope))
	for _, f := range fields {
		mac.Write([]byte(payloadSep))
		mac.Write([]byte(f))
	}
	return hex.EncodeToString(mac.Sum(nil))
}
