package adapter

import (
	"time"

	"coop-voucher/internal/domain/model"
)

// Codec is implemented by security.Codec.
type Codec interface {
	GenerateSerial(issueDate time.Time) (string, error)
	EncodePayload(serial string, issuedAt time.Time) string
	DecodeAndVerify(payload string) (model.VerificationPayload, error)
	NewShareToken(batchID string, expiresAt time.Time) string
	VerifyShareToken(token string, now time.Time) (string, error)
}
