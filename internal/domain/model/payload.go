package model

import "time"

// VerificationPayload is the decoded content of a scanned code. Never persisted.
type VerificationPayload struct {
	Serial    string
	IssuedAt  time.Time
	Signature string
}
