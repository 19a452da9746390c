package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrLockHeld           = errors.New("operation already in progress")
	ErrCancelled          = errors.New("operation cancelled before processing")

	// Verification layer
	ErrMalformedPayload  = errors.New("malformed verification payload")
	ErrSignatureMismatch = errors.New("verification signature mismatch")
	ErrShareTokenExpired = errors.New("share token expired")

	// State machine
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyTerminal   = errors.New("voucher already in a terminal state")
	ErrValidationFailed  = errors.New("voucher validation failed")
	ErrVoucherExpired    = errors.New("voucher template has expired")

	// Store / renderer boundary
	ErrConcurrentModification   = errors.New("voucher modified concurrently")
	ErrArtifactGenerationFailed = errors.New("artifact generation failed")
)

// codes lists error classes from most to least specific; Code returns the first match.
var codes = []struct {
	err  error
	code string
}{
	{ErrMalformedPayload, "MalformedPayload"},
	{ErrSignatureMismatch, "SignatureMismatch"},
	{ErrShareTokenExpired, "ShareTokenExpired"},
	{ErrAlreadyTerminal, "AlreadyTerminal"},
	{ErrInvalidTransition, "InvalidTransition"},
	{ErrVoucherExpired, "VoucherExpired"},
	{ErrValidationFailed, "ValidationFailed"},
	{ErrConcurrentModification, "ConcurrentModification"},
	{ErrNotFound, "NotFound"},
	{ErrArtifactGenerationFailed, "ArtifactGenerationFailed"},
	{ErrCancelled, "Cancelled"},
	{ErrLockHeld, "LockHeld"},
	{ErrInvalidArgument, "InvalidArgument"},
	{ErrAlreadyExists, "AlreadyExists"},
}

// Code maps an error to the stable identifier exposed in batch results and API bodies.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
