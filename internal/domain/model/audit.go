package model

import "time"

// AuditRecord is an append-only entry written for every status transition.
type AuditRecord struct {
	ID          string // ULID, sortable by creation time
	VoucherID   string
	Actor       string
	FromStatus  Status
	ToStatus    Status
	Reason      string
	SiteID      *string
	UsageAmount *int64
	CreatedAt   time.Time
}
