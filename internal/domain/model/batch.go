package model

import (
	"time"

	"github.com/oklog/ulid/v2"

	"coop-voucher/internal/domain"
)

type BatchStatus string

const (
	BatchStatusGenerating BatchStatus = "generating"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// Batch groups vouchers processed together. It references vouchers by id only.
type Batch struct {
	ID             string // ULID
	Name           string
	OwnerID        string
	TemplateID     string
	Operation      string
	VoucherIDs     []string
	TotalCount     int
	GeneratedCount int
	SuccessCount   int
	FailureCount   int
	Status         BatchStatus
	ShareToken     string
	ShareExpiresAt *time.Time
	DownloadCount  int
	IdempotencyKey string // empty when the submitter sent none
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

func NewBatch(name, ownerID, templateID, operation string, ids []string) (*Batch, error) {
	if name == "" || operation == "" || len(ids) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Batch{
		ID:         ulid.Make().String(),
		Name:       name,
		OwnerID:    ownerID,
		TemplateID: templateID,
		Operation:  operation,
		VoucherIDs: append([]string(nil), ids...),
		TotalCount: len(ids),
		Status:     BatchStatusGenerating,
		CreatedAt:  time.Now(),
	}, nil
}

// Finished reports whether the batch is frozen (only the download counter may change).
func (b *Batch) Finished() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}

// Complete freezes the batch with its final counts. A batch where every item
// failed is marked failed; partial failures still complete.
func (b *Batch) Complete(success, failure, generated int, at time.Time) error {
	if b.Finished() {
		return domain.ErrInvalidArgument
	}
	b.SuccessCount = success
	b.FailureCount = failure
	b.GeneratedCount = generated
	b.Status = BatchStatusCompleted
	if success == 0 && failure > 0 {
		b.Status = BatchStatusFailed
	}
	b.CompletedAt = &at
	return nil
}

// Contains reports whether the voucher id belongs to the batch.
func (b *Batch) Contains(voucherID string) bool {
	for _, id := range b.VoucherIDs {
		if id == voucherID {
			return true
		}
	}
	return false
}
