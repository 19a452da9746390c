package repository

import (
	"context"

	"coop-voucher/internal/domain/model"
)

// VoucherStore is the persistence port of the lifecycle engine.
type VoucherStore interface {
	// Create inserts a new voucher. Returns domain.ErrAlreadyExists on a serial collision.
	Create(ctx context.Context, tx Tx, v *model.Voucher) error
	GetByID(ctx context.Context, tx Tx, id string) (*model.Voucher, error)
	// GetByIDs returns the vouchers that exist, in no particular order.
	GetByIDs(ctx context.Context, tx Tx, ids []string) ([]*model.Voucher, error)
	GetBySerial(ctx context.Context, tx Tx, serial string) (*model.Voucher, error)
	ListByFilter(ctx context.Context, tx Tx, f model.VoucherFilter) ([]*model.Voucher, error)
	// Update persists next only if the stored status still equals expected.
	// Returns domain.ErrConcurrentModification when it does not and domain.ErrNotFound when the row is gone.
	Update(ctx context.Context, tx Tx, next *model.Voucher, expected model.Status) error
	AppendAuditRecord(ctx context.Context, tx Tx, rec *model.AuditRecord) error
	ListAuditRecords(ctx context.Context, tx Tx, voucherID string) ([]*model.AuditRecord, error)
}
