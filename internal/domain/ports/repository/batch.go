package repository

import (
	"context"

	"coop-voucher/internal/domain/model"
)

type BatchRepository interface {
	// Save creates or updates a batch. Finished batches only accept download counter changes.
	Save(ctx context.Context, tx Tx, b *model.Batch) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Batch, error)
	// FindByIdempotencyKey returns domain.ErrNotFound when no batch carries key.
	FindByIdempotencyKey(ctx context.Context, tx Tx, key string) (*model.Batch, error)
	IncrementDownloads(ctx context.Context, tx Tx, id string) (int, error)
}
