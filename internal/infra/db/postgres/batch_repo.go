package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/repository"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

type BatchRepo struct {
	pool *pgxpool.Pool
}

func NewBatchRepo(pool *pgxpool.Pool) *BatchRepo {
	return &BatchRepo{pool: pool}
}

// Save upserts the batch. Rows that already left the generating state are never rewritten.
func (r *BatchRepo) Save(ctx context.Context, tx repository.Tx, b *model.Batch) error {
	const q = `
INSERT INTO voucher_batches (
  id, name, owner_id, template_id, operation, voucher_ids, total_count, generated_count,
  success_count, failure_count, status, share_token, share_expires_at, download_count,
  idempotency_key, created_at, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
  generated_count  = EXCLUDED.generated_count,
  success_count    = EXCLUDED.success_count,
  failure_count    = EXCLUDED.failure_count,
  status           = EXCLUDED.status,
  share_token      = EXCLUDED.share_token,
  share_expires_at = EXCLUDED.share_expires_at,
  completed_at     = EXCLUDED.completed_at
WHERE voucher_batches.status = 'generating';
`
	ct, err := execSQL(ctx, r.pool, tx, q,
		b.ID, b.Name, b.OwnerID, b.TemplateID, b.Operation, b.VoucherIDs, b.TotalCount, b.GeneratedCount,
		b.SuccessCount, b.FailureCount, string(b.Status), b.ShareToken, b.ShareExpiresAt, b.DownloadCount,
		b.IdempotencyKey, b.CreatedAt, b.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: idempotency key %q already used", domain.ErrAlreadyExists, b.IdempotencyKey)
		}
		return fmt.Errorf("save batch: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: batch %s is already finished", domain.ErrInvalidArgument, b.ID)
	}
	return nil
}

const batchColumns = `
id, name, owner_id, template_id, operation, voucher_ids, total_count, generated_count,
success_count, failure_count, status, share_token, share_expires_at, download_count,
idempotency_key, created_at, completed_at`

func (r *BatchRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Batch, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+batchColumns+` FROM voucher_batches WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanBatch(row)
}

func (r *BatchRepo) FindByIdempotencyKey(ctx context.Context, tx repository.Tx, key string) (*model.Batch, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+batchColumns+` FROM voucher_batches WHERE idempotency_key = $1;`, key)
	if err != nil {
		return nil, err
	}
	return scanBatch(row)
}

func scanBatch(row pgx.Row) (*model.Batch, error) {
	var (
		b      model.Batch
		status string
	)
	err := row.Scan(&b.ID, &b.Name, &b.OwnerID, &b.TemplateID, &b.Operation, &b.VoucherIDs, &b.TotalCount, &b.GeneratedCount,
		&b.SuccessCount, &b.FailureCount, &status, &b.ShareToken, &b.ShareExpiresAt, &b.DownloadCount,
		&b.IdempotencyKey, &b.CreatedAt, &b.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	b.Status = model.BatchStatus(status)
	return &b, nil
}

func (r *BatchRepo) IncrementDownloads(ctx context.Context, tx repository.Tx, id string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `UPDATE voucher_batches SET download_count = download_count + 1 WHERE id = $1 RETURNING download_count;`, id)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("increment downloads: %w", err)
	}
	return n, nil
}
