package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/repository"
	"coop-voucher/internal/infra/logging"
	"coop-voucher/internal/infra/metrics"
	"coop-voucher/internal/infra/worker"
)

// MaxChunkSize caps a single store round trip.
const MaxChunkSize = 1000

type BatchOptions struct {
	ChunkSize  int           // defaults to (and is capped at) MaxChunkSize
	Workers    int           // 1 keeps the run strictly sequential
	ChunkPause time.Duration // optional sleep between chunks, per worker
}

func (o BatchOptions) normalized() BatchOptions {
	if o.ChunkSize <= 0 || o.ChunkSize > MaxChunkSize {
		o.ChunkSize = MaxChunkSize
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.ChunkPause < 0 {
		o.ChunkPause = 0
	}
	return o
}

type ItemResult struct {
	ID             string       `json:"id"`
	Success        bool         `json:"success"`
	Message        string       `json:"message,omitempty"`
	ErrorCode      string       `json:"error_code,omitempty"`
	PreviousStatus model.Status `json:"previous_status,omitempty"`
	NewStatus      model.Status `json:"new_status,omitempty"`

	artifact bool
}

type BatchResult struct {
	SuccessCount   int          `json:"success_count"`
	FailureCount   int          `json:"failure_count"`
	GeneratedCount int          `json:"generated_count"`
	Results        []ItemResult `json:"results"`
}

// Partial reports a run where some, but not all, items failed.
func (r *BatchResult) Partial() bool {
	return r.SuccessCount > 0 && r.FailureCount > 0
}

// FailedIDs returns the ids of failed items in input order.
func (r *BatchResult) FailedIDs() []string {
	var ids []string
	for _, it := range r.Results {
		if !it.Success {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// BatchProcessor applies one Operation to many vouchers, chunk by chunk.
// Each voucher is committed on its own; a failure never rolls back other items.
type BatchProcessor struct {
	store repository.VoucherStore
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewBatchProcessor(store repository.VoucherStore, tm repository.TransactionManager, logger *zerolog.Logger) *BatchProcessor {
	l := logger.With().Str("component", "batch_processor").Logger()
	return &BatchProcessor{store: store, tm: tm, log: &l}
}

// Run always returns exactly len(ids) results, in input order. Items that were
// never reached because ctx was cancelled are reported failed with ErrCancelled.
func (p *BatchProcessor) Run(ctx context.Context, ids []string, op Operation, opts BatchOptions) (*BatchResult, error) {
	defer logging.TraceDuration(p.log, "BatchProcessor.Run")()
	if op == nil {
		return nil, fmt.Errorf("%w: nil operation", domain.ErrInvalidArgument)
	}
	opts = opts.normalized()
	log := logging.With(ctx, p.log)

	results := make([]ItemResult, len(ids))
	for i, id := range ids {
		results[i] = failed(id, "", domain.ErrCancelled)
	}

	chunks := splitChunks(len(ids), opts.ChunkSize)
	pool := worker.NewPool(opts.Workers)
	pool.Start(ctx)

	for i, c := range chunks {
		if ctx.Err() != nil {
			break
		}
		i, c := i, c
		last := i == len(chunks)-1
		err := pool.Submit(ctx, func(ctx context.Context) error {
			p.runChunk(ctx, ids[c.start:c.end], results[c.start:c.end], op)
			if opts.ChunkPause > 0 && !last {
				pause(ctx, opts.ChunkPause)
			}
			return nil
		})
		if err != nil {
			break
		}
	}
	if err := pool.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("batch worker stopped")
	}

	res := &BatchResult{Results: results}
	for _, it := range results {
		if it.Success {
			res.SuccessCount++
		} else {
			res.FailureCount++
		}
		if it.artifact {
			res.GeneratedCount++
		}
	}
	metrics.AddBatchItems(op.Name(), res.SuccessCount, res.FailureCount)

	log.Info().
		Str("operation", op.Name()).
		Int("total", len(ids)).
		Int("chunks", len(chunks)).
		Int("success", res.SuccessCount).
		Int("failure", res.FailureCount).
		Msg("batch run finished")
	return res, nil
}

type chunkRange struct{ start, end int }

func splitChunks(n, size int) []chunkRange {
	var out []chunkRange
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, chunkRange{start, end})
	}
	return out
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (p *BatchProcessor) runChunk(ctx context.Context, ids []string, out []ItemResult, op Operation) {
	start := time.Now()
	defer func() { metrics.ObserveChunk(op.Name(), time.Since(start)) }()

	vouchers, err := p.store.GetByIDs(ctx, repository.NoTX, ids)
	if err != nil {
		logging.With(ctx, p.log).Warn().Err(err).Int("size", len(ids)).Msg("chunk load failed")
		for i, id := range ids {
			out[i] = failed(id, "", fmt.Errorf("load chunk: %w", err))
		}
		return
	}
	byID := make(map[string]*model.Voucher, len(vouchers))
	for _, v := range vouchers {
		byID[v.ID] = v
	}

	for i, id := range ids {
		if ctx.Err() != nil {
			return // remaining items keep their Cancelled placeholder
		}
		v, ok := byID[id]
		if !ok {
			out[i] = failed(id, "", domain.ErrNotFound)
			continue
		}
		res, next := p.processItem(ctx, v, op)
		out[i] = res
		if next != nil {
			// duplicates later in the same chunk must see the committed state
			byID[id] = next
		}
	}
}

func (p *BatchProcessor) processItem(ctx context.Context, v *model.Voucher, op Operation) (ItemResult, *model.Voucher) {
	current := v
	if v.Status != op.Target() || op.RecordsReplay() {
		next, rec, err := op.Apply(ctx, v)
		if err != nil {
			metrics.IncTransition(string(v.Status), string(op.Target()), domain.Code(err))
			return failed(v.ID, v.Status, err), nil
		}
		if err := commitTransition(ctx, p.tm, p.store, v.Status, next, rec); err != nil {
			metrics.IncTransition(string(v.Status), string(op.Target()), domain.Code(err))
			return failed(v.ID, v.Status, err), nil
		}
		metrics.IncTransition(string(v.Status), string(next.Status), "ok")
		current = next
	}

	res := ItemResult{ID: v.ID, Success: true, PreviousStatus: v.Status, NewStatus: current.Status}
	produced, err := op.Finish(ctx, current)
	res.artifact = produced
	if err != nil {
		if !errors.Is(err, domain.ErrArtifactGenerationFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrArtifactGenerationFailed, err)
		}
		res.Success = false
		res.ErrorCode = domain.Code(err)
		res.Message = err.Error()
	}
	return res, current
}

// commitTransition writes the new state and its audit record atomically.
func commitTransition(ctx context.Context, tm repository.TransactionManager, store repository.VoucherStore, expected model.Status, next *model.Voucher, rec *model.AuditRecord) error {
	return tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := store.Update(ctx, tx, next, expected); err != nil {
			return err
		}
		return store.AppendAuditRecord(ctx, tx, rec)
	})
}

func failed(id string, prev model.Status, err error) ItemResult {
	return ItemResult{
		ID:             id,
		Success:        false,
		Message:        err.Error(),
		ErrorCode:      domain.Code(err),
		PreviousStatus: prev,
	}
}
