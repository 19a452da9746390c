package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/adapter"
	"coop-voucher/internal/domain/ports/repository"
	"coop-voucher/internal/infra/logging"
	"coop-voucher/internal/infra/metrics"
	red "coop-voucher/internal/infra/redis"
)

// Compile-time check
var _ BatchUseCase = (*batchUC)(nil)

// BatchSettings carries the tunables from the batch and render config sections.
type BatchSettings struct {
	Options  BatchOptions
	LockTTL  time.Duration
	ShareTTL time.Duration
}

type StartBatchRequest struct {
	Name       string
	OwnerID    string
	TemplateID string
	Operation  string // issue|recall|dispose|redeem|print|send
	Reason     string
	SiteID     string
	VoucherIDs []string
	// Filter selects the vouchers when VoucherIDs is empty.
	Filter *model.VoucherFilter
	// IdempotencyKey makes a resubmission return the batch it already created.
	IdempotencyKey string
}

type BatchRun struct {
	Batch  *model.Batch
	Result *BatchResult
	// Replayed marks a run answered from an earlier batch with the same key.
	// Its Result carries the stored counts only, no item results.
	Replayed bool
}

type BatchUseCase interface {
	Start(ctx context.Context, req StartBatchRequest, sink adapter.ArtifactSink) (*BatchRun, error)
	RetryFailed(ctx context.Context, req StartBatchRequest, prev *BatchResult, sink adapter.ArtifactSink) (*BatchRun, error)
	Get(ctx context.Context, id string) (*model.Batch, error)
	ShareBatch(ctx context.Context, token string) (*model.Batch, error)
	ShareArtifact(ctx context.Context, token, voucherID string) (*adapter.Artifact, error)
}

type batchUC struct {
	processor *BatchProcessor
	store     repository.VoucherStore
	batches   repository.BatchRepository
	templates repository.TemplateRepository
	renderer  adapter.ArtifactRenderer
	codec     adapter.Codec
	locker    red.Locker // optional
	settings  BatchSettings
	log       *zerolog.Logger
	now       func() time.Time
}

func NewBatchUseCase(
	processor *BatchProcessor,
	store repository.VoucherStore,
	batches repository.BatchRepository,
	templates repository.TemplateRepository,
	renderer adapter.ArtifactRenderer,
	codec adapter.Codec,
	locker red.Locker,
	settings BatchSettings,
	logger *zerolog.Logger,
) *batchUC {
	if settings.LockTTL <= 0 {
		settings.LockTTL = 15 * time.Minute
	}
	if settings.ShareTTL <= 0 {
		settings.ShareTTL = 7 * 24 * time.Hour
	}
	l := logger.With().Str("component", "batch_uc").Logger()
	return &batchUC{
		processor: processor,
		store:     store,
		batches:   batches,
		templates: templates,
		renderer:  renderer,
		codec:     codec,
		locker:    locker,
		settings:  settings,
		log:       &l,
		now:       time.Now,
	}
}

func (u *batchUC) Start(ctx context.Context, req StartBatchRequest, sink adapter.ArtifactSink) (*BatchRun, error) {
	defer logging.TraceDuration(u.log, "BatchUC.Start")()

	op, err := u.operation(req, sink)
	if err != nil {
		return nil, err
	}
	ids, err := u.selectIDs(ctx, req)
	if err != nil {
		return nil, err
	}

	if u.locker != nil && req.IdempotencyKey != "" {
		key := red.BatchLockKey(req.IdempotencyKey)
		token, err := u.locker.TryLock(ctx, key, u.settings.LockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				u.log.Warn().Err(err).Str("key", key).Msg("batch unlock failed")
			}
		}()
	}

	if req.IdempotencyKey != "" {
		prev, err := u.batches.FindByIdempotencyKey(ctx, repository.NoTX, req.IdempotencyKey)
		switch {
		case err == nil:
			return u.replay(prev)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	b, err := model.NewBatch(req.Name, req.OwnerID, req.TemplateID, req.Operation, ids)
	if err != nil {
		return nil, err
	}
	b.IdempotencyKey = req.IdempotencyKey
	if err := u.batches.Save(ctx, repository.NoTX, b); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}

	ctx = logging.WithBatchID(ctx, b.ID)
	log := logging.With(ctx, u.log)
	log.Info().Str("operation", req.Operation).Int("total", len(ids)).Msg("batch started")

	res, err := u.processor.Run(ctx, ids, op, u.settings.Options)
	if err != nil {
		return nil, err
	}

	// the run may have been cancelled; the bookkeeping write must still land
	saveCtx := context.WithoutCancel(ctx)
	now := u.now()
	if err := b.Complete(res.SuccessCount, res.FailureCount, res.GeneratedCount, now); err != nil {
		return nil, err
	}
	if _, ok := op.(*ArtifactOperation); ok && res.SuccessCount > 0 {
		exp := now.Add(u.settings.ShareTTL)
		b.ShareToken = u.codec.NewShareToken(b.ID, exp)
		b.ShareExpiresAt = &exp
	}
	if err := u.batches.Save(saveCtx, repository.NoTX, b); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	metrics.IncBatchRun(string(b.Status))

	ev := log.Info()
	if res.Partial() {
		ev = log.Warn()
	}
	ev.Str("status", string(b.Status)).
		Int("success", res.SuccessCount).
		Int("failure", res.FailureCount).
		Bool("partial", res.Partial()).
		Msg("batch finished")
	return &BatchRun{Batch: b, Result: res}, nil
}

// replay answers a resubmission with the stored batch. A batch still generating
// belongs to a live run elsewhere.
func (u *batchUC) replay(b *model.Batch) (*BatchRun, error) {
	if !b.Finished() {
		return nil, fmt.Errorf("%w: batch %s is still running", domain.ErrLockHeld, b.ID)
	}
	u.log.Info().Str("batch_id", b.ID).Str("key", b.IdempotencyKey).Msg("batch replayed for idempotency key")
	return &BatchRun{
		Batch: b,
		Result: &BatchResult{
			SuccessCount:   b.SuccessCount,
			FailureCount:   b.FailureCount,
			GeneratedCount: b.GeneratedCount,
		},
		Replayed: true,
	}, nil
}

// RetryFailed re-runs the request over the failed items of a previous result only.
func (u *batchUC) RetryFailed(ctx context.Context, req StartBatchRequest, prev *BatchResult, sink adapter.ArtifactSink) (*BatchRun, error) {
	if prev == nil {
		return nil, domain.ErrInvalidArgument
	}
	ids := prev.FailedIDs()
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: nothing to retry", domain.ErrInvalidArgument)
	}
	req.VoucherIDs = ids
	req.Filter = nil
	req.Name = strings.TrimSpace(req.Name + " (retry)")
	if req.IdempotencyKey != "" {
		req.IdempotencyKey += ":retry"
	}
	return u.Start(ctx, req, sink)
}

func (u *batchUC) Get(ctx context.Context, id string) (*model.Batch, error) {
	defer logging.TraceDuration(u.log, "BatchUC.Get")()
	return u.batches.FindByID(ctx, repository.NoTX, id)
}

// ShareBatch resolves a share token to its batch without counting a download.
func (u *batchUC) ShareBatch(ctx context.Context, token string) (*model.Batch, error) {
	id, err := u.codec.VerifyShareToken(token, u.now())
	if err != nil {
		return nil, err
	}
	b, err := u.batches.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if b.ShareToken != token {
		// a token minted for an older run of the same id is not honoured
		return nil, domain.ErrSignatureMismatch
	}
	return b, nil
}

// ShareArtifact renders the display artifact of one voucher in a shared batch
// and bumps the batch download counter.
func (u *batchUC) ShareArtifact(ctx context.Context, token, voucherID string) (*adapter.Artifact, error) {
	defer logging.TraceDuration(u.log, "BatchUC.ShareArtifact")()
	b, err := u.ShareBatch(ctx, token)
	if err != nil {
		return nil, err
	}
	if !b.Contains(voucherID) {
		return nil, domain.ErrNotFound
	}
	v, err := u.store.GetByID(ctx, repository.NoTX, voucherID)
	if err != nil {
		return nil, err
	}
	if v.Status != model.StatusIssued || v.IssuedAt == nil {
		return nil, fmt.Errorf("%w: %w: voucher is %s", domain.ErrInvalidTransition, domain.ErrAlreadyTerminal, v.Status)
	}
	tpl, err := u.templates.FindByID(ctx, repository.NoTX, v.TemplateID)
	if err != nil {
		return nil, err
	}
	a, err := u.renderer.Render(ctx, BuildRenderInput(u.codec, v, tpl, *v.IssuedAt), adapter.FormatDisplay)
	if err != nil {
		if !errors.Is(err, domain.ErrArtifactGenerationFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrArtifactGenerationFailed, err)
		}
		return nil, err
	}
	if _, err := u.batches.IncrementDownloads(ctx, repository.NoTX, b.ID); err != nil {
		u.log.Warn().Err(err).Str("batch_id", b.ID).Msg("download counter not updated")
	}
	return a, nil
}

func (u *batchUC) operation(req StartBatchRequest, sink adapter.ArtifactSink) (Operation, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: batch name is required", domain.ErrInvalidArgument)
	}
	switch req.Operation {
	case "print", "send":
		format := adapter.FormatPrint
		if req.Operation == "send" {
			format = adapter.FormatDisplay
		}
		return &ArtifactOperation{
			Format:    format,
			Actor:     req.OwnerID,
			Renderer:  u.renderer,
			Sink:      sink,
			Codec:     u.codec,
			Templates: u.templates,
		}, nil
	case "redeem":
		return &RedeemOperation{
			Context: model.TransitionContext{
				Actor:  req.OwnerID,
				SiteID: req.SiteID,
			},
			Templates: u.templates,
		}, nil
	}
	return ParseOperation(req.Operation, model.TransitionContext{
		Actor:  req.OwnerID,
		Reason: req.Reason,
		SiteID: req.SiteID,
	})
}

// selectIDs returns the explicit ids, or pages through the filter.
func (u *batchUC) selectIDs(ctx context.Context, req StartBatchRequest) ([]string, error) {
	if len(req.VoucherIDs) > 0 {
		return req.VoucherIDs, nil
	}
	if req.Filter == nil {
		return nil, fmt.Errorf("%w: no vouchers selected", domain.ErrInvalidArgument)
	}
	f := *req.Filter
	f.Offset, f.Limit = 0, MaxChunkSize
	var ids []string
	for {
		page, err := u.store.ListByFilter(ctx, repository.NoTX, f)
		if err != nil {
			return nil, err
		}
		for _, v := range page {
			ids = append(ids, v.ID)
		}
		if len(page) < f.Limit {
			break
		}
		f.Offset += f.Limit
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: filter matched no vouchers", domain.ErrNotFound)
	}
	return ids, nil
}
