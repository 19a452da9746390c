// Package bootstrap assembles the stores and use cases shared by the service and voucherctl.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"coop-voucher/internal/config"
	"coop-voucher/internal/domain/ports/repository"
	pg "coop-voucher/internal/infra/db/postgres"
	red "coop-voucher/internal/infra/redis"
	"coop-voucher/internal/infra/render"
	"coop-voucher/internal/infra/security"
	"coop-voucher/internal/usecase"
)

type Deps struct {
	Pool        *pgxpool.Pool
	Redis       *red.Client // nil when redis.url is empty
	RateLimiter *red.RateLimiter
	Codec       *security.Codec
	Vouchers    repository.VoucherStore
	Templates   repository.TemplateRepository
	Batches     repository.BatchRepository
	TxManager   repository.TransactionManager
	Renderer    *render.PDFRenderer

	VoucherUC  usecase.VoucherUseCase
	BatchUC    usecase.BatchUseCase
	TemplateUC *usecase.TemplateUseCase
}

// Close releases the pool and the redis client.
func (d *Deps) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Deps, error) {
	d := &Deps{}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	d.Pool = pool

	// ---- Security ----
	d.Codec, err = security.NewCodec([]byte(cfg.Security.SigningSecret))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("codec: %w", err)
	}
	var phones pg.PhoneCipher
	if cfg.Security.PhoneKey != "" {
		fc, err := security.NewFieldCipher([]byte(cfg.Security.PhoneKey))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("phone cipher: %w", err)
		}
		phones = fc
	} else {
		logger.Warn().Msg("security.phone_key not set; holder phones are stored in clear")
	}

	// ---- Repositories ----
	d.Vouchers = pg.NewVoucherRepo(pool, phones)
	d.Batches = pg.NewBatchRepo(pool)
	d.TxManager = pg.NewTxManager(pool)
	d.Templates = pg.NewTemplateRepo(pool)

	// ---- Redis (optional) ----
	var locker red.Locker
	if cfg.Redis.URL != "" {
		d.Redis, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		d.Templates = pg.NewTemplateRepoCacheDecorator(d.Templates, d.Redis, cfg.Redis.TTL, logger)
		d.RateLimiter = red.NewRateLimiter(d.Redis)
		locker = red.NewLocker(d.Redis)
	} else {
		logger.Warn().Msg("redis.url not set; template cache, batch lock and rate limits are off")
	}

	// ---- Use cases ----
	d.Renderer = render.NewPDFRenderer(cfg.Render.Currency, logger)
	processor := usecase.NewBatchProcessor(d.Vouchers, d.TxManager, logger)
	d.VoucherUC = usecase.NewVoucherUseCase(d.Vouchers, d.Templates, d.TxManager, d.Codec, logger, cfg.Runtime.Dev)
	d.TemplateUC = usecase.NewTemplateUseCase(d.Templates)
	d.BatchUC = usecase.NewBatchUseCase(processor, d.Vouchers, d.Batches, d.Templates, d.Renderer, d.Codec, locker,
		usecase.BatchSettings{
			Options: usecase.BatchOptions{
				ChunkSize:  cfg.Batch.ChunkSize,
				Workers:    cfg.Batch.Workers,
				ChunkPause: cfg.Batch.ChunkPause,
			},
			LockTTL:  cfg.Batch.LockTTL,
			ShareTTL: cfg.Render.ShareTTL,
		}, logger)
	return d, nil
}
