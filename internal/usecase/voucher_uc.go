package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/adapter"
	"coop-voucher/internal/domain/ports/repository"
	"coop-voucher/internal/infra/logging"
	"coop-voucher/internal/infra/metrics"
)

// Compile-time check
var _ VoucherUseCase = (*voucherUC)(nil)

const (
	maxSerialAttempts = 5
	defaultListLimit  = 100
	maxListLimit      = 1000
)

type RegisterRequest struct {
	TemplateID  string
	Association string
	MemberID    string
	HolderName  string
	BirthDate   *time.Time
	Phone       *string
	Amount      int64 // 0 takes the template default
	Notes       string
	Actor       string
}

type RedeemRequest struct {
	Payload     string
	SiteID      string
	UsageAmount *int64
	Actor       string
	Notes       string
}

// VerifyResult is what a scan returns: the decoded payload plus the voucher it names.
type VerifyResult struct {
	Payload    model.VerificationPayload
	Voucher    *model.Voucher
	Redeemable bool
	Expired    bool
}

// VoucherUseCase covers single-voucher operations: registration, lookups,
// manual transitions, verification and redemption.
type VoucherUseCase interface {
	Register(ctx context.Context, req RegisterRequest) (*model.Voucher, error)
	Get(ctx context.Context, id string) (*model.Voucher, error)
	List(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, error)
	Audit(ctx context.Context, id string) ([]*model.AuditRecord, error)
	Transition(ctx context.Context, id string, target model.Status, tc model.TransitionContext) (*model.Voucher, *model.AuditRecord, error)
	Verify(ctx context.Context, payload string) (*VerifyResult, error)
	Redeem(ctx context.Context, req RedeemRequest) (*model.Voucher, *model.AuditRecord, error)
	Payload(ctx context.Context, id string) (string, error)
}

type voucherUC struct {
	store     repository.VoucherStore
	templates repository.TemplateRepository
	tm        repository.TransactionManager
	codec     adapter.Codec
	log       *zerolog.Logger
	dev       bool
	now       func() time.Time
}

func NewVoucherUseCase(
	store repository.VoucherStore,
	templates repository.TemplateRepository,
	tm repository.TransactionManager,
	codec adapter.Codec,
	logger *zerolog.Logger,
	dev bool,
) *voucherUC {
	l := logger.With().Str("component", "voucher_uc").Logger()
	return &voucherUC{
		store:     store,
		templates: templates,
		tm:        tm,
		codec:     codec,
		log:       &l,
		dev:       dev,
		now:       time.Now,
	}
}

func (u *voucherUC) Register(ctx context.Context, req RegisterRequest) (*model.Voucher, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Register")()

	tpl, err := u.templates.FindByID(ctx, repository.NoTX, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	amount := req.Amount
	if amount == 0 {
		amount = tpl.DefaultAmount
	}

	now := u.now()
	for attempt := 1; attempt <= maxSerialAttempts; attempt++ {
		serial, err := u.codec.GenerateSerial(now)
		if err != nil {
			return nil, err
		}
		v, err := model.NewVoucher(uuid.NewString(), serial, tpl.ID, req.Association, req.MemberID, req.HolderName, amount)
		if err != nil {
			return nil, err
		}
		v.BirthDate = req.BirthDate
		v.Phone = req.Phone
		v.Notes = req.Notes

		rec := &model.AuditRecord{
			ID:        ulid.Make().String(),
			VoucherID: v.ID,
			Actor:     req.Actor,
			ToStatus:  model.StatusRegistered,
			Reason:    "register",
			CreatedAt: now,
		}
		err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := u.store.Create(ctx, tx, v); err != nil {
				return err
			}
			return u.store.AppendAuditRecord(ctx, tx, rec)
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			metrics.IncRegistration("collision")
			u.log.Debug().Int("attempt", attempt).Msg("serial collision, regenerating")
			continue
		}
		if err != nil {
			metrics.IncRegistration("error")
			return nil, err
		}
		metrics.IncRegistration("ok")
		u.log.Info().
			Str("voucher_id", v.ID).
			Str("holder", logging.Redact(v.HolderName, u.dev)).
			Msg("voucher registered")
		return v, nil
	}
	metrics.IncRegistration("error")
	return nil, fmt.Errorf("%w: no unique serial after %d attempts", domain.ErrAlreadyExists, maxSerialAttempts)
}

func (u *voucherUC) Get(ctx context.Context, id string) (*model.Voucher, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Get")()
	return u.store.GetByID(ctx, repository.NoTX, id)
}

func (u *voucherUC) List(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.List")()
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	for _, s := range f.Statuses {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, s)
		}
	}
	return u.store.ListByFilter(ctx, repository.NoTX, f)
}

func (u *voucherUC) Audit(ctx context.Context, id string) ([]*model.AuditRecord, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Audit")()
	if _, err := u.store.GetByID(ctx, repository.NoTX, id); err != nil {
		return nil, err
	}
	return u.store.ListAuditRecords(ctx, repository.NoTX, id)
}

func (u *voucherUC) Transition(ctx context.Context, id string, target model.Status, tc model.TransitionContext) (*model.Voucher, *model.AuditRecord, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Transition")()
	v, err := u.store.GetByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, nil, err
	}
	if target == model.StatusUsed {
		// single manual redemptions obey the same template rules as scans
		if err := u.checkTemplate(ctx, v, tc.SiteID); err != nil {
			metrics.IncTransition(string(v.Status), string(target), domain.Code(err))
			return nil, nil, err
		}
	}
	return u.apply(ctx, v, target, tc)
}

func (u *voucherUC) Verify(ctx context.Context, payload string) (*VerifyResult, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Verify")()
	p, err := u.codec.DecodeAndVerify(payload)
	if err != nil {
		metrics.IncVerification(domain.Code(err))
		logging.With(ctx, u.log).Warn().Str("code", domain.Code(err)).Msg("payload rejected")
		return nil, err
	}
	v, err := u.store.GetBySerial(ctx, repository.NoTX, p.Serial)
	if err != nil {
		metrics.IncVerification(domain.Code(err))
		return nil, err
	}
	tpl, err := u.templates.FindByID(ctx, repository.NoTX, v.TemplateID)
	if err != nil {
		// expiry is unknown without the template; never report such a voucher redeemable
		metrics.IncVerification(domain.Code(err))
		return nil, fmt.Errorf("load template %s: %w", v.TemplateID, err)
	}
	res := &VerifyResult{Payload: p, Voucher: v, Expired: tpl.Expired(u.now())}
	res.Redeemable = model.IsRedeemable(v) && !res.Expired
	metrics.IncVerification("ok")
	return res, nil
}

// Redeem verifies the scanned payload and marks the voucher used.
// A second redemption of the same voucher fails with ErrAlreadyTerminal.
func (u *voucherUC) Redeem(ctx context.Context, req RedeemRequest) (*model.Voucher, *model.AuditRecord, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Redeem")()
	p, err := u.codec.DecodeAndVerify(req.Payload)
	if err != nil {
		metrics.IncVerification(domain.Code(err))
		return nil, nil, err
	}
	metrics.IncVerification("ok")

	v, err := u.store.GetBySerial(ctx, repository.NoTX, p.Serial)
	if err != nil {
		return nil, nil, err
	}
	if !model.IsRedeemable(v) {
		err := fmt.Errorf("%w: %w: voucher is %s", domain.ErrInvalidTransition, domain.ErrAlreadyTerminal, v.Status)
		metrics.IncTransition(string(v.Status), string(model.StatusUsed), domain.Code(err))
		return nil, nil, err
	}
	if err := u.checkTemplate(ctx, v, req.SiteID); err != nil {
		metrics.IncTransition(string(v.Status), string(model.StatusUsed), domain.Code(err))
		return nil, nil, err
	}
	return u.apply(ctx, v, model.StatusUsed, model.TransitionContext{
		Actor:       req.Actor,
		Notes:       req.Notes,
		SiteID:      req.SiteID,
		UsageAmount: req.UsageAmount,
		At:          u.now(),
	})
}

// Payload returns the signed scannable payload for an issued voucher.
func (u *voucherUC) Payload(ctx context.Context, id string) (string, error) {
	v, err := u.store.GetByID(ctx, repository.NoTX, id)
	if err != nil {
		return "", err
	}
	if v.IssuedAt == nil {
		return "", fmt.Errorf("%w: voucher %s was never issued", domain.ErrValidationFailed, id)
	}
	return u.codec.EncodePayload(v.Serial, *v.IssuedAt), nil
}

func (u *voucherUC) checkTemplate(ctx context.Context, v *model.Voucher, site string) error {
	tpl, err := u.templates.FindByID(ctx, repository.NoTX, v.TemplateID)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}
	return CheckRedemption(tpl, site, u.now())
}

func (u *voucherUC) apply(ctx context.Context, v *model.Voucher, target model.Status, tc model.TransitionContext) (*model.Voucher, *model.AuditRecord, error) {
	if tc.At.IsZero() {
		tc.At = u.now()
	}
	next, rec, err := model.Transition(v, target, tc)
	if err != nil {
		metrics.IncTransition(string(v.Status), string(target), domain.Code(err))
		return nil, nil, err
	}
	if err := commitTransition(ctx, u.tm, u.store, v.Status, next, rec); err != nil {
		metrics.IncTransition(string(v.Status), string(target), domain.Code(err))
		return nil, nil, err
	}
	metrics.IncTransition(string(v.Status), string(target), "ok")
	logging.With(ctx, u.log).Info().
		Str("voucher_id", v.ID).
		Str("from", string(v.Status)).
		Str("to", string(target)).
		Msg("voucher transitioned")
	return next, rec, nil
}
