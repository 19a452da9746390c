package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/adapter"
	"coop-voucher/internal/domain/ports/repository"
)

// Operation is one bulk action applied by the BatchProcessor to every voucher of a run.
type Operation interface {
	Name() string
	Target() model.Status
	// RecordsReplay reports whether a voucher already at Target still goes through
	// Transition (and gets an audit record). When false the item is an idempotent no-op.
	RecordsReplay() bool
	Apply(ctx context.Context, v *model.Voucher) (*model.Voucher, *model.AuditRecord, error)
	// Finish runs after the status change is committed. produced reports an artifact.
	Finish(ctx context.Context, v *model.Voucher) (produced bool, err error)
}

// TransitionOperation moves every voucher to a single target status.
type TransitionOperation struct {
	Status  model.Status
	Context model.TransitionContext
}

func (o TransitionOperation) Name() string        { return string(o.Status) }
func (o TransitionOperation) Target() model.Status { return o.Status }
func (o TransitionOperation) RecordsReplay() bool  { return false }

func (o TransitionOperation) Apply(_ context.Context, v *model.Voucher) (*model.Voucher, *model.AuditRecord, error) {
	tc := o.Context
	if tc.At.IsZero() {
		tc.At = time.Now()
	}
	return model.Transition(v, o.Status, tc)
}

func (o TransitionOperation) Finish(context.Context, *model.Voucher) (bool, error) {
	return false, nil
}

// ArtifactOperation issues (or reprints) vouchers and renders one artifact each.
// Sink may be nil, in which case artifacts are rendered and only counted.
type ArtifactOperation struct {
	Format    adapter.Format
	Actor     string
	Renderer  adapter.ArtifactRenderer
	Sink      adapter.ArtifactSink
	Codec     adapter.Codec
	Templates repository.TemplateRepository

	memo templateMemo
}

func (o *ArtifactOperation) Name() string {
	if o.Format == adapter.FormatDisplay {
		return "send"
	}
	return "print"
}

func (o *ArtifactOperation) Target() model.Status { return model.StatusIssued }

func (o *ArtifactOperation) RecordsReplay() bool { return true }

func (o *ArtifactOperation) Apply(_ context.Context, v *model.Voucher) (*model.Voucher, *model.AuditRecord, error) {
	reason := "issue"
	if v.Status == model.StatusIssued {
		reason = "reprint"
	}
	return model.Transition(v, model.StatusIssued, model.TransitionContext{
		Actor:  o.Actor,
		Reason: reason,
		At:     time.Now(),
	})
}

func (o *ArtifactOperation) Finish(ctx context.Context, v *model.Voucher) (bool, error) {
	in, err := o.renderInput(ctx, v)
	if err != nil {
		return false, err
	}
	a, err := o.Renderer.Render(ctx, in, o.Format)
	if err != nil {
		return false, err
	}
	if o.Sink != nil {
		if err := o.Sink.Put(ctx, a); err != nil {
			return false, fmt.Errorf("store artifact: %w", err)
		}
	}
	return true, nil
}

func (o *ArtifactOperation) renderInput(ctx context.Context, v *model.Voucher) (adapter.RenderInput, error) {
	tpl, err := o.memo.get(ctx, o.Templates, v.TemplateID)
	if err != nil {
		return adapter.RenderInput{}, fmt.Errorf("load template %s: %w", v.TemplateID, err)
	}
	issuedAt := v.UpdatedAt
	if v.IssuedAt != nil {
		issuedAt = *v.IssuedAt
	}
	return BuildRenderInput(o.Codec, v, tpl, issuedAt), nil
}

// RedeemOperation marks vouchers used at one site. Each item passes the same
// template rules as a single redemption: expiry, then site eligibility.
type RedeemOperation struct {
	Context   model.TransitionContext
	Templates repository.TemplateRepository

	memo templateMemo
}

func (o *RedeemOperation) Name() string        { return "redeem" }
func (o *RedeemOperation) Target() model.Status { return model.StatusUsed }
func (o *RedeemOperation) RecordsReplay() bool  { return false }

func (o *RedeemOperation) Apply(ctx context.Context, v *model.Voucher) (*model.Voucher, *model.AuditRecord, error) {
	tc := o.Context
	if tc.At.IsZero() {
		tc.At = time.Now()
	}
	if !model.CanTransition(v.Status, model.StatusUsed) {
		return model.Transition(v, model.StatusUsed, tc)
	}
	tpl, err := o.memo.get(ctx, o.Templates, v.TemplateID)
	if err != nil {
		return nil, nil, fmt.Errorf("load template %s: %w", v.TemplateID, err)
	}
	if err := CheckRedemption(tpl, tc.SiteID, tc.At); err != nil {
		return nil, nil, err
	}
	return model.Transition(v, model.StatusUsed, tc)
}

func (o *RedeemOperation) Finish(context.Context, *model.Voucher) (bool, error) {
	return false, nil
}

// CheckRedemption applies the template rules every redemption path shares.
func CheckRedemption(tpl *model.Template, site string, at time.Time) error {
	if tpl.Expired(at) {
		return fmt.Errorf("%w: template %s expired", domain.ErrVoucherExpired, tpl.ID)
	}
	if !tpl.SiteAllowed(strings.TrimSpace(site)) {
		return fmt.Errorf("%w: site %q is not eligible for template %s", domain.ErrValidationFailed, site, tpl.ID)
	}
	return nil
}

// templateMemo caches template lookups for the length of one run; a batch usually shares one template.
type templateMemo struct {
	mu    sync.Mutex
	cache map[string]*model.Template
}

func (m *templateMemo) get(ctx context.Context, repo repository.TemplateRepository, id string) (*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.cache[id]; ok {
		return t, nil
	}
	t, err := repo.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if m.cache == nil {
		m.cache = make(map[string]*model.Template)
	}
	m.cache[id] = t
	return t, nil
}

// BuildRenderInput resolves every field the renderer needs, including the signed payload.
func BuildRenderInput(codec adapter.Codec, v *model.Voucher, tpl *model.Template, issuedAt time.Time) adapter.RenderInput {
	return adapter.RenderInput{
		VoucherID:   v.ID,
		Serial:      v.Serial,
		HolderName:  v.HolderName,
		MemberID:    v.MemberID,
		Association: v.Association,
		Amount:      v.Amount,
		ValueType:   string(tpl.ValueType),
		Template:    tpl.Name,
		ExpiresAt:   tpl.ExpiresAt,
		IssuedAt:    issuedAt,
		Payload:     codec.EncodePayload(v.Serial, issuedAt),
	}
}

// ParseOperation maps an operation name from the API or CLI onto an Operation.
// Artifact and redeem operations need store dependencies and are built by the caller.
func ParseOperation(name string, tc model.TransitionContext) (Operation, error) {
	switch name {
	case "issue":
		return TransitionOperation{Status: model.StatusIssued, Context: tc}, nil
	case "recall":
		return TransitionOperation{Status: model.StatusRecalled, Context: tc}, nil
	case "dispose":
		return TransitionOperation{Status: model.StatusDisposed, Context: tc}, nil
	}
	return nil, fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidArgument, name)
}
