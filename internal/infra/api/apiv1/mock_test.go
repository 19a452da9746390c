//go:build !integration

package apiv1_test

import (
	"context"
	"time"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/adapter"
	"coop-voucher/internal/usecase"
)

// --- function-field fakes of the use cases ---

type fakeVoucherUC struct {
	RegisterFunc   func(ctx context.Context, req usecase.RegisterRequest) (*model.Voucher, error)
	GetFunc        func(ctx context.Context, id string) (*model.Voucher, error)
	ListFunc       func(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, error)
	AuditFunc      func(ctx context.Context, id string) ([]*model.AuditRecord, error)
	TransitionFunc func(ctx context.Context, id string, target model.Status, tc model.TransitionContext) (*model.Voucher, *model.AuditRecord, error)
	VerifyFunc     func(ctx context.Context, payload string) (*usecase.VerifyResult, error)
	RedeemFunc     func(ctx context.Context, req usecase.RedeemRequest) (*model.Voucher, *model.AuditRecord, error)
	PayloadFunc    func(ctx context.Context, id string) (string, error)
}

var _ usecase.VoucherUseCase = (*fakeVoucherUC)(nil)

func (f *fakeVoucherUC) Register(ctx context.Context, req usecase.RegisterRequest) (*model.Voucher, error) {
	return f.RegisterFunc(ctx, req)
}
func (f *fakeVoucherUC) Get(ctx context.Context, id string) (*model.Voucher, error) {
	return f.GetFunc(ctx, id)
}
func (f *fakeVoucherUC) List(ctx context.Context, fl model.VoucherFilter) ([]*model.Voucher, error) {
	return f.ListFunc(ctx, fl)
}
func (f *fakeVoucherUC) Audit(ctx context.Context, id string) ([]*model.AuditRecord, error) {
	return f.AuditFunc(ctx, id)
}
func (f *fakeVoucherUC) Transition(ctx context.Context, id string, target model.Status, tc model.TransitionContext) (*model.Voucher, *model.AuditRecord, error) {
	return f.TransitionFunc(ctx, id, target, tc)
}
func (f *fakeVoucherUC) Verify(ctx context.Context, payload string) (*usecase.VerifyResult, error) {
	return f.VerifyFunc(ctx, payload)
}
func (f *fakeVoucherUC) Redeem(ctx context.Context, req usecase.RedeemRequest) (*model.Voucher, *model.AuditRecord, error) {
	return f.RedeemFunc(ctx, req)
}
func (f *fakeVoucherUC) Payload(ctx context.Context, id string) (string, error) {
	return f.PayloadFunc(ctx, id)
}

type fakeBatchUC struct {
	StartFunc         func(ctx context.Context, req usecase.StartBatchRequest, sink adapter.ArtifactSink) (*usecase.BatchRun, error)
	GetFunc           func(ctx context.Context, id string) (*model.Batch, error)
	ShareBatchFunc    func(ctx context.Context, token string) (*model.Batch, error)
	ShareArtifactFunc func(ctx context.Context, token, voucherID string) (*adapter.Artifact, error)
}

var _ usecase.BatchUseCase = (*fakeBatchUC)(nil)

func (f *fakeBatchUC) Start(ctx context.Context, req usecase.StartBatchRequest, sink adapter.ArtifactSink) (*usecase.BatchRun, error) {
	return f.StartFunc(ctx, req, sink)
}
func (f *fakeBatchUC) RetryFailed(ctx context.Context, req usecase.StartBatchRequest, prev *usecase.BatchResult, sink adapter.ArtifactSink) (*usecase.BatchRun, error) {
	return nil, domain.ErrOperationFailed
}
func (f *fakeBatchUC) Get(ctx context.Context, id string) (*model.Batch, error) {
	return f.GetFunc(ctx, id)
}
func (f *fakeBatchUC) ShareBatch(ctx context.Context, token string) (*model.Batch, error) {
	return f.ShareBatchFunc(ctx, token)
}
func (f *fakeBatchUC) ShareArtifact(ctx context.Context, token, voucherID string) (*adapter.Artifact, error) {
	return f.ShareArtifactFunc(ctx, token, voucherID)
}

type fakeTemplates struct {
	byID map[string]*model.Template
}

func (f *fakeTemplates) Create(ctx context.Context, req usecase.CreateTemplateRequest) (*model.Template, error) {
	t, err := model.NewTemplate("tpl-new", req.Name, req.ValueType, req.DefaultAmount, req.ExpiresAt, req.EligibleSites)
	if err != nil {
		return nil, err
	}
	f.byID[t.ID] = t
	return t, nil
}
func (f *fakeTemplates) Get(ctx context.Context, id string) (*model.Template, error) {
	if t, ok := f.byID[id]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}
func (f *fakeTemplates) List(ctx context.Context) ([]*model.Template, error) {
	out := make([]*model.Template, 0, len(f.byID))
	for _, t := range f.byID {
		out = append(out, t)
	}
	return out, nil
}

// fakeLimiter admits the first limit calls per key.
type fakeLimiter struct {
	hits map[string]int
	err  error
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

func sampleVoucher(status model.Status) *model.Voucher {
	v, _ := model.NewVoucher("v-1", "260101123455", "tpl-1", "Green Valley Coop", "M-7", "Jane Farmer", 50_000)
	v.Status = status
	return v
}
