//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/adapter"
	"coop-voucher/internal/domain/ports/repository"
	"coop-voucher/internal/infra/security"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func newTestCodec(t *testing.T) *security.Codec {
	t.Helper()
	c, err := security.NewCodec([]byte("usecase-test-secret-0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func int64p(v int64) *int64 { return &v }

// --- transaction manager ---

type noopTxManager struct{}

func (noopTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// --- voucher store ---

// memVoucherStore is a small in-memory VoucherStore with failure injection hooks.
type memVoucherStore struct {
	mu       sync.Mutex
	byID     map[string]*model.Voucher
	bySerial map[string]string
	audit    map[string][]*model.AuditRecord

	getByIDsCalls []int // chunk sizes, in call order
	collideNext   int   // Create returns ErrAlreadyExists this many times

	// hooks; nil means no injection
	getByIDsErr func(call int) error
	updateErr   func(v *model.Voucher) error
	onUpdate    func(n int)
	updates     int
}

func newMemVoucherStore() *memVoucherStore {
	return &memVoucherStore{
		byID:     make(map[string]*model.Voucher),
		bySerial: make(map[string]string),
		audit:    make(map[string][]*model.AuditRecord),
	}
}

func (m *memVoucherStore) Create(ctx context.Context, tx repository.Tx, v *model.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collideNext > 0 {
		m.collideNext--
		return domain.ErrAlreadyExists
	}
	if _, ok := m.bySerial[v.Serial]; ok {
		return domain.ErrAlreadyExists
	}
	m.byID[v.ID] = v.Clone()
	m.bySerial[v.Serial] = v.ID
	return nil
}

func (m *memVoucherStore) GetByID(ctx context.Context, tx repository.Tx, id string) (*model.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v.Clone(), nil
}

func (m *memVoucherStore) GetByIDs(ctx context.Context, tx repository.Tx, ids []string) ([]*model.Voucher, error) {
	m.mu.Lock()
	m.getByIDsCalls = append(m.getByIDsCalls, len(ids))
	call := len(m.getByIDsCalls)
	hook := m.getByIDsErr
	m.mu.Unlock()
	if hook != nil {
		if err := hook(call); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Voucher, 0, len(ids))
	for _, id := range ids {
		if v, ok := m.byID[id]; ok {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (m *memVoucherStore) GetBySerial(ctx context.Context, tx repository.Tx, serial string) (*model.Voucher, error) {
	m.mu.Lock()
	id, ok := m.bySerial[serial]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.GetByID(ctx, tx, id)
}

func (m *memVoucherStore) ListByFilter(ctx context.Context, tx repository.Tx, f model.VoucherFilter) ([]*model.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Voucher
	for _, v := range m.byID {
		if f.TemplateID != "" && v.TemplateID != f.TemplateID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, v.Status) {
			continue
		}
		all = append(all, v.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if f.Offset >= len(all) {
		return nil, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

func containsStatus(list []model.Status, s model.Status) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func (m *memVoucherStore) Update(ctx context.Context, tx repository.Tx, next *model.Voucher, expected model.Status) error {
	if m.updateErr != nil {
		if err := m.updateErr(next); err != nil {
			return err
		}
	}
	m.mu.Lock()
	cur, ok := m.byID[next.ID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrNotFound
	}
	if cur.Status != expected {
		m.mu.Unlock()
		return domain.ErrConcurrentModification
	}
	m.byID[next.ID] = next.Clone()
	m.updates++
	n, hook := m.updates, m.onUpdate
	m.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (m *memVoucherStore) AppendAuditRecord(ctx context.Context, tx repository.Tx, rec *model.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.audit[rec.VoucherID] = append(m.audit[rec.VoucherID], &cp)
	return nil
}

func (m *memVoucherStore) ListAuditRecords(ctx context.Context, tx repository.Tx, voucherID string) ([]*model.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.AuditRecord(nil), m.audit[voucherID]...), nil
}

func (m *memVoucherStore) status(t *testing.T, id string) model.Status {
	t.Helper()
	v, err := m.GetByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return v.Status
}

func (m *memVoucherStore) auditCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audit[id])
}

// seed inserts n vouchers of the given status and returns their ids in order.
func (m *memVoucherStore) seed(t *testing.T, n int, status model.Status, templateID string) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("v-%05d", len(m.byID))
		serial := fmt.Sprintf("S%011d", len(m.byID))
		v, err := model.NewVoucher(id, serial, templateID, "Green Valley Coop", "M-1", "Holder", 50_000)
		if err != nil {
			t.Fatalf("NewVoucher: %v", err)
		}
		v.Status = status
		if status != model.StatusRegistered {
			at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			v.IssuedAt = &at
		}
		if err := m.Create(context.Background(), nil, v); err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids[i] = id
	}
	return ids
}

// --- template repo ---

type memTemplateRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Template
}

func newMemTemplateRepo(tpls ...*model.Template) *memTemplateRepo {
	r := &memTemplateRepo{store: make(map[string]*model.Template)}
	for _, t := range tpls {
		r.store[t.ID] = t
	}
	return r
}

func (r *memTemplateRepo) Save(ctx context.Context, tx repository.Tx, t *model.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.store[t.ID] = &cp
	return nil
}

func (r *memTemplateRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memTemplateRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Template
	for _, t := range r.store {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func cashTemplate(t *testing.T, id string, expiresAt *time.Time, sites ...string) *model.Template {
	t.Helper()
	tpl, err := model.NewTemplate(id, "Harvest gift", model.ValueTypeCash, 50_000, expiresAt, sites)
	if err != nil {
		t.Fatalf("NewTemplate: %v", err)
	}
	return tpl
}

// --- batch repo ---

type memBatchRepo struct {
	mu    sync.Mutex
	store map[string]*model.Batch
	saves int
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{store: make(map[string]*model.Batch)}
}

func (r *memBatchRepo) Save(ctx context.Context, tx repository.Tx, b *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.store[b.ID] = &cp
	r.saves++
	return nil
}

func (r *memBatchRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memBatchRepo) FindByIdempotencyKey(ctx context.Context, tx repository.Tx, key string) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.store {
		if key != "" && b.IdempotencyKey == key {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memBatchRepo) IncrementDownloads(ctx context.Context, tx repository.Tx, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.store[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	b.DownloadCount++
	return b.DownloadCount, nil
}

// --- renderer, sink, locker ---

type fakeRenderer struct {
	mu       sync.Mutex
	failFor  map[string]bool // voucher ids whose render fails
	rendered []adapter.RenderInput
}

func (f *fakeRenderer) Render(ctx context.Context, in adapter.RenderInput, format adapter.Format) (*adapter.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[in.VoucherID] {
		return nil, errors.New("font missing")
	}
	f.rendered = append(f.rendered, in)
	return &adapter.Artifact{
		VoucherID:   in.VoucherID,
		Format:      format,
		ContentType: "application/pdf",
		FileName:    in.Serial + ".pdf",
		Data:        []byte("%PDF-" + in.Payload),
	}, nil
}

type memSink struct {
	mu  sync.Mutex
	got []*adapter.Artifact
}

func (s *memSink) Put(ctx context.Context, a *adapter.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, a)
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	unlocked int
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: make(map[string]string)} }

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockHeld
	}
	l.held[key] = "tok-" + key
	return l.held[key], nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.unlocked++
	}
	return nil
}
