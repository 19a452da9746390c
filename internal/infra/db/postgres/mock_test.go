//go:build !integration

package postgres

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/repository"
	red "coop-voucher/internal/infra/redis"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- Mocks for Cache Decorator Tests ---

// mockInnerTemplateRepo mocks the database repository that the template decorator wraps.
type mockInnerTemplateRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, t *model.Template) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Template, error)
	ListFunc     func(ctx context.Context, tx repository.Tx) ([]*model.Template, error)
}

func (m *mockInnerTemplateRepo) Save(ctx context.Context, tx repository.Tx, t *model.Template) error {
	return m.SaveFunc(ctx, tx, t)
}
func (m *mockInnerTemplateRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Template, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerTemplateRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Template, error) {
	return m.ListFunc(ctx, tx)
}

// mockRedisClient is a mock for the RedisClient interface.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", red.Nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
