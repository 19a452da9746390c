//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/repository"
)

func TestTemplateRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	tpl := &model.Template{ID: "tpl-123", Name: "Rice bag", ValueType: model.ValueTypeFixedItem, DefaultAmount: 30_000}
	tplJSON, _ := json.Marshal(tpl)

	t.Run("FindByID should return from cache on hit", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return string(tplJSON), nil // Simulate cache hit
			},
		}
		innerRepoCalled := false
		mockInnerRepo := &mockInnerTemplateRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Template, error) {
				innerRepoCalled = true // This should not be called
				return nil, nil
			},
		}

		result, err := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, newTestLogger()).FindByID(ctx, nil, "tpl-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerRepoCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if result == nil || result.ID != "tpl-123" || result.ValueType != model.ValueTypeFixedItem {
			t.Error("did not return the correct template from cache")
		}
	})

	t.Run("FindByID should fill the cache on miss", func(t *testing.T) {
		var setKey string
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setKey = key
				return nil
			},
		}
		mockInnerRepo := &mockInnerTemplateRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Template, error) {
				return tpl, nil
			},
		}

		result, err := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, newTestLogger()).FindByID(ctx, nil, "tpl-123")
		if err != nil || result.Name != "Rice bag" {
			t.Fatalf("expected template from inner repo, got %+v (%v)", result, err)
		}
		if setKey != "template:tpl-123" {
			t.Errorf("expected cache fill for template:tpl-123, got %q", setKey)
		}
	})

	t.Run("FindByID should not cache a missing template", func(t *testing.T) {
		setCalled := false
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				setCalled = true
				return nil
			},
		}
		mockInnerRepo := &mockInnerTemplateRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.Template, error) {
				return nil, domain.ErrNotFound
			},
		}

		_, err := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, newTestLogger()).FindByID(ctx, nil, "nope")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if setCalled {
			t.Error("expected no cache write for a missing template")
		}
	})

	t.Run("Save should invalidate the cache", func(t *testing.T) {
		var deletedKeys []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deletedKeys = append(deletedKeys, keys...)
				return nil
			},
		}
		mockInnerRepo := &mockInnerTemplateRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, t *model.Template) error {
				return nil
			},
		}

		if err := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, newTestLogger()).Save(ctx, nil, tpl); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deletedKeys) != 2 {
			t.Fatalf("expected 2 keys to be deleted, but got %d", len(deletedKeys))
		}
	})

	t.Run("Save failure should leave the cache alone", func(t *testing.T) {
		delCalled := false
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				delCalled = true
				return nil
			},
		}
		mockInnerRepo := &mockInnerTemplateRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, t *model.Template) error {
				return errors.New("db down")
			},
		}

		if err := NewTemplateRepoCacheDecorator(mockInnerRepo, mockRedis, time.Hour, newTestLogger()).Save(ctx, nil, tpl); err == nil {
			t.Fatal("expected inner error")
		}
		if delCalled {
			t.Error("expected no invalidation when the write failed")
		}
	})
}
