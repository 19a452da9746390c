//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/repository"
)

func TestTemplateRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewTemplateRepo(testPool)

	t.Run("Save assigns an id and reads back", func(t *testing.T) {
		cleanup(t)
		exp := time.Now().Add(48 * time.Hour).Truncate(time.Second)
		tpl, _ := model.NewTemplate("", "Rice bag", model.ValueTypeFixedItem, 30_000, &exp, []string{"A", "B"})

		if err := repo.Save(ctx, repository.NoTX, tpl); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if tpl.ID == "" {
			t.Fatal("expected an assigned id")
		}
		got, err := repo.FindByID(ctx, repository.NoTX, tpl.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Name != "Rice bag" || got.ValueType != model.ValueTypeFixedItem || len(got.EligibleSites) != 2 {
			t.Errorf("unexpected template %+v", got)
		}
		if got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
			t.Errorf("expected expiry %v, got %v", exp, got.ExpiresAt)
		}
	})

	t.Run("Save updates an existing template", func(t *testing.T) {
		cleanup(t)
		tpl, _ := model.NewTemplate("tpl-up", "Old name", model.ValueTypeCash, 10_000, nil, nil)
		if err := repo.Save(ctx, repository.NoTX, tpl); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		tpl.Name = "New name"
		if err := repo.Save(ctx, repository.NoTX, tpl); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}
		all, err := repo.List(ctx, repository.NoTX)
		if err != nil || len(all) != 1 || all[0].Name != "New name" {
			t.Fatalf("expected one renamed template, got %+v (%v)", all, err)
		}
	})

	t.Run("FindByID not found", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, repository.NoTX, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
