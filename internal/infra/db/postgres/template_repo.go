package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.TemplateRepository = (*TemplateRepo)(nil)

type TemplateRepo struct {
	pool *pgxpool.Pool
}

func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

func (r *TemplateRepo) Save(ctx context.Context, tx repository.Tx, t *model.Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	const q = `
INSERT INTO voucher_templates (id, name, value_type, default_amount, expires_at, eligible_sites, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
  SET name           = EXCLUDED.name,
      value_type     = EXCLUDED.value_type,
      default_amount = EXCLUDED.default_amount,
      expires_at     = EXCLUDED.expires_at,
      eligible_sites = EXCLUDED.eligible_sites;
`
	sites := t.EligibleSites
	if sites == nil {
		sites = []string{}
	}
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.Name, string(t.ValueType), t.DefaultAmount, t.ExpiresAt, sites, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func (r *TemplateRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Template, error) {
	const q = `
SELECT id, name, value_type, default_amount, expires_at, eligible_sites, created_at
  FROM voucher_templates
 WHERE id = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Template, error) {
	const q = `
SELECT id, name, value_type, default_amount, expires_at, eligible_sites, created_at
  FROM voucher_templates
 ORDER BY created_at;
`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	var out []*model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTemplate(row pgx.Row) (*model.Template, error) {
	var (
		t  model.Template
		vt string
	)
	if err := row.Scan(&t.ID, &t.Name, &vt, &t.DefaultAmount, &t.ExpiresAt, &t.EligibleSites, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ValueType = model.ValueType(vt)
	return &t, nil
}
