package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/repository"
	"coop-voucher/internal/infra/metrics"
)

var _ repository.VoucherStore = (*VoucherRepo)(nil)

// PhoneCipher seals holder phone numbers before they reach the table.
type PhoneCipher interface {
	Seal(plaintext, rowID string) (string, error)
	Open(sealed, rowID string) (string, error)
}

type VoucherRepo struct {
	pool   *pgxpool.Pool
	cipher PhoneCipher // nil stores phones as given
}

func NewVoucherRepo(pool *pgxpool.Pool, cipher PhoneCipher) *VoucherRepo {
	return &VoucherRepo{pool: pool, cipher: cipher}
}

const voucherColumns = `
id, serial, template_id, association, member_id, holder_name, birth_date, phone,
amount, usage_amount, status, issued_at, used_at, used_site_id, notes, recall_reason,
created_at, updated_at`

func (r *VoucherRepo) Create(ctx context.Context, tx repository.Tx, v *model.Voucher) error {
	const q = `
INSERT INTO vouchers (` + voucherColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18);`
	phone, err := r.sealPhone(v)
	if err != nil {
		return err
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		v.ID, v.Serial, v.TemplateID, v.Association, v.MemberID, v.HolderName, v.BirthDate, phone,
		v.Amount, v.UsageAmount, string(v.Status), v.IssuedAt, v.UsedAt, v.UsedSiteID, v.Notes, v.RecallReason,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: serial %s", domain.ErrAlreadyExists, v.Serial)
		}
		metrics.IncDBError("voucher_create")
		return fmt.Errorf("create voucher: %w", err)
	}
	return nil
}

func (r *VoucherRepo) GetByID(ctx context.Context, tx repository.Tx, id string) (*model.Voucher, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return r.scanOne(row)
}

func (r *VoucherRepo) GetBySerial(ctx context.Context, tx repository.Tx, serial string) (*model.Voucher, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+voucherColumns+` FROM vouchers WHERE serial = $1;`, serial)
	if err != nil {
		return nil, err
	}
	return r.scanOne(row)
}

func (r *VoucherRepo) GetByIDs(ctx context.Context, tx repository.Tx, ids []string) ([]*model.Voucher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = ANY($1);`, ids)
	if err != nil {
		metrics.IncDBError("voucher_get_many")
		return nil, fmt.Errorf("get vouchers: %w", err)
	}
	return r.scanAll(rows)
}

func (r *VoucherRepo) ListByFilter(ctx context.Context, tx repository.Tx, f model.VoucherFilter) ([]*model.Voucher, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.TemplateID != "" {
		add("template_id = $%d", f.TemplateID)
	}
	if len(f.Statuses) > 0 {
		sts := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			sts[i] = string(s)
		}
		add("status = ANY($%d)", sts)
	}
	if f.IssuedFrom != nil {
		add("issued_at >= $%d", *f.IssuedFrom)
	}
	if f.IssuedTo != nil {
		add("issued_at < $%d", *f.IssuedTo)
	}
	if f.UsedFrom != nil {
		add("used_at >= $%d", *f.UsedFrom)
	}
	if f.UsedTo != nil {
		add("used_at < $%d", *f.UsedTo)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + voucherColumns + ` FROM vouchers`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at, id")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := queryRows(ctx, r.pool, tx, sb.String(), args...)
	if err != nil {
		metrics.IncDBError("voucher_list")
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	return r.scanAll(rows)
}

// Update is a compare-and-swap on status: the row changes only while it still
// holds the status the caller read.
func (r *VoucherRepo) Update(ctx context.Context, tx repository.Tx, next *model.Voucher, expected model.Status) error {
	const q = `
UPDATE vouchers
   SET status = $3, issued_at = $4, used_at = $5, used_site_id = $6, usage_amount = $7,
       notes = $8, recall_reason = $9, updated_at = $10
 WHERE id = $1 AND status = $2;`
	ct, err := execSQL(ctx, r.pool, tx, q,
		next.ID, string(expected), string(next.Status), next.IssuedAt, next.UsedAt, next.UsedSiteID, next.UsageAmount,
		next.Notes, next.RecallReason, next.UpdatedAt,
	)
	if err != nil {
		metrics.IncDBError("voucher_update")
		return fmt.Errorf("update voucher: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	row, err := pickRow(ctx, r.pool, tx, `SELECT status FROM vouchers WHERE id = $1;`, next.ID)
	if err != nil {
		return err
	}
	var current string
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return fmt.Errorf("%w: expected %s, found %s", domain.ErrConcurrentModification, expected, current)
}

func (r *VoucherRepo) AppendAuditRecord(ctx context.Context, tx repository.Tx, rec *model.AuditRecord) error {
	const q = `
INSERT INTO voucher_audit (id, voucher_id, actor, from_status, to_status, reason, site_id, usage_amount, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.VoucherID, rec.Actor, string(rec.FromStatus), string(rec.ToStatus), rec.Reason,
		rec.SiteID, rec.UsageAmount, rec.CreatedAt,
	)
	if err != nil {
		metrics.IncDBError("audit_append")
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (r *VoucherRepo) ListAuditRecords(ctx context.Context, tx repository.Tx, voucherID string) ([]*model.AuditRecord, error) {
	const q = `
SELECT id, voucher_id, actor, from_status, to_status, reason, site_id, usage_amount, created_at
  FROM voucher_audit
 WHERE voucher_id = $1
 ORDER BY created_at, id;`
	rows, err := queryRows(ctx, r.pool, tx, q, voucherID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditRecord
	for rows.Next() {
		var (
			rec      model.AuditRecord
			from, to string
		)
		if err := rows.Scan(&rec.ID, &rec.VoucherID, &rec.Actor, &from, &to, &rec.Reason, &rec.SiteID, &rec.UsageAmount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		rec.FromStatus, rec.ToStatus = model.Status(from), model.Status(to)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *VoucherRepo) scanOne(row pgx.Row) (*model.Voucher, error) {
	v, err := r.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *VoucherRepo) scanAll(rows pgx.Rows) ([]*model.Voucher, error) {
	defer rows.Close()
	var out []*model.Voucher
	for rows.Next() {
		v, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VoucherRepo) scan(row pgx.Row) (*model.Voucher, error) {
	var (
		v      model.Voucher
		status string
		birth  *time.Time
		phone  *string
	)
	err := row.Scan(
		&v.ID, &v.Serial, &v.TemplateID, &v.Association, &v.MemberID, &v.HolderName, &birth, &phone,
		&v.Amount, &v.UsageAmount, &status, &v.IssuedAt, &v.UsedAt, &v.UsedSiteID, &v.Notes, &v.RecallReason,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	v.Status = model.Status(status)
	v.BirthDate = birth
	if phone != nil && r.cipher != nil {
		plain, err := r.cipher.Open(*phone, v.ID)
		if err != nil {
			return nil, fmt.Errorf("open phone of %s: %w", v.ID, err)
		}
		phone = &plain
	}
	v.Phone = phone
	return &v, nil
}

func (r *VoucherRepo) sealPhone(v *model.Voucher) (*string, error) {
	if v.Phone == nil || r.cipher == nil {
		return v.Phone, nil
	}
	sealed, err := r.cipher.Seal(*v.Phone, v.ID)
	if err != nil {
		return nil, fmt.Errorf("seal phone: %w", err)
	}
	return &sealed, nil
}
