package apiv1

import (
	"time"

	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/usecase"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type TemplateDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ValueType     string     `json:"value_type"`
	DefaultAmount int64      `json:"default_amount"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	EligibleSites []string   `json:"eligible_sites"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toTemplateDTO(t *model.Template) TemplateDTO {
	sites := t.EligibleSites
	if sites == nil {
		sites = []string{}
	}
	return TemplateDTO{
		ID:            t.ID,
		Name:          t.Name,
		ValueType:     string(t.ValueType),
		DefaultAmount: t.DefaultAmount,
		ExpiresAt:     t.ExpiresAt,
		EligibleSites: sites,
		CreatedAt:     t.CreatedAt,
	}
}

// VoucherDTO never carries the phone number or birth date.
type VoucherDTO struct {
	ID           string     `json:"id"`
	Serial       string     `json:"serial"`
	TemplateID   string     `json:"template_id"`
	Association  string     `json:"association"`
	MemberID     string     `json:"member_id"`
	HolderName   string     `json:"holder_name"`
	Amount       int64      `json:"amount"`
	UsageAmount  *int64     `json:"usage_amount,omitempty"`
	Status       string     `json:"status"`
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	UsedSiteID   *string    `json:"used_site_id,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	RecallReason *string    `json:"recall_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toVoucherDTO(v *model.Voucher) VoucherDTO {
	return VoucherDTO{
		ID:           v.ID,
		Serial:       v.Serial,
		TemplateID:   v.TemplateID,
		Association:  v.Association,
		MemberID:     v.MemberID,
		HolderName:   v.HolderName,
		Amount:       v.Amount,
		UsageAmount:  v.UsageAmount,
		Status:       string(v.Status),
		IssuedAt:     v.IssuedAt,
		UsedAt:       v.UsedAt,
		UsedSiteID:   v.UsedSiteID,
		Notes:        v.Notes,
		RecallReason: v.RecallReason,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

type AuditDTO struct {
	ID          string    `json:"id"`
	Actor       string    `json:"actor,omitempty"`
	FromStatus  string    `json:"from_status,omitempty"`
	ToStatus    string    `json:"to_status"`
	Reason      string    `json:"reason,omitempty"`
	SiteID      *string   `json:"site_id,omitempty"`
	UsageAmount *int64    `json:"usage_amount,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAuditDTO(r *model.AuditRecord) AuditDTO {
	return AuditDTO{
		ID:          r.ID,
		Actor:       r.Actor,
		FromStatus:  string(r.FromStatus),
		ToStatus:    string(r.ToStatus),
		Reason:      r.Reason,
		SiteID:      r.SiteID,
		UsageAmount: r.UsageAmount,
		CreatedAt:   r.CreatedAt,
	}
}

type TransitionResponse struct {
	Voucher VoucherDTO `json:"voucher"`
	Audit   *AuditDTO  `json:"audit,omitempty"`
}

func toTransitionResponse(v *model.Voucher, rec *model.AuditRecord) TransitionResponse {
	out := TransitionResponse{Voucher: toVoucherDTO(v)}
	if rec != nil {
		a := toAuditDTO(rec)
		out.Audit = &a
	}
	return out
}

type VerifyResponse struct {
	Serial     string     `json:"serial"`
	IssuedAt   time.Time  `json:"issued_at"`
	Redeemable bool       `json:"redeemable"`
	Expired    bool       `json:"expired"`
	Voucher    VoucherDTO `json:"voucher"`
}

func toVerifyResponse(res *usecase.VerifyResult) VerifyResponse {
	return VerifyResponse{
		Serial:     res.Payload.Serial,
		IssuedAt:   res.Payload.IssuedAt,
		Redeemable: res.Redeemable,
		Expired:    res.Expired,
		Voucher:    toVoucherDTO(res.Voucher),
	}
}

type BatchDTO struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	OwnerID        string     `json:"owner_id,omitempty"`
	TemplateID     string     `json:"template_id,omitempty"`
	Operation      string     `json:"operation"`
	TotalCount     int        `json:"total_count"`
	GeneratedCount int        `json:"generated_count"`
	SuccessCount   int        `json:"success_count"`
	FailureCount   int        `json:"failure_count"`
	Status         string     `json:"status"`
	ShareURL       string     `json:"share_url,omitempty"`
	ShareExpiresAt *time.Time `json:"share_expires_at,omitempty"`
	DownloadCount  int        `json:"download_count"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func (s *Server) toBatchDTO(b *model.Batch) BatchDTO {
	out := BatchDTO{
		ID:             b.ID,
		Name:           b.Name,
		OwnerID:        b.OwnerID,
		TemplateID:     b.TemplateID,
		Operation:      b.Operation,
		TotalCount:     b.TotalCount,
		GeneratedCount: b.GeneratedCount,
		SuccessCount:   b.SuccessCount,
		FailureCount:   b.FailureCount,
		Status:         string(b.Status),
		ShareExpiresAt: b.ShareExpiresAt,
		DownloadCount:  b.DownloadCount,
		CreatedAt:      b.CreatedAt,
		CompletedAt:    b.CompletedAt,
	}
	if b.ShareToken != "" {
		out.ShareURL = s.publicBaseURL + "/share/" + b.ShareToken
	}
	return out
}

type BatchRunResponse struct {
	Batch   BatchDTO             `json:"batch"`
	Partial bool                 `json:"partial"`
	Results []usecase.ItemResult `json:"results"`
}

// SharedBatchResponse is the unauthenticated view of a shared batch.
type SharedBatchResponse struct {
	Name       string     `json:"name"`
	VoucherIDs []string   `json:"voucher_ids"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}
