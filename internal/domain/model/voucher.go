package model

import (
	"strings"
	"time"

	"coop-voucher/internal/domain"
)

// Voucher is a single redeemable unit of value tied to one recipient and one serial number.
type Voucher struct {
	ID           string // UUID, store assigned
	Serial       string // YYMMDD + 5 random digits + check digit; immutable
	TemplateID   string
	Association  string // cooperative name
	MemberID     string
	HolderName   string
	BirthDate    *time.Time
	Phone        *string
	Amount       int64  // nominal value, integer currency units
	UsageAmount  *int64 // cash vouchers only; set by the used transition
	Status       Status
	IssuedAt     *time.Time
	UsedAt       *time.Time
	UsedSiteID   *string
	Notes        string
	RecallReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewVoucher builds a voucher in the registered state.
// The serial must already be generated; the store assigns the ID when empty.
func NewVoucher(id, serial, templateID, association, memberID, holderName string, amount int64) (*Voucher, error) {
	if serial == "" || templateID == "" || strings.TrimSpace(holderName) == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Voucher{
		ID:          id,
		Serial:      serial,
		TemplateID:  templateID,
		Association: association,
		MemberID:    memberID,
		HolderName:  holderName,
		Amount:      amount,
		Status:      StatusRegistered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Clone returns a deep copy so state changes never leak into the caller's value.
func (v *Voucher) Clone() *Voucher {
	cp := *v
	cp.BirthDate = cloneTime(v.BirthDate)
	cp.IssuedAt = cloneTime(v.IssuedAt)
	cp.UsedAt = cloneTime(v.UsedAt)
	cp.Phone = cloneString(v.Phone)
	cp.UsedSiteID = cloneString(v.UsedSiteID)
	cp.RecallReason = cloneString(v.RecallReason)
	if v.UsageAmount != nil {
		a := *v.UsageAmount
		cp.UsageAmount = &a
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// VoucherFilter narrows ListByFilter. Zero values mean "no constraint".
type VoucherFilter struct {
	TemplateID string
	Statuses   []Status
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	UsedFrom   *time.Time
	UsedTo     *time.Time
	Offset     int
	Limit      int
}
