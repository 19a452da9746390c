package model

import (
	"strings"
	"time"

	"coop-voucher/internal/domain"
)

type ValueType string

const (
	ValueTypeFixedItem ValueType = "fixed_item" // redeemable for a specific good
	ValueTypeCash      ValueType = "cash_value" // redeemable up to the nominal amount
)

// Template is the shared configuration applied to many vouchers.
type Template struct {
	ID            string
	Name          string
	ValueType     ValueType
	DefaultAmount int64
	ExpiresAt     *time.Time
	EligibleSites []string // empty means every site
	CreatedAt     time.Time
}

func NewTemplate(id, name string, vt ValueType, defaultAmount int64, expiresAt *time.Time, sites []string) (*Template, error) {
	if strings.TrimSpace(name) == "" || defaultAmount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if vt != ValueTypeFixedItem && vt != ValueTypeCash {
		return nil, domain.ErrInvalidArgument
	}
	return &Template{
		ID:            id,
		Name:          name,
		ValueType:     vt,
		DefaultAmount: defaultAmount,
		ExpiresAt:     expiresAt,
		EligibleSites: sites,
		CreatedAt:     time.Now(),
	}, nil
}

// Expired reports whether the template expiry lies before now.
func (t *Template) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// SiteAllowed reports whether vouchers of this template can be used at site.
func (t *Template) SiteAllowed(site string) bool {
	if len(t.EligibleSites) == 0 {
		return true
	}
	for _, s := range t.EligibleSites {
		if s == site {
			return true
		}
	}
	return false
}
