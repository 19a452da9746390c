package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"coop-voucher/internal/domain"
)

type Status string

const (
	StatusRegistered Status = "registered" // recipient registered, never printed
	StatusIssued     Status = "issued"     // printed or sent to a mobile holder
	StatusUsed       Status = "used"       // redeemed at a site; consumed entirely
	StatusRecalled   Status = "recalled"   // withdrawn by staff
	StatusDisposed   Status = "disposed"   // destroyed / written off
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusRegistered, StatusIssued, StatusUsed, StatusRecalled, StatusDisposed}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusRegistered, StatusIssued, StatusUsed, StatusRecalled, StatusDisposed:
		return true
	}
	return false
}

// Terminal reports whether no redemption or issue is reachable from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusUsed, StatusRecalled, StatusDisposed:
		return true
	}
	return false
}

// transitions is the allowed edge table. Anything not listed is rejected.
// recalled has no way back: a used or disposed voucher re-classified as
// recalled stays out of circulation.
var transitions = map[Status]map[Status]bool{
	StatusRegistered: {StatusIssued: true, StatusUsed: true, StatusDisposed: true},
	StatusIssued:     {StatusIssued: true, StatusUsed: true, StatusRecalled: true, StatusDisposed: true},
	StatusUsed:       {StatusRecalled: true},
	StatusRecalled:   {StatusDisposed: true},
	StatusDisposed:   {StatusRecalled: true},
}

// CanTransition reports whether (from, to) is an allowed edge.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// IsRedeemable is true only for registered or issued vouchers.
func IsRedeemable(v *Voucher) bool {
	return v != nil && (v.Status == StatusRegistered || v.Status == StatusIssued)
}

// IsReprintable accepts both never-printed and already-printed vouchers.
func IsReprintable(v *Voucher) bool {
	return v != nil && (v.Status == StatusRegistered || v.Status == StatusIssued)
}

// TransitionContext carries everything a single transition may need.
type TransitionContext struct {
	Actor       string
	Reason      string
	Notes       string
	SiteID      string // required for used
	UsageAmount *int64 // optional for used; must not exceed the nominal amount
	At          time.Time
}

// Transition validates the requested edge and returns the mutated copy plus its audit record.
// The input voucher is never modified.
func Transition(v *Voucher, target Status, tc TransitionContext) (*Voucher, *AuditRecord, error) {
	if v == nil || !target.Valid() {
		return nil, nil, domain.ErrInvalidArgument
	}
	from := v.Status
	if !CanTransition(from, target) {
		if from.Terminal() && target != StatusRecalled && target != StatusDisposed {
			return nil, nil, fmt.Errorf("%w: %w: %s -> %s", domain.ErrInvalidTransition, domain.ErrAlreadyTerminal, from, target)
		}
		return nil, nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, target)
	}

	at := tc.At
	if at.IsZero() {
		at = time.Now()
	}
	next := v.Clone()

	switch target {
	case StatusIssued:
		if next.IssuedAt == nil {
			next.IssuedAt = &at
		}
	case StatusUsed:
		site := strings.TrimSpace(tc.SiteID)
		if site == "" {
			return nil, nil, fmt.Errorf("%w: usage site is required", domain.ErrValidationFailed)
		}
		if tc.UsageAmount != nil {
			amt := *tc.UsageAmount
			if amt < 0 {
				return nil, nil, fmt.Errorf("%w: usage amount must not be negative", domain.ErrValidationFailed)
			}
			if amt > next.Amount {
				return nil, nil, fmt.Errorf("%w: usage amount %d exceeds nominal amount %d", domain.ErrValidationFailed, amt, next.Amount)
			}
			next.UsageAmount = &amt
		}
		next.UsedAt = &at
		next.UsedSiteID = &site
	case StatusRecalled:
		reason := strings.TrimSpace(tc.Reason)
		if reason == "" {
			return nil, nil, fmt.Errorf("%w: recall reason is required", domain.ErrValidationFailed)
		}
		next.RecallReason = &reason
	case StatusDisposed:
	}

	if tc.Notes != "" {
		next.Notes = tc.Notes
	}
	next.Status = target
	next.UpdatedAt = at

	rec := &AuditRecord{
		ID:          ulid.Make().String(),
		VoucherID:   v.ID,
		Actor:       tc.Actor,
		FromStatus:  from,
		ToStatus:    target,
		Reason:      tc.Reason,
		SiteID:      next.UsedSiteID,
		UsageAmount: next.UsageAmount,
		CreatedAt:   at,
	}
	if target != StatusUsed {
		rec.SiteID = nil
		rec.UsageAmount = nil
	}
	return next, rec, nil
}
