//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"coop-voucher/internal/domain"
)

func int64p(v int64) *int64 { return &v }

func newTestVoucher(t *testing.T, status Status) *Voucher {
	t.Helper()
	v, err := NewVoucher("v-1", "250101123450", "tpl-1", "Green Valley Coop", "M-77", "Jane Farmer", 50_000)
	if err != nil {
		t.Fatalf("NewVoucher: %v", err)
	}
	v.Status = status
	return v
}

// --- Voucher Model Tests ---

func TestNewVoucher(t *testing.T) {
	t.Run("should create a registered voucher", func(t *testing.T) {
		v, err := NewVoucher("", "250101123450", "tpl-1", "Coop", "M-1", "Holder", 10)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if v.Status != StatusRegistered {
			t.Errorf("expected status 'registered', got '%s'", v.Status)
		}
		if v.IssuedAt != nil || v.UsedAt != nil || v.UsageAmount != nil {
			t.Error("expected lifecycle fields to be empty on a new voucher")
		}
	})

	t.Run("should reject a non-positive amount", func(t *testing.T) {
		_, err := NewVoucher("", "250101123450", "tpl-1", "Coop", "M-1", "Holder", 0)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should reject an empty holder name", func(t *testing.T) {
		_, err := NewVoucher("", "250101123450", "tpl-1", "Coop", "M-1", "  ", 10)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

// --- State Machine Tests ---

func TestTransition_DisallowedEdgesLeaveVoucherUntouched(t *testing.T) {
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			if CanTransition(from, to) {
				continue
			}
			from, to := from, to
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				v := newTestVoucher(t, from)
				before := *v

				next, rec, err := Transition(v, to, TransitionContext{SiteID: "A", Reason: "r"})
				if !errors.Is(err, domain.ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				if next != nil || rec != nil {
					t.Error("expected no voucher and no audit record on failure")
				}
				if v.Status != before.Status || v.UpdatedAt != before.UpdatedAt || v.UsedAt != nil {
					t.Error("expected input voucher to be unmutated")
				}
			})
		}
	}
}

func TestTransition_AlreadyTerminal(t *testing.T) {
	for _, from := range []Status{StatusUsed, StatusRecalled, StatusDisposed} {
		v := newTestVoucher(t, from)
		_, _, err := Transition(v, StatusUsed, TransitionContext{SiteID: "A"})
		if !errors.Is(err, domain.ErrAlreadyTerminal) {
			t.Errorf("%s -> used: expected ErrAlreadyTerminal, got %v", from, err)
		}
		if domain.Code(err) != "AlreadyTerminal" {
			t.Errorf("%s -> used: expected code AlreadyTerminal, got %s", from, domain.Code(err))
		}
	}
}

func TestTransition_Used(t *testing.T) {
	t.Run("should record site and partial usage amount", func(t *testing.T) {
		v := newTestVoucher(t, StatusIssued)
		at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

		next, rec, err := Transition(v, StatusUsed, TransitionContext{Actor: "staff-1", SiteID: "A", UsageAmount: int64p(30_000), At: at})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if next.Status != StatusUsed {
			t.Errorf("expected status 'used', got '%s'", next.Status)
		}
		if next.UsageAmount == nil || *next.UsageAmount != 30_000 {
			t.Errorf("expected usage amount 30000, got %v", next.UsageAmount)
		}
		if next.UsedSiteID == nil || *next.UsedSiteID != "A" {
			t.Error("expected used site 'A'")
		}
		if !next.UsedAt.Equal(at) {
			t.Errorf("expected UsedAt %v, got %v", at, next.UsedAt)
		}
		if rec.FromStatus != StatusIssued || rec.ToStatus != StatusUsed || rec.Actor != "staff-1" {
			t.Errorf("unexpected audit record: %+v", rec)
		}
		if v.Status != StatusIssued {
			t.Error("expected original voucher to remain issued")
		}
	})

	t.Run("should allow redemption straight from registered", func(t *testing.T) {
		v := newTestVoucher(t, StatusRegistered)
		if _, _, err := Transition(v, StatusUsed, TransitionContext{SiteID: "B"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("should fail when usage exceeds nominal amount", func(t *testing.T) {
		v := newTestVoucher(t, StatusIssued)
		_, _, err := Transition(v, StatusUsed, TransitionContext{SiteID: "A", UsageAmount: int64p(50_001)})
		if !errors.Is(err, domain.ErrValidationFailed) {
			t.Fatalf("expected ErrValidationFailed, got %v", err)
		}
		if v.Status != StatusIssued || v.UsageAmount != nil {
			t.Error("expected status and usage to stay unchanged")
		}
	})

	t.Run("should fail without a site", func(t *testing.T) {
		v := newTestVoucher(t, StatusIssued)
		_, _, err := Transition(v, StatusUsed, TransitionContext{SiteID: " "})
		if !errors.Is(err, domain.ErrValidationFailed) {
			t.Fatalf("expected ErrValidationFailed, got %v", err)
		}
	})

	t.Run("should fail with negative usage", func(t *testing.T) {
		v := newTestVoucher(t, StatusIssued)
		_, _, err := Transition(v, StatusUsed, TransitionContext{SiteID: "A", UsageAmount: int64p(-1)})
		if !errors.Is(err, domain.ErrValidationFailed) {
			t.Fatalf("expected ErrValidationFailed, got %v", err)
		}
	})
}

func TestTransition_IssueAndReprint(t *testing.T) {
	v := newTestVoucher(t, StatusRegistered)
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issued, _, err := Transition(v, StatusIssued, TransitionContext{At: first})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.IssuedAt == nil || !issued.IssuedAt.Equal(first) {
		t.Fatalf("expected IssuedAt to be set to %v", first)
	}

	reprinted, rec, err := Transition(issued, StatusIssued, TransitionContext{At: first.Add(time.Hour)})
	if err != nil {
		t.Fatalf("reprint: %v", err)
	}
	if !reprinted.IssuedAt.Equal(first) {
		t.Error("expected reprint to keep the original issue time")
	}
	if rec.FromStatus != StatusIssued || rec.ToStatus != StatusIssued {
		t.Errorf("expected issued->issued audit record, got %s->%s", rec.FromStatus, rec.ToStatus)
	}
}

func TestTransition_RecallPath(t *testing.T) {
	t.Run("recall requires a reason", func(t *testing.T) {
		v := newTestVoucher(t, StatusIssued)
		_, _, err := Transition(v, StatusRecalled, TransitionContext{})
		if !errors.Is(err, domain.ErrValidationFailed) {
			t.Fatalf("expected ErrValidationFailed, got %v", err)
		}
	})

	t.Run("used voucher re-classified as recalled never reaches used again", func(t *testing.T) {
		v := newTestVoucher(t, StatusUsed)
		recalled, _, err := Transition(v, StatusRecalled, TransitionContext{Reason: "fraud review"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if recalled.RecallReason == nil || *recalled.RecallReason != "fraud review" {
			t.Error("expected recall reason to be recorded")
		}
		if IsRedeemable(recalled) {
			t.Fatal("expected recalled voucher to be non-redeemable")
		}
		for _, target := range []Status{StatusRegistered, StatusIssued, StatusUsed} {
			_, _, err := Transition(recalled, target, TransitionContext{SiteID: "A", Reason: "cleared"})
			if !errors.Is(err, domain.ErrAlreadyTerminal) {
				t.Errorf("recalled -> %s: expected ErrAlreadyTerminal, got %v", target, err)
			}
		}
	})

	t.Run("no status reaches used through recalled", func(t *testing.T) {
		// walk every edge from recalled; used must stay unreachable
		seen := map[Status]bool{StatusRecalled: true}
		queue := []Status{StatusRecalled}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, to := range AllStatuses {
				if CanTransition(cur, to) && !seen[to] {
					seen[to] = true
					queue = append(queue, to)
				}
			}
		}
		if seen[StatusUsed] || seen[StatusRegistered] || seen[StatusIssued] {
			t.Fatalf("expected only recalled and disposed to be reachable, got %v", seen)
		}
	})
}

func TestRedeemableAndReprintable(t *testing.T) {
	want := map[Status]bool{
		StatusRegistered: true,
		StatusIssued:     true,
		StatusUsed:       false,
		StatusRecalled:   false,
		StatusDisposed:   false,
	}
	for st, ok := range want {
		v := newTestVoucher(t, st)
		if IsRedeemable(v) != ok {
			t.Errorf("IsRedeemable(%s) = %v, want %v", st, !ok, ok)
		}
		if IsReprintable(v) != ok {
			t.Errorf("IsReprintable(%s) = %v, want %v", st, !ok, ok)
		}
	}
	if IsRedeemable(nil) {
		t.Error("expected nil voucher to be non-redeemable")
	}
}

func TestParseStatus(t *testing.T) {
	if st, err := ParseStatus(" Issued "); err != nil || st != StatusIssued {
		t.Fatalf("expected issued, got %q (%v)", st, err)
	}
	if _, err := ParseStatus("printed"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

// --- Batch Model Tests ---

func TestBatchComplete(t *testing.T) {
	t.Run("partial failure still completes", func(t *testing.T) {
		b, err := NewBatch("Spring issue", "staff-1", "tpl-1", "issue", []string{"a", "b"})
		if err != nil {
			t.Fatalf("NewBatch: %v", err)
		}
		if err := b.Complete(1, 1, 0, time.Now()); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if b.Status != BatchStatusCompleted {
			t.Errorf("expected completed, got %s", b.Status)
		}
		if err := b.Complete(2, 0, 0, time.Now()); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Error("expected finished batch to be immutable")
		}
	})

	t.Run("total failure marks failed", func(t *testing.T) {
		b, _ := NewBatch("Spring issue", "staff-1", "tpl-1", "issue", []string{"a"})
		_ = b.Complete(0, 1, 0, time.Now())
		if b.Status != BatchStatusFailed {
			t.Errorf("expected failed, got %s", b.Status)
		}
	})
}

func TestTemplateRules(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	tpl, err := NewTemplate("tpl-1", "Seed voucher", ValueTypeCash, 50_000, &past, []string{"A"})
	if err != nil {
		t.Fatalf("NewTemplate: %v", err)
	}
	if !tpl.Expired(time.Now()) {
		t.Error("expected template to be expired")
	}
	if !tpl.SiteAllowed("A") || tpl.SiteAllowed("B") {
		t.Error("unexpected site eligibility result")
	}
	if _, err := NewTemplate("", "x", ValueType("gold"), 1, nil, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Error("expected unknown value type to be rejected")
	}
}
