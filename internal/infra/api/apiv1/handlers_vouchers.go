package apiv1

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"coop-voucher/internal/domain"
	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/infra/logging"
	"coop-voucher/internal/usecase"
)

type voucherRegisterRequest struct {
	TemplateID  string     `json:"template_id"`
	Association string     `json:"association"`
	MemberID    string     `json:"member_id"`
	HolderName  string     `json:"holder_name"`
	BirthDate   *time.Time `json:"birth_date"`
	Phone       *string    `json:"phone"`
	Amount      int64      `json:"amount"`
	Notes       string     `json:"notes"`
}

func (s *Server) handleRegisterVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherRegisterRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.vouchers.Register(r.Context(), usecase.RegisterRequest{
		TemplateID:  req.TemplateID,
		Association: req.Association,
		MemberID:    req.MemberID,
		HolderName:  req.HolderName,
		BirthDate:   req.BirthDate,
		Phone:       req.Phone,
		Amount:      req.Amount,
		Notes:       req.Notes,
		Actor:       logging.Actor(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherDTO(v))
}

func (s *Server) handleGetVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := s.vouchers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(v))
}

// handleListVouchers accepts template_id, status (comma separated), issued_from,
// issued_to, used_from, used_to (RFC 3339), offset and limit.
func (s *Server) handleListVouchers(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.vouchers.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]VoucherDTO, 0, len(list))
	for _, v := range list {
		items = append(items, toVoucherDTO(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "offset": f.Offset})
}

func (s *Server) handleVoucherAudit(w http.ResponseWriter, r *http.Request) {
	trail, err := s.vouchers.Audit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]AuditDTO, 0, len(trail))
	for _, rec := range trail {
		items = append(items, toAuditDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleVoucherPayload(w http.ResponseWriter, r *http.Request) {
	p, err := s.vouchers.Payload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payload": p})
}

type transitionRequest struct {
	Status      string `json:"status"`
	Reason      string `json:"reason"`
	Notes       string `json:"notes"`
	SiteID      string `json:"site_id"`
	UsageAmount *int64 `json:"usage_amount"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}
	target, err := model.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, rec, err := s.vouchers.Transition(r.Context(), chi.URLParam(r, "id"), target, model.TransitionContext{
		Actor:       logging.Actor(r.Context()),
		Reason:      req.Reason,
		Notes:       req.Notes,
		SiteID:      req.SiteID,
		UsageAmount: req.UsageAmount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionResponse(v, rec))
}

type verifyRequest struct {
	Payload string `json:"payload"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.vouchers.Verify(r.Context(), req.Payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifyResponse(res))
}

type redeemRequest struct {
	Payload     string `json:"payload"`
	SiteID      string `json:"site_id"`
	UsageAmount *int64 `json:"usage_amount"`
	Notes       string `json:"notes"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !decode(w, r, &req) {
		return
	}
	v, rec, err := s.vouchers.Redeem(r.Context(), usecase.RedeemRequest{
		Payload:     req.Payload,
		SiteID:      req.SiteID,
		UsageAmount: req.UsageAmount,
		Actor:       logging.Actor(r.Context()),
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionResponse(v, rec))
}

func parseFilter(r *http.Request) (model.VoucherFilter, error) {
	q := r.URL.Query()
	f := model.VoucherFilter{TemplateID: q.Get("template_id")}
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := model.ParseStatus(part)
			if err != nil {
				return f, err
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	times := []struct {
		key string
		dst **time.Time
	}{
		{"issued_from", &f.IssuedFrom},
		{"issued_to", &f.IssuedTo},
		{"used_from", &f.UsedFrom},
		{"used_to", &f.UsedTo},
	}
	for _, tv := range times {
		raw := q.Get(tv.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be RFC 3339", domain.ErrInvalidArgument, tv.key)
		}
		*tv.dst = &t
	}
	var err error
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", domain.ErrInvalidArgument, raw)
	}
	return n, nil
}
