package apiv1

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/infra/logging"
	"coop-voucher/internal/usecase"
)

type batchFilter struct {
	TemplateID string   `json:"template_id"`
	Statuses   []string `json:"statuses"`
}

type batchStartRequest struct {
	Name       string       `json:"name"`
	TemplateID string       `json:"template_id"`
	Operation  string       `json:"operation"`
	Reason     string       `json:"reason"`
	SiteID     string       `json:"site_id"`
	VoucherIDs []string     `json:"voucher_ids"`
	Filter     *batchFilter `json:"filter"`
}

// handleStartBatch runs the batch to completion before answering. Artifacts are
// not streamed back; print and send batches are fetched through their share URL.
func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	var req batchStartRequest
	if !decode(w, r, &req) {
		return
	}
	start := usecase.StartBatchRequest{
		Name:           req.Name,
		OwnerID:        logging.Actor(r.Context()),
		TemplateID:     req.TemplateID,
		Operation:      req.Operation,
		Reason:         req.Reason,
		SiteID:         req.SiteID,
		VoucherIDs:     req.VoucherIDs,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.Filter != nil {
		f := &model.VoucherFilter{TemplateID: req.Filter.TemplateID}
		if f.TemplateID == "" {
			f.TemplateID = req.TemplateID
		}
		for _, raw := range req.Filter.Statuses {
			st, err := model.ParseStatus(raw)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
		start.Filter = f
	}

	run, err := s.batches.Start(r.Context(), start, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/batches/"+run.Batch.ID)
	w.Header().Set("X-Batch-Failures", strconv.Itoa(run.Result.FailureCount))
	code := http.StatusCreated
	if run.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		code = http.StatusOK
	}
	writeJSON(w, code, BatchRunResponse{
		Batch:   s.toBatchDTO(run.Batch),
		Partial: run.Result.Partial(),
		Results: run.Result.Results,
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.batches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toBatchDTO(b))
}

func (s *Server) handleShareBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.batches.ShareBatch(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SharedBatchResponse{Name: b.Name, VoucherIDs: b.VoucherIDs, ExpiresAt: b.ShareExpiresAt})
}

func (s *Server) handleShareArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := s.batches.ShareArtifact(r.Context(), chi.URLParam(r, "token"), chi.URLParam(r, "voucherID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+a.FileName+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}
