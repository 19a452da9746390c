package apiv1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/usecase"
)

type templateCreateRequest struct {
	Name          string     `json:"name"`
	ValueType     string     `json:"value_type"`
	DefaultAmount int64      `json:"default_amount"`
	ExpiresAt     *time.Time `json:"expires_at"`
	EligibleSites []string   `json:"eligible_sites"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateCreateRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.templates.Create(r.Context(), usecase.CreateTemplateRequest{
		Name:          req.Name,
		ValueType:     model.ValueType(req.ValueType),
		DefaultAmount: req.DefaultAmount,
		ExpiresAt:     req.ExpiresAt,
		EligibleSites: req.EligibleSites,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateDTO(t))
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(t))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.templates.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]TemplateDTO, 0, len(list))
	for _, t := range list {
		items = append(items, toTemplateDTO(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
