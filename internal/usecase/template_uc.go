package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"coop-voucher/internal/domain/model"
	"coop-voucher/internal/domain/ports/repository"
)

// TemplateUseCase manages voucher templates.
type TemplateUseCase struct {
	repo repository.TemplateRepository
}

// NewTemplateUseCase constructs a TemplateUseCase.
func NewTemplateUseCase(repo repository.TemplateRepository) *TemplateUseCase {
	return &TemplateUseCase{repo: repo}
}

type CreateTemplateRequest struct {
	Name          string
	ValueType     model.ValueType
	DefaultAmount int64
	ExpiresAt     *time.Time
	EligibleSites []string
}

// Create validates and saves a new template.
func (uc *TemplateUseCase) Create(ctx context.Context, req CreateTemplateRequest) (*model.Template, error) {
	t, err := model.NewTemplate(uuid.NewString(), req.Name, req.ValueType, req.DefaultAmount, req.ExpiresAt, req.EligibleSites)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get retrieves a template by ID.
func (uc *TemplateUseCase) Get(ctx context.Context, id string) (*model.Template, error) {
	return uc.repo.FindByID(ctx, repository.NoTX, id)
}

// List returns all templates.
func (uc *TemplateUseCase) List(ctx context.Context) ([]*model.Template, error) {
	return uc.repo.List(ctx, repository.NoTX)
}
