package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

type feeTemplateRepository interface {
	List(ctx context.Context, filter models.TemplateFilter) ([]models.FeeTemplate, int, error)
	FindByID(ctx context.Context, id string) (*models.FeeTemplate, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, template *models.FeeTemplate) error
	Update(ctx context.Context, template *models.FeeTemplate) error
	Deactivate(ctx context.Context, id string) error
}

type scholarshipTemplateRepository interface {
	List(ctx context.Context, filter models.TemplateFilter) ([]models.ScholarshipTemplate, int, error)
	FindByID(ctx context.Context, id string) (*models.ScholarshipTemplate, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, template *models.ScholarshipTemplate) error
	Update(ctx context.Context, template *models.ScholarshipTemplate) error
	Deactivate(ctx context.Context, id string) error
}

// CreateFeeTemplateRequest describes a fee catalog entry.
type CreateFeeTemplateRequest struct {
	Name         string             `json:"name" validate:"required"`
	Category     models.FeeCategory `json:"category" validate:"required"`
	DisplayOrder int                `json:"display_order" validate:"gte=0"`
}

// UpdateFeeTemplateRequest mutates a fee catalog entry.
type UpdateFeeTemplateRequest struct {
	Name         *string             `json:"name,omitempty"`
	Category     *models.FeeCategory `json:"category,omitempty"`
	DisplayOrder *int                `json:"display_order,omitempty"`
	IsActive     *bool               `json:"is_active,omitempty"`
}

// CreateScholarshipTemplateRequest describes a scholarship catalog entry.
type CreateScholarshipTemplateRequest struct {
	Name          string                 `json:"name" validate:"required"`
	Type          models.ScholarshipType `json:"type" validate:"required"`
	IsAutoApplied bool                   `json:"is_auto_applied"`
	DisplayOrder  int                    `json:"display_order" validate:"gte=0"`
}

// UpdateScholarshipTemplateRequest mutates a scholarship catalog entry.
type UpdateScholarshipTemplateRequest struct {
	Name          *string                 `json:"name,omitempty"`
	Type          *models.ScholarshipType `json:"type,omitempty"`
	IsAutoApplied *bool                   `json:"is_auto_applied,omitempty"`
	DisplayOrder  *int                    `json:"display_order,omitempty"`
	IsActive      *bool                   `json:"is_active,omitempty"`
}

// TemplateService administers the fee and scholarship catalogs.
type TemplateService struct {
	fees         feeTemplateRepository
	scholarships scholarshipTemplateRepository
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewTemplateService constructs TemplateService.
func NewTemplateService(fees feeTemplateRepository, scholarships scholarshipTemplateRepository, validate *validator.Validate, logger *zap.Logger) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{fees: fees, scholarships: scholarships, validator: validate, logger: logger}
}

// ListFeeTemplates returns catalog entries with pagination metadata.
func (s *TemplateService) ListFeeTemplates(ctx context.Context, filter models.TemplateFilter) ([]models.FeeTemplate, *models.Pagination, error) {
	templates, total, err := s.fees.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee templates")
	}
	return templates, paginationFor(filter.Page, filter.PageSize, total), nil
}

// CreateFeeTemplate adds a fee kind to the catalog.
func (s *TemplateService) CreateFeeTemplate(ctx context.Context, req CreateFeeTemplateRequest, createdBy string) (*models.FeeTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee template payload")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee category")
	}
	exists, err := s.fees.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate template name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "fee template name already exists")
	}

	template := &models.FeeTemplate{
		Name:         req.Name,
		Category:     req.Category,
		DisplayOrder: req.DisplayOrder,
		IsActive:     true,
		CreatedBy:    createdBy,
	}
	if err := s.fees.Create(ctx, template); err != nil {
		return nil, err
	}
	s.logger.Info("fee template created", zap.String("template_id", template.ID), zap.String("name", template.Name))
	return template, nil
}

// UpdateFeeTemplate applies partial updates to a catalog entry.
func (s *TemplateService) UpdateFeeTemplate(ctx context.Context, id string, req UpdateFeeTemplateRequest) (*models.FeeTemplate, error) {
	template, err := s.fees.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee template")
	}

	if req.Name != nil && *req.Name != template.Name {
		exists, err := s.fees.ExistsByName(ctx, *req.Name, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate template name")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "fee template name already exists")
		}
		template.Name = *req.Name
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee category")
		}
		template.Category = *req.Category
	}
	if req.DisplayOrder != nil {
		template.DisplayOrder = *req.DisplayOrder
	}
	if req.IsActive != nil {
		template.IsActive = *req.IsActive
	}

	if err := s.fees.Update(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// DeactivateFeeTemplate soft-deletes a catalog entry.
func (s *TemplateService) DeactivateFeeTemplate(ctx context.Context, id string) error {
	return s.fees.Deactivate(ctx, id)
}

// ListScholarshipTemplates returns catalog entries with pagination metadata.
func (s *TemplateService) ListScholarshipTemplates(ctx context.Context, filter models.TemplateFilter) ([]models.ScholarshipTemplate, *models.Pagination, error) {
	templates, total, err := s.scholarships.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scholarship templates")
	}
	return templates, paginationFor(filter.Page, filter.PageSize, total), nil
}

// CreateScholarshipTemplate adds a scholarship kind to the catalog.
func (s *TemplateService) CreateScholarshipTemplate(ctx context.Context, req CreateScholarshipTemplateRequest, createdBy string) (*models.ScholarshipTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scholarship template payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown scholarship type")
	}
	exists, err := s.scholarships.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate template name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "scholarship template name already exists")
	}

	template := &models.ScholarshipTemplate{
		Name:          req.Name,
		Type:          req.Type,
		IsAutoApplied: req.IsAutoApplied,
		DisplayOrder:  req.DisplayOrder,
		IsActive:      true,
		CreatedBy:     createdBy,
	}
	if err := s.scholarships.Create(ctx, template); err != nil {
		return nil, err
	}
	s.logger.Info("scholarship template created", zap.String("template_id", template.ID), zap.String("name", template.Name))
	return template, nil
}

// UpdateScholarshipTemplate applies partial updates to a catalog entry.
func (s *TemplateService) UpdateScholarshipTemplate(ctx context.Context, id string, req UpdateScholarshipTemplateRequest) (*models.ScholarshipTemplate, error) {
	template, err := s.scholarships.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scholarship template")
	}

	if req.Name != nil && *req.Name != template.Name {
		exists, err := s.scholarships.ExistsByName(ctx, *req.Name, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate template name")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "scholarship template name already exists")
		}
		template.Name = *req.Name
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown scholarship type")
		}
		template.Type = *req.Type
	}
	if req.IsAutoApplied != nil {
		template.IsAutoApplied = *req.IsAutoApplied
	}
	if req.DisplayOrder != nil {
		template.DisplayOrder = *req.DisplayOrder
	}
	if req.IsActive != nil {
		template.IsActive = *req.IsActive
	}

	if err := s.scholarships.Update(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// DeactivateScholarshipTemplate soft-deletes a catalog entry.
func (s *TemplateService) DeactivateScholarshipTemplate(ctx context.Context, id string) error {
	return s.scholarships.Deactivate(ctx, id)
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
