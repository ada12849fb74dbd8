package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

type structureRepository interface {
	List(ctx context.Context, filter models.StructureFilter) ([]models.FeeStructure, int, error)
	FindByID(ctx context.Context, id string) (*models.FeeStructure, error)
	FindByYearAndClass(ctx context.Context, academicYearID, classID string) (*models.FeeStructure, error)
	Exists(ctx context.Context, academicYearID, classID string) (bool, error)
	Create(ctx context.Context, structure *models.FeeStructure) error
	Update(ctx context.Context, structure *models.FeeStructure) error
}

type feeTemplateReader interface {
	ListActive(ctx context.Context) ([]models.FeeTemplate, error)
}

type scholarshipTemplateReader interface {
	ListActive(ctx context.Context) ([]models.ScholarshipTemplate, error)
}

type academicYearReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
	FindActive(ctx context.Context) (*models.AcademicYear, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// StructureItemInput carries per-template amounts and flag overrides used
// while composing or updating a structure.
type StructureItemInput struct {
	TemplateID                 string           `json:"template_id" validate:"required"`
	Amount                     *decimal.Decimal `json:"amount,omitempty"`
	IsCompulsory               *bool            `json:"is_compulsory,omitempty"`
	IsEditableDuringEnrollment *bool            `json:"is_editable_during_enrollment,omitempty"`
}

// CreateStructureRequest composes a fee structure for a (year, class) pair.
// An empty AcademicYearID resolves to the currently active year.
type CreateStructureRequest struct {
	AcademicYearID   string               `json:"academic_year_id"`
	ClassID          string               `json:"class_id" validate:"required"`
	FeeItems         []StructureItemInput `json:"fee_items"`
	ScholarshipItems []StructureItemInput `json:"scholarship_items"`
}

// UpdateStructureRequest rewrites item amounts and flags on an existing
// structure. Items not named keep their current values.
type UpdateStructureRequest struct {
	FeeItems         []StructureItemInput `json:"fee_items"`
	ScholarshipItems []StructureItemInput `json:"scholarship_items"`
}

// CopyStructureRequest clones a structure to another (year, class) pair.
type CopyStructureRequest struct {
	TargetAcademicYearID string `json:"target_academic_year_id" validate:"required"`
	TargetClassID        string `json:"target_class_id" validate:"required"`
}

// StructureService composes FeeStructure snapshots from the template catalog
// plus class-level default amounts.
type StructureService struct {
	structures   structureRepository
	feeCatalog   feeTemplateReader
	scholCatalog scholarshipTemplateReader
	years        academicYearReader
	classes      classReader
	ceiling      decimal.Decimal
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewStructureService constructs StructureService.
func NewStructureService(structures structureRepository, feeCatalog feeTemplateReader, scholCatalog scholarshipTemplateReader, years academicYearReader, classes classReader, ceiling decimal.Decimal, validate *validator.Validate, logger *zap.Logger) *StructureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StructureService{
		structures:   structures,
		feeCatalog:   feeCatalog,
		scholCatalog: scholCatalog,
		years:        years,
		classes:      classes,
		ceiling:      ceiling,
		validator:    validate,
		logger:       logger,
	}
}

// List returns structures with pagination metadata.
func (s *StructureService) List(ctx context.Context, filter models.StructureFilter) ([]models.FeeStructure, *models.Pagination, error) {
	structures, total, err := s.structures.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee structures")
	}
	return structures, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single structure.
func (s *StructureService) Get(ctx context.Context, id string) (*models.FeeStructure, error) {
	structure, err := s.structures.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}
	return structure, nil
}

// GetByYearAndClass returns the structure for a (year, class) pair.
func (s *StructureService) GetByYearAndClass(ctx context.Context, academicYearID, classID string) (*models.FeeStructure, error) {
	structure, err := s.structures.FindByYearAndClass(ctx, academicYearID, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found for academic year and class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}
	return structure, nil
}

// Create composes a structure from the active template catalog: one fee item
// per active fee template and one scholarship item per active scholarship
// template, amounts defaulting to the class-specific inputs or zero.
func (s *StructureService) Create(ctx context.Context, req CreateStructureRequest, createdBy string) (*models.FeeStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}

	year, err := s.resolveYear(ctx, req.AcademicYearID)
	if err != nil {
		return nil, err
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	exists, err := s.structures.Exists(ctx, year.ID, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate fee structure")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "fee structure already exists for academic year and class")
	}

	feeTemplates, err := s.feeCatalog.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee templates")
	}
	scholTemplates, err := s.scholCatalog.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scholarship templates")
	}

	feeInputs, err := s.indexInputs(req.FeeItems, templateIDSet(feeTemplates))
	if err != nil {
		return nil, err
	}
	scholInputs, err := s.indexInputs(req.ScholarshipItems, scholarshipIDSet(scholTemplates))
	if err != nil {
		return nil, err
	}

	structure := &models.FeeStructure{
		AcademicYearID: year.ID,
		ClassID:        class.ID,
		AcademicYear:   models.SnapshotAcademicYear(year),
		Class:          models.SnapshotClass(class),
		IsActive:       true,
		CreatedBy:      createdBy,
	}

	for _, tpl := range feeTemplates {
		item := models.FeeItem{
			TemplateID:       tpl.ID,
			TemplateName:     tpl.Name,
			TemplateCategory: tpl.Category,
			Amount:           decimal.Zero,
			IsCompulsory:     tpl.Category == models.FeeCategoryRegular,
			Order:            tpl.DisplayOrder,
		}
		if input, ok := feeInputs[tpl.ID]; ok {
			if input.Amount != nil {
				item.Amount = *input.Amount
			}
			if input.IsCompulsory != nil {
				item.IsCompulsory = *input.IsCompulsory
			}
			if input.IsEditableDuringEnrollment != nil {
				item.IsEditableDuringEnrollment = *input.IsEditableDuringEnrollment
			}
		}
		structure.FeeItems = append(structure.FeeItems, item)
	}

	for _, tpl := range scholTemplates {
		item := models.ScholarshipItem{
			TemplateID:    tpl.ID,
			TemplateName:  tpl.Name,
			TemplateType:  tpl.Type,
			Amount:        decimal.Zero,
			IsAutoApplied: tpl.IsAutoApplied,
			Order:         tpl.DisplayOrder,
		}
		if input, ok := scholInputs[tpl.ID]; ok {
			if input.Amount != nil {
				item.Amount = *input.Amount
			}
			if input.IsEditableDuringEnrollment != nil {
				item.IsEditableDuringEnrollment = *input.IsEditableDuringEnrollment
			}
		}
		structure.ScholarshipItems = append(structure.ScholarshipItems, item)
	}

	structure.SortItems()
	structure.RecomputeTotals()

	if err := s.structures.Create(ctx, structure); err != nil {
		return nil, err
	}
	s.logger.Info("fee structure created",
		zap.String("structure_id", structure.ID),
		zap.String("academic_year_id", year.ID),
		zap.String("class_id", class.ID))
	return structure, nil
}

// Update rewrites amounts and flags of the named items and recomputes totals.
func (s *StructureService) Update(ctx context.Context, id string, req UpdateStructureRequest) (*models.FeeStructure, error) {
	structure, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, input := range req.FeeItems {
		idx := -1
		for i := range structure.FeeItems {
			if structure.FeeItems[i].TemplateID == input.TemplateID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee item not found in structure: "+input.TemplateID)
		}
		if input.Amount != nil {
			if err := s.checkAmount(*input.Amount); err != nil {
				return nil, err
			}
			structure.FeeItems[idx].Amount = *input.Amount
		}
		if input.IsCompulsory != nil {
			structure.FeeItems[idx].IsCompulsory = *input.IsCompulsory
		}
		if input.IsEditableDuringEnrollment != nil {
			structure.FeeItems[idx].IsEditableDuringEnrollment = *input.IsEditableDuringEnrollment
		}
	}

	for _, input := range req.ScholarshipItems {
		idx := -1
		for i := range structure.ScholarshipItems {
			if structure.ScholarshipItems[i].TemplateID == input.TemplateID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship item not found in structure: "+input.TemplateID)
		}
		if input.Amount != nil {
			if err := s.checkAmount(*input.Amount); err != nil {
				return nil, err
			}
			structure.ScholarshipItems[idx].Amount = *input.Amount
		}
		if input.IsEditableDuringEnrollment != nil {
			structure.ScholarshipItems[idx].IsEditableDuringEnrollment = *input.IsEditableDuringEnrollment
		}
	}

	structure.SortItems()
	structure.RecomputeTotals()

	if err := s.structures.Update(ctx, structure); err != nil {
		return nil, err
	}
	return structure, nil
}

// Copy clones a structure's items to another (year, class) pair with fresh
// snapshots. The target pair must not already have a structure.
func (s *StructureService) Copy(ctx context.Context, id string, req CopyStructureRequest, createdBy string) (*models.FeeStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid copy payload")
	}

	source, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	year, err := s.years.FindByID(ctx, req.TargetAcademicYearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	class, err := s.classes.FindByID(ctx, req.TargetClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	exists, err := s.structures.Exists(ctx, year.ID, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate fee structure")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "fee structure already exists for target academic year and class")
	}

	clone := &models.FeeStructure{
		AcademicYearID:   year.ID,
		ClassID:          class.ID,
		AcademicYear:     models.SnapshotAcademicYear(year),
		Class:            models.SnapshotClass(class),
		FeeItems:         append(models.FeeItems(nil), source.FeeItems...),
		ScholarshipItems: append(models.ScholarshipItems(nil), source.ScholarshipItems...),
		IsActive:         true,
		CreatedBy:        createdBy,
	}
	clone.RecomputeTotals()

	if err := s.structures.Create(ctx, clone); err != nil {
		return nil, err
	}
	s.logger.Info("fee structure copied",
		zap.String("source_id", source.ID),
		zap.String("structure_id", clone.ID))
	return clone, nil
}

func (s *StructureService) resolveYear(ctx context.Context, academicYearID string) (*models.AcademicYear, error) {
	if academicYearID == "" {
		year, err := s.years.FindActive(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "no active academic year")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve active academic year")
		}
		return year, nil
	}
	year, err := s.years.FindByID(ctx, academicYearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	return year, nil
}

// indexInputs validates default-amount inputs: each must target a known
// active template and carry an in-range amount. Unknown targets are typed
// errors, never silently skipped.
func (s *StructureService) indexInputs(inputs []StructureItemInput, known map[string]struct{}) (map[string]StructureItemInput, error) {
	indexed := make(map[string]StructureItemInput, len(inputs))
	for _, input := range inputs {
		if _, ok := known[input.TemplateID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found or inactive: "+input.TemplateID)
		}
		if input.Amount != nil {
			if err := s.checkAmount(*input.Amount); err != nil {
				return nil, err
			}
		}
		indexed[input.TemplateID] = input
	}
	return indexed, nil
}

func (s *StructureService) checkAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return appErrors.Clone(appErrors.ErrValidation, "amount must not be negative")
	}
	if s.ceiling.IsPositive() && amount.GreaterThan(s.ceiling) {
		return appErrors.Clone(appErrors.ErrValidation, "amount exceeds configured ceiling")
	}
	return nil
}

func templateIDSet(templates []models.FeeTemplate) map[string]struct{} {
	set := make(map[string]struct{}, len(templates))
	for _, tpl := range templates {
		set[tpl.ID] = struct{}{}
	}
	return set
}

func scholarshipIDSet(templates []models.ScholarshipTemplate) map[string]struct{} {
	set := make(map[string]struct{}, len(templates))
	for _, tpl := range templates {
		set[tpl.ID] = struct{}{}
	}
	return set
}
