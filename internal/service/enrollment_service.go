package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.StudentEnrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentEnrollment, error)
	FindByStudentAndYear(ctx context.Context, studentID, academicYearID string) (*models.StudentEnrollment, error)
	Exists(ctx context.Context, studentID, academicYearID string) (bool, error)
	Create(ctx context.Context, enrollment *models.StudentEnrollment) error
	Save(ctx context.Context, enrollment *models.StudentEnrollment) error
}

type structureReader interface {
	FindByID(ctx context.Context, id string) (*models.FeeStructure, error)
	FindByYearAndClass(ctx context.Context, academicYearID, classID string) (*models.FeeStructure, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// FeeOverrideInput replaces one editable line's amount at enrollment.
type FeeOverrideInput struct {
	TemplateID string          `json:"template_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

// EnrollRequest enrolls a student into a class for an academic year. An empty
// AcademicYearID resolves to the currently active year. Every fee item of the
// structure materializes; ScholarshipTemplateIDs selects manual scholarships
// on top of auto-applied ones. Overrides replace line amounts and are honored
// only for items editable during enrollment.
type EnrollRequest struct {
	StudentID              string             `json:"student_id" validate:"required"`
	AcademicYearID         string             `json:"academic_year_id"`
	ClassID                string             `json:"class_id" validate:"required"`
	FeeOverrides           []FeeOverrideInput `json:"fee_overrides"`
	ScholarshipTemplateIDs []string           `json:"scholarship_template_ids"`
	ScholarshipOverrides   []FeeOverrideInput `json:"scholarship_overrides"`
}

// ScholarshipActionRequest applies or removes one scholarship on an enrollment.
type ScholarshipActionRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
}

// EnrollmentService materializes per-student fee records from structures and
// keeps them consistent afterwards.
type EnrollmentService struct {
	enrollments enrollmentRepository
	structures  structureReader
	students    studentReader
	years       academicYearReader
	classes     classReader
	locker      *EnrollmentLocker
	ceiling     decimal.Decimal
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentRepository, structures structureReader, students studentReader, years academicYearReader, classes classReader, locker *EnrollmentLocker, ceiling decimal.Decimal, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewEnrollmentLocker()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		structures:  structures,
		students:    students,
		years:       years,
		classes:     classes,
		locker:      locker,
		ceiling:     ceiling,
		validator:   validate,
		logger:      logger,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.StudentEnrollment, *models.Pagination, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.StudentEnrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll creates the student's enrollment for the year and materializes its
// fee and scholarship lines from the class structure.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest, createdBy string) (*models.StudentEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	year, err := s.resolveYear(ctx, req.AcademicYearID)
	if err != nil {
		return nil, err
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	exists, err := s.enrollments.Exists(ctx, student.ID, year.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "student already enrolled for academic year")
	}

	structure, err := s.structures.FindByYearAndClass(ctx, year.ID, class.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no fee structure for academic year and class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}

	fees, scholarships, err := s.materializeLines(structure, req, createdBy, time.Now())
	if err != nil {
		return nil, err
	}

	enrollment := &models.StudentEnrollment{
		StudentID:      student.ID,
		AcademicYearID: year.ID,
		ClassID:        class.ID,
		FeeStructureID: structure.ID,
		Student:        models.SnapshotStudent(student),
		AcademicYear:   models.SnapshotAcademicYear(year),
		Class:          models.SnapshotClass(class),
		Fees:           fees,
		Scholarships:   scholarships,
		IsActive:       true,
		CreatedBy:      createdBy,
	}
	enrollment.SortLines()
	enrollment.RecomputeTotals()

	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, err
	}
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", student.ID),
		zap.String("academic_year_id", year.ID),
		zap.String("class_id", class.ID))
	return enrollment, nil
}

// materializeLines builds the per-student lines from a structure. It is pure:
// no repository access, so the same inputs always produce the same lines.
//
// Every fee item of the structure materializes. An override equal to the
// structure default is treated as no override, so the line stays
// uncustomized. Overridden targets must exist and be editable; the same rule
// applies to fee and scholarship overrides alike.
func (s *EnrollmentService) materializeLines(structure *models.FeeStructure, req EnrollRequest, actor string, now time.Time) (models.StudentFees, models.StudentScholarships, error) {
	feeOverrides := make(map[string]decimal.Decimal, len(req.FeeOverrides))
	for _, ov := range req.FeeOverrides {
		item, ok := structure.FeeItemByTemplate(ov.TemplateID)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "fee item not found in structure: "+ov.TemplateID)
		}
		if !item.IsEditableDuringEnrollment {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "fee item is not editable during enrollment: "+item.TemplateName)
		}
		if err := s.checkOverrideAmount(ov.Amount); err != nil {
			return nil, nil, err
		}
		if ov.Amount.Equal(item.Amount) {
			continue
		}
		feeOverrides[ov.TemplateID] = ov.Amount
	}

	scholOverrides := make(map[string]decimal.Decimal, len(req.ScholarshipOverrides))
	for _, ov := range req.ScholarshipOverrides {
		item, ok := structure.ScholarshipItemByTemplate(ov.TemplateID)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship item not found in structure: "+ov.TemplateID)
		}
		if !item.IsEditableDuringEnrollment {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "scholarship item is not editable during enrollment: "+item.TemplateName)
		}
		if err := s.checkOverrideAmount(ov.Amount); err != nil {
			return nil, nil, err
		}
		if ov.Amount.Equal(item.Amount) {
			continue
		}
		scholOverrides[ov.TemplateID] = ov.Amount
	}

	var fees models.StudentFees
	for _, item := range structure.FeeItems {
		amount := item.Amount
		if ov, ok := feeOverrides[item.TemplateID]; ok {
			amount = ov
		}
		fees = append(fees, models.StudentFee{
			FeeItemID:        uuid.NewString(),
			TemplateID:       item.TemplateID,
			TemplateName:     item.TemplateName,
			TemplateCategory: item.TemplateCategory,
			Amount:           amount,
			OriginalAmount:   item.Amount,
			AmountPaid:       decimal.Zero,
			IsCompulsory:     item.IsCompulsory,
			Order:            item.Order,
		})
	}

	selectedManual := make(map[string]bool, len(req.ScholarshipTemplateIDs))
	for _, id := range req.ScholarshipTemplateIDs {
		if _, ok := structure.ScholarshipItemByTemplate(id); !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship item not found in structure: "+id)
		}
		selectedManual[id] = true
	}

	var scholarships models.StudentScholarships
	for _, item := range structure.ScholarshipItems {
		if !item.IsAutoApplied && !selectedManual[item.TemplateID] {
			continue
		}
		amount := item.Amount
		if ov, ok := scholOverrides[item.TemplateID]; ok {
			amount = ov
		}
		scholarships = append(scholarships, models.StudentScholarship{
			ScholarshipItemID: uuid.NewString(),
			TemplateID:        item.TemplateID,
			TemplateName:      item.TemplateName,
			TemplateType:      item.TemplateType,
			Amount:            amount,
			OriginalAmount:    item.Amount,
			IsAutoApplied:     item.IsAutoApplied,
			AppliedDate:       now,
			AppliedBy:         actor,
			IsActive:          true,
			Order:             item.Order,
		})
	}

	return fees, scholarships, nil
}

func (s *EnrollmentService) checkOverrideAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return appErrors.Clone(appErrors.ErrValidation, "override amount must not be negative")
	}
	if s.ceiling.IsPositive() && amount.GreaterThan(s.ceiling) {
		return appErrors.Clone(appErrors.ErrValidation, "override amount exceeds configured ceiling")
	}
	return nil
}

// Rematerialize rebuilds an enrollment's lines from the current structure
// while preserving payment progress and still-valid overrides. Lines whose
// template survives keep their ids so ledger references stay resolvable.
func (s *EnrollmentService) Rematerialize(ctx context.Context, enrollmentID string) (*models.StudentEnrollment, error) {
	unlock := s.locker.Lock(enrollmentID)
	defer unlock()

	enrollment, err := s.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	structure, err := s.structures.FindByID(ctx, enrollment.FeeStructureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}

	previous := make(map[string]models.StudentFee, len(enrollment.Fees))
	for _, line := range enrollment.Fees {
		previous[line.TemplateID] = line
	}

	var fees models.StudentFees
	for _, item := range structure.FeeItems {
		prev, had := previous[item.TemplateID]
		line := models.StudentFee{
			FeeItemID:        uuid.NewString(),
			TemplateID:       item.TemplateID,
			TemplateName:     item.TemplateName,
			TemplateCategory: item.TemplateCategory,
			Amount:           item.Amount,
			OriginalAmount:   item.Amount,
			AmountPaid:       decimal.Zero,
			IsCompulsory:     item.IsCompulsory,
			Order:            item.Order,
		}
		if had {
			line.FeeItemID = prev.FeeItemID
			line.AmountPaid = prev.AmountPaid
			if prev.IsCustomized() && item.IsEditableDuringEnrollment {
				line.Amount = prev.Amount
			}
		}
		fees = append(fees, line)
	}

	// Dropped templates with payments on record stay as orphan lines so the
	// paid amount is never lost.
	for _, line := range enrollment.Fees {
		if _, ok := structure.FeeItemByTemplate(line.TemplateID); ok {
			continue
		}
		if line.AmountPaid.IsPositive() {
			fees = append(fees, line)
		}
	}

	prevSchol := make(map[string]models.StudentScholarship, len(enrollment.Scholarships))
	for _, line := range enrollment.Scholarships {
		prevSchol[line.TemplateID] = line
	}

	var scholarships models.StudentScholarships
	for _, item := range structure.ScholarshipItems {
		prev, had := prevSchol[item.TemplateID]
		if !item.IsAutoApplied && !had {
			continue
		}
		line := models.StudentScholarship{
			ScholarshipItemID: uuid.NewString(),
			TemplateID:        item.TemplateID,
			TemplateName:      item.TemplateName,
			TemplateType:      item.TemplateType,
			Amount:            item.Amount,
			OriginalAmount:    item.Amount,
			IsAutoApplied:     item.IsAutoApplied,
			AppliedDate:       time.Now(),
			AppliedBy:         enrollment.CreatedBy,
			IsActive:          true,
			Order:             item.Order,
		}
		if had {
			line.ScholarshipItemID = prev.ScholarshipItemID
			line.AppliedDate = prev.AppliedDate
			line.AppliedBy = prev.AppliedBy
			line.IsActive = prev.IsActive
			if prev.IsCustomized() && item.IsEditableDuringEnrollment {
				line.Amount = prev.Amount
			}
		}
		scholarships = append(scholarships, line)
	}

	enrollment.Fees = fees
	enrollment.Scholarships = scholarships
	enrollment.SortLines()
	enrollment.RecomputeTotals()

	if err := s.enrollments.Save(ctx, enrollment); err != nil {
		return nil, err
	}
	s.logger.Info("enrollment rematerialized", zap.String("enrollment_id", enrollment.ID))
	return enrollment, nil
}

// ApplyScholarship activates a manual scholarship line on the enrollment,
// materializing it from the structure if it was never selected.
func (s *EnrollmentService) ApplyScholarship(ctx context.Context, enrollmentID string, req ScholarshipActionRequest, actor string) (*models.StudentEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scholarship payload")
	}

	unlock := s.locker.Lock(enrollmentID)
	defer unlock()

	enrollment, err := s.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	for i := range enrollment.Scholarships {
		if enrollment.Scholarships[i].TemplateID != req.TemplateID {
			continue
		}
		if enrollment.Scholarships[i].IsActive {
			return nil, appErrors.Clone(appErrors.ErrConflict, "scholarship already applied")
		}
		enrollment.Scholarships[i].IsActive = true
		enrollment.Scholarships[i].AppliedDate = time.Now()
		enrollment.Scholarships[i].AppliedBy = actor
		enrollment.RecomputeTotals()
		if err := s.enrollments.Save(ctx, enrollment); err != nil {
			return nil, err
		}
		return enrollment, nil
	}

	structure, err := s.structures.FindByID(ctx, enrollment.FeeStructureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee structure")
	}
	item, ok := structure.ScholarshipItemByTemplate(req.TemplateID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship item not found in structure: "+req.TemplateID)
	}

	enrollment.Scholarships = append(enrollment.Scholarships, models.StudentScholarship{
		ScholarshipItemID: uuid.NewString(),
		TemplateID:        item.TemplateID,
		TemplateName:      item.TemplateName,
		TemplateType:      item.TemplateType,
		Amount:            item.Amount,
		OriginalAmount:    item.Amount,
		IsAutoApplied:     item.IsAutoApplied,
		AppliedDate:       time.Now(),
		AppliedBy:         actor,
		IsActive:          true,
		Order:             item.Order,
	})
	enrollment.SortLines()
	enrollment.RecomputeTotals()

	if err := s.enrollments.Save(ctx, enrollment); err != nil {
		return nil, err
	}
	s.logger.Info("scholarship applied",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("template_id", req.TemplateID))
	return enrollment, nil
}

// RemoveScholarship deactivates a scholarship line. The line is kept, not
// deleted, so the audit trail of when it was applied survives.
func (s *EnrollmentService) RemoveScholarship(ctx context.Context, enrollmentID string, req ScholarshipActionRequest) (*models.StudentEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scholarship payload")
	}

	unlock := s.locker.Lock(enrollmentID)
	defer unlock()

	enrollment, err := s.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	for i := range enrollment.Scholarships {
		if enrollment.Scholarships[i].TemplateID != req.TemplateID {
			continue
		}
		if !enrollment.Scholarships[i].IsActive {
			return nil, appErrors.Clone(appErrors.ErrConflict, "scholarship is not active")
		}
		enrollment.Scholarships[i].IsActive = false
		enrollment.RecomputeTotals()
		if err := s.enrollments.Save(ctx, enrollment); err != nil {
			return nil, err
		}
		return enrollment, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship not found on enrollment")
}

// Waive marks the enrollment WAIVED. The flag is manual only; recomputation
// never sets or clears it.
func (s *EnrollmentService) Waive(ctx context.Context, enrollmentID string) (*models.StudentEnrollment, error) {
	unlock := s.locker.Lock(enrollmentID)
	defer unlock()

	enrollment, err := s.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.FeeStatus.Status == models.FeeStatusWaived {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is already waived")
	}
	enrollment.FeeStatus.Status = models.FeeStatusWaived
	if err := s.enrollments.Save(ctx, enrollment); err != nil {
		return nil, err
	}
	s.logger.Info("enrollment waived", zap.String("enrollment_id", enrollment.ID))
	return enrollment, nil
}

// Unwaive clears a manual WAIVED flag and rederives the status.
func (s *EnrollmentService) Unwaive(ctx context.Context, enrollmentID string) (*models.StudentEnrollment, error) {
	unlock := s.locker.Lock(enrollmentID)
	defer unlock()

	enrollment, err := s.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment.FeeStatus.Status != models.FeeStatusWaived {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is not waived")
	}
	enrollment.FeeStatus.Status = ""
	enrollment.RecomputeTotals()
	if err := s.enrollments.Save(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// Deactivate soft-deletes an enrollment. Its payment history stays readable.
func (s *EnrollmentService) Deactivate(ctx context.Context, enrollmentID string) error {
	unlock := s.locker.Lock(enrollmentID)
	defer unlock()

	enrollment, err := s.Get(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if !enrollment.IsActive {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment is already inactive")
	}
	enrollment.IsActive = false
	if err := s.enrollments.Save(ctx, enrollment); err != nil {
		return err
	}
	s.logger.Info("enrollment deactivated", zap.String("enrollment_id", enrollment.ID))
	return nil
}

func (s *EnrollmentService) resolveYear(ctx context.Context, academicYearID string) (*models.AcademicYear, error) {
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
