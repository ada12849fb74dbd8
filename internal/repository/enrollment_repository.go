package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

const enrollmentColumns = `id, student_id, academic_year_id, class_id, fee_structure_id, student, academic_year, class,
        fees, scholarships, totals, fee_status, version, is_active, created_by, created_at, updated_at`

// EnrollmentRepository handles persistence of student enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments matching the filter.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.StudentEnrollment, int, error) {
	base := "FROM student_enrollments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("fee_status->>'status' = $%d", len(args)+1))
		args = append(args, string(filter.Status))
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", enrollmentColumns, base, size, offset)

	var enrollments []models.StudentEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListActiveIDs returns the ids of every active enrollment, used by the
// school-wide recalculation pass.
func (r *EnrollmentRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	query := "SELECT id FROM student_enrollments WHERE is_active = TRUE ORDER BY created_at"
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list active enrollment ids: %w", err)
	}
	return ids, nil
}

// FindByID returns a single enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.StudentEnrollment, error) {
	var enrollment models.StudentEnrollment
	query := fmt.Sprintf("SELECT %s FROM student_enrollments WHERE id = $1", enrollmentColumns)
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndYear returns the enrollment for a (student, year) pair.
func (r *EnrollmentRepository) FindByStudentAndYear(ctx context.Context, studentID, academicYearID string) (*models.StudentEnrollment, error) {
	var enrollment models.StudentEnrollment
	query := fmt.Sprintf("SELECT %s FROM student_enrollments WHERE student_id = $1 AND academic_year_id = $2", enrollmentColumns)
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, academicYearID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Exists reports whether an enrollment already exists for the pair.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, academicYearID string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM student_enrollments WHERE student_id = $1 AND academic_year_id = $2"
	if err := r.db.GetContext(ctx, &count, query, studentID, academicYearID); err != nil {
		return false, fmt.Errorf("check enrollment existence: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new enrollment. The (student_id, academic_year_id) pair is
// unique; a racing insert surfaces as ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.StudentEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	enrollment.Version = 1

	query := `INSERT INTO student_enrollments (id, student_id, academic_year_id, class_id, fee_structure_id,
        student, academic_year, class, fees, scholarships, totals, fee_status, version, is_active,
        created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.db.ExecContext(ctx, query,
		enrollment.ID, enrollment.StudentID, enrollment.AcademicYearID, enrollment.ClassID, enrollment.FeeStructureID,
		enrollment.Student, enrollment.AcademicYear, enrollment.Class, enrollment.Fees, enrollment.Scholarships,
		enrollment.Totals, enrollment.FeeStatus, enrollment.Version, enrollment.IsActive,
		enrollment.CreatedBy, enrollment.CreatedAt, enrollment.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicate, "student already enrolled for academic year")
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Save persists fee lines, totals and status using optimistic concurrency.
// The write only lands when the stored version still matches; otherwise the
// caller raced another writer and gets ErrStaleVersion.
func (r *EnrollmentRepository) Save(ctx context.Context, enrollment *models.StudentEnrollment) error {
	if err := saveEnrollmentTx(ctx, r.db, enrollment); err != nil {
		return err
	}
	return nil
}

// saveEnrollmentTx runs the optimistic enrollment update on any executor so
// the payment repository can reuse it inside an allocation transaction.
func saveEnrollmentTx(ctx context.Context, ext sqlx.ExtContext, enrollment *models.StudentEnrollment) error {
	updatedAt := time.Now().UTC()
	query := `UPDATE student_enrollments SET class_id = $2, fees = $3, scholarships = $4, totals = $5,
        fee_status = $6, version = version + 1, is_active = $7, updated_at = $8
        WHERE id = $1 AND version = $9`
	result, err := ext.ExecContext(ctx, query,
		enrollment.ID, enrollment.ClassID, enrollment.Fees, enrollment.Scholarships, enrollment.Totals,
		enrollment.FeeStatus, enrollment.IsActive, updatedAt, enrollment.Version)
	if err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save enrollment rows: %w", err)
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrStaleVersion, "enrollment was modified concurrently")
	}
	enrollment.Version++
	enrollment.UpdatedAt = updatedAt
	return nil
}
