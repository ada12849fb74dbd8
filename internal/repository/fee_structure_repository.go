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

const feeStructureColumns = `id, academic_year_id, class_id, academic_year, class, fee_items, scholarship_items,
        fee_totals, scholarship_totals, is_active, created_by, created_at, updated_at`

// FeeStructureRepository handles persistence of fee structures.
type FeeStructureRepository struct {
	db *sqlx.DB
}

// NewFeeStructureRepository constructs the repository.
func NewFeeStructureRepository(db *sqlx.DB) *FeeStructureRepository {
	return &FeeStructureRepository{db: db}
}

// List returns structures matching the filter.
func (r *FeeStructureRepository) List(ctx context.Context, filter models.StructureFilter) ([]models.FeeStructure, int, error) {
	base := "FROM fee_structures WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", feeStructureColumns, base, size, offset)

	var structures []models.FeeStructure
	if err := r.db.SelectContext(ctx, &structures, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee structures: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee structures: %w", err)
	}
	return structures, total, nil
}

// FindByID returns a single structure.
func (r *FeeStructureRepository) FindByID(ctx context.Context, id string) (*models.FeeStructure, error) {
	var structure models.FeeStructure
	query := fmt.Sprintf("SELECT %s FROM fee_structures WHERE id = $1", feeStructureColumns)
	if err := r.db.GetContext(ctx, &structure, query, id); err != nil {
		return nil, err
	}
	return &structure, nil
}

// FindByYearAndClass returns the structure for a (year, class) pair.
func (r *FeeStructureRepository) FindByYearAndClass(ctx context.Context, academicYearID, classID string) (*models.FeeStructure, error) {
	var structure models.FeeStructure
	query := fmt.Sprintf("SELECT %s FROM fee_structures WHERE academic_year_id = $1 AND class_id = $2", feeStructureColumns)
	if err := r.db.GetContext(ctx, &structure, query, academicYearID, classID); err != nil {
		return nil, err
	}
	return &structure, nil
}

// Exists reports whether a structure already exists for the pair.
func (r *FeeStructureRepository) Exists(ctx context.Context, academicYearID, classID string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM fee_structures WHERE academic_year_id = $1 AND class_id = $2"
	if err := r.db.GetContext(ctx, &count, query, academicYearID, classID); err != nil {
		return false, fmt.Errorf("check fee structure existence: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new structure. The (academic_year_id, class_id) pair is
// unique; a racing insert surfaces as ErrDuplicate.
func (r *FeeStructureRepository) Create(ctx context.Context, structure *models.FeeStructure) error {
	if structure.ID == "" {
		structure.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	structure.CreatedAt = now
	structure.UpdatedAt = now

	query := `INSERT INTO fee_structures (id, academic_year_id, class_id, academic_year, class, fee_items,
        scholarship_items, fee_totals, scholarship_totals, is_active, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query,
		structure.ID, structure.AcademicYearID, structure.ClassID, structure.AcademicYear, structure.Class,
		structure.FeeItems, structure.ScholarshipItems, structure.FeeTotals, structure.ScholTotals,
		structure.IsActive, structure.CreatedBy, structure.CreatedAt, structure.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicate, "fee structure already exists for academic year and class")
		}
		return fmt.Errorf("create fee structure: %w", err)
	}
	return nil
}

// Update rewrites the structure's items and totals.
func (r *FeeStructureRepository) Update(ctx context.Context, structure *models.FeeStructure) error {
	structure.UpdatedAt = time.Now().UTC()
	query := `UPDATE fee_structures SET fee_items = $2, scholarship_items = $3, fee_totals = $4,
        scholarship_totals = $5, is_active = $6, updated_at = $7 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		structure.ID, structure.FeeItems, structure.ScholarshipItems,
		structure.FeeTotals, structure.ScholTotals, structure.IsActive, structure.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update fee structure: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
	}
	return nil
}
