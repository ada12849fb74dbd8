package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

// AcademicYearRepository handles live academic year records.
type AcademicYearRepository struct {
	db *sqlx.DB
}

// NewAcademicYearRepository constructs the repository.
func NewAcademicYearRepository(db *sqlx.DB) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// List returns every academic year, newest first.
func (r *AcademicYearRepository) List(ctx context.Context) ([]models.AcademicYear, error) {
	var years []models.AcademicYear
	query := `SELECT id, name, start_date, end_date, is_active, created_at, updated_at
        FROM academic_years ORDER BY start_date DESC`
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// FindByID returns a single academic year.
func (r *AcademicYearRepository) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	var year models.AcademicYear
	query := `SELECT id, name, start_date, end_date, is_active, created_at, updated_at
        FROM academic_years WHERE id = $1`
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// FindActive returns the current academic year. sql.ErrNoRows when none is
// active; callers surface that as a typed not-found error.
func (r *AcademicYearRepository) FindActive(ctx context.Context) (*models.AcademicYear, error) {
	var year models.AcademicYear
	query := `SELECT id, name, start_date, end_date, is_active, created_at, updated_at
        FROM academic_years WHERE is_active = TRUE ORDER BY start_date DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &year, query); err != nil {
		return nil, err
	}
	return &year, nil
}

// Create inserts a new academic year.
func (r *AcademicYearRepository) Create(ctx context.Context, year *models.AcademicYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	year.CreatedAt = now
	year.UpdatedAt = now

	query := `INSERT INTO academic_years (id, name, start_date, end_date, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		year.ID, year.Name, year.StartDate, year.EndDate, year.IsActive, year.CreatedAt, year.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicate, "academic year name already exists")
		}
		return fmt.Errorf("create academic year: %w", err)
	}
	return nil
}
