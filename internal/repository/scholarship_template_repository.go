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

// ScholarshipTemplateRepository handles the scholarship template catalog.
type ScholarshipTemplateRepository struct {
	db *sqlx.DB
}

// NewScholarshipTemplateRepository constructs the repository.
func NewScholarshipTemplateRepository(db *sqlx.DB) *ScholarshipTemplateRepository {
	return &ScholarshipTemplateRepository{db: db}
}

// List returns catalog templates matching the filter.
func (r *ScholarshipTemplateRepository) List(ctx context.Context, filter models.TemplateFilter) ([]models.ScholarshipTemplate, int, error) {
	base := "FROM scholarship_templates WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
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
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, name, type, is_auto_applied, display_order, is_active, created_by, created_at, updated_at
        %s ORDER BY display_order ASC, name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var templates []models.ScholarshipTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list scholarship templates: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count scholarship templates: %w", err)
	}
	return templates, total, nil
}

// ListActive returns all active scholarship templates in catalog order.
func (r *ScholarshipTemplateRepository) ListActive(ctx context.Context) ([]models.ScholarshipTemplate, error) {
	var templates []models.ScholarshipTemplate
	query := `SELECT id, name, type, is_auto_applied, display_order, is_active, created_by, created_at, updated_at
        FROM scholarship_templates WHERE is_active = TRUE ORDER BY display_order ASC, name ASC`
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list active scholarship templates: %w", err)
	}
	return templates, nil
}

// FindByID returns a single template.
func (r *ScholarshipTemplateRepository) FindByID(ctx context.Context, id string) (*models.ScholarshipTemplate, error) {
	var template models.ScholarshipTemplate
	query := `SELECT id, name, type, is_auto_applied, display_order, is_active, created_by, created_at, updated_at
        FROM scholarship_templates WHERE id = $1`
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// ExistsByName reports whether a template with the name already exists.
func (r *ScholarshipTemplateRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM scholarship_templates WHERE name = $1 AND id <> $2"
	if err := r.db.GetContext(ctx, &count, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check scholarship template name: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new catalog template.
func (r *ScholarshipTemplateRepository) Create(ctx context.Context, template *models.ScholarshipTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now

	query := `INSERT INTO scholarship_templates (id, name, type, is_auto_applied, display_order, is_active, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query,
		template.ID, template.Name, template.Type, template.IsAutoApplied, template.DisplayOrder,
		template.IsActive, template.CreatedBy, template.CreatedAt, template.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicate, "scholarship template name already exists")
		}
		return fmt.Errorf("create scholarship template: %w", err)
	}
	return nil
}

// Update rewrites mutable template fields.
func (r *ScholarshipTemplateRepository) Update(ctx context.Context, template *models.ScholarshipTemplate) error {
	template.UpdatedAt = time.Now().UTC()
	query := `UPDATE scholarship_templates SET name = $2, type = $3, is_auto_applied = $4, display_order = $5, is_active = $6, updated_at = $7
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		template.ID, template.Name, template.Type, template.IsAutoApplied, template.DisplayOrder, template.IsActive, template.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicate, "scholarship template name already exists")
		}
		return fmt.Errorf("update scholarship template: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "scholarship template not found")
	}
	return nil
}

// Deactivate soft-deletes a template.
func (r *ScholarshipTemplateRepository) Deactivate(ctx context.Context, id string) error {
	query := "UPDATE scholarship_templates SET is_active = FALSE, updated_at = $2 WHERE id = $1"
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate scholarship template: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "scholarship template not found")
	}
	return nil
}
