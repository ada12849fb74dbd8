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

// FeeTemplateRepository handles persistence of the fee template catalog.
type FeeTemplateRepository struct {
	db *sqlx.DB
}

// NewFeeTemplateRepository constructs the repository.
func NewFeeTemplateRepository(db *sqlx.DB) *FeeTemplateRepository {
	return &FeeTemplateRepository{db: db}
}

// List returns catalog templates matching the filter.
func (r *FeeTemplateRepository) List(ctx context.Context, filter models.TemplateFilter) ([]models.FeeTemplate, int, error) {
	base := "FROM fee_templates WHERE 1=1"
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

	query := fmt.Sprintf(`SELECT id, name, category, display_order, is_active, created_by, created_at, updated_at
        %s ORDER BY display_order ASC, name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var templates []models.FeeTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee templates: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee templates: %w", err)
	}
	return templates, total, nil
}

// ListActive returns all active templates in catalog order.
func (r *FeeTemplateRepository) ListActive(ctx context.Context) ([]models.FeeTemplate, error) {
	var templates []models.FeeTemplate
	query := `SELECT id, name, category, display_order, is_active, created_by, created_at, updated_at
        FROM fee_templates WHERE is_active = TRUE ORDER BY display_order ASC, name ASC`
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list active fee templates: %w", err)
	}
	return templates, nil
}

// FindByID returns a single template.
func (r *FeeTemplateRepository) FindByID(ctx context.Context, id string) (*models.FeeTemplate, error) {
	var template models.FeeTemplate
	query := `SELECT id, name, category, display_order, is_active, created_by, created_at, updated_at
        FROM fee_templates WHERE id = $1`
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// ExistsByName reports whether a template with the name already exists.
func (r *FeeTemplateRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM fee_templates WHERE name = $1 AND id <> $2"
	if err := r.db.GetContext(ctx, &count, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check fee template name: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new catalog template.
func (r *FeeTemplateRepository) Create(ctx context.Context, template *models.FeeTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now

	query := `INSERT INTO fee_templates (id, name, category, display_order, is_active, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		template.ID, template.Name, template.Category, template.DisplayOrder,
		template.IsActive, template.CreatedBy, template.CreatedAt, template.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicate, "fee template name already exists")
		}
		return fmt.Errorf("create fee template: %w", err)
	}
	return nil
}

// Update rewrites mutable template fields.
func (r *FeeTemplateRepository) Update(ctx context.Context, template *models.FeeTemplate) error {
	template.UpdatedAt = time.Now().UTC()
	query := `UPDATE fee_templates SET name = $2, category = $3, display_order = $4, is_active = $5, updated_at = $6
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		template.ID, template.Name, template.Category, template.DisplayOrder, template.IsActive, template.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrDuplicate, "fee template name already exists")
		}
		return fmt.Errorf("update fee template: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "fee template not found")
	}
	return nil
}

// Deactivate soft-deletes a template. Catalog entries are never removed.
func (r *FeeTemplateRepository) Deactivate(ctx context.Context, id string) error {
	query := "UPDATE fee_templates SET is_active = FALSE, updated_at = $2 WHERE id = $1"
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate fee template: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "fee template not found")
	}
	return nil
}
