package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

type mockFeeTemplateRepo struct {
	templates   map[string]*models.FeeTemplate
	deactivated []string
}

func (m *mockFeeTemplateRepo) List(ctx context.Context, filter models.TemplateFilter) ([]models.FeeTemplate, int, error) {
	return nil, 0, nil
}

func (m *mockFeeTemplateRepo) FindByID(ctx context.Context, id string) (*models.FeeTemplate, error) {
	if t, ok := m.templates[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeTemplateRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, t := range m.templates {
		if t.Name == name && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFeeTemplateRepo) Create(ctx context.Context, template *models.FeeTemplate) error {
	if template.ID == "" {
		template.ID = "new-template"
	}
	if m.templates == nil {
		m.templates = make(map[string]*models.FeeTemplate)
	}
	clone := *template
	m.templates[template.ID] = &clone
	return nil
}

func (m *mockFeeTemplateRepo) Update(ctx context.Context, template *models.FeeTemplate) error {
	clone := *template
	m.templates[template.ID] = &clone
	return nil
}

func (m *mockFeeTemplateRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockScholTemplateRepo struct {
	templates map[string]*models.ScholarshipTemplate
}

func (m *mockScholTemplateRepo) List(ctx context.Context, filter models.TemplateFilter) ([]models.ScholarshipTemplate, int, error) {
	return nil, 0, nil
}

func (m *mockScholTemplateRepo) FindByID(ctx context.Context, id string) (*models.ScholarshipTemplate, error) {
	if t, ok := m.templates[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockScholTemplateRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, t := range m.templates {
		if t.Name == name && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockScholTemplateRepo) Create(ctx context.Context, template *models.ScholarshipTemplate) error {
	if template.ID == "" {
		template.ID = "new-scholarship"
	}
	if m.templates == nil {
		m.templates = make(map[string]*models.ScholarshipTemplate)
	}
	clone := *template
	m.templates[template.ID] = &clone
	return nil
}

func (m *mockScholTemplateRepo) Update(ctx context.Context, template *models.ScholarshipTemplate) error {
	clone := *template
	m.templates[template.ID] = &clone
	return nil
}

func (m *mockScholTemplateRepo) Deactivate(ctx context.Context, id string) error {
	return nil
}

func TestTemplateServiceCreateFeeTemplate(t *testing.T) {
	fees := &mockFeeTemplateRepo{}
	svc := NewTemplateService(fees, &mockScholTemplateRepo{}, nil, nil)

	template, err := svc.CreateFeeTemplate(context.Background(), CreateFeeTemplateRequest{
		Name:         "Tuition",
		Category:     models.FeeCategoryRegular,
		DisplayOrder: 1,
	}, "admin")
	require.NoError(t, err)
	assert.True(t, template.IsActive)
	assert.Equal(t, "admin", template.CreatedBy)

	_, err = svc.CreateFeeTemplate(context.Background(), CreateFeeTemplateRequest{
		Name:     "Tuition",
		Category: models.FeeCategoryRegular,
	}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestTemplateServiceCreateFeeTemplateUnknownCategory(t *testing.T) {
	svc := NewTemplateService(&mockFeeTemplateRepo{}, &mockScholTemplateRepo{}, nil, nil)

	_, err := svc.CreateFeeTemplate(context.Background(), CreateFeeTemplateRequest{
		Name:     "Misc",
		Category: models.FeeCategory("WEIRD"),
	}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTemplateServiceUpdateFeeTemplate(t *testing.T) {
	fees := &mockFeeTemplateRepo{}
	svc := NewTemplateService(fees, &mockScholTemplateRepo{}, nil, nil)

	template, err := svc.CreateFeeTemplate(context.Background(), CreateFeeTemplateRequest{
		Name:     "Lab",
		Category: models.FeeCategoryOther,
	}, "admin")
	require.NoError(t, err)

	name := "Laboratory"
	inactive := false
	updated, err := svc.UpdateFeeTemplate(context.Background(), template.ID, UpdateFeeTemplateRequest{
		Name:     &name,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Laboratory", updated.Name)
	assert.False(t, updated.IsActive)

	_, err = svc.UpdateFeeTemplate(context.Background(), "missing", UpdateFeeTemplateRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTemplateServiceDeactivateFeeTemplate(t *testing.T) {
	fees := &mockFeeTemplateRepo{}
	svc := NewTemplateService(fees, &mockScholTemplateRepo{}, nil, nil)

	require.NoError(t, svc.DeactivateFeeTemplate(context.Background(), "t1"))
	assert.Contains(t, fees.deactivated, "t1")
}

func TestTemplateServiceCreateScholarshipTemplate(t *testing.T) {
	schols := &mockScholTemplateRepo{}
	svc := NewTemplateService(&mockFeeTemplateRepo{}, schols, nil, nil)

	template, err := svc.CreateScholarshipTemplate(context.Background(), CreateScholarshipTemplateRequest{
		Name:          "Merit",
		Type:          models.ScholarshipTypeMerit,
		IsAutoApplied: true,
	}, "admin")
	require.NoError(t, err)
	assert.True(t, template.IsAutoApplied)

	_, err = svc.CreateScholarshipTemplate(context.Background(), CreateScholarshipTemplateRequest{
		Name: "Merit",
		Type: models.ScholarshipTypeMerit,
	}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}
