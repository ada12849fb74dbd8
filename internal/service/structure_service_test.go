package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

type mockStructureRepo struct {
	structures map[string]*models.FeeStructure
	exists     bool
	created    *models.FeeStructure
	updated    *models.FeeStructure
}

func (m *mockStructureRepo) List(ctx context.Context, filter models.StructureFilter) ([]models.FeeStructure, int, error) {
	return nil, 0, nil
}

func (m *mockStructureRepo) FindByID(ctx context.Context, id string) (*models.FeeStructure, error) {
	if s, ok := m.structures[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStructureRepo) FindByYearAndClass(ctx context.Context, academicYearID, classID string) (*models.FeeStructure, error) {
	for _, s := range m.structures {
		if s.AcademicYearID == academicYearID && s.ClassID == classID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStructureRepo) Exists(ctx context.Context, academicYearID, classID string) (bool, error) {
	return m.exists, nil
}

func (m *mockStructureRepo) Create(ctx context.Context, structure *models.FeeStructure) error {
	if structure.ID == "" {
		structure.ID = fmt.Sprintf("structure-%d", len(m.structures)+1)
	}
	if m.structures == nil {
		m.structures = make(map[string]*models.FeeStructure)
	}
	clone := *structure
	m.structures[structure.ID] = &clone
	m.created = structure
	return nil
}

func (m *mockStructureRepo) Update(ctx context.Context, structure *models.FeeStructure) error {
	clone := *structure
	m.structures[structure.ID] = &clone
	m.updated = structure
	return nil
}

type mockFeeCatalog struct {
	templates []models.FeeTemplate
}

func (m *mockFeeCatalog) ListActive(ctx context.Context) ([]models.FeeTemplate, error) {
	return m.templates, nil
}

type mockScholCatalog struct {
	templates []models.ScholarshipTemplate
}

func (m *mockScholCatalog) ListActive(ctx context.Context) ([]models.ScholarshipTemplate, error) {
	return m.templates, nil
}

func newStructureFixture() (*StructureService, *mockStructureRepo) {
	repo := &mockStructureRepo{}
	fees := &mockFeeCatalog{templates: []models.FeeTemplate{
		{ID: "t-tuition", Name: "Tuition", Category: models.FeeCategoryRegular, DisplayOrder: 1, IsActive: true},
		{ID: "t-transport", Name: "Transport", Category: models.FeeCategoryTransport, DisplayOrder: 2, IsActive: true},
	}}
	schols := &mockScholCatalog{templates: []models.ScholarshipTemplate{
		{ID: "s-merit", Name: "Merit", Type: models.ScholarshipTypeMerit, IsAutoApplied: true, DisplayOrder: 1, IsActive: true},
	}}
	years := &mockYearReader{active: &models.AcademicYear{ID: "y1", Name: "2026/2027", IsActive: true}}
	svc := NewStructureService(repo, fees, schols, years, &mockClassReader{}, dec("100000"), nil, nil)
	return svc, repo
}

func TestStructureServiceCreate(t *testing.T) {
	svc, repo := newStructureFixture()

	amount := dec("1200")
	structure, err := svc.Create(context.Background(), CreateStructureRequest{
		ClassID:  "c1",
		FeeItems: []StructureItemInput{{TemplateID: "t-tuition", Amount: &amount}},
	}, "admin")
	require.NoError(t, err)
	require.NotNil(t, repo.created)

	// One item per active catalog template, selected defaults applied.
	require.Len(t, structure.FeeItems, 2)
	tuition, ok := structure.FeeItemByTemplate("t-tuition")
	require.True(t, ok)
	assert.True(t, tuition.Amount.Equal(dec("1200")))
	assert.True(t, tuition.IsCompulsory, "REGULAR defaults to compulsory")

	transport, ok := structure.FeeItemByTemplate("t-transport")
	require.True(t, ok)
	assert.True(t, transport.Amount.IsZero())
	assert.False(t, transport.IsCompulsory)

	require.Len(t, structure.ScholarshipItems, 1)
	assert.True(t, structure.ScholarshipItems[0].IsAutoApplied)
	assert.True(t, structure.FeeTotals.Total.Equal(dec("1200")))
	assert.Equal(t, "y1", structure.AcademicYearID, "empty year resolves to active")
}

func TestStructureServiceCreateDuplicatePair(t *testing.T) {
	svc, repo := newStructureFixture()
	repo.exists = true

	_, err := svc.Create(context.Background(), CreateStructureRequest{ClassID: "c1"}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestStructureServiceCreateUnknownTemplateInput(t *testing.T) {
	svc, _ := newStructureFixture()

	amount := dec("100")
	_, err := svc.Create(context.Background(), CreateStructureRequest{
		ClassID:  "c1",
		FeeItems: []StructureItemInput{{TemplateID: "ghost", Amount: &amount}},
	}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStructureServiceCreateNegativeAmount(t *testing.T) {
	svc, _ := newStructureFixture()

	bad := dec("-5")
	_, err := svc.Create(context.Background(), CreateStructureRequest{
		ClassID:  "c1",
		FeeItems: []StructureItemInput{{TemplateID: "t-tuition", Amount: &bad}},
	}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStructureServiceCreateAmountAboveCeiling(t *testing.T) {
	svc, _ := newStructureFixture()

	huge := dec("100000.01")
	_, err := svc.Create(context.Background(), CreateStructureRequest{
		ClassID:  "c1",
		FeeItems: []StructureItemInput{{TemplateID: "t-tuition", Amount: &huge}},
	}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStructureServiceUpdate(t *testing.T) {
	svc, repo := newStructureFixture()
	structure, err := svc.Create(context.Background(), CreateStructureRequest{ClassID: "c1"}, "admin")
	require.NoError(t, err)

	amount := dec("900")
	editable := true
	updated, err := svc.Update(context.Background(), structure.ID, UpdateStructureRequest{
		FeeItems: []StructureItemInput{{TemplateID: "t-tuition", Amount: &amount, IsEditableDuringEnrollment: &editable}},
	})
	require.NoError(t, err)
	require.NotNil(t, repo.updated)

	tuition, ok := updated.FeeItemByTemplate("t-tuition")
	require.True(t, ok)
	assert.True(t, tuition.Amount.Equal(dec("900")))
	assert.True(t, tuition.IsEditableDuringEnrollment)
	assert.True(t, updated.FeeTotals.Total.Equal(dec("900")))
}

func TestStructureServiceUpdateUnknownItem(t *testing.T) {
	svc, _ := newStructureFixture()
	structure, err := svc.Create(context.Background(), CreateStructureRequest{ClassID: "c1"}, "admin")
	require.NoError(t, err)

	amount := decimal.NewFromInt(10)
	_, err = svc.Update(context.Background(), structure.ID, UpdateStructureRequest{
		FeeItems: []StructureItemInput{{TemplateID: "ghost", Amount: &amount}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStructureServiceCopy(t *testing.T) {
	svc, repo := newStructureFixture()
	amount := dec("1500")
	source, err := svc.Create(context.Background(), CreateStructureRequest{
		ClassID:  "c1",
		FeeItems: []StructureItemInput{{TemplateID: "t-tuition", Amount: &amount}},
	}, "admin")
	require.NoError(t, err)

	years := &mockYearReader{years: map[string]*models.AcademicYear{
		"y2": {ID: "y2", Name: "2027/2028"},
	}}
	svc.years = years

	clone, err := svc.Copy(context.Background(), source.ID, CopyStructureRequest{
		TargetAcademicYearID: "y2",
		TargetClassID:        "c2",
	}, "admin")
	require.NoError(t, err)

	assert.Equal(t, "y2", clone.AcademicYearID)
	assert.Equal(t, "c2", clone.ClassID)
	assert.Equal(t, "2027/2028", clone.AcademicYear.Name, "snapshots are refreshed, not copied")
	require.Len(t, clone.FeeItems, len(source.FeeItems))
	assert.True(t, clone.FeeTotals.Total.Equal(source.FeeTotals.Total))
	assert.NotEqual(t, source.ID, repo.created.ID)
}
