package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
)

type mockReportRepo struct {
	rows        []models.CollectionSummaryRow
	outstanding []models.OutstandingRow
	calls       int
}

func (m *mockReportRepo) CollectionSummary(ctx context.Context, from, to time.Time, groupBy models.CollectionGroupBy) ([]models.CollectionSummaryRow, error) {
	m.calls++
	return m.rows, nil
}

func (m *mockReportRepo) Outstanding(ctx context.Context, classID string) ([]models.OutstandingRow, error) {
	return m.outstanding, nil
}

func newReportFixture() (*ReportService, *mockReportRepo, *mockStatusStore) {
	repo := &mockReportRepo{
		rows: []models.CollectionSummaryRow{
			{GroupKey: "CASH", PaymentCount: 3, TotalAmount: dec("1500")},
			{GroupKey: "UPI", PaymentCount: 2, TotalAmount: dec("750.50")},
		},
		outstanding: []models.OutstandingRow{
			{EnrollmentID: "e1", StudentName: "Putri Lestari", AdmissionNo: "ADM-001", ClassName: "X-A", Status: models.FeeStatusPartial, NetTotal: dec("1250"), Paid: dec("600"), Due: dec("650")},
		},
	}
	cache := &mockStatusStore{}
	svc := NewReportService(repo, cache, time.Minute, nil)
	return svc, repo, cache
}

func TestReportServiceCollectionSummary(t *testing.T) {
	svc, _, _ := newReportFixture()
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	report, err := svc.CollectionSummary(context.Background(), from, to, models.GroupByMethod)
	require.NoError(t, err)
	assert.Len(t, report.Rows, 2)
	assert.True(t, report.GrandTotal.Equal(dec("2250.50")))
	assert.Equal(t, 5, report.GrandCount)
}

func TestReportServiceCollectionSummaryCached(t *testing.T) {
	svc, repo, _ := newReportFixture()
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	_, err := svc.CollectionSummary(context.Background(), from, to, models.GroupByMethod)
	require.NoError(t, err)
	_, err = svc.CollectionSummary(context.Background(), from, to, models.GroupByMethod)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls, "second read comes from cache")

	// A different grouping is a different cache key.
	_, err = svc.CollectionSummary(context.Background(), from, to, models.GroupByDay)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestReportServiceCollectionSummaryValidation(t *testing.T) {
	svc, _, _ := newReportFixture()
	from := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.CollectionSummary(context.Background(), from, to, models.GroupByMethod)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CollectionSummary(context.Background(), to, from, models.CollectionGroupBy("week"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceExportCollectionCSV(t *testing.T) {
	svc, _, _ := newReportFixture()
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	out, err := svc.ExportCollectionCSV(context.Background(), from, to, models.GroupByMethod)
	require.NoError(t, err)
	body := string(out)
	assert.True(t, strings.HasPrefix(body, "Group,Payments,Amount"))
	assert.Contains(t, body, "CASH,3,1500.00")
	assert.Contains(t, body, "TOTAL,5,2250.50")
}

func TestReportServiceExportCollectionPDF(t *testing.T) {
	svc, _, _ := newReportFixture()
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	out, err := svc.ExportCollectionPDF(context.Background(), from, to, models.GroupByMethod)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestReportServiceOutstandingCSV(t *testing.T) {
	svc, _, _ := newReportFixture()

	out, err := svc.ExportOutstandingCSV(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "Putri Lestari")
	assert.Contains(t, string(out), "650.00")
}
