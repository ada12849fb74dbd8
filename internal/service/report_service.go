package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-fee-api/internal/models"
	appErrors "github.com/noah-isme/sma-fee-api/pkg/errors"
	"github.com/noah-isme/sma-fee-api/pkg/export"
)

type reportRepository interface {
	CollectionSummary(ctx context.Context, from, to time.Time, groupBy models.CollectionGroupBy) ([]models.CollectionSummaryRow, error)
	Outstanding(ctx context.Context, classID string) ([]models.OutstandingRow, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ReportService aggregates the payment ledger and enrollment dues into
// reports, with short-lived caching for the expensive aggregations.
type ReportService struct {
	payments reportRepository
	cache    reportCache
	cacheTTL time.Duration
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewReportService constructs ReportService. cache may be nil to disable
// report caching.
func NewReportService(payments reportRepository, cache reportCache, cacheTTL time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ReportService{
		payments: payments,
		cache:    cache,
		cacheTTL: cacheTTL,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// CollectionSummary aggregates completed payments in [from, to] by the given
// dimension. Reversal entries carry negative amounts, so reversed payments
// net out of the totals.
func (s *ReportService) CollectionSummary(ctx context.Context, from, to time.Time, groupBy models.CollectionGroupBy) (*models.CollectionReport, error) {
	if !groupBy.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grouping dimension")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range end precedes start")
	}

	key := fmt.Sprintf("report:collection:%s:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"), groupBy)
	if s.cache != nil {
		var cached models.CollectionReport
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	rows, err := s.payments.CollectionSummary(ctx, from, to, groupBy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate collections")
	}

	report := &models.CollectionReport{
		From:        from,
		To:          to,
		GroupBy:     groupBy,
		Rows:        rows,
		GrandTotal:  decimal.Zero,
		GeneratedAt: time.Now(),
	}
	for _, row := range rows {
		report.GrandTotal = report.GrandTotal.Add(row.TotalAmount)
		report.GrandCount += row.PaymentCount
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache collection report", zap.Error(err))
		}
	}
	return report, nil
}

// Outstanding lists enrollments that still owe money, optionally narrowed to
// one class.
func (s *ReportService) Outstanding(ctx context.Context, classID string) ([]models.OutstandingRow, error) {
	rows, err := s.payments.Outstanding(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load outstanding dues")
	}
	return rows, nil
}

// ExportCollectionCSV renders the collection summary as CSV bytes.
func (s *ReportService) ExportCollectionCSV(ctx context.Context, from, to time.Time, groupBy models.CollectionGroupBy) ([]byte, error) {
	report, err := s.CollectionSummary(ctx, from, to, groupBy)
	if err != nil {
		return nil, err
	}
	out, err := s.csv.Render(collectionDataset(report))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return out, nil
}

// ExportCollectionPDF renders the collection summary as a tabular PDF.
func (s *ReportService) ExportCollectionPDF(ctx context.Context, from, to time.Time, groupBy models.CollectionGroupBy) ([]byte, error) {
	report, err := s.CollectionSummary(ctx, from, to, groupBy)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Collections %s to %s", from.Format("02 Jan 2006"), to.Format("02 Jan 2006"))
	out, err := s.pdf.Render(collectionDataset(report), title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return out, nil
}

// ExportOutstandingCSV renders the outstanding dues list as CSV bytes.
func (s *ReportService) ExportOutstandingCSV(ctx context.Context, classID string) ([]byte, error) {
	rows, err := s.Outstanding(ctx, classID)
	if err != nil {
		return nil, err
	}
	out, err := s.csv.Render(outstandingDataset(rows))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return out, nil
}

func collectionDataset(report *models.CollectionReport) export.Dataset {
	headers := []string{"Group", "Payments", "Amount"}
	rows := make([]map[string]string, 0, len(report.Rows)+1)
	for _, row := range report.Rows {
		rows = append(rows, map[string]string{
			"Group":    row.GroupKey,
			"Payments": fmt.Sprintf("%d", row.PaymentCount),
			"Amount":   row.TotalAmount.StringFixed(2),
		})
	}
	rows = append(rows, map[string]string{
		"Group":    "TOTAL",
		"Payments": fmt.Sprintf("%d", report.GrandCount),
		"Amount":   report.GrandTotal.StringFixed(2),
	})
	return export.Dataset{Headers: headers, Numeric: []string{"Payments", "Amount"}, Rows: rows}
}

func outstandingDataset(rows []models.OutstandingRow) export.Dataset {
	headers := []string{"Student", "Admission No", "Class", "Status", "Net Total", "Paid", "Due"}
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]string{
			"Student":      row.StudentName,
			"Admission No": row.AdmissionNo,
			"Class":        row.ClassName,
			"Status":       string(row.Status),
			"Net Total":    row.NetTotal.StringFixed(2),
			"Paid":         row.Paid.StringFixed(2),
			"Due":          row.Due.StringFixed(2),
		})
	}
	return export.Dataset{Headers: headers, Numeric: []string{"Net Total", "Paid", "Due"}, Rows: out}
}
