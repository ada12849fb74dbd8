package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionGroupBy selects the grouping dimension for collection summaries.
type CollectionGroupBy string

// Supported groupings.
const (
	GroupByMethod    CollectionGroupBy = "method"
	GroupByCollector CollectionGroupBy = "collector"
	GroupByClass     CollectionGroupBy = "class"
	GroupByDay       CollectionGroupBy = "day"
)

// Valid reports whether the grouping is supported.
func (g CollectionGroupBy) Valid() bool {
	switch g {
	case GroupByMethod, GroupByCollector, GroupByClass, GroupByDay:
		return true
	}
	return false
}

// CollectionSummaryRow is one aggregated row of the collection report.
type CollectionSummaryRow struct {
	GroupKey     string          `db:"group_key" json:"group_key"`
	PaymentCount int             `db:"payment_count" json:"payment_count"`
	TotalAmount  decimal.Decimal `db:"total_amount" json:"total_amount"`
}

// CollectionReport is the full aggregation result for a date range.
type CollectionReport struct {
	From        time.Time              `json:"from"`
	To          time.Time              `json:"to"`
	GroupBy     CollectionGroupBy      `json:"group_by"`
	Rows        []CollectionSummaryRow `json:"rows"`
	GrandTotal  decimal.Decimal        `json:"grand_total"`
	GrandCount  int                    `json:"grand_count"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// OutstandingRow is one enrollment's dues in the outstanding report.
type OutstandingRow struct {
	EnrollmentID string          `db:"enrollment_id" json:"enrollment_id"`
	StudentName  string          `db:"student_name" json:"student_name"`
	AdmissionNo  string          `db:"admission_no" json:"admission_no"`
	ClassName    string          `db:"class_name" json:"class_name"`
	Status       FeeStatusCode   `db:"status" json:"status"`
	NetTotal     decimal.Decimal `db:"net_total" json:"net_total"`
	Paid         decimal.Decimal `db:"paid" json:"paid"`
	Due          decimal.Decimal `db:"due" json:"due"`
}

// RecalcFailure records one enrollment that failed during a batch run.
type RecalcFailure struct {
	EnrollmentID string `json:"enrollment_id"`
	Error        string `json:"error"`
}

// RecalcBatchResult reports a batch recalculation outcome. A failed item never
// aborts the rest of the batch.
type RecalcBatchResult struct {
	Succeeded []string        `json:"succeeded"`
	Failed    []RecalcFailure `json:"failed"`
}

// RecalcJobStatus tracks an asynchronous school-wide recalculation.
type RecalcJobStatus struct {
	JobID       string     `json:"job_id"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Failed      int        `json:"failed"`
	Done        bool       `json:"done"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
