package models

import (
	"database/sql/driver"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StudentFee is one per-student fee line, materialized from a structure's
// FeeItem at enrollment time. Amount may diverge from OriginalAmount only when
// the parent item was editable during enrollment; OriginalAmount always keeps
// the structure default as the reset reference.
type StudentFee struct {
	FeeItemID        string          `json:"fee_item_id"`
	TemplateID       string          `json:"template_id"`
	TemplateName     string          `json:"template_name"`
	TemplateCategory FeeCategory     `json:"template_category"`
	Amount           decimal.Decimal `json:"amount"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	IsCompulsory     bool            `json:"is_compulsory"`
	Order            int             `json:"order"`
}

// IsCustomized reports whether the line's amount was overridden at enrollment.
func (f StudentFee) IsCustomized() bool {
	return !f.Amount.Equal(f.OriginalAmount)
}

// StudentFees is the ordered per-student fee line list, stored as JSONB.
type StudentFees []StudentFee

// Value implements driver.Valuer for JSONB storage.
func (f StudentFees) Value() (driver.Value, error) { return jsonbValue(f) }

// Scan implements sql.Scanner for JSONB storage.
func (f *StudentFees) Scan(src interface{}) error { return jsonbScan(src, f) }

// ByFeeItemID returns the index of the line with the given id, or -1.
func (f StudentFees) ByFeeItemID(id string) int {
	for i := range f {
		if f[i].FeeItemID == id {
			return i
		}
	}
	return -1
}

// StudentScholarship is one per-student scholarship line.
type StudentScholarship struct {
	ScholarshipItemID string          `json:"scholarship_item_id"`
	TemplateID        string          `json:"template_id"`
	TemplateName      string          `json:"template_name"`
	TemplateType      ScholarshipType `json:"template_type"`
	Amount            decimal.Decimal `json:"amount"`
	OriginalAmount    decimal.Decimal `json:"original_amount"`
	IsAutoApplied     bool            `json:"is_auto_applied"`
	AppliedDate       time.Time       `json:"applied_date"`
	AppliedBy         string          `json:"applied_by"`
	IsActive          bool            `json:"is_active"`
	Order             int             `json:"order"`
}

// IsCustomized reports whether the line's amount was overridden at enrollment.
func (s StudentScholarship) IsCustomized() bool {
	return !s.Amount.Equal(s.OriginalAmount)
}

// StudentScholarships is the per-student scholarship list, stored as JSONB.
type StudentScholarships []StudentScholarship

// Value implements driver.Valuer for JSONB storage.
func (s StudentScholarships) Value() (driver.Value, error) { return jsonbValue(s) }

// Scan implements sql.Scanner for JSONB storage.
func (s *StudentScholarships) Scan(src interface{}) error { return jsonbScan(src, s) }

// AmountSummary is a total/paid/due triple.
type AmountSummary struct {
	Total decimal.Decimal `json:"total"`
	Paid  decimal.Decimal `json:"paid"`
	Due   decimal.Decimal `json:"due"`
}

// ScholarshipSummary aggregates active scholarship amounts.
type ScholarshipSummary struct {
	Applied decimal.Decimal `json:"applied"`
}

// EnrollmentTotals aggregates an enrollment's fee and scholarship lines.
// Every field is derived; the ledger, not these numbers, is the source of truth.
type EnrollmentTotals struct {
	Fees         AmountSummary      `json:"fees"`
	Scholarships ScholarshipSummary `json:"scholarships"`
	NetAmount    AmountSummary      `json:"net_amount"`
}

// Value implements driver.Valuer for JSONB storage.
func (t EnrollmentTotals) Value() (driver.Value, error) { return jsonbValue(t) }

// Scan implements sql.Scanner for JSONB storage.
func (t *EnrollmentTotals) Scan(src interface{}) error { return jsonbScan(src, t) }

// FeeStatusCode is the derived payment state of an enrollment.
type FeeStatusCode string

// Fee status values. WAIVED is a manual admin override and is never derived.
const (
	FeeStatusPaid    FeeStatusCode = "PAID"
	FeeStatusPartial FeeStatusCode = "PARTIAL"
	FeeStatusOverdue FeeStatusCode = "OVERDUE"
	FeeStatusWaived  FeeStatusCode = "WAIVED"
)

// FeeStatus summarizes the enrollment's payment state.
type FeeStatus struct {
	Status          FeeStatusCode   `json:"status"`
	LastPaymentDate *time.Time      `json:"last_payment_date,omitempty"`
	NextDueDate     *time.Time      `json:"next_due_date,omitempty"`
	OverdueAmount   decimal.Decimal `json:"overdue_amount"`
}

// Value implements driver.Valuer for JSONB storage.
func (s FeeStatus) Value() (driver.Value, error) { return jsonbValue(s) }

// Scan implements sql.Scanner for JSONB storage.
func (s *FeeStatus) Scan(src interface{}) error { return jsonbScan(src, s) }

// StudentEnrollment is one student's participation and financial record for
// one academic year. Unique on (student_id, academic_year_id).
type StudentEnrollment struct {
	ID             string               `db:"id" json:"id"`
	StudentID      string               `db:"student_id" json:"student_id"`
	AcademicYearID string               `db:"academic_year_id" json:"academic_year_id"`
	ClassID        string               `db:"class_id" json:"class_id"`
	FeeStructureID string               `db:"fee_structure_id" json:"fee_structure_id"`
	Student        StudentSnapshot      `db:"student" json:"student"`
	AcademicYear   AcademicYearSnapshot `db:"academic_year" json:"academic_year"`
	Class          ClassSnapshot        `db:"class" json:"class"`
	Fees           StudentFees          `db:"fees" json:"fees"`
	Scholarships   StudentScholarships  `db:"scholarships" json:"scholarships"`
	Totals         EnrollmentTotals     `db:"totals" json:"totals"`
	FeeStatus      FeeStatus            `db:"fee_status" json:"fee_status"`
	Version        int                  `db:"version" json:"version"`
	IsActive       bool                 `db:"is_active" json:"is_active"`
	CreatedBy      string               `db:"created_by" json:"created_by"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

// RecomputeTotals rederives per-line dues, the totals block and the fee status
// from the current line amounts. It is referentially transparent: running it
// twice yields identical results. A manual WAIVED status survives recompute.
func (e *StudentEnrollment) RecomputeTotals() {
	fees := AmountSummary{Total: decimal.Zero, Paid: decimal.Zero, Due: decimal.Zero}
	for i := range e.Fees {
		line := &e.Fees[i]
		line.AmountDue = maxZero(line.Amount.Sub(line.AmountPaid))
		fees.Total = fees.Total.Add(line.Amount)
		fees.Paid = fees.Paid.Add(line.AmountPaid)
		fees.Due = fees.Due.Add(line.AmountDue)
	}

	applied := decimal.Zero
	for _, sch := range e.Scholarships {
		if sch.IsActive {
			applied = applied.Add(sch.Amount)
		}
	}

	netTotal := fees.Total.Sub(applied)
	net := AmountSummary{
		Total: netTotal,
		Paid:  fees.Paid,
		Due:   maxZero(netTotal.Sub(fees.Paid)),
	}

	e.Totals = EnrollmentTotals{
		Fees:         fees,
		Scholarships: ScholarshipSummary{Applied: applied},
		NetAmount:    net,
	}

	if e.FeeStatus.Status != FeeStatusWaived {
		e.FeeStatus.Status = deriveStatus(net.Due, fees.Paid)
	}
	e.FeeStatus.OverdueAmount = net.Due
}

// deriveStatus is the pure status function of net due and paid amounts.
func deriveStatus(netDue, paid decimal.Decimal) FeeStatusCode {
	switch {
	case netDue.IsZero():
		return FeeStatusPaid
	case paid.IsPositive():
		return FeeStatusPartial
	default:
		return FeeStatusOverdue
	}
}

// SortLines applies the presentation order: compulsory fees first, then item
// order, then name (case-insensitive); scholarships auto-applied first.
func (e *StudentEnrollment) SortLines() {
	sort.SliceStable(e.Fees, func(i, j int) bool {
		a, b := e.Fees[i], e.Fees[j]
		if a.IsCompulsory != b.IsCompulsory {
			return a.IsCompulsory
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return strings.ToLower(a.TemplateName) < strings.ToLower(b.TemplateName)
	})
	sort.SliceStable(e.Scholarships, func(i, j int) bool {
		a, b := e.Scholarships[i], e.Scholarships[j]
		if a.IsAutoApplied != b.IsAutoApplied {
			return a.IsAutoApplied
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return strings.ToLower(a.TemplateName) < strings.ToLower(b.TemplateName)
	})
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// EnrollmentFilter narrows enrollment listings.
type EnrollmentFilter struct {
	StudentID      string
	AcademicYearID string
	ClassID        string
	Status         FeeStatusCode
	IsActive       *bool
	Page           int
	PageSize       int
}
