package models

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how money was received.
type PaymentMethod string

// Accepted payment methods.
const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodUPI          PaymentMethod = "UPI"
	PaymentMethodCard         PaymentMethod = "CARD"
)

// Valid reports whether the method is a known value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheque, PaymentMethodUPI, PaymentMethodCard:
		return true
	}
	return false
}

// PaymentStatus tracks the ledger entry kind. A reversal is itself an
// append-only entry with negated amounts; summing all entries therefore
// cancels a reversed payment without touching the original row.
type PaymentStatus string

// Payment statuses.
const (
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusReversed  PaymentStatus = "REVERSED"
	PaymentStatusReversal  PaymentStatus = "REVERSAL"
)

// PaymentItem allocates part of a payment to one student fee line. FeeBalance
// is the line's remaining due immediately after this payment was applied, a
// point-in-time snapshot printed on receipts.
type PaymentItem struct {
	FeeID           string          `json:"fee_id"`
	FeeTemplateID   string          `json:"fee_template_id"`
	FeeTemplateName string          `json:"fee_template_name"`
	Amount          decimal.Decimal `json:"amount"`
	FeeBalance      decimal.Decimal `json:"fee_balance"`
}

// PaymentItems is the ordered allocation list, stored as JSONB.
type PaymentItems []PaymentItem

// Value implements driver.Valuer for JSONB storage.
func (p PaymentItems) Value() (driver.Value, error) { return jsonbValue(p) }

// Scan implements sql.Scanner for JSONB storage.
func (p *PaymentItems) Scan(src interface{}) error { return jsonbScan(src, p) }

// Sum returns the aggregate of item amounts.
func (p PaymentItems) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p {
		total = total.Add(item.Amount)
	}
	return total
}

// Payment is one append-only ledger entry. Rows are never mutated after
// creation except for flipping status to REVERSED when a linked reversal
// entry is appended.
type Payment struct {
	ID             string               `db:"id" json:"id"`
	ReceiptNo      string               `db:"receipt_no" json:"receipt_no"`
	EnrollmentID   string               `db:"enrollment_id" json:"enrollment_id"`
	AcademicYearID string               `db:"academic_year_id" json:"academic_year_id"`
	TotalAmount    decimal.Decimal      `db:"total_amount" json:"total_amount"`
	PaymentDate    time.Time            `db:"payment_date" json:"payment_date"`
	Method         PaymentMethod        `db:"method" json:"method"`
	Status         PaymentStatus        `db:"status" json:"status"`
	CollectedBy    string               `db:"collected_by" json:"collected_by"`
	Remarks        string               `db:"remarks" json:"remarks,omitempty"`
	ReversalOf     *string              `db:"reversal_of" json:"reversal_of,omitempty"`
	ReversedBy     *string              `db:"reversed_by" json:"reversed_by,omitempty"`
	Student        StudentSnapshot      `db:"student" json:"student"`
	AcademicYear   AcademicYearSnapshot `db:"academic_year" json:"academic_year"`
	Items          PaymentItems         `db:"items" json:"items"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	EnrollmentID   string
	AcademicYearID string
	Method         PaymentMethod
	CollectedBy    string
	DateFrom       *time.Time
	DateTo         *time.Time
	Page           int
	PageSize       int
}

// ReceiptSequence is the per-academic-year monotonic receipt counter. It is
// only ever advanced by an atomic increment.
type ReceiptSequence struct {
	AcademicYearID string `db:"academic_year_id" json:"academic_year_id"`
	LastNumber     int64  `db:"last_number" json:"last_number"`
}
