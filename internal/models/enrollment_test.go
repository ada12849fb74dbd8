package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func testEnrollment() *StudentEnrollment {
	return &StudentEnrollment{
		ID: "e1",
		Fees: StudentFees{
			{FeeItemID: "f1", TemplateID: "t1", TemplateName: "Tuition", Amount: dec("1000"), OriginalAmount: dec("1000"), AmountPaid: decimal.Zero, IsCompulsory: true, Order: 1},
			{FeeItemID: "f2", TemplateID: "t2", TemplateName: "Transport", Amount: dec("300"), OriginalAmount: dec("300"), AmountPaid: decimal.Zero, Order: 2},
		},
		Scholarships: StudentScholarships{
			{ScholarshipItemID: "s1", TemplateID: "st1", TemplateName: "Merit", Amount: dec("200"), IsActive: true},
		},
		IsActive: true,
	}
}

func TestRecomputeTotals(t *testing.T) {
	e := testEnrollment()
	e.RecomputeTotals()

	assert.True(t, e.Totals.Fees.Total.Equal(dec("1300")))
	assert.True(t, e.Totals.Scholarships.Applied.Equal(dec("200")))
	assert.True(t, e.Totals.NetAmount.Total.Equal(dec("1100")))
	assert.True(t, e.Totals.NetAmount.Due.Equal(dec("1100")))
	assert.Equal(t, FeeStatusOverdue, e.FeeStatus.Status)
}

func TestRecomputeTotalsPartialThenPaid(t *testing.T) {
	e := testEnrollment()
	e.Fees[0].AmountPaid = dec("400")
	e.RecomputeTotals()
	assert.Equal(t, FeeStatusPartial, e.FeeStatus.Status)
	assert.True(t, e.Totals.NetAmount.Due.Equal(dec("700")))
	assert.True(t, e.Fees[0].AmountDue.Equal(dec("600")))

	e.Fees[0].AmountPaid = dec("1000")
	e.Fees[1].AmountPaid = dec("100")
	e.RecomputeTotals()
	assert.Equal(t, FeeStatusPaid, e.FeeStatus.Status)
	assert.True(t, e.Totals.NetAmount.Due.IsZero())
}

func TestRecomputeTotalsIdempotent(t *testing.T) {
	e := testEnrollment()
	e.Fees[0].AmountPaid = dec("250")
	e.RecomputeTotals()
	first := e.Totals
	firstStatus := e.FeeStatus.Status
	e.RecomputeTotals()
	assert.Equal(t, first, e.Totals)
	assert.Equal(t, firstStatus, e.FeeStatus.Status)
}

func TestRecomputeTotalsClampsOverpaidLineDue(t *testing.T) {
	e := testEnrollment()
	e.Fees[0].AmountPaid = dec("1200")
	e.RecomputeTotals()
	assert.True(t, e.Fees[0].AmountDue.IsZero())
}

func TestRecomputeTotalsPreservesWaived(t *testing.T) {
	e := testEnrollment()
	e.FeeStatus.Status = FeeStatusWaived
	e.RecomputeTotals()
	assert.Equal(t, FeeStatusWaived, e.FeeStatus.Status)

	e.Fees[0].AmountPaid = dec("1000")
	e.Fees[1].AmountPaid = dec("300")
	e.RecomputeTotals()
	assert.Equal(t, FeeStatusWaived, e.FeeStatus.Status)
}

func TestRecomputeTotalsIgnoresInactiveScholarships(t *testing.T) {
	e := testEnrollment()
	e.Scholarships[0].IsActive = false
	e.RecomputeTotals()
	assert.True(t, e.Totals.Scholarships.Applied.IsZero())
	assert.True(t, e.Totals.NetAmount.Total.Equal(dec("1300")))
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, FeeStatusPaid, deriveStatus(decimal.Zero, dec("100")))
	assert.Equal(t, FeeStatusPaid, deriveStatus(decimal.Zero, decimal.Zero))
	assert.Equal(t, FeeStatusPartial, deriveStatus(dec("50"), dec("50")))
	assert.Equal(t, FeeStatusOverdue, deriveStatus(dec("100"), decimal.Zero))
}

func TestSortLines(t *testing.T) {
	e := &StudentEnrollment{
		Fees: StudentFees{
			{FeeItemID: "f1", TemplateName: "zeta", Order: 2},
			{FeeItemID: "f2", TemplateName: "Alpha", Order: 2},
			{FeeItemID: "f3", TemplateName: "Beta", IsCompulsory: true, Order: 5},
		},
		Scholarships: StudentScholarships{
			{ScholarshipItemID: "s1", TemplateName: "Manual", Order: 1},
			{ScholarshipItemID: "s2", TemplateName: "Auto", IsAutoApplied: true, Order: 2},
		},
	}
	e.SortLines()

	assert.Equal(t, "f3", e.Fees[0].FeeItemID)
	assert.Equal(t, "f2", e.Fees[1].FeeItemID)
	assert.Equal(t, "f1", e.Fees[2].FeeItemID)
	assert.Equal(t, "s2", e.Scholarships[0].ScholarshipItemID)
}

func TestStudentFeeIsCustomized(t *testing.T) {
	line := StudentFee{Amount: dec("500"), OriginalAmount: dec("500")}
	assert.False(t, line.IsCustomized())
	line.Amount = dec("450")
	assert.True(t, line.IsCustomized())
}

func TestStudentFeesByFeeItemID(t *testing.T) {
	fees := StudentFees{{FeeItemID: "a"}, {FeeItemID: "b"}}
	assert.Equal(t, 1, fees.ByFeeItemID("b"))
	assert.Equal(t, -1, fees.ByFeeItemID("missing"))
}

func TestEnrollmentScanRoundTrip(t *testing.T) {
	e := testEnrollment()
	e.FeeStatus = FeeStatus{Status: FeeStatusPartial, OverdueAmount: dec("100")}
	now := time.Now()
	e.FeeStatus.LastPaymentDate = &now

	raw, err := e.Fees.Value()
	assert.NoError(t, err)
	var fees StudentFees
	assert.NoError(t, fees.Scan(raw))
	assert.Len(t, fees, 2)
	assert.True(t, fees[0].Amount.Equal(dec("1000")))
}
