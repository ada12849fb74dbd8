package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptLine is one allocated fee row on a receipt.
type ReceiptLine struct {
	FeeName string
	Amount  string
	Balance string
}

// ReceiptData carries everything needed to print a payment receipt. All values
// come from the payment's denormalized snapshots so a later rename of the
// student or class never changes an already-issued receipt.
type ReceiptData struct {
	SchoolName    string
	ReceiptNo     string
	PaymentDate   string
	StudentName   string
	AdmissionNo   string
	ClassName     string
	AcademicYear  string
	PaymentMethod string
	CollectedBy   string
	Lines         []ReceiptLine
	TotalAmount   string
	Remarks       string
	Reversed      bool
}

// ReceiptRenderer prints fee receipts as A5 PDFs.
type ReceiptRenderer struct {
	schoolName string
}

// NewReceiptRenderer constructs a receipt renderer with a fixed school header.
func NewReceiptRenderer(schoolName string) *ReceiptRenderer {
	if schoolName == "" {
		schoolName = "Fee Receipt"
	}
	return &ReceiptRenderer{schoolName: schoolName}
}

// Render produces the receipt PDF bytes.
func (r *ReceiptRenderer) Render(data ReceiptData) ([]byte, error) {
	if data.ReceiptNo == "" {
		return nil, fmt.Errorf("receipt requires a receipt number")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	title := data.SchoolName
	if title == "" {
		title = r.schoolName
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, "Fee Receipt", "", 1, "C", false, 0, "")
	if data.Reversed {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(200, 0, 0)
		pdf.CellFormat(0, 6, "REVERSED", "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 9)
	left := [][2]string{
		{"Receipt No", data.ReceiptNo},
		{"Student", data.StudentName},
		{"Class", data.ClassName},
	}
	right := [][2]string{
		{"Date", data.PaymentDate},
		{"Admission No", data.AdmissionNo},
		{"Academic Year", data.AcademicYear},
	}
	for i := range left {
		pdf.CellFormat(16, 5, left[i][0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(48, 5, ": "+left[i][1], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(24, 5, right[i][0], "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(0, 5, ": "+right[i][1], "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(68, 7, "Fee", "1", 0, "", false, 0, "")
	pdf.CellFormat(30, 7, "Amount", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Balance", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, line := range data.Lines {
		pdf.CellFormat(68, 6, line.FeeName, "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 6, line.Amount, "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, line.Balance, "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(68, 7, "Total", "1", 0, "", false, 0, "")
	pdf.CellFormat(30, 7, data.TotalAmount, "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "", "1", 1, "", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Method: %s", data.PaymentMethod), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Collected by: %s", data.CollectedBy), "", 1, "", false, 0, "")
	if data.Remarks != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Remarks: %s", data.Remarks), "", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
