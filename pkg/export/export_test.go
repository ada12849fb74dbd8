package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectionsDataset() Dataset {
	return Dataset{
		Headers: []string{"Group", "Payments", "Amount"},
		Numeric: []string{"Payments", "Amount"},
		Rows: []map[string]string{
			{"Group": "CASH", "Payments": "3", "Amount": "1500.00"},
			{"Group": "UPI", "Payments": "2", "Amount": "750.50"},
			{"Group": "TOTAL", "Payments": "5", "Amount": "2250.50"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(collectionsDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Group,Payments,Amount", lines[0])
	assert.Equal(t, "CASH,3,1500.00", lines[1])
	assert.Equal(t, "TOTAL,5,2250.50", lines[3])
}

func TestCSVExporterMissingColumnRendersEmpty(t *testing.T) {
	data := Dataset{
		Headers: []string{"Group", "Amount"},
		Rows:    []map[string]string{{"Group": "CASH"}},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Contains(t, string(out), "CASH,\n")
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(collectionsDataset(), "Collections 01 Jul 2026 to 31 Jul 2026")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "title")
	assert.Error(t, err)
}

func TestReceiptRendererRender(t *testing.T) {
	renderer := NewReceiptRenderer("SMA Harapan")
	out, err := renderer.Render(ReceiptData{
		ReceiptNo:     "RCP-2026-2027-000001",
		PaymentDate:   "15 Jul 2026",
		StudentName:   "Budi Santoso",
		AdmissionNo:   "ADM-0042",
		ClassName:     "X-A",
		AcademicYear:  "2026/2027",
		PaymentMethod: "CASH",
		CollectedBy:   "accountant",
		Lines: []ReceiptLine{
			{FeeName: "Tuition", Amount: "500.00", Balance: "500.00"},
		},
		TotalAmount: "500.00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestReceiptRendererRequiresReceiptNo(t *testing.T) {
	_, err := NewReceiptRenderer("").Render(ReceiptData{})
	assert.Error(t, err)
}
