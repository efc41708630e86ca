package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"description", "amount"},
		Rows: []map[string]string{
			{"description": "Tuition, Term 1", "amount": "100.00"},
			{"description": "Lab fee"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "description,amount\n\"Tuition, Term 1\",100.00\nLab fee,\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-9ABCDEF0", InvoiceNumber("4b1c2d3e-0000-4000-8000-00009abcdef0"))
	assert.Equal(t, "INV-AB12", InvoiceNumber("ab12"))
}

func TestInvoiceRendererRender(t *testing.T) {
	pdf, err := NewInvoiceRenderer().Render(Invoice{
		Number:      "INV-ABCDEF12",
		StudentName: "Rina",
		Description: "Tuition - Installment 1/12",
		Amount:      "$100.00",
		IssueDate:   "2024-01-01",
		DueDate:     "2024-01-15",
		PaidDate:    "2024-01-10",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	_, err = NewInvoiceRenderer().Render(Invoice{})
	assert.Error(t, err)
}
