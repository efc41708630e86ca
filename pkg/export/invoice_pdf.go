package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Invoice is the presentational content of a paid bill receipt. Amounts and dates arrive preformatted.
type Invoice struct {
	Number           string
	InstitutionName  string
	InstitutionEmail string
	StudentName      string
	StudentEmail     string
	ParentName       string
	Description      string
	Amount           string
	IssueDate        string
	DueDate          string
	PaidDate         string
}

// InvoiceRenderer renders invoices into single page A4 PDFs.
type InvoiceRenderer struct{}

// NewInvoiceRenderer constructs a renderer.
func NewInvoiceRenderer() *InvoiceRenderer {
	return &InvoiceRenderer{}
}

// Render produces the PDF bytes for inv.
func (r *InvoiceRenderer) Render(inv Invoice) ([]byte, error) {
	if inv.Number == "" {
		return nil, fmt.Errorf("invoice number required")
	}
	institution := inv.InstitutionName
	if institution == "" {
		institution = "Educational Institution"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.Number, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(37, 99, 235)
	pdf.CellFormat(110, 10, tr(institution), "", 0, "L", false, 0, "")
	pdf.SetTextColor(30, 41, 59)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(70, 10, inv.Number, "", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(110, 6, tr(inv.InstitutionEmail), "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 6, "Issue Date: "+inv.IssueDate, "", 1, "R", false, 0, "")
	pdf.CellFormat(110, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 6, "Due Date: "+inv.DueDate, "", 1, "R", false, 0, "")
	if inv.PaidDate != "" {
		pdf.CellFormat(110, 6, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, "Paid Date: "+inv.PaidDate, "", 1, "R", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(110, 7, "Bill To:", "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 7, "Payment Status:", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(110, 6, tr(inv.StudentName), "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(16, 185, 129)
	pdf.CellFormat(70, 6, "PAID", "", 1, "L", false, 0, "")
	pdf.SetTextColor(30, 41, 59)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(110, 6, tr(inv.StudentEmail), "", 1, "L", false, 0, "")
	if inv.ParentName != "" {
		pdf.CellFormat(110, 6, tr("Parent: "+inv.ParentName), "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	widths := []float64{100, 40, 40}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(241, 245, 249)
	for i, header := range []string{"Description", "Due Date", "Amount"} {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(widths[0], 8, tr(inv.Description), "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[1], 8, inv.DueDate, "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[2], 8, tr(inv.Amount), "1", 1, "R", false, 0, "")
	pdf.Ln(4)

	pdf.CellFormat(140, 7, "Subtotal:", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, tr(inv.Amount), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(140, 8, "Total:", "T", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, tr(inv.Amount), "T", 1, "R", false, 0, "")
	pdf.Ln(14)

	pdf.SetFont("Arial", "I", 9)
	pdf.SetTextColor(100, 116, 139)
	pdf.CellFormat(0, 5, "Thank you for your payment!", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, "This is a computer-generated invoice and does not require a signature.", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// InvoiceNumber derives the printable number from a bill id: INV- plus its last eight characters upper-cased.
func InvoiceNumber(billID string) string {
	id := billID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return "INV-" + strings.ToUpper(id)
}
