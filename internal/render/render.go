// Package render turns a saved document into printable output: an A4 PDF or
// the HTML print view.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/diewo77/go-backoffice/internal/documents"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/view"
)

// ErrMalformedDocument is returned for documents without a type or whose total
// was not recomputed from the items.
var ErrMalformedDocument = errors.New("malformed document")

const totalTolerance = 1e-6

// Check reports whether doc can be rendered.
func Check(doc documents.Document) error {
	if doc.Type != models.TypeInvoice && doc.Type != models.TypeQuotation {
		return fmt.Errorf("%w: unknown type %q", ErrMalformedDocument, doc.Type)
	}
	if want := documents.ComputeTotal(doc.Items); math.Abs(want-doc.Total) > totalTolerance {
		return fmt.Errorf("%w: total %s does not match items (%s)", ErrMalformedDocument,
			documents.FormatAmount(doc.Total), documents.FormatAmount(want))
	}
	return nil
}

// Title is the heading printed on the document.
func Title(doc documents.Document) string {
	if doc.IsInvoice() {
		return "INVOICE"
	}
	return "QUOTATION"
}

// PDF renders doc as a single A4 page (more when the item table overflows).
func PDF(doc documents.Document) ([]byte, error) {
	if err := Check(doc); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetTitle(Title(doc)+" "+doc.Number, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(190, 12, Title(doc), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(190, 6, tr("No. "+doc.Number), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Customer", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(190, 7, tr(doc.CustomerName), "LRB", 1, "L", false, 0, "")
	if doc.IsInvoice() {
		pdf.CellFormat(95, 7, "Date: "+doc.Date, "LB", 0, "L", false, 0, "")
		pdf.CellFormat(95, 7, "Due date: "+doc.DueDate, "RB", 1, "L", false, 0, "")
	} else {
		pdf.CellFormat(190, 7, "Date: "+doc.Date, "LRB", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(100, 7, "Description", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Unit price", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Amount", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, it := range doc.Items {
		pdf.CellFormat(100, 6, tr(it.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, formatQuantity(it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, documents.FormatAmount(it.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, documents.FormatAmount(it.Quantity*it.Price), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(155, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, documents.FormatAmount(doc.Total), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatQuantity(q float64) string {
	if q == math.Trunc(q) {
		return fmt.Sprintf("%.0f", q)
	}
	return fmt.Sprintf("%g", q)
}

// FileName is the download name for the PDF of doc.
func FileName(doc documents.Document) string {
	name := doc.Number
	if name == "" {
		name = string(doc.Type)
	}
	return name + ".pdf"
}

// Print writes the HTML print view of doc.
func Print(w http.ResponseWriter, r *http.Request, doc documents.Document) error {
	if err := Check(doc); err != nil {
		return err
	}
	return view.Render(w, r, "print.html", map[string]any{
		"Title":     Title(doc),
		"Doc":       doc,
		"IsInvoice": doc.IsInvoice(),
	})
}
