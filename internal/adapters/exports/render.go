package exports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// Render encodes the report in the requested format. now stamps the PDF
// footer and creation date.
func Render(report Report, format Format, now time.Time) ([]byte, error) {
	switch format {
	case FormatPDF:
		return renderPDF(report, now)
	case FormatCSV:
		return renderCSV(report)
	case FormatJSON:
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
}

func renderCSV(report Report) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(report.Columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(report.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Table palette of the maintainer reports.
var (
	headerFill = [3]int{16, 185, 129}
	stripeFill = [3]int{245, 245, 245}
)

const (
	titleSize   = 18
	bodySize    = 9
	footerSize  = 10
	footerGrey  = 150
	rowHeight   = 7
	pageMargin  = 14
	landscapeAt = 6
)

func renderPDF(report Report, now time.Time) ([]byte, error) {
	orientation := "P"
	if len(report.Columns) > landscapeAt {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetCreationDate(now)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	generated := now.Format("02-01-2006")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", footerSize)
		pdf.SetTextColor(footerGrey, footerGrey, footerGrey)
		text := fmt.Sprintf("Página %d de {nb} | Generado el: %s", pdf.PageNo(), generated)
		pdf.CellFormat(0, 10, tr(text), "", 0, "C", false, 0, "")
	})

	pageW, pageH := pdf.GetPageSize()
	colW := (pageW - 2*pageMargin) / float64(max(len(report.Columns), 1))

	header := func() {
		pdf.SetFont("Helvetica", "B", bodySize)
		pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetDrawColor(220, 220, 220)
		for _, c := range report.Columns {
			pdf.CellFormat(colW, rowHeight, fit(pdf, tr(c), colW), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", bodySize)
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", titleSize)
	pdf.CellFormat(0, 12, tr(report.Title), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	header()
	for i, row := range report.Rows {
		if pdf.GetY()+rowHeight > pageH-25 {
			pdf.AddPage()
			header()
		}
		striped := i%2 == 1
		if striped {
			pdf.SetFillColor(stripeFill[0], stripeFill[1], stripeFill[2])
		}
		for _, cell := range row {
			pdf.CellFormat(colW, rowHeight, fit(pdf, tr(cell), colW), "1", 0, "L", striped, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fit truncates already translated text with an ellipsis so it stays inside
// a cell of width w. The core fonts encode one byte per glyph.
func fit(pdf *fpdf.Fpdf, text string, w float64) string {
	limit := w - 2*pdf.GetCellMargin()
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	n := len(text)
	for n > 0 && pdf.GetStringWidth(text[:n]+"...") > limit {
		n--
	}
	return text[:n] + "..."
}
