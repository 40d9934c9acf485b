// Package exports renders maintainer catalogs as PDF, CSV or JSON reports and
// runs asynchronous export jobs that store the artifacts in an object store.
package exports

import (
	"fmt"
	"strconv"
	"strings"

	"agroconsole/internal/core"
	"agroconsole/pkg/domain"
)

// Format is an export file format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts pdf, csv or json in any case. Empty means pdf.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatPDF, nil
	case FormatPDF, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "application/pdf"
	}
}

const (
	vigenciaLabel = "Vigencia"
	vigente       = "Vigente"
	noVigente     = "No Vigente"
)

// Report is a rendered-agnostic table: a title, column labels and the cell
// text of every row.
type Report struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ReportOptions customises BuildReport.
type ReportOptions struct {
	// CompanyName is appended to the title of company scoped catalogs.
	CompanyName string
}

// BuildReport lays out records the way the maintainer PDF shows them: the
// code column, every visible field, then the vigencia status.
func BuildReport(schema core.CatalogSchema, records []core.Record, opts ReportOptions) Report {
	title := schema.ReportTitle
	if title == "" {
		title = schema.Title
	}
	if schema.CompanyScoped && opts.CompanyName != "" {
		title += " - " + opts.CompanyName
	}
	var visible []core.FieldSpec
	for _, f := range schema.Fields {
		if !f.Hidden {
			visible = append(visible, f)
		}
	}
	columns := make([]string, 0, len(visible)+2)
	columns = append(columns, codeLabel(schema))
	for _, f := range visible {
		columns = append(columns, f.Label)
	}
	columns = append(columns, vigenciaLabel)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, 0, len(columns))
		row = append(row, strconv.FormatInt(r.Code, 10))
		for _, f := range visible {
			row = append(row, cellText(f, r.Fields[f.Name]))
		}
		if r.IsActive {
			row = append(row, vigente)
		} else {
			row = append(row, noVigente)
		}
		rows = append(rows, row)
	}
	return Report{Title: title, Columns: columns, Rows: rows}
}

func codeLabel(schema core.CatalogSchema) string {
	if schema.CodeLabel != "" {
		return schema.CodeLabel
	}
	return "Código"
}

func cellText(spec core.FieldSpec, v any) string {
	if v == nil {
		return ""
	}
	switch spec.Kind {
	case domain.KindRegion:
		if code, ok := domain.ToInt64(v); ok {
			return core.RegionLabel(code)
		}
	case domain.KindCommune:
		if code, ok := domain.ToInt64(v); ok {
			return core.CommuneLabel(code)
		}
	case domain.KindBool:
		if b, ok := v.(bool); ok {
			if b {
				return "Sí"
			}
			return "No"
		}
	}
	text := formatValue(v)
	if spec.Percent && text != "" {
		return text + "%"
	}
	return text
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// FileName returns Reporte_{ReportFile}.{ext}; company scoped catalogs get the
// company name appended with spaces replaced by underscores.
func FileName(schema core.CatalogSchema, format Format, companyName string) string {
	base := schema.ReportFile
	if base == "" {
		base = schema.Key
	}
	name := "Reporte_" + base
	if schema.CompanyScoped && companyName != "" {
		name += "_" + strings.ReplaceAll(strings.TrimSpace(companyName), " ", "_")
	}
	return name + "." + string(format)
}
