package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"agroconsole/pkg/domain"
)

const (
	// MovementsCatalog holds warehouse movements; the code is the guide correlative.
	MovementsCatalog = "warehouse_movements"
	// GuidesReport is the key of the warehouse guides report.
	GuidesReport = "warehouse_guides"

	guideDateLayout = "2006-01-02"
	ruleGuidesForm  = "guides_report"
)

// GuidesReportRequest carries the filters of the warehouse guides report.
// Only the company is mandatory.
type GuidesReportRequest struct {
	CompanyID int64  `json:"empresaId"`
	From      *int64 `json:"correlativoDesde,omitempty"`
	To        *int64 `json:"correlativoHasta,omitempty"`
	DateFrom  string `json:"fechaDesde,omitempty"`
	DateTo    string `json:"fechaHasta,omitempty"`
}

// GuidesReportResult lists the movements matching a request.
type GuidesReportResult struct {
	Request GuidesReportRequest `json:"request"`
	Guides  []Record            `json:"guides"`
}

// GuideCorrelatives returns the movement correlatives of a company, ascending.
func (s *Service) GuideCorrelatives(_ context.Context, companyID int64) []int64 {
	out := make([]int64, 0)
	if companyID == 0 {
		return out
	}
	for _, rec := range s.store.ListRecords(MovementsCatalog) {
		if rec.CompanyID == companyID {
			out = append(out, rec.Code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RunGuidesReport validates the request and returns the matching movements.
// Validation failures are reported as a RuleViolationError.
func (s *Service) RunGuidesReport(ctx context.Context, req GuidesReportRequest) (GuidesReportResult, error) {
	var out GuidesReportResult
	_, err := s.run(ctx, "run_guides_report", MovementsCatalog, false, func(ctx context.Context) (string, Result, error) {
		violations := s.validateGuidesRequest(ctx, req)
		if len(violations) > 0 {
			res := Result{Violations: violations}
			return "", res, domain.RuleViolationError{Result: res}
		}
		from, to := parseGuideDate(req.DateFrom), parseGuideDate(req.DateTo)
		guides := make([]Record, 0)
		for _, rec := range s.store.ListRecords(MovementsCatalog) {
			if rec.CompanyID != req.CompanyID {
				continue
			}
			if req.From != nil && rec.Code < *req.From {
				continue
			}
			if req.To != nil && rec.Code > *req.To {
				continue
			}
			if !from.IsZero() || !to.IsZero() {
				date := parseGuideDate(rec.String("date"))
				if date.IsZero() || (!from.IsZero() && date.Before(from)) || (!to.IsZero() && date.After(to)) {
					continue
				}
			}
			guides = append(guides, rec)
		}
		sort.Slice(guides, func(i, j int) bool { return guides[i].Code < guides[j].Code })
		out = GuidesReportResult{Request: req, Guides: guides}
		return "", Result{}, nil
	})
	return out, err
}

func (s *Service) validateGuidesRequest(ctx context.Context, req GuidesReportRequest) []Violation {
	var out []Violation
	add := func(field, code, format string, args ...any) {
		out = append(out, Violation{
			Rule: ruleGuidesForm, Severity: domain.SeverityBlock, Catalog: GuidesReport,
			Field: field, Code: code, Message: fmt.Sprintf(format, args...),
		})
	}
	if req.CompanyID == 0 {
		add("empresaId", string(domain.FieldRequired), "Debe seleccionar una empresa.")
		return out
	}
	if _, ok := s.CompanyName(req.CompanyID); !ok {
		add("empresaId", "reference", "La empresa %d no existe", req.CompanyID)
		return out
	}
	available := make(map[int64]bool)
	for _, c := range s.GuideCorrelatives(ctx, req.CompanyID) {
		available[c] = true
	}
	if req.From != nil && !available[*req.From] {
		add("correlativoDesde", "reference", "El correlativo %d no pertenece a la empresa", *req.From)
	}
	if req.To != nil && !available[*req.To] {
		add("correlativoHasta", "reference", "El correlativo %d no pertenece a la empresa", *req.To)
	}
	if req.From != nil && req.To != nil && *req.From > *req.To {
		add("correlativoHasta", "range", "El correlativo final debe ser mayor o igual al inicial")
	}
	var from, to time.Time
	if req.DateFrom != "" {
		if from = parseGuideDate(req.DateFrom); from.IsZero() {
			add("fechaDesde", string(domain.FieldPattern), "Fecha inválida: %s", req.DateFrom)
		}
	}
	if req.DateTo != "" {
		if to = parseGuideDate(req.DateTo); to.IsZero() {
			add("fechaHasta", string(domain.FieldPattern), "Fecha inválida: %s", req.DateTo)
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		add("fechaHasta", "range", "La fecha final debe ser posterior a la inicial")
	}
	return out
}

func parseGuideDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(guideDateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
