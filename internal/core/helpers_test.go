package core

import (
	"context"
	"testing"

	"agroconsole/pkg/domain"
)

// fixtureModule registers a reduced set of catalogs resembling the real
// parameters, warehouses and payroll modules.
type fixtureModule struct {
	name  string
	extra func(*ModuleRegistry) error
}

func (m fixtureModule) Name() string    { return m.name }
func (m fixtureModule) Version() string { return "0.1.0" }

func (m fixtureModule) Register(reg *ModuleRegistry) error {
	catalogs := []CatalogSchema{
		{
			Key: CompaniesCatalog, Title: "Empresas", CodeField: "id", CodeLabel: "ID",
			ReportTitle: "Reporte de Empresas", ReportFile: "Empresas",
			Fields: []FieldSpec{
				{Name: "rut", Label: "RUT", Kind: domain.KindRUT, Required: true},
				{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true},
				{Name: "regionCode", Label: "Región", Kind: domain.KindRegion, Required: true},
				{Name: "communeCode", Label: "Comuna", Kind: domain.KindCommune, Required: true, DependsOn: "regionCode"},
				{Name: "email", Label: "Email", Kind: domain.KindEmail, Required: true},
			},
		},
		{
			Key: "departments", Title: "Departamentos", CodeField: "code", CodeLabel: "Código", CompanyScoped: true,
			ReportTitle: "Reporte de Departamentos", ReportFile: "Departamentos",
			Fields: []FieldSpec{{Name: "description", Label: "Descripción", Kind: domain.KindString, Required: true}},
		},
		{
			Key: "warehouses", Title: "Bodegas", CodeField: "code", CodeLabel: "Código", CompanyScoped: true, Deletable: true,
			Fields: []FieldSpec{{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true}},
		},
		{
			Key: "storage_levels", Title: "Niveles", CodeField: "code", CodeLabel: "Código", ParentCatalog: "warehouses", Deletable: true,
			Fields: []FieldSpec{{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true}},
		},
		{
			Key: "afp", Title: "AFP", CodeField: "afpCode", CodeLabel: "Cód. AFP",
			Fields: []FieldSpec{
				{Name: "description", Label: "Descripción", Kind: domain.KindString, Required: true},
				{Name: "commission", Label: "Comisión", Kind: domain.KindNumber, Required: true, Min: domain.Bound(0), Percent: true},
			},
		},
		{
			Key: MovementsCatalog, Title: "Movimientos", CodeField: "id", CodeLabel: "Correlativo", CompanyScoped: true,
			Fields: []FieldSpec{{Name: "date", Label: "Fecha", Kind: domain.KindString, Required: true}},
		},
	}
	for _, c := range catalogs {
		if err := reg.RegisterCatalog(c); err != nil {
			return err
		}
	}
	if err := reg.RegisterSettings(SettingsForm{Key: "general", Title: "Parámetros Generales", Fields: []FieldSpec{
		{Name: "companyName", Label: "Empresa", Kind: domain.KindString, Required: true, Default: "AgroSys S.A."},
		{Name: "defaultCurrency", Label: "Moneda", Kind: domain.KindString, Required: true, Default: "CLP"},
		{Name: "utilizaCentroCosto", Label: "Centro de costo", Kind: domain.KindBool},
	}}); err != nil {
		return err
	}
	if err := reg.RegisterReport(ReportDefinition{Key: GuidesReport, Title: "Informe de Guías de Bodega"}); err != nil {
		return err
	}
	reg.RegisterArea(NavigationArea{Key: m.name, Label: "Fixture", Order: 2})
	reg.RegisterSeed(Seed{Records: []Record{
		{Catalog: CompaniesCatalog, Code: 1, IsActive: true, Fields: map[string]any{"name": "Agrícola San José", "rut": "76.123.456-0", "regionCode": int64(1), "communeCode": int64(101), "email": "contacto@sanjose.cl"}},
		{Catalog: CompaniesCatalog, Code: 2, IsActive: false, Fields: map[string]any{"name": "Exportadora del Valle", "rut": "77.987.654-3", "regionCode": int64(3), "communeCode": int64(301), "email": "info@delvalle.cl"}},
		{Catalog: MovementsCatalog, CompanyID: 1, Code: 1001, IsActive: true, Fields: map[string]any{"date": "2024-03-01"}},
		{Catalog: MovementsCatalog, CompanyID: 1, Code: 1002, IsActive: true, Fields: map[string]any{"date": "2024-03-15"}},
		{Catalog: MovementsCatalog, CompanyID: 2, Code: 1003, IsActive: true, Fields: map[string]any{"date": "2024-03-20"}},
		{Catalog: MovementsCatalog, CompanyID: 1, Code: 1004, IsActive: true, Fields: map[string]any{"date": "2024-04-02"}},
	}})
	if m.extra != nil {
		return m.extra(reg)
	}
	return nil
}

func newFixtureService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc := NewInMemoryService(opts...)
	if _, err := svc.InstallModule(fixtureModule{name: "fixture"}); err != nil {
		t.Fatalf("install fixture module: %v", err)
	}
	if _, err := svc.LoadSeeds(context.Background()); err != nil {
		t.Fatalf("load seeds: %v", err)
	}
	return svc
}

func violationRules(err error) []string {
	var rv domain.RuleViolationError
	if !asViolation(err, &rv) {
		return nil
	}
	out := make([]string, 0, len(rv.Result.Violations))
	for _, v := range rv.Result.Violations {
		out = append(out, v.Rule+":"+v.Field)
	}
	return out
}

func asViolation(err error, target *domain.RuleViolationError) bool {
	if err == nil {
		return false
	}
	rv, ok := err.(domain.RuleViolationError)
	if ok {
		*target = rv
	}
	return ok
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
