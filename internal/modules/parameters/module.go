// Package parameters registers the Parámetros Generales area: companies,
// farms, departments and the general settings form.
package parameters

import (
	_ "embed"

	"agroconsole/internal/core"
	"agroconsole/internal/modules/seeds"
	"agroconsole/pkg/domain"
)

// Name is the module and navigation area key.
const Name = "parameters"

//go:embed seed.yaml
var seedData []byte

// Module implements core.Module.
type Module struct {
	// SkipSeed leaves the sample data out of the registration.
	SkipSeed bool
}

// New returns the parameters module.
func New() Module { return Module{} }

func (Module) Name() string    { return Name }
func (Module) Version() string { return "1.0.0" }

// Catalogs returns the catalog schemas of the module.
func Catalogs() []core.CatalogSchema {
	digits := domain.DigitsPattern
	return []core.CatalogSchema{
		{
			Key: core.CompaniesCatalog, Title: "Empresas", CodeField: "id", CodeLabel: "ID",
			ReportTitle: "Reporte de Empresas", ReportFile: "Empresas",
			Fields: []core.FieldSpec{
				{Name: "rut", Label: "RUT", Kind: domain.KindRUT, Required: true},
				{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true},
				{Name: "address", Label: "Dirección", Kind: domain.KindString, Required: true},
				{Name: "regionCode", Label: "Región", Kind: domain.KindRegion, Required: true},
				{Name: "communeCode", Label: "Comuna", Kind: domain.KindCommune, Required: true, DependsOn: "regionCode"},
				{Name: "phone", Label: "Teléfono", Kind: domain.KindString, Required: true, Hidden: true},
				{Name: "email", Label: "Email", Kind: domain.KindEmail, Required: true, Hidden: true},
			},
		},
		{
			Key: "farms", Title: "Fundos", CodeField: "farmCode", CodeLabel: "Código", CompanyScoped: true,
			ReportTitle: "Reporte de Fundos", ReportFile: "Fundos",
			Fields: []core.FieldSpec{
				{Name: "description", Label: "Descripción", Kind: domain.KindString, Required: true},
				{Name: "address", Label: "Dirección", Kind: domain.KindString, Required: true},
				{Name: "regionCode", Label: "Región", Kind: domain.KindRegion, Required: true, Pattern: digits},
				{Name: "communeCode", Label: "Comuna", Kind: domain.KindCommune, Required: true, Pattern: digits, DependsOn: "regionCode"},
			},
		},
		{
			Key: "departments", Title: "Departamentos", CodeField: "code", CodeLabel: "Código", CompanyScoped: true,
			ReportTitle: "Reporte de Departamentos", ReportFile: "Departamentos",
			Fields: []core.FieldSpec{
				{Name: "description", Label: "Descripción", Kind: domain.KindString, Required: true},
			},
		},
	}
}

// GeneralSettings is the single-document general parameters form.
func GeneralSettings() core.SettingsForm {
	return core.SettingsForm{
		Key: "general", Title: "Parámetros Generales",
		Fields: []core.FieldSpec{
			{Name: "companyName", Label: "Nombre de la empresa", Kind: domain.KindString, Required: true, Default: "AgroSys S.A."},
			{Name: "currentSeason", Label: "Temporada actual", Kind: domain.KindString, Required: true, Default: "2024-2025"},
			{Name: "defaultCurrency", Label: "Moneda por defecto", Kind: domain.KindString, Required: true, Default: "CLP"},
			{Name: "timezone", Label: "Zona horaria", Kind: domain.KindString, Required: true, Default: "UTC-4"},
		},
	}
}

// Register implements core.Module.
func (m Module) Register(reg *core.ModuleRegistry) error {
	catalogs := Catalogs()
	for _, c := range catalogs {
		if err := reg.RegisterCatalog(c); err != nil {
			return err
		}
	}
	if err := reg.RegisterSettings(GeneralSettings()); err != nil {
		return err
	}
	if m.SkipSeed {
		return nil
	}
	seed, err := seeds.Load(seedData, catalogs)
	if err != nil {
		return err
	}
	reg.RegisterSeed(seed)
	return nil
}
