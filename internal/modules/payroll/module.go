// Package payroll registers the Remuneraciones area: pension fund
// administrators and crew bosses.
package payroll

import (
	_ "embed"

	"agroconsole/internal/core"
	"agroconsole/internal/modules/seeds"
	"agroconsole/pkg/domain"
)

// Name is the module and navigation area key.
const Name = "payroll"

//go:embed seed.yaml
var seedData []byte

// Module implements core.Module.
type Module struct {
	// SkipSeed leaves the sample data out of the registration.
	SkipSeed bool
}

// New returns the payroll module.
func New() Module { return Module{} }

func (Module) Name() string    { return Name }
func (Module) Version() string { return "1.0.0" }

// Catalogs returns the catalog schemas of the module.
func Catalogs() []core.CatalogSchema {
	return []core.CatalogSchema{
		{
			Key: "afp", Title: "AFP", CodeField: "afpCode", CodeLabel: "Cód. AFP",
			ReportTitle: "Reporte de AFP", ReportFile: "AFP",
			Fields: []core.FieldSpec{
				{Name: "previredCode", Label: "Cód. Previred", Kind: domain.KindInt, Required: true, Pattern: domain.DigitsPattern},
				{Name: "description", Label: "Descripción", Kind: domain.KindString, Required: true},
				{Name: "commission", Label: "Comisión %", Kind: domain.KindNumber, Required: true, Min: domain.Bound(0), Percent: true},
				{Name: "accountingAux", Label: "Aux. Contable", Kind: domain.KindInt, Required: true, Pattern: domain.DigitsPattern},
				{Name: "retirementCommission", Label: "Com. Jub. %", Kind: domain.KindNumber, Required: true, Min: domain.Bound(0), Percent: true},
			},
		},
		{
			Key: "crew_bosses", Title: "Jefes de Cuadrilla", CodeField: "code", CodeLabel: "Código",
			ReportTitle: "Reporte de Jefes de Cuadrilla", ReportFile: "Jefes_Cuadrilla",
			Fields: []core.FieldSpec{
				{Name: "description", Label: "Descripción", Kind: domain.KindString, Required: true},
				{Name: "rut", Label: "RUT", Kind: domain.KindRUT, Required: true},
			},
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
