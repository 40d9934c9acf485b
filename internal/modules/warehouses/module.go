// Package warehouses registers the Bodegas area: units of measure, active
// ingredients, warehouses with their storage levels, warehouse movements, the
// accounting parameters form and the warehouse guides report.
package warehouses

import (
	_ "embed"

	"agroconsole/internal/core"
	"agroconsole/internal/modules/seeds"
	"agroconsole/pkg/domain"
)

// Name is the module and navigation area key.
const Name = "warehouses"

// Catalog keys.
const (
	UnitsCatalog       = "units_of_measure"
	IngredientsCatalog = "active_ingredients"
	WarehousesCatalog  = "warehouses"
	LevelsCatalog      = "storage_levels"
)

//go:embed seed.yaml
var seedData []byte

// Module implements core.Module.
type Module struct {
	SkipSeed bool
}

// New returns the warehouses module.
func New() Module { return Module{} }

func (Module) Name() string    { return Name }
func (Module) Version() string { return "1.0.0" }

// Catalogs returns the catalog schemas of the module. The parent catalog of
// storage levels precedes it.
func Catalogs() []core.CatalogSchema {
	return []core.CatalogSchema{
		{
			Key: UnitsCatalog, Title: "Unidades de Medida", CodeField: "code", CodeLabel: "Código", Deletable: true,
			ReportTitle: "Reporte de Unidades de Medida", ReportFile: "Unidades_Medida",
			Fields: []core.FieldSpec{
				{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true},
				{Name: "abbreviation", Label: "Abreviatura", Kind: domain.KindString, Required: true},
			},
		},
		{
			Key: IngredientsCatalog, Title: "Ingredientes Activos", CodeField: "code", CodeLabel: "Código", Deletable: true,
			ReportTitle: "Reporte de Ingredientes Activos", ReportFile: "Ingredientes_Activos",
			Fields: []core.FieldSpec{
				{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true},
			},
		},
		{
			Key: WarehousesCatalog, Title: "Gestión de Bodegas", CodeField: "code", CodeLabel: "Código",
			CompanyScoped: true, Deletable: true,
			ReportTitle: "Reporte de Bodegas", ReportFile: "Bodegas",
			Fields: []core.FieldSpec{
				{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true},
			},
		},
		{
			Key: LevelsCatalog, Title: "Niveles de Almacenaje", CodeField: "code", CodeLabel: "Código",
			ParentCatalog: WarehousesCatalog, Deletable: true,
			ReportTitle: "Reporte de Niveles de Almacenaje", ReportFile: "Niveles_Almacenaje",
			Fields: []core.FieldSpec{
				{Name: "name", Label: "Nombre", Kind: domain.KindString, Required: true},
			},
		},
		{
			Key: core.MovementsCatalog, Title: "Movimientos de Bodega", CodeField: "id", CodeLabel: "Correlativo",
			CompanyScoped: true,
			ReportTitle: "Reporte de Movimientos de Bodega", ReportFile: "Movimientos_Bodega",
			Fields: []core.FieldSpec{
				{Name: "date", Label: "Fecha", Kind: domain.KindString, Required: true, Pattern: `^\d{4}-\d{2}-\d{2}$`},
				{Name: "warehouseCode", Label: "Bodega", Kind: domain.KindInt, Required: true, Min: domain.Bound(0)},
				{Name: "movementType", Label: "Tipo", Kind: domain.KindString, Required: true},
				{Name: "description", Label: "Glosa", Kind: domain.KindString},
			},
		},
	}
}

// AccountingSettings is the warehouse accounting parameters form.
func AccountingSettings() core.SettingsForm {
	account := func(name, label, def string) core.FieldSpec {
		return core.FieldSpec{Name: name, Label: label, Kind: domain.KindString, Required: true, Pattern: domain.DigitsPattern, Default: def}
	}
	return core.SettingsForm{
		Key: "warehouse_accounting", Title: "Parámetros de Contabilización de Bodega",
		Fields: []core.FieldSpec{
			account("cuentaExistencias", "Cuenta de existencias", "1106001"),
			account("cuentaCostoVenta", "Cuenta de costo de venta", "6101001"),
			account("cuentaConsumoInterno", "Cuenta de consumo interno", "6201001"),
			{Name: "utilizaCentroCosto", Label: "Utiliza centro de costo", Kind: domain.KindBool, Default: true},
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
	if err := reg.RegisterSettings(AccountingSettings()); err != nil {
		return err
	}
	if err := reg.RegisterReport(core.ReportDefinition{Key: core.GuidesReport, Title: "Informe de Guías de Bodega"}); err != nil {
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
