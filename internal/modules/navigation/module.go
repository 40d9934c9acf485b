// Package navigation registers the twelve top level areas of the console in
// display order. Areas without catalogs, forms or reports are rendered as
// under construction.
package navigation

import "agroconsole/internal/core"

const Name = "navigation"

// Areas lists the console areas in display order.
var Areas = []core.NavigationArea{
	{Key: "dashboard", Label: "Gestión"},
	{Key: "warehouses", Label: "Bodegas"},
	{Key: "purchase-orders", Label: "Órdenes de Compra"},
	{Key: "accounting", Label: "Contabilidad"},
	{Key: "payroll", Label: "Remuneraciones"},
	{Key: "plant", Label: "Planta"},
	{Key: "exports", Label: "Exportaciones"},
	{Key: "budget", Label: "Presupuesto"},
	{Key: "contractors", Label: "Contratistas"},
	{Key: "users", Label: "Usuarios"},
	{Key: "parameters", Label: "Parámetros Generales"},
	{Key: "bpa", Label: "BPA"},
}

type Module struct{}

func New() Module { return Module{} }

func (Module) Name() string    { return Name }
func (Module) Version() string { return "1.0.0" }

func (Module) Register(reg *core.ModuleRegistry) error {
	for i, area := range Areas {
		area.Order = i + 1
		reg.RegisterArea(area)
	}
	return nil
}
