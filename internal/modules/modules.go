// Package modules assembles the ERP modules shipped with the console.
package modules

import (
	"context"
	"fmt"

	"agroconsole/internal/core"
	"agroconsole/internal/modules/navigation"
	"agroconsole/internal/modules/parameters"
	"agroconsole/internal/modules/payroll"
	"agroconsole/internal/modules/warehouses"
)

// Default returns the built-in modules in installation order. Parameters
// comes first because the other catalogs reference its companies.
func Default() []core.Module {
	return []core.Module{
		navigation.New(),
		parameters.New(),
		warehouses.New(),
		payroll.New(),
	}
}

// Install registers every module with the service and, when seed is set,
// loads their sample data.
func Install(ctx context.Context, svc *core.Service, seed bool, mods ...core.Module) error {
	if len(mods) == 0 {
		mods = Default()
	}
	for _, m := range mods {
		if _, err := svc.InstallModule(m); err != nil {
			return err
		}
	}
	if !seed {
		return nil
	}
	if _, err := svc.LoadSeeds(ctx); err != nil {
		return fmt.Errorf("seed modules: %w", err)
	}
	return nil
}
