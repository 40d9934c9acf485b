package core

import (
	"fmt"
	"sort"
	"sync"
)

// Module describes an ERP area that contributes catalogs, settings forms,
// reports, rules and seed data.
type Module interface {
	Name() string
	Version() string
	Register(registry *ModuleRegistry) error
}

// NavigationArea is one entry of the console's top level navigation.
type NavigationArea struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Order int    `json:"order"`
	// UnderConstruction is computed at read time: areas with no catalogs,
	// settings forms or reports only render a placeholder.
	UnderConstruction bool `json:"under_construction"`
}

// ReportDefinition describes a parameterised report offered by a module.
type ReportDefinition struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Module string `json:"module"`
}

// ModuleRegistry accumulates module contributions during registration.
type ModuleRegistry struct {
	module   string
	catalogs []CatalogSchema
	forms    []SettingsForm
	reports  []ReportDefinition
	areas    []NavigationArea
	rules    []Rule
	seeds    []Seed
}

// NewModuleRegistry constructs a registry for the named module. Contributions
// without an explicit module are attributed to it.
func NewModuleRegistry(module string) *ModuleRegistry {
	return &ModuleRegistry{module: module}
}

// RegisterCatalog adds a maintainer catalog.
func (r *ModuleRegistry) RegisterCatalog(schema CatalogSchema) error {
	if schema.Module == "" {
		schema.Module = r.module
	}
	if err := schema.Validate(); err != nil {
		return err
	}
	for _, existing := range r.catalogs {
		if existing.Key == schema.Key {
			return fmt.Errorf("catalog %s already registered", schema.Key)
		}
	}
	r.catalogs = append(r.catalogs, schema)
	return nil
}

// RegisterSettings adds a single-document settings form.
func (r *ModuleRegistry) RegisterSettings(form SettingsForm) error {
	if form.Module == "" {
		form.Module = r.module
	}
	if err := form.Validate(); err != nil {
		return err
	}
	r.forms = append(r.forms, form)
	return nil
}

// RegisterReport adds a report definition.
func (r *ModuleRegistry) RegisterReport(def ReportDefinition) error {
	if def.Key == "" {
		return fmt.Errorf("report key required")
	}
	if def.Module == "" {
		def.Module = r.module
	}
	r.reports = append(r.reports, def)
	return nil
}

// RegisterArea adds a navigation area.
func (r *ModuleRegistry) RegisterArea(area NavigationArea) {
	if area.Key == "" {
		return
	}
	r.areas = append(r.areas, area)
}

// RegisterRule adds an in-transaction rule contributed by the module.
func (r *ModuleRegistry) RegisterRule(rule Rule) {
	if rule == nil {
		return
	}
	r.rules = append(r.rules, rule)
}

// RegisterSeed adds sample data loaded when seeding is enabled.
func (r *ModuleRegistry) RegisterSeed(seed Seed) {
	r.seeds = append(r.seeds, seed)
}

// Catalogs returns a copy of the registered catalogs.
func (r *ModuleRegistry) Catalogs() []CatalogSchema {
	return append([]CatalogSchema(nil), r.catalogs...)
}

// Rules returns a copy of registered rules.
func (r *ModuleRegistry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// ModuleMetadata stores metadata describing an installed module.
type ModuleMetadata struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Catalogs []string `json:"catalogs"`
	Settings []string `json:"settings,omitempty"`
	Reports  []string `json:"reports,omitempty"`
	Areas    []string `json:"areas,omitempty"`
}

// SchemaIndex is the shared lookup of installed catalogs, settings forms,
// reports and navigation areas. Rules read it during evaluation.
type SchemaIndex struct {
	mu       sync.RWMutex
	catalogs map[string]CatalogSchema
	forms    map[string]SettingsForm
	reports  map[string]ReportDefinition
	areas    map[string]NavigationArea
}

// NewSchemaIndex constructs an empty index.
func NewSchemaIndex() *SchemaIndex {
	return &SchemaIndex{
		catalogs: make(map[string]CatalogSchema),
		forms:    make(map[string]SettingsForm),
		reports:  make(map[string]ReportDefinition),
		areas:    make(map[string]NavigationArea),
	}
}

// Catalog returns the schema of a catalog.
func (x *SchemaIndex) Catalog(key string) (CatalogSchema, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.catalogs[key]
	return s, ok
}

// Settings returns a settings form.
func (x *SchemaIndex) Settings(key string) (SettingsForm, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	f, ok := x.forms[key]
	return f, ok
}

// Catalogs returns every catalog ordered by module then key.
func (x *SchemaIndex) Catalogs() []CatalogSchema {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]CatalogSchema, 0, len(x.catalogs))
	for _, s := range x.catalogs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Children returns the catalogs whose parent is the given catalog.
func (x *SchemaIndex) Children(catalog string) []CatalogSchema {
	var out []CatalogSchema
	for _, s := range x.Catalogs() {
		if s.ParentCatalog == catalog {
			out = append(out, s)
		}
	}
	return out
}

// SettingsForms returns every settings form ordered by key.
func (x *SchemaIndex) SettingsForms() []SettingsForm {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]SettingsForm, 0, len(x.forms))
	for _, f := range x.forms {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Reports returns every report definition ordered by key.
func (x *SchemaIndex) Reports() []ReportDefinition {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]ReportDefinition, 0, len(x.reports))
	for _, r := range x.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Navigation returns the navigation areas in display order.
func (x *SchemaIndex) Navigation() []NavigationArea {
	x.mu.RLock()
	defer x.mu.RUnlock()
	populated := make(map[string]bool)
	for _, s := range x.catalogs {
		populated[s.Module] = true
	}
	for _, f := range x.forms {
		populated[f.Module] = true
	}
	for _, r := range x.reports {
		populated[r.Module] = true
	}
	out := make([]NavigationArea, 0, len(x.areas))
	for _, a := range x.areas {
		a.UnderConstruction = !populated[a.Key]
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// merge validates a module's contributions against the index and commits them
// all or nothing.
func (x *SchemaIndex) merge(reg *ModuleRegistry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	pending := make(map[string]CatalogSchema, len(reg.catalogs))
	for _, s := range reg.catalogs {
		if _, exists := x.catalogs[s.Key]; exists {
			return fmt.Errorf("catalog %s already registered", s.Key)
		}
		pending[s.Key] = s
	}
	for _, s := range reg.catalogs {
		if s.ParentCatalog == "" {
			continue
		}
		if _, ok := pending[s.ParentCatalog]; ok {
			continue
		}
		if _, ok := x.catalogs[s.ParentCatalog]; !ok {
			return fmt.Errorf("catalog %s: parent catalog %s not registered", s.Key, s.ParentCatalog)
		}
	}
	for _, f := range reg.forms {
		if _, exists := x.forms[f.Key]; exists {
			return fmt.Errorf("settings form %s already registered", f.Key)
		}
	}
	for _, r := range reg.reports {
		if _, exists := x.reports[r.Key]; exists {
			return fmt.Errorf("report %s already registered", r.Key)
		}
	}
	for _, a := range reg.areas {
		if _, exists := x.areas[a.Key]; exists {
			return fmt.Errorf("navigation area %s already registered", a.Key)
		}
	}
	for key, s := range pending {
		x.catalogs[key] = s
	}
	for _, f := range reg.forms {
		x.forms[f.Key] = f
	}
	for _, r := range reg.reports {
		x.reports[r.Key] = r
	}
	for _, a := range reg.areas {
		x.areas[a.Key] = a
	}
	return nil
}
