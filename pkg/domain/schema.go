package domain

import (
	"fmt"
	"regexp"
)

// FieldKind determines how a form value is coerced and validated.
type FieldKind string

// Supported field kinds.
const (
	KindInt     FieldKind = "int"
	KindNumber  FieldKind = "number"
	KindString  FieldKind = "string"
	KindBool    FieldKind = "bool"
	KindRUT     FieldKind = "rut"
	KindEmail   FieldKind = "email"
	KindRegion  FieldKind = "region"
	KindCommune FieldKind = "commune"
)

// Pseudo columns addressable in sorting and reports besides schema fields.
const (
	ColumnCode      = "code"
	ColumnIsActive  = "isActive"
	ColumnCompanyID = "companyId"
)

// DigitsPattern is the numeric-code validator used across maintainers.
const DigitsPattern = `^[0-9]+$`

// FieldSpec describes one input of a maintainer form.
type FieldSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Label    string    `json:"label" yaml:"label"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Required bool      `json:"required,omitempty" yaml:"required"`
	Pattern  string    `json:"pattern,omitempty" yaml:"pattern"`
	Min      *float64  `json:"min,omitempty" yaml:"min"`
	Max      *float64  `json:"max,omitempty" yaml:"max"`
	// Percent renders the value with a trailing % in reports.
	Percent bool `json:"percent,omitempty" yaml:"percent"`
	// Hidden fields are editable but not shown as report columns.
	Hidden bool `json:"hidden,omitempty" yaml:"hidden"`
	// DependsOn names the region field a commune field must belong to.
	DependsOn string `json:"depends_on,omitempty" yaml:"depends_on"`
	Default   any    `json:"default,omitempty" yaml:"default"`
}

// Bound returns a pointer usable as FieldSpec.Min or FieldSpec.Max.
func Bound(v float64) *float64 { return &v }

// CatalogSchema describes a maintainer catalog: its code, scope, form fields
// and report presentation.
type CatalogSchema struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Module string `json:"module"`
	// CodeField is the external name of the code column (afpCode, farmCode, id).
	CodeField     string      `json:"code_field"`
	CodeLabel     string      `json:"code_label"`
	CompanyScoped bool        `json:"company_scoped,omitempty"`
	ParentCatalog string      `json:"parent_catalog,omitempty"`
	Deletable     bool        `json:"deletable,omitempty"`
	ReportTitle   string      `json:"report_title"`
	ReportFile    string      `json:"report_file"`
	Fields        []FieldSpec `json:"fields"`
}

// Field returns the spec for a named field.
func (s CatalogSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// CanonicalColumn maps the external code field name onto ColumnCode.
func (s CatalogSchema) CanonicalColumn(column string) string {
	if column == s.CodeField {
		return ColumnCode
	}
	return column
}

// ValueOf resolves a column of the record, including the pseudo columns.
func (s CatalogSchema) ValueOf(r Record, column string) any {
	switch s.CanonicalColumn(column) {
	case ColumnCode:
		return r.Code
	case ColumnIsActive:
		return r.IsActive
	case ColumnCompanyID:
		return r.CompanyID
	default:
		return r.Fields[column]
	}
}

// HasColumn reports whether the column can be sorted on.
func (s CatalogSchema) HasColumn(column string) bool {
	switch s.CanonicalColumn(column) {
	case ColumnCode, ColumnIsActive:
		return true
	case ColumnCompanyID:
		return s.CompanyScoped
	}
	_, ok := s.Field(column)
	return ok
}

// Validate checks the schema definition itself.
func (s CatalogSchema) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("catalog key required")
	}
	if s.CodeField == "" {
		return fmt.Errorf("catalog %s: code field required", s.Key)
	}
	if s.CompanyScoped && s.ParentCatalog != "" {
		return fmt.Errorf("catalog %s: company scope is inherited from the parent catalog", s.Key)
	}
	return validateSpecs(s.Key, s.Fields, s.CodeField)
}

// SettingsForm describes a single-document parameters form.
type SettingsForm struct {
	Key    string      `json:"key"`
	Title  string      `json:"title"`
	Module string      `json:"module"`
	Fields []FieldSpec `json:"fields"`
}

// Defaults returns the initial values of the form.
func (f SettingsForm) Defaults() map[string]any {
	out := make(map[string]any, len(f.Fields))
	for _, field := range f.Fields {
		switch {
		case field.Default != nil:
			out[field.Name] = field.Default
		case field.Kind == KindBool:
			out[field.Name] = false
		}
	}
	return out
}

// Validate checks the form definition.
func (f SettingsForm) Validate() error {
	if f.Key == "" {
		return fmt.Errorf("settings key required")
	}
	return validateSpecs(f.Key, f.Fields, "")
}

func validateSpecs(owner string, fields []FieldSpec, reserved string) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%s: field name required", owner)
		}
		if f.Name == reserved || f.Name == ColumnIsActive || f.Name == ColumnCompanyID {
			return fmt.Errorf("%s: field %s shadows a record column", owner, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%s: duplicate field %s", owner, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return fmt.Errorf("%s: field %s pattern: %w", owner, f.Name, err)
			}
		}
		if f.Kind == KindCommune && f.DependsOn != "" {
			if _, ok := seen[f.DependsOn]; !ok {
				return fmt.Errorf("%s: field %s depends on undeclared field %s", owner, f.Name, f.DependsOn)
			}
		}
	}
	return nil
}
