package core

import (
	"context"
	"fmt"

	"agroconsole/pkg/domain"
)

// Rule names registered by NewDefaultRulesEngine.
const (
	RuleFieldValidation        = "field_validation"
	RuleUniqueCode             = "unique_code"
	RuleCodeImmutable          = "code_immutable"
	RuleReferenceIntegrity     = "reference_integrity"
	RuleInactiveCompanyWarning = "inactive_company_warning"
)

// NewDefaultRulesEngine returns a rules engine with the catalog rules wired
// against the schema index.
func NewDefaultRulesEngine(index *SchemaIndex) *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(FieldValidationRule(index))
	engine.Register(UniqueCodeRule())
	engine.Register(CodeImmutableRule())
	engine.Register(ReferenceIntegrityRule(index))
	engine.Register(InactiveCompanyWarningRule(index))
	return engine
}

// writes yields the records created or updated by the changes.
func writes(changes []Change) []Record {
	var out []Record
	for _, c := range changes {
		if c.Entity != domain.EntityRecord || c.After == nil {
			continue
		}
		if c.Action == domain.ActionCreate || c.Action == domain.ActionUpdate {
			out = append(out, *c.After)
		}
	}
	return out
}

type fieldValidationRule struct{ index *SchemaIndex }

// FieldValidationRule enforces the form validators of catalogs and settings.
func FieldValidationRule(index *SchemaIndex) Rule { return fieldValidationRule{index: index} }

func (r fieldValidationRule) Name() string { return RuleFieldValidation }

func (r fieldValidationRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, c := range changes {
		switch {
		case c.Entity == domain.EntitySetting && c.Setting != nil:
			form, ok := r.index.Settings(c.Setting.Key)
			if !ok {
				res.Violations = append(res.Violations, Violation{
					Rule: r.Name(), Severity: domain.SeverityBlock, Catalog: c.Setting.Key,
					Message: fmt.Sprintf("formulario %s no registrado", c.Setting.Key),
				})
				continue
			}
			_, errs := domain.NormalizeFields(form.Fields, c.Setting.Values)
			res.Violations = append(res.Violations, fieldViolations(r.Name(), form.Key, "", errs)...)
		case c.Entity == domain.EntityRecord && c.After != nil && (c.Action == domain.ActionCreate || c.Action == domain.ActionUpdate):
			rec := *c.After
			schema, ok := r.index.Catalog(rec.Catalog)
			if !ok {
				res.Violations = append(res.Violations, Violation{
					Rule: r.Name(), Severity: domain.SeverityBlock, Catalog: rec.Catalog, RecordID: rec.ID,
					Message: fmt.Sprintf("catálogo %s no registrado", rec.Catalog),
				})
				continue
			}
			if rec.Code < 0 {
				res.Violations = append(res.Violations, Violation{
					Rule: r.Name(), Severity: domain.SeverityBlock, Catalog: rec.Catalog, RecordID: rec.ID,
					Field: schema.CodeField, Code: string(domain.FieldPattern),
					Message: fmt.Sprintf("%s debe ser un número entero positivo", codeLabel(schema)),
				})
			}
			if schema.CompanyScoped && rec.CompanyID <= 0 {
				res.Violations = append(res.Violations, Violation{
					Rule: r.Name(), Severity: domain.SeverityBlock, Catalog: rec.Catalog, RecordID: rec.ID,
					Field: domain.ColumnCompanyID, Code: string(domain.FieldRequired),
					Message: "Debe seleccionar una empresa",
				})
			}
			_, errs := domain.NormalizeFields(schema.Fields, rec.Fields)
			res.Violations = append(res.Violations, fieldViolations(r.Name(), rec.Catalog, rec.ID, errs)...)
		}
	}
	return res, nil
}

func fieldViolations(rule, catalog, id string, errs []domain.FieldError) []Violation {
	out := make([]Violation, 0, len(errs))
	for _, fe := range errs {
		out = append(out, Violation{
			Rule: rule, Severity: domain.SeverityBlock, Catalog: catalog, RecordID: id,
			Field: fe.Field, Code: string(fe.Code), Message: fe.Message,
		})
	}
	return out
}

func codeLabel(schema CatalogSchema) string {
	if schema.CodeLabel != "" {
		return schema.CodeLabel
	}
	return schema.CodeField
}

type uniqueCodeRule struct{}

// UniqueCodeRule rejects a second record with the same code in the same
// company and parent scope.
func UniqueCodeRule() Rule { return uniqueCodeRule{} }

func (uniqueCodeRule) Name() string { return RuleUniqueCode }

func (r uniqueCodeRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	var res Result
	listed := make(map[string][]Record)
	for _, rec := range writes(changes) {
		records, ok := listed[rec.Catalog]
		if !ok {
			records = view.ListRecords(rec.Catalog)
			listed[rec.Catalog] = records
		}
		for _, other := range records {
			if other.ID == rec.ID || other.Key() != rec.Key() {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule: r.Name(), Severity: domain.SeverityBlock, Catalog: rec.Catalog, RecordID: rec.ID,
				Field: domain.ColumnCode, Code: "codeExists",
				Message: fmt.Sprintf("El código %d ya existe", rec.Code),
			})
			break
		}
	}
	return res, nil
}

type codeImmutableRule struct{}

// CodeImmutableRule rejects updates that change a record's code, company or
// parent. The edit form disables those inputs.
func CodeImmutableRule() Rule { return codeImmutableRule{} }

func (codeImmutableRule) Name() string { return RuleCodeImmutable }

func (r codeImmutableRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, c := range changes {
		if c.Entity != domain.EntityRecord || c.Action != domain.ActionUpdate || c.Before == nil || c.After == nil {
			continue
		}
		if c.Before.Key() == c.After.Key() {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule: r.Name(), Severity: domain.SeverityBlock, Catalog: c.After.Catalog, RecordID: c.After.ID,
			Field: domain.ColumnCode, Code: "immutable",
			Message: "El código no puede modificarse",
		})
	}
	return res, nil
}

type referenceIntegrityRule struct{ index *SchemaIndex }

// ReferenceIntegrityRule checks company and parent references and that
// communes lie in the selected region.
func ReferenceIntegrityRule(index *SchemaIndex) Rule { return referenceIntegrityRule{index: index} }

func (r referenceIntegrityRule) Name() string { return RuleReferenceIntegrity }

func (r referenceIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	var res Result
	block := func(rec Record, field, code, format string, args ...any) {
		res.Violations = append(res.Violations, Violation{
			Rule: r.Name(), Severity: domain.SeverityBlock, Catalog: rec.Catalog, RecordID: rec.ID,
			Field: field, Code: code, Message: fmt.Sprintf(format, args...),
		})
	}
	for _, rec := range writes(changes) {
		schema, ok := r.index.Catalog(rec.Catalog)
		if !ok {
			continue
		}
		if schema.CompanyScoped && rec.CompanyID > 0 {
			if _, ok := view.FindByKey(Key{Catalog: CompaniesCatalog, Code: rec.CompanyID}); !ok {
				block(rec, domain.ColumnCompanyID, "reference", "La empresa %d no existe", rec.CompanyID)
			}
		}
		if schema.ParentCatalog != "" {
			parent, ok := view.FindRecord(rec.ParentID)
			if !ok || parent.Catalog != schema.ParentCatalog {
				block(rec, "parentId", "reference", "El registro padre %q no existe en %s", rec.ParentID, schema.ParentCatalog)
			}
		}
		for _, f := range schema.Fields {
			v, present := rec.Fields[f.Name]
			if !present {
				continue
			}
			code, ok := domain.ToInt64(v)
			if !ok {
				continue
			}
			switch f.Kind {
			case domain.KindRegion:
				if _, ok := LookupRegion(code); !ok {
					block(rec, f.Name, "reference", "La región %d no existe", code)
				}
			case domain.KindCommune:
				commune, ok := LookupCommune(code)
				if !ok {
					block(rec, f.Name, "reference", "La comuna %d no existe", code)
					continue
				}
				if f.DependsOn == "" {
					continue
				}
				if region, ok := domain.ToInt64(rec.Fields[f.DependsOn]); ok && commune.RegionCode != region {
					block(rec, f.Name, "region", "La comuna %d no pertenece a la región %d", code, region)
				}
			}
		}
	}
	return res, nil
}

type inactiveCompanyWarningRule struct{ index *SchemaIndex }

// InactiveCompanyWarningRule warns when a record is created under a company
// that is no longer vigente.
func InactiveCompanyWarningRule(index *SchemaIndex) Rule {
	return inactiveCompanyWarningRule{index: index}
}

func (r inactiveCompanyWarningRule) Name() string { return RuleInactiveCompanyWarning }

func (r inactiveCompanyWarningRule) Evaluate(_ context.Context, view domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, c := range changes {
		if c.Entity != domain.EntityRecord || c.Action != domain.ActionCreate || c.After == nil {
			continue
		}
		rec := *c.After
		schema, ok := r.index.Catalog(rec.Catalog)
		if !ok || !schema.CompanyScoped {
			continue
		}
		company, ok := view.FindByKey(Key{Catalog: CompaniesCatalog, Code: rec.CompanyID})
		if !ok || company.IsActive {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule: r.Name(), Severity: domain.SeverityWarn, Catalog: rec.Catalog, RecordID: rec.ID,
			Field: domain.ColumnCompanyID,
			Message: fmt.Sprintf("La empresa %s no está vigente", company.String("name")),
		})
	}
	return res, nil
}
