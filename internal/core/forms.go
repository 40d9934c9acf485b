package core

import (
	"fmt"
	"time"

	"agroconsole/pkg/domain"
)

// Record document keys outside the schema fields.
const (
	docID        = "recordId"
	docParentID  = "parentId"
	docCreatedAt = "createdAt"
	docUpdatedAt = "updatedAt"
)

// RecordDocument flattens a record into the shape the console forms use: the
// code under the catalog's code field next to the form fields.
func RecordDocument(schema CatalogSchema, r Record) map[string]any {
	doc := make(map[string]any, len(r.Fields)+6)
	for k, v := range r.Fields {
		doc[k] = v
	}
	doc[docID] = r.ID
	doc[schema.CodeField] = r.Code
	doc[domain.ColumnIsActive] = r.IsActive
	if schema.CompanyScoped {
		doc[domain.ColumnCompanyID] = r.CompanyID
	}
	if schema.ParentCatalog != "" {
		doc[docParentID] = r.ParentID
	}
	if !r.CreatedAt.IsZero() {
		doc[docCreatedAt] = r.CreatedAt.Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		doc[docUpdatedAt] = r.UpdatedAt.Format(time.RFC3339)
	}
	return doc
}

// DecodeRecordInput splits a flat form document into a RecordInput. When
// current is set, a missing code, company or parent keeps the stored value.
// Malformed identifiers are reported as a RuleViolationError.
func DecodeRecordInput(schema CatalogSchema, doc map[string]any, current *Record) (RecordInput, error) {
	var (
		in         RecordInput
		violations []Violation
	)
	bad := func(field, code, format string, args ...any) {
		violations = append(violations, Violation{
			Rule: RuleFieldValidation, Severity: domain.SeverityBlock, Catalog: schema.Key,
			Field: field, Code: code, Message: fmt.Sprintf(format, args...),
		})
	}
	in.Fields = make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case docID, domain.ColumnIsActive, docCreatedAt, docUpdatedAt, schema.CodeField, domain.ColumnCompanyID, docParentID:
			continue
		}
		in.Fields[k] = v
	}

	if raw, ok := doc[schema.CodeField]; ok && raw != nil && raw != "" {
		code, ok := domain.ToInt64(raw)
		if !ok {
			bad(schema.CodeField, string(domain.FieldPattern), "%s debe ser un número entero", codeLabel(schema))
		}
		in.Code = code
	} else if current != nil {
		in.Code = current.Code
	} else {
		bad(schema.CodeField, string(domain.FieldRequired), "%s es obligatorio", codeLabel(schema))
	}

	if schema.CompanyScoped {
		if raw, ok := doc[domain.ColumnCompanyID]; ok && raw != nil && raw != "" {
			id, ok := domain.ToInt64(raw)
			if !ok {
				bad(domain.ColumnCompanyID, string(domain.FieldType), "Empresa inválida")
			}
			in.CompanyID = id
		} else if current != nil {
			in.CompanyID = current.CompanyID
		}
	}
	if schema.ParentCatalog != "" {
		switch raw := doc[docParentID].(type) {
		case string:
			in.ParentID = raw
		case nil:
			if current != nil {
				in.ParentID = current.ParentID
			}
		default:
			bad(docParentID, string(domain.FieldType), "Registro padre inválido")
		}
	}
	if len(violations) > 0 {
		return RecordInput{}, domain.RuleViolationError{Result: Result{Violations: violations}}
	}
	return in, nil
}
