// Package seeds decodes the YAML sample data shipped with each module.
//
// Seed records get deterministic IDs derived from their business key so that
// child records can reference parents by code and reseeding a durable store
// never duplicates data.
package seeds

import (
	"fmt"

	"agroconsole/internal/core"
	"agroconsole/pkg/domain"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Namespace scopes the name-based UUIDs of seed records.
var Namespace = uuid.MustParse("5c1f0c3e-8d8b-4b7a-9a4e-6f0e7b2d9a11")

// RecordID returns the deterministic ID of the record with the given key.
func RecordID(key domain.Key) string {
	return uuid.NewSHA1(Namespace, []byte(key.String())).String()
}

type file struct {
	Records []record `yaml:"records"`
}

type record struct {
	Catalog string `yaml:"catalog"`
	Code    int64  `yaml:"code"`
	Company int64  `yaml:"company"`
	// Parent is the code of the parent record. The parent's company is taken
	// from Company when the parent catalog is company scoped.
	Parent *int64         `yaml:"parent"`
	Active *bool          `yaml:"active"`
	Fields map[string]any `yaml:"fields"`
}

// Load decodes a seed file against the module's catalogs. Parents must appear
// before their children. Field values are coerced to their canonical types
// but are otherwise kept as authored, including values the form validators
// would reject.
func Load(data []byte, catalogs []core.CatalogSchema) (core.Seed, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return core.Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	schemas := make(map[string]core.CatalogSchema, len(catalogs))
	for _, c := range catalogs {
		schemas[c.Key] = c
	}
	seen := make(map[string]struct{}, len(f.Records))
	out := core.Seed{Records: make([]core.Record, 0, len(f.Records))}
	for i, raw := range f.Records {
		schema, ok := schemas[raw.Catalog]
		if !ok {
			return core.Seed{}, fmt.Errorf("seed record %d: unknown catalog %q", i, raw.Catalog)
		}
		rec := core.Record{Catalog: raw.Catalog, Code: raw.Code, IsActive: true}
		if raw.Active != nil {
			rec.IsActive = *raw.Active
		}
		if schema.CompanyScoped {
			if raw.Company <= 0 {
				return core.Seed{}, fmt.Errorf("seed %s/%d: company required", raw.Catalog, raw.Code)
			}
			rec.CompanyID = raw.Company
		}
		if schema.ParentCatalog != "" {
			if raw.Parent == nil {
				return core.Seed{}, fmt.Errorf("seed %s/%d: parent required", raw.Catalog, raw.Code)
			}
			parentKey := domain.Key{Catalog: schema.ParentCatalog, Code: *raw.Parent}
			if parent, ok := schemas[schema.ParentCatalog]; ok && parent.CompanyScoped {
				parentKey.CompanyID = raw.Company
			}
			rec.ParentID = RecordID(parentKey)
			if _, ok := seen[rec.ParentID]; !ok {
				return core.Seed{}, fmt.Errorf("seed %s/%d: parent %s not seeded before child", raw.Catalog, raw.Code, parentKey)
			}
		}
		fields, err := coerce(schema, raw.Fields)
		if err != nil {
			return core.Seed{}, fmt.Errorf("seed %s/%d: %w", raw.Catalog, raw.Code, err)
		}
		rec.Fields = fields
		rec.ID = RecordID(rec.Key())
		if _, dup := seen[rec.ID]; dup {
			return core.Seed{}, fmt.Errorf("seed %s: duplicate record", rec.Key())
		}
		seen[rec.ID] = struct{}{}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func coerce(schema core.CatalogSchema, input map[string]any) (map[string]any, error) {
	normalized, errs := domain.NormalizeFields(schema.Fields, input)
	for _, fe := range errs {
		if fe.Code == domain.FieldUnknown {
			return nil, fmt.Errorf("unknown field %s", fe.Field)
		}
		if raw, ok := input[fe.Field]; ok {
			normalized[fe.Field] = raw
		}
	}
	return normalized, nil
}
