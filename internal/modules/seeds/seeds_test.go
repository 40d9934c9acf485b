package seeds

import (
	"strings"
	"testing"

	"agroconsole/internal/core"
	"agroconsole/pkg/domain"
)

var testCatalogs = []core.CatalogSchema{
	{Key: "warehouses", CodeField: "code", CompanyScoped: true, Fields: []core.FieldSpec{{Name: "name", Kind: domain.KindString, Required: true}}},
	{Key: "levels", CodeField: "code", ParentCatalog: "warehouses", Fields: []core.FieldSpec{{Name: "name", Kind: domain.KindString}}},
	{Key: "bosses", CodeField: "code", Fields: []core.FieldSpec{{Name: "rut", Kind: domain.KindRUT, Required: true}}},
}

func TestLoadLinksChildrenToParents(t *testing.T) {
	data := []byte(`
records:
  - {catalog: warehouses, company: 1, code: 2, fields: {name: Bodega}}
  - {catalog: levels, company: 1, parent: 2, code: 7, active: false, fields: {name: Estante}}
`)
	seed, err := Load(data, testCatalogs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(seed.Records) != 2 {
		t.Fatalf("expected two records, got %d", len(seed.Records))
	}
	parent, child := seed.Records[0], seed.Records[1]
	if parent.ID != RecordID(domain.Key{Catalog: "warehouses", CompanyID: 1, Code: 2}) {
		t.Fatalf("unexpected parent id %s", parent.ID)
	}
	if child.ParentID != parent.ID || child.CompanyID != 0 || child.IsActive {
		t.Fatalf("unexpected child %+v", child)
	}
	again, _ := Load(data, testCatalogs)
	if again.Records[1].ID != child.ID {
		t.Fatalf("ids must be deterministic")
	}
}

func TestLoadNormalizesButKeepsInvalidValues(t *testing.T) {
	seed, err := Load([]byte(`
records:
  - {catalog: bosses, code: 1, fields: {rut: "123456785"}}
  - {catalog: bosses, code: 2, fields: {rut: "12.345.678-9"}}
`), testCatalogs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := seed.Records[0].String("rut"); got != "12.345.678-5" {
		t.Fatalf("valid rut should be formatted, got %q", got)
	}
	if got := seed.Records[1].String("rut"); got != "12.345.678-9" {
		t.Fatalf("invalid rut kept as authored, got %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"unknown catalog":   `records: [{catalog: nope, code: 1}]`,
		"company required":  `records: [{catalog: warehouses, code: 1, fields: {name: x}}]`,
		"parent required":   `records: [{catalog: levels, code: 1}]`,
		"parent not seeded": `records: [{catalog: levels, company: 1, parent: 9, code: 1}]`,
		"unknown field":     `records: [{catalog: bosses, code: 1, fields: {nombre: x}}]`,
		"duplicate record":  `records: [{catalog: bosses, code: 1}, {catalog: bosses, code: 1}]`,
		"decode seed":       `records: {`,
	}
	for name, doc := range cases {
		if _, err := Load([]byte(doc), testCatalogs); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if name == "decode seed" && !strings.Contains(err.Error(), name) {
			t.Fatalf("unexpected error %v", err)
		}
	}
}
