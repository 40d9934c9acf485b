package core

import (
	"errors"
	"testing"

	"agroconsole/pkg/domain"
)

func TestSortStateToggle(t *testing.T) {
	var st SortState
	st = st.Toggle("description")
	if st.Column != "description" || st.Direction != SortAsc {
		t.Fatalf("first click sorts ascending, got %+v", st)
	}
	st = st.Toggle("description")
	if st.Direction != SortDesc {
		t.Fatalf("second click flips to descending, got %+v", st)
	}
	st = st.Toggle("description")
	if st.Direction != SortAsc {
		t.Fatalf("third click flips back, got %+v", st)
	}
	st = st.Toggle("code")
	if st.Column != "code" || st.Direction != SortAsc {
		t.Fatalf("new column resets to ascending, got %+v", st)
	}
}

func TestParseSortDirection(t *testing.T) {
	cases := map[string]SortDirection{"": SortAsc, "ASC": SortAsc, " desc ": SortDesc}
	for raw, want := range cases {
		got, err := ParseSortDirection(raw)
		if err != nil || got != want {
			t.Fatalf("ParseSortDirection(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseSortDirection("up"); !errors.Is(err, ErrInvalidSort) {
		t.Fatalf("expected invalid sort error, got %v", err)
	}
}

func TestSortRecordsByKind(t *testing.T) {
	schema := CatalogSchema{Key: "afp", CodeField: "afpCode", Fields: []FieldSpec{
		{Name: "description", Kind: domain.KindString},
		{Name: "commission", Kind: domain.KindNumber},
	}}
	records := []Record{
		{Base: domain.Base{ID: "a"}, Code: 3, IsActive: false, Fields: map[string]any{"description": "Ñuble", "commission": 1.27}},
		{Base: domain.Base{ID: "b"}, Code: 1, IsActive: true, Fields: map[string]any{"description": "capital", "commission": 1.44}},
		{Base: domain.Base{ID: "c"}, Code: 2, IsActive: true, Fields: map[string]any{"description": "Árbol", "commission": 0.58}},
		{Base: domain.Base{ID: "d"}, Code: 4, IsActive: true, Fields: map[string]any{"description": "Zeta", "commission": 1.44}},
	}

	order := func() []int64 { return recordCodes(records) }

	if err := SortRecords(schema, records, SortSpec{Column: "description"}); err != nil {
		t.Fatalf("sort: %v", err)
	}
	if got := order(); got[0] != 2 || got[1] != 1 || got[2] != 3 || got[3] != 4 {
		t.Fatalf("expected Spanish collation Árbol, capital, Ñuble, Zeta; got %v", got)
	}

	if err := SortRecords(schema, records, SortSpec{Column: "commission", Direction: SortDesc}); err != nil {
		t.Fatalf("sort: %v", err)
	}
	// Equal commissions keep code order as the tie break.
	if got := order(); got[0] != 1 || got[1] != 4 || got[2] != 3 || got[3] != 2 {
		t.Fatalf("unexpected numeric descending order %v", got)
	}

	if err := SortRecords(schema, records, SortSpec{Column: "isActive"}); err != nil {
		t.Fatalf("sort: %v", err)
	}
	if got := order(); got[3] != 3 {
		t.Fatalf("vigentes first, got %v", got)
	}

	if err := SortRecords(schema, records, SortSpec{Column: "afpCode", Direction: SortDesc}); err != nil {
		t.Fatalf("sort by code alias: %v", err)
	}
	if got := order(); got[0] != 4 || got[3] != 1 {
		t.Fatalf("unexpected code order %v", got)
	}

	if err := SortRecords(schema, records, SortSpec{Column: "companyId"}); !errors.Is(err, ErrInvalidSort) {
		t.Fatalf("unscoped catalogs cannot sort by company, got %v", err)
	}
}

func TestMatchesSearch(t *testing.T) {
	schema := CatalogSchema{Key: "departments", CodeField: "code", Fields: []FieldSpec{
		{Name: "description", Kind: domain.KindString},
		{Name: "internal", Kind: domain.KindBool},
	}}
	rec := Record{Code: 150, Fields: map[string]any{"description": "Operación Campo", "internal": true}}
	cases := []struct {
		term string
		want bool
	}{
		{"", true},
		{"  ", true},
		{"operacion", true},
		{"CAMPO", true},
		{"15", true},
		{"true", false},
		{"bodega", false},
	}
	for _, tc := range cases {
		if got := MatchesSearch(schema, rec, tc.term); got != tc.want {
			t.Fatalf("MatchesSearch(%q) = %v, want %v", tc.term, got, tc.want)
		}
	}
}
