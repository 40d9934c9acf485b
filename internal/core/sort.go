package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"agroconsole/pkg/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SortDirection orders a listing.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ErrInvalidSort is returned for a sort column the catalog does not expose.
var ErrInvalidSort = errors.New("invalid sort column")

// SortSpec selects the column and direction of a listing. An empty column
// sorts by code.
type SortSpec struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

// SortState mirrors the clickable table headers: clicking the active column
// flips the direction, clicking another column sorts it ascending.
type SortState struct {
	Column    string
	Direction SortDirection
}

// Toggle returns the state after clicking column.
func (s SortState) Toggle(column string) SortState {
	if s.Column == column {
		if s.Direction == SortAsc {
			return SortState{Column: column, Direction: SortDesc}
		}
		return SortState{Column: column, Direction: SortAsc}
	}
	return SortState{Column: column, Direction: SortAsc}
}

// Spec converts the state into a SortSpec.
func (s SortState) Spec() SortSpec { return SortSpec{Column: s.Column, Direction: s.Direction} }

// ParseSortDirection accepts "asc", "desc" or empty (ascending).
func ParseSortDirection(raw string) (SortDirection, error) {
	switch SortDirection(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	default:
		return "", fmt.Errorf("%w: direction %q", ErrInvalidSort, raw)
	}
}

// SortRecords orders records in place by spec. Numbers compare numerically,
// booleans put true first, everything else uses Spanish collation. Ties fall
// back to code then ID.
func SortRecords(schema CatalogSchema, records []Record, spec SortSpec) error {
	column := spec.Column
	if column == "" {
		column = domain.ColumnCode
	}
	if !schema.HasColumn(column) {
		return fmt.Errorf("%w: %s", ErrInvalidSort, spec.Column)
	}
	desc := spec.Direction == SortDesc
	coll := collate.New(language.Spanish)
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		cmp := compareValues(coll, schema.ValueOf(a, column), schema.ValueOf(b, column))
		if desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ID < b.ID
	})
	return nil
}

func compareValues(coll *collate.Collator, a, b any) int {
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case ab:
				return -1
			default:
				return 1
			}
		}
	}
	return coll.CompareString(displayText(a), displayText(b))
}

func numeric(v any) (float64, bool) {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return domain.ToFloat64(v)
	default:
		return 0, false
	}
}

func displayText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// foldText lowercases and strips diacritics so "Administración" matches
// "administracion".
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

// MatchesSearch reports whether any visible value of the record contains the
// search term, ignoring case and accents.
func MatchesSearch(schema CatalogSchema, r Record, term string) bool {
	needle := foldText(strings.TrimSpace(term))
	if needle == "" {
		return true
	}
	if strings.Contains(strconv.FormatInt(r.Code, 10), needle) {
		return true
	}
	for _, f := range schema.Fields {
		v, ok := r.Fields[f.Name]
		if !ok || v == nil {
			continue
		}
		if _, isBool := v.(bool); isBool {
			continue
		}
		if strings.Contains(foldText(displayText(v)), needle) {
			return true
		}
	}
	return false
}
