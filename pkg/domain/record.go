// Package domain defines the catalog records, schemas, and rule evaluation
// primitives shared by the agroconsole service and its storage backends.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Base contains common fields for all persisted documents.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record is a single row of an ERP maintainer catalog (units of measure, AFPs,
// farms, warehouses, ...). Nested collections such as warehouse storage levels
// are records of a child catalog that reference their owner through ParentID.
type Record struct {
	Base
	Catalog   string         `json:"catalog"`
	Code      int64          `json:"code"`
	CompanyID int64          `json:"company_id,omitempty"`
	ParentID  string         `json:"parent_id,omitempty"`
	Fields    map[string]any `json:"fields"`
	IsActive  bool           `json:"is_active"`
}

// Key identifies a record by its business code within its scope.
type Key struct {
	Catalog   string
	CompanyID int64
	ParentID  string
	Code      int64
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Catalog)
	if k.CompanyID != 0 {
		fmt.Fprintf(&b, "/company=%d", k.CompanyID)
	}
	if k.ParentID != "" {
		fmt.Fprintf(&b, "/parent=%s", k.ParentID)
	}
	fmt.Fprintf(&b, "/code=%d", k.Code)
	return b.String()
}

// Key returns the business key of the record.
func (r Record) Key() Key {
	return Key{Catalog: r.Catalog, CompanyID: r.CompanyID, ParentID: r.ParentID, Code: r.Code}
}

// Clone returns a copy whose Fields map can be mutated independently.
func (r Record) Clone() Record {
	cp := r
	cp.Fields = CloneValues(r.Fields)
	if cp.Fields == nil {
		cp.Fields = map[string]any{}
	}
	return cp
}

// String returns a string field, or "" when absent.
func (r Record) String(name string) string {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns an integral field value.
func (r Record) Int(name string) (int64, bool) {
	return ToInt64(r.Fields[name])
}

// Float returns a numeric field value.
func (r Record) Float(name string) (float64, bool) {
	return ToFloat64(r.Fields[name])
}

// Setting is a single-document form such as the general parameters of the
// console or the warehouse accounting accounts.
type Setting struct {
	Key       string         `json:"key"`
	Values    map[string]any `json:"values"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the setting values.
func (s Setting) Clone() Setting {
	cp := s
	cp.Values = CloneValues(s.Values)
	return cp
}

// CloneValues copies a flat value map.
func CloneValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ToInt64 converts the numeric representations produced by JSON, YAML and
// form decoding into an int64. Fractional values are rejected.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return ToInt64(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		// 2^63 is exactly representable; anything at or beyond it overflows.
		if n < math.MinInt64 || n >= -math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return ToInt64(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// ToFloat64 converts numeric representations into a float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
