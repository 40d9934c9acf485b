package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"agroconsole/pkg/rut"
)

// FieldErrorCode classifies a form validation failure.
type FieldErrorCode string

// Validation failure codes, mirroring the form validators of the console.
const (
	FieldRequired FieldErrorCode = "required"
	FieldPattern  FieldErrorCode = "pattern"
	FieldMin      FieldErrorCode = "min"
	FieldMax      FieldErrorCode = "max"
	FieldEmail    FieldErrorCode = "email"
	FieldRUT      FieldErrorCode = "rut"
	FieldType     FieldErrorCode = "type"
	FieldUnknown  FieldErrorCode = "unknown"
)

// FieldError reports an invalid form value.
type FieldError struct {
	Field   string         `json:"field"`
	Code    FieldErrorCode `json:"code"`
	Message string         `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// emailPattern is the WHATWG address grammar without the overall length guard,
// which is checked separately.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

var patternCache sync.Map

func compiled(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

// NormalizeFields validates input against the field specs and returns the
// values coerced to their canonical Go types: int64 for int, region and
// commune kinds, float64 for number, bool for bool and trimmed strings
// otherwise. Absent optional fields are omitted, except bools which default to
// false.
func NormalizeFields(specs []FieldSpec, input map[string]any) (map[string]any, []FieldError) {
	out := make(map[string]any, len(specs))
	var errs []FieldError
	known := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		known[spec.Name] = struct{}{}
		value, err := normalizeField(spec, input[spec.Name])
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		if value != nil {
			out[spec.Name] = value
		}
	}
	for name := range input {
		if _, ok := known[name]; !ok {
			errs = append(errs, FieldError{Field: name, Code: FieldUnknown, Message: "unknown field"})
		}
	}
	sortFieldErrors(errs)
	return out, errs
}

func normalizeField(spec FieldSpec, raw any) (any, *FieldError) {
	fail := func(code FieldErrorCode, format string, args ...any) (any, *FieldError) {
		return nil, &FieldError{Field: spec.Name, Code: code, Message: fmt.Sprintf(format, args...)}
	}
	if isBlank(raw) {
		if spec.Kind == KindBool {
			return false, nil
		}
		if spec.Required {
			return fail(FieldRequired, "%s es obligatorio", labelOf(spec))
		}
		return nil, nil
	}

	switch spec.Kind {
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fail(FieldType, "%s debe ser verdadero o falso", labelOf(spec))
			}
			return b, nil
		default:
			return fail(FieldType, "%s debe ser verdadero o falso", labelOf(spec))
		}
	case KindInt, KindRegion, KindCommune:
		text := numericText(raw)
		if spec.Pattern != "" {
			if err := matchPattern(spec, text); err != nil {
				return nil, err
			}
		}
		n, ok := ToInt64(raw)
		if !ok {
			return fail(FieldType, "%s debe ser un número entero", labelOf(spec))
		}
		if err := checkBounds(spec, float64(n)); err != nil {
			return nil, err
		}
		return n, nil
	case KindNumber:
		if spec.Pattern != "" {
			if err := matchPattern(spec, numericText(raw)); err != nil {
				return nil, err
			}
		}
		f, ok := ToFloat64(raw)
		if !ok {
			return fail(FieldType, "%s debe ser numérico", labelOf(spec))
		}
		if err := checkBounds(spec, f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		s, ok := raw.(string)
		if !ok {
			return fail(FieldType, "%s debe ser texto", labelOf(spec))
		}
		s = strings.TrimSpace(s)
		if spec.Pattern != "" {
			if err := matchPattern(spec, s); err != nil {
				return nil, err
			}
		}
		switch spec.Kind {
		case KindEmail:
			if len(s) > 254 || !emailPattern.MatchString(s) {
				return fail(FieldEmail, "%s no es un correo válido", labelOf(spec))
			}
		case KindRUT:
			if err := rut.Validate(s); err != nil {
				return fail(FieldRUT, "%s no es un RUT válido", labelOf(spec))
			}
			s = rut.Format(s)
		}
		return s, nil
	}
}

func matchPattern(spec FieldSpec, text string) *FieldError {
	re, err := compiled(spec.Pattern)
	if err != nil {
		return &FieldError{Field: spec.Name, Code: FieldPattern, Message: fmt.Sprintf("invalid pattern: %v", err)}
	}
	if !re.MatchString(text) {
		return &FieldError{Field: spec.Name, Code: FieldPattern, Message: fmt.Sprintf("%s tiene un formato inválido", labelOf(spec))}
	}
	return nil
}

func checkBounds(spec FieldSpec, v float64) *FieldError {
	if spec.Min != nil && v < *spec.Min {
		return &FieldError{Field: spec.Name, Code: FieldMin, Message: fmt.Sprintf("%s debe ser mayor o igual a %g", labelOf(spec), *spec.Min)}
	}
	if spec.Max != nil && v > *spec.Max {
		return &FieldError{Field: spec.Name, Code: FieldMax, Message: fmt.Sprintf("%s debe ser menor o igual a %g", labelOf(spec), *spec.Max)}
	}
	return nil
}

func numericText(v any) string {
	switch n := v.(type) {
	case string:
		return strings.TrimSpace(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}

func labelOf(spec FieldSpec) string {
	if spec.Label != "" {
		return spec.Label
	}
	return spec.Name
}

func sortFieldErrors(errs []FieldError) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
}
