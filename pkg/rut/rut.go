// Package rut validates and formats Chilean RUT identifiers (Rol Único Tributario).
package rut

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrMalformed reports a value that is not digits followed by a check digit.
	ErrMalformed = errors.New("rut: malformed value")
	// ErrCheckDigit reports a value whose check digit does not match its body.
	ErrCheckDigit = errors.New("rut: check digit mismatch")
)

var shape = regexp.MustCompile(`^[0-9]+[0-9K]$`)

// Normalize trims surrounding whitespace, strips thousands dots and the dash
// before the check digit, and upper-cases the check digit. Any other dash or
// inner space is kept, so Validate rejects it.
func Normalize(value string) string {
	clean := strings.ReplaceAll(strings.TrimSpace(value), ".", "")
	if i := len(clean) - 2; i >= 0 && clean[i] == '-' {
		clean = clean[:i] + clean[i+1:]
	}
	return strings.ToUpper(clean)
}

// CheckDigit returns the modulo 11 check digit for a numeric RUT body.
func CheckDigit(body string) (string, error) {
	if body == "" {
		return "", ErrMalformed
	}
	sum := 0
	weight := 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return "", ErrMalformed
		}
		sum += int(c-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch dv := 11 - sum%11; dv {
	case 11:
		return "0", nil
	case 10:
		return "K", nil
	default:
		return strconv.Itoa(dv), nil
	}
}

// Validate checks a RUT in any common notation. Empty input is accepted so that
// required-ness stays a separate concern.
func Validate(value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	clean := Normalize(value)
	if !shape.MatchString(clean) {
		return ErrMalformed
	}
	body, dv := clean[:len(clean)-1], clean[len(clean)-1:]
	expected, err := CheckDigit(body)
	if err != nil {
		return err
	}
	if !strings.EqualFold(expected, dv) {
		return ErrCheckDigit
	}
	return nil
}

// IsValid reports whether Validate accepts the value.
func IsValid(value string) bool { return Validate(value) == nil }

// Format renders a RUT with thousands dots and a dash before the check digit,
// e.g. 12.345.678-5. Values that cannot be normalised are returned unchanged.
func Format(value string) string {
	clean := Normalize(value)
	if len(clean) < 2 || !shape.MatchString(clean) {
		return value
	}
	body, dv := clean[:len(clean)-1], clean[len(clean)-1:]
	body = strings.TrimLeft(body, "0")
	if body == "" {
		body = "0"
	}
	var b strings.Builder
	lead := len(body) % 3
	if lead > 0 {
		b.WriteString(body[:lead])
	}
	for i := lead; i < len(body); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(body[i : i+3])
	}
	b.WriteByte('-')
	b.WriteString(dv)
	return b.String()
}
