package rut

import (
	"errors"
	"testing"
)

func TestCheckDigit(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"12345678", "5"},
		{"76123456", "0"},
		{"77987654", "3"},
		{"10000013", "K"},
		{"1", "9"},
	}
	for _, tc := range cases {
		got, err := CheckDigit(tc.body)
		if err != nil {
			t.Fatalf("CheckDigit(%q): %v", tc.body, err)
		}
		if got != tc.want {
			t.Fatalf("CheckDigit(%q) = %q, want %q", tc.body, got, tc.want)
		}
	}
	if _, err := CheckDigit("12a"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if _, err := CheckDigit(""); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected malformed error for empty body, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  error
	}{
		{"empty passes", "", nil},
		{"blank passes", "   ", nil},
		{"dotted", "12.345.678-5", nil},
		{"plain", "123456785", nil},
		{"zero digit", "76.123.456-0", nil},
		{"upper K", "10.000.013-K", nil},
		{"lower k", "10000013-k", nil},
		{"wrong digit", "12.345.678-9", ErrCheckDigit},
		{"letters in body", "12.3A5.678-5", ErrMalformed},
		{"single char", "5", ErrMalformed},
		{"k only", "K", ErrMalformed},
		{"inner spaces", "12 345 678-5", ErrMalformed},
		{"dash between every digit", "1-2-3-4-5-6-7-8-5", ErrMalformed},
		{"dash inside body", "1234567-85", ErrMalformed},
		{"surrounding spaces", "  12.345.678-5 ", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.value)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate(%q) = %v, want %v", tc.value, err, tc.want)
			}
			if IsValid(tc.value) != (tc.want == nil) {
				t.Fatalf("IsValid(%q) disagrees with Validate", tc.value)
			}
		})
	}
}

func TestNormalizeAndFormat(t *testing.T) {
	if got := Normalize(" 10.000.013-k "); got != "10000013K" {
		t.Fatalf("Normalize = %q", got)
	}
	cases := map[string]string{
		"123456785":    "12.345.678-5",
		"9876543-3":    "9.876.543-3",
		"10000013k":    "10.000.013-K",
		"19":           "1-9",
		"001-9":        "1-9",
		"not a rut":    "not a rut",
		"12 345 678-5": "12 345 678-5",
		"76.123.456-0": "76.123.456-0",
	}
	for in, want := range cases {
		if got := Format(in); got != want {
			t.Fatalf("Format(%q) = %q, want %q", in, got, want)
		}
	}
}
