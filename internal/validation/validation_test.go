package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCity_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCity(tc.input, 100)
			if !errors.Is(err, ErrCityEmpty) {
				t.Errorf("ValidateCity(%q) = %v, want ErrCityEmpty", tc.input, err)
			}
		})
	}
}

func TestValidateCity_InvalidChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"nul", "Lon\x00don"},
		{"newline", "Lon\ndon"},
		{"escape", "Lon\x1bdon"},
		{"delete", "Lon\x7fdon"},
		{"invalid utf8", "Lon\xffdon"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCity(tc.input, 100)
			if !errors.Is(err, ErrCityInvalidChars) {
				t.Errorf("ValidateCity(%q) = %v, want ErrCityInvalidChars", tc.input, err)
			}
		})
	}
}

func TestValidateCity_Valid(t *testing.T) {
	tests := []string{
		"London",
		"New York",
		"London,UK",
		"Saint-Étienne",
		"Zürich",
		"東京",
		"  Boston  ",
		"51.5072,-0.1276",
		"Wien?",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if err := ValidateCity(input, 100); err != nil {
				t.Errorf("ValidateCity(%q) = %v, want nil", input, err)
			}
		})
	}
}

func TestValidateCity_LengthBoundaries(t *testing.T) {
	if err := ValidateCity(strings.Repeat("ü", 10), 10); err != nil {
		t.Errorf("exactly max runes: err = %v, want nil", err)
	}
	if err := ValidateCity(strings.Repeat("ü", 11), 10); !errors.Is(err, ErrCityTooLong) {
		t.Errorf("over max: err = %v, want ErrCityTooLong", err)
	}
	if err := ValidateCity(strings.Repeat("a", DefaultCityMaxLength+1), 0); !errors.Is(err, ErrCityTooLong) {
		t.Errorf("default max: err = %v, want ErrCityTooLong", err)
	}
}
