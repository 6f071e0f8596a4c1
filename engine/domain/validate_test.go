package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "transport_hauts_de_seine", false},
		{"accented", "Population Île-de-France", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"control", "bad\x00name", true},
		{"too long", strings.Repeat("a", 129), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName("db_name", tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) err=%v, wantErr=%v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Fatalf("expected ErrInvalidName, got %v", err)
			}
		})
	}
}

func TestValidateMapping(t *testing.T) {
	cols := []string{"CODE_IRIS", "VALEUR"}
	attrs := []string{"Zone", "Population"}

	if err := ValidateMapping(map[string]string{"CODE_IRIS": "Zone", "VALEUR": Drop}, cols, attrs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := ValidateMapping(map[string]string{"MISSING": "Zone"}, cols, attrs)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "mapping.column" {
		t.Fatalf("expected column validation error, got %v", err)
	}

	if err := ValidateMapping(map[string]string{"VALEUR": "Unknown"}, cols, attrs); !errors.Is(err, ErrInvalidMapping) {
		t.Fatalf("expected ErrInvalidMapping, got %v", err)
	}
}
