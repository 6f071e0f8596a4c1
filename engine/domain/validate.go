package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameLength = 128

// ValidateName checks a user supplied node id such as a database name.
func ValidateName(field, name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return NewValidationError(field, name, ErrInvalidName)
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return NewValidationError(field, name, ErrInvalidName)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return NewValidationError(field, name, ErrInvalidName)
		}
	}
	return nil
}

// ValidateMapping checks that every mapped column exists and every target is
// either Drop or part of the attribute vocabulary.
func ValidateMapping(mapping map[string]string, columns, attributes []string) error {
	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}
	vocab := make(map[string]bool, len(attributes)+1)
	vocab[Drop] = true
	for _, a := range attributes {
		vocab[a] = true
	}
	for col, attr := range mapping {
		if !cols[col] {
			return NewValidationError("mapping.column", col, ErrInvalidMapping)
		}
		if !vocab[attr] {
			return NewValidationError("mapping."+col, attr, ErrInvalidMapping)
		}
	}
	return nil
}
