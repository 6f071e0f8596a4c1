package tabular

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Supported encodings.
const (
	UTF8   = "utf-8"
	Latin1 = "latin-1"
)

// Encodings lists the encodings offered for uploads, default first.
var Encodings = []string{UTF8, Latin1}

var (
	ErrEncoding  = errors.New("tabular: unsupported encoding")
	ErrSeparator = errors.New("tabular: separator must be a single character")
)

// MissingColumnsError names the columns a source lacks.
type MissingColumnsError struct {
	Source  string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing columns %s", e.Source, strings.Join(e.Missing, ", "))
}

// ParseEncoding maps accepted spellings onto UTF8 or Latin1.
func ParseEncoding(enc string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "utf-8", "utf8":
		return UTF8, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return Latin1, nil
	}
	return "", fmt.Errorf("%w: %q", ErrEncoding, enc)
}

// ParseSeparator returns the delimiter rune, defaulting to a comma.
// `\t` and "tab" select a tab.
func ParseSeparator(sep string) (rune, error) {
	switch sep {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(sep) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrSeparator, sep)
	}
	r, _ := utf8.DecodeRuneInString(sep)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("%w: %q", ErrSeparator, sep)
	}
	return r, nil
}
