// Package tabular reads the delimited text and GeoJSON sources the dashboard
// works with into small in-memory tables.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CSVOptions describes how a delimited file is encoded.
type CSVOptions struct {
	Encoding  string // "utf-8" (default) or "latin-1"
	Separator string // single character, default ","
}

// Table is a header plus string rows. Rows always have len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// NewTable builds a table from a header and rows.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	return t
}

// ReadCSV decodes r with opts. The first record is the header.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	enc, err := ParseEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	sep, err := ParseSeparator(opts.Separator)
	if err != nil {
		return nil, err
	}

	src := r
	if enc == Latin1 {
		src = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.Comma = sep
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("tabular: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("tabular: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("tabular: malformed csv: %w", err)
	}
	return NewTable(header, rows), nil
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, opts CSVOptions) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: %w", err)
	}
	t, err := ReadCSV(bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return t, nil
}

// Has reports whether the table carries column name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Require fails with a *MissingColumnsError listing any absent columns.
func (t *Table) Require(source string, names ...string) error {
	var missing []string
	for _, n := range names {
		if !t.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Source: source, Missing: missing}
	}
	return nil
}

// Value returns the cell of row i in column name, or "" when absent.
func (t *Table) Value(i int, name string) string {
	c, ok := t.index[name]
	if !ok || c >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][c]
}

// Float parses a numeric cell. Blank cells and a decimal comma are accepted.
func (t *Table) Float(i int, name string) (float64, error) {
	raw := strings.TrimSpace(t.Value(i, name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("tabular: row %d column %s: %w", i+1, name, err)
	}
	return v, nil
}

// Int parses an integer cell, tolerating a "2017.0" style float.
func (t *Table) Int(i int, name string) (int, error) {
	raw := strings.TrimSpace(t.Value(i, name))
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("tabular: row %d column %s: %w", i+1, name, err)
	}
	return int(f), nil
}

// Head returns up to n rows.
func (t *Table) Head(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// UniqueValues returns up to limit distinct non-blank values of column name
// in order of first appearance.
func (t *Table) UniqueValues(name string, limit int) []string {
	c, ok := t.index[name]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.Rows {
		if len(out) == limit {
			break
		}
		v := strings.TrimSpace(row[c])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
