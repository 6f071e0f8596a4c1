// Package session holds the per-user state of the dataset import workflow.
package session

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/engine/mapping"
	"github.com/wissalbenjira/SDG-KG/pkg/tabular"
)

// ImportState is one import in progress. The mapping always covers every
// column; a column nobody mapped is Drop.
type ImportState struct {
	ID          string            `json:"id"`
	DBName      string            `json:"db_name"`
	Concept     string            `json:"concept"`
	CSVName     string            `json:"csv_name"`
	CSVPath     string            `json:"csv_path"`
	GeoJSONPath string            `json:"geojson_path"`
	Encoding    string            `json:"encoding"`
	Separator   string            `json:"separator"`
	Columns     []string          `json:"columns"`
	Mapping     map[string]string `json:"mapping"`
	Suggested   bool              `json:"suggested"`
	Done        bool              `json:"done"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewImportState returns an empty import with the default CSV options.
func NewImportState(id string) *ImportState {
	return &ImportState{
		ID:        id,
		Encoding:  tabular.UTF8,
		Separator: ",",
		Columns:   []string{},
		Mapping:   map[string]string{},
	}
}

// SetDatabase names the database being imported and the concept it
// instantiates. Renaming the database discards the current mapping.
func (s *ImportState) SetDatabase(name, concept string) error {
	name = strings.TrimSpace(name)
	if err := domain.ValidateName("db_name", name); err != nil {
		return err
	}
	if strings.TrimSpace(concept) == "" {
		return domain.NewValidationError("concept", concept, domain.ErrInvalidName)
	}
	if name != s.DBName {
		s.resetMapping()
	}
	s.DBName = name
	s.Concept = concept
	s.Done = false
	return nil
}

// Files describes the uploaded files of an import.
type Files struct {
	CSVName     string
	CSVPath     string
	GeoJSONPath string
	Encoding    string
	Separator   string
	Columns     []string
}

// SetFiles records uploaded files. A different CSV, or the same one read
// with different columns, discards the current mapping.
func (s *ImportState) SetFiles(f Files) {
	if f.CSVName != s.CSVName || !slices.Equal(f.Columns, s.Columns) {
		s.Columns = slices.Clone(f.Columns)
		s.resetMapping()
	}
	s.CSVName = f.CSVName
	s.CSVPath = f.CSVPath
	s.GeoJSONPath = f.GeoJSONPath
	s.Encoding = f.Encoding
	s.Separator = f.Separator
	s.Done = false
}

// ApplySuggestion replaces the mapping with a model suggestion. Only
// entries for known columns are taken.
func (s *ImportState) ApplySuggestion(m map[string]string) {
	s.resetMapping()
	for _, c := range s.Columns {
		if v, ok := m[c]; ok {
			s.Mapping[c] = v
		}
	}
	s.Suggested = true
}

// SetMapping overrides entries of the mapping. Targets must be Drop or one of
// attributes.
func (s *ImportState) SetMapping(m map[string]string, attributes []string) error {
	if err := domain.ValidateMapping(m, s.Columns, attributes); err != nil {
		return err
	}
	maps.Copy(s.Mapping, m)
	s.Done = false
	return nil
}

// Ready reports whether the import has everything needed to commit.
func (s *ImportState) Ready() error {
	switch {
	case s.DBName == "":
		return domain.NewValidationError("db_name", "", domain.ErrInvalidName)
	case s.Concept == "":
		return domain.NewValidationError("concept", "", domain.ErrInvalidName)
	case s.CSVPath == "" || len(s.Columns) == 0:
		return domain.NewValidationError("csv", s.CSVName, domain.ErrInvalidParams)
	}
	return nil
}

// MarkDone records a successful commit.
func (s *ImportState) MarkDone() { s.Done = true }

// Reset clears everything but the id.
func (s *ImportState) Reset() {
	*s = *NewImportState(s.ID)
}

func (s *ImportState) resetMapping() {
	s.Mapping = mapping.DefaultMapping(s.Columns)
	s.Suggested = false
}

func (s *ImportState) clone() *ImportState {
	c := *s
	c.Columns = slices.Clone(s.Columns)
	c.Mapping = maps.Clone(s.Mapping)
	return &c
}
