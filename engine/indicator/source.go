package indicator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/pkg/tabular"
)

// SourceFiles locates the five source files of the indicator.
type SourceFiles struct {
	PopulationCSV     string `json:"population_csv"`
	PopulationGeoJSON string `json:"population_geojson"`
	StopsCSV          string `json:"stops_csv"`
	StopsGeoJSON      string `json:"stops_geojson"`
	DistancesCSV      string `json:"distances_csv"`
}

// DefaultSourceFiles returns the bundled file names under dir.
func DefaultSourceFiles(dir string) SourceFiles {
	return SourceFiles{
		PopulationCSV:     filepath.Join(dir, "Population (2017-2021, INSEE).csv"),
		PopulationGeoJSON: filepath.Join(dir, "Population (2017-2021, INSEE).geojson"),
		StopsCSV:          filepath.Join(dir, "PublicTransportStop (2014-2024, OpenStreetMap).csv"),
		StopsGeoJSON:      filepath.Join(dir, "PublicTransportStop (2014-2024, OpenStreetMap).geojson"),
		DistancesCSV:      filepath.Join(dir, "distances_2017_2021.csv"),
	}
}

// Key identifies the source set for caching.
func (f SourceFiles) Key() string {
	return strings.Join([]string{f.PopulationCSV, f.PopulationGeoJSON, f.StopsCSV, f.StopsGeoJSON, f.DistancesCSV}, "|")
}

// Required columns per source.
var (
	populationColumns = []string{"CODE_IRIS", "CODE_COMMUNE", "ANNEE_DONNEES", "MODE_TRANS", "VALEUR"}
	stopColumns       = []string{"osm_id", "fclass", "year"}
	distanceColumns   = []string{"population_id", "transport_id", "distance"}
)

// LoadSources reads and validates all five files.
func LoadSources(_ context.Context, files SourceFiles) (*Sources, error) {
	src := &Sources{}
	var err error
	if src.Population, err = loadPopulation(files.PopulationCSV); err != nil {
		return nil, err
	}
	if src.Units, err = loadUnits(files.PopulationGeoJSON); err != nil {
		return nil, err
	}
	if src.Stops, err = loadStops(files.StopsCSV); err != nil {
		return nil, err
	}
	if src.StopIDs, err = loadStopIDs(files.StopsGeoJSON); err != nil {
		return nil, err
	}
	if src.Distances, err = loadDistances(files.DistancesCSV); err != nil {
		return nil, err
	}
	return src, nil
}

// schemaErr tags missing-column failures with domain.ErrSchemaMismatch.
func schemaErr(err error) error {
	var mc *tabular.MissingColumnsError
	if errors.As(err, &mc) {
		return fmt.Errorf("indicator: %w: %w", domain.ErrSchemaMismatch, err)
	}
	return fmt.Errorf("indicator: %w", err)
}

func loadPopulation(path string) ([]PopulationRecord, error) {
	t, err := tabular.ReadCSVFile(path, tabular.CSVOptions{})
	if err != nil {
		return nil, schemaErr(err)
	}
	if err := t.Require("population", populationColumns...); err != nil {
		return nil, schemaErr(err)
	}
	out := make([]PopulationRecord, 0, len(t.Rows))
	for i := range t.Rows {
		year, err := t.Int(i, "ANNEE_DONNEES")
		if err != nil {
			return nil, schemaErr(err)
		}
		value, err := t.Float(i, "VALEUR")
		if err != nil {
			return nil, schemaErr(err)
		}
		out = append(out, PopulationRecord{
			IrisID:    t.Value(i, "CODE_IRIS"),
			CommuneID: t.Value(i, "CODE_COMMUNE"),
			Year:      year,
			Mode:      t.Value(i, "MODE_TRANS"),
			Value:     value,
		})
	}
	return out, nil
}

func loadUnits(path string) ([]Unit, error) {
	fc, err := tabular.ReadGeoJSONFile(path)
	if err != nil {
		return nil, schemaErr(err)
	}
	if err := tabular.RequireProperties(fc, "population geometry", "id", "name"); err != nil {
		return nil, schemaErr(err)
	}
	out := make([]Unit, 0, len(fc.Features))
	for _, f := range fc.Features {
		id, _ := tabular.PropString(f, "id")
		name, _ := tabular.PropString(f, "name")
		out = append(out, Unit{ID: id, Name: name, Geometry: f.Geometry})
	}
	return out, nil
}

func loadStops(path string) ([]TransportStop, error) {
	t, err := tabular.ReadCSVFile(path, tabular.CSVOptions{})
	if err != nil {
		return nil, schemaErr(err)
	}
	if err := t.Require("transport stops", stopColumns...); err != nil {
		return nil, schemaErr(err)
	}
	out := make([]TransportStop, 0, len(t.Rows))
	for i := range t.Rows {
		year, err := t.Int(i, "year")
		if err != nil {
			return nil, schemaErr(err)
		}
		out = append(out, TransportStop{ID: t.Value(i, "osm_id"), Class: t.Value(i, "fclass"), Year: year})
	}
	return out, nil
}

func loadStopIDs(path string) ([]string, error) {
	fc, err := tabular.ReadGeoJSONFile(path)
	if err != nil {
		return nil, schemaErr(err)
	}
	if err := tabular.RequireProperties(fc, "transport stop geometry", "id"); err != nil {
		return nil, schemaErr(err)
	}
	out := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		id, _ := tabular.PropString(f, "id")
		out = append(out, id)
	}
	return out, nil
}

func loadDistances(path string) ([]DistanceLink, error) {
	t, err := tabular.ReadCSVFile(path, tabular.CSVOptions{})
	if err != nil {
		return nil, schemaErr(err)
	}
	if err := t.Require("distances", distanceColumns...); err != nil {
		return nil, schemaErr(err)
	}
	out := make([]DistanceLink, 0, len(t.Rows))
	for i := range t.Rows {
		d := math.NaN()
		if strings.TrimSpace(t.Value(i, "distance")) != "" {
			if d, err = t.Float(i, "distance"); err != nil {
				return nil, schemaErr(err)
			}
		}
		out = append(out, DistanceLink{
			PopulationID: t.Value(i, "population_id"),
			TransportID:  t.Value(i, "transport_id"),
			Distance:     d,
		})
	}
	return out, nil
}

// Loader produces Sources for a file set.
type Loader func(ctx context.Context, files SourceFiles) (*Sources, error)

// SourceCache loads each source set once and hands out the same *Sources to
// every caller. Entries are never invalidated. A failed load is not cached.
type SourceCache struct {
	load    Loader
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu  sync.Mutex
	src *Sources
}

// NewSourceCache wraps load; nil selects LoadSources.
func NewSourceCache(load Loader) *SourceCache {
	if load == nil {
		load = LoadSources
	}
	return &SourceCache{load: load, entries: make(map[string]*cacheEntry)}
}

// Get returns the cached sources for files, loading them on first use.
func (c *SourceCache) Get(ctx context.Context, files SourceFiles) (*Sources, error) {
	key := files.Key()
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src != nil {
		return e.src, nil
	}
	src, err := c.load(ctx, files)
	if err != nil {
		return nil, err
	}
	e.src = src
	return src, nil
}
