// Package osm fetches public-transport stops from OpenStreetMap through the
// Overpass API and writes them in the layout the indicator pipeline reads.
package osm

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/serjvanilla/go-overpass"
)

// DefaultEndpoint is the public Overpass instance.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// BBox is a south/west/north/east bounding box in degrees.
type BBox struct {
	South, West, North, East float64
}

// String renders the box in Overpass order.
func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.South, b.West, b.North, b.East)
}

// Valid reports whether the box is well formed.
func (b BBox) Valid() bool {
	return b.South < b.North && b.West < b.East &&
		b.South >= -90 && b.North <= 90 && b.West >= -180 && b.East <= 180
}

// Stop is one transport stop as of Year.
type Stop struct {
	ID    string
	Class string
	Year  int
	Name  string
	Lat   float64
	Lon   float64
}

// Classify maps OSM tags to a stop class, following the Geofabrik
// transport layer names.
func Classify(tags map[string]string) (string, bool) {
	switch {
	case tags["railway"] == "station":
		return "railway_station", true
	case tags["railway"] == "halt":
		return "railway_halt", true
	case tags["railway"] == "tram_stop":
		return "tram_stop", true
	case tags["highway"] == "bus_stop":
		return "bus_stop", true
	case tags["amenity"] == "bus_station":
		return "bus_station", true
	case tags["amenity"] == "ferry_terminal":
		return "ferry_terminal", true
	case tags["aerialway"] == "station":
		return "aerialway_station", true
	case tags["amenity"] == "taxi":
		return "taxi", true
	}
	return "", false
}

const stopQuery = `[out:json][timeout:%d][date:"%d-12-31T23:59:59Z"];
(
	node["railway"~"^(station|halt|tram_stop)$"](%[3]s);
	node["highway"="bus_stop"](%[3]s);
	node["amenity"~"^(bus_station|ferry_terminal|taxi)$"](%[3]s);
	node["aerialway"="station"](%[3]s);
);
out body;`

// Fetcher queries Overpass.
type Fetcher struct {
	client  *overpass.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher for endpoint with at most two parallel
// requests.
func NewFetcher(endpoint string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := overpass.NewWithSettings(endpoint, 2, &http.Client{Timeout: timeout})
	return &Fetcher{client: &client, timeout: timeout, logger: logger}
}

// Fetch returns the stops inside box as they stood at the end of year,
// sorted by id.
func (f *Fetcher) Fetch(ctx context.Context, box BBox, year int) ([]Stop, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("osm: invalid bbox %s", box)
	}
	q := fmt.Sprintf(stopQuery, int(f.timeout.Seconds()), year, box.String())

	type reply struct {
		res overpass.Result
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		res, err := f.client.Query(q)
		ch <- reply{res, err}
	}()

	var r reply
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		return nil, fmt.Errorf("osm: overpass query failed: %w", r.err)
	}

	stops := make([]Stop, 0, len(r.res.Nodes))
	for _, node := range r.res.Nodes {
		class, ok := Classify(node.Tags)
		if !ok {
			continue
		}
		stops = append(stops, Stop{
			ID:    strconv.FormatInt(node.ID, 10),
			Class: class,
			Year:  year,
			Name:  node.Tags["name"],
			Lat:   node.Lat,
			Lon:   node.Lon,
		})
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	f.logger.Info("osm: fetched stops", "bbox", box.String(), "year", year, "nodes", len(r.res.Nodes), "stops", len(stops))
	return stops, nil
}

// WriteCSV writes the stop table (osm_id,fclass,year,name).
func WriteCSV(w io.Writer, stops []Stop) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"osm_id", "fclass", "year", "name"}); err != nil {
		return fmt.Errorf("osm: write csv: %w", err)
	}
	for _, s := range stops {
		if err := cw.Write([]string{s.ID, s.Class, strconv.Itoa(s.Year), s.Name}); err != nil {
			return fmt.Errorf("osm: write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("osm: write csv: %w", err)
	}
	return nil
}

// GeoJSON returns one point feature per distinct stop id.
func GeoJSON(stops []Stop) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	seen := make(map[string]bool, len(stops))
	for _, s := range stops {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		f := geojson.NewFeature(orb.Point{s.Lon, s.Lat})
		f.Properties["id"] = s.ID
		f.Properties["fclass"] = s.Class
		if s.Name != "" {
			f.Properties["name"] = s.Name
		}
		fc.Append(f)
	}
	return fc
}
