package indicator

import (
	"math"

	"github.com/paulmach/orb/geojson"

	"github.com/wissalbenjira/SDG-KG/pkg/fn"
)

// MapLayer renders the joined population rows as GeoJSON features carrying
// the population value and the distance to the nearest stop (null when
// missing). Units without a geometry are skipped.
func MapLayer(src *Sources, p Params) *geojson.FeatureCollection {
	geoms := make(map[string]Unit, len(src.Units))
	for _, u := range src.Units {
		if _, ok := geoms[u.ID]; !ok && u.Geometry != nil {
			geoms[u.ID] = u
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, r := range Join(src, p) {
		u, ok := geoms[r.UnitID]
		if !ok {
			continue
		}
		f := geojson.NewFeature(u.Geometry)
		f.Properties["id"] = r.UnitID
		f.Properties["name"] = r.Name
		f.Properties["year"] = r.Year
		f.Properties["mode"] = r.Mode
		f.Properties["VALEUR"] = r.Value
		f.Properties["distance"] = nil
		if !math.IsNaN(r.Distance) {
			f.Properties["distance"] = r.Distance
		}
		f.Properties["transport_id"] = r.TransportID
		fc.Append(f)
	}
	return fc
}

// Stats summarises a map layer for legend scaling.
type Stats struct {
	Features    int     `json:"features"`
	MaxValue    float64 `json:"max_value"`
	MaxDistance float64 `json:"max_distance"`
	MeanValue   float64 `json:"mean_value"`
}

// LayerStats computes legend bounds for the rows Join returns.
func LayerStats(rows []Row) Stats {
	s := Stats{Features: len(rows)}
	for _, r := range rows {
		s.MaxValue = max(s.MaxValue, r.Value)
		if !math.IsNaN(r.Distance) {
			s.MaxDistance = max(s.MaxDistance, r.Distance)
		}
	}
	s.MeanValue = fn.Mean(fn.Map(rows, func(r Row) float64 { return r.Value }))
	return s
}
