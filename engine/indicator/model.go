// Package indicator computes SDG indicator 11.2.1: the share of population
// living within a distance threshold of a public transport stop, per year.
package indicator

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
)

// Level is the spatial aggregation level.
type Level string

const (
	LevelCommune Level = "COMMUNE"
	LevelIRIS    Level = "IRIS"
)

// Levels lists the selectable levels, default first.
var Levels = []Level{LevelCommune, LevelIRIS}

// Threshold bounds offered to clients, in meters.
const (
	MinThreshold     = 1
	MaxThreshold     = 1000
	DefaultThreshold = 100
)

// PopulationRecord is one row of the population table.
type PopulationRecord struct {
	IrisID    string  `json:"code_iris"`
	CommuneID string  `json:"code_commune"`
	Year      int     `json:"year"`
	Mode      string  `json:"mode"`
	Value     float64 `json:"value"`
}

// TransportStop is one row of the stop table.
type TransportStop struct {
	ID    string `json:"osm_id"`
	Class string `json:"fclass"`
	Year  int    `json:"year"`
}

// DistanceLink is a precomputed unit-to-stop distance in meters.
type DistanceLink struct {
	PopulationID string  `json:"population_id"`
	TransportID  string  `json:"transport_id"`
	Distance     float64 `json:"distance"`
}

// Unit is a population geometry feature.
type Unit struct {
	ID       string
	Name     string
	Geometry orb.Geometry
}

// Sources bundles the tables a computation reads. Treat as read-only once
// loaded; a *Sources is shared between requests.
type Sources struct {
	Population []PopulationRecord
	Units      []Unit
	Stops      []TransportStop
	StopIDs    []string // ids of stop geometry features
	Distances  []DistanceLink
}

// Params selects what to compute. UnitIDs is the set of spatial units kept
// in the result; an empty set yields no data.
type Params struct {
	Level     Level    `json:"level"`
	Years     []int    `json:"years"`
	Classes   []string `json:"classes"`
	Modes     []string `json:"modes"`
	UnitIDs   []string `json:"unit_ids"`
	Threshold float64  `json:"threshold"`
}

// Validate checks the level and threshold.
func (p Params) Validate() error {
	if p.Level != LevelCommune && p.Level != LevelIRIS {
		return domain.NewValidationError("level", string(p.Level), domain.ErrInvalidParams)
	}
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) || p.Threshold <= 0 {
		return domain.NewValidationError("threshold", fmt.Sprint(p.Threshold), domain.ErrInvalidParams)
	}
	return nil
}

// Defaulted fills nil filters with every available option and a zero
// threshold with DefaultThreshold. Explicitly empty filters stay empty.
func (p Params) Defaulted(o Options) Params {
	if p.Level == "" {
		p.Level = LevelCommune
	}
	if p.Years == nil {
		p.Years = o.Years
	}
	if p.Classes == nil {
		p.Classes = o.Classes
	}
	if p.Modes == nil {
		p.Modes = o.Modes
	}
	if p.Threshold == 0 {
		p.Threshold = DefaultThreshold
	}
	return p
}

// Row is a population record joined to its nearest stop.
type Row struct {
	UnitID         string  `json:"unit_id"`
	Name           string  `json:"name"`
	Year           int     `json:"year"`
	Mode           string  `json:"mode"`
	Value          float64 `json:"value"`
	TransportID    string  `json:"transport_id"`
	Distance       float64 `json:"distance"`
	UnderThreshold bool    `json:"under_threshold"`
}

// YearValue is one point of the indicator series. Proportion is the share of
// rows under the threshold; WeightedProportion weighs rows by population.
type YearValue struct {
	Year               int     `json:"year"`
	Proportion         float64 `json:"proportion"`
	WeightedProportion float64 `json:"weighted_proportion"`
	Rows               int     `json:"rows"`
}

// Annotation marks a notable year inside the series range.
type Annotation struct {
	Year  int    `json:"year"`
	Label string `json:"label"`
}

// Result is the indicator output. NoData is set when the selection matched
// nothing; Series is then empty.
type Result struct {
	Series      []YearValue  `json:"series"`
	Mean        float64      `json:"mean"`
	NoData      bool         `json:"no_data"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Headline is the mean rounded to three decimals.
func (r Result) Headline() float64 {
	return math.Round(r.Mean*1000) / 1000
}

// Options are the filter values present in the sources.
type Options struct {
	Levels  []Level  `json:"levels"`
	Years   []int    `json:"years"`
	Classes []string `json:"classes"`
	Modes   []string `json:"modes"`
}

// UnitOption is a selectable spatial unit.
type UnitOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}
