package indicator

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/wissalbenjira/SDG-KG/pkg/fn"
)

// olympics is annotated on series whose year range covers it.
var olympics = Annotation{Year: 2024, Label: "Paris Olympics 2024"}

// Compute runs the whole indicator pipeline over src.
func Compute(src *Sources, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, fmt.Errorf("indicator: %w", err)
	}
	selected := fn.Set(p.UnitIDs)
	rows := fn.Filter(Join(src, p), func(r Row) bool { return selected[r.UnitID] })
	if len(rows) == 0 {
		return Result{NoData: true}, nil
	}
	for i := range rows {
		rows[i].UnderThreshold = rows[i].Distance <= p.Threshold
	}
	return aggregate(rows), nil
}

// Join filters the sources by p and joins every population record to its
// nearest stop(s). Unit selection and the threshold are not applied.
// Ties at the minimum distance produce one row per tied stop.
func Join(src *Sources, p Params) []Row {
	pop := filterPopulation(src.Population, p)
	stops := joinedStops(src, p)

	units := fn.GroupBy(src.Units, func(u Unit) string { return u.ID })
	type keyed struct {
		rec  PopulationRecord
		key  string
		name string
	}
	var joined []keyed
	joinedIDs := make(map[string]bool)
	for _, rec := range pop {
		key := rec.IrisID
		if p.Level == LevelCommune {
			key = rec.CommuneID
		}
		for _, u := range units[key] {
			joined = append(joined, keyed{rec: rec, key: key, name: u.Name})
			joinedIDs[key] = true
		}
	}

	nearest := fn.GroupBy(nearestLinks(src.Distances, stops, joinedIDs), func(l DistanceLink) string { return l.PopulationID })

	var rows []Row
	for _, k := range joined {
		for _, l := range nearest[k.key] {
			rows = append(rows, Row{
				UnitID:      k.key,
				Name:        k.name,
				Year:        k.rec.Year,
				Mode:        k.rec.Mode,
				Value:       k.rec.Value,
				TransportID: l.TransportID,
				Distance:    l.Distance,
			})
		}
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		return cmp.Or(
			cmp.Compare(a.UnitID, b.UnitID),
			cmp.Compare(a.Year, b.Year),
			cmp.Compare(a.Mode, b.Mode),
			cmp.Compare(a.TransportID, b.TransportID),
		)
	})
	return rows
}

// filterPopulation keeps the selected years and modes. At commune level the
// values are summed per (commune, year, mode).
func filterPopulation(records []PopulationRecord, p Params) []PopulationRecord {
	years, modes := fn.Set(p.Years), fn.Set(p.Modes)
	kept := fn.Filter(records, func(r PopulationRecord) bool { return years[r.Year] && modes[r.Mode] })
	if p.Level != LevelCommune {
		return kept
	}

	type groupKey struct {
		commune string
		year    int
		mode    string
	}
	sums := make(map[groupKey]float64)
	var order []groupKey
	for _, r := range kept {
		k := groupKey{r.CommuneID, r.Year, r.Mode}
		if _, ok := sums[k]; !ok {
			order = append(order, k)
		}
		sums[k] += r.Value
	}
	return fn.Map(order, func(k groupKey) PopulationRecord {
		return PopulationRecord{CommuneID: k.commune, Year: k.year, Mode: k.mode, Value: sums[k]}
	})
}

// joinedStops returns the ids of stops matching the class and year filters
// that also have a geometry.
func joinedStops(src *Sources, p Params) map[string]bool {
	classes, years := fn.Set(p.Classes), fn.Set(p.Years)
	geom := fn.Set(src.StopIDs)
	out := make(map[string]bool)
	for _, s := range src.Stops {
		if classes[s.Class] && years[s.Year] && geom[s.ID] {
			out[s.ID] = true
		}
	}
	return out
}

// nearestLinks keeps, per population id, the links at that id's minimum
// distance over the whole table, then drops links to stops or units that
// did not survive filtering. A unit whose nearest stop was filtered out has
// no link at all; the next nearest stop is not used. Missing (NaN) distances
// never take part in the minimum; an id with no finite distance keeps its
// NaN links, which are never under any threshold.
func nearestLinks(links []DistanceLink, stops, units map[string]bool) []DistanceLink {
	best := make(map[string]float64)
	for _, l := range links {
		if math.IsNaN(l.Distance) {
			continue
		}
		if d, ok := best[l.PopulationID]; !ok || l.Distance < d {
			best[l.PopulationID] = l.Distance
		}
	}
	return fn.Filter(links, func(l DistanceLink) bool {
		if !stops[l.TransportID] || !units[l.PopulationID] {
			return false
		}
		d, ok := best[l.PopulationID]
		if !ok {
			return math.IsNaN(l.Distance)
		}
		return l.Distance == d
	})
}

func aggregate(rows []Row) Result {
	byYear := fn.GroupBy(rows, func(r Row) int { return r.Year })
	var res Result
	for _, year := range fn.SortedKeys(byYear) {
		group := byYear[year]
		var under int
		var total, reached float64
		for _, r := range group {
			total += r.Value
			if r.UnderThreshold {
				under++
				reached += r.Value
			}
		}
		yv := YearValue{Year: year, Proportion: float64(under) / float64(len(group)), Rows: len(group)}
		if total > 0 {
			yv.WeightedProportion = reached / total
		}
		res.Series = append(res.Series, yv)
	}
	res.Mean = fn.Mean(fn.Map(res.Series, func(y YearValue) float64 { return y.Proportion }))

	first, last := res.Series[0].Year, res.Series[len(res.Series)-1].Year
	if olympics.Year >= first && olympics.Year <= last {
		res.Annotations = append(res.Annotations, olympics)
	}
	return res
}

// Units lists the selectable spatial units for p as "name (id)" labels,
// sorted and deduplicated.
func Units(src *Sources, p Params) []UnitOption {
	opts := fn.Map(Join(src, p), func(r Row) UnitOption {
		return UnitOption{ID: r.UnitID, Name: r.Name, Label: fmt.Sprintf("%s (%s)", r.Name, r.UnitID)}
	})
	opts = fn.UniqueBy(opts, func(o UnitOption) string { return o.Label })
	slices.SortFunc(opts, func(a, b UnitOption) int { return cmp.Compare(a.Label, b.Label) })
	return opts
}

// UnitIDFromLabel extracts the id from a "name (id)" label. A label without
// parentheses is returned as is.
func UnitIDFromLabel(label string) string {
	i := strings.LastIndex(label, "(")
	if i < 0 {
		return strings.TrimSpace(label)
	}
	return strings.TrimSuffix(strings.TrimSpace(label[i+1:]), ")")
}

// OptionsOf lists the distinct filter values present in src.
func OptionsOf(src *Sources) Options {
	return Options{
		Levels:  Levels,
		Years:   fn.SortedUnique(fn.Map(src.Population, func(r PopulationRecord) int { return r.Year })),
		Classes: fn.SortedUnique(fn.Map(src.Stops, func(s TransportStop) string { return s.Class })),
		Modes:   fn.SortedUnique(fn.Map(src.Population, func(r PopulationRecord) string { return r.Mode })),
	}
}
