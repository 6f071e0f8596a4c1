// Package relevance ranks candidate datasets against a use-case query with
// the TSM score: a weighted mix of coarse spatial, temporal and context
// matches plus the dataset's own reliability and completeness.
//
// The similarity functions compare strings, not geometries or intervals:
// each returns 1, 0.5 or 0.
package relevance

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/pkg/fn"
)

// Dataset is a catalog entry.
type Dataset struct {
	Name         string  `json:"name"`
	Space        string  `json:"space"`
	Time         string  `json:"time"`
	Context      string  `json:"context"`
	Reliability  float64 `json:"reliability"`
	Completeness float64 `json:"completeness"`
}

// Query is what a use case asks for.
type Query struct {
	Space   string `json:"space"`
	Time    string `json:"time"`
	Context string `json:"context"`
}

// Weights of the five score components.
type Weights struct {
	Space        float64 `json:"space"`
	Time         float64 `json:"time"`
	Context      float64 `json:"context"`
	Reliability  float64 `json:"reliability"`
	Completeness float64 `json:"completeness"`
}

// DefaultWeights sum to 1.
var DefaultWeights = Weights{Space: 0.25, Time: 0.25, Context: 0.20, Reliability: 0.15, Completeness: 0.15}

// Total is the weight sum the score is normalised by.
func (w Weights) Total() float64 {
	return w.Space + w.Time + w.Context + w.Reliability + w.Completeness
}

// Validate requires every weight in [0,1] and a positive total.
func (w Weights) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"space", w.Space}, {"time", w.Time}, {"context", w.Context},
		{"reliability", w.Reliability}, {"completeness", w.Completeness},
	}
	for _, f := range fields {
		if !unit(f.v) {
			return domain.NewValidationError("weights."+f.name, fmt.Sprint(f.v), domain.ErrInvalidWeights)
		}
	}
	if w.Total() <= 0 {
		return domain.NewValidationError("weights", "0", domain.ErrInvalidWeights)
	}
	return nil
}

// Validate requires reliability and completeness in [0,1].
func (d Dataset) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return domain.NewValidationError("dataset.name", d.Name, domain.ErrInvalidParams)
	}
	if !unit(d.Reliability) {
		return domain.NewValidationError(d.Name+".reliability", fmt.Sprint(d.Reliability), domain.ErrInvalidParams)
	}
	if !unit(d.Completeness) {
		return domain.NewValidationError(d.Name+".completeness", fmt.Sprint(d.Completeness), domain.ErrInvalidParams)
	}
	return nil
}

// Validate requires all three query fields.
func (q Query) Validate() error {
	for field, v := range map[string]string{"space": q.Space, "time": q.Time, "context": q.Context} {
		if strings.TrimSpace(v) == "" {
			return domain.NewValidationError("query."+field, v, domain.ErrInvalidParams)
		}
	}
	return nil
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

// SimSpace is 1 on an exact match, 0.5 when the query is a substring of the
// dataset coverage.
func SimSpace(datasetSpace, querySpace string) float64 {
	switch {
	case datasetSpace == querySpace:
		return 1
	case strings.Contains(datasetSpace, querySpace):
		return 0.5
	}
	return 0
}

// SimTime is 1 when the query's start-year token (text before the first
// "-") occurs in the dataset range, 0.5 when the query's first four
// characters do.
func SimTime(datasetTime, queryTime string) float64 {
	start, _, _ := strings.Cut(queryTime, "-")
	switch {
	case strings.Contains(datasetTime, start):
		return 1
	case strings.Contains(datasetTime, prefix(queryTime, 4)):
		return 0.5
	}
	return 0
}

// SimContext is 1 when the query occurs in the context string, 0.5 when it
// occurs in one of its comma separated tags. Case-insensitive.
func SimContext(datasetContext, queryContext string) float64 {
	dc, qc := strings.ToLower(datasetContext), strings.ToLower(queryContext)
	if strings.Contains(dc, qc) {
		return 1
	}
	for _, tag := range strings.Split(dc, ",") {
		if strings.Contains(tag, qc) {
			return 0.5
		}
	}
	return 0
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		return s
	}
	return string(r[:n])
}

// Score is the TSM breakdown for one dataset.
type Score struct {
	Dataset      string  `json:"dataset"`
	Spatial      float64 `json:"spatial_sim"`
	Temporal     float64 `json:"temporal_sim"`
	Context      float64 `json:"context_sim"`
	Reliability  float64 `json:"reliability"`
	Completeness float64 `json:"completeness"`
	Final        float64 `json:"final"`
}

// Label renders the score the way dataset pickers show it.
func (s Score) Label() string {
	return fmt.Sprintf("%s (%.2f)", s.Dataset, s.Final)
}

// Evaluate scores d against q. w must have a positive total.
func Evaluate(q Query, d Dataset, w Weights) Score {
	s := Score{
		Dataset:      d.Name,
		Spatial:      SimSpace(d.Space, q.Space),
		Temporal:     SimTime(d.Time, q.Time),
		Context:      SimContext(d.Context, q.Context),
		Reliability:  d.Reliability,
		Completeness: d.Completeness,
	}
	s.Final = (w.Space*s.Spatial +
		w.Time*s.Temporal +
		w.Context*s.Context +
		w.Reliability*s.Reliability +
		w.Completeness*s.Completeness) / w.Total()
	return s
}

// Rank scores every dataset and orders them by final score, highest first.
// Scores equal to three decimals keep catalog order.
func Rank(q Query, catalog []Dataset, w Weights) ([]Score, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("relevance: %w", err)
	}
	for _, d := range catalog {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("relevance: %w", err)
		}
	}
	scores := fn.Map(catalog, func(d Dataset) Score { return Evaluate(q, d, w) })
	slices.SortStableFunc(scores, func(a, b Score) int {
		return cmp.Compare(round3(b.Final), round3(a.Final))
	})
	return scores, nil
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
