package main

import (
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/engine/indicator"
)

// OptionsResponse lists the indicator filters and their bounds.
type OptionsResponse struct {
	indicator.Options
	Threshold struct {
		Min     int `json:"min"`
		Max     int `json:"max"`
		Default int `json:"default"`
	} `json:"threshold"`
}

// IndicatorResponse is a computed series with its rounded headline.
type IndicatorResponse struct {
	indicator.Result
	Headline  float64          `json:"headline"`
	Params    indicator.Params `json:"params"`
	Indicator string           `json:"indicator"`
}

// MapResponse is the map layer of a selection.
type MapResponse struct {
	Layer *geojson.FeatureCollection `json:"layer"`
	Stats indicator.Stats            `json:"stats"`
}

func (s *Server) sources(r *http.Request) (*indicator.Sources, error) {
	return s.Sources.Get(r.Context(), s.SourceFiles)
}

// params decodes and completes the request parameters against src.
func (s *Server) params(w http.ResponseWriter, r *http.Request, src *indicator.Sources) (indicator.Params, error) {
	var p indicator.Params
	if err := decodeJSON(w, r, &p); err != nil {
		return p, err
	}
	p = p.Defaulted(indicator.OptionsOf(src))
	return p, p.Validate()
}

func (s *Server) handleIndicatorOptions(w http.ResponseWriter, r *http.Request) {
	src, err := s.sources(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var resp OptionsResponse
	resp.Options = indicator.OptionsOf(src)
	resp.Threshold.Min = indicator.MinThreshold
	resp.Threshold.Max = indicator.MaxThreshold
	resp.Threshold.Default = indicator.DefaultThreshold
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndicatorUnits(w http.ResponseWriter, r *http.Request) {
	src, err := s.sources(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.params(w, r, src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	units := indicator.Units(src, p)
	if units == nil {
		units = []indicator.UnitOption{}
	}
	writeJSON(w, http.StatusOK, map[string][]indicator.UnitOption{"units": units})
}

func (s *Server) handleIndicator(w http.ResponseWriter, r *http.Request) {
	src, err := s.sources(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.params(w, r, src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	start := time.Now()
	res, err := indicator.Compute(src, p)
	s.Metrics.IndicatorLatency.Since(start)
	s.Metrics.IndicatorRuns.Inc()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Series == nil {
		res.Series = []indicator.YearValue{}
	}
	writeJSON(w, http.StatusOK, IndicatorResponse{Result: res, Headline: res.Headline(), Params: p, Indicator: domain.Indicator11_2_1})
}

func (s *Server) handleIndicatorMap(w http.ResponseWriter, r *http.Request) {
	src, err := s.sources(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.params(w, r, src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MapResponse{Layer: indicator.MapLayer(src, p), Stats: indicator.LayerStats(indicator.Join(src, p))})
}
