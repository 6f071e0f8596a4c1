package main

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wissalbenjira/SDG-KG/engine/graph"
	"github.com/wissalbenjira/SDG-KG/pkg/repo"
)

// GraphResponse is a view with the colour legend and widget elements.
type GraphResponse struct {
	graph.View
	Elements graph.Elements    `json:"elements"`
	Colors   map[string]string `json:"colors"`
}

func newGraphResponse(v graph.View) GraphResponse {
	if v.Nodes == nil {
		v.Nodes = []graph.Node{}
	}
	if v.Edges == nil {
		v.Edges = []graph.Edge{}
	}
	return GraphResponse{View: v, Elements: v.ToElements(), Colors: graph.LabelColors}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	view, err := s.Conns.Graph().View(r.Context(), labelsParam(r, "types"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGraphResponse(view))
}

// PreviewResponse is the bundled elements file filtered by node type.
type PreviewResponse struct {
	Labels   []string       `json:"labels"`
	Elements graph.Elements `json:"elements"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	els, err := graph.ReadElements(s.ElementsPath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	labels := els.Labels()
	if types := labelsParam(r, "types"); len(types) > 0 {
		els = els.Filter(types)
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Labels: labels, Elements: els})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	seed, err := graph.ReadSeed(s.SeedPath)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Conns.Graph().Reinitialize(r.Context(), seed); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Metrics.GraphResets.Inc()
	s.Logger.Info("graph reinitialized", "seed", s.SeedPath, "nodes", len(seed.Nodes), "edges", len(seed.Edges))
	writeJSON(w, http.StatusOK, map[string]int{"nodes": len(seed.Nodes), "edges": len(seed.Edges)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Conns.Graph().Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleConcepts(w http.ResponseWriter, r *http.Request) {
	concepts, err := s.Conns.Graph().Concepts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"concepts": nonNil(concepts)})
}

func (s *Server) handleAttributes(w http.ResponseWriter, r *http.Request) {
	attrs, err := s.Conns.Graph().Attributes(r.Context(), chi.URLParam(r, "concept"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"attributes": nonNil(attrs)})
}

func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	opts := repo.ListOpts{}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		opts.Offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		opts.Limit = v
	}
	dbs, err := s.Conns.Graph().Databases(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if dbs == nil {
		dbs = []graph.Database{}
	}
	writeJSON(w, http.StatusOK, map[string][]graph.Database{"databases": dbs})
}

func (s *Server) handleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.Conns.Graph().DeleteDatabase(r.Context(), name); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("database removed from graph", "database", name)
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
