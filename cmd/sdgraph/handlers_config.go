package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/wissalbenjira/SDG-KG/pkg/config"
	"github.com/wissalbenjira/SDG-KG/pkg/llm"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Config.Get().Masked())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var in config.Config
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.Config.Update(in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Conns.Apply(r.Context(), saved); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("configuration saved", "path", s.Config.Path())
	writeJSON(w, http.StatusOK, saved.Masked())
}

type testResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// testTarget decodes an optional body over the stored config so unsaved
// values can be tried. An empty body tests the stored values.
func (s *Server) testTarget(w http.ResponseWriter, r *http.Request) (config.Config, error) {
	stored := s.Config.Get()
	in := stored.Masked()
	if err := decodeJSON(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
		return config.Config{}, err
	}
	return stored.Merge(in), nil
}

func (s *Server) handleTestNeo4j(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.testTarget(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.VerifyNeo4j(r.Context(), cfg.Neo4j); err != nil {
		writeJSON(w, http.StatusBadGateway, testResult{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, testResult{OK: true})
}

func (s *Server) handleTestLLM(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.testTarget(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	client := llm.New(cfg.LLM(), llm.WithLogger(s.Logger))
	if err := client.Ping(r.Context()); err != nil {
		s.Metrics.LLMFailures.Inc()
		writeJSON(w, http.StatusBadGateway, testResult{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, testResult{OK: true})
}
