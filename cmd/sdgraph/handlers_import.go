package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/engine/graph"
	"github.com/wissalbenjira/SDG-KG/engine/ingest"
	"github.com/wissalbenjira/SDG-KG/engine/mapping"
	"github.com/wissalbenjira/SDG-KG/engine/session"
	"github.com/wissalbenjira/SDG-KG/pkg/tabular"
)

// maxUpload bounds a multipart upload.
const maxUpload = 256 << 20

// previewRows is the number of CSV rows echoed after an upload.
const previewRows = 5

// SessionResponse is an import session with an optional CSV preview.
type SessionResponse struct {
	*session.ImportState
	Preview [][]string `json:"preview,omitempty"`
}

// CommitResponse is a committed session and the subgraph it produced.
type CommitResponse struct {
	Session  *session.ImportState `json:"session"`
	Subgraph GraphResponse        `json:"subgraph"`
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*session.ImportState, bool) {
	st, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return st, true
}

func (s *Server) saveAndRespond(w http.ResponseWriter, r *http.Request, st *session.ImportState, status int, preview [][]string) {
	if err := s.Sessions.Save(r.Context(), st); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, SessionResponse{ImportState: st, Preview: preview})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.Sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Metrics.OpenSessions.Inc()
	writeJSON(w, http.StatusCreated, SessionResponse{ImportState: st})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if st, ok := s.loadSession(w, r); ok {
		writeJSON(w, http.StatusOK, SessionResponse{ImportState: st})
	}
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Metrics.OpenSessions.Dec()
	if err := os.RemoveAll(s.sessionDir(id)); err != nil {
		s.Logger.Warn("import: removing uploads", "err", err, "session", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	st.Reset()
	s.saveAndRespond(w, r, st, http.StatusOK, nil)
}

type databaseRequest struct {
	Name    string `json:"name"`
	Concept string `json:"concept"`
}

func (s *Server) handleSetDatabase(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var req databaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := st.SetDatabase(req.Name, req.Concept); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.saveAndRespond(w, r, st, http.StatusOK, nil)
}

func (s *Server) sessionDir(id string) string {
	return filepath.Join(s.UploadDir, filepath.Base(id))
}

// saveUpload stores one multipart file under dir and returns its path.
func saveUpload(dir string, fh *multipart.FileHeader) (string, error) {
	name := filepath.Base(fh.Filename)
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		return "", domain.NewValidationError("file", fh.Filename, domain.ErrInvalidName)
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return path, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, r, domain.NewValidationError("form", "", errors.Join(domain.ErrInvalidParams, err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	csvFiles := r.MultipartForm.File["csv"]
	if len(csvFiles) == 0 {
		s.writeError(w, r, domain.NewValidationError("csv", "", fmt.Errorf("%w: csv file is required", domain.ErrInvalidParams)))
		return
	}
	opts := tabular.CSVOptions{Encoding: r.FormValue("encoding"), Separator: r.FormValue("separator")}
	encoding, err := tabular.ParseEncoding(opts.Encoding)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := tabular.ParseSeparator(opts.Separator); err != nil {
		s.writeError(w, r, err)
		return
	}
	separator := opts.Separator
	if separator == "" {
		separator = ","
	}

	dir := s.sessionDir(st.ID)
	csvPath, err := saveUpload(dir, csvFiles[0])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	table, err := tabular.ReadCSVFile(csvPath, opts)
	if err != nil {
		s.writeError(w, r, domain.NewValidationError("csv", csvFiles[0].Filename, errors.Join(domain.ErrInvalidParams, err)))
		return
	}

	var geoPath string
	if geo := r.MultipartForm.File["geojson"]; len(geo) > 0 {
		if geoPath, err = saveUpload(dir, geo[0]); err != nil {
			s.writeError(w, r, err)
			return
		}
		if _, err := tabular.ReadGeoJSONFile(geoPath); err != nil {
			s.writeError(w, r, domain.NewValidationError("geojson", geo[0].Filename, errors.Join(domain.ErrInvalidParams, err)))
			return
		}
	}

	st.SetFiles(session.Files{
		CSVName:     csvFiles[0].Filename,
		CSVPath:     csvPath,
		GeoJSONPath: geoPath,
		Encoding:    encoding,
		Separator:   separator,
		Columns:     table.Columns,
	})
	s.saveAndRespond(w, r, st, http.StatusOK, table.Head(previewRows))
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if st.Concept == "" || st.CSVPath == "" {
		s.writeError(w, r, domain.NewValidationError("session", st.ID, fmt.Errorf("%w: set the database and upload a csv first", domain.ErrInvalidParams)))
		return
	}
	attrs, err := s.Conns.Graph().Attributes(r.Context(), st.Concept)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	table, err := tabular.ReadCSVFile(st.CSVPath, tabular.CSVOptions{Encoding: st.Encoding, Separator: st.Separator})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	suggested, err := mapping.NewMapper(s.Conns.LLM(), s.Logger).Suggest(r.Context(), table, attrs)
	if err != nil {
		s.Metrics.LLMFailures.Inc()
		s.writeError(w, r, err)
		return
	}
	s.Metrics.Suggestions.Inc()
	st.ApplySuggestion(suggested)
	s.saveAndRespond(w, r, st, http.StatusOK, nil)
}

type mappingRequest struct {
	Mapping map[string]string `json:"mapping"`
}

func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var req mappingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	attrs, err := s.Conns.Graph().Attributes(r.Context(), st.Concept)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := st.SetMapping(req.Mapping, attrs); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.saveAndRespond(w, r, st, http.StatusOK, nil)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if err := st.Ready(); err != nil {
		s.writeError(w, r, err)
		return
	}
	gs := s.Conns.Graph()
	attrs, err := gs.Attributes(r.Context(), st.Concept)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	job := ingest.Job{
		SessionID: st.ID,
		Import: graph.Import{
			Database: graph.Database{
				ID:           st.DBName,
				CSVPath:      st.CSVPath,
				GeoJSONPath:  st.GeoJSONPath,
				CSVEncoding:  st.Encoding,
				CSVSeparator: st.Separator,
			},
			Concept: st.Concept,
			Mapping: st.Mapping,
		},
		Columns:    st.Columns,
		Attributes: attrs,
	}
	pipeline := ingest.NewPipeline(ingest.Deps{Graph: gs, Publisher: s.Publisher, Logger: s.Logger})
	out, err := pipeline(r.Context(), job).Unwrap()
	if err != nil {
		s.Metrics.ImportFailures.Inc()
		s.writeError(w, r, err)
		return
	}
	s.Metrics.Imports.Inc()

	st.MarkDone()
	if err := s.Sessions.Save(r.Context(), st); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CommitResponse{Session: st, Subgraph: newGraphResponse(out.Subgraph)})
}
